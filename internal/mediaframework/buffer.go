// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package mediaframework

import (
	"sync"
	"time"
)

// Buffer is a single media buffer pushed into an AppSrc. It is the "opaque
// buffer handle" the Protection-Metadata Adapter attaches sidecar
// data to: Buffer exposes a small, type-agnostic metadata slot rather than
// a protection-specific field so internal/protection (and anything else
// that needs per-buffer sidecar state) can own its own shape without this
// package importing it.
type Buffer struct {
	PTS   time.Duration
	DTS   time.Duration
	Data  []byte
	Caps  *Caps

	mu       sync.Mutex
	metadata map[string]interface{}

	// freeFuncs run, in order, when Release is called. The protection
	// adapter hooks in here: it registers a release func that decrements
	// the key-session usage counter and unrefs the sub-buffers it owns.
	freeFuncs []func()
}

// NewBuffer allocates a buffer of len(data) bytes filled from data.
func NewBuffer(data []byte, pts, dts time.Duration) *Buffer {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &Buffer{PTS: pts, DTS: dts, Data: cp}
}

// SetMetadata attaches an arbitrary sidecar value under key.
func (b *Buffer) SetMetadata(key string, value interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.metadata == nil {
		b.metadata = make(map[string]interface{})
	}
	b.metadata[key] = value
}

// Metadata returns a sidecar value previously attached under key.
func (b *Buffer) Metadata(key string) (interface{}, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.metadata[key]
	return v, ok
}

// DeleteMetadata removes a sidecar value.
func (b *Buffer) DeleteMetadata(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.metadata, key)
}

// OnRelease registers a func to run exactly once when Release is called.
// Used to chain ownership release for sub-buffers.
func (b *Buffer) OnRelease(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.freeFuncs = append(b.freeFuncs, fn)
}

// Release runs every registered release func exactly once, regardless of
// which path (push success, push failure, drop-on-wrong-state) led here.
func (b *Buffer) Release() {
	b.mu.Lock()
	funcs := b.freeFuncs
	b.freeFuncs = nil
	b.mu.Unlock()
	for _, fn := range funcs {
		fn()
	}
}
