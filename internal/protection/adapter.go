// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package protection implements the per-buffer protection-metadata sidecar
// on media buffers. Add is
// construction (attach + increment), remove is destruction (decrement +
// release owned sub-buffers in order), and both must be safe to call from
// the media-framework thread that finalizes buffers.
package protection

import (
	"sync"
	"sync/atomic"

	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/model"
)

// metadataKey is the sidecar slot this adapter owns on every buffer it
// touches.
const metadataKey = "rialto.protection"

// typeTags is the tag list the metadata type registers under.
var typeTags = []string{"rialto", "protection"}

// Adapter is the protection-metadata adapter. It is safe for concurrent
// use: Add/Get/Remove may be called from the Worker thread (normal sample
// delivery) and from the media-framework thread that finalizes a buffer
// after push.
type Adapter struct {
	mu         sync.Mutex
	registered bool
	usage      map[string]*int64
}

// NewAdapter constructs an unregistered Adapter.
func NewAdapter() *Adapter {
	return &Adapter{usage: make(map[string]*int64)}
}

// Register performs the once-init guarded type registration. Calling it
// more than once is a no-op.
func (a *Adapter) Register() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.registered = true
	return typeTags
}

// Registered reports whether Register has run.
func (a *Adapter) Registered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.registered
}

// Add attaches a copy of desc to buf and increments the key session's usage
// counter.
func (a *Adapter) Add(buf *mediaframework.Buffer, desc model.EncryptionDescriptor) {
	cp := desc
	buf.SetMetadata(metadataKey, &cp)
	a.incrementUsage(desc.KeySessionID)
}

// Get returns the descriptor attached to buf, if any.
func (a *Adapter) Get(buf *mediaframework.Buffer) (*model.EncryptionDescriptor, bool) {
	v, ok := buf.Metadata(metadataKey)
	if !ok {
		return nil, false
	}
	desc, ok := v.(*model.EncryptionDescriptor)
	return desc, ok
}

// Remove decrements the key session's usage counter and releases the
// descriptor's owned sub-buffers (key, iv, subsamples, in that order) as
// in that order. Calling Remove twice for the same Add is a no-op on the
// second call, preserving the ref balance of one remove per add.
func (a *Adapter) Remove(buf *mediaframework.Buffer) {
	v, ok := buf.Metadata(metadataKey)
	if !ok {
		return
	}
	desc, ok := v.(*model.EncryptionDescriptor)
	if !ok {
		return
	}
	buf.DeleteMetadata(metadataKey)
	a.decrementUsage(desc.KeySessionID)

	// Release order: key, then iv, then subsamples.
	desc.KeyIDBuffer = nil
	desc.IVBuffer = nil
	desc.SubsamplesBuffer = nil
}

// UsageCount returns the current outstanding usage count for keySessionID,
// for tests asserting ref balance.
func (a *Adapter) UsageCount(keySessionID string) int64 {
	a.mu.Lock()
	counter, ok := a.usage[keySessionID]
	a.mu.Unlock()
	if !ok {
		return 0
	}
	return atomic.LoadInt64(counter)
}

func (a *Adapter) incrementUsage(keySessionID string) {
	if keySessionID == "" {
		return
	}
	atomic.AddInt64(a.counterFor(keySessionID), 1)
}

func (a *Adapter) decrementUsage(keySessionID string) {
	if keySessionID == "" {
		return
	}
	atomic.AddInt64(a.counterFor(keySessionID), -1)
}

func (a *Adapter) counterFor(keySessionID string) *int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	counter, ok := a.usage[keySessionID]
	if !ok {
		var zero int64
		counter = &zero
		a.usage[keySessionID] = counter
	}
	return counter
}
