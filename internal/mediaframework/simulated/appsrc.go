// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package simulated

import (
	"context"
	"sync"
	"time"

	"github.com/rapidaai/rialto/internal/mediaframework"
)

// AppSrc is the reference AppSrc: an in-memory byte-level queue with a
// configurable high-watermark (MaxBytes) and a simulated consumer that
// drains queued bytes while the owning pipeline is at least PAUSED, firing
// the NeedData callback when the queue falls under the low watermark. This
// stands in for the native element's own streaming thread demanding more
// data (GLOSSARY: Appsrc).
type AppSrc struct {
	*Element

	mu           sync.Mutex
	caps         *mediaframework.Caps
	maxBytes     uint64
	currentLevel uint64
	ready        bool // at least PAUSED
	eos          bool

	needDataCb   func(length uint)
	enoughDataCb func()

	lowWatermarkRatio float64
	drainBytesPerTick uint64
	drainInterval     time.Duration
	cancelDrain       context.CancelFunc
	needDataPending   bool
}

// NewAppSrc constructs an AppSrc named name with the given factory class
// (e.g. "GstAppSrc"). The drain parameters approximate a sink consuming
// queued bytes in real time; callers needing deterministic tests can drive
// need-data directly via RequestData instead of relying on the drain loop.
func NewAppSrc(name, factoryClass string) *AppSrc {
	return &AppSrc{
		Element:           NewElement(name, factoryClass),
		lowWatermarkRatio: 0.5,
		drainBytesPerTick: 4096,
		drainInterval:     20 * time.Millisecond,
	}
}

func (a *AppSrc) SetCaps(c *mediaframework.Caps) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.caps = c
}

func (a *AppSrc) Caps() *mediaframework.Caps {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.caps
}

func (a *AppSrc) SetMaxBytes(n uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.maxBytes = n
}

func (a *AppSrc) MaxBytes() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.maxBytes
}

func (a *AppSrc) CurrentLevelBytes() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentLevel
}

func (a *AppSrc) SetNeedDataCallback(cb func(length uint))  { a.mu.Lock(); a.needDataCb = cb; a.mu.Unlock() }
func (a *AppSrc) SetEnoughDataCallback(cb func())           { a.mu.Lock(); a.enoughDataCb = cb; a.mu.Unlock() }

// SetReady marks the element as at least PAUSED (pipeline driven). Below
// that, PushBuffer returns FlowWrongState.
func (a *AppSrc) SetReady(ready bool) {
	a.mu.Lock()
	a.ready = ready
	a.mu.Unlock()
}

func (a *AppSrc) PushBuffer(buf *mediaframework.Buffer) mediaframework.FlowReturn {
	a.mu.Lock()
	if !a.ready {
		a.mu.Unlock()
		return mediaframework.FlowWrongState
	}
	if a.eos {
		a.mu.Unlock()
		return mediaframework.FlowUnexpected
	}
	a.currentLevel += uint64(len(buf.Data))
	level, max := a.currentLevel, a.maxBytes
	a.needDataPending = false
	a.mu.Unlock()

	if max > 0 && level >= max {
		a.mu.Lock()
		cb := a.enoughDataCb
		a.mu.Unlock()
		if cb != nil {
			cb()
		}
	}
	return mediaframework.FlowOK
}

func (a *AppSrc) EndOfStream() mediaframework.FlowReturn {
	a.mu.Lock()
	if a.eos {
		a.mu.Unlock()
		return mediaframework.FlowUnexpected
	}
	a.eos = true
	a.mu.Unlock()
	return mediaframework.FlowOK
}

// Flush drops every queued byte and clears the EOS latch, modeling a
// FlushStart/FlushStop pair arriving at the element. After Flush the
// element accepts pushes again and its queued-byte level reads zero.
func (a *AppSrc) Flush() {
	a.mu.Lock()
	a.currentLevel = 0
	a.eos = false
	a.needDataPending = false
	a.mu.Unlock()
}

// IsEOS reports whether EndOfStream has been called.
func (a *AppSrc) IsEOS() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eos
}

// RequestData synchronously invokes the registered need-data callback with
// length, as if the streaming thread had demanded more data. Exposed so
// tests and the source orchestrator can drive demand deterministically
// instead of waiting on the drain loop.
func (a *AppSrc) RequestData(length uint) {
	a.mu.Lock()
	cb := a.needDataCb
	a.needDataPending = true
	a.mu.Unlock()
	if cb != nil {
		cb(length)
	}
}

// StartDrain begins simulating consumption of queued bytes at
// drainBytesPerTick every drainInterval, invoking the need-data callback
// whenever the level falls under lowWatermarkRatio*maxBytes and no request
// is already pending. Call StopDrain to cancel; StartDrain is idempotent.
func (a *AppSrc) StartDrain(ctx context.Context) {
	a.mu.Lock()
	if a.cancelDrain != nil {
		a.mu.Unlock()
		return
	}
	drainCtx, cancel := context.WithCancel(ctx)
	a.cancelDrain = cancel
	a.mu.Unlock()

	go a.drainLoop(drainCtx)
}

func (a *AppSrc) StopDrain() {
	a.mu.Lock()
	cancel := a.cancelDrain
	a.cancelDrain = nil
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (a *AppSrc) drainLoop(ctx context.Context) {
	ticker := time.NewTicker(a.drainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick()
		}
	}
}

func (a *AppSrc) tick() {
	a.mu.Lock()
	if a.currentLevel > 0 {
		if a.currentLevel < a.drainBytesPerTick {
			a.currentLevel = 0
		} else {
			a.currentLevel -= a.drainBytesPerTick
		}
	}
	level, max, eos, pending := a.currentLevel, a.maxBytes, a.eos, a.needDataPending
	var cb func(length uint)
	if !eos && !pending && max > 0 && float64(level) < float64(max)*a.lowWatermarkRatio {
		cb = a.needDataCb
		a.needDataPending = true
	}
	a.mu.Unlock()

	if cb != nil {
		cb(uint(a.drainBytesPerTick))
	}
}

var _ mediaframework.AppSrc = (*AppSrc)(nil)
