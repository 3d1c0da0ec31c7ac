// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package timer holds the two timers the concurrency model names
// explicitly: the per-source NeedData resend timer and the
// position/underflow watchdog. Both are cancelled on stop/remove-source/
// destruction, and both must be idempotent if their task is already in
// flight when cancelled.
package timer

import (
	"sync"
	"time"

	"github.com/rapidaai/rialto/internal/model"
)

// ResendTimers tracks at most one active resend timer per MediaSourceType;
// while one is armed, further Schedule calls are refused.
// fn is always invoked by enqueuing onto the session Worker from the
// caller's own code; ResendTimers itself only owns the *time.Timer.
type ResendTimers struct {
	mu     sync.Mutex
	active map[model.MediaSourceType]*time.Timer
}

// New constructs an empty set of resend timers.
func New() *ResendTimers {
	return &ResendTimers{active: make(map[model.MediaSourceType]*time.Timer)}
}

// Schedule arms a resend timer for t after delay, calling fn when it
// fires. It returns false without arming anything if a timer for t is
// already active.
func (r *ResendTimers) Schedule(t model.MediaSourceType, delay time.Duration, fn func()) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, active := r.active[t]; active {
		return false
	}
	r.active[t] = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.active, t)
		r.mu.Unlock()
		fn()
	})
	return true
}

// Cancel stops (and forgets) the resend timer for t, if any. A timer whose
// func is already running is allowed to complete; Cancel only
// prevents a not-yet-fired timer from firing.
func (r *ResendTimers) Cancel(t model.MediaSourceType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if timer, ok := r.active[t]; ok {
		timer.Stop()
		delete(r.active, t)
	}
}

// CancelAll stops every active resend timer.
func (r *ResendTimers) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for t, timer := range r.active {
		timer.Stop()
		delete(r.active, t)
	}
}

// Active reports whether a resend timer for t is currently armed.
func (r *ResendTimers) Active(t model.MediaSourceType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[t]
	return ok
}
