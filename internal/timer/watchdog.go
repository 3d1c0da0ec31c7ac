// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package timer

import (
	"sync"
	"time"
)

// Watchdog runs onTick every interval until Stop is called. It backs the
// position/underflow watchdog. It does not touch
// PlayerContext itself, it only invokes onTick, which is expected to
// enqueue a task onto the session Worker.
type Watchdog struct {
	interval time.Duration
	onTick   func()

	mu      sync.Mutex
	stopped bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewWatchdog constructs a Watchdog that has not yet started.
func NewWatchdog(interval time.Duration, onTick func()) *Watchdog {
	return &Watchdog{
		interval: interval,
		onTick:   onTick,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the ticking goroutine. Not idempotent.
func (w *Watchdog) Start() {
	go w.run()
}

func (w *Watchdog) run() {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.onTick()
		}
	}
}

// Stop cancels the watchdog. Stop is idempotent: calling it more than once, or
// concurrently, never panics.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	w.stopped = true
	close(w.stopCh)
}

// Wait blocks until the watchdog goroutine has exited after Stop.
func (w *Watchdog) Wait() {
	<-w.done
}
