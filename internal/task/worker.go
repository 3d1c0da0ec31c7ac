// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package task

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rapidaai/rialto/pkg/commons"
)

// State is the Worker's own lifecycle state.
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Worker is the single FIFO task queue and executor thread for one
// session. Enqueue holds a mutex shared with Stop and blocks while the
// bounded queue (queueCapacity tasks) is full; Stop closes intake so Join returns once every task enqueued before Stop has
// run; tasks enqueued after Stop are dropped.
type Worker struct {
	sessionID string
	logger    commons.Logger

	queue chan Task
	state atomic.Int32
	wg    sync.WaitGroup

	mu       sync.Mutex
	draining bool
}

// NewWorker constructs a Worker for sessionID with the given task backlog
// capacity. Call Start before Enqueue.
func NewWorker(sessionID string, logger commons.Logger, queueCapacity int) *Worker {
	if queueCapacity <= 0 {
		queueCapacity = 256
	}
	if logger == nil {
		logger = commons.NewNoopLogger()
	}
	w := &Worker{
		sessionID: sessionID,
		logger:    logger,
		queue:     make(chan Task, queueCapacity),
	}
	w.state.Store(int32(StateCreated))
	return w
}

// Start launches the executor goroutine. Start is not idempotent; callers
// must not call it twice on the same Worker.
func (w *Worker) Start() {
	w.state.Store(int32(StateRunning))
	w.wg.Add(1)
	go w.run()
}

func (w *Worker) run() {
	defer w.wg.Done()
	for t := range w.queue {
		w.execute(t)
	}
	w.state.Store(int32(StateStopped))
}

// execute runs a single task's Run func, catching and logging any panic so
// one failing task never takes the Worker down.
func (w *Worker) execute(t Task) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Errorw("task panicked", "session", w.sessionID, "task", t.Name, "recover", fmt.Sprintf("%v", r))
		}
	}()
	t.Run()
}

// Enqueue submits a task to run after every task already queued. It
// returns false (and drops the task) if the Worker has begun stopping:
// tasks enqueued after Stop are dropped. Enqueue and Stop
// share a mutex so a send can never race a close of the underlying channel.
func (w *Worker) Enqueue(t Task) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.draining {
		return false
	}
	w.queue <- t
	return true
}

// Ping enqueues a heartbeat task whose handler only runs once every
// previously enqueued task has executed; watchdogs use it as a heartbeat.
func (w *Worker) Ping(handler func()) bool {
	return w.Enqueue(New("ping", handler))
}

// Stop closes intake: no further Enqueue calls succeed, and Join will
// return once the tasks already queued have drained.
func (w *Worker) Stop() {
	w.mu.Lock()
	if w.draining {
		w.mu.Unlock()
		return
	}
	w.draining = true
	w.mu.Unlock()

	w.state.Store(int32(StateStopping))
	close(w.queue)
}

// Join blocks until the executor goroutine has drained the queue and
// exited.
func (w *Worker) Join() {
	w.wg.Wait()
}

// State reports the Worker's current lifecycle state.
func (w *Worker) State() State {
	return State(w.state.Load())
}
