// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package bus runs the per-session Bus Dispatcher goroutine: it polls the
// media-framework bus and enqueues HandleBusMessage tasks onto the session
// Worker. It never mutates player state itself; the handler closure it is
// given runs on the Worker, not here.
package bus

import (
	"context"

	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/task"
	"github.com/rapidaai/rialto/pkg/commons"
)

// Dispatcher polls one Bus and forwards every message to one Worker as a
// HandleBusMessage task.
type Dispatcher struct {
	bus     mediaframework.Bus
	worker  *task.Worker
	handler func(mediaframework.Message)
	logger  commons.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher constructs a Dispatcher that has not started polling yet.
// handler is invoked on the Worker goroutine for every message popped.
func NewDispatcher(b mediaframework.Bus, worker *task.Worker, handler func(mediaframework.Message), logger commons.Logger) *Dispatcher {
	if logger == nil {
		logger = commons.NewNoopLogger()
	}
	return &Dispatcher{
		bus:     b,
		worker:  worker,
		handler: handler,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Start launches the polling goroutine. Not idempotent.
func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	go d.run(ctx)
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	for {
		msg, ok := d.bus.Pop(ctx)
		if !ok {
			return
		}
		enqueued := d.worker.Enqueue(task.New("HandleBusMessage", func() {
			d.handler(msg)
		}))
		if !enqueued {
			// Worker is draining; the session is going away and the message
			// has nowhere to land.
			d.logger.Debugw("bus message dropped after worker stop", "type", msg.Type)
		}
	}
}

// Stop cancels the poll and waits for the goroutine to exit.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	<-d.done
}
