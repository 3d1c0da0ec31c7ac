// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package bus

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/mediaframework/simulated"
	"github.com/rapidaai/rialto/internal/task"
)

func TestDispatcherForwardsMessagesInOrder(t *testing.T) {
	b := simulated.NewBus(16)
	w := task.NewWorker("bus-test", nil, 16)
	w.Start()

	var mu sync.Mutex
	var seen []mediaframework.MessageType
	d := NewDispatcher(b, w, func(msg mediaframework.Message) {
		mu.Lock()
		seen = append(seen, msg.Type)
		mu.Unlock()
	}, nil)
	d.Start()

	b.Post(mediaframework.Message{Type: mediaframework.MessageStateChanged})
	b.Post(mediaframework.Message{Type: mediaframework.MessageQOS})
	b.Post(mediaframework.Message{Type: mediaframework.MessageEOS})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	assert.Equal(t, []mediaframework.MessageType{
		mediaframework.MessageStateChanged,
		mediaframework.MessageQOS,
		mediaframework.MessageEOS,
	}, seen)
	mu.Unlock()

	d.Stop()
	w.Stop()
	w.Join()
}

func TestDispatcherStopsCleanly(t *testing.T) {
	b := simulated.NewBus(16)
	w := task.NewWorker("bus-test", nil, 16)
	w.Start()

	d := NewDispatcher(b, w, func(mediaframework.Message) {}, nil)
	d.Start()
	d.Stop()

	// Messages posted after stop are never handled; the dispatcher has
	// exited and nothing panics.
	b.Post(mediaframework.Message{Type: mediaframework.MessageEOS})
	w.Stop()
	w.Join()
}
