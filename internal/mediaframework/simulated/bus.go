// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package simulated

import (
	"context"

	"github.com/rapidaai/rialto/internal/mediaframework"
)

// Bus is the reference Bus: a buffered channel of posted messages. Pop
// never mutates caller state; it just hands back what was posted.
type Bus struct {
	messages chan mediaframework.Message
}

// NewBus creates a Bus with the given backlog capacity.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 64
	}
	return &Bus{messages: make(chan mediaframework.Message, capacity)}
}

func (b *Bus) Post(msg mediaframework.Message) {
	select {
	case b.messages <- msg:
	default:
		// Backlog full: drop the oldest to make room rather than block the
		// posting thread, matching the framework's own non-blocking bus.
		select {
		case <-b.messages:
		default:
		}
		b.messages <- msg
	}
}

func (b *Bus) Pop(ctx context.Context) (mediaframework.Message, bool) {
	select {
	case msg := <-b.messages:
		return msg, true
	case <-ctx.Done():
		return mediaframework.Message{}, false
	}
}

var _ mediaframework.Bus = (*Bus)(nil)
