// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package rpc

import (
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rapidaai/rialto/internal/callback"
	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/model"
	"github.com/rapidaai/rialto/internal/shm"
	"github.com/rapidaai/rialto/pkg/commons"
)

// subscriberBuffer bounds each event stream's backlog; a subscriber that
// stops reading loses events rather than blocking the Worker.
const subscriberBuffer = 256

// Broker is the transport-backed callback.Sink: player events become
// envelope structs fanned out to every subscribed Events stream. Sink
// methods are called from session Workers and must never block.
type Broker struct {
	logger commons.Logger

	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	sessionID string // empty subscribes to every session
	ch        chan *structpb.Struct
}

// NewBroker constructs an empty Broker.
func NewBroker(logger commons.Logger) *Broker {
	if logger == nil {
		logger = commons.NewNoopLogger()
	}
	return &Broker{logger: logger, subs: make(map[int]*subscriber)}
}

// Subscribe registers an event stream for sessionID ("" = all sessions).
// The returned cancel func must be called when the stream ends.
func (b *Broker) Subscribe(sessionID string) (<-chan *structpb.Struct, func()) {
	sub := &subscriber{sessionID: sessionID, ch: make(chan *structpb.Struct, subscriberBuffer)}
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = sub
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
	return sub.ch, cancel
}

func (b *Broker) publish(sessionID, event string, fields map[string]interface{}) {
	payload := map[string]interface{}{
		fieldEvent:     event,
		fieldSessionID: sessionID,
	}
	for k, v := range fields {
		payload[k] = v
	}
	msg, err := structpb.NewStruct(payload)
	if err != nil {
		b.logger.Warnw("event not encodable", "event", event, "err", err)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.sessionID != "" && sub.sessionID != sessionID {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			b.logger.Warnw("event dropped on slow subscriber", "event", event, "session", sessionID)
		}
	}
}

func (b *Broker) NetworkStateChange(sessionID string, state model.NetworkState) {
	b.publish(sessionID, "networkStateChange", map[string]interface{}{"state": state.String()})
}

func (b *Broker) PlaybackStateChange(sessionID string, state model.PlaybackState) {
	b.publish(sessionID, "playbackStateChange", map[string]interface{}{"state": state.String()})
}

func (b *Broker) PositionChange(sessionID string, position time.Duration) {
	b.publish(sessionID, "positionChange", map[string]interface{}{"position": position.Nanoseconds()})
}

func (b *Broker) NeedMediaData(sessionID, sourceID string, frameCount int, requestID string, info shm.PartitionInfo) {
	b.publish(sessionID, "needMediaData", map[string]interface{}{
		"sourceId":   sourceID,
		"frameCount": frameCount,
		"requestId":  requestID,
		"shmInfo": map[string]interface{}{
			"maxMetadataBytes": info.MaxMetadataBytes,
			"metadataOffset":   info.MetadataOffset,
			"mediaDataOffset":  info.MediaDataOffset,
			"maxMediaBytes":    info.MaxMediaBytes,
		},
	})
}

func (b *Broker) Qos(sessionID, sourceID string, stats mediaframework.QosStats) {
	b.publish(sessionID, "qos", map[string]interface{}{
		"sourceId":  sourceID,
		"processed": stats.Processed,
		"dropped":   stats.Dropped,
	})
}

func (b *Broker) BufferUnderflow(sessionID, sourceID string) {
	b.publish(sessionID, "bufferUnderflow", map[string]interface{}{"sourceId": sourceID})
}

func (b *Broker) SourceFlushed(sessionID, sourceID string) {
	b.publish(sessionID, "sourceFlushed", map[string]interface{}{"sourceId": sourceID})
}

func (b *Broker) PlaybackError(sessionID string, err error) {
	b.publish(sessionID, "playbackError", map[string]interface{}{"message": err.Error()})
}

func (b *Broker) WebAudioPlayerStateEvent(sessionID string, state model.PlaybackState) {
	b.publish(sessionID, "webAudioPlayerState", map[string]interface{}{"state": state.String()})
}

var (
	_ callback.Sink         = (*Broker)(nil)
	_ callback.WebAudioSink = (*Broker)(nil)
)
