// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package callback defines the client-visible event surface: asynchronous
// completion of every RPC command is signaled back through this interface
// rather than a return value. The transport-backed implementation is
// internal/rpc's Broker, which fans each event out as a protobuf Struct
// envelope over the gRPC Events server-stream.
package callback

import (
	"time"

	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/model"
	"github.com/rapidaai/rialto/internal/shm"
)

// Sink is the generic-player event surface.
type Sink interface {
	NetworkStateChange(sessionID string, state model.NetworkState)
	PlaybackStateChange(sessionID string, state model.PlaybackState)
	PositionChange(sessionID string, position time.Duration)
	NeedMediaData(sessionID, sourceID string, frameCount int, requestID string, info shm.PartitionInfo)
	Qos(sessionID, sourceID string, stats mediaframework.QosStats)
	BufferUnderflow(sessionID, sourceID string)
	SourceFlushed(sessionID, sourceID string)
	PlaybackError(sessionID string, err error)
}

// WebAudioSink is the web-audio player's event surface.
type WebAudioSink interface {
	WebAudioPlayerStateEvent(sessionID string, state model.PlaybackState)
}

// NoopSink discards every event. Useful as a default before a real
// transport-backed Sink is wired in, and in tests that only care about a
// subset of events and record them via an embedding RecordingSink instead.
type NoopSink struct{}

func (NoopSink) NetworkStateChange(string, model.NetworkState)                           {}
func (NoopSink) PlaybackStateChange(string, model.PlaybackState)                         {}
func (NoopSink) PositionChange(string, time.Duration)                                    {}
func (NoopSink) NeedMediaData(string, string, int, string, shm.PartitionInfo)             {}
func (NoopSink) Qos(string, string, mediaframework.QosStats)                             {}
func (NoopSink) BufferUnderflow(string, string)                                          {}
func (NoopSink) SourceFlushed(string, string)                                             {}
func (NoopSink) PlaybackError(string, error)                                             {}
func (NoopSink) WebAudioPlayerStateEvent(string, model.PlaybackState)                     {}

var (
	_ Sink         = NoopSink{}
	_ WebAudioSink = NoopSink{}
)
