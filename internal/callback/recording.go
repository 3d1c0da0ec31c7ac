// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package callback

import (
	"sync"
	"time"

	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/model"
	"github.com/rapidaai/rialto/internal/shm"
)

// NeedMediaDataEvent captures one NeedMediaData notification.
type NeedMediaDataEvent struct {
	SessionID  string
	SourceID   string
	FrameCount int
	RequestID  string
	Info       shm.PartitionInfo
	At         time.Time
}

// RecordingSink records every event for assertions. It implements both
// Sink and WebAudioSink and is safe for concurrent use.
type RecordingSink struct {
	mu sync.Mutex

	NetworkStates  []model.NetworkState
	PlaybackStates []model.PlaybackState
	Positions      []time.Duration
	NeedData       []NeedMediaDataEvent
	QosEvents      []string
	Underflows     []string
	Flushed        []string
	Errors         []error
	WebAudioStates []model.PlaybackState
}

// NewRecordingSink constructs an empty RecordingSink.
func NewRecordingSink() *RecordingSink {
	return &RecordingSink{}
}

func (r *RecordingSink) NetworkStateChange(_ string, state model.NetworkState) {
	r.mu.Lock()
	r.NetworkStates = append(r.NetworkStates, state)
	r.mu.Unlock()
}

func (r *RecordingSink) PlaybackStateChange(_ string, state model.PlaybackState) {
	r.mu.Lock()
	r.PlaybackStates = append(r.PlaybackStates, state)
	r.mu.Unlock()
}

func (r *RecordingSink) PositionChange(_ string, position time.Duration) {
	r.mu.Lock()
	r.Positions = append(r.Positions, position)
	r.mu.Unlock()
}

func (r *RecordingSink) NeedMediaData(sessionID, sourceID string, frameCount int, requestID string, info shm.PartitionInfo) {
	r.mu.Lock()
	r.NeedData = append(r.NeedData, NeedMediaDataEvent{
		SessionID:  sessionID,
		SourceID:   sourceID,
		FrameCount: frameCount,
		RequestID:  requestID,
		Info:       info,
		At:         time.Now(),
	})
	r.mu.Unlock()
}

func (r *RecordingSink) Qos(_, sourceID string, _ mediaframework.QosStats) {
	r.mu.Lock()
	r.QosEvents = append(r.QosEvents, sourceID)
	r.mu.Unlock()
}

func (r *RecordingSink) BufferUnderflow(_, sourceID string) {
	r.mu.Lock()
	r.Underflows = append(r.Underflows, sourceID)
	r.mu.Unlock()
}

func (r *RecordingSink) SourceFlushed(_, sourceID string) {
	r.mu.Lock()
	r.Flushed = append(r.Flushed, sourceID)
	r.mu.Unlock()
}

func (r *RecordingSink) PlaybackError(_ string, err error) {
	r.mu.Lock()
	r.Errors = append(r.Errors, err)
	r.mu.Unlock()
}

func (r *RecordingSink) WebAudioPlayerStateEvent(_ string, state model.PlaybackState) {
	r.mu.Lock()
	r.WebAudioStates = append(r.WebAudioStates, state)
	r.mu.Unlock()
}

// States returns a copy of the recorded playback states.
func (r *RecordingSink) States() []model.PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.PlaybackState{}, r.PlaybackStates...)
}

// LastState returns the most recent playback state, or false if none.
func (r *RecordingSink) LastState() (model.PlaybackState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.PlaybackStates) == 0 {
		return 0, false
	}
	return r.PlaybackStates[len(r.PlaybackStates)-1], true
}

// NeedDataEvents returns a copy of the recorded NeedMediaData events.
func (r *RecordingSink) NeedDataEvents() []NeedMediaDataEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]NeedMediaDataEvent{}, r.NeedData...)
}

// NetworkEvents returns a copy of the recorded network states.
func (r *RecordingSink) NetworkEvents() []model.NetworkState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.NetworkState{}, r.NetworkStates...)
}

// WebAudioEvents returns a copy of the recorded web-audio states.
func (r *RecordingSink) WebAudioEvents() []model.PlaybackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.PlaybackState{}, r.WebAudioStates...)
}

// PositionEvents returns a copy of the recorded position reports.
func (r *RecordingSink) PositionEvents() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration{}, r.Positions...)
}

// QosSources returns a copy of the source ids Qos events arrived for.
func (r *RecordingSink) QosSources() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.QosEvents...)
}

// FlushedEvents returns a copy of the recorded SourceFlushed source ids.
func (r *RecordingSink) FlushedEvents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.Flushed...)
}

// UnderflowEvents returns a copy of the recorded underflow source ids.
func (r *RecordingSink) UnderflowEvents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.Underflows...)
}

// ErrorCount reports how many PlaybackError events arrived.
func (r *RecordingSink) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Errors)
}

// CountState reports how many times state was reported.
func (r *RecordingSink) CountState(state model.PlaybackState) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.PlaybackStates {
		if s == state {
			n++
		}
	}
	return n
}

var (
	_ Sink         = (*RecordingSink)(nil)
	_ WebAudioSink = (*RecordingSink)(nil)
)
