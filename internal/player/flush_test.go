// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package player

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/rialto/internal/callback"
	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/model"
)

// TestFlushIdempotence: two consecutive flushes emit one
// SourceFlushed each, and queued bytes return to zero after each.
func TestFlushIdempotence(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := primedPlayer(t, sink, nil)

	events := sink.NeedDataEvents()
	audioReq, ok := needDataBySource(events, "audio")
	require.True(t, ok)
	require.NoError(t, p.HaveData(model.HaveDataStatusOK, 0, audioReq.RequestID, []model.MediaSegment{audioSegment(0)}))
	drain(t, p)

	info := p.ctx.StreamInfo[model.MediaSourceTypeAudio]
	require.NotZero(t, info.AppSrc.CurrentLevelBytes())

	var mu sync.Mutex
	var flushEvents []mediaframework.Event
	info.AppSrcPad.AddEventListener(func(evt mediaframework.Event) {
		mu.Lock()
		flushEvents = append(flushEvents, evt)
		mu.Unlock()
	})

	require.NoError(t, p.Flush(model.MediaSourceTypeAudio, true))
	drain(t, p)
	assert.Zero(t, info.AppSrc.CurrentLevelBytes())

	require.NoError(t, p.Flush(model.MediaSourceTypeAudio, true))
	drain(t, p)
	assert.Zero(t, info.AppSrc.CurrentLevelBytes())

	assert.Equal(t, []string{"audio", "audio"}, sink.FlushedEvents())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, flushEvents, 4)
	assert.Equal(t, mediaframework.EventFlushStart, flushEvents[0].Type)
	assert.Equal(t, mediaframework.EventFlushStop, flushEvents[1].Type)
	assert.True(t, flushEvents[1].ResetTime)
	assert.Equal(t, mediaframework.EventFlushStart, flushEvents[2].Type)
	assert.Equal(t, mediaframework.EventFlushStop, flushEvents[3].Type)
}

func TestFlushUnknownSourceRejected(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := newTestPlayer(t, sink, nil)

	err := p.Flush(model.MediaSourceTypeSubtitle, false)
	assert.ErrorIs(t, err, ErrUnknownSource)
}

// TestSetSourcePosition: the segment reconfiguration
// lands on the appsrc pad and a fresh NeedData follows.
func TestSetSourcePosition(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := primedPlayer(t, sink, nil)
	before := len(sink.NeedDataEvents())

	info := p.ctx.StreamInfo[model.MediaSourceTypeAudio]
	var mu sync.Mutex
	var segments []mediaframework.Event
	info.AppSrcPad.AddEventListener(func(evt mediaframework.Event) {
		if evt.Type == mediaframework.EventSegment {
			mu.Lock()
			segments = append(segments, evt)
			mu.Unlock()
		}
	})

	require.NoError(t, p.SetSourcePosition(model.MediaSourceTypeAudio, time.Second, false, 2.0, 10*time.Second))
	drain(t, p)

	mu.Lock()
	require.Len(t, segments, 1)
	assert.Equal(t, 2.0, segments[0].Rate)
	assert.Equal(t, time.Second, segments[0].Fields["start"])
	assert.Equal(t, 10*time.Second, segments[0].Fields["stop"])
	assert.False(t, segments[0].ResetTime)
	mu.Unlock()

	assert.Eventually(t, func() bool {
		return len(sink.NeedDataEvents()) > before
	}, waitFor, tick)
}

func TestSetSourcePositionUnknownSourceRejected(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := newTestPlayer(t, sink, nil)

	err := p.SetSourcePosition(model.MediaSourceTypeVideo, 0, false, 1.0, 0)
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestProcessAudioGapDelegatesToHelper(t *testing.T) {
	gap := &noopGapRecorder{}
	sink := callback.NewRecordingSink()
	p := newTestPlayer(t, sink, func(d *Deps) { d.AudioGapProcessor = gap })

	require.NoError(t, p.ProcessAudioGap(time.Second, 40*time.Millisecond, true, true))
	drain(t, p)

	assert.Equal(t, 1, gap.calls)
}

type noopGapRecorder struct{ calls int }

func (n *noopGapRecorder) ProcessAudioGap(_ mediaframework.Pipeline, _, _ time.Duration, _, _ bool) error {
	n.calls++
	return nil
}
