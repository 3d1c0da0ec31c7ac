// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package player

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/rialto/internal/callback"
	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/mediaframework/simulated"
	"github.com/rapidaai/rialto/internal/model"
	"github.com/rapidaai/rialto/internal/platform"
)

func playingPlayer(t *testing.T, sink *callback.RecordingSink, mutate func(*Deps)) *GenericPlayer {
	t.Helper()
	p := newTestPlayer(t, sink, mutate)
	require.NoError(t, p.Play())
	assert.Eventually(t, func() bool {
		return p.Context().State() == model.PlaybackStatePlaying
	}, waitFor, tick)
	return p
}

// TestRateWithAmlHalaSink covers the amlhalasink branch: exactly one
// SEGMENT event carrying the rate, sent to the audio sink pad.
func TestRateWithAmlHalaSink(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := playingPlayer(t, sink, nil)

	p.ElementAdded(simulated.NewElement("amlhalasink0", "Sink/Audio"))
	drain(t, p)

	var mu sync.Mutex
	var segments []mediaframework.Event
	p.ctx.AudioSinkPad.AddEventListener(func(evt mediaframework.Event) {
		if evt.Type == mediaframework.EventSegment {
			mu.Lock()
			segments = append(segments, evt)
			mu.Unlock()
		}
	})

	require.NoError(t, p.SetPlaybackRate(2.0))
	drain(t, p)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, segments, 1)
	assert.Equal(t, 2.0, segments[0].Rate)
	assert.Equal(t, mediaframework.ClockTimeNone, segments[0].Fields["start"])
	assert.Equal(t, mediaframework.ClockTimeNone, segments[0].Fields["position"])
	assert.Equal(t, 2.0, p.ctx.PlaybackRate)
	assert.Nil(t, p.ctx.PendingPlaybackRate)
}

// TestRateWithInstantRateSeek covers the instant-rate-seek branch: exactly
// one
// seek flagged INSTANT_RATE_CHANGE.
func TestRateWithInstantRateSeek(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := playingPlayer(t, sink, func(d *Deps) {
		d.Capabilities = platform.Capabilities{InstantRateSeek: true}
	})

	require.NoError(t, p.SetPlaybackRate(0.5))
	drain(t, p)

	pipeline := p.ctx.Pipeline.(*simulated.Pipeline)
	seeks := pipeline.Seeks()
	require.Len(t, seeks, 1)
	assert.NotZero(t, seeks[0].Flags&mediaframework.SeekFlagInstantRateChange)
	assert.Equal(t, 0.5, p.ctx.PlaybackRate)
}

// TestRateFallbackCustomEvent covers the fallback branch: exactly one
// downstream-OOB event named custom-instant-rate-change.
func TestRateFallbackCustomEvent(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := playingPlayer(t, sink, nil)

	require.NoError(t, p.SetPlaybackRate(1.5))
	drain(t, p)

	pipeline := p.ctx.Pipeline.(*simulated.Pipeline)
	var custom []mediaframework.Event
	for _, evt := range pipeline.SentEvents() {
		if evt.Type == mediaframework.EventCustomDownstreamOOB {
			custom = append(custom, evt)
		}
	}
	require.Len(t, custom, 1)
	assert.Equal(t, "custom-instant-rate-change", custom[0].Name)
	assert.Equal(t, 1.5, custom[0].Rate)
}

func TestRateBeforePlayingIsParked(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := newTestPlayer(t, sink, nil)

	require.NoError(t, p.SetPlaybackRate(2.0))
	drain(t, p)

	assert.Equal(t, 1.0, p.ctx.PlaybackRate)
	require.NotNil(t, p.ctx.PendingPlaybackRate)
	assert.Equal(t, 2.0, *p.ctx.PendingPlaybackRate)

	// The parked rate applies once PLAYING is reached.
	require.NoError(t, p.Play())
	assert.Eventually(t, func() bool {
		done := make(chan bool, 1)
		if !p.worker.Ping(func() { done <- p.ctx.PlaybackRate == 2.0 && p.ctx.PendingPlaybackRate == nil }) {
			return false
		}
		return <-done
	}, waitFor, tick)
}

func TestRateNoopWhenUnchanged(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := playingPlayer(t, sink, nil)

	require.NoError(t, p.SetPlaybackRate(1.0))
	drain(t, p)

	pipeline := p.ctx.Pipeline.(*simulated.Pipeline)
	assert.Empty(t, pipeline.SentEvents())
	assert.Empty(t, pipeline.Seeks())
}
