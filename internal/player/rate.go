// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package player

import (
	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/model"
	"github.com/rapidaai/rialto/internal/platform"
	"github.com/rapidaai/rialto/internal/task"
)

// customInstantRateChangeEvent is the downstream-OOB event name used on
// platforms with neither an amlhalasink nor instant-rate seek support.
const customInstantRateChangeEvent = "custom-instant-rate-change"

// SetPlaybackRate requests a new playback rate. Rates requested
// before the pipeline is PLAYING are parked in pendingPlaybackRate and
// applied once playback starts.
func (p *GenericPlayer) SetPlaybackRate(rate float64) error {
	p.worker.Enqueue(task.New("SetPlaybackRate", func() {
		p.doSetPlaybackRate(rate)
	}))
	return nil
}

func (p *GenericPlayer) doSetPlaybackRate(rate float64) {
	if p.ctx.PlaybackRate == rate {
		return
	}
	if p.ctx.Pipeline == nil || p.ctx.State() != model.PlaybackStatePlaying {
		r := rate
		p.ctx.PendingPlaybackRate = &r
		return
	}
	if !p.applyRate(rate) {
		return
	}
	p.ctx.PlaybackRate = rate
	p.ctx.PendingPlaybackRate = nil
}

// applyRate performs the platform-dependent rate change and reports whether
// the pipeline accepted it.
func (p *GenericPlayer) applyRate(rate float64) bool {
	if p.ctx.AudioSink != nil && platform.IsAmlHalaSink(p.ctx.AudioSink) {
		// SEGMENT event with start/position = CLOCK_TIME_NONE, sent to the
		// audio sink pad.
		return p.ctx.AudioSinkPad.SendEvent(mediaframework.Event{
			Type: mediaframework.EventSegment,
			Rate: rate,
			Fields: map[string]interface{}{
				"start":    mediaframework.ClockTimeNone,
				"position": mediaframework.ClockTimeNone,
			},
		})
	}
	if p.deps.Capabilities.InstantRateSeek {
		if err := p.ctx.Pipeline.Seek(0, mediaframework.SeekFlagInstantRateChange); err != nil {
			p.deps.Logger.Warnw("instant-rate seek rejected", "session", p.ctx.SessionID, "err", err)
			return false
		}
		return true
	}
	return p.ctx.Pipeline.SendEvent(mediaframework.Event{
		Type: mediaframework.EventCustomDownstreamOOB,
		Name: customInstantRateChangeEvent,
		Rate: rate,
	})
}

// applyPendingPlaybackRate retries a rate parked while the pipeline was not
// yet PLAYING (or the audio sink had not yet appeared).
func (p *GenericPlayer) applyPendingPlaybackRate() {
	if p.ctx.PendingPlaybackRate == nil {
		return
	}
	rate := *p.ctx.PendingPlaybackRate
	if p.ctx.State() != model.PlaybackStatePlaying {
		return
	}
	if p.applyRate(rate) {
		p.ctx.PlaybackRate = rate
		p.ctx.PendingPlaybackRate = nil
	}
}
