// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package player

import (
	"errors"
	"time"

	"github.com/rapidaai/rialto/internal/metrics"
	"github.com/rapidaai/rialto/internal/model"
	"github.com/rapidaai/rialto/internal/shm"
	"github.com/rapidaai/rialto/internal/task"
)

// ErrNoVideoSink is returned by the synchronous video-sink reads and by
// RenderFrame before a video sink has appeared in the graph.
var ErrNoVideoSink = errors.New("player: no video sink present")

// ErrNoAudioSink is the audio-side equivalent for SetLowLatency.
var ErrNoAudioSink = errors.New("player: no audio sink present")

// GetPosition queries the pipeline position on the caller's thread.
func (p *GenericPlayer) GetPosition() (time.Duration, bool) {
	if p.ctx.Terminal() {
		return 0, false
	}
	return p.ctx.Pipeline.QueryPosition()
}

// SetVideoWindow records the video rectangle; it is applied directly when a
// video sink is already present, otherwise parked as pendingGeometry and
// consumed when the sink first appears.
func (p *GenericPlayer) SetVideoWindow(x, y, w, h int) error {
	g := model.VideoGeometry{X: x, Y: y, W: w, H: h}
	p.worker.Enqueue(task.New("SetVideoWindow", func() {
		if p.ctx.VideoSink != nil {
			if err := p.ctx.VideoSink.SetProperty("rectangle", geometryString(g)); err != nil {
				p.deps.Logger.Warnw("geometry not applied", "session", p.ctx.SessionID, "err", err)
			}
			return
		}
		p.ctx.PendingGeometry = &g
	}))
	return nil
}

// SetVolume sets the pipeline's linear volume.
func (p *GenericPlayer) SetVolume(volume float64) error {
	p.worker.Enqueue(task.New("SetVolume", func() {
		if err := p.ctx.Pipeline.SetProperty("volume", volume); err != nil {
			p.deps.Logger.Warnw("set volume failed", "session", p.ctx.SessionID, "err", err)
		}
	}))
	return nil
}

// GetVolume reads the pipeline's linear volume on the caller's thread.
func (p *GenericPlayer) GetVolume() (float64, bool) {
	v, ok := p.ctx.Pipeline.GetProperty("volume")
	if !ok {
		// Nothing ever set: the graph default.
		return 1.0, true
	}
	vol, isFloat := v.(float64)
	return vol, isFloat
}

// SetMute sets the pipeline mute flag.
func (p *GenericPlayer) SetMute(mute bool) error {
	p.worker.Enqueue(task.New("SetMute", func() {
		if err := p.ctx.Pipeline.SetProperty("mute", mute); err != nil {
			p.deps.Logger.Warnw("set mute failed", "session", p.ctx.SessionID, "err", err)
		}
	}))
	return nil
}

// GetMute reads the pipeline mute flag on the caller's thread.
func (p *GenericPlayer) GetMute() (bool, bool) {
	v, ok := p.ctx.Pipeline.GetProperty("mute")
	if !ok {
		return false, true
	}
	muted, isBool := v.(bool)
	return muted, isBool
}

// RenderFrame asks the video sink to render the prerolled frame while
// PAUSED. Misuse before a video sink exists replies failure with no state
// change.
func (p *GenericPlayer) RenderFrame() error {
	if p.ctx.VideoSinkRef() == nil {
		return ErrNoVideoSink
	}
	p.worker.Enqueue(task.New("RenderFrame", func() {
		if p.ctx.VideoSink == nil {
			p.deps.Logger.Warnw("render frame with no video sink", "session", p.ctx.SessionID)
			return
		}
		if err := p.ctx.VideoSink.SetProperty("frame-step-on-preroll", true); err != nil {
			p.deps.Logger.Warnw("render frame failed", "session", p.ctx.SessionID, "err", err)
		}
	}))
	return nil
}

// SetImmediateOutput sets the video sink's immediate-output property
// synchronously and shortens the source's NeedData resend cadence. The
// sink property write happens on the caller's thread; the
// low-latency flag flip is routed through the Worker because StreamInfo is
// Worker-owned.
func (p *GenericPlayer) SetImmediateOutput(t model.MediaSourceType, immediate bool) error {
	if t != model.MediaSourceTypeVideo {
		return ErrUnknownSource
	}
	sink := p.ctx.VideoSinkRef()
	if sink == nil {
		return ErrNoVideoSink
	}
	if err := sink.SetProperty("immediate-output", immediate); err != nil {
		return err
	}
	p.worker.Enqueue(task.New("MarkLowLatency:"+sourceID(t), func() {
		if info, ok := p.ctx.StreamInfo[t]; ok {
			info.LowLatency = immediate
		}
	}))
	return nil
}

// GetImmediateOutput reads the video sink's immediate-output property on
// the caller's thread.
func (p *GenericPlayer) GetImmediateOutput() (bool, error) {
	sink := p.ctx.VideoSinkRef()
	if sink == nil {
		return false, ErrNoVideoSink
	}
	v, ok := sink.GetProperty("immediate-output")
	if !ok {
		return false, nil
	}
	immediate, isBool := v.(bool)
	return immediate && isBool, nil
}

// SetLowLatency sets the equivalent audio-sink property and the
// audio source's resend cadence flag.
func (p *GenericPlayer) SetLowLatency(lowLatency bool) error {
	sink := p.ctx.AudioSinkRef()
	if sink == nil {
		return ErrNoAudioSink
	}
	if err := sink.SetProperty("low-latency", lowLatency); err != nil {
		return err
	}
	p.worker.Enqueue(task.New("MarkLowLatency:audio", func() {
		if info, ok := p.ctx.StreamInfo[model.MediaSourceTypeAudio]; ok {
			info.LowLatency = lowLatency
		}
	}))
	return nil
}

// GetStats parses {rendered, dropped} out of the video sink's stats
// structure on the caller's thread.
func (p *GenericPlayer) GetStats() (model.PlaybackStats, error) {
	sink := p.ctx.VideoSinkRef()
	if sink == nil {
		return model.PlaybackStats{}, ErrNoVideoSink
	}
	v, ok := sink.GetProperty("stats")
	if !ok {
		return model.PlaybackStats{}, nil
	}
	raw, isMap := v.(map[string]interface{})
	if !isMap {
		return model.PlaybackStats{}, nil
	}
	var stats model.PlaybackStats
	if rendered, has := raw["rendered"].(uint64); has {
		stats.Rendered = rendered
	}
	if dropped, has := raw["dropped"].(uint64); has {
		stats.Dropped = dropped
	}
	return stats, nil
}

// SharedMemory exposes the session's shm region for GetSharedMemory.
func (p *GenericPlayer) SharedMemory() shm.Region { return p.deps.ShmRegion }

// Metrics exposes the session's playback counters for the admin surface.
func (p *GenericPlayer) Metrics() *metrics.Counters { return p.deps.Metrics }
