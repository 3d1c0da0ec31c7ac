// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package player

import (
	"fmt"
	"strings"

	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/mediaframework/simulated"
	"github.com/rapidaai/rialto/internal/model"
	"github.com/rapidaai/rialto/internal/platform"
	"github.com/rapidaai/rialto/internal/task"
)

// handleBusMessage processes one bus message. It always runs as a
// HandleBusMessage task on the Worker, so it may mutate Context freely.
func (p *GenericPlayer) handleBusMessage(msg mediaframework.Message) {
	switch msg.Type {
	case mediaframework.MessageStateChanged:
		if msg.Src != mediaframework.Element(p.ctx.Pipeline) {
			return
		}
		p.handleStateChanged(msg)
	case mediaframework.MessageEOS:
		if p.ctx.EOSSentToClient() {
			p.deps.Metrics.EndOfStream()
			p.ctx.SetState(model.PlaybackStateEndOfStream)
			p.deps.Sink.PlaybackStateChange(p.ctx.SessionID, model.PlaybackStateEndOfStream)
		}
	case mediaframework.MessageQOS:
		p.handleQos(msg)
	case mediaframework.MessageError:
		p.fail(msg.Err)
	case mediaframework.MessageWarning:
		p.deps.Logger.Warnw("pipeline warning", "session", p.ctx.SessionID, "err", msg.Err)
	case mediaframework.MessageAsyncStart, mediaframework.MessageAsyncDone:
		p.deps.Logger.Debugw("async transition", "session", p.ctx.SessionID, "type", msg.Type)
	}
}

func (p *GenericPlayer) handleStateChanged(msg mediaframework.Message) {
	if p.ctx.Terminal() {
		return
	}
	switch msg.NewState {
	case mediaframework.StateReady:
		p.ctx.SetState(model.PlaybackStateIdle)
		p.deps.Sink.PlaybackStateChange(p.ctx.SessionID, model.PlaybackStateIdle)
	case mediaframework.StatePaused:
		p.ctx.MarkEverPaused()
		p.ctx.SetState(model.PlaybackStatePaused)
		if !p.ctx.Buffered() {
			// Pre-roll marker: the PAUSED settle is held back until every
			// attached source has delivered data, then reported after
			// BUFFERED.
			p.ctx.HoldPausedReport()
			return
		}
		p.deps.Sink.PlaybackStateChange(p.ctx.SessionID, model.PlaybackStatePaused)
	case mediaframework.StatePlaying:
		p.ctx.SetState(model.PlaybackStatePlaying)
		p.deps.Sink.PlaybackStateChange(p.ctx.SessionID, model.PlaybackStatePlaying)
		p.applyPendingPlaybackRate()
	case mediaframework.StateNull:
		p.ctx.SetState(model.PlaybackStateStopped)
		p.deps.Sink.PlaybackStateChange(p.ctx.SessionID, model.PlaybackStateStopped)
	}
}

// handleQos emits a Qos event keyed by the sourceId inferred from the
// posting element's class metadata.
func (p *GenericPlayer) handleQos(msg mediaframework.Message) {
	if msg.Src == nil {
		return
	}
	cls := msg.Src.FactoryClassName()
	var id string
	switch {
	case strings.Contains(cls, "Audio"):
		id = sourceID(model.MediaSourceTypeAudio)
	case strings.Contains(cls, "Video"):
		id = sourceID(model.MediaSourceTypeVideo)
	default:
		p.deps.Logger.Debugw("qos from unclassified element", "session", p.ctx.SessionID, "element", msg.Src.Name())
		return
	}
	p.deps.Sink.Qos(p.ctx.SessionID, id, msg.Qos)
}

// onWatchdogTick fires every PositionReportInterval on the watchdog's own
// goroutine; the actual inspection runs as a Worker task.
func (p *GenericPlayer) onWatchdogTick() {
	p.worker.Enqueue(task.New("WatchdogTick", func() {
		if p.ctx.Terminal() || p.ctx.State() != model.PlaybackStatePlaying {
			return
		}
		if pos, ok := p.ctx.Pipeline.QueryPosition(); ok {
			p.deps.Sink.PositionChange(p.ctx.SessionID, pos)
		}
		p.checkAudioUnderflow()
	}))
}

func (p *GenericPlayer) checkAudioUnderflow() {
	info, ok := p.ctx.StreamInfo[model.MediaSourceTypeAudio]
	if !ok {
		return
	}
	eos := false
	if as, isSim := info.AppSrc.(interface{ IsEOS() bool }); isSim {
		eos = as.IsEOS()
	}
	empty := info.AppSrc.CurrentLevelBytes() == 0 && !eos
	if p.ctx.NoteAudioUnderflowTick(empty) {
		p.deps.Sink.BufferUnderflow(p.ctx.SessionID, sourceID(model.MediaSourceTypeAudio))
	}
}

// ElementAdded is invoked when the media framework announces a new element
// deep in the graph. Like every framework callback it only enqueues; the
// latch-and-configure work runs on the Worker.
func (p *GenericPlayer) ElementAdded(e mediaframework.Element) {
	p.worker.Enqueue(task.New("SetupElement:"+e.Name(), func() {
		p.setupElement(e)
	}))
}

// signalConnector is the slice of the element surface setupElement needs
// to hook decoder signals; the simulated element satisfies it the way a
// real element satisfies g_signal_connect.
type signalConnector interface {
	Connect(signal string, fn func())
}

func (p *GenericPlayer) setupElement(e mediaframework.Element) {
	p.profiler.Observe(e)

	if strings.Contains(e.FactoryClassName(), "Decoder/Video") {
		if connector, ok := e.(signalConnector); ok {
			// The decoder raises this on its own streaming thread; the
			// handler only enqueues.
			connector.Connect("buffer-underflow-callback", p.onVideoDecoderUnderflow)
		}
		return
	}

	if platform.IsWesterosSink(e) && p.ctx.VideoSink == nil {
		p.ctx.StoreVideoSink(e)
		// Secondary-video is applied before any geometry property.
		if p.ctx.IsSecondaryVideo {
			if err := e.SetProperty("secondary-video", true); err != nil {
				p.deps.Logger.Warnw("secondary-video not applied", "session", p.ctx.SessionID, "err", err)
			}
		}
		if g, ok := p.ctx.ConsumePendingGeometry(); ok {
			if err := e.SetProperty("rectangle", geometryString(g)); err != nil {
				p.deps.Logger.Warnw("geometry not applied", "session", p.ctx.SessionID, "err", err)
			}
		}
		return
	}

	if isAudioSink(e) && p.ctx.AudioSink == nil {
		p.ctx.StoreAudioSink(e, simulated.NewPad(e.Name()+"_sink", e))
		p.applyPendingPlaybackRate()
	}
}

// onVideoDecoderUnderflow handles the video decoder's underflow signal:
// the latch flips once per starvation episode and notifies the client,
// the video-side counterpart of the audio appsrc byte-polling watchdog.
func (p *GenericPlayer) onVideoDecoderUnderflow() {
	p.worker.Enqueue(task.New("VideoUnderflow", func() {
		if p.ctx.Terminal() {
			return
		}
		if p.ctx.NoteVideoUnderflow() {
			p.deps.Sink.BufferUnderflow(p.ctx.SessionID, sourceID(model.MediaSourceTypeVideo))
		}
	}))
}

// isAudioSink matches the audio sink families the rate logic cares about,
// plus any element whose class marks it an audio sink.
func isAudioSink(e mediaframework.Element) bool {
	return platform.IsAmlHalaSink(e) || strings.Contains(e.FactoryClassName(), "Sink/Audio")
}

func geometryString(g model.VideoGeometry) string {
	return fmt.Sprintf("%d,%d,%d,%d", g.X, g.Y, g.W, g.H)
}
