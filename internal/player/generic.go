// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package player

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rapidaai/rialto/internal/bus"
	"github.com/rapidaai/rialto/internal/callback"
	capsbuilder "github.com/rapidaai/rialto/internal/caps"
	"github.com/rapidaai/rialto/internal/decryption"
	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/mediaframework/simulated"
	"github.com/rapidaai/rialto/internal/metrics"
	"github.com/rapidaai/rialto/internal/model"
	"github.com/rapidaai/rialto/internal/platform"
	"github.com/rapidaai/rialto/internal/profiler"
	"github.com/rapidaai/rialto/internal/protection"
	"github.com/rapidaai/rialto/internal/shm"
	"github.com/rapidaai/rialto/internal/source"
	"github.com/rapidaai/rialto/internal/task"
	"github.com/rapidaai/rialto/internal/timer"
	"github.com/rapidaai/rialto/pkg/commons"
)

// ErrInvalidState is the misuse reply for an operation valid only in a
// specific state: the call fails and nothing changes.
var ErrInvalidState = errors.New("player: operation not valid in current state")

// ErrUnknownSource is the misuse-category error for an RPC referencing an
// unknown sourceId.
var ErrUnknownSource = errors.New("player: unknown source")

// Config is the subset of internal/config.Config the Generic Player reads:
// demand thresholds, resend delays and the watchdog cadence.
type Config struct {
	NeedDataResendDefault    time.Duration
	NeedDataResendLowLatency time.Duration
	PositionReportInterval   time.Duration
	FramesBelowPlaying       int
	FramesPlaying            int
}

// DefaultConfig mirrors internal/config's viper defaults, for callers (and
// tests) that don't load a full Config.
func DefaultConfig() Config {
	return Config{
		NeedDataResendDefault:    100 * time.Millisecond,
		NeedDataResendLowLatency: 5 * time.Millisecond,
		PositionReportInterval:   250 * time.Millisecond,
		FramesBelowPlaying:       3,
		FramesPlaying:            24,
	}
}

// Deps bundles the Generic Player's external collaborators so construction
// doesn't take a dozen positional parameters.
type Deps struct {
	Logger     commons.Logger
	Sink       callback.Sink
	ShmRegion  shm.Region
	Decryption decryption.Service
	Protection *protection.Adapter

	AudioCodecSwitch  platform.AudioCodecSwitch
	AudioGapProcessor platform.AudioGapProcessor
	Capabilities      platform.Capabilities
	OpusHelper        capsbuilder.OpusHeaderToCaps

	Metrics  *metrics.Counters
	Profiler *profiler.Profiler
	Config   Config
}

func (d *Deps) setDefaults() {
	if d.Logger == nil {
		d.Logger = commons.NewNoopLogger()
	}
	if d.Sink == nil {
		d.Sink = callback.NoopSink{}
	}
	if d.ShmRegion == nil {
		d.ShmRegion = shm.NewInMemoryRegion()
	}
	if d.Decryption == nil {
		d.Decryption = decryption.NewPassthroughService()
	}
	if d.Protection == nil {
		d.Protection = protection.NewAdapter()
	}
	if d.AudioCodecSwitch == nil {
		d.AudioCodecSwitch = &platform.NoopAudioCodecSwitch{}
	}
	if d.AudioGapProcessor == nil {
		d.AudioGapProcessor = &platform.NoopAudioGapProcessor{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Config == (Config{}) {
		d.Config = DefaultConfig()
	}
}

// GenericPlayer is the Generic Player: the playbin-style,
// rialto-source-backed pipeline plus every task the Task Factory produces
// to mutate it. One GenericPlayer owns one Context and one task.Worker.
type GenericPlayer struct {
	deps   Deps
	ctx    *Context
	worker *task.Worker

	dispatcher *bus.Dispatcher
	resend     *timer.ResendTimers
	watchdog   *timer.Watchdog
	requests   *activeRequests
	profiler   *profiler.Profiler
}

// NewGenericPlayer constructs and starts a Generic Player for sessionID.
// The pipeline, worker goroutine and bus dispatcher goroutine are all
// running when this returns; Load/AttachSource/etc. still only take effect
// once their task executes.
func NewGenericPlayer(sessionID string, reqs model.VideoRequirements, deps Deps) *GenericPlayer {
	deps.setDefaults()

	pipeline := simulated.NewPipeline(sessionID)
	ctx := NewContext(sessionID, pipeline, reqs)
	w := task.NewWorker(sessionID, deps.Logger, 256)
	w.Start()

	p := &GenericPlayer{
		deps:     deps,
		ctx:      ctx,
		worker:   w,
		resend:   timer.New(),
		requests: newActiveRequests(),
		profiler: deps.Profiler,
	}
	if p.profiler == nil {
		p.profiler = profiler.Disabled()
	}
	p.dispatcher = bus.NewDispatcher(pipeline.Bus(), w, p.handleBusMessage, deps.Logger)
	p.dispatcher.Start()
	p.watchdog = timer.NewWatchdog(deps.Config.PositionReportInterval, p.onWatchdogTick)
	p.watchdog.Start()
	return p
}

// SessionID returns the owning session's id.
func (p *GenericPlayer) SessionID() string { return p.ctx.SessionID }

// Context exposes the underlying PlayerContext, for tests and for admin's
// read-only snapshot.
func (p *GenericPlayer) Context() *Context { return p.ctx }

func sourceID(t model.MediaSourceType) string { return strings.ToLower(t.String()) }

// --- Load / AttachSource / AllSourcesAttached ---

// Load prepares the session for the given media type/mime/url.
// The rialto source container is created here, before any AttachSource.
func (p *GenericPlayer) Load(mimeType, url string) error {
	if p.ctx.State() != model.PlaybackStateIdle {
		return ErrInvalidState
	}
	p.worker.Enqueue(task.New("Load", func() {
		orchestrator := source.NewOrchestrator("rialtosrc_"+p.ctx.SessionID, func() mediaframework.State {
			cur, _ := p.ctx.Pipeline.GetState()
			return cur
		})
		if err := orchestrator.SetURI("rialto://" + url); err != nil {
			p.fail(fmt.Errorf("load: %w", err))
			return
		}
		if err := p.ctx.Pipeline.AddElement(orchestrator.Bin()); err != nil {
			p.fail(fmt.Errorf("load: %w", err))
			return
		}
		p.ctx.Source = orchestrator
	}))
	return nil
}

// AttachSource attaches a media source
// descriptor. It may occur only while PAUSED-or-below.
func (p *GenericPlayer) AttachSource(src model.MediaSource, switchSource bool) error {
	if state := p.ctx.State(); state == model.PlaybackStatePlaying {
		return ErrInvalidState
	}
	p.worker.Enqueue(task.New("AttachSource:"+sourceID(src.Type), func() {
		p.doAttachSource(src, switchSource)
	}))
	return nil
}

func (p *GenericPlayer) doAttachSource(src model.MediaSource, switchSource bool) {
	newCaps := capsbuilder.Build(src, p.deps.OpusHelper)
	existing, hasExisting := p.ctx.StreamInfo[src.Type]

	if hasExisting {
		if switchSource && src.Type == model.MediaSourceTypeAudio {
			p.switchAudioSource(src, newCaps)
			return
		}
		if !existing.AttachedCaps.Equal(newCaps) {
			if src.Type == model.MediaSourceTypeAudio {
				// Reattach-with-unequal-caps is the legacy switch path
				// (reattach after RemoveSource).
				p.switchAudioSource(src, newCaps)
				return
			}
			existing.AttachedCaps = newCaps
			existing.AppSrc.SetCaps(newCaps)
		}
		return
	}

	if p.ctx.Source == nil {
		p.fail(errors.New("attach source: Load was never called"))
		return
	}

	attached, err := p.ctx.Source.AttachSource(src.Type, newCaps, src.HasDrm)
	if err != nil {
		p.fail(fmt.Errorf("attach source: %w", err))
		return
	}
	attached.AppSrc.SetNeedDataCallback(func(length uint) { p.onNeedData(src.Type) })
	if p.ctx.Primed() {
		attached.AppSrc.SetReady(true)
	}
	p.profiler.Observe(attached.AppSrc)

	p.ctx.StreamInfo[src.Type] = &StreamInfo{
		AppSrc:       attached.AppSrc,
		AppSrcPad:    attached.AppSrcPad,
		GhostPad:     attached.GhostPad,
		HasDrm:       src.HasDrm,
		AttachedCaps: newCaps,
	}

	if src.Type == model.MediaSourceTypeAudio {
		p.ctx.LastAudioSampleTimestamps = p.queryPosition()
	}
}

// AllSourcesAttached marks the rialto source pad-complete and moves the
// graph toward PAUSED via READY. The READY settle is what the client
// observes as IDLE; the PAUSED settle is a pre-roll marker swallowed by the
// bus handler until the pre-roll fill completes.
func (p *GenericPlayer) AllSourcesAttached() error {
	p.worker.Enqueue(task.New("AllSourcesAttached", func() {
		if p.ctx.Source == nil {
			p.fail(errors.New("all sources attached: Load was never called"))
			return
		}
		p.ctx.Source.MarkPadComplete()
		if _, err := p.ctx.Pipeline.SetState(mediaframework.StateReady); err != nil {
			p.fail(fmt.Errorf("all sources attached: %w", err))
			return
		}
		if _, err := p.ctx.Pipeline.SetState(mediaframework.StatePaused); err != nil {
			p.fail(fmt.Errorf("all sources attached: %w", err))
		}
	}))
	return nil
}

// RemoveSource tears down a previously attached source.
func (p *GenericPlayer) RemoveSource(t model.MediaSourceType) error {
	p.worker.Enqueue(task.New("RemoveSource:"+sourceID(t), func() {
		delete(p.ctx.StreamInfo, t)
		p.resend.Cancel(t)
		if p.ctx.Source != nil {
			p.ctx.Source.RemoveSource(t)
		}
	}))
	return nil
}

// --- Play / Pause / Stop ---

// Play asks the graph to transition to PLAYING.
func (p *GenericPlayer) Play() error {
	p.worker.Enqueue(task.New("Play", func() {
		if _, err := p.ctx.Pipeline.SetState(mediaframework.StatePlaying); err != nil {
			p.fail(fmt.Errorf("play: %w", err))
			return
		}
		p.applyPendingPlaybackRate()
	}))
	return nil
}

// Pause asks the graph to transition to PAUSED and, the first time it
// settles, primes every attached appsrc with an initial demand.
func (p *GenericPlayer) Pause() error {
	p.worker.Enqueue(task.New("Pause", func() {
		if _, err := p.ctx.Pipeline.SetState(mediaframework.StatePaused); err != nil {
			p.fail(fmt.Errorf("pause: %w", err))
			return
		}
		if !p.ctx.Primed() {
			p.ctx.MarkPrimed()
			p.deps.Sink.NetworkStateChange(p.ctx.SessionID, model.NetworkStateBuffering)
			for t, info := range p.ctx.StreamInfo {
				if as, ok := info.AppSrc.(*simulated.AppSrc); ok {
					as.SetReady(true)
				}
				p.requestNeedData(t)
			}
		}
	}))
	return nil
}

// Stop sets the graph to NULL, tears down timers, and marks the session
// terminal.
func (p *GenericPlayer) Stop() error {
	p.worker.Enqueue(task.New("Stop", func() {
		p.resend.CancelAll()
		if _, err := p.ctx.Pipeline.SetState(mediaframework.StateNull); err != nil {
			p.deps.Logger.Warnw("stop: state change error", "session", p.ctx.SessionID, "err", err)
		}
		p.ctx.MarkTerminal()
		p.ctx.SetState(model.PlaybackStateStopped)
		p.deps.Sink.PlaybackStateChange(p.ctx.SessionID, model.PlaybackStateStopped)
	}))
	return nil
}

// Destroy stops the watchdog, bus dispatcher and worker goroutines. Call
// after Stop() has drained (e.g. via Join).
func (p *GenericPlayer) Destroy() {
	p.watchdog.Stop()
	p.dispatcher.Stop()
	p.worker.Stop()
}

// Join blocks until the worker has drained every task enqueued before
// Destroy/Stop.
func (p *GenericPlayer) Join() { p.worker.Join() }

// --- SetPosition / Flush / SetSourcePosition / ProcessAudioGap ---

// SetPosition records a start position before the first PAUSED, or issues
// a seek thereafter.
func (p *GenericPlayer) SetPosition(pos time.Duration) error {
	p.worker.Enqueue(task.New("SetPosition", func() {
		if !p.ctx.EverPaused() {
			p.ctx.StartPosition = pos
			return
		}
		if err := p.ctx.Pipeline.Seek(pos, mediaframework.SeekFlagFlush|mediaframework.SeekFlagKeyUnit); err != nil {
			p.fail(fmt.Errorf("set position: %w", err))
			return
		}
		for t := range p.ctx.StreamInfo {
			p.requestNeedData(t)
		}
	}))
	return nil
}

// Flush sends FlushStart then FlushStop(resetTime) to t's appsrc and
// emits SourceFlushed on completion.
func (p *GenericPlayer) Flush(t model.MediaSourceType, resetTime bool) error {
	if _, ok := p.ctx.StreamInfo[t]; !ok {
		return ErrUnknownSource
	}
	p.worker.Enqueue(task.New("Flush:"+sourceID(t), func() {
		info, ok := p.ctx.StreamInfo[t]
		if !ok {
			return
		}
		info.AppSrcPad.SendEvent(mediaframework.Event{Type: mediaframework.EventFlushStart})
		info.AppSrcPad.SendEvent(mediaframework.Event{Type: mediaframework.EventFlushStop, ResetTime: resetTime})
		if as, isSim := info.AppSrc.(*simulated.AppSrc); isSim {
			as.Flush()
		}
		switch t {
		case model.MediaSourceTypeAudio:
			p.ctx.ClearAudioUnderflow()
		case model.MediaSourceTypeVideo:
			p.ctx.ClearVideoUnderflow()
		}
		p.deps.Sink.SourceFlushed(p.ctx.SessionID, sourceID(t))
	}))
	return nil
}

// SetSourcePosition reconfigures t's segment on its appsrc and re-arms
// demand.
func (p *GenericPlayer) SetSourcePosition(t model.MediaSourceType, pos time.Duration, resetTime bool, appliedRate float64, stopPosition time.Duration) error {
	if _, ok := p.ctx.StreamInfo[t]; !ok {
		return ErrUnknownSource
	}
	p.worker.Enqueue(task.New("SetSourcePosition:"+sourceID(t), func() {
		info, ok := p.ctx.StreamInfo[t]
		if !ok {
			return
		}
		info.AppSrcPad.SendEvent(mediaframework.Event{
			Type:      mediaframework.EventSegment,
			ResetTime: resetTime,
			Rate:      appliedRate,
			Fields: map[string]interface{}{
				"start": pos,
				"stop":  stopPosition,
			},
		})
		p.requestNeedData(t)
	}))
	return nil
}

// ProcessAudioGap delegates to the platform helper with the pipeline
// handle.
func (p *GenericPlayer) ProcessAudioGap(position, duration time.Duration, discontinuity, isAudioAac bool) error {
	p.worker.Enqueue(task.New("ProcessAudioGap", func() {
		if err := p.deps.AudioGapProcessor.ProcessAudioGap(p.ctx.Pipeline, position, duration, discontinuity, isAudioAac); err != nil {
			p.deps.Logger.Warnw("process audio gap failed", "session", p.ctx.SessionID, "err", err)
		}
	}))
	return nil
}

// --- internal helpers ---

func (p *GenericPlayer) requestNeedData(t model.MediaSourceType) {
	info, ok := p.ctx.StreamInfo[t]
	if !ok {
		return
	}
	if as, ok := info.AppSrc.(*simulated.AppSrc); ok {
		as.RequestData(uint(p.frameThreshold()))
	} else {
		p.onNeedData(t)
	}
}

func (p *GenericPlayer) frameThreshold() int {
	if p.ctx.State() == model.PlaybackStatePlaying {
		return p.deps.Config.FramesPlaying
	}
	return p.deps.Config.FramesBelowPlaying
}

func (p *GenericPlayer) queryPosition() time.Duration {
	pos, _ := p.ctx.Pipeline.QueryPosition()
	return pos
}

// fail emits a FAILURE event and terminates the session.
func (p *GenericPlayer) fail(err error) {
	p.deps.Logger.Errorw("player failure", "session", p.ctx.SessionID, "err", err)
	p.ctx.MarkTerminal()
	p.ctx.SetState(model.PlaybackStateFailure)
	p.deps.Sink.PlaybackError(p.ctx.SessionID, err)
	p.deps.Sink.PlaybackStateChange(p.ctx.SessionID, model.PlaybackStateFailure)
}
