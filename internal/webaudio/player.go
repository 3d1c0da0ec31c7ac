// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package webaudio implements the low-latency Web Audio playback pipeline:
// appsrc -> audioconvert -> audioresample -> volume -> sink, with PCM
// caps negotiation, a synchronous bounded WriteBuffer, and bus state
// mapping onto the client-visible WebAudioPlayerState events.
package webaudio

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rapidaai/rialto/internal/bus"
	"github.com/rapidaai/rialto/internal/callback"
	capsbuilder "github.com/rapidaai/rialto/internal/caps"
	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/mediaframework/simulated"
	"github.com/rapidaai/rialto/internal/model"
	"github.com/rapidaai/rialto/internal/task"
	"github.com/rapidaai/rialto/pkg/commons"
)

// maxAppSrcBytes is the web-audio appsrc capacity.
const maxAppSrcBytes = 10 * 1024

// shmPartitionOffset is where the web-audio circular buffer begins inside
// the shared region, above the generic sessions' partitions.
const shmPartitionOffset = 1 << 20

// defaultWriteTimeout bounds the blocking WriteBuffer call.
const defaultWriteTimeout = 2 * time.Second

// ErrPipelineTerminal is returned once the player has failed or been
// destroyed.
var ErrPipelineTerminal = errors.New("webaudio: player is terminal")

// PCMConfig is the CreateWebAudioPlayer PCM descriptor.
type PCMConfig struct {
	Rate        int
	Channels    int
	SampleSize  int
	IsBigEndian bool
	IsSigned    bool
	IsFloat     bool
}

// BytesPerSample is channels × sampleSize/8; every WriteBuffer copy is
// rounded down to a multiple of it.
func (c PCMConfig) BytesPerSample() int {
	bps := c.Channels * c.SampleSize / 8
	if bps <= 0 {
		bps = 1
	}
	return bps
}

// ShmInfo describes the writable circular region of the client's shared
// buffer.
type ShmInfo struct {
	OffsetMain uint32
	LengthMain uint32
	OffsetWrap uint32
	LengthWrap uint32
}

// DeviceInfo is the GetDeviceInfo reply.
type DeviceInfo struct {
	MaximumFrames       uint32
	PreferredFrames     uint32
	SupportDeferredPlay bool
}

// SinkRegistry answers element-factory probes during sink selection. The
// reference registry is a plain name set; a real deployment fronts the
// framework's element registry.
type SinkRegistry interface {
	Lookup(factoryName string) (mediaframework.Element, bool)
}

// StaticRegistry is a SinkRegistry over a fixed set of available factories.
type StaticRegistry struct {
	Available []string
}

// Lookup instantiates factoryName if it is in the available set.
func (r StaticRegistry) Lookup(factoryName string) (mediaframework.Element, bool) {
	for _, name := range r.Available {
		if name == factoryName {
			return simulated.NewElement(name+"0", "Sink/Audio"), true
		}
	}
	return nil, false
}

// Config carries the web-audio player's tunables.
type Config struct {
	WriteTimeout time.Duration
}

// Deps bundles the web-audio player's collaborators.
type Deps struct {
	Logger   commons.Logger
	Sink     callback.WebAudioSink
	Registry SinkRegistry
	Config   Config
}

func (d *Deps) setDefaults() {
	if d.Logger == nil {
		d.Logger = commons.NewNoopLogger()
	}
	if d.Sink == nil {
		d.Sink = callback.NoopSink{}
	}
	if d.Registry == nil {
		d.Registry = StaticRegistry{Available: []string{"autoaudiosink"}}
	}
	if d.Config.WriteTimeout <= 0 {
		d.Config.WriteTimeout = defaultWriteTimeout
	}
}

// Player is the Web Audio player: one PCM pipeline, one Worker, one bus
// dispatcher. It owns the web-audio context: pipeline, appsrc,
// bytes-per-sample, volume element, and the (mutex, condvar,
// lastBytesWritten) rendezvous that makes WriteBuffer synchronous.
type Player struct {
	sessionID string
	deps      Deps
	pcm       PCMConfig
	mime      string
	priority  int

	pipeline   *simulated.Pipeline
	appSrc     *simulated.AppSrc
	appSrcPad  *simulated.Pad
	volume     mediaframework.Element
	sinkName   string
	worker     *task.Worker
	dispatcher *bus.Dispatcher

	// WriteBuffer rendezvous.
	mu               sync.Mutex
	cond             *sync.Cond
	writeGeneration  uint64
	lastBytesWritten int
	writePos         int
	terminal         bool
	state            model.PlaybackState
}

// New constructs and starts a web-audio player for sessionID. The sink is
// selected by probing the registry in order: amlhalasink, rtkaudiosink,
// autoaudiosink.
func New(sessionID string, pcm PCMConfig, mime string, priority int, deps Deps) (*Player, error) {
	deps.setDefaults()
	if pcm.Channels <= 0 || pcm.Rate <= 0 || pcm.SampleSize <= 0 {
		return nil, fmt.Errorf("webaudio: invalid pcm config %+v", pcm)
	}

	p := &Player{
		sessionID: sessionID,
		deps:      deps,
		pcm:       pcm,
		mime:      mime,
		priority:  priority,
		pipeline:  simulated.NewPipeline("webaudio_" + sessionID),
		state:     model.PlaybackStateIdle,
	}
	p.cond = sync.NewCond(&p.mu)

	if err := p.buildPipeline(); err != nil {
		return nil, err
	}

	p.worker = task.NewWorker(sessionID, deps.Logger, 64)
	p.worker.Start()
	p.dispatcher = bus.NewDispatcher(p.pipeline.Bus(), p.worker, p.handleBusMessage, deps.Logger)
	p.dispatcher.Start()

	deps.Sink.WebAudioPlayerStateEvent(sessionID, model.PlaybackStateIdle)
	return p, nil
}

func (p *Player) buildPipeline() error {
	p.appSrc = simulated.NewAppSrc("webaudioappsrc_"+p.sessionID, "Generic/Source")
	p.appSrc.SetProperty("format", "GST_FORMAT_TIME")
	p.appSrc.SetMaxBytes(maxAppSrcBytes)
	p.appSrc.SetCaps(p.buildCaps())
	p.appSrc.SetReady(true)
	p.appSrcPad = simulated.NewPad(p.appSrc.Name()+"_src", p.appSrc)

	convert := simulated.NewElement("audioconvert0", "Filter/Converter/Audio")
	resample := simulated.NewElement("audioresample0", "Filter/Converter/Audio")
	p.volume = simulated.NewElement("volume0", "Filter/Effect/Audio")
	p.volume.SetProperty("volume", 1.0)

	sink, err := p.selectSink()
	if err != nil {
		return err
	}

	for _, e := range []mediaframework.Element{p.appSrc, convert, resample, p.volume, sink} {
		if err := p.pipeline.AddElement(e); err != nil {
			return fmt.Errorf("webaudio: build pipeline: %w", err)
		}
	}
	return nil
}

// selectSink probes the registry in preference order and applies the
// per-sink property set.
func (p *Player) selectSink() (mediaframework.Element, error) {
	if sink, ok := p.deps.Registry.Lookup("amlhalasink"); ok {
		sink.SetProperty("direct-mode", false)
		p.sinkName = "amlhalasink"
		return sink, nil
	}
	if sink, ok := p.deps.Registry.Lookup("rtkaudiosink"); ok {
		sink.SetProperty("media-tunnel", false)
		sink.SetProperty("audio-service", true)
		p.sinkName = "rtkaudiosink"
		return sink, nil
	}
	if sink, ok := p.deps.Registry.Lookup("autoaudiosink"); ok {
		p.sinkName = "autoaudiosink"
		return sink, nil
	}
	return nil, errors.New("webaudio: no audio sink available in registry")
}

// buildCaps derives the audio/x-raw PCM caps from the descriptor.
func (p *Player) buildCaps() *mediaframework.Caps {
	fields := map[string]interface{}{
		"layout":   "interleaved",
		"channels": p.pcm.Channels,
		"rate":     p.pcm.Rate,
		"format":   capsbuilder.RawAudioFormat(p.pcm.SampleSize, p.pcm.IsSigned, p.pcm.IsFloat, p.pcm.IsBigEndian),
	}
	if mask := capsbuilder.ChannelMask(p.pcm.Channels); mask != 0 {
		fields["channel-mask"] = mask
	}
	return mediaframework.NewCaps("audio/x-raw", fields)
}

// SessionID returns the owning session's id.
func (p *Player) SessionID() string { return p.sessionID }

// SinkName reports which sink factory won the registry probe.
func (p *Player) SinkName() string { return p.sinkName }

// State returns the last client-visible state.
func (p *Player) State() model.PlaybackState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) setState(s model.PlaybackState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Play asks the pipeline to transition to PLAYING.
func (p *Player) Play() error {
	p.worker.Enqueue(task.New("WebAudioPlay", func() {
		if _, err := p.pipeline.SetState(mediaframework.StatePlaying); err != nil {
			p.fail(fmt.Errorf("web audio play: %w", err))
		}
	}))
	return nil
}

// Pause asks the pipeline to transition to PAUSED.
func (p *Player) Pause() error {
	p.worker.Enqueue(task.New("WebAudioPause", func() {
		if _, err := p.pipeline.SetState(mediaframework.StatePaused); err != nil {
			p.fail(fmt.Errorf("web audio pause: %w", err))
		}
	}))
	return nil
}

// SetEos signals end of the PCM stream; END_OF_STREAM is reported from the
// bus once the stream drains.
func (p *Player) SetEos() error {
	p.worker.Enqueue(task.New("WebAudioSetEos", func() {
		if ret := p.appSrc.EndOfStream(); ret != mediaframework.FlowOK {
			return
		}
		p.pipeline.PostEOS(p.pipeline)
	}))
	return nil
}

// SetVolume routes through the volume element in linear format.
func (p *Player) SetVolume(volume float64) error {
	p.worker.Enqueue(task.New("WebAudioSetVolume", func() {
		if err := p.volume.SetProperty("volume", volume); err != nil {
			p.deps.Logger.Warnw("web audio set volume failed", "session", p.sessionID, "err", err)
		}
	}))
	return nil
}

// GetVolume reads the volume element's linear value on the caller's thread.
func (p *Player) GetVolume() (float64, bool) {
	v, ok := p.volume.GetProperty("volume")
	if !ok {
		return 1.0, true
	}
	vol, isFloat := v.(float64)
	return vol, isFloat
}

// GetBufferAvailable reports the writable circular region of the shared
// buffer and the available frame count.
func (p *Player) GetBufferAvailable() (ShmInfo, uint32) {
	available := p.availableBytes()
	p.mu.Lock()
	writePos := p.writePos
	p.mu.Unlock()

	capacity := maxAppSrcBytes
	mainLen := capacity - writePos
	if mainLen > available {
		mainLen = available
	}
	wrapLen := available - mainLen

	info := ShmInfo{
		OffsetMain: uint32(shmPartitionOffset + writePos),
		LengthMain: uint32(mainLen),
		OffsetWrap: uint32(shmPartitionOffset),
		LengthWrap: uint32(wrapLen),
	}
	return info, uint32(available / p.pcm.BytesPerSample())
}

// GetBufferDelay reports queued samples: currentLevelBytes divided by
// bytesPerSample.
func (p *Player) GetBufferDelay() uint32 {
	return uint32(int(p.appSrc.CurrentLevelBytes()) / p.pcm.BytesPerSample())
}

// GetDeviceInfo reports the device's frame capacities.
func (p *Player) GetDeviceInfo() DeviceInfo {
	maximum := uint32(maxAppSrcBytes / p.pcm.BytesPerSample())
	return DeviceInfo{
		MaximumFrames:       maximum,
		PreferredFrames:     maximum / 4,
		SupportDeferredPlay: true,
	}
}

func (p *Player) availableBytes() int {
	level := int(p.appSrc.CurrentLevelBytes())
	if level >= maxAppSrcBytes {
		return 0
	}
	return maxAppSrcBytes - level
}

// WriteBuffer copies as many whole samples as fit in the remaining appsrc
// capacity out of the circular (main, wrap) region and pushes them as one
// buffer. It is the single intentionally
// blocking client call: the caller waits on the rendezvous condvar for
// the task to publish lastBytesWritten, up to the configured timeout; a
// timeout reports zero.
func (p *Player) WriteBuffer(main, wrap []byte) (int, error) {
	p.mu.Lock()
	if p.terminal {
		p.mu.Unlock()
		return 0, ErrPipelineTerminal
	}
	generation := p.writeGeneration
	p.mu.Unlock()

	enqueued := p.worker.Enqueue(task.New("WebAudioWriteBuffer", func() {
		p.doWriteBuffer(main, wrap)
	}))
	if !enqueued {
		return 0, ErrPipelineTerminal
	}

	timedOut := false
	timer := time.AfterFunc(p.deps.Config.WriteTimeout, func() {
		p.mu.Lock()
		timedOut = true
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer timer.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()
	for p.writeGeneration == generation && !timedOut && !p.terminal {
		p.cond.Wait()
	}
	if p.writeGeneration == generation {
		if p.terminal {
			return 0, ErrPipelineTerminal
		}
		return 0, nil
	}
	return p.lastBytesWritten, nil
}

// doWriteBuffer runs on the Worker and publishes lastBytesWritten through
// the rendezvous.
func (p *Player) doWriteBuffer(main, wrap []byte) {
	written := 0
	defer func() {
		p.mu.Lock()
		p.lastBytesWritten = written
		p.writeGeneration++
		p.writePos = (p.writePos + written) % maxAppSrcBytes
		p.cond.Broadcast()
		p.mu.Unlock()
	}()

	available := p.availableBytes()
	want := len(main) + len(wrap)
	n := want
	if n > available {
		n = available
	}
	n -= n % p.pcm.BytesPerSample()
	if n == 0 {
		return
	}

	data := make([]byte, 0, n)
	fromMain := n
	if fromMain > len(main) {
		fromMain = len(main)
	}
	data = append(data, main[:fromMain]...)
	if rest := n - fromMain; rest > 0 {
		data = append(data, wrap[:rest]...)
	}

	buf := mediaframework.NewBuffer(data, 0, 0)
	if ret := p.appSrc.PushBuffer(buf); ret != mediaframework.FlowOK {
		buf.Release()
		written = 0
		return
	}
	buf.Release()
	written = n
}

// handleBusMessage maps bus messages onto WebAudioPlayerState events.
// Runs on the Worker.
func (p *Player) handleBusMessage(msg mediaframework.Message) {
	switch msg.Type {
	case mediaframework.MessageStateChanged:
		switch msg.NewState {
		case mediaframework.StateReady:
			p.setState(model.PlaybackStateIdle)
			p.deps.Sink.WebAudioPlayerStateEvent(p.sessionID, model.PlaybackStateIdle)
		case mediaframework.StatePaused:
			if msg.PendingState == mediaframework.StatePaused {
				return
			}
			p.setState(model.PlaybackStatePaused)
			p.deps.Sink.WebAudioPlayerStateEvent(p.sessionID, model.PlaybackStatePaused)
		case mediaframework.StatePlaying:
			p.setState(model.PlaybackStatePlaying)
			p.deps.Sink.WebAudioPlayerStateEvent(p.sessionID, model.PlaybackStatePlaying)
		}
	case mediaframework.MessageEOS:
		p.setState(model.PlaybackStateEndOfStream)
		p.deps.Sink.WebAudioPlayerStateEvent(p.sessionID, model.PlaybackStateEndOfStream)
		p.flushForReuse()
	case mediaframework.MessageError:
		p.fail(msg.Err)
	case mediaframework.MessageWarning:
		p.deps.Logger.Warnw("web audio pipeline warning", "session", p.sessionID, "err", msg.Err)
	}
}

// flushForReuse flushes the pipeline after EOS so the same player can be
// fed again.
func (p *Player) flushForReuse() {
	p.appSrcPad.SendEvent(mediaframework.Event{Type: mediaframework.EventFlushStart})
	p.appSrcPad.SendEvent(mediaframework.Event{Type: mediaframework.EventFlushStop, ResetTime: true})
	p.appSrc.Flush()
	p.mu.Lock()
	p.writePos = 0
	p.mu.Unlock()
}

func (p *Player) fail(err error) {
	p.deps.Logger.Errorw("web audio failure", "session", p.sessionID, "err", err)
	p.mu.Lock()
	p.terminal = true
	p.state = model.PlaybackStateFailure
	p.cond.Broadcast()
	p.mu.Unlock()
	p.deps.Sink.WebAudioPlayerStateEvent(p.sessionID, model.PlaybackStateFailure)
}

// Destroy stops the worker and dispatcher goroutines and wakes any blocked
// WriteBuffer caller.
func (p *Player) Destroy() {
	p.mu.Lock()
	p.terminal = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.dispatcher.Stop()
	p.worker.Stop()
	p.worker.Join()
}
