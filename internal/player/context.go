// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package player implements the Generic Player state machine, its
// PlayerContext, the Task Factory that produces the task
// closures the Worker executes, and the Bus Dispatcher glue. All of
// it follows the single-mutator contract: every field on
// Context is written only from the task.Worker goroutine that owns it.
package player

import (
	"sync"
	"time"

	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/mediaframework/simulated"
	"github.com/rapidaai/rialto/internal/model"
	"github.com/rapidaai/rialto/internal/shm"
	"github.com/rapidaai/rialto/internal/source"
)

// StreamInfo is the per-type entry of PlayerContext.streamInfo.
type StreamInfo struct {
	AppSrc       mediaframework.AppSrc
	AppSrcPad    *simulated.Pad
	GhostPad     *simulated.GhostPad
	HasDrm       bool
	AttachedCaps *mediaframework.Caps
	// Partition is the shared-memory partition allocated on the last
	// NeedData cycle for this source.
	Partition shm.PartitionInfo
	// LowLatency marks a source configured via SetImmediateOutput(true)
	// (video) or SetLowLatency(true) (audio); it shortens the NeedData
	// resend cadence from 100ms to 5ms.
	LowLatency bool
}

// Context is PlayerContext: created with the player, destroyed with
// it, mutated only by the owning session's Worker goroutine. A mutex
// guards the handful of fields admin/metrics snapshot from another
// goroutine for read-only display; it is never used to coordinate writes,
// which remain exclusively on the Worker.
type Context struct {
	mu sync.Mutex

	SessionID string
	Pipeline  mediaframework.Pipeline
	// Source is a weak reference to the rialto-source container, populated
	// once the media framework announces it.
	Source *source.Orchestrator

	StreamInfo map[model.MediaSourceType]*StreamInfo

	PlaybackRate        float64
	PendingPlaybackRate *float64

	PendingGeometry  *model.VideoGeometry
	IsSecondaryVideo bool
	videoSinkSeen    bool

	LastAudioSampleTimestamps time.Duration

	AudioUnderflow bool
	VideoUnderflow bool
	// audioUnderflowTicks counts consecutive watchdog ticks observing a
	// zero-byte audio appsrc queue.
	audioUnderflowTicks int

	// PlaybackGroup is opaque per-pipeline audio bookkeeping passed
	// through to the audio-switch helper.
	PlaybackGroup interface{}

	// VideoSink / AudioSink are the dynamically appearing sink elements
	// setupElement latches onto. AudioSinkPad is the pad
	// SEGMENT rate events are sent to on an amlhalasink.
	VideoSink    mediaframework.Element
	AudioSink    mediaframework.Element
	AudioSinkPad *simulated.Pad

	// StartPosition is the position recorded by SetPosition before the
	// first PAUSED state is reached.
	StartPosition   time.Duration
	everPaused      bool
	state           model.PlaybackState
	terminal        bool
	eosSentToClient bool

	// primed marks that the first explicit Pause has armed every appsrc
	// with its initial demand; later Pauses skip the priming pass.
	primed bool

	// buffered/firstData track the pre-roll fill: once every attached
	// source has received at least one HaveData payload, BUFFERED is
	// reported, and any PAUSED settle held back as a pre-roll marker
	// is released.
	buffered            bool
	firstData           map[model.MediaSourceType]bool
	pausedReportPending bool
}

// NewContext constructs a fresh Context for sessionID, deriving
// IsSecondaryVideo from the 1920x1080 threshold.
func NewContext(sessionID string, pipeline mediaframework.Pipeline, reqs model.VideoRequirements) *Context {
	return &Context{
		SessionID:        sessionID,
		Pipeline:         pipeline,
		StreamInfo:       make(map[model.MediaSourceType]*StreamInfo),
		PlaybackRate:     1.0,
		IsSecondaryVideo: reqs.IsSecondary(),
		state:            model.PlaybackStateIdle,
		firstData:        make(map[model.MediaSourceType]bool),
	}
}

// State returns the last client-visible playback state recorded.
func (c *Context) State() model.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState records the last client-visible playback state. Called only
// from the Worker goroutine; the mutex exists purely so admin/metrics can
// read it from another goroutine.
func (c *Context) SetState(s model.PlaybackState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// MarkTerminal latches the player as terminal.
func (c *Context) MarkTerminal() {
	c.mu.Lock()
	c.terminal = true
	c.mu.Unlock()
}

// Terminal reports whether Stop (or a FAILURE) has made the player
// terminal.
func (c *Context) Terminal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.terminal
}

// EverPaused reports whether the pipeline has reached PAUSED at least
// once, which flips SetPosition from "record start position" to "issue a
// seek".
func (c *Context) EverPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.everPaused
}

// MarkEverPaused latches EverPaused to true.
func (c *Context) MarkEverPaused() {
	c.mu.Lock()
	c.everPaused = true
	c.mu.Unlock()
}

// StoreVideoSink records the first-seen video sink. Written by the Worker;
// the mutex lets the synchronous sink reads see it from the caller's
// thread.
func (c *Context) StoreVideoSink(e mediaframework.Element) {
	c.mu.Lock()
	c.VideoSink = e
	c.mu.Unlock()
}

// VideoSinkRef returns the latched video sink, or nil.
func (c *Context) VideoSinkRef() mediaframework.Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.VideoSink
}

// StoreAudioSink records the first-seen audio sink and its event pad.
func (c *Context) StoreAudioSink(e mediaframework.Element, pad *simulated.Pad) {
	c.mu.Lock()
	c.AudioSink = e
	c.AudioSinkPad = pad
	c.mu.Unlock()
}

// AudioSinkRef returns the latched audio sink, or nil.
func (c *Context) AudioSinkRef() mediaframework.Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.AudioSink
}

// Primed reports whether the first explicit Pause has already armed the
// attached appsrcs with their initial demand.
func (c *Context) Primed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.primed
}

// MarkPrimed latches Primed to true.
func (c *Context) MarkPrimed() {
	c.mu.Lock()
	c.primed = true
	c.mu.Unlock()
}

// Buffered reports whether every attached source has received data at least
// once since the pre-roll began.
func (c *Context) Buffered() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buffered
}

// NoteFirstData records that t has received a HaveData payload and reports
// whether this completed the pre-roll fill: true exactly once, when every
// type currently in StreamInfo has data.
func (c *Context) NoteFirstData(t model.MediaSourceType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buffered {
		return false
	}
	c.firstData[t] = true
	for st := range c.StreamInfo {
		if !c.firstData[st] {
			return false
		}
	}
	c.buffered = true
	return true
}

// HoldPausedReport records that a PAUSED settle arrived before the pre-roll
// fill completed and must be reported after BUFFERED.
func (c *Context) HoldPausedReport() {
	c.mu.Lock()
	c.pausedReportPending = true
	c.mu.Unlock()
}

// TakePausedReport consumes the held-back PAUSED report, if any.
func (c *Context) TakePausedReport() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	held := c.pausedReportPending
	c.pausedReportPending = false
	return held
}

// EOSSentToClient latches the single END_OF_STREAM report
// and reports whether this call won the latch.
func (c *Context) EOSSentToClient() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.eosSentToClient {
		return false
	}
	c.eosSentToClient = true
	return true
}

// ConsumePendingGeometry returns PendingGeometry and clears it, applying
// exactly once. The second return is false if there was
// nothing pending or a video sink has already consumed it.
func (c *Context) ConsumePendingGeometry() (model.VideoGeometry, bool) {
	if c.videoSinkSeen || c.PendingGeometry == nil {
		return model.VideoGeometry{}, false
	}
	c.videoSinkSeen = true
	g := *c.PendingGeometry
	c.PendingGeometry = nil
	return g, true
}

// NoteAudioUnderflowTick advances the two-tick underflow latch and reports
// whether AudioUnderflow newly latched true on this call.
func (c *Context) NoteAudioUnderflowTick(queueEmpty bool) bool {
	if !queueEmpty {
		c.audioUnderflowTicks = 0
		return false
	}
	c.audioUnderflowTicks++
	if c.audioUnderflowTicks >= 2 && !c.AudioUnderflow {
		c.AudioUnderflow = true
		return true
	}
	return false
}

// ClearAudioUnderflow resets the underflow latch; Flush of the audio
// source calls it.
func (c *Context) ClearAudioUnderflow() {
	c.AudioUnderflow = false
	c.audioUnderflowTicks = 0
}

// NoteVideoUnderflow latches VideoUnderflow and reports whether this call
// newly latched it. The video decoder's underflow signal may fire
// repeatedly while starved; only the first occurrence is client-visible.
func (c *Context) NoteVideoUnderflow() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.VideoUnderflow {
		return false
	}
	c.VideoUnderflow = true
	return true
}

// ClearVideoUnderflow resets the video underflow latch after a flush
// refills the video stream.
func (c *Context) ClearVideoUnderflow() {
	c.mu.Lock()
	c.VideoUnderflow = false
	c.mu.Unlock()
}
