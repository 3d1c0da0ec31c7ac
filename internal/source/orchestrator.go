// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package source implements the Source Orchestrator: the custom
// "rialto source" container element, its dynamic ghost pads, and the
// per-source decryptor/payloader/queue insertion chain. It is built on
// simulated.Bin (the in-process container reference, itself modeled after
// how a real GstBin aggregates children and ghost pads) plus the
// per-type wiring rules below.
package source

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/mediaframework/simulated"
	"github.com/rapidaai/rialto/internal/model"
)

// Max queued bytes per source type.
const (
	MaxQueuedBytesVideo    = 8 << 20
	MaxQueuedBytesAudio    = 512 << 10
	MaxQueuedBytesSubtitle = 256 << 10
)

// maxQueueBuffers is the bounded downstream queue's max-size-buffers
// property; every other limit on that queue is disabled.
const maxQueueBuffers = 10

// AttachedSource is what AttachSource hands back to the player: the
// freshly created appsrc, its src pad (flush events land here), and the
// ghost pad exposing the chain's tail.
type AttachedSource struct {
	AppSrc    *simulated.AppSrc
	AppSrcPad *simulated.Pad
	GhostPad  *simulated.GhostPad
}

// Orchestrator is the rialto source container. One Orchestrator backs
// one PlayerContext.source.
type Orchestrator struct {
	mu sync.Mutex

	bin          *simulated.Bin
	nextPadIndex int

	eosReceived map[model.MediaSourceType]bool
	padComplete bool

	payloaderInit sync.Once
	payloaderSeen bool

	uri   string
	state func() mediaframework.State // state check for URIHandler's SetURI guard
}

// NewOrchestrator constructs an empty rialto source container. stateFn
// reports the owning pipeline's current state, used to enforce the
// set_uri-below-PAUSED rule.
func NewOrchestrator(name string, stateFn func() mediaframework.State) *Orchestrator {
	return &Orchestrator{
		bin:         simulated.NewBin(name, "GstRialtoSrc"),
		eosReceived: make(map[model.MediaSourceType]bool),
		state:       stateFn,
	}
}

// Bin returns the underlying container element, for adding to the pipeline.
func (o *Orchestrator) Bin() *simulated.Bin { return o.bin }

// AttachSource wires one media source into the container and returns the
// appsrc plus its exposed ghost pad.
func (o *Orchestrator) AttachSource(t model.MediaSourceType, caps *mediaframework.Caps, hasDrm bool) (*AttachedSource, error) {
	o.mu.Lock()
	idx := o.nextPadIndex
	o.nextPadIndex++
	o.eosReceived[t] = false
	o.mu.Unlock()

	// Step 1: configure appsrc: non-blocking, TIME format, SEEKABLE
	// stream-type, min-percent=20, handle-segment-change=true.
	appSrc := simulated.NewAppSrc(fmt.Sprintf("rialtoappsrc_%s_%d", strings.ToLower(t.String()), idx), "Generic/Source")
	appSrc.SetProperty("block", false)
	appSrc.SetProperty("format", "GST_FORMAT_TIME")
	appSrc.SetProperty("stream-type", "GST_APP_STREAM_TYPE_SEEKABLE")
	appSrc.SetProperty("min-percent", 20)
	appSrc.SetProperty("handle-segment-change", true)
	appSrc.SetCaps(caps)

	// Step 2: per-type max queued bytes.
	appSrc.SetMaxBytes(maxQueuedBytes(t))

	o.bin.Add(appSrc)
	appSrcPad := simulated.NewPad(appSrc.Name()+"_src", appSrc)

	// Step 3: decryptor, named rialtodecryptor{video|audio}_<id>.
	if hasDrm {
		decName := fmt.Sprintf("rialtodecryptor%s_%d", strings.ToLower(t.String()), idx)
		decCls := "Decryptor/Video"
		if t == model.MediaSourceTypeAudio {
			decCls = "Decryptor/Audio"
		}
		decryptor := simulated.NewElement(decName, decCls)
		o.bin.Add(decryptor)

		// Step 4: video-with-DRM gets an optional platform payloader,
		// discovered once via a one-shot init-enter guard.
		if t == model.MediaSourceTypeVideo {
			o.discoverPayloader()
			if o.payloaderSeen {
				payName := fmt.Sprintf("svppay_%d", idx)
				payloader := simulated.NewElement(payName, "GstBaseTransform")
				payloader.SetProperty("in-place", true)
				o.bin.Add(payloader)
			}
			patchStreamFormatForSecureParsers(caps, appSrc)
		}
	}

	// Step 5: append a bounded queue (max-size-buffers=10, other limits
	// disabled).
	queueName := fmt.Sprintf("rialtoqueue_%s_%d", strings.ToLower(t.String()), idx)
	queue := simulated.NewElement(queueName, "GstQueue")
	queue.SetProperty("max-size-buffers", maxQueueBuffers)
	queue.SetProperty("max-size-bytes", 0)
	queue.SetProperty("max-size-time", 0)
	o.bin.Add(queue)

	// Step 6: expose the tail pad (the queue's src pad) as a ghost pad
	// src_<n> on the container.
	queueSrcPad := simulated.NewPad(queueName+"_src", queue)
	ghostName := fmt.Sprintf("src_%d", idx)
	ghost := o.bin.ExposeGhostPad(ghostName, queueSrcPad)

	return &AttachedSource{AppSrc: appSrc, AppSrcPad: appSrcPad, GhostPad: ghost}, nil
}

func maxQueuedBytes(t model.MediaSourceType) uint64 {
	switch t {
	case model.MediaSourceTypeVideo:
		return MaxQueuedBytesVideo
	case model.MediaSourceTypeSubtitle:
		return MaxQueuedBytesSubtitle
	default:
		return MaxQueuedBytesAudio
	}
}

// discoverPayloader runs the one-shot init-enter guard. A real deployment
// probes the element registry for svppay; the reference orchestrator
// assumes it is present, matching a secure-video-path platform.
func (o *Orchestrator) discoverPayloader() {
	o.payloaderInit.Do(func() {
		o.payloaderSeen = true
	})
}

// patchStreamFormatForSecureParsers patches stream-format=byte-stream onto
// caps lacking both stream-format and codec_data for video/x-h264 or
// video/x-h265, to accommodate secure parsers.
// Caps are immutable, so the patched value is pushed back onto the appsrc.
func patchStreamFormatForSecureParsers(caps *mediaframework.Caps, appSrc *simulated.AppSrc) {
	if caps == nil {
		return
	}
	if caps.Name() != "video/x-h264" && caps.Name() != "video/x-h265" {
		return
	}
	_, hasStreamFormat := caps.Get("stream-format")
	_, hasCodecData := caps.Get("codec_data")
	if hasStreamFormat || hasCodecData {
		return
	}
	appSrc.SetCaps(caps.With("stream-format", "byte-stream"))
}

// MarkPadComplete marks the source element as pad-complete.
func (o *Orchestrator) MarkPadComplete() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.padComplete = true
}

// PadComplete reports whether MarkPadComplete has run.
func (o *Orchestrator) PadComplete() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.padComplete
}

// HandleChildEOS records that t's appsrc has reached EOS and reports
// whether every exposed ghost pad has now received EOS, meaning the
// container should forward a single EOS upward.
func (o *Orchestrator) HandleChildEOS(t model.MediaSourceType) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, tracked := o.eosReceived[t]; !tracked {
		return false
	}
	o.eosReceived[t] = true
	for _, received := range o.eosReceived {
		if !received {
			return false
		}
	}
	return true
}

// RemoveSource stops tracking t, e.g. for a later reattach/in-place
// switch.
func (o *Orchestrator) RemoveSource(t model.MediaSourceType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.eosReceived, t)
}

// --- URIHandler ---

// Protocols declares the scheme(s) the source accepts.
func (o *Orchestrator) Protocols() []string { return []string{"rialto"} }

// ErrSetURIState is returned when SetURI is attempted at or above PAUSED.
type ErrSetURIState struct{ State mediaframework.State }

func (e *ErrSetURIState) Error() string {
	return "source: set_uri not allowed in state " + e.State.String()
}

// SetURI stores uri, opaquely, after
// checking the below-PAUSED guard.
func (o *Orchestrator) SetURI(uri string) error {
	if o.state != nil && o.state() >= mediaframework.StatePaused {
		return &ErrSetURIState{State: o.state()}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.uri = uri
	return nil
}

// URI returns the last URI accepted by SetURI.
func (o *Orchestrator) URI() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.uri
}

// ParsePadIndex extracts the numeric suffix of a ghost pad name ("src_3"
// -> 3), which is the pad's registration order within the container.
func ParsePadIndex(padName string) (int, bool) {
	const prefix = "src_"
	if !strings.HasPrefix(padName, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(padName, prefix))
	if err != nil {
		return 0, false
	}
	return n, true
}
