// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package simulated

import (
	"fmt"
	"sync"
	"time"

	"github.com/rapidaai/rialto/internal/mediaframework"
)

// Pipeline is the reference Pipeline: it tracks the current state, a bus,
// a flat element registry, and a position clock the test harness (or the
// position/underflow watchdog, against a real graph) can drive. State
// transitions complete immediately but are always reported as StateChanged
// bus messages, mirroring "confirmation arrives as a bus state-change
// event".
type Pipeline struct {
	*Element

	mu       sync.Mutex
	state    State
	position time.Duration
	bus      *Bus
	elements map[string]mediaframework.Element
	seeks    []SeekRecord
	events   []mediaframework.Event
}

// SeekRecord captures one Seek call for test assertions.
type SeekRecord struct {
	Position time.Duration
	Flags    mediaframework.SeekFlags
}

// State is a local alias kept for readability within this file.
type State = mediaframework.State

// NewPipeline constructs an empty pipeline named name, starting in NULL.
func NewPipeline(name string) *Pipeline {
	return &Pipeline{
		Element:  NewElement(name, "GstPipeline"),
		state:    mediaframework.StateNull,
		bus:      NewBus(128),
		elements: make(map[string]mediaframework.Element),
	}
}

func (p *Pipeline) SetState(s mediaframework.State) (mediaframework.StateChangeReturn, error) {
	p.mu.Lock()
	old := p.state
	p.state = s
	p.mu.Unlock()

	p.bus.Post(mediaframework.Message{
		Type:         mediaframework.MessageStateChanged,
		Src:          p,
		OldState:     old,
		NewState:     s,
		PendingState: mediaframework.StateVoidPending,
	})
	return mediaframework.StateChangeAsync, nil
}

func (p *Pipeline) GetState() (current, pending mediaframework.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.state
}

func (p *Pipeline) Bus() mediaframework.Bus { return p.bus }

func (p *Pipeline) SendEvent(evt mediaframework.Event) bool {
	p.mu.Lock()
	p.events = append(p.events, evt)
	p.mu.Unlock()
	return true
}

// SentEvents returns every event delivered via SendEvent, oldest first.
func (p *Pipeline) SentEvents() []mediaframework.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]mediaframework.Event{}, p.events...)
}

func (p *Pipeline) Seek(position time.Duration, flags mediaframework.SeekFlags) error {
	p.mu.Lock()
	if flags&mediaframework.SeekFlagInstantRateChange == 0 {
		p.position = position
	}
	p.seeks = append(p.seeks, SeekRecord{Position: position, Flags: flags})
	p.mu.Unlock()
	return nil
}

// Seeks returns every Seek call issued against the pipeline, oldest first.
func (p *Pipeline) Seeks() []SeekRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]SeekRecord{}, p.seeks...)
}

func (p *Pipeline) QueryPosition() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, true
}

// AdvancePosition moves the tracked clock forward by d, simulating
// real-time playback progress while PLAYING. The position/underflow
// watchdog polls QueryPosition rather than mutating it directly.
func (p *Pipeline) AdvancePosition(d time.Duration) {
	p.mu.Lock()
	p.position += d
	p.mu.Unlock()
}

func (p *Pipeline) AddElement(e mediaframework.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.elements[e.Name()]; exists {
		return fmt.Errorf("mediaframework: element %q already added to pipeline %q", e.Name(), p.Name())
	}
	p.elements[e.Name()] = e
	return nil
}

func (p *Pipeline) GetElementByName(name string) (mediaframework.Element, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.elements[name]
	return e, ok
}

// PostError is a convenience used by callers that want to report a
// framework failure on the bus.
func (p *Pipeline) PostError(src mediaframework.Element, err error) {
	p.bus.Post(mediaframework.Message{Type: mediaframework.MessageError, Src: src, Err: err})
}

// PostWarning posts a WARNING message.
func (p *Pipeline) PostWarning(src mediaframework.Element, err error) {
	p.bus.Post(mediaframework.Message{Type: mediaframework.MessageWarning, Src: src, Err: err})
}

// PostEOS posts an EOS message.
func (p *Pipeline) PostEOS(src mediaframework.Element) {
	p.bus.Post(mediaframework.Message{Type: mediaframework.MessageEOS, Src: src})
}

// PostQOS posts a QOS message.
func (p *Pipeline) PostQOS(src mediaframework.Element, stats mediaframework.QosStats) {
	p.bus.Post(mediaframework.Message{Type: mediaframework.MessageQOS, Src: src, Qos: stats})
}

var _ mediaframework.Pipeline = (*Pipeline)(nil)
