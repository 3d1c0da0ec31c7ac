// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package simulated

import (
	"sync"

	"github.com/rapidaai/rialto/internal/mediaframework"
)

// Pad is the reference Pad: a name, the Element it belongs to, and a slice
// of event listeners invoked by SendEvent.
type Pad struct {
	mu        sync.Mutex
	name      string
	element   mediaframework.Element
	listeners []func(mediaframework.Event)
}

// NewPad creates a pad named name belonging to elem.
func NewPad(name string, elem mediaframework.Element) *Pad {
	return &Pad{name: name, element: elem}
}

func (p *Pad) Name() string                    { return p.name }
func (p *Pad) Element() mediaframework.Element { return p.element }

// AddEventListener registers a listener invoked synchronously by SendEvent,
// in registration order. Used by tests that need to observe FlushStart /
// FlushStop / Segment / custom-downstream-OOB events.
func (p *Pad) AddEventListener(fn func(mediaframework.Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, fn)
}

func (p *Pad) SendEvent(evt mediaframework.Event) bool {
	p.mu.Lock()
	listeners := append([]func(mediaframework.Event){}, p.listeners...)
	p.mu.Unlock()
	for _, fn := range listeners {
		fn(evt)
	}
	return true
}

// GhostPad forwards to an internal element's pad (GLOSSARY: Pad / Ghost pad).
type GhostPad struct {
	*Pad
	target mediaframework.Pad
}

// NewGhostPad creates a ghost pad named name on container that forwards to
// target.
func NewGhostPad(name string, container mediaframework.Element, target mediaframework.Pad) *GhostPad {
	return &GhostPad{Pad: NewPad(name, container), target: target}
}

func (g *GhostPad) Target() mediaframework.Pad { return g.target }

// SendEvent on a ghost pad forwards to the target pad as well as any
// listeners registered directly on the ghost pad.
func (g *GhostPad) SendEvent(evt mediaframework.Event) bool {
	ok := g.Pad.SendEvent(evt)
	if g.target != nil {
		ok = g.target.SendEvent(evt) && ok
	}
	return ok
}

var (
	_ mediaframework.Pad      = (*Pad)(nil)
	_ mediaframework.GhostPad = (*GhostPad)(nil)
)
