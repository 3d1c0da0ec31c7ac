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

// Bin is a generic container element holding named children and exposing
// ghost pads. It underlies the rialto source but is itself
// domain-agnostic, the same way a real bin has no idea it has been
// pressed into service as a source container.
type Bin struct {
	*Element

	mu        sync.Mutex
	children  map[string]mediaframework.Element
	ghostPads map[string]*GhostPad
}

// NewBin constructs an empty container named name.
func NewBin(name, factoryClass string) *Bin {
	return &Bin{
		Element:   NewElement(name, factoryClass),
		children:  make(map[string]mediaframework.Element),
		ghostPads: make(map[string]*GhostPad),
	}
}

// Add inserts a child element into the container.
func (b *Bin) Add(e mediaframework.Element) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.children[e.Name()] = e
}

// Child returns a previously added child by name.
func (b *Bin) Child(name string) (mediaframework.Element, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.children[name]
	return e, ok
}

// Children returns a snapshot of every child currently in the container.
func (b *Bin) Children() []mediaframework.Element {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]mediaframework.Element, 0, len(b.children))
	for _, e := range b.children {
		out = append(out, e)
	}
	return out
}

// ExposeGhostPad exposes target as a ghost pad named padName on the
// container.
func (b *Bin) ExposeGhostPad(padName string, target mediaframework.Pad) *GhostPad {
	gp := NewGhostPad(padName, b, target)
	b.mu.Lock()
	b.ghostPads[padName] = gp
	b.mu.Unlock()
	return gp
}

// GhostPadByName returns a previously exposed ghost pad.
func (b *Bin) GhostPadByName(padName string) (*GhostPad, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	gp, ok := b.ghostPads[padName]
	return gp, ok
}

var _ mediaframework.Element = (*Bin)(nil)
