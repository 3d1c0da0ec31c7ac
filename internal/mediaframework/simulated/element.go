// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package simulated is the in-process reference implementation of
// mediaframework's capability interfaces. It models enough of a native
// media-framework graph's state machine, caps negotiation and bus semantics
// to drive the player orchestration logic end to end and to be exercised by
// tests, without requiring a cgo binding that does not exist anywhere in the
// retrieved example pack.
package simulated

import (
	"sync"

	"github.com/rapidaai/rialto/internal/mediaframework"
)

// Element is the reference Element: a named bag of properties plus a
// factory-class string, matching what the player inspects on real elements
// (sink name prefixes, "Audio"/"Video" class strings, "Source" /
// "Decryptor" / "Decoder" class substrings for the profiler).
type Element struct {
	mu         sync.RWMutex
	name       string
	factoryCls string
	properties map[string]interface{}
	signals    map[string][]func()
}

// NewElement constructs a named element with a factory-class string.
func NewElement(name, factoryClass string) *Element {
	return &Element{
		name:       name,
		factoryCls: factoryClass,
		properties: make(map[string]interface{}),
		signals:    make(map[string][]func()),
	}
}

// Connect registers a handler for a named element signal, the reference
// counterpart of g_signal_connect. Handlers run on whichever goroutine
// calls EmitSignal, so they must only enqueue.
func (e *Element) Connect(signal string, fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.signals[signal] = append(e.signals[signal], fn)
}

// EmitSignal fires every handler registered for signal, in registration
// order. It models the element raising the signal from its own streaming
// thread.
func (e *Element) EmitSignal(signal string) {
	e.mu.RLock()
	handlers := append([]func(){}, e.signals[signal]...)
	e.mu.RUnlock()
	for _, fn := range handlers {
		fn()
	}
}

func (e *Element) Name() string { return e.name }

func (e *Element) FactoryClassName() string { return e.factoryCls }

func (e *Element) SetProperty(name string, value interface{}) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.properties[name] = value
	return nil
}

func (e *Element) GetProperty(name string) (interface{}, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.properties[name]
	return v, ok
}

var _ mediaframework.Element = (*Element)(nil)
