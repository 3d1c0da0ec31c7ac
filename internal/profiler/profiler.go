// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package profiler implements optional first-buffer tracing: a one-shot
// probe on elements whose factory class contains "Source",
// "Decryptor" or "Decoder", recording a "<Class> FB Exit" stage label the
// first time a buffer traverses the element. With no tracing backend
// configured the profiler is a no-op.
package profiler

import (
	"strings"
	"sync"

	"github.com/rapidaai/rialto/internal/mediaframework"
)

var probeClasses = []string{"Source", "Decryptor", "Decoder"}

// Stage is one recorded first-buffer exit.
type Stage struct {
	Label   string
	Element string
}

// Profiler records first-buffer stages for observed elements. All methods
// are safe for concurrent use; MarkExit in particular is called from the
// sample delivery path.
type Profiler struct {
	enabled bool

	mu       sync.Mutex
	observed map[string]string // element name -> factory class
	fired    map[string]bool
	stages   []Stage
}

// New constructs an enabled Profiler.
func New() *Profiler {
	return &Profiler{
		enabled:  true,
		observed: make(map[string]string),
		fired:    make(map[string]bool),
	}
}

// Disabled constructs a Profiler that ignores every call, for deployments
// with no tracing backend configured.
func Disabled() *Profiler {
	return &Profiler{}
}

// Enabled reports whether tracing is active.
func (p *Profiler) Enabled() bool { return p.enabled }

// Observe attaches the one-shot probe to e if its factory class matches one
// of the probed classes. Observing the same element twice is a no-op.
func (p *Profiler) Observe(e mediaframework.Element) {
	if !p.enabled {
		return
	}
	cls := e.FactoryClassName()
	matched := ""
	for _, probe := range probeClasses {
		if strings.Contains(cls, probe) {
			matched = probe
			break
		}
	}
	if matched == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.observed[e.Name()]; !ok {
		p.observed[e.Name()] = matched
	}
}

// MarkExit records the first buffer traversal of e's src pad. Subsequent
// calls for the same element do nothing, matching the one-shot probe.
func (p *Profiler) MarkExit(e mediaframework.Element) {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	cls, observed := p.observed[e.Name()]
	if !observed || p.fired[e.Name()] {
		return
	}
	p.fired[e.Name()] = true
	p.stages = append(p.stages, Stage{Label: cls + " FB Exit", Element: e.Name()})
}

// Stages returns the recorded stages, oldest first.
func (p *Profiler) Stages() []Stage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Stage{}, p.stages...)
}
