// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package metrics holds the small counter set the player maintains around
// the demand-pull handshake and task execution. The counters exist so the
// request-bijection and ordering invariants can be asserted by tests and
// inspected at runtime through the admin surface; they are plain atomics,
// not a metrics-client integration.
package metrics

import "sync/atomic"

// Counters is one set of playback counters. A GenericPlayer built without
// injected Counters creates its own, so each session counts separately.
// All methods are safe for concurrent use.
type Counters struct {
	needDataIssued    atomic.Int64
	haveDataProcessed atomic.Int64
	haveDataStale     atomic.Int64
	needDataResends   atomic.Int64
	buffersPushed     atomic.Int64
	buffersDropped    atomic.Int64
	endOfStreams      atomic.Int64
	failures          atomic.Int64
}

// New constructs a zeroed Counters.
func New() *Counters {
	return &Counters{}
}

func (c *Counters) NeedDataIssued()    { c.needDataIssued.Add(1) }
func (c *Counters) HaveDataProcessed() { c.haveDataProcessed.Add(1) }
func (c *Counters) HaveDataStale()     { c.haveDataStale.Add(1) }
func (c *Counters) NeedDataResend()    { c.needDataResends.Add(1) }
func (c *Counters) BufferPushed()      { c.buffersPushed.Add(1) }
func (c *Counters) BufferDropped()     { c.buffersDropped.Add(1) }
func (c *Counters) EndOfStream()       { c.endOfStreams.Add(1) }
func (c *Counters) Failure()           { c.failures.Add(1) }

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	NeedDataIssued    int64 `json:"needDataIssued"`
	HaveDataProcessed int64 `json:"haveDataProcessed"`
	HaveDataStale     int64 `json:"haveDataStale"`
	NeedDataResends   int64 `json:"needDataResends"`
	BuffersPushed     int64 `json:"buffersPushed"`
	BuffersDropped    int64 `json:"buffersDropped"`
	EndOfStreams      int64 `json:"endOfStreams"`
	Failures          int64 `json:"failures"`
}

// Read returns the current counter values.
func (c *Counters) Read() Snapshot {
	return Snapshot{
		NeedDataIssued:    c.needDataIssued.Load(),
		HaveDataProcessed: c.haveDataProcessed.Load(),
		HaveDataStale:     c.haveDataStale.Load(),
		NeedDataResends:   c.needDataResends.Load(),
		BuffersPushed:     c.buffersPushed.Load(),
		BuffersDropped:    c.buffersDropped.Load(),
		EndOfStreams:      c.endOfStreams.Load(),
		Failures:          c.failures.Load(),
	}
}
