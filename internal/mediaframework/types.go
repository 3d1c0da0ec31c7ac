// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package mediaframework is the single narrow capability interface this
// repository keeps between itself and a native media-framework graph.
// Nothing above this package knows whether Pipeline/Element/AppSrc/Bus are
// backed by a real native graph or, as here, by the in-process reference
// implementation under ./simulated.
package mediaframework

import (
	"context"
	"time"
)

// ClockTimeNone is the framework's unset-timestamp sentinel, used when an
// event field carries "no time" rather than zero.
const ClockTimeNone = int64(-1)

// State mirrors the four states a media-framework element moves through.
type State int

const (
	StateNull State = iota
	StateReady
	StatePaused
	StatePlaying
	// StateVoidPending is only ever seen as a Message.PendingState: it marks
	// a state-changed message reporting a settled transition, as opposed to
	// one still in flight toward a further state.
	StateVoidPending
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	default:
		return "UNKNOWN"
	}
}

// StateChangeReturn is the result of requesting a state transition.
type StateChangeReturn int

const (
	StateChangeFailure StateChangeReturn = iota
	StateChangeSuccess
	StateChangeAsync
	StateChangeNoPreroll
)

// FlowReturn is the result of pushing a buffer into an AppSrc.
type FlowReturn int

const (
	FlowOK FlowReturn = iota
	FlowEOS
	FlowError
	// FlowWrongState is returned by a push against an element below PAUSED;
	// callers must drop the buffer silently.
	FlowWrongState
	// FlowUnexpected is returned by a push after EndOfStream; callers must
	// drop the buffer silently.
	FlowUnexpected
)

// Element is the narrow surface every graph node exposes: named properties
// and a factory-class string used for bus sourceId inference and
// profiler stage matching.
type Element interface {
	Name() string
	FactoryClassName() string
	SetProperty(name string, value interface{}) error
	GetProperty(name string) (interface{}, bool)
}

// Pad is a connection point on an Element. A GhostPad additionally exposes
// the internal pad it forwards to.
type Pad interface {
	Name() string
	Element() Element
	SendEvent(evt Event) bool
}

// GhostPad forwards to an internal element's pad (GLOSSARY: Pad / Ghost pad).
type GhostPad interface {
	Pad
	Target() Pad
}

// EventType enumerates the handful of event kinds the player needs to send
// downstream; the rate logic and the flush path are the only producers.
type EventType int

const (
	EventFlushStart EventType = iota
	EventFlushStop
	EventSegment
	EventCustomDownstreamOOB
)

// Event is a generic downstream event. ResetTime applies to FlushStop; Rate
// and Name apply to Segment/custom-event construction.
type Event struct {
	Type      EventType
	ResetTime bool
	Rate      float64
	Name      string
	Fields    map[string]interface{}
}

// AppSrc is the application-fed source element buffers are pushed into
// (GLOSSARY: Appsrc).
type AppSrc interface {
	Element

	SetCaps(c *Caps)
	Caps() *Caps

	SetMaxBytes(n uint64)
	MaxBytes() uint64
	CurrentLevelBytes() uint64

	PushBuffer(buf *Buffer) FlowReturn
	EndOfStream() FlowReturn

	// SetNeedDataCallback registers the callback invoked on the
	// media-framework's own thread when the element wants more data; the
	// callback must do nothing but enqueue a task and copy scalars.
	SetNeedDataCallback(cb func(length uint))
	SetEnoughDataCallback(cb func())
}

// MessageType enumerates the bus message kinds the player handles.
type MessageType int

const (
	MessageStateChanged MessageType = iota
	MessageEOS
	MessageQOS
	MessageError
	MessageWarning
	MessageAsyncStart
	MessageAsyncDone
)

// QosStats carries the fields parsed out of a QOS message.
type QosStats struct {
	Running   time.Duration
	Stream    time.Duration
	Timestamp time.Duration
	Duration  time.Duration
	Processed uint64
	Dropped   uint64
	Format    string
}

// Message is a single bus message. Only the fields relevant to its Type are
// populated, mirroring how a real bus message carries a type-tagged union.
type Message struct {
	Type MessageType
	Src  Element

	// MessageStateChanged
	OldState     State
	NewState     State
	PendingState State

	// MessageQOS
	Qos QosStats

	// MessageError / MessageWarning
	Err error
}

// Bus is the per-pipeline message queue polled by the bus dispatcher
// goroutine. Pop never mutates caller state; it only returns what the
// framework posted.
type Bus interface {
	Post(msg Message)
	// Pop blocks until a message is available or ctx is done.
	Pop(ctx context.Context) (Message, bool)
}

// SeekFlags mirrors the flag bits a seek can carry.
type SeekFlags int

const (
	SeekFlagFlush SeekFlags = 1 << iota
	SeekFlagKeyUnit
	SeekFlagInstantRateChange
)

// Pipeline is the top-level graph handle owned by PlayerContext.pipeline and
// WebAudioContext.pipeline.
type Pipeline interface {
	Element

	SetState(s State) (StateChangeReturn, error)
	GetState() (current, pending State)

	Bus() Bus

	SendEvent(evt Event) bool
	// Seek issues a seek to position with the given flags.
	Seek(position time.Duration, flags SeekFlags) error
	// QueryPosition is safe to call from the caller's own thread; position
	// reads are guaranteed-safe concurrent reads and must not be enqueued
	// (enqueuing would race with pipeline teardown).
	QueryPosition() (time.Duration, bool)

	AddElement(e Element) error
	GetElementByName(name string) (Element, bool)
}

// URIHandler is implemented by the rialto source container.
type URIHandler interface {
	Protocols() []string
	SetURI(uri string) error
	URI() string
}
