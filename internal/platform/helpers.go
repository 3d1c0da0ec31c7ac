// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package platform holds narrow capability interfaces over vendor platform
// helpers: one interface per external library, not per call category. The
// real audio-track
// codec-channel-switch helper and the audio-gap helper are vendor-specific
// platform code this repository never implements; it only depends on these
// interfaces.
package platform

import (
	"time"

	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/model"
)

// AudioCodecSwitch is the platform audio-track-codec-channel-switch helper
// used on a dynamic audio switch. Caps may be mutated by the helper, hence
// the pointer.
type AudioCodecSwitch interface {
	SwitchAudioTrackCodecChannel(
		playbackGroup interface{},
		audioAttributes model.AudioAttributes,
		inDelayFrames, outDelayFrames int,
		targetPts time.Duration,
		caps **mediaframework.Caps,
		audioAac bool,
		svpEnabled bool,
		audioAppSrc mediaframework.AppSrc,
	) error
}

// AudioGapProcessor is the ProcessAudioGap platform helper. What the helper
// does with its parameters is vendor-defined; this repository only owns
// dispatching to it.
type AudioGapProcessor interface {
	ProcessAudioGap(pipeline mediaframework.Pipeline, position, duration time.Duration, discontinuity, isAudioAac bool) error
}

// Capabilities reports platform traits the rate-change logic and
// sink-detection logic branch on. A real deployment resolves these
// once at startup from the linked media framework version; this repository
// takes them as configuration.
type Capabilities struct {
	// InstantRateSeek reports whether the platform supports a seek with
	// SeekFlagInstantRateChange.
	InstantRateSeek bool
}

// IsAmlHalaSink reports whether e is an amlhalasink instance, matched by
// factory-class/name prefix the way the sink probing does.
func IsAmlHalaSink(e mediaframework.Element) bool {
	return hasPrefix(e.FactoryClassName(), "amlhalasink") || hasPrefix(e.Name(), "amlhalasink")
}

// IsWesterosSink reports whether e looks like the westeros-family video
// sink setupElement watches for, matched by element-name prefix.
func IsWesterosSink(e mediaframework.Element) bool {
	return hasPrefix(e.Name(), "westerossink") || hasPrefix(e.FactoryClassName(), "westerossink")
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// NoopAudioCodecSwitch performs no real switch; it is the default used
// until a platform-specific implementation is wired in, and lets tests
// assert it was invoked with the expected arguments.
type NoopAudioCodecSwitch struct {
	Calls []NoopAudioCodecSwitchCall
}

// NoopAudioCodecSwitchCall records one invocation for test assertions.
type NoopAudioCodecSwitchCall struct {
	AudioAttributes model.AudioAttributes
	AudioAac        bool
	SvpEnabled      bool
}

func (n *NoopAudioCodecSwitch) SwitchAudioTrackCodecChannel(
	playbackGroup interface{},
	audioAttributes model.AudioAttributes,
	inDelayFrames, outDelayFrames int,
	targetPts time.Duration,
	caps **mediaframework.Caps,
	audioAac bool,
	svpEnabled bool,
	audioAppSrc mediaframework.AppSrc,
) error {
	n.Calls = append(n.Calls, NoopAudioCodecSwitchCall{
		AudioAttributes: audioAttributes,
		AudioAac:        audioAac,
		SvpEnabled:      svpEnabled,
	})
	return nil
}

// NoopAudioGapProcessor records calls without touching the pipeline.
type NoopAudioGapProcessor struct {
	Calls int
}

func (n *NoopAudioGapProcessor) ProcessAudioGap(pipeline mediaframework.Pipeline, position, duration time.Duration, discontinuity, isAudioAac bool) error {
	n.Calls++
	return nil
}

var (
	_ AudioCodecSwitch  = (*NoopAudioCodecSwitch)(nil)
	_ AudioGapProcessor = (*NoopAudioGapProcessor)(nil)
)
