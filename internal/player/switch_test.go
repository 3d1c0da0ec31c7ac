// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package player

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/rialto/internal/callback"
	"github.com/rapidaai/rialto/internal/mediaframework/simulated"
	"github.com/rapidaai/rialto/internal/model"
	"github.com/rapidaai/rialto/internal/platform"
)

// TestInPlaceAudioSwitch: an in-place switch with changed caps
// invokes the platform helper with audioAac derived from the old caps, and
// lastAudioSampleTimestamps captures the queried position.
func TestInPlaceAudioSwitch(t *testing.T) {
	codecSwitch := &platform.NoopAudioCodecSwitch{}
	sink := callback.NewRecordingSink()
	p := primedPlayer(t, sink, func(d *Deps) { d.AudioCodecSwitch = codecSwitch })

	pipeline := p.ctx.Pipeline.(*simulated.Pipeline)
	pipeline.AdvancePosition(7 * time.Second)

	next := audioSource()
	next.Rate = 44100
	require.NoError(t, p.AttachSource(next, true))
	drain(t, p)

	require.Len(t, codecSwitch.Calls, 1)
	call := codecSwitch.Calls[0]
	// Old caps were audio/mpeg (mapped from audio/mp4), so the switch is
	// flagged AAC, and the secure video path stays enabled.
	assert.True(t, call.AudioAac)
	assert.True(t, call.SvpEnabled)
	assert.Equal(t, 2, call.AudioAttributes.NumChannels)
	assert.Equal(t, 44100, call.AudioAttributes.SampleRate)
	assert.Equal(t, "mp4a.40.2, mp4a.40.5", call.AudioAttributes.CodecParam)

	assert.Equal(t, 7*time.Second, p.ctx.LastAudioSampleTimestamps)
}

func TestSwitchWithEqualCapsSkipsHelper(t *testing.T) {
	codecSwitch := &platform.NoopAudioCodecSwitch{}
	sink := callback.NewRecordingSink()
	p := primedPlayer(t, sink, func(d *Deps) { d.AudioCodecSwitch = codecSwitch })

	pipeline := p.ctx.Pipeline.(*simulated.Pipeline)
	pipeline.AdvancePosition(3 * time.Second)

	require.NoError(t, p.AttachSource(audioSource(), true))
	drain(t, p)

	assert.Empty(t, codecSwitch.Calls)
	// Position is still recorded at the switch point.
	assert.Equal(t, 3*time.Second, p.ctx.LastAudioSampleTimestamps)
}

// TestReattachWithUnequalCapsTriggersLegacySwitch covers the reattach
// variant: after a plain AttachSource over an existing entry with different
// caps, the switch helper runs even without switch_source.
func TestReattachWithUnequalCapsTriggersLegacySwitch(t *testing.T) {
	codecSwitch := &platform.NoopAudioCodecSwitch{}
	sink := callback.NewRecordingSink()
	p := primedPlayer(t, sink, func(d *Deps) { d.AudioCodecSwitch = codecSwitch })

	next := model.MediaSource{
		Type:     model.MediaSourceTypeAudio,
		MimeType: "audio/x-eac3",
		Channels: 6,
		Rate:     48000,
	}
	require.NoError(t, p.AttachSource(next, false))
	drain(t, p)

	require.Len(t, codecSwitch.Calls, 1)
	assert.Equal(t, "ec-3.A6", codecSwitch.Calls[0].AudioAttributes.CodecParam)
}

// TestSwitchOnCodecDataChangeAlone: two descriptors differing only in
// their codec_data bytes are unequal caps, so the helper runs.
func TestSwitchOnCodecDataChangeAlone(t *testing.T) {
	codecSwitch := &platform.NoopAudioCodecSwitch{}
	sink := callback.NewRecordingSink()
	p := primedPlayer(t, sink, func(d *Deps) { d.AudioCodecSwitch = codecSwitch })

	next := audioSource()
	next.CodecData = model.CodecData{Bytes: []byte{0x11, 0x90}}
	require.NoError(t, p.AttachSource(next, true))
	drain(t, p)

	require.Len(t, codecSwitch.Calls, 1)
	assert.Equal(t, []byte{0x11, 0x90}, codecSwitch.Calls[0].AudioAttributes.CodecSpecificConfig)
}

func TestBuildAudioAttributesCodecParams(t *testing.T) {
	aac := buildAudioAttributes(model.MediaSource{MimeType: "audio/mp4", Channels: 2, Rate: 48000})
	assert.Equal(t, "mp4a.40.2, mp4a.40.5", aac.CodecParam)

	eac3 := buildAudioAttributes(model.MediaSource{MimeType: "audio/x-eac3", Channels: 6, Rate: 48000})
	assert.Equal(t, "ec-3.A6", eac3.CodecParam)

	// Unspecified upstream: unknown mimes pass an empty codec param.
	other := buildAudioAttributes(model.MediaSource{MimeType: "audio/x-vorbis", Channels: 2})
	assert.Empty(t, other.CodecParam)
}
