// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package player

import (
	"fmt"
	"strings"

	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/model"
)

// switchAudioSource performs the dynamic audio source switch, both for the
// in-place switch path and the reattach-with-unequal-caps legacy path. It
// always runs on the Worker.
func (p *GenericPlayer) switchAudioSource(src model.MediaSource, newCaps *mediaframework.Caps) {
	existing, ok := p.ctx.StreamInfo[model.MediaSourceTypeAudio]
	if !ok {
		p.fail(fmt.Errorf("audio switch: no audio source attached"))
		return
	}

	oldCaps := existing.AttachedCaps
	position := p.queryPosition()
	attrs := buildAudioAttributes(src)

	if !oldCaps.Equal(newCaps) {
		capsArg := newCaps
		err := p.deps.AudioCodecSwitch.SwitchAudioTrackCodecChannel(
			p.ctx.PlaybackGroup,
			attrs,
			0, 0,
			position,
			&capsArg,
			strings.HasPrefix(oldCaps.Name(), "audio/mpeg"),
			true,
			existing.AppSrc,
		)
		if err != nil {
			p.deps.Logger.Errorw("audio codec-channel switch failed", "session", p.ctx.SessionID, "err", err)
		} else {
			// The helper may have rewritten the caps in place.
			existing.AttachedCaps = capsArg
			existing.AppSrc.SetCaps(capsArg)
		}
	}

	existing.HasDrm = src.HasDrm
	p.ctx.LastAudioSampleTimestamps = position
}

// buildAudioAttributes derives the record handed to the codec-switch
// helper. codecParam derivation for mime types beyond AAC and E-AC3 is
// vendor-undocumented; those are passed through empty and the helper is
// expected to fall back on the caps.
func buildAudioAttributes(src model.MediaSource) model.AudioAttributes {
	attrs := model.AudioAttributes{
		NumChannels:         src.Channels,
		SampleRate:          src.Rate,
		CodecSpecificConfig: src.CodecData.Bytes,
	}
	switch {
	case strings.HasPrefix(src.MimeType, "audio/mp4"), strings.HasPrefix(src.MimeType, "audio/aac"),
		strings.HasPrefix(src.MimeType, "audio/mpeg"):
		attrs.CodecParam = "mp4a.40.2, mp4a.40.5"
	case strings.HasPrefix(src.MimeType, "audio/x-eac3"), strings.HasPrefix(src.MimeType, "audio/eac3"):
		attrs.CodecParam = fmt.Sprintf("ec-3.A%d", src.Channels)
	}
	return attrs
}
