// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package caps

import (
	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/model"
)

// OpusHeaderToCaps is implemented by whatever narrow mediaframework binding
// knows how to parse an Opus identification header into caps fields; the
// in-process reference implementation treats it as an external
// collaborator the same way the real framework exposes a helper function
// rather than requiring the caller to parse Opus headers itself.
type OpusHeaderToCaps func(codecData []byte) map[string]interface{}

// Build produces an immutable caps object for src. opusHelper may be
// nil; when the source is audio/x-opus and no helper is supplied, Build
// falls back to an empty opus-specific field set rather than failing, since
// caps negotiation downstream will still reject an incompatible stream.
func Build(src model.MediaSource, opusHelper OpusHeaderToCaps) *mediaframework.Caps {
	fields := commonFields(src)

	switch src.Type {
	case model.MediaSourceTypeAudio:
		return buildAudio(src, fields, opusHelper)
	case model.MediaSourceTypeVideo:
		return buildVideo(src, fields)
	default:
		return mediaframework.NewCaps(src.MimeType, fields)
	}
}

// commonFields sets the fields present "when present on the source"
// regardless of media type.
func commonFields(src model.MediaSource) map[string]interface{} {
	fields := make(map[string]interface{})
	if src.SegmentAlignment != model.SegmentAlignmentNone {
		fields["alignment"] = src.SegmentAlignment
	}
	if src.StreamFormat != "" {
		fields["stream-format"] = src.StreamFormat
	}
	if src.CodecData.IsText {
		if src.CodecData.Text != "" {
			fields["codec_data"] = src.CodecData.Text
		}
	} else if len(src.CodecData.Bytes) > 0 {
		fields["codec_data"] = src.CodecData.Bytes
	}
	return fields
}

// capsNameForMime maps client-facing MSE mime types onto the framework's
// caps structure names.
func capsNameForMime(mime string) string {
	switch mime {
	case "audio/mp4", "audio/aac", "audio/mpeg":
		return "audio/mpeg"
	case "audio/x-eac3", "audio/eac3":
		return "audio/x-eac3"
	case "video/h264", "video/x-h264":
		return "video/x-h264"
	case "video/h265", "video/x-h265":
		return "video/x-h265"
	default:
		return mime
	}
}

func buildAudio(src model.MediaSource, fields map[string]interface{}, opusHelper OpusHeaderToCaps) *mediaframework.Caps {
	name := capsNameForMime(src.MimeType)

	if src.MimeType == "audio/x-opus" {
		if opusHelper != nil {
			for k, v := range opusHelper(src.CodecData.Bytes) {
				fields[k] = v
			}
		}
		return mediaframework.NewCaps(name, fields)
	}

	fields["channels"] = src.Channels
	fields["rate"] = src.Rate

	if name == "audio/mpeg" {
		fields["mpegversion"] = 4
		return mediaframework.NewCaps(name, fields)
	}

	if src.MimeType == "audio/x-raw" {
		fields["layout"] = "interleaved"
		fields["format"] = RawAudioFormat(src.SampleSize, src.IsSigned, src.IsFloat, src.IsBigEndian)
		if mask := ChannelMask(src.Channels); mask != 0 {
			fields["channel-mask"] = mask
		}
	}

	return mediaframework.NewCaps(name, fields)
}

func buildVideo(src model.MediaSource, fields map[string]interface{}) *mediaframework.Caps {
	if src.Width > 0 {
		fields["width"] = src.Width
	}
	if src.Height > 0 {
		fields["height"] = src.Height
	}
	if src.FrameRateNum > 0 && src.FrameRateDen > 0 {
		fields["framerate"] = [2]int{src.FrameRateNum, src.FrameRateDen}
	}

	name := capsNameForMime(src.MimeType)
	if src.IsDolbyVision {
		fields["dovi-stream"] = true
		fields["dv_profile"] = src.DolbyVisionProfile
		if name == "" {
			name = "video/x-dolby-vision"
		}
	}

	return mediaframework.NewCaps(name, fields)
}
