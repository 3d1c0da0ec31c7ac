// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package caps

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/rialto/internal/model"
)

func TestBuildAudioMpegSetsMpegVersion(t *testing.T) {
	c := Build(model.MediaSource{
		Type:     model.MediaSourceTypeAudio,
		MimeType: "audio/mpeg",
		Channels: 2,
		Rate:     48000,
	}, nil)

	assert.Equal(t, "audio/mpeg", c.Name())
	channels, _ := c.Get("channels")
	rate, _ := c.Get("rate")
	mpegversion, _ := c.Get("mpegversion")
	assert.Equal(t, 2, channels)
	assert.Equal(t, 48000, rate)
	assert.Equal(t, 4, mpegversion)
}

func TestBuildRawAudioDerivesFormatAndMask(t *testing.T) {
	c := Build(model.MediaSource{
		Type:       model.MediaSourceTypeAudio,
		MimeType:   "audio/x-raw",
		Channels:   2,
		Rate:       41000,
		SampleSize: 16,
		IsSigned:   true,
	}, nil)

	format, _ := c.Get("format")
	layout, _ := c.Get("layout")
	mask, _ := c.Get("channel-mask")
	assert.Equal(t, "S16LE", format)
	assert.Equal(t, "interleaved", layout)
	assert.Equal(t, uint64(0x3), mask)
}

func TestBuildOpusUsesHelperFields(t *testing.T) {
	helper := func(codecData []byte) map[string]interface{} {
		return map[string]interface{}{"channel-mapping-family": 0, "channels": 2}
	}
	c := Build(model.MediaSource{
		Type:      model.MediaSourceTypeAudio,
		MimeType:  "audio/x-opus",
		CodecData: model.CodecData{Bytes: []byte("OpusHead")},
	}, helper)

	family, ok := c.Get("channel-mapping-family")
	require.True(t, ok)
	assert.Equal(t, 0, family)
	// Opus never falls through to the channels/rate path.
	_, hasRate := c.Get("rate")
	assert.False(t, hasRate)
}

func TestBuildVideoSetsDimensionsAndFramerate(t *testing.T) {
	c := Build(model.MediaSource{
		Type:         model.MediaSourceTypeVideo,
		MimeType:     "video/x-h264",
		Width:        1920,
		Height:       1080,
		FrameRateNum: 30000,
		FrameRateDen: 1001,
		StreamFormat: "avc",
		CodecData:    model.CodecData{Bytes: []byte{0x01, 0x64}},
	}, nil)

	width, _ := c.Get("width")
	height, _ := c.Get("height")
	framerate, _ := c.Get("framerate")
	streamFormat, _ := c.Get("stream-format")
	codecData, _ := c.Get("codec_data")
	assert.Equal(t, 1920, width)
	assert.Equal(t, 1080, height)
	assert.Equal(t, [2]int{30000, 1001}, framerate)
	assert.Equal(t, "avc", streamFormat)
	assert.Equal(t, []byte{0x01, 0x64}, codecData)
}

func TestBuildDolbyVisionAddsDoviFields(t *testing.T) {
	c := Build(model.MediaSource{
		Type:               model.MediaSourceTypeVideo,
		MimeType:           "video/x-h265",
		Width:              3840,
		Height:             2160,
		IsDolbyVision:      true,
		DolbyVisionProfile: 5,
	}, nil)

	dovi, _ := c.Get("dovi-stream")
	profile, _ := c.Get("dv_profile")
	assert.Equal(t, true, dovi)
	assert.Equal(t, 5, profile)
	assert.Equal(t, "video/x-h265", c.Name())
}

func TestMimeTypesMapToFrameworkCapsNames(t *testing.T) {
	audio := Build(model.MediaSource{Type: model.MediaSourceTypeAudio, MimeType: "audio/mp4", Channels: 2, Rate: 48000}, nil)
	assert.Equal(t, "audio/mpeg", audio.Name())
	mpegversion, _ := audio.Get("mpegversion")
	assert.Equal(t, 4, mpegversion)

	video := Build(model.MediaSource{Type: model.MediaSourceTypeVideo, MimeType: "video/h264", Width: 1280, Height: 720}, nil)
	assert.Equal(t, "video/x-h264", video.Name())
}

func TestRawAudioFormat(t *testing.T) {
	assert.Equal(t, "S16LE", RawAudioFormat(16, true, false, false))
	assert.Equal(t, "S16BE", RawAudioFormat(16, true, false, true))
	assert.Equal(t, "U16LE", RawAudioFormat(16, false, false, false))
	assert.Equal(t, "F32LE", RawAudioFormat(32, true, true, false))
	assert.Equal(t, "F64BE", RawAudioFormat(64, false, true, true))
	assert.Equal(t, "S8", RawAudioFormat(8, true, false, true))
	assert.Equal(t, "U8", RawAudioFormat(8, false, false, false))
}

func TestChannelMask(t *testing.T) {
	assert.Equal(t, uint64(0x4), ChannelMask(1))
	assert.Equal(t, uint64(0x3), ChannelMask(2))
	assert.Equal(t, uint64(0x3F), ChannelMask(6))
	assert.Equal(t, uint64(0), ChannelMask(3))
}

func TestSegmentAlignmentBecomesCapsField(t *testing.T) {
	c := Build(model.MediaSource{
		Type:             model.MediaSourceTypeVideo,
		MimeType:         "video/x-h264",
		SegmentAlignment: model.SegmentAlignmentAU,
	}, nil)

	alignment, ok := c.Get("alignment")
	require.True(t, ok)
	assert.Equal(t, model.SegmentAlignmentAU, alignment)
}
