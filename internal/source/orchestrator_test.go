// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/model"
)

func newTestOrchestrator(state mediaframework.State) *Orchestrator {
	return NewOrchestrator("rialtosrc_test", func() mediaframework.State { return state })
}

func TestAttachSourceConfiguresAppSrc(t *testing.T) {
	o := newTestOrchestrator(mediaframework.StateNull)
	caps := mediaframework.NewCaps("audio/mpeg", map[string]interface{}{"channels": 2})

	attached, err := o.AttachSource(model.MediaSourceTypeAudio, caps, false)
	require.NoError(t, err)

	format, _ := attached.AppSrc.GetProperty("format")
	streamType, _ := attached.AppSrc.GetProperty("stream-type")
	minPercent, _ := attached.AppSrc.GetProperty("min-percent")
	segmentChange, _ := attached.AppSrc.GetProperty("handle-segment-change")
	assert.Equal(t, "GST_FORMAT_TIME", format)
	assert.Equal(t, "GST_APP_STREAM_TYPE_SEEKABLE", streamType)
	assert.Equal(t, 20, minPercent)
	assert.Equal(t, true, segmentChange)
	assert.Equal(t, uint64(MaxQueuedBytesAudio), attached.AppSrc.MaxBytes())
	assert.Equal(t, "src_0", attached.GhostPad.Name())
}

func TestAttachSourcePerTypeQueueLimits(t *testing.T) {
	o := newTestOrchestrator(mediaframework.StateNull)

	video, err := o.AttachSource(model.MediaSourceTypeVideo, mediaframework.NewCaps("video/x-h264", nil), false)
	require.NoError(t, err)
	subtitle, err := o.AttachSource(model.MediaSourceTypeSubtitle, mediaframework.NewCaps("text/vtt", nil), false)
	require.NoError(t, err)

	assert.Equal(t, uint64(8<<20), video.AppSrc.MaxBytes())
	assert.Equal(t, uint64(256<<10), subtitle.AppSrc.MaxBytes())
	assert.Equal(t, "src_0", video.GhostPad.Name())
	assert.Equal(t, "src_1", subtitle.GhostPad.Name())
}

func TestAttachSourceWithDrmInsertsDecryptor(t *testing.T) {
	o := newTestOrchestrator(mediaframework.StateNull)

	_, err := o.AttachSource(model.MediaSourceTypeVideo, mediaframework.NewCaps("video/x-h264", map[string]interface{}{"stream-format": "avc"}), true)
	require.NoError(t, err)

	_, ok := o.Bin().Child("rialtodecryptorvideo_0")
	assert.True(t, ok)
	// Video-with-DRM also gets the platform payloader.
	_, ok = o.Bin().Child("svppay_0")
	assert.True(t, ok)
}

func TestSecureParserStreamFormatPatch(t *testing.T) {
	o := newTestOrchestrator(mediaframework.StateNull)

	// Caps with neither stream-format nor codec_data get patched.
	bare, err := o.AttachSource(model.MediaSourceTypeVideo, mediaframework.NewCaps("video/x-h264", nil), true)
	require.NoError(t, err)
	patched, ok := bare.AppSrc.Caps().Get("stream-format")
	require.True(t, ok)
	assert.Equal(t, "byte-stream", patched)
}

func TestStreamFormatNotPatchedWhenCodecDataPresent(t *testing.T) {
	o := newTestOrchestrator(mediaframework.StateNull)

	withCodecData, err := o.AttachSource(model.MediaSourceTypeVideo,
		mediaframework.NewCaps("video/x-h265", map[string]interface{}{"codec_data": []byte{1}}), true)
	require.NoError(t, err)
	_, ok := withCodecData.AppSrc.Caps().Get("stream-format")
	assert.False(t, ok)
}

func TestEOSForwardedOnlyAfterAllPads(t *testing.T) {
	o := newTestOrchestrator(mediaframework.StateNull)
	_, err := o.AttachSource(model.MediaSourceTypeAudio, mediaframework.NewCaps("audio/mpeg", nil), false)
	require.NoError(t, err)
	_, err = o.AttachSource(model.MediaSourceTypeVideo, mediaframework.NewCaps("video/x-h264", nil), false)
	require.NoError(t, err)

	assert.False(t, o.HandleChildEOS(model.MediaSourceTypeAudio))
	assert.True(t, o.HandleChildEOS(model.MediaSourceTypeVideo))
}

func TestEOSFromUntrackedTypeSwallowed(t *testing.T) {
	o := newTestOrchestrator(mediaframework.StateNull)
	assert.False(t, o.HandleChildEOS(model.MediaSourceTypeSubtitle))
}

func TestSetURIOnlyBelowPaused(t *testing.T) {
	ready := newTestOrchestrator(mediaframework.StateReady)
	require.NoError(t, ready.SetURI("rialto://stream"))
	assert.Equal(t, "rialto://stream", ready.URI())
	assert.Equal(t, []string{"rialto"}, ready.Protocols())

	paused := newTestOrchestrator(mediaframework.StatePaused)
	err := paused.SetURI("rialto://late")
	require.Error(t, err)
	var stateErr *ErrSetURIState
	assert.ErrorAs(t, err, &stateErr)
}

func TestParsePadIndex(t *testing.T) {
	n, ok := ParsePadIndex("src_3")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = ParsePadIndex("sink_0")
	assert.False(t, ok)
	_, ok = ParsePadIndex("src_x")
	assert.False(t, ok)
}

func TestPadCompleteLatch(t *testing.T) {
	o := newTestOrchestrator(mediaframework.StateNull)
	assert.False(t, o.PadComplete())
	o.MarkPadComplete()
	assert.True(t, o.PadComplete())
}
