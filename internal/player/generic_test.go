// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package player

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/rialto/internal/callback"
	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/mediaframework/simulated"
	"github.com/rapidaai/rialto/internal/model"
)

func qosStats(processed, dropped uint64) mediaframework.QosStats {
	return mediaframework.QosStats{Processed: processed, Dropped: dropped, Format: "buffers"}
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newTestPlayer(t *testing.T, sink *callback.RecordingSink, mutate func(*Deps)) *GenericPlayer {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PositionReportInterval = 10 * time.Millisecond
	deps := Deps{Sink: sink, Config: cfg}
	if mutate != nil {
		mutate(&deps)
	}
	p := NewGenericPlayer(uuid.NewString(), model.VideoRequirements{MaxWidth: 1920, MaxHeight: 1080}, deps)
	t.Cleanup(func() {
		p.Destroy()
		p.Join()
	})
	return p
}

// drain blocks until the queue has settled. Tasks may enqueue follow-up
// tasks (Pause primes NeedData, NeedData notifies), so it pings a few times.
func drain(t *testing.T, p *GenericPlayer) {
	t.Helper()
	for i := 0; i < 3; i++ {
		done := make(chan struct{})
		require.True(t, p.worker.Ping(func() { close(done) }))
		select {
		case <-done:
		case <-time.After(waitFor):
			t.Fatal("worker did not drain")
		}
	}
}

func audioSource() model.MediaSource {
	return model.MediaSource{
		Type:     model.MediaSourceTypeAudio,
		MimeType: "audio/mp4",
		Channels: 2,
		Rate:     48000,
		// AudioSpecificConfig bytes ride along so attach/switch caps
		// comparisons cover the codec_data field.
		CodecData: model.CodecData{Bytes: []byte{0x12, 0x10}},
	}
}

func videoSource() model.MediaSource {
	return model.MediaSource{
		Type:     model.MediaSourceTypeVideo,
		MimeType: "video/h264",
		Width:    1920,
		Height:   1080,
	}
}

func audioSegment(pts time.Duration) model.MediaSegment {
	return model.MediaSegment{
		Type:       model.MediaSourceTypeAudio,
		PTS:        pts,
		Data:       []byte{0xaa, 0xbb, 0xcc, 0xdd},
		SampleRate: 48000,
		Channels:   2,
	}
}

func videoSegment(pts time.Duration) model.MediaSegment {
	return model.MediaSegment{
		Type:   model.MediaSourceTypeVideo,
		PTS:    pts,
		Data:   []byte{0x00, 0x00, 0x01, 0x65},
		Width:  1920,
		Height: 1080,
	}
}

func loadAndAttachAV(t *testing.T, p *GenericPlayer) {
	t.Helper()
	require.NoError(t, p.Load("video/mp4", "stream"))
	require.NoError(t, p.AttachSource(audioSource(), false))
	require.NoError(t, p.AttachSource(videoSource(), false))
	require.NoError(t, p.AllSourcesAttached())
	drain(t, p)
}

func needDataBySource(events []callback.NeedMediaDataEvent, sourceID string) (callback.NeedMediaDataEvent, bool) {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].SourceID == sourceID {
			return events[i], true
		}
	}
	return callback.NeedMediaDataEvent{}, false
}

// TestGenericPlaybackToEndOfStream walks a full session: attach, preroll,
// pause, buffer, play, end of stream, stop.
func TestGenericPlaybackToEndOfStream(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := newTestPlayer(t, sink, nil)

	loadAndAttachAV(t, p)
	assert.Eventually(t, func() bool {
		s, ok := sink.LastState()
		return ok && s == model.PlaybackStateIdle
	}, waitFor, tick)

	require.NoError(t, p.Pause())
	drain(t, p)

	events := sink.NeedDataEvents()
	require.Len(t, events, 2)
	for _, evt := range events {
		assert.Equal(t, 3, evt.FrameCount)
		assert.NotEmpty(t, evt.RequestID)
	}
	assert.Equal(t, []model.NetworkState{model.NetworkStateBuffering}, sink.NetworkEvents())

	// One frame per source buffers the preroll: BUFFERED, then PAUSED.
	audioReq, ok := needDataBySource(events, "audio")
	require.True(t, ok)
	videoReq, ok := needDataBySource(events, "video")
	require.True(t, ok)
	require.NoError(t, p.HaveData(model.HaveDataStatusOK, 0, audioReq.RequestID, []model.MediaSegment{audioSegment(0)}))
	require.NoError(t, p.HaveData(model.HaveDataStatusOK, 0, videoReq.RequestID, []model.MediaSegment{videoSegment(0)}))
	drain(t, p)

	assert.Contains(t, sink.NetworkEvents(), model.NetworkStateBuffered)
	assert.Eventually(t, func() bool {
		s, ok := sink.LastState()
		return ok && s == model.PlaybackStatePaused
	}, waitFor, tick)

	require.NoError(t, p.Play())
	assert.Eventually(t, func() bool {
		s, ok := sink.LastState()
		return ok && s == model.PlaybackStatePlaying
	}, waitFor, tick)

	// Demand another round and finish both streams.
	for _, typ := range []model.MediaSourceType{model.MediaSourceTypeAudio, model.MediaSourceTypeVideo} {
		p.ctx.StreamInfo[typ].AppSrc.(*simulated.AppSrc).RequestData(1)
	}
	drain(t, p)

	events = sink.NeedDataEvents()
	require.Len(t, events, 4)
	// While PLAYING the demand threshold rises to 24 frames.
	assert.Equal(t, 24, events[len(events)-1].FrameCount)

	audioReq, _ = needDataBySource(events, "audio")
	videoReq, _ = needDataBySource(events, "video")
	require.NoError(t, p.HaveData(model.HaveDataStatusEOS, 0, audioReq.RequestID, []model.MediaSegment{audioSegment(20 * time.Millisecond)}))
	require.NoError(t, p.HaveData(model.HaveDataStatusEOS, 0, videoReq.RequestID, []model.MediaSegment{videoSegment(20 * time.Millisecond)}))

	assert.Eventually(t, func() bool {
		return sink.CountState(model.PlaybackStateEndOfStream) == 1
	}, waitFor, tick)

	require.NoError(t, p.Stop())
	drain(t, p)
	s, ok := sink.LastState()
	require.True(t, ok)
	assert.Equal(t, model.PlaybackStateStopped, s)
	assert.True(t, p.Context().Terminal())
}

func TestAttachSourceRejectedWhilePlaying(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := newTestPlayer(t, sink, nil)
	loadAndAttachAV(t, p)

	require.NoError(t, p.Play())
	assert.Eventually(t, func() bool {
		return p.Context().State() == model.PlaybackStatePlaying
	}, waitFor, tick)

	err := p.AttachSource(audioSource(), false)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestLoadRejectedTwice(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := newTestPlayer(t, sink, nil)
	loadAndAttachAV(t, p)

	assert.Eventually(t, func() bool {
		return p.Context().State() != model.PlaybackStateIdle
	}, waitFor, tick)
	assert.ErrorIs(t, p.Load("video/mp4", "other"), ErrInvalidState)
}

func TestSetPositionBeforePauseRecordsStartPosition(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := newTestPlayer(t, sink, nil)
	require.NoError(t, p.Load("video/mp4", "stream"))
	require.NoError(t, p.SetPosition(3*time.Second))
	drain(t, p)

	assert.Equal(t, 3*time.Second, p.ctx.StartPosition)
	pipeline := p.ctx.Pipeline.(*simulated.Pipeline)
	assert.Empty(t, pipeline.Seeks())
}

func TestSetPositionAfterPauseSeeksAndRearmsDemand(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := newTestPlayer(t, sink, nil)
	loadAndAttachAV(t, p)
	require.NoError(t, p.Pause())
	drain(t, p)
	before := len(sink.NeedDataEvents())

	assert.Eventually(t, func() bool { return p.ctx.EverPaused() }, waitFor, tick)
	require.NoError(t, p.SetPosition(5*time.Second))
	drain(t, p)

	pipeline := p.ctx.Pipeline.(*simulated.Pipeline)
	seeks := pipeline.Seeks()
	require.Len(t, seeks, 1)
	assert.Equal(t, 5*time.Second, seeks[0].Position)
	assert.NotZero(t, seeks[0].Flags&mediaframework.SeekFlagFlush)
	assert.NotZero(t, seeks[0].Flags&mediaframework.SeekFlagKeyUnit)

	// NeedData re-armed for both attached sources.
	assert.Eventually(t, func() bool {
		return len(sink.NeedDataEvents()) >= before+2
	}, waitFor, tick)
}

// TestSecondarySessionAppliesPropertyBeforeGeometry: a sub-1080p
// session marks the first video sink secondary before applying geometry.
func TestSecondarySessionAppliesPropertyBeforeGeometry(t *testing.T) {
	sink := callback.NewRecordingSink()
	cfg := DefaultConfig()
	deps := Deps{Sink: sink, Config: cfg}
	p := NewGenericPlayer(uuid.NewString(), model.VideoRequirements{MaxWidth: 1280, MaxHeight: 720}, deps)
	t.Cleanup(func() {
		p.Destroy()
		p.Join()
	})
	require.True(t, p.Context().IsSecondaryVideo)

	require.NoError(t, p.SetVideoWindow(0, 0, 1280, 720))
	drain(t, p)

	videoSink := simulated.NewElement("westerossink0", "Sink/Video")
	p.ElementAdded(videoSink)
	drain(t, p)

	secondary, ok := videoSink.GetProperty("secondary-video")
	require.True(t, ok)
	assert.Equal(t, true, secondary)
	rectangle, ok := videoSink.GetProperty("rectangle")
	require.True(t, ok)
	assert.Equal(t, "0,0,1280,720", rectangle)

	// Geometry is consumed exactly once: a second sink sees nothing.
	other := simulated.NewElement("westerossink1", "Sink/Video")
	p.ElementAdded(other)
	drain(t, p)
	_, ok = other.GetProperty("rectangle")
	assert.False(t, ok)
}

func TestPrimarySessionSkipsSecondaryProperty(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := newTestPlayer(t, sink, nil)
	require.False(t, p.Context().IsSecondaryVideo)

	videoSink := simulated.NewElement("westerossink0", "Sink/Video")
	p.ElementAdded(videoSink)
	drain(t, p)

	_, ok := videoSink.GetProperty("secondary-video")
	assert.False(t, ok)
}

func TestVolumeAndMuteRoundTrip(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := newTestPlayer(t, sink, nil)

	require.NoError(t, p.SetVolume(0.31))
	require.NoError(t, p.SetMute(true))
	drain(t, p)

	volume, ok := p.GetVolume()
	require.True(t, ok)
	assert.InDelta(t, 0.31, volume, 1e-9)
	mute, ok := p.GetMute()
	require.True(t, ok)
	assert.True(t, mute)
}

func TestGetStatsParsesSinkStructure(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := newTestPlayer(t, sink, nil)

	_, err := p.GetStats()
	assert.ErrorIs(t, err, ErrNoVideoSink)

	videoSink := simulated.NewElement("westerossink0", "Sink/Video")
	videoSink.SetProperty("stats", map[string]interface{}{
		"rendered": uint64(1200),
		"dropped":  uint64(3),
	})
	p.ElementAdded(videoSink)
	drain(t, p)

	stats, err := p.GetStats()
	require.NoError(t, err)
	assert.Equal(t, uint64(1200), stats.Rendered)
	assert.Equal(t, uint64(3), stats.Dropped)
}

func TestQosEventKeyedByElementClass(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := newTestPlayer(t, sink, nil)
	pipeline := p.ctx.Pipeline.(*simulated.Pipeline)

	decoder := simulated.NewElement("avdec0", "Codec/Decoder/Video")
	pipeline.PostQOS(decoder, qosStats(100, 4))

	assert.Eventually(t, func() bool {
		events := sink.QosSources()
		return len(events) == 1 && events[0] == "video"
	}, waitFor, tick)
}

func TestBusErrorTerminatesSession(t *testing.T) {
	sink := callback.NewRecordingSink()
	p := newTestPlayer(t, sink, nil)
	pipeline := p.ctx.Pipeline.(*simulated.Pipeline)

	pipeline.PostError(pipeline, assert.AnError)

	assert.Eventually(t, func() bool {
		s, ok := sink.LastState()
		return ok && s == model.PlaybackStateFailure
	}, waitFor, tick)
	assert.Equal(t, 1, sink.ErrorCount())
	assert.True(t, p.Context().Terminal())
}
