// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package player

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/rapidaai/rialto/internal/decryption"
	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/model"
	"github.com/rapidaai/rialto/internal/shm"
	"github.com/rapidaai/rialto/internal/task"
)

// onNeedData is the appsrc need-data callback. It runs on the media
// framework's streaming thread and therefore does nothing but enqueue and
// copy scalar arguments.
func (p *GenericPlayer) onNeedData(t model.MediaSourceType) {
	p.worker.Enqueue(task.New("NeedData:"+sourceID(t), func() {
		p.issueNeedData(t)
	}))
}

// issueNeedData allocates the shared-memory partition, registers a fresh
// requestId and notifies the client.
func (p *GenericPlayer) issueNeedData(t model.MediaSourceType) {
	if p.ctx.Terminal() {
		return
	}
	info, ok := p.ctx.StreamInfo[t]
	if !ok {
		return
	}

	partition, err := p.deps.ShmRegion.Allocate(p.ctx.SessionID, t)
	if err != nil {
		p.fail(fmt.Errorf("need data: allocate partition: %w", err))
		return
	}
	info.Partition = partition

	requestID := uuid.NewString()
	p.requests.add(requestID, t)
	p.deps.Metrics.NeedDataIssued()

	p.deps.Sink.NeedMediaData(p.ctx.SessionID, sourceID(t), p.frameThreshold(), requestID, partition)
}

// HaveData is the client's reply to a NeedMediaData request. segments
// carries the in-band segment vector when the client parsed samples
// itself; when nil, numFrames frames are read back out of the
// shared-memory partition.
func (p *GenericPlayer) HaveData(status model.HaveDataStatus, numFrames int, requestID string, segments []model.MediaSegment) error {
	p.worker.Enqueue(task.New("HaveData", func() {
		p.processHaveData(status, numFrames, requestID, segments)
	}))
	return nil
}

func (p *GenericPlayer) processHaveData(status model.HaveDataStatus, numFrames int, requestID string, segments []model.MediaSegment) {
	t, known := p.requests.take(requestID)
	if !known || t == model.MediaSourceTypeUnknown {
		// Stale response: the request was superseded by a flush, remove or
		// stop. Ignore.
		p.deps.Metrics.HaveDataStale()
		return
	}
	info, ok := p.ctx.StreamInfo[t]
	if !ok {
		p.deps.Metrics.HaveDataStale()
		return
	}
	p.deps.Metrics.HaveDataProcessed()

	switch status {
	case model.HaveDataStatusOK, model.HaveDataStatusEOS:
		if segments == nil {
			reader, err := p.deps.ShmRegion.Reader(p.ctx.SessionID, t, info.Partition.MediaDataOffset, numFrames)
			if err != nil {
				p.fail(fmt.Errorf("have data: shm lookup: %w", err))
				return
			}
			segments, err = reader.ReadFrames(numFrames)
			if err != nil {
				if errors.Is(err, shm.ErrUnknownMetadataVersion) {
					p.fail(fmt.Errorf("have data: %w", err))
					return
				}
				p.fail(fmt.Errorf("have data: read frames: %w", err))
				return
			}
		}
		p.attachSamples(t, info, segments)
		if status == model.HaveDataStatusEOS {
			p.setEos(t, info)
		}
	case model.HaveDataStatusError, model.HaveDataStatusNoAvailableSamples:
		// Producer error is equivalent to NO_AVAILABLE_SAMPLES for recovery
		// purposes: re-demand on a timer.
		p.scheduleResend(t)
	}
}

func (p *GenericPlayer) scheduleResend(t model.MediaSourceType) {
	delay := p.deps.Config.NeedDataResendDefault
	if info, ok := p.ctx.StreamInfo[t]; ok && info.LowLatency {
		delay = p.deps.Config.NeedDataResendLowLatency
	}
	scheduled := p.resend.Schedule(t, delay, func() {
		p.onNeedData(t)
	})
	if scheduled {
		p.deps.Metrics.NeedDataResend()
	}
}

// attachSamples converts each MediaSegment into a media buffer and pushes
// it into t's appsrc in order.
func (p *GenericPlayer) attachSamples(t model.MediaSourceType, info *StreamInfo, segments []model.MediaSegment) {
	for i := range segments {
		p.attachSample(t, info, &segments[i])
	}
	if len(segments) > 0 && p.ctx.NoteFirstData(t) {
		p.deps.Sink.NetworkStateChange(p.ctx.SessionID, model.NetworkStateBuffered)
		if p.ctx.TakePausedReport() {
			p.ctx.SetState(model.PlaybackStatePaused)
			p.deps.Sink.PlaybackStateChange(p.ctx.SessionID, model.PlaybackStatePaused)
		}
	}
}

func (p *GenericPlayer) attachSample(t model.MediaSourceType, info *StreamInfo, seg *model.MediaSegment) {
	buf := mediaframework.NewBuffer(seg.Data, seg.PTS, seg.DTS)
	if buf == nil {
		p.fail(errors.New("attach sample: buffer allocation failed"))
		return
	}

	p.updateCapsFromSegment(info, seg)
	buf.Caps = info.AttachedCaps

	if seg.EncryptionDescriptor != nil {
		desc := *seg.EncryptionDescriptor
		p.deps.Protection.Add(buf, desc)
		p.deps.Decryption.IncrementSessionIDUsageCounter(desc.KeySessionID)
		buf.OnRelease(func() {
			p.deps.Protection.Remove(buf)
			p.deps.Decryption.DecrementSessionIDUsageCounter(desc.KeySessionID)
		})

		// The decryptor element consumes the sidecar on the way through; a
		// non-OK status is logged and the buffer still pushed.
		st := p.deps.Decryption.DecryptSubsamples(
			desc.KeySessionID, buf,
			desc.SubsamplesBuffer, desc.SubsampleCount,
			desc.IVBuffer, desc.KeyIDBuffer,
			desc.InitWithLast15,
			info.AttachedCaps,
		)
		if st != decryption.StatusOK {
			p.deps.Logger.Warnw("decrypt returned non-OK", "session", p.ctx.SessionID, "source", sourceID(t), "status", int(st))
		}
	}

	switch ret := info.AppSrc.PushBuffer(buf); ret {
	case mediaframework.FlowOK:
		p.deps.Metrics.BufferPushed()
		p.profiler.MarkExit(info.AppSrc)
	case mediaframework.FlowUnexpected, mediaframework.FlowWrongState:
		// Post-EOS or below-PAUSED pushes are dropped silently.
		p.deps.Metrics.BufferDropped()
	default:
		p.deps.Metrics.BufferDropped()
		p.deps.Logger.Warnw("push rejected", "session", p.ctx.SessionID, "source", sourceID(t), "flow", int(ret))
	}

	// Graph-side ownership ends here in the reference implementation: the
	// simulated sink consumes bytes immediately, so the sidecar release that
	// a real decryptor performs at buffer finalize runs now, on every path.
	buf.Release()
}

// updateCapsFromSegment updates the appsrc caps in place when a segment's
// metadata disagrees with the caps last attached for that source.
func (p *GenericPlayer) updateCapsFromSegment(info *StreamInfo, seg *model.MediaSegment) {
	current := info.AttachedCaps
	updated := current

	switch seg.Type {
	case model.MediaSourceTypeAudio:
		if seg.Channels > 0 && !capsFieldEquals(updated, "channels", seg.Channels) {
			updated = updated.With("channels", seg.Channels)
		}
		if seg.SampleRate > 0 && !capsFieldEquals(updated, "rate", seg.SampleRate) {
			updated = updated.With("rate", seg.SampleRate)
		}
	case model.MediaSourceTypeVideo:
		if seg.Width > 0 && !capsFieldEquals(updated, "width", seg.Width) {
			updated = updated.With("width", seg.Width)
		}
		if seg.Height > 0 && !capsFieldEquals(updated, "height", seg.Height) {
			updated = updated.With("height", seg.Height)
		}
		if seg.FrameRateNum > 0 && seg.FrameRateDen > 0 {
			fr := [2]int{seg.FrameRateNum, seg.FrameRateDen}
			if !capsFieldEquals(updated, "framerate", fr) {
				updated = updated.With("framerate", fr)
			}
		}
	}

	// Segment alignment becomes a caps field when first observed.
	if seg.SegmentAlignment != model.SegmentAlignmentNone {
		if _, has := updated.Get("alignment"); !has {
			updated = updated.With("alignment", seg.SegmentAlignment)
		}
	}

	if updated != current {
		info.AttachedCaps = updated
		info.AppSrc.SetCaps(updated)
	}
}

func capsFieldEquals(c *mediaframework.Caps, field string, want interface{}) bool {
	v, ok := c.Get(field)
	return ok && v == want
}

// setEos marks t's stream ended; once every attached source has drained to
// EOS the container forwards a single EOS, which the reference pipeline
// reports on the bus.
func (p *GenericPlayer) setEos(t model.MediaSourceType, info *StreamInfo) {
	if ret := info.AppSrc.EndOfStream(); ret != mediaframework.FlowOK {
		p.deps.Logger.Debugw("end-of-stream already signalled", "session", p.ctx.SessionID, "source", sourceID(t))
	}
	if p.ctx.Source != nil && p.ctx.Source.HandleChildEOS(t) {
		if pipe, ok := p.ctx.Pipeline.(interface {
			PostEOS(src mediaframework.Element)
		}); ok {
			pipe.PostEOS(mediaframework.Element(p.ctx.Pipeline))
		}
	}
}
