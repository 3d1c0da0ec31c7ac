// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package model holds the data shapes shared by the caps builder, the
// protection-metadata adapter, the source orchestrator and the player: the
// wire-adjacent data shapes of the playback engine. None of these
// types know about the media framework; they are plain structs translated
// into mediaframework.Caps / mediaframework.Buffer by the packages that do.
package model

import "time"

// MediaSourceType is the tag every per-source table in this repository is
// keyed by.
type MediaSourceType int

const (
	MediaSourceTypeUnknown MediaSourceType = iota
	MediaSourceTypeAudio
	MediaSourceTypeVideo
	MediaSourceTypeSubtitle
)

func (t MediaSourceType) String() string {
	switch t {
	case MediaSourceTypeAudio:
		return "AUDIO"
	case MediaSourceTypeVideo:
		return "VIDEO"
	case MediaSourceTypeSubtitle:
		return "SUBTITLE"
	default:
		return "UNKNOWN"
	}
}

// SourceTypeFromID maps a client-facing sourceId ("audio", "video",
// "subtitle") back to its MediaSourceType. Unknown ids map to
// MediaSourceTypeUnknown, which callers reject as misuse.
func SourceTypeFromID(id string) MediaSourceType {
	switch id {
	case "audio", "AUDIO":
		return MediaSourceTypeAudio
	case "video", "VIDEO":
		return MediaSourceTypeVideo
	case "subtitle", "SUBTITLE":
		return MediaSourceTypeSubtitle
	default:
		return MediaSourceTypeUnknown
	}
}

// PlaybackStats is the {rendered, dropped} pair GetStats parses out of the
// video sink's stats structure.
type PlaybackStats struct {
	Rendered uint64
	Dropped  uint64
}

// SegmentAlignment says how a source aligns its segments: not at all, on
// NAL boundaries, or on access units.
type SegmentAlignment int

const (
	SegmentAlignmentNone SegmentAlignment = iota
	SegmentAlignmentNAL
	SegmentAlignmentAU
)

// CipherMode mirrors EncryptionDescriptor.cipherMode.
type CipherMode int

const (
	CipherModeUnknown CipherMode = iota
	CipherModeCENC
	CipherModeCBC1
	CipherModeCENS
	CipherModeCBCS
)

// CodecData is the buffer-or-string codec-data union, modeled as a
// tagged variant rather than an interface{} so callers can switch on IsText
// without a type assertion.
type CodecData struct {
	Bytes  []byte
	Text   string
	IsText bool
}

// EncryptionDescriptor carries the per-segment encryption parameters the
// decryptor consumes.
type EncryptionDescriptor struct {
	KeySessionID         string
	SubsampleCount       int
	SubsamplesBuffer     []byte
	IVBuffer             []byte
	KeyIDBuffer          []byte
	InitWithLast15       bool
	CipherMode           CipherMode
	Crypt                int
	Skip                 int
	EncryptionPatternSet bool
	// DecryptionServiceRef names the external decryption-service
	// collaborator this descriptor's buffer must be routed to; the
	// interface itself lives in internal/decryption.
	DecryptionServiceRef string
}

// MediaSource is an AttachSource descriptor: what the client
// declared about a source before any segment data has arrived. CapsBuilder
// consumes this to produce an immutable mediaframework.Caps.
type MediaSource struct {
	Type             MediaSourceType
	MimeType         string
	SegmentAlignment SegmentAlignment
	StreamFormat     string
	CodecData        CodecData
	HasDrm           bool

	// Audio fields, valid when Type == MediaSourceTypeAudio.
	Channels int
	Rate     int

	// Raw-PCM fields, valid when MimeType == "audio/x-raw".
	SampleSize  int
	IsBigEndian bool
	IsSigned    bool
	IsFloat     bool

	// Video fields, valid when Type == MediaSourceTypeVideo.
	Width        int
	Height       int
	FrameRateNum int
	FrameRateDen int

	// IsDolbyVision marks the Dolby-Vision video variant.
	IsDolbyVision      bool
	DolbyVisionProfile int
}

// MediaSegment is a single unit of sample data delivered via HaveData,
// with its audio/video/Dolby-Vision variants modeled as one tagged struct
// per MediaSourceType rather than a class hierarchy.
type MediaSegment struct {
	Type                 MediaSourceType
	PTS                  time.Duration
	DTS                  time.Duration
	Data                 []byte
	ExtraData            []byte
	CodecData            CodecData
	SegmentAlignment     SegmentAlignment
	EncryptionDescriptor *EncryptionDescriptor

	// Audio fields.
	SampleRate int
	Channels   int

	// Video fields.
	Width        int
	Height       int
	FrameRateNum int
	FrameRateDen int

	IsDolbyVision      bool
	DolbyVisionProfile int
}

// NeedDataRequest is generated when the pipeline signals demand.
type NeedDataRequest struct {
	RequestID       string
	MediaSourceType MediaSourceType
	ShmPartition    string
	MaxFrames       int
}

// HaveDataStatus is the client's reply status to a NeedDataRequest.
type HaveDataStatus int

const (
	HaveDataStatusOK HaveDataStatus = iota
	HaveDataStatusEOS
	HaveDataStatusError
	HaveDataStatusNoAvailableSamples
)

// VideoGeometry is a video rectangle ({x,y,w,h}).
type VideoGeometry struct {
	X, Y, W, H int
}

// VideoRequirements configures CreateSession's secondary-video decision.
type VideoRequirements struct {
	MaxWidth  int
	MaxHeight int
}

// IsSecondary reports whether both dimensions fall below 1920x1080, the
// secondary-video threshold.
func (r VideoRequirements) IsSecondary() bool {
	return r.MaxWidth < 1920 && r.MaxHeight < 1080
}

// AudioAttributes is the record built for the audio-track-codec-channel
// switch helper.
type AudioAttributes struct {
	CodecParam          string
	NumChannels         int
	SampleRate          int
	CodecSpecificConfig []byte
}

// PlaybackState is the client-visible state enum of the PlaybackStateChange
// event and the web-audio player's state event.
type PlaybackState int

const (
	PlaybackStateIdle PlaybackState = iota
	PlaybackStatePaused
	PlaybackStatePlaying
	PlaybackStateStopped
	PlaybackStateEndOfStream
	PlaybackStateFailure
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackStateIdle:
		return "IDLE"
	case PlaybackStatePaused:
		return "PAUSED"
	case PlaybackStatePlaying:
		return "PLAYING"
	case PlaybackStateStopped:
		return "STOPPED"
	case PlaybackStateEndOfStream:
		return "END_OF_STREAM"
	case PlaybackStateFailure:
		return "FAILURE"
	default:
		return "UNKNOWN"
	}
}

// NetworkState is the NetworkStateChange event enum.
type NetworkState int

const (
	NetworkStateBuffering NetworkState = iota
	NetworkStateBuffered
)

func (s NetworkState) String() string {
	if s == NetworkStateBuffered {
		return "BUFFERED"
	}
	return "BUFFERING"
}
