// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package rpc gives the client-facing playback surface a concrete
// transport: one gRPC service with a unary Execute call carrying a dynamic
// command envelope, and a server-streaming Events call delivering playback
// events. The envelope is a protobuf Struct rather than a generated
// message type because the wire IDL belongs to the out-of-process IPC
// collaborator; the session server only commits to field names and shapes,
// which this package defines.
package rpc

import (
	"encoding/base64"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rapidaai/rialto/internal/model"
)

// Envelope field names shared with clients.
const (
	fieldCommand   = "command"
	fieldSessionID = "sessionId"
	fieldOK        = "ok"
	fieldError     = "error"
	fieldEvent     = "event"
)

func getString(s *structpb.Struct, key string) string {
	if v, ok := s.GetFields()[key]; ok {
		return v.GetStringValue()
	}
	return ""
}

func getInt(s *structpb.Struct, key string) int {
	if v, ok := s.GetFields()[key]; ok {
		return int(v.GetNumberValue())
	}
	return 0
}

func getInt64(s *structpb.Struct, key string) int64 {
	if v, ok := s.GetFields()[key]; ok {
		return int64(v.GetNumberValue())
	}
	return 0
}

func getFloat(s *structpb.Struct, key string) float64 {
	if v, ok := s.GetFields()[key]; ok {
		return v.GetNumberValue()
	}
	return 0
}

func getBool(s *structpb.Struct, key string) bool {
	if v, ok := s.GetFields()[key]; ok {
		return v.GetBoolValue()
	}
	return false
}

func getStruct(s *structpb.Struct, key string) *structpb.Struct {
	if v, ok := s.GetFields()[key]; ok {
		return v.GetStructValue()
	}
	return nil
}

func getList(s *structpb.Struct, key string) []*structpb.Value {
	if v, ok := s.GetFields()[key]; ok {
		if l := v.GetListValue(); l != nil {
			return l.GetValues()
		}
	}
	return nil
}

// getBytes decodes a base64-encoded string field; Struct has no native
// bytes kind.
func getBytes(s *structpb.Struct, key string) []byte {
	raw := getString(s, key)
	if raw == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	return data
}

func getDuration(s *structpb.Struct, key string) time.Duration {
	return time.Duration(getInt64(s, key))
}

// okResponse builds {ok: true} plus any extra response fields.
func okResponse(extra map[string]interface{}) (*structpb.Struct, error) {
	fields := map[string]interface{}{fieldOK: true}
	for k, v := range extra {
		fields[k] = v
	}
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("rpc: build response: %w", err)
	}
	return resp, nil
}

// failResponse builds {ok: false, error: msg}. Misuse-category failures
// reply through here rather than a gRPC error so the command/reply
// pairing stays 1:1.
func failResponse(err error) *structpb.Struct {
	resp, buildErr := structpb.NewStruct(map[string]interface{}{
		fieldOK:    false,
		fieldError: err.Error(),
	})
	if buildErr != nil {
		resp = &structpb.Struct{}
	}
	return resp
}

// decodeMediaSource decodes the AttachSource descriptor struct.
func decodeMediaSource(s *structpb.Struct) (model.MediaSource, error) {
	if s == nil {
		return model.MediaSource{}, fmt.Errorf("rpc: missing source descriptor")
	}
	t := model.SourceTypeFromID(getString(s, "type"))
	if t == model.MediaSourceTypeUnknown {
		return model.MediaSource{}, fmt.Errorf("rpc: unknown source type %q", getString(s, "type"))
	}
	src := model.MediaSource{
		Type:         t,
		MimeType:     getString(s, "mimeType"),
		StreamFormat: getString(s, "streamFormat"),
		HasDrm:       getBool(s, "hasDrm"),
		Channels:     getInt(s, "channels"),
		Rate:         getInt(s, "rate"),
		SampleSize:   getInt(s, "sampleSize"),
		IsBigEndian:  getBool(s, "isBigEndian"),
		IsSigned:     getBool(s, "isSigned"),
		IsFloat:      getBool(s, "isFloat"),
		Width:        getInt(s, "width"),
		Height:       getInt(s, "height"),
		FrameRateNum: getInt(s, "frameRateNum"),
		FrameRateDen: getInt(s, "frameRateDen"),

		IsDolbyVision:      getBool(s, "dolbyVision"),
		DolbyVisionProfile: getInt(s, "dolbyVisionProfile"),
	}
	switch getString(s, "alignment") {
	case "nal":
		src.SegmentAlignment = model.SegmentAlignmentNAL
	case "au":
		src.SegmentAlignment = model.SegmentAlignmentAU
	}
	if data := getBytes(s, "codecData"); data != nil {
		src.CodecData = model.CodecData{Bytes: data}
	} else if text := getString(s, "codecDataText"); text != "" {
		src.CodecData = model.CodecData{Text: text, IsText: true}
	}
	return src, nil
}

// decodeSegments decodes the optional in-band segment vector of HaveData.
func decodeSegments(values []*structpb.Value, t model.MediaSourceType) []model.MediaSegment {
	if values == nil {
		return nil
	}
	segments := make([]model.MediaSegment, 0, len(values))
	for _, v := range values {
		s := v.GetStructValue()
		if s == nil {
			continue
		}
		seg := model.MediaSegment{
			Type:       t,
			PTS:        getDuration(s, "pts"),
			DTS:        getDuration(s, "dts"),
			Data:       getBytes(s, "data"),
			SampleRate: getInt(s, "sampleRate"),
			Channels:   getInt(s, "channels"),
			Width:      getInt(s, "width"),
			Height:     getInt(s, "height"),
		}
		if enc := getStruct(s, "encryption"); enc != nil {
			seg.EncryptionDescriptor = &model.EncryptionDescriptor{
				KeySessionID:     getString(enc, "keySessionId"),
				SubsampleCount:   getInt(enc, "subsampleCount"),
				SubsamplesBuffer: getBytes(enc, "subsamples"),
				IVBuffer:         getBytes(enc, "iv"),
				KeyIDBuffer:      getBytes(enc, "keyId"),
				InitWithLast15:   getBool(enc, "initWithLast15"),
				CipherMode:       cipherModeFromString(getString(enc, "cipherMode")),
				Crypt:            getInt(enc, "crypt"),
				Skip:             getInt(enc, "skip"),
			}
			seg.EncryptionDescriptor.EncryptionPatternSet =
				seg.EncryptionDescriptor.CipherMode == model.CipherModeCENS ||
					seg.EncryptionDescriptor.CipherMode == model.CipherModeCBCS
		}
		segments = append(segments, seg)
	}
	return segments
}

func cipherModeFromString(mode string) model.CipherMode {
	switch mode {
	case "cenc":
		return model.CipherModeCENC
	case "cbc1":
		return model.CipherModeCBC1
	case "cens":
		return model.CipherModeCENS
	case "cbcs":
		return model.CipherModeCBCS
	default:
		return model.CipherModeUnknown
	}
}

func haveDataStatusFromString(status string) (model.HaveDataStatus, error) {
	switch status {
	case "ok":
		return model.HaveDataStatusOK, nil
	case "eos":
		return model.HaveDataStatusEOS, nil
	case "error":
		return model.HaveDataStatusError, nil
	case "noAvailableSamples":
		return model.HaveDataStatusNoAvailableSamples, nil
	default:
		return 0, fmt.Errorf("rpc: unknown have-data status %q", status)
	}
}
