// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package caps translates a typed model.MediaSource description into an
// immutable mediaframework.Caps object: one Build switch over
// model.MediaSourceType, no builder hierarchy.
package caps

import "fmt"

// RawAudioFormat derives the GStreamer-style raw-audio format string
// `{S|U|F}{8|16|24|32|64}{BE|LE}` from a PCM descriptor.
func RawAudioFormat(sampleSize int, isSigned, isFloat, isBigEndian bool) string {
	kind := "U"
	switch {
	case isFloat:
		kind = "F"
	case isSigned:
		kind = "S"
	}
	endian := "LE"
	if isBigEndian {
		endian = "BE"
	}
	if sampleSize == 8 {
		// 8-bit PCM has no endianness suffix.
		return fmt.Sprintf("%s8", kind)
	}
	return fmt.Sprintf("%s%d%s", kind, sampleSize, endian)
}

// fallbackChannelMasks holds the framework's well-known default channel
// masks for common channel counts. Values follow the
// conventional front-left/front-right-first SMPTE ordering.
var fallbackChannelMasks = map[int]uint64{
	1: 0x4,         // FRONT_CENTER
	2: 0x3,         // FRONT_LEFT | FRONT_RIGHT
	6: 0x3F,        // 5.1
	8: 0x63F,       // 7.1
}

// ChannelMask returns the fallback channel-mask bit field for channels
// speakers, or 0 if no well-known mask exists for that count.
func ChannelMask(channels int) uint64 {
	return fallbackChannelMasks[channels]
}
