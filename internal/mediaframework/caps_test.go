// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package mediaframework

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapsEqualWithByteSliceFields(t *testing.T) {
	a := NewCaps("audio/mpeg", map[string]interface{}{
		"channels":   2,
		"codec_data": []byte{0x12, 0x10},
	})
	same := NewCaps("audio/mpeg", map[string]interface{}{
		"channels":   2,
		"codec_data": []byte{0x12, 0x10},
	})
	other := NewCaps("audio/mpeg", map[string]interface{}{
		"channels":   2,
		"codec_data": []byte{0x11, 0x90},
	})

	assert.True(t, a.Equal(same))
	assert.False(t, a.Equal(other))
}

func TestCapsEqualMixedFieldTypes(t *testing.T) {
	a := NewCaps("video/x-h264", map[string]interface{}{
		"width":     1920,
		"framerate": [2]int{30000, 1001},
	})
	b := NewCaps("video/x-h264", map[string]interface{}{
		"width":     1920,
		"framerate": [2]int{30000, 1001},
	})
	c := NewCaps("video/x-h264", map[string]interface{}{
		"width":     1920,
		"framerate": [2]int{25, 1},
	})

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(NewCaps("video/x-h265", a.Fields())))
}

func TestCapsEqualNil(t *testing.T) {
	var a *Caps
	assert.True(t, a.Equal(nil))
	assert.False(t, a.Equal(NewCaps("audio/x-raw", nil)))
	assert.False(t, NewCaps("audio/x-raw", nil).Equal(nil))
}

func TestCapsWithDoesNotMutateOriginal(t *testing.T) {
	a := NewCaps("audio/x-raw", map[string]interface{}{"rate": 48000})
	b := a.With("rate", 44100)

	rate, _ := a.Get("rate")
	assert.Equal(t, 48000, rate)
	rate, _ = b.Get("rate")
	assert.Equal(t, 44100, rate)
}
