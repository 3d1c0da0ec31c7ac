// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package protection

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/rialto/internal/mediaframework"
	"github.com/rapidaai/rialto/internal/model"
)

func descriptor(keySession string) model.EncryptionDescriptor {
	return model.EncryptionDescriptor{
		KeySessionID:     keySession,
		SubsampleCount:   2,
		SubsamplesBuffer: []byte{1, 2, 3, 4},
		IVBuffer:         []byte{9, 9, 9},
		KeyIDBuffer:      []byte{7, 7},
		CipherMode:       model.CipherModeCENC,
	}
}

func TestAddGetRemoveRoundTrip(t *testing.T) {
	a := NewAdapter()
	buf := mediaframework.NewBuffer([]byte("sample"), 0, 0)

	a.Add(buf, descriptor("ks-1"))
	assert.Equal(t, int64(1), a.UsageCount("ks-1"))

	got, ok := a.Get(buf)
	require.True(t, ok)
	assert.Equal(t, "ks-1", got.KeySessionID)
	assert.Equal(t, model.CipherModeCENC, got.CipherMode)

	a.Remove(buf)
	assert.Equal(t, int64(0), a.UsageCount("ks-1"))

	_, ok = a.Get(buf)
	assert.False(t, ok)
}

func TestRemoveReleasesOwnedSubBuffers(t *testing.T) {
	a := NewAdapter()
	buf := mediaframework.NewBuffer([]byte("sample"), 0, 0)

	a.Add(buf, descriptor("ks-1"))
	got, _ := a.Get(buf)
	a.Remove(buf)

	assert.Nil(t, got.KeyIDBuffer)
	assert.Nil(t, got.IVBuffer)
	assert.Nil(t, got.SubsamplesBuffer)
}

func TestDoubleRemoveIsNoop(t *testing.T) {
	a := NewAdapter()
	buf := mediaframework.NewBuffer([]byte("sample"), 0, 0)

	a.Add(buf, descriptor("ks-1"))
	a.Remove(buf)
	a.Remove(buf)

	assert.Equal(t, int64(0), a.UsageCount("ks-1"))
}

func TestUsageCounterBalancesOverManyBuffers(t *testing.T) {
	a := NewAdapter()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			buf := mediaframework.NewBuffer([]byte("s"), 0, 0)
			a.Add(buf, descriptor("ks-shared"))
			a.Remove(buf)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), a.UsageCount("ks-shared"))
}

func TestRegisterIsIdempotent(t *testing.T) {
	a := NewAdapter()
	tags := a.Register()
	assert.Equal(t, []string{"rialto", "protection"}, tags)
	assert.Equal(t, tags, a.Register())
	assert.True(t, a.Registered())
}

func TestBufferReleaseRunsFreeFuncsOnce(t *testing.T) {
	buf := mediaframework.NewBuffer([]byte("s"), 0, 0)
	calls := 0
	buf.OnRelease(func() { calls++ })
	buf.Release()
	buf.Release()
	assert.Equal(t, 1, calls)
}
