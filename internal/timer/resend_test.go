// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/rialto/internal/model"
)

func TestScheduleRefusesSecondTimerForSameType(t *testing.T) {
	r := New()
	defer r.CancelAll()

	fired := make(chan struct{}, 2)
	require.True(t, r.Schedule(model.MediaSourceTypeAudio, 20*time.Millisecond, func() { fired <- struct{}{} }))
	assert.False(t, r.Schedule(model.MediaSourceTypeAudio, 20*time.Millisecond, func() { fired <- struct{}{} }))
	assert.True(t, r.Active(model.MediaSourceTypeAudio))

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("resend timer never fired")
	}
	// The slot frees once the timer fires.
	assert.Eventually(t, func() bool {
		return !r.Active(model.MediaSourceTypeAudio)
	}, time.Second, 5*time.Millisecond)
}

func TestScheduleAllowsDistinctTypes(t *testing.T) {
	r := New()
	defer r.CancelAll()

	assert.True(t, r.Schedule(model.MediaSourceTypeAudio, time.Minute, func() {}))
	assert.True(t, r.Schedule(model.MediaSourceTypeVideo, time.Minute, func() {}))
}

func TestCancelPreventsFiring(t *testing.T) {
	r := New()

	var fired atomic.Int32
	require.True(t, r.Schedule(model.MediaSourceTypeVideo, 30*time.Millisecond, func() { fired.Add(1) }))
	r.Cancel(model.MediaSourceTypeVideo)

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.False(t, r.Active(model.MediaSourceTypeVideo))
}

func TestWatchdogTicksUntilStopped(t *testing.T) {
	var ticks atomic.Int32
	w := NewWatchdog(10*time.Millisecond, func() { ticks.Add(1) })
	w.Start()

	assert.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, 5*time.Millisecond)

	w.Stop()
	w.Stop() // idempotent
	w.Wait()

	settled := ticks.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, ticks.Load())
}
