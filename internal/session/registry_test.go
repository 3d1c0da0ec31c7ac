// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/rialto/internal/player"
	"github.com/rapidaai/rialto/internal/webaudio"
)

func newTestRegistry() *Registry {
	return NewRegistry(nil, nil, player.Deps{}, webaudio.Deps{})
}

func TestCreateAndDestroySession(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	id, err := r.CreateSession(ctx, 1920, 1080)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	p, ok := r.Get(id)
	require.True(t, ok)
	assert.False(t, p.Context().IsSecondaryVideo)

	require.NoError(t, r.DestroySession(ctx, id))
	_, ok = r.Get(id)
	assert.False(t, ok)
}

func TestSecondaryVideoSession(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	id, err := r.CreateSession(ctx, 1280, 720)
	require.NoError(t, err)
	defer r.DestroySession(ctx, id)

	p, ok := r.Get(id)
	require.True(t, ok)
	assert.True(t, p.Context().IsSecondaryVideo)
}

func TestDestroyUnknownSession(t *testing.T) {
	r := newTestRegistry()
	err := r.DestroySession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestWebAudioLifecycle(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	id, err := r.CreateWebAudioPlayer(ctx, webaudio.PCMConfig{Rate: 48000, Channels: 2, SampleSize: 16}, "audio/x-raw", 1)
	require.NoError(t, err)

	_, ok := r.GetWebAudio(id)
	require.True(t, ok)
	// Web-audio and generic id spaces do not overlap.
	_, ok = r.Get(id)
	assert.False(t, ok)

	require.NoError(t, r.DestroyWebAudioPlayer(ctx, id))
	assert.ErrorIs(t, r.DestroyWebAudioPlayer(ctx, id), ErrSessionNotFound)
}

func TestSnapshotListsEverySession(t *testing.T) {
	r := newTestRegistry()
	ctx := context.Background()

	genericID, err := r.CreateSession(ctx, 1920, 1080)
	require.NoError(t, err)
	webAudioID, err := r.CreateWebAudioPlayer(ctx, webaudio.PCMConfig{Rate: 48000, Channels: 2, SampleSize: 16}, "audio/x-raw", 1)
	require.NoError(t, err)

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 2)
	ids := map[string]string{}
	for _, s := range snapshot {
		ids[s.SessionID] = s.Kind
	}
	assert.Equal(t, "generic", ids[genericID])
	assert.Equal(t, "webaudio", ids[webAudioID])

	r.Close(ctx)
	assert.Empty(t, r.Snapshot())
}
