// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package session owns the process-wide registry of live player sessions:
// CreateSession/DestroySession dispatch and the sessionId → player routing
// every RPC goes through. Sessions are isolated from each other; the
// registry maps ids to players and reads a player's context only for the
// state reported by Snapshot.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/rapidaai/rialto/internal/model"
	"github.com/rapidaai/rialto/internal/player"
	"github.com/rapidaai/rialto/internal/sessionstore"
	"github.com/rapidaai/rialto/internal/webaudio"
	"github.com/rapidaai/rialto/pkg/commons"
)

// ErrSessionNotFound is the misuse-category reply for an RPC referencing an
// unknown sessionId.
var ErrSessionNotFound = errors.New("session: not found")

// Registry tracks every live session in the process.
type Registry struct {
	logger commons.Logger
	store  sessionstore.Store

	playerDeps   player.Deps
	webAudioDeps webaudio.Deps

	mu       sync.Mutex
	generic  map[string]*player.GenericPlayer
	webAudio map[string]*webaudio.Player
}

// NewRegistry constructs an empty registry. playerDeps/webAudioDeps are
// templates: each created session gets a copy with its own defaults filled
// in by the player constructors.
func NewRegistry(logger commons.Logger, store sessionstore.Store, playerDeps player.Deps, webAudioDeps webaudio.Deps) *Registry {
	if logger == nil {
		logger = commons.NewNoopLogger()
	}
	if store == nil {
		store = sessionstore.Noop{}
	}
	return &Registry{
		logger:       logger,
		store:        store,
		playerDeps:   playerDeps,
		webAudioDeps: webAudioDeps,
		generic:      make(map[string]*player.GenericPlayer),
		webAudio:     make(map[string]*webaudio.Player),
	}
}

// CreateSession creates a generic playback session and returns its id.
func (r *Registry) CreateSession(ctx context.Context, maxWidth, maxHeight int) (string, error) {
	sessionID := uuid.NewString()
	reqs := model.VideoRequirements{MaxWidth: maxWidth, MaxHeight: maxHeight}
	p := player.NewGenericPlayer(sessionID, reqs, r.playerDeps)

	r.mu.Lock()
	r.generic[sessionID] = p
	r.mu.Unlock()

	if err := r.store.Save(ctx, &sessionstore.Session{
		SessionID: sessionID,
		Kind:      sessionstore.KindGeneric,
		MaxWidth:  maxWidth,
		MaxHeight: maxHeight,
	}); err != nil {
		r.logger.Warnw("session audit save failed", "session", sessionID, "err", err)
	}

	r.logger.Infow("session created", "session", sessionID, "maxWidth", maxWidth, "maxHeight", maxHeight)
	return sessionID, nil
}

// Get returns the generic player for sessionID.
func (r *Registry) Get(sessionID string) (*player.GenericPlayer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.generic[sessionID]
	return p, ok
}

// DestroySession stops and removes a generic session.
func (r *Registry) DestroySession(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	p, ok := r.generic[sessionID]
	delete(r.generic, sessionID)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	p.Stop()
	p.Destroy()
	p.Join()

	if err := r.store.UpdateStatus(ctx, sessionID, sessionstore.StatusStopped, "destroyed"); err != nil {
		r.logger.Debugw("session audit update failed", "session", sessionID, "err", err)
	}
	r.logger.Infow("session destroyed", "session", sessionID)
	return nil
}

// CreateWebAudioPlayer creates a web-audio session.
func (r *Registry) CreateWebAudioPlayer(ctx context.Context, pcm webaudio.PCMConfig, mime string, priority int) (string, error) {
	sessionID := uuid.NewString()
	p, err := webaudio.New(sessionID, pcm, mime, priority, r.webAudioDeps)
	if err != nil {
		return "", fmt.Errorf("create web audio player: %w", err)
	}

	r.mu.Lock()
	r.webAudio[sessionID] = p
	r.mu.Unlock()

	if err := r.store.Save(ctx, &sessionstore.Session{
		SessionID: sessionID,
		Kind:      sessionstore.KindWebAudio,
		Detail:    mime,
	}); err != nil {
		r.logger.Warnw("session audit save failed", "session", sessionID, "err", err)
	}

	r.logger.Infow("web audio player created", "session", sessionID, "mime", mime, "priority", priority)
	return sessionID, nil
}

// GetWebAudio returns the web-audio player for sessionID.
func (r *Registry) GetWebAudio(sessionID string) (*webaudio.Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.webAudio[sessionID]
	return p, ok
}

// DestroyWebAudioPlayer tears down a web-audio session.
func (r *Registry) DestroyWebAudioPlayer(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	p, ok := r.webAudio[sessionID]
	delete(r.webAudio, sessionID)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	p.Destroy()

	if err := r.store.UpdateStatus(ctx, sessionID, sessionstore.StatusStopped, "destroyed"); err != nil {
		r.logger.Debugw("session audit update failed", "session", sessionID, "err", err)
	}
	return nil
}

// NoteStatus forwards a lifecycle transition to the audit store; the rpc
// layer calls it on load/attach/play/stop.
func (r *Registry) NoteStatus(ctx context.Context, sessionID, status, detail string) {
	if err := r.store.UpdateStatus(ctx, sessionID, status, detail); err != nil {
		r.logger.Debugw("session audit update failed", "session", sessionID, "status", status, "err", err)
	}
}

// Summary is the read-only snapshot the admin surface renders.
type Summary struct {
	SessionID string `json:"sessionId"`
	Kind      string `json:"kind"`
	State     string `json:"state"`
}

// Snapshot lists every live session.
func (r *Registry) Snapshot() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Summary, 0, len(r.generic)+len(r.webAudio))
	for id, p := range r.generic {
		out = append(out, Summary{SessionID: id, Kind: sessionstore.KindGeneric, State: p.Context().State().String()})
	}
	for id, p := range r.webAudio {
		out = append(out, Summary{SessionID: id, Kind: sessionstore.KindWebAudio, State: p.State().String()})
	}
	return out
}

// Close destroys every live session, for server shutdown.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	genericIDs := make([]string, 0, len(r.generic))
	for id := range r.generic {
		genericIDs = append(genericIDs, id)
	}
	webAudioIDs := make([]string, 0, len(r.webAudio))
	for id := range r.webAudio {
		webAudioIDs = append(webAudioIDs, id)
	}
	r.mu.Unlock()

	for _, id := range genericIDs {
		if err := r.DestroySession(ctx, id); err != nil {
			r.logger.Debugw("destroy on close", "session", id, "err", err)
		}
	}
	for _, id := range webAudioIDs {
		if err := r.DestroyWebAudioPlayer(ctx, id); err != nil {
			r.logger.Debugw("destroy on close", "session", id, "err", err)
		}
	}
}
