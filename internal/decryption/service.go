// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package decryption defines the external decryption-service collaborator
// interface the source orchestrator's decryptor element calls into. This
// repository never implements DRM itself; it only depends on this narrow
// interface, so the key-system backend stays swappable.
package decryption

import (
	"sync"
	"sync/atomic"

	"github.com/rapidaai/rialto/internal/mediaframework"
)

// MediaKeyErrorStatus is the result of a decrypt call.
type MediaKeyErrorStatus int

const (
	StatusOK MediaKeyErrorStatus = iota
	StatusError
	StatusNoKey
	StatusKeyExpired
)

// Service is the decryption-service collaborator interface.
type Service interface {
	// Decrypt decrypts buf in place whole-buffer, given the caps describing
	// it.
	Decrypt(keySessionID string, buf *mediaframework.Buffer, caps *mediaframework.Caps) MediaKeyErrorStatus

	// DecryptSubsamples decrypts buf using explicit subsample/iv/keyId
	// parameters.
	DecryptSubsamples(keySessionID string, buf *mediaframework.Buffer, subsamples []byte, subsampleCount int, iv, keyID []byte, initWithLast15 bool, caps *mediaframework.Caps) MediaKeyErrorStatus

	IsPlayreadyKeySystem(keySessionID string) bool
	SelectKeyID(keySessionID string, keyID []byte) MediaKeyErrorStatus

	IncrementSessionIDUsageCounter(keySessionID string)
	DecrementSessionIDUsageCounter(keySessionID string)
}

// PassthroughService is a reference Service: it performs no actual
// decryption, but tracks usage counters and playready flags so tests
// can assert against it.
type PassthroughService struct {
	mu         sync.Mutex
	playready  map[string]bool
	usage      map[string]*int64
	failKeyIDs map[string]bool
}

// NewPassthroughService constructs an empty PassthroughService.
func NewPassthroughService() *PassthroughService {
	return &PassthroughService{
		playready:  make(map[string]bool),
		usage:      make(map[string]*int64),
		failKeyIDs: make(map[string]bool),
	}
}

// MarkPlayready marks keySessionID as a PlayReady key system, for tests.
func (s *PassthroughService) MarkPlayready(keySessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playready[keySessionID] = true
}

// FailKeyID makes SelectKeyID return StatusNoKey for the given key, for
// tests exercising the decrypt-failure path.
func (s *PassthroughService) FailKeyID(keyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failKeyIDs[keyID] = true
}

func (s *PassthroughService) Decrypt(keySessionID string, buf *mediaframework.Buffer, caps *mediaframework.Caps) MediaKeyErrorStatus {
	return StatusOK
}

func (s *PassthroughService) DecryptSubsamples(keySessionID string, buf *mediaframework.Buffer, subsamples []byte, subsampleCount int, iv, keyID []byte, initWithLast15 bool, caps *mediaframework.Caps) MediaKeyErrorStatus {
	s.mu.Lock()
	fail := s.failKeyIDs[string(keyID)]
	s.mu.Unlock()
	if fail {
		return StatusNoKey
	}
	return StatusOK
}

func (s *PassthroughService) IsPlayreadyKeySystem(keySessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playready[keySessionID]
}

func (s *PassthroughService) SelectKeyID(keySessionID string, keyID []byte) MediaKeyErrorStatus {
	s.mu.Lock()
	fail := s.failKeyIDs[string(keyID)]
	s.mu.Unlock()
	if fail {
		return StatusNoKey
	}
	return StatusOK
}

func (s *PassthroughService) IncrementSessionIDUsageCounter(keySessionID string) {
	atomic.AddInt64(s.counterFor(keySessionID), 1)
}

func (s *PassthroughService) DecrementSessionIDUsageCounter(keySessionID string) {
	atomic.AddInt64(s.counterFor(keySessionID), -1)
}

// UsageCount returns the current counter value for keySessionID.
func (s *PassthroughService) UsageCount(keySessionID string) int64 {
	return atomic.LoadInt64(s.counterFor(keySessionID))
}

func (s *PassthroughService) counterFor(keySessionID string) *int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.usage[keySessionID]
	if !ok {
		var zero int64
		c = &zero
		s.usage[keySessionID] = c
	}
	return c
}

var _ Service = (*PassthroughService)(nil)
