// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package player

import (
	"sync"

	"github.com/rapidaai/rialto/internal/model"
)

// activeRequests is the table of outstanding NeedData requests: a
// requestId -> MediaSourceType map mutated only by the Worker. It is still
// guarded by a mutex because the NeedData/HaveData bijection accounting is
// also read for test assertions from outside the Worker goroutine.
type activeRequests struct {
	mu sync.Mutex
	m  map[string]model.MediaSourceType
}

func newActiveRequests() *activeRequests {
	return &activeRequests{m: make(map[string]model.MediaSourceType)}
}

func (a *activeRequests) add(requestID string, t model.MediaSourceType) {
	a.mu.Lock()
	a.m[requestID] = t
	a.mu.Unlock()
}

// take returns the type registered for requestID and erases the entry,
// reporting false if requestID is unknown (a stale reply).
func (a *activeRequests) take(requestID string) (model.MediaSourceType, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t, ok := a.m[requestID]
	if ok {
		delete(a.m, requestID)
	}
	return t, ok
}

func (a *activeRequests) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.m)
}
