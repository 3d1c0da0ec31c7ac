// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package task implements the per-session task factory and worker queue:
// every PlayerContext mutation, media-graph mutation and client-callback
// dispatch runs as one Task executed serially on one Worker goroutine per
// session. Stop closes intake and the queue drains before Join returns.
package task

// Task is a single unit of serialized work. Name exists for logging/
// profiling only; Run performs the actual mutation. Tasks returned by the
// Task Factory (Attach, Play, Pause, Stop, SetPosition, Flush, WriteBuffer,
// HandleBusMessage, ...) are just named closures over the player/context
// they mutate. The closures the Generic Player builds capture the player
// itself; Task and Worker hold no reference to any player type.
type Task struct {
	Name string
	Run  func()
}

// New constructs a Task. Kept as a tiny constructor (rather than a
// literal) so every call site reads the same way.
func New(name string, run func()) Task {
	return Task{Name: name, Run: run}
}
