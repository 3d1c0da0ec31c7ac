// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Package shm defines the shared-memory region contract visible to
// clients: per-(sessionId, type) partitions, a metadata header whose first
// field is a version number, and the DataReader abstraction the sample
// delivery path constructs over an shm-backed HaveData reply. The
// actual region (an mmap'd fd in the real system) is an external
// collaborator; this package defines the interface and ships an in-memory
// reference implementation good enough to drive the player end to end.
package shm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rapidaai/rialto/internal/model"
)

// SupportedMetadataVersion is the only frame-metadata version this
// repository understands; any other value is rejected as corruption.
const SupportedMetadataVersion = 1

// ErrUnknownMetadataVersion is returned when a frame header's version field
// does not match SupportedMetadataVersion.
var ErrUnknownMetadataVersion = errors.New("shm: unknown metadata version")

// ErrPartitionNotFound is returned by Reader/Allocate lookups against an
// unallocated (sessionId, type) partition.
var ErrPartitionNotFound = errors.New("shm: partition not found")

// PartitionInfo is returned to the client by NeedMediaData, relative to the
// partition: max metadata/media byte budgets and their offsets.
type PartitionInfo struct {
	MaxMetadataBytes int
	MetadataOffset   int
	MediaDataOffset  int
	MaxMediaBytes    int
}

// DataReader reads frame records out of a partition starting at the
// offset it was constructed with, up to numFrames frames per call.
type DataReader interface {
	ReadFrames(numFrames int) ([]model.MediaSegment, error)
}

// Region is the shared-memory region contract: GetSharedMemory reports
// FD/TotalLength; the Worker allocates a fresh partition per (sessionId,
// type) on each NeedData cycle and builds a DataReader once the client
// reports frames were written.
type Region interface {
	FD() uintptr
	TotalLength() int

	Allocate(sessionID string, t model.MediaSourceType) (PartitionInfo, error)
	Reader(sessionID string, t model.MediaSourceType, offset, numFrames int) (DataReader, error)
}

type partitionKey struct {
	sessionID string
	t         model.MediaSourceType
}

// InMemoryRegion is the reference Region: it has no real fd or mapped
// bytes, only a per-partition queue of frames tests and the shm-path
// exerciser seed via Seed. ReadFrames drains from that queue, validating
// SupportedMetadataVersion on each frame the way the real parser validates
// the wire header.
type InMemoryRegion struct {
	mu         sync.Mutex
	partitions map[partitionKey][]model.MediaSegment
	versions   map[partitionKey]int
}

// NewInMemoryRegion constructs an empty region.
func NewInMemoryRegion() *InMemoryRegion {
	return &InMemoryRegion{
		partitions: make(map[partitionKey][]model.MediaSegment),
		versions:   make(map[partitionKey]int),
	}
}

func (r *InMemoryRegion) FD() uintptr     { return 0 }
func (r *InMemoryRegion) TotalLength() int { return 0 }

func (r *InMemoryRegion) Allocate(sessionID string, t model.MediaSourceType) (PartitionInfo, error) {
	key := partitionKey{sessionID, t}
	r.mu.Lock()
	if _, ok := r.partitions[key]; !ok {
		r.partitions[key] = nil
		r.versions[key] = SupportedMetadataVersion
	}
	r.mu.Unlock()
	return PartitionInfo{
		MaxMetadataBytes: 4096,
		MetadataOffset:   0,
		MediaDataOffset:  4096,
		MaxMediaBytes:    1 << 20,
	}, nil
}

// Seed pushes frames into a partition's queue for a test or the delivery
// path exerciser to later pull out via Reader/ReadFrames.
func (r *InMemoryRegion) Seed(sessionID string, t model.MediaSourceType, frames []model.MediaSegment) {
	key := partitionKey{sessionID, t}
	r.mu.Lock()
	r.partitions[key] = append(r.partitions[key], frames...)
	r.mu.Unlock()
}

// SeedBadVersion marks a partition so the next Reader built against it
// reports ErrUnknownMetadataVersion, exercising the shared-memory
// corruption path.
func (r *InMemoryRegion) SeedBadVersion(sessionID string, t model.MediaSourceType) {
	key := partitionKey{sessionID, t}
	r.mu.Lock()
	r.versions[key] = SupportedMetadataVersion + 1
	r.mu.Unlock()
}

func (r *InMemoryRegion) Reader(sessionID string, t model.MediaSourceType, offset, numFrames int) (DataReader, error) {
	key := partitionKey{sessionID, t}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.partitions[key]; !ok {
		return nil, fmt.Errorf("%w: session=%s type=%s", ErrPartitionNotFound, sessionID, t)
	}
	version := r.versions[key]
	return &inMemoryReader{region: r, key: key, version: version}, nil
}

type inMemoryReader struct {
	region  *InMemoryRegion
	key     partitionKey
	version int
}

func (rd *inMemoryReader) ReadFrames(numFrames int) ([]model.MediaSegment, error) {
	if rd.version != SupportedMetadataVersion {
		return nil, ErrUnknownMetadataVersion
	}
	rd.region.mu.Lock()
	defer rd.region.mu.Unlock()
	frames := rd.region.partitions[rd.key]
	if numFrames > len(frames) {
		numFrames = len(frames)
	}
	out := frames[:numFrames]
	rd.region.partitions[rd.key] = frames[numFrames:]
	return out, nil
}

var _ Region = (*InMemoryRegion)(nil)
