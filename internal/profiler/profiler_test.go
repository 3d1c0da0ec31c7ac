// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package profiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rapidaai/rialto/internal/mediaframework/simulated"
)

func TestProbeFiresOncePerElement(t *testing.T) {
	p := New()
	src := simulated.NewElement("appsrc0", "Generic/Source")
	p.Observe(src)

	p.MarkExit(src)
	p.MarkExit(src)

	stages := p.Stages()
	require.Len(t, stages, 1)
	assert.Equal(t, "Source FB Exit", stages[0].Label)
	assert.Equal(t, "appsrc0", stages[0].Element)
}

func TestOnlyProbedClassesObserved(t *testing.T) {
	p := New()
	queue := simulated.NewElement("queue0", "Generic/Queue")
	decryptor := simulated.NewElement("dec0", "Decryptor/Video")
	decoder := simulated.NewElement("avdec0", "Codec/Decoder/Video")

	p.Observe(queue)
	p.Observe(decryptor)
	p.Observe(decoder)
	p.MarkExit(queue)
	p.MarkExit(decryptor)
	p.MarkExit(decoder)

	stages := p.Stages()
	require.Len(t, stages, 2)
	assert.Equal(t, "Decryptor FB Exit", stages[0].Label)
	assert.Equal(t, "Decoder FB Exit", stages[1].Label)
}

func TestDisabledProfilerRecordsNothing(t *testing.T) {
	p := Disabled()
	src := simulated.NewElement("appsrc0", "Generic/Source")
	p.Observe(src)
	p.MarkExit(src)

	assert.False(t, p.Enabled())
	assert.Empty(t, p.Stages())
}
