// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fragment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBufferInfoAt_NoRanges(t *testing.T) {
	info := BufferInfoAt(nil, 5, 0.5)
	assert.Equal(t, BufferInfo{}, info)
}

func TestBufferInfoAt_PosInsideRange(t *testing.T) {
	info := BufferInfoAt([]Range{{Start: 0, End: 10}}, 3, 0.5)
	assert.Equal(t, 0.0, info.Start)
	assert.Equal(t, 10.0, info.End)
	assert.Equal(t, 7.0, info.Len)
	assert.False(t, info.Hole)
}

func TestBufferInfoAt_PosInHoleWithinTolerance(t *testing.T) {
	info := BufferInfoAt([]Range{{Start: 5, End: 10}}, 4.8, 0.5)
	assert.True(t, info.Hole)
	assert.Equal(t, 5.0, info.Start)
	assert.Equal(t, 10.0, info.End)
	assert.InDelta(t, 5.0, info.Len, 1e-9)
}

func TestBufferInfoAt_PosBeyondTolerance(t *testing.T) {
	info := BufferInfoAt([]Range{{Start: 5, End: 10}}, 3, 0.5)
	assert.Equal(t, BufferInfo{}, info)
}

func TestBufferInfoAt_MergesAcrossSmallGaps(t *testing.T) {
	buffered := []Range{{Start: 0, End: 10}, {Start: 10.2, End: 20}, {Start: 25, End: 30}}
	info := BufferInfoAt(buffered, 0, 0.5)
	assert.Equal(t, 20.0, info.End)
	assert.True(t, info.HasNextStart)
	assert.Equal(t, 25.0, info.NextStart)
}

func TestBufferInfoAt_DoesNotMergeAcrossLargeGap(t *testing.T) {
	buffered := []Range{{Start: 0, End: 10}, {Start: 12, End: 20}}
	info := BufferInfoAt(buffered, 0, 0.5)
	assert.Equal(t, 10.0, info.End)
	assert.True(t, info.HasNextStart)
	assert.Equal(t, 12.0, info.NextStart)
}
