// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package gap

import (
	"testing"

	"github.com/ManuGH/hlscore/internal/fragment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_NoNudgeWhilePositionAdvances(t *testing.T) {
	c := NewController(2, 1.0)
	buf := fragment.BufferInfo{HasNextStart: true, NextStart: 10.2}
	r := c.Tick(10, buf, true)
	assert.Nil(t, r.Nudge)
	r = c.Tick(10.1, buf, true)
	assert.Nil(t, r.Nudge)
}

func TestController_NudgesAfterStallThresholdWithinJumpTolerance(t *testing.T) {
	c := NewController(2, 1.0)
	buf := fragment.BufferInfo{HasNextStart: true, NextStart: 10.5}

	r := c.Tick(10, buf, true) // tick 1: resets stall counter (first observation)
	assert.Nil(t, r.Nudge)
	r = c.Tick(10, buf, true) // tick 2: stalledTicks=1 < threshold 2
	assert.Nil(t, r.Nudge)
	r = c.Tick(10, buf, true) // tick 3: stalledTicks=2 >= threshold
	require.NotNil(t, r.Nudge)
	assert.Equal(t, 10.5, *r.Nudge)
}

func TestController_DoesNotNudgeBeyondJumpThreshold(t *testing.T) {
	c := NewController(1, 0.2)
	buf := fragment.BufferInfo{HasNextStart: true, NextStart: 50}

	c.Tick(10, buf, true)
	r := c.Tick(10, buf, true)
	assert.Nil(t, r.Nudge)
}

func TestController_NoNudgeWhenNotPlaying(t *testing.T) {
	c := NewController(1, 1.0)
	buf := fragment.BufferInfo{HasNextStart: true, NextStart: 10.5}

	c.Tick(10, buf, false)
	r := c.Tick(10, buf, false)
	assert.Nil(t, r.Nudge)
}
