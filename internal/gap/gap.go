// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package gap implements the Gap Controller (spec.md §4.5/§4.6): on each
// tick it detects stalled playback and nudges currentTime past an
// unrecoverable hole.
package gap

import "github.com/ManuGH/hlscore/internal/fragment"

// Controller tracks stall detection across ticks so a single stalled
// sample doesn't immediately trigger a jump; a hole is only "unrecoverable"
// once currentTime has failed to advance for StallThreshold consecutive
// ticks while a hole sits immediately ahead.
type Controller struct {
	StallThreshold int // consecutive stalled ticks before nudging
	JumpThreshold  float64

	lastObservedTime float64
	stalledTicks     int
}

// NewController returns a Gap Controller with the given stall tolerance.
func NewController(stallThreshold int, jumpThreshold float64) *Controller {
	if stallThreshold <= 0 {
		stallThreshold = 4 // ~400ms at a 100ms tick per spec.md §4.5
	}
	return &Controller{StallThreshold: stallThreshold, JumpThreshold: jumpThreshold}
}

// Result reports what the Gap Controller decided this tick.
type Result struct {
	// Nudge, if non-nil, is the new currentTime the Scheduler should
	// apply to jump across an unrecoverable hole.
	Nudge *float64
}

// Tick inspects the current playback position against the buffered
// region ahead of it and decides whether to nudge past a hole. buf is the
// BufferInfo already computed for pos by the caller this tick; playing
// reports whether the media element is actively attempting playback
// (not paused, not seeking).
func (c *Controller) Tick(pos float64, buf fragment.BufferInfo, playing bool) Result {
	if pos != c.lastObservedTime {
		c.lastObservedTime = pos
		c.stalledTicks = 0
		return Result{}
	}

	if !playing {
		return Result{}
	}

	c.stalledTicks++
	if c.stalledTicks < c.StallThreshold {
		return Result{}
	}

	// Stalled at pos with no progress. If there is a buffered region
	// starting ahead within JumpThreshold, nudge into it.
	if buf.HasNextStart && buf.NextStart-pos > 0 && buf.NextStart-pos <= c.JumpThreshold {
		target := buf.NextStart
		c.stalledTicks = 0
		c.lastObservedTime = target
		return Result{Nudge: &target}
	}

	return Result{}
}
