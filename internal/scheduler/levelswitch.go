// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import (
	"context"
	"math"

	"github.com/ManuGH/hlscore/internal/bus"
	"github.com/ManuGH/hlscore/internal/fragment"
)

// SwitchImmediate implements spec.md §4.8's "Immediate switch": used when
// a level change must take effect as soon as possible (e.g. a manual
// quality override), at the cost of a visible flush. Completion is
// detected by checkBuffer (§4.6) once the new level's fragment is
// buffered.
func (s *Scheduler) SwitchImmediate(ctx context.Context, level int) {
	s.previouslyPaused = s.media.Paused()
	s.media.Pause()

	if s.fragCurrent != nil {
		s.fragLoader.Abort(s.fragCurrent)
		s.fragCurrent = nil
	}

	s.curLevel = level
	s.immediateSwitch = true
	s.immediateSwitchLvl = level

	s.publish(ctx, bus.TopicBufferFlushing, bus.EventBufferFlushed{})
	if err := s.sink.Flush(ctx, 0, math.Inf(1), "main"); err != nil {
		s.onError(ctx, newErr(RBufferAppendError, level, -1, err), nil, true)
		return
	}

	s.transition(StateIdle)
}

// SwitchSmooth implements spec.md §4.8's "Smooth (next) switch": the
// level change takes effect at the next fragment boundary rather than
// flushing immediately, computed from the estimated time it will take the
// new level's fragments to actually reach playback.
func (s *Scheduler) SwitchSmooth(ctx context.Context, level int) {
	fetchDelay := 0.0
	if !s.media.Paused() && s.fragLastKbps > 0 && s.fragCurrent != nil {
		if br := s.abr.LevelBitrate(level); br > 0 {
			fetchDelay = (s.fragCurrent.Duration*float64(br))/(1000*s.fragLastKbps) + 1
		}
	}

	details := s.levels.Details(s.curLevel)
	if details == nil {
		s.curLevel = level
		return
	}

	probe := s.media.CurrentTime() + fetchDelay
	at := fragment.FindByPTS(s.fragPlaying, details.Fragments, probe, s.cfg.MaxFragLookUpTolerance)
	successor := details.Next(at)
	if successor == nil {
		s.curLevel = level
		return
	}

	if s.fragCurrent != nil {
		s.fragLoader.Abort(s.fragCurrent)
		s.fragCurrent = nil
	}
	s.curLevel = level

	s.publish(ctx, bus.TopicBufferFlushing, bus.EventBufferFlushed{})
	if err := s.sink.Flush(ctx, successor.StartPTS, math.Inf(1), "main"); err != nil {
		s.onError(ctx, newErr(RBufferAppendError, level, successor.SN, err), nil, true)
		return
	}
	s.transition(StateIdle)
}
