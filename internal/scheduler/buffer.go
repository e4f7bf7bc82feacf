// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import (
	"context"

	"github.com/ManuGH/hlscore/internal/bus"
	"github.com/ManuGH/hlscore/internal/fragment"
)

// mediaReady mirrors the HTMLMediaElement readyState >= HAVE_METADATA
// convention the Media collaborator follows.
const mediaReadyHaveMetadata = 1

// checkBuffer implements spec.md §4.6: runs Fragment Tracker eviction
// detection against the active level's fragments (spec.md §4.3,
// invariant 3), establishes loadedmetadata on first buffered data,
// completes an in-flight immediate level switch by nudging playback once
// the new fragment is buffered, and otherwise delegates stall recovery to
// the Gap Controller.
func (s *Scheduler) checkBuffer(ctx context.Context) {
	if s.media.ReadyState() < mediaReadyHaveMetadata {
		return
	}

	buffered := s.media.Buffered()

	if details := s.levels.Details(s.curLevel); details != nil {
		s.tracker.DetectEvicted(fragment.StreamVideo, details.Fragments, buffered)
		s.tracker.DetectEvicted(fragment.StreamAudio, details.Fragments, buffered)
	}

	if !s.loadedMetadata {
		if len(buffered) == 0 {
			return
		}
		s.loadedMetadata = true
		if s.cfg.StartPosition >= 0 && s.cfg.StartPosition != s.media.CurrentTime() {
			s.media.SetCurrentTime(s.cfg.StartPosition)
		}
		return
	}

	if s.immediateSwitch {
		info := fragment.BufferInfoAt(buffered, s.media.CurrentTime(), s.cfg.MaxBufferHole)
		if info.Len > 0 {
			s.media.SetCurrentTime(s.media.CurrentTime() - 0.0001)
			if s.previouslyPaused {
				s.media.Pause()
			} else {
				s.media.Play()
			}
			s.immediateSwitch = false
		}
		return
	}

	pos := s.media.CurrentTime()
	info := fragment.BufferInfoAt(buffered, pos, s.cfg.MaxBufferHole)
	playing := !s.media.Paused() && !s.media.Seeking()
	result := s.gapCtl.Tick(pos, info, playing)
	if result.Nudge != nil {
		s.media.SetCurrentTime(*result.Nudge)
	}
}

// checkFragmentChanged implements spec.md §4.7: detects when playback
// has moved into a different buffered fragment and emits FRAG_CHANGED
// (and LEVEL_SWITCHED, if the level also changed).
func (s *Scheduler) checkFragmentChanged(ctx context.Context) {
	if s.media.ReadyState() < mediaReadyHaveMetadata || s.media.Seeking() {
		return
	}

	cur := s.media.CurrentTime()
	if cur <= s.lastCurrentTime {
		return
	}
	s.lastCurrentTime = cur

	details := s.levels.Details(s.curLevel)
	if details == nil {
		return
	}

	probe := cur
	f := fragment.FindByPTS(s.fragPlaying, details.Fragments, probe, s.cfg.MaxFragLookUpTolerance)
	if f == nil {
		probe = cur + 0.1
		f = fragment.FindByPTS(s.fragPlaying, details.Fragments, probe, s.cfg.MaxFragLookUpTolerance)
	}
	if f == nil || f == s.fragPlaying {
		return
	}

	prevLevel := -1
	if s.fragPlaying != nil {
		prevLevel = s.fragPlaying.Level
	}
	s.fragPlaying = f
	s.publish(ctx, bus.TopicFragChanged, f)

	if prevLevel >= 0 && prevLevel != f.Level {
		s.publish(ctx, bus.TopicLevelSwitched, f.Level)
	}
}
