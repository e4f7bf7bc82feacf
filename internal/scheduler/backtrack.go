// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import (
	"github.com/ManuGH/hlscore/internal/fragment"
)

// backtrack implements spec.md §4.9: when a fragment's video remux
// reports dropped frames and it isn't the level's first fragment, it is
// marked Backtracked, evicted from the tracker, and nextLoadPosition is
// rewound to its StartPTS so the next selection (§4.5) is drawn to its
// predecessor instead, which should supply the missing keyframe.
func (s *Scheduler) backtrack(frag *fragment.Fragment) {
	frag.Backtracked = true
	s.tracker.Remove(fragment.KeyOf(frag))
	s.nextLoadPosition = frag.StartPTS

	s.fragCurrent = nil
	s.transition(StateIdle)
}
