// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package level implements Level State (spec.md §4.4): the per-quality
// level registry that owns every LevelDetails snapshot, merges incoming
// playlist updates, and tracks live-edge bookkeeping.
package level

import (
	"github.com/ManuGH/hlscore/internal/fragment"
	"github.com/ManuGH/hlscore/internal/log"
)

// State owns every level's LevelDetails. It is the only component that
// holds strong references to LevelDetails/Fragment; everyone else
// resolves through (level, sn) (spec.md §3 "Lifecycle").
type State struct {
	details map[int]*fragment.LevelDetails

	// LevelLastLoaded is the index of the most recently loaded level,
	// used by the Scheduler's WAITING_LEVEL check (spec.md §4.5).
	LevelLastLoaded int

	// LiveSyncPosition is recomputed on every live merge (spec.md §4.4).
	LiveSyncPosition float64
	LiveSyncDuration float64

	// loadErrors counts LEVEL_LOAD_ERROR occurrences per level index,
	// so a chronically broken level doesn't exhaust the same budget as
	// a transient blip on the active level (SPEC_FULL.md §C.3).
	loadErrors map[int]int
}

// New returns an empty Level State.
func New() *State {
	return &State{
		details:    make(map[int]*fragment.LevelDetails),
		loadErrors: make(map[int]int),
	}
}

// Details returns the current LevelDetails for level, or nil if none has
// been loaded yet.
func (s *State) Details(level int) *fragment.LevelDetails {
	return s.details[level]
}

// OnLevelLoaded merges or installs a freshly parsed playlist snapshot for
// level, per spec.md §4.4:
//
//  1. If prior details exist for level and newDetails.Live, merge:
//     align fragments by (sn, cc), inherit PTS/DTS/backtracked/stats,
//     recompute Sliding and LiveSyncPosition.
//  2. Otherwise install newDetails as-is with PTSKnown=false.
//  3. Update LevelLastLoaded.
//
// It returns true if the caller (Scheduler) should leave WAITING_LEVEL
// for IDLE, i.e. whenever this is the level the Scheduler was waiting on.
func (s *State) OnLevelLoaded(lvl int, newDetails *fragment.LevelDetails, wasWaitingOn int) bool {
	newDetails.Level = lvl
	prior := s.details[lvl]

	if prior != nil && newDetails.Live {
		fragment.MergeLevelDetails(prior, newDetails)
		newDetails.PTSKnown = prior.PTSKnown
	} else {
		newDetails.PTSKnown = false
		if len(newDetails.Fragments) > 0 {
			newDetails.Sliding = newDetails.Fragments[0].Start
		}
	}

	if newDetails.Live && newDetails.TotalDuration > 0 {
		lead := newDetails.TotalDuration - s.LiveSyncDuration
		if lead < 0 {
			lead = 0
		}
		s.LiveSyncPosition = newDetails.Sliding + lead
	}

	s.details[lvl] = newDetails
	s.LevelLastLoaded = lvl

	log.WithComponent("level").Debug().
		Int(log.FieldLevel, lvl).
		Int("frag_count", len(newDetails.Fragments)).
		Bool("live", newDetails.Live).
		Msg("level loaded")

	return wasWaitingOn == lvl
}

// MarkPTSKnown flips PTSKnown once a fragment parse has established the
// level's timeline, per spec.md §4.4's "alignStream" step.
func (s *State) MarkPTSKnown(lvl int) {
	if d := s.details[lvl]; d != nil {
		d.PTSKnown = true
	}
}

// RecordLoadError increments the per-level error counter and returns the
// new count (SPEC_FULL.md §C.3).
func (s *State) RecordLoadError(lvl int) int {
	s.loadErrors[lvl]++
	return s.loadErrors[lvl]
}

// LoadErrorCount returns how many LEVEL_LOAD_ERROR events have been
// recorded for lvl.
func (s *State) LoadErrorCount(lvl int) int {
	return s.loadErrors[lvl]
}

// ResetLoadErrors clears the counter for lvl, called after a successful
// load.
func (s *State) ResetLoadErrors(lvl int) {
	delete(s.loadErrors, lvl)
}

// SetCodecs records the audio/video codec strings discovered on first
// init-segment parse completion for lvl (SPEC_FULL.md §C.2). It is a
// no-op (and returns false) if the level already has codecs recorded,
// since BUFFER_CODECS must only be emitted once per level.
func (s *State) SetCodecs(lvl int, codecs map[fragment.ElementaryStream]string) bool {
	d := s.details[lvl]
	if d == nil {
		return false
	}
	if d.Codecs != nil {
		return false
	}
	d.Codecs = codecs
	return true
}
