// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package tracker implements the Fragment Tracker (spec.md §4.3): the
// per-fragment lifecycle state gate that the Scheduler consults before
// issuing a load, and that eviction detection downgrades when a buffered
// fragment's range falls out of the media element's buffered set.
package tracker

import "github.com/ManuGH/hlscore/internal/fragment"

// State is a fragment's lifecycle state.
type State string

const (
	NotLoaded State = "NOT_LOADED"
	Loading   State = "LOADING"
	Partial   State = "PARTIAL"
	Appending State = "APPENDING"
	OK        State = "OK"
)

// Tracker tracks the lifecycle state of every fragment the Scheduler has
// touched, keyed by (level, sn). It holds no reference to LevelDetails;
// all resolution happens through the key, per spec.md §9.
type Tracker struct {
	states map[fragment.Key]State
}

// New returns an empty Tracker.
func New() *Tracker {
	return &Tracker{states: make(map[fragment.Key]State)}
}

// SetState records frag's lifecycle state.
func (t *Tracker) SetState(key fragment.Key, s State) {
	t.states[key] = s
}

// State returns the tracked lifecycle state of key, defaulting to
// NotLoaded for anything never recorded.
func (t *Tracker) State(key fragment.Key) State {
	if s, ok := t.states[key]; ok {
		return s
	}
	return NotLoaded
}

// Remove drops all tracked state for key, used when a fragment is
// backtracked (spec.md §4.9) or explicitly evicted.
func (t *Tracker) Remove(key fragment.Key) {
	delete(t.states, key)
}

// Fetchable reports whether frag may be selected for loading: only
// NOT_LOADED and PARTIAL are fetchable, plus any fragment marked
// Backtracked regardless of tracked state (spec.md §4.3).
func Fetchable(t *Tracker, frag *fragment.Fragment) bool {
	if frag == nil {
		return false
	}
	if frag.Backtracked {
		return true
	}
	switch t.State(fragment.KeyOf(frag)) {
	case NotLoaded, Partial:
		return true
	default:
		return false
	}
}

// DetectEvicted scans tracked OK fragments and downgrades to NOT_LOADED
// any whose [StartPTS, EndPTS) no longer intersects any buffered range
// for the given elementary stream (spec.md §4.3). frags supplies the
// current fragment objects to check PTS ranges against; buffered is the
// media element's current buffered set for streamKind.
func (t *Tracker) DetectEvicted(streamKind fragment.ElementaryStream, frags []*fragment.Fragment, buffered []fragment.Range) {
	for _, f := range frags {
		key := fragment.KeyOf(f)
		if t.State(key) != OK {
			continue
		}
		if !f.PTSKnown {
			continue
		}
		if f.ElementaryStreams != nil && !f.ElementaryStreams[streamKind] {
			continue
		}
		if !intersectsAny(f.StartPTS, f.EndPTS, buffered) {
			t.SetState(key, NotLoaded)
		}
	}
}

func intersectsAny(start, end float64, buffered []fragment.Range) bool {
	for _, r := range buffered {
		if start < r.End && end > r.Start {
			return true
		}
	}
	return false
}
