// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fragment holds the core data model shared by every other
// component: the Fragment identity/timing record, the per-level playlist
// snapshot (LevelDetails), fragment lookup (Fragment Index, spec.md §4.1),
// and the buffered-region probe (Buffer View, spec.md §4.2).
package fragment

import "time"

// ElementaryStream is one of the elementary stream kinds a fragment may
// carry.
type ElementaryStream string

const (
	StreamAudio ElementaryStream = "AUDIO"
	StreamVideo ElementaryStream = "VIDEO"
)

// Stats records timing and byte-count telemetry for a completed fragment
// load/parse/append cycle.
type Stats struct {
	LoadStart    time.Time
	LoadEnd      time.Time
	ParseEnd     time.Time
	BufferEnd    time.Time
	TotalBytes   int64
	LoadDuration time.Duration
}

// Fragment is a single fetchable media segment. Identity is (Level, SN);
// SN is monotonically increasing within a level (spec.md §3).
type Fragment struct {
	Level int
	SN    int

	Start    float64 // playlist-relative seconds
	Duration float64
	CC       int // discontinuity counter, non-decreasing within a level

	ProgramDateTime    time.Time // zero value means "absent"
	EndProgramDateTime time.Time

	Encrypted bool
	URL       string

	// Mutable post-parse attributes.
	StartPTS          float64
	EndPTS            float64
	StartDTS          float64
	EndDTS            float64
	DeltaPTS          float64 // audio-video gap
	Dropped           int     // video frames dropped before first keyframe
	Backtracked       bool
	ElementaryStreams map[ElementaryStream]bool
	Stats             Stats

	// PTSKnown reports whether StartPTS/EndPTS have been set by a
	// completed parse. Distinct from the zero value, since 0 is a valid
	// PTS for the very first fragment of a stream.
	PTSKnown bool
}

// HasProgramDateTime reports whether the start timestamp
// (ProgramDateTime) is set; EndProgramDateTime is not checked.
func (f *Fragment) HasProgramDateTime() bool {
	return f != nil && !f.ProgramDateTime.IsZero()
}

// End returns the playlist-relative end time of the fragment.
func (f *Fragment) End() float64 {
	return f.Start + f.Duration
}

// Key uniquely identifies a fragment within its owning Level State.
type Key struct {
	Level int
	SN    int
}

// KeyOf returns f's identity key. Safe on a nil fragment via the
// zero Key.
func KeyOf(f *Fragment) Key {
	if f == nil {
		return Key{}
	}
	return Key{Level: f.Level, SN: f.SN}
}

// LevelDetails is a per-quality-level playlist snapshot (spec.md §3).
// Ownership rests with Level State; all other components resolve
// fragments through (level, sn) rather than holding direct references
// across ticks, so a replaced LevelDetails can be garbage collected even
// if a stale handle is still in flight (spec.md §9, "cyclic references").
type LevelDetails struct {
	Level int

	Fragments []*Fragment
	StartSN   int
	EndSN     int
	StartCC   int
	EndCC     int

	TargetDuration     float64
	TotalDuration      float64
	Live               bool
	PTSKnown           bool
	HasProgramDateTime bool

	InitSegment *Fragment // nil if the level has none

	StartTimeOffset *float64

	// Sliding is the playlist-relative seconds the live window has
	// slid since the level was first observed; Fragments[0].Start for a
	// live level after the most recent merge.
	Sliding float64

	// Codecs holds audio/video codec strings discovered on first
	// init-segment parse completion (SPEC_FULL.md §C.2).
	Codecs map[ElementaryStream]string
}

// ByIndex returns the fragment at playlist index i, or nil if out of
// range. Index is position within Fragments, not SN.
func (d *LevelDetails) ByIndex(i int) *Fragment {
	if d == nil || i < 0 || i >= len(d.Fragments) {
		return nil
	}
	return d.Fragments[i]
}

// BySN returns the fragment with the given sequence number, or nil.
func (d *LevelDetails) BySN(sn int) *Fragment {
	if d == nil {
		return nil
	}
	idx := sn - d.StartSN
	return d.ByIndex(idx)
}

// First returns the first fragment of the level, or nil if empty.
func (d *LevelDetails) First() *Fragment {
	return d.ByIndex(0)
}

// Last returns the last fragment of the level, or nil if empty.
func (d *LevelDetails) Last() *Fragment {
	if d == nil || len(d.Fragments) == 0 {
		return nil
	}
	return d.Fragments[len(d.Fragments)-1]
}

// Next returns the fragment immediately following f within the same
// level, or nil if f is the last fragment or not found.
func (d *LevelDetails) Next(f *Fragment) *Fragment {
	if d == nil || f == nil {
		return nil
	}
	return d.BySN(f.SN + 1)
}

// Prev returns the fragment immediately preceding f within the same
// level, or nil if f is the first fragment or not found.
func (d *LevelDetails) Prev(f *Fragment) *Fragment {
	if d == nil || f == nil {
		return nil
	}
	return d.BySN(f.SN - 1)
}

// Middle returns the fragment at the midpoint of the playlist, used by
// the live level-switch fallback in spec.md §4.5.
func (d *LevelDetails) Middle() *Fragment {
	if d == nil || len(d.Fragments) == 0 {
		return nil
	}
	return d.Fragments[len(d.Fragments)/2]
}
