// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import (
	"context"
	"math"
	"sort"

	"github.com/ManuGH/hlscore/internal/bus"
	"github.com/ManuGH/hlscore/internal/fragment"
	"github.com/ManuGH/hlscore/internal/log"
	"github.com/ManuGH/hlscore/internal/tracker"
)

// loadKind tags what a dispatched load is for, since all three share the
// same FragmentLoader.LoadFragment call and only differ in bookkeeping
// once the load completes (spec.md §4.5 "Load sequencing").
type loadKind int

const (
	loadNormal loadKind = iota
	loadInitSegment
	loadBitrateTest
)

// doSelection runs the IDLE-state selection algorithm (spec.md §4.5).
func (s *Scheduler) doSelection(ctx context.Context) {
	if !s.mediaAttached && !(s.cfg.StartFragPrefetch && !s.startFragRequested) {
		return
	}
	if s.curLevel < 0 {
		return
	}
	if s.AudioLead != nil {
		if lead, ok := s.AudioLead(); ok && lead < -s.cfg.MaxBufferHole {
			return
		}
	}

	pos := s.playbackPosition()
	maxBufLen := s.bufLenCap()
	buf := fragment.BufferInfoAt(s.media.Buffered(), pos, s.cfg.MaxBufferHole)
	if buf.Len >= maxBufLen {
		return
	}

	details := s.levels.Details(s.curLevel)
	live := details != nil && details.Live
	if details == nil || (live && s.levels.LevelLastLoaded != s.curLevel) {
		s.transition(StateWaitingLevel)
		return
	}

	if s.streamEnded(buf, details) {
		s.publish(ctx, bus.TopicBufferEOS, struct{}{})
		s.transition(StateEnded)
		return
	}

	frag, kind := s.chooseFragment(details, buf)
	if frag == nil {
		return
	}

	if s.fragPrevious != nil && frag.SN == s.fragPrevious.SN {
		frag = s.adjustSameSN(details, frag)
		if frag == nil {
			return
		}
	}

	s.dispatchLoad(ctx, details, frag, kind)
}

// streamEnded reports whether the buffered run already reaches the end
// of a VoD level's total duration (spec.md §4.5).
func (s *Scheduler) streamEnded(buf fragment.BufferInfo, details *fragment.LevelDetails) bool {
	if details.Live || details.TotalDuration <= 0 {
		return false
	}
	return buf.End >= details.TotalDuration
}

// chooseFragment implements spec.md §4.5's "Fragment choice": init
// segment first, then live/VoD/general branches.
func (s *Scheduler) chooseFragment(details *fragment.LevelDetails, buf fragment.BufferInfo) (*fragment.Fragment, loadKind) {
	if details.InitSegment != nil && !s.initParsed[details.Level] {
		return details.InitSegment, loadInitSegment
	}

	kind := loadNormal
	if s.bitrateTest {
		kind = loadBitrateTest
	}

	if details.Live {
		f := s.chooseLiveFragment(details, buf)
		return f, kind
	}

	if first := details.First(); first != nil && buf.End < first.Start {
		return first, kind
	}

	tol := s.cfg.MaxFragLookUpTolerance
	if last := details.Last(); last != nil && buf.End > last.End()-s.cfg.MaxFragLookUpTolerance {
		tol = 0
	}
	f := fragment.FindByPTS(s.fragPrevious, details.Fragments, buf.End, tol)
	if f == nil {
		if last := details.Last(); last != nil && buf.End >= last.End() {
			return last, kind
		}
	}
	return f, kind
}

// chooseLiveFragment implements the live-playlist branch of "Fragment
// choice" (spec.md §4.5), including the live catch-up nudge and the
// without-PTS level-switch fallback chain. Its binary-search fallback
// compares Fragment.CC to Fragment.CC throughout, resolving the
// object-vs-number comparator bug spec.md §9 calls out as an open
// question.
func (s *Scheduler) chooseLiveFragment(details *fragment.LevelDetails, buf fragment.BufferInfo) *fragment.Fragment {
	if len(details.Fragments) < s.cfg.InitialLiveManifestSize {
		return nil
	}

	first, last := details.First(), details.Last()
	playlistStart, playlistEnd := first.Start, last.End()
	bound := math.Max(playlistStart-s.cfg.MaxFragLookUpTolerance, playlistEnd-s.cfg.LiveMaxLatencyDuration)
	if buf.End < bound {
		s.media.SetCurrentTime(s.levels.LiveSyncPosition)
		buf.End = s.levels.LiveSyncPosition
	}

	if details.PTSKnown && buf.End > playlistEnd && s.media.ReadyState() > 0 {
		return nil
	}

	if s.fragPrevious != nil && s.fragPrevious.Level != details.Level && !details.PTSKnown {
		if f := fragment.FindByPDT(details.Fragments, s.fragPrevious.EndProgramDateTime, 0); f != nil {
			return f
		}
		if next := details.BySN(s.fragPrevious.SN + 1); next != nil && next.CC == s.fragPrevious.CC {
			return next
		}
		if f := findBySameCC(details.Fragments, s.fragPrevious.CC); f != nil {
			return f
		}
		return details.Middle()
	}

	tol := s.cfg.MaxFragLookUpTolerance
	if buf.End > playlistEnd-s.cfg.MaxFragLookUpTolerance {
		tol = 0
	}
	f := fragment.FindByPTS(s.fragPrevious, details.Fragments, buf.End, tol)
	if f == nil && buf.End >= playlistEnd {
		return last
	}
	return f
}

// findBySameCC binary-searches fragments (ascending, non-decreasing CC
// per spec.md §3's invariant) for the first one whose CC equals cc.
func findBySameCC(fragments []*fragment.Fragment, cc int) *fragment.Fragment {
	idx := sort.Search(len(fragments), func(i int) bool { return fragments[i].CC >= cc })
	if idx < len(fragments) && fragments[idx].CC == cc {
		return fragments[idx]
	}
	return nil
}

// adjustSameSN implements spec.md §4.5's "Same-SN adjustment".
func (s *Scheduler) adjustSameSN(details *fragment.LevelDetails, frag *fragment.Fragment) *fragment.Fragment {
	prev := s.fragPrevious

	if frag.Level == prev.Level && !frag.Backtracked && frag.SN < details.EndSN {
		if prev.DeltaPTS > s.cfg.MaxBufferHole && prev.Dropped > 0 {
			if back := details.Prev(frag); back != nil {
				return back
			}
			return frag
		}
		if next := details.Next(frag); next != nil {
			return next
		}
		return frag
	}

	if frag.Backtracked {
		if next := details.Next(frag); next != nil && next.Backtracked {
			return next
		}
		back := details.Prev(frag)
		if back == nil {
			return nil
		}
		back.Backtracked = true
		return back
	}

	return frag
}

// dispatchLoad implements spec.md §4.5's "Load sequencing".
func (s *Scheduler) dispatchLoad(ctx context.Context, details *fragment.LevelDetails, frag *fragment.Fragment, kind loadKind) {
	ctx, span := s.tracer.Start(ctx, "scheduler.frag_load")
	defer span.End()

	if frag.Encrypted && s.tracker.State(fragment.KeyOf(frag)) == tracker.NotLoaded {
		s.fragCurrent = frag
		s.fragCurrentKind = kind
		s.transition(StateKeyLoading)
		s.publish(ctx, bus.TopicKeyLoading, frag)
		if err := s.keyLoader.LoadKey(ctx, frag); err != nil {
			s.onError(ctx, newErr(RKeyLoadError, frag.Level, frag.SN, err), frag, false)
		}
		return
	}

	key := fragment.KeyOf(frag)
	st := s.tracker.State(key)

	if tracker.Fetchable(s.tracker, frag) {
		s.fragCurrent = frag
		s.fragCurrentKind = kind
		s.startFragRequested = true

		if kind != loadBitrateTest {
			s.nextLoadPosition = frag.Start + frag.Duration
			if !details.Live {
				if d := s.media.Duration(); d > 0 && s.nextLoadPosition > d {
					s.nextLoadPosition = d
				}
			}
		}

		if kind == loadInitSegment {
			s.initParsed[frag.Level] = true
		}

		s.tracker.SetState(key, tracker.Loading)
		s.transition(StateFragLoading)
		s.publish(ctx, bus.TopicFragLoading, frag)

		log.WithComponent("scheduler").Debug().
			Int(log.FieldLevel, frag.Level).
			Int(log.FieldSN, frag.SN).
			Msg("fragment load dispatched")

		if err := s.fragLoader.LoadFragment(ctx, frag); err != nil {
			s.onError(ctx, newErr(RFragLoadError, frag.Level, frag.SN, err), frag, false)
		}
		return
	}

	if st == tracker.Appending {
		if s.reduceMaxBufferLength(frag.Duration) {
			s.tracker.Remove(key)
		}
	}
}

// reduceMaxBufferLength shrinks maxMaxBufferLength by additional seconds
// and reports true; if the result would fall below MaxBufferLength it
// leaves maxMaxBufferLength unchanged and reports false (spec.md §4.5's
// APPENDING branch).
func (s *Scheduler) reduceMaxBufferLength(additional float64) bool {
	reduced := s.maxMaxBufferLength - additional
	if reduced < s.cfg.MaxBufferLength {
		return false
	}
	s.maxMaxBufferLength = reduced
	return true
}
