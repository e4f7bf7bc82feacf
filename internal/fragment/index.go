// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fragment

import (
	"sort"
	"time"
)

// FindByPTS performs a binary search on Start with an interval test, per
// spec.md §4.1: a fragment f matches iff
//
//	bufferEnd >= f.Start - tolerance  &&  bufferEnd < f.Start + f.Duration - tolerance
//
// tolerance is clamped to min(tolerance, f.Duration/2) per-candidate. If
// prev is non-nil and prev.SN+1 exists in fragments and covers bufferEnd,
// it is returned directly as a cheap hot-path hit before the binary
// search runs.
//
// Edge cases (spec.md §4.1): empty fragments -> nil; bufferEnd >=
// last.End() -> nil (caller handles end-of-stream); bufferEnd <
// first.Start -> first fragment.
func FindByPTS(prev *Fragment, fragments []*Fragment, bufferEnd, tolerance float64) *Fragment {
	if len(fragments) == 0 {
		return nil
	}

	if prev != nil {
		for _, f := range fragments {
			if f.SN == prev.SN+1 && matches(f, bufferEnd, tolerance) {
				return f
			}
		}
	}

	first, last := fragments[0], fragments[len(fragments)-1]
	if bufferEnd >= last.End() {
		return nil
	}
	if bufferEnd < first.Start {
		return first
	}

	lo, hi := 0, len(fragments)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		f := fragments[mid]
		tol := clampTolerance(tolerance, f.Duration)
		switch {
		case bufferEnd < f.Start-tol:
			hi = mid - 1
		case bufferEnd >= f.End()-tol:
			lo = mid + 1
		default:
			return f
		}
	}
	return nil
}

func matches(f *Fragment, bufferEnd, tolerance float64) bool {
	tol := clampTolerance(tolerance, f.Duration)
	return bufferEnd >= f.Start-tol && bufferEnd < f.End()-tol
}

func clampTolerance(tolerance, duration float64) float64 {
	if max := duration / 2; tolerance > max {
		return max
	}
	return tolerance
}

// FindByPDT returns the first fragment whose [ProgramDateTime,
// EndProgramDateTime) contains pdt, or the nearest fragment within
// tolerance of pdt if none contains it exactly (spec.md §4.1).
func FindByPDT(fragments []*Fragment, pdt time.Time, tolerance time.Duration) *Fragment {
	if len(fragments) == 0 || pdt.IsZero() {
		return nil
	}

	for _, f := range fragments {
		if !f.HasProgramDateTime() {
			continue
		}
		if !pdt.Before(f.ProgramDateTime) && pdt.Before(f.EndProgramDateTime) {
			return f
		}
	}

	var best *Fragment
	bestDelta := tolerance
	for _, f := range fragments {
		if !f.HasProgramDateTime() {
			continue
		}
		var delta time.Duration
		if pdt.Before(f.ProgramDateTime) {
			delta = f.ProgramDateTime.Sub(pdt)
		} else {
			delta = pdt.Sub(f.EndProgramDateTime)
		}
		if delta < 0 {
			delta = -delta
		}
		if delta <= bestDelta {
			bestDelta = delta
			best = f
		}
	}
	return best
}

// sortBySN sorts fragments by ascending SN, giving the ascending Start
// ordering FindByPTS/FindByPDT both assume. No test or fixture in this
// package calls it.
func sortBySN(fragments []*Fragment) {
	sort.Slice(fragments, func(i, j int) bool { return fragments[i].SN < fragments[j].SN })
}
