// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fragment

import "sort"

// Range is a disjoint, half-open buffered time interval [Start, End).
type Range struct {
	Start float64
	End   float64
}

// BufferInfo is the result of probing the buffered set ahead of a given
// time (spec.md §3/§4.2).
type BufferInfo struct {
	Start float64
	End   float64
	Len   float64
	// NextStart is the start of the next disjoint range after the
	// merged run, if any; used by gap detection.
	NextStart    float64
	HasNextStart bool
	// Hole reports whether pos fell inside a tolerated gap rather than
	// inside a buffered range outright.
	Hole bool
}

// BufferInfoAt scans buffered (an ordered, disjoint set of [s, e) ranges)
// for the contiguous run containing pos, tolerating holes up to maxHole
// seconds, per spec.md §4.2.
//
// If pos falls inside a range, that range seeds the merge. Otherwise the
// next range whose start is within maxHole of pos seeds it (treated as
// contiguous despite the gap). The seed is then extended forward across
// any further ranges separated from their predecessor by a gap <=
// maxHole. Len is measured from pos (or the seed's start, whichever is
// later) to the merged end.
func BufferInfoAt(buffered []Range, pos, maxHole float64) BufferInfo {
	ranges := append([]Range(nil), buffered...)
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

	seedIdx := -1
	hole := false
	for i, r := range ranges {
		if pos >= r.Start && pos < r.End {
			seedIdx = i
			break
		}
	}
	if seedIdx == -1 {
		for i, r := range ranges {
			if r.Start >= pos && r.Start-pos <= maxHole {
				seedIdx = i
				hole = true
				break
			}
		}
	}
	if seedIdx == -1 {
		return BufferInfo{}
	}

	start := ranges[seedIdx].Start
	end := ranges[seedIdx].End
	nextIdx := seedIdx + 1
	for nextIdx < len(ranges) && ranges[nextIdx].Start-end <= maxHole {
		if ranges[nextIdx].End > end {
			end = ranges[nextIdx].End
		}
		nextIdx++
	}

	lenStart := pos
	if start > lenStart {
		lenStart = start
	}

	info := BufferInfo{Start: start, End: end, Len: end - lenStart, Hole: hole}
	if nextIdx < len(ranges) {
		info.NextStart = ranges[nextIdx].Start
		info.HasNextStart = true
	}
	return info
}
