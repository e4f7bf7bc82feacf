// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package fragment

// MergeLevelDetails aligns an incoming live-playlist snapshot against the
// previous snapshot for the same level, per spec.md §3/§4.4: fragments
// whose (sn, cc) overlap are aligned and inherit PTS/DTS/backtracked/stats
// from the prior snapshot; new entries are appended as-is. The caller
// (Level State) is responsible for everything merge does not own:
// PTSKnown/live/liveSyncPosition recomputation, and deciding whether a
// merge or a fresh install is appropriate (prev == nil, or !live).
//
// This satisfies spec.md §8 invariant 4: across a merge of live playlists,
// any fragment present in both old and new with the same (sn, cc) retains
// its PTS/DTS attributes.
func MergeLevelDetails(prev, next *LevelDetails) {
	if prev == nil || next == nil || len(prev.Fragments) == 0 {
		return
	}

	prevBySN := make(map[int]*Fragment, len(prev.Fragments))
	for _, f := range prev.Fragments {
		prevBySN[f.SN] = f
	}

	for _, nf := range next.Fragments {
		old, ok := prevBySN[nf.SN]
		if !ok || old.CC != nf.CC {
			continue
		}
		if old.PTSKnown {
			nf.StartPTS = old.StartPTS
			nf.EndPTS = old.EndPTS
			nf.StartDTS = old.StartDTS
			nf.EndDTS = old.EndDTS
			nf.DeltaPTS = old.DeltaPTS
			nf.PTSKnown = true
		}
		nf.Backtracked = old.Backtracked
		nf.Dropped = old.Dropped
		nf.Stats = old.Stats
		nf.ElementaryStreams = old.ElementaryStreams
	}

	if len(next.Fragments) > 0 {
		next.Sliding = next.Fragments[0].Start
	}
}
