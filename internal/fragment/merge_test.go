// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fragment

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestMergeLevelDetails_RetainsPTSForMatchingSNAndCC(t *testing.T) {
	prev := &LevelDetails{Fragments: []*Fragment{
		{SN: 10, CC: 1, StartPTS: 100, EndPTS: 106, PTSKnown: true, Backtracked: true},
		{SN: 11, CC: 1, StartPTS: 106, EndPTS: 112, PTSKnown: true},
	}}
	next := &LevelDetails{Fragments: []*Fragment{
		{SN: 10, CC: 1},
		{SN: 11, CC: 1},
		{SN: 12, CC: 1},
	}}

	MergeLevelDetails(prev, next)

	assert.True(t, next.Fragments[0].PTSKnown)
	assert.Equal(t, 100.0, next.Fragments[0].StartPTS)
	assert.True(t, next.Fragments[0].Backtracked)
	assert.True(t, next.Fragments[1].PTSKnown)
	assert.Equal(t, 106.0, next.Fragments[1].StartPTS)
	assert.False(t, next.Fragments[2].PTSKnown) // new entry, no prior to inherit from
}

func TestMergeLevelDetails_DiscontinuityBreaksAlignment(t *testing.T) {
	prev := &LevelDetails{Fragments: []*Fragment{
		{SN: 10, CC: 1, StartPTS: 100, PTSKnown: true},
	}}
	next := &LevelDetails{Fragments: []*Fragment{
		{SN: 10, CC: 2}, // same SN, but cc bumped: not the same fragment
	}}

	MergeLevelDetails(prev, next)

	assert.False(t, next.Fragments[0].PTSKnown)
}

func TestMergeLevelDetails_RecomputesSliding(t *testing.T) {
	prev := &LevelDetails{Fragments: []*Fragment{{SN: 1, Start: 1000}}}
	next := &LevelDetails{Fragments: []*Fragment{{SN: 2, Start: 1006}, {SN: 3, Start: 1012}}}

	MergeLevelDetails(prev, next)

	assert.Equal(t, 1006.0, next.Sliding)
}

func TestMergeLevelDetails_CarriesElementaryStreamsAndStatsAcrossWholeLevel(t *testing.T) {
	prev := &LevelDetails{Fragments: []*Fragment{
		{
			SN: 0, CC: 1, PTSKnown: true,
			ElementaryStreams: map[ElementaryStream]bool{StreamVideo: true, StreamAudio: true},
			Stats:             Stats{TotalBytes: 4096},
		},
		{
			SN: 1, CC: 1, PTSKnown: true,
			ElementaryStreams: map[ElementaryStream]bool{StreamVideo: true},
			Stats:             Stats{TotalBytes: 2048},
		},
	}}
	next := &LevelDetails{Fragments: []*Fragment{
		{SN: 0, CC: 1},
		{SN: 1, CC: 1},
		{SN: 2, CC: 1}, // new fragment, nothing to inherit
	}}

	MergeLevelDetails(prev, next)

	wantStreams := []map[ElementaryStream]bool{
		{StreamVideo: true, StreamAudio: true},
		{StreamVideo: true},
		nil,
	}
	wantBytes := []int64{4096, 2048, 0}

	for i, f := range next.Fragments {
		if diff := cmp.Diff(wantStreams[i], f.ElementaryStreams); diff != "" {
			t.Errorf("fragment %d ElementaryStreams mismatch (-want +got):\n%s", i, diff)
		}
		if f.Stats.TotalBytes != wantBytes[i] {
			t.Errorf("fragment %d TotalBytes = %d, want %d", i, f.Stats.TotalBytes, wantBytes[i])
		}
	}
}
