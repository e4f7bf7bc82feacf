// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package level

import (
	"testing"

	"github.com/ManuGH/hlscore/internal/fragment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnLevelLoaded_FirstInstallIsNotMerged(t *testing.T) {
	s := New()
	d := &fragment.LevelDetails{
		Live:      true,
		Fragments: []*fragment.Fragment{{SN: 1, Start: 1000}},
	}
	waiting := s.OnLevelLoaded(0, d, 0)

	require.True(t, waiting)
	assert.False(t, s.Details(0).PTSKnown)
	assert.Equal(t, 0, s.LevelLastLoaded)
}

func TestOnLevelLoaded_MergesLiveAndRecomputesSyncPosition(t *testing.T) {
	s := New()
	s.LiveSyncDuration = 18
	first := &fragment.LevelDetails{
		Live:      true,
		Fragments: []*fragment.Fragment{{SN: 1, Start: 1000, CC: 0, StartPTS: 1000, PTSKnown: true}},
	}
	s.OnLevelLoaded(0, first, -1)
	s.MarkPTSKnown(0)

	second := &fragment.LevelDetails{
		Live:          true,
		TotalDuration: 42,
		Fragments: []*fragment.Fragment{
			{SN: 1, Start: 1000, CC: 0},
			{SN: 2, Start: 1006, CC: 0},
		},
	}
	waiting := s.OnLevelLoaded(0, second, 0)

	require.True(t, waiting)
	got := s.Details(0)
	assert.True(t, got.PTSKnown, "PTSKnown should be inherited across a live merge")
	assert.True(t, got.Fragments[0].PTSKnown, "sn=1 should inherit PTS from the prior snapshot")
	assert.Equal(t, 1000.0, got.Fragments[0].StartPTS)
	assert.Equal(t, 1000.0, got.Sliding)
	assert.Equal(t, 1000.0+(42-18), s.LiveSyncPosition)
}

func TestOnLevelLoaded_NotWaitingOnThisLevel(t *testing.T) {
	s := New()
	d := &fragment.LevelDetails{Fragments: []*fragment.Fragment{{SN: 1}}}
	waiting := s.OnLevelLoaded(1, d, 0)
	assert.False(t, waiting)
}

func TestLoadErrorCounters_PerLevel(t *testing.T) {
	s := New()
	assert.Equal(t, 1, s.RecordLoadError(2))
	assert.Equal(t, 2, s.RecordLoadError(2))
	assert.Equal(t, 0, s.LoadErrorCount(3))
	s.ResetLoadErrors(2)
	assert.Equal(t, 0, s.LoadErrorCount(2))
}

func TestSetCodecs_OnlyOnce(t *testing.T) {
	s := New()
	s.OnLevelLoaded(0, &fragment.LevelDetails{}, -1)

	first := s.SetCodecs(0, map[fragment.ElementaryStream]string{fragment.StreamVideo: "avc1.64001f"})
	second := s.SetCodecs(0, map[fragment.ElementaryStream]string{fragment.StreamVideo: "hev1"})

	assert.True(t, first)
	assert.False(t, second)
	assert.Equal(t, "avc1.64001f", s.Details(0).Codecs[fragment.StreamVideo])
}
