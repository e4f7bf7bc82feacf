// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package tracker

import (
	"testing"

	"github.com/ManuGH/hlscore/internal/fragment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchable_DefaultsToFetchable(t *testing.T) {
	tr := New()
	f := &fragment.Fragment{Level: 0, SN: 1}
	assert.True(t, Fetchable(tr, f))
}

func TestFetchable_LoadingIsNotFetchable(t *testing.T) {
	tr := New()
	f := &fragment.Fragment{Level: 0, SN: 1}
	tr.SetState(fragment.KeyOf(f), Loading)
	assert.False(t, Fetchable(tr, f))
}

func TestFetchable_BacktrackedOverridesAnyState(t *testing.T) {
	tr := New()
	f := &fragment.Fragment{Level: 0, SN: 1, Backtracked: true}
	tr.SetState(fragment.KeyOf(f), Appending)
	assert.True(t, Fetchable(tr, f))
}

func TestFetchable_PartialIsFetchable(t *testing.T) {
	tr := New()
	f := &fragment.Fragment{Level: 0, SN: 1}
	tr.SetState(fragment.KeyOf(f), Partial)
	assert.True(t, Fetchable(tr, f))
}

func TestFetchable_OKIsNotFetchable(t *testing.T) {
	tr := New()
	f := &fragment.Fragment{Level: 0, SN: 1}
	tr.SetState(fragment.KeyOf(f), OK)
	assert.False(t, Fetchable(tr, f))
}

func TestDetectEvicted_DowngradesWhenRangeNoLongerBuffered(t *testing.T) {
	tr := New()
	f := &fragment.Fragment{
		Level: 0, SN: 1, StartPTS: 10, EndPTS: 16, PTSKnown: true,
		ElementaryStreams: map[fragment.ElementaryStream]bool{fragment.StreamVideo: true},
	}
	tr.SetState(fragment.KeyOf(f), OK)

	tr.DetectEvicted(fragment.StreamVideo, []*fragment.Fragment{f}, []fragment.Range{{Start: 50, End: 60}})

	assert.Equal(t, NotLoaded, tr.State(fragment.KeyOf(f)))
}

func TestDetectEvicted_KeepsOKWhenStillBuffered(t *testing.T) {
	tr := New()
	f := &fragment.Fragment{
		Level: 0, SN: 1, StartPTS: 10, EndPTS: 16, PTSKnown: true,
		ElementaryStreams: map[fragment.ElementaryStream]bool{fragment.StreamVideo: true},
	}
	tr.SetState(fragment.KeyOf(f), OK)

	tr.DetectEvicted(fragment.StreamVideo, []*fragment.Fragment{f}, []fragment.Range{{Start: 0, End: 20}})

	require.Equal(t, OK, tr.State(fragment.KeyOf(f)))
}

func TestDetectEvicted_IgnoresOtherStreamKind(t *testing.T) {
	tr := New()
	f := &fragment.Fragment{
		Level: 0, SN: 1, StartPTS: 10, EndPTS: 16, PTSKnown: true,
		ElementaryStreams: map[fragment.ElementaryStream]bool{fragment.StreamAudio: true},
	}
	tr.SetState(fragment.KeyOf(f), OK)

	tr.DetectEvicted(fragment.StreamVideo, []*fragment.Fragment{f}, nil)

	assert.Equal(t, OK, tr.State(fragment.KeyOf(f)))
}
