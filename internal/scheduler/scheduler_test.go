// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/hlscore/internal/config"
	"github.com/ManuGH/hlscore/internal/fragment"
	"github.com/ManuGH/hlscore/internal/tracker"
)

type fakeMedia struct {
	cur      float64
	ready    int
	seeking  bool
	paused   bool
	dur      float64
	buffered []fragment.Range
}

func (m *fakeMedia) CurrentTime() float64 { return m.cur }
func (m *fakeMedia) SetCurrentTime(t float64) { m.cur = t }
func (m *fakeMedia) ReadyState() int { return m.ready }
func (m *fakeMedia) Seeking() bool { return m.seeking }
func (m *fakeMedia) Paused() bool { return m.paused }
func (m *fakeMedia) Duration() float64 { return m.dur }
func (m *fakeMedia) Buffered() []fragment.Range { return m.buffered }
func (m *fakeMedia) Play() { m.paused = false }
func (m *fakeMedia) Pause() { m.paused = true }

type fakeKeyLoader struct{ calls int }

func (k *fakeKeyLoader) LoadKey(ctx context.Context, f *fragment.Fragment) error {
	k.calls++
	return nil
}

type fakeFragLoader struct {
	loaded  []*fragment.Fragment
	aborted []*fragment.Fragment
}

func (l *fakeFragLoader) LoadFragment(ctx context.Context, f *fragment.Fragment) error {
	l.loaded = append(l.loaded, f)
	return nil
}
func (l *fakeFragLoader) Abort(f *fragment.Fragment) { l.aborted = append(l.aborted, f) }

type fakeTransmuxer struct{ destroyed bool }

func (t *fakeTransmuxer) Push(ctx context.Context, f *fragment.Fragment, data []byte) error {
	return nil
}
func (t *fakeTransmuxer) Destroy() { t.destroyed = true }

type fakeSink struct{ flushed bool }

func (s *fakeSink) AppendInitSegment(ctx context.Context, level int, data []byte) error { return nil }
func (s *fakeSink) Append(ctx context.Context, parent string, kind fragment.ElementaryStream, data []byte) error {
	return nil
}
func (s *fakeSink) Flush(ctx context.Context, start, end float64, kind string) error {
	s.flushed = true
	return nil
}
func (s *fakeSink) Reset(ctx context.Context) error { return nil }

type fakeABR struct {
	bitrate      int
	nextAutoLvl  int
}

func (a *fakeABR) LevelBitrate(level int) int { return a.bitrate }
func (a *fakeABR) NextAutoLevel() int         { return a.nextAutoLvl }

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func newTestScheduler(t *testing.T) (*Scheduler, *fakeMedia, *fakeFragLoader) {
	t.Helper()
	cfg := config.DefaultTunables()
	media := &fakeMedia{ready: 1}
	fragLoader := &fakeFragLoader{}
	s := New(cfg, nil, media, &fakeKeyLoader{}, fragLoader, &fakeTransmuxer{}, &fakeSink{}, &fakeABR{})
	s.mediaAttached = true
	return s, media, fragLoader
}

func mkVoDLevel(n int, dur float64) *fragment.LevelDetails {
	frags := make([]*fragment.Fragment, n)
	for i := 0; i < n; i++ {
		frags[i] = &fragment.Fragment{SN: i, Start: float64(i) * dur, Duration: dur}
	}
	return &fragment.LevelDetails{
		Fragments:     frags,
		StartSN:       0,
		EndSN:         n - 1,
		TotalDuration: float64(n) * dur,
	}
}

func TestStart_PicksBitrateTestLevelZero(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	s.Start()
	assert.Equal(t, 0, s.curLevel)
	assert.True(t, s.bitrateTest)
	assert.Equal(t, StateIdle, s.State())
}

func TestStart_HonorsExplicitStartLevel(t *testing.T) {
	cfg := config.DefaultTunables()
	cfg.StartLevel = 2
	media := &fakeMedia{ready: 1}
	s := New(cfg, nil, media, &fakeKeyLoader{}, &fakeFragLoader{}, &fakeTransmuxer{}, &fakeSink{}, &fakeABR{})
	s.Start()
	assert.Equal(t, 2, s.curLevel)
	assert.False(t, s.bitrateTest)
}

func TestDoSelection_DispatchesFirstVoDFragment(t *testing.T) {
	s, _, fragLoader := newTestScheduler(t)
	s.Start()
	s.OnLevelLoaded(0, mkVoDLevel(5, 4))

	s.Tick(context.Background())

	require.Len(t, fragLoader.loaded, 1)
	assert.Equal(t, 0, fragLoader.loaded[0].SN)
	assert.Equal(t, StateFragLoading, s.State())
}

func TestDoSelection_StaysIdleWhenBufferAlreadyFull(t *testing.T) {
	s, media, fragLoader := newTestScheduler(t)
	s.cfg.MaxBufferLength = 10
	s.Start()
	s.OnLevelLoaded(0, mkVoDLevel(5, 4))
	media.buffered = []fragment.Range{{Start: 0, End: 20}}

	s.Tick(context.Background())

	assert.Empty(t, fragLoader.loaded)
	assert.Equal(t, StateIdle, s.State())
}

func TestDoSelection_WaitsWhenLevelDetailsMissing(t *testing.T) {
	s, _, fragLoader := newTestScheduler(t)
	s.Start()

	s.Tick(context.Background())

	assert.Empty(t, fragLoader.loaded)
	assert.Equal(t, StateWaitingLevel, s.State())
}

func TestOnLevelLoaded_ReturnsFromWaitingLevel(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	s.Start()
	s.Tick(context.Background())
	require.Equal(t, StateWaitingLevel, s.State())

	s.OnLevelLoaded(0, mkVoDLevel(3, 4))

	assert.Equal(t, StateIdle, s.State())
}

func TestAdjustSameSN_StepsForwardWhenNoDropOrHole(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	details := mkVoDLevel(5, 4)
	s.fragPrevious = details.Fragments[1]
	chosen := details.Fragments[1] // same SN as prev

	got := s.adjustSameSN(details, chosen)

	require.NotNil(t, got)
	assert.Equal(t, 2, got.SN)
}

func TestAdjustSameSN_StepsBackOnDroppedKeyframe(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	details := mkVoDLevel(5, 4)
	details.Fragments[1].DeltaPTS = 1
	details.Fragments[1].Dropped = 3
	s.cfg.MaxBufferHole = 0.5
	s.fragPrevious = details.Fragments[1]
	chosen := details.Fragments[1]

	got := s.adjustSameSN(details, chosen)

	require.NotNil(t, got)
	assert.Equal(t, 0, got.SN)
}

func TestAdjustSameSN_BacktrackedGivesUpWhenSuccessorAlsoBacktracked(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	details := mkVoDLevel(5, 4)
	details.Fragments[2].Backtracked = true
	details.Fragments[3].Backtracked = true
	s.fragPrevious = details.Fragments[2]
	chosen := details.Fragments[2]

	got := s.adjustSameSN(details, chosen)

	require.NotNil(t, got)
	assert.Equal(t, 3, got.SN, "gives up backtracking and advances")
}

func TestAdjustSameSN_BacktrackedMarksPredecessor(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	details := mkVoDLevel(5, 4)
	details.Fragments[2].Backtracked = true
	s.fragPrevious = details.Fragments[2]
	chosen := details.Fragments[2]

	got := s.adjustSameSN(details, chosen)

	require.NotNil(t, got)
	assert.Equal(t, 1, got.SN)
	assert.True(t, got.Backtracked)
}

func TestBacktrack_MarksAndRewindsLoadPosition(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	details := mkVoDLevel(5, 4)
	frag := details.Fragments[3]
	frag.StartPTS = 12.5
	s.fragCurrent = frag

	s.backtrack(frag)

	assert.True(t, frag.Backtracked)
	assert.Equal(t, 12.5, s.nextLoadPosition)
	assert.Nil(t, s.fragCurrent)
	assert.Equal(t, StateIdle, s.State())
}

// TestScheduleFragRetry_BackoffDoublesThenEscalates is spec.md §8
// scenario S4: fragLoadingMaxRetry=3, retryDelay=500ms, three
// consecutive non-fatal load errors at t=0 schedule retries at +500,
// +1000, +2000; the fourth failure escalates to fatal.
func TestScheduleFragRetry_BackoffDoublesThenEscalates(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	s.cfg.FragLoadingMaxRetry = 3
	s.cfg.FragLoadingRetryDelay = 500 * time.Millisecond
	s.cfg.FragLoadingMaxRetryTimeout = 10 * time.Second
	clk := &fakeClock{now: time.Unix(0, 0)}
	s.clk = clk

	s.scheduleFragRetry(context.Background())
	require.Equal(t, StateFragLoadingWaitingRetry, s.State())
	assert.Equal(t, 500*time.Millisecond, s.retryDate.Sub(clk.now))

	s.scheduleFragRetry(context.Background())
	require.Equal(t, StateFragLoadingWaitingRetry, s.State())
	assert.Equal(t, 1000*time.Millisecond, s.retryDate.Sub(clk.now))

	s.scheduleFragRetry(context.Background())
	require.Equal(t, StateFragLoadingWaitingRetry, s.State())
	assert.Equal(t, 2000*time.Millisecond, s.retryDate.Sub(clk.now))

	s.scheduleFragRetry(context.Background())
	assert.Equal(t, StateError, s.State())
}

func TestOnBufferFullError_ShrinksCapWhenPositionBuffered(t *testing.T) {
	s, media, fragLoader := newTestScheduler(t)
	s.maxMaxBufferLength = 60
	s.cfg.MaxBufferLength = 10
	s.loadedMetadata = true
	media.cur = 30
	media.buffered = []fragment.Range{{Start: 0, End: 45}}

	s.onBufferFullError(context.Background())

	assert.Equal(t, 30.0, s.maxMaxBufferLength)
	assert.Equal(t, StateIdle, s.State())
	assert.Empty(t, fragLoader.aborted)
}

func TestOnBufferFullError_FlushesWhenPositionNotBuffered(t *testing.T) {
	s, media, fragLoader := newTestScheduler(t)
	s.fragCurrent = &fragment.Fragment{Level: 0, SN: 1}
	s.loadedMetadata = true
	media.cur = 100
	media.buffered = nil

	s.onBufferFullError(context.Background())

	assert.Equal(t, StateBufferFlushing, s.State())
	assert.Nil(t, s.fragCurrent)
	require.Len(t, fragLoader.aborted, 1)
}

func TestOnKeyLoaded_IgnoresMismatchedFragment(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	s.fragCurrent = &fragment.Fragment{Level: 0, SN: 5}
	s.transition(StateKeyLoading)

	s.OnKeyLoaded(context.Background(), 0, 9)

	assert.Equal(t, StateKeyLoading, s.State())
}

func TestOnKeyLoaded_AdvancesToIdleOnMatch(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	s.fragCurrent = &fragment.Fragment{Level: 0, SN: 5}
	s.transition(StateKeyLoading)

	s.OnKeyLoaded(context.Background(), 0, 5)

	// Tick() re-enters selection from IDLE, but doSelection bails out
	// immediately since no level has been selected (curLevel == -1) in
	// this test, so the Scheduler settles back in IDLE.
	assert.Equal(t, StateIdle, s.State())
}

func TestOnMediaDetaching_AbortsAndDestroysTransmuxer(t *testing.T) {
	s, _, fragLoader := newTestScheduler(t)
	frag := &fragment.Fragment{Level: 0, SN: 1}
	s.fragCurrent = frag

	s.OnMediaDetaching()

	assert.False(t, s.mediaAttached)
	assert.Nil(t, s.fragCurrent)
	require.Len(t, fragLoader.aborted, 1)
	assert.True(t, s.transmuxer.(*fakeTransmuxer).destroyed)
}

func mkLiveLevel(startAt float64, n int, dur float64) *fragment.LevelDetails {
	frags := make([]*fragment.Fragment, n)
	for i := 0; i < n; i++ {
		frags[i] = &fragment.Fragment{SN: i, Start: startAt + float64(i)*dur, Duration: dur}
	}
	return &fragment.LevelDetails{
		Fragments:      frags,
		StartSN:        0,
		EndSN:          n - 1,
		TotalDuration:  float64(n) * dur,
		Live:           true,
		TargetDuration: dur,
	}
}

// TestLiveCatchUp_NudgesCurrentTimeToSyncPosition is spec.md §8 scenario
// S2: a sliding live playlist whose fragments span [1000, 1042) with
// targetDuration=6 and liveSyncDurationCount=3 should pull currentTime up
// to 1042-18=1024 when the player is attached far behind the live edge.
func TestLiveCatchUp_NudgesCurrentTimeToSyncPosition(t *testing.T) {
	s, media, fragLoader := newTestScheduler(t)
	s.cfg.LiveSyncDurationCount = 3
	s.cfg.InitialLiveManifestSize = 1
	s.Start()
	details := mkLiveLevel(1000, 7, 6)
	s.OnLevelLoaded(0, details)
	media.cur = 0

	s.Tick(context.Background())

	assert.Equal(t, 1024.0, s.levels.LiveSyncPosition)
	assert.Equal(t, 1024.0, media.cur)
	require.Len(t, fragLoader.loaded, 1)
}

func TestSwitchImmediate_PausesAbortsAndFlushes(t *testing.T) {
	s, media, fragLoader := newTestScheduler(t)
	s.Start()
	s.OnLevelLoaded(0, mkVoDLevel(5, 4))
	s.Tick(context.Background())
	media.paused = false
	frag := s.fragCurrent
	require.NotNil(t, frag)

	s.SwitchImmediate(context.Background(), 1)

	assert.True(t, media.paused)
	assert.False(t, s.previouslyPaused)
	assert.Nil(t, s.fragCurrent)
	assert.Equal(t, 1, s.curLevel)
	assert.True(t, s.immediateSwitch)
	require.Len(t, fragLoader.aborted, 1)
	assert.Same(t, frag, fragLoader.aborted[0])
	assert.True(t, s.sink.(*fakeSink).flushed)
	assert.Equal(t, StateIdle, s.State())
}

func TestSwitchSmooth_FlushesFromSuccessorWhenFound(t *testing.T) {
	s, media, fragLoader := newTestScheduler(t)
	s.Start()
	details := mkVoDLevel(5, 4)
	s.OnLevelLoaded(0, details)
	s.fragPlaying = details.Fragments[1]
	s.fragCurrent = details.Fragments[1]
	media.paused = true

	s.SwitchSmooth(context.Background(), 1)

	assert.Equal(t, 1, s.curLevel)
	assert.Nil(t, s.fragCurrent)
	require.Len(t, fragLoader.aborted, 1)
	assert.True(t, s.sink.(*fakeSink).flushed)
}

func TestCheckBuffer_EvictsOKFragmentNoLongerBuffered(t *testing.T) {
	s, media, _ := newTestScheduler(t)
	s.Start()
	details := mkVoDLevel(5, 4)
	s.OnLevelLoaded(0, details)
	frag := details.Fragments[0]
	frag.PTSKnown = true
	frag.StartPTS, frag.EndPTS = 0, 4
	key := fragment.KeyOf(frag)
	s.tracker.SetState(key, tracker.OK)
	media.buffered = nil

	s.checkBuffer(context.Background())

	assert.Equal(t, tracker.NotLoaded, s.tracker.State(key))
}

func TestRun_StopsTickGoroutineOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	s, _, _ := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, nil) }()

	time.Sleep(2 * TickInterval)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
