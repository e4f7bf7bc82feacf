// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/hlscore/internal/bus"
	"github.com/ManuGH/hlscore/internal/fragment"
	"github.com/ManuGH/hlscore/internal/log"
)

// This file wires no-op stand-ins for the collaborators spec.md §1 names
// as Non-goals (playlist fetch, HTTP fragment fetch, transmux, Media
// Source append, ABR policy). schedulerd exists to exercise the Scheduler
// state machine end to end, not to ship a player; a production binary
// swaps these for the real fetch/transmux/ABR subsystems without
// touching internal/scheduler.

// memoryMedia is a headless stand-in for the HTML media element: it
// tracks currentTime/buffered/paused state the way a real player would,
// but advances only through explicit calls rather than audio/video
// decode.
type memoryMedia struct {
	mu       sync.Mutex
	cur      float64
	ready    int
	seeking  bool
	paused   bool
	duration float64
	buffered []fragment.Range
}

func newMemoryMedia() *memoryMedia {
	return &memoryMedia{paused: true}
}

func (m *memoryMedia) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cur
}

func (m *memoryMedia) SetCurrentTime(t float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = t
}

func (m *memoryMedia) ReadyState() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *memoryMedia) Seeking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.seeking
}

func (m *memoryMedia) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

func (m *memoryMedia) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *memoryMedia) Buffered() []fragment.Range {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]fragment.Range(nil), m.buffered...)
}

func (m *memoryMedia) Play() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = false
}

func (m *memoryMedia) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = true
}

// appendBuffered grows the buffered set as if a fragment had just been
// appended to the Media Source buffer, merging into the last range when
// contiguous.
func (m *memoryMedia) appendBuffered(start, end float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.buffered); n > 0 && m.buffered[n-1].End >= start {
		if end > m.buffered[n-1].End {
			m.buffered[n-1].End = end
		}
		return
	}
	m.buffered = append(m.buffered, fragment.Range{Start: start, End: end})
	if m.ready == 0 {
		m.ready = 1
	}
}

// noopKeyLoader resolves every key load at once by invoking onLoaded on a
// new goroutine, since real decryption is outside this core's Non-goals.
type noopKeyLoader struct {
	onLoaded func(level, sn int)
}

func (k *noopKeyLoader) LoadKey(ctx context.Context, frag *fragment.Fragment) error {
	logger := log.WithComponent("schedulerd")
	logger.Debug().Int(log.FieldLevel, frag.Level).Int(log.FieldSN, frag.SN).Msg("key load (noop)")
	if k.onLoaded != nil {
		go k.onLoaded(frag.Level, frag.SN)
	}
	return nil
}

// noopFragmentLoader "fetches" a fragment by immediately synthesizing a
// TransmuxResult and handing it back through onComplete, standing in for
// the Fragment Loader + Transmux collaborators spec.md §1 excludes.
type noopFragmentLoader struct {
	onComplete func(result transmuxResult)
}

type transmuxResult struct {
	Level, SN        int
	StartPTS, EndPTS float64
	VideoPayload     []byte
}

func (l *noopFragmentLoader) LoadFragment(ctx context.Context, frag *fragment.Fragment) error {
	logger := log.WithComponent("schedulerd")
	logger.Debug().Int(log.FieldLevel, frag.Level).Int(log.FieldSN, frag.SN).Msg("fragment load (noop)")
	if l.onComplete != nil {
		go func() {
			time.Sleep(5 * time.Millisecond)
			l.onComplete(transmuxResult{
				Level:    frag.Level,
				SN:       frag.SN,
				StartPTS: frag.Start,
				EndPTS:   frag.Start + frag.Duration,
				// A single synthetic video payload byte stands in for real
				// remuxed media so the Scheduler's Append/BUFFER_APPENDED
				// bookkeeping (spec.md §4.5 "Append completion") has
				// something to drain; real payload bytes come from the
				// Transmux collaborator this binary doesn't implement.
				VideoPayload: []byte{0},
			})
		}()
	}
	return nil
}

func (l *noopFragmentLoader) Abort(frag *fragment.Fragment) {
	log.WithComponent("schedulerd").Debug().
		Int(log.FieldLevel, frag.Level).Int(log.FieldSN, frag.SN).
		Msg("fragment load aborted")
}

// noopTransmuxer only logs; the real repackaging step is out of scope
// per spec.md §1.
type noopTransmuxer struct{}

func (noopTransmuxer) Push(ctx context.Context, frag *fragment.Fragment, data []byte) error {
	return nil
}

func (noopTransmuxer) Destroy() {}

// memorySink appends straight into a memoryMedia's buffered set instead
// of a real Media Source buffer (spec.md §1's Media Source I/O Non-goal),
// and completes synchronously by publishing BUFFER_APPENDED back onto
// the bus, since there is no real SourceBuffer `updateend` event to wait
// for.
type memorySink struct {
	media *memoryMedia
	evBus bus.Bus
}

func (s *memorySink) AppendInitSegment(ctx context.Context, level int, data []byte) error {
	return s.evBus.Publish(ctx, bus.TopicBufferAppended, bus.EventBufferAppended{Parent: "main", Pending: 0})
}

func (s *memorySink) Append(ctx context.Context, parent string, kind fragment.ElementaryStream, data []byte) error {
	return s.evBus.Publish(ctx, bus.TopicBufferAppended, bus.EventBufferAppended{Parent: parent, Pending: 0})
}

func (s *memorySink) Flush(ctx context.Context, startOffset, endOffset float64, kind string) error {
	s.media.mu.Lock()
	defer s.media.mu.Unlock()
	s.media.buffered = nil
	return nil
}

func (s *memorySink) Reset(ctx context.Context) error {
	return s.Flush(ctx, 0, 0, "")
}

// staticABR reports a fixed bitrate table instead of running real ABR
// policy (spec.md §1 Non-goal).
type staticABR struct {
	bitrates []int
}

func (a *staticABR) LevelBitrate(level int) int {
	if level < 0 || level >= len(a.bitrates) {
		return 0
	}
	return a.bitrates[level]
}

func (a *staticABR) NextAutoLevel() int {
	if len(a.bitrates) == 0 {
		return 0
	}
	return len(a.bitrates) - 1
}
