// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import (
	"context"
	"math"
	"time"

	"github.com/ManuGH/hlscore/internal/bus"
	"github.com/ManuGH/hlscore/internal/fragment"
	"github.com/ManuGH/hlscore/internal/log"
	"github.com/ManuGH/hlscore/internal/metrics"
)

// onError implements spec.md §4.10's error/retry envelope. frag is the
// fragment the error pertains to (nil for a level-scoped error); fatal
// mirrors the EventError.Fatal flag coming off the bus.
func (s *Scheduler) onError(ctx context.Context, serr *SchedulerError, frag *fragment.Fragment, fatal bool) {
	logger := log.WithComponent("scheduler")
	logger.Error().Err(serr).
		Str(log.FieldReason, string(serr.Reason)).
		Int(log.FieldLevel, serr.Level).
		Int(log.FieldSN, serr.SN).
		Msg("scheduler error")

	s.publish(ctx, bus.TopicError, bus.EventError{
		Details: serr.Error(),
		Fatal:   fatal || serr.Reason.Fatal(),
		Frag:    frag,
	})

	switch {
	case serr.Reason == RBufferFullError:
		s.onBufferFullError(ctx)
		return
	case serr.Reason == RLevelLoadError:
		s.onLevelLoadError(serr.Level)
		return
	case fatal || serr.Reason.Fatal():
		s.transition(StateError)
		return
	case serr.Reason.Retryable():
		s.scheduleFragRetry(ctx)
		return
	default:
		s.transition(StateError)
	}
}

// scheduleFragRetry implements the non-fatal fragment-load retry
// envelope: retries are scheduled at
// min(2^fragLoadError * fragLoadingRetryDelay, fragLoadingMaxRetryTimeout),
// escalating to ERROR once fragLoadingMaxRetry is exhausted (spec.md
// §4.10, scenario S4).
func (s *Scheduler) scheduleFragRetry(ctx context.Context) {
	if s.fragLoadError >= s.cfg.FragLoadingMaxRetry {
		s.transition(StateError)
		return
	}

	delay := time.Duration(math.Pow(2, float64(s.fragLoadError))) * s.cfg.FragLoadingRetryDelay
	if delay > s.cfg.FragLoadingMaxRetryTimeout {
		delay = s.cfg.FragLoadingMaxRetryTimeout
	}
	s.fragLoadError++
	metrics.FragLoadRetries.WithLabelValues(string(RFragLoadError)).Inc()

	s.retryDate = s.clk.Now().Add(delay)

	log.WithComponent("scheduler").Warn().
		Int("retry_count", s.fragLoadError).
		Dur("retry_delay", delay).
		Msg("fragment load retry scheduled")

	s.transition(StateFragLoadingWaitingRetry)
}

// onLevelLoadError implements spec.md §4.10's LEVEL_LOAD_ERROR handling:
// it counts the error in Level State's per-level counter (SPEC_FULL.md
// §C.3) and, while WAITING_LEVEL, returns to IDLE, or goes to ERROR once
// that count reaches fragLoadingMaxRetry. Outside WAITING_LEVEL the error
// is only counted. Whether the level controller is itself retrying is not
// consulted here.
func (s *Scheduler) onLevelLoadError(level int) {
	n := s.levels.RecordLoadError(level)
	if s.machine.State() != StateWaitingLevel {
		return
	}
	if n >= s.cfg.FragLoadingMaxRetry {
		s.transition(StateError)
		return
	}
	s.transition(StateIdle)
}

// onBufferFullError implements spec.md §4.10's BUFFER_FULL_ERROR
// handling: if the current position is still buffered, shrink the hard
// cap and resume; otherwise flush everything and drop fragCurrent.
func (s *Scheduler) onBufferFullError(ctx context.Context) {
	pos := s.playbackPosition()
	info := fragment.BufferInfoAt(s.media.Buffered(), pos, s.cfg.MaxBufferHole)

	if info.Len > 0 {
		reduced := s.maxMaxBufferLength / 2
		if reduced < s.cfg.MaxBufferLength {
			reduced = s.cfg.MaxBufferLength
		}
		s.maxMaxBufferLength = reduced
		s.transition(StateIdle)
		return
	}

	if s.fragCurrent != nil {
		s.fragLoader.Abort(s.fragCurrent)
		s.fragCurrent = nil
	}
	s.publish(ctx, bus.TopicBufferFlushing, bus.EventBufferFlushed{})
	_ = s.sink.Flush(ctx, 0, math.Inf(1), "main")
	s.transition(StateBufferFlushing)
}
