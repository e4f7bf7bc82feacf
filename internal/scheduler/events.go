// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import (
	"context"

	"github.com/ManuGH/hlscore/internal/bus"
	"github.com/ManuGH/hlscore/internal/fragment"
	"github.com/ManuGH/hlscore/internal/log"
	"github.com/ManuGH/hlscore/internal/metrics"
	"github.com/ManuGH/hlscore/internal/tracker"
)

// handleMessage dispatches a single event-bus message to the matching
// handler. Unknown message types are dropped, per spec.md §9's "invalid
// (state, event) pairs are silently ignored" tolerance.
func (s *Scheduler) handleMessage(ctx context.Context, msg bus.Message) {
	switch ev := msg.(type) {
	case bus.EventMediaAttached:
		s.OnMediaAttached()
	case bus.EventMediaDetaching:
		s.OnMediaDetaching()
	case bus.EventLevelLoaded:
		s.OnLevelLoaded(ev.Level, ev.Details)
	case bus.EventKeyLoaded:
		s.OnKeyLoaded(ctx, ev.Level, ev.SN)
	case bus.EventBufferAppended:
		s.OnBufferAppended(ctx, ev.Parent, ev.Pending)
	case bus.EventBufferFlushed:
		s.onBufferFlushed(ctx)
	case bus.EventAudioTrackSwitching:
		s.OnAudioTrackSwitching()
	case bus.EventAudioTrackSwitched:
		s.OnAudioTrackSwitched()
	case bus.EventError:
		s.OnError(ctx, ev)
	case TransmuxResult:
		s.OnTransmuxComplete(ctx, ev)
	default:
		log.WithComponent("scheduler").Debug().Msg("unhandled event type")
	}
}

// OnMediaAttached implements the MEDIA_ATTACHED event (spec.md §6):
// selection may now begin driving playback.
func (s *Scheduler) OnMediaAttached() {
	s.mediaAttached = true
}

// OnMediaDetaching implements MEDIA_DETACHING (spec.md §6/§5
// "Cancellation"): abort any in-flight load and destroy the transmux
// collaborator so init segments regenerate on next attach.
func (s *Scheduler) OnMediaDetaching() {
	s.mediaAttached = false
	if s.fragCurrent != nil {
		s.fragLoader.Abort(s.fragCurrent)
		s.fragCurrent = nil
	}
	s.transmuxer.Destroy()
}

// OnKeyLoaded implements spec.md §4.5's "On KEY_LOADED: -> IDLE, tick."
// It validates (level, sn) still matches fragCurrent before reacting,
// per spec.md §5's ordering rule.
func (s *Scheduler) OnKeyLoaded(ctx context.Context, level, sn int) {
	if s.fragCurrent == nil || s.fragCurrent.Level != level || s.fragCurrent.SN != sn {
		return
	}
	if err := s.fire(EventKeyLoaded); err != nil {
		return
	}
	s.Tick(ctx)
}

// OnTransmuxComplete implements spec.md §4.5's "Transmux completion".
func (s *Scheduler) OnTransmuxComplete(ctx context.Context, result TransmuxResult) {
	if s.fragCurrent == nil || s.fragCurrent.Level != result.Level || s.fragCurrent.SN != result.SN {
		return
	}
	frag := s.fragCurrent

	frag.StartPTS, frag.EndPTS = result.StartPTS, result.EndPTS
	frag.StartDTS, frag.EndDTS = result.StartDTS, result.EndDTS
	frag.DeltaPTS = result.DeltaPTS
	frag.Dropped = result.Dropped
	frag.ElementaryStreams = result.ElementaryStreams
	frag.PTSKnown = true
	s.levels.MarkPTSKnown(frag.Level)

	if result.Codecs != nil {
		if s.levels.SetCodecs(frag.Level, result.Codecs) {
			s.publish(ctx, bus.TopicBufferCodecs, result.Codecs)
		}
	}

	if result.Dropped > 0 {
		if details := s.levels.Details(frag.Level); details != nil {
			if first := details.First(); first != nil && first.SN != frag.SN && !frag.Backtracked {
				s.backtrack(frag)
				metrics.BacktracksTotal.Inc()
				return
			}
		}
	}

	s.tracker.SetState(fragment.KeyOf(frag), tracker.Appending)
	s.pendingAppends = 0
	if err := s.fire(EventTransmuxComplete); err != nil {
		s.transition(StateParsing)
	}

	s.publish(ctx, bus.TopicFragParsingInitSegment, result.InitSegment)

	if len(result.InitSegment) > 0 {
		s.pendingAppends++
		if err := s.sink.AppendInitSegment(ctx, frag.Level, result.InitSegment); err != nil {
			s.onError(ctx, newErr(RBufferAppendError, frag.Level, frag.SN, err), frag, true)
			return
		}
	}
	for kind, payload := range map[fragment.ElementaryStream][]byte{
		fragment.StreamAudio: result.AudioPayload,
		fragment.StreamVideo: result.VideoPayload,
	} {
		if len(payload) == 0 {
			continue
		}
		s.pendingAppends++
		if err := s.sink.Append(ctx, "main", kind, payload); err != nil {
			s.onError(ctx, newErr(RBufferAppendError, frag.Level, frag.SN, err), frag, true)
			return
		}
	}
}

// OnBufferAppended implements spec.md §4.5's "Append completion". The
// spec's PARSING/PARSED split collapses to a single StateParsing here:
// OnTransmuxComplete never transitions anywhere but StateParsing, so a
// distinct PARSED state was unreachable dead state (see DESIGN.md).
func (s *Scheduler) OnBufferAppended(ctx context.Context, parent string, pending int) {
	if s.machine.State() != StateParsing {
		return
	}
	if pending > 0 {
		return
	}
	s.pendingAppends--
	if s.pendingAppends > 0 {
		return
	}

	frag := s.fragCurrent
	if frag == nil {
		return
	}
	s.tracker.SetState(fragment.KeyOf(frag), tracker.OK)

	if frag.Stats.TotalBytes > 0 {
		span := frag.Stats.BufferEnd.Sub(frag.Stats.LoadStart).Seconds()
		if span > 0 {
			s.fragLastKbps = 8 * float64(frag.Stats.TotalBytes) / 1000 / span
		}
	}
	if frag.Level == 0 && s.bitrateTest {
		s.bitrateTest = false
		s.curLevel = s.abr.NextAutoLevel()
	}

	s.fragPrevious = frag
	s.fragCurrent = nil
	if err := s.fire(EventAppendDrained); err != nil {
		s.transition(StateIdle)
	}
	s.Tick(ctx)
}

func (s *Scheduler) onBufferFlushed(ctx context.Context) {
	if s.machine.State() == StateBufferFlushing {
		s.transition(StateIdle)
	}
}

// OnAudioTrackSwitching implements AUDIO_TRACK_SWITCHING (spec.md §6):
// cancels any in-flight main-fragment load the same way a media detach
// does, since the buffer geometry is about to change underneath it.
func (s *Scheduler) OnAudioTrackSwitching() {
	if s.fragCurrent != nil {
		s.fragLoader.Abort(s.fragCurrent)
		s.fragCurrent = nil
	}
	s.transition(StateIdle)
}

// OnAudioTrackSwitched implements AUDIO_TRACK_SWITCHED (spec.md §6): a
// no-op marker that the new alternate-audio track is now active; the
// AltAudioGate (SPEC_FULL.md §C.1) reads its lead independently on the
// next selection.
func (s *Scheduler) OnAudioTrackSwitched() {}

// OnError implements the unified ERROR envelope (spec.md §7/§6/§4.10).
// The collaborator contract (spec.md §6) carries no explicit reason code
// on the wire, only details/fatal/frag/parent/levelRetry, mirroring the
// source's free-form ErrorDetails string; classifyReason recovers the
// closed ReasonCode enum spec.md §7 actually reasons about.
func (s *Scheduler) OnError(ctx context.Context, ev bus.EventError) {
	reason := classifyReason(ev)
	level, sn := -1, -1
	if ev.Frag != nil {
		level, sn = ev.Frag.Level, ev.Frag.SN
	}
	s.onError(ctx, newErr(reason, level, sn, nil), ev.Frag, ev.Fatal)
}

func classifyReason(ev bus.EventError) ReasonCode {
	switch {
	case ev.Fatal:
		return RFatalInternal
	case ev.Frag == nil && ev.LevelRetry:
		return RLevelLoadError
	case ev.Parent == "buffer":
		return RBufferFullError
	case ev.Frag != nil && ev.Frag.Encrypted:
		return RKeyLoadError
	default:
		return RFragLoadError
	}
}

