// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package scheduler implements the Scheduler / Stream Controller
// (spec.md §4.5): the tick-driven state machine that chooses the next
// fragment, sequences key/fragment loads, drives transmux, manages
// retries, and handles level-switch flush windows.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/hlscore/internal/bus"
	"github.com/ManuGH/hlscore/internal/config"
	"github.com/ManuGH/hlscore/internal/fragment"
	"github.com/ManuGH/hlscore/internal/fsm"
	"github.com/ManuGH/hlscore/internal/gap"
	"github.com/ManuGH/hlscore/internal/level"
	"github.com/ManuGH/hlscore/internal/log"
	"github.com/ManuGH/hlscore/internal/metrics"
	"github.com/ManuGH/hlscore/internal/tracker"
)

// TickInterval is the fixed tick period named in spec.md §5.
const TickInterval = 100 * time.Millisecond

// Scheduler is the core adaptive segment scheduling state machine. It is
// single-owner and not safe for concurrent use: spec.md §5 requires a
// single-threaded cooperative model where Tick and event handlers never
// run concurrently with each other.
type Scheduler struct {
	cfg config.Tunables
	clk Clock

	media      Media
	keyLoader  KeyLoader
	fragLoader FragmentLoader
	transmuxer Transmuxer
	sink       BufferSink
	abr        ABR

	levels  *level.State
	tracker *tracker.Tracker
	gapCtl  *gap.Controller

	evBus  bus.Bus
	tracer trace.Tracer

	machine *fsm.Machine[State, Event]

	curLevel        int
	mediaAttached   bool
	bitrateTest     bool
	initParsed      map[int]bool
	fragCurrentKind loadKind

	fragCurrent        *fragment.Fragment
	fragPrevious       *fragment.Fragment
	fragPlaying        *fragment.Fragment
	lastCurrentTime    float64
	nextLoadPosition   float64
	startFragRequested bool
	loadedMetadata     bool

	fragLoadError int
	retryDate     time.Time

	maxMaxBufferLength float64 // mutable, halved on buffer-full (spec.md §4.10)

	fragLastKbps float64

	immediateSwitch    bool
	immediateSwitchLvl int
	previouslyPaused   bool

	pendingAppends int

	// AudioLead reports the alternate audio stream's buffer lead over the
	// main stream, in seconds (the AltAudioGate of SPEC_FULL.md §C.1):
	// selection pauses while it reports a lead below -MaxBufferHole. A nil
	// AudioLead means no alternate-audio coordination is configured.
	AudioLead func() (leadSeconds float64, ok bool)
}

// New builds a Scheduler wired to its collaborators and starting in
// STOPPED, per spec.md §3's SchedulerState enumeration.
func New(cfg config.Tunables, evBus bus.Bus, media Media, keyLoader KeyLoader, fragLoader FragmentLoader, transmuxer Transmuxer, sink BufferSink, abr ABR) *Scheduler {
	m, err := fsm.New(StateStopped, eventTransitions())
	if err != nil {
		panic(err) // unreachable: transition table is fixed and collision-free
	}

	s := &Scheduler{
		cfg:                cfg,
		clk:                realClock{},
		media:              media,
		keyLoader:          keyLoader,
		fragLoader:         fragLoader,
		transmuxer:         transmuxer,
		sink:               sink,
		abr:                abr,
		levels:             level.New(),
		tracker:            tracker.New(),
		gapCtl:             gap.NewController(4, 2*cfg.MaxBufferHole),
		evBus:              evBus,
		tracer:             otel.Tracer("hlscore/scheduler"),
		machine:            m,
		curLevel:           -1,
		initParsed:         make(map[int]bool),
		maxMaxBufferLength: cfg.MaxMaxBufferLength,
	}
	return s
}

// eventTransitions enumerates the Scheduler FSM's event-driven edges
// (spec.md §4.5/§4.10). Purely algorithmic transitions (WAITING_LEVEL ->
// IDLE, BUFFER_FLUSHING -> IDLE, ...) are applied directly with
// (*fsm.Machine).Set rather than through this table, since they are
// driven by tick-time conditions rather than a named event.
func eventTransitions() []fsm.Transition[State, Event] {
	return []fsm.Transition[State, Event]{
		{From: StateKeyLoading, Event: EventKeyLoaded, To: StateIdle},
		{From: StateFragLoading, Event: EventTransmuxComplete, To: StateParsing},
		{From: StateParsing, Event: EventAppendDrained, To: StateIdle},
	}
}

// publish stamps a correlation ID on ctx (if it doesn't already carry one)
// and fans the event out on the bus, logging rather than failing the tick
// if nothing is subscribed or the bus is saturated.
func (s *Scheduler) publish(ctx context.Context, topic string, ev bus.Message) {
	if s.evBus == nil {
		return
	}
	if log.CorrelationIDFromContext(ctx) == "" {
		ctx = log.ContextWithCorrelationID(ctx, uuid.NewString())
	}
	if err := s.evBus.Publish(ctx, topic, ev); err != nil {
		log.WithComponent("scheduler").Warn().Err(err).Str("topic", topic).Msg("event publish dropped")
	}
}

// Run drives the tick timer and, when sub is non-nil, an event-drain loop,
// as one cancelable group (golang.org/x/sync/errgroup), following the
// teacher's convention of supervising its worker goroutines together
// rather than leaking independent ones.
func (s *Scheduler) Run(ctx context.Context, sub bus.Subscriber) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ticker := time.NewTicker(TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				s.Tick(ctx)
			}
		}
	})

	if sub != nil {
		g.Go(func() error {
			defer sub.Close()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case msg, ok := <-sub.C():
					if !ok {
						return nil
					}
					s.handleMessage(ctx, msg)
				}
			}
		})
	}

	return g.Wait()
}

// State returns the Scheduler's current top-level state.
func (s *Scheduler) State() State { return s.machine.State() }

// Start transitions the Scheduler from STOPPED to IDLE, ready to begin
// selection on the next Tick. If no level has been selected yet, it
// picks the starting level per spec.md §6's startLevel/testBandwidth
// options: an explicit startLevel is honored as-is, otherwise level 0 is
// used as a bitrate-test probe before ABR takes over (scenario S1).
func (s *Scheduler) Start() {
	if s.curLevel < 0 {
		if s.cfg.StartLevel >= 0 {
			s.curLevel = s.cfg.StartLevel
		} else {
			s.curLevel = 0
			s.bitrateTest = s.cfg.TestBandwidth
		}
	}
	s.transition(StateIdle)
}

// Stop cancels any in-flight load and returns the Scheduler to STOPPED
// (spec.md §5 "Cancellation").
func (s *Scheduler) Stop() {
	if s.fragCurrent != nil {
		s.fragLoader.Abort(s.fragCurrent)
		s.fragCurrent = nil
	}
	s.transition(StateStopped)
}

// OnLevelLoaded merges a freshly parsed playlist into Level State and, if
// the Scheduler was WAITING_LEVEL on exactly this level, returns to IDLE
// (spec.md §4.4 step 4).
func (s *Scheduler) OnLevelLoaded(lvl int, details *fragment.LevelDetails) {
	waitingOn := -1
	if s.machine.State() == StateWaitingLevel {
		waitingOn = s.curLevel
	}
	if details.TargetDuration > 0 {
		s.cfg.ResolveLiveSync(details.TargetDuration)
	}
	s.levels.LiveSyncDuration = s.cfg.LiveSyncDuration
	if s.levels.OnLevelLoaded(lvl, details, waitingOn) {
		s.transition(StateIdle)
	}
}

// Tick fires every TickInterval and on-demand after every relevant event
// (spec.md §4.5).
func (s *Scheduler) Tick(ctx context.Context) {
	ctx, span := s.tracer.Start(ctx, "scheduler.tick")
	defer span.End()

	start := s.clk.Now()
	defer func() {
		metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	switch s.machine.State() {
	case StateIdle:
		s.doSelection(ctx)
	case StateWaitingLevel:
		if s.levels.Details(s.curLevel) != nil {
			s.transition(StateIdle)
		}
	case StateFragLoadingWaitingRetry:
		if !s.retryDate.After(s.clk.Now()) || s.media.Seeking() {
			s.transition(StateIdle)
		}
	case StateBufferFlushing:
		s.fragLoadError = 0
	default:
		// no-op: other states only progress on async completion events
	}

	s.checkBuffer(ctx)
	s.checkFragmentChanged(ctx)
}

// fire applies a named event through the FSM's transition table,
// recording the same metrics/log as transition() on success. Unlike
// transition, it can fail (ErrNoTransition) when the current state
// doesn't expect this event; callers treat that as a tolerated no-op per
// spec.md §9.
func (s *Scheduler) fire(event Event) error {
	from := s.machine.State()
	to, err := s.machine.Fire(event)
	if err != nil {
		return err
	}
	metrics.FSMTransitions.WithLabelValues(string(from), string(to)).Inc()
	log.WithComponent("scheduler").Debug().
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(to)).
		Str(log.FieldEvent, string(event)).
		Msg("scheduler state transition")
	return nil
}

func (s *Scheduler) transition(to State) {
	from := s.machine.State()
	if from == to {
		return
	}
	s.machine.Set(to)
	metrics.FSMTransitions.WithLabelValues(string(from), string(to)).Inc()
	log.WithComponent("scheduler").Debug().
		Str(log.FieldOldState, string(from)).
		Str(log.FieldNewState, string(to)).
		Msg("scheduler state transition")
}

// bufLenCap computes maxBufLen per spec.md §4.5's selection preamble.
func (s *Scheduler) bufLenCap() float64 {
	limit := s.cfg.MaxBufferLength
	if br := s.abr.LevelBitrate(s.curLevel); br > 0 {
		byBytes := 8 * float64(s.cfg.MaxBufferSize) / float64(br)
		if byBytes > limit {
			limit = byBytes
		}
	}
	if limit > s.maxMaxBufferLength {
		limit = s.maxMaxBufferLength
	}
	if limit < 0 {
		limit = 0
	}
	return limit
}

// playbackPosition computes pos per spec.md §4.5's selection preamble.
func (s *Scheduler) playbackPosition() float64 {
	if s.loadedMetadata {
		return s.media.CurrentTime()
	}
	return s.nextLoadPosition
}
