// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

// State is the Scheduler's top-level lifecycle state (spec.md §3).
type State string

const (
	StateStopped                 State = "STOPPED"
	StateIdle                    State = "IDLE"
	StateWaitingLevel            State = "WAITING_LEVEL"
	StateKeyLoading              State = "KEY_LOADING"
	StateFragLoading             State = "FRAG_LOADING"
	StateFragLoadingWaitingRetry State = "FRAG_LOADING_WAITING_RETRY"
	StateParsing                 State = "PARSING"
	StateBufferFlushing          State = "BUFFER_FLUSHING"
	StateEnded                   State = "ENDED"
	StateError                   State = "ERROR"
)

// Event is an edge label in the Scheduler's FSM (spec.md §6's consumed
// events, narrowed to the ones that are literal state-machine triggers
// rather than side-channel bookkeeping).
type Event string

const (
	EventKeyLoaded        Event = "KEY_LOADED"
	EventTransmuxComplete Event = "TRANSMUX_COMPLETE"
	EventAppendDrained    Event = "APPEND_DRAINED"
)
