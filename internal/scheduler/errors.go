// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import "fmt"

// ReasonCode is a compact, typed failure/decision signal (SPEC_FULL.md
// §A.2), mirroring the teacher's model.ReasonCode pattern so callers
// branch on a closed enum instead of string-matching error text.
type ReasonCode string

const (
	RNone              ReasonCode = "NONE"
	RFragLoadError     ReasonCode = "FRAG_LOAD_ERROR"
	RFragLoadTimeout   ReasonCode = "FRAG_LOAD_TIMEOUT"
	RKeyLoadError      ReasonCode = "KEY_LOAD_ERROR"
	RBufferFullError   ReasonCode = "BUFFER_FULL_ERROR"
	RBufferAppendError ReasonCode = "BUFFER_APPEND_ERROR"
	RLevelLoadError    ReasonCode = "LEVEL_LOAD_ERROR"
	RFatalInternal     ReasonCode = "FATAL_INTERNAL"
)

// Fatal reports whether this reason is fatal on its own regardless of the
// retry budget (spec.md §7: "any event with fatal=true for a main
// fragment").
func (r ReasonCode) Fatal() bool {
	return r == RFatalInternal || r == RBufferAppendError
}

// Retryable reports whether this reason participates in the fragment
// retry envelope (spec.md §4.10).
func (r ReasonCode) Retryable() bool {
	switch r {
	case RFragLoadError, RFragLoadTimeout, RKeyLoadError:
		return true
	default:
		return false
	}
}

// SchedulerError wraps an underlying error with a ReasonCode so
// collaborators and tests can branch via errors.Is/errors.As.
type SchedulerError struct {
	Reason ReasonCode
	Level  int
	SN     int
	Err    error
}

func (e *SchedulerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s (level=%d sn=%d): %v", e.Reason, e.Level, e.SN, e.Err)
	}
	return fmt.Sprintf("%s (level=%d sn=%d)", e.Reason, e.Level, e.SN)
}

func (e *SchedulerError) Unwrap() error { return e.Err }

// Is supports errors.Is(err, SomeReasonSentinel) style matching against a
// bare *SchedulerError carrying only a Reason.
func (e *SchedulerError) Is(target error) bool {
	t, ok := target.(*SchedulerError)
	if !ok {
		return false
	}
	return t.Reason == e.Reason
}

// newErr builds a *SchedulerError, used throughout the package instead of
// fmt.Errorf so every failure carries a typed reason.
func newErr(reason ReasonCode, level, sn int, err error) *SchedulerError {
	return &SchedulerError{Reason: reason, Level: level, SN: sn, Err: err}
}
