// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging, so call sites
// spell a given attribute the same way everywhere.
const (
	// Identity fields
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"

	// Scheduling fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldLevel     = "level"
	FieldSN        = "sn"
	FieldOldState  = "old_state"
	FieldNewState  = "new_state"
	FieldReason    = "reason"

	// Media fields
	FieldCodec      = "codec"
	FieldPTS        = "pts"
	FieldDTS        = "dts"
	FieldBufferLen  = "buffer_len"
	FieldRetryCount = "retry_count"
)
