// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package scheduler

import (
	"context"
	"time"

	"github.com/ManuGH/hlscore/internal/fragment"
)

// Media is the subset of the HTML media element's surface the Scheduler
// needs (spec.md §6). currentTime is read-write; everything else is
// read-only to the Scheduler except at start-up, live catch-up, and
// immediate-switch nudge points named in spec.md §5.
type Media interface {
	CurrentTime() float64
	SetCurrentTime(float64)
	ReadyState() int
	Seeking() bool
	Paused() bool
	Duration() float64
	Buffered() []fragment.Range
	Play()
	Pause()
}

// KeyLoader loads decryption key material for an encrypted fragment.
// Completion arrives later as a KEY_LOADED event on the bus, per spec.md
// §6; LoadKey only kicks the operation off.
type KeyLoader interface {
	LoadKey(ctx context.Context, frag *fragment.Fragment) error
}

// FragmentLoader fetches a fragment's bytes. Like KeyLoader, completion
// is asynchronous; the core treats FragLoad as fire-and-forget and reacts
// to the transmux-complete event once bytes have made it through the
// Transmux collaborator (spec.md §2 data flow).
type FragmentLoader interface {
	LoadFragment(ctx context.Context, frag *fragment.Fragment) error
	Abort(frag *fragment.Fragment)
}

// TransmuxResult is what the Transmux collaborator reports back on
// completion (spec.md §4.5 "Transmux completion").
type TransmuxResult struct {
	Level             int
	SN                int
	StartPTS, EndPTS   float64
	StartDTS, EndDTS   float64
	DeltaPTS           float64
	Dropped            int
	ElementaryStreams  map[fragment.ElementaryStream]bool
	AudioPayload       []byte
	VideoPayload       []byte
	TextPayload        []byte
	ID3Payload         []byte
	InitSegment        []byte
	Codecs             map[fragment.ElementaryStream]string
}

// Transmuxer repackages a loaded fragment's bytes (spec.md's transmux
// non-goal: internals are out of scope, only the interface the Scheduler
// drives is in scope).
type Transmuxer interface {
	Push(ctx context.Context, frag *fragment.Fragment, data []byte) error
	Destroy()
}

// BufferSink is the single writer of Media Source buffers (spec.md §5).
type BufferSink interface {
	AppendInitSegment(ctx context.Context, level int, data []byte) error
	Append(ctx context.Context, parent string, kind fragment.ElementaryStream, data []byte) error
	Flush(ctx context.Context, startOffset, endOffset float64, kind string) error
	Reset(ctx context.Context) error
}

// ABR supplies the currently-estimated bitrate for a level, used to scale
// maxBufLen (spec.md §4.5 selection).
type ABR interface {
	LevelBitrate(level int) int // bits/sec, 0 if unknown
	NextAutoLevel() int
}

// Clock abstracts time.Now so retry-deadline tests are deterministic.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
