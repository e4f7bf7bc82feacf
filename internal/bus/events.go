// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package bus

import "github.com/ManuGH/hlscore/internal/fragment"

// Topic names for the event bus (spec.md §6).
const (
	TopicMediaAttached            = "media.attached"
	TopicMediaDetaching           = "media.detaching"
	TopicManifestLoading          = "manifest.loading"
	TopicManifestParsed           = "manifest.parsed"
	TopicLevelLoaded              = "level.loaded"
	TopicLevelsUpdated            = "levels.updated"
	TopicKeyLoaded                = "key.loaded"
	TopicFragLoadEmergencyAborted = "frag.load_emergency_aborted"
	TopicBufferCreated            = "buffer.created"
	TopicBufferAppended           = "buffer.appended"
	TopicBufferFlushed            = "buffer.flushed"
	TopicAudioTrackSwitching      = "audio_track.switching"
	TopicAudioTrackSwitched       = "audio_track.switched"
	TopicError                    = "error"

	TopicBufferReset            = "buffer.reset"
	TopicBufferCodecs           = "buffer.codecs"
	TopicBufferAppending        = "buffer.appending"
	TopicBufferFlushing         = "buffer.flushing"
	TopicBufferEOS              = "buffer.eos"
	TopicKeyLoading             = "key.loading"
	TopicFragLoading            = "frag.loading"
	TopicFragChanged            = "frag.changed"
	TopicFragBuffered           = "frag.buffered"
	TopicFragParsingInitSegment = "frag.parsing_init_segment"
	TopicFragParsingMetadata    = "frag.parsing_metadata"
	TopicFragParsingUserdata    = "frag.parsing_userdata"
	TopicInitPTSFound           = "init_pts.found"
	TopicLevelUpdated           = "level.updated"
	TopicLevelPTSUpdated        = "level.pts_updated"
	TopicLevelSwitched          = "level.switched"

	// TopicTransmuxComplete is not named in spec.md §6 (transmux internals
	// are a Non-goal), but the Scheduler's handleMessage still needs some
	// topic to receive the Transmux collaborator's completion payload on,
	// so schedulerd (and any other binary driving the core end to end)
	// has somewhere concrete to publish it.
	TopicTransmuxComplete = "transmux.complete"
)

// EventMediaAttached signals that the media element has been attached and
// playback may begin driving selection.
type EventMediaAttached struct{}

// EventMediaDetaching signals imminent teardown; in-flight loads must be
// aborted and fragCurrent cleared.
type EventMediaDetaching struct{}

// EventManifestLoading signals a fresh manifest fetch was kicked off.
type EventManifestLoading struct {
	URL string
}

// EventManifestParsed carries the parsed level set from the Playlist
// collaborator.
type EventManifestParsed struct {
	Levels []int
}

// EventLevelLoaded carries a freshly parsed LevelDetails for one level.
type EventLevelLoaded struct {
	Level   int
	Details *fragment.LevelDetails
}

// EventLevelsUpdated signals the level manifest set changed (e.g. ABR
// pruned a level).
type EventLevelsUpdated struct {
	Levels []int
}

// EventKeyLoaded signals decryption key material is ready for a fragment.
type EventKeyLoaded struct {
	Level int
	SN    int
}

// EventFragLoadEmergencyAborted signals the loader was force-aborted
// (e.g. on detach) mid-flight.
type EventFragLoadEmergencyAborted struct {
	Level int
	SN    int
}

// EventBufferCreated signals the Buffer Sink has initialized its source
// buffers for the given track kinds.
type EventBufferCreated struct {
	Tracks []string
}

// EventBufferAppended signals one sub-append (audio, video, ...) of a
// fragment's payload has drained into the buffer sink.
type EventBufferAppended struct {
	Parent  string // "main" | "audio"
	Pending int
}

// EventBufferFlushed signals a requested flush range has completed.
type EventBufferFlushed struct{}

// EventAudioTrackSwitching signals an alternate-audio track switch has
// begun.
type EventAudioTrackSwitching struct {
	ID  int
	URL string
}

// EventAudioTrackSwitched signals an alternate-audio track switch
// completed.
type EventAudioTrackSwitched struct {
	ID int
}

// EventError is the unified error envelope (spec.md §7).
type EventError struct {
	Details    string
	Fatal      bool
	Frag       *fragment.Fragment
	Parent     string
	LevelRetry bool
}
