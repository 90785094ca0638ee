package domain

import (
	"strconv"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// SourceDescriptor describes a playable source returned by a resolver.
// The session stores descriptors as-is and never resolves them itself.
type SourceDescriptor struct {
	Identifier string // Backend identifier, e.g. a YouTube video ID
	Encoded    string // Lavalink encoded track data, empty if the backend has none
	Title      string
	Artist     string
	Duration   time.Duration
	URI        string
	ArtworkURL string
	SourceName string // e.g., "youtube", "soundcloud"
	IsStream   bool
}

// Key returns the value used to recognise this source in playback events.
// Encoded data is preferred since that is what the voice backend reports back.
func (d SourceDescriptor) Key() string {
	if d.Encoded != "" {
		return d.Encoded
	}
	return d.URI
}

// IsPlayable returns true if the descriptor references something a
// connection can play.
func (d SourceDescriptor) IsPlayable() bool {
	return d.Encoded != "" || d.URI != ""
}

// FormattedDuration returns the duration as a human-readable string (mm:ss or hh:mm:ss).
func (d SourceDescriptor) FormattedDuration() string {
	if d.IsStream {
		return "LIVE"
	}

	totalSeconds := int(d.Duration.Seconds())
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return pad(hours) + ":" + pad(minutes) + ":" + pad(seconds)
	}
	return pad(minutes) + ":" + pad(seconds)
}

func pad(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// TrackRequest is a queued, not-yet-playing unit of work.
// It is an immutable value: copies are handed out, never pointers into the queue.
type TrackRequest struct {
	Source      SourceDescriptor
	RequesterID snowflake.ID
	EnqueuedAt  time.Time
}

// NewTrackRequest creates a TrackRequest stamped with the current time.
func NewTrackRequest(source SourceDescriptor, requesterID snowflake.ID) TrackRequest {
	return TrackRequest{
		Source:      source,
		RequesterID: requesterID,
		EnqueuedAt:  time.Now().UTC(),
	}
}
