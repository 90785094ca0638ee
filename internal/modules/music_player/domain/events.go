package domain

import (
	"github.com/disgoorg/snowflake/v2"
)

// TrackEndReason represents why a track ended.
type TrackEndReason string

const (
	// TrackEndFinished means the track finished normally.
	TrackEndFinished TrackEndReason = "finished"
	// TrackEndLoadFailed means the track failed to load.
	TrackEndLoadFailed TrackEndReason = "load_failed"
	// TrackEndStopped means the track was stopped by the user.
	TrackEndStopped TrackEndReason = "stopped"
	// TrackEndReplaced means the track was replaced by another.
	TrackEndReplaced TrackEndReason = "replaced"
	// TrackEndCleanup means the track was cleaned up.
	TrackEndCleanup TrackEndReason = "cleanup"
)

// ShouldAdvanceQueue returns true if this end reason should advance the queue.
// Stopped and replaced tracks were ended by a session operation that already
// decided what plays next.
func (r TrackEndReason) ShouldAdvanceQueue() bool {
	return r == TrackEndFinished || r == TrackEndLoadFailed
}

// TrackEndedEvent is published by the voice backend when a track ends.
type TrackEndedEvent struct {
	GuildID  snowflake.ID
	Playback PlaybackID // TrackHandle.ID of the ended track
	Reason   TrackEndReason
}

// PlaybackStartedEvent is published when a session starts a track.
type PlaybackStartedEvent struct {
	GuildID       snowflake.ID
	TextChannelID snowflake.ID
	Request       TrackRequest
}

// PlaybackFinishedEvent is published when a session stops playing without a
// successor: the queue ran dry, playback was stopped or the session ended.
// This signals that the "Now Playing" message should be deleted.
type PlaybackFinishedEvent struct {
	GuildID snowflake.ID
}

// PlaybackFailedEvent is published when a queued request was dropped because
// it could not be started.
type PlaybackFailedEvent struct {
	GuildID       snowflake.ID
	TextChannelID snowflake.ID
	Request       TrackRequest
	Err           error
}
