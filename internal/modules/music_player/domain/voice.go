package domain

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
)

// Connector establishes voice connections.
type Connector interface {
	// Join connects to the voice channel and returns a handle owning the connection.
	// It may block until the voice backend confirms the connection.
	Join(ctx context.Context, guildID, channelID snowflake.ID) (Connection, error)
}

// Connection is a live voice connection to a single channel.
type Connection interface {
	// Play starts the source, replacing whatever the connection was playing.
	Play(ctx context.Context, source SourceDescriptor) (TrackHandle, error)

	// Leave disconnects from the channel. Best-effort.
	Leave(ctx context.Context) error
}

// PlaybackID identifies one start of a track. Playing the same source twice
// yields two different IDs.
type PlaybackID uint64

// TrackHandle controls one started track.
type TrackHandle interface {
	// ID returns the playback this handle controls. Track-end events for it
	// carry the same ID.
	ID() PlaybackID

	// Stop halts the track's output.
	Stop(ctx context.Context) error
}

// ChannelLocator finds the voice channel a user is currently in.
type ChannelLocator interface {
	// UserVoiceChannel returns the user's voice channel, or 0 if the user is not in one.
	UserVoiceChannel(guildID, userID snowflake.ID) (snowflake.ID, error)
}
