package domain

import (
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

var (
	// ErrNoVoiceChannel is returned when no channel was given and the caller
	// is not in a voice channel.
	ErrNoVoiceChannel = errors.New("you must specify or join a voice channel")

	// ErrSessionExists is matched by SessionExistsError.
	ErrSessionExists = errors.New("a session is already active in this server")

	// ErrJoinFailed wraps errors reported by the Connector while joining.
	ErrJoinFailed = errors.New("failed to join voice channel")

	// ErrConnection wraps errors reported while leaving a voice channel.
	ErrConnection = errors.New("voice connection error")

	// ErrPlaybackControl wraps play and stop failures of the voice backend.
	ErrPlaybackControl = errors.New("playback control failed")

	// ErrSessionDestroyed is returned by operations on a session that has been
	// torn down. Callers must fetch a fresh session from the registry.
	ErrSessionDestroyed = errors.New("session has been destroyed")
)

// SessionExistsError reports the channel an existing session is bound to.
type SessionExistsError struct {
	ChannelID snowflake.ID
}

func (e *SessionExistsError) Error() string {
	return fmt.Sprintf("I'm already playing in <#%d>", e.ChannelID)
}

// Is reports whether target is ErrSessionExists.
func (e *SessionExistsError) Is(target error) bool {
	return target == ErrSessionExists
}

// PlaybackError reports a queued request that was dropped because the
// connection failed to start it. It matches ErrPlaybackControl.
type PlaybackError struct {
	Request TrackRequest
	Err     error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("%s: play %q: %v", ErrPlaybackControl, e.Request.Source.Title, e.Err)
}

func (e *PlaybackError) Unwrap() []error {
	return []error{ErrPlaybackControl, e.Err}
}

// IsUserFacing returns true if the error message can be shown to a user verbatim.
func IsUserFacing(err error) bool {
	return errors.Is(err, ErrNoVoiceChannel) || errors.Is(err, ErrSessionExists)
}
