package domain

// SessionState is the playback state of a Session.
type SessionState int

const (
	SessionIdle      SessionState = iota // No track playing, queue may be non-empty
	SessionPlaying                       // A track is active
	SessionStopping                      // Teardown in progress
	SessionDestroyed                     // Terminal
)

// String returns a human-readable representation of the state.
func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionPlaying:
		return "playing"
	case SessionStopping:
		return "stopping"
	case SessionDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true once the session no longer accepts operations.
func (s SessionState) IsTerminal() bool {
	return s == SessionStopping || s == SessionDestroyed
}
