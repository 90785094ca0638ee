package events

import (
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

// Event types carried by the bus.
type (
	PlaybackStartedEvent  = domain.PlaybackStartedEvent
	PlaybackFinishedEvent = domain.PlaybackFinishedEvent
	PlaybackFailedEvent   = domain.PlaybackFailedEvent
	TrackEndedEvent       = domain.TrackEndedEvent
	TrackEndReason        = domain.TrackEndReason
)

const (
	TrackEndFinished   = domain.TrackEndFinished
	TrackEndLoadFailed = domain.TrackEndLoadFailed
	TrackEndStopped    = domain.TrackEndStopped
	TrackEndReplaced   = domain.TrackEndReplaced
	TrackEndCleanup    = domain.TrackEndCleanup
)
