package ports

import "github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"

// EventPublisher hands playback events to asynchronous consumers.
// Implementations must not block the caller.
type EventPublisher interface {
	PublishTrackEnded(event domain.TrackEndedEvent)
	PublishPlaybackStarted(event domain.PlaybackStartedEvent)
	PublishPlaybackFinished(event domain.PlaybackFinishedEvent)
	PublishPlaybackFailed(event domain.PlaybackFailedEvent)
}
