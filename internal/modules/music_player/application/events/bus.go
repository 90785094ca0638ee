package events

import (
	"log/slog"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/ports"
)

// DefaultEventBufferSize is used when NewBus is given a non-positive size.
const DefaultEventBufferSize = 100

var _ ports.EventPublisher = (*Bus)(nil)

// topic is one buffered event stream of the bus.
type topic[E any] struct {
	name string
	ch   chan E
}

func newTopic[E any](name string, size int) topic[E] {
	return topic[E]{name: name, ch: make(chan E, size)}
}

// Bus fans playback events out to the event handlers over buffered channels.
// Publishing never blocks: when a topic's buffer is full the event is dropped
// and logged, so a slow Discord API cannot stall the voice backend callbacks.
type Bus struct {
	trackEnded       topic[TrackEndedEvent]
	playbackStarted  topic[PlaybackStartedEvent]
	playbackFinished topic[PlaybackFinishedEvent]
	playbackFailed   topic[PlaybackFailedEvent]

	mu     sync.RWMutex
	closed bool
}

// NewBus creates a Bus whose topics each buffer bufferSize events.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}

	return &Bus{
		trackEnded:       newTopic[TrackEndedEvent]("track_ended", bufferSize),
		playbackStarted:  newTopic[PlaybackStartedEvent]("playback_started", bufferSize),
		playbackFinished: newTopic[PlaybackFinishedEvent]("playback_finished", bufferSize),
		playbackFailed:   newTopic[PlaybackFailedEvent]("playback_failed", bufferSize),
	}
}

// publish must be a function since methods cannot have type parameters.
func publish[E any](b *Bus, t topic[E], event E, guildID snowflake.ID) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		slog.Debug("dropping event published after close", "type", t.name, "guild", guildID)
		return
	}

	select {
	case t.ch <- event:
	default:
		slog.Warn("event buffer full, dropping event", "type", t.name, "guild", guildID)
	}
}

func (b *Bus) PublishTrackEnded(event TrackEndedEvent) {
	publish(b, b.trackEnded, event, event.GuildID)
}

func (b *Bus) PublishPlaybackStarted(event PlaybackStartedEvent) {
	publish(b, b.playbackStarted, event, event.GuildID)
}

func (b *Bus) PublishPlaybackFinished(event PlaybackFinishedEvent) {
	publish(b, b.playbackFinished, event, event.GuildID)
}

func (b *Bus) PublishPlaybackFailed(event PlaybackFailedEvent) {
	publish(b, b.playbackFailed, event, event.GuildID)
}

func (b *Bus) TrackEnded() <-chan TrackEndedEvent             { return b.trackEnded.ch }
func (b *Bus) PlaybackStarted() <-chan PlaybackStartedEvent   { return b.playbackStarted.ch }
func (b *Bus) PlaybackFinished() <-chan PlaybackFinishedEvent { return b.playbackFinished.ch }
func (b *Bus) PlaybackFailed() <-chan PlaybackFailedEvent     { return b.playbackFailed.ch }

// Close closes every topic. Later publishes are dropped. Safe to call twice.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	close(b.trackEnded.ch)
	close(b.playbackStarted.ch)
	close(b.playbackFinished.ch)
	close(b.playbackFailed.ch)
}
