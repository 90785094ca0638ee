package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/ports"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

// notifyTimeout bounds each Discord call made for one event.
const notifyTimeout = 10 * time.Second

// loop runs a handler goroutine until ctx is cancelled or Stop is called.
type loop struct {
	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

func newLoop() loop {
	return loop{done: make(chan struct{})}
}

func (l *loop) run(fn func()) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		fn()
	}()
}

func (l *loop) stop() {
	l.stopOnce.Do(func() { close(l.done) })
	l.wg.Wait()
}

// PlaybackEventHandler feeds track-end events from the voice backend into the
// owning session so the queue advances when a track finishes on its own.
type PlaybackEventHandler struct {
	registry  *domain.SessionRegistry
	publisher ports.EventPublisher
	bus       *Bus
	loop      loop
}

// NewPlaybackEventHandler creates a new PlaybackEventHandler.
// Events are consumed from bus; follow-up events go to publisher.
func NewPlaybackEventHandler(
	registry *domain.SessionRegistry,
	publisher ports.EventPublisher,
	bus *Bus,
) *PlaybackEventHandler {
	return &PlaybackEventHandler{
		registry:  registry,
		publisher: publisher,
		bus:       bus,
		loop:      newLoop(),
	}
}

// Start consumes track-end events in a background goroutine.
func (h *PlaybackEventHandler) Start(ctx context.Context) {
	h.loop.run(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-h.loop.done:
				return
			case event, ok := <-h.bus.TrackEnded():
				if !ok {
					return
				}
				h.handleTrackEnded(ctx, event)
			}
		}
	})
}

// Stop stops the handler and waits for it to exit.
func (h *PlaybackEventHandler) Stop() {
	h.loop.stop()
}

func (h *PlaybackEventHandler) handleTrackEnded(ctx context.Context, event TrackEndedEvent) {
	// Stopped and replaced tracks were ended by a session operation
	if !event.Reason.ShouldAdvanceQueue() {
		slog.Debug("track ended without advancing",
			"guild", event.GuildID,
			"reason", event.Reason,
		)
		return
	}

	session := h.registry.Get(event.GuildID)
	if session == nil {
		slog.Debug("track ended but no session", "guild", event.GuildID)
		return
	}

	started, err := session.TrackFinished(ctx, event.Playback)

	var playErr *domain.PlaybackError
	if errors.As(err, &playErr) {
		dropped := []*domain.PlaybackError{playErr}
		var more []*domain.PlaybackError
		started, more, err = session.StartNextPlayable(ctx)
		dropped = append(dropped, more...)

		for _, d := range dropped {
			h.publisher.PublishPlaybackFailed(PlaybackFailedEvent{
				GuildID:       event.GuildID,
				TextChannelID: session.TextChannelID(),
				Request:       d.Request,
				Err:           d.Err,
			})
		}
	}
	if err != nil {
		slog.Error("failed to advance after track ended",
			"guild", event.GuildID,
			"session", session.ID(),
			"error", err,
		)
	}

	if started != nil {
		h.publisher.PublishPlaybackStarted(PlaybackStartedEvent{
			GuildID:       event.GuildID,
			TextChannelID: session.TextChannelID(),
			Request:       *started,
		})
		return
	}

	if _, playing := session.NowPlaying(); !playing {
		h.publisher.PublishPlaybackFinished(PlaybackFinishedEvent{GuildID: event.GuildID})
	}
}

// sentMessage locates a posted "Now Playing" message.
type sentMessage struct {
	channelID snowflake.ID
	messageID snowflake.ID
}

// NotificationEventHandler keeps one "Now Playing" message per guild in sync
// with playback and reports tracks that could not be played.
type NotificationEventHandler struct {
	notifier ports.NotificationSender
	userInfo ports.UserInfoProvider // Optional
	registry *domain.SessionRegistry
	bus      *Bus
	loop     loop

	mu       sync.Mutex
	messages map[snowflake.ID]sentMessage
}

// NewNotificationEventHandler creates a new NotificationEventHandler.
func NewNotificationEventHandler(
	notifier ports.NotificationSender,
	userInfo ports.UserInfoProvider,
	registry *domain.SessionRegistry,
	bus *Bus,
) *NotificationEventHandler {
	return &NotificationEventHandler{
		notifier: notifier,
		userInfo: userInfo,
		registry: registry,
		bus:      bus,
		loop:     newLoop(),
		messages: make(map[snowflake.ID]sentMessage),
	}
}

// Start consumes notification events in one background goroutine so a
// guild's messages are posted and deleted in order.
func (h *NotificationEventHandler) Start(ctx context.Context) {
	h.loop.run(func() {
		started := h.bus.PlaybackStarted()
		finished := h.bus.PlaybackFinished()
		failed := h.bus.PlaybackFailed()

		for started != nil || finished != nil || failed != nil {
			select {
			case <-ctx.Done():
				return
			case <-h.loop.done:
				return
			case event, ok := <-started:
				if !ok {
					started = nil
					continue
				}
				h.handlePlaybackStarted(ctx, event)
			case event, ok := <-finished:
				if !ok {
					finished = nil
					continue
				}
				h.deletePrevious(ctx, event.GuildID)
			case event, ok := <-failed:
				if !ok {
					failed = nil
					continue
				}
				h.handlePlaybackFailed(ctx, event)
			}
		}
	})
}

// Stop stops the handler and waits for it to exit.
func (h *NotificationEventHandler) Stop() {
	h.loop.stop()
}

func (h *NotificationEventHandler) handlePlaybackStarted(ctx context.Context, event PlaybackStartedEvent) {
	// A track that already ended must not leave an orphaned message behind
	if !h.isCurrent(event) {
		slog.Debug("skipping now playing message for a track no longer playing",
			"guild", event.GuildID,
			"track", event.Request.Source.Title,
		)
		return
	}

	h.deletePrevious(ctx, event.GuildID)

	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	messageID, err := h.notifier.SendNowPlaying(ctx, event.TextChannelID, h.nowPlayingInfo(ctx, event))
	if err != nil {
		slog.Error("failed to send now playing message",
			"guild", event.GuildID,
			"error", err,
		)
		return
	}

	h.mu.Lock()
	h.messages[event.GuildID] = sentMessage{
		channelID: event.TextChannelID,
		messageID: messageID,
	}
	h.mu.Unlock()
}

func (h *NotificationEventHandler) handlePlaybackFailed(ctx context.Context, event PlaybackFailedEvent) {
	slog.Warn("dropped track that failed to start",
		"guild", event.GuildID,
		"track", event.Request.Source.Title,
		"error", event.Err,
	)

	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	message := fmt.Sprintf("Couldn't play **%s**, skipping it.", event.Request.Source.Title)
	if err := h.notifier.SendError(ctx, event.TextChannelID, message); err != nil {
		slog.Warn("failed to send playback error", "guild", event.GuildID, "error", err)
	}
}

func (h *NotificationEventHandler) isCurrent(event PlaybackStartedEvent) bool {
	if h.registry == nil {
		return true
	}
	session := h.registry.Get(event.GuildID)
	if session == nil {
		return false
	}
	current, ok := session.NowPlaying()
	return ok && current == event.Request
}

// deletePrevious removes the guild's tracked message, if any.
func (h *NotificationEventHandler) deletePrevious(ctx context.Context, guildID snowflake.ID) {
	h.mu.Lock()
	msg, ok := h.messages[guildID]
	delete(h.messages, guildID)
	h.mu.Unlock()

	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()

	if err := h.notifier.DeleteMessage(ctx, msg.channelID, msg.messageID); err != nil {
		slog.Warn("failed to delete now playing message",
			"guild", guildID,
			"message", msg.messageID,
			"error", err,
		)
	}
}

func (h *NotificationEventHandler) nowPlayingInfo(ctx context.Context, event PlaybackStartedEvent) ports.NowPlayingInfo {
	info := ports.NowPlayingInfo{
		Track:      event.Request.Source,
		Requester:  ports.UserInfo{ID: event.Request.RequesterID},
		EnqueuedAt: event.Request.EnqueuedAt,
	}

	if h.userInfo == nil {
		return info
	}

	user, err := h.userInfo.GetUserInfo(ctx, event.GuildID, event.Request.RequesterID)
	if err != nil {
		slog.Debug("failed to look up requester",
			"guild", event.GuildID,
			"user", event.Request.RequesterID,
			"error", err,
		)
		return info
	}
	info.Requester = user
	return info
}
