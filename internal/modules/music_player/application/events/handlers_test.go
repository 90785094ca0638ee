package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/ports"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

const (
	testGuildID       = snowflake.ID(1)
	testUserID        = snowflake.ID(10)
	testVoiceChannel  = snowflake.ID(100)
	testTextChannelID = snowflake.ID(200)
)

// mockHandle, mockConnection and mockConnector satisfy the domain voice capabilities.
// mockHandle IDs count successful plays from 1.
type mockHandle struct{ id domain.PlaybackID }

func (h mockHandle) ID() domain.PlaybackID    { return h.id }
func (mockHandle) Stop(context.Context) error { return nil }

type mockConnection struct {
	mu     sync.Mutex
	played []string
	broken map[string]bool // Titles that fail to play
}

func (c *mockConnection) Play(_ context.Context, source domain.SourceDescriptor) (domain.TrackHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken[source.Title] {
		return nil, errors.New("track unavailable")
	}
	c.played = append(c.played, source.Title)
	return mockHandle{id: domain.PlaybackID(len(c.played))}, nil
}

func (c *mockConnection) Leave(context.Context) error { return nil }

func (c *mockConnection) getPlayed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.played...)
}

type mockConnector struct {
	conn *mockConnection
}

func (m *mockConnector) Join(context.Context, snowflake.ID, snowflake.ID) (domain.Connection, error) {
	return m.conn, nil
}

type mockLocator struct{}

func (mockLocator) UserVoiceChannel(_, _ snowflake.ID) (snowflake.ID, error) {
	return testVoiceChannel, nil
}

// mockPublisher records published events.
type mockPublisher struct {
	mu       sync.Mutex
	started  []PlaybackStartedEvent
	finished []PlaybackFinishedEvent
	failed   []PlaybackFailedEvent
}

func (m *mockPublisher) PublishTrackEnded(TrackEndedEvent) {}

func (m *mockPublisher) PublishPlaybackStarted(event PlaybackStartedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = append(m.started, event)
}

func (m *mockPublisher) PublishPlaybackFinished(event PlaybackFinishedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, event)
}

func (m *mockPublisher) PublishPlaybackFailed(event PlaybackFailedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, event)
}

func (m *mockPublisher) counts() (started, finished int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.started), len(m.finished)
}

// mockNotifier is a test double for ports.NotificationSender.
type mockNotifier struct {
	mu                sync.Mutex
	sentNowPlaying    []ports.NowPlayingInfo
	sentErrors        []string
	deletedMessages   []snowflake.ID
	sendNowPlayingErr error
	lastMessageID     snowflake.ID
}

func (m *mockNotifier) SendNowPlaying(
	_ context.Context,
	_ snowflake.ID,
	info ports.NowPlayingInfo,
) (snowflake.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendNowPlayingErr != nil {
		return 0, m.sendNowPlayingErr
	}
	m.sentNowPlaying = append(m.sentNowPlaying, info)
	m.lastMessageID++
	return m.lastMessageID, nil
}

func (m *mockNotifier) DeleteMessage(_ context.Context, _, messageID snowflake.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletedMessages = append(m.deletedMessages, messageID)
	return nil
}

func (m *mockNotifier) SendError(_ context.Context, _ snowflake.ID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentErrors = append(m.sentErrors, message)
	return nil
}

func (m *mockNotifier) getSentNowPlaying() []ports.NowPlayingInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.NowPlayingInfo(nil), m.sentNowPlaying...)
}

func (m *mockNotifier) getSentErrors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sentErrors...)
}

func (m *mockNotifier) getDeletedMessages() []snowflake.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]snowflake.ID(nil), m.deletedMessages...)
}

type mockUserInfo struct {
	err error
}

func (m *mockUserInfo) GetUserInfo(_ context.Context, _, userID snowflake.ID) (ports.UserInfo, error) {
	if m.err != nil {
		return ports.UserInfo{}, m.err
	}
	return ports.UserInfo{ID: userID, DisplayName: "Alice", AvatarURL: "https://cdn.example/a.png"}, nil
}

func mockRequest(id string) domain.TrackRequest {
	return domain.NewTrackRequest(domain.SourceDescriptor{
		Identifier: id,
		Encoded:    "encoded-" + id,
		Title:      "Track " + id,
		Artist:     "Artist",
		Duration:   3 * time.Minute,
	}, testUserID)
}

// newPlayingRegistry returns a registry with one session playing the first
// request and holding the rest in its queue.
func newPlayingRegistry(
	t *testing.T,
	requests ...domain.TrackRequest,
) (*domain.SessionRegistry, *domain.Session, *mockConnection) {
	t.Helper()

	conn := &mockConnection{}
	registry := domain.NewSessionRegistry(&mockConnector{conn: conn}, mockLocator{})
	session, err := registry.GetOrCreate(context.Background(), domain.CreateSessionInput{
		GuildID:       testGuildID,
		UserID:        testUserID,
		TextChannelID: testTextChannelID,
	})
	if err != nil {
		t.Fatalf("unexpected error creating session: %v", err)
	}
	if len(requests) > 0 {
		if _, err := session.Append(requests...); err != nil {
			t.Fatalf("unexpected error appending: %v", err)
		}
		if _, err := session.StartIfIdle(context.Background()); err != nil {
			t.Fatalf("unexpected error starting: %v", err)
		}
	}
	return registry, session, conn
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// --- PlaybackEventHandler Tests ---

func TestPlaybackEventHandler_TrackEnded_Finished_AdvancesQueue(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	registry, session, conn := newPlayingRegistry(t, mockRequest("current"), mockRequest("next"))
	publisher := &mockPublisher{}

	handler := NewPlaybackEventHandler(registry, publisher, bus)
	handler.Start(testContext(t))
	defer handler.Stop()

	bus.PublishTrackEnded(TrackEndedEvent{
		GuildID:  testGuildID,
		Playback: 1,
		Reason:   TrackEndFinished,
	})

	waitFor(t, func() bool {
		started, _ := publisher.counts()
		return started == 1
	})

	current, ok := session.NowPlaying()
	if !ok || current.Source.Title != "Track next" {
		t.Errorf("expected Track next to be playing, got %+v", current)
	}
	if played := conn.getPlayed(); len(played) != 2 {
		t.Errorf("expected 2 plays, got %v", played)
	}
	if publisher.started[0].TextChannelID != testTextChannelID {
		t.Errorf("expected text channel %d, got %d", testTextChannelID, publisher.started[0].TextChannelID)
	}
}

func TestPlaybackEventHandler_TrackEnded_LastTrack_PublishesFinished(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	registry, session, _ := newPlayingRegistry(t, mockRequest("only"))
	publisher := &mockPublisher{}

	handler := NewPlaybackEventHandler(registry, publisher, bus)
	handler.Start(testContext(t))
	defer handler.Stop()

	bus.PublishTrackEnded(TrackEndedEvent{
		GuildID:  testGuildID,
		Playback: 1,
		Reason:   TrackEndFinished,
	})

	waitFor(t, func() bool {
		_, finished := publisher.counts()
		return finished == 1
	})

	if session.State() != domain.SessionIdle {
		t.Errorf("expected idle session, got %s", session.State())
	}
}

func TestPlaybackEventHandler_TrackEnded_IgnoredEvents(t *testing.T) {
	tests := []struct {
		name  string
		event TrackEndedEvent
	}{
		{
			name: "stopped reason",
			event: TrackEndedEvent{
				GuildID:  testGuildID,
				Playback: 1,
				Reason:   TrackEndStopped,
			},
		},
		{
			name: "replaced reason",
			event: TrackEndedEvent{
				GuildID:  testGuildID,
				Playback: 1,
				Reason:   TrackEndReplaced,
			},
		},
		{
			name: "stale track",
			event: TrackEndedEvent{
				GuildID:  testGuildID,
				Playback: 0,
				Reason:   TrackEndFinished,
			},
		},
		{
			name: "unknown guild",
			event: TrackEndedEvent{
				GuildID:  snowflake.ID(999),
				Playback: 1,
				Reason:   TrackEndFinished,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, session, _ := newPlayingRegistry(t, mockRequest("current"), mockRequest("next"))
			publisher := &mockPublisher{}

			// Driven synchronously; the goroutine loop is covered elsewhere.
			handler := NewPlaybackEventHandler(registry, publisher, NewBus(1))
			handler.handleTrackEnded(context.Background(), tt.event)

			current, ok := session.NowPlaying()
			if !ok || current.Source.Title != "Track current" {
				t.Errorf("expected Track current to keep playing, got %+v", current)
			}
			if started, finished := publisher.counts(); started != 0 || finished != 0 {
				t.Errorf("expected no events, got %d started and %d finished", started, finished)
			}
		})
	}
}

func TestPlaybackEventHandler_TrackEnded_SkipsBrokenTracks(t *testing.T) {
	registry, session, conn := newPlayingRegistry(t,
		mockRequest("current"), mockRequest("gone"), mockRequest("removed"), mockRequest("next"))
	conn.broken = map[string]bool{"Track gone": true, "Track removed": true}
	publisher := &mockPublisher{}

	handler := NewPlaybackEventHandler(registry, publisher, NewBus(1))
	handler.handleTrackEnded(context.Background(), TrackEndedEvent{
		GuildID:  testGuildID,
		Playback: 1,
		Reason:   TrackEndFinished,
	})

	current, ok := session.NowPlaying()
	if !ok || current.Source.Title != "Track next" {
		t.Errorf("expected Track next to be playing, got %+v", current)
	}
	if len(publisher.failed) != 2 {
		t.Fatalf("expected 2 PlaybackFailed events, got %d", len(publisher.failed))
	}
	if publisher.failed[0].Request.Source.Title != "Track gone" ||
		publisher.failed[1].Request.Source.Title != "Track removed" {
		t.Errorf("expected failures in queue order, got %+v", publisher.failed)
	}
	if started, finished := publisher.counts(); started != 1 || finished != 0 {
		t.Errorf("expected 1 started and 0 finished, got %d and %d", started, finished)
	}
}

func TestPlaybackEventHandler_StopsOnContextCancellation(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	registry, _, _ := newPlayingRegistry(t)
	handler := NewPlaybackEventHandler(registry, &mockPublisher{}, bus)

	ctx, cancel := context.WithCancel(context.Background())
	handler.Start(ctx)

	cancel()

	done := make(chan struct{})
	go func() {
		handler.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Error("handler did not stop after context cancellation")
	}
}

// --- NotificationEventHandler Tests ---

func TestNotificationEventHandler_PlaybackStarted_SendsNowPlaying(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	request := mockRequest("track-1")
	registry, _, _ := newPlayingRegistry(t, request)
	notifier := &mockNotifier{}

	handler := NewNotificationEventHandler(notifier, &mockUserInfo{}, registry, bus)
	handler.Start(testContext(t))
	defer handler.Stop()

	bus.PublishPlaybackStarted(PlaybackStartedEvent{
		GuildID:       testGuildID,
		TextChannelID: testTextChannelID,
		Request:       request,
	})

	waitFor(t, func() bool { return len(notifier.getSentNowPlaying()) == 1 })

	sent := notifier.getSentNowPlaying()[0]
	if sent.Track.Title != "Track track-1" {
		t.Errorf("expected title %q, got %q", "Track track-1", sent.Track.Title)
	}
	if sent.Requester.DisplayName != "Alice" {
		t.Errorf("expected requester name Alice, got %q", sent.Requester.DisplayName)
	}
	if !sent.EnqueuedAt.Equal(request.EnqueuedAt) {
		t.Errorf("expected enqueue time %v, got %v", request.EnqueuedAt, sent.EnqueuedAt)
	}
}

func TestNotificationEventHandler_PlaybackStarted_UserInfoFailure_StillSends(t *testing.T) {
	request := mockRequest("track-1")
	registry, _, _ := newPlayingRegistry(t, request)
	notifier := &mockNotifier{}

	handler := NewNotificationEventHandler(
		notifier,
		&mockUserInfo{err: errors.New("lookup failed")},
		registry,
		NewBus(1),
	)
	handler.handlePlaybackStarted(context.Background(), PlaybackStartedEvent{
		GuildID:       testGuildID,
		TextChannelID: testTextChannelID,
		Request:       request,
	})

	sent := notifier.getSentNowPlaying()
	if len(sent) != 1 {
		t.Fatalf("expected 1 now playing notification, got %d", len(sent))
	}
	if sent[0].Requester.DisplayName != "" {
		t.Errorf("expected empty requester name, got %q", sent[0].Requester.DisplayName)
	}
	if sent[0].Requester.ID != testUserID {
		t.Errorf("expected requester ID %d, got %d", testUserID, sent[0].Requester.ID)
	}
}

func TestNotificationEventHandler_PlaybackStarted_NotCurrent_Skips(t *testing.T) {
	registry, _, _ := newPlayingRegistry(t, mockRequest("current"))
	notifier := &mockNotifier{}

	handler := NewNotificationEventHandler(notifier, nil, registry, NewBus(1))
	handler.handlePlaybackStarted(context.Background(), PlaybackStartedEvent{
		GuildID:       testGuildID,
		TextChannelID: testTextChannelID,
		Request:       mockRequest("old"),
	})

	if sent := notifier.getSentNowPlaying(); len(sent) != 0 {
		t.Errorf("expected no notification for a stale track, got %d", len(sent))
	}
}

func TestNotificationEventHandler_ReplacesPreviousMessage(t *testing.T) {
	first := mockRequest("first")
	second := mockRequest("second")
	registry, session, _ := newPlayingRegistry(t, first, second)
	notifier := &mockNotifier{}

	handler := NewNotificationEventHandler(notifier, nil, registry, NewBus(1))
	handler.handlePlaybackStarted(context.Background(), PlaybackStartedEvent{
		GuildID:       testGuildID,
		TextChannelID: testTextChannelID,
		Request:       first,
	})

	if _, err := session.Advance(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	handler.handlePlaybackStarted(context.Background(), PlaybackStartedEvent{
		GuildID:       testGuildID,
		TextChannelID: testTextChannelID,
		Request:       second,
	})

	deleted := notifier.getDeletedMessages()
	if len(deleted) != 1 || deleted[0] != snowflake.ID(1) {
		t.Errorf("expected first message to be deleted, got %v", deleted)
	}
	if sent := notifier.getSentNowPlaying(); len(sent) != 2 {
		t.Errorf("expected 2 notifications, got %d", len(sent))
	}
}

func TestNotificationEventHandler_PlaybackFinished_DeletesMessage(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	request := mockRequest("track-1")
	registry, _, _ := newPlayingRegistry(t, request)
	notifier := &mockNotifier{}

	handler := NewNotificationEventHandler(notifier, nil, registry, bus)
	handler.Start(testContext(t))
	defer handler.Stop()

	bus.PublishPlaybackStarted(PlaybackStartedEvent{
		GuildID:       testGuildID,
		TextChannelID: testTextChannelID,
		Request:       request,
	})
	waitFor(t, func() bool { return len(notifier.getSentNowPlaying()) == 1 })

	bus.PublishPlaybackFinished(PlaybackFinishedEvent{GuildID: testGuildID})
	waitFor(t, func() bool { return len(notifier.getDeletedMessages()) == 1 })

	if deleted := notifier.getDeletedMessages(); deleted[0] != snowflake.ID(1) {
		t.Errorf("expected message ID 1 to be deleted, got %d", deleted[0])
	}
}

func TestNotificationEventHandler_PlaybackFinished_NoMessage_DoesNotDelete(t *testing.T) {
	notifier := &mockNotifier{}

	handler := NewNotificationEventHandler(notifier, nil, nil, NewBus(1))
	handler.deletePrevious(context.Background(), testGuildID)

	if deleted := notifier.getDeletedMessages(); len(deleted) != 0 {
		t.Errorf("expected no messages to be deleted, got %v", deleted)
	}
}

func TestNotificationEventHandler_PlaybackFailed_SendsError(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	notifier := &mockNotifier{}
	handler := NewNotificationEventHandler(notifier, nil, nil, bus)
	handler.Start(testContext(t))
	defer handler.Stop()

	bus.PublishPlaybackFailed(PlaybackFailedEvent{
		GuildID:       testGuildID,
		TextChannelID: testTextChannelID,
		Request:       mockRequest("gone"),
		Err:           errors.New("track unavailable"),
	})

	waitFor(t, func() bool { return len(notifier.getSentErrors()) == 1 })

	if got := notifier.getSentErrors()[0]; got != "Couldn't play **Track gone**, skipping it." {
		t.Errorf("unexpected error message %q", got)
	}
}

func TestNotificationEventHandler_StopsOnContextCancellation(t *testing.T) {
	bus := NewBus(10)
	defer bus.Close()

	handler := NewNotificationEventHandler(&mockNotifier{}, nil, nil, bus)

	ctx, cancel := context.WithCancel(context.Background())
	handler.Start(ctx)

	cancel()

	done := make(chan struct{})
	go func() {
		handler.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Error("handler did not stop after context cancellation")
	}
}

// --- Bus Tests ---

func TestBus_PublishAfterClose_DoesNotPanic(t *testing.T) {
	bus := NewBus(1)
	bus.Close()
	bus.Close()

	bus.PublishTrackEnded(TrackEndedEvent{GuildID: testGuildID})
	bus.PublishPlaybackStarted(PlaybackStartedEvent{GuildID: testGuildID})
	bus.PublishPlaybackFinished(PlaybackFinishedEvent{GuildID: testGuildID})
	bus.PublishPlaybackFailed(PlaybackFailedEvent{GuildID: testGuildID})
}

func TestHandlers_StopTwice(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	playback := NewPlaybackEventHandler(nil, &mockPublisher{}, bus)
	playback.Start(testContext(t))
	playback.Stop()
	playback.Stop()

	notification := NewNotificationEventHandler(&mockNotifier{}, nil, nil, bus)
	notification.Start(testContext(t))
	notification.Stop()
	notification.Stop()
}

func TestBus_FullBuffer_DropsEvent(t *testing.T) {
	bus := NewBus(1)
	defer bus.Close()

	bus.PublishPlaybackFinished(PlaybackFinishedEvent{GuildID: 1})
	bus.PublishPlaybackFinished(PlaybackFinishedEvent{GuildID: 2})

	event := <-bus.PlaybackFinished()
	if event.GuildID != 1 {
		t.Errorf("expected first event to be kept, got guild %d", event.GuildID)
	}
	select {
	case event := <-bus.PlaybackFinished():
		t.Errorf("expected second event to be dropped, got guild %d", event.GuildID)
	default:
	}
}

// testContext returns a context canceled when the test function returns,
// matching testing.T.Context (Go 1.24+).
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
