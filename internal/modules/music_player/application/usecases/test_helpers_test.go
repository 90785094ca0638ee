package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

func mockSource(id string) domain.SourceDescriptor {
	return domain.SourceDescriptor{
		Identifier: id,
		Encoded:    "encoded-" + id,
		Title:      "Track " + id,
		Artist:     "Artist",
		Duration:   3 * time.Minute,
		SourceName: "youtube",
	}
}

type mockHandle struct {
	conn    *mockConnection
	id      domain.PlaybackID
	stopErr error
}

func (h *mockHandle) ID() domain.PlaybackID { return h.id }

func (h *mockHandle) Stop(context.Context) error {
	h.conn.mu.Lock()
	defer h.conn.mu.Unlock()
	h.conn.stops++
	return h.stopErr
}

type mockConnection struct {
	mu       sync.Mutex
	played   []string
	stops    int
	leaves   int
	playErr  error
	stopErr  error
	leaveErr error
	broken   map[string]bool // Titles that fail to play
}

func (m *mockConnection) Play(_ context.Context, source domain.SourceDescriptor) (domain.TrackHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.playErr != nil {
		return nil, m.playErr
	}
	if m.broken[source.Title] {
		return nil, errors.New("track unavailable")
	}
	m.played = append(m.played, source.Title)
	return &mockHandle{conn: m, id: domain.PlaybackID(len(m.played)), stopErr: m.stopErr}, nil
}

func (m *mockConnection) Leave(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaves++
	return m.leaveErr
}

type mockConnector struct {
	mu      sync.Mutex
	joined  []snowflake.ID // channel IDs
	conn    *mockConnection
	joinErr error
}

func newMockConnector() *mockConnector {
	return &mockConnector{conn: &mockConnection{}}
}

func (m *mockConnector) Join(_ context.Context, _, channelID snowflake.ID) (domain.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.joinErr != nil {
		return nil, m.joinErr
	}
	m.joined = append(m.joined, channelID)
	return m.conn, nil
}

type mockChannelLocator struct {
	channels map[snowflake.ID]snowflake.ID // userID -> channelID
	err      error
}

func (m *mockChannelLocator) UserVoiceChannel(_, userID snowflake.ID) (snowflake.ID, error) {
	if m.err != nil {
		return 0, m.err
	}
	return m.channels[userID], nil
}

type mockTrackResolver struct {
	name    string
	results []domain.SourceDescriptor
	err     error
	queries []domain.SearchQuery
	mu      sync.Mutex
}

func (m *mockTrackResolver) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

func (m *mockTrackResolver) Resolve(
	_ context.Context,
	query domain.SearchQuery,
) ([]domain.SourceDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, query)
	if m.err != nil {
		return nil, m.err
	}
	return m.results, nil
}

type mockEventPublisher struct {
	mu               sync.Mutex
	playbackStarted  []domain.PlaybackStartedEvent
	playbackFinished []domain.PlaybackFinishedEvent
	playbackFailed   []domain.PlaybackFailedEvent
	trackEnded       []domain.TrackEndedEvent
}

func (m *mockEventPublisher) PublishPlaybackFailed(event domain.PlaybackFailedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playbackFailed = append(m.playbackFailed, event)
}

func (m *mockEventPublisher) PublishPlaybackStarted(event domain.PlaybackStartedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playbackStarted = append(m.playbackStarted, event)
}

func (m *mockEventPublisher) PublishPlaybackFinished(event domain.PlaybackFinishedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playbackFinished = append(m.playbackFinished, event)
}

func (m *mockEventPublisher) PublishTrackEnded(event domain.TrackEndedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackEnded = append(m.trackEnded, event)
}

type mockListenerCounter struct {
	count int
	err   error
}

func (m mockListenerCounter) ListenerCount(_, _ snowflake.ID) (int, error) {
	return m.count, m.err
}

const (
	testGuildID        = snowflake.ID(1)
	testUserID         = snowflake.ID(2)
	testTextChannelID  = snowflake.ID(3)
	testVoiceChannelID = snowflake.ID(4)
)

// newTestRegistry returns a registry whose locator puts testUserID in testVoiceChannelID.
func newTestRegistry(connector *mockConnector) *domain.SessionRegistry {
	return domain.NewSessionRegistry(connector, &mockChannelLocator{
		channels: map[snowflake.ID]snowflake.ID{testUserID: testVoiceChannelID},
	})
}

// createSession creates a session for testGuildID, appends the given tracks and
// starts the first one.
func createSession(
	registry *domain.SessionRegistry,
	ids ...string,
) *domain.Session {
	ctx := context.Background()
	session, err := registry.GetOrCreate(ctx, domain.CreateSessionInput{
		GuildID:       testGuildID,
		UserID:        testUserID,
		TextChannelID: testTextChannelID,
	})
	if err != nil {
		panic(err)
	}
	for _, id := range ids {
		if _, err := session.Append(domain.NewTrackRequest(mockSource(id), testUserID)); err != nil {
			panic(err)
		}
	}
	if _, err := session.StartIfIdle(ctx); err != nil {
		panic(err)
	}
	return session
}
