package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
)

// Transition describes what an advance did.
type Transition struct {
	Stopped *TrackRequest // Track that was superseded, nil if nothing was playing
	Started *TrackRequest // Track that started, nil if the queue was empty
}

// nowPlaying pairs the active request with its playback control.
type nowPlaying struct {
	request TrackRequest
	handle  TrackHandle
}

// Session is one guild's live playback context: a voice connection, a FIFO
// queue of pending requests and at most one playing track.
//
// Sessions are created and destroyed only by a SessionRegistry. All methods
// are safe for concurrent use; every state transition is caused by an explicit
// call and runs under the session mutex, so transitions are serialized per session.
type Session struct {
	id            uuid.UUID
	guildID       snowflake.ID
	channelID     snowflake.ID // Voice channel, fixed for the session's lifetime
	textChannelID snowflake.ID // Channel of the command that created the session

	mu      sync.Mutex
	conn    Connection
	state   SessionState
	queue   []TrackRequest
	playing *nowPlaying
}

func newSession(guildID, channelID, textChannelID snowflake.ID, conn Connection) *Session {
	return &Session{
		id:            uuid.New(),
		guildID:       guildID,
		channelID:     channelID,
		textChannelID: textChannelID,
		conn:          conn,
		state:         SessionIdle,
	}
}

// ID returns the unique identifier of this session instance.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// GuildID returns the guild that owns the session.
func (s *Session) GuildID() snowflake.ID {
	return s.guildID
}

// ChannelID returns the voice channel the session is bound to.
func (s *Session) ChannelID() snowflake.ID {
	return s.channelID
}

// TextChannelID returns the text channel used for notifications.
func (s *Session) TextChannelID() snowflake.ID {
	return s.textChannelID
}

// State returns the current state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NowPlaying returns the active request, or false if idle.
func (s *Session) NowPlaying() (TrackRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing == nil {
		return TrackRequest{}, false
	}
	return s.playing.request, true
}

// Queue returns a copy of the pending requests in play order.
func (s *Session) Queue() []TrackRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]TrackRequest, len(s.queue))
	copy(result, s.queue)
	return result
}

// Append pushes requests to the back of the queue without starting playback.
// Returns the queue length after the append.
func (s *Session) Append(requests ...TrackRequest) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsTerminal() {
		return 0, ErrSessionDestroyed
	}

	s.queue = append(s.queue, requests...)
	return len(s.queue), nil
}

// Advance stops the current track, if any, and starts the next queued one.
// With an empty queue the session becomes idle and nothing is played.
func (s *Session) Advance(ctx context.Context) (Transition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsTerminal() {
		return Transition{}, ErrSessionDestroyed
	}

	var transition Transition
	if s.playing != nil {
		if err := s.playing.handle.Stop(ctx); err != nil {
			return Transition{}, fmt.Errorf("%w: stop: %w", ErrPlaybackControl, err)
		}
		stopped := s.playing.request
		transition.Stopped = &stopped
		s.playing = nil
		s.state = SessionIdle
	}

	started, err := s.startNext(ctx)
	transition.Started = started
	return transition, err
}

// StartIfIdle starts the next queued track only when nothing is playing.
// It returns nil without error if a track is already playing or the queue is empty.
func (s *Session) StartIfIdle(ctx context.Context) (*TrackRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsTerminal() {
		return nil, ErrSessionDestroyed
	}
	if s.playing != nil {
		return nil, nil
	}

	return s.startNext(ctx)
}

// StartNextPlayable is StartIfIdle that keeps going past requests whose
// playback fails to start. The dropped requests are returned in queue order
// alongside the request that started, if any.
func (s *Session) StartNextPlayable(ctx context.Context) (*TrackRequest, []*PlaybackError, error) {
	var dropped []*PlaybackError
	for {
		started, err := s.StartIfIdle(ctx)
		var playErr *PlaybackError
		if !errors.As(err, &playErr) {
			return started, dropped, err
		}
		dropped = append(dropped, playErr)
	}
}

// TrackFinished reports that the playback identified by id ended on its own
// and starts the next track. Events for a playback that is no longer current
// are ignored, as are events received after the session was destroyed.
func (s *Session) TrackFinished(ctx context.Context, id PlaybackID) (*TrackRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsTerminal() {
		return nil, nil
	}
	if s.playing == nil || s.playing.handle.ID() != id {
		slog.Debug("ignoring stale track end",
			"guild", s.guildID,
			"session", s.id,
			"playback", id,
		)
		return nil, nil
	}

	s.playing = nil
	s.state = SessionIdle

	return s.startNext(ctx)
}

// Stop halts the current track without advancing the queue.
// No-op when idle.
func (s *Session) Stop(ctx context.Context) (*TrackRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.IsTerminal() {
		return nil, ErrSessionDestroyed
	}
	if s.playing == nil {
		return nil, nil
	}

	if err := s.playing.handle.Stop(ctx); err != nil {
		return nil, fmt.Errorf("%w: stop: %w", ErrPlaybackControl, err)
	}

	stopped := s.playing.request
	s.playing = nil
	s.state = SessionIdle

	return &stopped, nil
}

// startNext pops the queue front and plays it. Must be called with s.mu held
// and no track playing. A request whose playback fails to start is dropped and
// reported in a PlaybackError.
func (s *Session) startNext(ctx context.Context) (*TrackRequest, error) {
	if len(s.queue) == 0 {
		s.state = SessionIdle
		return nil, nil
	}

	next := s.queue[0]
	s.queue[0] = TrackRequest{}
	s.queue = s.queue[1:]

	handle, err := s.conn.Play(ctx, next.Source)
	if err != nil {
		s.state = SessionIdle
		return nil, &PlaybackError{Request: next, Err: err}
	}

	s.playing = &nowPlaying{request: next, handle: handle}
	s.state = SessionPlaying

	slog.Debug("started track",
		"guild", s.guildID,
		"session", s.id,
		"track", next.Source.Title,
		"remaining", len(s.queue),
	)

	return &next, nil
}

// destroy stops playback best-effort, leaves the channel and marks the session
// destroyed. Idempotent. Only the registry calls it.
func (s *Session) destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == SessionDestroyed {
		return nil
	}
	s.state = SessionStopping

	if s.playing != nil {
		if err := s.playing.handle.Stop(ctx); err != nil {
			slog.Warn("failed to stop track during teardown",
				"guild", s.guildID,
				"session", s.id,
				"error", err,
			)
		}
		s.playing = nil
	}
	s.queue = nil

	var leaveErr error
	if err := s.conn.Leave(ctx); err != nil {
		leaveErr = fmt.Errorf("%w: leave: %w", ErrConnection, err)
	}
	s.conn = nil
	s.state = SessionDestroyed

	return leaveErr
}
