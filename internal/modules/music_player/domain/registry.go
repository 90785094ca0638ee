package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/disgoorg/snowflake/v2"
)

// CreateSessionInput identifies who asks for a session and where it should play.
type CreateSessionInput struct {
	GuildID       snowflake.ID
	UserID        snowflake.ID // Used to find a channel when ChannelID is 0
	ChannelID     snowflake.ID // Optional: explicit voice channel
	TextChannelID snowflake.ID
}

// sessionSlot serializes create and destroy for one guild. The session pointer
// is atomic so lookups never wait on an in-flight join.
type sessionSlot struct {
	mu      sync.Mutex
	session atomic.Pointer[Session]
}

// SessionRegistry maps guilds to their live Session and guarantees at most one
// live session per guild. Operations on different guilds never block each other:
// the registry lock only guards slot lookup, joins and teardowns happen under
// the guild's own slot lock.
type SessionRegistry struct {
	connector Connector
	locator   ChannelLocator

	mu    sync.Mutex
	slots map[snowflake.ID]*sessionSlot
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(connector Connector, locator ChannelLocator) *SessionRegistry {
	return &SessionRegistry{
		connector: connector,
		locator:   locator,
		slots:     make(map[snowflake.ID]*sessionSlot),
	}
}

// slot returns the slot for a guild, creating it if needed.
// Slots are never removed; an empty slot is just a nil session pointer.
func (r *SessionRegistry) slot(guildID snowflake.ID) *sessionSlot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[guildID]
	if !ok {
		s = &sessionSlot{}
		r.slots[guildID] = s
	}
	return s
}

// existingSlot returns the slot for a guild without creating one.
func (r *SessionRegistry) existingSlot(guildID snowflake.ID) *sessionSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.slots[guildID]
}

// Get returns the live session for the guild, or nil.
func (r *SessionRegistry) Get(guildID snowflake.ID) *Session {
	s := r.existingSlot(guildID)
	if s == nil {
		return nil
	}
	return s.session.Load()
}

// GetOrCreate returns the guild's session, joining a voice channel and creating
// one if none exists.
func (r *SessionRegistry) GetOrCreate(ctx context.Context, input CreateSessionInput) (*Session, error) {
	s := r.slot(input.GuildID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.session.Load(); existing != nil {
		return existing, nil
	}
	return r.create(ctx, s, input)
}

// Create creates a session for the guild. Fails with a SessionExistsError if
// one is already live.
func (r *SessionRegistry) Create(ctx context.Context, input CreateSessionInput) (*Session, error) {
	s := r.slot(input.GuildID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.session.Load(); existing != nil {
		return nil, &SessionExistsError{ChannelID: existing.ChannelID()}
	}
	return r.create(ctx, s, input)
}

// create joins the target channel and installs a new session in the slot.
// Must be called with s.mu held and the slot empty.
func (r *SessionRegistry) create(
	ctx context.Context,
	s *sessionSlot,
	input CreateSessionInput,
) (*Session, error) {
	channelID, err := r.resolveChannel(input)
	if err != nil {
		return nil, err
	}

	conn, err := r.connector.Join(ctx, input.GuildID, channelID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJoinFailed, err)
	}

	session := newSession(input.GuildID, channelID, input.TextChannelID, conn)
	s.session.Store(session)

	slog.Info("created session",
		"guild", input.GuildID,
		"channel", channelID,
		"session", session.ID(),
	)

	return session, nil
}

// resolveChannel picks the explicit channel, else the caller's current one.
func (r *SessionRegistry) resolveChannel(input CreateSessionInput) (snowflake.ID, error) {
	if input.ChannelID != 0 {
		return input.ChannelID, nil
	}
	if r.locator == nil {
		return 0, ErrNoVoiceChannel
	}

	channelID, err := r.locator.UserVoiceChannel(input.GuildID, input.UserID)
	if err != nil {
		return 0, fmt.Errorf("failed to look up user voice channel: %w", err)
	}
	if channelID == 0 {
		return 0, ErrNoVoiceChannel
	}
	return channelID, nil
}

// Destroy removes the guild's session and tears it down. The entry is removed
// even if leaving the channel fails; that failure is returned. No-op if the
// guild has no session.
func (r *SessionRegistry) Destroy(ctx context.Context, guildID snowflake.ID) error {
	s := r.existingSlot(guildID)
	if s == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.session.Swap(nil)
	if session == nil {
		return nil
	}

	err := session.destroy(ctx)

	slog.Info("destroyed session",
		"guild", guildID,
		"channel", session.ChannelID(),
		"session", session.ID(),
	)

	return err
}

// DestroyAll tears down every live session. Used on shutdown.
func (r *SessionRegistry) DestroyAll(ctx context.Context) error {
	r.mu.Lock()
	guildIDs := make([]snowflake.ID, 0, len(r.slots))
	for guildID := range r.slots {
		guildIDs = append(guildIDs, guildID)
	}
	r.mu.Unlock()

	var errs []error
	for _, guildID := range guildIDs {
		if err := r.Destroy(ctx, guildID); err != nil {
			errs = append(errs, fmt.Errorf("guild %d: %w", guildID, err))
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of live sessions (for testing/monitoring).
func (r *SessionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, s := range r.slots {
		if s.session.Load() != nil {
			count++
		}
	}
	return count
}
