package usecases

import (
	"context"
	"log/slog"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/ports"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

// JoinInput contains the input for the Join use case.
type JoinInput struct {
	GuildID               snowflake.ID
	UserID                snowflake.ID
	NotificationChannelID snowflake.ID
	VoiceChannelID        snowflake.ID // Optional: specific channel to join (0 means use user's channel)
}

// JoinOutput contains the result of the Join use case.
type JoinOutput struct {
	VoiceChannelID snowflake.ID
}

// LeaveInput contains the input for the Leave use case.
type LeaveInput struct {
	GuildID snowflake.ID
}

// BotVoiceStateChangeInput contains the input for handling bot voice state changes.
type BotVoiceStateChangeInput struct {
	GuildID      snowflake.ID
	NewChannelID *snowflake.ID // nil means disconnected
}

// ListenerLeftInput contains the input for handling a user leaving a voice channel.
type ListenerLeftInput struct {
	GuildID       snowflake.ID
	LeftChannelID snowflake.ID
}

// VoiceChannelService handles voice channel operations.
type VoiceChannelService struct {
	registry  *domain.SessionRegistry
	publisher ports.EventPublisher
	listeners ports.ListenerCounter // Optional
}

// NewVoiceChannelService creates a new VoiceChannelService.
// Without a listener counter, sessions are never ended for an empty channel.
func NewVoiceChannelService(
	registry *domain.SessionRegistry,
	publisher ports.EventPublisher,
	listeners ports.ListenerCounter,
) *VoiceChannelService {
	return &VoiceChannelService{
		registry:  registry,
		publisher: publisher,
		listeners: listeners,
	}
}

// Join creates a session in the requested channel, or the user's current one.
// Fails with a domain.SessionExistsError if the guild already has a session.
func (v *VoiceChannelService) Join(ctx context.Context, input JoinInput) (*JoinOutput, error) {
	session, err := v.registry.Create(ctx, domain.CreateSessionInput{
		GuildID:       input.GuildID,
		UserID:        input.UserID,
		ChannelID:     input.VoiceChannelID,
		TextChannelID: input.NotificationChannelID,
	})
	if err != nil {
		return nil, err
	}

	return &JoinOutput{VoiceChannelID: session.ChannelID()}, nil
}

// Leave destroys the guild's session. A failure to leave the channel is still
// returned, but the session is gone either way.
func (v *VoiceChannelService) Leave(ctx context.Context, input LeaveInput) error {
	if v.registry.Get(input.GuildID) == nil {
		return ErrNotConnected
	}

	err := v.registry.Destroy(ctx, input.GuildID)
	v.publishFinished(input.GuildID)
	return err
}

// HandleBotVoiceStateChange handles external voice state changes (bot moved or disconnected).
// A session is bound to one channel for its lifetime, so both cases end it.
func (v *VoiceChannelService) HandleBotVoiceStateChange(
	ctx context.Context,
	input BotVoiceStateChangeInput,
) {
	session := v.registry.Get(input.GuildID)
	if session == nil {
		return
	}

	if input.NewChannelID != nil && *input.NewChannelID == session.ChannelID() {
		return
	}

	slog.Info("bot left its voice channel externally, ending session",
		"guild", input.GuildID,
		"session", session.ID(),
		"disconnected", input.NewChannelID == nil,
	)

	if err := v.registry.Destroy(ctx, input.GuildID); err != nil {
		slog.Warn("failed to tear down session after external voice change",
			"guild", input.GuildID,
			"error", err,
		)
	}
	v.publishFinished(input.GuildID)
}

// HandleListenerLeft ends the guild's session once the last listener has left
// its voice channel.
func (v *VoiceChannelService) HandleListenerLeft(ctx context.Context, input ListenerLeftInput) {
	if v.listeners == nil {
		return
	}

	session := v.registry.Get(input.GuildID)
	if session == nil || session.ChannelID() != input.LeftChannelID {
		return
	}

	count, err := v.listeners.ListenerCount(input.GuildID, session.ChannelID())
	if err != nil {
		slog.Warn("failed to count voice channel listeners",
			"guild", input.GuildID,
			"channel", session.ChannelID(),
			"error", err,
		)
		return
	}
	if count > 0 {
		return
	}

	slog.Info("voice channel is empty, ending session",
		"guild", input.GuildID,
		"session", session.ID(),
	)

	if err := v.registry.Destroy(ctx, input.GuildID); err != nil {
		slog.Warn("failed to tear down session in empty channel",
			"guild", input.GuildID,
			"error", err,
		)
	}
	v.publishFinished(input.GuildID)
}

func (v *VoiceChannelService) publishFinished(guildID snowflake.ID) {
	if v.publisher != nil {
		v.publisher.PublishPlaybackFinished(domain.PlaybackFinishedEvent{GuildID: guildID})
	}
}
