package infrastructure

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/ports"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

// DiscordChannelLocator looks up voice channel membership in the gateway state cache.
type DiscordChannelLocator struct {
	state *discordgo.State
}

// NewDiscordChannelLocator creates a new DiscordChannelLocator.
func NewDiscordChannelLocator(session *discordgo.Session) *DiscordChannelLocator {
	return &DiscordChannelLocator{
		state: session.State,
	}
}

// UserVoiceChannel returns the voice channel ID that the user is currently in.
// Returns 0 if the user is not in a voice channel.
func (l *DiscordChannelLocator) UserVoiceChannel(
	guildID, userID snowflake.ID,
) (snowflake.ID, error) {
	vs, err := l.state.VoiceState(guildID.String(), userID.String())
	if err != nil {
		if errors.Is(err, discordgo.ErrStateNotFound) {
			return 0, nil
		}
		return 0, err
	}
	if vs.ChannelID == "" {
		return 0, nil
	}

	return snowflake.Parse(vs.ChannelID)
}

// ListenerCount returns how many users other than bots are in the voice channel.
// Users whose member record is not cached count as listeners.
func (l *DiscordChannelLocator) ListenerCount(guildID, channelID snowflake.ID) (int, error) {
	guild, err := l.state.Guild(guildID.String())
	if err != nil {
		return 0, err
	}

	var selfID string
	if l.state.User != nil {
		selfID = l.state.User.ID
	}

	// Member lookups take the state lock themselves
	l.state.RLock()
	var userIDs []string
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID == channelID.String() && vs.UserID != selfID {
			userIDs = append(userIDs, vs.UserID)
		}
	}
	l.state.RUnlock()

	count := 0
	for _, userID := range userIDs {
		member, err := l.state.Member(guildID.String(), userID)
		if err == nil && member.User != nil && member.User.Bot {
			continue
		}
		count++
	}
	return count, nil
}

var (
	_ domain.ChannelLocator = (*DiscordChannelLocator)(nil)
	_ ports.ListenerCounter = (*DiscordChannelLocator)(nil)
)
