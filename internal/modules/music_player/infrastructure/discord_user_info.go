package infrastructure

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/ports"
)

// DiscordUserInfoProvider looks up requesters for notifications, preferring
// the gateway state cache over a REST call.
type DiscordUserInfoProvider struct {
	session *discordgo.Session
}

// NewDiscordUserInfoProvider creates a new DiscordUserInfoProvider.
func NewDiscordUserInfoProvider(session *discordgo.Session) *DiscordUserInfoProvider {
	return &DiscordUserInfoProvider{session: session}
}

// GetUserInfo returns how a guild member is displayed.
func (p *DiscordUserInfoProvider) GetUserInfo(
	ctx context.Context,
	guildID, userID snowflake.ID,
) (ports.UserInfo, error) {
	member, err := p.member(ctx, guildID.String(), userID.String())
	if err != nil {
		return ports.UserInfo{}, err
	}

	return ports.UserInfo{
		ID:          userID,
		DisplayName: displayName(member),
		AvatarURL:   member.AvatarURL(""),
	}, nil
}

func (p *DiscordUserInfoProvider) member(
	ctx context.Context,
	guildID, userID string,
) (*discordgo.Member, error) {
	if p.session.State != nil {
		if member, err := p.session.State.Member(guildID, userID); err == nil && member.User != nil {
			return member, nil
		}
	}

	member, err := p.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch guild member: %w", err)
	}
	return member, nil
}

// displayName picks nickname, then global name, then username.
func displayName(member *discordgo.Member) string {
	if member.Nick != "" {
		return member.Nick
	}
	if member.User.GlobalName != "" {
		return member.User.GlobalName
	}
	return member.User.Username
}

var _ ports.UserInfoProvider = (*DiscordUserInfoProvider)(nil)
