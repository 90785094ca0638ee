package ports

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

// NowPlayingInfo is everything a "Now Playing" message shows.
type NowPlayingInfo struct {
	Track      domain.SourceDescriptor
	Requester  UserInfo
	EnqueuedAt time.Time
}

// NotificationSender posts playback notices to a session's text channel.
type NotificationSender interface {
	// SendNowPlaying posts a "Now Playing" message and returns its ID.
	SendNowPlaying(ctx context.Context, channelID snowflake.ID, info NowPlayingInfo) (snowflake.ID, error)

	// DeleteMessage removes a message posted earlier.
	DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error

	// SendError posts a short error notice.
	SendError(ctx context.Context, channelID snowflake.ID, message string) error
}

// UserInfo is how a guild member is displayed.
type UserInfo struct {
	ID          snowflake.ID
	DisplayName string
	AvatarURL   string
}

// UserInfoProvider looks up guild members.
type UserInfoProvider interface {
	GetUserInfo(ctx context.Context, guildID, userID snowflake.ID) (UserInfo, error)
}
