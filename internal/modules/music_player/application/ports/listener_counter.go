package ports

import "github.com/disgoorg/snowflake/v2"

// ListenerCounter counts the people connected to a voice channel.
type ListenerCounter interface {
	// ListenerCount returns how many users other than bots are in the channel.
	ListenerCount(guildID, channelID snowflake.ID) (int, error)
}
