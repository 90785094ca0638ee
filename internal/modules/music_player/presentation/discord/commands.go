package discord

import "github.com/bwmarrin/discordgo"

// voiceChannelTypes are the channel types the bot can join.
var voiceChannelTypes = []discordgo.ChannelType{
	discordgo.ChannelTypeGuildVoice,
	discordgo.ChannelTypeGuildStageVoice,
}

// Commands returns all slash commands for the music player module.
func Commands() []*discordgo.ApplicationCommand {
	guildOnly := []discordgo.InteractionContextType{discordgo.InteractionContextGuild}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "join",
			Description: "Join a voice channel",
			Contexts:    &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Voice channel to join (defaults to your current channel)",
					Required:     false,
					ChannelTypes: voiceChannelTypes,
				},
			},
		},
		{
			Name:        "leave",
			Description: "Leave the voice channel and clear the queue",
			Contexts:    &guildOnly,
		},
		{
			Name:        "play",
			Description: "Play a track from URL or search",
			Contexts:    &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "query",
					Description:  "URL or search term",
					Required:     true,
					Autocomplete: true,
				},
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "Voice channel to join if I'm not in one yet",
					Required:     false,
					ChannelTypes: voiceChannelTypes,
				},
			},
		},
		{
			Name:        "skip",
			Description: "Skip the current track",
			Contexts:    &guildOnly,
		},
		{
			Name:        "stop",
			Description: "Stop playback and keep the queue",
			Contexts:    &guildOnly,
		},
		{
			Name:        "queue",
			Description: "Show the queue",
			Contexts:    &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "page",
					Description: "Page number",
					Required:    false,
					MinValue:    floatPtr(1),
				},
			},
		},
		{
			Name:        "search",
			Description: "Search for tracks without playing them",
			Contexts:    &guildOnly,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "Search term",
					Required:    true,
				},
			},
		},
	}
}

func floatPtr(f float64) *float64 {
	return &f
}
