package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/ports"
)

// Embed colors.
const (
	colorRed     = 0xE74C3C
	colorDefault = 0x5865F2
)

// sourceStyle is how a track's origin is shown in embeds.
type sourceStyle struct {
	color   int
	iconURL string
}

var sourceStyles = map[string]sourceStyle{
	"youtube": {
		color:   0xFF0000,
		iconURL: "https://www.youtube.com/s/desktop/favicon_144x144.png",
	},
	"soundcloud": {
		color:   0xFF5500,
		iconURL: "https://a-v2.sndcdn.com/assets/images/sc-icons/favicon-2cadd14b.ico",
	},
	"twitch": {
		color:   0x9146FF,
		iconURL: "https://static.twitchcdn.net/assets/favicon-32-e29e246c157142c94346.png",
	},
}

func styleFor(sourceName string) sourceStyle {
	if style, ok := sourceStyles[strings.ToLower(sourceName)]; ok {
		return style
	}
	return sourceStyle{color: colorDefault}
}

// Notifier posts playback notices to Discord text channels.
type Notifier struct {
	session    *discordgo.Session
	httpClient *http.Client
}

// NewNotifier creates a new Notifier.
func NewNotifier(session *discordgo.Session) *Notifier {
	return &Notifier{
		session: session,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// SendNowPlaying posts a "Now Playing" embed and returns the message ID.
func (n *Notifier) SendNowPlaying(
	ctx context.Context,
	channelID snowflake.ID,
	info ports.NowPlayingInfo,
) (snowflake.ID, error) {
	embed := n.nowPlayingEmbed(ctx, info)

	msg, err := n.session.ChannelMessageSendEmbed(channelID.String(), embed, discordgo.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to send now playing message: %w", err)
	}
	return snowflake.Parse(msg.ID)
}

func (n *Notifier) nowPlayingEmbed(ctx context.Context, info ports.NowPlayingInfo) *discordgo.MessageEmbed {
	track := info.Track
	style := styleFor(track.SourceName)

	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name:    "Now Playing",
			IconURL: style.iconURL,
		},
		Title: track.Title,
		URL:   track.URI,
		Color: style.color,
	}
	if !info.EnqueuedAt.IsZero() {
		embed.Timestamp = info.EnqueuedAt.UTC().Format(time.RFC3339)
	}

	if track.Artist != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   "Artist",
			Value:  track.Artist,
			Inline: true,
		})
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "Duration",
		Value:  track.FormattedDuration(),
		Inline: true,
	})

	if requester := requesterLabel(info.Requester); requester != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text:    "Requested by " + requester,
			IconURL: info.Requester.AvatarURL,
		}
	}

	if thumbnail := n.getBestThumbnail(ctx, track.SourceName, track.Identifier, track.ArtworkURL); thumbnail != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: thumbnail}
	}

	return embed
}

// requesterLabel falls back to the raw ID when the member lookup failed.
func requesterLabel(user ports.UserInfo) string {
	if user.DisplayName != "" {
		return user.DisplayName
	}
	if user.ID != 0 {
		return user.ID.String()
	}
	return ""
}

// DeleteMessage deletes a message from the channel.
func (n *Notifier) DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	return n.session.ChannelMessageDelete(channelID.String(), messageID.String(), discordgo.WithContext(ctx))
}

// SendError posts an error notice.
func (n *Notifier) SendError(ctx context.Context, channelID snowflake.ID, message string) error {
	embed := &discordgo.MessageEmbed{
		Description: message,
		Color:       colorRed,
	}

	_, err := n.session.ChannelMessageSendEmbed(channelID.String(), embed, discordgo.WithContext(ctx))
	return err
}

// getBestThumbnail returns the highest resolution thumbnail that exists,
// falling back to the artwork URL the resolver gave.
func (n *Notifier) getBestThumbnail(
	ctx context.Context,
	sourceName string,
	identifier string,
	fallbackURL string,
) string {
	switch strings.ToLower(sourceName) {
	case "youtube":
		if identifier == "" {
			return fallbackURL
		}
		return n.getYouTubeThumbnail(ctx, identifier, fallbackURL)
	case "twitch":
		return n.getTwitchThumbnail(ctx, fallbackURL)
	default:
		return fallbackURL
	}
}

// getYouTubeThumbnail tries to find the highest quality YouTube thumbnail available.
func (n *Notifier) getYouTubeThumbnail(ctx context.Context, videoID string, fallbackURL string) string {
	qualities := []string{"maxresdefault", "sddefault", "hqdefault", "mqdefault"}

	for _, quality := range qualities {
		url := fmt.Sprintf("https://img.youtube.com/vi/%s/%s.jpg", videoID, quality)
		if n.urlExists(ctx, url) {
			return url
		}
	}

	return fallbackURL
}

// getTwitchThumbnail tries to get a higher resolution Twitch thumbnail.
func (n *Notifier) getTwitchThumbnail(ctx context.Context, artworkURL string) string {
	if artworkURL == "" {
		return ""
	}

	// Try to get 1280x720 instead of 440x248
	highResURL := strings.Replace(artworkURL, "440x248", "1280x720", 1)
	if highResURL == artworkURL {
		// No replacement made, return original
		return artworkURL
	}

	if n.urlExists(ctx, highResURL) {
		return highResURL
	}

	return artworkURL
}

// urlExists checks if a URL returns a successful response using a HEAD request.
func (n *Notifier) urlExists(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// Ensure Notifier implements ports.NotificationSender.
var _ ports.NotificationSender = (*Notifier)(nil)
