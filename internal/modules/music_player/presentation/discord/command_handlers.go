package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/keyboardcat/internal/bot"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/usecases"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorError   = 0xE74C3C
	colorInfo    = 0x5865F2
)

// commandTimeout bounds a command including voice joins and resolver calls.
const commandTimeout = 30 * time.Second

const (
	genericErrorMessage = "Something went wrong while running that command."
	searchResultLimit   = 10
)

var errNotInGuild = errors.New("this command can only be used in a server")

// CommandHandlers holds all the command handlers.
type CommandHandlers struct {
	voiceChannel *usecases.VoiceChannelService
	playback     *usecases.PlaybackService
	queue        *usecases.QueueService
	trackLoader  *usecases.TrackLoaderService
}

// NewCommandHandlers creates new CommandHandlers.
func NewCommandHandlers(
	voiceChannel *usecases.VoiceChannelService,
	playback *usecases.PlaybackService,
	queue *usecases.QueueService,
	trackLoader *usecases.TrackLoaderService,
) *CommandHandlers {
	return &CommandHandlers{
		voiceChannel: voiceChannel,
		playback:     playback,
		queue:        queue,
		trackLoader:  trackLoader,
	}
}

// invocation holds the IDs every command needs.
type invocation struct {
	guildID   snowflake.ID
	userID    snowflake.ID
	channelID snowflake.ID
}

func parseInvocation(i *discordgo.InteractionCreate) (invocation, error) {
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return invocation{}, errNotInGuild
	}

	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return invocation{}, fmt.Errorf("invalid guild ID %q: %w", i.GuildID, err)
	}
	userID, err := snowflake.Parse(i.Member.User.ID)
	if err != nil {
		return invocation{}, fmt.Errorf("invalid user ID %q: %w", i.Member.User.ID, err)
	}
	channelID, err := snowflake.Parse(i.ChannelID)
	if err != nil {
		return invocation{}, fmt.Errorf("invalid channel ID %q: %w", i.ChannelID, err)
	}

	return invocation{guildID: guildID, userID: userID, channelID: channelID}, nil
}

// HandleJoin handles the /join command.
func (h *CommandHandlers) HandleJoin(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return h.fail(respondWith(r), "join", err)
	}

	voiceChannelID, err := channelOption(s, i.ApplicationCommandData().Options, "channel")
	if err != nil {
		return h.fail(respondWith(r), "join", err)
	}

	// Joining waits for the voice handshake, which can outlast the interaction deadline
	send, err := deferReply(r)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	output, err := h.voiceChannel.Join(ctx, usecases.JoinInput{
		GuildID:               inv.guildID,
		UserID:                inv.userID,
		NotificationChannelID: inv.channelID,
		VoiceChannelID:        voiceChannelID,
	})
	if err != nil {
		return h.fail(send, "join", err)
	}

	return send(successEmbed(fmt.Sprintf("Connected to <#%d>.", output.VoiceChannelID)))
}

// HandleLeave handles the /leave command.
func (h *CommandHandlers) HandleLeave(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	send := respondWith(r)

	inv, err := parseInvocation(i)
	if err != nil {
		return h.fail(send, "leave", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if err := h.voiceChannel.Leave(ctx, usecases.LeaveInput{GuildID: inv.guildID}); err != nil {
		if errors.Is(err, usecases.ErrNotConnected) {
			return h.fail(send, "leave", err)
		}
		// The session is gone either way
		slog.Warn("left voice channel uncleanly", "guild", inv.guildID, "error", err)
	}

	return send(successEmbed("Disconnected."))
}

// HandlePlay handles the /play command.
func (h *CommandHandlers) HandlePlay(
	s *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	inv, err := parseInvocation(i)
	if err != nil {
		return h.fail(respondWith(r), "play", err)
	}

	options := i.ApplicationCommandData().Options
	query := stringOption(options, "query")
	voiceChannelID, err := channelOption(s, options, "channel")
	if err != nil {
		return h.fail(respondWith(r), "play", err)
	}

	send, err := deferReply(r)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	output, err := h.playback.Play(ctx, usecases.PlayInput{
		GuildID:               inv.guildID,
		UserID:                inv.userID,
		NotificationChannelID: inv.channelID,
		VoiceChannelID:        voiceChannelID,
		Query:                 query,
	})
	if err != nil {
		return h.fail(send, "play", err)
	}

	return send(successEmbed(describePlay(output)))
}

func describePlay(output *usecases.PlayOutput) string {
	if len(output.Requests) > 1 {
		added := len(output.Requests) - len(output.Dropped)
		if len(output.Dropped) > 0 {
			return fmt.Sprintf("Added **%d tracks** to the queue. %d could not be played.",
				added, len(output.Dropped))
		}
		return fmt.Sprintf("Added **%d tracks** to the queue.", added)
	}

	link := trackLink(output.Requests[0].Source)
	if output.Position == 0 {
		return fmt.Sprintf("Playing %s.", link)
	}
	return fmt.Sprintf("Added %s to the queue at position %d.", link, output.Position)
}

// HandleSkip handles the /skip command.
func (h *CommandHandlers) HandleSkip(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	send := respondWith(r)

	inv, err := parseInvocation(i)
	if err != nil {
		return h.fail(send, "skip", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	output, err := h.playback.Skip(ctx, usecases.SkipInput{GuildID: inv.guildID})
	if err != nil {
		return h.fail(send, "skip", err)
	}

	// "Now Playing" for the next track is sent by the notification handler
	if output.SkippedTrack == nil {
		return send(successEmbed("Skipped."))
	}
	return send(successEmbed(fmt.Sprintf("Skipped %s.", trackLink(output.SkippedTrack.Source))))
}

// HandleStop handles the /stop command.
func (h *CommandHandlers) HandleStop(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	send := respondWith(r)

	inv, err := parseInvocation(i)
	if err != nil {
		return h.fail(send, "stop", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if _, err := h.playback.Stop(ctx, usecases.StopInput{GuildID: inv.guildID}); err != nil {
		return h.fail(send, "stop", err)
	}

	return send(successEmbed("Stopped playback."))
}

// HandleQueue handles the /queue command.
func (h *CommandHandlers) HandleQueue(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	send := respondWith(r)

	inv, err := parseInvocation(i)
	if err != nil {
		return h.fail(send, "queue", err)
	}

	page := 1
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "page" {
			page = int(opt.IntValue())
		}
	}

	output, err := h.queue.List(usecases.QueueListInput{
		GuildID:  inv.guildID,
		Page:     page,
		PageSize: usecases.DefaultPageSize,
	})
	if err != nil {
		return h.fail(send, "queue", err)
	}

	return send(queueEmbed(output))
}

func queueEmbed(output *usecases.QueueListOutput) *discordgo.MessageEmbed {
	var sb strings.Builder

	if output.CurrentTrack != nil {
		fmt.Fprintf(&sb, "**Now Playing:** %s `%s`\n\n",
			trackLink(output.CurrentTrack.Source),
			output.CurrentTrack.Source.FormattedDuration(),
		)
	} else {
		sb.WriteString("**Now Playing:** nothing\n\n")
	}

	if output.TotalTracks == 0 {
		sb.WriteString("The queue is empty.")
	} else {
		for idx, request := range output.Tracks {
			writeTrackLine(&sb, output.PageStart+idx, request.Source)
		}
	}

	embed := &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: sb.String(),
		Color:       colorInfo,
	}
	if output.TotalPages > 1 {
		embed.Footer = &discordgo.MessageEmbedFooter{
			Text: fmt.Sprintf("Page %d/%d · %d tracks",
				output.CurrentPage, output.TotalPages, output.TotalTracks),
		}
	}
	return embed
}

// HandleSearch handles the /search command.
func (h *CommandHandlers) HandleSearch(
	_ *discordgo.Session,
	i *discordgo.InteractionCreate,
	r bot.Responder,
) error {
	query := stringOption(i.ApplicationCommandData().Options, "query")

	send, err := deferReply(r)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	output, err := h.trackLoader.SearchTracks(ctx, usecases.SearchTracksInput{
		Query: query,
		Limit: searchResultLimit,
	})
	if err != nil {
		return h.fail(send, "search", err)
	}
	if len(output.Tracks) == 0 {
		return h.fail(send, "search", usecases.ErrNoResults)
	}

	var sb strings.Builder
	for idx, track := range output.Tracks {
		writeTrackLine(&sb, idx+1, track)
	}

	return send(&discordgo.MessageEmbed{
		Title:       fmt.Sprintf("Results for %q", truncate(query, 200)),
		Description: sb.String(),
		Color:       colorInfo,
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Use /play with a link to queue one of these.",
		},
	})
}

// fail reports err to the user. Errors that are not meant for users are logged
// and replaced with a generic message.
func (h *CommandHandlers) fail(send sendFunc, command string, err error) error {
	message := genericErrorMessage
	switch {
	case usecases.IsUserFacing(err):
		message = capitalize(err.Error())
	case errors.Is(err, errNotInGuild):
		message = capitalize(err.Error()) + "."
	default:
		slog.Error("command failed", "command", command, "error", err)
	}
	return send(errorEmbed(message))
}

// sendFunc delivers the single embed a command answers with.
type sendFunc func(embed *discordgo.MessageEmbed) error

// respondWith answers immediately.
func respondWith(r bot.Responder) sendFunc {
	return func(embed *discordgo.MessageEmbed) error {
		return r.Respond(&discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{embed},
			},
		})
	}
}

// deferReply acknowledges the interaction now and answers later by editing.
func deferReply(r bot.Responder) (sendFunc, error) {
	err := r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to defer response: %w", err)
	}

	return func(embed *discordgo.MessageEmbed) error {
		embeds := []*discordgo.MessageEmbed{embed}
		return r.Edit(&discordgo.WebhookEdit{Embeds: &embeds})
	}, nil
}

func successEmbed(description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Description: description,
		Color:       colorSuccess,
	}
}

func errorEmbed(description string) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Error",
		Description: description,
		Color:       colorError,
	}
}

func stringOption(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range options {
		if opt.Name == name {
			return opt.StringValue()
		}
	}
	return ""
}

// channelOption returns the channel picked for the option, or 0 if absent.
func channelOption(
	s *discordgo.Session,
	options []*discordgo.ApplicationCommandInteractionDataOption,
	name string,
) (snowflake.ID, error) {
	for _, opt := range options {
		if opt.Name != name {
			continue
		}
		id, err := snowflake.Parse(opt.ChannelValue(s).ID)
		if err != nil {
			return 0, fmt.Errorf("invalid channel option: %w", err)
		}
		return id, nil
	}
	return 0, nil
}

func trackLink(source usecases.SourceDescriptor) string {
	if source.URI != "" {
		return fmt.Sprintf("[%s](%s)", source.Title, source.URI)
	}
	return fmt.Sprintf("**%s**", source.Title)
}

// writeTrackLine writes a single track line to the string builder.
// Escapes period to prevent Discord markdown list formatting.
func writeTrackLine(sb *strings.Builder, position int, source usecases.SourceDescriptor) {
	fmt.Fprintf(sb, "%d\\. %s - %s `%s`\n",
		position,
		trackLink(source),
		source.Artist,
		source.FormattedDuration(),
	)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
