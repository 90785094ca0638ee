package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/usecases"
)

// Discord drops autocomplete answers after three seconds.
const autocompleteTimeout = 2500 * time.Millisecond

const (
	minAutocompleteQuery = 2
	maxChoices           = 25
	maxChoiceLength      = 100
)

// AutocompleteHandler handles autocomplete requests.
type AutocompleteHandler struct {
	trackLoader *usecases.TrackLoaderService
}

// NewAutocompleteHandler creates a new AutocompleteHandler.
func NewAutocompleteHandler(trackLoader *usecases.TrackLoaderService) *AutocompleteHandler {
	return &AutocompleteHandler{
		trackLoader: trackLoader,
	}
}

// HandlePlay suggests tracks for the play command's query option.
func (h *AutocompleteHandler) HandlePlay(s *discordgo.Session, i *discordgo.InteractionCreate) {
	choices := h.playChoices(focusedString(i.ApplicationCommandData().Options, "query"))

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{
			Choices: choices,
		},
	})
	if err != nil {
		slog.Debug("failed to send autocomplete choices", "error", err)
	}
}

// playChoices returns suggestions whose values are playable track URLs.
func (h *AutocompleteHandler) playChoices(query string) []*discordgo.ApplicationCommandOptionChoice {
	choices := []*discordgo.ApplicationCommandOptionChoice{}

	// URLs are played as given
	if len([]rune(query)) < minAutocompleteQuery || usecases.IsLink(query) {
		return choices
	}

	ctx, cancel := context.WithTimeout(context.Background(), autocompleteTimeout)
	defer cancel()

	output, err := h.trackLoader.SearchTracks(ctx, usecases.SearchTracksInput{
		Query: query,
		Limit: maxChoices,
	})
	if err != nil {
		slog.Debug("autocomplete search failed", "query", query, "error", err)
		return choices
	}

	for _, track := range output.Tracks {
		// Choice values are limited to 100 characters as well
		if track.URI == "" || len(track.URI) > maxChoiceLength {
			continue
		}
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  truncate(fmt.Sprintf("%s - %s", track.Title, track.Artist), maxChoiceLength),
			Value: track.URI,
		})
	}
	return choices
}

func focusedString(options []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, opt := range options {
		if opt.Name == name && opt.Focused {
			return opt.StringValue()
		}
	}
	return ""
}
