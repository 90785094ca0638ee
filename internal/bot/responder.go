package bot

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Responder answers a single Discord interaction.
// Handlers depend on it instead of the session so they can be tested offline.
type Responder interface {
	// Respond sends the initial response to an interaction.
	Respond(response *discordgo.InteractionResponse) error

	// Edit replaces the initial response, typically after a deferred one.
	Edit(edit *discordgo.WebhookEdit) error
}

// DiscordResponder implements Responder using a live Discord session.
type DiscordResponder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
}

// NewDiscordResponder creates a new DiscordResponder.
func NewDiscordResponder(s *discordgo.Session, i *discordgo.Interaction) *DiscordResponder {
	return &DiscordResponder{
		session:     s,
		interaction: i,
	}
}

// Respond sends a response to the interaction via Discord API.
func (r *DiscordResponder) Respond(response *discordgo.InteractionResponse) error {
	return r.session.InteractionRespond(r.interaction, response)
}

// Edit edits the interaction's original response.
func (r *DiscordResponder) Edit(edit *discordgo.WebhookEdit) error {
	_, err := r.session.InteractionResponseEdit(r.interaction, edit)
	return err
}

// MockResponder is a test double for Responder.
type MockResponder struct {
	mu           sync.Mutex
	LastResponse *discordgo.InteractionResponse
	LastEdit     *discordgo.WebhookEdit
	Err          error
	EditErr      error
}

// Respond records the response for testing.
func (m *MockResponder) Respond(response *discordgo.InteractionResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastResponse = response
	return m.Err
}

// Edit records the edit for testing.
func (m *MockResponder) Edit(edit *discordgo.WebhookEdit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastEdit = edit
	return m.EditErr
}

// LastEmbed returns the first embed of the latest edit, or of the response if
// nothing was edited.
func (m *MockResponder) LastEmbed() *discordgo.MessageEmbed {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LastEdit != nil && m.LastEdit.Embeds != nil && len(*m.LastEdit.Embeds) > 0 {
		return (*m.LastEdit.Embeds)[0]
	}
	if m.LastResponse != nil && m.LastResponse.Data != nil && len(m.LastResponse.Data.Embeds) > 0 {
		return m.LastResponse.Data.Embeds[0]
	}
	return nil
}
