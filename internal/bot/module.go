package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// InteractionHandler handles a slash command and returns an error the bot
// reports to the user with a generic message.
type InteractionHandler func(s *discordgo.Session, i *discordgo.InteractionCreate, r Responder) error

// AutocompleteHandler answers autocomplete requests for one command. It
// responds on its own; there is no fallback reply for autocomplete.
type AutocompleteHandler func(s *discordgo.Session, i *discordgo.InteractionCreate)

// EventHandler is any function discordgo.Session.AddHandler accepts,
// e.g. func(s *discordgo.Session, v *discordgo.VoiceStateUpdate).
type EventHandler any

// ModuleDependencies is what the bot hands to every module in Init.
type ModuleDependencies struct {
	Session *discordgo.Session // Open, State.User is set
	Config  *Config
}

// Module is a self-contained feature set: its slash commands, their
// handlers and any gateway event handlers it needs.
type Module interface {
	// Name must be unique among registered modules.
	Name() string

	Commands() []*discordgo.ApplicationCommand

	// CommandHandlers is keyed by command name. A name may belong to only one module.
	CommandHandlers() map[string]InteractionHandler

	EventHandlers() []EventHandler

	// Init runs after the gateway connection opens. ctx bounds startup work
	// only; long-lived goroutines need a context of their own.
	Init(ctx context.Context, deps ModuleDependencies) error

	// Shutdown runs in reverse registration order while the gateway
	// connection is still open.
	Shutdown(ctx context.Context) error
}

// ConfigurableModule is implemented by modules with their own configuration.
// LoadConfig runs before the gateway connects, so bad configuration fails
// fast.
type ConfigurableModule interface {
	LoadConfig() error
}

// AutocompleteModule is implemented by modules whose commands have options
// with autocomplete. Handlers are keyed by command name.
type AutocompleteModule interface {
	AutocompleteHandlers() map[string]AutocompleteHandler
}
