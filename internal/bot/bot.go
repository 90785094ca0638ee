package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Bot manages the Discord bot lifecycle and module coordination.
type Bot struct {
	config       *Config
	session      *discordgo.Session
	modules      []Module
	handlers     map[string]InteractionHandler
	autocomplete map[string]AutocompleteHandler
}

// NewBot creates a new Bot instance with the given configuration.
func NewBot(cfg *Config) *Bot {
	return &Bot{
		config:       cfg,
		modules:      make([]Module, 0),
		handlers:     make(map[string]InteractionHandler),
		autocomplete: make(map[string]AutocompleteHandler),
	}
}

// LoadModules loads modules from the global registry.
func (b *Bot) LoadModules() {
	b.modules = Modules()
}

// Start loads module configuration, connects to Discord, initializes modules
// and registers their commands. Modules are initialized after the connection
// opens since some of them need the bot's own user. ctx bounds module
// initialization.
func (b *Bot) Start(ctx context.Context) error {
	// Fail on bad configuration before connecting
	if err := b.loadModuleConfigs(); err != nil {
		return err
	}

	session, err := discordgo.New("Bot " + b.config.DiscordToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	b.session = session

	b.session.AddHandler(b.handleInteraction)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	if err := b.initModules(ctx); err != nil {
		return fmt.Errorf("failed to initialize modules: %w", err)
	}

	if err := b.buildHandlerMap(); err != nil {
		return err
	}
	b.registerEventHandlers()

	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	slog.Info("started bot",
		"user_id", b.session.State.User.ID,
		"username", b.session.State.User.Username,
	)

	return nil
}

// Stop shuts modules down in reverse order, then closes the Discord session.
// Modules still have a live connection while they shut down.
func (b *Bot) Stop(ctx context.Context) error {
	for i := len(b.modules) - 1; i >= 0; i-- {
		mod := b.modules[i]
		if err := mod.Shutdown(ctx); err != nil {
			slog.Warn("failed to shutdown module", "module", mod.Name(), "error", err)
		}
	}

	// Close Discord session
	if b.session != nil {
		return b.session.Close()
	}

	return nil
}

// loadModuleConfigs calls LoadConfig on modules that have configuration.
func (b *Bot) loadModuleConfigs() error {
	for _, mod := range b.modules {
		configurable, ok := mod.(ConfigurableModule)
		if !ok {
			continue
		}
		if err := configurable.LoadConfig(); err != nil {
			return fmt.Errorf("failed to load %s module config: %w", mod.Name(), err)
		}
	}
	return nil
}

// initModules initializes all loaded modules.
func (b *Bot) initModules(ctx context.Context) error {
	deps := ModuleDependencies{
		Session: b.session,
		Config:  b.config,
	}

	for _, mod := range b.modules {
		if err := mod.Init(ctx, deps); err != nil {
			return fmt.Errorf("failed to initialize %s module: %w", mod.Name(), err)
		}
		slog.Debug("initialized module", "module", mod.Name())
	}

	moduleNames := make([]string, len(b.modules))
	for i, mod := range b.modules {
		moduleNames[i] = mod.Name()
	}
	slog.Info("initialized modules", "modules", moduleNames)

	return nil
}

// buildHandlerMap maps command names to handlers. Two modules claiming the
// same command is an error. Autocomplete is only routed to the module that
// owns the command.
func (b *Bot) buildHandlerMap() error {
	owners := make(map[string]string)
	for _, mod := range b.modules {
		for name, handler := range mod.CommandHandlers() {
			if owner, dup := owners[name]; dup {
				return fmt.Errorf("command %q is provided by both %s and %s", name, owner, mod.Name())
			}
			owners[name] = mod.Name()
			b.handlers[name] = handler
		}
	}

	for _, mod := range b.modules {
		completer, ok := mod.(AutocompleteModule)
		if !ok {
			continue
		}
		for name, handler := range completer.AutocompleteHandlers() {
			if owners[name] != mod.Name() {
				return fmt.Errorf("%s provides autocomplete for command %q it does not own", mod.Name(), name)
			}
			b.autocomplete[name] = handler
		}
	}
	return nil
}

// registerEventHandlers registers all module event handlers with the session.
func (b *Bot) registerEventHandlers() {
	for _, mod := range b.modules {
		for _, handler := range mod.EventHandlers() {
			b.session.AddHandler(handler)
		}
	}
}

// collectCommands gathers all commands from loaded modules.
func (b *Bot) collectCommands() []*discordgo.ApplicationCommand {
	var commands []*discordgo.ApplicationCommand
	for _, mod := range b.modules {
		commands = append(commands, mod.Commands()...)
	}
	return commands
}

// registerCommands replaces the application's global commands with the
// modules' commands, so commands dropped from a module disappear too.
func (b *Bot) registerCommands() error {
	commands := b.collectCommands()

	registered, err := b.session.ApplicationCommandBulkOverwrite(
		b.session.State.User.ID,
		"", // Empty string registers commands globally
		commands,
	)
	if err != nil {
		return err
	}

	for _, cmd := range registered {
		slog.Debug("registered command", "command", cmd.Name)
	}

	return nil
}

// Embed colors for fallback responses.
const (
	colorWarning = 0xFEE75C
	colorError   = 0xED4245
)

// handleInteraction routes slash commands and autocomplete requests to their
// module's handlers. Other interaction types are left to module event handlers.
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		name := i.ApplicationCommandData().Name
		if handler, ok := b.autocomplete[name]; ok {
			handler(s, i)
		}
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	responder := NewDiscordResponder(s, i.Interaction)
	name := i.ApplicationCommandData().Name

	handler, ok := b.handlers[name]
	if !ok {
		slog.Warn("found no handler for command", "command", name)
		respondEphemeral(responder, "Unknown Command", "This command is not recognized.", colorWarning)
		return
	}

	if err := handler(s, i, responder); err != nil {
		slog.Error("failed to handle command", "command", name, "error", err)
		respondEphemeral(responder, "Error", "An error occurred while processing your command.", colorError)
	}
}

// respondEphemeral sends an embed only the invoking user can see.
func respondEphemeral(r Responder, title, description string, color int) {
	err := r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       title,
				Description: description,
				Color:       color,
			}},
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Error("failed to send fallback response", "error", err)
	}
}
