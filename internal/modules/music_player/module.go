package music_player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/keyboardcat/internal/bot"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/events"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/ports"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/usecases"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/infrastructure"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/presentation/discord"
)

func init() {
	bot.Register(&MusicPlayerModule{})
}

// Compile-time interface checks.
var (
	_ bot.ConfigurableModule = (*MusicPlayerModule)(nil)
	_ bot.AutocompleteModule = (*MusicPlayerModule)(nil)
)

// MusicPlayerModule provides music playback commands.
type MusicPlayerModule struct {
	config          *Config
	registry        *domain.SessionRegistry
	commandHandlers *discord.CommandHandlers
	autocomplete    *discord.AutocompleteHandler
	eventHandlers   *discord.EventHandlers
	lavalinkAdapter *infrastructure.LavalinkAdapter

	// Event-driven components
	eventBus            *events.Bus
	playbackHandler     *events.PlaybackEventHandler
	notificationHandler *events.NotificationEventHandler

	// Context for event handlers
	ctx    context.Context
	cancel context.CancelFunc
}

// Name returns the module name.
func (m *MusicPlayerModule) Name() string {
	return "music_player"
}

// Commands returns the slash commands for this module.
func (m *MusicPlayerModule) Commands() []*discordgo.ApplicationCommand {
	return discord.Commands()
}

// CommandHandlers returns the command handlers for this module.
func (m *MusicPlayerModule) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"join":   m.commandHandlers.HandleJoin,
		"leave":  m.commandHandlers.HandleLeave,
		"play":   m.commandHandlers.HandlePlay,
		"skip":   m.commandHandlers.HandleSkip,
		"stop":   m.commandHandlers.HandleStop,
		"queue":  m.commandHandlers.HandleQueue,
		"search": m.commandHandlers.HandleSearch,
	}
}

// EventHandlers returns the event handlers for this module.
func (m *MusicPlayerModule) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		m.handleVoiceServerUpdate,
		m.handleVoiceStateUpdate,
	}
}

// AutocompleteHandlers returns the autocomplete handlers for this module.
func (m *MusicPlayerModule) AutocompleteHandlers() map[string]bot.AutocompleteHandler {
	return map[string]bot.AutocompleteHandler{
		"play": m.autocomplete.HandlePlay,
	}
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *MusicPlayerModule) LoadConfig() error {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init wires the module. The Discord session must already be open.
func (m *MusicPlayerModule) Init(ctx context.Context, deps bot.ModuleDependencies) error {
	if deps.Session == nil || deps.Session.State == nil || deps.Session.State.User == nil {
		return errors.New("music_player requires an open Discord session")
	}
	if m.config == nil {
		if err := m.LoadConfig(); err != nil {
			return err
		}
	}

	botID, err := snowflake.Parse(deps.Session.State.User.ID)
	if err != nil {
		return fmt.Errorf("failed to parse bot ID: %w", err)
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())
	m.eventBus = events.NewBus(m.config.EventBufferSize)

	lavalinkAdapter, err := infrastructure.NewLavalinkAdapter(
		ctx,
		deps.Session,
		infrastructure.LavalinkConfig{
			NodeName: m.config.LavalinkNodeName,
			Address:  m.config.LavalinkAddress,
			Password: m.config.LavalinkPassword,
			Secure:   m.config.LavalinkSecure,
		},
	)
	if err != nil {
		m.cancel()
		m.eventBus.Close()
		return err
	}
	lavalinkAdapter.SetEventPublisher(m.eventBus)
	m.lavalinkAdapter = lavalinkAdapter

	// Core
	channels := infrastructure.NewDiscordChannelLocator(deps.Session)
	m.registry = domain.NewSessionRegistry(lavalinkAdapter, channels)

	// Use cases
	trackLoader := usecases.NewTrackLoaderService(m.config.searchSource(), m.resolvers()...)
	voiceChannel := usecases.NewVoiceChannelService(m.registry, m.eventBus, channels)
	playback := usecases.NewPlaybackService(m.registry, trackLoader, m.eventBus)
	queue := usecases.NewQueueService(m.registry)

	// Application event handlers
	m.playbackHandler = events.NewPlaybackEventHandler(m.registry, m.eventBus, m.eventBus)
	m.notificationHandler = events.NewNotificationEventHandler(
		infrastructure.NewNotifier(deps.Session),
		infrastructure.NewDiscordUserInfoProvider(deps.Session),
		m.registry,
		m.eventBus,
	)
	m.playbackHandler.Start(m.ctx)
	m.notificationHandler.Start(m.ctx)

	// Presentation
	m.commandHandlers = discord.NewCommandHandlers(voiceChannel, playback, queue, trackLoader)
	m.autocomplete = discord.NewAutocompleteHandler(trackLoader)
	m.eventHandlers = discord.NewEventHandlers(botID, voiceChannel)

	slog.Info("music_player module initialized",
		"lavalink", m.config.LavalinkAddress,
		"search_source", m.config.SearchSource,
		"youtube_resolver", m.config.YouTubeResolverEnabled,
	)

	return nil
}

// resolvers returns the configured backends in result order.
func (m *MusicPlayerModule) resolvers() []ports.TrackResolver {
	resolvers := []ports.TrackResolver{
		infrastructure.NewLavalinkResolver(m.lavalinkAdapter),
	}

	if m.config.YouTubeResolverEnabled {
		// YouTube throttles clients that scrape too fast
		resolvers = append(resolvers, infrastructure.NewRateLimitedResolver(
			infrastructure.NewYouTubeResolver(m.config.YouTubeTimeout),
			m.config.ResolverRateLimit,
			m.config.ResolverBurst,
		))
	}

	return resolvers
}

// Shutdown leaves every voice channel, then stops the event pipeline and
// disconnects from Lavalink.
func (m *MusicPlayerModule) Shutdown(ctx context.Context) error {
	var errs []error

	if m.registry != nil {
		if err := m.registry.DestroyAll(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to destroy sessions: %w", err))
		}
	}

	if m.playbackHandler != nil {
		m.playbackHandler.Stop()
	}
	if m.notificationHandler != nil {
		m.notificationHandler.Stop()
	}
	if m.cancel != nil {
		m.cancel()
	}
	if m.eventBus != nil {
		m.eventBus.Close()
	}
	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.Close()
	}

	return errors.Join(errs...)
}

// Event handlers.

func (m *MusicPlayerModule) handleVoiceServerUpdate(
	_ *discordgo.Session,
	event *discordgo.VoiceServerUpdate,
) {
	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.OnVoiceServerUpdate(event)
	}
}

func (m *MusicPlayerModule) handleVoiceStateUpdate(
	s *discordgo.Session,
	event *discordgo.VoiceStateUpdate,
) {
	if m.lavalinkAdapter != nil {
		m.lavalinkAdapter.OnVoiceStateUpdate(event)
	}
	if m.eventHandlers != nil {
		m.eventHandlers.HandleVoiceStateUpdate(s, event)
	}
}
