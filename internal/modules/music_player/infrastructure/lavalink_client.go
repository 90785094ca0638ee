package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/disgolink/v3/disgolink"
	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/ports"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

// voiceConnectionTimeout is the maximum time to wait for voice connection to be established.
const voiceConnectionTimeout = 10 * time.Second

// errNoNode is returned when no Lavalink node is available.
var errNoNode = errors.New("no available Lavalink node")

// LavalinkConfig contains Lavalink connection configuration.
type LavalinkConfig struct {
	NodeName string
	Address  string
	Password string
	Secure   bool
}

// startedTrack is one playback a guild's player was told to start.
type startedTrack struct {
	id      domain.PlaybackID
	encoded string
}

// LavalinkAdapter connects sessions to voice channels through Discord and
// plays their tracks on a Lavalink node.
type LavalinkAdapter struct {
	link    disgolink.Client
	session *discordgo.Session
	voice   *voiceBridge

	lastPlayback atomic.Uint64

	// Started playbacks per guild whose end event has not arrived yet,
	// oldest first. The player reports ends in start order.
	playingMu sync.Mutex
	playing   map[snowflake.ID][]startedTrack

	publisher ports.EventPublisher
}

// NewLavalinkAdapter creates a new LavalinkAdapter and connects to the node.
// The Discord session must already be open.
func NewLavalinkAdapter(
	ctx context.Context,
	session *discordgo.Session,
	config LavalinkConfig,
) (*LavalinkAdapter, error) {
	if session.State == nil || session.State.User == nil {
		return nil, errors.New("discord session is not open")
	}
	botID, err := snowflake.Parse(session.State.User.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse bot ID: %w", err)
	}

	adapter := &LavalinkAdapter{
		session: session,
		playing: make(map[snowflake.ID][]startedTrack),
	}

	link := disgolink.New(botID,
		disgolink.WithListenerFunc(adapter.onTrackStart),
		disgolink.WithListenerFunc(adapter.onTrackEnd),
		disgolink.WithListenerFunc(adapter.onTrackException),
		disgolink.WithListenerFunc(adapter.onTrackStuck),
	)
	adapter.link = link
	adapter.voice = newVoiceBridge(botID, forwardToLavalink(link))

	node, err := link.AddNode(ctx, disgolink.NodeConfig{
		Name:     config.NodeName,
		Address:  config.Address,
		Password: config.Password,
		Secure:   config.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to add Lavalink node: %w", err)
	}

	slog.Info("connected to Lavalink", "node", node.Config().Name, "address", config.Address)

	return adapter, nil
}

// SetEventPublisher sets where track-end events are published.
func (c *LavalinkAdapter) SetEventPublisher(publisher ports.EventPublisher) {
	c.publisher = publisher
}

// Close disconnects from all nodes.
func (c *LavalinkAdapter) Close() {
	c.link.Close()
}

// OnVoiceStateUpdate must be called from the Discord voice state handler.
func (c *LavalinkAdapter) OnVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	c.voice.onVoiceStateUpdate(event)
}

// OnVoiceServerUpdate must be called from the Discord voice server handler.
func (c *LavalinkAdapter) OnVoiceServerUpdate(event *discordgo.VoiceServerUpdate) {
	c.voice.onVoiceServerUpdate(event)
}

// Join connects to a voice channel.
// It waits for both VoiceStateUpdate and VoiceServerUpdate events before returning.
func (c *LavalinkAdapter) Join(
	ctx context.Context,
	guildID, channelID snowflake.ID,
) (domain.Connection, error) {
	pending, done := c.voice.expect(guildID)
	defer done()

	err := c.session.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, true)
	if err != nil {
		return nil, fmt.Errorf("failed to send voice state: %w", err)
	}

	select {
	case <-pending.ready:
		return &lavalinkConnection{adapter: c, guildID: guildID}, nil
	case <-ctx.Done():
		c.disconnect(guildID)
		return nil, fmt.Errorf("context cancelled while waiting for voice connection: %w", ctx.Err())
	case <-time.After(voiceConnectionTimeout):
		c.disconnect(guildID)
		return nil, errors.New("timeout waiting for voice connection")
	}
}

// disconnect asks Discord to drop the bot's voice state. Best-effort.
func (c *LavalinkAdapter) disconnect(guildID snowflake.ID) {
	if err := c.session.ChannelVoiceJoinManual(guildID.String(), "", false, false); err != nil {
		slog.Warn("failed to reset voice state", "guild", guildID, "error", err)
	}
}

// encodedFor returns Lavalink track data for a descriptor, loading it from the
// node when the descriptor came from a backend that has none.
func (c *LavalinkAdapter) encodedFor(
	ctx context.Context,
	source domain.SourceDescriptor,
) (string, error) {
	if source.Encoded != "" {
		return source.Encoded, nil
	}
	if source.URI == "" {
		return "", errors.New("source has neither encoded data nor URI")
	}

	node := c.link.BestNode()
	if node == nil {
		return "", errNoNode
	}

	result, err := node.LoadTracks(ctx, source.URI)
	if err != nil {
		return "", fmt.Errorf("failed to load track: %w", err)
	}

	tracks := tracksOf(result)
	if len(tracks) == 0 {
		return "", fmt.Errorf("lavalink returned no track for %s", source.URI)
	}
	return tracks[0].Encoded, nil
}

// startPlayback records a playback about to be sent to the player.
func (c *LavalinkAdapter) startPlayback(guildID snowflake.ID, encoded string) domain.PlaybackID {
	id := domain.PlaybackID(c.lastPlayback.Add(1))

	c.playingMu.Lock()
	defer c.playingMu.Unlock()
	c.playing[guildID] = append(c.playing[guildID], startedTrack{id: id, encoded: encoded})
	return id
}

// abandonPlayback forgets a playback the player never accepted.
func (c *LavalinkAdapter) abandonPlayback(guildID snowflake.ID, id domain.PlaybackID) {
	c.playingMu.Lock()
	defer c.playingMu.Unlock()

	started := c.playing[guildID]
	for i, t := range started {
		if t.id == id {
			c.playing[guildID] = append(started[:i:i], started[i+1:]...)
			break
		}
	}
	if len(c.playing[guildID]) == 0 {
		delete(c.playing, guildID)
	}
}

func (c *LavalinkAdapter) clearPlaying(guildID snowflake.ID) {
	c.playingMu.Lock()
	defer c.playingMu.Unlock()
	delete(c.playing, guildID)
}

// endPlayback resolves an ended track to the oldest pending playback with the
// same encoded data. Older entries whose end was never reported are discarded.
func (c *LavalinkAdapter) endPlayback(guildID snowflake.ID, encoded string) (domain.PlaybackID, bool) {
	c.playingMu.Lock()
	defer c.playingMu.Unlock()

	started := c.playing[guildID]
	for i, t := range started {
		if t.encoded != encoded {
			continue
		}
		if rest := started[i+1:]; len(rest) > 0 {
			c.playing[guildID] = rest
		} else {
			delete(c.playing, guildID)
		}
		return t.id, true
	}
	return 0, false
}

func (c *LavalinkAdapter) onTrackStart(player disgolink.Player, event lavalink.TrackStartEvent) {
	slog.Debug("track started", "guild", player.GuildID(), "track", event.Track.Info.Title)
}

func (c *LavalinkAdapter) onTrackEnd(player disgolink.Player, event lavalink.TrackEndEvent) {
	slog.Debug("track ended", "guild", player.GuildID(), "reason", event.Reason)

	id, ok := c.endPlayback(player.GuildID(), event.Track.Encoded)
	if !ok {
		slog.Debug("track end for unknown playback", "guild", player.GuildID())
		return
	}

	if c.publisher == nil {
		return
	}
	c.publisher.PublishTrackEnded(domain.TrackEndedEvent{
		GuildID:  player.GuildID(),
		Playback: id,
		Reason:   convertEndReason(event.Reason),
	})
}

func (c *LavalinkAdapter) onTrackException(
	player disgolink.Player,
	event lavalink.TrackExceptionEvent,
) {
	slog.Warn("track exception", "guild", player.GuildID(), "error", event.Exception.Message)
}

func (c *LavalinkAdapter) onTrackStuck(player disgolink.Player, event lavalink.TrackStuckEvent) {
	slog.Warn("track stuck", "guild", player.GuildID(), "threshold", event.Threshold)
}

func convertEndReason(reason lavalink.TrackEndReason) domain.TrackEndReason {
	switch reason {
	case lavalink.TrackEndReasonFinished:
		return domain.TrackEndFinished
	case lavalink.TrackEndReasonLoadFailed:
		return domain.TrackEndLoadFailed
	case lavalink.TrackEndReasonStopped:
		return domain.TrackEndStopped
	case lavalink.TrackEndReasonReplaced:
		return domain.TrackEndReplaced
	case lavalink.TrackEndReasonCleanup:
		return domain.TrackEndCleanup
	default:
		return domain.TrackEndStopped
	}
}

// lavalinkConnection is one guild's voice connection and Lavalink player.
type lavalinkConnection struct {
	adapter *LavalinkAdapter
	guildID snowflake.ID
}

// Play replaces whatever the player is playing with source.
func (l *lavalinkConnection) Play(
	ctx context.Context,
	source domain.SourceDescriptor,
) (domain.TrackHandle, error) {
	encoded, err := l.adapter.encodedFor(ctx, source)
	if err != nil {
		return nil, err
	}

	// Record before starting so an immediate end event maps correctly
	id := l.adapter.startPlayback(l.guildID, encoded)

	player := l.adapter.link.Player(l.guildID)
	if err := player.Update(ctx, lavalink.WithEncodedTrack(encoded)); err != nil {
		l.adapter.abandonPlayback(l.guildID, id)
		return nil, fmt.Errorf("failed to play track: %w", err)
	}

	return &lavalinkTrack{conn: l, id: id}, nil
}

// Leave destroys the player and disconnects from the channel.
func (l *lavalinkConnection) Leave(ctx context.Context) error {
	l.adapter.clearPlaying(l.guildID)

	if player := l.adapter.link.ExistingPlayer(l.guildID); player != nil {
		if err := player.Destroy(ctx); err != nil {
			slog.Warn("failed to destroy player", "guild", l.guildID, "error", err)
		}
	}

	err := l.adapter.session.ChannelVoiceJoinManual(l.guildID.String(), "", false, false)
	if err != nil {
		return fmt.Errorf("failed to leave voice channel: %w", err)
	}
	return nil
}

// lavalinkTrack controls the track a connection started.
type lavalinkTrack struct {
	conn *lavalinkConnection
	id   domain.PlaybackID
}

func (t *lavalinkTrack) ID() domain.PlaybackID {
	return t.id
}

// Stop halts playback on the guild's player.
func (t *lavalinkTrack) Stop(ctx context.Context) error {
	player := t.conn.adapter.link.Player(t.conn.guildID)
	if err := player.Update(ctx, lavalink.WithNullTrack()); err != nil {
		return fmt.Errorf("failed to stop playback: %w", err)
	}
	return nil
}

// Ensure the adapter implements the voice capabilities.
var (
	_ domain.Connector   = (*LavalinkAdapter)(nil)
	_ domain.Connection  = (*lavalinkConnection)(nil)
	_ domain.TrackHandle = (*lavalinkTrack)(nil)
)
