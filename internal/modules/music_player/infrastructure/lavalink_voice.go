package infrastructure

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

// pendingJoin is closed once Discord has sent both halves of a voice
// handshake for a guild we are joining.
type pendingJoin struct {
	mu             sync.Mutex
	hasVoiceState  bool
	hasVoiceServer bool
	ready          chan struct{}
}

func newPendingJoin() *pendingJoin {
	return &pendingJoin{ready: make(chan struct{})}
}

func (p *pendingJoin) markVoiceState() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hasVoiceState = true
	p.signalLocked()
}

func (p *pendingJoin) markVoiceServer() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hasVoiceServer = true
	p.signalLocked()
}

func (p *pendingJoin) signalLocked() {
	if !p.hasVoiceState || !p.hasVoiceServer {
		return
	}
	select {
	case <-p.ready:
	default:
		close(p.ready)
	}
}

// voiceHandshake holds one guild's voice events until both have arrived.
// Lavalink rejects a partial voice state, and Discord sends the two events in
// either order.
type voiceHandshake struct {
	channelID *snowflake.ID
	sessionID string
	token     string
	endpoint  string

	hasVoiceState  bool
	hasVoiceServer bool
}

func (h *voiceHandshake) complete() bool {
	return h.hasVoiceState && h.hasVoiceServer
}

// voiceBridge forwards Discord gateway voice events to Lavalink and wakes up
// joins waiting for them.
type voiceBridge struct {
	botID snowflake.ID
	// forward receives a completed handshake, or a disconnect with a nil channel.
	forward func(guildID snowflake.ID, h voiceHandshake)

	mu         sync.Mutex
	handshakes map[snowflake.ID]*voiceHandshake
	pending    map[snowflake.ID]*pendingJoin
}

func newVoiceBridge(botID snowflake.ID, forward func(snowflake.ID, voiceHandshake)) *voiceBridge {
	return &voiceBridge{
		botID:      botID,
		forward:    forward,
		handshakes: make(map[snowflake.ID]*voiceHandshake),
		pending:    make(map[snowflake.ID]*pendingJoin),
	}
}

// expect registers a join in progress. The returned func unregisters it.
func (b *voiceBridge) expect(guildID snowflake.ID) (*pendingJoin, func()) {
	p := newPendingJoin()

	b.mu.Lock()
	b.pending[guildID] = p
	b.mu.Unlock()

	return p, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.pending[guildID] == p {
			delete(b.pending, guildID)
		}
	}
}

// onVoiceStateUpdate handles the bot's own voice state updates.
func (b *voiceBridge) onVoiceStateUpdate(event *discordgo.VoiceStateUpdate) {
	if event.UserID != b.botID.String() {
		return
	}

	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice state update", "error", err)
		return
	}

	var channelID *snowflake.ID
	if event.ChannelID != "" {
		id, err := snowflake.Parse(event.ChannelID)
		if err != nil {
			slog.Error("failed to parse channel ID in voice state update", "error", err)
			return
		}
		channelID = &id
	}

	// A disconnect needs no server half
	if channelID == nil {
		b.mu.Lock()
		delete(b.handshakes, guildID)
		b.mu.Unlock()
		b.forward(guildID, voiceHandshake{sessionID: event.SessionID})
		return
	}

	b.mu.Lock()
	h := b.handshakeLocked(guildID)
	h.channelID = channelID
	h.sessionID = event.SessionID
	h.hasVoiceState = true
	ready := b.takeIfCompleteLocked(guildID)
	pending := b.pending[guildID]
	b.mu.Unlock()

	if ready != nil {
		b.forward(guildID, *ready)
	}
	if pending != nil {
		pending.markVoiceState()
	}
}

// onVoiceServerUpdate handles voice server updates.
func (b *voiceBridge) onVoiceServerUpdate(event *discordgo.VoiceServerUpdate) {
	guildID, err := snowflake.Parse(event.GuildID)
	if err != nil {
		slog.Error("failed to parse guild ID in voice server update", "error", err)
		return
	}

	b.mu.Lock()
	h := b.handshakeLocked(guildID)
	h.token = event.Token
	h.endpoint = event.Endpoint
	h.hasVoiceServer = true
	ready := b.takeIfCompleteLocked(guildID)
	pending := b.pending[guildID]
	b.mu.Unlock()

	if ready != nil {
		b.forward(guildID, *ready)
	}
	if pending != nil {
		pending.markVoiceServer()
	}
}

func (b *voiceBridge) handshakeLocked(guildID snowflake.ID) *voiceHandshake {
	h, ok := b.handshakes[guildID]
	if !ok {
		h = &voiceHandshake{}
		b.handshakes[guildID] = h
	}
	return h
}

// takeIfCompleteLocked removes and returns the guild's handshake once both halves are in.
func (b *voiceBridge) takeIfCompleteLocked(guildID snowflake.ID) *voiceHandshake {
	h := b.handshakes[guildID]
	if h == nil || !h.complete() {
		return nil
	}
	delete(b.handshakes, guildID)
	return h
}

// forwardToLavalink is the production forward func.
func forwardToLavalink(link interface {
	OnVoiceStateUpdate(ctx context.Context, guildID snowflake.ID, channelID *snowflake.ID, sessionID string)
	OnVoiceServerUpdate(ctx context.Context, guildID snowflake.ID, token string, endpoint string)
}) func(snowflake.ID, voiceHandshake) {
	return func(guildID snowflake.ID, h voiceHandshake) {
		ctx := context.Background()

		slog.Debug("forwarding voice events to Lavalink",
			"guild", guildID,
			"channel", h.channelID,
			"hasSessionID", h.sessionID != "",
		)

		link.OnVoiceStateUpdate(ctx, guildID, h.channelID, h.sessionID)
		if h.channelID != nil {
			link.OnVoiceServerUpdate(ctx, guildID, h.token, h.endpoint)
		}
	}
}
