package infrastructure

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

const (
	testBotID   = snowflake.ID(100)
	testGuildID = snowflake.ID(1)
)

type forwarded struct {
	guildID snowflake.ID
	h       voiceHandshake
}

type recordingForward struct {
	mu    sync.Mutex
	calls []forwarded
}

func (r *recordingForward) forward(guildID snowflake.ID, h voiceHandshake) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, forwarded{guildID: guildID, h: h})
}

func (r *recordingForward) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func voiceState(userID snowflake.ID, channelID string) *discordgo.VoiceStateUpdate {
	return &discordgo.VoiceStateUpdate{
		VoiceState: &discordgo.VoiceState{
			GuildID:   testGuildID.String(),
			ChannelID: channelID,
			UserID:    userID.String(),
			SessionID: "session",
		},
	}
}

func voiceServer() *discordgo.VoiceServerUpdate {
	return &discordgo.VoiceServerUpdate{
		GuildID:  testGuildID.String(),
		Token:    "token",
		Endpoint: "endpoint",
	}
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-time.After(10 * time.Millisecond):
		return false
	}
}

func TestVoiceBridge_ForwardsOnlyCompleteHandshake(t *testing.T) {
	tests := []struct {
		name  string
		apply func(b *voiceBridge)
	}{
		{
			name: "state then server",
			apply: func(b *voiceBridge) {
				b.onVoiceStateUpdate(voiceState(testBotID, "42"))
				b.onVoiceServerUpdate(voiceServer())
			},
		},
		{
			name: "server then state",
			apply: func(b *voiceBridge) {
				b.onVoiceServerUpdate(voiceServer())
				b.onVoiceStateUpdate(voiceState(testBotID, "42"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingForward{}
			bridge := newVoiceBridge(testBotID, rec.forward)
			pending, done := bridge.expect(testGuildID)
			defer done()

			tt.apply(bridge)

			if rec.count() != 1 {
				t.Fatalf("expected 1 forward, got %d", rec.count())
			}
			h := rec.calls[0].h
			if h.channelID == nil || *h.channelID != snowflake.ID(42) {
				t.Errorf("expected channel 42, got %v", h.channelID)
			}
			if h.sessionID != "session" || h.token != "token" || h.endpoint != "endpoint" {
				t.Errorf("unexpected handshake: %+v", h)
			}
			if !isClosed(pending.ready) {
				t.Error("expected pending join to be ready")
			}
		})
	}
}

func TestVoiceBridge_HalfHandshakeIsHeld(t *testing.T) {
	rec := &recordingForward{}
	bridge := newVoiceBridge(testBotID, rec.forward)
	pending, done := bridge.expect(testGuildID)
	defer done()

	bridge.onVoiceStateUpdate(voiceState(testBotID, "42"))

	if rec.count() != 0 {
		t.Errorf("expected no forward, got %d", rec.count())
	}
	if isClosed(pending.ready) {
		t.Error("expected pending join to still wait")
	}
}

func TestVoiceBridge_IgnoresOtherUsers(t *testing.T) {
	rec := &recordingForward{}
	bridge := newVoiceBridge(testBotID, rec.forward)

	bridge.onVoiceStateUpdate(voiceState(snowflake.ID(7), "42"))
	bridge.onVoiceServerUpdate(voiceServer())

	if rec.count() != 0 {
		t.Errorf("expected no forward, got %d", rec.count())
	}
}

func TestVoiceBridge_DisconnectForwardsImmediately(t *testing.T) {
	rec := &recordingForward{}
	bridge := newVoiceBridge(testBotID, rec.forward)

	bridge.onVoiceServerUpdate(voiceServer())
	bridge.onVoiceStateUpdate(voiceState(testBotID, ""))

	if rec.count() != 1 {
		t.Fatalf("expected 1 forward, got %d", rec.count())
	}
	if rec.calls[0].h.channelID != nil {
		t.Errorf("expected nil channel, got %v", *rec.calls[0].h.channelID)
	}

	// The stale server half was dropped with the disconnect
	bridge.onVoiceStateUpdate(voiceState(testBotID, "42"))
	if rec.count() != 1 {
		t.Errorf("expected no forward for half handshake, got %d", rec.count())
	}
}

func TestVoiceBridge_ExpectDoneUnregisters(t *testing.T) {
	bridge := newVoiceBridge(testBotID, func(snowflake.ID, voiceHandshake) {})

	first, doneFirst := bridge.expect(testGuildID)
	second, doneSecond := bridge.expect(testGuildID)

	// A stale done must not remove the newer join
	doneFirst()
	bridge.onVoiceStateUpdate(voiceState(testBotID, "42"))
	bridge.onVoiceServerUpdate(voiceServer())

	if !isClosed(second.ready) {
		t.Error("expected newer join to be ready")
	}
	if isClosed(first.ready) {
		t.Error("expected replaced join to stay pending")
	}

	doneSecond()
	bridge.mu.Lock()
	defer bridge.mu.Unlock()
	if len(bridge.pending) != 0 {
		t.Errorf("expected no pending joins, got %d", len(bridge.pending))
	}
}

type fakeLink struct {
	states  []*snowflake.ID
	servers int
}

func (f *fakeLink) OnVoiceStateUpdate(_ context.Context, _ snowflake.ID, channelID *snowflake.ID, _ string) {
	f.states = append(f.states, channelID)
}

func (f *fakeLink) OnVoiceServerUpdate(_ context.Context, _ snowflake.ID, _ string, _ string) {
	f.servers++
}

func TestForwardToLavalink(t *testing.T) {
	link := &fakeLink{}
	forward := forwardToLavalink(link)

	channelID := snowflake.ID(42)
	forward(testGuildID, voiceHandshake{channelID: &channelID, sessionID: "s", token: "t", endpoint: "e"})
	forward(testGuildID, voiceHandshake{sessionID: "s"})

	if len(link.states) != 2 {
		t.Fatalf("expected 2 voice states, got %d", len(link.states))
	}
	if link.servers != 1 {
		t.Errorf("expected server update only for the join, got %d", link.servers)
	}
}
