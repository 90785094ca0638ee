package domain

import (
	"context"
	"errors"
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

var errBackend = errors.New("backend failure")

type fakeHandle struct {
	conn    *fakeConnection
	id      PlaybackID
	title   string
	stopErr error
}

func (h *fakeHandle) ID() PlaybackID { return h.id }

func (h *fakeHandle) Stop(context.Context) error {
	h.conn.mu.Lock()
	defer h.conn.mu.Unlock()
	h.conn.stopped = append(h.conn.stopped, h.title)
	return h.stopErr
}

type fakeConnection struct {
	mu       sync.Mutex
	played   []string
	stopped  []string
	leaves   int
	playErr  error
	stopErr  error
	leaveErr error
	broken   map[string]bool // Titles that fail to play
	handles  []*fakeHandle
}

func (c *fakeConnection) Play(_ context.Context, source SourceDescriptor) (TrackHandle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playErr != nil {
		return nil, c.playErr
	}
	if c.broken[source.Title] {
		return nil, errBackend
	}
	c.played = append(c.played, source.Title)
	h := &fakeHandle{
		conn:    c,
		id:      PlaybackID(len(c.played)),
		title:   source.Title,
		stopErr: c.stopErr,
	}
	c.handles = append(c.handles, h)
	return h, nil
}

// PlaybackID returns the ID of the i-th successful Play.
func (c *fakeConnection) PlaybackID(i int) PlaybackID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles[i].id
}

func (c *fakeConnection) Leave(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaves++
	return c.leaveErr
}

func (c *fakeConnection) Played() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.played...)
}

func (c *fakeConnection) Stopped() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.stopped...)
}

func (c *fakeConnection) Leaves() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.leaves
}

type joinCall struct {
	guildID   snowflake.ID
	channelID snowflake.ID
}

type fakeConnector struct {
	mu      sync.Mutex
	joins   []joinCall
	conns   []*fakeConnection
	joinErr error
	// block, when set, is waited on by joins for guilds listed in blockGuilds.
	block       chan struct{}
	blockGuilds map[snowflake.ID]bool
	entered     chan snowflake.ID
}

func (c *fakeConnector) Join(ctx context.Context, guildID, channelID snowflake.ID) (Connection, error) {
	if c.entered != nil {
		c.entered <- guildID
	}
	if c.block != nil && c.blockGuilds[guildID] {
		select {
		case <-c.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.joins = append(c.joins, joinCall{guildID: guildID, channelID: channelID})
	if c.joinErr != nil {
		return nil, c.joinErr
	}
	conn := &fakeConnection{}
	c.conns = append(c.conns, conn)
	return conn, nil
}

func (c *fakeConnector) Joins() []joinCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]joinCall(nil), c.joins...)
}

func (c *fakeConnector) Conn(i int) *fakeConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conns[i]
}

type fakeLocator struct {
	channels map[snowflake.ID]snowflake.ID
	err      error
}

func (l *fakeLocator) UserVoiceChannel(_, userID snowflake.ID) (snowflake.ID, error) {
	if l.err != nil {
		return 0, l.err
	}
	return l.channels[userID], nil
}

func request(title string) TrackRequest {
	return NewTrackRequest(SourceDescriptor{
		Encoded: "enc-" + title,
		Title:   title,
	}, snowflake.ID(1))
}

func titles(requests []TrackRequest) []string {
	result := make([]string, len(requests))
	for i, r := range requests {
		result[i] = r.Source.Title
	}
	return result
}
