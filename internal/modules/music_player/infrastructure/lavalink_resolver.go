package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/disgolink/v3/lavalink"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/ports"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

// LavalinkResolver resolves queries through the Lavalink node's track loader.
type LavalinkResolver struct {
	adapter *LavalinkAdapter
}

// NewLavalinkResolver creates a resolver sharing the adapter's node connection.
func NewLavalinkResolver(adapter *LavalinkAdapter) *LavalinkResolver {
	return &LavalinkResolver{adapter: adapter}
}

// Name implements ports.TrackResolver.
func (r *LavalinkResolver) Name() string {
	return "lavalink"
}

// Resolve implements ports.TrackResolver.
func (r *LavalinkResolver) Resolve(
	ctx context.Context,
	query domain.SearchQuery,
) ([]domain.SourceDescriptor, error) {
	node := r.adapter.link.BestNode()
	if node == nil {
		return nil, errNoNode
	}

	result, err := node.LoadTracks(ctx, query.LavalinkQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}

	if exception, ok := result.Data.(lavalink.Exception); ok {
		return nil, fmt.Errorf("lavalink failed to load %q: %s", query.Query, exception.Message)
	}

	tracks := tracksOf(result)
	sources := make([]domain.SourceDescriptor, len(tracks))
	for i, track := range tracks {
		sources[i] = convertTrack(track)
	}
	return sources, nil
}

// tracksOf flattens a load result. Empty and exception results have no tracks.
func tracksOf(result *lavalink.LoadResult) []lavalink.Track {
	switch data := result.Data.(type) {
	case lavalink.Track:
		return []lavalink.Track{data}
	case lavalink.Playlist:
		return data.Tracks
	case lavalink.Search:
		return data
	default:
		return nil
	}
}

// convertTrack converts a Lavalink track to a source descriptor.
func convertTrack(track lavalink.Track) domain.SourceDescriptor {
	info := track.Info
	return domain.SourceDescriptor{
		Identifier: info.Identifier,
		Encoded:    track.Encoded,
		Title:      info.Title,
		Artist:     info.Author,
		Duration:   time.Duration(info.Length) * time.Millisecond,
		URI:        derefString(info.URI),
		ArtworkURL: derefString(info.ArtworkURL),
		SourceName: info.SourceName,
		IsStream:   info.IsStream,
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ ports.TrackResolver = (*LavalinkResolver)(nil)
