package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kkdai/youtube/v2"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/ports"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

const youtubeSourceName = "youtube"

// YouTubeResolver resolves YouTube video and playlist URLs by reading the
// metadata straight from YouTube. The descriptors it returns carry no
// Lavalink data; the voice backend loads them by URI when they start.
type YouTubeResolver struct {
	client *youtube.Client
}

// NewYouTubeResolver creates a new YouTubeResolver.
func NewYouTubeResolver(timeout time.Duration) *YouTubeResolver {
	return &YouTubeResolver{
		client: &youtube.Client{
			HTTPClient: &http.Client{Timeout: timeout},
		},
	}
}

// Name implements ports.TrackResolver.
func (r *YouTubeResolver) Name() string {
	return "youtube"
}

// Resolve implements ports.TrackResolver. Searches and non-YouTube URLs are unsupported.
func (r *YouTubeResolver) Resolve(
	ctx context.Context,
	query domain.SearchQuery,
) ([]domain.SourceDescriptor, error) {
	if !query.IsURL {
		return nil, ports.ErrUnsupportedQuery
	}

	kind, err := classifyYouTubeURL(query.Query)
	if err != nil {
		return nil, err
	}

	switch kind {
	case youtubePlaylist:
		return r.resolvePlaylist(ctx, query.Query)
	default:
		return r.resolveVideo(ctx, query.Query)
	}
}

func (r *YouTubeResolver) resolveVideo(
	ctx context.Context,
	rawURL string,
) ([]domain.SourceDescriptor, error) {
	id, err := youtube.ExtractVideoID(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract video ID: %w", err)
	}

	video, err := r.client.GetVideoContext(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch video %s: %w", id, err)
	}

	return []domain.SourceDescriptor{
		youtubeDescriptor(video.ID, video.Title, video.Author, video.Duration, video.Thumbnails),
	}, nil
}

func (r *YouTubeResolver) resolvePlaylist(
	ctx context.Context,
	rawURL string,
) ([]domain.SourceDescriptor, error) {
	playlist, err := r.client.GetPlaylistContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch playlist: %w", err)
	}

	sources := make([]domain.SourceDescriptor, 0, len(playlist.Videos))
	for _, entry := range playlist.Videos {
		if entry == nil || entry.ID == "" {
			continue
		}
		sources = append(sources,
			youtubeDescriptor(entry.ID, entry.Title, entry.Author, entry.Duration, entry.Thumbnails))
	}
	return sources, nil
}

func youtubeDescriptor(
	id, title, author string,
	duration time.Duration,
	thumbnails youtube.Thumbnails,
) domain.SourceDescriptor {
	artworkURL := ""
	if len(thumbnails) > 0 {
		// Largest last
		artworkURL = thumbnails[len(thumbnails)-1].URL
	}

	return domain.SourceDescriptor{
		Identifier: id,
		Title:      title,
		Artist:     author,
		Duration:   duration,
		URI:        "https://www.youtube.com/watch?v=" + id,
		ArtworkURL: artworkURL,
		SourceName: youtubeSourceName,
		IsStream:   duration == 0,
	}
}

type youtubeURLKind int

const (
	youtubeVideo youtubeURLKind = iota
	youtubePlaylist
)

// classifyYouTubeURL tells videos from playlists. URLs of other sites are
// ports.ErrUnsupportedQuery.
func classifyYouTubeURL(rawURL string) (youtubeURLKind, error) {
	if strings.HasPrefix(rawURL, "www.") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, ports.ErrUnsupportedQuery
	}

	shortLink := false
	switch strings.ToLower(u.Hostname()) {
	case "youtu.be":
		shortLink = true
	case "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com":
	default:
		return 0, ports.ErrUnsupportedQuery
	}

	q := u.Query()
	switch {
	case q.Get("list") != "":
		// A video opened from a playlist loads the playlist, as Lavalink does
		return youtubePlaylist, nil
	case shortLink, q.Get("v") != "":
		return youtubeVideo, nil
	case strings.HasPrefix(u.Path, "/shorts/"):
		return youtubeVideo, nil
	default:
		return 0, ports.ErrUnsupportedQuery
	}
}

var _ ports.TrackResolver = (*YouTubeResolver)(nil)
