package domain

import (
	"strings"
)

// SearchSource is the Lavalink search prefix used for plain-text queries.
type SearchSource string

const (
	// SourceYouTube searches YouTube.
	SourceYouTube SearchSource = "ytsearch"
	// SourceYouTubeMusic searches YouTube Music.
	SourceYouTubeMusic SearchSource = "ytmsearch"
	// SourceSoundCloud searches SoundCloud.
	SourceSoundCloud SearchSource = "scsearch"
	// SourceDirect indicates a direct URL (no search prefix).
	SourceDirect SearchSource = ""
)

// ParseSearchSource converts a configured source name, falling back to YouTube.
func ParseSearchSource(s string) SearchSource {
	switch SearchSource(s) {
	case SourceYouTubeMusic:
		return SourceYouTubeMusic
	case SourceSoundCloud:
		return SourceSoundCloud
	default:
		return SourceYouTube
	}
}

// SearchQuery is a user query normalized for the resolvers.
type SearchQuery struct {
	Query  string       // The search term or URL
	Source SearchSource // Search prefix, SourceDirect for URLs
	IsURL  bool
}

// NewSearchQuery creates a SearchQuery from user input. URLs are passed
// through unchanged, anything else is searched on the given source.
func NewSearchQuery(input string, source SearchSource) SearchQuery {
	input = strings.TrimSpace(input)

	if isURL(input) {
		return SearchQuery{
			Query:  input,
			Source: SourceDirect,
			IsURL:  true,
		}
	}

	if source == SourceDirect {
		source = SourceYouTube
	}
	return SearchQuery{
		Query:  input,
		Source: source,
	}
}

// LavalinkQuery returns the query string formatted for Lavalink.
func (q SearchQuery) LavalinkQuery() string {
	if q.IsURL {
		return q.Query
	}
	return string(q.Source) + ":" + q.Query
}

// IsValid returns true if the query is not empty.
func (q SearchQuery) IsValid() bool {
	return q.Query != ""
}

// isURL checks if the input looks like a URL.
func isURL(input string) bool {
	return strings.HasPrefix(input, "http://") ||
		strings.HasPrefix(input, "https://") ||
		strings.HasPrefix(input, "www.")
}
