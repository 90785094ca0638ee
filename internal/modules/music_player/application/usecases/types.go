package usecases

import (
	"errors"

	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

// Re-export domain types for presentation layer use.
// This allows presentation to depend only on usecases without importing domain directly.

// TrackRequest is an alias for domain.TrackRequest.
type TrackRequest = domain.TrackRequest

// SourceDescriptor is an alias for domain.SourceDescriptor.
type SourceDescriptor = domain.SourceDescriptor

// SessionExistsError is an alias for domain.SessionExistsError.
type SessionExistsError = domain.SessionExistsError

// IsUserFacing reports whether err can be shown to a user verbatim.
func IsUserFacing(err error) bool {
	for _, target := range []error{ErrNotConnected, ErrNotPlaying, ErrNoResults, ErrEmptyQuery} {
		if errors.Is(err, target) {
			return true
		}
	}
	return domain.IsUserFacing(err)
}

// IsLink reports whether a query is played as a URL rather than searched.
func IsLink(query string) bool {
	return domain.NewSearchQuery(query, domain.SourceYouTube).IsURL
}
