package ports

import (
	"context"
	"errors"

	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

// ErrUnsupportedQuery is returned by a resolver that cannot handle the query
// at all, e.g. a URL of a site it does not know. It is not a failure.
var ErrUnsupportedQuery = errors.New("query not supported by this resolver")

// TrackResolver turns a user query into playable source descriptors.
type TrackResolver interface {
	// Name identifies the backend in logs.
	Name() string

	// Resolve returns the descriptors matching the query, best match first.
	// An empty result with a nil error means the backend found nothing.
	Resolve(ctx context.Context, query domain.SearchQuery) ([]domain.SourceDescriptor, error)
}
