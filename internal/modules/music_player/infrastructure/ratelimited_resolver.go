package infrastructure

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/ports"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

// RateLimitedResolver throttles calls to a backend that bans heavy clients.
type RateLimitedResolver struct {
	next    ports.TrackResolver
	limiter *rate.Limiter
}

// NewRateLimitedResolver wraps next so that it is called at most perSecond
// times per second, with bursts of up to burst calls.
func NewRateLimitedResolver(
	next ports.TrackResolver,
	perSecond float64,
	burst int,
) *RateLimitedResolver {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedResolver{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Name implements ports.TrackResolver.
func (r *RateLimitedResolver) Name() string {
	return r.next.Name()
}

// Resolve waits for a token, then delegates.
func (r *RateLimitedResolver) Resolve(
	ctx context.Context,
	query domain.SearchQuery,
) ([]domain.SourceDescriptor, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s: rate limit wait: %w", r.next.Name(), err)
	}
	return r.next.Resolve(ctx, query)
}

var _ ports.TrackResolver = (*RateLimitedResolver)(nil)
