package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/ports"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

// LoadTrackInput contains the input for the LoadTrack use case.
type LoadTrackInput struct {
	Query string
}

// LoadTrackOutput contains the result of the LoadTrack use case.
type LoadTrackOutput struct {
	// Sources holds the best search match, or every track of a playlist URL.
	Sources []domain.SourceDescriptor
}

// SearchTracksInput contains the input for the SearchTracks use case.
type SearchTracksInput struct {
	Query string
	Limit int
}

// SearchTracksOutput contains the result of the SearchTracks use case.
type SearchTracksOutput struct {
	Tracks []domain.SourceDescriptor
}

// TrackLoaderService resolves user queries against every configured backend.
type TrackLoaderService struct {
	resolvers []ports.TrackResolver
	source    domain.SearchSource
}

// NewTrackLoaderService creates a new TrackLoaderService. Results are merged
// in the order the resolvers are given.
func NewTrackLoaderService(
	source domain.SearchSource,
	resolvers ...ports.TrackResolver,
) *TrackLoaderService {
	return &TrackLoaderService{
		resolvers: resolvers,
		source:    source,
	}
}

// LoadTrack resolves a query for playback.
func (s *TrackLoaderService) LoadTrack(
	ctx context.Context,
	input LoadTrackInput,
) (*LoadTrackOutput, error) {
	query := domain.NewSearchQuery(input.Query, s.source)
	if !query.IsValid() {
		return nil, ErrEmptyQuery
	}

	sources, err := s.resolve(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, ErrNoResults
	}

	// A search yields candidates, a URL yields exactly what it points to
	if !query.IsURL {
		sources = sources[:1]
	}

	return &LoadTrackOutput{Sources: sources}, nil
}

// SearchTracks searches for tracks matching the query.
func (s *TrackLoaderService) SearchTracks(
	ctx context.Context,
	input SearchTracksInput,
) (*SearchTracksOutput, error) {
	query := domain.NewSearchQuery(input.Query, s.source)
	if !query.IsValid() {
		return &SearchTracksOutput{Tracks: nil}, nil
	}

	tracks, err := s.resolve(ctx, query)
	if err != nil {
		return nil, err
	}

	limit := input.Limit
	if limit <= 0 || limit > len(tracks) {
		limit = len(tracks)
	}

	return &SearchTracksOutput{
		Tracks: tracks[:limit],
	}, nil
}

// resolve queries all resolvers concurrently. A failing resolver is logged and
// skipped; the call fails only when every resolver that accepted the query failed.
func (s *TrackLoaderService) resolve(
	ctx context.Context,
	query domain.SearchQuery,
) ([]domain.SourceDescriptor, error) {
	results := make([][]domain.SourceDescriptor, len(s.resolvers))
	errs := make([]error, len(s.resolvers))

	var wg sync.WaitGroup
	for i, resolver := range s.resolvers {
		i, resolver := i, resolver
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = resolver.Resolve(ctx, query)
		}()
	}
	wg.Wait()

	var (
		merged   []domain.SourceDescriptor
		failures []error
		accepted int
		seen     = make(map[string]struct{})
	)
	for i, resolver := range s.resolvers {
		err := errs[i]
		if errors.Is(err, ports.ErrUnsupportedQuery) {
			continue
		}
		accepted++
		if err != nil {
			slog.Warn("resolver failed",
				"resolver", resolver.Name(),
				"query", query.Query,
				"error", err,
			)
			failures = append(failures, fmt.Errorf("%s: %w", resolver.Name(), err))
			continue
		}

		for _, d := range results[i] {
			key := dedupeKey(d)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, d)
		}
	}

	if accepted > 0 && len(failures) == accepted {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, errors.Join(failures...))
	}
	return merged, nil
}

// dedupeKey identifies the same media across backends.
func dedupeKey(d domain.SourceDescriptor) string {
	if d.Identifier != "" {
		return d.SourceName + ":" + d.Identifier
	}
	return d.Key()
}
