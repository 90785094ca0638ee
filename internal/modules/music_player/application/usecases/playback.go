package usecases

import (
	"context"
	"errors"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/application/ports"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

// PlayInput contains the input for the Play use case.
type PlayInput struct {
	GuildID               snowflake.ID
	UserID                snowflake.ID
	NotificationChannelID snowflake.ID
	VoiceChannelID        snowflake.ID // Optional: channel to join if no session exists
	Query                 string
}

// PlayOutput contains the result of the Play use case.
type PlayOutput struct {
	Requests []domain.TrackRequest // Requests appended, in queue order
	Dropped  []domain.TrackRequest // Requests that failed to start and were removed
	Position int                   // 1-indexed queue position of the first request kept, 0 if it started right away
}

// SkipInput contains the input for the Skip use case.
type SkipInput struct {
	GuildID snowflake.ID
}

// SkipOutput contains the result of the Skip use case.
type SkipOutput struct {
	SkippedTrack *domain.TrackRequest
	NextTrack    *domain.TrackRequest // nil if queue is empty
}

// StopInput contains the input for the Stop use case.
type StopInput struct {
	GuildID snowflake.ID
}

// StopOutput contains the result of the Stop use case.
type StopOutput struct {
	StoppedTrack *domain.TrackRequest
}

// PlaybackService handles playback operations.
type PlaybackService struct {
	registry  *domain.SessionRegistry
	loader    *TrackLoaderService
	publisher ports.EventPublisher
}

// NewPlaybackService creates a new PlaybackService.
func NewPlaybackService(
	registry *domain.SessionRegistry,
	loader *TrackLoaderService,
	publisher ports.EventPublisher,
) *PlaybackService {
	return &PlaybackService{
		registry:  registry,
		loader:    loader,
		publisher: publisher,
	}
}

// Play resolves the query, joins a channel if the guild has no session yet,
// appends the results and starts playback if nothing is playing. Requests that
// fail to start are reported in the output; Play only fails with a
// *domain.PlaybackError when none of its requests could be kept.
func (p *PlaybackService) Play(ctx context.Context, input PlayInput) (*PlayOutput, error) {
	loaded, err := p.loader.LoadTrack(ctx, LoadTrackInput{Query: input.Query})
	if err != nil {
		return nil, err
	}

	session, err := p.registry.GetOrCreate(ctx, domain.CreateSessionInput{
		GuildID:       input.GuildID,
		UserID:        input.UserID,
		ChannelID:     input.VoiceChannelID,
		TextChannelID: input.NotificationChannelID,
	})
	if err != nil {
		return nil, err
	}

	requests := make([]domain.TrackRequest, len(loaded.Sources))
	for i, source := range loaded.Sources {
		requests[i] = domain.NewTrackRequest(source, input.UserID)
	}

	queueLen, err := session.Append(requests...)
	if err != nil {
		return nil, err
	}
	ahead := queueLen - len(requests)

	started, dropped, err := session.StartNextPlayable(ctx)
	p.publishFailed(session, dropped)
	if err != nil {
		return nil, err
	}

	// Pops come off the queue front, so they reach our requests in order.
	output := &PlayOutput{Requests: requests}
	next := 0
	var firstErr *domain.PlaybackError
	for _, d := range dropped {
		if next < len(requests) && d.Request == requests[next] {
			if firstErr == nil {
				firstErr = d
			}
			output.Dropped = append(output.Dropped, d.Request)
			next++
		} else if ahead > 0 {
			ahead--
		}
	}
	if next == len(requests) {
		return nil, firstErr
	}

	output.Position = ahead + 1
	if started != nil {
		p.publishStarted(session, *started)
		if *started == requests[next] {
			output.Position = 0
		} else {
			output.Position--
		}
	}

	return output, nil
}

// Skip stops the current track and plays the next one from the queue.
func (p *PlaybackService) Skip(ctx context.Context, input SkipInput) (*SkipOutput, error) {
	session := p.registry.Get(input.GuildID)
	if session == nil {
		return nil, ErrNotConnected
	}
	if _, playing := session.NowPlaying(); !playing {
		return nil, ErrNotPlaying
	}

	transition, err := session.Advance(ctx)
	var playErr *domain.PlaybackError
	if errors.As(err, &playErr) {
		// The successor was dropped; keep going down the queue.
		p.publishFailed(session, []*domain.PlaybackError{playErr})

		var dropped []*domain.PlaybackError
		transition.Started, dropped, err = session.StartNextPlayable(ctx)
		p.publishFailed(session, dropped)
	}
	if err != nil {
		return nil, err
	}

	if transition.Started != nil {
		p.publishStarted(session, *transition.Started)
	} else {
		p.publishFinished(input.GuildID)
	}

	return &SkipOutput{
		SkippedTrack: transition.Stopped,
		NextTrack:    transition.Started,
	}, nil
}

// Stop halts the current track and keeps the queue.
func (p *PlaybackService) Stop(ctx context.Context, input StopInput) (*StopOutput, error) {
	session := p.registry.Get(input.GuildID)
	if session == nil {
		return nil, ErrNotConnected
	}

	stopped, err := session.Stop(ctx)
	if err != nil {
		return nil, err
	}
	if stopped == nil {
		return nil, ErrNotPlaying
	}

	p.publishFinished(input.GuildID)

	return &StopOutput{StoppedTrack: stopped}, nil
}

func (p *PlaybackService) publishStarted(session *domain.Session, request domain.TrackRequest) {
	if p.publisher != nil {
		p.publisher.PublishPlaybackStarted(domain.PlaybackStartedEvent{
			GuildID:       session.GuildID(),
			TextChannelID: session.TextChannelID(),
			Request:       request,
		})
	}
}

func (p *PlaybackService) publishFailed(session *domain.Session, dropped []*domain.PlaybackError) {
	if p.publisher == nil {
		return
	}
	for _, d := range dropped {
		p.publisher.PublishPlaybackFailed(domain.PlaybackFailedEvent{
			GuildID:       session.GuildID(),
			TextChannelID: session.TextChannelID(),
			Request:       d.Request,
			Err:           d.Err,
		})
	}
}

func (p *PlaybackService) publishFinished(guildID snowflake.ID) {
	if p.publisher != nil {
		p.publisher.PublishPlaybackFinished(domain.PlaybackFinishedEvent{GuildID: guildID})
	}
}
