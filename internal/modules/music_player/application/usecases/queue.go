package usecases

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/keyboardcat/internal/modules/music_player/domain"
)

const DefaultPageSize = 10

// QueueListInput contains the input for the QueueList use case.
type QueueListInput struct {
	GuildID  snowflake.ID
	Page     int // 1-indexed page number
	PageSize int // Items per page (optional, defaults to 10)
}

// QueueListOutput contains the result of the QueueList use case.
type QueueListOutput struct {
	CurrentTrack *domain.TrackRequest
	Tracks       []domain.TrackRequest
	TotalTracks  int
	CurrentPage  int
	TotalPages   int
	PageStart    int // 1-indexed queue position of Tracks[0]
}

// QueueService handles read-only queue operations.
type QueueService struct {
	registry *domain.SessionRegistry
}

// NewQueueService creates a new QueueService.
func NewQueueService(registry *domain.SessionRegistry) *QueueService {
	return &QueueService{registry: registry}
}

// List returns the now-playing track and a page of the pending queue.
func (q *QueueService) List(input QueueListInput) (*QueueListOutput, error) {
	session := q.registry.Get(input.GuildID)
	if session == nil {
		return nil, ErrNotConnected
	}

	// Validate and set defaults
	pageSize := input.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	page := input.Page
	if page <= 0 {
		page = 1
	}

	var currentTrack *domain.TrackRequest
	if current, ok := session.NowPlaying(); ok {
		currentTrack = &current
	}
	queued := session.Queue()

	totalTracks := len(queued)
	totalPages := (totalTracks + pageSize - 1) / pageSize
	if totalPages == 0 {
		totalPages = 1
	}

	// Clamp page to valid range
	page = min(page, totalPages)

	start := (page - 1) * pageSize
	end := min(start+pageSize, totalTracks)

	var pageTracks []domain.TrackRequest
	if start < totalTracks {
		pageTracks = queued[start:end]
	}

	return &QueueListOutput{
		CurrentTrack: currentTrack,
		Tracks:       pageTracks,
		TotalTracks:  totalTracks,
		CurrentPage:  page,
		TotalPages:   totalPages,
		PageStart:    start + 1,
	}, nil
}
