package port

import (
	"context"
	"time"

	"github.com/matiasvera/talklens/internal/domain"
)

// Catalog is the authoritative relational record of channels, videos and
// chunk-to-video linkage.
type Catalog interface {
	UpsertChannel(ctx context.Context, ch *domain.Channel) error
	GetChannel(ctx context.Context, id string) (*domain.Channel, error)
	ListChannels(ctx context.Context) ([]domain.Channel, error)

	UpsertVideo(ctx context.Context, v *domain.Video) error
	GetVideo(ctx context.Context, id string) (*domain.Video, error)
	ListVideosByChannel(ctx context.Context, channelID string) ([]domain.Video, error)
	SetVideoStage(ctx context.Context, videoID, stage, failedStage string) error

	// ReplaceChunks atomically swaps a video's chunk set: existing rows for
	// the video are deleted and the new set inserted in one transaction.
	ReplaceChunks(ctx context.Context, videoID string, chunks []domain.TranscriptChunk) error
	CountChunks(ctx context.Context, videoID string) (int, error)
}

// IndexFilters narrow a nearest-neighbor query without a join at query time.
type IndexFilters struct {
	ChannelID string
	From      time.Time // inclusive lower bound on upload date
	To        time.Time // inclusive upper bound on upload date
}

// ChunkIndex is the nearest-neighbor vector store keyed by chunk identity.
type ChunkIndex interface {
	// Upsert writes one vector per chunk, tagged with the embedding model
	// version and enough metadata to answer filtered queries and assemble
	// citations without touching the catalog.
	Upsert(ctx context.Context, video *domain.Video, channel *domain.Channel, chunks []domain.TranscriptChunk, vectors [][]float32, modelVersion string) error

	// DeleteByVideo removes every vector belonging to the video.
	DeleteByVideo(ctx context.Context, videoID string) error

	// Query returns the k nearest chunks for the vector, ordered by
	// descending similarity with ties broken by newer upload date. Only
	// vectors tagged with modelVersion are considered.
	Query(ctx context.Context, vector []float32, k int, modelVersion string, filters IndexFilters) ([]domain.RetrievedChunk, error)

	// CountByVersion reports how many vectors carry the given model version
	// and how many exist in total, so callers can detect a version drift.
	CountByVersion(ctx context.Context, modelVersion string) (matching, total int, err error)
}
