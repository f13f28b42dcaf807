package port

import (
	"context"

	"github.com/matiasvera/talklens/internal/domain"
)

// Acquirer fetches a video by its platform identifier and returns the
// extracted audio track plus the video and channel metadata.
type Acquirer interface {
	Fetch(ctx context.Context, videoID string) (*domain.AcquiredVideo, error)

	// ListChannelVideos resolves a channel URL to the ids of its videos.
	ListChannelVideos(ctx context.Context, channelURL string) ([]string, error)
}

// Transcriber converts an audio file into an ordered sequence of timed
// text fragments.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]domain.Fragment, error)
}

// Embedder maps text into a fixed-dimension vector space. The same model
// version must be used at ingestion and query time; ModelVersion tags
// stored vectors so the retriever can guard against a mismatch.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelVersion() string
	Dimension() int
}

// Generator produces free text from a prompt.
type Generator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
