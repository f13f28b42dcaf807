package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/matiasvera/talklens/internal/domain"
	"github.com/matiasvera/talklens/internal/port"
)

// IngestConfig tunes the per-video pipeline and batch parallelism.
type IngestConfig struct {
	Workers           int
	RetryAttempts     int
	RetryBaseDelay    time.Duration
	FreshnessWindow   time.Duration
	AcquireTimeout    time.Duration
	TranscribeTimeout time.Duration
	EmbedTimeout      time.Duration
}

// IngestResult is the terminal outcome for one video in a batch.
type IngestResult struct {
	VideoID string `json:"video_id"`
	Status  string `json:"status"` // done, skipped, failed
	Stage   string `json:"stage"`  // last stage reached
	Chunks  int    `json:"chunks"`
	Error   string `json:"error,omitempty"`
}

// IngestService drives a video through acquisition, transcription, chunking
// and indexing. Each video is independent: a failure is recorded with the
// failing stage and never aborts the rest of a batch.
type IngestService struct {
	acquirer    port.Acquirer
	transcriber port.Transcriber
	embedder    port.Embedder
	catalog     port.Catalog
	index       port.ChunkIndex
	chunker     *Chunker
	cfg         IngestConfig
}

// NewIngestService creates an ingestion pipeline over the given capabilities.
func NewIngestService(acquirer port.Acquirer, transcriber port.Transcriber, embedder port.Embedder,
	catalog port.Catalog, index port.ChunkIndex, chunker *Chunker, cfg IngestConfig) *IngestService {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	return &IngestService{
		acquirer:    acquirer,
		transcriber: transcriber,
		embedder:    embedder,
		catalog:     catalog,
		index:       index,
		chunker:     chunker,
		cfg:         cfg,
	}
}

// ResolveChannel lists the video ids of a channel so they can be ingested
// as one batch.
func (s *IngestService) ResolveChannel(ctx context.Context, channelURL string) ([]string, error) {
	ids, err := s.acquirer.ListChannelVideos(ctx, channelURL)
	if err != nil {
		return nil, fmt.Errorf("resolve channel %s: %w", channelURL, err)
	}
	return ids, nil
}

// IngestBatch runs the pipeline for each video with bounded parallelism.
// progress is invoked once per video with its terminal result.
func (s *IngestService) IngestBatch(ctx context.Context, videoIDs []string, force bool, progress func(IngestResult)) []IngestResult {
	results := make([]IngestResult, len(videoIDs))
	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup

	for i, id := range videoIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, videoID string) {
			defer wg.Done()
			defer func() { <-sem }()
			res := s.IngestVideo(ctx, videoID, force)
			results[idx] = res
			if progress != nil {
				progress(res)
			}
		}(i, id)
	}

	wg.Wait()
	return results
}

// IngestVideo runs the full pipeline for one video. Re-ingesting a video
// that completed within the freshness window is a no-op unless forced;
// otherwise its chunks and vectors are replaced as a single logical unit.
func (s *IngestService) IngestVideo(ctx context.Context, videoID string, force bool) IngestResult {
	log := slog.With("video_id", videoID)

	if !force {
		if existing, err := s.catalog.GetVideo(ctx, videoID); err == nil &&
			existing.Status == domain.StageDone &&
			time.Since(existing.ExtractedAt) < s.cfg.FreshnessWindow {
			log.Info("video already ingested, skipping")
			return IngestResult{VideoID: videoID, Status: "skipped", Stage: domain.StageDone}
		}
	}

	// Acquire
	var acquired *domain.AcquiredVideo
	err := s.withRetry(ctx, "acquire", func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.AcquireTimeout)
		defer cancel()
		var err error
		acquired, err = s.acquirer.Fetch(callCtx, videoID)
		return err
	})
	if err != nil {
		return s.fail(ctx, videoID, domain.StageAcquired, err)
	}
	defer os.Remove(acquired.AudioPath)

	// Channel row must exist before its videos.
	if err := s.catalog.UpsertChannel(ctx, &acquired.Channel); err != nil {
		return s.fail(ctx, videoID, domain.StageAcquired, err)
	}
	video := acquired.Video
	video.Status = domain.StageAcquired
	if err := s.catalog.UpsertVideo(ctx, &video); err != nil {
		return s.fail(ctx, videoID, domain.StageAcquired, err)
	}
	log.Info("video acquired", "title", video.Title, "duration", video.Duration)

	// Transcribe
	var fragments []domain.Fragment
	err = s.withRetry(ctx, "transcribe", func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.TranscribeTimeout)
		defer cancel()
		var err error
		fragments, err = s.transcriber.Transcribe(callCtx, acquired.AudioPath)
		return err
	})
	if err != nil {
		return s.fail(ctx, video.ID, domain.StageTranscribed, err)
	}
	s.mark(ctx, video.ID, domain.StageTranscribed)
	log.Info("audio transcribed", "fragments", len(fragments))

	// Chunk
	chunks := s.chunker.Chunk(video.ID, fragments)
	for i := range chunks {
		chunks[i].ChannelID = video.ChannelID
	}
	s.mark(ctx, video.ID, domain.StageChunked)
	log.Info("transcript chunked", "chunks", len(chunks))

	// Embed + dual-write. The catalog and the index each replace the
	// video's chunk set transactionally on their own side; the window
	// between the two writes is bounded by this call.
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	var vectors [][]float32
	err = s.withRetry(ctx, "embed", func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout*time.Duration(max(len(texts), 1)))
		defer cancel()
		var err error
		vectors, err = s.embedder.EmbedBatch(callCtx, texts)
		return err
	})
	if err != nil {
		return s.fail(ctx, video.ID, domain.StageIndexed, err)
	}

	if err := s.catalog.ReplaceChunks(ctx, video.ID, chunks); err != nil {
		return s.fail(ctx, video.ID, domain.StageIndexed, err)
	}
	if len(chunks) == 0 {
		if err := s.index.DeleteByVideo(ctx, video.ID); err != nil {
			return s.fail(ctx, video.ID, domain.StageIndexed, err)
		}
	} else if err := s.index.Upsert(ctx, &video, &acquired.Channel, chunks, vectors, s.embedder.ModelVersion()); err != nil {
		return s.fail(ctx, video.ID, domain.StageIndexed, err)
	}
	s.mark(ctx, video.ID, domain.StageIndexed)

	s.mark(ctx, video.ID, domain.StageDone)
	log.Info("video ingested", "chunks", len(chunks))
	return IngestResult{VideoID: video.ID, Status: "done", Stage: domain.StageDone, Chunks: len(chunks)}
}

// withRetry runs fn with bounded attempts and exponential backoff on
// transient failure. Permanent failures are not retried.
func (s *IngestService) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, port.ErrVideoNotFound) || errors.Is(err, port.ErrUnsupportedAudio) {
			return err
		}
		if attempt == s.cfg.RetryAttempts-1 {
			break
		}
		delay := s.cfg.RetryBaseDelay << attempt
		slog.Warn("stage failed, retrying", "op", op, "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%s: retries exhausted: %w", op, err)
}

func (s *IngestService) mark(ctx context.Context, videoID, stage string) {
	if err := s.catalog.SetVideoStage(ctx, videoID, stage, ""); err != nil {
		slog.Warn("failed to record stage", "video_id", videoID, "stage", stage, "error", err)
	}
}

func (s *IngestService) fail(ctx context.Context, videoID, stage string, err error) IngestResult {
	slog.Error("ingestion failed", "video_id", videoID, "stage", stage, "error", err)
	if setErr := s.catalog.SetVideoStage(ctx, videoID, domain.StageFailed, stage); setErr != nil &&
		!errors.Is(setErr, port.ErrVideoNotFound) {
		slog.Warn("failed to record failure", "video_id", videoID, "error", setErr)
	}
	return IngestResult{VideoID: videoID, Status: "failed", Stage: stage, Error: err.Error()}
}
