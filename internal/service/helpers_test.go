package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/matiasvera/talklens/internal/domain"
	"github.com/matiasvera/talklens/internal/port"
)

// --- Embedder fake ---

type fakeEmbedder struct {
	version string
	calls   int
	fail    error
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{version: "test-embed-v1"}
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.fail != nil {
		return nil, e.fail
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

func (e *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (e *fakeEmbedder) ModelVersion() string { return e.version }
func (e *fakeEmbedder) Dimension() int       { return 3 }

// --- ChunkIndex fake ---

type indexedVideo struct {
	chunks  []domain.TranscriptChunk
	version string
}

type fakeIndex struct {
	mu         sync.Mutex
	videos     map[string]indexedVideo
	candidates []domain.RetrievedChunk // returned by Query as-is
	queryErr   error
	queries    int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{videos: make(map[string]indexedVideo)}
}

func (f *fakeIndex) Upsert(_ context.Context, video *domain.Video, _ *domain.Channel, chunks []domain.TranscriptChunk, vectors [][]float32, modelVersion string) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.videos[video.ID] = indexedVideo{chunks: append([]domain.TranscriptChunk(nil), chunks...), version: modelVersion}
	return nil
}

func (f *fakeIndex) DeleteByVideo(_ context.Context, videoID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.videos, videoID)
	return nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, k int, _ string, _ port.IndexFilters) ([]domain.RetrievedChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if k > len(f.candidates) {
		k = len(f.candidates)
	}
	return append([]domain.RetrievedChunk(nil), f.candidates[:k]...), nil
}

func (f *fakeIndex) CountByVersion(_ context.Context, modelVersion string) (int, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	matching, total := 0, 0
	for _, v := range f.videos {
		total += len(v.chunks)
		if v.version == modelVersion {
			matching += len(v.chunks)
		}
	}
	for range f.candidates {
		total++
		matching++
	}
	return matching, total, nil
}

// --- Catalog fake ---

type fakeCatalog struct {
	mu       sync.Mutex
	channels map[string]domain.Channel
	videos   map[string]domain.Video
	chunks   map[string][]domain.TranscriptChunk
	stages   map[string][]string // history of recorded stages
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		channels: make(map[string]domain.Channel),
		videos:   make(map[string]domain.Video),
		chunks:   make(map[string][]domain.TranscriptChunk),
		stages:   make(map[string][]string),
	}
}

func (c *fakeCatalog) UpsertChannel(_ context.Context, ch *domain.Channel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[ch.ID] = *ch
	return nil
}

func (c *fakeCatalog) GetChannel(_ context.Context, id string) (*domain.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch, ok := c.channels[id]
	if !ok {
		return nil, port.ErrChannelNotFound
	}
	return &ch, nil
}

func (c *fakeCatalog) ListChannels(_ context.Context) ([]domain.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Channel, 0, len(c.channels))
	for _, ch := range c.channels {
		out = append(out, ch)
	}
	return out, nil
}

func (c *fakeCatalog) UpsertVideo(_ context.Context, v *domain.Video) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videos[v.ID] = *v
	return nil
}

func (c *fakeCatalog) GetVideo(_ context.Context, id string) (*domain.Video, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.videos[id]
	if !ok {
		return nil, port.ErrVideoNotFound
	}
	return &v, nil
}

func (c *fakeCatalog) ListVideosByChannel(_ context.Context, channelID string) ([]domain.Video, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Video
	for _, v := range c.videos {
		if v.ChannelID == channelID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (c *fakeCatalog) SetVideoStage(_ context.Context, videoID, stage, failedStage string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stages[videoID] = append(c.stages[videoID], stage)
	if v, ok := c.videos[videoID]; ok {
		v.Status = stage
		v.FailedStage = failedStage
		c.videos[videoID] = v
	}
	return nil
}

func (c *fakeCatalog) ReplaceChunks(_ context.Context, videoID string, chunks []domain.TranscriptChunk) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks[videoID] = append([]domain.TranscriptChunk(nil), chunks...)
	return nil
}

func (c *fakeCatalog) CountChunks(_ context.Context, videoID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chunks[videoID]), nil
}

// --- Acquirer / Transcriber / Generator fakes ---

type fakeAcquirer struct {
	mu      sync.Mutex
	fetches int
	failFor map[string]error
}

func newFakeAcquirer() *fakeAcquirer {
	return &fakeAcquirer{failFor: make(map[string]error)}
}

func (a *fakeAcquirer) Fetch(_ context.Context, videoID string) (*domain.AcquiredVideo, error) {
	a.mu.Lock()
	a.fetches++
	err := a.failFor[videoID]
	a.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &domain.AcquiredVideo{
		AudioPath: "/nonexistent/" + videoID + ".mp3",
		Video: domain.Video{
			ID:        videoID,
			ChannelID: "chan1",
			Title:     "Video " + videoID,
			URL:       "https://example.com/watch?v=" + videoID,
		},
		Channel: domain.Channel{ID: "chan1", Title: "Test Channel"},
	}, nil
}

func (a *fakeAcquirer) ListChannelVideos(_ context.Context, _ string) ([]string, error) {
	return []string{"vid1", "vid2"}, nil
}

type fakeTranscriber struct {
	fragments []domain.Fragment
	fail      error
}

func (t *fakeTranscriber) Transcribe(_ context.Context, _ string) ([]domain.Fragment, error) {
	if t.fail != nil {
		return nil, t.fail
	}
	return t.fragments, nil
}

type fakeGenerator struct {
	calls    int
	response string
	fail     error
	lastUser string
}

func (g *fakeGenerator) Generate(_ context.Context, _, userPrompt string) (string, error) {
	g.calls++
	g.lastUser = userPrompt
	if g.fail != nil {
		return "", g.fail
	}
	return g.response, nil
}
