package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/matiasvera/talklens/internal/domain"
	"github.com/matiasvera/talklens/internal/port"
)

// RetrievalConfig tunes candidate selection at query time.
type RetrievalConfig struct {
	TopK            int
	CandidateFactor int
	MinSimilarity   float64
	MaxPerVideo     int
	EmbedTimeout    time.Duration
	QueryTimeout    time.Duration
}

// RetrievalService turns a free-text question into a ranked, deduplicated,
// budget-constrained set of transcript chunks.
type RetrievalService struct {
	embedder port.Embedder
	index    port.ChunkIndex
	cfg      RetrievalConfig
}

// NewRetrievalService creates a retriever over the given embedder and index.
func NewRetrievalService(embedder port.Embedder, index port.ChunkIndex, cfg RetrievalConfig) *RetrievalService {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.CandidateFactor <= 1 {
		cfg.CandidateFactor = 2
	}
	if cfg.MaxPerVideo <= 0 {
		cfg.MaxPerVideo = 2
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = 30 * time.Second
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 10 * time.Second
	}
	return &RetrievalService{embedder: embedder, index: index, cfg: cfg}
}

// Retrieve embeds the question, queries the index for a candidate pool, and
// reduces it: adjacent chunks from the same video merge into one context
// unit, no video may contribute more than the diversity cap, and anything
// below the similarity floor is dropped. An empty result is a valid
// no-grounding outcome, not an error.
func (s *RetrievalService) Retrieve(ctx context.Context, question string, filters port.IndexFilters, k int) ([]domain.RetrievedChunk, error) {
	if k <= 0 {
		k = s.cfg.TopK
	}

	// The query must be embedded in the same space as the indexed vectors.
	version := s.embedder.ModelVersion()
	matching, total, err := s.index.CountByVersion(ctx, version)
	if err != nil {
		return nil, fmt.Errorf("check index version: %w", err)
	}
	if total > 0 && matching == 0 {
		return nil, fmt.Errorf("index has %d vectors, none from model %q: %w",
			total, version, port.ErrEmbeddingVersionMismatch)
	}

	embedCtx, cancelEmbed := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancelEmbed()
	vector, err := s.embedder.Embed(embedCtx, question)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	queryCtx, cancelQuery := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancelQuery()
	candidates, err := s.index.Query(queryCtx, vector, s.cfg.CandidateFactor*k, version, filters)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	results := s.reduce(candidates)
	if len(results) > k {
		results = results[:k]
	}
	slog.Info("retrieval complete", "candidates", len(candidates), "selected", len(results))
	return results, nil
}

// contextUnit is a result under construction: one chunk, or several
// adjacent chunks from the same video merged together.
type contextUnit struct {
	chunk   domain.RetrievedChunk
	indices map[int]bool
}

// reduce walks candidates in rank order applying the similarity floor, the
// adjacency merge and the per-video diversity cap. Merging into an existing
// unit does not consume budget; the merged unit keeps its original rank.
func (s *RetrievalService) reduce(candidates []domain.RetrievedChunk) []domain.RetrievedChunk {
	var units []*contextUnit
	perVideo := make(map[string]int)

	for _, c := range candidates {
		if c.Similarity < s.cfg.MinSimilarity {
			continue
		}

		if u := adjacentUnit(units, c); u != nil {
			mergeInto(u, c)
			continue
		}

		if perVideo[c.VideoID] >= s.cfg.MaxPerVideo {
			continue
		}
		perVideo[c.VideoID]++
		units = append(units, &contextUnit{
			chunk:   c,
			indices: map[int]bool{c.ChunkIndex: true},
		})
	}

	results := make([]domain.RetrievedChunk, len(units))
	for i, u := range units {
		results[i] = u.chunk
	}
	return results
}

// adjacentUnit finds a unit from the same video whose span borders the
// candidate's chunk index.
func adjacentUnit(units []*contextUnit, c domain.RetrievedChunk) *contextUnit {
	for _, u := range units {
		if u.chunk.VideoID != c.VideoID {
			continue
		}
		if u.indices[c.ChunkIndex-1] || u.indices[c.ChunkIndex+1] {
			return u
		}
	}
	return nil
}

// mergeInto widens the unit to cover the candidate. Text is stitched in
// transcript order so the merged unit reads as one continuous passage.
func mergeInto(u *contextUnit, c domain.RetrievedChunk) {
	if c.Start < u.chunk.Start {
		u.chunk.Start = c.Start
		u.chunk.Text = c.Text + " " + u.chunk.Text
	} else {
		u.chunk.End = c.End
		u.chunk.Text = u.chunk.Text + " " + c.Text
	}
	if c.Similarity > u.chunk.Similarity {
		u.chunk.Similarity = c.Similarity
	}
	u.indices[c.ChunkIndex] = true
}
