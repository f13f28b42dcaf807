package store

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/matiasvera/talklens/internal/domain"
	"github.com/matiasvera/talklens/internal/port"
)

// VectorIndex handles pgvector-backed nearest-neighbor storage for chunk
// embeddings. Rows carry denormalized video/channel metadata so filtered
// queries and citation assembly need no join against the catalog.
type VectorIndex struct {
	store     *PostgresStore
	dimension int
}

// NewVectorIndex creates a vector index backed by the given Postgres store.
func NewVectorIndex(store *PostgresStore, dimension int) *VectorIndex {
	return &VectorIndex{store: store, dimension: dimension}
}

// Upsert replaces a video's vectors with the given chunk set in one
// transaction. Delete and insert commit together, so the index never holds
// a partial chunk set for a video.
func (v *VectorIndex) Upsert(ctx context.Context, video *domain.Video, channel *domain.Channel, chunks []domain.TranscriptChunk, vectors [][]float32, modelVersion string) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("upsert vectors: %d chunks but %d vectors", len(chunks), len(vectors))
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_vectors WHERE video_id = $1`, video.ID); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunk_vectors (chunk_id, video_id, channel_id, chunk_index, start_time, end_time, text,
		                           video_title, video_url, channel_title, upload_date, embedding_model, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i, c := range chunks {
		if len(vectors[i]) != v.dimension {
			return fmt.Errorf("insert vector %s: dimension %d, want %d", c.ID, len(vectors[i]), v.dimension)
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.VideoID, c.ChannelID, c.ChunkIndex, c.Start, c.End, c.Text,
			video.Title, video.URL, channel.Title, video.UploadDate, modelVersion,
			pgvector.NewVector(vectors[i]),
		); err != nil {
			return fmt.Errorf("insert vector %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// DeleteByVideo removes every vector belonging to the video.
func (v *VectorIndex) DeleteByVideo(ctx context.Context, videoID string) error {
	if _, err := v.store.db.ExecContext(ctx, `DELETE FROM chunk_vectors WHERE video_id = $1`, videoID); err != nil {
		return fmt.Errorf("delete vectors by video: %w", err)
	}
	return nil
}

// Query performs a cosine similarity search restricted to vectors tagged
// with modelVersion. Results are ordered by descending similarity, ties
// broken by newer upload date so current guidance outranks stale advice.
func (v *VectorIndex) Query(ctx context.Context, vector []float32, k int, modelVersion string, filters port.IndexFilters) ([]domain.RetrievedChunk, error) {
	query := `SELECT chunk_id, video_id, channel_id, chunk_index, start_time, end_time, text,
	                 video_title, video_url, channel_title, upload_date,
	                 1 - (embedding <=> $1) AS similarity
	          FROM chunk_vectors
	          WHERE embedding_model = $2`
	args := []any{pgvector.NewVector(vector), modelVersion}

	if filters.ChannelID != "" {
		args = append(args, filters.ChannelID)
		query += fmt.Sprintf(" AND channel_id = $%d", len(args))
	}
	if !filters.From.IsZero() {
		args = append(args, filters.From)
		query += fmt.Sprintf(" AND upload_date >= $%d", len(args))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To)
		query += fmt.Sprintf(" AND upload_date <= $%d", len(args))
	}

	args = append(args, k)
	query += fmt.Sprintf(" ORDER BY embedding <=> $1, upload_date DESC LIMIT $%d", len(args))

	rows, err := v.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	defer rows.Close()

	var results []domain.RetrievedChunk
	for rows.Next() {
		var rc domain.RetrievedChunk
		if err := rows.Scan(
			&rc.ID, &rc.VideoID, &rc.ChannelID, &rc.ChunkIndex, &rc.Start, &rc.End, &rc.Text,
			&rc.VideoTitle, &rc.VideoURL, &rc.ChannelTitle, &rc.UploadDate, &rc.Similarity,
		); err != nil {
			return nil, fmt.Errorf("scan vector row: %w", err)
		}
		results = append(results, rc)
	}
	return results, rows.Err()
}

// CountByVersion reports how many vectors carry the given embedding model
// version versus the index total.
func (v *VectorIndex) CountByVersion(ctx context.Context, modelVersion string) (matching, total int, err error) {
	query := `SELECT COUNT(*) FILTER (WHERE embedding_model = $1), COUNT(*) FROM chunk_vectors`
	if err := v.store.db.QueryRowContext(ctx, query, modelVersion).Scan(&matching, &total); err != nil {
		return 0, 0, fmt.Errorf("count vectors by version: %w", err)
	}
	return matching, total, nil
}
