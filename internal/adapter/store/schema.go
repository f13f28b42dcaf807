package store

import (
	"context"
	"fmt"
)

// EnsureSchema creates the tables and the pgvector extension if missing.
// The embedding column dimension must match the configured embedder.
func (s *PostgresStore) EnsureSchema(ctx context.Context, dimension int) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS channels (
			id          TEXT PRIMARY KEY,
			title       TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			url         TEXT NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS videos (
			id           TEXT PRIMARY KEY,
			channel_id   TEXT NOT NULL REFERENCES channels(id),
			title        TEXT NOT NULL DEFAULT '',
			description  TEXT NOT NULL DEFAULT '',
			upload_date  TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
			duration     DOUBLE PRECISION NOT NULL DEFAULT 0,
			view_count   BIGINT NOT NULL DEFAULT 0,
			like_count   BIGINT NOT NULL DEFAULT 0,
			categories   TEXT[] NOT NULL DEFAULT '{}',
			language     TEXT NOT NULL DEFAULT 'en',
			url          TEXT NOT NULL DEFAULT '',
			extracted_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			status       TEXT NOT NULL DEFAULT 'discovered',
			failed_stage TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS transcript_chunks (
			id          TEXT PRIMARY KEY,
			video_id    TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
			channel_id  TEXT NOT NULL REFERENCES channels(id),
			chunk_index INT NOT NULL,
			start_time  DOUBLE PRECISION NOT NULL,
			end_time    DOUBLE PRECISION NOT NULL,
			text        TEXT NOT NULL,
			CHECK (end_time > start_time)
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunk_vectors (
			chunk_id        TEXT PRIMARY KEY,
			video_id        TEXT NOT NULL,
			channel_id      TEXT NOT NULL,
			chunk_index     INT NOT NULL,
			start_time      DOUBLE PRECISION NOT NULL,
			end_time        DOUBLE PRECISION NOT NULL,
			text            TEXT NOT NULL,
			video_title     TEXT NOT NULL DEFAULT '',
			video_url       TEXT NOT NULL DEFAULT '',
			channel_title   TEXT NOT NULL DEFAULT '',
			upload_date     TIMESTAMPTZ NOT NULL DEFAULT 'epoch',
			embedding_model TEXT NOT NULL,
			embedding       VECTOR(%d) NOT NULL
		)`, dimension),

		`CREATE INDEX IF NOT EXISTS idx_chunk_vectors_video ON chunk_vectors (video_id)`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_vectors_channel ON chunk_vectors (channel_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_chunks_video ON transcript_chunks (video_id)`,

		`CREATE TABLE IF NOT EXISTS query_log (
			id         BIGSERIAL PRIMARY KEY,
			question   TEXT NOT NULL,
			filters    TEXT NOT NULL DEFAULT '',
			retrieved  INT NOT NULL DEFAULT 0,
			latency_ms BIGINT NOT NULL DEFAULT 0,
			ip         TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
