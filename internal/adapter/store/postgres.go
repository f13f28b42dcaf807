package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/matiasvera/talklens/internal/domain"
	"github.com/matiasvera/talklens/internal/port"
)

// PostgresStore handles all relational database operations.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// --- Channels ---

// UpsertChannel inserts a channel or refreshes its title/description/url.
func (s *PostgresStore) UpsertChannel(ctx context.Context, ch *domain.Channel) error {
	query := `
		INSERT INTO channels (id, title, description, url, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			url = EXCLUDED.url`

	if _, err := s.db.ExecContext(ctx, query, ch.ID, ch.Title, ch.Description, ch.URL); err != nil {
		return fmt.Errorf("upsert channel: %w", err)
	}
	return nil
}

// GetChannel retrieves a channel by id.
func (s *PostgresStore) GetChannel(ctx context.Context, id string) (*domain.Channel, error) {
	query := `SELECT id, title, description, url, created_at FROM channels WHERE id = $1`

	var ch domain.Channel
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&ch.ID, &ch.Title, &ch.Description, &ch.URL, &ch.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrChannelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get channel: %w", err)
	}
	return &ch, nil
}

// ListChannels returns all channels ordered by creation time.
func (s *PostgresStore) ListChannels(ctx context.Context) ([]domain.Channel, error) {
	query := `SELECT id, title, description, url, created_at FROM channels ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	defer rows.Close()

	var channels []domain.Channel
	for rows.Next() {
		var ch domain.Channel
		if err := rows.Scan(&ch.ID, &ch.Title, &ch.Description, &ch.URL, &ch.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// --- Videos ---

// upsertVideoQuery refreshes every metadata column on conflict so a forced
// re-acquisition never leaves stale values behind.
const upsertVideoQuery = `
		INSERT INTO videos (id, channel_id, title, description, upload_date, duration,
		                    view_count, like_count, categories, language, url, extracted_at, status, failed_stage)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			channel_id = EXCLUDED.channel_id,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			upload_date = EXCLUDED.upload_date,
			duration = EXCLUDED.duration,
			view_count = EXCLUDED.view_count,
			like_count = EXCLUDED.like_count,
			categories = EXCLUDED.categories,
			language = EXCLUDED.language,
			url = EXCLUDED.url,
			extracted_at = EXCLUDED.extracted_at,
			status = EXCLUDED.status,
			failed_stage = EXCLUDED.failed_stage`

// UpsertVideo inserts a video or refreshes its metadata. The owning channel
// row must exist first.
func (s *PostgresStore) UpsertVideo(ctx context.Context, v *domain.Video) error {
	_, err := s.db.ExecContext(ctx, upsertVideoQuery,
		v.ID, v.ChannelID, v.Title, v.Description, v.UploadDate, v.Duration,
		v.ViewCount, v.LikeCount, pq.Array(v.Categories), v.Language, v.URL,
		v.ExtractedAt, v.Status, v.FailedStage,
	)
	if err != nil {
		return fmt.Errorf("upsert video: %w", err)
	}
	return nil
}

// GetVideo retrieves a video by id.
func (s *PostgresStore) GetVideo(ctx context.Context, id string) (*domain.Video, error) {
	query := `SELECT id, channel_id, title, description, upload_date, duration,
	                 view_count, like_count, categories, language, url, extracted_at, status, COALESCE(failed_stage, '')
	          FROM videos WHERE id = $1`

	var v domain.Video
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&v.ID, &v.ChannelID, &v.Title, &v.Description, &v.UploadDate, &v.Duration,
		&v.ViewCount, &v.LikeCount, pq.Array(&v.Categories), &v.Language, &v.URL,
		&v.ExtractedAt, &v.Status, &v.FailedStage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrVideoNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get video: %w", err)
	}
	return &v, nil
}

// ListVideosByChannel returns all videos for a channel, newest first.
func (s *PostgresStore) ListVideosByChannel(ctx context.Context, channelID string) ([]domain.Video, error) {
	query := `SELECT id, channel_id, title, description, upload_date, duration,
	                 view_count, like_count, categories, language, url, extracted_at, status, COALESCE(failed_stage, '')
	          FROM videos WHERE channel_id = $1 ORDER BY upload_date DESC`

	rows, err := s.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer rows.Close()

	var videos []domain.Video
	for rows.Next() {
		var v domain.Video
		if err := rows.Scan(
			&v.ID, &v.ChannelID, &v.Title, &v.Description, &v.UploadDate, &v.Duration,
			&v.ViewCount, &v.LikeCount, pq.Array(&v.Categories), &v.Language, &v.URL,
			&v.ExtractedAt, &v.Status, &v.FailedStage,
		); err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// SetVideoStage records the ingestion stage a video has reached. failedStage
// is empty unless stage is "failed".
func (s *PostgresStore) SetVideoStage(ctx context.Context, videoID, stage, failedStage string) error {
	query := `UPDATE videos SET status = $1, failed_stage = NULLIF($2, '') WHERE id = $3`
	if _, err := s.db.ExecContext(ctx, query, stage, failedStage, videoID); err != nil {
		return fmt.Errorf("set video stage: %w", err)
	}
	return nil
}

// --- Transcript chunks ---

// ReplaceChunks swaps a video's full chunk set in one transaction: existing
// rows are deleted and the new set inserted, so the catalog is never left
// half-updated.
func (s *PostgresStore) ReplaceChunks(ctx context.Context, videoID string, chunks []domain.TranscriptChunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transcript_chunks WHERE video_id = $1`, videoID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transcript_chunks (id, video_id, channel_id, chunk_index, start_time, end_time, text)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.VideoID, c.ChannelID, c.ChunkIndex, c.Start, c.End, c.Text,
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// CountChunks returns the number of stored chunks for a video.
func (s *PostgresStore) CountChunks(ctx context.Context, videoID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transcript_chunks WHERE video_id = $1`, videoID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// --- Query log ---

// WriteQueryAudit implements middleware.AuditWriter.
func (s *PostgresStore) WriteQueryAudit(question, filters string, retrieved int, latencyMS int64, ip string) error {
	query := `INSERT INTO query_log (question, filters, retrieved, latency_ms, ip)
	          VALUES ($1, $2, $3, $4, $5)`
	_, err := s.db.Exec(query, question, filters, retrieved, latencyMS, ip)
	return err
}
