package domain

import "time"

// Video represents a single long-form video belonging to a Channel.
type Video struct {
	ID          string    `json:"id"           db:"id"`
	ChannelID   string    `json:"channel_id"   db:"channel_id"`
	Title       string    `json:"title"        db:"title"`
	Description string    `json:"description"  db:"description"`
	UploadDate  time.Time `json:"upload_date"  db:"upload_date"`
	Duration    float64   `json:"duration"     db:"duration"` // seconds
	ViewCount   int64     `json:"view_count"   db:"view_count"`
	LikeCount   int64     `json:"like_count"   db:"like_count"`
	Categories  []string  `json:"categories"   db:"categories"`
	Language    string    `json:"language"     db:"language"`
	URL         string    `json:"url"          db:"url"`
	ExtractedAt time.Time `json:"extracted_at" db:"extracted_at"`
	Status      string    `json:"status"       db:"status"`
	FailedStage string    `json:"failed_stage,omitempty" db:"failed_stage"`
}

// Ingestion stages a video moves through. Failed is absorbing; the stage
// that failed is kept on the video row so a targeted retry can resume.
const (
	StageDiscovered  = "discovered"
	StageAcquired    = "acquired"
	StageTranscribed = "transcribed"
	StageChunked     = "chunked"
	StageIndexed     = "indexed"
	StageDone        = "done"
	StageFailed      = "failed"
)

// AcquiredVideo is what the Acquirer hands back: extracted audio on local
// disk plus the video and channel metadata scraped alongside it.
type AcquiredVideo struct {
	AudioPath string
	Video     Video
	Channel   Channel
}
