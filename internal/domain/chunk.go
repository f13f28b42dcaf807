package domain

import (
	"fmt"
	"time"
)

// Fragment is a single timed text unit produced by the transcriber.
type Fragment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// TranscriptChunk is the unit of retrieval: a contiguous, time-bounded span
// of transcript text. Identity is derived from the video id and the chunk's
// position, so re-ingesting the same video yields the same ids.
type TranscriptChunk struct {
	ID         string  `json:"id"          db:"id"`
	VideoID    string  `json:"video_id"    db:"video_id"`
	ChannelID  string  `json:"channel_id"  db:"channel_id"`
	ChunkIndex int     `json:"chunk_index" db:"chunk_index"`
	Start      float64 `json:"start_time"  db:"start_time"`
	End        float64 `json:"end_time"    db:"end_time"`
	Text       string  `json:"text"        db:"text"`
}

// ChunkID derives the stable chunk identity for a position within a video.
func ChunkID(videoID string, index int) string {
	return fmt.Sprintf("%s_%04d", videoID, index)
}

// RetrievedChunk is a chunk returned by the vector index together with its
// similarity score and the denormalized provenance needed for citations.
type RetrievedChunk struct {
	TranscriptChunk
	Similarity   float64   `json:"similarity"`
	VideoTitle   string    `json:"video_title"`
	VideoURL     string    `json:"video_url"`
	ChannelTitle string    `json:"channel_title"`
	UploadDate   time.Time `json:"upload_date"`
}
