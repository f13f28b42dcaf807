package domain

import "time"

// Channel represents a content creator's channel on the source platform.
// Identity is the platform's stable external id.
type Channel struct {
	ID          string    `json:"id"          db:"id"`
	Title       string    `json:"title"       db:"title"`
	Description string    `json:"description" db:"description"`
	URL         string    `json:"url"         db:"url"`
	CreatedAt   time.Time `json:"created_at"  db:"created_at"`
}
