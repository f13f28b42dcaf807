package domain

import "time"

// Citation points a claim in an answer back to a span of a source video.
type Citation struct {
	VideoID      string    `json:"video_id"`
	VideoTitle   string    `json:"video_title"`
	VideoURL     string    `json:"video_url"`
	ChannelTitle string    `json:"channel_title"`
	UploadDate   time.Time `json:"upload_date"`
	Start        float64   `json:"start_time"`
	End          float64   `json:"end_time"`
}

// Answer is the composed response to a question: generated text plus the
// citations of every chunk that was supplied to the generator, in order.
type Answer struct {
	Text      string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Grounded  bool       `json:"grounded"`
}
