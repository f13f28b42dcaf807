package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrVideoNotFound   = errors.New("video not found")

	// ErrSourceUnavailable means the acquisition backend exists but cannot
	// serve the video right now (geo block, takedown, upstream throttling).
	ErrSourceUnavailable = errors.New("video source unavailable")

	// ErrUnsupportedAudio means the transcriber rejected the audio format.
	ErrUnsupportedAudio = errors.New("unsupported audio")

	// ErrRateLimited is returned when the generation provider throttles us.
	ErrRateLimited = errors.New("generation rate limited")

	// ErrEmbeddingVersionMismatch means the index holds vectors produced by a
	// different embedding model version than the one configured for queries.
	// Answering anyway would compare incompatible embedding spaces, so this
	// is fatal at query time.
	ErrEmbeddingVersionMismatch = errors.New("embedding model version mismatch between index and query")
)
