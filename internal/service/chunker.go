package service

import (
	"log/slog"
	"math"
	"strings"

	"github.com/matiasvera/talklens/internal/domain"
)

// ChunkConfig bounds how timed transcript fragments are merged into chunks.
type ChunkConfig struct {
	TargetSeconds float64 // close a chunk once its span reaches this
	MaxSeconds    float64 // never exceed this span
	MinSeconds    float64 // a trailing chunk shorter than this merges backwards
}

// Chunker merges consecutive transcriber fragments into retrieval chunks
// bounded by duration rather than token count, so every chunk stays
// addressable by a time range in the source video.
type Chunker struct {
	cfg ChunkConfig
}

// NewChunker creates a chunker with the given duration bounds.
func NewChunker(cfg ChunkConfig) *Chunker {
	if cfg.TargetSeconds <= 0 {
		cfg.TargetSeconds = 60
	}
	if cfg.MaxSeconds < cfg.TargetSeconds {
		cfg.MaxSeconds = 2 * cfg.TargetSeconds
	}
	return &Chunker{cfg: cfg}
}

// Chunk turns an ordered sequence of timed fragments into chunks.
//
// A chunk is closed when its accumulated span reaches the target duration,
// or when appending the next fragment would push it past the max duration.
// The max is enforced at fragment boundaries, except that a fragment whose
// own span exceeds the max is divided into equal sub-spans with its words
// spread across them, so no chunk ever exceeds the max duration.
// Chunk start/end come from the first/last constituent fragment, and indices
// run 0..n-1 with no gaps. An empty input yields an empty output; a fragment
// whose end does not come after its start is dropped with a warning.
func (c *Chunker) Chunk(videoID string, fragments []domain.Fragment) []domain.TranscriptChunk {
	var chunks []domain.TranscriptChunk

	var texts []string
	var start, end float64
	open := false

	flush := func() {
		if !open {
			return
		}
		chunks = append(chunks, domain.TranscriptChunk{
			VideoID:    videoID,
			ChunkIndex: len(chunks),
			Start:      start,
			End:        end,
			Text:       strings.Join(texts, " "),
		})
		texts = nil
		open = false
	}

	for _, f := range fragments {
		if f.End <= f.Start {
			slog.Warn("dropping fragment with non-positive span",
				"video_id", videoID, "start", f.Start, "end", f.End)
			continue
		}

		// A fragment wider than the max can never fit in one chunk, so it
		// is split mid-utterance; each piece stands as its own chunk.
		if f.End-f.Start > c.cfg.MaxSeconds {
			slog.Warn("splitting over-long fragment",
				"video_id", videoID, "start", f.Start, "end", f.End)
			flush()
			for _, piece := range splitFragment(f, c.cfg.MaxSeconds) {
				chunks = append(chunks, domain.TranscriptChunk{
					VideoID:    videoID,
					ChunkIndex: len(chunks),
					Start:      piece.Start,
					End:        piece.End,
					Text:       piece.Text,
				})
			}
			continue
		}

		// Close the current chunk if stretching it to cover this fragment
		// would exceed the max span.
		if open && f.End-start > c.cfg.MaxSeconds {
			flush()
		}

		if !open {
			start = f.Start
			open = true
		}
		texts = append(texts, strings.TrimSpace(f.Text))
		end = f.End

		if end-start >= c.cfg.TargetSeconds {
			flush()
		}
	}
	flush()

	// A tiny trailing chunk carries little signal on its own; fold it into
	// its predecessor as long as the merge respects the max span.
	if n := len(chunks); n >= 2 {
		last, prev := chunks[n-1], chunks[n-2]
		if last.End-last.Start < c.cfg.MinSeconds && last.End-prev.Start <= c.cfg.MaxSeconds {
			prev.End = last.End
			prev.Text = prev.Text + " " + last.Text
			chunks = append(chunks[:n-2], prev)
		}
	}

	for i := range chunks {
		chunks[i].ChunkIndex = i
		chunks[i].ID = domain.ChunkID(videoID, i)
	}
	return chunks
}

// splitFragment divides a fragment into the fewest equal sub-spans that each
// fit within maxSeconds, distributing its words across them in order. Equal
// division keeps every piece wider than half the max, so no undersized
// remainder is produced.
func splitFragment(f domain.Fragment, maxSeconds float64) []domain.Fragment {
	span := f.End - f.Start
	n := int(math.Ceil(span / maxSeconds))
	words := strings.Fields(f.Text)

	pieces := make([]domain.Fragment, 0, n)
	for i := 0; i < n; i++ {
		pieces = append(pieces, domain.Fragment{
			Start: f.Start + span*float64(i)/float64(n),
			End:   f.Start + span*float64(i+1)/float64(n),
			Text:  strings.Join(words[i*len(words)/n:(i+1)*len(words)/n], " "),
		})
	}
	pieces[n-1].End = f.End
	return pieces
}
