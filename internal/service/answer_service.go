package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/matiasvera/talklens/internal/domain"
	"github.com/matiasvera/talklens/internal/port"
)

// InsufficientGroundingAnswer is returned verbatim when retrieval produced
// no usable evidence. The generator is never invoked in that case.
const InsufficientGroundingAnswer = "I don't have enough material from the indexed videos to answer that. " +
	"Try rephrasing the question, or ingest more videos covering this topic."

const groundingSystemPrompt = `You are an assistant that has watched the long-form spoken-word videos indexed in this system.
Answer the question using only the transcript excerpts provided below. Quote or paraphrase what the speakers actually said.
If the excerpts do not cover the question, say so plainly instead of guessing. Never invent claims that are not in the excerpts.
Mention the video a statement comes from when it helps the reader find the source.`

// AnswerService assembles a grounded prompt from retrieved chunks, invokes
// the generation capability, and annotates the answer with citations.
type AnswerService struct {
	generator port.Generator
	retrieval *RetrievalService
	timeout   time.Duration
}

// NewAnswerService creates an answer composer over the given generator and
// retriever.
func NewAnswerService(generator port.Generator, retrieval *RetrievalService, generateTimeout time.Duration) *AnswerService {
	if generateTimeout <= 0 {
		generateTimeout = time.Minute
	}
	return &AnswerService{generator: generator, retrieval: retrieval, timeout: generateTimeout}
}

// Ask retrieves grounding for the question and composes an answer.
func (s *AnswerService) Ask(ctx context.Context, question string, filters port.IndexFilters, k int) (*domain.Answer, error) {
	chunks, err := s.retrieval.Retrieve(ctx, question, filters, k)
	if err != nil {
		return nil, err
	}
	return s.Compose(ctx, question, chunks)
}

// Compose builds the grounded prompt and returns the generated answer with
// one citation per supplied chunk, in the order used. Zero chunks
// short-circuits to the fixed insufficient-grounding response.
func (s *AnswerService) Compose(ctx context.Context, question string, chunks []domain.RetrievedChunk) (*domain.Answer, error) {
	if len(chunks) == 0 {
		slog.Info("no grounding retrieved, skipping generation", "question", question)
		return &domain.Answer{
			Text:      InsufficientGroundingAnswer,
			Citations: []domain.Citation{},
			Grounded:  false,
		}, nil
	}

	userPrompt := buildPrompt(question, chunks)

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	text, err := s.generator.Generate(genCtx, groundingSystemPrompt, userPrompt)
	if err != nil {
		if errors.Is(genCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("generation timed out after %s: %w", s.timeout, err)
		}
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	// The model's output is untrusted text; the only structural check we
	// can make is that it said something at all.
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("generate answer: empty response")
	}

	return &domain.Answer{
		Text:      strings.TrimSpace(text),
		Citations: citations(chunks),
		Grounded:  true,
	}, nil
}

// buildPrompt formats each chunk with its provenance ahead of the question.
func buildPrompt(question string, chunks []domain.RetrievedChunk) string {
	var b strings.Builder
	b.WriteString("### TRANSCRIPT EXCERPTS:\n")
	for _, c := range chunks {
		date := "unknown date"
		if !c.UploadDate.IsZero() {
			date = c.UploadDate.Format("2006-01-02")
		}
		fmt.Fprintf(&b, "From %s - %s (uploaded %s) [%.0fs-%.0fs]:\n%s\n\n",
			c.ChannelTitle, c.VideoTitle, date, c.Start, c.End, c.Text)
	}
	b.WriteString("### QUESTION:\n")
	b.WriteString(question)
	b.WriteString("\n\n### ANSWER:")
	return b.String()
}

// citations maps the supplied chunks to distinct (video, time range) pairs
// in the order they were fed to the generator.
func citations(chunks []domain.RetrievedChunk) []domain.Citation {
	seen := make(map[string]bool)
	out := make([]domain.Citation, 0, len(chunks))
	for _, c := range chunks {
		key := fmt.Sprintf("%s:%.1f:%.1f", c.VideoID, c.Start, c.End)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, domain.Citation{
			VideoID:      c.VideoID,
			VideoTitle:   c.VideoTitle,
			VideoURL:     c.VideoURL,
			ChannelTitle: c.ChannelTitle,
			UploadDate:   c.UploadDate,
			Start:        c.Start,
			End:          c.End,
		})
	}
	return out
}
