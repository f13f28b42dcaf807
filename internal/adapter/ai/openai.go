package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/matiasvera/talklens/internal/domain"
	"github.com/matiasvera/talklens/internal/port"
)

// OpenAIConfig holds the configuration for an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string // empty = api.openai.com; any compatible endpoint works
	EmbeddingModel string
	Dimension      int
	ChatModel      string
	WhisperModel   string
}

// OpenAIProvider implements port.Embedder, port.Generator and
// port.Transcriber against an OpenAI-compatible API.
type OpenAIProvider struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAIProvider creates a provider for embeddings, chat and transcription.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(clientCfg), cfg: cfg}
}

// ModelVersion identifies the embedding space vectors are produced in.
func (p *OpenAIProvider) ModelVersion() string {
	return p.cfg.EmbeddingModel
}

// Dimension returns the embedding vector length.
func (p *OpenAIProvider) Dimension() int {
	return p.cfg.Dimension
}

// Embed generates an L2-normalized vector embedding for the given text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("embed: empty text")
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(p.cfg.EmbeddingModel),
		Input: []string{text},
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("create embedding: empty response")
	}

	v := make([]float32, len(resp.Data[0].Embedding))
	for i, x := range resp.Data[0].Embedding {
		v[i] = float32(x)
	}
	l2normalize(v)
	return v, nil
}

// EmbedBatch generates embeddings for multiple texts, issuing requests with
// bounded concurrency. Order of results matches the input order.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	errCh := make(chan error, len(texts))
	sem := make(chan struct{}, 8)

	for i := range texts {
		sem <- struct{}{}
		go func(idx int) {
			defer func() { <-sem }()
			v, err := p.Embed(ctx, texts[idx])
			if err != nil {
				errCh <- fmt.Errorf("embed batch item %d: %w", idx, err)
				return
			}
			vectors[idx] = v
			errCh <- nil
		}(i)
	}

	for range texts {
		if err := <-errCh; err != nil {
			return nil, err
		}
	}
	return vectors, nil
}

// Generate produces a chat completion for the prompt pair.
func (p *OpenAIProvider) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 429 {
			return "", fmt.Errorf("chat completion: %w", port.ErrRateLimited)
		}
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Transcribe runs Whisper over the audio file and returns timed fragments.
func (p *OpenAIProvider) Transcribe(ctx context.Context, audioPath string) ([]domain.Fragment, error) {
	resp, err := p.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    p.cfg.WhisperModel,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == 400 {
			return nil, fmt.Errorf("transcribe %s: %w", audioPath, port.ErrUnsupportedAudio)
		}
		return nil, fmt.Errorf("transcribe %s: %w", audioPath, err)
	}

	fragments := make([]domain.Fragment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		fragments = append(fragments, domain.Fragment{
			Text:  strings.TrimSpace(seg.Text),
			Start: seg.Start,
			End:   seg.End,
		})
	}
	return fragments, nil
}

// l2normalize scales a vector to unit length so cosine similarity reduces
// to a dot product.
func l2normalize(v []float32) {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(float64(sum)))
	for i := range v {
		v[i] *= inv
	}
}
