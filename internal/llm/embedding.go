package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the Gemini model used for embeddings.
	DefaultEmbeddingModel = "gemini-embedding-001"
	// DefaultEmbeddingDimensions is the configured output dimensionality.
	// Every vector in the store must share it; retrieval is meaningless
	// against vectors from a different space.
	DefaultEmbeddingDimensions = 768
	// maxEmbedChars keeps single inputs under the provider's token ceiling.
	maxEmbedChars = 8000
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
)

// EmbeddingAPI defines the interface for raw embedding calls.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// EmbeddingConfig configures the embedding client.
type EmbeddingConfig struct {
	Model      string
	Dimensions int
}

// EmbeddingClient wraps one provider's embedding endpoint. The same model and
// dimensionality serve both ingestion and query embedding; that coupling is a
// configuration invariant, not something inferred at call time.
type EmbeddingClient struct {
	api        EmbeddingAPI
	model      string
	dimensions int
}

// NewEmbeddingClient creates an embedding client over an OpenAI-compatible API.
func NewEmbeddingClient(api EmbeddingAPI, cfg EmbeddingConfig) *EmbeddingClient {
	model := cfg.Model
	if model == "" {
		model = DefaultEmbeddingModel
	}
	dimensions := cfg.Dimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &EmbeddingClient{api: api, model: model, dimensions: dimensions}
}

// Dimensions returns the configured vector size.
func (c *EmbeddingClient) Dimensions() int {
	return c.dimensions
}

// Embed generates one embedding vector for the given text.
func (c *EmbeddingClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{truncate(text)},
		Model:      openai.EmbeddingModel(c.model),
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	embedding := resp.Data[0].Embedding
	if len(embedding) != c.dimensions {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(embedding))
	}

	return embedding, nil
}

// truncate cuts by characters, not bytes, so a multibyte rune at the limit
// is never split into invalid UTF-8.
func truncate(text string) string {
	if len(text) <= maxEmbedChars {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxEmbedChars {
		return text
	}
	return string(runes[:maxEmbedChars])
}
