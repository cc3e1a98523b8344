package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mindspool/recall/internal/domain"
	"github.com/mindspool/recall/internal/llm"
)

// EmbeddingProvider defines the interface for generating one embedding.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// RateBudget gates embedding calls against the provider's quota.
type RateBudget interface {
	Acquire(ctx context.Context) error
	RecordThrottle(retryAfter time.Duration)
}

// Embedding retry bounds. Retries apply per chunk; exhausting them fails
// the whole batch so a document is never stored with a partial chunk set.
const (
	DefaultEmbedMaxRetries     = 4
	DefaultEmbedInitialBackoff = 2 * time.Second
	DefaultEmbedMaxBackoff     = 45 * time.Second
)

// EmbeddingService generates embeddings under a rate budget, backing off
// with jitter when the provider throttles.
type EmbeddingService struct {
	provider       EmbeddingProvider
	budget         RateBudget
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewEmbeddingService creates a new EmbeddingService instance.
func NewEmbeddingService(provider EmbeddingProvider, budget RateBudget) *EmbeddingService {
	return &EmbeddingService{
		provider:       provider,
		budget:         budget,
		maxRetries:     DefaultEmbedMaxRetries,
		initialBackoff: DefaultEmbedInitialBackoff,
		maxBackoff:     DefaultEmbedMaxBackoff,
	}
}

// WithRetryPolicy overrides the per-chunk retry bounds. Used by tests.
func (s *EmbeddingService) WithRetryPolicy(maxRetries int, initial, max time.Duration) *EmbeddingService {
	s.maxRetries = maxRetries
	s.initialBackoff = initial
	s.maxBackoff = max
	return s
}

// EmbedBatch embeds texts in order, blocking on the rate budget before each
// provider call. The returned slice is index-aligned with texts. Any chunk
// exhausting its throttle retries aborts the batch with
// domain.ErrEmbeddingQuotaExceeded.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vec, err := s.embedWithRetry(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding chunk %d of %d: %w", i+1, len(texts), err)
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

// EmbedQuery embeds a single query string under the same budget and retry
// policy as ingestion.
func (s *EmbeddingService) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.embedWithRetry(ctx, text)
}

func (s *EmbeddingService) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.initialBackoff
	bo.MaxInterval = s.maxBackoff
	bo.MaxElapsedTime = 0

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := s.budget.Acquire(ctx); err != nil {
			return nil, err
		}

		vec, err := s.provider.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}

		if !llm.IsThrottle(err) {
			return nil, fmt.Errorf("failed to generate embedding: %w", err)
		}
		lastErr = err

		// Push the budget's window out so concurrent callers stop
		// hammering the provider too.
		s.budget.RecordThrottle(0)

		if attempt == s.maxRetries {
			break
		}
		wait := bo.NextBackOff()
		log.Printf("embedding throttled (attempt %d/%d), backing off %s: %v",
			attempt+1, s.maxRetries+1, wait.Round(time.Millisecond), err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}

	return nil, domain.NewDomainErrorWithCause(domain.ErrCodeEmbeddingQuota,
		"embedding provider quota exhausted after retries", lastErr)
}
