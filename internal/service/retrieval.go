package service

import (
	"context"

	"github.com/mindspool/recall/internal/domain"
)

// Retrieval depth per task. Chat keeps the context tight so conversation
// history fits; flashcards and quizzes pull broadly since they summarize
// the whole document.
const (
	DefaultChatRetrievalK  = 5
	GenerationRetrievalK   = 20
	MinChunksForGeneration = 3
)

// ChunkSearcher is the similarity-search surface of the vector store.
type ChunkSearcher interface {
	Search(ctx context.Context, documentID string, embedding []float32, k int) ([]domain.ScoredChunk, error)
	CountByDocument(ctx context.Context, documentID string) (int, error)
}

// QueryEmbedder embeds query text with the same model and dimensionality
// used at ingestion.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// RetrievalService turns a query into an ordered grounding context for one
// document.
type RetrievalService struct {
	searcher ChunkSearcher
	embedder QueryEmbedder
}

// NewRetrievalService creates a new RetrievalService instance.
func NewRetrievalService(searcher ChunkSearcher, embedder QueryEmbedder) *RetrievalService {
	return &RetrievalService{searcher: searcher, embedder: embedder}
}

// Retrieve returns the contents of the k most similar chunks of the
// document, descending by similarity. Zero results is not an error: the
// caller decides how an empty context is handled. A store failure surfaces
// as RetrievalUnavailable so generation never proceeds silently ungrounded.
func (s *RetrievalService) Retrieve(ctx context.Context, documentID, query string, k int) ([]string, error) {
	if k <= 0 {
		k = DefaultChatRetrievalK
	}

	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	scored, err := s.searcher.Search(ctx, documentID, embedding, k)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeRetrieval,
			"similarity search is unavailable", err)
	}

	contents := make([]string, 0, len(scored))
	for _, c := range scored {
		contents = append(contents, c.Content)
	}
	return contents, nil
}

// ChunkCount reports how many chunks a document has stored.
func (s *RetrievalService) ChunkCount(ctx context.Context, documentID string) (int, error) {
	n, err := s.searcher.CountByDocument(ctx, documentID)
	if err != nil {
		return 0, domain.NewDomainErrorWithCause(domain.ErrCodeRetrieval,
			"similarity search is unavailable", err)
	}
	return n, nil
}
