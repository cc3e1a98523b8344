package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindspool/recall/internal/domain"
)

type fakeSearcher struct {
	chunks    []domain.ScoredChunk
	count     int
	err       error
	lastDocID string
	lastK     int
}

func (f *fakeSearcher) Search(ctx context.Context, documentID string, embedding []float32, k int) ([]domain.ScoredChunk, error) {
	f.lastDocID = documentID
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.chunks, nil
}

func (f *fakeSearcher) CountByDocument(ctx context.Context, documentID string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.count, nil
}

type fakeQueryEmbedder struct {
	vector   []float32
	err      error
	lastText string
}

func (f *fakeQueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	f.lastText = text
	return f.vector, f.err
}

func TestRetrieveReturnsContentsInOrder(t *testing.T) {
	searcher := &fakeSearcher{chunks: []domain.ScoredChunk{
		{ChunkIndex: 4, Content: "most similar", Similarity: 0.91},
		{ChunkIndex: 0, Content: "second", Similarity: 0.74},
		{ChunkIndex: 2, Content: "third", Similarity: 0.58},
	}}
	embedder := &fakeQueryEmbedder{vector: []float32{0.5}}
	svc := NewRetrievalService(searcher, embedder)

	contents, err := svc.Retrieve(context.Background(), "doc-1", "what is X", 3)

	require.NoError(t, err)
	assert.Equal(t, []string{"most similar", "second", "third"}, contents)
	assert.Equal(t, "doc-1", searcher.lastDocID)
	assert.Equal(t, 3, searcher.lastK)
	assert.Equal(t, "what is X", embedder.lastText)
}

func TestRetrieveDefaultsK(t *testing.T) {
	searcher := &fakeSearcher{}
	svc := NewRetrievalService(searcher, &fakeQueryEmbedder{vector: []float32{1}})

	_, err := svc.Retrieve(context.Background(), "doc-1", "q", 0)

	require.NoError(t, err)
	assert.Equal(t, DefaultChatRetrievalK, searcher.lastK)
}

func TestRetrieveZeroResultsIsNotAnError(t *testing.T) {
	svc := NewRetrievalService(&fakeSearcher{}, &fakeQueryEmbedder{vector: []float32{1}})

	contents, err := svc.Retrieve(context.Background(), "doc-1", "q", 5)

	require.NoError(t, err)
	assert.Empty(t, contents)
}

func TestRetrieveStoreFailureSurfacesAsUnavailable(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("connection refused")}
	svc := NewRetrievalService(searcher, &fakeQueryEmbedder{vector: []float32{1}})

	_, err := svc.Retrieve(context.Background(), "doc-1", "q", 5)

	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domain.ErrCodeRetrieval, de.Code)
}

func TestRetrieveEmbeddingFailurePropagates(t *testing.T) {
	embedErr := errors.New("embedding failed")
	svc := NewRetrievalService(&fakeSearcher{}, &fakeQueryEmbedder{err: embedErr})

	_, err := svc.Retrieve(context.Background(), "doc-1", "q", 5)

	require.ErrorIs(t, err, embedErr)
}

func TestChunkCount(t *testing.T) {
	svc := NewRetrievalService(&fakeSearcher{count: 7}, &fakeQueryEmbedder{})

	n, err := svc.ChunkCount(context.Background(), "doc-1")

	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
