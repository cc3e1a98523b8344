package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/mindspool/recall/internal/domain"
)

// ChunkRepository handles chunk reads and similarity search.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

// Search returns the k chunks of a document nearest to the query embedding,
// descending by cosine similarity. The document_id predicate guarantees no
// chunk from another document ever leaks into the results.
func (r *ChunkRepository) Search(ctx context.Context, documentID string, embedding []float32, k int) ([]domain.ScoredChunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT chunk_index, content, 1 - (embedding <=> $1) AS similarity
		 FROM chunks
		 WHERE document_id = $2
		 ORDER BY embedding <=> $1
		 LIMIT $3`,
		pgvector.NewVector(embedding), documentID, k,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.ScoredChunk
	for rows.Next() {
		var c domain.ScoredChunk
		if err := rows.Scan(&c.ChunkIndex, &c.Content, &c.Similarity); err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// ListByDocument returns a document's chunks in ordinal order, without their
// embeddings.
func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string, limit int) ([]domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, content, chunk_index, created_at
		 FROM chunks
		 WHERE document_id = $1
		 ORDER BY chunk_index ASC
		 LIMIT $2`,
		documentID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Content, &c.ChunkIndex, &c.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// CountByDocument reports how many chunks a document has stored.
func (r *ChunkRepository) CountByDocument(ctx context.Context, documentID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE document_id = $1`,
		documentID,
	).Scan(&n)
	return n, err
}
