// Package repository implements Postgres persistence for documents and
// their embedded chunks, using pgvector for similarity search.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/mindspool/recall/internal/domain"
	"github.com/mindspool/recall/internal/pagination"
	"github.com/mindspool/recall/internal/service"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DocumentRepository handles persistence of documents and their chunks.
type DocumentRepository struct {
	pool *pgxpool.Pool
	db   dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool, db: pool}
}

// CreateWithChunks inserts the document and all of its chunks in a single
// transaction. Chunks are written in ordinal order; any failure rolls the
// whole document back so no partial chunk set is ever visible.
func (r *DocumentRepository) CreateWithChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO documents (id, title, source_type, source_url, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		doc.ID, doc.Title, doc.SourceType, nullableString(doc.SourceURL), doc.CreatedAt,
	)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		_, err = tx.Exec(ctx,
			`INSERT INTO chunks (id, document_id, content, embedding, chunk_index, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, c.DocumentID, c.Content, pgvector.NewVector(c.Embedding), c.ChunkIndex, c.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	var sourceURL *string
	err := r.db.QueryRow(ctx,
		`SELECT id, title, source_type, source_url, created_at
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Title, &d.SourceType, &sourceURL, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if sourceURL != nil {
		d.SourceURL = *sourceURL
	}
	return &d, nil
}

// ListWithCursor pages through documents newest first, keyed on
// (created_at, id) so pagination stays stable under concurrent inserts.
func (r *DocumentRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, title, source_type, source_url, created_at
			 FROM documents
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, title, source_type, source_url, created_at
			 FROM documents
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		last := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(last.ID, last.CreatedAt)
	}

	return &service.DocumentPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// Delete removes a document; its chunks are removed by the foreign key
// cascade.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var results []*domain.Document
	for rows.Next() {
		var d domain.Document
		var sourceURL *string
		if err := rows.Scan(&d.ID, &d.Title, &d.SourceType, &sourceURL, &d.CreatedAt); err != nil {
			return nil, err
		}
		if sourceURL != nil {
			d.SourceURL = *sourceURL
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
