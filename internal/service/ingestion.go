package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mindspool/recall/internal/domain"
	"github.com/mindspool/recall/internal/pagination"
	"github.com/mindspool/recall/internal/telemetry"
)

// ExtractedSource is the text pulled out of an uploaded or linked source.
type ExtractedSource struct {
	Title     string
	Text      string
	PageCount int
}

// PDFExtractor pulls text out of an uploaded PDF.
type PDFExtractor interface {
	ExtractPDF(ctx context.Context, data []byte, filename string) (*ExtractedSource, error)
}

// VideoExtractor fetches the transcript of a video URL.
type VideoExtractor interface {
	ExtractVideo(ctx context.Context, url string) (*ExtractedSource, error)
}

// DocumentRepositoryInterface defines the repository interface for document
// persistence. CreateWithChunks must be transactional: either the document
// and every chunk land, or nothing does.
type DocumentRepositoryInterface interface {
	CreateWithChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error)
	Delete(ctx context.Context, id string) error
}

type DocumentPageResult struct {
	Items      []*domain.Document
	NextCursor string
	HasMore    bool
}

// BatchEmbedder embeds chunk texts under the process-wide rate budget.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// SourceArchiver stores the raw uploaded source for later re-processing.
type SourceArchiver interface {
	ArchiveSource(ctx context.Context, documentID, filename string, data []byte) error
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// IngestResult summarizes one successful ingestion.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title"`
	ChunkCount int    `json:"chunk_count"`
	PageCount  int    `json:"page_count,omitempty"`
}

// IngestionService turns raw sources into stored, embedded documents.
type IngestionService struct {
	documents DocumentRepositoryInterface
	pdf       PDFExtractor
	video     VideoExtractor
	embedder  BatchEmbedder
	archiver  SourceArchiver
	chunkCfg  ChunkConfig
	uuidGen   UUIDGenerator
}

// NewIngestionService creates a new IngestionService instance. archiver may
// be nil when no object storage is configured.
func NewIngestionService(
	documents DocumentRepositoryInterface,
	pdf PDFExtractor,
	video VideoExtractor,
	embedder BatchEmbedder,
	archiver SourceArchiver,
) *IngestionService {
	return &IngestionService{
		documents: documents,
		pdf:       pdf,
		video:     video,
		embedder:  embedder,
		archiver:  archiver,
		chunkCfg:  DefaultChunkConfig(),
		uuidGen:   &DefaultUUIDGenerator{},
	}
}

// WithUUIDGen overrides UUID generation. Used by tests.
func (s *IngestionService) WithUUIDGen(gen UUIDGenerator) *IngestionService {
	s.uuidGen = gen
	return s
}

// IngestPDF extracts, chunks, embeds and stores an uploaded PDF. The raw
// file is archived after the document is committed, best-effort.
func (s *IngestionService) IngestPDF(ctx context.Context, filename string, data []byte) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.IngestPDF", telemetry.SpanAttributes{
		Operation: "ingest",
	})
	defer span.End()

	source, err := s.pdf.ExtractPDF(ctx, data, filename)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	result, err := s.store(ctx, source, domain.SourceTypePDF, "")
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	if s.archiver != nil {
		if archiveErr := s.archiver.ArchiveSource(ctx, result.DocumentID, filename, data); archiveErr != nil {
			log.Printf("failed to archive source for document %s: %v", result.DocumentID, archiveErr)
		}
	}
	return result, nil
}

// IngestYouTube fetches a video transcript and stores it as a document.
func (s *IngestionService) IngestYouTube(ctx context.Context, url string) (*IngestResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.IngestYouTube", telemetry.SpanAttributes{
		Operation: "ingest",
	})
	defer span.End()

	source, err := s.video.ExtractVideo(ctx, url)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	result, err := s.store(ctx, source, domain.SourceTypeYouTube, url)
	if err != nil {
		span.SetError(err)
	}
	return result, err
}

// store chunks and embeds the extracted text, then commits the document and
// its chunks in one transaction. Embedding happens before any write so a
// quota failure leaves no partial document behind.
func (s *IngestionService) store(ctx context.Context, source *ExtractedSource, sourceType domain.SourceType, sourceURL string) (*IngestResult, error) {
	texts := chunkText(source.Text, s.chunkCfg)
	if len(texts) == 0 {
		return nil, domain.ErrSourceEmpty
	}

	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:         s.uuidGen.NewString(),
		Title:      source.Title,
		SourceType: sourceType,
		SourceURL:  sourceURL,
		CreatedAt:  now,
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, domain.Chunk{
			ID:         s.uuidGen.NewString(),
			DocumentID: doc.ID,
			Content:    text,
			Embedding:  vectors[i],
			ChunkIndex: i,
			CreatedAt:  now,
		})
	}

	if err := s.documents.CreateWithChunks(ctx, doc, chunks); err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeIngestion,
			"failed to store document", err)
	}

	log.Printf("ingested %s document %s (%d chunks)", sourceType, doc.ID, len(chunks))
	return &IngestResult{
		DocumentID: doc.ID,
		Title:      doc.Title,
		ChunkCount: len(chunks),
		PageCount:  source.PageCount,
	}, nil
}

// GetDocument retrieves a document by ID.
func (s *IngestionService) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	return s.documents.GetByID(ctx, id)
}

// ListDocuments pages through stored documents, newest first.
func (s *IngestionService) ListDocuments(ctx context.Context, cursor *pagination.Cursor, limit int) (*DocumentPageResult, error) {
	return s.documents.ListWithCursor(ctx, cursor, limit)
}

// DeleteDocument removes a document; its chunks go with it via cascade.
func (s *IngestionService) DeleteDocument(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "IngestionService.DeleteDocument", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	return s.documents.Delete(ctx, id)
}
