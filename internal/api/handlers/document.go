package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mindspool/recall/internal/api"
	"github.com/mindspool/recall/internal/domain"
	"github.com/mindspool/recall/internal/pagination"
	"github.com/mindspool/recall/internal/service"
)

type DocumentService interface {
	IngestPDF(ctx context.Context, filename string, data []byte) (*service.IngestResult, error)
	IngestYouTube(ctx context.Context, url string) (*service.IngestResult, error)
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error)
	DeleteDocument(ctx context.Context, id string) error
}

type DocumentHandler struct {
	svc DocumentService
}

func NewDocumentHandler(svc DocumentService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type IngestYouTubeRequest struct {
	URL string `json:"url"`
}

type DocumentResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	SourceType string `json:"source_type"`
	SourceURL  string `json:"source_url,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func documentToResponse(d *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:         d.ID,
		Title:      d.Title,
		SourceType: string(d.SourceType),
		SourceURL:  d.SourceURL,
		CreatedAt:  d.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

// UploadPDF ingests a PDF sent as multipart form data under the "file" field.
// Ingestion is synchronous: the response carries the stored document.
func (h *DocumentHandler) UploadPDF(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	result, err := h.svc.IngestPDF(r.Context(), header.Filename, data)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, result)
}

// IngestYouTube ingests the English transcript of a YouTube video.
func (h *DocumentHandler) IngestYouTube(w http.ResponseWriter, r *http.Request) {
	var req IngestYouTubeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL == "" {
		api.Error(w, http.StatusBadRequest, "url is required")
		return
	}

	result, err := h.svc.IngestYouTube(r.Context(), req.URL)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, result)
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.svc.GetDocument(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	cursor, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	page, err := h.svc.ListDocuments(r.Context(), cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, len(page.Items))
	for i, d := range page.Items {
		responses[i] = documentToResponse(d)
	}

	api.Success(w, http.StatusOK, pagination.PageResult[*DocumentResponse]{
		Items:   responses,
		Cursor:  page.NextCursor,
		HasMore: page.HasMore,
	})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.DeleteDocument(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"id": id, "status": "deleted"})
}
