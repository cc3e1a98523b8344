package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mindspool/recall/internal/api"
	"github.com/mindspool/recall/internal/domain"
	"github.com/mindspool/recall/internal/service"
)

type StudyGenerationService interface {
	GenerateFlashcards(ctx context.Context, documentID string, count int) (*service.FlashcardSet, error)
	GenerateQuiz(ctx context.Context, documentID string, count int) (*service.QuizSet, error)
}

type StudyHandler struct {
	svc StudyGenerationService
}

func NewStudyHandler(svc StudyGenerationService) *StudyHandler {
	return &StudyHandler{svc: svc}
}

// GenerateRequest carries an optional item count override. Counts outside the
// allowed range are clamped by the service, not rejected here.
type GenerateRequest struct {
	Count int `json:"count"`
}

type FlashcardsResponse struct {
	DocumentID string             `json:"document_id"`
	Flashcards []domain.Flashcard `json:"flashcards"`
	Count      int                `json:"count"`
	Provider   string             `json:"provider"`
	Model      string             `json:"model"`
}

type QuizResponse struct {
	DocumentID string                `json:"document_id"`
	Questions  []domain.QuizQuestion `json:"questions"`
	Count      int                   `json:"count"`
	Provider   string                `json:"provider"`
	Model      string                `json:"model"`
}

func decodeGenerateRequest(r *http.Request) (GenerateRequest, error) {
	var req GenerateRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		return GenerateRequest{}, err
	}
	return req, nil
}

func (h *StudyHandler) GenerateFlashcards(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	req, err := decodeGenerateRequest(r)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	set, err := h.svc.GenerateFlashcards(r.Context(), id, req.Count)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, FlashcardsResponse{
		DocumentID: id,
		Flashcards: set.Cards,
		Count:      len(set.Cards),
		Provider:   set.Candidate.Provider,
		Model:      set.Candidate.Model,
	})
}

func (h *StudyHandler) GenerateQuiz(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	req, err := decodeGenerateRequest(r)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	set, err := h.svc.GenerateQuiz(r.Context(), id, req.Count)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, QuizResponse{
		DocumentID: id,
		Questions:  set.Questions,
		Count:      len(set.Questions),
		Provider:   set.Candidate.Provider,
		Model:      set.Candidate.Model,
	})
}
