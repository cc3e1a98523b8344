package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindspool/recall/internal/domain"
)

func TestDomainErrorToHTTP(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", domain.ErrEmptyMessage, http.StatusBadRequest},
		{"not found", domain.ErrDocumentNotFound, http.StatusNotFound},
		{"ingestion", domain.ErrSourceEmpty, http.StatusUnprocessableEntity},
		{"embedding quota", domain.ErrEmbeddingQuotaExceeded, http.StatusTooManyRequests},
		{"retrieval", domain.ErrRetrievalUnavailable, http.StatusServiceUnavailable},
		{"generation", domain.NewDomainError(domain.ErrCodeGeneration, "generation failed"), http.StatusBadGateway},
		{"malformed", domain.NewDomainError(domain.ErrCodeMalformed, "unparseable response"), http.StatusBadGateway},
		{"internal", domain.NewDomainError(domain.ErrCodeInternalError, "boom"), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{
			"all providers failed",
			&domain.AllProvidersFailedError{Task: domain.TaskQuiz},
			http.StatusBadGateway,
		},
		{
			"wrapped domain error",
			fmt.Errorf("handler: %w", domain.ErrDocumentNotFound),
			http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, DomainErrorToHTTP(tt.err))
		})
	}
}

func TestHandleError_DomainError(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, domain.ErrDocumentNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "document not found")
}

func TestHandleError_AllProvidersFailedUsesSummary(t *testing.T) {
	w := httptest.NewRecorder()

	err := &domain.AllProvidersFailedError{
		Task: domain.TaskFlashcards,
		Attempts: []domain.AttemptFailure{
			{
				Candidate: domain.ModelCandidate{Provider: "gemini", Model: "gemini-2.0-flash"},
				Class:     domain.ErrorClassTransient,
				Reason:    "429 too many requests",
			},
		},
	}
	HandleError(w, err)

	assert.Equal(t, http.StatusBadGateway, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "every configured model failed")
	assert.NotContains(t, resp.Error, "429")
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	Success(w, http.StatusCreated, map[string]string{"id": "doc-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp SuccessResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "doc-1", data["id"])
}
