package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mindspool/recall/internal/api/handlers"
	"github.com/mindspool/recall/internal/domain"
	"github.com/mindspool/recall/internal/pagination"
	"github.com/mindspool/recall/internal/service"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) IngestPDF(ctx context.Context, filename string, data []byte) (*service.IngestResult, error) {
	args := m.Called(ctx, filename, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func (m *MockDocumentService) IngestYouTube(ctx context.Context, url string) (*service.IngestResult, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func (m *MockDocumentService) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func (m *MockDocumentService) ListDocuments(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.DocumentPageResult, error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DocumentPageResult), args.Error(1)
}

func (m *MockDocumentService) DeleteDocument(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockStudyService struct {
	mock.Mock
}

func (m *MockStudyService) GenerateFlashcards(ctx context.Context, documentID string, count int) (*service.FlashcardSet, error) {
	args := m.Called(ctx, documentID, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FlashcardSet), args.Error(1)
}

func (m *MockStudyService) GenerateQuiz(ctx context.Context, documentID string, count int) (*service.QuizSet, error) {
	args := m.Called(ctx, documentID, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.QuizSet), args.Error(1)
}

type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) StreamChat(ctx context.Context, documentID, message string, history []domain.ChatMessage) (<-chan domain.StreamEvent, error) {
	args := m.Called(ctx, documentID, message, history)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan domain.StreamEvent), args.Error(1)
}

func newTestRouter(docs *MockDocumentService, study *MockStudyService, chat *MockChatService) http.Handler {
	return NewRouter(RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(docs),
		StudyHandler:    handlers.NewStudyHandler(study),
		ChatHandler:     handlers.NewChatHandler(chat),
	})
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(new(MockDocumentService), new(MockStudyService), new(MockChatService))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Data["status"])
}

func TestRouter_GetDocumentByID(t *testing.T) {
	docs := new(MockDocumentService)
	router := newTestRouter(docs, new(MockStudyService), new(MockChatService))

	docs.On("GetDocument", mock.Anything, "doc-123").Return(&domain.Document{
		ID:         "doc-123",
		Title:      "Lecture notes",
		SourceType: domain.SourceTypePDF,
		CreatedAt:  time.Now().UTC(),
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/doc-123", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	docs.AssertExpectations(t)
}

func TestRouter_ListDocuments(t *testing.T) {
	docs := new(MockDocumentService)
	router := newTestRouter(docs, new(MockStudyService), new(MockChatService))

	docs.On("ListDocuments", mock.Anything, (*pagination.Cursor)(nil), 20).
		Return(&service.DocumentPageResult{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/documents/", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_GenerateFlashcardsRoute(t *testing.T) {
	study := new(MockStudyService)
	router := newTestRouter(new(MockDocumentService), study, new(MockChatService))

	study.On("GenerateFlashcards", mock.Anything, "doc-123", 0).
		Return(&service.FlashcardSet{Cards: []domain.Flashcard{{Question: "q", Answer: "a"}}}, nil)

	req := httptest.NewRequest(http.MethodPost, "/documents/doc-123/flashcards", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	study.AssertExpectations(t)
}

func TestRouter_ChatStreamsSSE(t *testing.T) {
	chat := new(MockChatService)
	router := newTestRouter(new(MockDocumentService), new(MockStudyService), chat)

	events := make(chan domain.StreamEvent, 2)
	events <- domain.StreamEvent{Content: "hello"}
	events <- domain.StreamEvent{Done: true}
	close(events)
	chat.On("StreamChat", mock.Anything, "doc-123", "hi", []domain.ChatMessage{}).
		Return((<-chan domain.StreamEvent)(events), nil)

	req := httptest.NewRequest(http.MethodPost, "/documents/doc-123/chat", strings.NewReader(`{"message":"hi"}`))
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"content":"hello"`)
	assert.Contains(t, w.Body.String(), `"done":true`)
}

func TestRouter_RejectsOversizedBody(t *testing.T) {
	router := newTestRouter(new(MockDocumentService), new(MockStudyService), new(MockChatService))

	req := httptest.NewRequest(http.MethodPost, "/documents/youtube", strings.NewReader("{}"))
	req.ContentLength = 26 * 1024 * 1024
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(new(MockDocumentService), new(MockStudyService), new(MockChatService))

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
