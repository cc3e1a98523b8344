package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mindspool/recall/internal/api"
	"github.com/mindspool/recall/internal/domain"
)

type ChatService interface {
	StreamChat(ctx context.Context, documentID, message string, history []domain.ChatMessage) (<-chan domain.StreamEvent, error)
}

type ChatHandler struct {
	svc ChatService
}

func NewChatHandler(svc ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatMessageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Message string               `json:"message"`
	History []ChatMessageRequest `json:"history"`
}

// sseEvent is the wire shape of one server-sent event payload. Exactly one
// terminal event arrives per stream: done or error.
type sseEvent struct {
	Content string `json:"content,omitempty"`
	Done    bool   `json:"done,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Stream answers a chat message as a server-sent event stream of answer
// tokens. Errors before the stream opens get a regular JSON error response;
// failures after that arrive as a terminal error event on the stream itself.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	history := make([]domain.ChatMessage, 0, len(req.History))
	for _, m := range req.History {
		if m.Role != domain.ChatRoleUser && m.Role != domain.ChatRoleAssistant {
			api.Error(w, http.StatusBadRequest, fmt.Sprintf("invalid history role %q", m.Role))
			return
		}
		history = append(history, domain.ChatMessage{Role: m.Role, Content: m.Content})
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	events, err := h.svc.StreamChat(r.Context(), id, req.Message, history)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		writeSSE(w, flusher, toSSEEvent(ev))
	}
}

func toSSEEvent(ev domain.StreamEvent) sseEvent {
	switch {
	case ev.Err != nil:
		var allFailed *domain.AllProvidersFailedError
		if errors.As(ev.Err, &allFailed) {
			return sseEvent{Error: allFailed.Summary()}
		}
		return sseEvent{Error: ev.Err.Error()}
	case ev.Done:
		return sseEvent{Done: true}
	default:
		return sseEvent{Content: ev.Content}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, ev sseEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}
