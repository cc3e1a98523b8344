package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mindspool/recall/internal/api"
	"github.com/mindspool/recall/internal/api/handlers"
	"github.com/mindspool/recall/internal/api/middleware"
)

type RouterConfig struct {
	DocumentHandler *handlers.DocumentHandler
	StudyHandler    *handlers.StudyHandler
	ChatHandler     *handlers.ChatHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Leaves headroom over the 20MB PDF limit for multipart framing.
	const maxBodyBytes int64 = 25 * 1024 * 1024

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog)
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/documents", func(r chi.Router) {
		r.Post("/pdf", cfg.DocumentHandler.UploadPDF)
		r.Post("/youtube", cfg.DocumentHandler.IngestYouTube)
		r.Get("/", cfg.DocumentHandler.List)
		r.Get("/{id}", cfg.DocumentHandler.Get)
		r.Delete("/{id}", cfg.DocumentHandler.Delete)

		r.Post("/{id}/flashcards", cfg.StudyHandler.GenerateFlashcards)
		r.Post("/{id}/quiz", cfg.StudyHandler.GenerateQuiz)
		r.Post("/{id}/chat", cfg.ChatHandler.Stream)
	})

	return r
}
