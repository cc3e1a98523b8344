//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindspool/recall/internal/api/handlers"
	"github.com/mindspool/recall/internal/domain"
	"github.com/mindspool/recall/internal/extract"
	"github.com/mindspool/recall/internal/llm"
	"github.com/mindspool/recall/internal/pacing"
	"github.com/mindspool/recall/internal/repository"
	"github.com/mindspool/recall/internal/rotation"
	"github.com/mindspool/recall/internal/server"
	"github.com/mindspool/recall/internal/service"
	"github.com/mindspool/recall/internal/testutil"
)

const embeddingDimensions = 768

// E2ETestEnv holds all resources needed for E2E tests: a real pgvector
// database, a stub OpenAI-compatible provider, a stub YouTube endpoint and
// the full HTTP server wired over them.
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	Pool       *pgxpool.Pool
	Provider   *httptest.Server
	YouTube    *httptest.Server
	Server     *httptest.Server
	HTTPClient *http.Client
}

// SetupE2EEnv creates a full E2E environment. The provider stub answers
// embeddings, flashcard/quiz completions and streaming chat completions, so
// the whole pipeline runs without external API keys.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	provider := newProviderStub(t)
	youtube := newYouTubeStub(t)

	registry, err := llm.NewRegistry([]llm.ProviderConfig{
		{Name: "gemini", BaseURL: provider.URL, APIKey: "test-key"},
		{Name: "openrouter", BaseURL: provider.URL, APIKey: "test-key"},
	})
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}

	candidates := []domain.ModelCandidate{
		{Provider: "gemini", Model: "gemini-2.0-flash"},
		{Provider: "openrouter", Model: "meta-llama/llama-3.3-70b-instruct:free"},
	}
	engine := rotation.NewEngine(candidates, rotation.Config{
		RetriesPerCandidate: 1,
		InitialBackoff:      10 * time.Millisecond,
		MaxBackoff:          50 * time.Millisecond,
	})

	llmClient := llm.NewClient(registry)
	embedClient := llm.NewEmbeddingClient(mustClientFor(t, registry, "gemini"), llm.EmbeddingConfig{
		Dimensions: embeddingDimensions,
	})

	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)

	embeddingSvc := service.NewEmbeddingService(embedClient, pacing.NewBudget(600))
	retrievalSvc := service.NewRetrievalService(chunkRepo, embeddingSvc)

	videoExtractor := extract.NewYouTubeExtractorWithClient(youtube.Client(), youtube.URL)
	ingestionSvc := service.NewIngestionService(
		documentRepo,
		extract.NewPDFExtractor(),
		videoExtractor,
		embeddingSvc,
		nil,
	)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(ingestionSvc),
		StudyHandler:    handlers.NewStudyHandler(service.NewStudyService(documentRepo, chunkRepo, llmClient, engine)),
		ChatHandler:     handlers.NewChatHandler(service.NewChatService(documentRepo, retrievalSvc, &streamAdapter{client: llmClient}, engine)),
	})
	srv := httptest.NewServer(router)

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  pgC,
		Pool:       pool,
		Provider:   provider,
		YouTube:    youtube,
		Server:     srv,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup tears the environment down in reverse order.
func (env *E2ETestEnv) Cleanup() {
	env.Server.Close()
	env.Provider.Close()
	env.YouTube.Close()
	env.Pool.Close()
	if err := env.PostgresC.Terminate(env.Ctx); err != nil {
		env.T.Logf("failed to terminate postgres container: %v", err)
	}
}

type streamAdapter struct {
	client *llm.Client
}

func (a *streamAdapter) Stream(ctx context.Context, candidate domain.ModelCandidate, messages []domain.ChatMessage) (service.TokenStream, error) {
	stream, err := a.client.Stream(ctx, candidate, messages)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

func mustClientFor(t *testing.T, registry *llm.Registry, provider string) llm.EmbeddingAPI {
	t.Helper()
	c, err := registry.ClientFor(provider)
	if err != nil {
		t.Fatalf("no client for provider %s: %v", provider, err)
	}
	return c
}

// APIResponse is the parsed envelope of one API call.
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage
	Error      string
	Raw        []byte
}

func (env *E2ETestEnv) do(method, path string, body interface{}) (*APIResponse, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := env.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	out := &APIResponse{StatusCode: resp.StatusCode, Raw: raw}
	var envelope struct {
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		out.Data = envelope.Data
		out.Error = envelope.Error
	}
	return out, nil
}

// Post sends a JSON POST to the API.
func (env *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return env.do(http.MethodPost, path, body)
}

// Get sends a GET to the API.
func (env *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return env.do(http.MethodGet, path, nil)
}

// Delete sends a DELETE to the API.
func (env *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return env.do(http.MethodDelete, path, nil)
}

// PostSSE posts a JSON body and parses the resulting SSE stream.
func (env *E2ETestEnv) PostSSE(path string, body interface{}) ([]map[string]interface{}, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	resp, err := env.HTTPClient.Post(env.Server.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("expected event stream, got %s (status %d): %s", ct, resp.StatusCode, raw)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var events []map[string]interface{}
	for _, line := range strings.Split(string(raw), "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev map[string]interface{}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return nil, fmt.Errorf("bad SSE payload %q: %w", line, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

const flashcardsStubJSON = `[
  {"question": "What force keeps planets in orbit?", "answer": "Gravity."},
  {"question": "What does F = ma relate?", "answer": "Force, mass and acceleration."},
  {"question": "What is inertia?", "answer": "The tendency of a body to resist changes in motion."}
]`

const quizStubJSON = `[
  {
    "question": "Which law states that every action has an equal and opposite reaction?",
    "options": {"A": "First law", "B": "Second law", "C": "Third law", "D": "Law of gravitation"},
    "correct_answer": "C",
    "explanation": "Newton's third law pairs every force with an equal opposite force."
  },
  {
    "question": "What is the SI unit of force?",
    "options": {"A": "Joule", "B": "Newton", "C": "Watt", "D": "Pascal"},
    "correct_answer": "B",
    "explanation": "Force is measured in newtons."
  },
  {
    "question": "What does mass measure?",
    "options": {"A": "Weight", "B": "Volume", "C": "Amount of matter", "D": "Density"},
    "correct_answer": "C",
    "explanation": "Mass quantifies the amount of matter in a body."
  }
]`

var chatStubTokens = []string{"Newton's ", "laws ", "describe ", "motion."}

// newProviderStub serves an OpenAI-compatible API: /embeddings plus streaming
// and non-streaming /chat/completions. Completions answer with flashcard or
// quiz JSON depending on the prompt.
func newProviderStub(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		embedding := make([]float32, embeddingDimensions)
		embedding[0] = 1
		writeJSON(w, map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 0, "embedding": embedding},
			},
		})
	})

	mux.HandleFunc("/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Stream   bool `json:"stream"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var prompt strings.Builder
		for _, m := range req.Messages {
			prompt.WriteString(m.Content)
		}

		if req.Stream {
			writeStream(w, chatStubTokens)
			return
		}

		content := flashcardsStubJSON
		if strings.Contains(prompt.String(), "quiz questions") {
			content = quizStubJSON
		}
		writeJSON(w, map[string]interface{}{
			"id":     "stub-completion",
			"object": "chat.completion",
			"choices": []map[string]interface{}{
				{
					"index":         0,
					"message":       map[string]string{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		})
	})

	return httptest.NewServer(mux)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeStream(w http.ResponseWriter, tokens []string) {
	w.Header().Set("Content-Type", "text/event-stream")
	flusher := w.(http.Flusher)
	for _, token := range tokens {
		chunk := map[string]interface{}{
			"id":     "stub-chunk",
			"object": "chat.completion.chunk",
			"choices": []map[string]interface{}{
				{"index": 0, "delta": map[string]string{"content": token}},
			},
		}
		payload, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// transcriptSentence repeats into a transcript long enough to produce several
// chunks at the default window size.
const transcriptSentence = "Newton's laws of motion describe the relationship between the forces acting on a body and the changes in its motion, forming the foundation of classical mechanics."

// newYouTubeStub serves the oEmbed and timedtext endpoints the extractor
// reads.
func newYouTubeStub(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/oembed", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"title": "Newton's Laws Explained"})
	})

	mux.HandleFunc("/api/timedtext", func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString("<transcript>")
		for i := 0; i < 12; i++ {
			fmt.Fprintf(&b, `<text start="%d" dur="10">%s</text>`, i*10, transcriptSentence)
		}
		b.WriteString("</transcript>")
		w.Header().Set("Content-Type", "text/xml")
		io.WriteString(w, b.String())
	})

	return httptest.NewServer(mux)
}
