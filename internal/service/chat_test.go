package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindspool/recall/internal/domain"
)

type scriptedStream struct {
	mu     sync.Mutex
	deltas []string
	err    error // returned after deltas are drained; nil means io.EOF
	pos    int
	closed bool
}

func (s *scriptedStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos < len(s.deltas) {
		d := s.deltas[s.pos]
		s.pos++
		return d, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type scriptedStreamer struct {
	mu      sync.Mutex
	streams map[string]*scriptedStream
	openErr map[string]error
	lastMsg []domain.ChatMessage
}

func (s *scriptedStreamer) Stream(ctx context.Context, candidate domain.ModelCandidate, messages []domain.ChatMessage) (TokenStream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastMsg = messages
	if err, ok := s.openErr[candidate.String()]; ok {
		return nil, err
	}
	st, ok := s.streams[candidate.String()]
	if !ok {
		return nil, domain.NewPermanentError(errors.New("no stream scripted"))
	}
	return st, nil
}

type staticRetriever struct {
	contents []string
	err      error
	lastK    int
}

func (r *staticRetriever) Retrieve(ctx context.Context, documentID, query string, k int) ([]string, error) {
	r.lastK = k
	return r.contents, r.err
}

func collect(t *testing.T, events <-chan domain.StreamEvent) []domain.StreamEvent {
	t.Helper()
	var out []domain.StreamEvent
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatal("timed out draining stream")
		}
	}
}

func TestStreamChatHappyPath(t *testing.T) {
	cand := domain.ModelCandidate{Provider: "gemini", Model: "gemini-2.0-flash"}
	stream := &scriptedStream{deltas: []string{"The ", "answer ", "is 42."}}
	streamer := &scriptedStreamer{streams: map[string]*scriptedStream{cand.String(): stream}}
	retriever := &staticRetriever{contents: []string{"relevant excerpt"}}
	svc := NewChatService(docsWith("doc-1"), retriever, streamer, testEngine(cand))

	events, err := svc.StreamChat(context.Background(), "doc-1", "what is the answer?", nil)
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 4)
	assert.Equal(t, "The ", got[0].Content)
	assert.Equal(t, "is 42.", got[2].Content)
	assert.True(t, got[3].Done, "stream must end with a single terminal event")
	assert.True(t, stream.closed, "provider stream must be closed after completion")
	assert.Equal(t, DefaultChatRetrievalK, retriever.lastK)
}

func TestStreamChatEmptyMessage(t *testing.T) {
	svc := NewChatService(docsWith("doc-1"), &staticRetriever{}, &scriptedStreamer{}, testEngine())

	_, err := svc.StreamChat(context.Background(), "doc-1", "   ", nil)

	require.ErrorIs(t, err, domain.ErrEmptyMessage)
}

func TestStreamChatUnknownDocument(t *testing.T) {
	svc := NewChatService(docsWith(), &staticRetriever{}, &scriptedStreamer{}, testEngine())

	_, err := svc.StreamChat(context.Background(), "missing", "hi", nil)

	require.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestStreamChatRetrievalFailureBlocksGeneration(t *testing.T) {
	retriever := &staticRetriever{err: domain.ErrRetrievalUnavailable}
	svc := NewChatService(docsWith("doc-1"), retriever, &scriptedStreamer{}, testEngine())

	_, err := svc.StreamChat(context.Background(), "doc-1", "hi", nil)

	require.ErrorIs(t, err, domain.ErrRetrievalUnavailable)
}

func TestStreamChatEmptyContextGetsCaveatPrompt(t *testing.T) {
	cand := domain.ModelCandidate{Provider: "gemini", Model: "m"}
	streamer := &scriptedStreamer{streams: map[string]*scriptedStream{
		cand.String(): {deltas: []string{"ok"}},
	}}
	svc := NewChatService(docsWith("doc-1"), &staticRetriever{}, streamer, testEngine(cand))

	events, err := svc.StreamChat(context.Background(), "doc-1", "hi", nil)
	require.NoError(t, err)
	collect(t, events)

	require.NotEmpty(t, streamer.lastMsg)
	system := streamer.lastMsg[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "general knowledge")
	assert.NotContains(t, system.Content, "DOCUMENT EXCERPTS")
}

func TestStreamChatIncludesHistoryInOrder(t *testing.T) {
	cand := domain.ModelCandidate{Provider: "gemini", Model: "m"}
	streamer := &scriptedStreamer{streams: map[string]*scriptedStream{
		cand.String(): {deltas: []string{"ok"}},
	}}
	svc := NewChatService(docsWith("doc-1"), &staticRetriever{contents: []string{"ctx"}}, streamer, testEngine(cand))

	history := []domain.ChatMessage{
		{Role: domain.ChatRoleUser, Content: "first question"},
		{Role: domain.ChatRoleAssistant, Content: "first answer"},
	}
	events, err := svc.StreamChat(context.Background(), "doc-1", "followup", history)
	require.NoError(t, err)
	collect(t, events)

	require.Len(t, streamer.lastMsg, 4)
	assert.Equal(t, "system", streamer.lastMsg[0].Role)
	assert.Equal(t, "first question", streamer.lastMsg[1].Content)
	assert.Equal(t, "first answer", streamer.lastMsg[2].Content)
	assert.Equal(t, "followup", streamer.lastMsg[3].Content)
}

func TestStreamChatFailsOverBeforeFirstToken(t *testing.T) {
	first := domain.ModelCandidate{Provider: "gemini", Model: "down"}
	second := domain.ModelCandidate{Provider: "openrouter", Model: "up"}
	streamer := &scriptedStreamer{
		openErr: map[string]error{first.String(): domain.NewPermanentError(errors.New("model deprecated"))},
		streams: map[string]*scriptedStream{second.String(): {deltas: []string{"hello"}}},
	}
	svc := NewChatService(docsWith("doc-1"), &staticRetriever{contents: []string{"ctx"}}, streamer, testEngine(first, second))

	events, err := svc.StreamChat(context.Background(), "doc-1", "hi", nil)
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].Content)
	assert.True(t, got[1].Done)
}

func TestStreamChatMidStreamFailureTerminatesWithError(t *testing.T) {
	cand := domain.ModelCandidate{Provider: "gemini", Model: "m"}
	streamer := &scriptedStreamer{streams: map[string]*scriptedStream{
		cand.String(): {deltas: []string{"partial "}, err: domain.NewTransientError(errors.New("connection reset"))},
	}}
	svc := NewChatService(docsWith("doc-1"), &staticRetriever{contents: []string{"ctx"}}, streamer, testEngine(cand))

	events, err := svc.StreamChat(context.Background(), "doc-1", "hi", nil)
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 2)
	assert.Equal(t, "partial ", got[0].Content)
	require.Error(t, got[1].Err, "partial output must terminate with an error, not restart on another model")
	assert.False(t, got[1].Done)
}

func TestStreamChatAllProvidersFail(t *testing.T) {
	first := domain.ModelCandidate{Provider: "gemini", Model: "a"}
	second := domain.ModelCandidate{Provider: "openrouter", Model: "b"}
	streamer := &scriptedStreamer{openErr: map[string]error{
		first.String():  domain.NewPermanentError(errors.New("quota suspended")),
		second.String(): domain.NewPermanentError(errors.New("bad key")),
	}}
	svc := NewChatService(docsWith("doc-1"), &staticRetriever{contents: []string{"ctx"}}, streamer, testEngine(first, second))

	events, err := svc.StreamChat(context.Background(), "doc-1", "hi", nil)
	require.NoError(t, err)

	got := collect(t, events)
	require.Len(t, got, 1)
	var apf *domain.AllProvidersFailedError
	require.ErrorAs(t, got[0].Err, &apf)
	assert.Len(t, apf.Attempts, 2)
}

func TestStreamChatConsumerCancellationClosesStream(t *testing.T) {
	cand := domain.ModelCandidate{Provider: "gemini", Model: "m"}
	// More deltas than the consumer will read.
	stream := &scriptedStream{deltas: []string{"a", "b", "c", "d", "e", "f"}}
	streamer := &scriptedStreamer{streams: map[string]*scriptedStream{cand.String(): stream}}
	svc := NewChatService(docsWith("doc-1"), &staticRetriever{contents: []string{"ctx"}}, streamer, testEngine(cand))

	ctx, cancel := context.WithCancel(context.Background())
	events, err := svc.StreamChat(ctx, "doc-1", "hi", nil)
	require.NoError(t, err)

	// Read one token, then walk away.
	<-events
	cancel()

	require.Eventually(t, func() bool {
		stream.mu.Lock()
		defer stream.mu.Unlock()
		return stream.closed
	}, 5*time.Second, 10*time.Millisecond, "abandoning the consumer must close the provider stream")
}
