package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/mindspool/recall/internal/domain"
	"github.com/mindspool/recall/internal/telemetry"
)

// TokenStream is an in-flight streaming completion. Recv returns io.EOF at
// normal completion; Close tears down the provider connection.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Streamer opens a streaming completion on a candidate.
type Streamer interface {
	Stream(ctx context.Context, candidate domain.ModelCandidate, messages []domain.ChatMessage) (TokenStream, error)
}

// ContextRetriever produces the grounding context for one query.
type ContextRetriever interface {
	Retrieve(ctx context.Context, documentID, query string, k int) ([]string, error)
}

// ChatService answers questions about one document as a finite token
// stream. Grounding is re-retrieved on every turn; nothing is cached across
// turns since the conversation topic can drift.
type ChatService struct {
	documents DocumentGetter
	retriever ContextRetriever
	streamer  Streamer
	rotator   Rotator
}

// NewChatService creates a new ChatService instance.
func NewChatService(documents DocumentGetter, retriever ContextRetriever, streamer Streamer, rotator Rotator) *ChatService {
	return &ChatService{
		documents: documents,
		retriever: retriever,
		streamer:  streamer,
		rotator:   rotator,
	}
}

// StreamChat validates the request, retrieves fresh grounding context and
// returns a channel of stream events. The channel always terminates with
// exactly one terminal event (Done or Err) and is closed afterwards.
// Cancelling ctx stops the producer and closes the provider stream.
func (s *ChatService) StreamChat(ctx context.Context, documentID, message string, history []domain.ChatMessage) (<-chan domain.StreamEvent, error) {
	ctx, span := telemetry.StartSpan(ctx, "ChatService.StreamChat", telemetry.SpanAttributes{
		DocumentID: documentID,
		Task:       string(domain.TaskChat),
		Operation:  "stream",
	})
	defer span.End()

	if strings.TrimSpace(message) == "" {
		return nil, domain.ErrEmptyMessage
	}
	if _, err := s.documents.GetByID(ctx, documentID); err != nil {
		return nil, err
	}

	contents, err := s.retriever.Retrieve(ctx, documentID, message, DefaultChatRetrievalK)
	if err != nil {
		return nil, err
	}

	messages := buildChatMessages(joinContext(contents), history, message)

	events := make(chan domain.StreamEvent)
	go s.produce(ctx, messages, events)
	return events, nil
}

// produce drives rotation and forwards deltas. Failover only happens before
// the first token reaches the consumer; once partial content is out, a
// provider failure terminates the stream with an error event instead of
// replaying the answer on another model.
func (s *ChatService) produce(ctx context.Context, messages []domain.ChatMessage, events chan<- domain.StreamEvent) {
	defer close(events)

	sentAny := false
	var midStreamErr error

	_, err := s.rotator.Run(ctx, domain.TaskChat, func(ctx context.Context, candidate domain.ModelCandidate) error {
		stream, err := s.streamer.Stream(ctx, candidate, messages)
		if err != nil {
			return err
		}
		defer stream.Close()

		for {
			delta, recvErr := stream.Recv()
			if errors.Is(recvErr, io.EOF) {
				return nil
			}
			if recvErr != nil {
				if sentAny {
					midStreamErr = recvErr
					return nil
				}
				return recvErr
			}
			if delta == "" {
				continue
			}

			select {
			case events <- domain.StreamEvent{Content: delta}:
				sentAny = true
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	if ctx.Err() != nil {
		// Consumer went away; nobody is reading terminal events.
		return
	}

	switch {
	case err != nil:
		s.emit(ctx, events, domain.StreamEvent{Err: err})
	case midStreamErr != nil:
		s.emit(ctx, events, domain.StreamEvent{Err: midStreamErr})
	default:
		s.emit(ctx, events, domain.StreamEvent{Done: true})
	}
}

func (s *ChatService) emit(ctx context.Context, events chan<- domain.StreamEvent, ev domain.StreamEvent) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
