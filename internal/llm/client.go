package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mindspool/recall/internal/domain"
)

// Client performs chat completions against whichever provider a candidate
// names. Every error leaving this type is already classified.
type Client struct {
	registry *Registry
}

// NewClient creates a generation client over the provider registry.
func NewClient(registry *Registry) *Client {
	return &Client{registry: registry}
}

// Generate runs a single non-streaming completion on the candidate's model.
func (c *Client) Generate(ctx context.Context, candidate domain.ModelCandidate, messages []domain.ChatMessage) (string, error) {
	client, err := c.registry.ClientFor(candidate.Provider)
	if err != nil {
		return "", domain.NewPermanentError(err)
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    candidate.Model,
		Messages: toOpenAIMessages(messages),
	})
	if err != nil {
		return "", Classify(err)
	}

	if len(resp.Choices) == 0 {
		return "", domain.NewPermanentError(errors.New("no response choices returned"))
	}

	text := resp.Choices[0].Message.Content
	if text == "" {
		// Empty content with a finish reason usually means a safety block.
		return "", domain.NewPermanentError(
			fmt.Errorf("empty response (finish_reason=%s)", resp.Choices[0].FinishReason))
	}

	return text, nil
}

// Stream opens a streaming completion on the candidate's model. The caller
// owns the stream and must Close it; abandoning a consumer must close the
// stream rather than drain it, so no provider quota is wasted.
func (c *Client) Stream(ctx context.Context, candidate domain.ModelCandidate, messages []domain.ChatMessage) (*TokenStream, error) {
	client, err := c.registry.ClientFor(candidate.Provider)
	if err != nil {
		return nil, domain.NewPermanentError(err)
	}

	stream, err := client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    candidate.Model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	})
	if err != nil {
		return nil, Classify(err)
	}

	return &TokenStream{inner: stream}, nil
}

// TokenStream yields content deltas from an in-flight streaming completion.
// Recv returns io.EOF when the model finishes; Close must always be called,
// including when the consumer abandons the stream early, so the provider
// connection is torn down instead of drained.
type TokenStream struct {
	inner *openai.ChatCompletionStream
}

func (s *TokenStream) Recv() (string, error) {
	for {
		resp, err := s.inner.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", Classify(err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		return resp.Choices[0].Delta.Content, nil
	}
}

func (s *TokenStream) Close() error { return s.inner.Close() }

func toOpenAIMessages(messages []domain.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		switch role {
		case domain.ChatRoleUser:
			role = openai.ChatMessageRoleUser
		case domain.ChatRoleAssistant:
			role = openai.ChatMessageRoleAssistant
		case "system":
			role = openai.ChatMessageRoleSystem
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
