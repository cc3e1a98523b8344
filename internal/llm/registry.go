// Package llm adapts OpenAI-compatible chat and embedding providers.
// OpenRouter and Gemini both expose OpenAI-compatible endpoints, so a single
// client type covers every configured candidate; only the base URL and key
// differ per provider.
package llm

import (
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Well-known provider base URLs.
const (
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	GeminiBaseURL     = "https://generativelanguage.googleapis.com/v1beta/openai"
)

// ProviderConfig describes one upstream provider endpoint.
type ProviderConfig struct {
	Name    string
	BaseURL string
	APIKey  string
}

// Registry holds one configured client per provider. Built once at startup;
// read-only afterwards.
type Registry struct {
	clients map[string]*openai.Client
}

// NewRegistry builds clients for every configured provider.
func NewRegistry(providers []ProviderConfig) (*Registry, error) {
	clients := make(map[string]*openai.Client, len(providers))
	for _, p := range providers {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" {
			return nil, fmt.Errorf("provider name is required")
		}
		if p.APIKey == "" {
			return nil, fmt.Errorf("provider %s: API key is required", name)
		}
		cfg := openai.DefaultConfig(p.APIKey)
		if p.BaseURL != "" {
			cfg.BaseURL = strings.TrimRight(p.BaseURL, "/")
		}
		clients[name] = openai.NewClientWithConfig(cfg)
	}
	return &Registry{clients: clients}, nil
}

// ClientFor returns the client for a provider name.
func (r *Registry) ClientFor(provider string) (*openai.Client, error) {
	c, ok := r.clients[strings.ToLower(provider)]
	if !ok {
		return nil, fmt.Errorf("no client configured for provider %q", provider)
	}
	return c, nil
}

// Providers returns the configured provider names.
func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.clients))
	for name := range r.clients {
		out = append(out, name)
	}
	return out
}
