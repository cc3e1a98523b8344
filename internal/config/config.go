package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/mindspool/recall/internal/domain"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	// Generation providers. Gemini is required; OpenRouter extends the
	// fallback chain when configured.
	GeminiAPIKey      string `envconfig:"GEMINI_API_KEY" required:"true"`
	GeminiBaseURL     string `envconfig:"GEMINI_BASE_URL" default:"https://generativelanguage.googleapis.com/v1beta/openai"`
	OpenRouterAPIKey  string `envconfig:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api/v1"`

	// Priority-ordered failover chain, "provider/model" comma separated.
	GenerationModels string `envconfig:"GENERATION_MODELS" default:"gemini/gemini-2.0-flash,openrouter/meta-llama/llama-3.3-70b-instruct:free,openrouter/mistralai/mistral-small-24b-instruct-2501:free,gemini/gemini-1.5-pro"`

	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"768"`
	EmbedCallsPerMinute int    `envconfig:"EMBED_CALLS_PER_MINUTE" default:"60"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"recall-sources"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("RECALL", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenRouter() bool {
	return c.OpenRouterAPIKey != ""
}

// Candidates parses the configured failover chain, dropping candidates whose
// provider has no API key so a missing OpenRouter key degrades the chain
// instead of breaking startup.
func (c *Config) Candidates() ([]domain.ModelCandidate, error) {
	all, err := domain.ParseCandidateList(c.GenerationModels)
	if err != nil {
		return nil, err
	}

	usable := make([]domain.ModelCandidate, 0, len(all))
	for _, cand := range all {
		if cand.Provider == "openrouter" && !c.HasOpenRouter() {
			continue
		}
		usable = append(usable, cand)
	}
	if len(usable) == 0 {
		return nil, fmt.Errorf("no usable generation models configured")
	}
	return usable, nil
}
