package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mindspool/recall/internal/config"
	"github.com/mindspool/recall/internal/domain"
	"github.com/mindspool/recall/internal/extract"
	"github.com/mindspool/recall/internal/llm"
	"github.com/mindspool/recall/internal/pacing"
	"github.com/mindspool/recall/internal/repository"
	"github.com/mindspool/recall/internal/rotation"
	"github.com/mindspool/recall/internal/service"
	"github.com/mindspool/recall/internal/storage"
)

// Services bundles the wired application services used by the serve and
// ingest commands.
type Services struct {
	Ingestion *service.IngestionService
	Study     *service.StudyService
	Chat      *service.ChatService
}

func buildServices(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*Services, error) {
	llmClient, engine, embedClient, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}

	documentRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)

	budget := pacing.NewBudget(cfg.EmbedCallsPerMinute)
	embeddingSvc := service.NewEmbeddingService(embedClient, budget)
	retrievalSvc := service.NewRetrievalService(chunkRepo, embeddingSvc)

	var archiver service.SourceArchiver
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		archiver = s3Client
	}

	ingestionSvc := service.NewIngestionService(
		documentRepo,
		extract.NewPDFExtractor(),
		extract.NewYouTubeExtractor(),
		embeddingSvc,
		archiver,
	)

	return &Services{
		Ingestion: ingestionSvc,
		Study:     service.NewStudyService(documentRepo, chunkRepo, llmClient, engine),
		Chat:      service.NewChatService(documentRepo, retrievalSvc, &streamAdapter{client: llmClient}, engine),
	}, nil
}

// buildProviders assembles the provider registry, generation client, failover
// engine and embedding client from config. Gemini is always present;
// OpenRouter joins the chain when a key is configured.
func buildProviders(cfg *config.Config) (*llm.Client, *rotation.Engine, *llm.EmbeddingClient, error) {
	providers := []llm.ProviderConfig{
		{Name: "gemini", BaseURL: cfg.GeminiBaseURL, APIKey: cfg.GeminiAPIKey},
	}
	if cfg.HasOpenRouter() {
		providers = append(providers, llm.ProviderConfig{
			Name:    "openrouter",
			BaseURL: cfg.OpenRouterBaseURL,
			APIKey:  cfg.OpenRouterAPIKey,
		})
	}

	registry, err := llm.NewRegistry(providers)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to build provider registry: %w", err)
	}

	candidates, err := cfg.Candidates()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to parse generation models: %w", err)
	}
	for _, c := range candidates {
		log.Printf("generation candidate: %s", c)
	}

	geminiClient, err := registry.ClientFor("gemini")
	if err != nil {
		return nil, nil, nil, err
	}
	embedClient := llm.NewEmbeddingClient(geminiClient, llm.EmbeddingConfig{
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDimensions,
	})

	engine := rotation.NewEngine(candidates, rotation.Config{})
	return llm.NewClient(registry), engine, embedClient, nil
}

// streamAdapter bridges the concrete llm token stream to the service-level
// interface without ever returning a typed-nil stream.
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
