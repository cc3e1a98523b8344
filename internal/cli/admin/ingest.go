package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/mindspool/recall/internal/config"
	"github.com/mindspool/recall/internal/service"
)

// IngestCmd returns the ingest command for one-shot ingestion without a
// running server.
func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a source directly into the document store",
	}

	pdfCmd := &cobra.Command{
		Use:   "pdf <file>",
		Short: "Ingest a local PDF file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, func(ctx context.Context, svcs *Services) (*service.IngestResult, error) {
				data, err := os.ReadFile(args[0])
				if err != nil {
					return nil, fmt.Errorf("failed to read %s: %w", args[0], err)
				}
				return svcs.Ingestion.IngestPDF(ctx, filepath.Base(args[0]), data)
			})
		},
	}

	youtubeCmd := &cobra.Command{
		Use:   "youtube <url>",
		Short: "Ingest the English transcript of a YouTube video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, func(ctx context.Context, svcs *Services) (*service.IngestResult, error) {
				return svcs.Ingestion.IngestYouTube(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(pdfCmd)
	cmd.AddCommand(youtubeCmd)
	return cmd
}

func runIngest(cmd *cobra.Command, fn func(context.Context, *Services) (*service.IngestResult, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if err := runMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	svcs, err := buildServices(ctx, cfg, pool)
	if err != nil {
		return err
	}

	result, err := fn(ctx, svcs)
	if err != nil {
		return err
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))
	return nil
}
