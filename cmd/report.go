// File: cmd/report.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-taint/api/schemas"
	"github.com/xkilldash9x/scalpel-taint/internal/config"
	"github.com/xkilldash9x/scalpel-taint/internal/observability"
	"github.com/xkilldash9x/scalpel-taint/internal/reporting"
	"github.com/xkilldash9x/scalpel-taint/internal/store"
)

// resultStore is the part of the store the commands use.
type resultStore interface {
	PersistRun(ctx context.Context, envelope *schemas.ResultEnvelope) error
	ListResults(ctx context.Context, runID string) ([]schemas.Result, error)
}

// storeProvider creates the result store. Tests inject a mock instead of a live
// database connection.
type storeProvider interface {
	// Create returns the store and a cleanup function that releases its resources.
	Create(ctx context.Context, cfg config.Interface) (resultStore, func(), error)
}

// defaultStoreProvider connects to PostgreSQL.
type defaultStoreProvider struct{}

// NewStoreProvider creates the production store provider.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

// Create connects to the configured database, applies the schema and returns the
// store with a cleanup function that closes the pool.
func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.Interface) (resultStore, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database().URL == "" {
		return nil, nil, fmt.Errorf("database URL is not configured (%s_DATABASE_URL)", config.EnvPrefix)
	}

	pool, err := store.Connect(ctx, cfg.Database().URL)
	if err != nil {
		return nil, nil, err
	}

	storeService, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize store service: %w", err)
	}
	if err := storeService.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		logger.Debug("Database connection pool closed.")
	}
	return storeService, cleanup, nil
}

// newReportCmd creates the `report` command, which re-renders a persisted run.
func newReportCmd(provider storeProvider) *cobra.Command {
	var runID, outputPath, format string

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Render the stored results of a previous analysis run",
		Long: `Loads the results persisted for a run ID (see analyze --persist) and writes
them in the requested format.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runReport(ctx, observability.GetLogger(), cfg, runID, outputPath, format, provider)
		},
	}

	reportCmd.Flags().StringVar(&runID, "run-id", "", "The ID of the run to report (required)")
	_ = reportCmd.MarkFlagRequired("run-id")
	reportCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path. If unset, the report is printed to stdout.")
	reportCmd.Flags().StringVarP(&format, "format", "f", reporting.FormatJSON, "Report format: json, sarif or stdout.")
	return reportCmd
}

// runReport contains the core, testable logic of the report command.
func runReport(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	runID, outputPath, format string,
	provider storeProvider,
) error {
	logger.Info("Loading stored results", zap.String("run_id", runID))

	storeService, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	results, err := storeService.ListResults(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to load results for run %s: %w", runID, err)
	}

	envelope := &schemas.ResultEnvelope{
		RunID:     runID,
		Program:   runID,
		Timestamp: time.Now(),
		Results:   results,
	}
	return writeReport(logger, []*schemas.ResultEnvelope{envelope}, outputPath, format)
}

// writeReport writes envelopes through a single reporter.
func writeReport(logger *zap.Logger, envelopes []*schemas.ResultEnvelope, outputPath, format string) (err error) {
	reporter, err := reporting.New(format, outputPath, Version)
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	defer func() {
		if closeErr := reporter.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to finalize report: %w", closeErr)
		}
	}()

	for _, envelope := range envelopes {
		if err := reporter.Write(envelope); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}

	if outputPath != "" && format != reporting.FormatStdout {
		logger.Info("Report written", zap.String("path", outputPath), zap.String("format", format))
	}
	return nil
}
