// File: cmd/analyze.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-taint/api/schemas"
	"github.com/xkilldash9x/scalpel-taint/internal/analysis/static/estree"
	"github.com/xkilldash9x/scalpel-taint/internal/analysis/static/javascript"
	"github.com/xkilldash9x/scalpel-taint/internal/config"
	"github.com/xkilldash9x/scalpel-taint/internal/observability"
	"github.com/xkilldash9x/scalpel-taint/internal/patterns"
	"github.com/xkilldash9x/scalpel-taint/internal/reporting"
)

// newAnalyzeCmd creates the `analyze` command.
func newAnalyzeCmd(provider storeProvider) *cobra.Command {
	var (
		patternsFile string
		frontend     string
		format       string
		outputPath   string
		outputDir    string
		concurrency  int
		persist      bool
	)

	analyzeCmd := &cobra.Command{
		Use:   "analyze [programs...]",
		Short: "Trace tainted flows through one or more programs",
		Long: `Analyzes each program against the pattern catalog and reports every flow
that reached a sink. Programs are ESTree JSON files or JavaScript sources.

By default each program's results are written next to it as
<name>.output.json, where <name> is the file name up to its first dot.`,
		Example: `  scalpel-taint analyze slices/1a-basic-flow.json --patterns slices/1a-basic-flow.patterns.json
  scalpel-taint analyze app.js -f sarif -o app.sarif
  scalpel-taint analyze ./slices/*.json -j 8 --format stdout`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			// Flags override the config file only when given explicitly.
			flags := cmd.Flags()
			if flags.Changed("patterns") {
				cfg.SetAnalysisPatternsFile(patternsFile)
			}
			if flags.Changed("frontend") {
				cfg.SetAnalysisFrontend(frontend)
			}
			if flags.Changed("format") {
				cfg.SetOutputFormat(format)
			}
			if flags.Changed("output") {
				cfg.SetOutputPath(outputPath)
			}
			if flags.Changed("output-dir") {
				cfg.SetOutputDir(outputDir)
			}
			if flags.Changed("concurrency") {
				cfg.SetAnalysisConcurrency(concurrency)
			}
			if flags.Changed("persist") {
				cfg.SetDatabasePersist(persist)
			}

			return runAnalyze(ctx, observability.GetLogger(), cfg, args, provider)
		},
	}

	f := analyzeCmd.Flags()
	f.StringVarP(&patternsFile, "patterns", "p", "", "Pattern catalog (JSON or YAML). Defaults to the built-in DOM catalog.")
	f.StringVar(&frontend, "frontend", "auto", "Program front end: auto, estree or treesitter.")
	f.StringVarP(&format, "format", "f", reporting.FormatJSON, "Output format: json, sarif or stdout.")
	f.StringVarP(&outputPath, "output", "o", "", "Write all results to this file instead of per-program files.")
	f.StringVar(&outputDir, "output-dir", "", "Directory for per-program output files.")
	f.IntVarP(&concurrency, "concurrency", "j", 0, "Number of programs analyzed in parallel. Must be positive; when unset, analysis.concurrency (the CPU count by default) is used.")
	f.BoolVar(&persist, "persist", false, "Store the results in the configured database.")
	return analyzeCmd
}

// runAnalyze contains the core, testable logic of the analyze command.
func runAnalyze(ctx context.Context, logger *zap.Logger, cfg config.Interface, programs []string, provider storeProvider) error {
	if err := validateRun(cfg, programs); err != nil {
		return err
	}

	catalog, err := patterns.LoadCatalog(cfg.Analysis().PatternsFile)
	if err != nil {
		return err
	}
	opts, err := javascript.OptionsFromConfig(cfg.Analysis())
	if err != nil {
		return err
	}
	frontend, err := estree.ParseFrontend(cfg.Analysis().Frontend)
	if err != nil {
		return err
	}

	jobs := make([]javascript.Job, 0, len(programs))
	names := make([]string, 0, len(programs))
	for _, program := range programs {
		path, err := homedir.Expand(program)
		if err != nil {
			return fmt.Errorf("failed to expand path %s: %w", program, err)
		}
		jobs = append(jobs, javascript.FileJob(path, frontend))
		names = append(names, path)
	}
	// Fail before any work if two programs would overwrite each other's report.
	if _, err := reportPaths(cfg.Output(), names); err != nil {
		return err
	}

	logger.Info("Starting analysis",
		zap.Int("programs", len(jobs)),
		zap.Int("patterns", len(catalog)),
		zap.String("branch_merge", string(opts.BranchMerge)))

	start := time.Now()
	analyzer := javascript.NewAnalyzer(logger, opts)
	batch, err := javascript.AnalyzeBatch(ctx, analyzer, catalog, jobs, cfg.Analysis().Concurrency)
	if err != nil {
		return err
	}

	envelopes := make([]*schemas.ResultEnvelope, 0, len(batch))
	total := 0
	for _, b := range batch {
		envelopes = append(envelopes, &schemas.ResultEnvelope{
			RunID:        uuid.NewString(),
			Program:      b.Name,
			PatternCount: len(catalog),
			Timestamp:    time.Now(),
			Results:      b.Results,
		})
		total += len(b.Results)
	}

	if cfg.Database().Persist {
		if err := persistRuns(ctx, logger, cfg, envelopes, provider); err != nil {
			return err
		}
	}

	if err := writeAnalysisReports(logger, cfg.Output(), envelopes); err != nil {
		return err
	}

	logger.Info("Analysis finished",
		zap.Int("programs", len(envelopes)),
		zap.Int("findings", total),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func validateRun(cfg config.Interface, programs []string) error {
	if len(programs) == 0 {
		return fmt.Errorf("no programs to analyze")
	}
	if cfg.Analysis().Concurrency <= 0 {
		return fmt.Errorf("concurrency must be a positive integer")
	}
	out := cfg.Output()
	return out.Validate()
}

func persistRuns(ctx context.Context, logger *zap.Logger, cfg config.Interface, envelopes []*schemas.ResultEnvelope, provider storeProvider) error {
	storeService, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	for _, envelope := range envelopes {
		if err := storeService.PersistRun(ctx, envelope); err != nil {
			return fmt.Errorf("failed to persist results for %s: %w", envelope.Program, err)
		}
		logger.Info("Persisted run", zap.String("program", envelope.Program), zap.String("run_id", envelope.RunID))
	}
	return nil
}

// writeAnalysisReports writes one report per program unless an explicit output
// path or stdout collects them into one.
func writeAnalysisReports(logger *zap.Logger, out config.OutputConfig, envelopes []*schemas.ResultEnvelope) error {
	if collectsReports(out) {
		return writeReport(logger, envelopes, out.Path, out.Format)
	}

	programs := make([]string, 0, len(envelopes))
	for _, envelope := range envelopes {
		programs = append(programs, envelope.Program)
	}
	paths, err := reportPaths(out, programs)
	if err != nil {
		return err
	}
	for i, envelope := range envelopes {
		if err := writeReport(logger, []*schemas.ResultEnvelope{envelope}, paths[i], out.Format); err != nil {
			return err
		}
	}
	return nil
}

// collectsReports reports whether all programs share one report.
func collectsReports(out config.OutputConfig) bool {
	return out.Format == reporting.FormatStdout || out.Path != ""
}

// reportPaths derives the per-program report paths. Two programs that map to the
// same path (dir/x.json and dir/x.js) are an error rather than a silent
// overwrite. It returns nil paths when reports are collected into one.
func reportPaths(out config.OutputConfig, programs []string) ([]string, error) {
	if collectsReports(out) {
		return nil, nil
	}
	paths := make([]string, 0, len(programs))
	owner := make(map[string]string, len(programs))
	for _, program := range programs {
		path := reporting.OutputPath(program, out.Dir, out.Format)
		if prev, ok := owner[path]; ok {
			return nil, fmt.Errorf("%s and %s would both write %s; use --output or --output-dir to separate them", prev, program, path)
		}
		owner[path] = program
		paths = append(paths, path)
	}
	return paths, nil
}
