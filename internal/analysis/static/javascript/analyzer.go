// Filename: javascript/analyzer.go
// Entry point of the taint engine: walks a program against a pattern catalog and
// reports the flows that reached a sink.
package javascript

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-taint/api/schemas"
	"github.com/xkilldash9x/scalpel-taint/internal/analysis/core"
	"github.com/xkilldash9x/scalpel-taint/internal/analysis/static/estree"
)

// ErrNilProgram is returned when Analyze is called without a program.
var ErrNilProgram = errors.New("javascript: nil program")

// Analyzer runs the taint engine. It holds no per-run state, so one Analyzer can
// serve concurrent runs.
type Analyzer struct {
	logger *zap.Logger
	opts   Options
}

// NewAnalyzer creates an analyzer with the given options.
func NewAnalyzer(logger *zap.Logger, opts Options) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		logger: logger.Named("js_analyzer"),
		opts:   opts,
	}
}

// Options returns the options this analyzer was built with.
func (a *Analyzer) Options() Options { return a.opts }

// Analyze walks program against catalog and returns one result per flow that
// reached at least one sink, in registry order. Every call uses a fresh registry.
// Cancellation is checked between top-level statements.
func (a *Analyzer) Analyze(ctx context.Context, program *estree.Program, catalog core.Catalog) ([]schemas.Result, error) {
	if program == nil {
		return nil, ErrNilProgram
	}

	a.logger.Debug("Starting taint analysis",
		zap.Int("statements", len(program.Body)),
		zap.Int("patterns", len(catalog)),
		zap.String("branch_merge", string(a.opts.BranchMerge)),
		zap.Int("loop_passes", a.opts.LoopPasses))

	walker := newASTWalker(a.logger, catalog, a.opts)
	for _, stmt := range program.Body {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("analysis interrupted: %w", err)
		}
		walker.walkStatement(stmt)
	}

	results := Report(walker.registry)
	if len(results) > 0 {
		a.logger.Info("Analysis completed with findings",
			zap.Int("findings", len(results)),
			zap.Int("live_instances", walker.registry.Len()))
	}
	return results, nil
}

// Report converts every live instance with a recorded sink into a result.
// Slices in the results are never nil.
func Report(registry *Registry) []schemas.Result {
	results := []schemas.Result{}
	for _, v := range registry.Live() {
		if len(v.sinks) == 0 {
			continue
		}
		results = append(results, schemas.Result{
			Vulnerability: v.pattern.Vulnerability(),
			Sources:       nonNil(v.sources),
			Sanitizers:    nonNil(v.sanitizers),
			Sinks:         nonNil(v.sinks),
		})
	}
	return results
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return slices.Clone(list)
}
