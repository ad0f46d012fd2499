// Filename: javascript/batch.go
package javascript

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/scalpel-taint/api/schemas"
	"github.com/xkilldash9x/scalpel-taint/internal/analysis/core"
	"github.com/xkilldash9x/scalpel-taint/internal/analysis/static/estree"
)

// Job is one program to analyze as part of a batch.
type Job struct {
	// Name identifies the program in results and logs, usually its path.
	Name string
	// Load produces the program tree. It runs on a batch worker.
	Load func(ctx context.Context) (*estree.Program, error)
}

// FileJob returns a job that loads path with the given front end.
func FileJob(path string, frontend estree.Frontend) Job {
	return Job{
		Name: path,
		Load: func(ctx context.Context) (*estree.Program, error) {
			return estree.Load(ctx, path, frontend)
		},
	}
}

// BatchResult holds the findings for one job.
type BatchResult struct {
	Name    string
	Results []schemas.Result
}

// AnalyzeBatch analyzes jobs concurrently, each with its own registry, and returns
// their results in input order. The first failure cancels the remaining jobs.
// concurrency <= 0 uses GOMAXPROCS.
func AnalyzeBatch(ctx context.Context, a *Analyzer, catalog core.Catalog, jobs []Job, concurrency int) ([]BatchResult, error) {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	out := make([]BatchResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			program, err := job.Load(gctx)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", job.Name, err)
			}
			if program != nil && program.Recovered {
				a.logger.Warn("Program has syntax errors; unparsed regions are skipped", zap.String("name", job.Name))
			}
			results, err := a.Analyze(gctx, program, catalog)
			if err != nil {
				return fmt.Errorf("failed to analyze %s: %w", job.Name, err)
			}
			a.logger.Debug("Batch job finished", zap.String("name", job.Name), zap.Int("findings", len(results)))
			out[i] = BatchResult{Name: job.Name, Results: results}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
