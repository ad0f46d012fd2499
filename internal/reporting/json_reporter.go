// internal/reporting/json_reporter.go
package reporting

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-taint/api/schemas"
	"github.com/xkilldash9x/scalpel-taint/internal/observability"
)

// JSONReporter writes the flat result array used by the tool's historical
// output files: [{"vulnerability":..,"sources":[..],"sanitizers":[..],"sinks":[..]}].
// Results from every written envelope are concatenated. It is thread safe.
type JSONReporter struct {
	writer  io.WriteCloser
	logger  *zap.Logger
	mu      sync.Mutex
	results []schemas.Result
}

// NewJSONReporter creates a reporter that writes a JSON array on Close.
func NewJSONReporter(writer io.WriteCloser) *JSONReporter {
	return &JSONReporter{
		writer:  writer,
		logger:  observability.GetLogger().Named("json_reporter"),
		results: []schemas.Result{},
	}
}

// Write buffers the envelope's results.
func (r *JSONReporter) Write(result *schemas.ResultEnvelope) error {
	if result == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result.Results...)
	return nil
}

// Close writes the array and closes the writer.
func (r *JSONReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, encodeErr := json.Marshal(r.results)
	if encodeErr == nil {
		_, encodeErr = r.writer.Write(data)
	}
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to write JSON results", zap.Error(encodeErr))
		return fmt.Errorf("failed to write JSON output: %w", encodeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	r.logger.Debug("Wrote JSON results", zap.Int("results", len(r.results)))
	return nil
}

// EnvelopeReporter pretty-prints every envelope as it is written, one JSON
// document per program.
type EnvelopeReporter struct {
	writer io.WriteCloser
	mu     sync.Mutex
}

// NewEnvelopeReporter creates a reporter that streams envelopes to writer.
func NewEnvelopeReporter(writer io.WriteCloser) *EnvelopeReporter {
	return &EnvelopeReporter{writer: writer}
}

// Write encodes result immediately.
func (r *EnvelopeReporter) Write(result *schemas.ResultEnvelope) error {
	if result == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result envelope: %w", err)
	}
	if _, err := r.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write result envelope: %w", err)
	}
	return nil
}

// Close closes the writer.
func (r *EnvelopeReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writer.Close()
}
