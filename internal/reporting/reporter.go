// -- internal/reporting/reporter.go --
package reporting

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/scalpel-taint/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Output formats accepted by New.
const (
	FormatJSON   = "json"
	FormatSARIF  = "sarif"
	FormatStdout = "stdout"
)

// Reporter defines the interface for writing analysis results to an output.
type Reporter interface {
	// Write processes the results of one program.
	Write(result *schemas.ResultEnvelope) error
	// Close finalizes the report and closes any underlying resources (e.g., file handles).
	Close() error
}

// nopWriteCloser wraps an io.Writer and provides a no-op Close method.
type nopWriteCloser struct {
	io.Writer
}

func (nwc *nopWriteCloser) Close() error {
	return nil
}

// New creates a reporter for format writing to outputPath. An empty path or
// "stdout" writes to standard output.
func New(format, outputPath, toolVersion string) (Reporter, error) {
	switch format {
	case FormatJSON, FormatSARIF, FormatStdout:
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	var writer io.WriteCloser
	if outputPath == "" || outputPath == "stdout" || format == FormatStdout {
		writer = &nopWriteCloser{os.Stdout}
	} else {
		f, err := os.Create(outputPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		writer = f
	}

	// Each reporter takes ownership of the writer.
	switch format {
	case FormatSARIF:
		return NewSARIFReporter(writer, toolVersion), nil
	case FormatStdout:
		return NewEnvelopeReporter(writer), nil
	default:
		return NewJSONReporter(writer), nil
	}
}

// OutputPath derives the report file for input: the base name up to its first
// dot, plus ".output.json" (or ".output.sarif"). The file goes next to the input
// unless dir is set.
func OutputPath(input, dir, format string) string {
	base := filepath.Base(input)
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	ext := ".output.json"
	if format == FormatSARIF {
		ext = ".output.sarif"
	}
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, base+ext)
}
