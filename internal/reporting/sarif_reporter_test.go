// internal/reporting/sarif_reporter_test.go
package reporting_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scalpel-taint/api/schemas"
	"github.com/xkilldash9x/scalpel-taint/internal/reporting"
	"github.com/xkilldash9x/scalpel-taint/internal/reporting/sarif"
)

func setupSARIFTest(_ *testing.T) (*reporting.SARIFReporter, *MockWriteCloser) {
	w := newMockWriter()
	return reporting.NewSARIFReporter(w, "v1.2.3-test"), w
}

func decodeSARIF(t *testing.T, w *MockWriteCloser) sarif.Log {
	t.Helper()
	var log sarif.Log
	require.NoError(t, json.Unmarshal(w.Buffer.Bytes(), &log), "Output should be valid SARIF JSON")
	require.Len(t, log.Runs, 1)
	return log
}

func TestSARIFReporter_Initialization(t *testing.T) {
	reporter, w := setupSARIFTest(t)
	require.NoError(t, reporter.Close())

	log := decodeSARIF(t, w)
	assert.Equal(t, reporting.SARIFVersion, log.Version)
	run := log.Runs[0]
	require.NotNil(t, run.Tool)
	require.NotNil(t, run.Tool.Driver)
	assert.Equal(t, reporting.ToolName, run.Tool.Driver.Name)
	assert.Equal(t, "v1.2.3-test", *run.Tool.Driver.Version)
	require.NotNil(t, run.Results)
	assert.Empty(t, run.Results)
	assert.Empty(t, run.Tool.Driver.Rules)
	assert.True(t, w.Closed)
}

func TestSARIFReporter_WriteFlows(t *testing.T) {
	reporter, w := setupSARIFTest(t)

	require.NoError(t, reporter.Write(sampleEnvelope()))
	// The same vulnerability in a second program reuses the rule.
	second := sampleEnvelope()
	second.Program = "other.json"
	second.Results = second.Results[:1]
	require.NoError(t, reporter.Write(second))
	require.NoError(t, reporter.Close())

	run := decodeSARIF(t, w).Runs[0]
	require.Len(t, run.Tool.Driver.Rules, 2)
	assert.Equal(t, "TAINT-A", run.Tool.Driver.Rules[0].ID)
	assert.Equal(t, "TAINT-B", run.Tool.Driver.Rules[1].ID)
	require.Len(t, run.Artifacts, 2)

	require.Len(t, run.Results, 3)
	unsanitized, sanitized, repeat := run.Results[0], run.Results[1], run.Results[2]

	assert.Equal(t, sarif.LevelError, unsanitized.Level)
	assert.Equal(t, sarif.KindFail, unsanitized.Kind)
	assert.Equal(t, "A: s -> k", *unsanitized.Message.Text)

	assert.Equal(t, sarif.LevelWarning, sanitized.Level)
	assert.Equal(t, sarif.KindReview, sanitized.Kind)
	assert.Equal(t, "B: u -> z -> k2", *sanitized.Message.Text)
	assert.Equal(t, 1, sanitized.RuleIndex)

	assert.Equal(t, "TAINT-A", repeat.RuleID)
	require.Len(t, repeat.Locations, 1)
	assert.Equal(t, "other.json", *repeat.Locations[0].PhysicalLocation.ArtifactLocation.URI)
	assert.Equal(t, 1, *repeat.Locations[0].PhysicalLocation.ArtifactLocation.Index)
	assert.NotEqual(t, unsanitized.PartialFingerprints["taintFlow/v1"], repeat.PartialFingerprints["taintFlow/v1"])
}

func TestSARIFReporter_RuleIDCollisions(t *testing.T) {
	reporter, w := setupSARIFTest(t)

	require.NoError(t, reporter.Write(&schemas.ResultEnvelope{
		Program: "p",
		Results: []schemas.Result{
			{Vulnerability: "SQL Injection", Sources: []string{"s"}, Sinks: []string{"k"}},
			{Vulnerability: "sql-injection", Sources: []string{"s"}, Sinks: []string{"k"}},
			{Vulnerability: "!!!", Sources: []string{"s"}, Sinks: []string{"k"}},
		},
	}))
	require.NoError(t, reporter.Close())

	rules := decodeSARIF(t, w).Runs[0].Tool.Driver.Rules
	require.Len(t, rules, 3)
	assert.Equal(t, "TAINT-SQL-INJECTION", rules[0].ID)
	assert.Equal(t, "TAINT-SQL-INJECTION-1", rules[1].ID)
	assert.Equal(t, "TAINT-UNKNOWN-VULNERABILITY", rules[2].ID)
}

func TestSARIFReporter_ConcurrentWrites(t *testing.T) {
	reporter, w := setupSARIFTest(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			env := sampleEnvelope()
			env.Program = fmt.Sprintf("prog-%d.json", i)
			assert.NoError(t, reporter.Write(env))
		}(i)
	}
	wg.Wait()
	require.NoError(t, reporter.Close())

	run := decodeSARIF(t, w).Runs[0]
	assert.Len(t, run.Results, 40)
	assert.Len(t, run.Artifacts, 20)
	assert.Len(t, run.Tool.Driver.Rules, 2)
}

func TestSARIFReporter_WriteError(t *testing.T) {
	reporter, w := setupSARIFTest(t)
	w.FailWrite = true

	err := reporter.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to encode SARIF output")
	assert.True(t, w.Closed, "writer must be closed even when encoding fails")
}
