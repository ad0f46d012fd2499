// internal/reporting/sarif_reporter.go
package reporting

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-taint/api/schemas"
	"github.com/xkilldash9x/scalpel-taint/internal/observability"
	"github.com/xkilldash9x/scalpel-taint/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "Scalpel Taint"
	ToolInfoURI  = "https://github.com/xkilldash9x/scalpel-taint"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"
)

// ruleIDSanitizer allows alphanumerics, underscore and dot. Every other run of
// characters collapses into a single hyphen.
var ruleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.]+`)

// SARIFReporter implements the Reporter interface for the SARIF 2.1.0 format.
// There is one rule per vulnerability name and one result per reported flow.
// It is thread safe.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects the log structure and the maps.
	mu sync.Mutex
	// ruleIndex maps a vulnerability name to its position in the driver's rules.
	ruleIndex map[string]int
	// ruleIDUsage counts base rule IDs so distinct names that sanitize to the same
	// ID get a suffix.
	ruleIDUsage   map[string]int
	artifactIndex map[string]int
}

// NewSARIFReporter creates a new reporter that writes SARIF output on Close.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string) *SARIFReporter {
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						Rules:          []*sarif.ReportingDescriptor{},
					},
				},
				// Empty, not nil, so the report always carries "results": [].
				Results: []*sarif.Result{},
			},
		},
	}

	return &SARIFReporter{
		writer:        writer,
		logger:        observability.GetLogger().Named("sarif_reporter"),
		log:           log,
		ruleIndex:     make(map[string]int),
		ruleIDUsage:   make(map[string]int),
		artifactIndex: make(map[string]int),
	}
}

// Write converts every flow in the envelope into a SARIF result.
func (r *SARIFReporter) Write(result *schemas.ResultEnvelope) error {
	if result == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	artifact := r.ensureArtifact(result.Program)

	for i, flow := range result.Results {
		index := r.ensureRule(flow.Vulnerability)
		rule := run.Tool.Driver.Rules[index]

		level, kind := sarif.LevelError, sarif.KindFail
		if len(flow.Sanitizers) > 0 {
			level, kind = sarif.LevelWarning, sarif.KindReview
		}

		run.Results = append(run.Results, &sarif.Result{
			RuleID:    rule.ID,
			RuleIndex: index,
			Message:   &sarif.Message{Text: pString(describeFlow(flow))},
			Level:     level,
			Kind:      kind,
			Locations: []*sarif.Location{{
				PhysicalLocation: &sarif.PhysicalLocation{
					ArtifactLocation: &sarif.ArtifactLocation{URI: pString(result.Program), Index: &artifact},
				},
			}},
			PartialFingerprints: map[string]string{"taintFlow/v1": fingerprint(result.Program, i, flow)},
			Properties: &sarif.PropertyBag{
				"sources":    flow.Sources,
				"sanitizers": flow.Sanitizers,
				"sinks":      flow.Sinks,
			},
		})
	}

	if len(result.Results) > 0 {
		r.logger.Debug("Wrote flows to SARIF buffer",
			zap.String("program", result.Program),
			zap.Int("flows", len(result.Results)))
	}
	return nil
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	startTime := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	r.logger.Info("Finalizing SARIF report",
		zap.Int("total_results", len(run.Results)),
		zap.Int("total_rules", len(run.Tool.Driver.Rules)),
	)

	data, encodeErr := json.MarshalIndent(r.log, "", "  ")
	if encodeErr == nil {
		_, encodeErr = r.writer.Write(append(data, '\n'))
	}
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode SARIF log to JSON", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}

	r.logger.Debug("Successfully wrote SARIF report", zap.Duration("duration", time.Since(startTime)))
	return nil
}

// sanitizeRuleName creates a standardized base name for the rule ID.
func sanitizeRuleName(name string) string {
	if name == "" {
		return "UNNAMED-VULNERABILITY"
	}
	sanitized := strings.Trim(ruleIDSanitizer.ReplaceAllString(strings.ToUpper(name), "-"), "-")
	if sanitized == "" {
		return "UNKNOWN-VULNERABILITY"
	}
	return sanitized
}

// ensureRule returns the index of the rule for vulnerability, registering it on
// first use. Must be called while holding the mutex.
func (r *SARIFReporter) ensureRule(vulnerability string) int {
	if index, ok := r.ruleIndex[vulnerability]; ok {
		return index
	}

	baseRuleID := "TAINT-" + sanitizeRuleName(vulnerability)
	usage := r.ruleIDUsage[baseRuleID]
	r.ruleIDUsage[baseRuleID] = usage + 1

	ruleID := baseRuleID
	if usage > 0 {
		ruleID = fmt.Sprintf("%s-%d", baseRuleID, usage)
		r.logger.Debug("Rule ID collision detected, generated new ID with suffix",
			zap.String("base_id", baseRuleID),
			zap.String("final_id", ruleID))
	}

	driver := r.log.Runs[0].Tool.Driver
	markdownHelp := fmt.Sprintf("**Vulnerability:** %s\n\nData from a source of this pattern reached one of its sinks. "+
		"Flows that passed a sanitizer are reported as warnings for review.", vulnerability)

	driver.Rules = append(driver.Rules, &sarif.ReportingDescriptor{
		ID:               ruleID,
		Name:             pString(vulnerability),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(vulnerability)},
		FullDescription:  &sarif.MultiformatMessageString{Text: pString("Tainted data flow: " + vulnerability)},
		Help: &sarif.MultiformatMessageString{
			Text:     pString("Review the flow from source to sink and sanitize the value before it reaches the sink."),
			Markdown: pString(markdownHelp),
		},
		Properties: &sarif.PropertyBag{
			"tags":      []string{"security", "taint"},
			"precision": "medium",
		},
	})
	index := len(driver.Rules) - 1
	r.ruleIndex[vulnerability] = index
	return index
}

// ensureArtifact returns the artifact index for program. Must be called while
// holding the mutex.
func (r *SARIFReporter) ensureArtifact(program string) int {
	if index, ok := r.artifactIndex[program]; ok {
		return index
	}
	run := r.log.Runs[0]
	run.Artifacts = append(run.Artifacts, &sarif.Artifact{Location: &sarif.ArtifactLocation{URI: pString(program)}})
	index := len(run.Artifacts) - 1
	r.artifactIndex[program] = index
	return index
}

// describeFlow renders "sources -> sanitizers -> sinks". The sanitizer step is
// omitted for unsanitized flows.
func describeFlow(flow schemas.Result) string {
	parts := []string{strings.Join(flow.Sources, ", ")}
	if len(flow.Sanitizers) > 0 {
		parts = append(parts, strings.Join(flow.Sanitizers, ", "))
	}
	parts = append(parts, strings.Join(flow.Sinks, ", "))
	return fmt.Sprintf("%s: %s", flow.Vulnerability, strings.Join(parts, " -> "))
}

// fingerprint identifies a flow across runs of the same program.
func fingerprint(program string, ordinal int, flow schemas.Result) string {
	h := sha1.New()
	fmt.Fprintf(h, "%s\x00%d\x00%s\x00%s\x00%s\x00%s",
		program, ordinal, flow.Vulnerability,
		strings.Join(flow.Sources, ","), strings.Join(flow.Sanitizers, ","), strings.Join(flow.Sinks, ","))
	return hex.EncodeToString(h.Sum(nil))
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}
