// Filename: javascript/analyzer_test.go
package javascript

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/scalpel-taint/api/schemas"
	"github.com/xkilldash9x/scalpel-taint/internal/analysis/core"
	"github.com/xkilldash9x/scalpel-taint/internal/analysis/static/estree"
	"github.com/xkilldash9x/scalpel-taint/internal/config"
)

// -- Helpers --

func pattern(vuln string, sources, sanitizers, sinks []string) schemas.Pattern {
	return schemas.Pattern{Vulnerability: vuln, Sources: sources, Sanitizers: sanitizers, Sinks: sinks}
}

func result(vuln string, sources, sanitizers, sinks []string) schemas.Result {
	return schemas.Result{Vulnerability: vuln, Sources: sources, Sanitizers: sanitizers, Sinks: sinks}
}

// patternA is the single source/sanitizer/sink pattern most cases use.
var patternA = pattern("A", []string{"s"}, []string{"san"}, []string{"k"})

func parseProgram(t *testing.T, src string) *estree.Program {
	t.Helper()
	program, err := estree.ParseSource(context.Background(), "test.js", []byte(src))
	require.NoError(t, err)
	return program
}

func analyzeWith(t *testing.T, opts Options, src string, patterns ...schemas.Pattern) []schemas.Result {
	t.Helper()
	a := NewAnalyzer(zaptest.NewLogger(t), opts)
	results, err := a.Analyze(context.Background(), parseProgram(t, src), core.CompileCatalog(patterns))
	require.NoError(t, err)
	return results
}

func analyze(t *testing.T, src string, patterns ...schemas.Pattern) []schemas.Result {
	t.Helper()
	return analyzeWith(t, DefaultOptions(), src, patterns...)
}

func assertResults(t *testing.T, want, got []schemas.Result) {
	t.Helper()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

// -- Core Flows --

func TestBasicTaintFlow(t *testing.T) {
	got := analyze(t, `x = s(); k(x);`, patternA)
	assertResults(t, []schemas.Result{
		result("A", []string{"s"}, []string{}, []string{"k"}),
	}, got)
}

func TestSanitizationIsRecordedNotSuppressive(t *testing.T) {
	got := analyze(t, `x = s(); x = san(x); k(x);`, patternA)
	assertResults(t, []schemas.Result{
		result("A", []string{"s"}, []string{"san"}, []string{"k"}),
	}, got)
}

func TestOverwriteWithLiteralClearsTaint(t *testing.T) {
	got := analyze(t, `x = s(); x = 0; k(x);`, patternA)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSourceWithoutSinkIsNotReported(t *testing.T) {
	got := analyze(t, `x = s(); y = x;`, patternA)
	assert.Empty(t, got)
}

func TestPropagationThroughBinaryAndMembers(t *testing.T) {
	src := `
		a.b = s();
		y = "prefix" + a.b;
		k(y);
	`
	got := analyze(t, src, patternA)
	assertResults(t, []schemas.Result{
		result("A", []string{"s"}, []string{}, []string{"k"}),
	}, got)
}

func TestPropertyReadSource(t *testing.T) {
	p := pattern("XSS", []string{"location.hash"}, nil, []string{"eval"})
	got := analyze(t, `var h = location.hash; eval(h);`, p)
	assertResults(t, []schemas.Result{
		result("XSS", []string{"location.hash"}, []string{}, []string{"eval"}),
	}, got)
}

func TestAssignmentTargetSink(t *testing.T) {
	p := pattern("DOM", []string{"s"}, nil, []string{"el.innerHTML"})
	got := analyze(t, `el.innerHTML = s();`, p)
	assertResults(t, []schemas.Result{
		result("DOM", []string{"s"}, []string{}, []string{"el.innerHTML"}),
	}, got)
}

func TestSharedSourceDistinctPatterns(t *testing.T) {
	p1 := pattern("A", []string{"s"}, nil, []string{"k1"})
	p2 := pattern("B", []string{"s"}, nil, []string{"k2"})

	got := analyze(t, `x = s(); k1(x); k2(x);`, p1, p2)
	assertResults(t, []schemas.Result{
		result("A", []string{"s"}, []string{}, []string{"k1"}),
		result("B", []string{"s"}, []string{}, []string{"k2"}),
	}, got)
}

func TestIdenticalPatternsStayDistinct(t *testing.T) {
	p := pattern("A", []string{"s"}, nil, []string{"k"})
	got := analyze(t, `x = s(); k(x);`, p, p)
	assert.Len(t, got, 2, "each compiled pattern owns its own flow")
}

// -- Call Classification --

func TestCallSourceMergesIntoArgumentFlow(t *testing.T) {
	p := pattern("A", []string{"s", "g"}, nil, []string{"k"})
	got := analyze(t, `x = s(); y = g(x); k(y);`, p)
	assertResults(t, []schemas.Result{
		result("A", []string{"s", "g"}, []string{}, []string{"k"}),
	}, got)
}

func TestCallThatIsSinkAndSource(t *testing.T) {
	p := pattern("A", []string{"s", "f"}, nil, []string{"f"})
	got := analyze(t, `x = s(); f(x);`, p)
	assertResults(t, []schemas.Result{
		result("A", []string{"s"}, []string{}, []string{"f"}),
	}, got)
}

func TestCallThatIsSinkAndSource_RepeatedCall(t *testing.T) {
	// The second f(x) already has f as a sink, so f acts as a source on the
	// argument flow and the instance f created at the call is dropped.
	p := pattern("A", []string{"s", "f"}, nil, []string{"f"})
	got := analyze(t, `x = s(); f(x); f(x);`, p)
	assertResults(t, []schemas.Result{
		result("A", []string{"s", "f"}, []string{}, []string{"f"}),
	}, got)
}

func TestSinkRecordedOnce(t *testing.T) {
	got := analyze(t, `x = s(); k(x); k(x, x);`, patternA)
	assertResults(t, []schemas.Result{
		result("A", []string{"s"}, []string{}, []string{"k"}),
	}, got)
}

func TestUnnamedCalleeStillPropagates(t *testing.T) {
	// The callee has no name, so it plays no role, but its argument taint flows through.
	got := analyze(t, `x = s(); y = (function(){})(x); k(y);`, patternA)
	assertResults(t, []schemas.Result{
		result("A", []string{"s"}, []string{}, []string{"k"}),
	}, got)
}

// -- Control Flow --

func TestFunctionDeclarationWalkedInline(t *testing.T) {
	got := analyze(t, `function f() { x = s(); } k(x);`, patternA)
	assertResults(t, []schemas.Result{
		result("A", []string{"s"}, []string{}, []string{"k"}),
	}, got)
}

func TestUnsupportedStatementsAreSkipped(t *testing.T) {
	got := analyze(t, `for (;;) { x = s(); } k(x);`, patternA)
	assert.Empty(t, got)
}

func TestBranchMerge(t *testing.T) {
	branchBorn := `if (cond) { x = s(); } else { x = 0; } k(x);`
	sinkInBranch := `x = s(); if (cond) { k(x); }`

	tests := []struct {
		name   string
		policy BranchMerge
		src    string
		want   int
	}{
		{"isolate drops taint born in the consequent", BranchMergeIsolate, branchBorn, 0},
		{"rollback keeps taint born in the consequent", BranchMergeRollback, branchBorn, 1},
		{"shared keeps taint born in the consequent", BranchMergeShared, branchBorn, 1},
		{"isolate loses sinks added to existing flows", BranchMergeIsolate, sinkInBranch, 0},
		{"rollback loses sinks added to existing flows", BranchMergeRollback, sinkInBranch, 0},
		{"shared keeps sinks added to existing flows", BranchMergeShared, sinkInBranch, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.BranchMerge = tt.policy
			got := analyzeWith(t, opts, tt.src, patternA)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestBranchSinkInsideBornFlow(t *testing.T) {
	// A flow born and sunk inside the consequent survives every policy.
	for _, policy := range []BranchMerge{BranchMergeIsolate, BranchMergeRollback, BranchMergeShared} {
		opts := DefaultOptions()
		opts.BranchMerge = policy
		got := analyzeWith(t, opts, `if (c) { x = s(); k(x); }`, patternA)
		assertResults(t, []schemas.Result{
			result("A", []string{"s"}, []string{}, []string{"k"}),
		}, got)
	}
}

func TestAlternateDoesNotSeeConsequent(t *testing.T) {
	opts := DefaultOptions()
	opts.BranchMerge = BranchMergeRollback
	got := analyzeWith(t, opts, `if (c) { x = s(); } else { k(x); }`, patternA)
	assert.Empty(t, got)
}

func TestElseIfChain(t *testing.T) {
	got := analyze(t, `if (a) { y = 1; } else if (b) { x = s(); k(x); }`, patternA)
	assertResults(t, []schemas.Result{
		result("A", []string{"s"}, []string{}, []string{"k"}),
	}, got)
}

func TestLoopPasses(t *testing.T) {
	src := `x = s(); while (c) { k(y); y = x; }`

	tests := []struct {
		name   string
		passes int
		want   int
	}{
		{"single pass misses loop-carried taint", 1, 0},
		{"second pass reaches the sink", 2, 1},
		{"zero walks once per body statement", 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			opts.LoopPasses = tt.passes
			assert.Len(t, analyzeWith(t, opts, src, patternA), tt.want)
		})
	}
}

func TestEqualityCorrelation(t *testing.T) {
	t.Run("equality test taints the other side", func(t *testing.T) {
		got := analyze(t, `x = s(); if (x == y) {} k(y);`, patternA)
		assertResults(t, []schemas.Result{
			result("A", []string{"s"}, []string{}, []string{"k"}),
		}, got)
	})

	t.Run("correlation is symmetric", func(t *testing.T) {
		got := analyze(t, `x = s(); while (y == x) {} k(y);`, patternA)
		assert.Len(t, got, 1)
	})

	t.Run("strict equality is ignored by default", func(t *testing.T) {
		got := analyze(t, `x = s(); if (x === y) {} k(y);`, patternA)
		assert.Empty(t, got)
	})

	t.Run("configured operators correlate", func(t *testing.T) {
		opts := DefaultOptions()
		opts.EqualityOperators = []string{"==", "==="}
		got := analyzeWith(t, opts, `x = s(); if (x === y) {} k(y);`, patternA)
		assert.Len(t, got, 1)
	})

	t.Run("other comparisons do not correlate", func(t *testing.T) {
		got := analyze(t, `x = s(); if (x < y) {} k(y);`, patternA)
		assert.Empty(t, got)
	})
}

// -- Analyzer Contract --

func TestAnalyze_Idempotent(t *testing.T) {
	src := `
		x = s();
		if (x == y) { z = san(y); }
		while (c) { k(x); w = x; }
		k(w);
	`
	first := analyze(t, src, patternA)
	second := analyze(t, src, patternA)
	assertResults(t, first, second)
	assert.NotEmpty(t, first)
}

func TestAnalyze_ESTreeParity(t *testing.T) {
	estreeJSON := `{
	  "type": "Program",
	  "body": [
	    {"type": "ExpressionStatement", "expression": {
	      "type": "AssignmentExpression", "operator": "=",
	      "left": {"type": "Identifier", "name": "x"},
	      "right": {"type": "CallExpression", "callee": {"type": "Identifier", "name": "s"}, "arguments": []}}},
	    {"type": "ExpressionStatement", "expression": {
	      "type": "CallExpression", "callee": {"type": "Identifier", "name": "k"},
	      "arguments": [{"type": "Identifier", "name": "x"}]}}
	  ]
	}`
	program, err := estree.Decode([]byte(estreeJSON))
	require.NoError(t, err)

	a := NewAnalyzer(zaptest.NewLogger(t), DefaultOptions())
	fromJSON, err := a.Analyze(context.Background(), program, core.CompileCatalog([]schemas.Pattern{patternA}))
	require.NoError(t, err)

	assertResults(t, analyze(t, `x = s(); k(x);`, patternA), fromJSON)
}

// estreeProgram wraps ESTree statement JSON in a Program and decodes it.
func estreeProgram(t *testing.T, statements ...string) *estree.Program {
	t.Helper()
	data := `{"type": "Program", "body": [` + strings.Join(statements, ",") + `]}`
	program, err := estree.Decode([]byte(data))
	require.NoError(t, err)
	return program
}

const (
	estreeCallS   = `{"type": "CallExpression", "callee": {"type": "Identifier", "name": "s"}, "arguments": []}`
	estreeAssignX = `{"type": "ExpressionStatement", "expression": {"type": "AssignmentExpression", "operator": "=", "left": {"type": "Identifier", "name": "x"}, "right": %s}}`
	estreeSinkX   = `{"type": "ExpressionStatement", "expression": {"type": "CallExpression", "callee": {"type": "Identifier", "name": "k"}, "arguments": [{"type": "Identifier", "name": "x"}]}}`
)

func TestAnalyze_ExtendedSyntax(t *testing.T) {
	tests := []struct {
		name       string
		statements []string
	}{
		{
			name: "logical expression",
			statements: []string{
				fmt.Sprintf(estreeAssignX, `{"type": "LogicalExpression", "operator": "||", "left": {"type": "Identifier", "name": "a"}, "right": `+estreeCallS+`}`),
				estreeSinkX,
			},
		},
		{
			name: "new expression",
			statements: []string{
				fmt.Sprintf(estreeAssignX, `{"type": "NewExpression", "callee": {"type": "Identifier", "name": "s"}, "arguments": []}`),
				estreeSinkX,
			},
		},
		{
			name: "nested block statement",
			statements: []string{
				`{"type": "BlockStatement", "body": [` + fmt.Sprintf(estreeAssignX, estreeCallS) + `]}`,
				estreeSinkX,
			},
		},
		{
			name: "new expression statement reaching a sink",
			statements: []string{
				fmt.Sprintf(estreeAssignX, estreeCallS),
				`{"type": "ExpressionStatement", "expression": {"type": "NewExpression", "callee": {"type": "Identifier", "name": "k"}, "arguments": [{"type": "Identifier", "name": "x"}]}}`,
			},
		},
	}

	catalog := core.CompileCatalog([]schemas.Pattern{patternA})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program := estreeProgram(t, tt.statements...)

			plain := NewAnalyzer(zaptest.NewLogger(t), DefaultOptions())
			got, err := plain.Analyze(context.Background(), program, catalog)
			require.NoError(t, err)
			assert.Empty(t, got, "unmodelled nodes carry no taint by default")

			opts := DefaultOptions()
			opts.ExtendedSyntax = true
			extended := NewAnalyzer(zaptest.NewLogger(t), opts)
			got, err = extended.Analyze(context.Background(), program, catalog)
			require.NoError(t, err)
			assertResults(t, []schemas.Result{
				result("A", []string{"s"}, []string{}, []string{"k"}),
			}, got)
		})
	}
}

func TestAnalyze_NilProgram(t *testing.T) {
	a := NewAnalyzer(nil, DefaultOptions())
	_, err := a.Analyze(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrNilProgram)
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := NewAnalyzer(zaptest.NewLogger(t), DefaultOptions())
	_, err := a.Analyze(ctx, parseProgram(t, `x = s();`), core.CompileCatalog([]schemas.Pattern{patternA}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestAnalyze_EmptyProgram(t *testing.T) {
	got := analyze(t, "", patternA)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := OptionsFromConfig(configFor("Shared", 3, nil))
	require.NoError(t, err)
	assert.Equal(t, BranchMergeShared, opts.BranchMerge)
	assert.Equal(t, 3, opts.LoopPasses)
	assert.Equal(t, []string{"=="}, opts.EqualityOperators)

	_, err = OptionsFromConfig(configFor("union", 1, nil))
	assert.Error(t, err)

	opts, err = OptionsFromConfig(configFor("", 1, []string{"==="}))
	require.NoError(t, err)
	assert.Equal(t, BranchMergeIsolate, opts.BranchMerge)
	assert.Equal(t, []string{"==="}, opts.EqualityOperators)
	assert.False(t, opts.ExtendedSyntax)

	cfg := configFor("", 1, nil)
	cfg.ExtendedSyntax = true
	opts, err = OptionsFromConfig(cfg)
	require.NoError(t, err)
	assert.True(t, opts.ExtendedSyntax)
}

func configFor(merge string, passes int, operators []string) config.AnalysisConfig {
	return config.AnalysisConfig{BranchMerge: merge, LoopPasses: passes, EqualityOperators: operators}
}
