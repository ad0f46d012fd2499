// Filename: javascript/walker.go
// Core logic for traversing the program tree and tracking taint flow.
package javascript

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-taint/internal/analysis/core"
	"github.com/xkilldash9x/scalpel-taint/internal/analysis/static/estree"
)

// astWalker holds the state of one analysis run. Statements are processed in
// order; expression handlers consult and mutate the registry as a side effect.
type astWalker struct {
	logger   *zap.Logger
	catalog  core.Catalog
	opts     Options
	registry *Registry
}

func newASTWalker(logger *zap.Logger, catalog core.Catalog, opts Options) *astWalker {
	return &astWalker{
		logger:   logger.Named("js_walker"),
		catalog:  catalog,
		opts:     opts,
		registry: NewRegistry(),
	}
}

// -- Statements --

// walk processes a statement list in order.
func (w *astWalker) walk(stmts []estree.Node) {
	for _, stmt := range stmts {
		w.walkStatement(stmt)
	}
}

func (w *astWalker) walkStatement(stmt estree.Node) {
	switch s := stmt.(type) {
	case *estree.FunctionDeclaration:
		// Walked inline, in the same flow scope as the declaration.
		if s.Body != nil {
			w.walk(s.Body.Body)
		}

	case *estree.ExpressionStatement:
		switch expr := s.Expression.(type) {
		case *estree.AssignmentExpression:
			w.propagateAssignment(expr)
		case *estree.CallExpression:
			if w.modelled(expr) {
				w.evaluateCall(expr)
			}
		}

	case *estree.WhileStatement:
		w.walkWhile(s)

	case *estree.IfStatement:
		w.walkIf(s)

	case *estree.BlockStatement:
		if !w.opts.ExtendedSyntax {
			w.logger.Debug("Skipping nested block", zap.Stringer("pos", s.Pos()))
			return
		}
		w.walk(s.Body)

	case nil:
		// Nothing to do.

	default:
		w.logger.Debug("Skipping unsupported statement",
			zap.String("kind", string(stmt.Kind())),
			zap.Stringer("pos", stmt.Pos()))
	}
}

func (w *astWalker) walkWhile(s *estree.WhileStatement) {
	w.evaluate(s.Test)
	w.correlateTest(s.Test)

	body := estree.Statements(s.Body)
	passes := w.opts.LoopPasses
	if passes <= 0 {
		passes = len(body)
	}
	for i := 0; i < passes; i++ {
		w.walk(body)
	}
}

// walkIf walks both branches from the same starting state and merges them.
// Instances born in the consequent survive the merge; everything else follows
// the configured BranchMerge policy.
func (w *astWalker) walkIf(s *estree.IfStatement) {
	w.evaluate(s.Test)
	w.correlateTest(s.Test)

	snapshot := w.registry.Snapshot()
	w.walk(estree.Statements(s.Consequent))
	born := w.registry.BornSince(snapshot)

	w.registry.Restore(snapshot, w.opts.BranchMerge != BranchMergeShared)
	if s.Alternate != nil {
		w.walk(estree.Statements(s.Alternate))
	}

	if w.opts.BranchMerge == BranchMergeIsolate {
		for _, v := range born {
			v.tainted = nil
		}
	}
	w.registry.Append(born...)

	if len(born) > 0 {
		w.logger.Debug("Merged branch",
			zap.Stringer("pos", s.Pos()),
			zap.Ints("born", vulnIDs(born)),
			zap.Int("live", w.registry.Len()))
	}
}

// -- Expressions --

// modelled reports whether expr is a node kind the walker tracks. Logical and
// constructor variants of binary and call nodes are only followed with
// ExtendedSyntax.
func (w *astWalker) modelled(expr estree.Node) bool {
	if w.opts.ExtendedSyntax {
		return true
	}
	switch e := expr.(type) {
	case *estree.BinaryExpression:
		return !e.Logical
	case *estree.CallExpression:
		return !e.New
	default:
		return true
	}
}

// evaluate returns the instances tainting expr. The result is a concatenation, so
// an instance reached through several operands appears several times.
func (w *astWalker) evaluate(expr estree.Node) []*Vuln {
	if !w.modelled(expr) {
		return nil
	}
	switch e := expr.(type) {
	case *estree.BinaryExpression:
		return append(w.evaluate(e.Left), w.evaluate(e.Right)...)

	case *estree.Literal:
		return nil

	case *estree.Identifier, *estree.MemberExpression:
		name, ok := resolveName(e)
		if !ok {
			return nil
		}
		return w.evaluateName(name)

	case *estree.CallExpression:
		return w.evaluateCall(e)

	default:
		return nil
	}
}

// evaluateName starts a new flow for every pattern that lists name as a source,
// then adds every live flow that currently marks name.
func (w *astWalker) evaluateName(name string) []*Vuln {
	var tainted []*Vuln
	for _, p := range w.catalog.SourcesOf(name) {
		v := w.registry.New(p, name)
		w.logger.Debug("Source reached", zap.String("name", name), zap.String("vulnerability", p.Vulnerability()), zap.Int("vuln", v.ID))
		tainted = append(tainted, v)
	}
	for _, v := range w.registry.Live() {
		if v.Taints(name) {
			tainted = append(tainted, v)
		}
	}
	return tainted
}

// evaluateCall classifies a call against the flows reaching its arguments.
// Sanitizer and sink roles are recorded on those flows; only the source role can
// start a new flow at a call site.
func (w *astWalker) evaluateCall(call *estree.CallExpression) []*Vuln {
	name, named := resolveName(call.Callee)

	var tainted []*Vuln
	// The most recently created callee-source instance. It is dropped again if an
	// argument's flow for the same pattern absorbs the source role.
	var candidate *Vuln
	if named {
		for _, p := range w.catalog.SourcesOf(name) {
			candidate = w.registry.New(p, name)
			tainted = append(tainted, candidate)
		}
	}

	for _, arg := range call.Arguments {
		for _, v := range w.evaluate(arg) {
			if named {
				w.classify(name, v, &candidate, &tainted)
			}
			tainted = append(tainted, v)
		}
	}
	return tainted
}

func (w *astWalker) classify(name string, v *Vuln, candidate **Vuln, tainted *[]*Vuln) {
	p := v.Pattern()
	switch {
	case p.IsSanitizer(name) && !v.hasSanitizer(name):
		v.addSanitizer(name)
		w.logger.Debug("Sanitizer reached", zap.String("name", name), zap.Int("vuln", v.ID))

	case p.IsSink(name) && !v.hasSink(name):
		v.addSink(name)
		w.logger.Debug("Sink reached", zap.String("name", name), zap.Int("vuln", v.ID))

	case p.IsSource(name) && !v.hasSource(name):
		v.addSource(name)
		if c := *candidate; c != nil && c.Pattern() == p && w.registry.Remove(c) {
			*tainted = removeFirstVuln(*tainted, c)
			*candidate = nil
			w.logger.Debug("Merged call source into argument flow", zap.String("name", name), zap.Int("vuln", v.ID), zap.Int("dropped", c.ID))
		}
	}
}

// propagateAssignment moves taint onto the assigned name and clears taint the
// right-hand side no longer carries.
func (w *astWalker) propagateAssignment(assign *estree.AssignmentExpression) {
	left := w.evaluate(assign.Left)
	right := w.evaluate(assign.Right)

	name, ok := resolveName(assign.Left)
	if !ok {
		w.logger.Debug("Assignment target has no name", zap.Stringer("pos", assign.Pos()))
		return
	}

	for _, v := range right {
		if containsVuln(left, v) {
			continue
		}
		v.taint(name)
		if v.Pattern().IsSink(name) && !v.hasSink(name) {
			v.addSink(name)
			w.logger.Debug("Sink reached by assignment", zap.String("name", name), zap.Int("vuln", v.ID))
		}
	}

	for _, v := range left {
		if !containsVuln(right, v) {
			v.untaint(name)
		}
	}
}

// correlateTest applies equality correlation when test is an equality comparison.
func (w *astWalker) correlateTest(test estree.Node) {
	if b, ok := test.(*estree.BinaryExpression); ok && w.opts.isEquality(b.Operator) {
		w.correlateEquality(b)
	}
}

// correlateEquality makes each side's flows reachable through the other side's
// name. It never removes taint.
func (w *astWalker) correlateEquality(b *estree.BinaryExpression) {
	left := w.evaluate(b.Left)
	right := w.evaluate(b.Right)

	if rightName, ok := resolveName(b.Right); ok {
		for _, v := range left {
			if !containsVuln(right, v) {
				v.taint(rightName)
			}
		}
	}
	if leftName, ok := resolveName(b.Left); ok {
		for _, v := range right {
			if !containsVuln(left, v) {
				v.taint(leftName)
			}
		}
	}
}
