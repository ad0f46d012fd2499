// Filename: javascript/definitions.go
// Package javascript implements flow-sensitive, pattern-driven taint analysis over
// ESTree-shaped JavaScript programs.
// This file contains the tunable analysis options.
package javascript

import (
	"fmt"
	"slices"
	"strings"

	"github.com/xkilldash9x/scalpel-taint/internal/config"
)

// BranchMerge selects what survives an if statement's consequent once the
// alternate has been walked.
type BranchMerge string

const (
	// BranchMergeIsolate rolls back every instance that existed before the branch
	// and keeps instances born in the consequent, minus the names they tainted
	// there. Nothing tainted inside the consequent is visible after the if.
	BranchMergeIsolate BranchMerge = "isolate"
	// BranchMergeRollback rolls back instances that existed before the branch and
	// keeps consequent-born instances exactly as the consequent left them.
	BranchMergeRollback BranchMerge = "rollback"
	// BranchMergeShared only restores registry membership. Changes the consequent
	// made to pre-existing instances persist.
	BranchMergeShared BranchMerge = "shared"
)

// ParseBranchMerge validates a configured merge policy. The empty string maps to
// BranchMergeIsolate.
func ParseBranchMerge(s string) (BranchMerge, error) {
	switch m := BranchMerge(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return BranchMergeIsolate, nil
	case BranchMergeIsolate, BranchMergeRollback, BranchMergeShared:
		return m, nil
	default:
		return "", fmt.Errorf("unknown branch merge policy %q (want isolate, rollback or shared)", s)
	}
}

// Options tune the walker. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// LoopPasses is how many times a while body is walked. Zero or less walks the
	// body once per statement it contains.
	LoopPasses int
	// BranchMerge is the if statement merge policy.
	BranchMerge BranchMerge
	// EqualityOperators are the binary operators that trigger equality
	// correlation in if/while tests.
	EqualityOperators []string
	// ExtendedSyntax makes the walker follow LogicalExpression and NewExpression
	// nodes and walk a BlockStatement that appears as a statement. Off, those
	// expressions are untainted and such blocks are skipped.
	ExtendedSyntax bool
}

// DefaultOptions walks loops once, isolates branches and correlates on "==".
func DefaultOptions() Options {
	return Options{
		LoopPasses:        1,
		BranchMerge:       BranchMergeIsolate,
		EqualityOperators: []string{"=="},
	}
}

// OptionsFromConfig builds Options from the analysis section of the config.
func OptionsFromConfig(cfg config.AnalysisConfig) (Options, error) {
	merge, err := ParseBranchMerge(cfg.BranchMerge)
	if err != nil {
		return Options{}, err
	}
	opts := DefaultOptions()
	opts.LoopPasses = cfg.LoopPasses
	opts.BranchMerge = merge
	opts.ExtendedSyntax = cfg.ExtendedSyntax
	if len(cfg.EqualityOperators) > 0 {
		opts.EqualityOperators = slices.Clone(cfg.EqualityOperators)
	}
	return opts, nil
}

func (o Options) isEquality(op string) bool {
	return slices.Contains(o.EqualityOperators, op)
}
