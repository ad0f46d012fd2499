// Filename: estree/load.go
package estree

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Frontend selects how a program file is turned into a tree.
type Frontend string

const (
	// FrontendAuto picks by file extension: .js/.mjs/.cjs are parsed as source,
	// everything else is read as ESTree JSON.
	FrontendAuto Frontend = "auto"
	// FrontendESTree reads ESTree JSON.
	FrontendESTree Frontend = "estree"
	// FrontendTreeSitter parses JavaScript source with Tree-sitter.
	FrontendTreeSitter Frontend = "treesitter"
)

// ParseFrontend validates a configured front end name. The empty string maps to
// FrontendAuto.
func ParseFrontend(s string) (Frontend, error) {
	switch f := Frontend(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FrontendAuto, nil
	case FrontendAuto, FrontendESTree, FrontendTreeSitter:
		return f, nil
	default:
		return "", fmt.Errorf("unknown front end %q (want auto, estree or treesitter)", s)
	}
}

// Resolve returns the concrete front end used for path.
func (f Frontend) Resolve(path string) Frontend {
	if f != FrontendAuto && f != "" {
		return f
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".mjs", ".cjs":
		return FrontendTreeSitter
	default:
		return FrontendESTree
	}
}

// Load reads path and builds its program tree with the selected front end.
func Load(ctx context.Context, path string, frontend Frontend) (*Program, error) {
	switch frontend.Resolve(path) {
	case FrontendTreeSitter:
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read source %s: %w", path, err)
		}
		return ParseSource(ctx, path, src)
	default:
		return DecodeFile(path)
	}
}
