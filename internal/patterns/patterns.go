// File: internal/patterns/patterns.go
// Package patterns loads and validates vulnerability pattern catalogs.
package patterns

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"sigs.k8s.io/yaml"

	"github.com/xkilldash9x/scalpel-taint/api/schemas"
	"github.com/xkilldash9x/scalpel-taint/internal/analysis/core"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrUnsupportedFormat is returned for catalog files that are neither JSON nor YAML.
var ErrUnsupportedFormat = errors.New("unsupported pattern catalog format")

// Load reads a catalog file, decoding by extension: .json, .yaml or .yml. A
// leading ~ is expanded to the home directory. The catalog is validated before
// it is returned.
func Load(path string) ([]schemas.Pattern, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand catalog path %s: %w", path, err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern catalog: %w", err)
	}

	records, err := Decode(data, filepath.Ext(expanded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode pattern catalog %s: %w", expanded, err)
	}
	if err := Validate(records); err != nil {
		return nil, fmt.Errorf("invalid pattern catalog %s: %w", expanded, err)
	}
	return records, nil
}

// LoadCatalog loads path and compiles it. An empty path yields the built-in catalog.
func LoadCatalog(path string) (core.Catalog, error) {
	if path == "" {
		return core.BuiltinCatalog(), nil
	}
	records, err := Load(path)
	if err != nil {
		return nil, err
	}
	return core.CompileCatalog(records), nil
}

// Decode parses catalog bytes. ext selects the decoder and includes the dot.
func Decode(data []byte, ext string) ([]schemas.Pattern, error) {
	var records []schemas.Pattern
	switch strings.ToLower(ext) {
	case ".json":
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
	case ".yaml", ".yml":
		// sigs.k8s.io/yaml converts to JSON first, so the json tags apply.
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return records, nil
}

// Validate checks every record and reports all problems at once.
func Validate(records []schemas.Pattern) error {
	var errs []error
	if len(records) == 0 {
		errs = append(errs, errors.New("catalog contains no patterns"))
	}
	for i, p := range records {
		label := fmt.Sprintf("pattern %d", i)
		if p.Vulnerability == "" {
			errs = append(errs, fmt.Errorf("%s: vulnerability name is empty", label))
		} else {
			label = fmt.Sprintf("pattern %d (%s)", i, p.Vulnerability)
		}
		if len(p.Sources) == 0 {
			errs = append(errs, fmt.Errorf("%s: no sources", label))
		}
		if len(p.Sinks) == 0 {
			errs = append(errs, fmt.Errorf("%s: no sinks", label))
		}
		errs = append(errs, checkNames(label, "sources", p.Sources)...)
		errs = append(errs, checkNames(label, "sanitizers", p.Sanitizers)...)
		errs = append(errs, checkNames(label, "sinks", p.Sinks)...)
	}
	return errors.Join(errs...)
}

func checkNames(label, field string, names []string) []error {
	var errs []error
	for j, n := range names {
		if strings.TrimSpace(n) == "" {
			errs = append(errs, fmt.Errorf("%s: %s[%d] is empty", label, field, j))
		}
	}
	return errs
}

// Marshal renders records in the requested format: "json" or "yaml".
func Marshal(records []schemas.Pattern, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		return json.MarshalIndent(records, "", "  ")
	case "yaml", "yml":
		return yaml.Marshal(records)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}
