// File: internal/analysis/core/pattern.go
package core

import (
	"github.com/xkilldash9x/scalpel-taint/api/schemas"
)

// Pattern is a compiled vulnerability pattern. It keeps the catalog record it was
// built from and answers role lookups in constant time.
//
// Patterns are always handled by pointer. Two patterns with the same vulnerability
// name and identical lists are still distinct rules; the taint engine relies on
// pointer identity to keep their instances apart.
type Pattern struct {
	record     schemas.Pattern
	sources    map[string]struct{}
	sanitizers map[string]struct{}
	sinks      map[string]struct{}
}

// NewPattern compiles a catalog record. The record's slices are copied so later
// mutation by the caller cannot change the rule.
func NewPattern(p schemas.Pattern) *Pattern {
	return &Pattern{
		record: schemas.Pattern{
			Vulnerability: p.Vulnerability,
			Sources:       append([]string(nil), p.Sources...),
			Sanitizers:    append([]string(nil), p.Sanitizers...),
			Sinks:         append([]string(nil), p.Sinks...),
		},
		sources:    toSet(p.Sources),
		sanitizers: toSet(p.Sanitizers),
		sinks:      toSet(p.Sinks),
	}
}

func toSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Vulnerability returns the name of the vulnerability class.
func (p *Pattern) Vulnerability() string { return p.record.Vulnerability }

// Record returns a copy of the catalog record the pattern was compiled from.
func (p *Pattern) Record() schemas.Pattern {
	return schemas.Pattern{
		Vulnerability: p.record.Vulnerability,
		Sources:       append([]string(nil), p.record.Sources...),
		Sanitizers:    append([]string(nil), p.record.Sanitizers...),
		Sinks:         append([]string(nil), p.record.Sinks...),
	}
}

// IsSource reports whether name introduces taint for this pattern.
func (p *Pattern) IsSource(name string) bool {
	_, ok := p.sources[name]
	return ok
}

// IsSanitizer reports whether name neutralizes taint for this pattern.
func (p *Pattern) IsSanitizer(name string) bool {
	_, ok := p.sanitizers[name]
	return ok
}

// IsSink reports whether name consumes taint for this pattern.
func (p *Pattern) IsSink(name string) bool {
	_, ok := p.sinks[name]
	return ok
}

// Catalog is an ordered list of compiled patterns. Order matters: instances are
// created in catalog order when a name is a source for several patterns.
type Catalog []*Pattern

// CompileCatalog compiles every record, preserving order.
func CompileCatalog(records []schemas.Pattern) Catalog {
	catalog := make(Catalog, 0, len(records))
	for _, r := range records {
		catalog = append(catalog, NewPattern(r))
	}
	return catalog
}

// SourcesOf returns the patterns, in catalog order, that list name as a source.
func (c Catalog) SourcesOf(name string) []*Pattern {
	var matched []*Pattern
	for _, p := range c {
		if p.IsSource(name) {
			matched = append(matched, p)
		}
	}
	return matched
}

// Records returns the catalog as plain records.
func (c Catalog) Records() []schemas.Pattern {
	records := make([]schemas.Pattern, 0, len(c))
	for _, p := range c {
		records = append(records, p.Record())
	}
	return records
}
