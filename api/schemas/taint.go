package schemas

import "time"

// -- Pattern Catalog Schemas --

// Pattern is one vulnerability rule as it appears in a catalog file. It names the
// identifiers (dotted paths such as "document.write") that introduce, neutralize
// and consume tainted data for that class of vulnerability.
type Pattern struct {
	Vulnerability string   `json:"vulnerability" yaml:"vulnerability"`
	Sources       []string `json:"sources" yaml:"sources"`
	Sanitizers    []string `json:"sanitizers" yaml:"sanitizers"`
	Sinks         []string `json:"sinks" yaml:"sinks"`
}

// -- Result Schemas --

// Result is a single reported flow: the vulnerability it belongs to and the
// identifiers observed along the way. The field names and ordering match the
// tool's historical output files.
type Result struct {
	Vulnerability string   `json:"vulnerability"`
	Sources       []string `json:"sources"`
	Sanitizers    []string `json:"sanitizers"`
	Sinks         []string `json:"sinks"`
}

// ResultEnvelope groups the results of analyzing one program so they can be
// reported or persisted as a unit.
type ResultEnvelope struct {
	RunID        string    `json:"run_id"`
	Program      string    `json:"program"`
	PatternCount int       `json:"pattern_count"`
	Timestamp    time.Time `json:"timestamp"`
	Results      []Result  `json:"results"`
}
