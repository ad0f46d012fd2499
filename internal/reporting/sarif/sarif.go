// Package sarif defines the subset of SARIF 2.1.0 used by the taint reports.
package sarif

// Pointers are used for optional fields. Required fields use value types.

type Log struct {
	Version string `json:"version"`
	Schema  string `json:"$schema"`
	Runs    []*Run `json:"runs"`
}

type Run struct {
	Tool      *Tool       `json:"tool"`
	Artifacts []*Artifact `json:"artifacts,omitempty"`
	Results   []*Result   `json:"results"`
}

type Tool struct {
	Driver *ToolComponent `json:"driver"`
}

// ToolComponent describes the tool that produced the results.
type ToolComponent struct {
	Name           string                 `json:"name"`
	Version        *string                `json:"version,omitempty"`
	InformationURI *string                `json:"informationUri,omitempty"`
	Rules          []*ReportingDescriptor `json:"rules,omitempty"`
}

// Artifact is a program file that was analyzed.
type Artifact struct {
	Location *ArtifactLocation `json:"location"`
}

type ReportingDescriptor struct {
	ID               string                    `json:"id"`
	Name             *string                   `json:"name,omitempty"`
	ShortDescription *MultiformatMessageString `json:"shortDescription,omitempty"`
	FullDescription  *MultiformatMessageString `json:"fullDescription,omitempty"`
	Help             *MultiformatMessageString `json:"help,omitempty"`
	Properties       *PropertyBag              `json:"properties,omitempty"`
}

type Result struct {
	RuleID    string   `json:"ruleId"`
	RuleIndex int      `json:"ruleIndex"`
	Message   *Message `json:"message"`
	Level     Level    `json:"level,omitempty"`
	// Kind is "fail" for unsanitized flows and "review" for flows that passed a sanitizer.
	Kind                Kind              `json:"kind,omitempty"`
	Locations           []*Location       `json:"locations,omitempty"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          *PropertyBag      `json:"properties,omitempty"`
}

type Location struct {
	PhysicalLocation *PhysicalLocation `json:"physicalLocation,omitempty"`
	Message          *Message          `json:"message,omitempty"`
}

type PhysicalLocation struct {
	ArtifactLocation *ArtifactLocation `json:"artifactLocation,omitempty"`
}

type ArtifactLocation struct {
	URI   *string `json:"uri,omitempty"`
	Index *int    `json:"index,omitempty"`
}

type Message struct {
	Text *string `json:"text,omitempty"`
}

type MultiformatMessageString struct {
	Text     *string `json:"text"`
	Markdown *string `json:"markdown,omitempty"`
}

type PropertyBag map[string]interface{}

type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelNote    Level = "note"
)

type Kind string

const (
	KindFail   Kind = "fail"
	KindReview Kind = "review"
)
