// File: internal/analysis/core/definitions.go
package core

import (
	"github.com/xkilldash9x/scalpel-taint/api/schemas"
)

// SinkType categorizes the impact of a sink. The built-in catalog uses it as the
// vulnerability name of each pattern.
type SinkType string

const (
	SinkTypeExecution          SinkType = "Code Execution"
	SinkTypeHTMLInjection      SinkType = "DOM XSS (HTML Injection)"
	SinkTypeURLRedirection     SinkType = "Open Redirect/URL Manipulation"
	SinkTypeCookieManipulation SinkType = "Cookie Manipulation"
	SinkTypeAttributeInjection SinkType = "DOM XSS (Attribute Injection)"
	SinkTypeDataLeak           SinkType = "Data Leakage"
)

// Known taint sources (DOM/Browser APIs). Property reads and calls are both
// expressed as dotted paths, so "localStorage.getItem" matches the callee of
// localStorage.getItem(...).
var knownSources = []string{
	"location.hash",
	"location.search",
	"location.href",
	"document.cookie",
	"document.referrer",
	"document.URL",
	"document.documentURI",
	"window.name",
	"window.location.hash",
	"window.location.search",
	"window.location.href",
	"localStorage.getItem",
	"sessionStorage.getItem",
	"window.localStorage.getItem",
	"window.sessionStorage.getItem",
	"message.data",
	"event.data",
}

// knownSanitizers are functions known to safely encode or clean data.
var knownSanitizers = []string{
	"encodeURI",
	"encodeURIComponent",
	"escape",
	"JSON.stringify",
	"parseInt",
	"parseFloat",
	"Number",
	"DOMPurify.sanitize",
}

// knownSinks groups sink paths by impact. Assignment targets (innerHTML,
// location.href) and callees (eval, document.write) share one namespace.
var knownSinks = []struct {
	Type  SinkType
	Names []string
}{
	{SinkTypeExecution, []string{
		"eval", "setTimeout", "setInterval", "Function", "execScript",
		"script.src", "script.text", "embed.src", "object.data",
		"jQuery.globalEval", "$.globalEval",
	}},
	{SinkTypeHTMLInjection, []string{
		"document.write", "document.writeln",
		"innerHTML", "outerHTML", "element.innerHTML", "element.outerHTML",
		"element.insertAdjacentHTML", "iframe.srcdoc", "iframe.src",
		"$.html", "jQuery.html", "$.append", "jQuery.parseHTML",
	}},
	{SinkTypeURLRedirection, []string{
		"location", "location.href", "window.location", "window.location.href",
		"location.assign", "location.replace",
		"window.location.assign", "window.location.replace",
		"window.open", "open",
		"history.pushState", "history.replaceState",
	}},
	{SinkTypeCookieManipulation, []string{
		"document.cookie",
	}},
	{SinkTypeAttributeInjection, []string{
		"a.href", "form.action", "element.setAttribute", "src", "href",
	}},
	{SinkTypeDataLeak, []string{
		"img.src", "fetch", "navigator.sendBeacon", "WebSocket.send", "ws.send",
		"XMLHttpRequest.send", "xhr.send", "postMessage", "window.postMessage",
	}},
}

// BuiltinPatterns returns the catalog used when no catalog file is supplied: one
// pattern per sink category, all sharing the browser sources and sanitizers.
func BuiltinPatterns() []schemas.Pattern {
	patterns := make([]schemas.Pattern, 0, len(knownSinks))
	for _, group := range knownSinks {
		patterns = append(patterns, schemas.Pattern{
			Vulnerability: string(group.Type),
			Sources:       append([]string(nil), knownSources...),
			Sanitizers:    append([]string(nil), knownSanitizers...),
			Sinks:         append([]string(nil), group.Names...),
		})
	}
	return patterns
}

// BuiltinCatalog compiles BuiltinPatterns.
func BuiltinCatalog() Catalog {
	return CompileCatalog(BuiltinPatterns())
}
