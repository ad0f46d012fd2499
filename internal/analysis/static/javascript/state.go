// Filename: javascript/state.go
// Defines the mutable analysis state: vulnerability instances and the registry
// that owns them for the duration of one run.
package javascript

import (
	"slices"

	"github.com/xkilldash9x/scalpel-taint/internal/analysis/core"
)

// Vuln is one traced flow: an instance of a pattern started by a specific source.
// Instances are compared by identity. Two instances with the same pattern and the
// same contents are still different flows.
type Vuln struct {
	// ID is a stable handle, unique within the registry that created the instance.
	ID int

	pattern    *core.Pattern
	sources    []string
	sanitizers []string
	sinks      []string
	// tainted is the ordered set of names this flow currently marks.
	tainted []string
}

// Pattern returns the pattern this instance belongs to.
func (v *Vuln) Pattern() *core.Pattern { return v.pattern }

// Sources returns a copy of the observed sources, in order of observation.
func (v *Vuln) Sources() []string { return slices.Clone(v.sources) }

// Sanitizers returns a copy of the observed sanitizers.
func (v *Vuln) Sanitizers() []string { return slices.Clone(v.sanitizers) }

// Sinks returns a copy of the observed sinks.
func (v *Vuln) Sinks() []string { return slices.Clone(v.sinks) }

// Tainted returns a copy of the names currently marked by this flow.
func (v *Vuln) Tainted() []string { return slices.Clone(v.tainted) }

// Taints reports whether name is currently marked by this flow.
func (v *Vuln) Taints(name string) bool { return slices.Contains(v.tainted, name) }

func (v *Vuln) hasSource(name string) bool    { return slices.Contains(v.sources, name) }
func (v *Vuln) hasSanitizer(name string) bool { return slices.Contains(v.sanitizers, name) }
func (v *Vuln) hasSink(name string) bool      { return slices.Contains(v.sinks, name) }

func (v *Vuln) addSource(name string)    { v.sources = appendUnique(v.sources, name) }
func (v *Vuln) addSanitizer(name string) { v.sanitizers = appendUnique(v.sanitizers, name) }
func (v *Vuln) addSink(name string)      { v.sinks = appendUnique(v.sinks, name) }
func (v *Vuln) taint(name string)        { v.tainted = appendUnique(v.tainted, name) }

func (v *Vuln) untaint(name string) {
	if i := slices.Index(v.tainted, name); i >= 0 {
		v.tainted = slices.Delete(v.tainted, i, i+1)
	}
}

func appendUnique(list []string, name string) []string {
	if slices.Contains(list, name) {
		return list
	}
	return append(list, name)
}

// vulnState is a value copy of everything about an instance that can change.
type vulnState struct {
	sources    []string
	sanitizers []string
	sinks      []string
	tainted    []string
}

func (v *Vuln) capture() vulnState {
	return vulnState{
		sources:    slices.Clone(v.sources),
		sanitizers: slices.Clone(v.sanitizers),
		sinks:      slices.Clone(v.sinks),
		tainted:    slices.Clone(v.tainted),
	}
}

func (v *Vuln) reset(s vulnState) {
	v.sources = slices.Clone(s.sources)
	v.sanitizers = slices.Clone(s.sanitizers)
	v.sinks = slices.Clone(s.sinks)
	v.tainted = slices.Clone(s.tainted)
}

// -- Registry --

// Registry is the ordered set of live instances for one analysis run. It is owned
// by a single walker and is not safe for concurrent use.
type Registry struct {
	nextID int
	live   []*Vuln
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// New creates an instance of pattern started by source and registers it.
func (r *Registry) New(pattern *core.Pattern, source string) *Vuln {
	r.nextID++
	v := &Vuln{ID: r.nextID, pattern: pattern, sources: []string{source}}
	r.live = append(r.live, v)
	return v
}

// Remove unregisters the first occurrence of v. It reports whether v was live.
func (r *Registry) Remove(v *Vuln) bool {
	if i := slices.Index(r.live, v); i >= 0 {
		r.live = slices.Delete(r.live, i, i+1)
		return true
	}
	return false
}

// Contains reports whether v is live.
func (r *Registry) Contains(v *Vuln) bool {
	return slices.Contains(r.live, v)
}

// Live returns the live instances in registration order. The slice is a copy;
// the instances are not.
func (r *Registry) Live() []*Vuln {
	return slices.Clone(r.live)
}

// Len returns the number of live instances.
func (r *Registry) Len() int { return len(r.live) }

// Snapshot records registry membership and the state of every live instance.
type Snapshot struct {
	live   []*Vuln
	member map[*Vuln]struct{}
	states map[*Vuln]vulnState
}

// Snapshot captures the registry so a branch can be rolled back.
func (r *Registry) Snapshot() Snapshot {
	s := Snapshot{
		live:   slices.Clone(r.live),
		member: make(map[*Vuln]struct{}, len(r.live)),
		states: make(map[*Vuln]vulnState, len(r.live)),
	}
	for _, v := range r.live {
		s.member[v] = struct{}{}
		s.states[v] = v.capture()
	}
	return s
}

// BornSince returns the live instances that were not live when s was taken, in
// registration order.
func (r *Registry) BornSince(s Snapshot) []*Vuln {
	var born []*Vuln
	for _, v := range r.live {
		if _, ok := s.member[v]; !ok {
			born = append(born, v)
		}
	}
	return born
}

// Restore resets membership to s. When withState is set, every instance in s is
// also reset to the state it had when s was taken.
func (r *Registry) Restore(s Snapshot, withState bool) {
	r.live = slices.Clone(s.live)
	if !withState {
		return
	}
	for _, v := range r.live {
		v.reset(s.states[v])
	}
}

// Append registers already-created instances at the end of the registry.
func (r *Registry) Append(vulns ...*Vuln) {
	r.live = append(r.live, vulns...)
}
