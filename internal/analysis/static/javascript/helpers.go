// Filename: javascript/helpers.go
package javascript

import (
	"github.com/xkilldash9x/scalpel-taint/internal/analysis/static/estree"
)

// resolveName flattens an identifier, literal or member access chain into the
// dotted path used as the unit of taint tracking (a.b.c). Any other node kind
// has no name and reports false.
func resolveName(node estree.Node) (string, bool) {
	switch n := node.(type) {
	case *estree.Identifier:
		return n.Name, true
	case *estree.Literal:
		return n.Text(), true
	case *estree.MemberExpression:
		object, ok := resolveName(n.Object)
		if !ok {
			return "", false
		}
		property, ok := resolveName(n.Property)
		if !ok {
			return "", false
		}
		return object + "." + property, true
	default:
		return "", false
	}
}

// containsVuln reports whether v occurs in list, by identity.
func containsVuln(list []*Vuln, v *Vuln) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// removeFirstVuln removes the first occurrence of v from list.
func removeFirstVuln(list []*Vuln, v *Vuln) []*Vuln {
	for i, item := range list {
		if item == v {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

// vulnIDs lists instance handles for logging.
func vulnIDs(list []*Vuln) []int {
	ids := make([]int, 0, len(list))
	for _, v := range list {
		ids = append(ids, v.ID)
	}
	return ids
}
