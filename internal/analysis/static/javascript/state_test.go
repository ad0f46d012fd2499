// Filename: javascript/state_test.go
package javascript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/scalpel-taint/internal/analysis/core"
)

func TestRegistry_IdentityAndOrder(t *testing.T) {
	p := core.NewPattern(patternA)
	r := NewRegistry()

	v1 := r.New(p, "s")
	v2 := r.New(p, "s")

	assert.NotSame(t, v1, v2, "identical flows are distinct instances")
	assert.Equal(t, 1, v1.ID)
	assert.Equal(t, 2, v2.ID)
	assert.Equal(t, []*Vuln{v1, v2}, r.Live())
	assert.Equal(t, []string{"s"}, v1.Sources())
	assert.Empty(t, v1.Tainted())

	require.True(t, r.Remove(v1))
	assert.False(t, r.Remove(v1), "already removed")
	assert.False(t, r.Contains(v1))
	assert.True(t, r.Contains(v2))

	v3 := r.New(p, "s")
	assert.Equal(t, 3, v3.ID, "IDs are never reused")
}

func TestVuln_SetsAreOrderedAndDeduplicated(t *testing.T) {
	v := NewRegistry().New(core.NewPattern(patternA), "s")

	v.taint("b")
	v.taint("a")
	v.taint("b")
	assert.Equal(t, []string{"b", "a"}, v.Tainted())
	assert.True(t, v.Taints("a"))

	v.untaint("b")
	v.untaint("missing")
	assert.Equal(t, []string{"a"}, v.Tainted())

	v.addSink("k")
	v.addSink("k")
	v.addSanitizer("san")
	v.addSource("s")
	assert.Equal(t, []string{"k"}, v.Sinks())
	assert.Equal(t, []string{"san"}, v.Sanitizers())
	assert.Equal(t, []string{"s"}, v.Sources())

	// Accessors hand out copies.
	v.Tainted()[0] = "mutated"
	assert.Equal(t, []string{"a"}, v.Tainted())
}

func TestRegistry_SnapshotRestore(t *testing.T) {
	p := core.NewPattern(patternA)

	setup := func() (*Registry, *Vuln, Snapshot) {
		r := NewRegistry()
		before := r.New(p, "s")
		before.taint("x")
		return r, before, r.Snapshot()
	}

	t.Run("born instances are found and dropped by restore", func(t *testing.T) {
		r, before, snap := setup()
		born := r.New(p, "s")

		assert.Equal(t, []*Vuln{born}, r.BornSince(snap))
		r.Restore(snap, true)
		assert.Equal(t, []*Vuln{before}, r.Live())
		assert.Empty(t, r.BornSince(snap))

		r.Append(born)
		assert.Equal(t, []*Vuln{before, born}, r.Live())
	})

	t.Run("restore with state rolls back mutations", func(t *testing.T) {
		r, before, snap := setup()
		before.taint("y")
		before.addSink("k")

		r.Restore(snap, true)
		assert.Equal(t, []string{"x"}, before.Tainted())
		assert.Empty(t, before.Sinks())
	})

	t.Run("restore without state keeps mutations", func(t *testing.T) {
		r, before, snap := setup()
		before.untaint("x")
		before.addSink("k")

		r.Restore(snap, false)
		assert.Empty(t, before.Tainted())
		assert.Equal(t, []string{"k"}, before.Sinks())
	})

	t.Run("removed instances come back", func(t *testing.T) {
		r, before, snap := setup()
		require.True(t, r.Remove(before))

		r.Restore(snap, true)
		assert.True(t, r.Contains(before))
	})
}

func TestReport_OnlySunkFlows(t *testing.T) {
	p := core.NewPattern(patternA)
	r := NewRegistry()

	unsunk := r.New(p, "s")
	unsunk.taint("x")
	sunk := r.New(p, "s")
	sunk.addSink("k")

	got := Report(r)
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Vulnerability)
	assert.Equal(t, []string{"k"}, got[0].Sinks)
	assert.NotNil(t, got[0].Sanitizers)

	assert.NotNil(t, Report(NewRegistry()))
}
