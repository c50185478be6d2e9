package replication

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPatchMergeLastWriteWins(t *testing.T) {
	target := Patch{}.Merge(Patch{"x": 1.0})
	target = target.Merge(Patch{"x": 2.0, "y": 5.0})

	assert.Equal(t, Patch{"x": 2.0, "y": 5.0}, target)
}

func TestPatchMergeCommutesOnDisjointPaths(t *testing.T) {
	a := Patch{"x": 1.0}
	b := Patch{"y": 2.0}

	ab := Patch{}.Merge(a).Merge(b)
	ba := Patch{}.Merge(b).Merge(a)
	assert.Equal(t, ab, ba)
}

func TestStateMergeIsShallowPerKind(t *testing.T) {
	s := State{"position": {"x": 1.0, "y": 1.0}, "health": {"hp": 3.0}}
	src := State{"position": {"x": 9.0}}

	merged := s.Merge(src)
	assert.Equal(t, Patch{"x": 9.0, "y": 1.0}, merged["position"])
	assert.Equal(t, Patch{"hp": 3.0}, merged["health"])
	assert.Equal(t, Patch{"x": 9.0}, src["position"], "source must not be aliased")
}

func TestDiff(t *testing.T) {
	prev := Patch{"x": 1.0, "y": 2.0, "name": "a"}
	next := Patch{"x": 1, "y": 3.0, "name": "a", "z": 0.0}

	assert.Equal(t, Patch{"y": 3.0, "z": 0.0}, Diff(prev, next))
	assert.Empty(t, Diff(next, next))
}

func TestPatchEqualNumeric(t *testing.T) {
	assert.True(t, Patch{"x": 1}.Equal(Patch{"x": 1.0}))
	assert.False(t, Patch{"x": 1}.Equal(Patch{"x": "1"}))
	assert.False(t, Patch{"x": 1}.Equal(Patch{"y": 1}))
}

func TestLookupAssign(t *testing.T) {
	tree := map[string]any{"a": map[string]any{"b": 1.0}}

	v, ok := Lookup(tree, "a.b")
	assert.True(t, ok)
	assert.Equal(t, 1.0, v)

	_, ok = Lookup(tree, "a.c.d")
	assert.False(t, ok)

	assert.True(t, Assign(tree, "a.c", 2.0))
	assert.False(t, Assign(tree, "x.y", 3.0))
	_, ok = tree["x"]
	assert.False(t, ok)
}

func TestStateFromIgnoresScalars(t *testing.T) {
	s := StateFrom(map[string]any{
		"position": map[string]any{"x": 1.0},
		"x":        4.0,
	})
	assert.Equal(t, State{"position": {"x": 1.0}}, s)
	assert.Equal(t, []string{"position"}, s.Kinds())
}

func TestRoot(t *testing.T) {
	assert.Equal(t, "a", Root("a.b.c"))
	assert.Equal(t, "a", Root("a"))
}
