package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVec2Arithmetic(t *testing.T) {
	a := New(3, 4)
	b := New(1, 1)

	assert.Equal(t, New(4, 5), a.Add(b))
	assert.Equal(t, New(2, 3), a.Sub(b))
	assert.Equal(t, 7.0, a.Dot(b))
	assert.Equal(t, 5.0, a.Length())
	assert.Equal(t, New(6, 8), a.Scale(2))
	assert.Equal(t, 5.0, b.Distance(New(4, 5)))
}

func TestVec2NormalizeZero(t *testing.T) {
	assert.Equal(t, Vec2{}, Vec2{}.Normalize())
	n := New(0, 10).Normalize()
	assert.InDelta(t, 1.0, n.Length(), 1e-12)
}
