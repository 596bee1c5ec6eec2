package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointKey(t *testing.T) {
	t.Run("identical coordinates share a key", func(t *testing.T) {
		a := Point{1.5, -2.25, 0}
		b := Point{1.5, -2.25, 0}
		assert.Equal(t, a.Key(), b.Key())
	})

	t.Run("nearby coordinates do not", func(t *testing.T) {
		a := Point{1.5}
		b := Point{math.Nextafter(1.5, 2)}
		assert.NotEqual(t, a.Key(), b.Key())
	})

	t.Run("identity is bit-exact, not numeric", func(t *testing.T) {
		// 0 and -0 compare equal as floats but are distinct bit patterns.
		zero := Point{0.0}
		negZero := Point{math.Copysign(0, -1)}
		assert.NotEqual(t, zero.Key(), negZero.Key())
	})

	t.Run("dimension changes the key", func(t *testing.T) {
		assert.NotEqual(t, Point{1}.Key(), Point{1, 0}.Key())
	})
}

func TestPointClone(t *testing.T) {
	p := Point{1, 2, 3}
	q := p.Clone()
	q[0] = 99

	assert.Equal(t, Point{1, 2, 3}, p)
	assert.Equal(t, Point{99, 2, 3}, q)
}

func TestOrigin(t *testing.T) {
	p := Origin(3)
	assert.Equal(t, Point{0, 0, 0}, p)
}

func TestPointString(t *testing.T) {
	assert.Equal(t, "[1 -2.5 0]", Point{1, -2.5, 0}.String())
	assert.Equal(t, "[]", Point{}.String())
}
