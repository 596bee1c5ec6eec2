package core

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Point is a candidate location in the search space: an ordered tuple of
// float64 coordinates whose length equals the optimizer dimension.
type Point []float64

// Key is the bit-exact identity of a Point. Two points share a Key exactly
// when every coordinate has the same IEEE-754 bit pattern. Pending-request
// matching relies on this; tolerance-based comparison would mispair
// registrations.
type Key string

// Origin returns the zero point of the given dimension.
func Origin(dimension int) Point {
	return make(Point, dimension)
}

// Key returns the bit-exact identity of the point.
func (p Point) Key() Key {
	buf := make([]byte, 8*len(p))
	for i, x := range p {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return Key(buf)
}

// Clone returns an independent copy of the point.
func (p Point) Clone() Point {
	out := make(Point, len(p))
	copy(out, p)
	return out
}

func (p Point) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range p {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%g", x)
	}
	b.WriteByte(']')
	return b.String()
}
