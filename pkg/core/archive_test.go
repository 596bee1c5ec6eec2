package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/exp/rand"
)

func TestRecordMoments(t *testing.T) {
	a := NewArchive()
	p := Point{1, 2}

	rec := a.Update(p, 1.0)
	assert.Equal(t, 1, rec.Count())
	assert.Equal(t, 1.0, rec.Mean())
	assert.Equal(t, initialVariance, rec.Variance(),
		"single observation should report the default variance")

	a.Update(p, 3.0)
	assert.Equal(t, 2, rec.Count())
	assert.Equal(t, 2.0, rec.Mean())
	assert.InDelta(t, 2.0, rec.Variance(), 1e-12)
	assert.Equal(t, 1.0, rec.Min())
	assert.Equal(t, 3.0, rec.Max())
}

func TestRecordEstimates(t *testing.T) {
	a := NewArchive()
	p := Point{0.5}
	a.Update(p, 1.0)
	a.Update(p, 3.0)

	rec, ok := a.Lookup(p)
	require.True(t, ok)

	t.Run("optimistic is the observed minimum", func(t *testing.T) {
		assert.Equal(t, 1.0, rec.Estimate(Optimistic))
	})

	t.Run("average is the running mean", func(t *testing.T) {
		assert.Equal(t, 2.0, rec.Estimate(Average))
	})

	t.Run("pessimistic adds a shrinking confidence margin", func(t *testing.T) {
		// mean + 0.1*sqrt(variance/(1+count)) with variance 2, count 2
		assert.InDelta(t, 2.0+0.1*0.8164965809, rec.Estimate(Pessimistic), 1e-9)
	})

	t.Run("single observation is pessimistically distrusted", func(t *testing.T) {
		b := NewArchive()
		single := b.Update(Point{1}, 5.0)
		assert.InDelta(t, 5.0+0.1*707.1067811865, single.Estimate(Pessimistic), 1e-6)
	})
}

func TestArchiveBest(t *testing.T) {
	t.Run("empty archive has no best", func(t *testing.T) {
		a := NewArchive()
		_, ok := a.Best(Pessimistic)
		assert.False(t, ok)
	})

	t.Run("best tracks updates", func(t *testing.T) {
		a := NewArchive()
		a.Update(Point{1}, 5.0)
		best, ok := a.Best(Optimistic)
		require.True(t, ok)
		assert.Equal(t, Point{1}, best.Point())

		a.Update(Point{2}, 3.0)
		best, ok = a.Best(Optimistic)
		require.True(t, ok)
		assert.Equal(t, Point{2}, best.Point())
	})

	t.Run("ties resolve to the earliest insertion", func(t *testing.T) {
		a := NewArchive()
		a.Update(Point{1}, 2.0)
		a.Update(Point{2}, 2.0)

		for _, e := range []Estimate{Optimistic, Pessimistic, Average} {
			best, ok := a.Best(e)
			require.True(t, ok)
			assert.Equal(t, Point{1}, best.Point(), "policy %v", e)
		}
	})

	t.Run("policies can disagree", func(t *testing.T) {
		a := NewArchive()
		// First point: stable 2.0. Second point: lucky 1.0 then awful 9.0.
		a.Update(Point{1}, 2.0)
		a.Update(Point{1}, 2.0)
		a.Update(Point{2}, 1.0)
		a.Update(Point{2}, 9.0)

		opt, _ := a.Best(Optimistic)
		avg, _ := a.Best(Average)
		assert.Equal(t, Point{2}, opt.Point())
		assert.Equal(t, Point{1}, avg.Point())
	})
}

func TestArchiveRandomRecord(t *testing.T) {
	t.Run("empty archive", func(t *testing.T) {
		a := NewArchive()
		_, ok := a.RandomRecord(rand.New(rand.NewSource(1)))
		assert.False(t, ok)
	})

	t.Run("deterministic under a fixed seed", func(t *testing.T) {
		a := NewArchive()
		for i := 0; i < 10; i++ {
			a.Update(Point{float64(i)}, float64(i))
		}

		r1 := rand.New(rand.NewSource(7))
		r2 := rand.New(rand.NewSource(7))
		for i := 0; i < 20; i++ {
			rec1, ok1 := a.RandomRecord(r1)
			rec2, ok2 := a.RandomRecord(r2)
			require.True(t, ok1)
			require.True(t, ok2)
			assert.Equal(t, rec1.Point(), rec2.Point())
		}
	})
}

func TestArchiveEach(t *testing.T) {
	a := NewArchive()
	a.Update(Point{1}, 1)
	a.Update(Point{2}, 2)
	a.Update(Point{3}, 3)
	a.Update(Point{2}, 4) // revisit must not reorder

	var seen []Point
	a.Each(func(r *Record) bool {
		seen = append(seen, r.Point())
		return true
	})
	assert.Equal(t, []Point{{1}, {2}, {3}}, seen)

	var visits int
	a.Each(func(r *Record) bool {
		visits++
		return false
	})
	assert.Equal(t, 1, visits, "Each should stop when fn returns false")
}
