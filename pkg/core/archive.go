package core

import (
	"math"

	"golang.org/x/exp/rand"
)

// Estimate selects how repeated observations of a point are summarized when
// ranking archive entries.
type Estimate int

const (
	// Optimistic ranks a point by the lowest value ever observed for it.
	Optimistic Estimate = iota
	// Pessimistic ranks a point by its mean plus a shrinking confidence
	// margin, so barely-sampled points are not trusted.
	Pessimistic
	// Average ranks a point by the running mean of its observations.
	Average
)

// String provides human-readable estimate names.
func (e Estimate) String() string {
	return [...]string{"optimistic", "pessimistic", "average"}[e]
}

// initialVariance stands in for the undefined sample variance of a single
// observation. Large on purpose: one observation earns almost no trust.
const initialVariance = 1e6

// Record aggregates every observation reported for one point.
type Record struct {
	point Point
	count int
	mean  float64
	m2    float64
	min   float64
	max   float64
}

func newRecord(p Point) *Record {
	return &Record{
		point: p.Clone(),
		min:   math.Inf(1),
		max:   math.Inf(-1),
	}
}

// add folds one observation into the running moments.
func (r *Record) add(value float64) {
	r.count++
	delta := value - r.mean
	r.mean += delta / float64(r.count)
	r.m2 += delta * (value - r.mean)
	if value < r.min {
		r.min = value
	}
	if value > r.max {
		r.max = value
	}
}

// Point returns a copy of the location this record aggregates.
func (r *Record) Point() Point {
	return r.point.Clone()
}

// Count returns the number of observations folded in so far.
func (r *Record) Count() int {
	return r.count
}

// Mean returns the running mean of all observations.
func (r *Record) Mean() float64 {
	return r.mean
}

// Variance returns the sample variance of the observations, or a large
// default while only one observation exists.
func (r *Record) Variance() float64 {
	if r.count < 2 {
		return initialVariance
	}
	return r.m2 / float64(r.count-1)
}

// Min returns the lowest observed value.
func (r *Record) Min() float64 {
	return r.min
}

// Max returns the highest observed value.
func (r *Record) Max() float64 {
	return r.max
}

// Estimate summarizes the record under the given policy.
func (r *Record) Estimate(e Estimate) float64 {
	switch e {
	case Optimistic:
		return r.min
	case Average:
		return r.mean
	default:
		return r.mean + 0.1*math.Sqrt(r.Variance()/float64(1+r.count))
	}
}

// Archive is the append-only observation store shared by every optimizer.
// Entries are keyed by bit-exact point identity and kept in insertion order,
// which makes best lookups and random sampling deterministic for a fixed
// seed and call sequence.
type Archive struct {
	records map[Key]*Record
	order   []Key
	best    [3]*Record
	dirty   bool
}

// NewArchive returns an empty archive.
func NewArchive() *Archive {
	return &Archive{records: make(map[Key]*Record)}
}

// Len returns the number of distinct points observed.
func (a *Archive) Len() int {
	return len(a.order)
}

// Lookup returns the record for a point, if any observation exists.
func (a *Archive) Lookup(p Point) (*Record, bool) {
	rec, ok := a.records[p.Key()]
	return rec, ok
}

// Update folds one observation into the record for p, creating the record on
// first sight, and returns it.
func (a *Archive) Update(p Point, value float64) *Record {
	k := p.Key()
	rec, ok := a.records[k]
	if !ok {
		rec = newRecord(p)
		a.records[k] = rec
		a.order = append(a.order, k)
	}
	rec.add(value)
	a.dirty = true
	return rec
}

// Best returns the record with the strictly smallest estimate under the
// given policy. Ties resolve to the earliest inserted point. Returns false
// on an empty archive.
func (a *Archive) Best(e Estimate) (*Record, bool) {
	if len(a.order) == 0 {
		return nil, false
	}
	if a.dirty {
		a.rescanBests()
	}
	return a.best[e], true
}

func (a *Archive) rescanBests() {
	for i := range a.best {
		a.best[i] = nil
	}
	for _, k := range a.order {
		rec := a.records[k]
		for _, e := range []Estimate{Optimistic, Pessimistic, Average} {
			if a.best[e] == nil || rec.Estimate(e) < a.best[e].Estimate(e) {
				a.best[e] = rec
			}
		}
	}
	a.dirty = false
}

// RandomRecord returns a uniformly random record, or false on an empty
// archive.
func (a *Archive) RandomRecord(rng *rand.Rand) (*Record, bool) {
	if len(a.order) == 0 {
		return nil, false
	}
	return a.records[a.order[rng.Intn(len(a.order))]], true
}

// Each visits records in insertion order until fn returns false.
func (a *Archive) Each(fn func(r *Record) bool) {
	for _, k := range a.order {
		if !fn(a.records[k]) {
			return
		}
	}
}
