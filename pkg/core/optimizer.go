package core

import (
	"time"

	"golang.org/x/exp/rand"

	"github.com/XiaoConstantine/blackbox-go/pkg/errors"
)

// Optimizer is the ask/tell/recommend contract shared by every algorithm in
// this module.
//
// Ask emits the next point to evaluate, Tell reports the observed value for
// a previously asked point, and Recommend returns the current best guess at
// the optimum. Implementations are single-threaded state machines: they never
// start goroutines and never block, but they tolerate callers that hold up
// to NumWorkers asks outstanding before telling any of them back.
type Optimizer interface {
	// Ask returns the next point to evaluate. It never blocks; when the
	// algorithm cannot emit another point (exhausted particle queue,
	// sequential optimizer with an outstanding probe) it returns a
	// ContractViolation error.
	Ask() (Point, error)

	// Tell reports the objective value observed for a previously asked
	// point. Telling a point that has no pending ask is a contract
	// violation. Duplicate points resolve against the oldest pending ask.
	Tell(p Point, value float64) error

	// Recommend returns the optimizer's current guess at the optimum
	// without mutating any state. Before any ask or tell it returns an
	// InsufficientHistory error.
	Recommend() (Point, error)

	// Dimension returns the length of every point this optimizer emits.
	Dimension() int
	// Budget returns the advisory total number of evaluations, 0 if none
	// was declared.
	Budget() int
	// NumWorkers returns the number of concurrent evaluation slots the
	// caller declared.
	NumWorkers() int
	// NumAsk returns how many asks have been issued.
	NumAsk() int
	// NumTell returns how many tells have been accepted.
	NumTell() int
	// CurrentBest returns the best archived record under the given
	// estimate policy, or false while the archive is empty.
	CurrentBest(e Estimate) (*Record, bool)
}

// Params are the construction-time settings shared by every optimizer.
type Params struct {
	// Dimension is the length of every candidate point.
	Dimension int `yaml:"dimension" validate:"gt=0"`
	// Budget is the advisory total number of evaluations the caller plans
	// to spend. Zero means unknown; it never causes ask to fail.
	// Default: 0
	Budget int `yaml:"budget" validate:"gte=0"`
	// NumWorkers is the number of evaluation slots the caller intends to
	// keep busy concurrently. Zero means 1.
	// Default: 1
	NumWorkers int `yaml:"num_workers" validate:"gte=0"`
	// Seed drives every random draw. Two optimizers built with the same
	// seed and fed the same call sequence behave identically. Zero picks a
	// time-based seed.
	// Default: 0
	Seed uint64 `yaml:"seed"`
}

// ApplyDefaults fills the zero values that have non-zero defaults.
func (p *Params) ApplyDefaults() {
	if p.NumWorkers == 0 {
		p.NumWorkers = 1
	}
	if p.Seed == 0 {
		p.Seed = uint64(time.Now().UnixNano())
	}
}

// Base carries the bookkeeping every optimizer shares: counters, the
// observation archive, the seeded random source, and the pending-request
// ledger that pairs each tell with the oldest matching ask.
//
// The ledger maps bit-exact point identity to a FIFO of slots. The slot is
// algorithm-chosen: particle index for swarms, member index for portfolios,
// zero elsewhere. Registering every ask and consuming on every tell is what
// keeps duplicate points unambiguous and makes over-telling detectable.
type Base struct {
	params      Params
	rng         *rand.Rand
	archive     *Archive
	pending     map[Key][]int
	outstanding int
	numAsk      int
	numTell     int
}

// NewBase builds the shared bookkeeping from validated parameters.
func NewBase(params Params) *Base {
	params.ApplyDefaults()
	return &Base{
		params:  params,
		rng:     rand.New(rand.NewSource(params.Seed)),
		archive: NewArchive(),
		pending: make(map[Key][]int),
	}
}

// Dimension returns the length of every candidate point.
func (b *Base) Dimension() int { return b.params.Dimension }

// Budget returns the advisory evaluation budget, 0 if none was declared.
func (b *Base) Budget() int { return b.params.Budget }

// NumWorkers returns the declared number of concurrent evaluation slots.
func (b *Base) NumWorkers() int { return b.params.NumWorkers }

// NumAsk returns how many asks have been issued.
func (b *Base) NumAsk() int { return b.numAsk }

// NumTell returns how many tells have been accepted.
func (b *Base) NumTell() int { return b.numTell }

// Outstanding returns how many asked points have not been told back yet.
func (b *Base) Outstanding() int { return b.outstanding }

// Rand returns the optimizer's seeded random source.
func (b *Base) Rand() *rand.Rand { return b.rng }

// Archive returns the shared observation store.
func (b *Base) Archive() *Archive { return b.archive }

// Origin returns the zero point of the optimizer's dimension.
func (b *Base) Origin() Point { return Origin(b.params.Dimension) }

// CurrentBest returns the best archived record under the given policy.
func (b *Base) CurrentBest(e Estimate) (*Record, bool) {
	return b.archive.Best(e)
}

// RegisterAsk records an emitted point in the pending ledger under the
// algorithm-chosen slot and counts the ask. Every Ask implementation must
// call it exactly once per emitted point.
func (b *Base) RegisterAsk(p Point, slot int) {
	k := p.Key()
	b.pending[k] = append(b.pending[k], slot)
	b.outstanding++
	b.numAsk++
}

// ConsumeTell validates a told point against the pending ledger, folds the
// observation into the archive, counts the tell, and returns the slot that
// was registered with the oldest matching ask.
//
// The archive update is unconditional once the ledger check passes; callers
// that need the pre-tell archive state must capture it first.
func (b *Base) ConsumeTell(p Point, value float64) (int, error) {
	if len(p) != b.params.Dimension {
		return 0, errors.WithFields(
			errors.New(errors.ContractViolation, "told point has wrong dimension"),
			errors.Fields{"want": b.params.Dimension, "got": len(p)})
	}
	k := p.Key()
	queue := b.pending[k]
	if len(queue) == 0 {
		return 0, errors.WithFields(
			errors.New(errors.ContractViolation, "tell received a point with no pending ask"),
			errors.Fields{"point": p.String(), "num_ask": b.numAsk, "num_tell": b.numTell})
	}
	slot := queue[0]
	if len(queue) == 1 {
		delete(b.pending, k)
	} else {
		b.pending[k] = queue[1:]
	}
	b.outstanding--

	b.archive.Update(p, value)
	b.numTell++
	return slot, nil
}

// RequireHistory returns an InsufficientHistory error while the optimizer
// has never been asked nor told.
func (b *Base) RequireHistory() error {
	if b.numAsk == 0 && b.numTell == 0 {
		return errors.New(errors.InsufficientHistory, "no asks or tells recorded yet")
	}
	return nil
}
