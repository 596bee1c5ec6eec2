package optimizers

import (
	"context"
	"math"

	"github.com/XiaoConstantine/blackbox-go/pkg/config"
	"github.com/XiaoConstantine/blackbox-go/pkg/core"
	"github.com/XiaoConstantine/blackbox-go/pkg/errors"
	"github.com/XiaoConstantine/blackbox-go/pkg/logging"
)

// Portfolio runs several optimizers side by side and dispatches asks among
// them. Every observation is routed back to the member that produced the
// point, so each member only ever sees its own asks.
//
// With active selection enabled, a fixed exploration budget is shared
// round-robin first; after that the portfolio commits to the member whose
// pessimistic best is cheapest and dispatches to it exclusively.
type Portfolio struct {
	*core.Base

	logger  *logging.Logger
	members []core.Optimizer
	slots   []int

	selection   bool
	exploreLeft int
	committed   int
}

// PortfolioOption defines functional options for Portfolio configuration.
type PortfolioOption func(*Portfolio)

// WithSlotAssignment fixes which member serves each ask: ask number n goes
// to member slots[n % len(slots)]. An empty assignment keeps the default
// round-robin.
func WithSlotAssignment(slots []int) PortfolioOption {
	return func(p *Portfolio) {
		p.slots = slots
	}
}

// WithExploration enables active selection after n round-robin asks.
func WithExploration(n int) PortfolioOption {
	return func(p *Portfolio) {
		p.selection = true
		p.exploreLeft = n
	}
}

// NewPortfolio creates a portfolio over the given members. Members must
// share the portfolio's dimension.
func NewPortfolio(params core.Params, members []core.Optimizer, opts ...PortfolioOption) (*Portfolio, error) {
	params.ApplyDefaults()
	if err := config.Validate(&params); err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfig, "invalid optimizer parameters")
	}
	if len(members) == 0 {
		return nil, errors.New(errors.InvalidConfig, "portfolio needs at least one member")
	}

	p := &Portfolio{
		logger:    logging.GetLogger(),
		members:   members,
		committed: -1,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.selection && p.exploreLeft < 0 {
		return nil, errors.Newf(errors.InvalidConfig, "negative exploration budget %d", p.exploreLeft)
	}
	for i, m := range members {
		if m == nil {
			return nil, errors.Newf(errors.InvalidConfig, "member %d is nil", i)
		}
		if m.Dimension() != params.Dimension {
			return nil, errors.Newf(errors.InvalidConfig,
				"member %d has dimension %d, portfolio has %d", i, m.Dimension(), params.Dimension)
		}
	}
	for _, s := range p.slots {
		if s < 0 || s >= len(members) {
			return nil, errors.Newf(errors.InvalidConfig, "slot assignment %d out of range", s)
		}
	}

	p.Base = core.NewBase(params)
	return p, nil
}

// memberIndex picks the member serving the current ask.
func (p *Portfolio) memberIndex() int {
	if p.selection {
		if p.exploreLeft > 0 {
			p.exploreLeft--
			return p.NumAsk() % len(p.members)
		}
		if p.committed < 0 {
			best := math.Inf(1)
			for i, m := range p.members {
				val := math.Inf(1)
				if rec, ok := m.CurrentBest(core.Pessimistic); ok {
					val = rec.Estimate(core.Pessimistic)
				}
				// Ties go to the later member, including the all-unknown
				// case.
				if !(val > best) {
					p.committed = i
					best = val
				}
			}
			p.logger.Debug(context.Background(), "portfolio committed to member %d", p.committed)
		}
		return p.committed
	}
	if len(p.slots) > 0 {
		return p.slots[p.NumAsk()%len(p.slots)]
	}
	return p.NumAsk() % len(p.members)
}

// Ask delegates to the scheduled member.
func (p *Portfolio) Ask() (core.Point, error) {
	idx := p.memberIndex()
	point, err := p.members[idx].Ask()
	if err != nil {
		return nil, err
	}
	p.RegisterAsk(point, idx)
	return point, nil
}

// Tell routes the observation back to the member that asked the point.
func (p *Portfolio) Tell(point core.Point, value float64) error {
	idx, err := p.ConsumeTell(point, value)
	if err != nil {
		return err
	}
	return p.members[idx].Tell(point, value)
}

// Recommend returns the pessimistic best point seen across all members.
func (p *Portfolio) Recommend() (core.Point, error) {
	best, ok := p.CurrentBest(core.Pessimistic)
	if !ok {
		return nil, errors.New(errors.InsufficientHistory, "no observations told yet")
	}
	return best.Point(), nil
}

// IntShare splits n into m nearly even non-negative parts, assigning the
// remainder from the front.
func IntShare(n, m int) []int {
	shares := make([]int, m)
	for i := range shares {
		shares[i] = n / m
	}
	for i := 0; i < n%m; i++ {
		shares[i]++
	}
	return shares
}

// SplitParams derives per-member parameters from the portfolio's own: the
// budget is shared out nearly evenly and every member gets its own seed
// stream.
func SplitParams(params core.Params, m int) []core.Params {
	shares := IntShare(params.Budget, m)
	out := make([]core.Params, m)
	for i := range out {
		out[i] = params
		out[i].Budget = shares[i]
		out[i].Seed = params.Seed + uint64(i) + 1
	}
	return out
}

// NewCompetenceMap picks a portfolio composition from the problem shape:
// small budgets get a single OnePlusOne, most other shapes get three
// concurrent solvers with a tenth of the budget reserved for choosing
// among them, and wide parallel runs with small budgets fall back to a
// single population-adaptive strategy.
func NewCompetenceMap(params core.Params, factory SolverFactory, opts ...PortfolioOption) (*Portfolio, error) {
	if params.Budget <= 0 {
		return nil, errors.New(errors.InvalidConfig, "competence map needs a budget")
	}
	params.ApplyDefaults()

	if params.Budget < 201 {
		member, err := NewOnePlusOne(SplitParams(params, 1)[0])
		if err != nil {
			return nil, err
		}
		return NewPortfolio(params, []core.Optimizer{member}, opts...)
	}

	if params.Budget > 50*params.Dimension || params.NumWorkers < 30 {
		base := []PortfolioOption{WithExploration(params.Budget / 10)}
		return newSolverPortfolio(params, factory, []float64{1, 1, 1}, append(base, opts...))
	}

	member, err := NewTBPSA(SplitParams(params, 1)[0])
	if err != nil {
		return nil, err
	}
	return NewPortfolio(params, []core.Optimizer{member}, opts...)
}

// NewMultiCMA runs three solvers and commits after a tenth of the budget.
func NewMultiCMA(params core.Params, factory SolverFactory, opts ...PortfolioOption) (*Portfolio, error) {
	if params.Budget <= 0 {
		return nil, errors.New(errors.InvalidConfig, "multi-cma needs a budget")
	}
	params.ApplyDefaults()
	base := []PortfolioOption{WithExploration(params.Budget / 10)}
	return newSolverPortfolio(params, factory, []float64{1, 1, 1}, append(base, opts...))
}

// NewTripleCMA runs three solvers and commits after a third of the budget.
func NewTripleCMA(params core.Params, factory SolverFactory, opts ...PortfolioOption) (*Portfolio, error) {
	if params.Budget <= 0 {
		return nil, errors.New(errors.InvalidConfig, "triple-cma needs a budget")
	}
	params.ApplyDefaults()
	base := []PortfolioOption{WithExploration(params.Budget / 3)}
	return newSolverPortfolio(params, factory, []float64{1, 1, 1}, append(base, opts...))
}

// NewMultiScaleCMA runs three solvers at step sizes 1, 1e-3, and 1e-6 and
// commits after a third of the budget.
func NewMultiScaleCMA(params core.Params, factory SolverFactory, opts ...PortfolioOption) (*Portfolio, error) {
	if params.Budget <= 0 {
		return nil, errors.New(errors.InvalidConfig, "multi-scale-cma needs a budget")
	}
	params.ApplyDefaults()
	base := []PortfolioOption{WithExploration(params.Budget / 3)}
	return newSolverPortfolio(params, factory, []float64{1, 1e-3, 1e-6}, append(base, opts...))
}

func newSolverPortfolio(params core.Params, factory SolverFactory, steps []float64, opts []PortfolioOption) (*Portfolio, error) {
	memberParams := SplitParams(params, len(steps))
	members := make([]core.Optimizer, len(steps))
	for i, step := range steps {
		member, err := NewSolverBacked(memberParams[i], factory, WithStepSize(step))
		if err != nil {
			return nil, err
		}
		members[i] = member
	}
	return NewPortfolio(params, members, opts...)
}
