package optimizers

import (
	"context"
	"math"

	"github.com/XiaoConstantine/blackbox-go/pkg/config"
	"github.com/XiaoConstantine/blackbox-go/pkg/core"
	"github.com/XiaoConstantine/blackbox-go/pkg/errors"
	"github.com/XiaoConstantine/blackbox-go/pkg/logging"
)

// Solver is a batch-oriented external optimizer, typically a CMA-ES
// implementation. SolverBacked adapts it to the ask/tell protocol:
// candidates are served one at a time from the solver's batches, and
// observations are submitted back one full population at a time.
type Solver interface {
	// Init prepares the solver for a fresh run.
	Init(start core.Point, sigma float64, popSize int) error
	// AskBatch produces the next batch of candidates.
	AskBatch() ([]core.Point, error)
	// TellBatch submits one population worth of evaluated candidates.
	TellBatch(points []core.Point, values []float64) error
	// BestEstimate returns the solver's current best point.
	BestEstimate() core.Point
	// PopulationSize reports the batch size the solver works with.
	PopulationSize() int
}

// SolverFactory creates a fresh Solver instance. Meta-optimizers use it to
// run several independent solvers side by side.
type SolverFactory func() Solver

// SolverBackedConfig contains configuration options for SolverBacked.
type SolverBackedConfig struct {
	// Initial step size handed to the solver
	StepSize float64 `yaml:"step_size" validate:"omitempty,gt=0"` // Default: 1
}

// SolverBacked bridges a batch Solver into the ask/tell protocol. The
// solver is initialized lazily on first use with the origin as starting
// point and a population of max(numWorkers, 4+floor(3*ln(dimension))).
type SolverBacked struct {
	*core.Base

	config SolverBackedConfig
	logger *logging.Logger

	solver      Solver
	initialized bool

	candidates    []core.Point
	pendingPoints []core.Point
	pendingValues []float64
}

// SolverBackedOption defines functional options for SolverBacked
// configuration.
type SolverBackedOption func(*SolverBacked)

// WithSolverBackedConfig replaces the whole configuration, typically with
// one decoded from YAML. A zero step size keeps the default.
func WithSolverBackedConfig(cfg SolverBackedConfig) SolverBackedOption {
	return func(s *SolverBacked) {
		if cfg.StepSize == 0 {
			cfg.StepSize = s.config.StepSize
		}
		s.config = cfg
	}
}

// WithStepSize sets the initial step size handed to the solver.
func WithStepSize(step float64) SolverBackedOption {
	return func(s *SolverBacked) {
		s.config.StepSize = step
	}
}

// NewSolverBacked creates an adapter around the solver produced by the
// factory.
func NewSolverBacked(params core.Params, factory SolverFactory, opts ...SolverBackedOption) (*SolverBacked, error) {
	params.ApplyDefaults()
	if err := config.Validate(&params); err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfig, "invalid optimizer parameters")
	}
	if factory == nil {
		return nil, errors.New(errors.InvalidConfig, "solver factory is required")
	}

	s := &SolverBacked{
		config: SolverBackedConfig{StepSize: 1},
		logger: logging.GetLogger(),
		solver: factory(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := config.Validate(&s.config); err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfig, "invalid solver configuration")
	}
	if s.solver == nil {
		return nil, errors.New(errors.InvalidConfig, "solver factory returned nil")
	}

	s.Base = core.NewBase(params)
	return s, nil
}

// NewCMA creates a SolverBacked with the default unit step size.
func NewCMA(params core.Params, factory SolverFactory, opts ...SolverBackedOption) (*SolverBacked, error) {
	return NewSolverBacked(params, factory, opts...)
}

// NewMilliCMA starts the solver with a step size of 1e-3 for fine-grained
// search around the origin.
func NewMilliCMA(params core.Params, factory SolverFactory, opts ...SolverBackedOption) (*SolverBacked, error) {
	base := []SolverBackedOption{WithStepSize(1e-3)}
	return NewSolverBacked(params, factory, append(base, opts...)...)
}

// NewMicroCMA starts the solver with a step size of 1e-6.
func NewMicroCMA(params core.Params, factory SolverFactory, opts ...SolverBackedOption) (*SolverBacked, error) {
	base := []SolverBackedOption{WithStepSize(1e-6)}
	return NewSolverBacked(params, factory, append(base, opts...)...)
}

func (s *SolverBacked) ensureInit() error {
	if s.initialized {
		return nil
	}
	d := s.Dimension()
	popSize := 4 + int(3*math.Log(float64(d)))
	if popSize < s.NumWorkers() {
		popSize = s.NumWorkers()
	}
	if err := s.solver.Init(s.Origin(), s.config.StepSize, popSize); err != nil {
		return errors.Wrap(err, errors.SolverFailed, "solver initialization failed")
	}
	s.initialized = true
	s.logger.Debug(context.Background(), "solver initialized: sigma=%g popsize=%d", s.config.StepSize, popSize)
	return nil
}

// Ask returns the next candidate from the solver's current batch, fetching
// a new batch once the previous one is exhausted.
func (s *SolverBacked) Ask() (core.Point, error) {
	if err := s.ensureInit(); err != nil {
		return nil, err
	}
	if len(s.candidates) == 0 {
		batch, err := s.solver.AskBatch()
		if err != nil {
			return nil, errors.Wrap(err, errors.SolverFailed, "solver ask failed")
		}
		if len(batch) == 0 {
			return nil, errors.New(errors.SolverFailed, "solver returned an empty batch")
		}
		s.candidates = batch
	}
	p := s.candidates[0]
	s.candidates = s.candidates[1:]
	s.RegisterAsk(p, 0)
	return p, nil
}

// Tell buffers the observation and submits a full population to the solver
// once enough observations are in. A batch the solver rejects is dropped;
// the run continues with the next batch.
func (s *SolverBacked) Tell(p core.Point, value float64) error {
	if _, err := s.ConsumeTell(p, value); err != nil {
		return err
	}
	s.pendingPoints = append(s.pendingPoints, p.Clone())
	s.pendingValues = append(s.pendingValues, value)

	if len(s.pendingPoints) < s.solver.PopulationSize() {
		return nil
	}
	points, values := s.pendingPoints, s.pendingValues
	s.pendingPoints = nil
	s.pendingValues = nil
	if err := s.solver.TellBatch(points, values); err != nil {
		s.logger.Debug(context.Background(), "solver rejected batch of %d, dropping: %v", len(points), err)
	}
	return nil
}

// Recommend returns the solver's own best estimate.
func (s *SolverBacked) Recommend() (core.Point, error) {
	if !s.initialized {
		return nil, errors.New(errors.InsufficientHistory, "no points asked yet")
	}
	best := s.solver.BestEstimate()
	if best == nil {
		return nil, errors.New(errors.SolverFailed, "solver has no best estimate")
	}
	return best.Clone(), nil
}
