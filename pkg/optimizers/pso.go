package optimizers

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/XiaoConstantine/blackbox-go/pkg/config"
	"github.com/XiaoConstantine/blackbox-go/pkg/core"
	"github.com/XiaoConstantine/blackbox-go/pkg/errors"
)

// unitEps keeps swarm positions strictly inside the open unit cube so the
// probit transform stays finite.
const unitEps = 1e-10

// PSOConfig contains configuration options for the particle swarm.
type PSOConfig struct {
	// Inertia weight applied to the previous velocity
	Omega float64 `yaml:"omega" validate:"omitempty,gt=0"` // Default: 0.5/ln(2)

	// Pull towards the particle's own best position
	CognitiveWeight float64 `yaml:"cognitive_weight" validate:"omitempty,gt=0"` // Default: 0.5+ln(2)

	// Pull towards the swarm's best position
	SocialWeight float64 `yaml:"social_weight" validate:"omitempty,gt=0"` // Default: 0.5+ln(2)
}

type particle struct {
	position  core.Point
	velocity  []float64
	best      core.Point
	bestFit   float64
	evaluated bool
}

// PSO is a particle swarm working in the open unit cube, mapped to the
// unbounded domain through the standard normal quantile. Each particle is
// asked at most once per position: a particle leaves the free queue when
// asked and rejoins it when its observation is told, so at most
// max(40, numWorkers) asks can be outstanding at a time.
type PSO struct {
	*core.Base

	config PSOConfig
	normal distuv.Normal

	lambda      int
	swarm       []*particle
	queue       []int
	gbest       core.Point
	gbestFit    float64
	initialized bool
}

// PSOOption defines functional options for PSO configuration.
type PSOOption func(*PSO)

// WithPSOConfig replaces the whole configuration, typically with one
// decoded from YAML. Zero weights keep their defaults.
func WithPSOConfig(cfg PSOConfig) PSOOption {
	return func(p *PSO) {
		if cfg.Omega == 0 {
			cfg.Omega = p.config.Omega
		}
		if cfg.CognitiveWeight == 0 {
			cfg.CognitiveWeight = p.config.CognitiveWeight
		}
		if cfg.SocialWeight == 0 {
			cfg.SocialWeight = p.config.SocialWeight
		}
		p.config = cfg
	}
}

// WithInertia sets the inertia weight.
func WithInertia(omega float64) PSOOption {
	return func(p *PSO) {
		p.config.Omega = omega
	}
}

// WithWeights sets the cognitive and social pull weights.
func WithWeights(cognitive, social float64) PSOOption {
	return func(p *PSO) {
		p.config.CognitiveWeight = cognitive
		p.config.SocialWeight = social
	}
}

// NewPSO creates a particle swarm optimizer for the given problem
// parameters.
func NewPSO(params core.Params, opts ...PSOOption) (*PSO, error) {
	params.ApplyDefaults()
	if err := config.Validate(&params); err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfig, "invalid optimizer parameters")
	}

	p := &PSO{
		config: PSOConfig{
			Omega:           0.5 / math.Ln2,
			CognitiveWeight: 0.5 + math.Ln2,
			SocialWeight:    0.5 + math.Ln2,
		},
		normal:   distuv.Normal{Mu: 0, Sigma: 1},
		gbestFit: math.Inf(1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := config.Validate(&p.config); err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfig, "invalid swarm configuration")
	}

	p.Base = core.NewBase(params)
	p.lambda = 40
	if p.NumWorkers() > p.lambda {
		p.lambda = p.NumWorkers()
	}
	return p, nil
}

func clamp01(x float64) float64 {
	if x < unitEps {
		return unitEps
	}
	if x > 1-unitEps {
		return 1 - unitEps
	}
	return x
}

func (p *PSO) ensureSwarm() {
	if p.initialized {
		return
	}
	d := p.Dimension()
	p.swarm = make([]*particle, p.lambda)
	p.queue = make([]int, 0, p.lambda)
	for i := range p.swarm {
		pos := make(core.Point, d)
		vel := make([]float64, d)
		for j := 0; j < d; j++ {
			pos[j] = clamp01(p.Rand().Float64())
			vel[j] = 2*p.Rand().Float64() - 1
		}
		p.swarm[i] = &particle{
			position: pos,
			velocity: vel,
			best:     pos.Clone(),
			bestFit:  math.Inf(1),
		}
		p.queue = append(p.queue, i)
	}
	p.initialized = true
}

// transform maps a unit-cube position to the unbounded domain coordinate
// by coordinate.
func (p *PSO) transform(position core.Point) core.Point {
	out := make(core.Point, len(position))
	for i, v := range position {
		out[i] = p.normal.Quantile(v)
	}
	return out
}

// moveParticle applies one velocity and position update.
func (p *PSO) moveParticle(part *particle) {
	for i := range part.position {
		rp := p.Rand().Float64()
		rg := p.Rand().Float64()
		part.velocity[i] = p.config.Omega*part.velocity[i] +
			p.config.CognitiveWeight*rp*(part.best[i]-part.position[i]) +
			p.config.SocialWeight*rg*(p.gbest[i]-part.position[i])
		part.position[i] = clamp01(part.position[i] + part.velocity[i])
	}
}

// Ask moves the next free particle and returns its transformed position.
// When every particle awaits an observation the swarm cannot produce
// another candidate and Ask fails.
func (p *PSO) Ask() (core.Point, error) {
	p.ensureSwarm()
	if len(p.queue) == 0 {
		return nil, errors.WithFields(
			errors.New(errors.ContractViolation, "all particles await their observations"),
			errors.Fields{"swarm_size": p.lambda})
	}
	idx := p.queue[0]
	part := p.swarm[idx]
	if part.evaluated {
		p.moveParticle(part)
	}
	candidate := p.transform(part.position)
	p.RegisterAsk(candidate, idx)
	p.queue = p.queue[1:]
	return candidate, nil
}

// Tell records the observation for the particle that produced the point
// and returns the particle to the back of the free queue.
func (p *PSO) Tell(pt core.Point, value float64) error {
	idx, err := p.ConsumeTell(pt, value)
	if err != nil {
		return err
	}
	part := p.swarm[idx]
	// The first observation seeds the swarm best regardless of value;
	// moveParticle reads it for every evaluated particle.
	if p.gbest == nil || value < p.gbestFit {
		p.gbestFit = value
		p.gbest = part.position.Clone()
	}
	if value < part.bestFit {
		part.bestFit = value
		part.best = part.position.Clone()
	}
	part.evaluated = true
	p.queue = append(p.queue, idx)
	return nil
}

// Recommend returns the transformed swarm-best position.
func (p *PSO) Recommend() (core.Point, error) {
	if p.gbest == nil {
		return nil, errors.New(errors.InsufficientHistory, "no observations told yet")
	}
	return p.transform(p.gbest), nil
}
