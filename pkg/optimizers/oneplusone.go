package optimizers

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
	"gopkg.in/yaml.v3"

	"github.com/XiaoConstantine/blackbox-go/pkg/config"
	"github.com/XiaoConstantine/blackbox-go/pkg/core"
	"github.com/XiaoConstantine/blackbox-go/pkg/errors"
)

// MutationFunc is an externally supplied elementary mutation operator. It
// receives the optimizer's random source and a private copy of the base
// point, and returns the mutated candidate.
type MutationFunc func(rng *rand.Rand, base core.Point) core.Point

// CrossoverFunc recombines the current parent with donor points drawn from
// the archive.
type CrossoverFunc func(rng *rand.Rand, parent core.Point, donors []core.Point) core.Point

// RouletteFunc samples n donor points from the archive, typically
// fitness-proportionally.
type RouletteFunc func(rng *rand.Rand, archive *core.Archive, n int) []core.Point

// MutationKind selects the variation operator of OnePlusOne.
type MutationKind int

const (
	// MutationGaussian perturbs the parent with an isotropic normal step.
	MutationGaussian MutationKind = iota
	// MutationCauchy perturbs the parent with heavy-tailed Cauchy steps.
	MutationCauchy
	// MutationDiscrete delegates to an injected discrete operator.
	MutationDiscrete
	// MutationFastGA delegates to an injected fast-GA operator.
	MutationFastGA
	// MutationDoubleFastGA delegates to an injected doubled-rate fast-GA
	// operator.
	MutationDoubleFastGA
	// MutationPortfolio delegates to an injected operator that mixes
	// several discrete mutations.
	MutationPortfolio
)

var mutationKindNames = map[MutationKind]string{
	MutationGaussian:     "gaussian",
	MutationCauchy:       "cauchy",
	MutationDiscrete:     "discrete",
	MutationFastGA:       "fastga",
	MutationDoubleFastGA: "doublefastga",
	MutationPortfolio:    "portfolio",
}

func (m MutationKind) String() string {
	if name, ok := mutationKindNames[m]; ok {
		return name
	}
	return "unknown"
}

// ParseMutationKind converts a configuration string to a MutationKind.
func ParseMutationKind(s string) (MutationKind, error) {
	for kind, name := range mutationKindNames {
		if name == s {
			return kind, nil
		}
	}
	return 0, errors.Newf(errors.InvalidConfig, "unknown mutation kind %q", s)
}

// UnmarshalYAML decodes a MutationKind from its string name.
func (m *MutationKind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	kind, err := ParseMutationKind(s)
	if err != nil {
		return err
	}
	*m = kind
	return nil
}

// NoiseStrategy selects how OnePlusOne spends asks on re-evaluating known
// points when the objective is noisy.
type NoiseStrategy int

const (
	// NoiseOff disables re-evaluation; every ask explores.
	NoiseOff NoiseStrategy = iota
	// NoiseRandom re-evaluates a uniformly random archived point.
	NoiseRandom
	// NoiseOptimistic re-evaluates the optimistic best archived point.
	NoiseOptimistic
)

var noiseStrategyNames = map[NoiseStrategy]string{
	NoiseOff:        "off",
	NoiseRandom:     "random",
	NoiseOptimistic: "optimistic",
}

func (n NoiseStrategy) String() string {
	if name, ok := noiseStrategyNames[n]; ok {
		return name
	}
	return "unknown"
}

// ParseNoiseStrategy converts a configuration string to a NoiseStrategy.
func ParseNoiseStrategy(s string) (NoiseStrategy, error) {
	for strategy, name := range noiseStrategyNames {
		if name == s {
			return strategy, nil
		}
	}
	return 0, errors.Newf(errors.InvalidConfig, "unknown noise strategy %q", s)
}

// UnmarshalYAML decodes a NoiseStrategy from its string name.
func (n *NoiseStrategy) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	strategy, err := ParseNoiseStrategy(s)
	if err != nil {
		return err
	}
	*n = strategy
	return nil
}

// OnePlusOneConfig contains configuration options for the OnePlusOne
// optimizer.
type OnePlusOneConfig struct {
	// Variation operator
	Mutation MutationKind `yaml:"mutation"` // Default: gaussian

	// Noisy-objective handling
	Noise       NoiseStrategy `yaml:"noise"`                                  // Default: off
	NoiseFactor float64       `yaml:"noise_factor" validate:"omitempty,gt=0"` // Default: 0.05

	// Recombination with archive donors on odd asks
	Crossover bool `yaml:"crossover"` // Default: false

	// Injected collaborators. Required for the operator-backed mutation
	// kinds and for crossover; never serialized.
	Mutator     MutationFunc  `yaml:"-"`
	CrossoverFn CrossoverFunc `yaml:"-"`
	RouletteFn  RouletteFunc  `yaml:"-"`
}

// OnePlusOne is a self-adaptive (1+1) optimizer. Each ask mutates the
// current pessimistic best, and each tell rescales the mutation step by the
// classic one-fifth rule: success doubles it, failure shrinks it by 0.84.
type OnePlusOne struct {
	*core.Base

	config OnePlusOneConfig
	sigma  float64
	cauchy distuv.StudentsT
}

// OnePlusOneOption defines functional options for OnePlusOne configuration.
type OnePlusOneOption func(*OnePlusOne)

// WithOnePlusOneConfig replaces the whole configuration, typically with one
// decoded from YAML. Collaborator functions are not serializable and must be
// injected with the dedicated options afterwards.
func WithOnePlusOneConfig(cfg OnePlusOneConfig) OnePlusOneOption {
	return func(o *OnePlusOne) {
		if cfg.NoiseFactor == 0 {
			cfg.NoiseFactor = o.config.NoiseFactor
		}
		o.config = cfg
	}
}

// WithMutation sets the variation operator. The operator-backed kinds
// require an injected MutationFunc via WithMutator.
func WithMutation(kind MutationKind) OnePlusOneOption {
	return func(o *OnePlusOne) {
		o.config.Mutation = kind
	}
}

// WithMutator injects the elementary operator used by the operator-backed
// mutation kinds.
func WithMutator(fn MutationFunc) OnePlusOneOption {
	return func(o *OnePlusOne) {
		o.config.Mutator = fn
	}
}

// WithNoise enables noisy-objective handling with the given strategy and
// re-evaluation factor. A zero factor keeps the default of 0.05.
func WithNoise(strategy NoiseStrategy, factor float64) OnePlusOneOption {
	return func(o *OnePlusOne) {
		o.config.Noise = strategy
		if factor != 0 {
			o.config.NoiseFactor = factor
		}
	}
}

// WithCrossover enables donor recombination on odd asks using the injected
// crossover and roulette collaborators.
func WithCrossover(crossover CrossoverFunc, roulette RouletteFunc) OnePlusOneOption {
	return func(o *OnePlusOne) {
		o.config.Crossover = true
		o.config.CrossoverFn = crossover
		o.config.RouletteFn = roulette
	}
}

// NewOnePlusOne creates a OnePlusOne optimizer for the given problem
// parameters.
func NewOnePlusOne(params core.Params, opts ...OnePlusOneOption) (*OnePlusOne, error) {
	params.ApplyDefaults()
	if err := config.Validate(&params); err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfig, "invalid optimizer parameters")
	}

	o := &OnePlusOne{
		config: OnePlusOneConfig{
			Mutation:    MutationGaussian,
			Noise:       NoiseOff,
			NoiseFactor: 0.05,
		},
		sigma: 1,
	}
	for _, opt := range opts {
		opt(o)
	}

	if err := config.Validate(&o.config); err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfig, "invalid OnePlusOne configuration")
	}
	switch o.config.Mutation {
	case MutationGaussian, MutationCauchy:
	case MutationDiscrete, MutationFastGA, MutationDoubleFastGA, MutationPortfolio:
		if o.config.Mutator == nil {
			return nil, errors.Newf(errors.InvalidConfig,
				"mutation kind %s requires an injected operator", o.config.Mutation)
		}
	default:
		return nil, errors.Newf(errors.InvalidConfig, "unknown mutation kind %d", o.config.Mutation)
	}
	switch o.config.Noise {
	case NoiseOff, NoiseRandom, NoiseOptimistic:
	default:
		return nil, errors.Newf(errors.InvalidConfig, "unknown noise strategy %d", o.config.Noise)
	}
	if o.config.Crossover && (o.config.CrossoverFn == nil || o.config.RouletteFn == nil) {
		return nil, errors.New(errors.InvalidConfig,
			"crossover requires injected crossover and roulette collaborators")
	}

	o.Base = core.NewBase(params)
	o.cauchy = distuv.StudentsT{Mu: 0, Sigma: 1, Nu: 1, Src: o.Rand()}
	return o, nil
}

// Ask returns the next candidate point.
func (o *OnePlusOne) Ask() (core.Point, error) {
	p := o.nextPoint()
	o.RegisterAsk(p, 0)
	return p, nil
}

func (o *OnePlusOne) nextPoint() core.Point {
	if o.NumAsk() == 0 {
		return o.Origin()
	}

	archive := o.Archive()

	// Noisy objectives: spend early asks re-evaluating known points. The
	// allowance grows with the cube of the archive size.
	if o.config.Noise != NoiseOff {
		limit := o.config.NoiseFactor * math.Pow(float64(archive.Len()), 3)
		if float64(o.NumAsk()) <= limit {
			if o.config.Noise == NoiseRandom {
				if rec, ok := archive.RandomRecord(o.Rand()); ok {
					return rec.Point()
				}
			} else if best, ok := o.CurrentBest(core.Optimistic); ok {
				return best.Point()
			}
		}
	}

	if o.config.Crossover && o.NumAsk()%2 == 1 && archive.Len() > 2 {
		donors := o.config.RouletteFn(o.Rand(), archive, 2)
		return o.config.CrossoverFn(o.Rand(), o.parent(), donors)
	}

	return o.mutate(o.parent())
}

// parent returns a private copy of the pessimistic best, or the origin while
// the archive is empty.
func (o *OnePlusOne) parent() core.Point {
	if best, ok := o.CurrentBest(core.Pessimistic); ok {
		return best.Point()
	}
	return o.Origin()
}

func (o *OnePlusOne) mutate(base core.Point) core.Point {
	switch o.config.Mutation {
	case MutationGaussian:
		for i := range base {
			base[i] += o.sigma * o.Rand().NormFloat64()
		}
		return base
	case MutationCauchy:
		for i := range base {
			base[i] += o.sigma * o.cauchy.Rand()
		}
		return base
	default:
		return o.config.Mutator(o.Rand(), base)
	}
}

// Tell reports an observation and rescales the mutation step. The
// comparison runs against the pessimistic best as it stood before this
// observation entered the archive, so the very first tell never adapts.
func (o *OnePlusOne) Tell(p core.Point, value float64) error {
	prevBest, hadBest := o.CurrentBest(core.Pessimistic)
	var prevMean float64
	if hadBest {
		prevMean = prevBest.Mean()
	}

	if _, err := o.ConsumeTell(p, value); err != nil {
		return err
	}

	// Step size feeds only the gaussian and cauchy kinds; adapting it
	// unconditionally is harmless for the operator-backed ones.
	if hadBest {
		if value <= prevMean {
			o.sigma *= 2
		} else {
			o.sigma *= 0.84
		}
	}
	return nil
}

// Recommend returns the pessimistic best observed point, or the origin while
// nothing has been told back.
func (o *OnePlusOne) Recommend() (core.Point, error) {
	if err := o.RequireHistory(); err != nil {
		return nil, err
	}
	return o.parent(), nil
}
