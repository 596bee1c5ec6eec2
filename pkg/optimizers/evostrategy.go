package optimizers

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distmv"
	"gopkg.in/yaml.v3"

	"github.com/XiaoConstantine/blackbox-go/pkg/config"
	"github.com/XiaoConstantine/blackbox-go/pkg/core"
	"github.com/XiaoConstantine/blackbox-go/pkg/errors"
	"github.com/XiaoConstantine/blackbox-go/pkg/logging"
)

// CovarianceUpdate selects how the sample covariance of a completed cohort
// replaces the current search covariance.
type CovarianceUpdate int

const (
	// CovarianceReplaceScaled overwrites with 0.1 times the sample
	// covariance.
	CovarianceReplaceScaled CovarianceUpdate = iota
	// CovarianceReplace overwrites with the raw sample covariance.
	CovarianceReplace
	// CovarianceBlend keeps 0.9 of the current covariance and adds 0.1 of
	// the sample covariance.
	CovarianceBlend
)

var covarianceUpdateNames = map[CovarianceUpdate]string{
	CovarianceReplaceScaled: "replace_scaled",
	CovarianceReplace:       "replace",
	CovarianceBlend:         "blend",
}

func (c CovarianceUpdate) String() string {
	if name, ok := covarianceUpdateNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCovarianceUpdate converts a configuration string to a
// CovarianceUpdate.
func ParseCovarianceUpdate(s string) (CovarianceUpdate, error) {
	for update, name := range covarianceUpdateNames {
		if name == s {
			return update, nil
		}
	}
	return 0, errors.Newf(errors.InvalidConfig, "unknown covariance update %q", s)
}

// UnmarshalYAML decodes a CovarianceUpdate from its string name.
func (c *CovarianceUpdate) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	update, err := ParseCovarianceUpdate(s)
	if err != nil {
		return err
	}
	*c = update
	return nil
}

// EvolutionStrategyConfig contains configuration options for the
// EvolutionStrategy family.
type EvolutionStrategyConfig struct {
	// Isotropic draws deviations from a unit normal in every coordinate
	// instead of a full covariance
	Isotropic bool `yaml:"isotropic"` // Default: false

	// Covariance update policy for the anisotropic variants
	Covariance CovarianceUpdate `yaml:"covariance"` // Default: replace_scaled

	// AdaptPopulation enables the noise z-test that resizes the
	// population between generations
	AdaptPopulation bool `yaml:"adapt_population"` // Default: false

	// RecommendBestObserved recommends the optimistic best archived point
	// instead of the distribution center
	RecommendBestObserved bool `yaml:"recommend_best_observed"` // Default: false
}

// individual is one sampled cohort member and the step size it was drawn
// with.
type individual struct {
	point   core.Point
	step    float64
	fitness float64
}

// EvolutionStrategy is a distribution-based optimizer: candidates are drawn
// around a moving center with per-draw log-normal step sizes, and after
// every lambda evaluations the center, step size, and (for the anisotropic
// variants) covariance are re-estimated from the best mu cohort members.
//
// The presets cover the family: NewTBPSA and NewNaiveTBPSA are the
// isotropic population-adaptive variants for noisy objectives; NewEDA,
// NewPCEDA, NewMPCEDA, and NewMEDA are the covariance-estimating variants.
type EvolutionStrategy struct {
	*core.Base

	config EvolutionStrategyConfig
	logger *logging.Logger

	sigma   float64
	center  core.Point
	cov     *mat.SymDense
	sampler *distmv.Normal
	mu      int
	lambda  int

	unevaluated []*individual
	evaluated   []*individual
	fitnessLog  []float64
}

// EvolutionStrategyOption defines functional options for EvolutionStrategy
// configuration.
type EvolutionStrategyOption func(*EvolutionStrategy)

// WithEvolutionStrategyConfig replaces the whole configuration, typically
// with one decoded from YAML.
func WithEvolutionStrategyConfig(cfg EvolutionStrategyConfig) EvolutionStrategyOption {
	return func(e *EvolutionStrategy) {
		e.config = cfg
	}
}

// WithIsotropic toggles isotropic sampling.
func WithIsotropic(isotropic bool) EvolutionStrategyOption {
	return func(e *EvolutionStrategy) {
		e.config.Isotropic = isotropic
	}
}

// WithCovarianceUpdate sets the covariance update policy.
func WithCovarianceUpdate(update CovarianceUpdate) EvolutionStrategyOption {
	return func(e *EvolutionStrategy) {
		e.config.Covariance = update
	}
}

// WithPopulationAdaptation toggles the noise z-test.
func WithPopulationAdaptation(adapt bool) EvolutionStrategyOption {
	return func(e *EvolutionStrategy) {
		e.config.AdaptPopulation = adapt
	}
}

// WithRecommendBestObserved toggles recommending the optimistic best
// archived point instead of the center.
func WithRecommendBestObserved(naive bool) EvolutionStrategyOption {
	return func(e *EvolutionStrategy) {
		e.config.RecommendBestObserved = naive
	}
}

// NewEvolutionStrategy creates an EvolutionStrategy for the given problem
// parameters. Most callers want one of the presets instead.
func NewEvolutionStrategy(params core.Params, opts ...EvolutionStrategyOption) (*EvolutionStrategy, error) {
	params.ApplyDefaults()
	if err := config.Validate(&params); err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfig, "invalid optimizer parameters")
	}

	e := &EvolutionStrategy{
		config: EvolutionStrategyConfig{Covariance: CovarianceReplaceScaled},
		logger: logging.GetLogger(),
		sigma:  1,
	}
	for _, opt := range opts {
		opt(e)
	}

	switch e.config.Covariance {
	case CovarianceReplaceScaled, CovarianceReplace, CovarianceBlend:
	default:
		return nil, errors.Newf(errors.InvalidConfig, "unknown covariance update %d", e.config.Covariance)
	}

	e.Base = core.NewBase(params)
	d := params.Dimension
	e.center = core.Origin(d)
	e.mu = d
	e.lambda = 4 * d
	if e.lambda < e.NumWorkers() {
		e.lambda = e.NumWorkers()
	}

	if !e.config.Isotropic {
		e.cov = identitySym(d)
		sampler, ok := distmv.NewNormal(make([]float64, d), e.cov, e.Rand())
		if !ok {
			return nil, errors.New(errors.InvalidConfig, "initial covariance is not positive definite")
		}
		e.sampler = sampler
	}
	return e, nil
}

// NewTBPSA creates the test-based population-size adaptation variant:
// isotropic sampling with the noise z-test, recommending the center.
func NewTBPSA(params core.Params, opts ...EvolutionStrategyOption) (*EvolutionStrategy, error) {
	base := []EvolutionStrategyOption{
		WithIsotropic(true),
		WithPopulationAdaptation(true),
	}
	return NewEvolutionStrategy(params, append(base, opts...)...)
}

// NewNaiveTBPSA is NewTBPSA recommending the best observed point instead of
// the center.
func NewNaiveTBPSA(params core.Params, opts ...EvolutionStrategyOption) (*EvolutionStrategy, error) {
	base := []EvolutionStrategyOption{
		WithIsotropic(true),
		WithPopulationAdaptation(true),
		WithRecommendBestObserved(true),
	}
	return NewEvolutionStrategy(params, append(base, opts...)...)
}

// NewEDA creates the estimation-of-distribution variant with a damped
// covariance overwrite.
func NewEDA(params core.Params, opts ...EvolutionStrategyOption) (*EvolutionStrategy, error) {
	base := []EvolutionStrategyOption{
		WithCovarianceUpdate(CovarianceReplaceScaled),
	}
	return NewEvolutionStrategy(params, append(base, opts...)...)
}

// NewPCEDA creates the population-adaptive EDA with a raw covariance
// overwrite.
func NewPCEDA(params core.Params, opts ...EvolutionStrategyOption) (*EvolutionStrategy, error) {
	base := []EvolutionStrategyOption{
		WithCovarianceUpdate(CovarianceReplace),
		WithPopulationAdaptation(true),
	}
	return NewEvolutionStrategy(params, append(base, opts...)...)
}

// NewMPCEDA creates the population-adaptive EDA with covariance blending.
func NewMPCEDA(params core.Params, opts ...EvolutionStrategyOption) (*EvolutionStrategy, error) {
	base := []EvolutionStrategyOption{
		WithCovarianceUpdate(CovarianceBlend),
		WithPopulationAdaptation(true),
	}
	return NewEvolutionStrategy(params, append(base, opts...)...)
}

// NewMEDA creates the EDA variant with covariance blending and a fixed
// population.
func NewMEDA(params core.Params, opts ...EvolutionStrategyOption) (*EvolutionStrategy, error) {
	base := []EvolutionStrategyOption{
		WithCovarianceUpdate(CovarianceBlend),
	}
	return NewEvolutionStrategy(params, append(base, opts...)...)
}

func identitySym(d int) *mat.SymDense {
	m := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		m.SetSym(i, i, 1)
	}
	return m
}

// Ask draws one cohort member around the current center.
func (e *EvolutionStrategy) Ask() (core.Point, error) {
	d := e.Dimension()
	step := e.sigma * math.Exp(e.Rand().NormFloat64()/math.Sqrt(float64(d)))

	p := make(core.Point, d)
	if e.config.Isotropic {
		for i := range p {
			p[i] = e.center[i] + step*e.Rand().NormFloat64()
		}
	} else {
		deviation := e.sampler.Rand(nil)
		for i := range p {
			p[i] = e.center[i] + step*deviation[i]
		}
	}

	e.unevaluated = append(e.unevaluated, &individual{point: p.Clone(), step: step})
	e.RegisterAsk(p, 0)
	return p, nil
}

// Tell reports an observation, moves the matching cohort member to the
// evaluated set, and re-estimates the distribution once the cohort is full.
func (e *EvolutionStrategy) Tell(p core.Point, value float64) error {
	if _, err := e.ConsumeTell(p, value); err != nil {
		return err
	}

	if e.config.AdaptPopulation {
		e.recordFitness(value)
	}

	idx := e.findUnevaluated(p)
	if idx < 0 {
		return errors.WithFields(
			errors.New(errors.ContractViolation, "told point does not belong to the active cohort"),
			errors.Fields{"point": p.String()})
	}
	ind := e.unevaluated[idx]
	e.unevaluated = append(e.unevaluated[:idx], e.unevaluated[idx+1:]...)
	ind.fitness = value
	e.evaluated = append(e.evaluated, ind)

	if len(e.evaluated) >= e.lambda {
		e.reestimate()
	}
	return nil
}

// Recommend returns the distribution center, or the optimistic best
// archived point for the naive variants.
func (e *EvolutionStrategy) Recommend() (core.Point, error) {
	if err := e.RequireHistory(); err != nil {
		return nil, err
	}
	if e.config.RecommendBestObserved {
		if best, ok := e.CurrentBest(core.Optimistic); ok {
			return best.Point(), nil
		}
	}
	return e.center.Clone(), nil
}

func (e *EvolutionStrategy) findUnevaluated(p core.Point) int {
	k := p.Key()
	for i, ind := range e.unevaluated {
		if ind.point.Key() == k {
			return i
		}
	}
	return -1
}

// recordFitness feeds the noise z-test: once 5*lambda raw values
// accumulate, the first and last lambda of them are compared. An
// indistinguishable difference means the noise still dominates, so the
// population doubles to average it out; a clear improvement lets the
// population shrink again.
func (e *EvolutionStrategy) recordFitness(value float64) {
	e.fitnessLog = append(e.fitnessLog, value)
	if len(e.fitnessLog) < 5*e.lambda {
		return
	}

	first := e.fitnessLog[:e.lambda]
	last := e.fitnessLog[len(e.fitnessLog)-e.lambda:]
	scale := math.Sqrt(float64(e.lambda - 1))
	se1 := stat.PopStdDev(first, nil) / scale
	se2 := stat.PopStdDev(last, nil) / scale
	z := (stat.Mean(first, nil) - stat.Mean(last, nil)) / math.Sqrt(se1*se1+se2*se2)

	if z < 2 {
		e.mu *= 2
	} else {
		e.mu = int(0.84 * float64(e.mu))
		if e.mu < e.Dimension() {
			e.mu = e.Dimension()
		}
	}
	e.lambda = 4 * e.mu
	if e.NumWorkers() > 1 {
		if e.lambda < e.NumWorkers() {
			e.lambda = e.NumWorkers()
		}
		e.mu = e.lambda / 4
	}
	e.fitnessLog = e.fitnessLog[:0]
	e.logger.Debug(context.Background(), "population resized: z=%.3f mu=%d lambda=%d", z, e.mu, e.lambda)
}

// reestimate recomputes covariance, center, and step size from the
// completed cohort, then clears it.
func (e *EvolutionStrategy) reestimate() {
	sort.SliceStable(e.evaluated, func(i, j int) bool {
		return e.evaluated[i].fitness < e.evaluated[j].fitness
	})

	if !e.config.Isotropic {
		e.updateCovariance()
	}

	mu := e.mu
	if mu > len(e.evaluated) {
		mu = len(e.evaluated)
	}

	center := make(core.Point, e.Dimension())
	for i := 0; i < mu; i++ {
		for j := range center {
			center[j] += e.evaluated[i].point[j]
		}
	}
	for j := range center {
		center[j] /= float64(mu)
	}
	e.center = center

	steps := make([]float64, mu)
	for i := 0; i < mu; i++ {
		steps[i] = e.evaluated[i].step
	}
	e.sigma = stat.GeometricMean(steps, nil)

	e.evaluated = e.evaluated[:0]
}

// updateCovariance folds the sample covariance of the whole cohort into the
// search covariance under the configured policy. A degenerate result keeps
// the previous sampler.
func (e *EvolutionStrategy) updateCovariance() {
	n := len(e.evaluated)
	d := e.Dimension()

	data := mat.NewDense(n, d, nil)
	for i, ind := range e.evaluated {
		data.SetRow(i, ind.point)
	}
	sample := mat.NewSymDense(d, nil)
	stat.CovarianceMatrix(sample, data, nil)

	next := mat.NewSymDense(d, nil)
	switch e.config.Covariance {
	case CovarianceReplace:
		next.CopySym(sample)
	case CovarianceBlend:
		for i := 0; i < d; i++ {
			for j := i; j < d; j++ {
				next.SetSym(i, j, 0.9*e.cov.At(i, j)+0.1*sample.At(i, j))
			}
		}
	default:
		for i := 0; i < d; i++ {
			for j := i; j < d; j++ {
				next.SetSym(i, j, 0.1*sample.At(i, j))
			}
		}
	}

	sampler, ok := distmv.NewNormal(make([]float64, d), next, e.Rand())
	if !ok {
		e.logger.Debug(context.Background(), "cohort covariance not positive definite, keeping previous sampler")
		return
	}
	e.cov = next
	e.sampler = sampler
}
