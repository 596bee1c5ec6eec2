package optimizers

import (
	"math"

	"github.com/XiaoConstantine/blackbox-go/pkg/config"
	"github.com/XiaoConstantine/blackbox-go/pkg/core"
	"github.com/XiaoConstantine/blackbox-go/pkg/errors"
)

// SPSA approximates the gradient from paired probes t-c_k*delta and
// t+c_k*delta along a random sign vector, then moves the iterate against
// it with decaying gains. The pairing makes it strictly sequential: every
// ask must be told before the next ask.
//
// Recommendations average the iterate over all iterations, which smooths
// out the probe noise.
type SPSA struct {
	*core.Base

	init  bool
	idx   int
	delta []float64
	yp    float64
	ym    float64
	ypSet bool
	ymSet bool

	t   core.Point
	avg core.Point

	// Gain constants. a scales the step and c the probe width;
	// stability delays the step decay.
	a         float64
	c         float64
	stability int
}

// NewSPSA creates a simultaneous perturbation stochastic approximation
// optimizer. It refuses parallel configurations.
func NewSPSA(params core.Params) (*SPSA, error) {
	params.ApplyDefaults()
	if err := config.Validate(&params); err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfig, "invalid optimizer parameters")
	}
	if params.NumWorkers > 1 {
		return nil, errors.Newf(errors.InvalidConfig,
			"spsa is strictly sequential, got %d workers", params.NumWorkers)
	}

	s := &SPSA{
		init:      true,
		a:         1e-5,
		c:         1e-1,
		stability: 10,
	}
	if params.Budget/20 > s.stability {
		s.stability = params.Budget / 20
	}
	s.Base = core.NewBase(params)
	s.t = core.Origin(params.Dimension)
	s.avg = core.Origin(params.Dimension)
	return s, nil
}

func (s *SPSA) ck(k int) float64 {
	return s.c / math.Pow(float64(k/2+1), 0.101)
}

func (s *SPSA) ak(k int) float64 {
	return s.a / math.Pow(float64(k/2+1+s.stability), 0.602)
}

// Ask returns the next probe. Even iterations first fold the previous
// pair's gradient estimate into the iterate and draw a fresh sign vector;
// odd iterations return the mirrored probe of the same pair.
func (s *SPSA) Ask() (core.Point, error) {
	if s.Outstanding() > 0 {
		return nil, errors.New(errors.ContractViolation,
			"sequential optimizer: tell the outstanding point first")
	}

	k := s.idx
	d := s.Dimension()
	c := s.ck(k)
	p := make(core.Point, d)

	if k%2 == 0 {
		if !s.init {
			scale := s.ak(k) * (s.yp - s.ym) / (2 * c)
			for i := 0; i < d; i++ {
				s.t[i] -= scale * s.delta[i]
				s.avg[i] += (s.t[i] - s.avg[i]) / float64(k/2+1)
			}
		}
		s.delta = make([]float64, d)
		for i := range s.delta {
			s.delta[i] = float64(2*s.Rand().Intn(2) - 1)
		}
		for i := range p {
			p[i] = s.t[i] - c*s.delta[i]
		}
	} else {
		for i := range p {
			p[i] = s.t[i] + c*s.delta[i]
		}
	}

	s.RegisterAsk(p, 0)
	return p, nil
}

// Tell records the probe's observation on the minus or plus side of the
// current pair.
func (s *SPSA) Tell(p core.Point, value float64) error {
	if _, err := s.ConsumeTell(p, value); err != nil {
		return err
	}
	if s.idx%2 == 0 {
		s.ym = value
		s.ymSet = true
	} else {
		s.yp = value
		s.ypSet = true
	}
	s.idx++
	if s.init && s.ypSet && s.ymSet {
		s.init = false
	}
	return nil
}

// Recommend returns the averaged iterate.
func (s *SPSA) Recommend() (core.Point, error) {
	if err := s.RequireHistory(); err != nil {
		return nil, err
	}
	return s.avg.Clone(), nil
}
