package optimizers

import (
	"github.com/XiaoConstantine/blackbox-go/pkg/config"
	"github.com/XiaoConstantine/blackbox-go/pkg/core"
	"github.com/XiaoConstantine/blackbox-go/pkg/errors"
)

// NoisyBandit balances exploring fresh gaussian draws against re-evaluating
// archived points to average out observation noise. Exploration dominates
// while the archive is small; once it holds enough distinct points, half
// the revisits go to the optimistic best and half to a uniformly random
// archived point.
type NoisyBandit struct {
	*core.Base
}

// NewNoisyBandit creates a bandit-style optimizer for noisy objectives.
func NewNoisyBandit(params core.Params) (*NoisyBandit, error) {
	params.ApplyDefaults()
	if err := config.Validate(&params); err != nil {
		return nil, errors.Wrap(err, errors.InvalidConfig, "invalid optimizer parameters")
	}
	b := &NoisyBandit{}
	b.Base = core.NewBase(params)
	return b, nil
}

func (b *NoisyBandit) sample() core.Point {
	p := make(core.Point, b.Dimension())
	for i := range p {
		p[i] = b.Rand().NormFloat64()
	}
	return p
}

func (b *NoisyBandit) nextPoint() core.Point {
	n := b.Archive().Len()
	if 20*b.NumAsk() >= n*n*n {
		return b.sample()
	}
	if b.Rand().Intn(2) == 0 {
		if best, ok := b.CurrentBest(core.Optimistic); ok {
			return best.Point()
		}
	}
	if rec, ok := b.Archive().RandomRecord(b.Rand()); ok {
		return rec.Point()
	}
	return b.sample()
}

// Ask returns either a fresh gaussian draw or an archived point to
// re-evaluate.
func (b *NoisyBandit) Ask() (core.Point, error) {
	p := b.nextPoint()
	b.RegisterAsk(p, 0)
	return p, nil
}

// Tell records the observation.
func (b *NoisyBandit) Tell(p core.Point, value float64) error {
	_, err := b.ConsumeTell(p, value)
	return err
}

// Recommend returns the pessimistic best archived point.
func (b *NoisyBandit) Recommend() (core.Point, error) {
	if err := b.RequireHistory(); err != nil {
		return nil, err
	}
	if best, ok := b.CurrentBest(core.Pessimistic); ok {
		return best.Point(), nil
	}
	return b.Origin(), nil
}
