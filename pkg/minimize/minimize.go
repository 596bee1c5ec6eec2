// Package minimize drives an optimizer against a caller-supplied objective
// until an evaluation budget is spent, evaluating each batch of candidates
// concurrently.
package minimize

import (
	"context"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"github.com/XiaoConstantine/blackbox-go/pkg/core"
	"github.com/XiaoConstantine/blackbox-go/pkg/errors"
	"github.com/XiaoConstantine/blackbox-go/pkg/logging"
)

// Objective evaluates a candidate point. It is called concurrently from
// the driver, once per candidate in a batch.
type Objective func(ctx context.Context, p core.Point) (float64, error)

// Result carries the outcome of a finished run.
type Result struct {
	// Recommendation is the optimizer's final answer.
	Recommendation core.Point
	// Evaluations is the number of objective evaluations spent.
	Evaluations int
	// RunID identifies the run in log output.
	RunID string
}

type options struct {
	maxEvaluations int
}

// Option defines functional options for Minimize.
type Option func(*options)

// WithMaxEvaluations caps the number of objective evaluations, overriding
// the optimizer's own budget.
func WithMaxEvaluations(n int) Option {
	return func(o *options) {
		o.maxEvaluations = n
	}
}

// Minimize runs the ask/evaluate/tell loop until the budget is exhausted
// and returns the optimizer's recommendation. Batches of up to
// opt.NumWorkers() candidates are evaluated concurrently; their
// observations are told back in ask order.
func Minimize(ctx context.Context, opt core.Optimizer, objective Objective, opts ...Option) (*Result, error) {
	if opt == nil {
		return nil, errors.New(errors.InvalidConfig, "optimizer is required")
	}
	if objective == nil {
		return nil, errors.New(errors.InvalidConfig, "objective is required")
	}

	var o options
	for _, apply := range opts {
		apply(&o)
	}
	if o.maxEvaluations < 0 {
		return nil, errors.Newf(errors.InvalidConfig, "negative evaluation cap %d", o.maxEvaluations)
	}
	budget := o.maxEvaluations
	if budget == 0 {
		budget = opt.Budget()
	}
	if budget == 0 {
		return nil, errors.New(errors.InvalidConfig, "no budget: the optimizer has none and no cap was given")
	}

	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)
	logger := logging.GetLogger()
	logger.Info(ctx, "starting run: dimension=%d budget=%d workers=%d",
		opt.Dimension(), budget, opt.NumWorkers())

	evaluations := 0
	for evaluations < budget {
		if err := errors.CheckContext(ctx, "minimize"); err != nil {
			return nil, err
		}

		batch := opt.NumWorkers()
		if remaining := budget - evaluations; batch > remaining {
			batch = remaining
		}
		if batch < 1 {
			batch = 1
		}

		points := make([]core.Point, batch)
		for i := range points {
			p, err := opt.Ask()
			if err != nil {
				return nil, err
			}
			points[i] = p
		}

		values := make([]float64, batch)
		evalPool := pool.New().WithErrors().WithContext(ctx).WithCancelOnError().WithMaxGoroutines(batch)
		for i, point := range points {
			i, point := i, point
			evalPool.Go(func(ctx context.Context) error {
				v, err := objective(ctx, point)
				if err != nil {
					return err
				}
				values[i] = v
				return nil
			})
		}
		if err := evalPool.Wait(); err != nil {
			return nil, errors.Wrap(err, errors.Unknown, "objective evaluation failed")
		}

		for i, point := range points {
			if err := opt.Tell(point, values[i]); err != nil {
				return nil, err
			}
		}
		evaluations += batch
	}

	recommendation, err := opt.Recommend()
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "run finished: evaluations=%d recommendation=%s", evaluations, recommendation)
	return &Result{
		Recommendation: recommendation,
		Evaluations:    evaluations,
		RunID:          runID,
	}, nil
}
