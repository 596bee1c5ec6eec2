package minimize

import (
	"context"
	"math"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XiaoConstantine/blackbox-go/pkg/core"
	"github.com/XiaoConstantine/blackbox-go/pkg/errors"
	"github.com/XiaoConstantine/blackbox-go/pkg/optimizers"
)

func bowl(center core.Point) Objective {
	return func(_ context.Context, p core.Point) (float64, error) {
		total := 0.0
		for i, v := range p {
			d := v - center[i]
			total += d * d
		}
		return total, nil
	}
}

func TestMinimizeQuadraticBowl(t *testing.T) {
	opt, err := optimizers.NewOnePlusOne(core.Params{Dimension: 2, Budget: 200, Seed: 42})
	require.NoError(t, err)

	var calls atomic.Int64
	objective := bowl(core.Point{3, -2})
	counted := func(ctx context.Context, p core.Point) (float64, error) {
		calls.Add(1)
		return objective(ctx, p)
	}

	result, err := Minimize(context.Background(), opt, counted)
	require.NoError(t, err)
	assert.Equal(t, 200, result.Evaluations)
	assert.Equal(t, int64(200), calls.Load())
	_, err = uuid.Parse(result.RunID)
	assert.NoError(t, err)

	// The recommendation is the best archived point, which can only
	// improve on the origin the run started from.
	atRec, err := objective(context.Background(), result.Recommendation)
	require.NoError(t, err)
	atOrigin, err := objective(context.Background(), core.Origin(2))
	require.NoError(t, err)
	assert.LessOrEqual(t, atRec, atOrigin)
	for _, v := range result.Recommendation {
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v))
	}
}

func TestMinimizeParallelBatches(t *testing.T) {
	opt, err := optimizers.NewTBPSA(core.Params{Dimension: 2, Budget: 64, NumWorkers: 4, Seed: 42})
	require.NoError(t, err)

	result, err := Minimize(context.Background(), opt, bowl(core.Point{1, 1}))
	require.NoError(t, err)
	assert.Equal(t, 64, result.Evaluations)
	assert.Equal(t, 64, opt.NumTell())
	assert.Equal(t, 64, opt.NumAsk())
}

func TestMinimizeEvaluationCap(t *testing.T) {
	t.Run("cap overrides the optimizer budget", func(t *testing.T) {
		opt, err := optimizers.NewOnePlusOne(core.Params{Dimension: 2, Budget: 500, Seed: 42})
		require.NoError(t, err)

		result, err := Minimize(context.Background(), opt, bowl(core.Point{0, 0}),
			WithMaxEvaluations(50))
		require.NoError(t, err)
		assert.Equal(t, 50, result.Evaluations)
	})

	t.Run("a budget must come from somewhere", func(t *testing.T) {
		opt, err := optimizers.NewOnePlusOne(core.Params{Dimension: 2, Seed: 42})
		require.NoError(t, err)

		_, err = Minimize(context.Background(), opt, bowl(core.Point{0, 0}))
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.InvalidConfig))
	})

	t.Run("rejects a negative cap", func(t *testing.T) {
		opt, err := optimizers.NewOnePlusOne(core.Params{Dimension: 2, Budget: 10, Seed: 42})
		require.NoError(t, err)

		_, err = Minimize(context.Background(), opt, bowl(core.Point{0, 0}),
			WithMaxEvaluations(-1))
		require.Error(t, err)
		assert.True(t, errors.HasCode(err, errors.InvalidConfig))
	})
}

func TestMinimizeRequiresCollaborators(t *testing.T) {
	opt, err := optimizers.NewOnePlusOne(core.Params{Dimension: 2, Budget: 10, Seed: 42})
	require.NoError(t, err)

	_, err = Minimize(context.Background(), nil, bowl(core.Point{0, 0}))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.InvalidConfig))

	_, err = Minimize(context.Background(), opt, nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.InvalidConfig))
}

func TestMinimizeObjectiveFailure(t *testing.T) {
	opt, err := optimizers.NewOnePlusOne(core.Params{Dimension: 2, Budget: 100, Seed: 42})
	require.NoError(t, err)

	var calls atomic.Int64
	failing := func(_ context.Context, p core.Point) (float64, error) {
		if calls.Add(1) == 10 {
			return 0, errors.New(errors.Unknown, "scripted evaluation failure")
		}
		return 1, nil
	}

	_, err = Minimize(context.Background(), opt, failing)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.Unknown))
	assert.Less(t, opt.NumTell(), 10, "the failing batch must not be told")
}

func TestMinimizeContextCancellation(t *testing.T) {
	opt, err := optimizers.NewOnePlusOne(core.Params{Dimension: 2, Budget: 1000, Seed: 42})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int64
	cancelling := func(_ context.Context, p core.Point) (float64, error) {
		if calls.Add(1) == 5 {
			cancel()
		}
		return 1, nil
	}

	_, err = Minimize(ctx, opt, cancelling)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.Canceled))
	assert.Less(t, opt.NumTell(), 1000)
}
