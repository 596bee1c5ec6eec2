// Package blackbox is a derivative-free optimization toolkit for noisy
// black-box objectives, built around a uniform ask/tell protocol.
//
// An optimizer never evaluates anything itself: callers ask for candidate
// points, evaluate them however they like, and tell the observed values
// back. The same contract covers sequential and parallel evaluation, noisy
// and noise-free objectives, and single optimizers as well as portfolios
// of them.
//
// Key Components:
//
//   - Core: the Optimizer contract, continuous candidate points keyed
//     bit-exactly for bookkeeping, and the observation archive that tracks
//     running statistics and best points under optimistic, pessimistic,
//     and average policies.
//
//   - Optimizers: the algorithm families:
//     * OnePlusOne: mutation-based hill climbing with one-fifth step
//       adaptation, optional noise re-evaluation and crossover
//     * EvolutionStrategy: distribution-based search with TBPSA and EDA
//       presets, population-size adaptation for noisy objectives, and
//       full covariance estimation
//     * SolverBacked: adapts an external batch solver such as CMA-ES to
//       the ask/tell protocol, with milli and micro step-size presets
//     * PSO: particle swarm in the unit cube mapped through the normal
//       quantile
//     * SPSA: simultaneous perturbation stochastic approximation with
//       paired probes
//     * NoisyBandit: bandit-style re-evaluation for very noisy objectives
//     * Portfolio: runs several optimizers side by side, with competence
//       map presets that pick a composition from the problem shape
//
//   - Minimize: a budget-driven loop that evaluates batches of candidates
//     concurrently against a caller-supplied objective.
//
//   - Config: YAML-backed settings with struct-tag validation.
//
// Simple Example:
//
//	import (
//	    "context"
//	    "log"
//
//	    "github.com/XiaoConstantine/blackbox-go/pkg/core"
//	    "github.com/XiaoConstantine/blackbox-go/pkg/minimize"
//	    "github.com/XiaoConstantine/blackbox-go/pkg/optimizers"
//	)
//
//	func main() {
//	    opt, err := optimizers.NewOnePlusOne(core.Params{Dimension: 2, Budget: 500})
//	    if err != nil {
//	        log.Fatalf("Failed to create optimizer: %v", err)
//	    }
//
//	    sphere := func(ctx context.Context, p core.Point) (float64, error) {
//	        total := 0.0
//	        for _, v := range p {
//	            total += v * v
//	        }
//	        return total, nil
//	    }
//
//	    result, err := minimize.Minimize(context.Background(), opt, sphere)
//	    if err != nil {
//	        log.Fatalf("Run failed: %v", err)
//	    }
//	    log.Printf("Best point: %s after %d evaluations", result.Recommendation, result.Evaluations)
//	}
//
// The ask/tell protocol is also available directly for callers that manage
// evaluation themselves:
//
//	p, err := opt.Ask()
//	// evaluate p any way you like
//	err = opt.Tell(p, value)
//	best, err := opt.Recommend()
//
// Advanced Features:
//
//   - Noise handling: archived points carry running means and variances,
//     so optimizers can re-evaluate promising candidates instead of
//     trusting a single noisy observation.
//
//   - Parallelism tolerance: optimizers accept several outstanding asks
//     at once and accept observations in any order.
//
//   - Structured logging: runs are tagged with an identifier that flows
//     through the context into every log entry.
//
//   - Error Handling: comprehensive error management with custom error
//     types and stable error codes for contract violations.
//
// For more examples and detailed documentation, visit:
// https://github.com/XiaoConstantine/blackbox-go
//
// Released under the MIT License.
package blackbox
