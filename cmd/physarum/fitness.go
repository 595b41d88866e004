package main

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/game"
	"github.com/pthm-cable/physarum/telemetry"
)

// Fitness weights and windowing.
const (
	// trailPenalty scales the trail fraction subtracted from connectivity,
	// favouring sparse networks that still join attractors
	trailPenalty = 0.5

	fitnessWarmupWindows = 2 // skip first N windows while trails form

	// failedFitness is returned when a parameter set cannot be built
	failedFitness = 1.0
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	ticks      int
	seeds      []uint64
	baseConfig *config.Config

	mu          sync.Mutex
	lastQuality float64 // mean pairs connected from the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, ticks int, seeds []uint64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		ticks:      ticks,
		seeds:      seeds,
		baseConfig: baseCfg,
	}
}

// LastQuality returns the mean attractor pair connectivity from the most
// recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness   float64
	connected float64
}

// Evaluate computes fitness for a raw parameter vector (lower = better),
// averaged over all seeds. Seeds run in parallel.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s uint64) {
			defer wg.Done()
			windows, err := fe.runSimulation(x, s)
			if err != nil {
				slog.Warn("evaluation failed", "seed", s, "error", err)
				results[idx] = seedResult{fitness: failedFitness}
				return
			}
			results[idx] = scoreWindows(windows)
		}(i, seed)
	}
	wg.Wait()

	fitness := make([]float64, len(results))
	connected := make([]float64, len(results))
	for i, r := range results {
		fitness[i] = r.fitness
		connected[i] = r.connected
	}

	fe.mu.Lock()
	fe.lastQuality = stat.Mean(connected, nil)
	fe.mu.Unlock()

	return stat.Mean(fitness, nil)
}

// runSimulation executes one headless run and returns every flushed window.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed uint64) ([]telemetry.WindowStats, error) {
	cfg := fe.baseConfig.Clone()
	fe.params.ApplyToConfig(cfg, x)
	// Seeds already run in parallel
	cfg.Diffusion.Workers = 1

	var windows []telemetry.WindowStats
	sim, err := game.Build(cfg, game.Options{
		Seed: seed,
		StatsCallback: func(stats telemetry.WindowStats) {
			windows = append(windows, stats)
		},
	})
	if err != nil {
		return nil, err
	}
	defer sim.Close()

	if err := sim.Run(context.Background(), fe.ticks); err != nil {
		return nil, err
	}
	return windows, nil
}

// scoreWindows computes -(connectivity - trailPenalty*trail fraction)
// averaged over windows past warmup.
func scoreWindows(windows []telemetry.WindowStats) seedResult {
	if len(windows) > fitnessWarmupWindows {
		windows = windows[fitnessWarmupWindows:]
	}
	if len(windows) == 0 {
		return seedResult{fitness: failedFitness}
	}

	connected := make([]float64, len(windows))
	trail := make([]float64, len(windows))
	for i, w := range windows {
		connected[i] = w.PairsConnected
		trail[i] = w.TrailFraction
	}
	c := stat.Mean(connected, nil)
	t := stat.Mean(trail, nil)

	f := -(c - trailPenalty*t)
	if math.IsNaN(f) {
		f = failedFitness
	}
	return seedResult{fitness: f, connected: c}
}
