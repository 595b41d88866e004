package telemetry

import (
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/stat"
)

// FieldStats summarizes the concentration over free cells.
type FieldStats struct {
	FreeCells int
	Mass      float64 // Sum of concentration
	Peak      float64
	PeakX     int
	PeakY     int
	Mean      float64
	Std       float64
	P10       float64
	P50       float64
	P90       float64
}

// ComputeFieldStats summarizes cells, skipping every cell where mask is true.
// cells and mask are row-major with row width w.
func ComputeFieldStats(cells []float32, mask []bool, w int) FieldStats {
	free := make([]float32, 0, len(cells))
	index := make([]int, 0, len(cells))
	for i, v := range cells {
		if !mask[i] {
			free = append(free, v)
			index = append(index, i)
		}
	}
	if len(free) == 0 {
		return FieldStats{}
	}

	// Concentrations are non-negative, so the absolute sum is the mass and
	// the max-magnitude element is the peak.
	vec := blas32.Vector{N: len(free), Inc: 1, Data: free}
	peak := blas32.Iamax(vec)

	values := make([]float64, len(free))
	for i, v := range free {
		values[i] = float64(v)
	}
	mean, std, p10, p50, p90 := ComputeDistribution(values)

	return FieldStats{
		FreeCells: len(free),
		Mass:      float64(blas32.Asum(vec)),
		Peak:      float64(free[peak]),
		PeakX:     index[peak] % w,
		PeakY:     index[peak] / w,
		Mean:      mean,
		Std:       std,
		P10:       p10,
		P50:       p50,
		P90:       p90,
	}
}

// ComputeDistribution returns mean, population standard deviation and the
// empirical 10th/50th/90th percentiles. values is sorted in place.
func ComputeDistribution(values []float64) (mean, std, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0, 0
	}

	mean, variance := stat.PopMeanVariance(values, nil)
	std = math.Sqrt(variance)

	sort.Float64s(values)
	p10 = stat.Quantile(0.10, stat.Empirical, values, nil)
	p50 = stat.Quantile(0.50, stat.Empirical, values, nil)
	p90 = stat.Quantile(0.90, stat.Empirical, values, nil)

	return mean, std, p10, p50, p90
}

// WindowStats holds aggregated statistics for one telemetry window.
type WindowStats struct {
	WindowStartTick int `csv:"-"`
	WindowEndTick   int `csv:"window_end"`

	Agents int `csv:"agents"`

	// Move outcomes during the window
	Moves       int     `csv:"moves"`
	Bounces     int     `csv:"bounces"`
	Reflections int     `csv:"reflections"`
	BounceRate  float64 `csv:"bounce_rate"`

	// Field distribution at window end
	Mass     float64 `csv:"mass"`
	Peak     float64 `csv:"peak"`
	PeakX    int     `csv:"peak_x"`
	PeakY    int     `csv:"peak_y"`
	ConcMean float64 `csv:"conc_mean"`
	ConcStd  float64 `csv:"conc_std"`
	ConcP10  float64 `csv:"conc_p10"`
	ConcP50  float64 `csv:"conc_p50"`
	ConcP90  float64 `csv:"conc_p90"`

	// Trail network at window end
	TrailCells          int     `csv:"trail_cells"`
	TrailFraction       float64 `csv:"trail_fraction"`
	Components          int     `csv:"components"`
	LargestComponent    int     `csv:"largest_component"`
	AttractorsOnTrail   int     `csv:"attractors_on_trail"`
	AttractorsConnected int     `csv:"attractors_connected"`
	PairsConnected      float64 `csv:"pairs_connected"`
}

// LogValue implements slog.LogValuer.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStartTick),
		slog.Int("window_end", s.WindowEndTick),
		slog.Int("agents", s.Agents),
		slog.Int("moves", s.Moves),
		slog.Int("bounces", s.Bounces),
		slog.Int("reflections", s.Reflections),
		slog.Float64("bounce_rate", s.BounceRate),
		slog.Float64("mass", s.Mass),
		slog.Float64("peak", s.Peak),
		slog.Float64("conc_mean", s.ConcMean),
		slog.Float64("conc_p50", s.ConcP50),
		slog.Float64("conc_p90", s.ConcP90),
		slog.Int("trail_cells", s.TrailCells),
		slog.Int("components", s.Components),
		slog.Int("largest_component", s.LargestComponent),
		slog.Int("attractors_on_trail", s.AttractorsOnTrail),
		slog.Float64("pairs_connected", s.PairsConnected),
	)
}

// LogStats logs the window stats.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"bounce_rate", s.BounceRate,
		"mass", s.Mass,
		"peak", s.Peak,
		"peak_x", s.PeakX,
		"peak_y", s.PeakY,
		"conc_p50", s.ConcP50,
		"conc_p90", s.ConcP90,
		"trail_cells", s.TrailCells,
		"components", s.Components,
		"largest_component", s.LargestComponent,
		"attractors_on_trail", s.AttractorsOnTrail,
		"attractors_connected", s.AttractorsConnected,
		"pairs_connected", s.PairsConnected,
	)
}
