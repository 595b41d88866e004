package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/telemetry"
)

func TestParamDefaultsMatchConfigDefaults(t *testing.T) {
	pv := NewParamVector()
	got := pv.ExtractFromConfig(config.Default())
	want := pv.DefaultVector()
	if len(got) != pv.Dim() {
		t.Fatalf("expected %d extracted values, got %d", pv.Dim(), len(got))
	}
	for i, spec := range pv.Specs {
		if got[i] != want[i] {
			t.Errorf("%s: expected default %v, got %v from defaults.yaml", spec.Path, want[i], got[i])
		}
		if want[i] < spec.Min || want[i] > spec.Max {
			t.Errorf("%s: default %v outside [%v,%v]", spec.Path, want[i], spec.Min, spec.Max)
		}
	}
}

func TestNormalizeBounds(t *testing.T) {
	pv := NewParamVector()
	lo := make([]float64, pv.Dim())
	hi := make([]float64, pv.Dim())
	for i, spec := range pv.Specs {
		lo[i], hi[i] = spec.Min, spec.Max
	}
	for i, v := range pv.Normalize(lo) {
		if v != 0 {
			t.Errorf("%s: expected min to normalize to 0, got %v", pv.Specs[i].Name, v)
		}
	}
	for i, v := range pv.Normalize(hi) {
		if math.Abs(v-1) > 1e-12 {
			t.Errorf("%s: expected max to normalize to 1, got %v", pv.Specs[i].Name, v)
		}
	}
}

func TestApplyToConfigClampsAndDerives(t *testing.T) {
	pv := NewParamVector()
	cfg := config.Default()

	values := pv.DefaultVector()
	values[3] = 100  // step_size above max
	values[6] = -1   // evaporation_rate below min
	values[7] = 0.25 // diffusion_rate in range
	pv.ApplyToConfig(cfg, values)

	if cfg.Agents.StepSize != 2.0 {
		t.Errorf("expected step_size clamped to 2.0, got %v", cfg.Agents.StepSize)
	}
	if cfg.Field.EvaporationRate != 0.001 {
		t.Errorf("expected evaporation_rate clamped to 0.001, got %v", cfg.Field.EvaporationRate)
	}
	if cfg.Derived.StepSize32 != 2.0 || cfg.Derived.Diffusion32 != 0.25 {
		t.Errorf("expected derived values recomputed, got step=%v diffusion=%v",
			cfg.Derived.StepSize32, cfg.Derived.Diffusion32)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected clamped config to validate, got %v", err)
	}
}

func TestScoreWindows(t *testing.T) {
	tests := []struct {
		name          string
		windows       []telemetry.WindowStats
		wantFitness   float64
		wantConnected float64
	}{
		{
			name:        "no windows",
			wantFitness: failedFitness,
		},
		{
			name: "warmup skipped",
			windows: []telemetry.WindowStats{
				{PairsConnected: 0, TrailFraction: 0.9},
				{PairsConnected: 0, TrailFraction: 0.9},
				{PairsConnected: 1, TrailFraction: 0.2},
				{PairsConnected: 0.5, TrailFraction: 0.2},
			},
			wantFitness:   -(0.75 - trailPenalty*0.2),
			wantConnected: 0.75,
		},
		{
			name: "short run uses every window",
			windows: []telemetry.WindowStats{
				{PairsConnected: 1, TrailFraction: 0.4},
			},
			wantFitness:   -(1 - trailPenalty*0.4),
			wantConnected: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoreWindows(tt.windows)
			if math.Abs(got.fitness-tt.wantFitness) > 1e-12 {
				t.Errorf("expected fitness %v, got %v", tt.wantFitness, got.fitness)
			}
			if math.Abs(got.connected-tt.wantConnected) > 1e-12 {
				t.Errorf("expected connected %v, got %v", tt.wantConnected, got.connected)
			}
		})
	}
}

func TestEvaluateSmallRun(t *testing.T) {
	cfg := config.Default()
	cfg.World.Width, cfg.World.Height = 40, 40
	cfg.Agents.Count = 200
	cfg.Attractors.Count = 3
	cfg.Telemetry.StatsWindow = 10
	cfg.ComputeDerived()

	pv := NewParamVector()
	fe := NewFitnessEvaluator(pv, 50, []uint64{1, 2}, cfg)
	f := fe.Evaluate(pv.DefaultVector())

	if math.IsNaN(f) || f > failedFitness {
		t.Errorf("expected a finite fitness, got %v", f)
	}
	if q := fe.LastQuality(); q < 0 || q > 1 {
		t.Errorf("expected connectivity in [0,1], got %v", q)
	}
}
