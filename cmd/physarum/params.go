package main

import (
	"github.com/pthm-cable/physarum/config"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
}

// ParamVector holds the set of all optimizable parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of optimizable parameters.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			// Sensing
			{Name: "sensor_distance", Path: "agents.sensor_distance", Min: 1.0, Max: 30.0, Default: 10.0},
			{Name: "sensor_angle", Path: "agents.sensor_angle", Min: 0.01, Max: 1.2, Default: 0.03},
			// Motion
			{Name: "turn_angle", Path: "agents.turn_angle", Min: 0.01, Max: 1.2, Default: 0.3},
			{Name: "step_size", Path: "agents.step_size", Min: 0.05, Max: 2.0, Default: 0.1},
			{Name: "deposit_amount", Path: "agents.deposit_amount", Min: 0.1, Max: 10.0, Default: 2.0},
			{Name: "exploration_jitter", Path: "agents.exploration_jitter", Min: 0.0, Max: 1.5, Default: 0.5},
			// Field
			{Name: "evaporation_rate", Path: "field.evaporation_rate", Min: 0.001, Max: 0.5, Default: 0.05},
			{Name: "diffusion_rate", Path: "field.diffusion_rate", Min: 0.0, Max: 1.0, Default: 0.1},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig clamps values, writes them into cfg in Specs order and
// recomputes derived values.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	c := pv.Clamp(values)

	cfg.Agents.SensorDistance = c[0]
	cfg.Agents.SensorAngle = c[1]
	cfg.Agents.TurnAngle = c[2]
	cfg.Agents.StepSize = c[3]
	cfg.Agents.DepositAmount = c[4]
	cfg.Agents.ExplorationJitter = c[5]
	cfg.Field.EvaporationRate = c[6]
	cfg.Field.DiffusionRate = c[7]

	cfg.ComputeDerived()
}

// ExtractFromConfig extracts current parameter values from a Config struct.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	return []float64{
		cfg.Agents.SensorDistance,
		cfg.Agents.SensorAngle,
		cfg.Agents.TurnAngle,
		cfg.Agents.StepSize,
		cfg.Agents.DepositAmount,
		cfg.Agents.ExplorationJitter,
		cfg.Field.EvaporationRate,
		cfg.Field.DiffusionRate,
	}
}
