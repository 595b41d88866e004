package config

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Validate checks parameter ranges. All violations are reported together.
// Grid dimensions are only checked when no map is configured, since a map
// supplies its own size.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	// NaN slips through every range comparison below
	for _, p := range c.floatParams() {
		if math.IsNaN(p.value) || math.IsInf(p.value, 0) {
			bad("%s must be finite, got %g", p.name, p.value)
		}
	}

	if c.World.Map == "" {
		if c.World.Width <= 0 || c.World.Height <= 0 {
			bad("world size must be positive, got %dx%d", c.World.Width, c.World.Height)
		}
	}
	if c.World.MapThreshold < 0 || c.World.MapThreshold > 255 {
		bad("world.map_threshold must be in [0,255], got %d", c.World.MapThreshold)
	}
	switch c.World.Mask.Kind {
	case "", "none", "border", "caves":
	case "maze":
		if c.World.Mask.CellSize < 1 {
			bad("world.mask.cell_size must be >= 1, got %d", c.World.Mask.CellSize)
		}
		if c.World.Mask.Braiding < 0 || c.World.Mask.Braiding > 1 {
			bad("world.mask.braiding must be in [0,1], got %g", c.World.Mask.Braiding)
		}
	default:
		bad("unknown world.mask.kind %q", c.World.Mask.Kind)
	}

	a := c.Agents
	if a.Count <= 0 {
		bad("agents.count must be positive, got %d", a.Count)
	}
	switch a.Placement {
	case "uniform":
	case "cluster":
		if a.ClusterRadius <= 0 {
			bad("agents.cluster_radius must be positive, got %g", a.ClusterRadius)
		}
	default:
		bad("unknown agents.placement %q", a.Placement)
	}
	switch a.Boundary {
	case "reflective", "obstacle_bounded":
	default:
		bad("unknown agents.boundary %q", a.Boundary)
	}
	if a.SensorDistance < 0 {
		bad("agents.sensor_distance must be >= 0, got %g", a.SensorDistance)
	}
	if a.StepSize < 0 {
		bad("agents.step_size must be >= 0, got %g", a.StepSize)
	}
	if a.DepositAmount < 0 {
		bad("agents.deposit_amount must be >= 0, got %g", a.DepositAmount)
	}
	if a.ExplorationJitter < 0 || a.TieJitter < 0 || a.BounceJitter < 0 || a.ReflectJitter < 0 {
		bad("agents jitter magnitudes must be >= 0")
	}
	if a.MaxPlacementAttempts <= 0 {
		bad("agents.max_placement_attempts must be positive, got %d", a.MaxPlacementAttempts)
	}

	at := c.Attractors
	if at.Count < 0 {
		bad("attractors.count must be >= 0, got %d", at.Count)
	}
	if at.Reinforcement < 0 || at.InitialSeed < 0 {
		bad("attractor amounts must be >= 0")
	}
	if c.World.Map == "" {
		for i, p := range at.Positions {
			if p.X < 0 || p.X >= c.World.Width || p.Y < 0 || p.Y >= c.World.Height {
				bad("attractors.positions[%d] (%d,%d) outside %dx%d grid", i, p.X, p.Y, c.World.Width, c.World.Height)
			}
		}
	}

	if c.Field.EvaporationRate < 0 || c.Field.EvaporationRate >= 1 {
		bad("field.evaporation_rate must be in [0,1), got %g", c.Field.EvaporationRate)
	}
	if c.Field.DiffusionRate < 0 || c.Field.DiffusionRate > 1 {
		bad("field.diffusion_rate must be in [0,1], got %g", c.Field.DiffusionRate)
	}
	if c.Diffusion.Workers < 0 {
		bad("diffusion.workers must be >= 0, got %d", c.Diffusion.Workers)
	}

	if c.Telemetry.StatsWindow <= 0 {
		bad("telemetry.stats_window must be positive, got %d", c.Telemetry.StatsWindow)
	}
	if c.Render.Every < 0 || (c.Render.Every > 0 && c.Render.Scale < 1) {
		bad("render.every must be >= 0 and render.scale >= 1")
	}

	return errors.Join(errs...)
}

type floatParam struct {
	name  string
	value float64
}

// floatParams lists every float setting that feeds the simulation.
func (c *Config) floatParams() []floatParam {
	a := c.Agents
	return []floatParam{
		{"world.mask.braiding", c.World.Mask.Braiding},
		{"world.mask.cave_scale", c.World.Mask.CaveScale},
		{"world.mask.cave_threshold", c.World.Mask.CaveThreshold},
		{"agents.cluster_radius", a.ClusterRadius},
		{"agents.sensor_distance", a.SensorDistance},
		{"agents.sensor_angle", a.SensorAngle},
		{"agents.turn_angle", a.TurnAngle},
		{"agents.step_size", a.StepSize},
		{"agents.deposit_amount", a.DepositAmount},
		{"agents.exploration_jitter", a.ExplorationJitter},
		{"agents.tie_jitter", a.TieJitter},
		{"agents.bounce_jitter", a.BounceJitter},
		{"agents.reflect_jitter", a.ReflectJitter},
		{"attractors.reinforcement", c.Attractors.Reinforcement},
		{"attractors.initial_seed", c.Attractors.InitialSeed},
		{"field.evaporation_rate", c.Field.EvaporationRate},
		{"field.diffusion_rate", c.Field.DiffusionRate},
		{"telemetry.trail_threshold", c.Telemetry.TrailThreshold},
		{"telemetry.saturation_threshold", c.Telemetry.SaturationThreshold},
		{"render.gain", c.Render.Gain},
	}
}
