package game

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/mapload"
	"github.com/pthm-cable/physarum/systems"
)

// Build creates a ready-to-run simulation from cfg: the field from the map
// image, a procedural mask or an open arena, then attractors (seeded with
// their initial concentration) and agents on free cells.
func Build(cfg *config.Config, opts Options) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := systems.NewRandomSource(opts.Seed)

	field, err := buildField(cfg, opts.Seed)
	if err != nil {
		return nil, err
	}

	attractors, err := systems.PlaceAttractors(cfg, field, rng)
	if err != nil {
		return nil, err
	}
	if cfg.Derived.InitialSeed32 > 0 {
		attractors.Seed(field, cfg.Derived.InitialSeed32)
	}

	agents := systems.NewAgentPopulation()
	if err := agents.Initialize(cfg, field, rng); err != nil {
		return nil, err
	}

	slog.Info("simulation built",
		"width", field.W,
		"height", field.H,
		"free_cells", field.FreeCount(),
		"agents", agents.Len(),
		"attractors", attractors.Len(),
		"boundary", cfg.Derived.Boundary.String(),
		"seed", opts.Seed,
	)

	return NewSimulation(cfg, field, agents, attractors, rng, opts)
}

// buildField loads or generates the obstacle layout.
func buildField(cfg *config.Config, seed uint64) (*systems.Field, error) {
	w := cfg.World
	if w.Map != "" {
		bm, err := mapload.Load(w.Map)
		if err != nil {
			return nil, err
		}
		field, err := systems.LoadObstacleMask(bm.W, bm.H, bm.Pixels, uint8(w.MapThreshold))
		if err != nil {
			return nil, fmt.Errorf("loading map %s: %w", w.Map, err)
		}
		return field, nil
	}

	field, err := systems.NewField(w.Width, w.Height)
	if err != nil {
		return nil, err
	}

	maskSeed := w.Mask.Seed
	if maskSeed == 0 {
		maskSeed = int64(seed)
	}

	var mask []bool
	switch w.Mask.Kind {
	case "border":
		mask = systems.BorderMask(w.Width, w.Height)
	case "maze":
		// Separate stream so the layout does not shift agent placement
		mazeRNG := systems.NewRandomSource(uint64(maskSeed))
		mask = systems.MazeMask(w.Width, w.Height, w.Mask.CellSize, w.Mask.Braiding, mazeRNG)
	case "caves":
		mask = systems.CaveMask(w.Width, w.Height, w.Mask.CaveScale, w.Mask.CaveThreshold, maskSeed)
	}
	if mask != nil {
		if err := field.ApplyMask(mask); err != nil {
			return nil, err
		}
	}
	return field, nil
}
