package systems

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/physarum/config"
)

// ErrAttractorBlocked is returned when an explicit attractor position is an
// obstacle cell, where it could never reinforce the field.
var ErrAttractorBlocked = errors.New("attractor on obstacle cell")

// AttractorSet is a fixed, ordered set of cells that receive constant
// reinforcement every tick, independent of agent traffic.
type AttractorSet struct {
	points []config.Point
}

// NewAttractorSet creates a set from explicit positions.
func NewAttractorSet(points []config.Point) *AttractorSet {
	return &AttractorSet{points: append([]config.Point(nil), points...)}
}

// PlaceAttractors builds the attractor set for cfg: the configured positions
// when given, otherwise attractors.count random free cells. Configured
// positions must be free cells of f.
func PlaceAttractors(cfg *config.Config, f *Field, rng RandomSource) (*AttractorSet, error) {
	if len(cfg.Attractors.Positions) > 0 {
		for i, p := range cfg.Attractors.Positions {
			if p.X < 0 || p.Y < 0 || p.X >= f.W || p.Y >= f.H {
				return nil, fmt.Errorf("attractor %d at (%d,%d) outside %dx%d grid", i, p.X, p.Y, f.W, f.H)
			}
			if f.BlockedCell(p.X, p.Y) {
				return nil, fmt.Errorf("attractor %d at (%d,%d): %w", i, p.X, p.Y, ErrAttractorBlocked)
			}
		}
		return NewAttractorSet(cfg.Attractors.Positions), nil
	}

	return PlaceRandom(f, cfg.Attractors.Count, cfg.Agents.MaxPlacementAttempts, rng)
}

// PlaceRandom picks n free cells uniformly at random. Each attractor gets at
// most attempts draws before placement fails with ErrNoFreeCell.
func PlaceRandom(f *Field, n, attempts int, rng RandomSource) (*AttractorSet, error) {
	if n == 0 {
		return NewAttractorSet(nil), nil
	}
	if f.FreeCount() == 0 {
		return nil, fmt.Errorf("placing attractors: %w", ErrNoFreeCell)
	}

	points := make([]config.Point, 0, n)
	for i := 0; i < n; i++ {
		placed := false
		for attempt := 0; attempt < attempts; attempt++ {
			x := randomIntn(rng, f.W)
			y := randomIntn(rng, f.H)
			if !f.BlockedCell(x, y) {
				points = append(points, config.Point{X: x, Y: y})
				placed = true
				break
			}
		}
		if !placed {
			return nil, fmt.Errorf("placing attractor %d: %w", i, ErrNoFreeCell)
		}
	}
	return &AttractorSet{points: points}, nil
}

// Reinforce deposits amount on every attractor cell.
func (a *AttractorSet) Reinforce(f *Field, amount float32) {
	for _, p := range a.points {
		f.Deposit(float32(p.X), float32(p.Y), amount)
	}
}

// Seed overwrites every free attractor cell with an initial concentration.
func (a *AttractorSet) Seed(f *Field, amount float32) {
	for _, p := range a.points {
		f.SetCell(p.X, p.Y, amount)
	}
}

// Len returns the number of attractors.
func (a *AttractorSet) Len() int { return len(a.points) }

// Positions returns a copy of the attractor positions.
func (a *AttractorSet) Positions() []config.Point {
	return append([]config.Point(nil), a.points...)
}
