// Package telemetry provides window statistics, network events, phase timing
// and CSV output for simulation runs.
package telemetry

import "github.com/pthm-cable/physarum/systems"

// Collector accumulates per-tick move outcomes and produces WindowStats.
type Collector struct {
	windowTicks     int
	windowStartTick int

	moves       int
	bounces     int
	reflections int
}

// NewCollector creates a collector that flushes every windowTicks ticks.
func NewCollector(windowTicks int) *Collector {
	if windowTicks < 1 {
		windowTicks = 1
	}
	return &Collector{windowTicks: windowTicks}
}

// Record adds one tick's move outcomes to the current window.
func (c *Collector) Record(counts systems.StepCounts) {
	c.moves += counts.Moves
	c.bounces += counts.Bounces
	c.reflections += counts.Reflections
}

// ShouldFlush returns true once a full window has elapsed.
func (c *Collector) ShouldFlush(currentTick int) bool {
	return currentTick-c.windowStartTick >= c.windowTicks
}

// Flush produces a WindowStats from the accumulated counters and the current
// field and network summaries, then starts a new window.
func (c *Collector) Flush(currentTick, agents int, field FieldStats, network systems.NetworkStats) WindowStats {
	var bounceRate float64
	if total := c.moves + c.bounces + c.reflections; total > 0 {
		bounceRate = float64(c.bounces+c.reflections) / float64(total)
	}
	var trailFraction float64
	if field.FreeCells > 0 {
		trailFraction = float64(network.TrailCells) / float64(field.FreeCells)
	}

	stats := WindowStats{
		WindowStartTick: c.windowStartTick,
		WindowEndTick:   currentTick,
		Agents:          agents,

		Moves:       c.moves,
		Bounces:     c.bounces,
		Reflections: c.reflections,
		BounceRate:  bounceRate,

		Mass:     field.Mass,
		Peak:     field.Peak,
		PeakX:    field.PeakX,
		PeakY:    field.PeakY,
		ConcMean: field.Mean,
		ConcStd:  field.Std,
		ConcP10:  field.P10,
		ConcP50:  field.P50,
		ConcP90:  field.P90,

		TrailCells:          network.TrailCells,
		TrailFraction:       trailFraction,
		Components:          network.Components,
		LargestComponent:    network.LargestComponent,
		AttractorsOnTrail:   network.AttractorsOnTrail,
		AttractorsConnected: network.AttractorsConnected,
		PairsConnected:      network.PairsConnected,
	}

	c.windowStartTick = currentTick
	c.moves = 0
	c.bounces = 0
	c.reflections = 0

	return stats
}

// WindowTicks returns the number of ticks per window.
func (c *Collector) WindowTicks() int {
	return c.windowTicks
}
