// Package game wires the field, agents and attractors into a steppable
// simulation with telemetry and frame export.
package game

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/renderer"
	"github.com/pthm-cable/physarum/systems"
	"github.com/pthm-cable/physarum/telemetry"
)

// Options configures run-level behaviour that is not part of the model.
type Options struct {
	Seed      uint64
	LogStats  bool   // Log window stats, perf and events via slog
	OutputDir string // CSV logs and config snapshot (empty = disabled)
	FramesDir string // PNG frames every render.every ticks (empty = disabled)

	// StatsCallback, if set, receives every flushed window. It is called
	// outside the simulation lock from the goroutine running Advance.
	StatsCallback func(telemetry.WindowStats)
}

// Simulation holds the complete model state and advances it one tick at a time.
type Simulation struct {
	// mu serializes Advance against obstacle edits
	mu sync.Mutex

	cfg        *config.Config
	rng        systems.RandomSource
	field      *systems.Field
	agents     *systems.AgentPopulation
	attractors *systems.AttractorSet
	tick       int

	// Telemetry
	collector     *telemetry.Collector
	perfCollector *telemetry.PerfCollector
	events        *telemetry.EventDetector
	network       systems.NetworkAnalyzer
	outputManager *telemetry.OutputManager
	logStats      bool
	statsCallback func(telemetry.WindowStats)
	lastStats     telemetry.WindowStats

	// Frame export
	frames    *renderer.FrameRenderer
	framesDir string
}

// NewSimulation assembles a simulation from already-initialized parts.
// cfg is validated; attractors may be nil.
func NewSimulation(cfg *config.Config, field *systems.Field, agents *systems.AgentPopulation,
	attractors *systems.AttractorSet, rng systems.RandomSource, opts Options) (*Simulation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if field == nil || agents == nil || rng == nil {
		return nil, errors.New("simulation needs a field, agents and a random source")
	}
	if attractors == nil {
		attractors = systems.NewAttractorSet(nil)
	}

	s := &Simulation{
		cfg:           cfg,
		rng:           rng,
		field:         field,
		agents:        agents,
		attractors:    attractors,
		collector:     telemetry.NewCollector(cfg.Telemetry.StatsWindow),
		perfCollector: telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		events:        telemetry.NewEventDetector(cfg.Telemetry.HistorySize, cfg.Telemetry.SaturationThreshold),
		logStats:      opts.LogStats,
		statsCallback: opts.StatsCallback,
	}

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	s.outputManager = om
	if err := om.WriteConfig(cfg); err != nil {
		om.Close()
		return nil, fmt.Errorf("writing config snapshot: %w", err)
	}

	if opts.FramesDir != "" && cfg.Render.Every > 0 {
		s.frames = renderer.NewFrameRenderer(cfg.Render.Scale, cfg.Render.Gain)
		s.framesDir = opts.FramesDir
	}

	workers := cfg.Diffusion.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	field.SetWorkers(workers)

	return s, nil
}

// Advance runs one tick: every agent senses, turns, moves and deposits in
// order, attractors are reinforced, then the field diffuses (when the rate is
// positive) and evaporates. The stats callback runs after the tick has
// released the simulation, so it may call back into it.
func (s *Simulation) Advance() {
	stats, flushed := s.step()
	if flushed && s.statsCallback != nil {
		s.statsCallback(stats)
	}
}

// step performs one tick under the lock and reports the window flushed by it.
func (s *Simulation) step() (telemetry.WindowStats, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := &s.cfg.Derived
	s.perfCollector.StartTick()

	s.perfCollector.StartPhase(telemetry.PhaseAgents)
	counts := s.agents.UpdateAll(s.field, s.attractors, s.cfg, s.rng)

	if d.Diffusion32 > 0 {
		s.perfCollector.StartPhase(telemetry.PhaseDiffuse)
		s.field.Diffuse(d.Diffusion32)
	}

	s.perfCollector.StartPhase(telemetry.PhaseEvaporate)
	s.field.Evaporate(d.Evaporation32)

	s.tick++

	s.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	s.collector.Record(counts)
	stats, flushed := s.flushTelemetry()

	if s.frames != nil && s.tick%s.cfg.Render.Every == 0 {
		s.perfCollector.StartPhase(telemetry.PhaseRender)
		s.writeFrame()
	}

	s.perfCollector.EndTick()
	return stats, flushed
}

// Run advances until ticks have elapsed (ticks <= 0 runs until cancelled).
// Cancellation is checked between ticks; a tick in progress always completes.
func (s *Simulation) Run(ctx context.Context, ticks int) error {
	for i := 0; ticks <= 0 || i < ticks; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.Advance()
	}
	return nil
}

// Tick returns the number of completed ticks.
func (s *Simulation) Tick() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Config returns the configuration the simulation was built with.
func (s *Simulation) Config() *config.Config { return s.cfg }

// Field returns the live field. Read it only between Advance calls.
func (s *Simulation) Field() *systems.Field { return s.field }

// Agents returns the agent population. Read it only between Advance calls.
func (s *Simulation) Agents() *systems.AgentPopulation { return s.agents }

// Attractors returns the attractor set.
func (s *Simulation) Attractors() *systems.AttractorSet { return s.attractors }

// LastStats returns the most recently flushed telemetry window.
func (s *Simulation) LastStats() telemetry.WindowStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStats
}

// Snapshot returns copies of the concentration grid and obstacle mask.
func (s *Simulation) Snapshot() ([]float32, []bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.field.Concentration(), s.field.Obstacles()
}

// SetObstacle marks or clears one cell. Safe to call from another goroutine;
// the edit lands between ticks.
func (s *Simulation) SetObstacle(x, y int, blocked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.field.SetObstacle(x, y, blocked)
}

// PaintObstacle applies a brush of the given radius centred on (cx, cy).
func (s *Simulation) PaintObstacle(cx, cy, radius int, blocked bool, shape systems.BrushShape) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.field.PaintObstacle(cx, cy, radius, blocked, shape)
}

// ClearTrails zeroes the concentration grid between ticks. Agents,
// attractors and obstacles are untouched.
func (s *Simulation) ClearTrails() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.field.Clear()
}

// Close stops diffusion workers and closes output files.
func (s *Simulation) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.field.Close()
	return s.outputManager.Close()
}
