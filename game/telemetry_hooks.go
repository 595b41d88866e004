package game

import (
	"log/slog"

	"github.com/pthm-cable/physarum/renderer"
	"github.com/pthm-cable/physarum/systems"
	"github.com/pthm-cable/physarum/telemetry"
)

// flushTelemetry closes the stats window when due, then logs, records and
// checks it for events. It reports the flushed window so Advance can hand it
// to the stats callback once the lock is released.
func (s *Simulation) flushTelemetry() (telemetry.WindowStats, bool) {
	if !s.collector.ShouldFlush(s.tick) {
		return telemetry.WindowStats{}, false
	}

	fieldStats := s.sampleField()
	network := s.network.Analyze(s.field, s.attractors.Positions(), float32(s.cfg.Telemetry.TrailThreshold))

	stats := s.collector.Flush(s.tick, s.agents.Len(), fieldStats, network)
	perfStats := s.perfCollector.Stats()
	s.lastStats = stats

	if s.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	if err := s.outputManager.WriteStats(stats); err != nil {
		slog.Error("failed to write stats", "error", err)
	}
	if err := s.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
		slog.Error("failed to write perf", "error", err)
	}

	for _, e := range s.events.Check(stats) {
		if s.logStats {
			e.LogEvent()
		}
		if err := s.outputManager.WriteEvent(e); err != nil {
			slog.Error("failed to write event", "error", err)
		}
	}
	return stats, true
}

// writeFrame renders the current field to a PNG in the frames directory.
func (s *Simulation) writeFrame() {
	var agents *systems.AgentPopulation
	if s.cfg.Render.Agents {
		agents = s.agents
	}
	img := s.frames.Render(s.field, s.attractors.Positions(), agents)
	path := renderer.FramePath(s.framesDir, s.tick)
	if err := renderer.WritePNG(path, img); err != nil {
		slog.Error("failed to write frame", "tick", s.tick, "error", err)
	}
}

// sampleField summarizes concentration over free cells.
func (s *Simulation) sampleField() telemetry.FieldStats {
	return telemetry.ComputeFieldStats(s.field.Cells(), s.field.Mask(), s.field.W)
}
