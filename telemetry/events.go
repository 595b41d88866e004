package telemetry

import (
	"fmt"
	"log/slog"
)

// EventType identifies a detected network event.
type EventType string

const (
	EventSaturation       EventType = "saturation"
	EventNetworkConnected EventType = "network_connected"
	EventNetworkCollapse  EventType = "network_collapse"
	EventStable           EventType = "stable"
)

// Event is a notable moment detected from window statistics.
type Event struct {
	Type        EventType `csv:"type"`
	Tick        int       `csv:"tick"`
	Description string    `csv:"description"`
}

// LogEvent logs the event.
func (e Event) LogEvent() {
	slog.Info("event",
		"type", string(e.Type),
		"tick", e.Tick,
		"description", e.Description,
	)
}

// EventDetector watches successive windows for saturation, network
// formation and collapse, and settling.
type EventDetector struct {
	saturation float64

	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	saturated     bool
	connected     bool
	peakPairs     float64
	stableWindows int
}

// NewEventDetector creates a detector. saturation is the peak concentration
// that raises a saturation event; 0 disables it.
func NewEventDetector(historySize int, saturation float64) *EventDetector {
	if historySize < 4 {
		historySize = 4
	}
	return &EventDetector{
		saturation:  saturation,
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered events.
func (d *EventDetector) Check(stats WindowStats) []Event {
	var events []Event

	if e := d.checkSaturation(stats); e != nil {
		events = append(events, *e)
	}
	if e := d.checkConnected(stats); e != nil {
		events = append(events, *e)
	}
	if e := d.checkCollapse(stats); e != nil {
		events = append(events, *e)
	}
	if e := d.checkStable(stats); e != nil {
		events = append(events, *e)
	}

	d.addToHistory(stats)
	return events
}

func (d *EventDetector) addToHistory(stats WindowStats) {
	d.history[d.historyIdx] = stats
	d.historyIdx = (d.historyIdx + 1) % d.historySize
	if d.historyIdx == 0 {
		d.historyFull = true
	}
}

// recent returns up to n most recent windows, oldest first.
func (d *EventDetector) recent(n int) []WindowStats {
	count := d.historyIdx
	if d.historyFull {
		count = d.historySize
	}
	if n > count {
		n = count
	}
	out := make([]WindowStats, 0, n)
	for i := n; i > 0; i-- {
		idx := (d.historyIdx - i + d.historySize) % d.historySize
		out = append(out, d.history[idx])
	}
	return out
}

// checkSaturation fires once when the peak first crosses the threshold,
// and re-arms when it drops back below.
func (d *EventDetector) checkSaturation(stats WindowStats) *Event {
	if d.saturation <= 0 {
		return nil
	}
	if stats.Peak < d.saturation {
		d.saturated = false
		return nil
	}
	if d.saturated {
		return nil
	}
	d.saturated = true
	return &Event{
		Type:        EventSaturation,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Peak concentration %.1f at (%d,%d) exceeds %.1f", stats.Peak, stats.PeakX, stats.PeakY, d.saturation),
	}
}

// checkConnected fires when every attractor pair first shares a component.
func (d *EventDetector) checkConnected(stats WindowStats) *Event {
	full := stats.PairsConnected >= 1
	if !full {
		d.connected = false
		return nil
	}
	if d.connected {
		return nil
	}
	d.connected = true
	return &Event{
		Type:        EventNetworkConnected,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("All %d attractors joined by one trail network of %d cells", stats.AttractorsConnected, stats.LargestComponent),
	}
}

// checkCollapse fires when pair connectivity drops by more than half from
// its running peak.
func (d *EventDetector) checkCollapse(stats WindowStats) *Event {
	if stats.PairsConnected > d.peakPairs {
		d.peakPairs = stats.PairsConnected
		return nil
	}
	if d.peakPairs < 0.2 || stats.PairsConnected >= d.peakPairs*0.5 {
		return nil
	}
	oldPeak := d.peakPairs
	d.peakPairs = stats.PairsConnected
	return &Event{
		Type:        EventNetworkCollapse,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Connected pairs fell from %.0f%% to %.0f%%", oldPeak*100, stats.PairsConnected*100),
	}
}

// checkStable fires once when trail size has stayed within a 10% coefficient
// of variation for 5 consecutive windows.
func (d *EventDetector) checkStable(stats WindowStats) *Event {
	history := d.recent(3)
	if len(history) < 3 || stats.TrailCells == 0 {
		d.stableWindows = 0
		return nil
	}

	samples := append(history, stats)
	var sum float64
	for _, h := range samples {
		sum += float64(h.TrailCells)
	}
	mean := sum / float64(len(samples))

	var variance float64
	for _, h := range samples {
		diff := float64(h.TrailCells) - mean
		variance += diff * diff
	}
	variance /= float64(len(samples))

	if mean > 0 && variance/(mean*mean) < 0.01 { // CV^2 < 0.01 means CV < 0.1
		d.stableWindows++
	} else {
		d.stableWindows = 0
	}

	if d.stableWindows == 5 {
		return &Event{
			Type:        EventStable,
			Tick:        stats.WindowEndTick,
			Description: fmt.Sprintf("Trail network stable at ~%.0f cells over 5 windows", mean),
		}
	}
	return nil
}
