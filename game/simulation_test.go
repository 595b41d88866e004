package game

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/systems"
	"github.com/pthm-cable/physarum/telemetry"
)

// quietConfig returns a small deterministic setup with no jitter.
func quietConfig() *config.Config {
	cfg := config.Default()
	cfg.World.Width = 10
	cfg.World.Height = 10
	cfg.Agents.Count = 1
	cfg.Agents.StepSize = 1
	cfg.Agents.DepositAmount = 5
	cfg.Agents.ExplorationJitter = 0
	cfg.Agents.TieJitter = 0
	cfg.Agents.BounceJitter = 0
	cfg.Agents.ReflectJitter = 0
	cfg.Attractors.Count = 0
	cfg.Field.EvaporationRate = 0
	cfg.Field.DiffusionRate = 0
	cfg.ComputeDerived()
	return cfg
}

func newSingleAgentSim(t *testing.T, cfg *config.Config, x, y, heading float32) *Simulation {
	t.Helper()
	field, err := systems.NewField(cfg.World.Width, cfg.World.Height)
	if err != nil {
		t.Fatal(err)
	}
	agents := systems.NewAgentPopulation()
	agents.Spawn(x, y, heading)
	sim, err := NewSimulation(cfg, field, agents, nil, systems.NewRandomSource(1), Options{})
	if err != nil {
		t.Fatalf("creating simulation: %v", err)
	}
	t.Cleanup(func() { sim.Close() })
	return sim
}

func TestAdvanceSingleAgentDeposit(t *testing.T) {
	sim := newSingleAgentSim(t, quietConfig(), 5, 5, 0)
	sim.Advance()

	f := sim.Field()
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			want := float32(0)
			if x == 6 && y == 5 {
				want = 5
			}
			if got := f.At(x, y); got != want {
				t.Errorf("cell (%d,%d): expected %v, got %v", x, y, want, got)
			}
		}
	}
	if sim.Tick() != 1 {
		t.Errorf("expected tick 1, got %d", sim.Tick())
	}
}

func TestAdvanceStationaryAgentEvaporation(t *testing.T) {
	cfg := quietConfig()
	cfg.Agents.StepSize = 0
	cfg.Field.EvaporationRate = 0.5
	cfg.ComputeDerived()
	sim := newSingleAgentSim(t, cfg, 5, 5, 0)

	sim.Advance()
	if got := sim.Field().At(5, 5); got != 2.5 {
		t.Errorf("after tick 1: expected 2.5, got %v", got)
	}
	sim.Advance()
	if got := sim.Field().At(5, 5); got != 3.75 {
		t.Errorf("after tick 2: expected 3.75, got %v", got)
	}
}

func TestAdvanceOrderDepositDiffuseEvaporate(t *testing.T) {
	cfg := quietConfig()
	cfg.Agents.StepSize = 0
	cfg.Agents.DepositAmount = 9
	cfg.Field.DiffusionRate = 1
	cfg.Field.EvaporationRate = 0.5
	cfg.ComputeDerived()
	sim := newSingleAgentSim(t, cfg, 5.5, 5.5, 0)

	sim.Advance()

	// Deposit 9 spreads over the 3x3 neighbourhood, then halves
	for y := 4; y <= 6; y++ {
		for x := 4; x <= 6; x++ {
			if got := sim.Field().At(x, y); got != 0.5 {
				t.Errorf("cell (%d,%d): expected 0.5, got %v", x, y, got)
			}
		}
	}
	if got := sim.Field().At(3, 5); got != 0 {
		t.Errorf("expected cells outside the neighbourhood to stay 0, got %v", got)
	}
}

func TestAdvanceReinforcesAttractors(t *testing.T) {
	cfg := quietConfig()
	cfg.Attractors.Reinforcement = 10
	cfg.Field.EvaporationRate = 0.5
	cfg.ComputeDerived()

	field, _ := systems.NewField(10, 10)
	agents := systems.NewAgentPopulation()
	agents.Spawn(1, 1, 0)
	attractors := systems.NewAttractorSet([]config.Point{{X: 8, Y: 8}})
	sim, err := NewSimulation(cfg, field, agents, attractors, systems.NewRandomSource(1), Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer sim.Close()

	sim.Advance()
	sim.Advance()
	// (10*0.5 + 10) * 0.5
	if got := field.At(8, 8); got != 7.5 {
		t.Errorf("expected 7.5 on attractor, got %v", got)
	}
}

func TestObstacleCellsNeverChange(t *testing.T) {
	cfg := config.Default()
	cfg.World.Width = 40
	cfg.World.Height = 40
	cfg.World.Mask.Kind = "caves"
	cfg.World.Mask.CaveScale = 0.15
	cfg.World.Mask.CaveThreshold = 0.6
	cfg.Agents.Count = 300
	cfg.Agents.StepSize = 1
	cfg.Attractors.Count = 4
	cfg.ComputeDerived()

	sim, err := Build(cfg, Options{Seed: 3})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer sim.Close()

	before, mask := sim.Snapshot()
	if err := sim.Run(context.Background(), 25); err != nil {
		t.Fatal(err)
	}
	after, _ := sim.Snapshot()

	for i, blocked := range mask {
		if blocked && math.Float32bits(before[i]) != math.Float32bits(after[i]) {
			t.Fatalf("obstacle cell %d changed: %v -> %v", i, before[i], after[i])
		}
		if after[i] < 0 {
			t.Fatalf("cell %d went negative: %v", i, after[i])
		}
	}
	sim.Agents().Each(func(i int, x, y, _ float32) {
		if sim.Field().Blocked(x, y) {
			t.Errorf("agent %d ended on an obstacle at (%v,%v)", i, x, y)
		}
	})
}

func TestDeterministicForSeed(t *testing.T) {
	build := func(seed uint64) ([]float32, []float32) {
		cfg := config.Default()
		cfg.World.Width = 64
		cfg.World.Height = 64
		cfg.Agents.Count = 400
		cfg.Attractors.Count = 5
		cfg.Diffusion.Workers = 4
		cfg.ComputeDerived()

		sim, err := Build(cfg, Options{Seed: seed})
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		defer sim.Close()
		if err := sim.Run(context.Background(), 30); err != nil {
			t.Fatal(err)
		}
		var pos []float32
		sim.Agents().Each(func(_ int, x, y, h float32) {
			pos = append(pos, x, y, h)
		})
		conc, _ := sim.Snapshot()
		return conc, pos
	}

	c1, p1 := build(42)
	c2, p2 := build(42)
	for i := range c1 {
		if math.Float32bits(c1[i]) != math.Float32bits(c2[i]) {
			t.Fatalf("cell %d differs between identical runs", i)
		}
	}
	for i := range p1 {
		if p1[i] != p2[i] {
			t.Fatalf("agent state %d differs between identical runs", i)
		}
	}

	c3, _ := build(43)
	same := true
	for i := range c1 {
		if c1[i] != c3[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected a different seed to produce a different field")
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	cfg := quietConfig()
	cfg.Field.EvaporationRate = 1
	cfg.Agents.Boundary = "wrap"

	field, _ := systems.NewField(10, 10)
	agents := systems.NewAgentPopulation()
	_, err := NewSimulation(cfg, field, agents, nil, systems.NewRandomSource(1), Options{})
	if !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if !strings.Contains(err.Error(), "evaporation") || !strings.Contains(err.Error(), "boundary") {
		t.Errorf("expected every violation reported, got %v", err)
	}

	if _, err := Build(cfg, Options{}); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("expected Build to reject invalid config, got %v", err)
	}
}

func TestNonFiniteRatesRejected(t *testing.T) {
	cfg := quietConfig()
	cfg.Field.EvaporationRate = math.NaN()
	cfg.ComputeDerived()

	field, _ := systems.NewField(10, 10)
	agents := systems.NewAgentPopulation()
	agents.Spawn(5.5, 5.5, 0)
	if _, err := NewSimulation(cfg, field, agents, nil, systems.NewRandomSource(1), Options{}); !errors.Is(err, config.ErrInvalid) {
		t.Fatalf("expected ErrInvalid for NaN evaporation, got %v", err)
	}
	for i, v := range field.Cells() {
		if v != 0 {
			t.Fatalf("cell %d: expected untouched field, got %v", i, v)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	sim := newSingleAgentSim(t, quietConfig(), 5, 5, 0)

	if err := sim.Run(context.Background(), 7); err != nil {
		t.Fatal(err)
	}
	if sim.Tick() != 7 {
		t.Errorf("expected 7 ticks, got %d", sim.Tick())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sim.Run(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if sim.Tick() != 7 {
		t.Errorf("expected no ticks after cancellation, got %d", sim.Tick())
	}
}

func TestSetObstacleConcurrentWithRun(t *testing.T) {
	cfg := quietConfig()
	cfg.World.Width = 30
	cfg.World.Height = 30
	cfg.ComputeDerived()
	sim := newSingleAgentSim(t, cfg, 15, 15, 0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			sim.SetObstacle(i%30, 0, i%2 == 0)
			sim.PaintObstacle(2, 2, 1, true, systems.BrushCircle)
		}
	}()
	if err := sim.Run(context.Background(), 200); err != nil {
		t.Fatal(err)
	}
	wg.Wait()

	if !sim.Field().BlockedCell(2, 2) {
		t.Error("expected painted obstacle to be applied")
	}
}

func TestClearTrails(t *testing.T) {
	sim := newSingleAgentSim(t, quietConfig(), 5, 5, 0)
	if err := sim.Run(context.Background(), 3); err != nil {
		t.Fatal(err)
	}
	sim.ClearTrails()
	conc, _ := sim.Snapshot()
	for i, v := range conc {
		if v != 0 {
			t.Fatalf("cell %d: expected 0 after ClearTrails, got %v", i, v)
		}
	}
	if sim.Agents().Len() != 1 {
		t.Errorf("expected agents to survive ClearTrails, got %d", sim.Agents().Len())
	}
}

func TestStatsCallbackMayCallSimulation(t *testing.T) {
	cfg := quietConfig()
	cfg.Telemetry.StatsWindow = 1
	cfg.ComputeDerived()

	field, _ := systems.NewField(10, 10)
	agents := systems.NewAgentPopulation()
	agents.Spawn(5.5, 5.5, 0)

	var sim *Simulation
	var seen []int
	opts := Options{
		StatsCallback: func(stats telemetry.WindowStats) {
			seen = append(seen, sim.Tick())
			if sim.LastStats().WindowEndTick != stats.WindowEndTick {
				t.Errorf("expected LastStats to match the flushed window %d", stats.WindowEndTick)
			}
			sim.SetObstacle(0, 0, true)
		},
	}
	sim, err := NewSimulation(cfg, field, agents, nil, systems.NewRandomSource(1), opts)
	if err != nil {
		t.Fatal(err)
	}
	defer sim.Close()

	done := make(chan error, 1)
	go func() { done <- sim.Run(context.Background(), 3) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return; stats callback blocked on the simulation lock")
	}

	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Errorf("expected callback after ticks 1..3, got %v", seen)
	}
	if !sim.Field().BlockedCell(0, 0) {
		t.Error("expected obstacle set from the callback to be applied")
	}
}

func TestTelemetryOutputAndFrames(t *testing.T) {
	cfg := config.Default()
	cfg.World.Width = 32
	cfg.World.Height = 24
	cfg.Agents.Count = 100
	cfg.Attractors.Count = 3
	cfg.Telemetry.StatsWindow = 5
	cfg.Render.Every = 5
	cfg.Render.Scale = 2
	cfg.Render.Agents = true
	cfg.ComputeDerived()

	dir := t.TempDir()
	var windows []telemetry.WindowStats
	sim, err := Build(cfg, Options{
		Seed:          9,
		OutputDir:     filepath.Join(dir, "out"),
		FramesDir:     filepath.Join(dir, "frames"),
		StatsCallback: func(s telemetry.WindowStats) { windows = append(windows, s) },
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := sim.Run(context.Background(), 10); err != nil {
		t.Fatal(err)
	}
	if err := sim.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}
	if windows[1].WindowEndTick != 10 || windows[1].Agents != 100 {
		t.Errorf("unexpected window %+v", windows[1])
	}
	if sim.LastStats().WindowEndTick != 10 {
		t.Errorf("expected last stats at tick 10, got %d", sim.LastStats().WindowEndTick)
	}
	if windows[1].Moves+windows[1].Bounces+windows[1].Reflections != 5*100 {
		t.Errorf("expected one outcome per agent per tick, got %+v", windows[1])
	}

	data, err := os.ReadFile(filepath.Join(dir, "out", "stats.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if lines := strings.Count(strings.TrimSpace(string(data)), "\n"); lines != 2 {
		t.Errorf("expected header + 2 rows, got %d newlines", lines)
	}
	if _, err := os.Stat(filepath.Join(dir, "out", "config.yaml")); err != nil {
		t.Errorf("expected config snapshot: %v", err)
	}

	for _, name := range []string{"frame_000005.png", "frame_000010.png"} {
		f, err := os.Open(filepath.Join(dir, "frames", name))
		if err != nil {
			t.Errorf("expected frame %s: %v", name, err)
			continue
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			t.Errorf("decoding %s: %v", name, err)
			continue
		}
		if b := img.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
			t.Errorf("expected 64x48 frame, got %v", b)
		}
		if countAgentPixels(img) == 0 {
			t.Errorf("expected agent layer in %s", name)
		}
	}
}

// countAgentPixels counts pixels on the renderer's blue to red agent ramp.
func countAgentPixels(img image.Image) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			if c.G == 51 && int(c.R)+int(c.B) == 255 {
				n++
			}
		}
	}
	return n
}

func TestBuildFromMap(t *testing.T) {
	// 20x12 map with a wall down the middle column
	img := image.NewGray(image.Rect(0, 0, 20, 12))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for y := 0; y < 12; y++ {
		img.Pix[y*img.Stride+10] = 0
	}
	path := filepath.Join(t.TempDir(), "map.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
	f.Close()

	cfg := config.Default()
	cfg.World.Map = path
	cfg.World.Width = 0 // taken from the image
	cfg.Agents.Count = 200
	cfg.Attractors.Count = 6
	cfg.Attractors.InitialSeed = 50
	cfg.ComputeDerived()

	sim, err := Build(cfg, Options{Seed: 1})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer sim.Close()

	field := sim.Field()
	if w, h := field.GridSize(); w != 20 || h != 12 {
		t.Fatalf("expected 20x12 field, got %dx%d", w, h)
	}
	if field.FreeCount() != 20*12-12 {
		t.Errorf("expected wall column blocked, got %d free", field.FreeCount())
	}
	for _, p := range sim.Attractors().Positions() {
		if p.X == 10 {
			t.Errorf("attractor placed on wall at %+v", p)
		}
		if field.At(p.X, p.Y) != 50 {
			t.Errorf("expected attractor seeded with 50, got %v", field.At(p.X, p.Y))
		}
	}
	sim.Agents().Each(func(i int, x, y, _ float32) {
		if int(x) == 10 {
			t.Errorf("agent %d placed on wall", i)
		}
	})

	cfg.World.Map = filepath.Join(t.TempDir(), "missing.png")
	if _, err := Build(cfg, Options{}); err == nil {
		t.Error("expected error for missing map")
	}
}

func TestBuildMaze(t *testing.T) {
	cfg := config.Default()
	cfg.World.Width = 48
	cfg.World.Height = 48
	cfg.World.Mask.Kind = "maze"
	cfg.World.Mask.CellSize = 4
	cfg.Agents.Count = 50
	cfg.Attractors.Count = 4
	cfg.ComputeDerived()

	sim, err := Build(cfg, Options{Seed: 5})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer sim.Close()

	f := sim.Field()
	if f.FreeCount() == 0 || f.FreeCount() == 48*48 {
		t.Errorf("expected a partial maze, got %d free cells", f.FreeCount())
	}
	for _, p := range sim.Attractors().Positions() {
		if f.BlockedCell(p.X, p.Y) {
			t.Errorf("attractor on maze wall at %+v", p)
		}
	}
}
