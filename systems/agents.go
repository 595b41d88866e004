package systems

import (
	"errors"
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/physarum/components"
	"github.com/pthm-cable/physarum/config"
)

// ErrNoFreeCell is returned when placement cannot find a non-obstacle cell.
var ErrNoFreeCell = errors.New("no free cell available")

// Outcome classifies how an agent's move resolved.
type Outcome uint8

const (
	OutcomeMoved     Outcome = iota
	OutcomeBounced           // move blocked, heading re-randomized
	OutcomeReflected         // clamped at the grid edge, heading mirrored
)

// StepCounts tallies move outcomes over one UpdateAll call.
type StepCounts struct {
	Moves       int
	Bounces     int
	Reflections int
}

// AgentPopulation is the fixed set of sensing, depositing particles.
// Agents live in an ECS world and are always visited in creation order.
type AgentPopulation struct {
	world  *ecs.World
	mapper *ecs.Map2[components.Position, components.Heading]
	filter *ecs.Filter2[components.Position, components.Heading]
	count  int
}

// NewAgentPopulation creates an empty population.
func NewAgentPopulation() *AgentPopulation {
	world := ecs.NewWorld()
	return &AgentPopulation{
		world:  world,
		mapper: ecs.NewMap2[components.Position, components.Heading](world),
		filter: ecs.NewFilter2[components.Position, components.Heading](world),
	}
}

// Spawn adds one agent at (x, y) with the given heading.
func (p *AgentPopulation) Spawn(x, y, heading float32) {
	pos := components.Position{X: x, Y: y}
	head := components.Heading{Angle: heading}
	p.mapper.NewEntity(&pos, &head)
	p.count++
}

// Initialize spawns agents.count agents on free cells of f, either uniformly
// across the grid or in a disc at the grid centre, each with a uniform
// random heading in [0, 2π).
func (p *AgentPopulation) Initialize(cfg *config.Config, f *Field, rng RandomSource) error {
	if f.FreeCount() == 0 {
		return fmt.Errorf("placing agents: %w", ErrNoFreeCell)
	}

	a := cfg.Agents
	cx, cy := float64(f.W)/2, float64(f.H)/2

	for i := 0; i < a.Count; i++ {
		var x, y float32
		placed := false
		for attempt := 0; attempt < a.MaxPlacementAttempts; attempt++ {
			if cfg.Derived.Cluster {
				r := a.ClusterRadius * math.Sqrt(rng.Float64())
				theta := rng.Float64() * twoPi
				x = float32(cx + r*math.Cos(theta))
				y = float32(cy + r*math.Sin(theta))
			} else {
				x = float32(rng.Float64() * float64(f.W))
				y = float32(rng.Float64() * float64(f.H))
			}
			if !f.Blocked(x, y) {
				placed = true
				break
			}
		}
		if !placed {
			return fmt.Errorf("placing agent %d after %d attempts: %w", i, a.MaxPlacementAttempts, ErrNoFreeCell)
		}
		heading := float32(rng.Float64() * twoPi)
		p.Spawn(x, y, heading)
	}
	return nil
}

// Len returns the population size.
func (p *AgentPopulation) Len() int { return p.count }

// Each calls fn for every agent in update order.
func (p *AgentPopulation) Each(fn func(i int, x, y, heading float32)) {
	i := 0
	query := p.filter.Query()
	for query.Next() {
		pos, head := query.Get()
		fn(i, pos.X, pos.Y, head.Angle)
		i++
	}
}

// Positions returns a snapshot of all agent positions in update order.
func (p *AgentPopulation) Positions() []components.Position {
	out := make([]components.Position, 0, p.count)
	p.Each(func(_ int, x, y, _ float32) {
		out = append(out, components.Position{X: x, Y: y})
	})
	return out
}

// UpdateAll runs the sense-turn-move-deposit step for every agent in order,
// then reinforces attractors once. Agents read and write the shared field as
// they go, so later agents see deposits made earlier in the same tick.
func (p *AgentPopulation) UpdateAll(f *Field, attractors *AttractorSet, cfg *config.Config, rng RandomSource) StepCounts {
	var counts StepCounts
	d := &cfg.Derived

	query := p.filter.Query()
	for query.Next() {
		pos, head := query.Get()
		switch UpdateOne(pos, head, f, d, rng) {
		case OutcomeMoved:
			counts.Moves++
		case OutcomeBounced:
			counts.Bounces++
		case OutcomeReflected:
			counts.Reflections++
		}
	}

	if attractors != nil {
		attractors.Reinforce(f, d.Reinforcement32)
	}
	return counts
}

// UpdateOne advances a single agent in place and deposits at its final position.
func UpdateOne(pos *components.Position, head *components.Heading, f *Field, d *config.DerivedConfig, rng RandomSource) Outcome {
	a := head.Angle
	sd := d.SensorDistance32

	// Sense
	sF := f.Sample(pos.X+cos32(a)*sd, pos.Y+sin32(a)*sd)
	aL := a + d.SensorAngle32
	sL := f.Sample(pos.X+cos32(aL)*sd, pos.Y+sin32(aL)*sd)
	aR := a - d.SensorAngle32
	sR := f.Sample(pos.X+cos32(aR)*sd, pos.Y+sin32(aR)*sd)

	// Turn
	switch {
	case sF > sL && sF > sR:
	case sL > sR:
		a += d.TurnAngle32
	case sR > sL:
		a -= d.TurnAngle32
	default:
		a += jitter(rng, d.TieJitter32)
	}

	// Explore
	a += jitter(rng, d.ExplorationJitter32)

	// Move
	nx := pos.X + cos32(a)*d.StepSize32
	ny := pos.Y + sin32(a)*d.StepSize32

	outcome := OutcomeMoved
	if d.Boundary == config.BoundaryReflective {
		var reflected bool
		pos.X, pos.Y, a, reflected = reflect(nx, ny, a, f.W, f.H)
		if reflected {
			a += jitter(rng, d.ReflectJitter32)
			outcome = OutcomeReflected
		}
	} else if !f.Blocked(nx, ny) {
		pos.X, pos.Y = nx, ny
	} else {
		a += jitter(rng, d.BounceJitter32)
		outcome = OutcomeBounced
	}
	head.Angle = a

	// Deposit
	f.Deposit(pos.X, pos.Y, d.Deposit32)
	return outcome
}

// reflect clamps (x, y) into [0,w)x[0,h) and mirrors the heading across the
// normal of each boundary that was crossed.
func reflect(x, y, a float32, w, h int) (float32, float32, float32, bool) {
	reflected := false
	maxX := math.Nextafter32(float32(w), 0)
	maxY := math.Nextafter32(float32(h), 0)

	if x < 0 || x > maxX {
		x = clamp32(x, 0, maxX)
		a = math.Pi - a
		reflected = true
	}
	if y < 0 || y > maxY {
		y = clamp32(y, 0, maxY)
		a = -a
		reflected = true
	}
	return x, y, a, reflected
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
