// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World      WorldConfig      `yaml:"world"`
	Agents     AgentsConfig     `yaml:"agents"`
	Attractors AttractorsConfig `yaml:"attractors"`
	Field      FieldConfig      `yaml:"field"`
	Diffusion  DiffusionConfig  `yaml:"diffusion"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Render     RenderConfig     `yaml:"render"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds grid dimensions and the obstacle layout source.
// When Map is set the grid takes the image's dimensions.
type WorldConfig struct {
	Width        int        `yaml:"width"`
	Height       int        `yaml:"height"`
	Map          string     `yaml:"map"`           // Obstacle image path (empty = no map)
	MapThreshold int        `yaml:"map_threshold"` // Pixel value > threshold is free
	Mask         MaskConfig `yaml:"mask"`
}

// MaskConfig selects a procedural obstacle layout for runs without a map.
type MaskConfig struct {
	Kind          string  `yaml:"kind"` // none | border | maze | caves
	Seed          int64   `yaml:"seed"` // 0 = derive from run seed
	Braiding      float64 `yaml:"braiding"`
	CellSize      int     `yaml:"cell_size"`
	CaveScale     float64 `yaml:"cave_scale"`
	CaveThreshold float64 `yaml:"cave_threshold"`
}

// AgentsConfig holds population size, sensor geometry and motion parameters.
type AgentsConfig struct {
	Count                int     `yaml:"count"`
	Placement            string  `yaml:"placement"`      // uniform | cluster
	ClusterRadius        float64 `yaml:"cluster_radius"` // Disc radius for cluster placement
	SensorDistance       float64 `yaml:"sensor_distance"`
	SensorAngle          float64 `yaml:"sensor_angle"` // Side sensor offset from heading (radians)
	TurnAngle            float64 `yaml:"turn_angle"`   // Fixed reorientation increment (radians)
	StepSize             float64 `yaml:"step_size"`
	DepositAmount        float64 `yaml:"deposit_amount"`
	ExplorationJitter    float64 `yaml:"exploration_jitter"` // Heading noise applied every step
	TieJitter            float64 `yaml:"tie_jitter"`         // Heading noise when sensors tie
	BounceJitter         float64 `yaml:"bounce_jitter"`      // Heading noise after a blocked move
	ReflectJitter        float64 `yaml:"reflect_jitter"`     // Heading noise after an edge reflection
	Boundary             string  `yaml:"boundary"`           // reflective | obstacle_bounded
	MaxPlacementAttempts int     `yaml:"max_placement_attempts"`
}

// Point is an integer grid position.
type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// AttractorsConfig holds fixed reinforcement sources.
type AttractorsConfig struct {
	Count         int     `yaml:"count"`
	Reinforcement float64 `yaml:"reinforcement"` // Deposited on every attractor each tick
	InitialSeed   float64 `yaml:"initial_seed"`  // Painted once at start
	Positions     []Point `yaml:"positions"`     // Explicit positions; random free cells when empty
}

// FieldConfig holds decay and spreading rates.
type FieldConfig struct {
	EvaporationRate float64 `yaml:"evaporation_rate"` // [0,1)
	DiffusionRate   float64 `yaml:"diffusion_rate"`   // [0,1], 0 disables
}

// DiffusionConfig holds diffusion execution settings.
type DiffusionConfig struct {
	Workers int `yaml:"workers"` // 0 = GOMAXPROCS, 1 = single-threaded
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow         int     `yaml:"stats_window"` // Ticks per stats window
	PerfWindow          int     `yaml:"perf_window"`
	TrailThreshold      float64 `yaml:"trail_threshold"`      // Cells above this count as trail
	SaturationThreshold float64 `yaml:"saturation_threshold"` // Peak concentration that raises a saturation event
	HistorySize         int     `yaml:"history_size"`
}

// RenderConfig holds headless frame export settings.
type RenderConfig struct {
	Every  int     `yaml:"every"`  // Ticks between frames (0 = off)
	Scale  int     `yaml:"scale"`  // Output pixels per cell
	Gain   float64 `yaml:"gain"`   // Concentration to brightness factor
	Agents bool    `yaml:"agents"` // Draw agents coloured by local trail level
}

// Boundary is the parsed agents.boundary policy.
type Boundary uint8

const (
	BoundaryObstacle Boundary = iota
	BoundaryReflective
)

func (b Boundary) String() string {
	if b == BoundaryReflective {
		return "reflective"
	}
	return "obstacle_bounded"
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Boundary            Boundary
	Cluster             bool
	SensorDistance32    float32
	SensorAngle32       float32
	TurnAngle32         float32
	StepSize32          float32
	Deposit32           float32
	Reinforcement32     float32
	InitialSeed32       float32
	Evaporation32       float32
	Diffusion32         float32
	ExplorationJitter32 float32
	TieJitter32         float32
	BounceJitter32      float32
	ReflectJitter32     float32
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Default returns a fresh copy of the embedded defaults.
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("config: embedded defaults invalid: %v", err))
	}
	return cfg
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.ComputeDerived()

	return cfg, nil
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	out := *c
	out.Attractors.Positions = append([]Point(nil), c.Attractors.Positions...)
	return &out
}

// ComputeDerived recalculates values derived from the loaded config.
// Call after mutating fields programmatically.
func (c *Config) ComputeDerived() {
	a := &c.Agents
	d := &c.Derived

	d.Boundary = BoundaryObstacle
	if a.Boundary == "reflective" {
		d.Boundary = BoundaryReflective
	}
	d.Cluster = a.Placement == "cluster"

	d.SensorDistance32 = float32(a.SensorDistance)
	d.SensorAngle32 = float32(a.SensorAngle)
	d.TurnAngle32 = float32(a.TurnAngle)
	d.StepSize32 = float32(a.StepSize)
	d.Deposit32 = float32(a.DepositAmount)
	d.ExplorationJitter32 = float32(a.ExplorationJitter)
	d.TieJitter32 = float32(a.TieJitter)
	d.BounceJitter32 = float32(a.BounceJitter)
	d.ReflectJitter32 = float32(a.ReflectJitter)

	d.Reinforcement32 = float32(c.Attractors.Reinforcement)
	d.InitialSeed32 = float32(c.Attractors.InitialSeed)
	d.Evaporation32 = float32(c.Field.EvaporationRate)
	d.Diffusion32 = float32(c.Field.DiffusionRate)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
