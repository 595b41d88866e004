// Package components holds the ECS component types for swarm agents.
package components

// Position represents an agent's continuous grid position.
// Coordinates are in cell units; cell (i,j) covers [i,i+1)x[j,j+1).
type Position struct {
	X, Y float32
}

// Heading is an agent's direction of travel in radians.
// It is never normalized; trigonometric use wraps it implicitly.
type Heading struct {
	Angle float32
}
