// Package baseline computes exact shortest closed tours over small point
// sets, as a reference to compare trail networks against.
package baseline

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/physarum/config"
)

// MaxPoints bounds the brute-force search; (n-1)! permutations are visited.
const MaxPoints = 12

var (
	// ErrTooManyPoints is returned when the point set exceeds MaxPoints.
	ErrTooManyPoints = errors.New("too many points for brute-force tour")
	// ErrTooFewPoints is returned for fewer than two points.
	ErrTooFewPoints = errors.New("tour needs at least two points")
)

// Tour is a closed visiting order and its Euclidean length.
type Tour struct {
	Order        []int
	Length       float64
	Permutations int
}

// TourLength returns the closed-loop length of visiting points in order.
func TourLength(points []config.Point, order []int) float64 {
	var total float64
	for i := range order {
		a := points[order[i]]
		b := points[order[(i+1)%len(order)]]
		total += math.Hypot(float64(b.X-a.X), float64(b.Y-a.Y))
	}
	return total
}

// ShortestTour enumerates every closed tour with Heap's algorithm and returns
// the shortest. Point 0 is fixed as the start since rotations of a closed
// tour have equal length. ctx is checked every 4096 permutations.
func ShortestTour(ctx context.Context, points []config.Point) (Tour, error) {
	n := len(points)
	if n < 2 {
		return Tour{}, ErrTooFewPoints
	}
	if n > MaxPoints {
		return Tour{}, fmt.Errorf("%w: %d > %d", ErrTooManyPoints, n, MaxPoints)
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
		for j := range dist[i] {
			dist[i][j] = math.Hypot(float64(points[j].X-points[i].X), float64(points[j].Y-points[i].Y))
		}
	}
	length := func(order []int) float64 {
		total := dist[0][order[0]] + dist[order[len(order)-1]][0]
		for i := 1; i < len(order); i++ {
			total += dist[order[i-1]][order[i]]
		}
		return total
	}

	// Permute points 1..n-1
	rest := make([]int, n-1)
	for i := range rest {
		rest[i] = i + 1
	}
	best := Tour{Order: append([]int{0}, rest...), Length: length(rest), Permutations: 1}

	// Iterative Heap's algorithm
	c := make([]int, len(rest))
	for i := 0; i < len(rest); {
		if c[i] < i {
			if i%2 == 0 {
				rest[0], rest[i] = rest[i], rest[0]
			} else {
				rest[c[i]], rest[i] = rest[i], rest[c[i]]
			}
			best.Permutations++
			if l := length(rest); l < best.Length {
				best.Length = l
				copy(best.Order[1:], rest)
			}
			if best.Permutations%4096 == 0 {
				if err := ctx.Err(); err != nil {
					return best, err
				}
			}
			c[i]++
			i = 0
		} else {
			c[i] = 0
			i++
		}
	}
	return best, nil
}
