package systems

import (
	"github.com/pthm-cable/physarum/config"
)

// NetworkStats summarizes the trail network: free cells whose concentration
// exceeds a threshold, grouped into 8-connected components.
type NetworkStats struct {
	TrailCells       int
	Components       int
	LargestComponent int

	// Attractors sitting on trail cells
	AttractorsOnTrail int
	// Most attractors sharing a single component
	AttractorsConnected int
	// Fraction of attractor pairs that share a component, in [0,1]
	PairsConnected float64
}

// NetworkAnalyzer labels trail components. It keeps scratch buffers between
// calls; not safe for concurrent use.
type NetworkAnalyzer struct {
	labels []int32
	stack  []int
}

// Analyze thresholds f and reports connectivity between attractors.
func (n *NetworkAnalyzer) Analyze(f *Field, attractors []config.Point, threshold float32) NetworkStats {
	total := f.W * f.H
	if cap(n.labels) < total {
		n.labels = make([]int32, total)
	}
	labels := n.labels[:total]
	clear(labels)

	cells := f.Cells()
	mask := f.Mask()
	isTrail := func(i int) bool {
		return !mask[i] && cells[i] > threshold
	}

	var stats NetworkStats
	next := int32(0)
	for start := 0; start < total; start++ {
		if labels[start] != 0 || !isTrail(start) {
			continue
		}
		next++
		size := 0
		n.stack = append(n.stack[:0], start)
		labels[start] = next
		for len(n.stack) > 0 {
			i := n.stack[len(n.stack)-1]
			n.stack = n.stack[:len(n.stack)-1]
			size++
			x, y := i%f.W, i/f.W
			for dy := -1; dy <= 1; dy++ {
				ny := y + dy
				if ny < 0 || ny >= f.H {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if nx < 0 || nx >= f.W || (dx == 0 && dy == 0) {
						continue
					}
					j := ny*f.W + nx
					if labels[j] == 0 && isTrail(j) {
						labels[j] = next
						n.stack = append(n.stack, j)
					}
				}
			}
		}
		stats.TrailCells += size
		if size > stats.LargestComponent {
			stats.LargestComponent = size
		}
	}
	stats.Components = int(next)

	// Count attractors per component
	perComponent := make(map[int32]int)
	for _, p := range attractors {
		if p.X < 0 || p.Y < 0 || p.X >= f.W || p.Y >= f.H {
			continue
		}
		if l := labels[p.Y*f.W+p.X]; l != 0 {
			perComponent[l]++
			stats.AttractorsOnTrail++
		}
	}

	var pairs int
	for _, k := range perComponent {
		pairs += k * (k - 1) / 2
		if k > stats.AttractorsConnected {
			stats.AttractorsConnected = k
		}
	}
	if na := len(attractors); na > 1 {
		stats.PairsConnected = float64(pairs) / float64(na*(na-1)/2)
	}
	return stats
}
