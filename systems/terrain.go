package systems

import (
	"github.com/ojrac/opensimplex-go"
)

// Procedural obstacle layouts. Every mask is row-major with true = blocked
// and can be applied with Field.ApplyMask.

// BorderMask blocks the outermost ring of cells.
func BorderMask(w, h int) []bool {
	mask := make([]bool, w*h)
	for x := 0; x < w; x++ {
		mask[x] = true
		mask[(h-1)*w+x] = true
	}
	for y := 0; y < h; y++ {
		mask[y*w] = true
		mask[y*w+w-1] = true
	}
	return mask
}

// CaveMask blocks cells where normalized simplex noise exceeds threshold,
// plus the outer ring. scale is the noise frequency per cell.
func CaveMask(w, h int, scale, threshold float64, seed int64) []bool {
	noise := opensimplex.NewNormalized(seed)
	mask := BorderMask(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if noise.Eval2(float64(x)*scale, float64(y)*scale) > threshold {
				mask[y*w+x] = true
			}
		}
	}
	return mask
}

type mazePoint struct {
	X, Y int
}

// MazeMask generates a recursive-backtracker maze on a coarse grid of
// roughly cellSize cells per maze square and scales it up to w x h.
// braiding in [0,1] is the chance each dead end is opened into a loop.
func MazeMask(w, h, cellSize int, braiding float64, rng RandomSource) []bool {
	if cellSize < 1 {
		cellSize = 1
	}
	cols := ensureOdd(w / cellSize)
	rows := ensureOdd(h / cellSize)

	grid := make([][]bool, rows)
	for i := range grid {
		grid[i] = make([]bool, cols)
		for j := range grid[i] {
			grid[i][j] = true
		}
	}

	recursiveBacktracker(grid, mazePoint{1, 1}, rng)
	if braiding > 0 {
		braid(grid, braiding, rng)
	}

	mask := make([]bool, w*h)
	for y := 0; y < h; y++ {
		my := y * rows / h
		for x := 0; x < w; x++ {
			mx := x * cols / w
			mask[y*w+x] = grid[my][mx]
		}
	}
	return mask
}

// ensureOdd rounds n down to an odd number, minimum 3.
func ensureOdd(n int) int {
	if n < 3 {
		return 3
	}
	if n%2 == 0 {
		return n - 1
	}
	return n
}

var mazeDirs = []mazePoint{{0, -2}, {0, 2}, {-2, 0}, {2, 0}}

func recursiveBacktracker(grid [][]bool, start mazePoint, rng RandomSource) {
	rows, cols := len(grid), len(grid[0])

	stack := []mazePoint{start}
	grid[start.Y][start.X] = false

	for len(stack) > 0 {
		curr := stack[len(stack)-1]
		candidates := make([]mazePoint, 0, 4)

		for _, d := range mazeDirs {
			nx, ny := curr.X+d.X, curr.Y+d.Y
			// Leave a 1 cell border of walls
			if nx > 0 && nx < cols-1 && ny > 0 && ny < rows-1 && grid[ny][nx] {
				candidates = append(candidates, d)
			}
		}

		if len(candidates) == 0 {
			stack = stack[:len(stack)-1]
			continue
		}

		d := candidates[randomIntn(rng, len(candidates))]
		grid[curr.Y+d.Y/2][curr.X+d.X/2] = false
		next := mazePoint{curr.X + d.X, curr.Y + d.Y}
		grid[next.Y][next.X] = false
		stack = append(stack, next)
	}
}

// braid opens a wall next to dead ends to introduce cycles.
func braid(grid [][]bool, chance float64, rng RandomSource) {
	rows, cols := len(grid), len(grid[0])
	for y := 1; y < rows-1; y += 2 {
		for x := 1; x < cols-1; x += 2 {
			if grid[y][x] {
				continue
			}
			openings := 0
			var walls []mazePoint
			for _, d := range mazeDirs {
				nx, ny := x+d.X, y+d.Y
				if nx <= 0 || nx >= cols-1 || ny <= 0 || ny >= rows-1 {
					continue
				}
				wx, wy := x+d.X/2, y+d.Y/2
				if grid[wy][wx] {
					walls = append(walls, mazePoint{wx, wy})
				} else {
					openings++
				}
			}
			if openings != 1 || len(walls) == 0 {
				continue
			}
			if rng.Float64() >= chance {
				continue
			}
			wp := walls[randomIntn(rng, len(walls))]
			grid[wp.Y][wp.X] = false
		}
	}
}
