package systems

import "testing"

func countBlocked(mask []bool) int {
	n := 0
	for _, b := range mask {
		if b {
			n++
		}
	}
	return n
}

func TestBorderMask(t *testing.T) {
	mask := BorderMask(6, 4)
	if got := countBlocked(mask); got != 16 {
		t.Errorf("expected 16 border cells, got %d", got)
	}
	if mask[1*6+1] || mask[2*6+4] {
		t.Error("expected interior cells to be free")
	}
}

func TestCaveMaskDeterministic(t *testing.T) {
	a := CaveMask(64, 48, 0.08, 0.6, 42)
	b := CaveMask(64, 48, 0.08, 0.6, 42)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("cell %d differs between identical seeds", i)
		}
	}
	border := countBlocked(BorderMask(64, 48))
	blocked := countBlocked(a)
	if blocked <= border {
		t.Errorf("expected noise to add walls beyond the border, got %d blocked", blocked)
	}
	if blocked == len(a) {
		t.Error("expected some free cells")
	}
}

func TestMazeMaskConnected(t *testing.T) {
	const w, h = 63, 45
	mask := MazeMask(w, h, 3, 0, NewRandomSource(9))

	// Flood fill from the first free cell must reach every free cell
	start := -1
	free := 0
	for i, b := range mask {
		if !b {
			free++
			if start < 0 {
				start = i
			}
		}
	}
	if start < 0 {
		t.Fatal("maze has no free cells")
	}

	seen := make([]bool, len(mask))
	stack := []int{start}
	seen[start] = true
	reached := 0
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		reached++
		x, y := i%w, i/w
		for _, d := range [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d[0], y+d[1]
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			j := ny*w + nx
			if !mask[j] && !seen[j] {
				seen[j] = true
				stack = append(stack, j)
			}
		}
	}
	if reached != free {
		t.Errorf("expected all %d free cells reachable, reached %d", free, reached)
	}
	if !mask[0] || !mask[len(mask)-1] {
		t.Error("expected maze corners to be walls")
	}
}

func TestMazeBraidingOpensWalls(t *testing.T) {
	plain := MazeMask(81, 81, 3, 0, NewRandomSource(4))
	braided := MazeMask(81, 81, 3, 1, NewRandomSource(4))
	if countBlocked(braided) >= countBlocked(plain) {
		t.Errorf("expected braiding to remove walls: plain=%d braided=%d",
			countBlocked(plain), countBlocked(braided))
	}
}
