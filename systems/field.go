package systems

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSize is returned for non-positive grid dimensions.
	ErrInvalidSize = errors.New("field size must be positive")
	// ErrMaskSize is returned when a mask or bitmap does not match the grid.
	ErrMaskSize = errors.New("mask size does not match field")
)

// DefaultMaskThreshold is the bitmap value above which a pixel is free.
const DefaultMaskThreshold = 128

// Field is the concentration grid plus its obstacle mask.
//
// Out-of-bounds and obstacle cells read as 0 and ignore deposits. Obstacle
// cells keep whatever value they held when they were blocked; diffusion and
// evaporation never touch them.
type Field struct {
	W, H int

	conc    []float32
	blocked []bool

	// Scratch buffer for diffusion, swapped with conc after each pass
	tmp []float32

	pool *rowPool
}

// NewField creates an open field with all concentrations at zero.
func NewField(w, h int) (*Field, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	return &Field{
		W:       w,
		H:       h,
		conc:    make([]float32, w*h),
		blocked: make([]bool, w*h),
		tmp:     make([]float32, w*h),
	}, nil
}

// LoadObstacleMask sizes a field from an 8-bit single channel bitmap in
// row-major order. Pixels with value > threshold are free, all others blocked.
func LoadObstacleMask(w, h int, bitmap []byte, threshold uint8) (*Field, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidSize, w, h)
	}
	if len(bitmap) != w*h {
		return nil, fmt.Errorf("%w: bitmap has %d bytes, want %d", ErrMaskSize, len(bitmap), w*h)
	}
	f, err := NewField(w, h)
	if err != nil {
		return nil, err
	}
	for i, v := range bitmap {
		f.blocked[i] = v <= threshold
	}
	return f, nil
}

// SetWorkers enables row-parallel diffusion with n workers (n <= 1 disables).
// Results are identical to the single-threaded pass.
func (f *Field) SetWorkers(n int) {
	if f.pool != nil {
		f.pool.stop()
		f.pool = nil
	}
	if n > 1 {
		f.pool = newRowPool(n)
	}
}

// Close stops diffusion workers, if any.
func (f *Field) Close() {
	if f.pool != nil {
		f.pool.stop()
		f.pool = nil
	}
}

// cellIndex maps continuous coordinates to a cell index.
// Bounds are checked before truncation so -0.5 is outside the grid.
func (f *Field) cellIndex(x, y float32) (int, bool) {
	if !(x >= 0 && y >= 0 && x < float32(f.W) && y < float32(f.H)) {
		return 0, false
	}
	xi, yi := int(x), int(y)
	if xi >= f.W || yi >= f.H {
		return 0, false
	}
	return yi*f.W + xi, true
}

// Sample returns the concentration at (x, y), or 0 out of bounds or on an obstacle.
func (f *Field) Sample(x, y float32) float32 {
	i, ok := f.cellIndex(x, y)
	if !ok || f.blocked[i] {
		return 0
	}
	return f.conc[i]
}

// Deposit adds amount at (x, y). No-op out of bounds or on an obstacle.
func (f *Field) Deposit(x, y, amount float32) {
	i, ok := f.cellIndex(x, y)
	if !ok || f.blocked[i] {
		return
	}
	f.conc[i] += amount
}

// Blocked reports whether (x, y) is impassable. The grid edge counts as a wall.
func (f *Field) Blocked(x, y float32) bool {
	i, ok := f.cellIndex(x, y)
	return !ok || f.blocked[i]
}

// BlockedCell reports whether cell (x, y) is impassable.
func (f *Field) BlockedCell(x, y int) bool {
	if x < 0 || y < 0 || x >= f.W || y >= f.H {
		return true
	}
	return f.blocked[y*f.W+x]
}

// SetObstacle marks or clears a single cell. Out-of-bounds cells are ignored.
// Must not be called while a tick is running.
func (f *Field) SetObstacle(x, y int, blocked bool) {
	if x < 0 || y < 0 || x >= f.W || y >= f.H {
		return
	}
	f.blocked[y*f.W+x] = blocked
}

// BrushShape selects the footprint used by PaintObstacle.
type BrushShape uint8

const (
	BrushSquare BrushShape = iota
	BrushCircle
)

// PaintObstacle applies SetObstacle over a brush footprint centred on (cx, cy).
func (f *Field) PaintObstacle(cx, cy, radius int, blocked bool, shape BrushShape) {
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if shape == BrushCircle && dx*dx+dy*dy > r2 {
				continue
			}
			f.SetObstacle(cx+dx, cy+dy, blocked)
		}
	}
}

// ApplyMask replaces the obstacle grid. mask is row-major, true = blocked.
func (f *Field) ApplyMask(mask []bool) error {
	if len(mask) != len(f.blocked) {
		return fmt.Errorf("%w: mask has %d cells, want %d", ErrMaskSize, len(mask), len(f.blocked))
	}
	copy(f.blocked, mask)
	return nil
}

// SetCell overwrites the stored value of a free cell. Used for initial seeding.
func (f *Field) SetCell(x, y int, v float32) {
	if f.BlockedCell(x, y) {
		return
	}
	f.conc[y*f.W+x] = v
}

// At returns the stored value of cell (x, y), including obstacle cells.
func (f *Field) At(x, y int) float32 {
	return f.conc[y*f.W+x]
}

// FreeCount returns the number of non-obstacle cells.
func (f *Field) FreeCount() int {
	n := 0
	for _, b := range f.blocked {
		if !b {
			n++
		}
	}
	return n
}

// Clear zeroes every concentration value.
func (f *Field) Clear() {
	clear(f.conc)
}

// Cells returns the live concentration grid in row-major order.
// Callers must treat it as read-only.
func (f *Field) Cells() []float32 { return f.conc }

// Mask returns the live obstacle grid in row-major order.
// Callers must treat it as read-only.
func (f *Field) Mask() []bool { return f.blocked }

// Concentration returns a copy of the concentration grid.
func (f *Field) Concentration() []float32 {
	out := make([]float32, len(f.conc))
	copy(out, f.conc)
	return out
}

// Obstacles returns a copy of the obstacle grid.
func (f *Field) Obstacles() []bool {
	out := make([]bool, len(f.blocked))
	copy(out, f.blocked)
	return out
}

// GridSize returns the grid dimensions.
func (f *Field) GridSize() (int, int) {
	return f.W, f.H
}

// Evaporate multiplies every free cell by (1 - rate).
func (f *Field) Evaporate(rate float32) {
	k := 1 - rate
	for i, b := range f.blocked {
		if !b {
			f.conc[i] *= k
		}
	}
}

// Diffuse blends every free interior cell toward the mean of its free 3x3
// neighbourhood: new = old*(1-rate) + mean*rate. All reads come from the
// pre-pass grid. Border rows and columns are left unchanged.
func (f *Field) Diffuse(rate float32) {
	if rate <= 0 || f.W < 3 || f.H < 3 {
		return
	}
	copy(f.tmp, f.conc)

	if f.pool != nil && f.H >= parallelRowThreshold {
		f.pool.run(f, rate)
	} else {
		f.diffuseRows(1, f.H-1, rate)
	}

	f.conc, f.tmp = f.tmp, f.conc
}

// diffuseRows writes diffused values for interior rows [y0, y1) into tmp.
func (f *Field) diffuseRows(y0, y1 int, rate float32) {
	if y0 < 1 {
		y0 = 1
	}
	if y1 > f.H-1 {
		y1 = f.H - 1
	}
	w := f.W
	src := f.conc
	r := float64(rate)

	for y := y0; y < y1; y++ {
		for x := 1; x < w-1; x++ {
			i := y*w + x
			if f.blocked[i] {
				continue
			}
			var sum float64
			count := 0
			for dy := -1; dy <= 1; dy++ {
				row := (y + dy) * w
				for dx := -1; dx <= 1; dx++ {
					j := row + x + dx
					if !f.blocked[j] {
						sum += float64(src[j])
						count++
					}
				}
			}
			if count == 0 {
				continue
			}
			mean := sum / float64(count)
			f.tmp[i] = float32(float64(src[i])*(1-r) + mean*r)
		}
	}
}
