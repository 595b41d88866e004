// Package renderer exports the field as heat-map images.
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/crazy3lf/colorconv"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/systems"
)

const paletteSize = 256

var (
	WallColor      = color.RGBA{R: 30, G: 60, B: 200, A: 255}
	AttractorColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// FrameRenderer draws field snapshots. Each cell becomes a scale x scale
// block; concentration c maps to brightness 1-exp(-gain*c).
type FrameRenderer struct {
	scale   int
	gain    float64
	palette [paletteSize]color.RGBA
}

// NewFrameRenderer creates a renderer with the heat palette precomputed.
func NewFrameRenderer(scale int, gain float64) *FrameRenderer {
	if scale < 1 {
		scale = 1
	}
	r := &FrameRenderer{scale: scale, gain: gain}
	r.genPalette()
	return r
}

// genPalette builds a dark violet to amber to white ramp.
func (r *FrameRenderer) genPalette() {
	for i := range r.palette {
		t := float64(i) / (paletteSize - 1)
		hue := math.Mod(280+t*130, 360)
		sat := 1 - 0.8*t*t
		cr, cg, cb, _ := colorconv.HSVToRGB(hue, sat, t)
		r.palette[i] = color.RGBA{R: cr, G: cg, B: cb, A: 255}
	}
}

// Color returns the palette color for concentration c.
func (r *FrameRenderer) Color(c float32) color.RGBA {
	if c <= 0 {
		return r.palette[0]
	}
	v := 1 - math.Exp(-r.gain*float64(c))
	idx := int(v * (paletteSize - 1))
	if idx >= paletteSize {
		idx = paletteSize - 1
	}
	return r.palette[idx]
}

// Render draws f with walls and attractors marked. When agents is non-nil
// they are plotted over the field, below the attractors.
func (r *FrameRenderer) Render(f *systems.Field, attractors []config.Point, agents *systems.AgentPopulation) *image.RGBA {
	w, h := f.GridSize()
	img := image.NewRGBA(image.Rect(0, 0, w*r.scale, h*r.scale))
	cells := f.Cells()
	mask := f.Mask()

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			c := WallColor
			if !mask[i] {
				c = r.Color(cells[i])
			}
			r.fillCell(img, x, y, c)
		}
	}
	if agents != nil {
		r.DrawAgents(img, f, agents)
	}
	for _, p := range attractors {
		if p.X >= 0 && p.Y >= 0 && p.X < w && p.Y < h {
			r.fillCell(img, p.X, p.Y, AttractorColor)
		}
	}
	return img
}

// DrawAgents plots each agent as one pixel at its continuous position,
// coloured from blue (no trail) to red (field peak) by the concentration
// under it.
func (r *FrameRenderer) DrawAgents(img *image.RGBA, f *systems.Field, agents *systems.AgentPopulation) {
	var peak float32
	mask := f.Mask()
	for i, v := range f.Cells() {
		if !mask[i] && v > peak {
			peak = v
		}
	}

	b := img.Bounds()
	agents.Each(func(_ int, x, y, _ float32) {
		px, py := int(x*float32(r.scale)), int(y*float32(r.scale))
		if px < b.Min.X || py < b.Min.Y || px >= b.Max.X || py >= b.Max.Y {
			return
		}
		img.SetRGBA(px, py, AgentColor(f.Sample(x, y), peak))
	})
}

// AgentColor maps concentration c relative to peak onto a blue to red ramp.
func AgentColor(c, peak float32) color.RGBA {
	t := 0.0
	if peak > 0 {
		t = min(max(float64(c/peak), 0), 1)
	}
	red := uint8(math.Round(t * 255))
	return color.RGBA{R: red, G: 51, B: 255 - red, A: 255}
}

func (r *FrameRenderer) fillCell(img *image.RGBA, x, y int, c color.RGBA) {
	for py := y * r.scale; py < (y+1)*r.scale; py++ {
		off := img.PixOffset(x*r.scale, py)
		for px := 0; px < r.scale; px++ {
			img.Pix[off] = c.R
			img.Pix[off+1] = c.G
			img.Pix[off+2] = c.B
			img.Pix[off+3] = c.A
			off += 4
		}
	}
}

// WritePNG encodes img to path, creating parent directories.
func WritePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating frame directory: %w", err)
	}
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating frame: %w", err)
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return fmt.Errorf("encoding frame: %w", err)
	}
	return out.Close()
}

// FramePath returns the file name for the frame at tick.
func FramePath(dir string, tick int) string {
	return filepath.Join(dir, fmt.Sprintf("frame_%06d.png", tick))
}
