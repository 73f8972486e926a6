package surface

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"golang.org/x/image/draw"

	"github.com/ivlev/scrollframes/internal/system"
)

// Viewport is the logical size of the drawing area and its pixel density.
type Viewport struct {
	Width   int
	Height  int
	Density float64
}

// Physical returns the surface size in device pixels.
func (v Viewport) Physical() image.Point {
	d := v.Density
	if d <= 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		d = 1
	}
	w := int(math.Round(float64(v.Width) * d))
	h := int(math.Round(float64(v.Height) * d))
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return image.Pt(w, h)
}

// Scaler returns the interpolator for a quality name.
func Scaler(quality string) (draw.Scaler, error) {
	switch strings.ToLower(quality) {
	case "nearest":
		return draw.NearestNeighbor, nil
	case "approxbilinear":
		return draw.ApproxBiLinear, nil
	case "bilinear":
		return draw.BiLinear, nil
	case "catmullrom", "":
		return draw.CatmullRom, nil
	}
	return nil, fmt.Errorf("unknown scaling quality: %s", quality)
}

// CoverRect computes where a src-sized image lands on a dst-sized surface when
// scaled uniformly to cover it completely. The overflowing axis is centered
// and extends past the surface on both sides.
func CoverRect(src, dst image.Point) image.Rectangle {
	if src.X <= 0 || src.Y <= 0 || dst.X <= 0 || dst.Y <= 0 {
		return image.Rectangle{}
	}
	srcAspect := float64(src.X) / float64(src.Y)
	dstAspect := float64(dst.X) / float64(dst.Y)

	var w, h, x, y float64
	if srcAspect > dstAspect {
		// wider: match height, crop sides
		h = float64(dst.Y)
		w = float64(src.X) * h / float64(src.Y)
		x = (float64(dst.X) - w) / 2
	} else {
		// taller: match width, crop top and bottom
		w = float64(dst.X)
		h = float64(src.Y) * w / float64(src.X)
		y = (float64(dst.Y) - h) / 2
	}

	minX := int(math.Floor(x))
	minY := int(math.Floor(y))
	maxX := int(math.Ceil(x + w))
	maxY := int(math.Ceil(y + h))
	return image.Rect(minX, minY, maxX, maxY)
}

// Manager owns the drawing surface.
type Manager struct {
	vp         Viewport
	img        *image.RGBA
	scaler     draw.Scaler
	background color.Color
	pool       *system.SurfacePool
}

// NewManager creates an empty surface; call Resize before painting.
func NewManager(scaler draw.Scaler) *Manager {
	if scaler == nil {
		scaler = draw.CatmullRom
	}
	return &Manager{
		scaler:     scaler,
		background: color.Transparent,
		img:        image.NewRGBA(image.Rectangle{}),
	}
}

// WithPool makes the manager recycle surfaces through p.
func (m *Manager) WithPool(p *system.SurfacePool) *Manager {
	m.pool = p
	return m
}

// Resize matches the surface to vp in device pixels. It reports whether the
// physical size changed; the old contents are discarded in that case.
func (m *Manager) Resize(vp Viewport) bool {
	m.vp = vp
	size := vp.Physical()
	if m.img.Rect.Size() == size {
		return false
	}

	if m.pool != nil {
		m.pool.Put(m.img)
		m.img = m.pool.Get(size.X, size.Y)
	} else {
		m.img = image.NewRGBA(image.Rectangle{Max: size})
	}
	m.Clear()
	return true
}

// Clear fills the surface with the background.
func (m *Manager) Clear() {
	draw.Draw(m.img, m.img.Bounds(), image.NewUniform(m.background), image.Point{}, draw.Src)
}

// Paint clears the surface and draws src cover-fitted onto it. It returns the
// destination rectangle, which may extend beyond the surface.
func (m *Manager) Paint(src image.Image) image.Rectangle {
	m.Clear()
	sb := src.Bounds()
	dr := CoverRect(sb.Size(), m.img.Rect.Size())
	if dr.Empty() {
		return dr
	}
	m.scaler.Scale(m.img, dr, src, sb, draw.Over, nil)
	return dr
}

func (m *Manager) Image() *image.RGBA { return m.img }

func (m *Manager) Viewport() Viewport { return m.vp }

func (m *Manager) Size() image.Point { return m.img.Rect.Size() }
