// Package synth draws numbered placeholder frames for testing a sequence
// before the real footage exists.
package synth

import (
	"fmt"
	"image"
	"image/color"
	"math"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
)

// Frame draws frame i of n: a vertical gradient whose hue walks the color
// wheel over the sequence, with a QR code of the index in the middle.
func Frame(i, n, w, h int) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	hue := 0.0
	if n > 1 {
		hue = float64(i-1) / float64(n-1) * 300
	}
	for y := 0; y < h; y++ {
		light := 0.25 + 0.5*float64(y)/float64(max(h-1, 1))
		c := hsl(hue, 0.6, light)
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	side := min(w, h) / 2
	if side < 21 {
		// too small for a readable code
		return img, nil
	}
	q, err := qrcode.New(Label(i), qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qr for frame %d: %w", i, err)
	}
	code := q.Image(side)
	at := image.Pt((w-side)/2, (h-side)/2)
	draw.Draw(img, image.Rectangle{Min: at, Max: at.Add(image.Pt(side, side))}, code, code.Bounds().Min, draw.Src)
	return img, nil
}

// Label is the text encoded into frame i.
func Label(i int) string {
	return fmt.Sprintf("frame-%03d", i)
}

func hsl(h, s, l float64) color.RGBA {
	c := (1 - math.Abs(2*l-1)) * s
	hp := h / 60
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r, g, b float64
	switch {
	case hp < 1:
		r, g = c, x
	case hp < 2:
		r, g = x, c
	case hp < 3:
		g, b = c, x
	case hp < 4:
		g, b = x, c
	case hp < 5:
		r, b = x, c
	default:
		r, b = c, x
	}
	m := l - c/2
	return color.RGBA{
		R: uint8(math.Round((r + m) * 255)),
		G: uint8(math.Round((g + m) * 255)),
		B: uint8(math.Round((b + m) * 255)),
		A: 255,
	}
}
