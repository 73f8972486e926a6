package source

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scrollframes/internal/config"
	"github.com/ivlev/scrollframes/internal/frames"
)

// ExportOptions задают, как источник превращается в последовательность кадров.
type ExportOptions struct {
	Dir      string
	Frames   config.FramesConfig // используются Prefix и Digits, Ext всегда .png
	MaxWidth int                 // более широкие кадры уменьшаются, 0 - без изменений
	Workers  int
	Logger   *slog.Logger
	Progress func(done, total int)
}

// Export записывает каждый кадр src как <prefix><NNN>.png в opts.Dir.
// В отличие от воспроизведения, первая же ошибка останавливает экспорт.
func Export(ctx context.Context, src Source, opts ExportOptions) error {
	total := src.Count()
	if total == 0 {
		return fmt.Errorf("источник не содержит кадров")
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fc := opts.Frames
	fc.Ext = ".png"
	fc.Count = total

	g, ctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}
	var done atomic.Int64

	for i := 0; i < total; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			img, err := src.Frame(i)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i+1, err)
			}
			img = Downscale(img, opts.MaxWidth)

			path := filepath.Join(opts.Dir, frames.Name(fc, i+1))
			if err := writePNG(path, img); err != nil {
				return err
			}
			logger.Debug("frame exported", "path", path)
			if opts.Progress != nil {
				opts.Progress(int(done.Add(1)), total)
			}
			return nil
		})
	}
	return g.Wait()
}

// Downscale уменьшает img до maxWidth с сохранением пропорций.
func Downscale(img image.Image, maxWidth int) image.Image {
	b := img.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return img
	}
	h := b.Dy() * maxWidth / b.Dx()
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
