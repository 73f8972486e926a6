package loader

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"time"

	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/scrollframes/internal/config"
	"github.com/ivlev/scrollframes/internal/frames"
)

// Result is the outcome of fetching and decoding one frame.
type Result struct {
	Index int
	Image image.Image
	Err   error
}

// Sink receives loader progress. Calls come from loader goroutines.
type Sink interface {
	FrameStarted(index int)
	FrameDone(r Result)
}

// Loader fetches a whole frame sequence, frame 1 first.
type Loader struct {
	Frames      config.FramesConfig
	Fetcher     Fetcher
	Concurrency int
	Timeout     time.Duration
	Logger      *slog.Logger
}

func New(cfg config.Config, f Fetcher, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		Frames:      cfg.Frames,
		Fetcher:     f,
		Concurrency: cfg.Loader.Concurrency,
		Timeout:     cfg.Loader.Timeout,
		Logger:      logger,
	}
}

// Run loads frame 1 on its own, then frames 2..N independently of each other.
// Per-frame failures go to the sink and never stop the run; Run only returns
// an error when ctx is cancelled.
func (l *Loader) Run(ctx context.Context, sink Sink) error {
	n := l.Frames.Count
	if n < 1 {
		return nil
	}

	first := l.load(ctx, sink, 1)
	if first.Err != nil {
		l.Logger.Error("first frame failed, continuing without it",
			"frame", frames.Name(l.Frames, 1), "error", first.Err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var g errgroup.Group
	if l.Concurrency > 0 {
		g.SetLimit(l.Concurrency)
	}
	for i := 2; i <= n; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			l.load(ctx, sink, i)
			return nil
		})
	}
	g.Wait()
	return ctx.Err()
}

func (l *Loader) load(ctx context.Context, sink Sink, i int) Result {
	sink.FrameStarted(i)
	img, err := l.fetch(ctx, i)
	r := Result{Index: i, Image: img, Err: err}
	if err != nil {
		l.Logger.Debug("frame failed", "frame", i, "error", err)
	}
	sink.FrameDone(r)
	return r
}

func (l *Loader) fetch(ctx context.Context, i int) (image.Image, error) {
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}

	name := frames.Name(l.Frames, i)
	rc, err := l.Fetcher.Fetch(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	defer rc.Close()

	img, _, err := image.Decode(rc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}
