// Package player turns scroll progress into frame-accurate playback of an
// image sequence.
//
// A Player runs one event loop goroutine that owns the frame store, the
// fallback resolver, the drawing surface and the render scheduler. Everything
// else (scroll observer, viewport changes, loader goroutines) talks to it by
// posting messages, so none of that state needs a lock.
package player

import (
	"context"
	"errors"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/ivlev/scrollframes/internal/config"
	"github.com/ivlev/scrollframes/internal/fallback"
	"github.com/ivlev/scrollframes/internal/frames"
	"github.com/ivlev/scrollframes/internal/loader"
	"github.com/ivlev/scrollframes/internal/scheduler"
	"github.com/ivlev/scrollframes/internal/surface"
	"github.com/ivlev/scrollframes/internal/system"
	"github.com/ivlev/scrollframes/internal/timeline"
)

var ErrClosed = errors.New("player closed")

// PaintEvent describes a completed paint. Image is the live surface and is
// only valid for the duration of the OnPaint call.
type PaintEvent struct {
	Seq     uint64
	Desired int
	Painted int
	Rect    image.Rectangle
	Image   *image.RGBA
}

// Options configure a Player. Zero values get sensible defaults.
type Options struct {
	Logger *slog.Logger
	// Vsync drives paints. Nil means refreshes only happen through Tick.
	Vsync scheduler.Vsync
	// OnPaint runs on the loop goroutine after every paint. It must not call
	// back into the Player.
	OnPaint func(PaintEvent)
	Pool    *system.SurfacePool
}

type Player struct {
	cfg     config.Config
	log     *slog.Logger
	loader  *loader.Loader
	vsync   scheduler.Vsync
	onPaint func(PaintEvent)

	// loop-owned state
	store    *frames.Store
	resolver fallback.Resolver
	surface  *surface.Manager
	sched    *scheduler.Scheduler
	progress float64
	shown    int // frame currently on the surface, 0 if none
	seq      uint64

	events chan func()
	done   chan struct{}

	// latest scroll position, applied by the loop; older values are dropped
	progressMu  sync.Mutex
	nextProg    float64
	hasNextProg bool
	progWake    chan struct{}

	mu      sync.Mutex
	started bool
}

// New prepares a player for cfg. Frames are fetched through f once Run starts.
func New(cfg config.Config, f loader.Fetcher, opts Options) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scaler, err := surface.Scaler(cfg.Render.Quality)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pool := opts.Pool
	if pool == nil {
		pool = system.NewSurfacePool()
	}

	p := &Player{
		cfg:      cfg,
		log:      logger,
		loader:   loader.New(cfg, f, logger),
		vsync:    opts.Vsync,
		onPaint:  opts.OnPaint,
		store:    frames.NewStore(cfg.Frames.Count),
		surface:  surface.NewManager(scaler).WithPool(pool),
		sched:    scheduler.New(),
		events:   make(chan func(), 256),
		done:     make(chan struct{}),
		progWake: make(chan struct{}, 1),
	}
	p.surface.Resize(surface.Viewport{
		Width:   cfg.Viewport.Width,
		Height:  cfg.Viewport.Height,
		Density: cfg.Viewport.Density,
	})
	return p, nil
}

// Run loads the sequence and processes events until ctx is done. A player
// runs once; calling Run again returns ErrClosed.
func (p *Player) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return ErrClosed
	}
	p.started = true
	p.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.loader.Run(ctx, sink{p}); err != nil && !errors.Is(err, context.Canceled) {
			p.log.Warn("frame loading stopped", "error", err)
		}
	}()

	defer func() {
		close(p.done)
		cancel()
		wg.Wait()
		if p.vsync != nil {
			p.vsync.Stop()
		}
	}()

	for {
		var tick <-chan time.Time
		if p.vsync != nil && p.sched.Pending() {
			tick = p.vsync.C()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.progWake:
			p.applyProgress()
		case fn := <-p.events:
			p.applyProgress()
			fn()
		case <-tick:
			p.applyProgress()
			p.sched.Refresh(p.paint)
		}
	}
}

// post hands fn to the loop. It returns false once the loop has exited or
// ctx is done, in which case fn never runs.
func (p *Player) post(ctx context.Context, fn func()) bool {
	select {
	case <-p.done:
		return false
	case <-ctx.Done():
		return false
	default:
	}
	select {
	case p.events <- fn:
		return true
	case <-p.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// call runs fn on the loop and returns its result. The result travels over a
// channel, so a caller that gives up early never shares memory with the loop.
func call[T any](ctx context.Context, p *Player, fn func() T) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	res := make(chan T, 1)
	if !p.post(ctx, func() { res <- fn() }) {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, ErrClosed
	}
	select {
	case v := <-res:
		return v, nil
	case <-p.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// SetProgress reports a new scroll position in [0,1]. It never blocks: only
// the latest position is kept until the loop picks it up.
func (p *Player) SetProgress(progress float64) {
	p.progressMu.Lock()
	p.nextProg = progress
	p.hasNextProg = true
	p.progressMu.Unlock()

	select {
	case p.progWake <- struct{}{}:
	default:
	}
}

// applyProgress moves a pending scroll position into loop state.
func (p *Player) applyProgress() {
	p.progressMu.Lock()
	progress, ok := p.nextProg, p.hasNextProg
	p.hasNextProg = false
	p.progressMu.Unlock()
	if !ok {
		return
	}
	p.progress = timeline.Clamp(progress)
	p.invalidate(scheduler.Scroll)
}

// Resize reports a viewport or pixel density change. The current frame is
// repainted immediately with the new geometry.
func (p *Player) Resize(vp surface.Viewport) {
	p.post(context.Background(), func() {
		if p.surface.Resize(vp) {
			p.shown = 0
		}
		if p.store.Ready() {
			p.sched.Flush(p.paint)
		}
	})
}

// Tick delivers one display refresh through the event queue, so it is
// ordered after every SetProgress and Resize issued before it.
func (p *Player) Tick(ctx context.Context) error {
	_, err := call(ctx, p, func() bool { return p.sched.Refresh(p.paint) })
	return err
}

// Capture returns a copy of the surface as it is now.
func (p *Player) Capture(ctx context.Context) (*image.RGBA, error) {
	return call(ctx, p, func() *image.RGBA {
		src := p.surface.Image()
		return &image.RGBA{
			Pix:    append([]byte(nil), src.Pix...),
			Stride: src.Stride,
			Rect:   src.Rect,
		}
	})
}

// Stats is a snapshot of the player state.
type Stats struct {
	Ready       bool
	Progress    float64
	Desired     int
	Shown       int
	LastPainted int
	Frames      frames.Counts
	Scheduler   scheduler.Counters
	Surface     image.Point
}

func (p *Player) Stats(ctx context.Context) (Stats, error) {
	return call(ctx, p, func() Stats {
		return Stats{
			Ready:       p.store.Ready(),
			Progress:    p.progress,
			Desired:     timeline.FrameIndex(p.progress, p.store.Len()),
			Shown:       p.shown,
			LastPainted: p.resolver.LastPainted(),
			Frames:      p.store.Counts(),
			Scheduler:   p.sched.Counters(),
			Surface:     p.surface.Size(),
		}
	})
}

func (p *Player) invalidate(r scheduler.Reason) {
	if !p.store.Ready() {
		return
	}
	p.sched.Invalidate(r)
}

// paint draws the best available frame for the current progress and reports
// whether it drew. With no paintable frame the surface keeps whatever it shows.
func (p *Player) paint() bool {
	desired := timeline.FrameIndex(p.progress, p.store.Len())
	idx, ok := p.resolver.Resolve(p.store, desired)
	if !ok {
		return false
	}
	rect := p.surface.Paint(p.store.Get(idx).Image)
	p.resolver.Painted(desired, idx)
	p.shown = idx
	p.seq++

	if p.onPaint != nil {
		p.onPaint(PaintEvent{
			Seq:     p.seq,
			Desired: desired,
			Painted: idx,
			Rect:    rect,
			Image:   p.surface.Image(),
		})
	}
	return true
}

func (p *Player) frameStarted(i int) {
	if err := p.store.Set(i, frames.Loading, nil); err != nil {
		p.log.Warn("unexpected frame start", "frame", i, "error", err)
	}
}

func (p *Player) frameDone(r loader.Result) {
	state := frames.Loaded
	if r.Err != nil {
		state = frames.Failed
	}
	if err := p.store.Set(r.Index, state, r.Image); err != nil {
		p.log.Warn("unexpected frame result", "frame", r.Index, "error", err)
		return
	}

	if r.Index == 1 && !p.store.Ready() {
		p.store.MarkReady()
		// first frame unlocks the player even when it failed
		p.sched.Invalidate(scheduler.FrameLoaded)
		return
	}
	if state == frames.Loaded && p.store.Ready() {
		// repaint only when the new frame changes what should be on screen
		desired := timeline.FrameIndex(p.progress, p.store.Len())
		if idx, ok := p.resolver.Resolve(p.store, desired); ok && idx != p.shown {
			p.sched.Invalidate(scheduler.FrameLoaded)
		}
	}
}

// sink forwards loader callbacks onto the loop. Results arriving after the
// loop has exited are dropped.
type sink struct{ p *Player }

func (s sink) FrameStarted(i int) {
	s.p.post(context.Background(), func() { s.p.frameStarted(i) })
}

func (s sink) FrameDone(r loader.Result) {
	s.p.post(context.Background(), func() { s.p.frameDone(r) })
}
