package player

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ivlev/scrollframes/internal/config"
	"github.com/ivlev/scrollframes/internal/frames"
	"github.com/ivlev/scrollframes/internal/surface"
)

// framePNG encodes a w×h frame whose red channel carries the frame index.
func framePNG(t *testing.T, index, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	c := color.RGBA{R: uint8(index), G: 10, B: 20, A: 255}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// gateFetcher serves frames listed in ok, fails frames listed in fail and
// holds every other frame until the request context ends.
type gateFetcher struct {
	frames config.FramesConfig
	ok     map[int][]byte
	fail   map[int]bool
}

func (f *gateFetcher) Fetch(ctx context.Context, name string) (io.ReadCloser, error) {
	i, valid := frames.ParseName(f.frames, name)
	if !valid {
		return nil, errors.New("bad name")
	}
	if b, ok := f.ok[i]; ok {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	if f.fail[i] {
		return nil, errors.New("boom")
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func testConfig(n int) config.Config {
	cfg := config.Default()
	cfg.Frames.Count = n
	cfg.Frames.Ext = ".png"
	cfg.Loader.Concurrency = 0
	cfg.Loader.Timeout = 0
	cfg.Render.Quality = "nearest"
	cfg.Viewport = config.ViewportConfig{Width: 40, Height: 20, Density: 1}
	return cfg
}

func loadedFetcher(t *testing.T, cfg config.Config, indices ...int) *gateFetcher {
	f := &gateFetcher{frames: cfg.Frames, ok: map[int][]byte{}, fail: map[int]bool{}}
	for _, i := range indices {
		f.ok[i] = framePNG(t, i, 16, 16)
	}
	return f
}

type paintLog struct {
	mu     sync.Mutex
	events []PaintEvent
}

func (l *paintLog) record(e PaintEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.Image = nil
	l.events = append(l.events, e)
}

func (l *paintLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func (l *paintLog) last() PaintEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) == 0 {
		return PaintEvent{}
	}
	return l.events[len(l.events)-1]
}

type harness struct {
	p      *Player
	paints *paintLog
	cancel context.CancelFunc
	errc   chan error
}

func start(t *testing.T, cfg config.Config, f *gateFetcher, opts Options) *harness {
	t.Helper()
	log := &paintLog{}
	hook := opts.OnPaint
	opts.OnPaint = func(e PaintEvent) {
		log.record(e)
		if hook != nil {
			hook(e)
		}
	}
	p, err := New(cfg, f, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{p: p, paints: log, cancel: cancel, errc: make(chan error, 1)}
	go func() { h.errc <- p.Run(ctx) }()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.cancel()
	<-h.errc
	h.errc <- ErrClosed // keep later stop calls from blocking
}

func (h *harness) waitFor(t *testing.T, what string, cond func(Stats) bool) Stats {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		st, err := h.p.Stats(context.Background())
		if err != nil {
			t.Fatalf("Stats: %v", err)
		}
		if cond(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s: %+v", what, st)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func (h *harness) tick(t *testing.T) {
	t.Helper()
	if err := h.p.Tick(context.Background()); err != nil {
		t.Fatalf("Tick: %v", err)
	}
}

func allLoaded(n int) func(Stats) bool {
	return func(st Stats) bool { return st.Frames.Loaded == n }
}

func TestEndToEndLastFrameFailed(t *testing.T) {
	cfg := testConfig(125)
	f := loadedFetcher(t, cfg, 1)
	f.fail[125] = true
	h := start(t, cfg, f, Options{})

	h.waitFor(t, "frame 1 loaded and frame 125 failed", func(st Stats) bool {
		return st.Ready && st.Frames.Loaded == 1 && st.Frames.Failed == 1
	})

	h.p.SetProgress(1.0)
	h.tick(t)

	e := h.paints.last()
	if e.Desired != 125 || e.Painted != 1 {
		t.Fatalf("Expected desired 125 painted 1, got %+v", e)
	}
	img, err := h.p.Capture(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r := img.RGBAAt(20, 10).R; r != 1 {
		t.Errorf("surface shows frame %d, want 1", r)
	}
}

func TestCoalescesScrollBursts(t *testing.T) {
	cfg := testConfig(10)
	h := start(t, cfg, loadedFetcher(t, cfg, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10), Options{})
	h.waitFor(t, "all frames", allLoaded(10))
	h.tick(t)
	before := h.paints.count()
	prev := h.waitFor(t, "stats", func(Stats) bool { return true })

	for i := 0; i < 50; i++ {
		h.p.SetProgress(float64(i) / 49)
	}
	h.tick(t)
	h.tick(t)

	if got := h.paints.count() - before; got != 1 {
		t.Fatalf("Expected 1 paint for the burst, got %d", got)
	}
	if e := h.paints.last(); e.Painted != 10 {
		t.Errorf("Expected last progress to win, painted %d", e.Painted)
	}
	st := h.waitFor(t, "stats", func(Stats) bool { return true })
	if got := st.Scheduler.Requested - prev.Scheduler.Requested; got != 1 {
		t.Errorf("Expected 1 refresh request for the burst, got %d", got)
	}
	if got := st.Scheduler.Paints - prev.Scheduler.Paints; got != 1 {
		t.Errorf("Expected 1 counted paint, got %d", got)
	}
}

func TestSetProgressDoesNotWaitForLoop(t *testing.T) {
	cfg := testConfig(10)
	release := make(chan struct{})
	var once sync.Once
	opts := Options{OnPaint: func(PaintEvent) {
		once.Do(func() { <-release })
	}}
	h := start(t, cfg, loadedFetcher(t, cfg, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10), opts)
	h.waitFor(t, "all frames", allLoaded(10))

	// first paint parks the loop inside OnPaint
	tickDone := make(chan error, 1)
	go func() { tickDone <- h.p.Tick(context.Background()) }()

	burst := make(chan struct{})
	go func() {
		for i := 0; i <= 1000; i++ {
			h.p.SetProgress(float64(i) / 1000)
		}
		close(burst)
	}()
	select {
	case <-burst:
	case <-time.After(5 * time.Second):
		t.Fatal("SetProgress blocked while the loop was busy")
	}

	close(release)
	if err := <-tickDone; err != nil {
		t.Fatalf("Tick: %v", err)
	}
	h.tick(t)
	if e := h.paints.last(); e.Painted != 10 {
		t.Errorf("Expected latest progress to be painted, got %+v", e)
	}
}

func TestCallsWithCancelledContext(t *testing.T) {
	cfg := testConfig(3)
	h := start(t, cfg, loadedFetcher(t, cfg, 1, 2, 3), Options{})
	h.waitFor(t, "all frames", allLoaded(3))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 200; i++ {
		if st, err := h.p.Stats(ctx); !errors.Is(err, context.Canceled) || st.Ready {
			t.Fatalf("Stats: expected zero stats and context.Canceled, got %+v, %v", st, err)
		}
		if img, err := h.p.Capture(ctx); !errors.Is(err, context.Canceled) || img != nil {
			t.Fatalf("Capture: expected nil image and context.Canceled, got %v", err)
		}
		if err := h.p.Tick(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("Tick: expected context.Canceled, got %v", err)
		}
	}

	// the loop is still usable afterwards
	if _, err := h.p.Stats(context.Background()); err != nil {
		t.Errorf("Stats after cancelled calls: %v", err)
	}
}

func TestResizeRepaintsOnce(t *testing.T) {
	cfg := testConfig(5)
	h := start(t, cfg, loadedFetcher(t, cfg, 1, 2, 3, 4, 5), Options{})
	h.waitFor(t, "all frames", allLoaded(5))

	h.p.SetProgress(0.5)
	h.tick(t)
	before := h.paints.last()
	if before.Painted != 3 {
		t.Fatalf("Expected frame 3, got %d", before.Painted)
	}
	count := h.paints.count()

	h.p.Resize(surface.Viewport{Width: 30, Height: 60, Density: 2})
	st := h.waitFor(t, "resize", func(st Stats) bool { return st.Surface == image.Pt(60, 120) })
	h.tick(t)

	if got := h.paints.count() - count; got != 1 {
		t.Fatalf("Expected exactly 1 repaint after resize, got %d", got)
	}
	after := h.paints.last()
	if after.Painted != before.Painted {
		t.Errorf("resize changed frame %d -> %d", before.Painted, after.Painted)
	}
	want := surface.CoverRect(image.Pt(16, 16), st.Surface)
	if after.Rect != want {
		t.Errorf("Expected geometry %v, got %v", want, after.Rect)
	}
}

func TestHoldsLastPaintedFrame(t *testing.T) {
	cfg := testConfig(101)
	loaded := []int{}
	for i := 1; i <= 49; i++ {
		loaded = append(loaded, i)
	}
	h := start(t, cfg, loadedFetcher(t, cfg, loaded...), Options{})
	h.waitFor(t, "frames 1-49", allLoaded(49))

	h.p.SetProgress(0.48) // frame 49
	h.tick(t)
	if e := h.paints.last(); e.Painted != 49 || e.Desired != 49 {
		t.Fatalf("Expected frame 49, got %+v", e)
	}

	h.p.SetProgress(0.49) // frame 50, not loaded
	h.tick(t)
	e := h.paints.last()
	if e.Desired != 50 || e.Painted != 49 {
		t.Errorf("Expected held frame 49 for desired 50, got %+v", e)
	}
	st := h.waitFor(t, "stats", func(Stats) bool { return true })
	if st.LastPainted != 49 {
		t.Errorf("Expected last painted 49, got %d", st.LastPainted)
	}
}

func TestNoPaintBeforeReady(t *testing.T) {
	cfg := testConfig(3)
	f := loadedFetcher(t, cfg) // nothing resolves
	h := start(t, cfg, f, Options{})

	h.p.SetProgress(0.7)
	h.tick(t)
	if n := h.paints.count(); n != 0 {
		t.Errorf("Expected no paint before ready, got %d", n)
	}
}

func TestFirstFrameFailureUnlocks(t *testing.T) {
	cfg := testConfig(4)
	f := loadedFetcher(t, cfg, 3)
	f.fail[1] = true
	f.fail[2] = true
	f.fail[4] = true
	h := start(t, cfg, f, Options{})

	h.waitFor(t, "all frames resolved", func(st Stats) bool {
		return st.Ready && st.Frames.Loaded+st.Frames.Failed == 4
	})
	h.p.SetProgress(0)
	h.tick(t)
	if n := h.paints.count(); n != 0 {
		t.Fatalf("nothing at or before frame 1 is loaded, got %d paints", n)
	}
	h.p.Resize(surface.Viewport{Width: 10, Height: 10, Density: 1})
	st := h.waitFor(t, "resize", func(st Stats) bool { return st.Surface == image.Pt(10, 10) })
	if st.Scheduler.Paints != 0 {
		t.Errorf("empty refreshes counted as paints: %d", st.Scheduler.Paints)
	}

	h.p.SetProgress(1) // frame 4 failed, backward search finds 3
	h.tick(t)
	if e := h.paints.last(); e.Painted != 3 {
		t.Errorf("Expected frame 3, got %+v", e)
	}
}

type manualVsync struct {
	c chan time.Time
}

func (v *manualVsync) C() <-chan time.Time { return v.c }
func (v *manualVsync) Stop()               {}

func TestVsyncDrivesPaints(t *testing.T) {
	cfg := testConfig(2)
	v := &manualVsync{c: make(chan time.Time)}
	h := start(t, cfg, loadedFetcher(t, cfg, 1, 2), Options{Vsync: v})
	h.waitFor(t, "all frames", allLoaded(2))

	// loop listens for the refresh only while a paint is pending
	select {
	case v.c <- time.Now():
	case <-time.After(5 * time.Second):
		t.Fatal("pending paint did not wait for vsync")
	}
	h.waitFor(t, "first paint", func(st Stats) bool { return st.Shown == 1 })

	select {
	case v.c <- time.Now():
		t.Fatal("idle loop accepted a refresh")
	case <-time.After(20 * time.Millisecond):
	}

	h.p.SetProgress(1)
	select {
	case v.c <- time.Now():
	case <-time.After(5 * time.Second):
		t.Fatal("scroll did not request a refresh")
	}
	h.waitFor(t, "second paint", func(st Stats) bool { return st.Shown == 2 })
}

func TestTeardown(t *testing.T) {
	cfg := testConfig(8)
	h := start(t, cfg, loadedFetcher(t, cfg, 1), Options{}) // 2..8 in flight
	h.waitFor(t, "ready", func(st Stats) bool { return st.Ready })
	h.tick(t)
	count := h.paints.count()

	h.stop()

	h.p.SetProgress(0.5)
	if err := h.p.Tick(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Tick after stop: expected ErrClosed, got %v", err)
	}
	if _, err := h.p.Capture(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Capture after stop: expected ErrClosed, got %v", err)
	}
	if err := h.p.Run(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("second Run: expected ErrClosed, got %v", err)
	}
	if h.paints.count() != count {
		t.Error("paint fired after teardown")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig(0)
	if _, err := New(cfg, nil, Options{}); !errors.Is(err, config.ErrInvalid) {
		t.Errorf("Expected ErrInvalid, got %v", err)
	}
	cfg = testConfig(3)
	cfg.Render.Quality = "lanczos"
	if _, err := New(cfg, nil, Options{}); err == nil {
		t.Error("Expected error for unknown quality")
	}
}
