package scheduler

import "time"

// State of the render scheduler.
type State int

const (
	Idle State = iota
	PaintPending
)

func (s State) String() string {
	if s == PaintPending {
		return "paint-pending"
	}
	return "idle"
}

// Reason names the event that invalidated the painted output.
type Reason int

const (
	Scroll Reason = iota
	FrameLoaded
	ViewportChanged
)

// Scheduler coalesces invalidations into at most one paint per display refresh.
// It is not safe for concurrent use; the player loop owns it.
type Scheduler struct {
	state State

	requested uint64 // refresh callbacks asked for
	absorbed  uint64 // invalidations folded into a pending paint
	paints    uint64
}

func New() *Scheduler { return &Scheduler{} }

func (s *Scheduler) State() State { return s.state }

func (s *Scheduler) Pending() bool { return s.state == PaintPending }

// Invalidate marks the output stale. It returns true when the caller has to
// wait for the next refresh; false means a paint is already scheduled.
func (s *Scheduler) Invalidate(Reason) bool {
	if s.state == PaintPending {
		s.absorbed++
		return false
	}
	s.state = PaintPending
	s.requested++
	return true
}

// Refresh runs paint if one is pending and returns to Idle. It reports whether
// a pending paint was consumed; paint reports whether it actually drew.
func (s *Scheduler) Refresh(paint func() bool) bool {
	if s.state != PaintPending {
		return false
	}
	s.state = Idle
	if paint() {
		s.paints++
	}
	return true
}

// Flush paints right away, consuming any pending refresh.
func (s *Scheduler) Flush(paint func() bool) {
	s.state = Idle
	if paint() {
		s.paints++
	}
}

// Counters reports requested refreshes, absorbed invalidations and paints
// that drew something.
type Counters struct {
	Requested uint64
	Absorbed  uint64
	Paints    uint64
}

func (s *Scheduler) Counters() Counters {
	return Counters{Requested: s.requested, Absorbed: s.absorbed, Paints: s.paints}
}

// Vsync delivers display refresh ticks.
type Vsync interface {
	C() <-chan time.Time
	Stop()
}

type tickerVsync struct {
	t *time.Ticker
}

// NewTicker emulates a display refreshing hz times per second.
func NewTicker(hz int) Vsync {
	if hz <= 0 {
		hz = 60
	}
	return &tickerVsync{t: time.NewTicker(time.Second / time.Duration(hz))}
}

func (v *tickerVsync) C() <-chan time.Time { return v.t.C }

func (v *tickerVsync) Stop() { v.t.Stop() }
