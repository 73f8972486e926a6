package fallback

// Frames is the read side of the frame store.
type Frames interface {
	Loaded(i int) bool
}

// Resolver picks the frame to paint when the desired one may not be loaded yet.
// It owns the index of the last painted frame, 0 meaning none.
type Resolver struct {
	last int
}

// Resolve returns the best loaded frame for desired, in order of preference:
// desired itself, the last painted frame, the nearest loaded frame before
// desired, frame 1. ok is false when nothing is paintable.
//
// Resolve does not change the resolver; call Painted once the frame is on screen.
func (r *Resolver) Resolve(f Frames, desired int) (index int, ok bool) {
	if f.Loaded(desired) {
		return desired, true
	}
	if r.last > 0 && f.Loaded(r.last) {
		return r.last, true
	}
	for i := desired - 1; i >= 1; i-- {
		if f.Loaded(i) {
			return i, true
		}
	}
	if f.Loaded(1) {
		return 1, true
	}
	return 0, false
}

// Painted records a successful paint. Only an exact hit moves the anchor, so a
// held fallback frame never replaces the last frame that was actually wanted.
func (r *Resolver) Painted(desired, painted int) {
	if painted == desired && painted > 0 {
		r.last = painted
	}
}

// LastPainted returns the anchor index, 0 if nothing was painted yet.
func (r *Resolver) LastPainted() int { return r.last }
