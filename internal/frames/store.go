package frames

import (
	"errors"
	"fmt"
	"image"
)

// State is the load state of a single frame slot.
type State int

const (
	Unrequested State = iota
	Loading
	Loaded
	Failed
)

func (s State) String() string {
	switch s {
	case Unrequested:
		return "unrequested"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Slot holds one frame of the sequence. Image is set only when State is Loaded
// and must not be modified once stored.
type Slot struct {
	State State
	Image image.Image
}

var (
	ErrIndexOutOfRange   = errors.New("frame index out of range")
	ErrInvalidTransition = errors.New("invalid frame state transition")
	ErrMissingImage      = errors.New("loaded frame without image")
)

// Store is a fixed-size sequence of frame slots addressed by 1-based index.
//
// Store has no locking: it is owned by the player's event loop and must only
// be touched from that goroutine.
type Store struct {
	slots []Slot
	ready bool
}

// NewStore creates n slots, all Unrequested.
func NewStore(n int) *Store {
	if n < 0 {
		n = 0
	}
	return &Store{slots: make([]Slot, n)}
}

// Len returns the number of frames in the sequence.
func (s *Store) Len() int { return len(s.slots) }

// Get returns slot i. Out-of-range indices read as Unrequested.
func (s *Store) Get(i int) Slot {
	if i < 1 || i > len(s.slots) {
		return Slot{}
	}
	return s.slots[i-1]
}

// Loaded reports whether frame i is available for painting.
func (s *Store) Loaded(i int) bool {
	return s.Get(i).State == Loaded
}

// Set moves slot i to state. Allowed transitions are Unrequested -> Loading and
// Loading -> Loaded|Failed; anything else leaves the slot untouched.
func (s *Store) Set(i int, state State, img image.Image) error {
	if i < 1 || i > len(s.slots) {
		return fmt.Errorf("%w: %d not in [1,%d]", ErrIndexOutOfRange, i, len(s.slots))
	}
	slot := &s.slots[i-1]

	switch {
	case slot.State == Unrequested && state == Loading:
	case slot.State == Loading && (state == Loaded || state == Failed):
	default:
		return fmt.Errorf("%w: frame %d %s -> %s", ErrInvalidTransition, i, slot.State, state)
	}

	if state == Loaded {
		if img == nil {
			return fmt.Errorf("%w: frame %d", ErrMissingImage, i)
		}
		slot.Image = img
	}
	slot.State = state
	return nil
}

// Ready reports whether the first frame has resolved, successfully or not.
func (s *Store) Ready() bool { return s.ready }

// MarkReady flips the ready flag. It never goes back to false.
func (s *Store) MarkReady() { s.ready = true }

// Counts tallies slots per state.
type Counts struct {
	Unrequested, Loading, Loaded, Failed int
}

func (s *Store) Counts() Counts {
	var c Counts
	for _, slot := range s.slots {
		switch slot.State {
		case Unrequested:
			c.Unrequested++
		case Loading:
			c.Loading++
		case Loaded:
			c.Loaded++
		case Failed:
			c.Failed++
		}
	}
	return c
}
