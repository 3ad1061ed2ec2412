// Package discount implements the single-use discount wheel.
//
// The wheel moves Idle -> Spinning -> Resolved. A resolved wheel is spent
// and cannot spin again until Reset, which only a successful checkout
// performs. Timing of the Spinning -> Resolved transition belongs to the
// caller; the wheel itself holds no timers.
package discount

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/roach88/storesync/internal/model"
)

// SegmentCount is the number of equal-width segments on the wheel.
const SegmentCount = 6

// SegmentWidth is the angular width of one segment in degrees.
const SegmentWidth = 360 / SegmentCount

// Segments holds the percent awarded by each segment. Two are misses.
var Segments = [SegmentCount]int{10, 0, 5, 3, 0, 5}

const (
	minExtraRotations = 10
	maxExtraRotations = 14
)

// State is the wheel lifecycle state.
type State int

const (
	Idle State = iota
	Spinning
	Resolved
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Spinning:
		return "spinning"
	case Resolved:
		return "resolved"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Picker chooses uniformly in [0, n). *rand.Rand from math/rand/v2
// satisfies it.
type Picker interface {
	IntN(n int) int
}

// Spin is the outcome chosen when a spin starts.
type Spin struct {
	Segment int
	Percent int
	// Angle is the landing rotation in degrees, for animation.
	Angle int
}

// Wheel is the discount state machine. Not safe for concurrent use.
type Wheel struct {
	pick    Picker
	state   State
	percent int
	pending Spin
}

// NewWheel creates an idle wheel. A nil picker uses a time-seeded PCG.
func NewWheel(pick Picker) *Wheel {
	if pick == nil {
		seed := uint64(time.Now().UnixNano())
		pick = rand.New(rand.NewPCG(seed, seed>>32|1))
	}
	return &Wheel{pick: pick}
}

// Restore sets the wheel from persisted state. A spent discount is
// Resolved; anything else is Idle with the percent kept.
func (w *Wheel) Restore(d model.Discount) {
	if !model.ValidDiscountPercent(d.Percent) {
		d.Percent = 0
	}
	w.percent = d.Percent
	w.pending = Spin{}
	if d.Spent {
		w.state = Resolved
	} else {
		w.state = Idle
	}
}

// Spin starts a spin. It is a no-op returning false unless the wheel is
// Idle and not spent.
func (w *Wheel) Spin() (Spin, bool) {
	if w.state != Idle {
		return Spin{}, false
	}
	k := w.pick.IntN(SegmentCount)
	rotations := minExtraRotations + w.pick.IntN(maxExtraRotations-minExtraRotations+1)
	s := Spin{
		Segment: k,
		Percent: Segments[k],
		Angle:   LandingAngle(k, rotations),
	}
	w.state = Spinning
	w.pending = s
	return s, true
}

// Resolve completes a spin. A positive segment value becomes the active
// discount; the wheel is spent regardless of value.
func (w *Wheel) Resolve() (model.Discount, bool) {
	if w.state != Spinning {
		return w.Discount(), false
	}
	if w.pending.Percent > 0 {
		w.percent = w.pending.Percent
	}
	w.pending = Spin{}
	w.state = Resolved
	return w.Discount(), true
}

// Reset clears percent and spent together.
func (w *Wheel) Reset() {
	w.state = Idle
	w.percent = 0
	w.pending = Spin{}
}

// State returns the lifecycle state.
func (w *Wheel) State() State { return w.state }

// Discount returns the active discount. A spinning wheel is not yet spent.
func (w *Wheel) Discount() model.Discount {
	return model.Discount{Percent: w.percent, Spent: w.state == Resolved}
}

// LandingAngle returns the rotation in degrees that brings segment k under
// the pointer after the given extra full rotations.
func LandingAngle(k, rotations int) int {
	return rotations*360 + (360 - k*SegmentWidth)
}
