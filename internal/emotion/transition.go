package emotion

import (
	"fmt"
	"time"
)

const DefaultTransitionDuration = time.Second

type TransitionOption func(*Transition)

func WithEasing(e Easing) TransitionOption {
	return func(t *Transition) { t.easing = e }
}

func WithBlendSpace(s BlendSpace) TransitionOption {
	return func(t *Transition) { t.space = s }
}

// Transition blends the live vector toward a target on a fixed clock. Numeric
// fields are interpolated field-wise; the two colors follow their own path in
// the configured blend space, driven by the same eased progress.
//
// A Transition is not safe for concurrent use. The engine owns it and only
// touches it from the frame loop.
type Transition struct {
	current Vector
	target  Vector
	live    Vector
	colors  []*colorChannel

	elapsed  float64
	duration float64
	active   bool

	easing Easing
	space  BlendSpace
}

func NewTransition(duration time.Duration, initial Vector, opts ...TransitionOption) (*Transition, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDuration, duration)
	}

	t := &Transition{
		current:  initial,
		target:   initial,
		live:     initial,
		colors:   newColorChannels(initial),
		duration: duration.Seconds(),
		easing:   DefaultEasing,
		space:    BlendLinearRGB,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Retarget starts blending from fromLive toward target. It reports false and
// leaves the transition untouched when target is already the one being
// blended toward or already resolved.
func (t *Transition) Retarget(target, fromLive Vector) bool {
	if target == t.target {
		return false
	}

	t.current = fromLive
	t.target = target
	t.elapsed = 0
	t.active = true

	for _, ch := range t.colors {
		ch.retarget(target, fromLive)
	}

	t.live = fromLive.Lerp(target, 0)
	for _, ch := range t.colors {
		ch.write(&t.live)
	}
	return true
}

// Advance moves the clock by dt seconds and returns the live vector. Once
// progress reaches 1 the transition freezes on its target.
func (t *Transition) Advance(dt float64) Vector {
	if !t.active {
		return t.target
	}

	t.elapsed += dt
	progress := clamp(t.elapsed/t.duration, 0, 1)
	if progress >= 1 {
		t.settle()
		return t.live
	}

	eased := t.easing.Apply(progress)
	t.live = t.current.Lerp(t.target, eased)
	for _, ch := range t.colors {
		ch.advance(t.space, eased)
		ch.write(&t.live)
	}
	return t.live
}

// Reset jumps straight to v with no blend.
func (t *Transition) Reset(v Vector) {
	t.target = v
	t.settle()
	for _, ch := range t.colors {
		c := ch.get(&v).Colorful()
		ch.from, ch.to, ch.live = c, c, c
	}
}

func (t *Transition) settle() {
	t.current = t.target
	t.live = t.target
	t.elapsed = t.duration
	t.active = false
	for _, ch := range t.colors {
		ch.settle()
	}
}

func (t *Transition) Live() Vector   { return t.live }
func (t *Transition) Target() Vector { return t.target }
func (t *Transition) Active() bool   { return t.active }

// Progress is the linear progress of the current blend in [0,1].
func (t *Transition) Progress() float64 {
	if !t.active {
		return 1
	}
	return clamp(t.elapsed/t.duration, 0, 1)
}

func (t *Transition) Duration() time.Duration {
	return time.Duration(t.duration * float64(time.Second))
}
