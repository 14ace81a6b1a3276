package emotion

import (
	"fmt"
	"math"
)

// Easing names a monotonic timing curve mapping [0,1] onto [0,1].
type Easing string

const (
	EaseLinear     Easing = "linear"
	EaseInOutQuad  Easing = "ease-in-out-quad"
	EaseInOutCubic Easing = "ease-in-out-cubic"
	EaseInCubic    Easing = "ease-in-cubic"
	EaseOutCubic   Easing = "ease-out-cubic"
)

const DefaultEasing = EaseInOutQuad

func ParseEasing(name string) (Easing, error) {
	switch e := Easing(name); e {
	case EaseLinear, EaseInOutQuad, EaseInOutCubic, EaseInCubic, EaseOutCubic:
		return e, nil
	case "":
		return DefaultEasing, nil
	default:
		return "", fmt.Errorf("unknown easing %q", name)
	}
}

// Apply maps linear progress p onto the curve. p is clamped to [0,1].
func (e Easing) Apply(p float64) float64 {
	p = clamp(p, 0, 1)

	switch e {
	case EaseLinear:
		return p
	case EaseInOutCubic:
		return easeInOutCubic(p)
	case EaseInCubic:
		return p * p * p
	case EaseOutCubic:
		return 1 - math.Pow(1-p, 3)
	default:
		return easeInOutQuad(p)
	}
}

func easeInOutQuad(p float64) float64 {
	if p < 0.5 {
		return 2 * p * p
	}
	return 1 - math.Pow(-2*p+2, 2)/2
}

func easeInOutCubic(p float64) float64 {
	if p < 0.5 {
		return 4 * p * p * p
	}
	return 1 - math.Pow(-2*p+2, 3)/2
}
