package emotion

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// BlendSpace selects the color space the transition's color path blends in.
type BlendSpace string

const (
	BlendLinearRGB BlendSpace = "linear"
	BlendSRGB      BlendSpace = "rgb"
	BlendLab       BlendSpace = "lab"
	BlendLuv       BlendSpace = "luv"
	BlendHcl       BlendSpace = "hcl"
)

func ParseBlendSpace(name string) (BlendSpace, error) {
	switch s := BlendSpace(name); s {
	case BlendLinearRGB, BlendSRGB, BlendLab, BlendLuv, BlendHcl:
		return s, nil
	case "":
		return BlendLinearRGB, nil
	default:
		return "", fmt.Errorf("unknown color blend space %q", name)
	}
}

func (s BlendSpace) Blend(from, to colorful.Color, t float64) colorful.Color {
	if t <= 0 {
		return from
	}
	if t >= 1 {
		return to
	}

	switch s {
	case BlendSRGB:
		return from.BlendRgb(to, t)
	case BlendLab:
		return from.BlendLab(to, t).Clamped()
	case BlendLuv:
		return from.BlendLuv(to, t).Clamped()
	case BlendHcl:
		return from.BlendHcl(to, t).Clamped()
	default:
		return from.BlendLinearRgb(to, t)
	}
}

// colorChannel is one independently blended color of the vector.
type colorChannel struct {
	get func(*Vector) *RGB

	from colorful.Color
	to   colorful.Color
	live colorful.Color
}

func newColorChannels(v Vector) []*colorChannel {
	channels := []*colorChannel{
		{get: func(v *Vector) *RGB { return &v.Color }},
		{get: func(v *Vector) *RGB { return &v.BackgroundColor }},
	}
	for _, ch := range channels {
		c := ch.get(&v).Colorful()
		ch.from, ch.to, ch.live = c, c, c
	}
	return channels
}

// retarget starts a new blend from the color shown in fromLive. The
// unquantized last blended value is kept when it still matches fromLive.
func (ch *colorChannel) retarget(target, fromLive Vector) {
	shown := *ch.get(&fromLive)
	if RGBFromColorful(ch.live) == shown {
		ch.from = ch.live
	} else {
		ch.from = shown.Colorful()
	}
	ch.to = ch.get(&target).Colorful()
	ch.live = ch.from
}

func (ch *colorChannel) advance(space BlendSpace, eased float64) {
	ch.live = space.Blend(ch.from, ch.to, eased)
}

func (ch *colorChannel) settle() {
	ch.from = ch.to
	ch.live = ch.to
}

func (ch *colorChannel) write(v *Vector) {
	*ch.get(v) = RGBFromColorful(ch.live)
}
