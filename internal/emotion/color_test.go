package emotion

import (
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
)

func TestBlendSpaceMidpoints(t *testing.T) {
	black := colorful.Color{}
	white := colorful.Color{R: 1, G: 1, B: 1}

	linear := BlendLinearRGB.Blend(black, white, 0.5)
	assert.InDelta(t, 0.735, linear.R, 0.001, "linear light midpoint is brighter in sRGB")
	assert.InDelta(t, linear.R, linear.B, 1e-9)

	srgb := BlendSRGB.Blend(black, white, 0.5)
	assert.InDelta(t, 0.5, srgb.R, 1e-9)

	assert.Equal(t, black, BlendLinearRGB.Blend(black, white, -1))
	assert.Equal(t, white, BlendLinearRGB.Blend(black, white, 2))
}
