package deform

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"

	"github.com/normanking/cortexblob/internal/emotion"
)

type constNoise float64

func (n constNoise) Eval3(_, _, _ float64) float64 { return float64(n) }

func flat() emotion.Vector {
	v := emotion.DefaultVector()
	v.Modifier = emotion.ModifierNone
	return v
}

func TestRibbedPoleIsUnmoved(t *testing.T) {
	f := NewField(NewNoise(0))

	v := flat()
	v.Modifier = emotion.ModifierRibbed
	v.RibAmp = 0.2
	v.RibFreq = 10
	v.Amplitude = 0

	got := f.Displace(mgl32.Vec3{0, 1, 0}, 0, v)
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, got)
}

func TestDisplaceIsDeterministic(t *testing.T) {
	a := NewField(NewNoise(42))
	b := NewField(NewNoise(42))

	v := emotion.DefaultPresets()[3].Vector
	for _, p := range []mgl32.Vec3{{1, 0, 0}, {0, -1, 0}, {0.6, 0.8, 0}, {0.3, 0.1, -0.9}} {
		for _, ts := range []float64{0, 0.5, 12.25} {
			first := a.Displace(p, ts, v)
			assert.Equal(t, first, a.Displace(p, ts, v))
			assert.Equal(t, first, b.Displace(p, ts, v))
		}
	}
}

func TestDisplaceRadial(t *testing.T) {
	f := NewField(constNoise(0.5))
	v := flat()
	v.Amplitude = 0.4

	got := f.Displace(mgl32.Vec3{0.6, 0.8, 0}, 3, v)
	assert.InDelta(t, 0.72, got[0], 1e-6)
	assert.InDelta(t, 0.96, got[1], 1e-6)
	assert.InDelta(t, 0.0, got[2], 1e-6)
}

func TestDroopyUsesBaseY(t *testing.T) {
	f := NewField(constNoise(1))
	v := flat()
	v.Amplitude = 1
	v.Modifier = emotion.ModifierDroopy

	// Displaced y is 2 here; the sag must still use the base y of 1.
	top := f.Displace(mgl32.Vec3{0, 1, 0}, 0, v)
	assert.InDelta(t, 1.5, top[1], 1e-6)

	side := f.Displace(mgl32.Vec3{1, 0, 0}, 0, v)
	assert.InDelta(t, 2.1, side[0], 1e-6)
	assert.InDelta(t, -0.125, side[1], 1e-6)
	assert.InDelta(t, 0.0, side[2], 1e-6)

	bottom := f.Displace(mgl32.Vec3{0, -1, 0}, 0, v)
	assert.InDelta(t, -2.0, bottom[1], 1e-6)
}

func TestRibbedUsesBaseY(t *testing.T) {
	f := NewField(constNoise(1))
	v := flat()
	v.Amplitude = 1
	v.Modifier = emotion.ModifierRibbed
	v.RibAmp = 0.2
	v.RibFreq = 1

	got := f.Displace(mgl32.Vec3{0.6, 0.8, 0}, 0.25, v)
	ribbing := math.Sin(0.8*5+0.25*2) * 0.2
	assert.InDelta(t, 1.2*(1+ribbing), got[0], 1e-6)
	assert.InDelta(t, 1.6, got[1], 1e-6, "ribbing leaves y alone")
}

func TestModifierNoneIsRadialOnly(t *testing.T) {
	f := NewField(NewNoise(7))
	v := flat()
	v.Amplitude = 0.3

	base := mgl32.Vec3{0.48, 0.6, 0.64}
	got := f.Displace(base, 1, v)

	// The result stays on the ray through base.
	assert.InDelta(t, 0, got.Cross(base).Len(), 1e-6)
}
