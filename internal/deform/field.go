// Package deform turns a parameter vector into displaced blob geometry.
package deform

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/ojrac/opensimplex-go"

	"github.com/normanking/cortexblob/internal/emotion"
)

const (
	droopSag    = 0.5
	droopSpread = 0.2
	ribPhase    = 5.0
	ribDrift    = 2.0
)

// Noise is a coherent 3D noise source with output roughly in [-1,1].
type Noise interface {
	Eval3(x, y, z float64) float64
}

func NewNoise(seed int64) Noise {
	return opensimplex.New(seed)
}

// Field displaces base surface points. It holds no mutable state, so one
// Field may be shared by any number of goroutines.
type Field struct {
	noise Noise
}

func NewField(noise Noise) *Field {
	return &Field{noise: noise}
}

// Displace returns base pushed along its radius by noise, then reshaped by
// the vector's modifier. The modifier phase always reads the base y, never
// the displaced one.
func (f *Field) Displace(base mgl32.Vec3, t float64, v emotion.Vector) mgl32.Vec3 {
	x, y, z := float64(base[0]), float64(base[1]), float64(base[2])

	n := f.noise.Eval3(x*v.Frequency, y*v.Frequency, z*v.Frequency+t*v.NoiseSpeed)
	scale := 1 + n*v.Amplitude
	dx, dy, dz := x*scale, y*scale, z*scale

	switch v.Modifier {
	case emotion.ModifierDroopy:
		falloff := (y + 1) / 2
		falloff *= falloff
		dy -= falloff * droopSag
		spread := 1 + falloff*droopSpread
		dx *= spread
		dz *= spread
	case emotion.ModifierRibbed:
		ribbing := math.Sin(y*v.RibFreq*ribPhase+t*ribDrift) * v.RibAmp
		dx *= 1 + ribbing
		dz *= 1 + ribbing
	}

	return mgl32.Vec3{float32(dx), float32(dy), float32(dz)}
}
