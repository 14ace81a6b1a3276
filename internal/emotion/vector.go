package emotion

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

type Modifier int

const (
	ModifierNone Modifier = iota
	ModifierDroopy
	ModifierRibbed
)

func (m Modifier) String() string {
	switch m {
	case ModifierNone:
		return "none"
	case ModifierDroopy:
		return "droopy"
	case ModifierRibbed:
		return "ribbed"
	default:
		return fmt.Sprintf("modifier(%d)", int(m))
	}
}

func (m Modifier) Valid() bool {
	return m >= ModifierNone && m <= ModifierRibbed
}

// RGB is a packed 24-bit 0xRRGGBB color.
type RGB uint32

func (c RGB) Colorful() colorful.Color {
	c &= 0xffffff
	return colorful.Color{
		R: float64(c>>16&0xff) / 255,
		G: float64(c>>8&0xff) / 255,
		B: float64(c&0xff) / 255,
	}
}

func (c RGB) Hex() string {
	return fmt.Sprintf("#%06x", uint32(c)&0xffffff)
}

func RGBFromColorful(c colorful.Color) RGB {
	r, g, b := c.Clamped().RGB255()
	return RGB(uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// Vector is one complete visual state of the blob. Field order matches the
// serialized field map.
type Vector struct {
	Amplitude          float64  `json:"amplitude"`
	Frequency          float64  `json:"frequency"`
	Bloom              float64  `json:"bloom"`
	Color              RGB      `json:"color"`
	Modifier           Modifier `json:"modifier"`
	RibAmp             float64  `json:"ribAmp"`
	RibFreq            float64  `json:"ribFreq"`
	NoiseSpeed         float64  `json:"noiseSpeed"`
	RotationSpeed      float64  `json:"rotationSpeed"`
	BackgroundColor    RGB      `json:"backgroundColor"`
	Metalness          float64  `json:"metalness"`
	Roughness          float64  `json:"roughness"`
	Transmission       float64  `json:"transmission"`
	Thickness          float64  `json:"thickness"`
	Clearcoat          float64  `json:"clearcoat"`
	ClearcoatRoughness float64  `json:"clearcoatRoughness"`
	EnvMapIntensity    float64  `json:"envMapIntensity"`
	PointMode          bool     `json:"pointMode"`
	PointSize          float64  `json:"pointSize"`
	UseTexture         bool     `json:"useTexture"`
}

// DefaultVector is the state used before any preset is applied, and the base
// that partially specified presets are decoded onto.
func DefaultVector() Vector {
	return Vector{
		Amplitude:          0.08,
		Frequency:          1.42,
		Bloom:              0,
		Color:              0xefffff,
		Modifier:           ModifierNone,
		RibAmp:             0,
		RibFreq:            1,
		NoiseSpeed:         0.3,
		RotationSpeed:      0.2,
		BackgroundColor:    0xb6b69e,
		Metalness:          0.1,
		Roughness:          0.35,
		Transmission:       0.8,
		Thickness:          0.4,
		Clearcoat:          0.2,
		ClearcoatRoughness: 0.1,
		EnvMapIntensity:    1.2,
		PointMode:          false,
		PointSize:          0.03,
		UseTexture:         true,
	}
}

type numericField struct {
	Name string
	ref  func(*Vector) *float64
}

// numericFields lists every field blended by Lerp.
var numericFields = []numericField{
	{"amplitude", func(v *Vector) *float64 { return &v.Amplitude }},
	{"frequency", func(v *Vector) *float64 { return &v.Frequency }},
	{"bloom", func(v *Vector) *float64 { return &v.Bloom }},
	{"ribAmp", func(v *Vector) *float64 { return &v.RibAmp }},
	{"ribFreq", func(v *Vector) *float64 { return &v.RibFreq }},
	{"noiseSpeed", func(v *Vector) *float64 { return &v.NoiseSpeed }},
	{"rotationSpeed", func(v *Vector) *float64 { return &v.RotationSpeed }},
	{"metalness", func(v *Vector) *float64 { return &v.Metalness }},
	{"roughness", func(v *Vector) *float64 { return &v.Roughness }},
	{"transmission", func(v *Vector) *float64 { return &v.Transmission }},
	{"thickness", func(v *Vector) *float64 { return &v.Thickness }},
	{"clearcoat", func(v *Vector) *float64 { return &v.Clearcoat }},
	{"clearcoatRoughness", func(v *Vector) *float64 { return &v.ClearcoatRoughness }},
	{"envMapIntensity", func(v *Vector) *float64 { return &v.EnvMapIntensity }},
	{"pointSize", func(v *Vector) *float64 { return &v.PointSize }},
}

func NumericFieldNames() []string {
	names := make([]string, len(numericFields))
	for i, f := range numericFields {
		names[i] = f.Name
	}
	return names
}

// Numeric returns the value of a blended field by its serialized name.
func (v Vector) Numeric(name string) (float64, bool) {
	for _, f := range numericFields {
		if f.Name == name {
			return *f.ref(&v), true
		}
	}
	return 0, false
}

// Lerp blends every numeric field toward target by t. The modifier and the
// boolean fields are taken from target as-is, and so are both colors: they
// are blended separately by the transition's color path.
func (v Vector) Lerp(target Vector, t float64) Vector {
	result := target
	for _, f := range numericFields {
		from := *f.ref(&v)
		to := *f.ref(&target)
		*f.ref(&result) = from + (to-from)*t
	}
	return result
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
