package deform

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
)

type SurfaceKind int

const (
	KindMesh SurfaceKind = iota
	KindPointCloud
)

func (k SurfaceKind) String() string {
	if k == KindPointCloud {
		return "points"
	}
	return "mesh"
}

func (k SurfaceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// SurfacePoint is an undisplaced sample of the base sphere.
type SurfacePoint struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

// Surface pairs immutable base samples with their displaced copy. Base is
// never written after construction; Positions and Normals are rewritten
// every frame.
type Surface struct {
	Kind      SurfaceKind
	Base      []SurfacePoint
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	Indices   []uint32
}

func newSurface(kind SurfaceKind, base []SurfacePoint, indices []uint32) *Surface {
	s := &Surface{
		Kind:      kind,
		Base:      base,
		Positions: make([]mgl32.Vec3, len(base)),
		Normals:   make([]mgl32.Vec3, len(base)),
		Indices:   indices,
	}
	s.ResetToBase()
	return s
}

// NewPolarSphere builds a UV sphere with poles on the y axis. Each row
// repeats its first vertex at the seam so UVs stay continuous.
func NewPolarSphere(radius float32, widthSegments, heightSegments int) (*Surface, error) {
	if widthSegments < 3 || heightSegments < 2 {
		return nil, fmt.Errorf("polar sphere needs at least 3x2 segments, got %dx%d", widthSegments, heightSegments)
	}

	base := make([]SurfacePoint, 0, (widthSegments+1)*(heightSegments+1))
	for y := 0; y <= heightSegments; y++ {
		v := float64(y) / float64(heightSegments)
		phi := v * math.Pi
		for x := 0; x <= widthSegments; x++ {
			u := float64(x) / float64(widthSegments)
			theta := u * 2 * math.Pi

			dir := mgl32.Vec3{
				float32(-math.Cos(theta) * math.Sin(phi)),
				float32(math.Cos(phi)),
				float32(math.Sin(theta) * math.Sin(phi)),
			}
			base = append(base, SurfacePoint{
				Position: dir.Mul(radius),
				Normal:   dir,
				UV:       mgl32.Vec2{float32(u), float32(v)},
			})
		}
	}

	indices := make([]uint32, 0, widthSegments*heightSegments*6)
	for y := 0; y < heightSegments; y++ {
		for x := 0; x < widthSegments; x++ {
			a := uint32((widthSegments+1)*y + x)
			b := a + uint32(widthSegments+1)
			indices = append(indices, a, b, a+1)
			indices = append(indices, b, b+1, a+1)
		}
	}

	return newSurface(KindMesh, base, indices), nil
}

// NewPointCloud scatters count points uniformly over a sphere. The same seed
// always yields the same cloud.
func NewPointCloud(radius float32, count int, seed int64) (*Surface, error) {
	if count <= 0 {
		return nil, fmt.Errorf("point cloud needs a positive count, got %d", count)
	}

	rng := rand.New(rand.NewSource(seed))
	base := make([]SurfacePoint, count)
	for i := range base {
		theta := rng.Float64() * 2 * math.Pi
		phi := math.Acos(2*rng.Float64() - 1)

		dir := mgl32.Vec3{
			float32(math.Sin(phi) * math.Cos(theta)),
			float32(math.Sin(phi) * math.Sin(theta)),
			float32(math.Cos(phi)),
		}
		base[i] = SurfacePoint{
			Position: dir.Mul(radius),
			Normal:   dir,
			UV:       mgl32.Vec2{float32(theta / (2 * math.Pi)), float32(phi / math.Pi)},
		}
	}

	return newSurface(KindPointCloud, base, nil), nil
}

func (s *Surface) Len() int { return len(s.Base) }

// ResetToBase discards any displacement.
func (s *Surface) ResetToBase() {
	for i, p := range s.Base {
		s.Positions[i] = p.Position
		s.Normals[i] = p.Normal
	}
}

// RecomputeNormals rebuilds smooth vertex normals from the displaced
// positions by summing unnormalized face normals. Vertices that touch only
// degenerate faces fall back to their radial direction. Surfaces without
// indices keep their sampled normals.
func (s *Surface) RecomputeNormals() {
	if len(s.Indices) == 0 {
		return
	}

	for i := range s.Normals {
		s.Normals[i] = mgl32.Vec3{}
	}

	for i := 0; i+2 < len(s.Indices); i += 3 {
		ia, ib, ic := s.Indices[i], s.Indices[i+1], s.Indices[i+2]
		a, b, c := s.Positions[ia], s.Positions[ib], s.Positions[ic]

		face := c.Sub(b).Cross(a.Sub(b))
		s.Normals[ia] = s.Normals[ia].Add(face)
		s.Normals[ib] = s.Normals[ib].Add(face)
		s.Normals[ic] = s.Normals[ic].Add(face)
	}

	for i, n := range s.Normals {
		if l := n.Len(); l > 1e-12 {
			s.Normals[i] = n.Mul(1 / l)
			continue
		}
		if l := s.Positions[i].Len(); l > 1e-12 {
			s.Normals[i] = s.Positions[i].Mul(1 / l)
		} else {
			s.Normals[i] = s.Base[i].Normal
		}
	}
}

// Bounds returns the axis-aligned box around the displaced positions.
func (s *Surface) Bounds() (lo, hi mgl32.Vec3) {
	if len(s.Positions) == 0 {
		return
	}
	lo, hi = s.Positions[0], s.Positions[0]
	for _, p := range s.Positions[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = min(lo[k], p[k])
			hi[k] = max(hi[k], p[k])
		}
	}
	return lo, hi
}
