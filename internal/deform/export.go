package deform

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/normanking/cortexblob/internal/emotion"
)

// Snapshot is one displaced frame ready for export.
type Snapshot struct {
	Mesh      *Surface
	Cloud     *Surface
	RotationY float64
	Params    emotion.Vector
}

// BuildDocument writes both representations into one glTF document. Only the
// one selected by the vector's point mode is placed in the scene.
func BuildDocument(snap Snapshot) (*gltf.Document, error) {
	if snap.Mesh == nil || snap.Cloud == nil {
		return nil, fmt.Errorf("snapshot needs both mesh and point cloud")
	}

	doc := gltf.NewDocument()
	doc.Materials = []*gltf.Material{materialFor(snap.Params)}

	meshIdx := addSurface(doc, "blob", snap.Mesh, gltf.PrimitiveTriangles)
	cloudIdx := addSurface(doc, "blob-points", snap.Cloud, gltf.PrimitivePoints)

	rot := mgl32.QuatRotate(float32(snap.RotationY), mgl32.Vec3{0, 1, 0})
	rotation := [4]float64{float64(rot.V[0]), float64(rot.V[1]), float64(rot.V[2]), float64(rot.W)}

	doc.Nodes = []*gltf.Node{
		{Name: "blob", Mesh: gltf.Index(meshIdx), Rotation: rotation},
		{Name: "blob-points", Mesh: gltf.Index(cloudIdx), Rotation: rotation},
	}

	visible := 0
	if snap.Params.PointMode {
		visible = 1
	}
	doc.Scenes[0].Nodes = []int{visible}

	return doc, nil
}

func ExportGLB(path string, snap Snapshot) error {
	doc, err := BuildDocument(snap)
	if err != nil {
		return err
	}
	if err := gltf.SaveBinary(doc, path); err != nil {
		return fmt.Errorf("save glb: %w", err)
	}
	return nil
}

func addSurface(doc *gltf.Document, name string, s *Surface, mode gltf.PrimitiveMode) int {
	positions := make([][3]float32, len(s.Positions))
	normals := make([][3]float32, len(s.Normals))
	uvs := make([][2]float32, len(s.Base))
	for i := range s.Positions {
		positions[i] = s.Positions[i]
		normals[i] = s.Normals[i]
		uvs[i] = s.Base[i].UV
	}

	prim := &gltf.Primitive{
		Mode: mode,
		Attributes: map[string]int{
			gltf.POSITION:   modeler.WritePosition(doc, positions),
			gltf.NORMAL:     modeler.WriteNormal(doc, normals),
			gltf.TEXCOORD_0: modeler.WriteTextureCoord(doc, uvs),
		},
		Material: gltf.Index(0),
	}
	if len(s.Indices) > 0 {
		prim.Indices = gltf.Index(modeler.WriteIndices(doc, s.Indices))
	}

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: name, Primitives: []*gltf.Primitive{prim}})
	return len(doc.Meshes) - 1
}

func materialFor(v emotion.Vector) *gltf.Material {
	r, g, b := v.Color.Colorful().LinearRgb()
	return &gltf.Material{
		Name: "blob",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float64{r, g, b, 1},
			MetallicFactor:  gltf.Float(v.Metalness),
			RoughnessFactor: gltf.Float(v.Roughness),
		},
	}
}
