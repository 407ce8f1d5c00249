package scene

import (
	"encoding/gob"

	"github.com/go-plugraph/plugraph/geom"
)

func init() {
	gob.Register(MeshPrimitive{})
}

// An Object is the geometry found at a scene location.
type Object interface {
	// Bound returns the object's bounding box in the location's local space.
	Bound() geom.Box3f
}

// MeshPrimitive is a polygon mesh.
type MeshPrimitive struct {
	// VerticesPerFace holds the vertex count of every face.
	VerticesPerFace []int
	// VertexIDs indexes P, face after face.
	VertexIDs []int
	P         []geom.V3f
}

func (m MeshPrimitive) Bound() geom.Box3f {
	b := geom.EmptyBox3f()
	for _, p := range m.P {
		b = b.ExtendBy(p)
	}
	return b
}

// NewBoxMesh returns a six-faced mesh filling the box b.
func NewBoxMesh(b geom.Box3f) MeshPrimitive {
	lo, hi := b.Min, b.Max
	return MeshPrimitive{
		VerticesPerFace: []int{4, 4, 4, 4, 4, 4},
		VertexIDs: []int{
			0, 1, 2, 3, // -z
			4, 7, 6, 5, // +z
			0, 4, 5, 1, // -y
			3, 2, 6, 7, // +y
			0, 3, 7, 4, // -x
			1, 5, 6, 2, // +x
		},
		P: []geom.V3f{
			{X: lo.X, Y: lo.Y, Z: lo.Z},
			{X: hi.X, Y: lo.Y, Z: lo.Z},
			{X: hi.X, Y: hi.Y, Z: lo.Z},
			{X: lo.X, Y: hi.Y, Z: lo.Z},
			{X: lo.X, Y: lo.Y, Z: hi.Z},
			{X: hi.X, Y: lo.Y, Z: hi.Z},
			{X: hi.X, Y: hi.Y, Z: hi.Z},
			{X: lo.X, Y: hi.Y, Z: hi.Z},
		},
	}
}
