package graph

import (
	"fmt"

	"github.com/Faultbox/simview/internal/scene"
)

// Shape tags the variant held by a Geometry.
type Shape uint8

const (
	ShapeBox Shape = iota
	ShapePlane
	ShapeSphere
	ShapeCylinder
	ShapeCapsule
	ShapeBuffers // custom mesh decoded from an asset blob
)

func (s Shape) String() string {
	switch s {
	case ShapeBox:
		return "box"
	case ShapePlane:
		return "plane"
	case ShapeSphere:
		return "sphere"
	case ShapeCylinder:
		return "cylinder"
	case ShapeCapsule:
		return "capsule"
	case ShapeBuffers:
		return "buffers"
	}
	return fmt.Sprintf("Shape(%d)", uint8(s))
}

// Primitive holds the parameters of a built-in unit primitive.
// All primitives are centred on the origin.
type Primitive struct {
	Width, Height, Depth float32 // box, plane
	Radius               float32 // sphere, cylinder, capsule
	Length               float32 // capsule straight section
	Segments             int
}

// Buffers holds decoded mesh attributes. UVs is nil when the mesh has none.
type Buffers struct {
	Indices   []uint32
	Positions []float32 // xyz per vertex
	Normals   []float32 // xyz per vertex
	UVs       []float32 // uv per vertex
}

// VertexCount returns the number of vertices.
func (b *Buffers) VertexCount() int { return len(b.Positions) / 3 }

// HasUVs reports whether the UV attribute is present.
func (b *Buffers) HasUVs() bool { return len(b.UVs) > 0 }

// Geometry is a tagged variant: either a built-in primitive or custom buffers.
type Geometry struct {
	Shape     Shape
	Primitive Primitive
	Buffers   *Buffers // set iff Shape == ShapeBuffers
	Source    string   // mesh asset name for custom geometry
}

// NewBufferGeometry wraps decoded buffers.
func NewBufferGeometry(name string, b *Buffers) *Geometry {
	return &Geometry{Shape: ShapeBuffers, Buffers: b, Source: name}
}

// DefaultGeometry returns the placeholder primitive for a visual type. MESH
// visuals get a unit box until their custom mesh resolves.
func DefaultGeometry(t scene.VisualType) *Geometry {
	switch t {
	case scene.VisualMesh, scene.VisualCube:
		return &Geometry{Shape: ShapeBox, Primitive: Primitive{Width: 1, Height: 1, Depth: 1}}
	case scene.VisualPlane:
		return &Geometry{Shape: ShapePlane, Primitive: Primitive{Width: 1, Height: 1}}
	case scene.VisualSphere:
		return &Geometry{Shape: ShapeSphere, Primitive: Primitive{Radius: 1, Segments: 32}}
	case scene.VisualCylinder:
		return &Geometry{Shape: ShapeCylinder, Primitive: Primitive{Radius: 1, Height: 1, Segments: 32}}
	case scene.VisualCapsule:
		return &Geometry{Shape: ShapeCapsule, Primitive: Primitive{Radius: 1, Length: 1, Segments: 8}}
	}
	panic(fmt.Sprintf("graph: no default geometry for %v", t))
}
