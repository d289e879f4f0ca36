// Package scene defines the server-side scene description: bodies, visuals,
// asset manifests and state snapshots, together with their JSON schema.
// All transforms are expressed in simulator space.
package scene

import (
	"fmt"
	"strings"
)

// VisualType tags the shape of a visual. The set is closed.
type VisualType uint8

const (
	VisualMesh VisualType = iota
	VisualPlane
	VisualSphere
	VisualCube
	VisualCylinder
	VisualCapsule
)

var visualTypeNames = [...]string{
	VisualMesh:     "MESH",
	VisualPlane:    "PLANE",
	VisualSphere:   "SPHERE",
	VisualCube:     "CUBE",
	VisualCylinder: "CYLINDER",
	VisualCapsule:  "CAPSULE",
}

// VisualTypes lists every visual type in declaration order.
func VisualTypes() []VisualType {
	return []VisualType{VisualMesh, VisualPlane, VisualSphere, VisualCube, VisualCylinder, VisualCapsule}
}

// String returns the wire name of the type.
func (t VisualType) String() string {
	if int(t) < len(visualTypeNames) {
		return visualTypeNames[t]
	}
	return fmt.Sprintf("VisualType(%d)", uint8(t))
}

// ParseVisualType maps a wire name to a VisualType.
func ParseVisualType(name string) (VisualType, error) {
	for i, n := range visualTypeNames {
		if strings.EqualFold(n, name) {
			return VisualType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown visual type %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (t VisualType) MarshalText() ([]byte, error) {
	if int(t) >= len(visualTypeNames) {
		return nil, fmt.Errorf("unknown visual type %d", uint8(t))
	}
	return []byte(visualTypeNames[t]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *VisualType) UnmarshalText(b []byte) error {
	v, err := ParseVisualType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Transform is a position, scalar-first unit quaternion and scale.
type Transform struct {
	Position [3]float32
	Rotation [4]float32 // w, x, y, z
	Scale    [3]float32
}

// IdentityTransform returns the transform with no translation, rotation or scaling.
func IdentityTransform() Transform {
	return Transform{
		Rotation: [4]float32{1, 0, 0, 0},
		Scale:    [3]float32{1, 1, 1},
	}
}

// Visual is one drawable shape attached to a body.
type Visual struct {
	Type     VisualType  `json:"type"`
	Trans    Transform   `json:"trans"`
	Mesh     string      `json:"mesh,omitempty"`
	Material string      `json:"material,omitempty"`
	Color    *[3]float32 `json:"color,omitempty"`
}

// Body is a node in the rigid-body hierarchy.
type Body struct {
	Name     string    `json:"name"`
	Parent   string    `json:"parent,omitempty"`
	Trans    Transform `json:"trans"`
	Visuals  []Visual  `json:"visuals"`
	Children []Body    `json:"children"`
}

// Walk visits b and all of its descendants depth first.
func (b *Body) Walk(fn func(*Body)) {
	fn(b)
	for i := range b.Children {
		b.Children[i].Walk(fn)
	}
}

// Range is a [byteOffset, elementCount] pair into a binary blob.
type Range [2]uint32

// Offset returns the byte offset of the range.
func (r Range) Offset() uint32 { return r[0] }

// Count returns the number of elements in the range.
func (r Range) Count() uint32 { return r[1] }

// MeshAsset describes a mesh blob and the layout of its sub-ranges.
type MeshAsset struct {
	Name     string `json:"name"`
	Hash     string `json:"hash"`
	Indices  Range  `json:"indicesLayout"`
	Vertices Range  `json:"verticesLayout"`
	Normals  Range  `json:"normalsLayout"`
	UVs      Range  `json:"uvLayout"`
}

// MaterialAsset describes a physically based material.
type MaterialAsset struct {
	Name        string     `json:"name"`
	Color       [3]float32 `json:"color"`
	Emissive    float32    `json:"emissive"`
	Shininess   float32    `json:"shininess"`
	Reflectance float32    `json:"reflectance"`
	Specular    float32    `json:"specular"`
	Texture     string     `json:"texture,omitempty"`
	TexRepeat   [2]float32 `json:"texrepeat"`
}

// TextureAsset describes a packed RGB pixel blob.
type TextureAsset struct {
	Name   string `json:"name"`
	Hash   string `json:"hash"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Description is the full scene served by /scene_data.
type Description struct {
	ID        string          `json:"id,omitempty"`
	Root      Body            `json:"root"`
	Meshes    []MeshAsset     `json:"meshes"`
	Materials []MaterialAsset `json:"materials"`
	Textures  []TextureAsset  `json:"textures"`
}

// Placement is a position and scalar-first quaternion from a state snapshot.
type Placement struct {
	Position [3]float32
	Rotation [4]float32
}

// StateSnapshot is the payload served by /scene_state.
type StateSnapshot struct {
	UpdateData map[string][]float32 `json:"updateData,omitempty"`
}

// Placements decodes the 7-scalar entries. Entries of the wrong arity are
// returned by name in skipped.
func (s StateSnapshot) Placements() (placements map[string]Placement, skipped []string) {
	placements = make(map[string]Placement, len(s.UpdateData))
	for name, v := range s.UpdateData {
		if len(v) != 7 {
			skipped = append(skipped, name)
			continue
		}
		placements[name] = Placement{
			Position: [3]float32{v[0], v[1], v[2]},
			Rotation: [4]float32{v[3], v[4], v[5], v[6]},
		}
	}
	return placements, skipped
}
