// Package graph holds the renderable scene graph: a hierarchy of group and
// visual nodes in renderer space, the name registry used for transform
// updates, and the builder that turns body descriptions into nodes.
//
// The graph is not safe for concurrent use; it is owned by a single loop.
package graph

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/simview/internal/scene"
)

// Kind separates grouping nodes from drawable ones.
type Kind uint8

const (
	KindGroup Kind = iota
	KindVisual
)

// VisualsGroupName names the group that holds a body's visual nodes.
const VisualsGroupName = "Visuals"

// Node is an element of the scene graph.
type Node struct {
	Name string
	Kind Kind

	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3

	Visible     bool
	NeedsUpdate bool

	// Visual nodes only.
	VisualType scene.VisualType
	Geometry   *Geometry
	Material   *Material

	parent   *Node
	children []*Node
}

// NewGroup returns an empty group node with identity transform.
func NewGroup(name string) *Node {
	return &Node{
		Name:     name,
		Kind:     KindGroup,
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
		Visible:  true,
	}
}

// NewVisual returns a drawable node.
func NewVisual(vt scene.VisualType, geom *Geometry, mat *Material) *Node {
	n := NewGroup("")
	n.Kind = KindVisual
	n.VisualType = vt
	n.Geometry = geom
	n.Material = mat
	return n
}

// Parent returns the parent node, nil for roots.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child nodes. The slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// Add attaches child to n, detaching it from any previous parent.
func (n *Node) Add(child *Node) {
	if child.parent != nil {
		child.parent.Remove(child)
	}
	child.parent = n
	n.children = append(n.children, child)
}

// Remove detaches child from n.
func (n *Node) Remove(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// Find returns the first direct child of the given name.
func (n *Node) Find(name string) *Node {
	for _, c := range n.children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Walk visits n and its descendants depth first.
func (n *Node) Walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.children {
		c.Walk(fn)
	}
}

// LocalMatrix returns T * R * S.
func (n *Node) LocalMatrix() mgl32.Mat4 {
	t := mgl32.Translate3D(n.Position[0], n.Position[1], n.Position[2])
	s := mgl32.Scale3D(n.Scale[0], n.Scale[1], n.Scale[2])
	return t.Mul4(n.Rotation.Mat4()).Mul4(s)
}

// WorldMatrix composes local matrices from the root down.
func (n *Node) WorldMatrix() mgl32.Mat4 {
	if n.parent == nil {
		return n.LocalMatrix()
	}
	return n.parent.WorldMatrix().Mul4(n.LocalMatrix())
}

// WorldRotation composes rotations from the root down.
func (n *Node) WorldRotation() mgl32.Quat {
	if n.parent == nil {
		return n.Rotation
	}
	return n.parent.WorldRotation().Mul(n.Rotation)
}

// WorldPosition returns the node origin in world space.
func (n *Node) WorldPosition() mgl32.Vec3 {
	return n.WorldMatrix().Col(3).Vec3()
}

// WorldToLocal maps a world-space point into n's local space.
func (n *Node) WorldToLocal(p mgl32.Vec3) mgl32.Vec3 {
	inv := n.WorldMatrix().Inv()
	return inv.Mul4x1(p.Vec4(1)).Vec3()
}

// SetWorldPlacement assigns the local transform that puts n at the given
// world position and rotation, keeping its scale. Without a parent the
// placement is assigned directly.
func (n *Node) SetWorldPlacement(pos mgl32.Vec3, rot mgl32.Quat) {
	if n.parent == nil {
		n.Position = pos
		n.Rotation = rot
		return
	}
	n.Position = n.parent.WorldToLocal(pos)
	n.Rotation = n.parent.WorldRotation().Inverse().Mul(rot).Normalize()
}
