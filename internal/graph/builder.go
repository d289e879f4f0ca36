package graph

import (
	"github.com/Faultbox/simview/internal/coords"
	"github.com/Faultbox/simview/internal/scene"
)

var defaultColor = [3]float32{1, 1, 1}

// Requests accumulates nodes waiting for assets, keyed by asset name.
type Requests struct {
	Meshes    map[string][]*Node
	Materials map[string][]*Node
}

// NewRequests returns an empty accumulator.
func NewRequests() *Requests {
	return &Requests{
		Meshes:    make(map[string][]*Node),
		Materials: make(map[string][]*Node),
	}
}

// Empty reports whether nothing is waiting.
func (r *Requests) Empty() bool {
	return len(r.Meshes) == 0 && len(r.Materials) == 0
}

// Merge moves all entries of other into r.
func (r *Requests) Merge(other *Requests) {
	for name, nodes := range other.Meshes {
		r.Meshes[name] = append(r.Meshes[name], nodes...)
	}
	for name, nodes := range other.Materials {
		r.Materials[name] = append(r.Materials[name], nodes...)
	}
}

// Builder converts body descriptions into nodes registered on a graph.
type Builder struct {
	graph *Graph
}

// NewBuilder returns a builder that registers bodies on g.
func NewBuilder(g *Graph) *Builder {
	return &Builder{graph: g}
}

// Build converts body and its descendants. Descendants are registered by
// name; the returned node is not registered and not attached anywhere.
// Nodes awaiting assets are added to req.
func (b *Builder) Build(body *scene.Body, req *Requests) *Node {
	node := NewGroup(body.Name)
	t := coords.Body(body.Trans)
	node.Position, node.Rotation, node.Scale = t.Position, t.Rotation, t.Scale

	visuals := NewGroup(VisualsGroupName)
	node.Add(visuals)

	for i := range body.Visuals {
		visuals.Add(b.buildVisual(&body.Visuals[i], req))
	}

	for i := range body.Children {
		child := &body.Children[i]
		childNode := b.Build(child, req)
		node.Add(childNode)
		b.graph.Register(child.Name, childNode)
	}

	return node
}

func (b *Builder) buildVisual(v *scene.Visual, req *Requests) *Node {
	color := defaultColor
	if v.Color != nil {
		color = *v.Color
	}

	n := NewVisual(v.Type, DefaultGeometry(v.Type), NewPlaceholderMaterial(color))
	t := coords.Visual(v.Type, v.Trans)
	n.Position, n.Rotation, n.Scale = t.Position, t.Rotation, t.Scale

	if v.Type == scene.VisualMesh {
		n.Name = v.Mesh
		n.Visible = false
		req.Meshes[v.Mesh] = append(req.Meshes[v.Mesh], n)
	}
	if v.Material != "" {
		req.Materials[v.Material] = append(req.Materials[v.Material], n)
	}
	return n
}
