package graph

// Graph owns the top-level nodes of the displayed scene and the registry
// of named bodies.
type Graph struct {
	roots    []*Node
	registry map[string]*Node
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{registry: make(map[string]*Node)}
}

// AddRoot attaches a top-level node.
func (g *Graph) AddRoot(n *Node) {
	if n.parent != nil {
		n.parent.Remove(n)
	}
	g.roots = append(g.roots, n)
}

// Roots returns the top-level nodes. The slice must not be modified.
func (g *Graph) Roots() []*Node { return g.roots }

// Root returns the first top-level node, nil if the graph is empty.
func (g *Graph) Root() *Node {
	if len(g.roots) == 0 {
		return nil
	}
	return g.roots[0]
}

// Register makes n addressable by name. A later registration of the same
// name wins.
func (g *Graph) Register(name string, n *Node) {
	g.registry[name] = n
}

// Lookup returns the node registered under name.
func (g *Graph) Lookup(name string) (*Node, bool) {
	n, ok := g.registry[name]
	return n, ok
}

// RegistrySize returns the number of registered names.
func (g *Graph) RegistrySize() int { return len(g.registry) }

// Clear removes every top-level node and empties the registry.
func (g *Graph) Clear() {
	g.roots = nil
	g.registry = make(map[string]*Node)
}

// NodeCount returns the number of nodes reachable from the roots.
func (g *Graph) NodeCount() int {
	count := 0
	g.Walk(func(*Node) { count++ })
	return count
}

// Walk visits every node depth first, root by root.
func (g *Graph) Walk(fn func(*Node)) {
	for _, r := range g.roots {
		r.Walk(fn)
	}
}

// Stats summarises what the renderer would draw.
type Stats struct {
	Nodes    int
	Visuals  int
	Visible  int
	Custom   int // visuals showing decoded mesh buffers
	Textured int
}

// Stats counts nodes by kind.
func (g *Graph) Stats() Stats {
	var s Stats
	g.Walk(func(n *Node) {
		s.Nodes++
		if n.Kind != KindVisual {
			return
		}
		s.Visuals++
		if n.Visible {
			s.Visible++
		}
		if n.Geometry != nil && n.Geometry.Shape == ShapeBuffers {
			s.Custom++
		}
		if n.Material != nil && n.Material.ColorMap != nil {
			s.Textured++
		}
	})
	return s
}
