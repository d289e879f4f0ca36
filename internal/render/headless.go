package render

import (
	"github.com/Faultbox/simview/internal/graph"
)

// Headless is a Renderer without a GPU. It consumes refresh flags the way an
// uploader would and records what the last frame contained.
type Headless struct {
	last      graph.Stats
	uploads   int
	materials map[*graph.Material]int
}

// NewHeadless returns an empty headless renderer.
func NewHeadless() *Headless {
	return &Headless{materials: make(map[*graph.Material]int)}
}

// Draw implements Renderer.
func (h *Headless) Draw(g *graph.Graph) error {
	seen := make(map[*graph.Material]int, len(h.materials))
	g.Walk(func(n *graph.Node) {
		if n.NeedsUpdate {
			h.uploads++
			n.NeedsUpdate = false
		}
		if m := n.Material; m != nil {
			if _, done := seen[m]; done {
				return
			}
			if v, ok := h.materials[m]; !ok || v != m.Version {
				h.uploads++
			}
			seen[m] = m.Version
		}
	})
	h.materials = seen
	h.last = g.Stats()
	return nil
}

// Last returns the statistics of the most recent frame.
func (h *Headless) Last() graph.Stats { return h.last }

// Uploads returns the number of node and material refreshes performed.
func (h *Headless) Uploads() int { return h.uploads }
