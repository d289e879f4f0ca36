package session

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/simview/internal/coords"
	"github.com/Faultbox/simview/internal/graph"
	"github.com/Faultbox/simview/internal/scene"
)

// Frame names the reference frame transform updates are expressed in.
type Frame int

const (
	// FrameLocal updates are assigned to the node's local transform as is.
	FrameLocal Frame = iota
	// FrameScene updates are relative to the scene root; they are composed
	// into a world placement and re-expressed in the node's parent frame.
	FrameScene
)

func (f Frame) String() string {
	switch f {
	case FrameLocal:
		return "local"
	case FrameScene:
		return "scene"
	}
	return fmt.Sprintf("Frame(%d)", int(f))
}

// ParseFrame maps a configuration name to a Frame.
func ParseFrame(name string) (Frame, error) {
	switch strings.ToLower(name) {
	case "local", "":
		return FrameLocal, nil
	case "scene":
		return FrameScene, nil
	}
	return 0, fmt.Errorf("unknown frame %q", name)
}

// Update is a simulator-space placement for one named body.
type Update struct {
	Position [3]float32
	Rotation [4]float32 // w, x, y, z
	Scale    *[3]float32
}

// PlacementUpdates converts snapshot placements into updates that keep the
// current scale.
func PlacementUpdates(p map[string]scene.Placement) map[string]Update {
	out := make(map[string]Update, len(p))
	for name, pl := range p {
		out[name] = Update{Position: pl.Position, Rotation: pl.Rotation}
	}
	return out
}

// TransformUpdates converts full transforms into updates.
func TransformUpdates(t map[string]scene.Transform) map[string]Update {
	out := make(map[string]Update, len(t))
	for name, tr := range t {
		scale := tr.Scale
		out[name] = Update{Position: tr.Position, Rotation: tr.Rotation, Scale: &scale}
	}
	return out
}

// ApplyTransforms converts each update to renderer space and assigns it to
// the registered node of that name. Unknown names are skipped. Nodes are
// visited in graph order, parents before descendants, so a scene frame
// placement is computed against the parent's final pose. It returns the
// number of nodes updated.
func (s *Session) ApplyTransforms(updates map[string]Update, frame Frame) int {
	if len(updates) == 0 {
		return 0
	}

	var rootPos mgl32.Vec3
	rootRot := mgl32.QuatIdent()
	if root := s.graph.Root(); root != nil && frame == FrameScene {
		rootPos = root.WorldPosition()
		rootRot = root.WorldRotation()
	}

	applied := 0
	s.graph.Walk(func(n *graph.Node) {
		u, ok := updates[n.Name]
		if !ok {
			return
		}
		// Visual nodes may share a body's name; only the registered node moves.
		if reg, ok := s.graph.Lookup(n.Name); !ok || reg != n {
			return
		}

		pos := coords.Position(u.Position)
		rot := coords.Quaternion(u.Rotation)
		switch frame {
		case FrameScene:
			n.SetWorldPlacement(pos.Add(rootPos), rot.Mul(rootRot).Normalize())
		default:
			n.Position = pos
			n.Rotation = rot
		}
		if u.Scale != nil {
			n.Scale = coords.BodyScale(*u.Scale)
		}
		applied++
	})
	return applied
}
