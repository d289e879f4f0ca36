// Package coords maps transforms between simulator space and renderer space.
//
// The simulator is left-handed (x right, y up, z forward); the renderer is
// right-handed (x right, y up, z towards the viewer). The change of basis is
// the reflection z -> -z. Positions are polar vectors and flip z; quaternion
// vector parts are axial and flip x and y instead, so relative rotations
// survive the conversion. The mapping is an involution: applying it twice
// yields the input.
package coords

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/simview/internal/scene"
)

// Position converts a simulator-space position to renderer space.
func Position(p [3]float32) mgl32.Vec3 {
	return mgl32.Vec3{p[0], p[1], -p[2]}
}

// Quaternion converts a scalar-first simulator-space quaternion to renderer space.
func Quaternion(q [4]float32) mgl32.Quat {
	return mgl32.Quat{W: q[0], V: mgl32.Vec3{-q[1], -q[2], q[3]}}
}

// PositionToSim converts a renderer-space position back to simulator space.
func PositionToSim(v mgl32.Vec3) [3]float32 {
	return [3]float32{v[0], v[1], -v[2]}
}

// QuaternionToSim converts a renderer-space quaternion back to scalar-first
// simulator space.
func QuaternionToSim(q mgl32.Quat) [4]float32 {
	return [4]float32{q.W, -q.V[0], -q.V[1], q.V[2]}
}

// Scale converts a simulator scale for a visual of the given type.
//
// Renderer primitives do not share the simulator's unit extents: the unit
// cylinder has diameter 1 and height 1 centred on the origin, the unit box
// spans [-0.5, 0.5] per axis while the simulator gives half extents.
func Scale(t scene.VisualType, s [3]float32) mgl32.Vec3 {
	switch t {
	case scene.VisualCylinder:
		return mgl32.Vec3{0.5 * s[0], 2 * s[1], 0.5 * s[2]}
	case scene.VisualCube:
		return mgl32.Vec3{2 * mgl32.Abs(s[0]), 2 * mgl32.Abs(s[1]), 2 * mgl32.Abs(s[2])}
	default:
		return mgl32.Vec3{s[0], s[1], s[2]}
	}
}

// BodyScale converts a body scale. Bodies have no primitive so the scale is
// only re-expressed as a renderer vector.
func BodyScale(s [3]float32) mgl32.Vec3 {
	return mgl32.Vec3{s[0], s[1], s[2]}
}

// Transform is a renderer-space placement.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

// Body converts a body transform.
func Body(t scene.Transform) Transform {
	return Transform{
		Position: Position(t.Position),
		Rotation: Quaternion(t.Rotation),
		Scale:    BodyScale(t.Scale),
	}
}

// Visual converts a visual transform, applying the type-dependent scale rule.
func Visual(vt scene.VisualType, t scene.Transform) Transform {
	return Transform{
		Position: Position(t.Position),
		Rotation: Quaternion(t.Rotation),
		Scale:    Scale(vt, t.Scale),
	}
}
