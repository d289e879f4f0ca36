package coords

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/simview/internal/scene"
)

const tolerance = 1e-5

func randomUnitQuat(r *rand.Rand) [4]float32 {
	axis := mgl32.Vec3{r.Float32()*2 - 1, r.Float32()*2 - 1, r.Float32()*2 - 1}.Normalize()
	q := mgl32.QuatRotate(r.Float32()*2*math.Pi, axis)
	return [4]float32{q.W, q.V[0], q.V[1], q.V[2]}
}

func TestRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 100; i++ {
		p := [3]float32{r.Float32() * 100, r.Float32()*100 - 50, r.Float32() * -30}
		q := randomUnitQuat(r)

		gotP := PositionToSim(Position(p))
		gotQ := QuaternionToSim(Quaternion(q))

		for k := 0; k < 3; k++ {
			if math.Abs(float64(gotP[k]-p[k])) > tolerance {
				t.Fatalf("position round trip: got %v, want %v", gotP, p)
			}
		}
		for k := 0; k < 4; k++ {
			if math.Abs(float64(gotQ[k]-q[k])) > tolerance {
				t.Fatalf("quaternion round trip: got %v, want %v", gotQ, q)
			}
		}
	}
}

// Rotating a converted point by a converted quaternion must equal converting
// the rotated point: position and quaternion use the same convention.
func TestRotationConsistency(t *testing.T) {
	r := rand.New(rand.NewSource(11))

	for i := 0; i < 100; i++ {
		p := [3]float32{r.Float32()*2 - 1, r.Float32()*2 - 1, r.Float32()*2 - 1}
		q := randomUnitQuat(r)

		simQ := mgl32.Quat{W: q[0], V: mgl32.Vec3{q[1], q[2], q[3]}}
		rotatedSim := simQ.Rotate(mgl32.Vec3{p[0], p[1], p[2]})

		want := Position([3]float32{rotatedSim[0], rotatedSim[1], rotatedSim[2]})
		got := Quaternion(q).Rotate(Position(p))

		if !got.ApproxEqualThreshold(want, 1e-4) {
			t.Fatalf("rotation inconsistency: got %v, want %v", got, want)
		}
	}
}

func TestComposition(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	a, b := randomUnitQuat(r), randomUnitQuat(r)

	qa := mgl32.Quat{W: a[0], V: mgl32.Vec3{a[1], a[2], a[3]}}
	qb := mgl32.Quat{W: b[0], V: mgl32.Vec3{b[1], b[2], b[3]}}
	ab := qa.Mul(qb)

	got := Quaternion(a).Mul(Quaternion(b))
	want := Quaternion([4]float32{ab.W, ab.V[0], ab.V[1], ab.V[2]})
	if !got.ApproxEqualThreshold(want, 1e-5) {
		t.Errorf("conversion should commute with composition: got %v, want %v", got, want)
	}
}

func TestScale(t *testing.T) {
	tests := []struct {
		name string
		typ  scene.VisualType
		in   [3]float32
		want mgl32.Vec3
	}{
		{"cylinder", scene.VisualCylinder, [3]float32{0.2, 0.5, 0.2}, mgl32.Vec3{0.1, 1, 0.1}},
		{"cube", scene.VisualCube, [3]float32{0.5, -1, 2}, mgl32.Vec3{1, 2, 4}},
		{"sphere", scene.VisualSphere, [3]float32{3, 3, 3}, mgl32.Vec3{3, 3, 3}},
		{"plane", scene.VisualPlane, [3]float32{-1, 2, 0}, mgl32.Vec3{-1, 2, 0}},
		{"capsule", scene.VisualCapsule, [3]float32{1, 2, 3}, mgl32.Vec3{1, 2, 3}},
		{"mesh", scene.VisualMesh, [3]float32{1, 1, -1}, mgl32.Vec3{1, 1, -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Scale(tt.typ, tt.in)
			if !got.ApproxEqualThreshold(tt.want, tolerance) {
				t.Errorf("Scale(%v, %v) = %v, want %v", tt.typ, tt.in, got, tt.want)
			}
		})
	}
}

func TestVisualTransform(t *testing.T) {
	tr := Visual(scene.VisualCube, scene.Transform{
		Position: [3]float32{1, 2, 3},
		Rotation: [4]float32{1, 0, 0, 0},
		Scale:    [3]float32{1, 1, 1},
	})

	if !tr.Position.ApproxEqualThreshold(mgl32.Vec3{1, 2, -3}, tolerance) {
		t.Errorf("unexpected position %v", tr.Position)
	}
	if !tr.Rotation.ApproxEqualThreshold(mgl32.QuatIdent(), tolerance) {
		t.Errorf("identity rotation should stay identity, got %v", tr.Rotation)
	}
	if !tr.Scale.ApproxEqualThreshold(mgl32.Vec3{2, 2, 2}, tolerance) {
		t.Errorf("cube scale should double, got %v", tr.Scale)
	}
}
