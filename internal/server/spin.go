package server

import (
	"context"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"github.com/Faultbox/simview/internal/logger"
	"github.com/Faultbox/simview/internal/network/protocol"
	"github.com/Faultbox/simview/internal/scene"
)

// Animator spins the direct children of the scene root about the simulator
// z axis, publishing each step to /scene_state and to the hub. It stands in
// for a running simulation.
type Animator struct {
	store    *Store
	hub      *Hub
	speed    float32 // radians per second
	interval time.Duration
	log      *zap.Logger

	elapsed time.Duration
}

// NewAnimator creates an animator. hub may be nil.
func NewAnimator(st *Store, hub *Hub, speed float32, interval time.Duration) *Animator {
	return &Animator{
		store:    st,
		hub:      hub,
		speed:    speed,
		interval: interval,
		log:      logger.Named("spin"),
	}
}

// Run steps the animation every interval until ctx is done.
func (a *Animator) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.Step(a.interval); err != nil {
				a.log.Warn("broadcast failed", zap.Error(err))
			}
		}
	}
}

// Step advances the animation by dt and publishes the new placements.
func (a *Animator) Step(dt time.Duration) error {
	a.elapsed += dt
	angle := float32(math.Mod(a.elapsed.Seconds()*float64(a.speed), 2*math.Pi))
	spin := mgl32.QuatRotate(angle, mgl32.Vec3{0, 0, 1})

	root := &a.store.Bundle().Scene.Root
	state := make(map[string][]float32, len(root.Children))
	transforms := make(protocol.Transforms, len(root.Children))
	for i := range root.Children {
		child := &root.Children[i]
		t := child.Trans
		r := t.Rotation
		q := spin.Mul(mgl32.Quat{W: r[0], V: mgl32.Vec3{r[1], r[2], r[3]}}).Normalize()
		t.Rotation = [4]float32{q.W, q.V[0], q.V[1], q.V[2]}

		p := t.Position
		state[child.Name] = []float32{p[0], p[1], p[2], q.W, q.V[0], q.V[1], q.V[2]}
		transforms[child.Name] = t
	}

	a.store.SetState(state)
	if a.hub == nil || len(transforms) == 0 {
		return nil
	}
	return a.hub.Broadcast(transforms)
}

// Placement returns the current placement published for name.
func (a *Animator) Placement(name string) (scene.Placement, bool) {
	placements, _ := a.store.State().Placements()
	p, ok := placements[name]
	return p, ok
}
