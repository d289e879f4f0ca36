package render

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/simview/internal/graph"
	"github.com/Faultbox/simview/internal/logger"
	"github.com/Faultbox/simview/internal/loop"
	"github.com/Faultbox/simview/internal/scene"
)

func startLoop(t *testing.T) *loop.Loop {
	t.Helper()
	logger.InitNop()
	l := loop.New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func sampleGraph() *graph.Graph {
	g := graph.New()
	root := graph.NewGroup("root")
	mat := graph.NewPlaceholderMaterial([3]float32{1, 1, 1})
	for i := 0; i < 3; i++ {
		v := graph.NewVisual(scene.VisualSphere, graph.DefaultGeometry(scene.VisualSphere), mat)
		v.NeedsUpdate = true
		root.Add(v)
	}
	g.AddRoot(root)
	return g
}

func TestHeadlessConsumesRefreshFlags(t *testing.T) {
	g := sampleGraph()
	h := NewHeadless()

	require.NoError(t, h.Draw(g))
	// Three flagged nodes plus one shared material.
	assert.Equal(t, 4, h.Uploads())
	assert.Equal(t, 3, h.Last().Visuals)

	require.NoError(t, h.Draw(g))
	assert.Equal(t, 4, h.Uploads())

	mat := g.Root().Children()[0].Material
	mat.SetColorMap(&graph.Texture{Name: "t"})
	require.NoError(t, h.Draw(g))
	assert.Equal(t, 5, h.Uploads())
	assert.Equal(t, 3, h.Last().Textured)
}

type countingRenderer struct {
	frames int
	fail   bool
}

func (c *countingRenderer) Draw(*graph.Graph) error {
	c.frames++
	if c.fail {
		return errors.New("device lost")
	}
	return nil
}

func TestDriverRedrawsUntilStopped(t *testing.T) {
	l := startLoop(t)
	r := &countingRenderer{fail: true}
	d := NewDriver(l, sampleGraph(), r, Config{FPS: 500, StatsInterval: time.Millisecond})

	require.NoError(t, l.Do(d.Start))

	deadline := time.Now().Add(2 * time.Second)
	for {
		var n int
		require.NoError(t, l.Do(func() { n = d.Frames() }))
		if n >= 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("driver stalled")
		}
		time.Sleep(2 * time.Millisecond)
	}

	var stopped int
	require.NoError(t, l.Do(func() {
		d.Stop()
		stopped = d.Frames()
	}))
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, l.Do(func() {
		assert.Equal(t, stopped, d.Frames())
		assert.Equal(t, stopped, r.frames)
	}))
}
