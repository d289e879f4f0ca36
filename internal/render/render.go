// Package render drives the external renderer: it redraws the committed
// graph once per frame from the loop, so a frame never observes a half
// applied mutation.
package render

import (
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/simview/internal/graph"
	"github.com/Faultbox/simview/internal/logger"
	"github.com/Faultbox/simview/internal/loop"
)

// Renderer draws a graph. Draw is called on the loop and must not block.
type Renderer interface {
	Draw(g *graph.Graph) error
}

// Config holds frame driver settings.
type Config struct {
	FPS           int
	StatsInterval time.Duration
}

// Driver is a self-rescheduling loop task calling a Renderer every frame.
type Driver struct {
	loop     *loop.Loop
	graph    *graph.Graph
	renderer Renderer
	cfg      Config
	log      *zap.Logger

	timer   *loop.Timer
	running bool

	frames     int
	errors     int
	window     int
	windowFrom time.Time
}

// NewDriver creates a driver drawing g with r.
func NewDriver(l *loop.Loop, g *graph.Graph, r Renderer, cfg Config) *Driver {
	if cfg.FPS <= 0 {
		cfg.FPS = 60
	}
	return &Driver{
		loop:     l,
		graph:    g,
		renderer: r,
		cfg:      cfg,
		log:      logger.Named("render"),
	}
}

// Start schedules the first frame. Must be called on the loop.
func (d *Driver) Start() {
	if d.running {
		return
	}
	d.running = true
	d.windowFrom = time.Now()
	d.log.Info("starting frame loop", zap.Int("fps", d.cfg.FPS))
	d.frame()
}

// Stop cancels the next frame. Must be called on the loop.
func (d *Driver) Stop() {
	d.running = false
	d.timer.Stop()
	d.timer = nil
}

// Frames returns the number of frames drawn.
func (d *Driver) Frames() int { return d.frames }

func (d *Driver) frame() {
	if !d.running {
		return
	}
	if err := d.renderer.Draw(d.graph); err != nil {
		d.errors++
		d.log.Warn("draw failed", zap.Error(err))
	}
	d.frames++
	d.window++

	if d.cfg.StatsInterval > 0 && time.Since(d.windowFrom) >= d.cfg.StatsInterval {
		st := d.graph.Stats()
		elapsed := time.Since(d.windowFrom).Seconds()
		d.log.Debug("frame stats",
			zap.Float64("fps", float64(d.window)/elapsed),
			zap.Int("nodes", st.Nodes),
			zap.Int("visible", st.Visible),
			zap.Int("custom", st.Custom),
			zap.Int("textured", st.Textured),
			zap.Int("errors", d.errors))
		d.window = 0
		d.windowFrom = time.Now()
	}

	d.timer = d.loop.AfterFunc(time.Second/time.Duration(d.cfg.FPS), d.frame)
}
