// Package viewer wires configuration, transport, session and renderer into
// the running application.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Faultbox/simview/internal/assets"
	"github.com/Faultbox/simview/internal/config"
	"github.com/Faultbox/simview/internal/export"
	"github.com/Faultbox/simview/internal/logger"
	"github.com/Faultbox/simview/internal/loop"
	"github.com/Faultbox/simview/internal/network"
	"github.com/Faultbox/simview/internal/render"
	"github.com/Faultbox/simview/internal/session"
)

// Viewer is the application instance.
type Viewer struct {
	cfg     *config.Config
	loop    *loop.Loop
	client  *network.Client
	session *session.Session
	driver  *render.Driver
	screen  *render.Headless
	log     *zap.Logger

	poller  *session.Poller
	channel *network.Channel

	exportTimer *loop.Timer

	mu          sync.Mutex
	exported    string
	exports     int
	exportedGen uint64
}

// New creates a viewer for cfg.
func New(cfg *config.Config) (*Viewer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	v := &Viewer{
		cfg:    cfg,
		loop:   loop.New(),
		client: network.NewClient(cfg.Server.BaseURL, cfg.Server.RequestTimeout),
		screen: render.NewHeadless(),
		log:    logger.Named("viewer"),
	}
	v.session = session.New(v.loop, v.client)
	v.driver = render.NewDriver(v.loop, v.session.Graph(), v.screen, render.Config{
		FPS:           cfg.Render.FPS,
		StatsInterval: cfg.Render.StatsInterval,
	})
	v.session.OnResolved(v.resolved)
	v.session.OnReady(v.ready)

	switch cfg.Sync.Transport {
	case config.TransportPoll:
		v.poller = session.NewPoller(v.session, v.client, session.PollConfig{
			IdentityInterval: cfg.Sync.IdentityInterval,
			StateInterval:    cfg.Sync.StateInterval,
			RetryInitial:     cfg.Sync.RetryInitial,
			RetryMax:         cfg.Sync.RetryMax,
		})
	case config.TransportPush:
		frame, err := session.ParseFrame(cfg.Sync.PushFrame)
		if err != nil {
			return nil, err
		}
		v.channel = network.NewChannel(cfg.Server.PushURL, v.loop,
			network.NewBackoff(cfg.Sync.RetryInitial, cfg.Sync.RetryMax))
		if err := session.BindPush(v.session, v.channel, frame); err != nil {
			return nil, fmt.Errorf("binding push handlers: %w", err)
		}
	}

	v.log.Info("viewer initialized",
		zap.String("server", cfg.Server.BaseURL),
		zap.String("transport", cfg.Sync.Transport))
	return v, nil
}

// Session returns the scene session. Use it from the loop only.
func (v *Viewer) Session() *session.Session { return v.session }

// Loop returns the event loop.
func (v *Viewer) Loop() *loop.Loop { return v.loop }

// Exported returns the path of the written snapshot, empty until written.
func (v *Viewer) Exported() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.exported
}

// Exports returns how many snapshots have been written and the generation
// of the last one.
func (v *Viewer) Exports() (count int, gen uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.exports, v.exportedGen
}

// Run drives the viewer until ctx is done.
func (v *Viewer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	v.loop.Post(func() {
		v.driver.Start()
		if v.poller != nil {
			v.poller.Start()
		}
	})

	var wg sync.WaitGroup
	if v.channel != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = v.channel.Run(ctx)
		}()
	}

	v.log.Info("starting event loop")
	err := v.loop.Run(ctx)
	cancel()
	wg.Wait()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close logs the final counters.
func (v *Viewer) Close() {
	v.log.Info("closing viewer",
		zap.Int("frames", v.driver.Frames()),
		zap.Int("uploads", v.screen.Uploads()))
}

func (v *Viewer) resolved(r assets.Result) {
	if r.Stale() {
		return
	}
	if v.log.Core().Enabled(zapcore.DebugLevel) {
		v.log.Debug("manifest after resolve\n" + spew.Sdump(v.session.Manifest()))
	}
}

// ready arms the export once the scene has settled. Another batch or object
// arriving before the timer fires leaves the scene unsettled and the export
// waits for the next call.
func (v *Viewer) ready(gen uint64, err error) {
	if err != nil {
		v.log.Warn("scene settled with asset errors", zap.Uint64("generation", gen), zap.Error(err))
	}
	if v.cfg.Export.GLTFPath == "" {
		return
	}
	v.exportTimer.Stop()
	v.exportTimer = v.loop.AfterFunc(v.cfg.Export.Settle, func() {
		v.exportTimer = nil
		if !v.session.Settled() || v.session.Generation() != gen {
			return
		}
		v.export(gen)
	})
}

func (v *Viewer) export(gen uint64) {
	path := v.cfg.Export.GLTFPath
	if err := export.Save(v.session.Graph(), path, v.cfg.Export.Binary); err != nil {
		v.log.Error("export failed", zap.String("path", path), zap.Error(err))
		return
	}
	v.mu.Lock()
	v.exported = path
	v.exports++
	v.exportedGen = gen
	v.mu.Unlock()
	v.log.Info("scene exported",
		zap.String("path", path),
		zap.Uint64("generation", gen),
		zap.Int("nodes", v.session.Graph().NodeCount()))
}
