package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/simview/internal/assets"
	"github.com/Faultbox/simview/internal/logger"
	"github.com/Faultbox/simview/internal/loop"
	"github.com/Faultbox/simview/internal/network"
	"github.com/Faultbox/simview/internal/scene"
)

// Source is the polling server interface.
type Source interface {
	assets.Fetcher
	SceneID(ctx context.Context) (string, error)
	SceneData(ctx context.Context) (*scene.Description, error)
	SceneState(ctx context.Context) (*scene.StateSnapshot, error)
}

// PollConfig holds the poll cadences and retry bounds.
type PollConfig struct {
	IdentityInterval time.Duration
	StateInterval    time.Duration
	RetryInitial     time.Duration
	RetryMax         time.Duration
}

// Poller runs two timer chains against a Source: a low-frequency identity
// check that rebuilds the scene when the token changes, and a high-frequency
// state poll that applies transform deltas while the session is READY. Each
// chain re-arms only after its previous cycle, including the fetch, has
// completed.
type Poller struct {
	session *Session
	source  Source
	cfg     PollConfig
	log     *zap.Logger

	identityTimer *loop.Timer
	stateTimer    *loop.Timer
	identityRetry *network.Backoff
	stateRetry    *network.Backoff

	// epoch invalidates state polls in flight across a rebuild.
	epoch    uint64
	running  bool
	rebuilds int
	applied  int
}

// NewPoller creates a poller for s fetching from src.
func NewPoller(s *Session, src Source, cfg PollConfig) *Poller {
	return &Poller{
		session:       s,
		source:        src,
		cfg:           cfg,
		log:           logger.Named("poll"),
		identityRetry: network.NewBackoff(cfg.RetryInitial, cfg.RetryMax),
		stateRetry:    network.NewBackoff(cfg.RetryInitial, cfg.RetryMax),
	}
}

// Start issues the first identity check. Must be called on the loop.
func (p *Poller) Start() {
	if p.running {
		return
	}
	p.running = true
	p.log.Info("polling started",
		zap.Duration("identity_interval", p.cfg.IdentityInterval),
		zap.Duration("state_interval", p.cfg.StateInterval))
	p.pollIdentity()
}

// Stop cancels both chains. Completions still in flight are ignored.
func (p *Poller) Stop() {
	p.running = false
	p.epoch++
	p.identityTimer.Stop()
	p.stateTimer.Stop()
	p.identityTimer, p.stateTimer = nil, nil
}

// Rebuilds returns the number of completed scene rebuilds.
func (p *Poller) Rebuilds() int { return p.rebuilds }

// Applied returns the number of node updates applied from state polls.
func (p *Poller) Applied() int { return p.applied }

// StateTimer returns the pending state-poll timer, nil when none is armed.
func (p *Poller) StateTimer() *loop.Timer { return p.stateTimer }

func (p *Poller) armIdentity(failed bool) {
	if !p.running {
		return
	}
	d := p.cfg.IdentityInterval
	if failed {
		d = p.identityRetry.Next()
	} else {
		p.identityRetry.Reset()
	}
	p.identityTimer = p.session.loop.AfterFunc(d, p.pollIdentity)
}

func (p *Poller) armState(failed bool) {
	if !p.running || p.session.State() != StateReady {
		return
	}
	d := p.cfg.StateInterval
	if failed {
		d = p.stateRetry.Next()
	} else {
		p.stateRetry.Reset()
	}
	p.stateTimer = p.session.loop.AfterFunc(d, p.pollState)
}

func (p *Poller) pollIdentity() {
	p.identityTimer = nil
	loop.Async(p.session.loop, p.source.SceneID, func(id string, err error) {
		if !p.running {
			return
		}
		if err != nil {
			p.log.Warn("scene id poll failed", zap.Error(err))
			p.armIdentity(true)
			return
		}
		if id == p.session.SceneID() && p.session.State() != StateUnloaded {
			p.armIdentity(false)
			return
		}
		p.rebuild(id)
	})
}

func (p *Poller) rebuild(id string) {
	p.stateTimer.Stop()
	p.stateTimer = nil
	p.epoch++

	prev := p.session.State()
	p.session.setState(StateLoading)
	p.log.Info("scene identity changed",
		zap.String("from", p.session.SceneID()),
		zap.String("to", id))

	loop.Async(p.session.loop, p.source.SceneData, func(desc *scene.Description, err error) {
		if !p.running {
			return
		}
		if err != nil {
			p.log.Warn("scene data fetch failed, keeping current scene", zap.Error(err))
			p.session.setState(prev)
			p.armState(false)
			p.armIdentity(true)
			return
		}

		p.session.Load(desc, id)
		p.rebuilds++
		p.armState(false)
		p.armIdentity(false)
	})
}

func (p *Poller) pollState() {
	p.stateTimer = nil
	epoch := p.epoch
	loop.Async(p.session.loop, p.source.SceneState, func(snap *scene.StateSnapshot, err error) {
		if !p.running || epoch != p.epoch {
			return
		}
		if err != nil {
			p.log.Warn("scene state poll failed", zap.Error(err))
			p.armState(true)
			return
		}

		placements, skipped := snap.Placements()
		if len(skipped) > 0 {
			p.log.Warn("skipping malformed state entries", zap.Strings("names", skipped))
		}
		p.applied += p.session.ApplyTransforms(PlacementUpdates(placements), FrameScene)
		p.armState(false)
	})
}
