// Package session owns the synchronized scene: the graph and its registry,
// the asset manifest, the generation counter and the load state. The poll
// and push transports both drive a Session; all of its methods must be
// called on the loop.
package session

import (
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/simview/internal/assets"
	"github.com/Faultbox/simview/internal/graph"
	"github.com/Faultbox/simview/internal/logger"
	"github.com/Faultbox/simview/internal/loop"
	"github.com/Faultbox/simview/internal/scene"
)

// State is the load state of the session.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "UNLOADED"
	case StateLoading:
		return "LOADING"
	case StateReady:
		return "READY"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Session is the single owner of the displayed scene.
type Session struct {
	loop     *loop.Loop
	graph    *graph.Graph
	builder  *graph.Builder
	resolver *assets.Resolver
	manifest *scene.Manifest
	parked   *graph.Requests
	log      *zap.Logger

	generation uint64
	state      State
	sceneID    string

	listeners []func(assets.Result)

	// Outstanding resolves of the current generation and their combined
	// failures, reported once the count drops to zero.
	pending        int
	readyErr       error
	readyListeners []func(gen uint64, err error)
}

// New creates an empty session resolving assets through f.
func New(l *loop.Loop, f assets.Fetcher) *Session {
	s := &Session{
		loop:     l,
		graph:    graph.New(),
		manifest: scene.NewManifest(),
		parked:   graph.NewRequests(),
		log:      logger.Named("session"),
	}
	s.builder = graph.NewBuilder(s.graph)
	s.resolver = assets.NewResolver(l, f, s.Generation)
	return s
}

// Graph returns the displayed graph.
func (s *Session) Graph() *graph.Graph { return s.graph }

// Loop returns the loop the session runs on.
func (s *Session) Loop() *loop.Loop { return s.loop }

// Generation returns the counter bumped on every rebuild or reset.
func (s *Session) Generation() uint64 { return s.generation }

// State returns the load state.
func (s *Session) State() State { return s.state }

// SceneID returns the identity token of the last applied scene.
func (s *Session) SceneID() string { return s.sceneID }

// Manifest returns the asset manifest of the current generation.
func (s *Session) Manifest() *scene.Manifest { return s.manifest }

// Resolver returns the asset resolver.
func (s *Session) Resolver() *assets.Resolver { return s.resolver }

// OnResolved registers fn to be called after each asset batch settles.
func (s *Session) OnResolved(fn func(assets.Result)) {
	s.listeners = append(s.listeners, fn)
}

// OnReady registers fn to be called each time the current generation becomes
// settled: every asset batch started for it has completed and no request is
// parked. err combines the failures of the batches since the previous call.
// In push mode a growing scene becomes settled more than once.
func (s *Session) OnReady(fn func(gen uint64, err error)) {
	s.readyListeners = append(s.readyListeners, fn)
}

// Settled reports whether the scene is READY with no asset work outstanding.
func (s *Session) Settled() bool {
	return s.state == StateReady && s.pending == 0 && s.Parked() == 0
}

// Pending returns the number of asset batches still running for the
// current generation.
func (s *Session) Pending() int { return s.pending }

func (s *Session) setState(st State) {
	if st == s.state {
		return
	}
	s.log.Debug("state change", zap.Stringer("from", s.state), zap.Stringer("to", st))
	s.state = st
}

// Reset removes the whole graph, forgets the manifest and parked requests,
// and starts a new generation. Pending asset completions are discarded.
func (s *Session) Reset() {
	s.graph.Clear()
	s.manifest = scene.NewManifest()
	s.parked = graph.NewRequests()
	s.newGeneration()
	s.sceneID = ""
	s.setState(StateUnloaded)
	s.log.Info("scene reset", zap.Uint64("generation", s.generation))
}

// Load replaces the graph with desc, records id as the applied identity and
// starts resolving its assets. The session is READY on return; placeholders
// are drawn until assets arrive.
func (s *Session) Load(desc *scene.Description, id string) {
	s.graph.Clear()
	s.parked = graph.NewRequests()
	s.newGeneration()
	s.manifest = desc.Manifest()

	req := graph.NewRequests()
	root := s.builder.Build(&desc.Root, req)
	s.graph.AddRoot(root)

	s.sceneID = id
	s.setState(StateReady)
	s.log.Info("scene loaded",
		zap.String("id", id),
		zap.Uint64("generation", s.generation),
		zap.Int("bodies", s.graph.RegistrySize()),
		zap.Int("nodes", s.graph.NodeCount()),
		zap.Int("meshes", len(req.Meshes)),
		zap.Int("materials", len(req.Materials)))

	s.resolve(req)
}

// CreateObject builds body and attaches it under its parent when that name
// is registered, otherwise as a new root. The body and its descendants are
// registered. Asset requests the manifest cannot serve yet are parked until
// the matching assets are added.
func (s *Session) CreateObject(body *scene.Body) *graph.Node {
	req := graph.NewRequests()
	node := s.builder.Build(body, req)

	if parent, ok := s.graph.Lookup(body.Parent); body.Parent != "" && ok {
		parent.Add(node)
	} else {
		if body.Parent != "" {
			s.log.Debug("parent not registered, attaching as root",
				zap.String("body", body.Name), zap.String("parent", body.Parent))
		}
		s.graph.AddRoot(node)
	}
	s.graph.Register(body.Name, node)
	s.setState(StateReady)

	s.parked.Merge(req)
	s.ResolveParked()
	return node
}

// ResolveParked resolves every parked request the manifest can now serve.
// Materials wait until their texture is known too.
func (s *Session) ResolveParked() {
	ready := graph.NewRequests()
	for name, nodes := range s.parked.Meshes {
		if _, ok := s.manifest.Meshes[name]; ok {
			ready.Meshes[name] = nodes
			delete(s.parked.Meshes, name)
		}
	}
	for name, nodes := range s.parked.Materials {
		m, ok := s.manifest.Materials[name]
		if !ok {
			continue
		}
		if _, ok := s.manifest.Textures[m.Texture]; m.Texture != "" && !ok {
			continue
		}
		ready.Materials[name] = nodes
		delete(s.parked.Materials, name)
	}
	if !ready.Empty() {
		s.resolve(ready)
		return
	}
	s.checkReady()
}

// Parked returns the number of asset names still waiting for the manifest.
func (s *Session) Parked() int {
	return len(s.parked.Meshes) + len(s.parked.Materials)
}

func (s *Session) newGeneration() {
	s.generation++
	s.pending = 0
	s.readyErr = nil
}

func (s *Session) checkReady() {
	if !s.Settled() {
		return
	}
	err := s.readyErr
	s.readyErr = nil
	s.log.Debug("scene settled", zap.Uint64("generation", s.generation), zap.Error(err))
	for _, fn := range s.readyListeners {
		fn(s.generation, err)
	}
}

func (s *Session) resolve(req *graph.Requests) {
	s.pending++
	s.resolver.Resolve(s.generation, s.manifest, req, func(res assets.Result) {
		hits, misses, bytes := s.resolver.Cache().Stats()
		fields := []zap.Field{
			zap.Uint64("generation", res.Generation),
			zap.Int("meshes", res.Meshes),
			zap.Int("materials", res.Materials),
			zap.Int("textures", res.Textures),
			zap.Int("cache_hits", hits),
			zap.Int("cache_misses", misses),
			zap.Int("cache_bytes", bytes),
		}
		switch {
		case res.Stale():
			s.log.Debug("discarded assets of superseded scene", append(fields, zap.Int("dropped", res.Dropped))...)
		case res.Err != nil:
			s.log.Warn("assets resolved with errors", append(fields, zap.Error(res.Err))...)
		default:
			s.log.Info("assets resolved", fields...)
		}
		for _, fn := range s.listeners {
			fn(res)
		}

		if res.Generation != s.generation {
			return
		}
		s.pending--
		s.readyErr = multierr.Append(s.readyErr, res.Err)
		s.checkReady()
	})
}
