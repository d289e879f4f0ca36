package assets

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/simview/internal/graph"
	"github.com/Faultbox/simview/internal/logger"
	"github.com/Faultbox/simview/internal/loop"
	"github.com/Faultbox/simview/internal/scene"
)

// ErrMissingAsset reports a visual naming an asset absent from the manifest.
var ErrMissingAsset = errors.New("asset not in manifest")

// Fetcher retrieves a blob by content hash.
type Fetcher interface {
	FetchBlob(ctx context.Context, hash string) ([]byte, error)
}

// Result summarises one Resolve call once every fetch it issued has settled.
type Result struct {
	Generation uint64
	Meshes     int // nodes that received custom geometry
	Materials  int // nodes that received a physical material
	Textures   int // materials that received a color map
	Dropped    int // completions discarded because the generation moved on
	Err        error
}

// Stale reports whether the scene was replaced while resolving.
func (r Result) Stale() bool { return r.Dropped > 0 }

// GenerationFunc reports the generation currently on display.
type GenerationFunc func() uint64

// Resolver resolves asset requests against a manifest. All methods must be
// called on the loop.
type Resolver struct {
	loop    *loop.Loop
	fetcher Fetcher
	current GenerationFunc
	cache   *Cache
	log     *zap.Logger

	cacheGen uint64
	inflight map[string][]func([]byte, error)
}

// NewResolver returns a resolver fetching through f. current is consulted on
// every completion; results for any other generation are discarded.
func NewResolver(l *loop.Loop, f Fetcher, current GenerationFunc) *Resolver {
	return &Resolver{
		loop:     l,
		fetcher:  f,
		current:  current,
		cache:    NewCache(),
		log:      logger.Named("assets"),
		inflight: make(map[string][]func([]byte, error)),
	}
}

// Cache exposes the blob cache for diagnostics.
func (r *Resolver) Cache() *Cache { return r.cache }

// Resolve fetches every asset named in req and patches the waiting nodes.
// Mesh and material batches proceed independently; done is called exactly
// once after all of them settle, with their errors combined.
func (r *Resolver) Resolve(gen uint64, m *scene.Manifest, req *graph.Requests, done func(Result)) {
	if gen != r.cacheGen {
		r.cache.Clear()
		r.cacheGen = gen
	}

	b := &batch{res: Result{Generation: gen}, done: done}
	b.add() // held until every fetch below is issued

	for name, nodes := range req.Meshes {
		asset, ok := m.Meshes[name]
		if !ok {
			r.log.Warn("mesh not in manifest, keeping placeholder", zap.String("mesh", name), zap.Int("nodes", len(nodes)))
			b.fail(fmt.Errorf("mesh %q: %w", name, ErrMissingAsset))
			continue
		}
		r.resolveMesh(gen, asset, nodes, b)
	}

	for name, nodes := range req.Materials {
		asset, ok := m.Materials[name]
		if !ok {
			r.log.Warn("material not in manifest, keeping placeholder", zap.String("material", name), zap.Int("nodes", len(nodes)))
			b.fail(fmt.Errorf("material %q: %w", name, ErrMissingAsset))
			continue
		}
		r.resolveMaterial(gen, asset, m, nodes, b)
	}

	b.release()
}

func (r *Resolver) resolveMesh(gen uint64, asset scene.MeshAsset, nodes []*graph.Node, b *batch) {
	b.add()
	r.fetch(asset.Hash, func(blob []byte, err error) {
		defer b.release()
		if r.current() != gen {
			b.dropped()
			return
		}
		if err != nil {
			b.fail(fmt.Errorf("fetching mesh %q: %w", asset.Name, err))
			return
		}
		buffers, err := DecodeMesh(asset, blob)
		if err != nil {
			r.log.Warn("mesh decode failed, keeping placeholder", zap.String("mesh", asset.Name), zap.Error(err))
			b.fail(err)
			return
		}

		geom := graph.NewBufferGeometry(asset.Name, buffers)
		for _, n := range nodes {
			n.Geometry = geom
			n.Visible = true
			n.NeedsUpdate = true
		}
		b.res.Meshes += len(nodes)
		r.log.Debug("mesh applied",
			zap.String("mesh", asset.Name),
			zap.Int("vertices", buffers.VertexCount()),
			zap.Int("nodes", len(nodes)))
	})
}

func (r *Resolver) resolveMaterial(gen uint64, asset scene.MaterialAsset, m *scene.Manifest, nodes []*graph.Node, b *batch) {
	mat := BuildMaterial(asset)
	for _, n := range nodes {
		n.Material = mat
		n.NeedsUpdate = true
	}
	b.res.Materials += len(nodes)

	if asset.Texture == "" {
		return
	}
	tex, ok := m.Textures[asset.Texture]
	if !ok {
		r.log.Warn("texture not in manifest", zap.String("material", asset.Name), zap.String("texture", asset.Texture))
		b.fail(fmt.Errorf("texture %q of material %q: %w", asset.Texture, asset.Name, ErrMissingAsset))
		return
	}

	b.add()
	r.fetch(tex.Hash, func(blob []byte, err error) {
		defer b.release()
		if r.current() != gen {
			b.dropped()
			return
		}
		if err != nil {
			b.fail(fmt.Errorf("fetching texture %q: %w", tex.Name, err))
			return
		}
		t, err := DecodeTexture(tex, blob)
		if err != nil {
			r.log.Warn("texture decode failed", zap.String("texture", tex.Name), zap.Error(err))
			b.fail(err)
			return
		}
		t.Repeat = asset.TexRepeat
		mat.SetColorMap(t)
		for _, n := range nodes {
			n.NeedsUpdate = true
		}
		b.res.Textures++
	})
}

// fetch delivers the blob for hash on the loop, issuing at most one request
// per hash at a time and serving repeats from the cache.
func (r *Resolver) fetch(hash string, cb func([]byte, error)) {
	if blob, ok := r.cache.Get(hash); ok {
		r.loop.Post(func() { cb(blob, nil) })
		return
	}
	if waiters, ok := r.inflight[hash]; ok {
		r.inflight[hash] = append(waiters, cb)
		return
	}
	r.inflight[hash] = []func([]byte, error){cb}

	gen := r.cacheGen
	loop.Async(r.loop, func(ctx context.Context) ([]byte, error) {
		return r.fetcher.FetchBlob(ctx, hash)
	}, func(blob []byte, err error) {
		waiters := r.inflight[hash]
		delete(r.inflight, hash)
		if err == nil && gen == r.cacheGen {
			r.cache.Set(hash, blob)
		}
		for _, w := range waiters {
			w(blob, err)
		}
	})
}

// batch is a countdown barrier over the fetches of one Resolve call.
type batch struct {
	pending int
	res     Result
	done    func(Result)
}

func (b *batch) add() { b.pending++ }

func (b *batch) fail(err error) { b.res.Err = multierr.Append(b.res.Err, err) }

func (b *batch) dropped() { b.res.Dropped++ }

func (b *batch) release() {
	b.pending--
	if b.pending == 0 && b.done != nil {
		b.done(b.res)
	}
}
