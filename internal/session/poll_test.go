package session

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/simview/internal/graph"
	"github.com/Faultbox/simview/internal/loop"
	"github.com/Faultbox/simview/internal/network"
)

func fastPoll() PollConfig {
	return PollConfig{
		IdentityInterval: 5 * time.Millisecond,
		StateInterval:    time.Hour,
		RetryInitial:     5 * time.Millisecond,
		RetryMax:         20 * time.Millisecond,
	}
}

func startPoller(t *testing.T, l *loop.Loop, s *Session, src Source, cfg PollConfig) *Poller {
	t.Helper()
	p := NewPoller(s, src, cfg)
	on(t, l, p.Start)
	t.Cleanup(func() { _ = l.Do(p.Stop) })
	return p
}

func TestPollSameTokenNoRebuild(t *testing.T) {
	l := startLoop(t)
	src := newFakeSource()
	s := New(l, src)
	p := startPoller(t, l, s, src, fastPoll())

	eventually(t, l, func() bool { return p.Rebuilds() == 1 }, "initial load never happened")
	eventually(t, l, func() bool {
		id, _, _ := src.counts()
		return id >= 6
	}, "identity polls stalled")

	_, data, _ := src.counts()
	on(t, l, func() {
		assert.Equal(t, 1, p.Rebuilds())
		assert.Equal(t, StateReady, s.State())
		assert.Equal(t, uint64(1), s.Generation())
	})
	assert.Equal(t, 1, data)
}

func TestPollChangedTokenRebuildsOnce(t *testing.T) {
	l := startLoop(t)
	src := newFakeSource()
	s := New(l, src)
	p := startPoller(t, l, s, src, fastPoll())

	eventually(t, l, func() bool { return p.Rebuilds() == 1 }, "initial load never happened")

	var pending *loop.Timer
	var oldBase *graph.Node
	on(t, l, func() {
		pending = p.StateTimer()
		require.True(t, pending.Pending())
		oldBase, _ = s.Graph().Lookup("base")
	})

	src.set(func(f *fakeSource) { f.id = "b" })
	eventually(t, l, func() bool { return p.Rebuilds() == 2 }, "rebuild never happened")

	// Let several more identity polls observe "b".
	id0, _, _ := src.counts()
	eventually(t, l, func() bool {
		id, _, _ := src.counts()
		return id >= id0+5
	}, "identity polls stalled")

	_, data, _ := src.counts()
	assert.Equal(t, 2, data)
	on(t, l, func() {
		assert.Equal(t, 2, p.Rebuilds())
		assert.False(t, pending.Pending(), "state timer of the old scene still armed")
		assert.NotSame(t, pending, p.StateTimer())
		assert.True(t, p.StateTimer().Pending())
		assert.Equal(t, "b", s.SceneID())
		assert.Equal(t, uint64(2), s.Generation())

		newBase, _ := s.Graph().Lookup("base")
		assert.NotSame(t, oldBase, newBase)
		assert.Equal(t, 2, s.Graph().RegistrySize())
	})
}

func TestPollAppliesState(t *testing.T) {
	l := startLoop(t)
	src := newFakeSource()
	src.state = `{"updateData": {
		"base": [0, 0, 1, 1, 0, 0, 0],
		"ghost": [5, 5, 5, 1, 0, 0, 0],
		"short": [1, 2]
	}}`
	s := New(l, src)
	cfg := fastPoll()
	cfg.StateInterval = 5 * time.Millisecond
	p := startPoller(t, l, s, src, cfg)

	eventually(t, l, func() bool { return p.Applied() >= 2 }, "state never applied")

	on(t, l, func() {
		base, _ := s.Graph().Lookup("base")
		// Root sits at (1,0,0); the delta is relative to it.
		vecNear(t, mgl32.Vec3{1, 0, -1}, base.WorldPosition())
		_, ok := s.Graph().Lookup("ghost")
		assert.False(t, ok)
	})
}

func TestPollDataFailureKeepsScene(t *testing.T) {
	l := startLoop(t)
	src := newFakeSource()
	s := New(l, src)
	p := startPoller(t, l, s, src, fastPoll())

	eventually(t, l, func() bool { return p.Rebuilds() == 1 }, "initial load never happened")

	src.set(func(f *fakeSource) {
		f.id = "b"
		f.failData = true
	})
	// Between retries the old scene is READY again with state polling armed.
	eventually(t, l, func() bool {
		_, data, _ := src.counts()
		return data >= 3 && s.State() == StateReady && p.StateTimer().Pending()
	}, "scene data never retried")

	on(t, l, func() {
		assert.Equal(t, 1, p.Rebuilds())
		assert.Equal(t, "a", s.SceneID())
		assert.Equal(t, 2, s.Graph().RegistrySize())
	})

	src.set(func(f *fakeSource) { f.failData = false })
	eventually(t, l, func() bool { return s.SceneID() == "b" }, "scene never recovered")
}

func TestPollOverHTTP(t *testing.T) {
	var ids, scenes atomic.Int32
	token := atomic.Value{}
	token.Store("one")

	mux := http.NewServeMux()
	mux.HandleFunc(network.PathSceneID, func(w http.ResponseWriter, r *http.Request) {
		ids.Add(1)
		w.Write([]byte(token.Load().(string)))
	})
	mux.HandleFunc(network.PathSceneData, func(w http.ResponseWriter, r *http.Request) {
		scenes.Add(1)
		w.Write([]byte(sampleScene))
	})
	mux.HandleFunc(network.PathSceneState, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"updateData": {"arm": [0, 0, 0, 1, 0, 0, 0]}}`))
	})
	mux.HandleFunc(network.PathData+"h-quad", func(w http.ResponseWriter, r *http.Request) {
		w.Write(quadBlob())
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	l := startLoop(t)
	client := network.NewClient(srv.URL, time.Second)
	s := New(l, client)
	cfg := fastPoll()
	cfg.StateInterval = 5 * time.Millisecond
	p := startPoller(t, l, s, client, cfg)

	eventually(t, l, func() bool {
		v := armVisual(s)
		return p.Rebuilds() == 1 && v != nil && v.Visible && p.Applied() > 0
	}, "scene never synchronized")

	token.Store("two")
	eventually(t, l, func() bool { return p.Rebuilds() == 2 }, "rebuild never happened")
	assert.Equal(t, int32(2), scenes.Load())
	assert.Greater(t, ids.Load(), int32(2))
}
