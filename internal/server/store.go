package server

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/simview/internal/logger"
	"github.com/Faultbox/simview/internal/scene"
)

// Store holds the bundle currently served and the latest state snapshot.
// It is safe for concurrent use.
type Store struct {
	dir string
	log *zap.Logger

	mu     sync.RWMutex
	bundle *Bundle
	state  map[string][]float32
}

// NewStore loads the bundle in dir.
func NewStore(dir string) (*Store, error) {
	s := &Store{dir: dir, log: logger.Named("store")}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Dir returns the bundle directory.
func (s *Store) Dir() string { return s.dir }

// Bundle returns the bundle currently served.
func (s *Store) Bundle() *Bundle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bundle
}

// Reload re-reads the bundle from disk. It reports whether the scene
// identity changed. On error the previous bundle stays in place.
func (s *Store) Reload() (bool, error) {
	b, err := LoadBundle(s.dir)
	if err != nil {
		return false, err
	}
	for _, hash := range b.Missing {
		s.log.Warn("scene references missing blob", zap.String("hash", hash))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bundle != nil && s.bundle.ID == b.ID {
		return false, nil
	}
	s.bundle = b
	s.state = nil
	s.log.Info("bundle loaded",
		zap.String("id", b.ID),
		zap.Int("meshes", len(b.Scene.Meshes)),
		zap.Int("textures", len(b.Scene.Textures)),
		zap.Int("blobs", len(b.Blobs)))
	return true, nil
}

// SetState replaces the state snapshot.
func (s *Store) SetState(state map[string][]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// State returns the current snapshot.
func (s *Store) State() scene.StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return scene.StateSnapshot{UpdateData: s.state}
}
