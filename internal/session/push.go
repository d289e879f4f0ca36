package session

import (
	"go.uber.org/zap"

	"github.com/Faultbox/simview/internal/network"
	"github.com/Faultbox/simview/internal/network/protocol"
	"github.com/Faultbox/simview/internal/scene"
)

// Registrar accepts instruction handlers. network.Channel implements it.
type Registrar interface {
	RegisterHandler(inst protocol.Instruction, h network.Handler) error
}

// BindPush installs a handler for every push instruction on r. Transform
// updates are interpreted in frame.
func BindPush(s *Session, r Registrar, frame Frame) error {
	handlers := map[protocol.Instruction]network.Handler{
		protocol.LoadMesh:        s.handleLoadMesh,
		protocol.LoadTexture:     s.handleLoadTexture,
		protocol.LoadMaterial:    s.handleLoadMaterial,
		protocol.Reset:           s.handleReset,
		protocol.CreateObject:    s.handleCreateObject,
		protocol.UpdateTransform: func(env protocol.Envelope) error { return s.handleUpdateTransform(env, frame) },
	}
	for _, inst := range protocol.Instructions() {
		if err := r.RegisterHandler(inst, handlers[inst]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) handleLoadMesh(env protocol.Envelope) error {
	a, err := protocol.Payload[scene.MeshAsset](env)
	if err != nil {
		return err
	}
	s.manifest.AddMesh(a)
	s.ResolveParked()
	return nil
}

func (s *Session) handleLoadTexture(env protocol.Envelope) error {
	a, err := protocol.Payload[scene.TextureAsset](env)
	if err != nil {
		return err
	}
	s.manifest.AddTexture(a)
	s.ResolveParked()
	return nil
}

func (s *Session) handleLoadMaterial(env protocol.Envelope) error {
	a, err := protocol.Payload[scene.MaterialAsset](env)
	if err != nil {
		return err
	}
	s.manifest.AddMaterial(a)
	s.ResolveParked()
	return nil
}

func (s *Session) handleReset(protocol.Envelope) error {
	s.Reset()
	return nil
}

func (s *Session) handleCreateObject(env protocol.Envelope) error {
	body, err := protocol.DecodeBody(env)
	if err != nil {
		return err
	}
	s.CreateObject(body)
	return nil
}

func (s *Session) handleUpdateTransform(env protocol.Envelope, frame Frame) error {
	t, err := protocol.Payload[protocol.Transforms](env)
	if err != nil {
		return err
	}
	n := s.ApplyTransforms(TransformUpdates(t), frame)
	if n < len(t) {
		s.log.Debug("transform update for unknown bodies", zap.Int("skipped", len(t)-n))
	}
	return nil
}
