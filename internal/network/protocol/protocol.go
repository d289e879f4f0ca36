// Package protocol defines the push channel instructions and their payloads.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Faultbox/simview/internal/scene"
)

// Instruction names a push message.
type Instruction string

// The closed set of push instructions.
const (
	LoadMesh        Instruction = "LOAD_MESH"
	LoadTexture     Instruction = "LOAD_TEXTURE"
	LoadMaterial    Instruction = "LOAD_MATERIAL"
	Reset           Instruction = "RESET"
	UpdateTransform Instruction = "UPDATE_TRANSFORM"
	CreateObject    Instruction = "CREATE_OBJECT"
)

// ErrUnknownInstruction is returned for names outside the instruction set.
var ErrUnknownInstruction = errors.New("unknown instruction")

// Instructions lists every instruction in the order a server replays them.
func Instructions() []Instruction {
	return []Instruction{Reset, LoadMesh, LoadTexture, LoadMaterial, CreateObject, UpdateTransform}
}

// Valid reports whether i is one of the known instructions.
func (i Instruction) Valid() bool {
	switch i {
	case LoadMesh, LoadTexture, LoadMaterial, Reset, UpdateTransform, CreateObject:
		return true
	}
	return false
}

// Envelope is one push message.
type Envelope struct {
	Instruction Instruction     `json:"instruction"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// Encode builds the JSON envelope for inst carrying v. A nil v sends no data.
func Encode(inst Instruction, v any) ([]byte, error) {
	if !inst.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInstruction, inst)
	}
	env := Envelope{Instruction: inst}
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", inst, err)
		}
		env.Data = data
	}
	return json.Marshal(env)
}

// Decode parses a message in either the JSON envelope form or the text form
// NAME:json (NAME alone for instructions without data).
func Decode(msg []byte) (Envelope, error) {
	msg = bytes.TrimSpace(msg)
	if len(msg) == 0 {
		return Envelope{}, fmt.Errorf("empty message")
	}

	var env Envelope
	if msg[0] == '{' {
		if err := json.Unmarshal(msg, &env); err != nil {
			return Envelope{}, fmt.Errorf("decoding envelope: %w", err)
		}
	} else {
		name, data, _ := bytes.Cut(msg, []byte{':'})
		env.Instruction = Instruction(bytes.TrimSpace(name))
		if data = bytes.TrimSpace(data); len(data) > 0 {
			if !json.Valid(data) {
				return Envelope{}, fmt.Errorf("decoding %s payload: invalid JSON", env.Instruction)
			}
			env.Data = json.RawMessage(data)
		}
	}

	if !env.Instruction.Valid() {
		return env, fmt.Errorf("%w: %q", ErrUnknownInstruction, env.Instruction)
	}
	return env, nil
}

// Payload decodes the envelope data into a T.
func Payload[T any](env Envelope) (T, error) {
	var v T
	if len(env.Data) == 0 {
		return v, fmt.Errorf("%s: missing data", env.Instruction)
	}
	if err := json.Unmarshal(env.Data, &v); err != nil {
		return v, fmt.Errorf("decoding %s payload: %w", env.Instruction, err)
	}
	return v, nil
}

// Transforms is the UPDATE_TRANSFORM payload, keyed by body name.
type Transforms map[string]scene.Transform

// DecodeBody decodes and validates a CREATE_OBJECT payload.
func DecodeBody(env Envelope) (*scene.Body, error) {
	b, err := Payload[scene.Body](env)
	if err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", env.Instruction, err)
	}
	return &b, nil
}
