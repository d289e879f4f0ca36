package scene

import (
	"encoding/json"
	"fmt"
	"io"
)

type transformJSON struct {
	Pos   *[3]float32 `json:"pos,omitempty"`
	Rot   *[4]float32 `json:"rot,omitempty"`
	Scale *[3]float32 `json:"scale,omitempty"`
}

// MarshalJSON encodes the transform as {pos, rot, scale}.
func (t Transform) MarshalJSON() ([]byte, error) {
	return json.Marshal(transformJSON{Pos: &t.Position, Rot: &t.Rotation, Scale: &t.Scale})
}

// UnmarshalJSON decodes {pos, rot, scale}; absent members keep identity values.
func (t *Transform) UnmarshalJSON(b []byte) error {
	var raw transformJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*t = IdentityTransform()
	if raw.Pos != nil {
		t.Position = *raw.Pos
	}
	if raw.Rot != nil {
		t.Rotation = *raw.Rot
	}
	if raw.Scale != nil {
		t.Scale = *raw.Scale
	}
	return nil
}

// UnmarshalJSON applies defaults for omitted members.
func (v *Visual) UnmarshalJSON(b []byte) error {
	type plain Visual
	p := plain{Trans: IdentityTransform()}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*v = Visual(p)
	return nil
}

// UnmarshalJSON applies defaults for omitted members.
func (b *Body) UnmarshalJSON(data []byte) error {
	type plain Body
	p := plain{Trans: IdentityTransform()}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = Body(p)
	return nil
}

// UnmarshalJSON applies the default texture repeat of (1, 1).
func (m *MaterialAsset) UnmarshalJSON(b []byte) error {
	type plain MaterialAsset
	p := plain{TexRepeat: [2]float32{1, 1}}
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*m = MaterialAsset(p)
	return nil
}

// Validate checks the invariants the builder relies on.
func (b *Body) Validate() error {
	if b.Name == "" {
		return fmt.Errorf("body without name")
	}
	for i, v := range b.Visuals {
		if v.Type == VisualMesh && v.Mesh == "" {
			return fmt.Errorf("body %q visual %d: MESH visual without mesh reference", b.Name, i)
		}
	}
	for i := range b.Children {
		if err := b.Children[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DecodeDescription reads and validates a /scene_data payload.
func DecodeDescription(r io.Reader) (*Description, error) {
	var d Description
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return nil, fmt.Errorf("decoding scene description: %w", err)
	}
	if err := d.Root.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scene description: %w", err)
	}
	return &d, nil
}

// DecodeState reads a /scene_state payload.
func DecodeState(r io.Reader) (*StateSnapshot, error) {
	var s StateSnapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding scene state: %w", err)
	}
	return &s, nil
}
