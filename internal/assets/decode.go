package assets

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Faultbox/simview/internal/graph"
	"github.com/Faultbox/simview/internal/scene"
)

// ErrLayout reports a blob that does not match its declared layout.
var ErrLayout = errors.New("asset layout mismatch")

// DecodeMesh slices the four typed ranges out of a mesh blob. Values are
// little-endian. A zero-length UV range yields no UV attribute.
func DecodeMesh(a scene.MeshAsset, blob []byte) (*graph.Buffers, error) {
	indices, err := readUint32s(blob, a.Indices)
	if err != nil {
		return nil, fmt.Errorf("mesh %s indices: %w", a.Name, err)
	}
	positions, err := readFloat32s(blob, a.Vertices, 3)
	if err != nil {
		return nil, fmt.Errorf("mesh %s vertices: %w", a.Name, err)
	}
	normals, err := readFloat32s(blob, a.Normals, 3)
	if err != nil {
		return nil, fmt.Errorf("mesh %s normals: %w", a.Name, err)
	}
	uvs, err := readFloat32s(blob, a.UVs, 2)
	if err != nil {
		return nil, fmt.Errorf("mesh %s uvs: %w", a.Name, err)
	}

	return &graph.Buffers{
		Indices:   indices,
		Positions: positions,
		Normals:   normals,
		UVs:       uvs,
	}, nil
}

func span(blob []byte, r scene.Range) ([]byte, error) {
	start := uint64(r.Offset())
	end := start + uint64(r.Count())*4
	if end > uint64(len(blob)) {
		return nil, fmt.Errorf("%w: range [%d, %d) exceeds blob of %d bytes", ErrLayout, start, end, len(blob))
	}
	return blob[start:end], nil
}

func readUint32s(blob []byte, r scene.Range) ([]uint32, error) {
	if r.Count() == 0 {
		return nil, nil
	}
	b, err := span(blob, r)
	if err != nil {
		return nil, err
	}
	out := make([]uint32, r.Count())
	for i := range out {
		out[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return out, nil
}

func readFloat32s(blob []byte, r scene.Range, stride uint32) ([]float32, error) {
	if r.Count() == 0 {
		return nil, nil
	}
	if r.Count()%stride != 0 {
		return nil, fmt.Errorf("%w: %d floats is not a multiple of %d", ErrLayout, r.Count(), stride)
	}
	b, err := span(blob, r)
	if err != nil {
		return nil, err
	}
	out := make([]float32, r.Count())
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

// UnpackRGB expands packed RGB triples into RGBA quads with opaque alpha.
func UnpackRGB(rgb []byte) ([]byte, error) {
	if len(rgb)%3 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a whole number of RGB pixels", ErrLayout, len(rgb))
	}
	n := len(rgb) / 3
	rgba := make([]byte, n*4)
	for i := 0; i < n; i++ {
		rgba[i*4] = rgb[i*3]
		rgba[i*4+1] = rgb[i*3+1]
		rgba[i*4+2] = rgb[i*3+2]
		rgba[i*4+3] = 0xFF
	}
	return rgba, nil
}

// DecodeTexture unpacks a texture blob. When the descriptor has positive
// dimensions the blob must hold exactly width*height pixels.
func DecodeTexture(a scene.TextureAsset, blob []byte) (*graph.Texture, error) {
	if a.Width > 0 && a.Height > 0 && len(blob) != a.Width*a.Height*3 {
		return nil, fmt.Errorf("texture %s: %w: %dx%d needs %d bytes, got %d",
			a.Name, ErrLayout, a.Width, a.Height, a.Width*a.Height*3, len(blob))
	}
	pixels, err := UnpackRGB(blob)
	if err != nil {
		return nil, fmt.Errorf("texture %s: %w", a.Name, err)
	}
	return &graph.Texture{
		Name:   a.Name,
		Width:  a.Width,
		Height: a.Height,
		Pixels: pixels,
		Repeat: [2]float32{1, 1},
	}, nil
}

// BuildMaterial maps a material descriptor onto a physical material.
func BuildMaterial(a scene.MaterialAsset) *graph.Material {
	return &graph.Material{
		Kind:  graph.MaterialPhysical,
		Name:  a.Name,
		Color: a.Color,
		Emissive: [3]float32{
			a.Color[0] * a.Emissive,
			a.Color[1] * a.Emissive,
			a.Color[2] * a.Emissive,
		},
		Roughness:         1 - a.Shininess,
		Metalness:         a.Reflectance,
		SpecularIntensity: a.Specular,
	}
}
