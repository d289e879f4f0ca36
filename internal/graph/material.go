package graph

// MaterialKind separates placeholders from resolved materials.
type MaterialKind uint8

const (
	MaterialBasic MaterialKind = iota
	MaterialPhysical
)

// Texture is an RGBA pixel buffer ready for upload.
type Texture struct {
	Name   string
	Width  int
	Height int
	Pixels []byte // 4 bytes per pixel
	Repeat [2]float32
	FlipY  bool
}

// Material describes surface appearance. Physical materials may be shared by
// many nodes; mutating one updates every node that references it.
type Material struct {
	Kind              MaterialKind
	Name              string
	Color             [3]float32
	Emissive          [3]float32
	Roughness         float32
	Metalness         float32
	SpecularIntensity float32
	ColorMap          *Texture
	Version           int // bumped whenever the material needs re-upload
}

// NewPlaceholderMaterial returns an unlit material of the given color.
func NewPlaceholderMaterial(color [3]float32) *Material {
	return &Material{Kind: MaterialBasic, Color: color}
}

// SetColorMap attaches a texture and flags the material for refresh.
func (m *Material) SetColorMap(tex *Texture) {
	m.ColorMap = tex
	m.Version++
}
