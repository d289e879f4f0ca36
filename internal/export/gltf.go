// Package export writes the synchronized graph as a glTF 2.0 document.
package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/simview/internal/graph"
)

// exporter carries per-document caches so shared geometry, materials and
// textures are written once.
type exporter struct {
	doc       *gltf.Document
	meshes    map[meshKey]uint32
	materials map[*graph.Material]uint32
	textures  map[*graph.Texture]uint32
}

type meshKey struct {
	geom *graph.Geometry
	mat  *graph.Material
}

// Document converts g into a glTF document. Every graph node becomes a glTF
// node; visuals with decoded buffers carry an indexed triangle mesh and
// their physical material. Primitive placeholders are exported as empty
// nodes tagged with their shape.
func Document(g *graph.Graph) (*gltf.Document, error) {
	e := &exporter{
		doc:       gltf.NewDocument(),
		meshes:    make(map[meshKey]uint32),
		materials: make(map[*graph.Material]uint32),
		textures:  make(map[*graph.Texture]uint32),
	}
	for _, root := range g.Roots() {
		idx, err := e.node(root)
		if err != nil {
			return nil, err
		}
		e.doc.Scenes[0].Nodes = append(e.doc.Scenes[0].Nodes, idx)
	}
	return e.doc, nil
}

func (e *exporter) node(n *graph.Node) (uint32, error) {
	gn := &gltf.Node{
		Name:        n.Name,
		Translation: n.Position,
		Rotation:    n.Rotation.V.Vec4(n.Rotation.W),
		Scale:       n.Scale,
	}

	if n.Kind == graph.KindVisual {
		extras := map[string]any{"visual": n.VisualType.String(), "visible": n.Visible}
		if n.Geometry != nil && n.Geometry.Shape == graph.ShapeBuffers {
			mesh, err := e.mesh(n.Geometry, n.Material)
			if err != nil {
				return 0, fmt.Errorf("exporting %s: %w", n.Name, err)
			}
			gn.Mesh = gltf.Index(mesh)
		} else if n.Geometry != nil {
			extras["shape"] = n.Geometry.Shape.String()
		}
		gn.Extras = extras
	}

	idx := uint32(len(e.doc.Nodes))
	e.doc.Nodes = append(e.doc.Nodes, gn)

	for _, c := range n.Children() {
		ci, err := e.node(c)
		if err != nil {
			return 0, err
		}
		gn.Children = append(gn.Children, ci)
	}
	return idx, nil
}

func (e *exporter) mesh(geom *graph.Geometry, mat *graph.Material) (uint32, error) {
	key := meshKey{geom, mat}
	if idx, ok := e.meshes[key]; ok {
		return idx, nil
	}
	b := geom.Buffers

	attributes := map[string]uint32{
		"POSITION": modeler.WritePosition(e.doc, triples(b.Positions)),
	}
	if len(b.Normals) > 0 {
		attributes["NORMAL"] = modeler.WriteNormal(e.doc, triples(b.Normals))
	}
	if b.HasUVs() {
		attributes["TEXCOORD_0"] = modeler.WriteTextureCoord(e.doc, pairs(b.UVs))
	}

	prim := &gltf.Primitive{Attributes: attributes}
	if len(b.Indices) > 0 {
		prim.Indices = gltf.Index(modeler.WriteIndices(e.doc, b.Indices))
	}
	if mat != nil && mat.Kind == graph.MaterialPhysical {
		mi, err := e.material(mat)
		if err != nil {
			return 0, err
		}
		prim.Material = gltf.Index(mi)
	}

	idx := uint32(len(e.doc.Meshes))
	e.doc.Meshes = append(e.doc.Meshes, &gltf.Mesh{
		Name:       geom.Source,
		Primitives: []*gltf.Primitive{prim},
	})
	e.meshes[key] = idx
	return idx, nil
}

func (e *exporter) material(m *graph.Material) (uint32, error) {
	if idx, ok := e.materials[m]; ok {
		return idx, nil
	}

	color := [4]float32{m.Color[0], m.Color[1], m.Color[2], 1}
	metallic, roughness := m.Metalness, m.Roughness
	gm := &gltf.Material{
		Name:           m.Name,
		EmissiveFactor: m.Emissive,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &color,
			MetallicFactor:  &metallic,
			RoughnessFactor: &roughness,
		},
	}
	if m.ColorMap != nil {
		ti, err := e.texture(m.ColorMap)
		if err != nil {
			return 0, err
		}
		gm.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: ti}
	}

	idx := uint32(len(e.doc.Materials))
	e.doc.Materials = append(e.doc.Materials, gm)
	e.materials[m] = idx
	return idx, nil
}

func (e *exporter) texture(t *graph.Texture) (uint32, error) {
	if idx, ok := e.textures[t]; ok {
		return idx, nil
	}
	if t.Width <= 0 || t.Height <= 0 || len(t.Pixels) != t.Width*t.Height*4 {
		return 0, fmt.Errorf("texture %s: %dx%d does not match %d pixel bytes", t.Name, t.Width, t.Height, len(t.Pixels))
	}

	img := &image.NRGBA{
		Pix:    t.Pixels,
		Stride: t.Width * 4,
		Rect:   image.Rect(0, 0, t.Width, t.Height),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return 0, fmt.Errorf("encoding texture %s: %w", t.Name, err)
	}
	imgIdx, err := modeler.WriteImage(e.doc, t.Name, "image/png", &buf)
	if err != nil {
		return 0, fmt.Errorf("writing texture %s: %w", t.Name, err)
	}

	idx := uint32(len(e.doc.Textures))
	e.doc.Textures = append(e.doc.Textures, &gltf.Texture{Name: t.Name, Source: gltf.Index(imgIdx)})
	e.textures[t] = idx
	return idx, nil
}

func triples(v []float32) [][3]float32 {
	out := make([][3]float32, len(v)/3)
	for i := range out {
		out[i] = [3]float32{v[i*3], v[i*3+1], v[i*3+2]}
	}
	return out
}

func pairs(v []float32) [][2]float32 {
	out := make([][2]float32, len(v)/2)
	for i := range out {
		out[i] = [2]float32{v[i*2], v[i*2+1]}
	}
	return out
}

// Write encodes doc to w, as GLB when binary is set. Text output embeds
// buffers as data URIs so the document is self-contained.
func Write(w io.Writer, doc *gltf.Document, binary bool) error {
	if !binary {
		for _, b := range doc.Buffers {
			if b.URI == "" && len(b.Data) > 0 {
				b.URI = "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(b.Data)
			}
		}
	}
	enc := gltf.NewEncoder(w)
	enc.AsBinary = binary
	return enc.Encode(doc)
}

// Save exports g to path.
func Save(g *graph.Graph, path string, binary bool) error {
	doc, err := Document(g)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating export dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Write(f, doc, binary); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}
