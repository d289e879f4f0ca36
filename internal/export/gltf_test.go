package export

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/simview/internal/graph"
	"github.com/Faultbox/simview/internal/scene"
)

func sampleGraph() *graph.Graph {
	g := graph.New()
	root := graph.NewGroup("world")
	root.Position = mgl32.Vec3{1, 2, 3}
	root.Rotation = mgl32.QuatRotate(1, mgl32.Vec3{0, 1, 0})

	visuals := graph.NewGroup(graph.VisualsGroupName)
	root.Add(visuals)

	geom := graph.NewBufferGeometry("quad", &graph.Buffers{
		Indices:   []uint32{0, 1, 2, 2, 3, 0},
		Positions: []float32{0, 0, 0, 1, 0, 0, 1, 1, 0, 0, 1, 0},
		Normals:   []float32{0, 0, 1, 0, 0, 1, 0, 0, 1, 0, 0, 1},
	})
	mat := &graph.Material{
		Kind:      graph.MaterialPhysical,
		Name:      "red",
		Color:     [3]float32{1, 0, 0},
		Roughness: 0.5,
		ColorMap:  &graph.Texture{Name: "dot", Width: 1, Height: 1, Pixels: []byte{1, 2, 3, 255}},
	}
	for i := 0; i < 2; i++ {
		v := graph.NewVisual(scene.VisualMesh, geom, mat)
		v.Name = "quad"
		visuals.Add(v)
	}
	visuals.Add(graph.NewVisual(scene.VisualSphere, graph.DefaultGeometry(scene.VisualSphere), graph.NewPlaceholderMaterial([3]float32{1, 1, 1})))

	g.AddRoot(root)
	return g
}

func TestDocument(t *testing.T) {
	doc, err := Document(sampleGraph())
	require.NoError(t, err)

	require.Len(t, doc.Nodes, 5)
	require.Len(t, doc.Scenes[0].Nodes, 1)
	assert.Len(t, doc.Meshes, 1, "shared geometry exported once")
	assert.Len(t, doc.Materials, 1)
	assert.Len(t, doc.Textures, 1)
	assert.Len(t, doc.Images, 1)

	root := doc.Nodes[doc.Scenes[0].Nodes[0]]
	assert.Equal(t, "world", root.Name)
	assert.Equal(t, [3]float32{1, 2, 3}, root.Translation)
	q := mgl32.QuatRotate(1, mgl32.Vec3{0, 1, 0})
	assert.Equal(t, [4]float32{q.V[0], q.V[1], q.V[2], q.W}, root.Rotation)
	require.Len(t, root.Children, 1)

	prim := doc.Meshes[0].Primitives[0]
	assert.Contains(t, prim.Attributes, "POSITION")
	assert.Contains(t, prim.Attributes, "NORMAL")
	assert.NotContains(t, prim.Attributes, "TEXCOORD_0")
	require.NotNil(t, prim.Indices)
	assert.Equal(t, uint32(6), doc.Accessors[*prim.Indices].Count)
	require.NotNil(t, prim.Material)

	pbr := doc.Materials[*prim.Material].PBRMetallicRoughness
	require.NotNil(t, pbr)
	assert.Equal(t, [4]float32{1, 0, 0, 1}, *pbr.BaseColorFactor)
	require.NotNil(t, pbr.BaseColorTexture)

	visuals := doc.Nodes[root.Children[0]]
	require.Len(t, visuals.Children, 3)
	sphere := doc.Nodes[visuals.Children[2]]
	assert.Nil(t, sphere.Mesh)
	assert.Equal(t, "sphere", sphere.Extras.(map[string]any)["shape"])
}

func TestDocumentBadTexture(t *testing.T) {
	g := sampleGraph()
	g.Walk(func(n *graph.Node) {
		if n.Material != nil && n.Material.ColorMap != nil {
			n.Material.ColorMap.Pixels = []byte{1, 2}
		}
	})
	_, err := Document(g)
	assert.Error(t, err)
}

func TestWriteBinary(t *testing.T) {
	doc, err := Document(sampleGraph())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc, true))
	assert.Equal(t, "glTF", buf.String()[:4])

	var decoded gltf.Document
	require.NoError(t, gltf.NewDecoder(&buf).Decode(&decoded))
	assert.Len(t, decoded.Nodes, 5)
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "scene.glb")
	require.NoError(t, Save(sampleGraph(), path, true))

	doc, err := gltf.Open(path)
	require.NoError(t, err)
	assert.Len(t, doc.Meshes, 1)
}

func TestWriteText(t *testing.T) {
	doc, err := Document(sampleGraph())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, doc, false))
	assert.Contains(t, buf.String(), "data:application/octet-stream;base64,")
}
