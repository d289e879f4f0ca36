package scene

// Manifest resolves asset names to their descriptors.
type Manifest struct {
	Meshes    map[string]MeshAsset
	Materials map[string]MaterialAsset
	Textures  map[string]TextureAsset
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{
		Meshes:    make(map[string]MeshAsset),
		Materials: make(map[string]MaterialAsset),
		Textures:  make(map[string]TextureAsset),
	}
}

// Manifest indexes the asset lists of the description by name.
func (d *Description) Manifest() *Manifest {
	m := NewManifest()
	for _, a := range d.Meshes {
		m.AddMesh(a)
	}
	for _, a := range d.Materials {
		m.AddMaterial(a)
	}
	for _, a := range d.Textures {
		m.AddTexture(a)
	}
	return m
}

// AddMesh registers a mesh descriptor, replacing any previous one of that name.
func (m *Manifest) AddMesh(a MeshAsset) { m.Meshes[a.Name] = a }

// AddMaterial registers a material descriptor.
func (m *Manifest) AddMaterial(a MaterialAsset) { m.Materials[a.Name] = a }

// AddTexture registers a texture descriptor.
func (m *Manifest) AddTexture(a TextureAsset) { m.Textures[a.Name] = a }
