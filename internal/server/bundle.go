// Package server implements simserve, a development server that serves a
// scene bundle from disk over the polling and push interfaces of the viewer.
//
// A bundle is a directory holding scene.json (or scene.yaml) and a data/
// directory whose files are the binary blobs, each named by its hash.
package server

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/simview/internal/scene"
)

// Bundle file names.
const (
	SceneJSON = "scene.json"
	SceneYAML = "scene.yaml"
	DataDir   = "data"
)

// Bundle is one loaded scene with its blobs.
type Bundle struct {
	ID      string
	Scene   *scene.Description
	JSON    []byte // canonical /scene_data body
	Blobs   map[string][]byte
	Missing []string // hashes referenced by the scene but absent from data/
}

// LoadBundle reads the bundle in dir.
func LoadBundle(dir string) (*Bundle, error) {
	raw, err := readScene(dir)
	if err != nil {
		return nil, err
	}
	desc, err := scene.DecodeDescription(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	js, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("encoding scene: %w", err)
	}

	blobs, err := readBlobs(filepath.Join(dir, DataDir))
	if err != nil {
		return nil, err
	}

	b := &Bundle{Scene: desc, JSON: js, Blobs: blobs}
	b.ID = bundleID(js, blobs)
	desc.ID = b.ID

	for _, m := range desc.Meshes {
		if _, ok := blobs[m.Hash]; !ok {
			b.Missing = append(b.Missing, m.Hash)
		}
	}
	for _, t := range desc.Textures {
		if _, ok := blobs[t.Hash]; !ok {
			b.Missing = append(b.Missing, t.Hash)
		}
	}
	return b, nil
}

// readScene returns the scene description as JSON.
func readScene(dir string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, SceneJSON))
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", SceneJSON, err)
	}

	data, err = os.ReadFile(filepath.Join(dir, SceneYAML))
	if err != nil {
		return nil, fmt.Errorf("no %s or %s in %s: %w", SceneJSON, SceneYAML, dir, err)
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", SceneYAML, err)
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("converting %s: %w", SceneYAML, err)
	}
	return js, nil
}

func readBlobs(dir string) (map[string][]byte, error) {
	blobs := make(map[string][]byte)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return blobs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading blob %s: %w", e.Name(), err)
		}
		blobs[e.Name()] = data
	}
	return blobs, nil
}

// bundleID hashes the scene and blob contents so any edit yields a new token.
func bundleID(scene []byte, blobs map[string][]byte) string {
	h := md5.New()
	h.Write(scene)
	names := make([]string, 0, len(blobs))
	for name := range blobs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		h.Write([]byte(name))
		h.Write(blobs[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Flatten lists every body of the tree depth first with Parent set and
// children stripped, in the order CREATE_OBJECT must replay them.
func Flatten(root *scene.Body) []scene.Body {
	var out []scene.Body
	var walk func(b *scene.Body, parent string)
	walk = func(b *scene.Body, parent string) {
		flat := *b
		flat.Parent = parent
		flat.Children = nil
		out = append(out, flat)
		for i := range b.Children {
			walk(&b.Children[i], b.Name)
		}
	}
	walk(root, root.Parent)
	return out
}
