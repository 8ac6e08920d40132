package scene

import (
	"encoding/base64"
	"encoding/json"

	"github.com/pkg/errors"
)

// Generator is written to asset.generator in every document
const Generator = "scenecast"

const (
	modeTriangles   = 4
	bufferURIPrefix = "data:application/octet-stream;base64,"
)

// Document is the subset of glTF 2.0 this package writes
type Document struct {
	Asset       Asset        `json:"asset"`
	Scene       int          `json:"scene"`
	Scenes      []Scene      `json:"scenes"`
	Nodes       []Node       `json:"nodes"`
	Meshes      []Mesh       `json:"meshes"`
	Buffers     []Buffer     `json:"buffers"`
	BufferViews []BufferView `json:"bufferViews"`
	Accessors   []Accessor   `json:"accessors"`
	Images      []Image      `json:"images,omitempty"`
	Textures    []Texture    `json:"textures,omitempty"`
	Materials   []Material   `json:"materials,omitempty"`
}

// Asset identifies the glTF version and the producing tool
type Asset struct {
	Version   string `json:"version"`
	Generator string `json:"generator,omitempty"`
}

// Scene lists the root nodes to render
type Scene struct {
	Nodes []int `json:"nodes"`
}

// Node places a mesh in the scene
type Node struct {
	Mesh int `json:"mesh"`
}

// Mesh is a set of primitives drawn together
type Mesh struct {
	Primitives []Primitive `json:"primitives"`
}

// Primitive is one indexed draw call with its vertex attributes
type Primitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    int            `json:"indices"`
	Material   *int           `json:"material,omitempty"`
	Mode       int            `json:"mode"`
}

// Buffer holds binary vertex and index data as a data URI
type Buffer struct {
	ByteLength int    `json:"byteLength"`
	URI        string `json:"uri"`
}

// BufferView is a byte range of a buffer
type BufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
	Target     int `json:"target,omitempty"`
}

// Accessor describes typed elements stored in a buffer view
type Accessor struct {
	BufferView    int       `json:"bufferView"`
	ByteOffset    int       `json:"byteOffset"`
	ComponentType int       `json:"componentType"`
	Count         int       `json:"count"`
	Type          string    `json:"type"`
	Min           []float32 `json:"min,omitempty"`
	Max           []float32 `json:"max,omitempty"`
}

// Image references a texture file by URL
type Image struct {
	URI string `json:"uri"`
}

// Texture binds an image for sampling
type Texture struct {
	Source int `json:"source"`
}

// Material is the surface description of a primitive
type Material struct {
	PBRMetallicRoughness PBRMetallicRoughness `json:"pbrMetallicRoughness"`
}

// PBRMetallicRoughness carries the base color texture of a material
type PBRMetallicRoughness struct {
	BaseColorTexture *TextureInfo `json:"baseColorTexture,omitempty"`
}

// TextureInfo points a material slot at a texture
type TextureInfo struct {
	Index int `json:"index"`
}

// Build assembles the glTF document for g. The first texture URL becomes the
// base color of the single material; the rest are listed as images so
// clients can use them for multitexturing.
func Build(g Geometry, textureURLs []string) (*Document, error) {
	packed, err := packMesh(&g)
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Asset:  Asset{Version: "2.0", Generator: Generator},
		Scene:  0,
		Scenes: []Scene{{Nodes: []int{0}}},
		Nodes:  []Node{{Mesh: 0}},
		Buffers: []Buffer{{
			ByteLength: len(packed.data),
			URI:        bufferURIPrefix + base64.StdEncoding.EncodeToString(packed.data),
		}},
	}

	lo, hi := g.bounds()
	posAccessor := doc.addAccessor(packed.positions, targetArrayBuffer, Accessor{
		ComponentType: componentFloat,
		Count:         packed.positionCount,
		Type:          "VEC3",
		Min:           lo[:],
		Max:           hi[:],
	})
	idxAccessor := doc.addAccessor(packed.indices, targetElementArrayBuffer, Accessor{
		ComponentType: packed.indexType,
		Count:         packed.indexCount,
		Type:          "SCALAR",
	})

	prim := Primitive{
		Attributes: map[string]int{"POSITION": posAccessor},
		Indices:    idxAccessor,
		Mode:       modeTriangles,
	}
	if packed.hasUVs {
		prim.Attributes["TEXCOORD_0"] = doc.addAccessor(packed.uvs, targetArrayBuffer, Accessor{
			ComponentType: componentFloat,
			Count:         len(g.UVs),
			Type:          "VEC2",
		})
	}

	if len(textureURLs) > 0 {
		for _, url := range textureURLs {
			doc.Images = append(doc.Images, Image{URI: url})
		}
		doc.Textures = []Texture{{Source: 0}}
		doc.Materials = []Material{{
			PBRMetallicRoughness: PBRMetallicRoughness{BaseColorTexture: &TextureInfo{Index: 0}},
		}}
		material := 0
		prim.Material = &material
	}

	doc.Meshes = []Mesh{{Primitives: []Primitive{prim}}}
	return doc, nil
}

// Encode returns the compact JSON glTF document for g
func Encode(g Geometry, textureURLs []string) (string, error) {
	doc, err := Build(g, textureURLs)
	if err != nil {
		return "", errors.Wrap(err, "build glTF")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return "", errors.Wrap(err, "marshal glTF")
	}
	return string(data), nil
}

// Decode parses a document produced by Encode
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "unmarshal glTF")
	}
	return &doc, nil
}

// BufferData returns the bytes of an embedded data-URI buffer
func (b Buffer) BufferData() ([]byte, error) {
	if len(b.URI) < len(bufferURIPrefix) || b.URI[:len(bufferURIPrefix)] != bufferURIPrefix {
		return nil, errors.Errorf("buffer is not an embedded data URI")
	}
	return base64.StdEncoding.DecodeString(b.URI[len(bufferURIPrefix):])
}

func (d *Document) addAccessor(s section, target int, a Accessor) int {
	d.BufferViews = append(d.BufferViews, BufferView{
		Buffer:     0,
		ByteOffset: s.offset,
		ByteLength: s.length,
		Target:     target,
	})
	a.BufferView = len(d.BufferViews) - 1
	d.Accessors = append(d.Accessors, a)
	return len(d.Accessors) - 1
}
