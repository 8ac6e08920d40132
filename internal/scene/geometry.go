// Package scene turns reconstructed geometry into a self-contained glTF 2.0
// document that references its textures by URL.
package scene

import "github.com/pkg/errors"

// Vec3 is a vertex position
type Vec3 struct {
	X, Y, Z float32
}

// Vec2 is a texture coordinate
type Vec2 struct {
	U, V float32
}

// Geometry is a triangle mesh as produced by the reconstruction process.
// When Triangles is empty the vertices are read as a triangle soup: every
// three consecutive vertices form one triangle.
type Geometry struct {
	Vertices  []Vec3
	UVs       []Vec2
	Triangles [][3]uint32
}

var (
	// ErrEmptyGeometry is returned when there is nothing to draw
	ErrEmptyGeometry = errors.New("geometry has no vertices")
	// ErrIndexOutOfRange is returned when a triangle references a missing vertex
	ErrIndexOutOfRange = errors.New("triangle index out of range")
)

// HasUVs reports whether every vertex has a texture coordinate
func (g *Geometry) HasUVs() bool {
	return len(g.UVs) > 0 && len(g.UVs) == len(g.Vertices)
}

// Indices returns the flattened triangle index list
func (g *Geometry) Indices() ([]uint32, error) {
	if len(g.Vertices) == 0 {
		return nil, ErrEmptyGeometry
	}

	if len(g.Triangles) == 0 {
		indices := make([]uint32, len(g.Vertices)-len(g.Vertices)%3)
		if len(indices) == 0 {
			return nil, errors.Wrapf(ErrEmptyGeometry, "%d vertices do not form a triangle", len(g.Vertices))
		}
		for i := range indices {
			indices[i] = uint32(i)
		}
		return indices, nil
	}

	indices := make([]uint32, 0, len(g.Triangles)*3)
	for i, tri := range g.Triangles {
		for _, idx := range tri {
			if int(idx) >= len(g.Vertices) {
				return nil, errors.Wrapf(ErrIndexOutOfRange, "triangle %d references vertex %d of %d", i, idx, len(g.Vertices))
			}
		}
		indices = append(indices, tri[0], tri[1], tri[2])
	}
	return indices, nil
}

// bounds returns the component-wise min and max of the vertex positions
func (g *Geometry) bounds() (lo, hi [3]float32) {
	lo = [3]float32{g.Vertices[0].X, g.Vertices[0].Y, g.Vertices[0].Z}
	hi = lo
	for _, v := range g.Vertices[1:] {
		for i, c := range [3]float32{v.X, v.Y, v.Z} {
			lo[i] = min(lo[i], c)
			hi[i] = max(hi[i], c)
		}
	}
	return lo, hi
}
