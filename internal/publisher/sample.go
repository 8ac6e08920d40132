package publisher

import (
	"github.com/earthring/scenecast/internal/chunkstore"
	"github.com/earthring/scenecast/internal/compression"
	"github.com/earthring/scenecast/internal/scene"
)

const sampleTextureSize = 64

// SampleRequest builds a unit quad with one checkerboard texture, used to
// smoke-test a deployment without a reconstruction process attached.
func SampleRequest(id chunkstore.ID) Request {
	tex, _ := compression.NewRaster(sampleTextureSize, sampleTextureSize, 3)
	for y := 0; y < sampleTextureSize; y++ {
		for x := 0; x < sampleTextureSize; x++ {
			off := (y*sampleTextureSize + x) * 3
			if (x/8+y/8)%2 == 0 {
				tex.Pix[off], tex.Pix[off+1], tex.Pix[off+2] = 0xe0, 0xe0, 0xe0
			} else {
				tex.Pix[off], tex.Pix[off+1], tex.Pix[off+2] = 0x30, 0x60, 0xa0
			}
		}
	}

	return Request{
		ChunkID: id,
		Geometry: scene.Geometry{
			Vertices:  []scene.Vec3{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}},
			UVs:       []scene.Vec2{{U: 0, V: 1}, {U: 1, V: 1}, {U: 1, V: 0}, {U: 0, V: 0}},
			Triangles: [][3]uint32{{0, 1, 2}, {0, 2, 3}},
		},
		Textures: []*compression.Raster{tex},
	}
}
