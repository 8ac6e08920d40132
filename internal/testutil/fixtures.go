package testutil

import (
	"fmt"

	"github.com/earthring/scenecast/internal/chunkstore"
	"github.com/earthring/scenecast/internal/compression"
)

// GradientRaster returns a width×height raster whose samples vary with x and
// y, so resampling and channel mix-ups are visible.
func GradientRaster(width, height, channels int) *compression.Raster {
	r, err := compression.NewRaster(width, height, channels)
	if err != nil {
		panic(err)
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			off := (y*width + x) * channels
			for c := 0; c < channels; c++ {
				r.Pix[off+c] = byte((x*7 + y*13 + c*50) % 256)
			}
			if channels == 4 {
				r.Pix[off+3] = 0xff
			}
		}
	}
	return r
}

// EXRBytes returns an opaque blob starting with the OpenEXR magic number
func EXRBytes(n int) []byte {
	b := make([]byte, n)
	copy(b, []byte{0x76, 0x2f, 0x31, 0x01})
	for i := 4; i < n; i++ {
		b[i] = byte(i)
	}
	return b
}

// ChunkFixture describes a chunk for tests
type ChunkFixture struct {
	Document string
	Images   map[string]*compression.Raster
	Raw      map[string][]byte
}

// NewChunkFixture returns a chunk with PNG and JPEG textures, a grayscale
// mask under an unrecognised suffix, an EXR depth map and an extensionless
// raw blob.
func NewChunkFixture(id chunkstore.ID) ChunkFixture {
	return ChunkFixture{
		Document: fmt.Sprintf(`{"asset":{"version":"2.0"},"extras":{"chunk":%d}}`, id),
		Images: map[string]*compression.Raster{
			"tex_0.png": GradientRaster(32, 16, 3),
			"photo.jpg": GradientRaster(16, 16, 3),
			"mask.gray": GradientRaster(4, 4, 1),
		},
		Raw: map[string][]byte{
			"depth.exr": EXRBytes(64),
			"meta":      []byte("raw metadata"),
		},
	}
}

// Build turns the fixture into a chunk
func (f ChunkFixture) Build() *chunkstore.Chunk {
	b := chunkstore.NewBuilder(f.Document)
	for name, r := range f.Images {
		if err := b.AddImage(name, r); err != nil {
			panic(err)
		}
	}
	for name, data := range f.Raw {
		if err := b.AddRaw(name, data); err != nil {
			panic(err)
		}
	}
	return b.Build()
}

// PublishFixture builds a fixture chunk for id and publishes it to store
func PublishFixture(store *chunkstore.Store, id chunkstore.ID) ChunkFixture {
	f := NewChunkFixture(id)
	store.Publish(id, f.Build())
	return f
}
