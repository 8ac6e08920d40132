package scene

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

// glTF component types and buffer view targets
const (
	componentUnsignedShort = 5123
	componentUnsignedInt   = 5125
	componentFloat         = 5126

	targetArrayBuffer        = 34962
	targetElementArrayBuffer = 34963
)

// Meshes with more vertices than this need 32-bit indices
const maxShortIndexVertices = 65535

// section records where one attribute landed inside the packed buffer
type section struct {
	offset int
	length int
}

// packedMesh is the single binary buffer backing a mesh
type packedMesh struct {
	data          []byte
	positions     section
	indices       section
	uvs           section
	indexCount    int
	indexType     int
	hasUVs        bool
	positionCount int
}

// packMesh lays out positions, indices and optional UVs in one little-endian
// buffer, padding each section to a 4-byte boundary as glTF requires.
func packMesh(g *Geometry) (*packedMesh, error) {
	indices, err := g.Indices()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	out := &packedMesh{
		indexCount:    len(indices),
		hasUVs:        g.HasUVs(),
		positionCount: len(g.Vertices),
	}

	// Write positions
	out.positions.offset = buf.Len()
	for _, v := range g.Vertices {
		if err := binary.Write(&buf, binary.LittleEndian, [3]float32{v.X, v.Y, v.Z}); err != nil {
			return nil, errors.Wrap(err, "failed to write position")
		}
	}
	out.positions.length = buf.Len() - out.positions.offset

	// Write indices
	out.indices.offset = buf.Len()
	if len(g.Vertices) <= maxShortIndexVertices {
		out.indexType = componentUnsignedShort
		short := make([]uint16, len(indices))
		for i, idx := range indices {
			short[i] = uint16(idx)
		}
		if err := binary.Write(&buf, binary.LittleEndian, short); err != nil {
			return nil, errors.Wrap(err, "failed to write 16-bit indices")
		}
	} else {
		out.indexType = componentUnsignedInt
		if err := binary.Write(&buf, binary.LittleEndian, indices); err != nil {
			return nil, errors.Wrap(err, "failed to write 32-bit indices")
		}
	}
	out.indices.length = buf.Len() - out.indices.offset
	pad4(&buf)

	// Write UVs
	if out.hasUVs {
		out.uvs.offset = buf.Len()
		for _, uv := range g.UVs {
			if err := binary.Write(&buf, binary.LittleEndian, [2]float32{uv.U, uv.V}); err != nil {
				return nil, errors.Wrap(err, "failed to write texture coordinate")
			}
		}
		out.uvs.length = buf.Len() - out.uvs.offset
	}

	out.data = buf.Bytes()
	return out, nil
}

func pad4(buf *bytes.Buffer) {
	for buf.Len()%4 != 0 {
		buf.WriteByte(0)
	}
}
