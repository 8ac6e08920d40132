// Package chunkstore holds the current immutable chunk for every chunk id.
package chunkstore

import (
	"sort"
	"strconv"

	"github.com/earthring/scenecast/internal/compression"
	"github.com/pkg/errors"
)

// DefaultContentType is served for chunk documents unless the builder overrides it
const DefaultContentType = "application/json"

// ID identifies a chunk. Ids are assigned by the producer and may be reused.
type ID int64

func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID parses a base-10 chunk id. Signs, whitespace and values that do not
// fit in an int64 are rejected.
func ParseID(s string) (ID, error) {
	if s == "" {
		return 0, errors.New("empty chunk id")
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errors.Errorf("chunk id %q is not a decimal number", s)
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "chunk id %q", s)
	}
	return ID(v), nil
}

// Chunk is one published scene: its document plus the textures it refers
// to. A chunk never changes after Build returns it.
type Chunk struct {
	document    string
	contentType string
	images      map[string]*compression.Raster
	raw         map[string][]byte
}

// Document returns the scene document
func (c *Chunk) Document() string { return c.document }

// ContentType returns the MIME type of the document
func (c *Chunk) ContentType() string { return c.contentType }

// Image returns the decoded raster stored under filename.
// Callers must treat the raster as read-only.
func (c *Chunk) Image(filename string) (*compression.Raster, bool) {
	r, ok := c.images[filename]
	return r, ok
}

// Raw returns the verbatim asset stored under filename.
// Callers must treat the bytes as read-only.
func (c *Chunk) Raw(filename string) ([]byte, bool) {
	b, ok := c.raw[filename]
	return b, ok
}

// ImageNames lists the image filenames in sorted order
func (c *Chunk) ImageNames() []string { return sortedKeys(c.images) }

// RawNames lists the raw asset filenames in sorted order
func (c *Chunk) RawNames() []string { return sortedKeys(c.raw) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Builder assembles a chunk. Assets added to a builder belong to it; Build
// moves them into the chunk and leaves the builder empty, so the producer
// keeps no writable alias to a published chunk.
type Builder struct {
	document    string
	contentType string
	images      map[string]*compression.Raster
	raw         map[string][]byte
}

// NewBuilder starts a chunk with the given document
func NewBuilder(document string) *Builder {
	b := &Builder{}
	b.reset()
	b.document = document
	return b
}

func (b *Builder) reset() {
	b.document = ""
	b.contentType = DefaultContentType
	b.images = make(map[string]*compression.Raster)
	b.raw = make(map[string][]byte)
}

// SetDocument replaces the document
func (b *Builder) SetDocument(document string) *Builder {
	b.document = document
	return b
}

// SetContentType overrides DefaultContentType
func (b *Builder) SetContentType(contentType string) *Builder {
	if contentType != "" {
		b.contentType = contentType
	}
	return b
}

// AddImage stores a decoded texture under filename, replacing any earlier one
func (b *Builder) AddImage(filename string, r *compression.Raster) error {
	if filename == "" {
		return errors.New("image filename is empty")
	}
	if err := r.Validate(); err != nil {
		return errors.Wrapf(err, "image %s", filename)
	}
	b.images[filename] = r
	return nil
}

// AddRaw stores a verbatim asset under filename, replacing any earlier one
func (b *Builder) AddRaw(filename string, data []byte) error {
	if filename == "" {
		return errors.New("raw asset filename is empty")
	}
	b.raw[filename] = data
	return nil
}

// Build returns the finished chunk and resets the builder
func (b *Builder) Build() *Chunk {
	c := &Chunk{
		document:    b.document,
		contentType: b.contentType,
		images:      b.images,
		raw:         b.raw,
	}
	b.reset()
	return c
}
