package compression

import (
	"path"
	"strings"
)

// Format identifies how a texture asset is stored and served
type Format int

const (
	// Binary is any asset whose suffix is not recognized
	Binary Format = iota
	// PNG assets are re-encoded from a raster on every read
	PNG
	// JPEG assets are re-encoded from a raster on every read
	JPEG
	// EXR assets are served verbatim from raw bytes
	EXR
)

// Content types served for each format
const (
	ContentTypePNG    = "image/png"
	ContentTypeJPEG   = "image/jpeg"
	ContentTypeEXR    = "image/exr"
	ContentTypeBinary = "application/octet-stream"
)

// JPEGQuality is used when a raster is re-encoded as JPEG
const JPEGQuality = 90

// FormatForFilename returns the Format implied by the filename suffix.
// Matching is case-insensitive.
func FormatForFilename(filename string) Format {
	switch strings.ToLower(path.Ext(filename)) {
	case ".png":
		return PNG
	case ".jpg", ".jpeg":
		return JPEG
	case ".exr":
		return EXR
	default:
		return Binary
	}
}

// ContentType returns the MIME type served for the format
func (f Format) ContentType() string {
	switch f {
	case PNG:
		return ContentTypePNG
	case JPEG:
		return ContentTypeJPEG
	case EXR:
		return ContentTypeEXR
	default:
		return ContentTypeBinary
	}
}

// IsRaster reports whether assets of this format live in a chunk's image map
func (f Format) IsRaster() bool {
	return f == PNG || f == JPEG
}

func (f Format) String() string {
	switch f {
	case PNG:
		return "png"
	case JPEG:
		return "jpeg"
	case EXR:
		return "exr"
	default:
		return "binary"
	}
}
