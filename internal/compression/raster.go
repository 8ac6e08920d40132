package compression

import (
	"bytes"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// Maximum edge length accepted for a raster
const MaxRasterDimension = 16384

// ErrInvalidRaster is returned for rasters whose shape does not match their pixel buffer
var ErrInvalidRaster = errors.New("invalid raster")

// Raster is a decoded, uncompressed image: Width×Height pixels of Channels
// interleaved 8-bit samples, row-major with no padding. Channels is 1 (gray),
// 3 (RGB) or 4 (non-premultiplied RGBA).
type Raster struct {
	Width    int
	Height   int
	Channels int
	Pix      []byte
}

// NewRaster allocates a zeroed raster
func NewRaster(width, height, channels int) (*Raster, error) {
	r := &Raster{Width: width, Height: height, Channels: channels}
	if err := r.checkShape(); err != nil {
		return nil, err
	}
	r.Pix = make([]byte, width*height*channels)
	return r, nil
}

// RasterFromImage copies img into a raster. Gray images keep one channel,
// everything else is converted to RGBA.
func RasterFromImage(img image.Image) *Raster {
	b := img.Bounds()
	switch src := img.(type) {
	case *image.Gray:
		return &Raster{Width: b.Dx(), Height: b.Dy(), Channels: 1, Pix: copyRows(src.Pix, src.Stride, b.Dx(), b.Dy(), src.PixOffset(b.Min.X, b.Min.Y))}
	case *image.NRGBA:
		return &Raster{Width: b.Dx(), Height: b.Dy(), Channels: 4, Pix: copyRows(src.Pix, src.Stride, b.Dx()*4, b.Dy(), src.PixOffset(b.Min.X, b.Min.Y))}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return &Raster{Width: b.Dx(), Height: b.Dy(), Channels: 4, Pix: dst.Pix}
}

func copyRows(pix []byte, stride, rowBytes, rows, offset int) []byte {
	out := make([]byte, rowBytes*rows)
	for y := 0; y < rows; y++ {
		copy(out[y*rowBytes:(y+1)*rowBytes], pix[offset+y*stride:])
	}
	return out
}

func (r *Raster) checkShape() error {
	if r.Width <= 0 || r.Height <= 0 || r.Width > MaxRasterDimension || r.Height > MaxRasterDimension {
		return errors.Wrapf(ErrInvalidRaster, "dimensions %dx%d", r.Width, r.Height)
	}
	switch r.Channels {
	case 1, 3, 4:
	default:
		return errors.Wrapf(ErrInvalidRaster, "unsupported channel count %d", r.Channels)
	}
	return nil
}

// Validate checks the shape and that Pix holds exactly Width*Height*Channels bytes
func (r *Raster) Validate() error {
	if r == nil {
		return errors.Wrap(ErrInvalidRaster, "nil raster")
	}
	if err := r.checkShape(); err != nil {
		return err
	}
	if want := r.Width * r.Height * r.Channels; len(r.Pix) != want {
		return errors.Wrapf(ErrInvalidRaster, "pixel buffer has %d bytes, want %d", len(r.Pix), want)
	}
	return nil
}

// Image returns an image.Image view of the raster. One- and four-channel
// rasters share Pix; three-channel rasters are expanded into a new buffer.
// The returned image must not be modified.
func (r *Raster) Image() (image.Image, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	rect := image.Rect(0, 0, r.Width, r.Height)
	switch r.Channels {
	case 1:
		return &image.Gray{Pix: r.Pix, Stride: r.Width, Rect: rect}, nil
	case 4:
		return &image.NRGBA{Pix: r.Pix, Stride: r.Width * 4, Rect: rect}, nil
	}

	img := image.NewNRGBA(rect)
	for src, dst := 0, 0; src < len(r.Pix); src, dst = src+3, dst+4 {
		img.Pix[dst] = r.Pix[src]
		img.Pix[dst+1] = r.Pix[src+1]
		img.Pix[dst+2] = r.Pix[src+2]
		img.Pix[dst+3] = 0xff
	}
	return img, nil
}

// pngEncoder favours speed: textures are re-encoded on every request.
var pngEncoder = png.Encoder{CompressionLevel: png.BestSpeed}

// Encode writes img to w in the given raster format
func Encode(w io.Writer, img image.Image, f Format) error {
	switch f {
	case PNG:
		return pngEncoder.Encode(w, img)
	case JPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	default:
		return errors.Errorf("format %s is not a raster format", f)
	}
}

// EncodeRaster re-encodes r into f, downscaling first when maxSize > 0.
// The full result is buffered so callers never emit a partial body.
func EncodeRaster(r *Raster, f Format, maxSize int) ([]byte, error) {
	img, err := r.Image()
	if err != nil {
		return nil, err
	}
	img = Downscale(img, maxSize)

	var buf bytes.Buffer
	if err := Encode(&buf, img, f); err != nil {
		return nil, errors.Wrapf(err, "encode %s", f)
	}
	return buf.Bytes(), nil
}
