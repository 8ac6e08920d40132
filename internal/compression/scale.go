package compression

import (
	"image"

	"golang.org/x/image/draw"
)

// Downscale shrinks img so its longer edge is at most maxSize, preserving the
// aspect ratio. Images already within bounds, or maxSize <= 0, are returned
// unchanged.
func Downscale(img image.Image, maxSize int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxSize <= 0 || (w <= maxSize && h <= maxSize) {
		return img
	}

	nw, nh := maxSize, maxSize
	if w >= h {
		nh = max(1, h*maxSize/w)
	} else {
		nw = max(1, w*maxSize/h)
	}

	rect := image.Rect(0, 0, nw, nh)
	var dst draw.Image
	if _, ok := img.(*image.Gray); ok {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewNRGBA(rect)
	}
	draw.ApproxBiLinear.Scale(dst, rect, img, b, draw.Src, nil)
	return dst
}
