// Package raster decodes and normalizes signature overlay images. The
// rest of the module treats an Overlay as opaque PNG bytes plus intrinsic
// pixel dimensions for aspect-ratio math.
package raster

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"math"

	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode reports bytes that no registered image codec understands.
var ErrDecode = errors.New("raster: image decode failed")

// Overlay is a decoded signature image, normalized to PNG.
type Overlay struct {
	PNG    []byte
	Width  int
	Height int
}

// AspectRatio returns height over width.
func (o Overlay) AspectRatio() float64 {
	if o.Width == 0 {
		return 0
	}
	return float64(o.Height) / float64(o.Width)
}

// Decode probes data and returns it as an Overlay. PNG bytes pass through
// untouched; JPEG, BMP, TIFF and WebP uploads are re-encoded to PNG.
func Decode(data []byte) (Overlay, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Overlay{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Overlay{}, fmt.Errorf("%w: empty %dx%d image", ErrDecode, cfg.Width, cfg.Height)
	}
	if format == "png" {
		return Overlay{PNG: data, Width: cfg.Width, Height: cfg.Height}, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Overlay{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return encode(img)
}

// Resample returns an overlay whose pixel aspect ratio (height/width)
// matches targetAspect. The stamping backend scales uniformly, so a
// placement rectangle that distorts the source aspect is honored by
// resampling the raster first. Overlays already within tolerance are
// returned unchanged.
func (o Overlay) Resample(targetAspect float64) (Overlay, error) {
	if targetAspect <= 0 || math.IsInf(targetAspect, 0) || math.IsNaN(targetAspect) {
		return Overlay{}, fmt.Errorf("%w: target aspect %g", ErrDecode, targetAspect)
	}
	if o.Width <= 0 || o.Height <= 0 {
		return Overlay{}, fmt.Errorf("%w: empty overlay", ErrDecode)
	}
	const tolerance = 1e-3
	if math.Abs(o.AspectRatio()-targetAspect) <= tolerance*targetAspect {
		return o, nil
	}
	src, _, err := image.Decode(bytes.NewReader(o.PNG))
	if err != nil {
		return Overlay{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	w := o.Width
	h := int(math.Round(float64(w) * targetAspect))
	if h < 1 {
		h = 1
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return encode(dst)
}

func encode(img image.Image) (Overlay, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Overlay{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	b := img.Bounds()
	return Overlay{PNG: buf.Bytes(), Width: b.Dx(), Height: b.Dy()}, nil
}
