package raster

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"testing"

	"github.com/tungpham42/sign/internal/testpdf"
)

func TestDecodePNGPassthrough(t *testing.T) {
	data := testpdf.PNG(40, 20)
	ov, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ov.Width != 40 || ov.Height != 20 {
		t.Fatalf("unexpected dimensions: %dx%d", ov.Width, ov.Height)
	}
	if !bytes.Equal(ov.PNG, data) {
		t.Fatalf("png bytes were rewritten on passthrough")
	}
	if got := ov.AspectRatio(); math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("aspect ratio: got %g want 0.5", got)
	}
}

func TestDecodeJPEGReencodes(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 30, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 30; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}

	ov, err := Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ov.Width != 30 || ov.Height != 10 {
		t.Fatalf("unexpected dimensions: %dx%d", ov.Width, ov.Height)
	}
	if _, err := Decode(ov.PNG); err != nil {
		t.Fatalf("re-encoded bytes are not a decodable png: %v", err)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, err := Decode([]byte("definitely not an image")); !errors.Is(err, ErrDecode) {
		t.Fatalf("got %v, want ErrDecode", err)
	}
	if _, err := Decode(nil); !errors.Is(err, ErrDecode) {
		t.Fatalf("got %v, want ErrDecode for empty input", err)
	}
}

func TestResampleChangesAspect(t *testing.T) {
	ov, err := Decode(testpdf.PNG(40, 20))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	square, err := ov.Resample(1.0)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if square.Width != 40 || square.Height != 40 {
		t.Fatalf("unexpected dimensions after resample: %dx%d", square.Width, square.Height)
	}
	if _, err := Decode(square.PNG); err != nil {
		t.Fatalf("resampled bytes are not a decodable png: %v", err)
	}
}

func TestResampleWithinToleranceIsNoop(t *testing.T) {
	ov, err := Decode(testpdf.PNG(400, 200))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	same, err := ov.Resample(0.5000001)
	if err != nil {
		t.Fatalf("resample: %v", err)
	}
	if !bytes.Equal(same.PNG, ov.PNG) {
		t.Fatalf("near-identical aspect triggered a resample")
	}
}

func TestResampleRejectsBadAspect(t *testing.T) {
	ov, err := Decode(testpdf.PNG(10, 10))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, aspect := range []float64{0, -1, math.Inf(1), math.NaN()} {
		if _, err := ov.Resample(aspect); !errors.Is(err, ErrDecode) {
			t.Fatalf("Resample(%g): got %v, want ErrDecode", aspect, err)
		}
	}
}
