// Package document is the read-only probe over the PDF collaborator. It
// exposes the two facts the engine needs from a document: page count and
// per-page intrinsic size in points. Parsing always starts from raw
// bytes; nothing here holds mutable document state.
package document

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrSourceDecode reports bytes that do not parse as a valid PDF.
var ErrSourceDecode = errors.New("document: source decode failed")

// Size is one page's intrinsic extent in points.
type Size struct {
	Width  float64
	Height float64
}

// Info describes a successfully parsed document.
type Info struct {
	PageCount int
	PageSizes []Size // index i holds page i+1
}

// Size returns the intrinsic size of a 1-based page number.
func (i Info) Size(page int) (Size, error) {
	if page < 1 || page > len(i.PageSizes) {
		return Size{}, fmt.Errorf("document: page %d out of range 1..%d", page, len(i.PageSizes))
	}
	return i.PageSizes[page-1], nil
}

// Probe parses and validates data, returning page count and sizes.
func Probe(data []byte) (Info, error) {
	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrSourceDecode, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrSourceDecode, err)
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrSourceDecode, err)
	}
	info := Info{PageCount: ctx.PageCount, PageSizes: make([]Size, 0, len(dims))}
	for _, d := range dims {
		info.PageSizes = append(info.PageSizes, Size{Width: d.Width, Height: d.Height})
	}
	return info, nil
}
