// Package coords converts between display space (rendered page pixels,
// origin top-left, y down) and point space (PDF user space, origin
// bottom-left, y up). All functions are pure; a Mapping is safe to use
// concurrently.
package coords

import (
	"errors"
	"fmt"
	"math"
)

// ErrDegenerateMapping reports a viewport whose dimensions cannot produce
// finite coordinates (zero or non-finite page or display extent).
var ErrDegenerateMapping = errors.New("coords: degenerate mapping")

type Point struct{ X, Y float64 }

// Rect is an axis-aligned rectangle. In display space (X, Y) is the
// top-left corner; in point space it is the lower-left corner. W and H
// are always positive extents.
type Rect struct{ X, Y, W, H float64 }

type Matrix [6]float64

func Identity() Matrix { return Matrix{1, 0, 0, 1, 0, 0} }

func (m Matrix) Multiply(o Matrix) Matrix {
	return Matrix{
		m[0]*o[0] + m[1]*o[2], m[0]*o[1] + m[1]*o[3],
		m[2]*o[0] + m[3]*o[2], m[2]*o[1] + m[3]*o[3],
		m[4]*o[0] + m[5]*o[2] + o[4], m[4]*o[1] + m[5]*o[3] + o[5],
	}
}

func (m Matrix) Transform(p Point) Point {
	return Point{X: m[0]*p.X + m[2]*p.Y + m[4], Y: m[1]*p.X + m[3]*p.Y + m[5]}
}

func (m Matrix) Inverse() (Matrix, error) {
	det := m[0]*m[3] - m[1]*m[2]
	if math.Abs(det) < 1e-10 {
		return Matrix{}, fmt.Errorf("%w: singular matrix", ErrDegenerateMapping)
	}
	return Matrix{
		m[3] / det, -m[1] / det,
		-m[2] / det, m[0] / det,
		(m[2]*m[5] - m[3]*m[4]) / det, (m[1]*m[4] - m[0]*m[5]) / det,
	}, nil
}

func Translate(tx, ty float64) Matrix { return Matrix{1, 0, 0, 1, tx, ty} }
func Scale(sx, sy float64) Matrix     { return Matrix{sx, 0, 0, sy, 0, 0} }

// Mapping relates one page's display box to its intrinsic point box.
type Mapping struct {
	DisplayW, DisplayH float64
	PDFW, PDFH         float64
}

// NewMapping validates the four extents. All must be positive and finite;
// anything else would turn downstream transforms into Inf/NaN geometry.
func NewMapping(displayW, displayH, pdfW, pdfH float64) (Mapping, error) {
	for _, v := range []float64{displayW, displayH, pdfW, pdfH} {
		if v <= 0 || math.IsInf(v, 0) || math.IsNaN(v) {
			return Mapping{}, fmt.Errorf("%w: display %gx%g over points %gx%g",
				ErrDegenerateMapping, displayW, displayH, pdfW, pdfH)
		}
	}
	return Mapping{DisplayW: displayW, DisplayH: displayH, PDFW: pdfW, PDFH: pdfH}, nil
}

// ScaleX returns display pixels per point horizontally.
func (m Mapping) ScaleX() float64 { return m.DisplayW / m.PDFW }

// ScaleY returns display pixels per point vertically.
func (m Mapping) ScaleY() float64 { return m.DisplayH / m.PDFH }

// displayToPoint is the affine map taking a display-space point to point
// space: divide by the scale factors and flip the vertical axis around
// the page height.
func (m Mapping) displayToPoint() Matrix {
	return Scale(1/m.ScaleX(), -1/m.ScaleY()).Multiply(Translate(0, m.PDFH))
}

// ToPoint converts a display-space rectangle to the point-space rectangle
// covering the same region of the page. The returned rectangle is
// anchored at its lower-left corner.
func (m Mapping) ToPoint(r Rect) (Rect, error) {
	if err := m.check(); err != nil {
		return Rect{}, err
	}
	t := m.displayToPoint()
	// The display top-left corner maps to the point-space upper-left;
	// the display bottom-right maps to the point-space lower-right.
	ul := t.Transform(Point{X: r.X, Y: r.Y})
	lr := t.Transform(Point{X: r.X + r.W, Y: r.Y + r.H})
	out := Rect{X: ul.X, Y: lr.Y, W: lr.X - ul.X, H: ul.Y - lr.Y}
	if !out.finite() {
		return Rect{}, fmt.Errorf("%w: non-finite result for %+v", ErrDegenerateMapping, r)
	}
	return out, nil
}

// FromPoint is the inverse of ToPoint. It is used to seed placement from
// a click point; re-editing always stays in display space.
func (m Mapping) FromPoint(r Rect) (Rect, error) {
	if err := m.check(); err != nil {
		return Rect{}, err
	}
	inv, err := m.displayToPoint().Inverse()
	if err != nil {
		return Rect{}, err
	}
	ll := inv.Transform(Point{X: r.X, Y: r.Y})
	ur := inv.Transform(Point{X: r.X + r.W, Y: r.Y + r.H})
	out := Rect{X: ll.X, Y: ur.Y, W: ur.X - ll.X, H: ll.Y - ur.Y}
	if !out.finite() {
		return Rect{}, fmt.Errorf("%w: non-finite result for %+v", ErrDegenerateMapping, r)
	}
	return out, nil
}

func (m Mapping) check() error {
	_, err := NewMapping(m.DisplayW, m.DisplayH, m.PDFW, m.PDFH)
	return err
}

func (r Rect) finite() bool {
	for _, v := range []float64{r.X, r.Y, r.W, r.H} {
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return false
		}
	}
	return true
}
