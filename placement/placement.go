// Package placement owns the set of signature overlays the user has
// positioned on the document. All geometry is kept in display-pixel
// space; conversion to point space happens only at export time.
package placement

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/tungpham42/sign/observability"
	"github.com/tungpham42/sign/raster"
	"github.com/tungpham42/sign/viewport"
)

var (
	ErrPlacementNotFound = errors.New("placement: id not found")
	ErrInvalidGeometry   = errors.New("placement: invalid geometry")
)

// DefaultWidthFraction is the share of the page's display width a freshly
// placed signature occupies.
const DefaultWidthFraction = 0.30

// Signature is one placed overlay. X, Y, W, H are display pixels and are
// interpreted against the display box (BoxW, BoxH) captured from the
// page's viewport entry when the geometry was last written. Generation
// identifies that entry; if the page has been re-rendered since, the
// fractional form X/BoxW etc. is re-projected onto the new box instead of
// trusting raw pixels.
type Signature struct {
	ID    string
	Page  int
	Image raster.Overlay

	X, Y, W, H float64
	BoxW, BoxH float64
	Generation uint64
}

type Model struct {
	mu   sync.Mutex
	byID map[string]*Signature
	ids  []string
	log  observability.Logger
}

func NewModel(log observability.Logger) *Model {
	return &Model{
		byID: make(map[string]*Signature),
		log:  observability.OrNop(log),
	}
}

// Place creates a signature centered on the click point. The default
// rectangle is DefaultWidthFraction of the page's display width, with
// height preserving the overlay's aspect ratio. The caller resolves the
// page's viewport entry first; placement before the first render is
// refused upstream with a not-ready error.
func (m *Model) Place(e viewport.Entry, page int, clickX, clickY float64, img raster.Overlay) (string, error) {
	if img.Width <= 0 || img.Height <= 0 {
		return "", fmt.Errorf("%w: overlay %dx%d", ErrInvalidGeometry, img.Width, img.Height)
	}
	w := DefaultWidthFraction * e.DisplayW
	h := w * img.AspectRatio()
	if w <= 0 || h <= 0 {
		return "", fmt.Errorf("%w: derived box %gx%g", ErrInvalidGeometry, w, h)
	}
	sig := &Signature{
		ID:         uuid.NewString(),
		Page:       page,
		Image:      img,
		X:          clickX - w/2,
		Y:          clickY - h/2,
		W:          w,
		H:          h,
		BoxW:       e.DisplayW,
		BoxH:       e.DisplayH,
		Generation: e.Generation,
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[sig.ID] = sig
	m.ids = append(m.ids, sig.ID)
	m.log.Debug("signature placed",
		observability.String("id", sig.ID),
		observability.Int("page", page),
		observability.Float64("w", w),
		observability.Float64("h", h))
	return sig.ID, nil
}

// Move translates the signature to a new top-left corner.
func (m *Model) Move(id string, x, y float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlacementNotFound, id)
	}
	sig.X, sig.Y = x, y
	return nil
}

// Resize rewrites the signature's box. Width and height must stay
// positive; x and y carry the new top-left corner so resizes anchored at
// any corner are expressible.
func (m *Model) Resize(id string, w, h, x, y float64) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %gx%g", ErrInvalidGeometry, w, h)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.byID[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlacementNotFound, id)
	}
	sig.X, sig.Y, sig.W, sig.H = x, y, w, h
	return nil
}

func (m *Model) Remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return fmt.Errorf("%w: %s", ErrPlacementNotFound, id)
	}
	delete(m.byID, id)
	for i, v := range m.ids {
		if v == id {
			m.ids = append(m.ids[:i], m.ids[i+1:]...)
			break
		}
	}
	return nil
}

// List returns copies of the signatures on page, in placement order.
func (m *Model) List(page int) []Signature {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Signature
	for _, id := range m.ids {
		if sig := m.byID[id]; sig.Page == page {
			out = append(out, *sig)
		}
	}
	return out
}

// ListAll returns copies of every signature in placement order.
func (m *Model) ListAll() []Signature {
	return m.Snapshot()
}

// Snapshot copies all signatures so export can iterate without observing
// a concurrently in-progress edit. Overlay bytes are shared; they are
// never mutated after decode.
func (m *Model) Snapshot() []Signature {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Signature, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, *m.byID[id])
	}
	return out
}

// Reset drops all signatures.
func (m *Model) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID = make(map[string]*Signature)
	m.ids = nil
}

// DisplayRect resolves the rectangle to use against the given viewport
// entry. When the signature's geometry was captured against the same
// entry generation the raw pixels are trusted; otherwise the rectangle is
// re-projected fractionally onto the entry's current display box, so a
// zoom change between edit and export cannot skew the output.
func (s Signature) DisplayRect(e viewport.Entry) (x, y, w, h float64, err error) {
	if s.Generation == e.Generation {
		return s.X, s.Y, s.W, s.H, nil
	}
	if s.BoxW <= 0 || s.BoxH <= 0 {
		return 0, 0, 0, 0, fmt.Errorf("%w: captured box %gx%g", ErrInvalidGeometry, s.BoxW, s.BoxH)
	}
	kx := e.DisplayW / s.BoxW
	ky := e.DisplayH / s.BoxH
	return s.X * kx, s.Y * ky, s.W * kx, s.H * ky, nil
}
