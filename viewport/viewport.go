// Package viewport tracks, per page, the relationship between the page's
// displayed pixel box and its intrinsic point box. The registry is the
// single source of truth for that mapping; entries are overwritten on
// every successful page render (last writer wins) and are absent until
// the first render completes.
package viewport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tungpham42/sign/coords"
	"github.com/tungpham42/sign/observability"
)

var (
	// ErrNotReady reports a lookup for a page that has not been rendered
	// yet. Placement and export must refuse such pages gracefully.
	ErrNotReady = errors.New("viewport: page not rendered yet")

	// ErrInvalidDimensions reports an update with non-positive or
	// non-finite geometry. The previous entry, if any, is retained.
	ErrInvalidDimensions = errors.New("viewport: invalid dimensions")
)

// Entry records one page's mapping at its current render scale.
// Generation increases monotonically across all updates, so geometry
// captured against an older entry can be detected and re-projected.
type Entry struct {
	DisplayW, DisplayH float64
	PDFW, PDFH         float64
	Generation         uint64
}

// Mapping returns the coordinate mapping for the entry.
func (e Entry) Mapping() (coords.Mapping, error) {
	return coords.NewMapping(e.DisplayW, e.DisplayH, e.PDFW, e.PDFH)
}

type Registry struct {
	mu      sync.RWMutex
	entries map[int]Entry
	gen     uint64
	log     observability.Logger
}

func NewRegistry(log observability.Logger) *Registry {
	return &Registry{
		entries: make(map[int]Entry),
		log:     observability.OrNop(log),
	}
}

// Update overwrites the entry for page. Malformed dimensions are rejected
// and the previous entry kept, since a broken entry would corrupt every
// downstream transform.
func (r *Registry) Update(page int, displayW, displayH, pdfW, pdfH float64) error {
	if page < 1 {
		return fmt.Errorf("%w: page %d", ErrInvalidDimensions, page)
	}
	if _, err := coords.NewMapping(displayW, displayH, pdfW, pdfH); err != nil {
		r.log.Warn("viewport update rejected",
			observability.Int("page", page),
			observability.Float64("displayW", displayW),
			observability.Float64("displayH", displayH),
			observability.Error("err", err))
		return fmt.Errorf("%w: %v", ErrInvalidDimensions, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.entries[page] = Entry{
		DisplayW:   displayW,
		DisplayH:   displayH,
		PDFW:       pdfW,
		PDFH:       pdfH,
		Generation: r.gen,
	}
	return nil
}

// Get returns the current mapping for page, if present.
func (r *Registry) Get(page int) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[page]
	return e, ok
}

// Require is Get with absence surfaced as ErrNotReady.
func (r *Registry) Require(page int) (Entry, error) {
	e, ok := r.Get(page)
	if !ok {
		return Entry{}, fmt.Errorf("%w: page %d", ErrNotReady, page)
	}
	return e, nil
}

// Snapshot copies the current entries for export-time iteration.
func (r *Registry) Snapshot() map[int]Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int]Entry, len(r.entries))
	for page, e := range r.entries {
		out[page] = e
	}
	return out
}

// Reset drops all entries, e.g. when a new document is loaded.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[int]Entry)
}
