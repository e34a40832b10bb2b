// Package session owns one document's editing state: the viewport
// registry, the placement model and the exporter. Its methods map 1:1 to
// the discrete user events of the interactive flow (load, render
// complete, click placement, drag stop, resize stop, remove, export,
// reset) and are dispatched synchronously by a single logical writer.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/tungpham42/sign/compositor"
	"github.com/tungpham42/sign/document"
	"github.com/tungpham42/sign/observability"
	"github.com/tungpham42/sign/placement"
	"github.com/tungpham42/sign/raster"
	"github.com/tungpham42/sign/viewport"
)

// ErrNoDocument reports an operation that needs a loaded document.
var ErrNoDocument = errors.New("session: no document loaded")

type Session struct {
	log      observability.Logger
	registry *viewport.Registry
	model    *placement.Model
	exporter compositor.Exporter

	original []byte
	info     document.Info
}

// New creates an empty session. cfg tunes the exporter; log may be nil.
func New(cfg compositor.Config, log observability.Logger) *Session {
	log = observability.OrNop(log)
	return &Session{
		log:      log,
		registry: viewport.NewRegistry(log),
		model:    placement.NewModel(log),
		exporter: compositor.New(cfg, log),
	}
}

// LoadDocument replaces the session's document. Previous viewports and
// placements are discarded; the bytes are copied and kept immutable so
// every export re-parses the same source.
func (s *Session) LoadDocument(data []byte) (document.Info, error) {
	info, err := document.Probe(data)
	if err != nil {
		return document.Info{}, err
	}
	s.original = make([]byte, len(data))
	copy(s.original, data)
	s.info = info
	s.registry.Reset()
	s.model.Reset()
	s.log.Info("document loaded", observability.Int("pages", info.PageCount))
	return info, nil
}

// PageRendered records the display box of a freshly rendered page. The
// intrinsic point box comes from the loaded document, so callers only
// report what they know: the pixel dimensions on screen.
func (s *Session) PageRendered(page int, displayW, displayH float64) error {
	if s.original == nil {
		return ErrNoDocument
	}
	size, err := s.info.Size(page)
	if err != nil {
		return err
	}
	return s.registry.Update(page, displayW, displayH, size.Width, size.Height)
}

// PlaceAt places a signature centered on a click point, in display
// pixels. It fails with viewport.ErrNotReady until the page has rendered
// at least once.
func (s *Session) PlaceAt(page int, clickX, clickY float64, imageBytes []byte) (string, error) {
	if s.original == nil {
		return "", ErrNoDocument
	}
	entry, err := s.registry.Require(page)
	if err != nil {
		s.log.Warn("placement refused", observability.Int("page", page), observability.Error("err", err))
		return "", err
	}
	overlay, err := raster.Decode(imageBytes)
	if err != nil {
		return "", err
	}
	return s.model.Place(entry, page, clickX, clickY, overlay)
}

// PlaceOnAllPages places the overlay centered on every page that has a
// viewport entry and returns the new ids, one per stamped page.
func (s *Session) PlaceOnAllPages(imageBytes []byte) ([]string, error) {
	if s.original == nil {
		return nil, ErrNoDocument
	}
	overlay, err := raster.Decode(imageBytes)
	if err != nil {
		return nil, err
	}
	var ids []string
	for page := 1; page <= s.info.PageCount; page++ {
		entry, ok := s.registry.Get(page)
		if !ok {
			continue
		}
		id, err := s.model.Place(entry, page, entry.DisplayW/2, entry.DisplayH/2, overlay)
		if err != nil {
			return ids, fmt.Errorf("page %d: %w", page, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Drag moves a signature to a new top-left corner (drag-stop event).
func (s *Session) Drag(id string, x, y float64) error {
	return s.model.Move(id, x, y)
}

// Resize rewrites a signature's box (resize-stop event).
func (s *Session) Resize(id string, w, h, x, y float64) error {
	return s.model.Resize(id, w, h, x, y)
}

// Remove deletes a signature.
func (s *Session) Remove(id string) error {
	return s.model.Remove(id)
}

// Placements lists the signatures on one page.
func (s *Session) Placements(page int) []placement.Signature {
	return s.model.List(page)
}

// AllPlacements lists every signature in placement order.
func (s *Session) AllPlacements() []placement.Signature {
	return s.model.ListAll()
}

// Export composites all placements into a fresh parse of the original
// bytes. Placement and viewport state are snapshotted first, so edits
// racing the export never produce torn geometry.
func (s *Session) Export(ctx context.Context) ([]byte, compositor.Result, error) {
	if s.original == nil {
		return nil, compositor.Result{}, ErrNoDocument
	}
	return s.exporter.Export(ctx, s.original, s.model.Snapshot(), s.registry.Snapshot())
}

// Info returns the loaded document's probe data.
func (s *Session) Info() (document.Info, error) {
	if s.original == nil {
		return document.Info{}, ErrNoDocument
	}
	return s.info, nil
}

// Reset returns the session to its empty state.
func (s *Session) Reset() {
	s.original = nil
	s.info = document.Info{}
	s.registry.Reset()
	s.model.Reset()
}
