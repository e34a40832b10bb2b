// Package compositor produces the final signed document: it re-parses the
// original bytes, transforms every placed signature into point space and
// stamps it into its page's content, then serializes the result.
package compositor

import (
	"context"
	"errors"

	"github.com/tungpham42/sign/document"
	"github.com/tungpham42/sign/observability"
	"github.com/tungpham42/sign/placement"
	"github.com/tungpham42/sign/viewport"
)

var (
	// ErrSourceDecode mirrors document.ErrSourceDecode for callers that
	// only import this package.
	ErrSourceDecode = document.ErrSourceDecode

	// ErrExportInFlight reports a second export started while one is
	// still running on the same exporter.
	ErrExportInFlight = errors.New("compositor: export already in flight")
)

// Config tunes stamping. The zero value is a fully opaque overlay drawn
// on top of existing page content.
type Config struct {
	// Opacity of the stamped overlays; 0 means 1.0 (opaque).
	Opacity float64
}

// Skip records one placement the export left out and why. A single bad
// overlay never blocks signing of the rest of the document.
type Skip struct {
	PlacementID string
	Page        int
	Reason      string
}

// Result summarizes one export.
type Result struct {
	Applied int
	Skipped []Skip
}

// Exporter composites placements into a fresh parse of the original
// document bytes. Implementations reject concurrent exports.
type Exporter interface {
	Export(ctx context.Context, original []byte, placements []placement.Signature, viewports map[int]viewport.Entry) ([]byte, Result, error)
}

// New returns an Exporter with the given configuration.
func New(cfg Config, log observability.Logger) Exporter {
	if cfg.Opacity <= 0 || cfg.Opacity > 1 {
		cfg.Opacity = 1
	}
	return &exporter{cfg: cfg, log: observability.OrNop(log)}
}
