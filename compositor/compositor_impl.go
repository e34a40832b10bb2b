package compositor

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/tungpham42/sign/coords"
	"github.com/tungpham42/sign/document"
	"github.com/tungpham42/sign/observability"
	"github.com/tungpham42/sign/placement"
	"github.com/tungpham42/sign/viewport"
)

type exporter struct {
	cfg      Config
	log      observability.Logger
	inFlight atomic.Bool
}

// Export applies the placement snapshot to a fresh parse of original and
// returns the serialized result. Unparsable source bytes abort the whole
// export; per-placement failures (missing viewport, degenerate mapping,
// undecodable overlay, page out of range) skip that placement and are
// reported in the Result. With nothing to apply the original bytes are
// returned unchanged.
func (e *exporter) Export(ctx context.Context, original []byte, placements []placement.Signature, viewports map[int]viewport.Entry) ([]byte, Result, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, Result{}, ErrExportInFlight
	}
	defer e.inFlight.Store(false)

	info, err := document.Probe(original)
	if err != nil {
		return nil, Result{}, err
	}

	// Deterministic application order: page first, then placement order.
	snapshot := make([]placement.Signature, len(placements))
	copy(snapshot, placements)
	sort.SliceStable(snapshot, func(i, j int) bool { return snapshot[i].Page < snapshot[j].Page })

	var res Result
	stamps := make(map[int][]*model.Watermark)
	for _, sig := range snapshot {
		if err := ctx.Err(); err != nil {
			return nil, Result{}, err
		}
		wm, skip := e.stamp(sig, info, viewports)
		if skip != nil {
			e.log.Warn("placement skipped",
				observability.String("id", skip.PlacementID),
				observability.Int("page", skip.Page),
				observability.String("reason", skip.Reason))
			res.Skipped = append(res.Skipped, *skip)
			continue
		}
		stamps[sig.Page] = append(stamps[sig.Page], wm)
		res.Applied++
	}

	if len(stamps) == 0 {
		out := make([]byte, len(original))
		copy(out, original)
		return out, res, nil
	}

	var buf bytes.Buffer
	conf := model.NewDefaultConfiguration()
	if err := api.AddWatermarksSliceMap(bytes.NewReader(original), &buf, stamps, conf); err != nil {
		return nil, Result{}, fmt.Errorf("compositor: stamping failed: %w", err)
	}
	e.log.Info("export complete",
		observability.Int("applied", res.Applied),
		observability.Int("skipped", len(res.Skipped)),
		observability.Int("bytes", buf.Len()))
	return buf.Bytes(), res, nil
}

// stamp turns one placed signature into a pdfcpu image watermark anchored
// at the lower-left corner of its point-space rectangle.
func (e *exporter) stamp(sig placement.Signature, info document.Info, viewports map[int]viewport.Entry) (*model.Watermark, *Skip) {
	fail := func(reason string) (*model.Watermark, *Skip) {
		return nil, &Skip{PlacementID: sig.ID, Page: sig.Page, Reason: reason}
	}

	if sig.Page < 1 || sig.Page > info.PageCount {
		return fail(fmt.Sprintf("page %d out of range 1..%d", sig.Page, info.PageCount))
	}
	entry, ok := viewports[sig.Page]
	if !ok {
		return fail("missing viewport")
	}
	mapping, err := entry.Mapping()
	if err != nil {
		return fail(err.Error())
	}
	x, y, w, h, err := sig.DisplayRect(entry)
	if err != nil {
		return fail(err.Error())
	}
	rect, err := mapping.ToPoint(coords.Rect{X: x, Y: y, W: w, H: h})
	if err != nil {
		return fail(err.Error())
	}
	if rect.W <= 0 || rect.H <= 0 {
		return fail(fmt.Sprintf("empty point rect %gx%g", rect.W, rect.H))
	}

	// The stamping backend scales the raster uniformly; match the
	// overlay's pixel aspect to the target rectangle first.
	overlay, err := sig.Image.Resample(rect.H / rect.W)
	if err != nil {
		return fail(err.Error())
	}

	wm, err := api.ImageWatermarkForReader(bytes.NewReader(overlay.PNG), "pos:bl, rot:0", true, false, types.POINTS)
	if err != nil {
		return fail(err.Error())
	}
	wm.Dx = rect.X
	wm.Dy = rect.Y
	wm.Scale = rect.W / float64(overlay.Width)
	wm.ScaleAbs = true
	wm.Opacity = e.cfg.Opacity
	return wm, nil
}
