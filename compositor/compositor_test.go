package compositor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tungpham42/sign/document"
	"github.com/tungpham42/sign/internal/testpdf"
	"github.com/tungpham42/sign/placement"
	"github.com/tungpham42/sign/raster"
	"github.com/tungpham42/sign/viewport"
)

func overlayFixture(t *testing.T) raster.Overlay {
	t.Helper()
	ov, err := raster.Decode(testpdf.PNG(120, 60))
	if err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return ov
}

func signatureOn(t *testing.T, page int, e viewport.Entry) placement.Signature {
	t.Helper()
	return placement.Signature{
		ID:   "sig-" + strings.Repeat("x", page),
		Page: page, Image: overlayFixture(t),
		X: 100, Y: 100, W: 60, H: 40,
		BoxW: e.DisplayW, BoxH: e.DisplayH,
		Generation: e.Generation,
	}
}

func TestExportAppliesPlacements(t *testing.T) {
	src := testpdf.Document(2, 300, 400)
	entry := viewport.Entry{DisplayW: 600, DisplayH: 800, PDFW: 300, PDFH: 400, Generation: 1}
	viewports := map[int]viewport.Entry{1: entry, 2: entry}

	e := New(Config{}, nil)
	out, res, err := e.Export(context.Background(), src,
		[]placement.Signature{signatureOn(t, 1, entry), signatureOn(t, 2, entry)}, viewports)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.Applied != 2 || len(res.Skipped) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}

	info, err := document.Probe(out)
	if err != nil {
		t.Fatalf("output does not reparse: %v", err)
	}
	if info.PageCount != 2 {
		t.Fatalf("page count changed: got %d want 2", info.PageCount)
	}
}

func TestExportMultiplePlacementsPerPage(t *testing.T) {
	src := testpdf.Document(2, 300, 400)
	entry := viewport.Entry{DisplayW: 600, DisplayH: 800, PDFW: 300, PDFH: 400, Generation: 1}
	// Page 2 was never rendered: no viewport entry.
	viewports := map[int]viewport.Entry{1: entry}

	second := signatureOn(t, 1, entry)
	second.ID = "sig-second"
	second.X, second.Y = 300, 500
	placements := []placement.Signature{
		signatureOn(t, 1, entry),
		second,
		signatureOn(t, 2, entry),
	}

	e := New(Config{}, nil)
	out, res, err := e.Export(context.Background(), src, placements, viewports)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.Applied != 2 || len(res.Skipped) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Skipped[0].Page != 2 {
		t.Fatalf("wrong placement skipped: %+v", res.Skipped[0])
	}
	info, err := document.Probe(out)
	if err != nil {
		t.Fatalf("output does not reparse: %v", err)
	}
	if info.PageCount != 2 {
		t.Fatalf("page count changed: got %d want 2", info.PageCount)
	}
}

func TestExportPartialFailureIsolation(t *testing.T) {
	src := testpdf.Document(3, 300, 400)
	entry := viewport.Entry{DisplayW: 600, DisplayH: 800, PDFW: 300, PDFH: 400, Generation: 1}
	// Page 2 was never rendered: no viewport entry.
	viewports := map[int]viewport.Entry{1: entry, 3: entry}

	placements := []placement.Signature{
		signatureOn(t, 1, entry),
		signatureOn(t, 2, entry),
		signatureOn(t, 3, entry),
	}

	e := New(Config{}, nil)
	out, res, err := e.Export(context.Background(), src, placements, viewports)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.Applied != 2 {
		t.Fatalf("applied: got %d want 2", res.Applied)
	}
	if len(res.Skipped) != 1 {
		t.Fatalf("skipped: got %d want 1", len(res.Skipped))
	}
	if res.Skipped[0].Page != 2 || !strings.Contains(res.Skipped[0].Reason, "missing viewport") {
		t.Fatalf("unexpected skip record: %+v", res.Skipped[0])
	}
	if _, err := document.Probe(out); err != nil {
		t.Fatalf("output does not reparse: %v", err)
	}
}

func TestExportPageOutOfRange(t *testing.T) {
	src := testpdf.Document(1, 300, 400)
	entry := viewport.Entry{DisplayW: 600, DisplayH: 800, PDFW: 300, PDFH: 400, Generation: 1}
	viewports := map[int]viewport.Entry{1: entry, 9: entry}

	e := New(Config{}, nil)
	_, res, err := e.Export(context.Background(), src,
		[]placement.Signature{signatureOn(t, 9, entry)}, viewports)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.Applied != 0 || len(res.Skipped) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !strings.Contains(res.Skipped[0].Reason, "out of range") {
		t.Fatalf("unexpected reason: %q", res.Skipped[0].Reason)
	}
}

func TestExportEmptyModel(t *testing.T) {
	src := testpdf.Document(2, 595, 842)
	e := New(Config{}, nil)
	out, res, err := e.Export(context.Background(), src, nil, map[int]viewport.Entry{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if res.Applied != 0 || len(res.Skipped) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("empty export altered the document bytes")
	}
	info, err := document.Probe(out)
	if err != nil || info.PageCount != 2 {
		t.Fatalf("output invalid: info=%+v err=%v", info, err)
	}
}

func TestExportBadSource(t *testing.T) {
	e := New(Config{}, nil)
	_, _, err := e.Export(context.Background(), []byte("not a pdf"), nil, nil)
	if !errors.Is(err, ErrSourceDecode) {
		t.Fatalf("got %v, want ErrSourceDecode", err)
	}
}

func TestExportInFlightGuard(t *testing.T) {
	e := New(Config{}, nil).(*exporter)
	e.inFlight.Store(true)
	_, _, err := e.Export(context.Background(), testpdf.Document(1, 300, 400), nil, nil)
	if !errors.Is(err, ErrExportInFlight) {
		t.Fatalf("got %v, want ErrExportInFlight", err)
	}

	// Released latch admits the next export.
	e.inFlight.Store(false)
	if _, _, err := e.Export(context.Background(), testpdf.Document(1, 300, 400), nil, nil); err != nil {
		t.Fatalf("export after release: %v", err)
	}
}

func TestExportIdempotence(t *testing.T) {
	src := testpdf.Document(1, 300, 400)
	entry := viewport.Entry{DisplayW: 600, DisplayH: 800, PDFW: 300, PDFH: 400, Generation: 1}
	viewports := map[int]viewport.Entry{1: entry}
	placements := []placement.Signature{signatureOn(t, 1, entry)}

	e := New(Config{}, nil)
	first, res1, err := e.Export(context.Background(), src, placements, viewports)
	if err != nil {
		t.Fatalf("first export: %v", err)
	}
	second, res2, err := e.Export(context.Background(), src, placements, viewports)
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if res1.Applied != res2.Applied || len(res1.Skipped) != len(res2.Skipped) {
		t.Fatalf("results diverged: %+v vs %+v", res1, res2)
	}
	// Both runs start from the same raw bytes; each output must reparse
	// with the same shape regardless of serializer byte-level choices.
	i1, err := document.Probe(first)
	if err != nil {
		t.Fatalf("first output: %v", err)
	}
	i2, err := document.Probe(second)
	if err != nil {
		t.Fatalf("second output: %v", err)
	}
	if i1.PageCount != i2.PageCount {
		t.Fatalf("page counts diverged: %d vs %d", i1.PageCount, i2.PageCount)
	}
}

func TestExportCancelled(t *testing.T) {
	src := testpdf.Document(1, 300, 400)
	entry := viewport.Entry{DisplayW: 600, DisplayH: 800, PDFW: 300, PDFH: 400, Generation: 1}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := New(Config{}, nil)
	_, _, err := e.Export(ctx, src, []placement.Signature{signatureOn(t, 1, entry)},
		map[int]viewport.Entry{1: entry})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}
