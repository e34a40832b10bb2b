package observability

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestSlogLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	l.Info("export complete", Int("applied", 2), String("doc", "a.pdf"), Float64("scale", 0.5))
	out := buf.String()
	for _, want := range []string{"export complete", "applied=2", "doc=a.pdf", "scale=0.5"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q: %s", want, out)
		}
	}
}

func TestSlogLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))

	l.With(Int("page", 3)).Warn("placement skipped", Error("err", errors.New("missing viewport")))
	out := buf.String()
	for _, want := range []string{"placement skipped", "page=3", "missing viewport"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %q: %s", want, out)
		}
	}
}

func TestOrNop(t *testing.T) {
	if _, ok := OrNop(nil).(NopLogger); !ok {
		t.Fatalf("OrNop(nil) did not return NopLogger")
	}
	var buf bytes.Buffer
	l := NewSlogLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	if OrNop(l) != l {
		t.Fatalf("OrNop rewrapped a non-nil logger")
	}
}

func TestNopLoggerIsSilent(t *testing.T) {
	var l Logger = NopLogger{}
	l.Debug("a")
	l.Info("b", Int("n", 1))
	l.Warn("c")
	l.Error("d", Error("err", errors.New("x")))
	if _, ok := l.With(String("k", "v")).(NopLogger); !ok {
		t.Fatalf("With on NopLogger changed type")
	}
}
