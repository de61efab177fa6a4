package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestNewFanoutHandlerNilHandlers(t *testing.T) {
	h := newFanoutHandler(nil, NoopHandler{}, nil)
	if _, ok := h.(NoopHandler); !ok {
		t.Errorf("expected NoopHandler for nil and noop handlers, got %T", h)
	}
}

func TestNewFanoutHandlerSingleHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)

	if h := newFanoutHandler(nil, inner, nil); h != inner {
		t.Error("expected single non-nil handler to be returned unwrapped")
	}
}

func TestFanoutHandlerEnabled(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h1 := slog.NewJSONHandler(&buf1, &slog.HandlerOptions{Level: slog.LevelWarn})
	h2 := slog.NewJSONHandler(&buf2, &slog.HandlerOptions{Level: slog.LevelInfo})

	h := newFanoutHandler(h1, h2)
	if !h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("expected fanout to be enabled for info (h2 accepts it)")
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected fanout to not be enabled for debug")
	}
}

func TestFanoutHandlerHandleRespectsLevel(t *testing.T) {
	var infoBuf, warnBuf bytes.Buffer
	h1 := slog.NewJSONHandler(&infoBuf, &slog.HandlerOptions{Level: slog.LevelInfo})
	h2 := slog.NewJSONHandler(&warnBuf, &slog.HandlerOptions{Level: slog.LevelWarn})

	logger := slog.New(newFanoutHandler(h1, h2))
	logger.Info("info message", slog.String("attr", "value"))

	if !bytes.Contains(infoBuf.Bytes(), []byte(`"attr"`)) {
		t.Error("expected attr in info buffer")
	}
	if warnBuf.Len() != 0 {
		t.Error("expected no output in warn buffer")
	}
}

func TestFanoutHandlerWithAttrsAndGroup(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	h := newFanoutHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil))

	logger := slog.New(h.WithAttrs([]slog.Attr{slog.String("key", "value")}).WithGroup("dup"))
	logger.Info("test", slog.String("field", "x"))

	for i, buf := range []*bytes.Buffer{&buf1, &buf2} {
		if !bytes.Contains(buf.Bytes(), []byte(`"key"`)) {
			t.Errorf("expected key attribute in buffer %d", i)
		}
		if !bytes.Contains(buf.Bytes(), []byte(`"dup"`)) {
			t.Errorf("expected group in buffer %d", i)
		}
	}
}

func TestTeeLogger(t *testing.T) {
	var combined, specific bytes.Buffer
	logger := TeeLogger(
		slog.New(slog.NewJSONHandler(&combined, nil)),
		nil,
		slog.New(slog.NewJSONHandler(&specific, nil)),
	)
	logger.Info("teed message")

	if combined.Len() == 0 {
		t.Error("expected output in combined buffer")
	}
	if specific.Len() == 0 {
		t.Error("expected output in specific buffer")
	}
}

func TestTeeHandler(t *testing.T) {
	var buf1, buf2 bytes.Buffer
	logger := slog.New(TeeHandler(slog.NewJSONHandler(&buf1, nil), slog.NewJSONHandler(&buf2, nil)))
	logger.Info("tee handler test")

	if buf1.Len() == 0 || buf2.Len() == 0 {
		t.Error("expected output in both buffers")
	}
}
