package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONLoggerAddsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf, Component: ComponentSession})

	l.Debug("hidden")
	l.Info("session started", FieldUser, "niloy")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec[FieldComponent] != ComponentSession || rec[FieldUser] != "niloy" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestTextLoggerUsesTint(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Format: "text", Output: &buf})
	l.Debug("hello", "k", "v")
	if !strings.Contains(buf.String(), "hello") || !strings.Contains(buf.String(), "k=") {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

func TestContextLoggerCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Format: "json", Output: &buf}).With(FieldRequestID, "req_abc")
	ctx := WithLogger(context.Background(), base)

	NewStructuredLogger(FromContext(ctx)).LogExpenseWritten(ctx, OpCreate, "niloy", "e1", "food", "2024-05-01", "joint", 1250)

	out := buf.String()
	for _, want := range []string{`"request_id":"req_abc"`, `"expense_id":"e1"`, `"amount_cents":1250`, `"user":"niloy"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %q", want, out)
		}
	}
}

func TestStructuredLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Format: "json", Output: &buf}))
	r := httptest.NewRequest(http.MethodPost, "/expenses", nil)

	sl.LogHTTPEnd(context.Background(), r, 500, 12, "10.0.0.1")
	sl.LogError(context.Background(), "boom", errors.New("db down"), ComponentStorage, OpCreate, nil)

	out := buf.String()
	if !strings.Contains(out, `"level":"ERROR"`) || !strings.Contains(out, `"error":"db down"`) {
		t.Fatalf("unexpected output %q", out)
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}
