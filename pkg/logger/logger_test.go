package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &m); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return m
}

func TestFieldsOnEvent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel)

	l.Warn("fit failed",
		String("symbol", "AAPL"),
		Int("steps", 10),
		Float64("confidence", 42.5),
		Bool("fallback", true),
		Duration("took_ms", 1500*time.Millisecond),
		Strings("topics", []string{"a", "b"}),
		Error(errors.New("singular")),
	)
	m := decode(t, &buf)
	if m["level"] != "warn" || m["message"] != "fit failed" {
		t.Fatalf("level/message: %v", m)
	}
	if m["symbol"] != "AAPL" || m["steps"] != float64(10) || m["fallback"] != true {
		t.Fatalf("fields: %v", m)
	}
	if m["took_ms"] != float64(1500) || m["topics"] != "a, b" || m["error"] != "singular" {
		t.Fatalf("fields: %v", m)
	}
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.InfoLevel)
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug written at info level: %s", buf.String())
	}
}

func TestWithAndComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.InfoLevel).Component("predictor").With(String("request_id", "r-1"), Error(nil))

	l.Info("done")
	m := decode(t, &buf)
	if m["component"] != "predictor" || m["request_id"] != "r-1" {
		t.Fatalf("child fields missing: %v", m)
	}
	if _, ok := m["error"]; ok {
		t.Fatalf("nil error should add nothing: %v", m)
	}
}

func TestCtxFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.InfoLevel)
	if l.Ctx(context.Background()) != l {
		t.Fatal("empty context should return the same logger")
	}

	ctx := ContextWithFields(context.Background(), String("request_id", "r-9"))
	ctx = ContextWithFields(ctx, String("symbol", "MSFT"))
	l.Ctx(ctx).Info("forecast computed")

	m := decode(t, &buf)
	if m["request_id"] != "r-9" || m["symbol"] != "MSFT" {
		t.Fatalf("context fields missing: %v", m)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(&Config{Level: "loud"}); err == nil {
		t.Fatal("expected error")
	}
}
