package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestSlogBridge_ContextFieldsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "debug", Mode: "cached", Component: "test"}, &buf)
	log := NewSlog(&zl)

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithOp(ctx, "decode")
	ctx = WithCacheTier(ctx, "lru")

	log.With("code", "4P3-JM8-K4L6").InfoContext(ctx, "decoded",
		"lat", 12.9, "levels", 10, "err", errors.New("boom"))

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("lines=%d want 1", len(lines))
	}
	got := lines[0]
	want := map[string]any{
		"msg":        "decoded",
		"level":      "info",
		"mode":       "cached",
		"request_id": "req-1",
		"op":         "decode",
		"cache":      "lru",
		"code":       "4P3-JM8-K4L6",
		"lat":        12.9,
		"levels":     float64(10),
		"err":        "boom",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("field %s=%v want %v (line=%v)", k, got[k], v, got)
		}
	}
	if _, ok := got["timestamp"]; !ok {
		t.Fatalf("missing timestamp: %v", got)
	}
}

func TestSlogBridge_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "warn"}, &buf)
	log := NewSlog(&zl)

	log.Info("dropped")
	log.Debug("dropped")
	log.Warn("kept")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["msg"] != "kept" || lines[0]["level"] != "warn" {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestSlogBridge_GroupsFlatten(t *testing.T) {
	var buf bytes.Buffer
	zl := Build(Config{Level: "info"}, &buf)
	log := NewSlog(&zl)

	log.WithGroup("cell").Info("g", "lat", 1.5)

	lines := decodeLines(t, &buf)
	if len(lines) != 1 || lines[0]["cell.lat"] != 1.5 {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func TestWithRequestID_GeneratesWhenEmpty(t *testing.T) {
	ctx := WithRequestID(context.Background(), "")
	id, _ := ctx.Value(ctxReqIDKey).(string)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("id=%q is not a uuid: %v", id, err)
	}
}
