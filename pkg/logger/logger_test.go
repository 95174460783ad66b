package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := Init(WithFormat("json")); err != nil {
		t.Fatalf("failed to initialize json logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after re-initialization")
	}

	if err := Init(WithFormat("xml")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithFormat("json"), WithOutput(&buf)); err != nil {
		t.Fatalf("init: %v", err)
	}

	Named("ledger").Info(context.Background(), "entry recorded",
		String("category", "task"), Int("points", 10), Error(errors.New("boom")))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not json: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "entry recorded" {
		t.Errorf("msg = %v", rec["msg"])
	}
	if rec["component"] != "ledger" {
		t.Errorf("component = %v", rec["component"])
	}
	if rec["category"] != "task" {
		t.Errorf("category = %v", rec["category"])
	}
	src, _ := rec["source"].(string)
	if !strings.Contains(src, "logger_test.go") {
		t.Errorf("source = %q, want caller file", src)
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithOutput(&buf)); err != nil {
		t.Fatalf("init: %v", err)
	}

	Get().With(String("event_id", "e1")).Warn(context.Background(), "late")
	if !strings.Contains(buf.String(), "event_id=e1") {
		t.Errorf("missing bound field in %q", buf.String())
	}
}

func TestSetLevelString(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithOutput(&buf)); err != nil {
		t.Fatalf("init: %v", err)
	}
	defer func() { _ = SetLevelString("info") }()

	ctx := context.Background()
	Get().Debug(ctx, "hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug should be filtered at info, got %q", buf.String())
	}

	if err := SetLevelString("DEBUG"); err != nil {
		t.Fatalf("set level: %v", err)
	}
	Get().Debug(ctx, "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("debug not emitted after SetLevelString: %q", buf.String())
	}

	for _, lvl := range []string{"info", "warn", "warning", "error", ""} {
		if err := SetLevelString(lvl); err != nil {
			t.Errorf("SetLevelString(%q): %v", lvl, err)
		}
	}
	if err := SetLevelString("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestSync(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := Sync(); err != nil {
		t.Errorf("sync: %v", err)
	}
}
