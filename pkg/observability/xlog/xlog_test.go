package xlog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/omeyang/xoption/pkg/observability/xlog"
)

func testCleanup(t *testing.T, cleanup func() error) {
	t.Helper()
	t.Cleanup(func() {
		if err := cleanup(); err != nil {
			t.Errorf("cleanup error: %v", err)
		}
	})
}

func buildJSON(t *testing.T, buf *bytes.Buffer, level xlog.Level) xlog.LoggerWithLevel {
	t.Helper()
	logger, cleanup, err := xlog.New().
		SetOutput(buf).
		SetFormat("json").
		SetLevel(level).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	testCleanup(t, cleanup)
	return logger
}

func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &rec); err != nil {
		t.Fatalf("invalid json %q: %v", lines[len(lines)-1], err)
	}
	return rec
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := buildJSON(t, &buf, xlog.LevelWarn)
	ctx := context.Background()

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %s", buf.String())
	}
	logger.Warn(ctx, "warn message")
	if got := lastRecord(t, &buf)["msg"]; got != "warn message" {
		t.Errorf("msg = %v", got)
	}

	logger.SetLevel(xlog.LevelDebug)
	if logger.GetLevel() != xlog.LevelDebug {
		t.Errorf("GetLevel() = %v", logger.GetLevel())
	}
	child := logger.With(slog.String("k", "v"))
	child.Debug(ctx, "debug message")
	rec := lastRecord(t, &buf)
	if rec["msg"] != "debug message" || rec["k"] != "v" {
		t.Errorf("unexpected record %v", rec)
	}
	if !logger.Enabled(ctx, xlog.LevelDebug) {
		t.Error("Enabled(debug) = false after SetLevel")
	}
}

func TestLogger_DomainAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := buildJSON(t, &buf, xlog.LevelInfo)

	logger.Info(context.Background(), "value set",
		xlog.Path("od.ip"),
		xlog.Index(-1),
		xlog.Owner("user"),
		xlog.Properties([]string{"frozen", "hidden"}),
		xlog.Err(nil),
	)
	rec := lastRecord(t, &buf)
	if rec[xlog.KeyPath] != "od.ip" || rec[xlog.KeyOwner] != "user" {
		t.Errorf("unexpected record %v", rec)
	}
	if _, ok := rec[xlog.KeyIndex]; ok {
		t.Error("negative index should be omitted")
	}
	if _, ok := rec[xlog.KeyError]; ok {
		t.Error("nil error should be omitted")
	}
	props, ok := rec[xlog.KeyProperties].([]any)
	if !ok || len(props) != 2 {
		t.Errorf("properties = %v", rec[xlog.KeyProperties])
	}

	logger.Info(context.Background(), "root", xlog.Path(""), xlog.Index(2), xlog.Err(errors.New("boom")))
	rec = lastRecord(t, &buf)
	if rec[xlog.KeyPath] != "<root>" || rec[xlog.KeyIndex] != float64(2) || rec[xlog.KeyError] != "boom" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestLogger_ContextAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := buildJSON(t, &buf, xlog.LevelInfo)

	ctx := xlog.ContextWith(context.Background(), xlog.Session("s1"), xlog.Config("a"))
	ctx = xlog.ContextWith(ctx, xlog.Config("b"))
	logger.Info(ctx, "loaded")

	rec := lastRecord(t, &buf)
	if rec[xlog.KeySession] != "s1" || rec[xlog.KeyConfig] != "b" {
		t.Errorf("unexpected record %v", rec)
	}
	if got := len(xlog.ContextAttrs(ctx)); got != 2 {
		t.Errorf("ContextAttrs len = %d, want 2", got)
	}

	var plain bytes.Buffer
	noEnrich, cleanup, err := xlog.New().SetOutput(&plain).SetFormat("json").SetEnrich(false).Build()
	if err != nil {
		t.Fatal(err)
	}
	testCleanup(t, cleanup)
	noEnrich.Info(ctx, "loaded")
	if _, ok := lastRecord(t, &plain)[xlog.KeySession]; ok {
		t.Error("session injected with enrich disabled")
	}
}

func TestLogger_Stack(t *testing.T) {
	var buf bytes.Buffer
	logger := buildJSON(t, &buf, xlog.LevelInfo)

	logger.Stack(context.Background(), "crash")
	rec := lastRecord(t, &buf)
	stack, _ := rec[xlog.KeyStack].(string)
	if !strings.Contains(stack, "TestLogger_Stack") {
		t.Errorf("stack missing caller: %s", stack)
	}
	if rec["level"] != "ERROR" {
		t.Errorf("level = %v", rec["level"])
	}
}

func TestLogger_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := buildJSON(t, &buf, xlog.LevelInfo)

	logger.WithGroup("cache").Info(context.Background(), "hit", xlog.Count(3))
	group, ok := lastRecord(t, &buf)["cache"].(map[string]any)
	if !ok || group[xlog.KeyCount] != float64(3) {
		t.Errorf("unexpected record %s", buf.String())
	}
	if logger.WithGroup("") != xlog.Logger(logger) {
		t.Error("WithGroup(\"\") should return the same logger")
	}
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		builder *xlog.Builder
	}{
		{"bad level", xlog.New().SetLevelString("verbose")},
		{"bad format", xlog.New().SetFormat("xml")},
		{"nil output", xlog.New().SetOutput(nil)},
		{"empty rotation", xlog.New().SetRotation(xlog.Rotation{})},
		{"bad rotation", xlog.New().SetRotation(xlog.Rotation{Filename: "x.log", MaxSizeMB: -1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := tt.builder.Build(); err == nil {
				t.Error("Build() error = nil")
			}
		})
	}
}

func TestBuilder_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "xoption.log")
	logger, cleanup, err := xlog.New().
		SetRotation(xlog.Rotation{Filename: path, MaxSizeMB: 1}).
		SetAttrs(slog.String("app", "xoptctl")).
		Build()
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	logger.Info(context.Background(), "rotated", xlog.Duration(time.Second))
	if err := cleanup(); err != nil {
		t.Fatal(err)
	}
	if err := cleanup(); err != nil {
		t.Fatalf("second cleanup: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "rotated") || !strings.Contains(string(data), "app=xoptctl") {
		t.Errorf("unexpected file content %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want xlog.Level
		err  bool
	}{
		{"debug", xlog.LevelDebug, false},
		{" INFO ", xlog.LevelInfo, false},
		{"warning", xlog.LevelWarn, false},
		{"error", xlog.LevelError, false},
		{"trace", xlog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := xlog.ParseLevel(tt.in)
			if (err != nil) != tt.err || got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
			}
		})
	}

	var l xlog.Level
	if err := l.UnmarshalText([]byte("warn")); err != nil || l != xlog.LevelWarn {
		t.Errorf("UnmarshalText = %v, %v", l, err)
	}
	if text, _ := xlog.LevelError.MarshalText(); string(text) != "ERROR" {
		t.Errorf("MarshalText = %s", text)
	}
}

func TestLazy(t *testing.T) {
	var buf bytes.Buffer
	logger := buildJSON(t, &buf, xlog.LevelInfo)

	called := false
	logger.Debug(context.Background(), "skip", xlog.Lazy("tree", func() any {
		called = true
		return nil
	}))
	if called {
		t.Error("lazy value evaluated for disabled level")
	}
	logger.Info(context.Background(), "keep", xlog.LazyString("tree", func() string { return "od" }))
	if lastRecord(t, &buf)["tree"] != "od" {
		t.Errorf("unexpected record %s", buf.String())
	}
}

func TestDiscardAndGlobal(t *testing.T) {
	d := xlog.Discard()
	d.Error(context.Background(), "dropped")
	if d.Enabled(context.Background(), xlog.LevelError) {
		t.Error("Discard logger should not be enabled")
	}

	t.Cleanup(xlog.ResetDefault)
	var buf bytes.Buffer
	xlog.SetDefault(buildJSON(t, &buf, xlog.LevelInfo))
	xlog.SetDefault(nil)
	xlog.Info(context.Background(), "global")
	if lastRecord(t, &buf)["msg"] != "global" {
		t.Errorf("unexpected output %s", buf.String())
	}

	xlog.ResetDefault()
	if xlog.Default() == nil {
		t.Fatal("Default() = nil")
	}
}

func TestLogger_AddSource(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := xlog.New().SetOutput(&buf).SetFormat("json").SetAddSource(true).Build()
	if err != nil {
		t.Fatal(err)
	}
	testCleanup(t, cleanup)

	sourceFile := func() string {
		src, _ := lastRecord(t, &buf)["source"].(map[string]any)
		file, _ := src["file"].(string)
		return filepath.Base(file)
	}

	logger.Info(context.Background(), "method")
	if got := sourceFile(); got != "xlog_test.go" {
		t.Errorf("method source = %q", got)
	}
	logger.Stack(context.Background(), "stack")
	if got := sourceFile(); got != "xlog_test.go" {
		t.Errorf("stack source = %q", got)
	}

	t.Cleanup(xlog.ResetDefault)
	xlog.SetDefault(logger)
	xlog.Warn(context.Background(), "global")
	if got := sourceFile(); got != "xlog_test.go" {
		t.Errorf("global source = %q", got)
	}
}
