package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in); got != tc.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestResolveFormatExplicit(t *testing.T) {
	if got := resolveFormat("console"); got != "console" {
		t.Errorf("console = %q", got)
	}
	if got := resolveFormat("JSON"); got != "json" {
		t.Errorf("json = %q", got)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestNewWritesRotatedLogFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := New(Options{Level: "info", Format: "console", LogDir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello", String("key", "value"))

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello") || !strings.Contains(string(data), "key=value") {
		t.Errorf("log file content = %q", data)
	}
}

func TestPrettyHandlerLiftsComponent(t *testing.T) {
	var sb strings.Builder
	levelVar := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&sb, levelVar, false))

	NewComponentLogger(logger, "merge").Info("segments merged", Int("count", 3))

	line := sb.String()
	if !strings.Contains(line, "merge: segments merged") {
		t.Errorf("component not lifted into prefix: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Errorf("component attr should not repeat as key=value: %q", line)
	}
	if !strings.Contains(line, "count=3") {
		t.Errorf("attr missing: %q", line)
	}
}

func TestPrettyHandlerQuotesValuesWithSpaces(t *testing.T) {
	var sb strings.Builder
	levelVar := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&sb, levelVar, false))

	logger.Info("msg", String("text", "two words"))
	if !strings.Contains(sb.String(), `text="two words"`) {
		t.Errorf("value not quoted: %q", sb.String())
	}
}

func TestWithContextAddsRunFields(t *testing.T) {
	var sb strings.Builder
	levelVar := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&sb, levelVar, false))

	ctx := context.Background()
	WithContext(ctx, logger).Info("plain")
	if strings.Contains(sb.String(), "run_id=") {
		t.Errorf("empty context added fields: %q", sb.String())
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.log")
	newPath := filepath.Join(dir, "new.log")
	for _, p := range []string{oldPath, newPath} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	stale := time.Now().AddDate(0, 0, -10)
	if err := os.Chtimes(oldPath, stale, stale); err != nil {
		t.Fatal(err)
	}

	CleanupOldLogs(NewNop(), 7, RetentionTarget{Dir: dir, Pattern: "*.log"})

	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Error("stale log not pruned")
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Error("fresh log was pruned")
	}
}
