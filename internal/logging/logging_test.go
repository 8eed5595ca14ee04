package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		enable  slog.Level
		disable slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug, slog.LevelDebug - 4},
		{"warn level", "WARN", slog.LevelWarn, slog.LevelInfo},
		{"error level", "error", slog.LevelError, slog.LevelWarn},
		{"default info", "", slog.LevelInfo, slog.LevelDebug},
	}

	ctx := context.Background()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := New(tt.level, &bytes.Buffer{})
			if !logger.Enabled(ctx, tt.enable) {
				t.Fatalf("expected level %s to be enabled", tt.enable)
			}
			if logger.Enabled(ctx, tt.disable) {
				t.Fatalf("expected level %s to be disabled", tt.disable)
			}
		})
	}
}

func TestNew_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	New("info", &buf).Info("campaign finished", "sent", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "campaign finished" || rec["sent"] != float64(3) {
		t.Fatalf("unexpected record %v", rec)
	}
}

func TestOpenDailyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	f, err := OpenDailyFile(dir, now)
	if err != nil {
		t.Fatalf("OpenDailyFile() error: %v", err)
	}
	if _, err := f.WriteString("line\n"); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = f.Close()

	f, err = OpenDailyFile(dir, now)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_, _ = f.WriteString("line\n")
	_ = f.Close()

	got, err := os.ReadFile(filepath.Join(dir, "campaign_20240301.log"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "line\nline\n" {
		t.Fatalf("expected appended content, got %q", got)
	}
}
