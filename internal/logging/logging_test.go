package logging_test

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

	"courier/internal/config"
	"courier/internal/logging"
)

func TestConsoleHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	handler, err := logging.NewHandler(&buf, logging.Options{Level: "info", Format: "console"})
	if err != nil {
		t.Fatalf("NewHandler returned error: %v", err)
	}
	logger := logging.NewComponentLogger(slog.New(handler), "dispatch")
	logger.Info("cycle started", logging.CycleID("abc"), logging.Int("files", 2), logging.String("folder", "/srv/my reports"))
	logger.Debug("hidden")

	line := buf.String()
	if strings.Count(line, "\n") != 1 {
		t.Fatalf("expected exactly one line, got %q", line)
	}
	for _, want := range []string{" INFO dispatch: cycle started", "cycle_id=abc", "files=2", `folder="/srv/my reports"`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component should be rendered as prefix, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", line)
	}
}

func TestJSONHandlerFields(t *testing.T) {
	var buf bytes.Buffer
	handler, err := logging.NewHandler(&buf, logging.Options{Level: "info", Format: "json"})
	if err != nil {
		t.Fatalf("NewHandler returned error: %v", err)
	}
	slog.New(handler).Warn("batch failed",
		logging.Warehouse("7210"),
		logging.Recipient("ivanov@example.com"),
		logging.Count(3),
	)

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if decoded["level"] != "warn" || decoded["msg"] != "batch failed" || decoded["warehouse"] != "7210" {
		t.Fatalf("unexpected record: %v", decoded)
	}
	if decoded["recipient"] != "ivanov@example.com" || decoded["count"] != float64(3) {
		t.Fatalf("unexpected domain fields: %v", decoded)
	}
	if _, ok := decoded["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", decoded)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesFile(t *testing.T) {
	cfg := config.Default()
	logPath := filepath.Join(t.TempDir(), "logs", "courier.log")

	logger, err := logging.NewFromConfig(&cfg, logPath)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello file")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello file") {
		t.Fatalf("expected message in file, got %q", content)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	handler, _ := logging.NewHandler(&buf, logging.Options{Format: "json"})
	logging.WarnWithContext(slog.New(handler), "ledger unreadable", "ledger_read_failed",
		logging.Error(errors.New("boom")),
		logging.String(logging.FieldImpact, "files may be sent again"),
	)

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if decoded[logging.FieldEventType] != "ledger_read_failed" {
		t.Fatalf("missing event type: %v", decoded)
	}
	if decoded[logging.FieldErrorHint] == nil {
		t.Fatalf("missing error hint: %v", decoded)
	}
	if decoded[logging.FieldImpact] != "files may be sent again" {
		t.Fatalf("impact should not be overwritten: %v", decoded)
	}
}

func TestWithContextAddsCycleID(t *testing.T) {
	var buf bytes.Buffer
	handler, _ := logging.NewHandler(&buf, logging.Options{Format: "console"})
	ctx := logging.WithCycleID(context.Background(), "cycle-1")

	logging.WithContext(ctx, slog.New(handler)).Info("tagged")
	if !strings.Contains(buf.String(), "cycle_id=cycle-1") {
		t.Fatalf("expected cycle id, got %q", buf.String())
	}
	if _, ok := logging.CycleIDFromContext(context.Background()); ok {
		t.Fatal("empty context should carry no cycle id")
	}
}

func TestTeeLoggerWritesToAllSinks(t *testing.T) {
	var first, second bytes.Buffer
	base, _ := logging.NewHandler(&first, logging.Options{Level: "info"})
	extra, _ := logging.NewHandler(&second, logging.Options{Level: "warn"})

	logger := logging.TeeLogger(slog.New(base), extra).With(logging.String("k", "v"))
	logger.Info("info only")
	logger.Warn("both")

	if !strings.Contains(first.String(), "info only") || !strings.Contains(first.String(), "both") {
		t.Fatalf("base sink missing lines: %q", first.String())
	}
	if strings.Contains(second.String(), "info only") || !strings.Contains(second.String(), "k=v") {
		t.Fatalf("extra sink should only get warnings with attrs: %q", second.String())
	}
}

func TestTeeHandlerCollapses(t *testing.T) {
	if _, ok := logging.TeeHandler(nil, nil).(logging.NoopHandler); !ok {
		t.Fatal("expected NoopHandler for all nil handlers")
	}
	inner := slog.NewTextHandler(&bytes.Buffer{}, nil)
	if logging.TeeHandler(nil, inner) != inner {
		t.Fatal("expected single handler to be returned unwrapped")
	}
}

func TestCleanupOldLogs(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	old := now.AddDate(0, 0, -10)

	oldLog := filepath.Join(dir, "courier-old.log")
	current := filepath.Join(dir, "courier-current.log")
	fresh := filepath.Join(dir, "courier-fresh.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{oldLog, current, fresh, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	for _, path := range []string{oldLog, current, other} {
		if err := os.Chtimes(path, old, old); err != nil {
			t.Fatal(err)
		}
	}

	removed := logging.CleanupOldLogs(logging.NewNop(), 7, now, logging.RetentionTarget{
		Dir:     dir,
		Pattern: "courier-*.log",
		Exclude: []string{current},
	})
	if removed != 1 {
		t.Fatalf("expected 1 removal, got %d", removed)
	}
	if _, err := os.Stat(oldLog); !os.IsNotExist(err) {
		t.Fatal("old log should be removed")
	}
	for _, keep := range []string{current, fresh, other} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("%s should remain: %v", keep, err)
		}
	}
	if logging.CleanupOldLogs(nil, 0, now, logging.RetentionTarget{Dir: dir}) != 0 {
		t.Fatal("retention 0 must disable pruning")
	}
}
