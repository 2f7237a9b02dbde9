package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"crawlqueue/internal/config"
	"crawlqueue/internal/logging"
)

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("queue opened", slog.Int64(logging.FieldQueueID, 7), slog.String("driver", "sqlite"))

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "crawlqueue.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "queue opened") || !strings.Contains(string(content), "entry 7: queue opened driver=sqlite") {
		t.Fatalf("unexpected log content %q", content)
	}
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")

	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")

	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerPrefixesComponentAndProcess(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-subject.log")

	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "queue")
	logging.WithContext(logging.WithProcessID(context.Background(), "worker-1"), logger).Info("assigned")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "queue[worker-1]: assigned") {
		t.Fatalf("expected component and process subject, got %q", content)
	}
}

func TestConsoleLoggerDescribesQueueEntry(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-entry.log")

	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger = logging.NewComponentLogger(logger, "queue")
	logger.Info("entry assigned",
		slog.String(logging.FieldProcessID, "1007"),
		slog.Int64(logging.FieldQueueID, 8),
		slog.Int64(logging.FieldPageID, 2001),
		slog.String(logging.FieldConfiguration, "SecondConfiguration"),
		slog.String("note", "two words"),
	)
	logger.Info("page checked", slog.Int64(logging.FieldPageID, 15))
	logger.Info("grouped", slog.String(logging.FieldConfiguration, "FirstConfiguration"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %q", content)
	}
	if !strings.Contains(lines[0], `queue[1007] entry 8 (page 2001, SecondConfiguration): entry assigned note="two words"`) {
		t.Fatalf("unexpected entry line %q", lines[0])
	}
	if !strings.Contains(lines[1], "queue page 15: page checked") {
		t.Fatalf("unexpected page line %q", lines[1])
	}
	if !strings.Contains(lines[2], "queue: grouped configuration=FirstConfiguration") {
		t.Fatalf("unexpected configuration line %q", lines[2])
	}
}

func TestJSONLoggerRenamesKeys(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "json.log")

	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("json message", slog.String(logging.FieldConfiguration, "FirstConfiguration"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if record["msg"] != "json message" || record["level"] != "info" {
		t.Fatalf("unexpected record %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
	if record[logging.FieldConfiguration] != "FirstConfiguration" {
		t.Fatalf("unexpected configuration field %v", record[logging.FieldConfiguration])
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "level.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "invalid", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("visible")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), "hidden") || !strings.Contains(string(content), "visible") {
		t.Fatalf("expected info level filtering, got %q", content)
	}
}

func TestWithContextAddsProcessID(t *testing.T) {
	ctx := logging.WithProcessID(context.Background(), "1007")
	fields := logging.ContextFields(ctx)
	if len(fields) != 1 || fields[0].Key != logging.FieldProcessID || fields[0].Value.String() != "1007" {
		t.Fatalf("unexpected context fields %v", fields)
	}
	if _, ok := logging.ProcessIDFromContext(context.Background()); ok {
		t.Fatal("expected no process id in empty context")
	}
}
