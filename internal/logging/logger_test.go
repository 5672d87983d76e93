package logging

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
	"unicode/utf8"

	"audiogen/internal/config"
)

func TestNewJSONWritesStructuredRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "audiogen.log")
	logger, err := New(Options{Level: "info", Format: "json", OutputPaths: []string{path}, SessionID: "sess-1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	NewComponentLogger(logger, "reconcile").Info("queued", String(FieldPrompt, "rain on tin"))
	logger.Debug("hidden")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), data)
	}
	var record map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record["level"] != "info" || record["msg"] != "queued" {
		t.Fatalf("unexpected record: %v", record)
	}
	if record[FieldComponent] != "reconcile" || record[FieldSessionID] != "sess-1" || record[FieldPrompt] != "rain on tin" {
		t.Fatalf("missing fields: %v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key: %v", record)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestPrettyHandlerRendersComponentPromptAndFields(t *testing.T) {
	var buf bytes.Buffer
	lvl := new(slog.LevelVar)
	logger := slog.New(newPrettyHandler(&buf, lvl, false))
	logger.With(String(FieldComponent, "metadata")).Warn("fetch failed",
		String(FieldPrompt, "lofi beat"),
		Int64("size_bytes", 2048),
		Error(errors.New("boom")),
	)

	out := buf.String()
	for _, want := range []string{"WARN [metadata]", `"lofi beat"`, "– fetch failed", "- Size Bytes: 2.0 KiB", "- Error: boom"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestConsoleTeeOnlyReceivesWarnings(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "audiogen.log")
	logger, err := New(Options{Level: "debug", Format: "console", OutputPaths: []string{path}, Console: &console})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("connected")
	logger.Warn("server dropped")

	if strings.Contains(console.String(), "connected") {
		t.Fatalf("info leaked to console: %s", console.String())
	}
	if !strings.Contains(console.String(), "server dropped") {
		t.Fatalf("warning missing from console: %s", console.String())
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "connected") || !strings.Contains(string(data), "server dropped") {
		t.Fatalf("file should receive both records: %s", data)
	}
}

func TestNewFromConfigWritesToStateDir(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.StateDir = filepath.Join(t.TempDir(), "state")
	cfg.Logging.Format = "json"
	logger, err := NewFromConfig(&cfg, nil, "abc")
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	logger.Info("hello")
	data, err := os.ReadFile(cfg.LogPath())
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"session_id":"abc"`) {
		t.Fatalf("expected session id in log: %s", data)
	}
}

func TestWithContextAddsRequestAndPrompt(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := WithPrompt(WithRequestID(context.Background(), "req-9"), "ambient pads")
	WithContext(ctx, logger).Info("submitted")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-9"`) || !strings.Contains(out, `"prompt":"ambient pads"`) {
		t.Fatalf("expected context fields, got %s", out)
	}
	if got := WithContext(context.Background(), logger); got != logger {
		t.Fatal("expected logger unchanged for empty context")
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	WarnWithContext(logger, "skipped pair", "pair_skipped", String(FieldImpact, "entry missing from history"))

	out := buf.String()
	if !strings.Contains(out, `"event_type":"pair_skipped"`) {
		t.Fatalf("expected event_type: %s", out)
	}
	if !strings.Contains(out, `"impact":"entry missing from history"`) || strings.Count(out, `"impact"`) != 1 {
		t.Fatalf("expected caller impact preserved once: %s", out)
	}
	if !strings.Contains(out, `"error_hint"`) {
		t.Fatalf("expected default error_hint: %s", out)
	}
}

func TestTeeDropsNilHandlers(t *testing.T) {
	if _, ok := tee(nil, nil).(NoopHandler); !ok {
		t.Fatal("expected NoopHandler for all nil handlers")
	}
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, nil)
	if h := tee(nil, inner); h != inner {
		t.Fatal("expected single handler returned unwrapped")
	}
}

func TestTeeRespectsEachLevel(t *testing.T) {
	var file, console bytes.Buffer
	consoleLevel := new(slog.LevelVar)
	consoleLevel.Set(slog.LevelWarn)
	logger := slog.New(tee(
		slog.NewJSONHandler(&file, nil),
		slog.NewJSONHandler(&console, &slog.HandlerOptions{Level: consoleLevel}),
	)).With(String(FieldComponent, "session"))

	logger.Info("connected")
	logger.Warn("reconnecting")

	if got := strings.Count(file.String(), "\n"); got != 2 {
		t.Fatalf("file got %d records: %s", got, file.String())
	}
	if strings.Contains(console.String(), "connected") || !strings.Contains(console.String(), "reconnecting") {
		t.Fatalf("console should only see the warning: %s", console.String())
	}
	if !strings.Contains(console.String(), `"component":"session"`) {
		t.Fatalf("attrs not carried to every handler: %s", console.String())
	}
}

func TestFileHandlerClipsLongPrompts(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newFileHandler(&buf, new(slog.LevelVar), false))
	long := strings.Repeat("ambient drone ", 40)
	logger.Info("queued", String(FieldPrompt, long))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	prompt, _ := record[FieldPrompt].(string)
	if n := utf8.RuneCountInString(prompt); n != maxLoggedPrompt || !strings.HasSuffix(prompt, "…") {
		t.Fatalf("prompt not clipped (%d runes): %q", n, prompt)
	}
	ts, _ := record["ts"].(string)
	if _, err := time.Parse(fileTimeLayout, ts); err != nil || !strings.HasSuffix(ts, "Z") {
		t.Fatalf("unexpected ts %q: %v", ts, err)
	}
	if record["level"] != "info" {
		t.Fatalf("unexpected level: %v", record["level"])
	}
}
