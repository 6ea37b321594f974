package logging

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew_CreatesDirAndDefaultFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	log, err := New(Options{Dir: dir})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("test_message_from_logging_test")
	_ = log.Sync()

	if _, err := os.Stat(filepath.Join(dir, "uptime.log")); err != nil {
		t.Fatalf("default log file missing: %v", err)
	}
}

func TestNew_ConsoleReceivesOnlyLogLines(t *testing.T) {
	var console bytes.Buffer
	log, err := New(Options{Dir: t.TempDir(), Console: &console})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("healthcheck_finished")
	_ = log.Sync()

	lines := strings.Split(strings.TrimSpace(console.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want one console line, got %q", console.String())
	}
	var line map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &line); err != nil || line["msg"] != "healthcheck_finished" {
		t.Fatalf("unexpected console line %q: %v", lines[0], err)
	}
}

func TestNew_WritesJSONAtLevel(t *testing.T) {
	dir := t.TempDir()
	log, err := New(Options{Dir: dir, File: "t.log", Level: "warn"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	log.Info("dropped_below_level")
	log.Warn("sweep_append_error")
	_ = log.Sync()

	f, err := os.Open(filepath.Join(dir, "t.log"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var msgs []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var line map[string]any
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("not JSON: %q", sc.Text())
		}
		if _, ok := line["ts"]; !ok {
			t.Fatalf("missing ts key: %v", line)
		}
		msgs = append(msgs, line["msg"].(string))
	}
	if len(msgs) != 1 || msgs[0] != "sweep_append_error" {
		t.Fatalf("want only the warn line, got %v", msgs)
	}
}

func TestNew_RejectsUnknownLevel(t *testing.T) {
	if _, err := New(Options{Dir: t.TempDir(), Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
