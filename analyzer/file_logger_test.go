package analyzer

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jbctechsolutions/agentsight/core"
)

func TestFileLoggerWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.log")

	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer fl.Close()

	events := []core.Event{
		core.NewEvent("ssl", 1, "app", map[string]interface{}{"data": "hello"}),
		core.NewEvent("ssl", 2, "app", map[string]interface{}{"data": "world"}),
	}
	out, err := fl.Process(context.Background(), sendAndClose(events))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := drain(t, out)
	if len(got) != 2 {
		t.Fatalf("expected events to pass through, got %d", len(got))
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening log file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lines := 0
	for scanner.Scan() {
		if scanner.Text() != "" {
			lines++
		}
	}
	if lines != 2 {
		t.Errorf("expected 2 log lines, got %d", lines)
	}
}

func TestFileLoggerHexEncodesBinaryData(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.log")

	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}
	defer fl.Close()

	events := []core.Event{
		core.NewEvent("ssl", 1, "app", map[string]interface{}{"data": "\x00\x01binary"}),
	}
	out, err := fl.Process(context.Background(), sendAndClose(events))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	drain(t, out)

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(contents), "HEX:") {
		t.Errorf("expected hex-encoded binary marker in log output, got %s", contents)
	}
}

func TestFileLoggerRotatesOnSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.log")

	cfg := LogRotationConfig{MaxFileSize: 10, MaxFiles: 2, SizeCheckInterval: 1}
	fl, err := NewFileLoggerWithRotation(path, cfg)
	if err != nil {
		t.Fatalf("NewFileLoggerWithRotation: %v", err)
	}
	defer fl.Close()

	events := []core.Event{
		core.NewEvent("ssl", 1, "app", map[string]interface{}{"data": "first event is long enough"}),
		core.NewEvent("ssl", 2, "app", map[string]interface{}{"data": "second event is also long enough"}),
	}
	out, err := fl.Process(context.Background(), sendAndClose(events))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	drain(t, out)

	rotated := path + ".1"
	if _, err := os.Stat(rotated); err != nil {
		t.Errorf("expected rotated file %s to exist: %v", rotated, err)
	}
}
