package runner

import (
	"context"
	"testing"
	"time"
)

func TestProcessRunnerDecodesEventsFromBinary(t *testing.T) {
	script := `echo '{"timestamp":1,"source":"process","pid":9,"comm":"bash","data":{"event":"exec"}}'`

	r := NewProcessRunner("/bin/sh").WithArgs([]string{"-c", script})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	events := collectAll(t, stream, 3*time.Second)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Source != "process" {
		t.Errorf("Source = %q, want process", events[0].Source)
	}
	if events[0].PID != 9 {
		t.Errorf("PID = %d, want 9", events[0].PID)
	}
}

func TestProcessRunnerNameAndID(t *testing.T) {
	r := NewProcessRunner("/bin/sh")
	if r.Name() != "process" || r.ID() != "process" {
		t.Errorf("Name/ID = %q/%q, want process/process", r.Name(), r.ID())
	}
}
