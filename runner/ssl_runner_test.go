package runner

import (
	"context"
	"testing"
	"time"
)

func TestSslRunnerDecodesEventsFromBinary(t *testing.T) {
	script := `echo '{"timestamp":1,"source":"ssl","pid":5,"comm":"curl","data":{"function":"SSL_read"}}'`

	r := NewSslRunner("/bin/sh").WithArgs([]string{"-c", script})

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
	if events[0].Source != "ssl" {
		t.Errorf("Source = %q, want ssl", events[0].Source)
	}
	if events[0].PID != 5 {
		t.Errorf("PID = %d, want 5", events[0].PID)
	}
}

func TestSslRunnerNameAndID(t *testing.T) {
	r := NewSslRunner("/bin/sh")
	if r.Name() != "ssl" || r.ID() != "ssl" {
		t.Errorf("Name/ID = %q/%q, want ssl/ssl", r.Name(), r.ID())
	}
}
