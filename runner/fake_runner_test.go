package runner

import (
	"context"
	"testing"
	"time"
)

func TestFakeRunnerGeneratesRequestResponsePairs(t *testing.T) {
	r := NewFakeRunner().EventCount(3).DelayMs(1)
	stream, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	events := collectAll(t, stream, 2*time.Second)
	if len(events) != 6 {
		t.Fatalf("expected 6 events (3 pairs), got %d", len(events))
	}
	for _, ev := range events {
		if ev.Source != "ssl" {
			t.Errorf("expected source ssl, got %q", ev.Source)
		}
	}
}

func TestFakeRunnerNameAndID(t *testing.T) {
	r := NewFakeRunner()
	if r.Name() != "fake" {
		t.Errorf("Name() = %q, want fake", r.Name())
	}
	if r.ID() != "fake" {
		t.Errorf("ID() = %q, want fake", r.ID())
	}
}
