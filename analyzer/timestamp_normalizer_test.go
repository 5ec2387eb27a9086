package analyzer

import (
	"context"
	"testing"

	"github.com/jbctechsolutions/agentsight/core"
)

func TestTimestampNormalizerConvertsBootNsToEpochMs(t *testing.T) {
	n := NewTimestampNormalizer()

	events := []core.Event{
		core.NewEventWithTimestamp(1_000_000_000, "ssl", 1, "app", map[string]interface{}{"data": "x"}),
	}
	out, err := n.Process(context.Background(), sendAndClose(events))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := drain(t, out)
	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	want := core.BootNsToEpochMs(1_000_000_000)
	if got[0].Timestamp != want {
		t.Errorf("Timestamp = %d, want %d", got[0].Timestamp, want)
	}
}
