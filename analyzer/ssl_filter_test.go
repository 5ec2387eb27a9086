package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/jbctechsolutions/agentsight/core"
)

func sendAndClose(events []core.Event) core.EventStream {
	ch := make(chan core.Event, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return ch
}

func drain(t *testing.T, stream core.EventStream) []core.Event {
	t.Helper()
	var got []core.Event
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("timed out draining stream")
		}
	}
}

func TestSslFilterDropsMatchingEvents(t *testing.T) {
	f, err := NewSslFilter([]string{"comm~nginx"})
	if err != nil {
		t.Fatalf("NewSslFilter: %v", err)
	}

	events := []core.Event{
		core.NewEvent("ssl", 1, "nginx", map[string]interface{}{"data": "hello", "comm": "nginx"}),
		core.NewEvent("ssl", 2, "curl", map[string]interface{}{"data": "world", "comm": "curl"}),
		core.NewEvent("process", 3, "nginx", map[string]interface{}{"data": "ignored"}),
	}

	ctx := context.Background()
	out, err := f.Process(ctx, sendAndClose(events))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	got := drain(t, out)
	if len(got) != 2 {
		t.Fatalf("expected 2 events to pass, got %d: %+v", len(got), got)
	}
	if got[0].Comm != "curl" {
		t.Errorf("expected curl event to pass, got %q", got[0].Comm)
	}
	if got[1].Source != "process" {
		t.Errorf("expected non-ssl event to pass through untouched, got source %q", got[1].Source)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestSslFilterNoExpressionsPassesEverything(t *testing.T) {
	f, err := NewSslFilter(nil)
	if err != nil {
		t.Fatalf("NewSslFilter: %v", err)
	}

	events := []core.Event{
		core.NewEvent("ssl", 1, "a", map[string]interface{}{"data": "x"}),
		core.NewEvent("ssl", 2, "b", map[string]interface{}{"data": "y"}),
	}
	out, err := f.Process(context.Background(), sendAndClose(events))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := drain(t, out)
	if len(got) != 2 {
		t.Fatalf("expected all events to pass, got %d", len(got))
	}
}

func TestSslFilterContextCancelStopsProcessing(t *testing.T) {
	f, err := NewSslFilter(nil)
	if err != nil {
		t.Fatalf("NewSslFilter: %v", err)
	}

	ch := make(chan core.Event)
	ctx, cancel := context.WithCancel(context.Background())
	out, err := f.Process(ctx, ch)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	cancel()
	select {
	case _, ok := <-out:
		if ok {
			t.Fatal("expected output channel to close after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for output channel to close after cancel")
	}
}
