package analyzer

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/jbctechsolutions/agentsight/core"
)

func TestOutputAnalyzerWritesAndPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	o := NewOutputAnalyzerTo(&buf)

	events := []core.Event{
		core.NewEvent("ssl", 1, "app", map[string]interface{}{"data": "hi"}),
	}
	out, err := o.Process(context.Background(), sendAndClose(events))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := drain(t, out)
	if len(got) != 1 {
		t.Fatalf("expected event to pass through, got %d", len(got))
	}
	if !strings.Contains(buf.String(), `"source":"ssl"`) {
		t.Errorf("expected printed JSON to contain source field, got %q", buf.String())
	}
}
