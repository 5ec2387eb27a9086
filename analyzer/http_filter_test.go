package analyzer

import (
	"context"
	"testing"

	"github.com/jbctechsolutions/agentsight/core"
	"github.com/jbctechsolutions/agentsight/metrics"
)

func TestHttpFilterDropsMatchingRequests(t *testing.T) {
	f := NewHttpFilter([]string{"req.path_prefix=/health"})

	events := []core.Event{
		core.NewEvent("http_parser", 1, "app", map[string]interface{}{
			"message_type": "request", "path": "/health/live",
		}),
		core.NewEvent("http_parser", 2, "app", map[string]interface{}{
			"message_type": "request", "path": "/api/users",
		}),
		core.NewEvent("ssl", 3, "app", map[string]interface{}{"path": "/health/live"}),
	}

	out, err := f.Process(context.Background(), sendAndClose(events))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := drain(t, out)
	if len(got) != 2 {
		t.Fatalf("expected 2 events to pass, got %d: %+v", len(got), got)
	}
	if got[0].Data["path"] != "/api/users" {
		t.Errorf("expected /api/users to pass, got %v", got[0].Data["path"])
	}
	if got[1].Source != "ssl" {
		t.Errorf("expected non-http_parser event to pass through, got source %q", got[1].Source)
	}
}

func TestHttpFilterOverwritesMetricsOnEveryEvent(t *testing.T) {
	f := NewHttpFilter([]string{"req.path_prefix=/health"})

	events := []core.Event{
		core.NewEvent("http_parser", 1, "app", map[string]interface{}{
			"message_type": "request", "path": "/health/live",
		}),
		core.NewEvent("http_parser", 2, "app", map[string]interface{}{
			"message_type": "request", "path": "/api/users",
		}),
	}
	out, err := f.Process(context.Background(), sendAndClose(events))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	drain(t, out)

	if f.metrics == nil {
		t.Fatal("expected metrics to be initialized")
	}

	// The global gauges hold this instance's running totals (2 seen,
	// 1 dropped), not a sum across HttpFilter instances.
	families, err := metrics.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	want := map[string]float64{
		"agentsight_http_filter_events_total":  2,
		"agentsight_http_filter_dropped_total": 1,
	}
	seen := 0
	for _, mf := range families {
		w, ok := want[mf.GetName()]
		if !ok {
			continue
		}
		seen++
		if got := mf.GetMetric()[0].GetGauge().GetValue(); got != w {
			t.Errorf("%s = %v, want %v", mf.GetName(), got, w)
		}
	}
	if seen != len(want) {
		t.Errorf("found %d of %d HTTP filter gauges in the registry", seen, len(want))
	}
}
