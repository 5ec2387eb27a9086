package runner

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestSystemRunnerDefaults(t *testing.T) {
	r := NewSystemRunner()
	if r.Name() != "system" {
		t.Errorf("Name() = %q, want system", r.Name())
	}
	if r.ID() != "system" {
		t.Errorf("ID() = %q, want system", r.ID())
	}
	if r.config.IntervalSecs != 10 {
		t.Errorf("IntervalSecs = %d, want 10", r.config.IntervalSecs)
	}
	if !r.config.IncludeChildren {
		t.Error("expected IncludeChildren to default true")
	}
}

func TestSystemRunnerWithConfig(t *testing.T) {
	r := NewSystemRunner().
		Interval(5).
		PID(1234).
		IncludeChildren(false).
		CPUThreshold(80.0).
		MemoryThresholdMB(500)

	if r.config.IntervalSecs != 5 {
		t.Errorf("IntervalSecs = %d, want 5", r.config.IntervalSecs)
	}
	if r.config.PID == nil || *r.config.PID != 1234 {
		t.Errorf("PID = %v, want 1234", r.config.PID)
	}
	if r.config.IncludeChildren {
		t.Error("expected IncludeChildren false")
	}
	if r.config.CPUThreshold == nil || *r.config.CPUThreshold != 80.0 {
		t.Errorf("CPUThreshold = %v, want 80.0", r.config.CPUThreshold)
	}
	if r.config.MemoryThresholdMB == nil || *r.config.MemoryThresholdMB != 500 {
		t.Errorf("MemoryThresholdMB = %v, want 500", r.config.MemoryThresholdMB)
	}
}

func TestSystemRunnerStreamMonitorsSelf(t *testing.T) {
	currentPID := uint32(os.Getpid())
	r := NewSystemRunner().Interval(1).PID(currentPID)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	stream, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	count := 0
	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				if count == 0 {
					t.Fatal("stream closed without producing any events")
				}
				return
			}
			if ev.Source != "system" {
				t.Errorf("Source = %q, want system", ev.Source)
			}
			if ev.PID != currentPID {
				t.Errorf("PID = %d, want %d", ev.PID, currentPID)
			}
			if _, ok := ev.Data["cpu"]; !ok {
				t.Error("expected cpu field in payload")
			}
			if _, ok := ev.Data["memory"]; !ok {
				t.Error("expected memory field in payload")
			}
			count++
			if count >= 2 {
				return
			}
		case <-ctx.Done():
			if count == 0 {
				t.Fatal("timed out waiting for events")
			}
			return
		}
	}
}
