package runner

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jbctechsolutions/agentsight/analyzer"
	"github.com/jbctechsolutions/agentsight/core"
)

func collectAll(t *testing.T, stream core.EventStream, timeout time.Duration) []core.Event {
	t.Helper()
	var got []core.Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-stream:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-deadline:
			t.Fatal("timed out collecting events")
		}
	}
}

func TestAgentRunnerBasicComposition(t *testing.T) {
	r1 := NewFakeRunner().EventCount(2).DelayMs(1)
	r2 := NewFakeRunner().EventCount(3).DelayMs(1)

	agent := NewAgentRunner("test-agent").AddRunner(r1).AddRunner(r2)
	if agent.RunnerCount() != 2 {
		t.Fatalf("RunnerCount() = %d, want 2", agent.RunnerCount())
	}
	if agent.AnalyzerCount() != 0 {
		t.Fatalf("AnalyzerCount() = %d, want 0", agent.AnalyzerCount())
	}

	stream, err := agent.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	events := collectAll(t, stream, 3*time.Second)

	if len(events) != 10 {
		t.Fatalf("expected 10 events (4+6), got %d", len(events))
	}
	for _, ev := range events {
		if ev.Source != "ssl" {
			t.Errorf("expected all FakeRunner events to be source ssl, got %q", ev.Source)
		}
	}
}

func TestAgentRunnerWithGlobalAnalyzers(t *testing.T) {
	tmp, err := os.CreateTemp("", "agentsight-log-*.jsonl")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	tmp.Close()
	defer os.Remove(tmp.Name())

	fl, err := analyzer.NewFileLogger(tmp.Name())
	if err != nil {
		t.Fatalf("NewFileLogger: %v", err)
	}

	fake := NewFakeRunner().EventCount(2).DelayMs(1)
	agent := NewAgentRunner("test-with-analyzers").
		AddRunner(fake).
		AddGlobalAnalyzer(fl).
		AddGlobalAnalyzer(analyzer.NewOutputAnalyzerTo(os.Stderr))

	if agent.AnalyzerCount() != 2 {
		t.Fatalf("AnalyzerCount() = %d, want 2", agent.AnalyzerCount())
	}

	stream, err := agent.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	events := collectAll(t, stream, 3*time.Second)
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	fl.Close()

	info, err := os.Stat(tmp.Name())
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() == 0 {
		t.Error("expected log file to have content")
	}
}

func TestAgentRunnerEmptyRunnersErrors(t *testing.T) {
	agent := NewAgentRunner("empty-agent")
	if agent.RunnerCount() != 0 {
		t.Fatalf("RunnerCount() = %d, want 0", agent.RunnerCount())
	}

	_, err := agent.Run(context.Background())
	if err == nil {
		t.Fatal("expected error with no runners configured")
	}
}

func TestAgentRunnerNameAndID(t *testing.T) {
	agent := NewAgentRunner("my-test-agent")
	if agent.Name() != "AgentRunner" {
		t.Errorf("Name() = %q, want AgentRunner", agent.Name())
	}
	if agent.ID() != "agent-runner" {
		t.Errorf("ID() = %q, want agent-runner", agent.ID())
	}
}

func TestAgentRunnerContextCancelStopsFanIn(t *testing.T) {
	fake := NewFakeRunner().EventCount(1000).DelayMs(5)
	agent := NewAgentRunner("cancel-test").AddRunner(fake)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := agent.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	<-stream
	cancel()

	closed := false
	deadline := time.After(2 * time.Second)
	for !closed {
		select {
		case _, ok := <-stream:
			if !ok {
				closed = true
			}
		case <-deadline:
			t.Fatal("expected stream to close promptly after context cancellation")
		}
	}
}
