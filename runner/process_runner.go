package runner

import (
	"context"
	"fmt"
	"log"

	"github.com/jbctechsolutions/agentsight/core"
)

// ProcessConfig configures ProcessRunner's invocation of the process
// lifecycle tracing binary.
type ProcessConfig struct {
	PID             *uint32
	MemoryThreshold *uint64
	BinaryPath      string
	ExtraArgs       []string
}

// ProcessRunner wraps an external eBPF process-tracing binary,
// decoding its stdout JSON lines into events with source "process".
type ProcessRunner struct {
	config    ProcessConfig
	analyzers []core.Analyzer
}

func NewProcessRunner(binaryPath string) *ProcessRunner {
	return &ProcessRunner{config: ProcessConfig{BinaryPath: binaryPath}}
}

func (r *ProcessRunner) WithPID(pid uint32) *ProcessRunner {
	r.config.PID = &pid
	return r
}

func (r *ProcessRunner) WithMemoryThreshold(bytes uint64) *ProcessRunner {
	r.config.MemoryThreshold = &bytes
	return r
}

func (r *ProcessRunner) WithArgs(args []string) *ProcessRunner {
	r.config.ExtraArgs = args
	return r
}

func (r *ProcessRunner) AddAnalyzer(a core.Analyzer) *ProcessRunner {
	r.analyzers = append(r.analyzers, a)
	return r
}

func (r *ProcessRunner) Name() string { return "process" }
func (r *ProcessRunner) ID() string   { return "process" }

func (r *ProcessRunner) Run(ctx context.Context) (core.EventStream, error) {
	executor := NewBinaryExecutor(r.config.BinaryPath).
		WithArgs(r.config.ExtraArgs).
		WithRunnerName(r.Name())

	lines, err := executor.GetJSONStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting process runner: %w", err)
	}

	raw := make(chan core.Event)
	go func() {
		defer close(raw)
		for line := range lines {
			ev, err := decodeEvent(line)
			if err != nil {
				log.Printf("[%s] dropping undecodable JSON line: %v", r.Name(), err)
				continue
			}
			if ev.Source == "" {
				ev.Source = "process"
			}
			select {
			case raw <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return runAnalyzerChain(ctx, raw, r.analyzers)
}
