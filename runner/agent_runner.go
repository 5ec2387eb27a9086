package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/jbctechsolutions/agentsight/core"
)

// AgentRunner composes multiple runners into a single merged stream,
// with optional global analyzers applied after the merge.
type AgentRunner struct {
	name      string
	runners   []core.Runner
	analyzers []core.Analyzer
}

func NewAgentRunner(name string) *AgentRunner {
	return &AgentRunner{name: name}
}

func (a *AgentRunner) AddRunner(r core.Runner) *AgentRunner {
	a.runners = append(a.runners, r)
	return a
}

// AddGlobalAnalyzer applies an analyzer to the merged stream after
// every configured runner's own events have been fanned in.
func (a *AgentRunner) AddGlobalAnalyzer(an core.Analyzer) *AgentRunner {
	a.analyzers = append(a.analyzers, an)
	return a
}

// AddAnalyzer is an alias for AddGlobalAnalyzer, matching the base
// Analyzer-chaining verb used across runners.
func (a *AgentRunner) AddAnalyzer(an core.Analyzer) *AgentRunner {
	return a.AddGlobalAnalyzer(an)
}

func (a *AgentRunner) RunnerCount() int   { return len(a.runners) }
func (a *AgentRunner) AnalyzerCount() int { return len(a.analyzers) }

func (a *AgentRunner) Name() string { return "AgentRunner" }
func (a *AgentRunner) ID() string   { return "agent-runner" }

func (a *AgentRunner) Run(ctx context.Context) (core.EventStream, error) {
	if len(a.runners) == 0 {
		return nil, fmt.Errorf("no runners configured for AgentRunner")
	}

	streams := make([]core.EventStream, 0, len(a.runners))
	for _, r := range a.runners {
		stream, err := r.Run(ctx)
		if err != nil {
			return nil, fmt.Errorf("starting runner %s: %w", r.Name(), err)
		}
		streams = append(streams, stream)
	}

	merged := fanIn(ctx, streams)

	return runAnalyzerChain(ctx, merged, a.analyzers)
}

// fanIn merges N event streams into one, closing the output once
// every input stream has closed or ctx is canceled.
func fanIn(ctx context.Context, streams []core.EventStream) core.EventStream {
	out := make(chan core.Event)
	var wg sync.WaitGroup
	wg.Add(len(streams))

	for _, s := range streams {
		go func(s core.EventStream) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-s:
					if !ok {
						return
					}
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
				}
			}
		}(s)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}
