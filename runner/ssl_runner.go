package runner

import (
	"context"
	"fmt"
	"log"

	"github.com/jbctechsolutions/agentsight/core"
)

// SslConfig configures SslRunner's invocation of the SSL/TLS tracing
// binary.
type SslConfig struct {
	TLSVersion string
	BinaryPath string
	ExtraArgs  []string
}

// SslRunner wraps an external eBPF SSL-tracing binary, decoding its
// stdout JSON lines into events with source "ssl".
type SslRunner struct {
	config    SslConfig
	analyzers []core.Analyzer
}

func NewSslRunner(binaryPath string) *SslRunner {
	return &SslRunner{config: SslConfig{BinaryPath: binaryPath}}
}

func (r *SslRunner) WithTLSVersion(v string) *SslRunner {
	r.config.TLSVersion = v
	return r
}

func (r *SslRunner) WithArgs(args []string) *SslRunner {
	r.config.ExtraArgs = args
	return r
}

func (r *SslRunner) AddAnalyzer(a core.Analyzer) *SslRunner {
	r.analyzers = append(r.analyzers, a)
	return r
}

func (r *SslRunner) Name() string { return "ssl" }
func (r *SslRunner) ID() string   { return "ssl" }

func (r *SslRunner) Run(ctx context.Context) (core.EventStream, error) {
	executor := NewBinaryExecutor(r.config.BinaryPath).
		WithArgs(r.config.ExtraArgs).
		WithRunnerName(r.Name())

	lines, err := executor.GetJSONStream(ctx)
	if err != nil {
		return nil, fmt.Errorf("starting ssl runner: %w", err)
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
				ev.Source = "ssl"
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
