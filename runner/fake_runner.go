package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jbctechsolutions/agentsight/core"
)

// FakeRunner generates a deterministic sequence of synthetic SSL
// request/response event pairs. It exists for tests and for
// exercising the pipeline without a real eBPF binary.
type FakeRunner struct {
	eventCount int
	delay      time.Duration
	pid        uint32
	comm       string
	analyzers  []core.Analyzer
}

func NewFakeRunner() *FakeRunner {
	return &FakeRunner{eventCount: 1, pid: 42, comm: "fake-agent"}
}

func (f *FakeRunner) EventCount(n int) *FakeRunner {
	f.eventCount = n
	return f
}

func (f *FakeRunner) DelayMs(ms int) *FakeRunner {
	f.delay = time.Duration(ms) * time.Millisecond
	return f
}

func (f *FakeRunner) PID(pid uint32) *FakeRunner {
	f.pid = pid
	return f
}

func (f *FakeRunner) Comm(comm string) *FakeRunner {
	f.comm = comm
	return f
}

func (f *FakeRunner) AddAnalyzer(a core.Analyzer) *FakeRunner {
	f.analyzers = append(f.analyzers, a)
	return f
}

func (f *FakeRunner) Name() string { return "fake" }
func (f *FakeRunner) ID() string   { return "fake" }

func (f *FakeRunner) Run(ctx context.Context) (core.EventStream, error) {
	raw := make(chan core.Event)

	go func() {
		defer close(raw)
		for i := 0; i < f.eventCount; i++ {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if f.delay > 0 {
				select {
				case <-time.After(f.delay):
				case <-ctx.Done():
					return
				}
			}

			connID := uuid.NewString()

			req := core.NewEvent("ssl", f.pid, f.comm, map[string]interface{}{
				"function":      "SSL_write",
				"data":          fmt.Sprintf("GET /fake/%d HTTP/1.1\r\nHost: fake\r\nX-Request-ID: %s\r\n\r\n", i, connID),
				"pid":           float64(f.pid),
				"tid":           float64(1),
				"is_handshake":  false,
				"connection_id": connID,
			})
			resp := core.NewEvent("ssl", f.pid, f.comm, map[string]interface{}{
				"function":      "SSL_read",
				"data":          "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok",
				"pid":           float64(f.pid),
				"tid":           float64(1),
				"is_handshake":  false,
				"connection_id": connID,
			})

			for _, ev := range []core.Event{req, resp} {
				select {
				case raw <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return runAnalyzerChain(ctx, raw, f.analyzers)
}
