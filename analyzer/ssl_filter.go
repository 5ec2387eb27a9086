package analyzer

import (
	"context"
	"fmt"

	"github.com/jbctechsolutions/agentsight/core"
	"github.com/jbctechsolutions/agentsight/filter"
	"github.com/jbctechsolutions/agentsight/metrics"
)

type sslFilterExpression struct {
	expression string
	parsed     *filter.SSLNode
}

// SslFilter drops SSL events that match any of its configured filter
// expressions. Its per-instance counters are merged into the global
// SSL filter metrics registry only when Close is called — mirroring
// the Rust original's Drop-time merge, not an every-event update.
type SslFilter struct {
	filters []sslFilterExpression
	debug   bool
	metrics *metrics.SSLFilterMetrics
}

// NewSslFilter compiles each expression once at construction time.
func NewSslFilter(expressions []string) (*SslFilter, error) {
	f := &SslFilter{metrics: &metrics.SSLFilterMetrics{}}
	for _, expr := range expressions {
		parsed, err := filter.ParseSSLExpression(expr)
		if err != nil {
			return nil, fmt.Errorf("parsing ssl filter expression %q: %w", expr, err)
		}
		f.filters = append(f.filters, sslFilterExpression{expression: expr, parsed: parsed})
	}
	return f, nil
}

func (f *SslFilter) SetDebug(debug bool) { f.debug = debug }

func (f *SslFilter) Name() string { return "SslFilter" }

// Close merges this instance's counters into the global registry.
// Callers must call Close when the filter's pipeline stage is torn
// down; this is the Go analog of the Rust Drop impl.
func (f *SslFilter) Close() error {
	f.metrics.MergeIntoGlobal()
	return nil
}

func (f *SslFilter) shouldFilter(data map[string]interface{}) bool {
	if len(f.filters) == 0 {
		return false
	}
	for _, fe := range f.filters {
		if filter.EvaluateSSL(fe.parsed, data) {
			return true
		}
	}
	return false
}

func (f *SslFilter) Process(ctx context.Context, in core.EventStream) (core.EventStream, error) {
	out := make(chan core.Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-in:
				if !ok {
					return
				}
				if ev.Source != "ssl" {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
					continue
				}

				f.metrics.IncrementTotal()
				if f.shouldFilter(ev.Data) {
					f.metrics.IncrementFiltered()
					continue
				}

				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
