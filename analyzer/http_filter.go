package analyzer

import (
	"context"

	"github.com/jbctechsolutions/agentsight/core"
	"github.com/jbctechsolutions/agentsight/filter"
	"github.com/jbctechsolutions/agentsight/metrics"
)

type httpFilterExpression struct {
	expression string
	parsed     *filter.HTTPNode
}

// HttpFilter drops parsed HTTP events that match any of its configured
// filter expressions. Unlike SslFilter, its counters overwrite the
// global HTTP filter metrics registry on every single event — this
// asymmetry with SslFilter's merge-at-teardown discipline is
// intentional and documented in SPEC_FULL.md.
type HttpFilter struct {
	filters []httpFilterExpression
	debug   bool
	metrics *metrics.HTTPFilterMetrics
}

func NewHttpFilter(expressions []string) *HttpFilter {
	f := &HttpFilter{metrics: &metrics.HTTPFilterMetrics{}}
	for _, expr := range expressions {
		f.filters = append(f.filters, httpFilterExpression{
			expression: expr,
			parsed:     filter.ParseHTTPExpression(expr),
		})
	}
	return f
}

func (f *HttpFilter) SetDebug(debug bool) { f.debug = debug }

func (f *HttpFilter) Name() string { return "HttpFilter" }

func (f *HttpFilter) shouldFilter(data map[string]interface{}) bool {
	if len(f.filters) == 0 {
		return false
	}
	for _, fe := range f.filters {
		if filter.EvaluateHTTP(fe.parsed, data) {
			return true
		}
	}
	return false
}

func (f *HttpFilter) Process(ctx context.Context, in core.EventStream) (core.EventStream, error) {
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
				if ev.Source != "http_parser" {
					select {
					case out <- ev:
					case <-ctx.Done():
						return
					}
					continue
				}

				drop := f.shouldFilter(ev.Data)
				f.metrics.RecordEvent(drop)
				if drop {
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
