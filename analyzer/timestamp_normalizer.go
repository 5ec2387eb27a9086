// Package analyzer implements the collector's event-transforming
// pipeline stages: timestamp normalization, SSL/HTTP filtering, SSE
// reassembly, HTTP parsing, header scrubbing, file logging, and
// console output.
package analyzer

import (
	"context"

	"github.com/jbctechsolutions/agentsight/core"
)

// TimestampNormalizer converts every event's timestamp from
// nanoseconds-since-boot to milliseconds-since-epoch.
type TimestampNormalizer struct{}

func NewTimestampNormalizer() *TimestampNormalizer {
	return &TimestampNormalizer{}
}

func (t *TimestampNormalizer) Name() string { return "TimestampNormalizer" }

func (t *TimestampNormalizer) Process(ctx context.Context, in core.EventStream) (core.EventStream, error) {
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
				ev.Timestamp = core.BootNsToEpochMs(ev.Timestamp)
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
