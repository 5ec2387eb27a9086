package core

import "context"

// RunnerError documents the error boundary runners return across;
// it carries no behavior of its own.
type RunnerError = error

// Runner collects observability data and emits it as a stream of
// events.
type Runner interface {
	// Run starts data collection and returns a stream of events. The
	// stream is closed when collection ends, whether cleanly or due
	// to ctx cancellation.
	Run(ctx context.Context) (EventStream, error)

	// Name returns a human-readable identifier for the runner.
	Name() string

	// ID returns a unique identifier for this runner instance.
	ID() string
}

// Analyzer transforms, filters, or otherwise observes a stream of
// events, producing a new stream. Implementations spawn exactly one
// goroutine per Process call that closes its output channel once the
// input channel is drained (or ctx is cancelled).
type Analyzer interface {
	Process(ctx context.Context, in EventStream) (EventStream, error)
	Name() string
}
