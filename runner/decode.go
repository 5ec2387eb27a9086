package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jbctechsolutions/agentsight/core"
)

// decodeEvent turns a raw JSON line emitted by one of the eBPF
// collector binaries into a core.Event. Fields the binary omits take
// their zero value.
func decodeEvent(raw []byte) (core.Event, error) {
	var wire struct {
		Timestamp uint64                 `json:"timestamp"`
		Source    string                 `json:"source"`
		PID       uint32                 `json:"pid"`
		Comm      string                 `json:"comm"`
		Data      map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return core.Event{}, fmt.Errorf("decoding event JSON: %w", err)
	}
	if wire.Data == nil {
		wire.Data = map[string]interface{}{}
	}
	return core.NewEventWithTimestamp(wire.Timestamp, wire.Source, wire.PID, wire.Comm, wire.Data), nil
}

// runAnalyzerChain threads a stream through each analyzer in turn, in
// the order given. Every Runner.Run implementation ends by calling
// this on its raw event stream.
func runAnalyzerChain(ctx context.Context, stream core.EventStream, analyzers []core.Analyzer) (core.EventStream, error) {
	var err error
	for _, a := range analyzers {
		stream, err = a.Process(ctx, stream)
		if err != nil {
			return nil, fmt.Errorf("analyzer %s: %w", a.Name(), err)
		}
	}
	return stream, nil
}
