package analyzer

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/jbctechsolutions/agentsight/core"
)

// OutputAnalyzer prints every event it sees to a writer (stdout by
// default), as JSON, one per line, with binary data.data fields
// hex-encoded the same way FileLogger does. Events pass through
// unchanged.
type OutputAnalyzer struct {
	w io.Writer
}

func NewOutputAnalyzer() *OutputAnalyzer {
	return &OutputAnalyzer{w: os.Stdout}
}

// NewOutputAnalyzerTo lets tests (or alternate destinations) redirect
// output away from stdout.
func NewOutputAnalyzerTo(w io.Writer) *OutputAnalyzer {
	return &OutputAnalyzer{w: w}
}

func (o *OutputAnalyzer) Name() string { return "Output" }

func (o *OutputAnalyzer) printEvent(ev core.Event) {
	eventJSON, err := ev.ToJSON()
	if err != nil {
		fmt.Fprintf(o.w, `{"error":"failed to serialize event: %v"}`+"\n", err)
		return
	}
	fmt.Fprintln(o.w, string(dataToStringInPlace([]byte(eventJSON))))
	if f, ok := o.w.(interface{ Sync() error }); ok {
		f.Sync()
	}
}

func (o *OutputAnalyzer) Process(ctx context.Context, in core.EventStream) (core.EventStream, error) {
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
				o.printEvent(ev)
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
