package analyzer

import (
	"context"
	"testing"

	"github.com/jbctechsolutions/agentsight/core"
)

func TestIsSSEData(t *testing.T) {
	tests := []struct {
		name string
		data string
		want bool
	}{
		{"event and data fields", "event: message_start\ndata: {}\n\n", true},
		{"event-stream content type", "Content-Type: text/event-stream\r\n\r\n", true},
		{"plain json body", `{"hello":"world"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSSEData(tt.data); got != tt.want {
				t.Errorf("IsSSEData(%q) = %v, want %v", tt.data, got, tt.want)
			}
		})
	}
}

func TestCleanChunkedContent(t *testing.T) {
	chunked := "1a\r\nevent: message_start\ndata: {}\n\n\r\n0\r\n\r\n"
	got := CleanChunkedContent(chunked)
	want := "event: message_start\ndata: {}\n\n"
	if got != want {
		t.Errorf("CleanChunkedContent = %q, want %q", got, want)
	}
}

func TestParseSSEEventsFromChunk(t *testing.T) {
	chunk := "event: message_start\ndata: {\"message\":{\"id\":\"msg_1\"}}\n\nevent: content_block_delta\ndata: {\"delta\":{\"type\":\"text_delta\",\"text\":\"hi\"}}\n\n"
	events := ParseSSEEventsFromChunk(chunk)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Event != "message_start" {
		t.Errorf("events[0].Event = %q", events[0].Event)
	}
	if events[1].Event != "content_block_delta" {
		t.Errorf("events[1].Event = %q", events[1].Event)
	}
}

func TestSSEProcessorReassemblesStreamIntoMergedEvent(t *testing.T) {
	p := NewSSEProcessor()

	frame1 := "event: message_start\ndata: {\"message\":{\"id\":\"msg_1\"}}\n\n"
	frame2 := "event: content_block_delta\ndata: {\"delta\":{\"type\":\"text_delta\",\"text\":\"Hello, \"}}\n\n"
	frame3 := "event: content_block_delta\ndata: {\"delta\":{\"type\":\"text_delta\",\"text\":\"world!\"}}\n\n"
	frame4 := "event: message_stop\ndata: {}\n\n"

	events := []core.Event{
		core.NewEvent("ssl", 100, "agent", map[string]interface{}{"data": frame1, "pid": float64(100), "tid": float64(1)}),
		core.NewEvent("ssl", 100, "agent", map[string]interface{}{"data": frame2, "pid": float64(100), "tid": float64(1)}),
		core.NewEvent("ssl", 100, "agent", map[string]interface{}{"data": frame3, "pid": float64(100), "tid": float64(1)}),
		core.NewEvent("ssl", 100, "agent", map[string]interface{}{"data": frame4, "pid": float64(100), "tid": float64(1)}),
	}

	out, err := p.Process(context.Background(), sendAndClose(events))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := drain(t, out)
	if len(got) != 1 {
		t.Fatalf("expected exactly 1 merged event, got %d: %+v", len(got), got)
	}
	if got[0].Source != "sse_processor" {
		t.Errorf("expected source sse_processor, got %q", got[0].Source)
	}
	if got[0].Data["text_content"] != "Hello, world!" {
		t.Errorf("text_content = %v, want %q", got[0].Data["text_content"], "Hello, world!")
	}
	if got[0].Data["message_id"] != "msg_1" {
		t.Errorf("message_id = %v, want msg_1", got[0].Data["message_id"])
	}
}

func TestSSEProcessorDropsMetadataOnlyChunksWithNoExistingStream(t *testing.T) {
	p := NewSSEProcessor()

	frame := "event: ping\ndata: {}\n\n"
	events := []core.Event{
		core.NewEvent("ssl", 1, "agent", map[string]interface{}{"data": frame, "pid": float64(1), "tid": float64(1)}),
	}
	out, err := p.Process(context.Background(), sendAndClose(events))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := drain(t, out)
	if len(got) != 0 {
		t.Fatalf("expected metadata-only chunk with no existing stream to be dropped, got %d events", len(got))
	}
}

func TestSSEProcessorPassesThroughNonSSLEvents(t *testing.T) {
	p := NewSSEProcessor()
	events := []core.Event{
		core.NewEvent("process", 1, "agent", map[string]interface{}{"pid": float64(1)}),
	}
	out, err := p.Process(context.Background(), sendAndClose(events))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	got := drain(t, out)
	if len(got) != 1 || got[0].Source != "process" {
		t.Fatalf("expected non-ssl event to pass through unchanged, got %+v", got)
	}
}
