package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jbctechsolutions/agentsight/core"
)

// SSEEvent is a single parsed Server-Sent Events frame.
type SSEEvent struct {
	Event      string
	Data       string
	ID         string
	ParsedData interface{}
	RawData    string
	HasEvent   bool
	HasData    bool
}

type sseAccumulator struct {
	messageID        string
	hasMessageID     bool
	accumulatedText  strings.Builder
	accumulatedJSON  strings.Builder
	events           []SSEEvent
	hasMessageStart  bool
	startTime        uint64
	endTime          uint64
}

// SSEProcessor reassembles chunked SSE (Server-Sent Events) traffic
// captured from SSL reads into a single merged event per logical
// stream, keyed by connection + message ID. Non-SSE and non-ssl
// events pass through unchanged; incomplete streams emit nothing
// until a terminating event (message_stop/error) or a size fallback
// is observed.
type SSEProcessor struct {
	mu      sync.Mutex
	buffers map[string]*sseAccumulator

	timeoutMs uint64
	debug     bool
}

func NewSSEProcessor() *SSEProcessor {
	return NewSSEProcessorWithTimeout(30_000)
}

func NewSSEProcessorWithTimeout(timeoutMs uint64) *SSEProcessor {
	return &SSEProcessor{buffers: make(map[string]*sseAccumulator), timeoutMs: timeoutMs}
}

func (s *SSEProcessor) SetDebug(debug bool) { s.debug = debug }

func (s *SSEProcessor) Name() string { return "SSEProcessor" }

// IsSSEData guesses whether a raw payload carries SSE framing.
func IsSSEData(data string) bool {
	hasSSEPatterns := strings.Contains(data, "event:") && strings.Contains(data, "data:")
	hasSSEContentType := strings.Contains(data, "text/event-stream")
	hasChunkedSSE := strings.Contains(data, "Transfer-Encoding: chunked") &&
		(strings.Contains(data, "event:") || strings.Contains(data, "data:"))
	hasSSEDataOnly := strings.Contains(data, "data:") &&
		(strings.Contains(data, "\r\n\r\n") || strings.Contains(data, "\n\n"))
	return hasSSEPatterns || hasSSEContentType || hasChunkedSSE || hasSSEDataOnly
}

// ParseSSEEventsFromChunk splits an already-dechunked payload into
// individual SSE event frames.
func ParseSSEEventsFromChunk(chunkContent string) []SSEEvent {
	var events []SSEEvent
	blocks := strings.Split(chunkContent, "\n\n")

	for _, block := range blocks {
		if strings.TrimSpace(block) == "" {
			continue
		}

		var ev SSEEvent
		var dataLines []string

		for _, line := range strings.Split(block, "\n") {
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "event:"):
				ev.Event = strings.TrimSpace(line[len("event:"):])
				ev.HasEvent = true
			case strings.HasPrefix(line, "data:"):
				dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
			case strings.HasPrefix(line, "id:"):
				ev.ID = strings.TrimSpace(line[len("id:"):])
			}
		}

		if len(dataLines) > 0 {
			combined := strings.Join(dataLines, "\n")
			ev.Data = combined
			ev.HasData = true

			var parsed interface{}
			if err := json.Unmarshal([]byte(combined), &parsed); err == nil {
				ev.ParsedData = parsed
			} else {
				ev.RawData = combined
			}
		}

		if ev.HasEvent || ev.HasData {
			events = append(events, ev)
		}
	}

	return events
}

// ParseSSEEvents parses raw SSL read data, first stripping any HTTP
// chunked-transfer-encoding framing unconditionally. Data that yields
// no chunk payload (no chunk-size lines) is parsed as-is.
func ParseSSEEvents(data string) []SSEEvent {
	if cleaned := CleanChunkedContent(data); cleaned != "" {
		return ParseSSEEventsFromChunk(cleaned)
	}
	return ParseSSEEventsFromChunk(data)
}

// CleanChunkedContent strips HTTP chunk-size marker lines from
// CRLF-framed content, leaving only the chunk payload lines.
func CleanChunkedContent(content string) string {
	var parts []string
	lines := strings.Split(content, "\r\n")

	i := 0
	for i < len(lines) {
		line := strings.TrimSpace(lines[i])

		if line != "" && isHexDigits(line) {
			chunkSize, err := parseHexUint32(line)
			if err != nil {
				chunkSize = 0
			}
			if chunkSize == 0 {
				break
			}
			i++
			if i < len(lines) {
				parts = append(parts, lines[i])
			}
		}
		i++
	}

	return strings.Join(parts, "\n")
}

func isHexDigits(s string) bool {
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')) {
			return false
		}
	}
	return true
}

func parseHexUint32(s string) (uint32, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "%x", &v)
	return uint32(v), err
}

func generateConnectionID(ev core.Event, sseEvents []SSEEvent) string {
	pid := dataUint64(ev.Data, "pid")
	tid := dataUint64(ev.Data, "tid")

	if messageID, ok := extractMessageID(sseEvents); ok {
		return fmt.Sprintf("%d:%d:%s", pid, tid, messageID)
	}

	window := ev.Timestamp / 600_000_000_000
	return fmt.Sprintf("%d:%d:%d", pid, tid, window)
}

func dataUint64(data map[string]interface{}, key string) uint64 {
	v, ok := toUint64Field(data[key])
	if !ok {
		return 0
	}
	return v
}

func extractMessageID(events []SSEEvent) (string, bool) {
	for _, ev := range events {
		if ev.Event != "message_start" {
			continue
		}
		msgMap, ok := ev.ParsedData.(map[string]interface{})
		if !ok {
			continue
		}
		message, ok := msgMap["message"].(map[string]interface{})
		if !ok {
			continue
		}
		if id, ok := message["id"].(string); ok {
			return id, true
		}
	}
	return "", false
}

func isSSEComplete(acc *sseAccumulator) bool {
	for _, ev := range acc.events {
		switch ev.Event {
		case "message_stop", "error":
			return true
		}
	}
	return acc.accumulatedText.Len() > 50000 || acc.accumulatedJSON.Len() > 50000
}

func hasMeaningfulContent(acc *sseAccumulator) bool {
	if acc.accumulatedText.Len() > 0 || acc.accumulatedJSON.Len() > 0 {
		return true
	}

	hasContentDeltas := false
	hasMessageStart := false
	metadataOnlyCount := 0

	for _, ev := range acc.events {
		switch ev.Event {
		case "content_block_delta":
			hasContentDeltas = true
		case "message_start":
			hasMessageStart = true
		case "message_stop", "message_delta", "ping", "content_block_stop", "content_block_start":
			metadataOnlyCount++
		}
	}

	return hasContentDeltas || (hasMessageStart && len(acc.events) > 3 && metadataOnlyCount < len(acc.events))
}

func accumulateContent(acc *sseAccumulator, events []SSEEvent) {
	for _, ev := range events {
		acc.events = append(acc.events, ev)

		switch ev.Event {
		case "message_start":
			acc.hasMessageStart = true
			if !acc.hasMessageID {
				if id, ok := extractMessageID([]SSEEvent{ev}); ok {
					acc.messageID = id
					acc.hasMessageID = true
				}
			}
		case "content_block_delta":
			parsed, ok := ev.ParsedData.(map[string]interface{})
			if !ok {
				continue
			}
			delta, ok := parsed["delta"].(map[string]interface{})
			if !ok {
				continue
			}

			switch delta["type"] {
			case "text_delta":
				if text, ok := delta["text"].(string); ok && text != "" {
					acc.accumulatedText.WriteString(text)
				}
			case "thinking_delta":
				if thinking, ok := delta["thinking"].(string); ok && thinking != "" {
					acc.accumulatedText.WriteString(thinking)
				}
			}

			if partialJSON, ok := delta["partial_json"].(string); ok {
				acc.accumulatedJSON.WriteString(partialJSON)
			}
		}
	}
}

func createMergedEvent(connectionID string, acc *sseAccumulator, original core.Event) core.Event {
	jsonContent := ""
	if acc.accumulatedJSON.Len() > 0 {
		raw := acc.accumulatedJSON.String()
		var parsed interface{}
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			if pretty, err := json.MarshalIndent(parsed, "", "  "); err == nil {
				jsonContent = string(pretty)
			} else {
				jsonContent = raw
			}
		} else {
			jsonContent = raw
		}
	}

	textContent := acc.accumulatedText.String()

	sseEventsJSON := make([]map[string]interface{}, 0, len(acc.events))
	for _, ev := range acc.events {
		sseEventsJSON = append(sseEventsJSON, map[string]interface{}{
			"event":       ev.Event,
			"data":        ev.Data,
			"id":          ev.ID,
			"parsed_data": ev.ParsedData,
			"raw_data":    ev.RawData,
		})
	}

	totalSize := len(jsonContent) + len(textContent)

	function := "unknown"
	if f, ok := original.Data["function"].(string); ok {
		function = f
	}
	tid := dataUint64(original.Data, "tid")

	messageID := interface{}(nil)
	if acc.hasMessageID {
		messageID = acc.messageID
	}

	data := map[string]interface{}{
		"connection_id":     connectionID,
		"message_id":        messageID,
		"start_time":        acc.startTime,
		"end_time":          acc.endTime,
		"source":            "ssl",
		"function":          function,
		"tid":               tid,
		"json_content":      jsonContent,
		"text_content":      textContent,
		"total_size":        totalSize,
		"event_count":       len(acc.events),
		"has_message_start": acc.hasMessageStart,
		"sse_events":        sseEventsJSON,
	}

	return core.NewEventWithTimestamp(original.Timestamp, "sse_processor", original.PID, original.Comm, data)
}

func isMetadataOnlyEvents(events []SSEEvent) bool {
	hasContentPotential := false
	for _, ev := range events {
		if !ev.HasEvent {
			hasContentPotential = true
			break
		}
		switch ev.Event {
		case "message_start", "content_block_start", "content_block_delta", "message_stop", "content_block_stop":
			hasContentPotential = true
		case "message_delta", "ping":
		default:
			hasContentPotential = true
		}
		if hasContentPotential {
			break
		}
	}
	if hasContentPotential {
		return false
	}
	for _, ev := range events {
		if !ev.HasEvent {
			return false
		}
		if ev.Event != "ping" && ev.Event != "message_delta" {
			return false
		}
	}
	return true
}

func (s *SSEProcessor) handleEvent(ev core.Event) (core.Event, bool) {
	if ev.Source != "ssl" {
		return ev, true
	}

	dataStr, ok := ev.Data["data"].(string)
	if !ok {
		return ev, true
	}
	if !IsSSEData(dataStr) {
		return ev, true
	}

	sseEvents := ParseSSEEvents(dataStr)
	if len(sseEvents) == 0 {
		return ev, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if isMetadataOnlyEvents(sseEvents) {
		connectionID := generateConnectionID(ev, sseEvents)
		if _, exists := s.buffers[connectionID]; !exists {
			return core.Event{}, false
		}
	}

	connectionID := generateConnectionID(ev, sseEvents)
	finalConnectionID := connectionID

	if messageID, ok := extractMessageID(sseEvents); ok {
		pid := dataUint64(ev.Data, "pid")
		tid := dataUint64(ev.Data, "tid")
		finalConnectionID = fmt.Sprintf("%d:%d:%s", pid, tid, messageID)
	} else {
		pid := dataUint64(ev.Data, "pid")
		tid := dataUint64(ev.Data, "tid")
		prefix := fmt.Sprintf("%d:%d:", pid, tid)
		for existingID, acc := range s.buffers {
			if !strings.HasPrefix(existingID, prefix) {
				continue
			}
			hasStop := false
			for _, e := range acc.events {
				if e.Event == "message_stop" {
					hasStop = true
					break
				}
			}
			if !hasStop {
				finalConnectionID = existingID
				break
			}
		}
	}

	acc, exists := s.buffers[finalConnectionID]
	if !exists {
		acc = &sseAccumulator{startTime: ev.Timestamp, endTime: ev.Timestamp}
		s.buffers[finalConnectionID] = acc
	}
	acc.endTime = ev.Timestamp

	accumulateContent(acc, sseEvents)

	if !isSSEComplete(acc) {
		return core.Event{}, false
	}

	var result core.Event
	emit := false
	if hasMeaningfulContent(acc) {
		result = createMergedEvent(finalConnectionID, acc, ev)
		emit = true
	}
	delete(s.buffers, finalConnectionID)

	return result, emit
}

func (s *SSEProcessor) Process(ctx context.Context, in core.EventStream) (core.EventStream, error) {
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
				result, emit := s.handleEvent(ev)
				if !emit {
					continue
				}
				select {
				case out <- result:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
