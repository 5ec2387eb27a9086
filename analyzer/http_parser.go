package analyzer

import (
	"context"
	"strconv"
	"strings"

	"github.com/jbctechsolutions/agentsight/core"
)

// HttpParser parses SSL traffic data that looks like HTTP into
// structured request/response events. Events whose data does not look
// like HTTP, or that fail to parse, pass through unchanged.
type HttpParser struct {
	includeRawData bool
}

func NewHttpParser() *HttpParser {
	return &HttpParser{includeRawData: true}
}

// DisableRawData returns an HttpParser that omits the raw_data field
// from parsed events.
func (p *HttpParser) DisableRawData() *HttpParser {
	p.includeRawData = false
	return p
}

func (p *HttpParser) Name() string { return "HTTPParser" }

var httpVerbs = []string{"GET ", "POST ", "PUT ", "DELETE ", "HEAD ", "OPTIONS ", "PATCH "}

// IsHTTPData sniffs whether a raw payload looks like an HTTP request
// or response.
func IsHTTPData(data string) bool {
	hasRequest := strings.Contains(data, "HTTP/1.")
	if hasRequest {
		hasVerb := false
		for _, v := range httpVerbs {
			if strings.Contains(data, v) {
				hasVerb = true
				break
			}
		}
		hasRequest = hasVerb
	}

	hasResponse := strings.HasPrefix(data, "HTTP/1.") || strings.Contains(data, "\r\nHTTP/1.")

	hasHeaders := strings.Contains(data, "Content-Type:") || strings.Contains(data, "content-type:") ||
		strings.Contains(data, "Host:") || strings.Contains(data, "host:") ||
		strings.Contains(data, "User-Agent:") || strings.Contains(data, "user-agent:")

	return hasRequest || hasResponse || hasHeaders
}

// HTTPMessage is a parsed HTTP request or response.
type HTTPMessage struct {
	MessageType string
	FirstLine   string
	Headers     map[string]string
	Body        string
	HasBody     bool
	RawData     string
	Method      string
	Path        string
	Protocol    string
	StatusCode  uint16
	StatusText  string
}

// ParseHTTPMessage parses a CRLF-framed HTTP message from accumulated
// text, or returns ok=false if it cannot be parsed as one.
func ParseHTTPMessage(data string) (HTTPMessage, bool) {
	lines := strings.Split(data, "\r\n")
	if len(lines) == 0 {
		return HTTPMessage{}, false
	}

	msg := HTTPMessage{
		Headers:   make(map[string]string),
		FirstLine: lines[0],
		RawData:   data,
	}

	if strings.HasPrefix(msg.FirstLine, "HTTP/") {
		msg.MessageType = "response"
		parts := strings.SplitN(msg.FirstLine, " ", 3)
		if len(parts) >= 2 {
			if code, err := strconv.ParseUint(parts[1], 10, 16); err == nil {
				msg.StatusCode = uint16(code)
			}
			msg.Protocol = parts[0]
			if len(parts) >= 3 {
				msg.StatusText = parts[2]
			}
		}
	} else {
		msg.MessageType = "request"
		parts := strings.SplitN(msg.FirstLine, " ", 3)
		if len(parts) >= 3 {
			msg.Method = parts[0]
			msg.Path = parts[1]
			msg.Protocol = parts[2]
		}
	}

	bodyStart := -1
	for i := 1; i < len(lines); i++ {
		line := lines[i]
		if line == "" {
			bodyStart = i + 1
			break
		}
		if colon := strings.Index(line, ":"); colon >= 0 {
			key := strings.ToLower(strings.TrimSpace(line[:colon]))
			value := strings.TrimSpace(line[colon+1:])
			msg.Headers[key] = value
		}
	}

	if bodyStart >= 0 && bodyStart < len(lines) {
		body := strings.Join(lines[bodyStart:], "\r\n")
		if strings.TrimSpace(body) != "" {
			msg.Body = body
			msg.HasBody = true
		}
	}

	return msg, true
}

func createHTTPEvent(tid uint64, msg HTTPMessage, original core.Event, includeRawData bool) core.Event {
	contentLength := -1
	if cl, ok := msg.Headers["content-length"]; ok {
		if n, err := strconv.Atoi(cl); err == nil {
			contentLength = n
		}
	}
	isChunked := strings.Contains(strings.ToLower(msg.Headers["transfer-encoding"]), "chunked")

	totalSize := len(msg.FirstLine)
	for k, v := range msg.Headers {
		totalSize += len(k) + len(v) + 4
	}
	totalSize += len(msg.Body) + 4

	data := map[string]interface{}{
		"message_type": msg.MessageType,
		"first_line":   msg.FirstLine,
		"headers":      stringHeadersToInterface(msg.Headers),
		"has_body":     msg.HasBody,
		"is_chunked":   isChunked,
		"total_size":   totalSize,
		"tid":          tid,
		"source":       "ssl",
	}
	if msg.HasBody {
		data["body"] = msg.Body
	}
	if contentLength >= 0 {
		data["content_length"] = contentLength
	}
	if msg.MessageType == "request" {
		data["method"] = msg.Method
		data["path"] = msg.Path
		data["protocol"] = msg.Protocol
	} else {
		data["status_code"] = msg.StatusCode
		data["status_text"] = msg.StatusText
		data["protocol"] = msg.Protocol
	}
	if includeRawData {
		data["raw_data"] = msg.RawData
	}

	return core.NewEventWithTimestamp(original.Timestamp, "http_parser", original.PID, original.Comm, data)
}

func stringHeadersToInterface(h map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

func handleSSLEvent(ev core.Event, includeRawData bool) core.Event {
	dataStr, ok := ev.Data["data"].(string)
	if !ok {
		return ev
	}
	if !IsHTTPData(dataStr) {
		return ev
	}
	msg, ok := ParseHTTPMessage(dataStr)
	if !ok {
		return ev
	}
	tid, _ := toUint64Field(ev.Data["tid"])
	return createHTTPEvent(tid, msg, ev, includeRawData)
}

func toUint64Field(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case float64:
		return uint64(n), true
	case uint64:
		return n, true
	case int:
		return uint64(n), true
	default:
		return 0, false
	}
}

func (p *HttpParser) Process(ctx context.Context, in core.EventStream) (core.EventStream, error) {
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
				result := ev
				if ev.Source == "ssl" {
					result = handleSSLEvent(ev, p.includeRawData)
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
