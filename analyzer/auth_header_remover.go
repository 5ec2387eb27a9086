package analyzer

import (
	"context"
	"strings"

	"github.com/jbctechsolutions/agentsight/core"
)

var defaultAuthHeaders = []string{
	"authorization", "x-api-key", "x-auth-token", "bearer", "token",
	"x-access-token", "x-session-token", "cookie", "set-cookie",
}

// AuthHeaderRemover strips authorization-adjacent headers from parsed
// HTTP events. It should run after HttpParser (and typically after
// HttpFilter) in the pipeline.
type AuthHeaderRemover struct {
	authHeaders map[string]bool
	debug       bool
}

func NewAuthHeaderRemover() *AuthHeaderRemover {
	set := make(map[string]bool, len(defaultAuthHeaders))
	for _, h := range defaultAuthHeaders {
		set[h] = true
	}
	return &AuthHeaderRemover{authHeaders: set}
}

func (a *AuthHeaderRemover) SetDebug(debug bool) { a.debug = debug }

func (a *AuthHeaderRemover) Name() string { return "AuthHeaderRemover" }

func (a *AuthHeaderRemover) removeAuthHeaders(data map[string]interface{}) map[string]interface{} {
	if _, ok := data["message_type"].(string); !ok {
		return data
	}
	headers, ok := data["headers"].(map[string]interface{})
	if !ok {
		return data
	}

	var removed []string
	for key := range headers {
		if a.authHeaders[strings.ToLower(key)] {
			removed = append(removed, key)
		}
	}
	for _, key := range removed {
		delete(headers, key)
	}
	return data
}

func (a *AuthHeaderRemover) Process(ctx context.Context, in core.EventStream) (core.EventStream, error) {
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
				if ev.Source == "http_parser" {
					ev.Data = a.removeAuthHeaders(ev.Data)
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
