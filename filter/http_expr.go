package filter

import (
	"strconv"
	"strings"
)

// HTTPNodeKind identifies the shape of an HTTPNode.
type HTTPNodeKind int

const (
	HTTPEmpty HTTPNodeKind = iota
	HTTPAnd
	HTTPOr
	HTTPCondition
)

// HTTPNode is an n-ary expression tree node for the HTTP filter
// dialect. Unlike SSLNode, And/Or hold a list of children, and the
// top-level split on "|"/"&" does NOT track parenthesis depth — a
// deliberate, faithfully-reproduced asymmetry with the SSL dialect.
type HTTPNode struct {
	Kind     HTTPNodeKind
	Children []*HTTPNode
	Target   string
	Field    string
	Operator string
	Value    string
}

// ParseHTTPExpression parses an HTTP filter expression. It naively
// splits on "|" then "&" without paren-depth tracking, so a
// parenthesized sub-expression containing "|" or "&" will be split
// incorrectly — replicated as-is from the original implementation.
func ParseHTTPExpression(expr string) *HTTPNode {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &HTTPNode{Kind: HTTPEmpty}
	}
	return parseHTTPOrExpression(expr)
}

func parseHTTPOrExpression(expr string) *HTTPNode {
	parts := strings.Split(expr, "|")
	if len(parts) == 1 {
		return parseHTTPAndExpression(parts[0])
	}
	children := make([]*HTTPNode, 0, len(parts))
	for _, p := range parts {
		children = append(children, parseHTTPAndExpression(p))
	}
	return &HTTPNode{Kind: HTTPOr, Children: children}
}

func parseHTTPAndExpression(expr string) *HTTPNode {
	parts := strings.Split(expr, "&")
	if len(parts) == 1 {
		return parseHTTPCondition(parts[0])
	}
	children := make([]*HTTPNode, 0, len(parts))
	for _, p := range parts {
		children = append(children, parseHTTPCondition(p))
	}
	return &HTTPNode{Kind: HTTPAnd, Children: children}
}

func parseHTTPCondition(expr string) *HTTPNode {
	expr = strings.TrimSpace(expr)

	eq := strings.Index(expr, "=")
	if eq < 0 {
		// Legacy bare pattern: request path contains match.
		return &HTTPNode{
			Kind:     HTTPCondition,
			Target:   "request",
			Field:    "path",
			Operator: "contains",
			Value:    expr,
		}
	}

	key := strings.TrimSpace(expr[:eq])
	value := strings.TrimSpace(expr[eq+1:])

	target := "request"
	field := key
	if dot := strings.Index(key, "."); dot >= 0 {
		target = aliasTarget(key[:dot])
		field = key[dot+1:]
	}

	op := "exact"
	switch field {
	case "path_prefix", "path_starts_with":
		field = "path"
		op = "prefix"
	case "path_contains", "path_includes", "body_contains":
		op = "contains"
		if field == "body_contains" {
			field = "body"
		} else {
			field = "path"
		}
	case "path", "path_exact":
		field = "path"
		op = "exact"
	case "status_message":
		field = "status_text"
		op = "contains"
	case "content-type":
		field = "content_type"
		op = "contains"
	}

	return &HTTPNode{Kind: HTTPCondition, Target: target, Field: field, Operator: op, Value: value}
}

func aliasTarget(raw string) string {
	switch raw {
	case "req":
		return "request"
	case "resp", "res":
		return "response"
	default:
		return raw
	}
}

// EvaluateHTTP evaluates the parsed expression tree against an HTTP
// parser event's data map.
func EvaluateHTTP(node *HTTPNode, data map[string]interface{}) bool {
	if node == nil {
		return false
	}
	switch node.Kind {
	case HTTPEmpty:
		return false
	case HTTPAnd:
		for _, c := range node.Children {
			if !EvaluateHTTP(c, data) {
				return false
			}
		}
		return true
	case HTTPOr:
		for _, c := range node.Children {
			if EvaluateHTTP(c, data) {
				return true
			}
		}
		return false
	case HTTPCondition:
		return evaluateHTTPCondition(node, data)
	default:
		return false
	}
}

func evaluateHTTPCondition(node *HTTPNode, data map[string]interface{}) bool {
	messageType, _ := data["message_type"].(string)
	if messageType != node.Target {
		return false
	}

	switch node.Target {
	case "request":
		return evaluateHTTPRequestCondition(node, data)
	case "response":
		return evaluateHTTPResponseCondition(node, data)
	default:
		return false
	}
}

func headersOf(data map[string]interface{}) map[string]interface{} {
	h, _ := data["headers"].(map[string]interface{})
	return h
}

func headerValue(headers map[string]interface{}, name string) string {
	if headers == nil {
		return ""
	}
	lower := strings.ToLower(name)
	for k, v := range headers {
		if strings.ToLower(k) == lower {
			s, _ := v.(string)
			return s
		}
	}
	return ""
}

func evaluateHTTPRequestCondition(node *HTTPNode, data map[string]interface{}) bool {
	switch node.Field {
	case "method", "verb":
		method, _ := data["method"].(string)
		return strings.EqualFold(method, node.Value)
	case "path":
		path, _ := data["path"].(string)
		return compareStrings(path, node.Operator, node.Value)
	case "host", "hostname":
		return strings.Contains(headerValue(headersOf(data), "host"), node.Value)
	case "body":
		body, _ := data["body"].(string)
		return strings.Contains(body, node.Value)
	default:
		path, _ := data["path"].(string)
		query := ""
		if idx := strings.Index(path, "?"); idx >= 0 {
			query = path[idx+1:]
		}
		return strings.Contains(query, node.Field+"="+node.Value)
	}
}

func evaluateHTTPResponseCondition(node *HTTPNode, data map[string]interface{}) bool {
	switch node.Field {
	case "status_code", "status", "code":
		n, ok := toUint64(data["status_code"])
		if !ok {
			return false
		}
		expected, err := strconv.ParseUint(node.Value, 10, 64)
		if err != nil {
			return false
		}
		return n == expected
	case "status_text", "status_message":
		text, _ := data["status_text"].(string)
		return strings.Contains(strings.ToLower(text), strings.ToLower(node.Value))
	case "content_type":
		return strings.Contains(headerValue(headersOf(data), "content-type"), node.Value)
	case "server":
		return strings.Contains(headerValue(headersOf(data), node.Field), node.Value)
	case "body":
		body, _ := data["body"].(string)
		return strings.Contains(body, node.Value)
	default:
		return strings.Contains(headerValue(headersOf(data), node.Field), node.Value)
	}
}
