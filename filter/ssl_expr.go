package filter

import (
	"fmt"
	"strconv"
	"strings"
)

// SSLNodeKind identifies the shape of an SSLNode.
type SSLNodeKind int

const (
	SSLEmpty SSLNodeKind = iota
	SSLAnd
	SSLOr
	SSLCondition
)

// SSLNode is a binary expression tree node for the SSL filter dialect.
type SSLNode struct {
	Kind        SSLNodeKind
	Left, Right *SSLNode
	Field       string
	Operator    string
	Value       string
}

// sslOperators is ordered by match priority: longer/more specific
// operators are checked before their prefixes (">=" before ">").
var sslOperators = []struct {
	token string
	name  string
}{
	{">=", "gte"},
	{"<=", "lte"},
	{"!=", "not_equal"},
	{"=", "exact"},
	{">", "gt"},
	{"<", "lt"},
	{"~", "contains"},
}

// ParseSSLExpression parses an SSL filter expression into a binary
// And/Or/Condition tree. Top-level "|" binds looser than top-level
// "&"; parenthesized sub-expressions are paren-depth-aware, so an
// operator inside parens never splits the expression.
func ParseSSLExpression(expr string) (*SSLNode, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &SSLNode{Kind: SSLEmpty}, nil
	}

	if idx := findTopLevelOperator(expr, '|'); idx >= 0 {
		left, err := ParseSSLExpression(expr[:idx])
		if err != nil {
			return nil, err
		}
		right, err := ParseSSLExpression(expr[idx+1:])
		if err != nil {
			return nil, err
		}
		return &SSLNode{Kind: SSLOr, Left: left, Right: right}, nil
	}

	if idx := findTopLevelOperator(expr, '&'); idx >= 0 {
		left, err := ParseSSLExpression(expr[:idx])
		if err != nil {
			return nil, err
		}
		right, err := ParseSSLExpression(expr[idx+1:])
		if err != nil {
			return nil, err
		}
		return &SSLNode{Kind: SSLAnd, Left: left, Right: right}, nil
	}

	return parseSSLCondition(expr)
}

// findTopLevelOperator returns the index of the first occurrence of op
// outside any parenthesized group, or -1 if none exists.
func findTopLevelOperator(expr string, op byte) int {
	depth := 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		default:
			if expr[i] == op && depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parseSSLCondition(expr string) (*SSLNode, error) {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "(") && strings.HasSuffix(expr, ")") && matchingParens(expr) {
		return ParseSSLExpression(expr[1 : len(expr)-1])
	}

	for _, op := range sslOperators {
		if idx := strings.Index(expr, op.token); idx >= 0 {
			field := strings.TrimSpace(expr[:idx])
			value := strings.TrimSpace(expr[idx+len(op.token):])
			return &SSLNode{
				Kind:     SSLCondition,
				Field:    field,
				Operator: op.name,
				Value:    processEscapeSequences(value),
			}, nil
		}
	}

	return nil, fmt.Errorf("invalid filter condition: %q", expr)
}

func matchingParens(expr string) bool {
	depth := 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i != len(expr)-1 {
				return false
			}
		}
	}
	return depth == 0
}

// processEscapeSequences interprets \r, \n, \t, \\, and \" escapes in
// a raw filter value. Unknown escapes keep their backslash literal.
func processEscapeSequences(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 'r':
				b.WriteByte('\r')
				i++
				continue
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case 't':
				b.WriteByte('\t')
				i++
				continue
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			case '"':
				b.WriteByte('"')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// EvaluateSSL evaluates the parsed expression tree against an SSL
// event's data map.
func EvaluateSSL(node *SSLNode, data map[string]interface{}) bool {
	if node == nil {
		return false
	}
	switch node.Kind {
	case SSLEmpty:
		return false
	case SSLAnd:
		return EvaluateSSL(node.Left, data) && EvaluateSSL(node.Right, data)
	case SSLOr:
		return EvaluateSSL(node.Left, data) || EvaluateSSL(node.Right, data)
	case SSLCondition:
		return evaluateSSLCondition(node, data)
	default:
		return false
	}
}

var sslStringFields = map[string]bool{"data": true, "function": true, "comm": true}
var sslBoolFields = map[string]bool{"is_handshake": true, "truncated": true}
var sslU64Fields = map[string]bool{"len": true, "pid": true, "tid": true, "uid": true, "timestamp_ns": true}

func evaluateSSLCondition(node *SSLNode, data map[string]interface{}) bool {
	if node.Field == "data.type" {
		dataStr, _ := data["data"].(string)
		return compareStrings(DetectDataType(dataStr), node.Operator, node.Value)
	}

	if sslStringFields[node.Field] {
		s, _ := data[node.Field].(string)
		return compareStrings(s, node.Operator, node.Value)
	}

	if sslBoolFields[node.Field] {
		b, _ := data[node.Field].(bool)
		return compareStrings(strconv.FormatBool(b), node.Operator, node.Value)
	}

	if sslU64Fields[node.Field] {
		n, ok := toUint64(data[node.Field])
		if !ok {
			return false
		}
		return compareUint64(n, node.Operator, node.Value)
	}

	if node.Field == "latency_ms" {
		f, ok := toFloat64(data[node.Field])
		if !ok {
			return false
		}
		return compareFloat64(f, node.Operator, node.Value)
	}

	return false
}

func compareStrings(actual, operator, expected string) bool {
	switch operator {
	case "exact":
		return actual == expected
	case "not_equal":
		return actual != expected
	case "contains":
		return strings.Contains(actual, expected)
	case "prefix":
		return strings.HasPrefix(actual, expected)
	case "suffix":
		return strings.HasSuffix(actual, expected)
	default:
		return false
	}
}

func compareUint64(actual uint64, operator, expectedStr string) bool {
	expected, err := strconv.ParseUint(expectedStr, 10, 64)
	if err != nil {
		return false
	}
	switch operator {
	case "exact":
		return actual == expected
	case "not_equal":
		return actual != expected
	case "gt":
		return actual > expected
	case "lt":
		return actual < expected
	case "gte":
		return actual >= expected
	case "lte":
		return actual <= expected
	default:
		return false
	}
}

func compareFloat64(actual float64, operator, expectedStr string) bool {
	expected, err := strconv.ParseFloat(expectedStr, 64)
	if err != nil {
		return false
	}
	switch operator {
	case "exact":
		return actual == expected
	case "not_equal":
		return actual != expected
	case "gt":
		return actual > expected
	case "lt":
		return actual < expected
	case "gte":
		return actual >= expected
	case "lte":
		return actual <= expected
	default:
		return false
	}
}

func toUint64(v interface{}) (uint64, bool) {
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

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
