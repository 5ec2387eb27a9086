// Package filter implements the two expression-language dialects used
// to drop or keep events in the SSL and HTTP filter analyzers, plus
// the text/binary discriminator shared by several analyzers.
package filter

import (
	"encoding/hex"
	"encoding/json"
)

// DetectDataType classifies a string as "text" or "binary". A string
// is binary if it contains any control character other than \n, \r,
// or \t.
func DetectDataType(s string) string {
	for _, r := range s {
		if isControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return "binary"
		}
	}
	return "text"
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

// DataToString renders a decoded JSON value as a human-readable
// string, hex-encoding binary string data with a "HEX:" prefix.
func DataToString(data interface{}) string {
	switch v := data.(type) {
	case string:
		if DetectDataType(v) == "text" {
			return v
		}
		return "HEX:" + hex.EncodeToString([]byte(v))
	case nil:
		return "null"
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
