package helpers

import (
	"encoding/base64"
	"strings"
)

// SplitAndTrim splits s by sep and trims empty parts.
func SplitAndTrim(s, sep string) []string {
	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Prefix returns the n leading characters of s followed by "...". A string
// no longer than n is never shown.
func Prefix(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	if len(s) <= n {
		return "..."
	}
	return s[:n] + "..."
}

// DataURI encodes bytes as an inline data: URL.
func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}
