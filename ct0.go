package bird

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// GenerateCT0 generates a random 32-byte hex string for use as a ct0 CSRF token.
func GenerateCT0() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "0000000000000000000000000000000000000000000000000000000000000000"
	}
	return hex.EncodeToString(b)
}

// extractCT0FromHeaders parses ct0 value from a set-cookie response header.
func extractCT0FromHeaders(headers map[string]string) string {
	cookie := headers["set-cookie"]
	if cookie == "" {
		return ""
	}
	for _, part := range strings.Split(cookie, ";") {
		part = strings.TrimSpace(part)
		if val, ok := strings.CutPrefix(part, "ct0="); ok && val != "" {
			return val
		}
	}
	return ""
}

// replaceCookie sets name=value in a cookie header, appending it if absent.
func replaceCookie(header, name, value string) string {
	parts := strings.Split(header, ";")
	found := false
	for i, part := range parts {
		k, _, ok := strings.Cut(strings.TrimSpace(part), "=")
		if ok && k == name {
			parts[i] = " " + name + "=" + value
			found = true
		}
	}
	if !found {
		parts = append(parts, " "+name+"="+value)
	}
	out := strings.TrimSpace(strings.Join(parts, ";"))
	return strings.TrimSpace(strings.TrimPrefix(out, ";"))
}
