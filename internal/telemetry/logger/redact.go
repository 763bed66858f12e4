package logger

import (
	"log/slog"
	"strings"
)

// Attribute names that carry user data or key material.
var sensitiveKeys = map[string]struct{}{
	"value":          {},
	"values":         {},
	"old_value":      {},
	"encryption_key": {},
}

// Substrings that mark an attribute name as secret.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"passphrase",
	"credential",
}

// redactedValue is the placeholder for redacted sensitive data.
const redactedValue = "***REDACTED***"

// redactSensitive replaces the value of a sensitive attribute. Groups are
// walked recursively. Empty strings are left alone so a missing secret is
// still visible as missing.
func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	if !IsSensitiveKey(a.Key) {
		return a
	}
	if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
		return a
	}
	return slog.String(a.Key, redactedValue)
}

// IsSensitiveKey checks if an attribute name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	if _, ok := sensitiveKeys[keyLower]; ok {
		return true
	}
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// RedactString masks a non-empty value for display.
func RedactString(value string) string {
	if value == "" {
		return ""
	}
	return redactedValue
}
