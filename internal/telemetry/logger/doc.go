// Package logger provides structured logging for the key-value store.
//
// It wraps log/slog:
//
//   - logger.go: handler setup, dynamic level, package level helpers
//   - context.go: logger, request ID and trace ID propagation via context
//   - redact.go: masking of stored values and secrets
//
// Stored values are user data and never reach a log line: any attribute
// named value or encryption_key, or whose name mentions a secret or
// password, is replaced before it is written.
package logger
