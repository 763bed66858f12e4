// Package tracer wires OpenTelemetry tracing for the key-value store.
//
// No exporter is installed by default: spans are created and ended so trace
// IDs flow into log lines, and tests or embedders can attach a span
// processor to inspect them.
package tracer
