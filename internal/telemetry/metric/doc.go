// Package metric holds the Prometheus metrics of the key-value store.
//
// Metrics live in a private registry rather than the global default one, so
// several stores in one process (tests, benchmarks) do not collide. Nothing
// is served over HTTP; the CLI stats command reads the registry through
// Gather and Value.
package metric
