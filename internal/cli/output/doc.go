// Package output renders command results for the kvstore CLI and shell.
//
//   - formatter.go: Formatter interface and factory
//   - text.go: plain text, the default
//   - table.go: aligned columns
//   - json.go, yaml.go: machine-readable output for scripting
package output
