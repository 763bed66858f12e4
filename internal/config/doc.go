// Package config defines the kvstore configuration.
//
//   - spec.go: Config struct definition
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking of secrets before logging
//   - storage.go: translation into storage.Config
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// KVSTORE_ environment variables and command line overrides.
package config
