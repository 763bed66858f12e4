// Package buildinfo reports the version of the kvstore binary.
//
// Release builds inject values with ldflags:
//
//	go build -ldflags "-X github.com/percoguru/kvstore/internal/infra/buildinfo.Version=v1.0.0"
//
// Values left unset are filled from the module build information embedded
// by the Go toolchain.
package buildinfo
