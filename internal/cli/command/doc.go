// Package command defines the kvstore command line using urfave/cli/v2.
//
//   - root.go: application, global flags
//   - env.go: per-invocation config, logger and engine
//   - kv.go: set, get, delete, compact and stats
//   - shell.go: the interactive shell, also run when no command is given
//
// Each invocation loads the configuration, opens the engine (replaying
// the snapshot and WAL), runs one operation and closes the engine.
package command
