// Command kvstore is a durable key-value store on local disk.
//
// Usage:
//
//	kvstore [--config FILE] [--data-dir DIR] [--output FORMAT] COMMAND [ARGS]
//
// Commands are set, get, delete, compact, stats and shell. Without a
// command kvstore starts the interactive shell.
package main
