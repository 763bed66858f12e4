// Package repl implements the interactive kvstore shell.
//
//   - repl.go: read-eval-print loop and command dispatch
//   - parse.go: splitting input lines with quoted arguments
//   - completer.go: tab completion for command names
//
// Line editing and history come from github.com/chzyer/readline; tests
// drive the loop through a plain reader instead.
package repl
