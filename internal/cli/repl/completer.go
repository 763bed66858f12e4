package repl

import (
	"strings"

	"github.com/chzyer/readline"
)

// commands lists the shell commands in help order.
var commands = []string{"set", "get", "delete", "compact", "stats", "help", "exit", "quit"}

// Completer provides command completion for the shell.
type Completer struct {
	commands []string
}

// NewCompleter creates a new Completer.
func NewCompleter() *Completer {
	return &Completer{commands: commands}
}

// Complete returns the commands starting with prefix.
func (c *Completer) Complete(prefix string) []string {
	var suggestions []string
	for _, cmd := range c.commands {
		if strings.HasPrefix(cmd, prefix) {
			suggestions = append(suggestions, cmd)
		}
	}
	return suggestions
}

// autoCompleter adapts the completer to readline's tab completion.
func (c *Completer) autoCompleter() readline.AutoCompleter {
	items := make([]readline.PrefixCompleterInterface, 0, len(c.commands))
	for _, cmd := range c.commands {
		items = append(items, readline.PcItem(cmd))
	}
	return readline.NewPrefixCompleter(items...)
}
