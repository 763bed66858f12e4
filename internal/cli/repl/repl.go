package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/chzyer/readline"

	"github.com/percoguru/kvstore/internal/cli/output"
	"github.com/percoguru/kvstore/internal/storage"
)

const (
	// Prompt is printed before each input line.
	Prompt = "> "

	banner      = "kvstore interactive mode. Type 'help' for commands."
	helpText    = "Commands: set <key> <value>, get <key>, delete <key>, compact, stats, exit"
	unknownText = "Unknown command. Type 'help' for commands."
	notFound    = "Key not found"
)

// Store is the subset of the storage engine the shell drives.
type Store interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool)
	Remove(ctx context.Context, key string) error
	Compact(ctx context.Context) error
	Stats() storage.Stats
}

// lineReader reads one line of input per call. It returns io.EOF when
// input ends and readline.ErrInterrupt on Ctrl-C.
type lineReader interface {
	Readline() (string, error)
	Close() error
}

// Config configures the shell.
type Config struct {
	// Output receives command results. Defaults to os.Stdout.
	Output io.Writer
	// Format renders stats. Defaults to text.
	Format output.Format
	// HistoryFile persists input history. Empty uses DefaultHistoryFile.
	HistoryFile string
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	store     Store
	input     lineReader
	output    io.Writer
	formatter output.Formatter
	completer *Completer

	closeOnce sync.Once
}

// New creates a shell on a readline terminal.
func New(store Store, cfg Config) (*REPL, error) {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = DefaultHistoryFile()
	}

	completer := NewCompleter()
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          Prompt,
		HistoryFile:     cfg.HistoryFile,
		AutoComplete:    completer.autoCompleter(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          cfg.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("start readline: %w", err)
	}

	return newREPL(store, rl, cfg), nil
}

// NewWithReader creates a shell reading plain lines from r, for scripted
// input.
func NewWithReader(store Store, r io.Reader, cfg Config) *REPL {
	if cfg.Output == nil {
		cfg.Output = os.Stdout
	}
	return newREPL(store, &scanReader{scanner: bufio.NewScanner(r)}, cfg)
}

func newREPL(store Store, in lineReader, cfg Config) *REPL {
	return &REPL{
		store:     store,
		input:     in,
		output:    cfg.Output,
		formatter: output.NewFormatter(cfg.Format),
		completer: NewCompleter(),
	}
}

// DefaultHistoryFile returns ~/.kvstore_history, or "" when the home
// directory is unknown.
func DefaultHistoryFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".kvstore_history")
}

// Run reads commands until exit, end of input, Ctrl-C on an empty line, or
// Close.
func (r *REPL) Run(ctx context.Context) error {
	fmt.Fprintln(r.output, banner)

	for {
		line, err := r.input.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if strings.TrimSpace(line) == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) || errors.Is(err, errClosed) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}

		if err := r.execute(ctx, line); err != nil {
			fmt.Fprintf(r.output, "Error: %v\n", err)
		}
	}
}

// Close stops a running loop and releases the terminal.
func (r *REPL) Close() error {
	var err error
	r.closeOnce.Do(func() { err = r.input.Close() })
	return err
}

func (r *REPL) execute(ctx context.Context, line string) error {
	args, err := splitArgs(line)
	if err != nil {
		return err
	}

	switch {
	case len(args) == 3 && args[0] == "set":
		if err := r.store.Set(ctx, args[1], args[2]); err != nil {
			return err
		}
		fmt.Fprintln(r.output, "OK")
	case len(args) == 2 && args[0] == "get":
		if value, ok := r.store.Get(ctx, args[1]); ok {
			fmt.Fprintln(r.output, value)
		} else {
			fmt.Fprintln(r.output, notFound)
		}
	case len(args) == 2 && args[0] == "delete":
		if err := r.store.Remove(ctx, args[1]); err != nil {
			return err
		}
		fmt.Fprintln(r.output, "OK")
	case len(args) == 1 && args[0] == "compact":
		if err := r.store.Compact(ctx); err != nil {
			return err
		}
		fmt.Fprintln(r.output, "OK")
	case len(args) == 1 && args[0] == "stats":
		return r.formatter.Format(r.output, r.store.Stats())
	case len(args) == 1 && args[0] == "help":
		fmt.Fprintln(r.output, helpText)
	default:
		fmt.Fprintln(r.output, unknownText)
	}
	return nil
}

var errClosed = errors.New("repl: input closed")

// scanReader reads lines from a plain reader. Close does not interrupt a
// pending read; the next Readline reports errClosed.
type scanReader struct {
	scanner *bufio.Scanner
	closed  atomic.Bool
}

func (s *scanReader) Readline() (string, error) {
	if s.closed.Load() {
		return "", errClosed
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	if s.closed.Load() {
		return "", errClosed
	}
	return s.scanner.Text(), nil
}

func (s *scanReader) Close() error {
	s.closed.Store(true)
	return nil
}
