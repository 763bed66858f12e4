package command

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/percoguru/kvstore/internal/cli/repl"
	"github.com/percoguru/kvstore/internal/infra/confloader"
	"github.com/percoguru/kvstore/internal/infra/shutdown"
	"github.com/percoguru/kvstore/internal/telemetry/logger"
)

// shutdownTimeout bounds closing the shell and the engine after a signal.
const shutdownTimeout = 10 * time.Second

// ShellCommand returns the shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:   "shell",
		Usage:  "Start the interactive shell (default when no command is given)",
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	if c.NArg() != 0 {
		return fmt.Errorf("unknown command %q", c.Args().First())
	}

	e, err := openEnv(c)
	if err != nil {
		return err
	}

	h := shutdown.NewHandler(shutdownTimeout)
	h.OnShutdown(func(context.Context) error {
		logger.L(e.ctx).Info("closing store")
		return e.Close()
	})

	sh, err := newShell(c, e)
	if err != nil {
		h.Shutdown()
		return err
	}
	h.OnShutdown(func(context.Context) error { return sh.Close() })

	if e.flags.Config != "" {
		w, err := watchConfig(e)
		if err != nil {
			// The shell works without hot reload.
			logger.L(e.ctx).Warn("config watcher not started", "error", err)
		} else {
			h.OnShutdown(func(context.Context) error { return w.Stop() })
		}
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- sh.Run(e.ctx)
		h.Trigger()
	}()

	if err := h.Wait(); err != nil {
		return err
	}
	select {
	case err := <-runErr:
		return err
	default:
		return nil
	}
}

// newShell reads from a readline terminal when attached to stdin and from
// plain lines otherwise.
func newShell(c *cli.Context, e *env) (*repl.REPL, error) {
	cfg := repl.Config{Output: e.out, Format: e.format}
	if c.App.Reader == nil || c.App.Reader == os.Stdin {
		return repl.New(e.engine, cfg)
	}
	return repl.NewWithReader(e.engine, c.App.Reader, cfg), nil
}

// watchConfig re-reads the configuration file when it changes and applies
// the new log level.
func watchConfig(e *env) (*confloader.Watcher, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(e.log.Slog()))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(e.flags.Config); err != nil {
		w.Stop()
		return nil, err
	}
	w.OnChange(func(path string) {
		if err := reloadLogLevel(e.flags); err != nil {
			logger.L(e.ctx).Warn("config reload failed", "path", path, "error", err)
			return
		}
		logger.L(e.ctx).Info("config reloaded", "path", path, "log_level", logger.GetLevel())
	})
	w.StartAsync()
	return w, nil
}

// reloadLogLevel loads the configuration again with the same flags and
// applies its log level. Storage settings need a restart.
func reloadLogLevel(flags *GlobalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger.SetLevel(cfg.Log.Level)
	return nil
}
