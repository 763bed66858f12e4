package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/percoguru/kvstore/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "kvstore",
		Usage:   "durable key-value store",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SetCommand(),
			GetCommand(),
			DeleteCommand(),
			CompactCommand(),
			StatsCommand(),
			ShellCommand(),
		},
		Action: shellAction,
		// Errors are printed once by the caller.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			EnvVars: []string{"KVSTORE_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Directory holding the snapshot and WAL (overrides storage.data_dir)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error (overrides log.level)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: text, table, json, yaml",
			Value:   "text",
		},
	}
}

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	Config   string
	DataDir  string
	LogLevel string
	Output   string
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) *GlobalFlags {
	return &GlobalFlags{
		Config:   c.String("config"),
		DataDir:  c.String("data-dir"),
		LogLevel: c.String("log-level"),
		Output:   c.String("output"),
	}
}

// overrides maps the flags that were set to configuration keys.
func (f *GlobalFlags) overrides() map[string]any {
	m := make(map[string]any)
	if f.DataDir != "" {
		m["storage.data_dir"] = f.DataDir
	}
	if f.LogLevel != "" {
		m["log.level"] = f.LogLevel
	}
	return m
}

func usageError(c *cli.Context, usage string) error {
	return fmt.Errorf("usage: %s %s", c.Command.HelpName, usage)
}
