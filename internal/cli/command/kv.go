package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/percoguru/kvstore/internal/cli/output"
	"github.com/percoguru/kvstore/internal/storage"
	"github.com/percoguru/kvstore/internal/storage/snapshot"
	"github.com/percoguru/kvstore/internal/telemetry/metric"
)

// SetCommand returns the set command.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Store a value under a key",
		ArgsUsage: "KEY VALUE",
		Action:    runSet,
	}
}

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the value stored under a key",
		ArgsUsage: "KEY",
		Action:    runGet,
	}
}

// DeleteCommand returns the delete command.
func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm", "remove"},
		Usage:     "Remove a key",
		ArgsUsage: "KEY",
		Action:    runDelete,
	}
}

// CompactCommand returns the compact command.
func CompactCommand() *cli.Command {
	return &cli.Command{
		Name:   "compact",
		Usage:  "Write a snapshot and truncate the WAL",
		Action: runCompact,
	}
}

// StatsCommand returns the stats command.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show storage statistics",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Also show the metrics recorded while opening the store",
			},
		},
		Action: runStats,
	}
}

// keyResult reports a write.
type keyResult struct {
	Key    string `json:"key" yaml:"key"`
	Status string `json:"status" yaml:"status"`
}

func (r keyResult) Text() string { return r.Status }

// getResult reports a lookup.
type getResult struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
	Found bool   `json:"found" yaml:"found"`
}

func (r getResult) Text() string {
	if !r.Found {
		return "Key not found"
	}
	return r.Value
}

// compactResult reports the snapshot written by a compaction.
type compactResult struct {
	Status   string         `json:"status" yaml:"status"`
	Snapshot *snapshot.Info `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
}

func (r compactResult) Text() string { return r.Status }

// statsResult combines storage statistics and metric samples.
type statsResult struct {
	Storage storage.Stats   `json:"storage" yaml:"storage"`
	Metrics []metric.Sample `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

func runSet(c *cli.Context) error {
	if c.NArg() != 2 {
		return usageError(c, "KEY VALUE")
	}
	key, value := c.Args().Get(0), c.Args().Get(1)
	return withEngine(c, func(e *env) error {
		if err := e.engine.Set(e.ctx, key, value); err != nil {
			return err
		}
		return e.print(keyResult{Key: key, Status: "OK"})
	})
}

func runGet(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError(c, "KEY")
	}
	key := c.Args().First()
	return withEngine(c, func(e *env) error {
		value, ok := e.engine.Get(e.ctx, key)
		return e.print(getResult{Key: key, Value: value, Found: ok})
	})
}

func runDelete(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageError(c, "KEY")
	}
	key := c.Args().First()
	return withEngine(c, func(e *env) error {
		if err := e.engine.Remove(e.ctx, key); err != nil {
			return err
		}
		return e.print(keyResult{Key: key, Status: "OK"})
	})
}

func runCompact(c *cli.Context) error {
	if c.NArg() != 0 {
		return usageError(c, "")
	}
	return withEngine(c, func(e *env) error {
		if err := e.engine.Compact(e.ctx); err != nil {
			return err
		}
		return e.print(compactResult{Status: "OK", Snapshot: e.engine.Stats().Snapshot})
	})
}

func runStats(c *cli.Context) error {
	if c.NArg() != 0 {
		return usageError(c, "")
	}
	return withEngine(c, func(e *env) error {
		result := statsResult{Storage: e.engine.Stats()}
		if c.Bool("metrics") {
			samples, err := e.metrics.Samples()
			if err != nil {
				return fmt.Errorf("gather metrics: %w", err)
			}
			result.Metrics = samples
		}

		switch e.format {
		case output.FormatJSON, output.FormatYAML:
			return e.print(result)
		}
		if err := e.print(result.Storage); err != nil {
			return err
		}
		if len(result.Metrics) == 0 {
			return nil
		}
		fmt.Fprintln(e.out)
		return (&output.TableFormatter{}).Format(e.out, samplesTable(result.Metrics))
	})
}

func samplesTable(samples []metric.Sample) *output.Table {
	t := &output.Table{Headers: []string{"METRIC", "LABELS", "VALUE"}}
	for _, s := range samples {
		t.AddRow(s.Name, formatLabels(s.Labels), fmt.Sprintf("%g", s.Value))
	}
	return t
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return "-"
	}
	pairs := make([]string, 0, len(labels))
	for k, v := range labels {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}
