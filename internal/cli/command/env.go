package command

import (
	"context"
	"fmt"
	"io"

	"github.com/oklog/ulid/v2"
	"github.com/urfave/cli/v2"

	"github.com/percoguru/kvstore/internal/cli/output"
	"github.com/percoguru/kvstore/internal/config"
	"github.com/percoguru/kvstore/internal/infra/confloader"
	"github.com/percoguru/kvstore/internal/storage"
	"github.com/percoguru/kvstore/internal/telemetry/logger"
	"github.com/percoguru/kvstore/internal/telemetry/metric"
)

// env is everything one invocation needs.
type env struct {
	flags   *GlobalFlags
	cfg     *config.Config
	log     logger.Logger
	metrics *metric.Registry
	engine  *storage.Engine
	format  output.Format
	out     io.Writer
	ctx     context.Context
}

// openEnv loads the configuration, builds the logger and opens the engine.
func openEnv(c *cli.Context) (*env, error) {
	flags := ParseGlobalFlags(c)
	format, err := output.ParseFormat(flags.Output)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: c.App.ErrWriter,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.SetDefault(log)

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logger.WithRequestID(logger.WithLogger(ctx, log), ulid.Make().String())

	logger.L(ctx).Debug("configuration loaded",
		"command", c.Command.Name,
		"config", config.Sanitize(cfg))

	metrics := metric.NewRegistry()
	storageCfg, err := cfg.StorageConfig(log.Slog(), metrics)
	if err != nil {
		return nil, err
	}
	engine, err := storage.Open(storageCfg)
	if err != nil {
		return nil, err
	}

	return &env{
		flags:   flags,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		engine:  engine,
		format:  format,
		out:     c.App.Writer,
		ctx:     ctx,
	}, nil
}

func loadConfig(flags *GlobalFlags) (*config.Config, error) {
	opts := []confloader.Option{confloader.WithOverrides(flags.overrides())}
	if flags.Config != "" {
		opts = append(opts, confloader.WithConfigFile(flags.Config))
	}
	cfg, err := config.Load(confloader.NewLoader(opts...))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// print renders a result in the selected format.
func (e *env) print(data any) error {
	return output.NewFormatter(e.format).Format(e.out, data)
}

// Close closes the engine.
func (e *env) Close() error {
	return e.engine.Close()
}

// withEngine runs fn against a freshly opened engine and closes it after.
func withEngine(c *cli.Context, fn func(e *env) error) (err error) {
	e, err := openEnv(c)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(e)
}
