package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/dassi/internal/config"
	"github.com/roach88/dassi/internal/deploy"
	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/store"
)

// env is the deployment a command works against: the configuration, an
// open database and a runtime journaling into it.
type env struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
	d      *deploy.Deployment
	rt     *host.Runtime
}

// commandContext is the context cobra executes cmd under.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// loadConfig reads --config, or the embedded defaults when it is unset.
func loadConfig(opts *RootOptions) (config.Config, error) {
	if opts.Config == "" {
		return config.Default()
	}
	return config.Load(opts.Config)
}

// newLogger writes structured logs to w. Only warnings surface unless
// --verbose is set.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// clockFor returns the fixed clock requested by --now, or the wall clock.
func clockFor(opts *RootOptions) host.Clock {
	if opts.Now != 0 {
		return host.FixedClock(opts.Now)
	}
	return host.SystemClock{}
}

// openEnv opens the database and wires a runtime onto it. Unless
// allowEmpty is set the database must hold a deployed program.
func openEnv(ctx context.Context, opts *RootOptions, cmd *cobra.Command, allowEmpty bool) (*env, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger := newLogger(opts, cmd.ErrOrStderr())

	d, err := deploy.New(cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build deployment", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	if !allowEmpty {
		if _, err := st.GetAccount(ctx, d.Program); err != nil {
			st.Close()
			if errors.Is(err, host.ErrAccountNotFound) {
				return nil, NewExitError(ExitCommandError, fmt.Sprintf("database %s is not initialized (run dassi init)", opts.Database))
			}
			return nil, WrapExitError(ExitCommandError, "failed to read program account", err)
		}
	}

	rt := host.NewRuntime(st,
		host.WithClock(clockFor(opts)),
		host.WithJournal(st),
		host.WithRent(cfg.HostRent()),
		host.WithLogger(logger),
	)
	d.Register(rt)

	logger.Debug("environment ready",
		"db", opts.Database,
		"program", d.Program.String(),
	)
	return &env{cfg: cfg, logger: logger, store: st, d: d, rt: rt}, nil
}

// Close releases the database.
func (e *env) Close() error {
	return e.store.Close()
}
