package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/dassi/internal/deploy"
	"github.com/roach88/dassi/internal/host"
)

// ReplayResult holds the outcome of replaying the journal.
type ReplayResult struct {
	Entries        int    `json:"entries"`
	Calls          int    `json:"calls"`
	Puts           int    `json:"puts"`
	Refused        int    `json:"refused"`
	StoredDigest   string `json:"stored_digest"`
	ReplayedDigest string `json:"replayed_digest,omitempty"`
	Deterministic  bool   `json:"deterministic"`
	Divergence     string `json:"divergence,omitempty"`
}

// WriteText renders the replay summary.
func (r ReplayResult) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Replay Summary: %d entries (%d calls, %d refused, %d writes)\n", r.Entries, r.Calls, r.Refused, r.Puts)
	fmt.Fprintf(w, "  Stored state:   %s\n", r.StoredDigest)
	if r.ReplayedDigest != "" {
		fmt.Fprintf(w, "  Replayed state: %s\n", r.ReplayedDigest)
	}
	if r.Divergence != "" {
		fmt.Fprintf(w, "  Divergence: %s\n", r.Divergence)
	}
	fmt.Fprintln(w)
	if r.Deterministic {
		fmt.Fprintln(w, "✓ Replay reproduces the stored state")
	} else {
		fmt.Fprintln(w, "✗ Replay diverged from the stored state")
	}
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify determinism",
		Long: `Replay the journal into an empty in-memory state and verify determinism.

Every journaled write is applied again and every call re-executed at its
recorded time. Each call must end with its recorded outcome, and the final
state digest must equal the digest of the stored accounts.

Exit codes:
  0 - Replay reproduces the stored state
  1 - Replay diverged (different outcome or state)
  2 - Command error (database not found, etc.)

Examples:
  dassi replay --db ./dassi.db
  dassi replay --db ./dassi.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, cmd)
		},
	}
	return cmd
}

func runReplay(opts *RootOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	e, err := openEnv(ctx, opts, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	entries, err := e.store.ListEntries(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}

	result := ReplayResult{Entries: len(entries)}
	for _, entry := range entries {
		switch entry.Kind {
		case host.EntryCall:
			result.Calls++
			if entry.Failed {
				result.Refused++
			}
		case host.EntryPut:
			result.Puts++
		}
	}

	if result.StoredDigest, err = host.StateDigest(ctx, e.store); err != nil {
		return WrapExitError(ExitCommandError, "failed to hash stored state", err)
	}

	// A second deployment of the same config over an empty store.
	d, err := deploy.New(e.cfg, e.logger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build deployment", err)
	}
	mem := host.NewMemoryStore()
	rt := host.NewRuntime(mem,
		host.WithRent(e.cfg.HostRent()),
		host.WithLogger(e.logger),
	)
	d.Register(rt)

	f := newFormatter(opts, cmd)
	f.VerboseLog("Replaying %d entries", len(entries))

	if err := rt.Replay(ctx, entries); err != nil {
		result.Divergence = err.Error()
	} else {
		if result.ReplayedDigest, err = host.StateDigest(ctx, mem); err != nil {
			return WrapExitError(ExitCommandError, "failed to hash replayed state", err)
		}
		result.Deterministic = result.ReplayedDigest == result.StoredDigest
		if !result.Deterministic {
			result.Divergence = "final state digest differs"
		}
	}

	if !result.Deterministic {
		e.logger.Warn("replay diverged", "reason", result.Divergence)
		if opts.Format == "json" {
			if err := f.Error("E_DETERMINISM", "determinism verification failed", result); err != nil {
				return err
			}
		} else if err := f.Success(result); err != nil {
			return err
		}
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return f.Success(result)
}
