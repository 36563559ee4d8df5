package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/dassi/internal/amount"
	"github.com/roach88/dassi/internal/config"
	"github.com/roach88/dassi/internal/host"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Admin         string
	AirdropSupply string
}

// InitResult describes a fresh deployment.
type InitResult struct {
	Database      string `json:"database"`
	Admin         string `json:"admin"`
	Program       string `json:"program"`
	TokenProgram  string `json:"token_program"`
	Mint          string `json:"mint"`
	Ledger        string `json:"ledger"`
	Vault         string `json:"vault"`
	AirdropVault  string `json:"airdrop_vault"`
	AirdropSupply string `json:"airdrop_supply"`
}

// WriteText renders the deployment addresses.
func (r InitResult) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Initialized %s\n", r.Database)
	fmt.Fprintf(w, "  Admin:          %s\n", r.Admin)
	fmt.Fprintf(w, "  Program:        %s\n", r.Program)
	fmt.Fprintf(w, "  Token program:  %s\n", r.TokenProgram)
	fmt.Fprintf(w, "  Mint:           %s\n", r.Mint)
	fmt.Fprintf(w, "  Lenders ledger: %s\n", r.Ledger)
	fmt.Fprintf(w, "  Vault:          %s\n", r.Vault)
	fmt.Fprintf(w, "  Airdrop vault:  %s (%s coins)\n", r.AirdropVault, r.AirdropSupply)
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a database and deploy the lending program",
		Long: `Create a database and deploy the lending program into it.

Writes the program and token-program accounts, the lenders ledger and both
vaults, then runs the admin calls that hand the vaults to their derived
authorities and initialize the ledger.

Exit codes:
  0 - Deployment created
  1 - A deployment call was refused
  2 - Command error (database already initialized, bad flags, etc.)

Examples:
  dassi init --db ./dassi.db
  dassi init --admin ops --airdrop-supply 50000`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(commandContext(cmd), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Admin, "admin", "admin", "name or key of the deploying admin")
	cmd.Flags().StringVar(&opts.AirdropSupply, "airdrop-supply", "10000", "coins minted into the airdrop vault")

	return cmd
}

func runInit(ctx context.Context, opts *InitOptions, cmd *cobra.Command) error {
	supply, err := amount.Parse(opts.AirdropSupply)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --airdrop-supply", err)
	}

	e, err := openEnv(ctx, opts.RootOptions, cmd, true)
	if err != nil {
		return err
	}
	defer e.Close()

	if _, err := e.store.GetAccount(ctx, e.d.Program); err == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("database %s is already initialized", opts.Database))
	} else if !errors.Is(err, host.ErrAccountNotFound) {
		return WrapExitError(ExitCommandError, "failed to read program account", err)
	}

	f := newFormatter(opts.RootOptions, cmd)
	admin := config.ResolveKey(opts.Admin)
	if err := e.d.Wallet(ctx, e.rt, admin, 1_000_000_000); err != nil {
		return WrapExitError(ExitCommandError, "failed to create admin wallet", err)
	}
	if err := e.d.Genesis(ctx, e.rt, admin, supply); err != nil {
		return WrapExitError(ExitCommandError, "failed to write genesis accounts", err)
	}
	f.VerboseLog("Genesis accounts written")

	for _, call := range []struct {
		name string
		call host.Call
	}{
		{"transfer_vault", e.d.TransferVaultOwnership(admin)},
		{"transfer_airdrop_vault", e.d.TransferAirdropVaultOwnership(admin)},
		{"init_ledger", e.d.InitLedger(admin)},
	} {
		rec, err := e.rt.Execute(ctx, call.call)
		if err != nil {
			return reportCallError(f, call.name, rec, err)
		}
		f.VerboseLog("%s: %s", call.name, rec.ID)
	}

	return f.Success(InitResult{
		Database:      opts.Database,
		Admin:         admin.String(),
		Program:       e.d.Program.String(),
		TokenProgram:  e.d.TokenProgram.String(),
		Mint:          e.d.Mint.String(),
		Ledger:        e.d.Ledger.String(),
		Vault:         e.d.Vault.String(),
		AirdropVault:  e.d.AirdropVault.String(),
		AirdropSupply: amount.Format(supply),
	})
}
