package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/dassi/internal/amount"
	"github.com/roach88/dassi/internal/config"
	"github.com/roach88/dassi/internal/deploy"
	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/pubkey"
	"github.com/roach88/dassi/internal/token"
)

// Account kinds handled outside deploy.AccountKinds.
const (
	kindWallet = "wallet"
	kindToken  = "token"
	kindUser   = "user"
)

// AccountOptions holds flags for the account subcommands.
type AccountOptions struct {
	*RootOptions
	Kind     string
	Balance  string
	Lamports uint64
	Amount   string
	Owner    string
}

// AccountView is the rendered state of one stored account.
type AccountView struct {
	Name       string `json:"name,omitempty"`
	Address    string `json:"address"`
	Owner      string `json:"owner"`
	Lamports   uint64 `json:"lamports"`
	Size       int    `json:"size"`
	Executable bool   `json:"executable"`

	// Token fields are set for token accounts.
	TokenOwner   string `json:"token_owner,omitempty"`
	TokenBalance string `json:"token_balance,omitempty"`
}

// WriteText renders the account.
func (v AccountView) WriteText(w io.Writer) {
	if v.Name != "" {
		fmt.Fprintf(w, "%s (%s)\n", v.Name, v.Address)
	} else {
		fmt.Fprintln(w, v.Address)
	}
	fmt.Fprintf(w, "  Owner:      %s\n", v.Owner)
	fmt.Fprintf(w, "  Lamports:   %d\n", v.Lamports)
	fmt.Fprintf(w, "  Size:       %d\n", v.Size)
	fmt.Fprintf(w, "  Executable: %t\n", v.Executable)
	if v.TokenBalance != "" {
		fmt.Fprintf(w, "  Token owner:   %s\n", v.TokenOwner)
		fmt.Fprintf(w, "  Token balance: %s\n", v.TokenBalance)
	}
}

// AccountShow is an identity and, when it has one, its token account.
type AccountShow struct {
	Account *AccountView `json:"account,omitempty"`
	Token   *AccountView `json:"token,omitempty"`
}

// WriteText renders both views.
func (s AccountShow) WriteText(w io.Writer) {
	if s.Account != nil {
		s.Account.WriteText(w)
	}
	if s.Token != nil {
		s.Token.WriteText(w)
	}
}

// AccountList is the result of account list.
type AccountList struct {
	Accounts []AccountView `json:"accounts"`
	Total    int           `json:"total"`
}

// WriteText renders one account per line.
func (l AccountList) WriteText(w io.Writer) {
	for _, v := range l.Accounts {
		line := fmt.Sprintf("%-44s owner=%s lamports=%d size=%d", v.Address, v.Owner, v.Lamports, v.Size)
		if v.TokenBalance != "" {
			line += " balance=" + v.TokenBalance
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "%d account(s)\n", l.Total)
}

// NewAccountCommand creates the account command group.
func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Create, fund and inspect accounts",
		Long: `Create, fund and inspect accounts outside of program calls.

These writes stand in for wallet and token tooling. They are journaled like
calls so replay reproduces them.`,
	}

	cmd.AddCommand(newAccountCreateCommand(rootOpts))
	cmd.AddCommand(newAccountFundCommand(rootOpts))
	cmd.AddCommand(newAccountShowCommand(rootOpts))
	cmd.AddCommand(newAccountListCommand(rootOpts))

	return cmd
}

func newAccountCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AccountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an account",
		Long: `Create an account.

Kinds:
  wallet     system-owned signer holding --lamports
  token      token account of <name> holding --balance coins
  user       wallet plus token account
  borrower   borrower record buffer owned by the program
  guarantor  guarantor record buffer owned by the program
  loan       loan buffer owned by the program
  ledger     lenders ledger buffer owned by the program
  airdrop    airdrop record of user <name>

Examples:
  dassi account create alice --kind user --balance 1000
  dassi account create loan1 --kind loan`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return createAccount(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", kindUser, "account kind")
	cmd.Flags().StringVar(&opts.Balance, "balance", "0", "token balance in coins")
	cmd.Flags().Uint64Var(&opts.Lamports, "lamports", 1_000_000_000, "wallet lamports")

	return cmd
}

func createAccount(opts *AccountOptions, name string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	e, err := openEnv(ctx, opts.RootOptions, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	key := config.ResolveKey(name)
	balance, err := amount.Parse(opts.Balance)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --balance", err)
	}

	var created []pubkey.Pubkey
	switch opts.Kind {
	case kindWallet:
		err = e.d.Wallet(ctx, e.rt, key, opts.Lamports)
		created = append(created, key)
	case kindToken:
		var tok pubkey.Pubkey
		tok, err = e.d.TokenAccount(ctx, e.rt, key, balance)
		created = append(created, tok)
	case kindUser:
		if err = e.d.Wallet(ctx, e.rt, key, opts.Lamports); err == nil {
			var tok pubkey.Pubkey
			tok, err = e.d.TokenAccount(ctx, e.rt, key, balance)
			created = append(created, key, tok)
		}
	case "airdrop":
		var rec pubkey.Pubkey
		rec, err = e.d.AirdropAccount(ctx, e.rt, key)
		created = append(created, rec)
	default:
		size, ok := deploy.AccountKinds[opts.Kind]
		if !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown account kind %q", opts.Kind))
		}
		err = e.d.ProgramAccount(ctx, e.rt, key, size)
		created = append(created, key)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to create %s account", opts.Kind), err)
	}

	list := AccountList{}
	for _, k := range created {
		acct, err := e.store.GetAccount(ctx, k)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read account", err)
		}
		v := viewOf(e.d, acct)
		if k == key {
			v.Name = name
		}
		list.Accounts = append(list.Accounts, v)
	}
	list.Total = len(list.Accounts)
	return newFormatter(opts.RootOptions, cmd).Success(list)
}

func newAccountFundCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AccountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fund <owner>",
		Short: "Add coins to an owner's token account",
		Long: `Add coins to an owner's token account.

This is a faucet: the coins are minted outside the lending program.

Example:
  dassi account fund alice --amount 250`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fundAccount(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Amount, "amount", "", "coins to add (required)")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func fundAccount(opts *AccountOptions, owner string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	v, err := amount.Parse(opts.Amount)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --amount", err)
	}

	e, err := openEnv(ctx, opts.RootOptions, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	key, err := tokenAccountFor(e.d, owner)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to derive token account", err)
	}
	acct, err := e.store.GetAccount(ctx, key)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("no token account for %s", owner), err)
	}
	tok, err := token.Unpack(acct.Data)
	if err != nil {
		return WrapExitError(ExitCommandError, "not a token account", err)
	}
	if tok.Amount, err = amount.Add(tok.Amount, v); err != nil {
		return WrapExitError(ExitCommandError, "balance overflow", err)
	}
	updated := acct.Clone()
	if err := tok.Pack(updated.Data); err != nil {
		return WrapExitError(ExitCommandError, "failed to encode token account", err)
	}
	if err := e.rt.Put(ctx, updated); err != nil {
		return WrapExitError(ExitCommandError, "failed to write token account", err)
	}
	e.logger.Info("token account funded", "owner", owner, "amount", amount.Format(v))

	view := viewOf(e.d, updated)
	view.Name = owner
	return newFormatter(opts.RootOptions, cmd).Success(view)
}

func newAccountShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AccountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show an account and its token account",
		Long: `Show an account and its token account.

<name> is a base58 key, a name, or one of program, token_program, mint,
ledger, vault and airdrop_vault.

Example:
  dassi account show alice --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showAccount(opts, args[0], cmd)
		},
	}
	return cmd
}

func showAccount(opts *AccountOptions, name string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	e, err := openEnv(ctx, opts.RootOptions, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	var show AccountShow
	key := resolveAccount(e.d, name)
	if acct, err := lookup(ctx, e, key); err != nil {
		return err
	} else if acct != nil {
		v := viewOf(e.d, acct)
		v.Name = name
		show.Account = &v
	}

	if tokKey, err := e.d.TokenAddress(key); err == nil && tokKey != key {
		if acct, err := lookup(ctx, e, tokKey); err != nil {
			return err
		} else if acct != nil {
			v := viewOf(e.d, acct)
			show.Token = &v
		}
	}

	if show.Account == nil && show.Token == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("account %s not found", name))
	}
	return newFormatter(opts.RootOptions, cmd).Success(show)
}

func newAccountListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AccountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored accounts",
		Long: `List stored accounts in address order.

Example:
  dassi account list --owner token_program`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listAccounts(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Owner, "owner", "", "only accounts owned by this program or key")

	return cmd
}

func listAccounts(opts *AccountOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	e, err := openEnv(ctx, opts.RootOptions, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	var accounts []*host.Account
	if opts.Owner != "" {
		accounts, err = e.store.ListAccountsByOwner(ctx, resolveAccount(e.d, opts.Owner))
	} else {
		accounts, err = e.store.ListAccounts(ctx)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list accounts", err)
	}

	list := AccountList{Accounts: make([]AccountView, 0, len(accounts)), Total: len(accounts)}
	for _, acct := range accounts {
		list.Accounts = append(list.Accounts, viewOf(e.d, acct))
	}
	sort.Slice(list.Accounts, func(i, j int) bool {
		return list.Accounts[i].Address < list.Accounts[j].Address
	})
	return newFormatter(opts.RootOptions, cmd).Success(list)
}

// resolveAccount maps deployment names to their keys and anything else
// through config.ResolveKey.
func resolveAccount(d *deploy.Deployment, name string) pubkey.Pubkey {
	switch name {
	case "program":
		return d.Program
	case "token_program":
		return d.TokenProgram
	case "mint":
		return d.Mint
	case "ledger":
		return d.Ledger
	case "vault":
		return d.Vault
	case "airdrop_vault":
		return d.AirdropVault
	case "system":
		return deploy.SystemProgram
	}
	return config.ResolveKey(name)
}

// tokenAccountFor is the token account holding name's coins: a vault
// itself, or the derived account of a user.
func tokenAccountFor(d *deploy.Deployment, name string) (pubkey.Pubkey, error) {
	switch name {
	case "vault":
		return d.Vault, nil
	case "airdrop_vault":
		return d.AirdropVault, nil
	}
	return d.TokenAddress(config.ResolveKey(name))
}

// lookup returns nil for a missing account.
func lookup(ctx context.Context, e *env, key pubkey.Pubkey) (*host.Account, error) {
	acct, err := e.store.GetAccount(ctx, key)
	if errors.Is(err, host.ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read account", err)
	}
	return acct, nil
}

func viewOf(d *deploy.Deployment, acct *host.Account) AccountView {
	v := AccountView{
		Address:    acct.Key.String(),
		Owner:      acct.Owner.String(),
		Lamports:   acct.Lamports,
		Size:       len(acct.Data),
		Executable: acct.Executable,
	}
	if acct.Owner == d.TokenProgram {
		if tok, err := token.Unpack(acct.Data); err == nil {
			v.TokenOwner = tok.Owner.String()
			v.TokenBalance = amount.Format(tok.Amount)
		}
	}
	return v
}
