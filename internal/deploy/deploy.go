// Package deploy wires one lending program deployment onto a host runtime:
// it registers the lending and token programs and writes the accounts a
// deployment needs before its first call.
package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/dassi/internal/codec"
	"github.com/roach88/dassi/internal/config"
	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/instruction"
	"github.com/roach88/dassi/internal/processor"
	"github.com/roach88/dassi/internal/pubkey"
	"github.com/roach88/dassi/internal/token"
)

// SystemProgram owns plain wallets.
var SystemProgram = pubkey.Zero

// tokenAccountSeed derives a user's token account from their wallet.
const tokenAccountSeed = "dassi-token"

// Deployment is a configured program deployment.
type Deployment struct {
	instruction.Deployment

	Config    config.Config
	Tokens    *token.Program
	Processor *processor.Processor
}

// New builds the deployment described by cfg.
func New(cfg config.Config, logger *slog.Logger) (*Deployment, error) {
	keys := cfg.Keys()
	calls, err := instruction.NewDeployment(keys.Program, keys.TokenProgram, keys.Mint, keys.Ledger, keys.Vault, keys.AirdropVault)
	if err != nil {
		return nil, fmt.Errorf("derive authorities: %w", err)
	}
	tokens := token.NewProgram(keys.TokenProgram)
	var opts []processor.Option
	if logger != nil {
		opts = append(opts, processor.WithLogger(logger))
	}
	proc, err := processor.New(keys.Program, tokens, processor.ParamsFromConfig(cfg), opts...)
	if err != nil {
		return nil, err
	}
	return &Deployment{
		Deployment: calls,
		Config:     cfg,
		Tokens:     tokens,
		Processor:  proc,
	}, nil
}

// Register installs the lending program on rt.
func (d *Deployment) Register(rt *host.Runtime) {
	rt.Register(d.Program, d.Processor)
}

// Genesis writes the program and token-program accounts, the uninitialized
// lenders ledger, and both vaults. The vaults start owned by admin, who
// hands them to the derived authorities with TransferVaultOwnership; the
// airdrop vault holds airdropSupply.
func (d *Deployment) Genesis(ctx context.Context, rt *host.Runtime, admin pubkey.Pubkey, airdropSupply uint64) error {
	for _, prog := range []pubkey.Pubkey{d.Program, d.TokenProgram} {
		if err := rt.Put(ctx, &host.Account{Key: prog, Owner: SystemProgram, Executable: true, Data: []byte{}}); err != nil {
			return err
		}
	}
	if err := d.ProgramAccount(ctx, rt, d.Ledger, codec.LedgerSize); err != nil {
		return err
	}
	if err := d.putToken(ctx, rt, d.Vault, admin, 0); err != nil {
		return err
	}
	return d.putToken(ctx, rt, d.AirdropVault, admin, airdropSupply)
}

// Wallet writes a system-owned signer account holding lamports.
func (d *Deployment) Wallet(ctx context.Context, rt *host.Runtime, key pubkey.Pubkey, lamports uint64) error {
	return rt.Put(ctx, &host.Account{Key: key, Owner: SystemProgram, Lamports: lamports, Data: []byte{}})
}

// TokenAddress is the token account of owner for this deployment's mint.
func (d *Deployment) TokenAddress(owner pubkey.Pubkey) (pubkey.Pubkey, error) {
	return pubkey.CreateWithSeed(owner, tokenAccountSeed, d.TokenProgram)
}

// TokenAccount writes owner's token account holding balance and returns its
// address.
func (d *Deployment) TokenAccount(ctx context.Context, rt *host.Runtime, owner pubkey.Pubkey, balance uint64) (pubkey.Pubkey, error) {
	key, err := d.TokenAddress(owner)
	if err != nil {
		return pubkey.Zero, err
	}
	return key, d.putToken(ctx, rt, key, owner, balance)
}

func (d *Deployment) putToken(ctx context.Context, rt *host.Runtime, key, owner pubkey.Pubkey, balance uint64) error {
	return rt.Put(ctx, &host.Account{
		Key:      key,
		Owner:    d.TokenProgram,
		Lamports: rt.Rent().MinimumBalance(token.AccountSize),
		Data:     token.NewAccountData(d.Mint, owner, balance),
	})
}

// ProgramAccount writes a zeroed, rent-exempt buffer of size bytes owned by
// the lending program.
func (d *Deployment) ProgramAccount(ctx context.Context, rt *host.Runtime, key pubkey.Pubkey, size int) error {
	return rt.Put(ctx, &host.Account{
		Key:      key,
		Owner:    d.Program,
		Lamports: rt.Rent().MinimumBalance(size),
		Data:     make([]byte, size),
	})
}

// AirdropAccount writes the airdrop record buffer for user and returns its
// address.
func (d *Deployment) AirdropAccount(ctx context.Context, rt *host.Runtime, user pubkey.Pubkey) (pubkey.Pubkey, error) {
	key, err := d.AirdropRecord(user)
	if err != nil {
		return pubkey.Zero, err
	}
	return key, d.ProgramAccount(ctx, rt, key, codec.AirdropRecordSize)
}

// AccountKinds are the program-owned buffer kinds callers can create by name.
var AccountKinds = map[string]int{
	"borrower":  codec.BorrowerSize,
	"guarantor": codec.GuarantorSize,
	"loan":      codec.LoanSize,
	"ledger":    codec.LedgerSize,
	"airdrop":   codec.AirdropRecordSize,
}
