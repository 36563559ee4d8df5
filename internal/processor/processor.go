// Package processor is the lending program: it decodes a call, validates the
// accounts it was handed, moves value through the vault authorities and
// commits ledger and loan changes.
//
// Every operation follows the same order. Checks that do not depend on the
// transfer run first, ledger and loan changes are staged, the transfer runs
// with its balance-delta check, and only then are staged changes packed into
// the account buffers. A failure at any step leaves every buffer untouched.
package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/dassi/internal/authority"
	"github.com/roach88/dassi/internal/codec"
	"github.com/roach88/dassi/internal/config"
	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/instruction"
	"github.com/roach88/dassi/internal/pubkey"
	"github.com/roach88/dassi/internal/token"
)

// SecondsPerDay converts day counts in loan terms to timestamps.
const SecondsPerDay = 86_400

// Params are the program's business constants.
type Params struct {
	MinLending           uint64
	AirdropAmount        uint64
	AirdropCap           uint64
	InitialCreditScore   uint64
	InitialApprovalScore uint64
	GraceDays            uint16
}

// ParamsFromConfig extracts Params from a deployment config.
func ParamsFromConfig(c config.Config) Params {
	return Params{
		MinLending:           c.MinLending,
		AirdropAmount:        c.AirdropAmount,
		AirdropCap:           c.AirdropCap,
		InitialCreditScore:   c.InitialCreditScore,
		InitialApprovalScore: c.InitialApprovalScore,
		GraceDays:            c.GraceDays,
	}
}

// Processor executes lending program calls.
type Processor struct {
	programID pubkey.Pubkey
	tokens    token.Service
	params    Params
	lending   authority.Authority
	airdrop   authority.Authority
	logger    *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger. Defaults to a discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// New creates a processor for programID using tokens as the transfer service.
func New(programID pubkey.Pubkey, tokens token.Service, params Params, opts ...Option) (*Processor, error) {
	lending, err := authority.Derive(authority.LendingLabel, programID)
	if err != nil {
		return nil, err
	}
	airdrop, err := authority.Derive(authority.AirdropLabel, programID)
	if err != nil {
		return nil, err
	}
	p := &Processor{
		programID: programID,
		tokens:    tokens,
		params:    params,
		lending:   lending,
		airdrop:   airdrop,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// ProgramID returns the identity the processor runs under.
func (p *Processor) ProgramID() pubkey.Pubkey { return p.programID }

// Process implements host.Program.
func (p *Processor) Process(ctx context.Context, inv *host.Invocation) error {
	if inv.ProgramID != p.programID {
		return errcode.New(errcode.InvalidArgument, "invoked as %s, running as %s", inv.ProgramID, p.programID)
	}
	ins, err := instruction.Decode(inv.Data)
	if err != nil {
		return err
	}
	p.logger.Debug("processing instruction",
		"op", ins.Op.String(),
		"accounts", len(inv.Accounts),
		"now", inv.Now,
	)

	c := &call{Invocation: inv, p: p}
	switch ins.Op {
	case instruction.OpLendToBorrower:
		err = c.lend(ins.Amount, ins.LenderID)
	case instruction.OpWithdrawLenderFreeWalletFunds:
		err = c.withdrawLender(ins.LenderID)
	case instruction.OpWithdrawCollectedLoanFunds:
		err = c.withdrawCollected()
	case instruction.OpTransferVaultOwnership:
		err = c.transferVault(p.lending)
	case instruction.OpInitializeLendersLedger:
		err = c.initLedger()
	case instruction.OpInitializeBorrowerAccount:
		err = c.initBorrower()
	case instruction.OpInitializeGuarantorAccount:
		err = c.initGuarantor()
	case instruction.OpPayEMIforLoan:
		err = c.payEMI(ins.Amount)
	case instruction.OpInitializeLoan:
		err = c.initLoan(ins)
	case instruction.OpAirdropTestCoins:
		err = c.airdropTestCoins()
	case instruction.OpTransferAirdropVaultOwnership:
		err = c.transferVault(p.airdrop)
	case instruction.OpReturnFundsToLenders, instruction.OpCloseLoanInfoAccount:
		err = errcode.New(errcode.InstructionNotSupported, "%s has no defined behavior", ins.Op)
	default:
		err = errcode.New(errcode.InvalidInstruction, "unhandled opcode %d", uint8(ins.Op))
	}
	if err != nil {
		return fmt.Errorf("%s: %w", ins.Op, err)
	}
	return nil
}

// call bundles one invocation with its processor.
type call struct {
	*host.Invocation
	p *Processor
}

// owned requires a to belong to the program.
func (c *call) owned(a *host.Account) error {
	if a.Owner != c.p.programID {
		return errcode.New(errcode.WrongAccountPassed, "account %s owned by %s", a.Key, a.Owner)
	}
	return nil
}

// rentExempt requires a to hold the minimum balance for its size.
func (c *call) rentExempt(a *host.Account) error {
	if !c.Rent.IsExempt(a.Lamports, len(a.Data)) {
		return errcode.New(errcode.NotRentExempt, "account %s holds %d lamports, needs %d",
			a.Key, a.Lamports, c.Rent.MinimumBalance(len(a.Data)))
	}
	return nil
}

// tokenProgram requires a to be the configured transfer service.
func (c *call) tokenProgram(a *host.Account) error {
	if a.Key != c.p.tokens.ID() {
		return errcode.New(errcode.InvalidTokenProgram, "token program %s, want %s", a.Key, c.p.tokens.ID())
	}
	return nil
}

// tokenOwnedBy requires the token account a to belong to owner.
func tokenOwnedBy(a *host.Account, owner pubkey.Pubkey) error {
	got, err := token.OwnerOf(a)
	if err != nil {
		return errcode.New(errcode.AccountMismatched, "%v", err)
	}
	if got != owner {
		return errcode.New(errcode.AccountMismatched, "token account %s belongs to %s, not %s", a.Key, got, owner)
	}
	return nil
}

// recordError maps codec failures onto account-shape codes.
func recordError(a *host.Account, err error) error {
	switch {
	case errors.Is(err, codec.ErrWrongLength):
		return errcode.New(errcode.DataSizeNotMatched, "account %s: %v", a.Key, err)
	case errors.Is(err, codec.ErrWrongTag):
		return errcode.New(errcode.ExpectedAccountTypeMismatched, "account %s: %v", a.Key, err)
	}
	return errcode.New(errcode.InvalidAccountData, "account %s: %v", a.Key, err)
}

// addDays returns now + days*SecondsPerDay with overflow checking.
func addDays(now int64, days uint64) (int64, error) {
	secs := days * SecondsPerDay
	if secs/SecondsPerDay != days || secs > uint64(1<<63-1) {
		return 0, errcode.New(errcode.AmountOverflow, "%d days overflows", days)
	}
	out := now + int64(secs)
	if out < now {
		return 0, errcode.New(errcode.AmountOverflow, "%d + %d days overflows", now, days)
	}
	return out, nil
}
