// Package authority models vault custody. A vault is a token account whose
// owner is an address derived from a fixed label and the lending program id.
// Only this package holds the derivation seeds, so only engine code paths
// that go through Release can debit a vault.
package authority

import (
	"fmt"

	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/pubkey"
	"github.com/roach88/dassi/internal/token"
)

// Vault labels.
const (
	LendingLabel = "DassiFinance"
	AirdropLabel = "DassiFinanceAirdrop"
)

// Authority is a derived vault owner.
type Authority struct {
	Address pubkey.Pubkey

	label   string
	bump    uint8
	program pubkey.Pubkey
}

// Derive computes the authority for label under programID.
func Derive(label string, programID pubkey.Pubkey) (Authority, error) {
	addr, bump, err := pubkey.FindProgramAddress([][]byte{[]byte(label)}, programID)
	if err != nil {
		return Authority{}, fmt.Errorf("derive authority %q: %w", label, err)
	}
	return Authority{Address: addr, label: label, bump: bump, program: programID}, nil
}

// Label returns the derivation label.
func (a Authority) Label() string { return a.label }

// Bump returns the bump seed found during derivation.
func (a Authority) Bump() uint8 { return a.bump }

func (a Authority) seeds() [][]byte {
	return [][]byte{[]byte(a.label), {a.bump}}
}

// CheckVault requires vault to be a token account owned by the authority.
func (a Authority) CheckVault(vault *host.Account) error {
	owner, err := token.OwnerOf(vault)
	if err != nil {
		return errcode.New(errcode.DassiVaultAccountDoesNotMatched, "vault %s: %v", vault.Key, err)
	}
	if owner != a.Address {
		return errcode.New(errcode.DassiVaultAccountDoesNotMatched, "vault %s owned by %s, want %s", vault.Key, owner, a.Address)
	}
	return nil
}

// CheckAccount requires acct to be the authority address itself.
func (a Authority) CheckAccount(acct *host.Account) error {
	if acct.Key != a.Address {
		return errcode.New(errcode.PdaAccountDoesNotMatched, "authority account %s, want %s", acct.Key, a.Address)
	}
	return nil
}

// Deposit moves v from src into vault on behalf of signer and verifies the
// vault grew by exactly v.
func (a Authority) Deposit(svc token.Service, src, vault, signer *host.Account, v uint64) error {
	before, err := token.BalanceOf(vault)
	if err != nil {
		return err
	}
	if err := svc.Transfer(src, vault, signer, v); err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	after, err := token.BalanceOf(vault)
	if err != nil {
		return err
	}
	if after < before || after-before != v {
		return errcode.New(errcode.ExpectedAmountMismatch, "vault moved %d -> %d, expected +%d", before, after, v)
	}
	return nil
}

// Release moves v from vault to dst under the derived authority and
// verifies the vault shrank by exactly v.
func (a Authority) Release(svc token.Service, vault, dst *host.Account, v uint64) error {
	before, err := token.BalanceOf(vault)
	if err != nil {
		return err
	}
	if err := svc.TransferSigned(a.program, a.seeds(), vault, dst, v); err != nil {
		return fmt.Errorf("release: %w", err)
	}
	after, err := token.BalanceOf(vault)
	if err != nil {
		return err
	}
	if after > before || before-after != v {
		return errcode.New(errcode.ExpectedAmountMismatch, "vault moved %d -> %d, expected -%d", before, after, v)
	}
	return nil
}

// TakeOwnership hands vault from its current owner to the authority.
func (a Authority) TakeOwnership(svc token.Service, vault, current *host.Account) error {
	if err := svc.SetOwner(vault, current, a.Address); err != nil {
		return fmt.Errorf("take ownership of %s: %w", vault.Key, err)
	}
	return nil
}
