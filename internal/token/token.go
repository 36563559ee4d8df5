// Package token is the external value-transfer service: token accounts in the
// host's standard 165-byte layout and the transfer and authority operations
// the lending program relies on.
package token

import (
	"encoding/binary"
	"fmt"

	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/pubkey"
)

// AccountSize is the byte length of a token account.
const AccountSize = 165

// Account states.
const (
	StateUninitialized uint8 = 0
	StateInitialized   uint8 = 1
	StateFrozen        uint8 = 2
)

// Account is the decoded part of a token account the service works with.
//
//	mint 0:32  owner 32:32  amount 64:8  ...  state 108:1
type Account struct {
	Mint   pubkey.Pubkey
	Owner  pubkey.Pubkey
	Amount uint64
	State  uint8
}

// Unpack decodes a token account buffer.
func Unpack(data []byte) (Account, error) {
	var a Account
	if len(data) != AccountSize {
		return a, errcode.New(errcode.InvalidAccountData, "token account is %d bytes, want %d", len(data), AccountSize)
	}
	copy(a.Mint[:], data[0:32])
	copy(a.Owner[:], data[32:64])
	a.Amount = binary.LittleEndian.Uint64(data[64:72])
	a.State = data[108]
	if a.State == StateUninitialized {
		return a, errcode.New(errcode.UninitializedAccount, "token account not initialized")
	}
	return a, nil
}

// Pack writes a into data, leaving the fields it does not model untouched.
func (a Account) Pack(data []byte) error {
	if len(data) != AccountSize {
		return errcode.New(errcode.InvalidAccountData, "token account is %d bytes, want %d", len(data), AccountSize)
	}
	copy(data[0:32], a.Mint[:])
	copy(data[32:64], a.Owner[:])
	binary.LittleEndian.PutUint64(data[64:72], a.Amount)
	data[108] = a.State
	return nil
}

// NewAccountData returns an initialized token account buffer.
func NewAccountData(mint, owner pubkey.Pubkey, amount uint64) []byte {
	data := make([]byte, AccountSize)
	_ = Account{Mint: mint, Owner: owner, Amount: amount, State: StateInitialized}.Pack(data)
	return data
}

// BalanceOf reads the token amount held by acct.
func BalanceOf(acct *host.Account) (uint64, error) {
	a, err := Unpack(acct.Data)
	if err != nil {
		return 0, fmt.Errorf("balance of %s: %w", acct.Key, err)
	}
	return a.Amount, nil
}

// OwnerOf reads the token-level owner of acct.
func OwnerOf(acct *host.Account) (pubkey.Pubkey, error) {
	a, err := Unpack(acct.Data)
	if err != nil {
		return pubkey.Zero, fmt.Errorf("owner of %s: %w", acct.Key, err)
	}
	return a.Owner, nil
}

// Service is the transfer surface used by the lending program.
type Service interface {
	// ID is the service's program id.
	ID() pubkey.Pubkey
	// Transfer moves v from src to dst; authority must own src and have signed.
	Transfer(src, dst, authority *host.Account, v uint64) error
	// TransferSigned moves v from src to dst under a derived authority: the
	// address derived from seeds and caller must own src.
	TransferSigned(caller pubkey.Pubkey, seeds [][]byte, src, dst *host.Account, v uint64) error
	// SetOwner reassigns the token owner of acct; current must own it and have signed.
	SetOwner(acct, current *host.Account, owner pubkey.Pubkey) error
}

// Program is the in-process token service.
type Program struct {
	id pubkey.Pubkey
}

// NewProgram returns a token service with the given program id.
func NewProgram(id pubkey.Pubkey) *Program {
	return &Program{id: id}
}

func (p *Program) ID() pubkey.Pubkey { return p.id }

// load checks host ownership and decodes the token account.
func (p *Program) load(acct *host.Account) (Account, error) {
	if acct.Owner != p.id {
		return Account{}, errcode.New(errcode.IllegalOwner, "account %s not owned by token program", acct.Key)
	}
	a, err := Unpack(acct.Data)
	if err != nil {
		return a, fmt.Errorf("account %s: %w", acct.Key, err)
	}
	if a.State == StateFrozen {
		return a, errcode.New(errcode.InvalidAccountData, "account %s is frozen", acct.Key)
	}
	return a, nil
}

func (p *Program) Transfer(src, dst, authority *host.Account, v uint64) error {
	if !authority.IsSigner {
		return errcode.New(errcode.MissingRequiredSignature, "transfer authority %s did not sign", authority.Key)
	}
	return p.move(src, dst, authority.Key, v)
}

func (p *Program) TransferSigned(caller pubkey.Pubkey, seeds [][]byte, src, dst *host.Account, v uint64) error {
	signer, err := pubkey.CreateProgramAddress(seeds, caller)
	if err != nil {
		return errcode.New(errcode.MissingRequiredSignature, "derive signer: %v", err)
	}
	return p.move(src, dst, signer, v)
}

func (p *Program) move(src, dst *host.Account, authority pubkey.Pubkey, v uint64) error {
	from, err := p.load(src)
	if err != nil {
		return err
	}
	to, err := p.load(dst)
	if err != nil {
		return err
	}
	if from.Owner != authority {
		return errcode.New(errcode.IllegalOwner, "%s does not own %s", authority, src.Key)
	}
	if from.Mint != to.Mint {
		return errcode.New(errcode.InvalidArgument, "mint mismatch %s != %s", from.Mint, to.Mint)
	}
	if from.Amount < v {
		return errcode.New(errcode.InsufficientFunds, "%s holds %d, need %d", src.Key, from.Amount, v)
	}
	if src.Key == dst.Key || v == 0 {
		return nil
	}
	if to.Amount+v < to.Amount {
		return errcode.New(errcode.AmountOverflow, "credit %d to %s overflows", v, dst.Key)
	}
	from.Amount -= v
	to.Amount += v
	if err := from.Pack(src.Data); err != nil {
		return err
	}
	return to.Pack(dst.Data)
}

func (p *Program) SetOwner(acct, current *host.Account, owner pubkey.Pubkey) error {
	if !current.IsSigner {
		return errcode.New(errcode.MissingRequiredSignature, "owner %s did not sign", current.Key)
	}
	a, err := p.load(acct)
	if err != nil {
		return err
	}
	if a.Owner != current.Key {
		return errcode.New(errcode.IllegalOwner, "%s does not own %s", current.Key, acct.Key)
	}
	a.Owner = owner
	return a.Pack(acct.Data)
}
