// Package host simulates the ledger runtime that invokes the lending program:
// account buffers with signer and writable flags, a rent rule, a clock, and
// per-call execution with all-or-nothing persistence.
package host

import (
	"bytes"

	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/pubkey"
)

// Account is one buffer handed to a program for the duration of a call.
type Account struct {
	Key        pubkey.Pubkey
	Owner      pubkey.Pubkey
	Lamports   uint64
	Data       []byte
	Executable bool

	IsSigner   bool
	IsWritable bool
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	c := *a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}

// sameState compares the persisted fields of two accounts.
func sameState(a, b *Account) bool {
	return a.Owner == b.Owner &&
		a.Lamports == b.Lamports &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}

// AccountMeta names an account passed to a call and its privileges.
type AccountMeta struct {
	Key        pubkey.Pubkey `json:"key"`
	IsSigner   bool          `json:"is_signer"`
	IsWritable bool          `json:"is_writable"`
}

// Signer returns a writable signer meta.
func Signer(k pubkey.Pubkey) AccountMeta {
	return AccountMeta{Key: k, IsSigner: true, IsWritable: true}
}

// Writable returns a writable, non-signer meta.
func Writable(k pubkey.Pubkey) AccountMeta {
	return AccountMeta{Key: k, IsWritable: true}
}

// Readonly returns a read-only, non-signer meta.
func Readonly(k pubkey.Pubkey) AccountMeta {
	return AccountMeta{Key: k}
}

// Accounts is the ordered account list of one invocation.
type Accounts []*Account

// Get returns account i or NotEnoughAccountKeys.
func (as Accounts) Get(i int) (*Account, error) {
	if i < 0 || i >= len(as) {
		return nil, errcode.New(errcode.NotEnoughAccountKeys, "account %d of %d", i, len(as))
	}
	return as[i], nil
}

// Signer returns account i, which must have signed the call.
func (as Accounts) Signer(i int) (*Account, error) {
	a, err := as.Get(i)
	if err != nil {
		return nil, err
	}
	if !a.IsSigner {
		return nil, errcode.New(errcode.MissingRequiredSignature, "account %s did not sign", a.Key)
	}
	return a, nil
}
