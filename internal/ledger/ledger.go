// Package ledger implements the lender ledger: one large buffer holding a
// fixed array of lender slots addressed by numeric id.
//
// A Ledger is a view over the buffer. Reads see staged writes; nothing touches
// the buffer until Commit, so a failed call can simply drop the view.
package ledger

import (
	"errors"
	"fmt"

	"github.com/roach88/dassi/internal/amount"
	"github.com/roach88/dassi/internal/codec"
	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/pubkey"
)

// Capacity is the number of lender slots.
const Capacity = codec.MaxLenders

// Ledger is a staged view over a lender ledger buffer.
type Ledger struct {
	buf     []byte
	pending map[uint32]codec.LenderSlot
}

// Initialize stamps a zeroed buffer with the ledger tag and shard number.
func Initialize(buf []byte) error {
	if len(buf) != codec.LedgerSize {
		return errcode.New(errcode.DataSizeNotMatched, "ledger buffer is %d bytes, want %d", len(buf), codec.LedgerSize)
	}
	if buf[0] != 0 || buf[1] != 0 {
		return errcode.New(errcode.LendersStorageDataAlreadyInitialized, "ledger header is %d/%d", buf[0], buf[1])
	}
	h := codec.LedgerHeader{Tag: codec.TagLendersLedger, Shard: codec.LedgerShard}
	return h.Pack(buf[:codec.LedgerHeaderSize])
}

// Open validates the buffer size and header and returns a view.
func Open(buf []byte) (*Ledger, error) {
	if len(buf) != codec.LedgerSize {
		return nil, errcode.New(errcode.DataSizeNotMatched, "ledger buffer is %d bytes, want %d", len(buf), codec.LedgerSize)
	}
	h, err := codec.UnpackLedgerHeader(buf[:codec.LedgerHeaderSize])
	if err != nil || h.Tag != codec.TagLendersLedger {
		return nil, errcode.New(errcode.ExpectedAccountTypeMismatched, "ledger tag %d", buf[0])
	}
	if h.Shard != codec.LedgerShard {
		return nil, errcode.New(errcode.ExpectedLendersAccNumNotMatched, "ledger shard %d", h.Shard)
	}
	return &Ledger{buf: buf, pending: make(map[uint32]codec.LenderSlot)}, nil
}

func checkID(id uint32) error {
	if id >= Capacity {
		return errcode.New(errcode.InvalidLenderIdInput, "lender id %d out of range", id)
	}
	return nil
}

// Read returns slot id, including any staged write.
func (l *Ledger) Read(id uint32) (codec.LenderSlot, error) {
	if err := checkID(id); err != nil {
		return codec.LenderSlot{}, err
	}
	if s, ok := l.pending[id]; ok {
		return s, nil
	}
	s, err := codec.UnpackLenderSlot(codec.LenderSlotSpan(l.buf, id))
	if err != nil {
		return s, errcode.New(errcode.InvalidAccountData, "lender slot %d: %v", id, err)
	}
	return s, nil
}

// Write stages slot id.
func (l *Ledger) Write(id uint32, s codec.LenderSlot) error {
	if err := checkID(id); err != nil {
		return err
	}
	l.pending[id] = s
	return nil
}

// Activate binds an inactive slot to caller. An active slot must already be
// bound to caller.
func Activate(s codec.LenderSlot, caller pubkey.Pubkey) (codec.LenderSlot, error) {
	if !s.Active {
		s.Active = true
		s.Lender = caller
		return s, nil
	}
	if s.Lender != caller {
		return s, errcode.New(errcode.InvalidLenderIdInput, "slot bound to %s, caller %s", s.Lender, caller)
	}
	return s, nil
}

// accrue adds v to both lending accumulators.
func accrue(s codec.LenderSlot, v uint64) (codec.LenderSlot, error) {
	lifetime, err := amount.Add128(s.LifetimeLent, v)
	if err != nil {
		return s, err
	}
	net, err := amount.Add(s.NetPrincipal, v)
	if err != nil {
		return s, err
	}
	s.LifetimeLent = lifetime
	s.NetPrincipal = net
	return s, nil
}

// RecordLending activates slot id for lender if needed and adds v to its
// lending accumulators.
func (l *Ledger) RecordLending(id uint32, lender pubkey.Pubkey, v uint64) error {
	s, err := l.Read(id)
	if err != nil {
		return err
	}
	if s, err = Activate(s, lender); err != nil {
		return err
	}
	if s, err = accrue(s, v); err != nil {
		return err
	}
	return l.Write(id, s)
}

// CreditShare adds an EMI share to the withdrawable balance and both lending
// accumulators of slot id, which must be bound to lender.
func (l *Ledger) CreditShare(id uint32, lender pubkey.Pubkey, share uint64) error {
	s, err := l.Read(id)
	if err != nil {
		return err
	}
	if !s.Active || s.Lender != lender {
		return errcode.New(errcode.InvalidLenderIdInput, "slot %d not bound to contributor %s", id, lender)
	}
	w, err := amount.Add(s.Withdrawable, share)
	if err != nil {
		return err
	}
	if s, err = accrue(s, share); err != nil {
		return err
	}
	s.Withdrawable = w
	return l.Write(id, s)
}

// Withdraw zeroes the withdrawable balance of slot id and returns it. The slot
// must be active and bound to caller.
func (l *Ledger) Withdraw(id uint32, caller pubkey.Pubkey) (uint64, error) {
	s, err := l.Read(id)
	if err != nil {
		return 0, err
	}
	if !s.Active || s.Lender != caller {
		return 0, errcode.New(errcode.InvalidLenderIdInput, "slot %d not bound to %s", id, caller)
	}
	out := s.Withdrawable
	net, err := amount.Sub(s.NetPrincipal, out)
	if err != nil {
		return 0, err
	}
	s.NetPrincipal = net
	s.Withdrawable = 0
	if err := l.Write(id, s); err != nil {
		return 0, err
	}
	return out, nil
}

// Staged returns the number of slots awaiting commit.
func (l *Ledger) Staged() int {
	return len(l.pending)
}

// Commit packs staged slots into the buffer.
func (l *Ledger) Commit() error {
	var errs []error
	for id, s := range l.pending {
		if err := s.Pack(codec.LenderSlotSpan(l.buf, id)); err != nil {
			errs = append(errs, fmt.Errorf("slot %d: %w", id, err))
		}
	}
	clear(l.pending)
	return errors.Join(errs...)
}
