// Package codec packs and unpacks the fixed-size binary records stored in
// host account buffers.
//
// All integers are little-endian, identities are 32 raw bytes and flag bytes
// are 0 or 1. Records never alias the buffer: Unpack copies fields out and
// Pack writes them back at the offsets listed next to each type.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"lukechampine.com/uint128"

	"github.com/roach88/dassi/internal/pubkey"
)

// Account type tags.
const (
	TagBorrower      uint8 = 2
	TagLendersLedger uint8 = 3
	TagGuarantor     uint8 = 4
	TagLoan          uint8 = 5
)

// Record sizes.
const (
	BorrowerSize      = 75
	GuarantorSize     = 42
	LoanHeaderSize    = 116
	ContributionSize  = 45
	RepaymentSize     = 16
	LenderSlotSize    = 65
	LedgerHeaderSize  = 2
	AirdropRecordSize = 8
)

// Capacities and derived buffer sizes.
const (
	MaxContributions = 200
	MaxRepayments    = 50
	MaxLenders       = 50_000
	LedgerShard      = 1

	ContributionsOffset = LoanHeaderSize
	RepaymentsOffset    = ContributionsOffset + MaxContributions*ContributionSize
	LoanSize            = RepaymentsOffset + MaxRepayments*RepaymentSize
	LedgerSize          = LedgerHeaderSize + MaxLenders*LenderSlotSize
)

var (
	ErrWrongLength = errors.New("codec: wrong length")
	ErrWrongTag    = errors.New("codec: wrong type tag")
	ErrInvalidFlag = errors.New("codec: invalid flag byte")
)

var le = binary.LittleEndian

func checkLen(b []byte, want int, what string) error {
	if len(b) != want {
		return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrWrongLength, what, want, len(b))
	}
	return nil
}

func checkTag(got, want uint8, what string) error {
	if got != 0 && got != want {
		return fmt.Errorf("%w: %s tag %d, want %d", ErrWrongTag, what, got, want)
	}
	return nil
}

func getFlag(b byte) (bool, error) {
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: %d", ErrInvalidFlag, b)
}

func putFlag(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func getKey(b []byte) pubkey.Pubkey {
	var k pubkey.Pubkey
	copy(k[:], b[:pubkey.Size])
	return k
}

// Borrower is the borrower profile record.
//
//	initialized 0:1  tag 1:1  active_loan 2:1  borrower 3:32
//	credit_score 35:8  loan 43:32
type Borrower struct {
	Initialized bool
	Tag         uint8
	ActiveLoan  bool
	Borrower    pubkey.Pubkey
	CreditScore uint64
	Loan        pubkey.Pubkey
}

func UnpackBorrower(src []byte) (Borrower, error) {
	var r Borrower
	if err := checkLen(src, BorrowerSize, "borrower"); err != nil {
		return r, err
	}
	var err error
	if r.Initialized, err = getFlag(src[0]); err != nil {
		return r, err
	}
	r.Tag = src[1]
	if err := checkTag(r.Tag, TagBorrower, "borrower"); err != nil {
		return r, err
	}
	if r.ActiveLoan, err = getFlag(src[2]); err != nil {
		return r, err
	}
	r.Borrower = getKey(src[3:35])
	r.CreditScore = le.Uint64(src[35:43])
	r.Loan = getKey(src[43:75])
	return r, nil
}

func (r Borrower) Pack(dst []byte) error {
	if err := checkLen(dst, BorrowerSize, "borrower"); err != nil {
		return err
	}
	dst[0] = putFlag(r.Initialized)
	dst[1] = r.Tag
	dst[2] = putFlag(r.ActiveLoan)
	copy(dst[3:35], r.Borrower[:])
	le.PutUint64(dst[35:43], r.CreditScore)
	copy(dst[43:75], r.Loan[:])
	return nil
}

// Guarantor is the guarantor profile record.
//
//	initialized 0:1  tag 1:1  guarantor 2:32  approval_score 34:8
type Guarantor struct {
	Initialized   bool
	Tag           uint8
	Guarantor     pubkey.Pubkey
	ApprovalScore uint64
}

func UnpackGuarantor(src []byte) (Guarantor, error) {
	var r Guarantor
	if err := checkLen(src, GuarantorSize, "guarantor"); err != nil {
		return r, err
	}
	var err error
	if r.Initialized, err = getFlag(src[0]); err != nil {
		return r, err
	}
	r.Tag = src[1]
	if err := checkTag(r.Tag, TagGuarantor, "guarantor"); err != nil {
		return r, err
	}
	r.Guarantor = getKey(src[2:34])
	r.ApprovalScore = le.Uint64(src[34:42])
	return r, nil
}

func (r Guarantor) Pack(dst []byte) error {
	if err := checkLen(dst, GuarantorSize, "guarantor"); err != nil {
		return err
	}
	dst[0] = putFlag(r.Initialized)
	dst[1] = r.Tag
	copy(dst[2:34], r.Guarantor[:])
	le.PutUint64(dst[34:42], r.ApprovalScore)
	return nil
}

// LoanHeader is the fixed prefix of a loan buffer.
//
//	tag 0:1  borrower 1:32  guarantor 33:32  approved_at 65:8
//	fundraising_deadline 73:8  first_repayment_deadline 81:8
//	requested_total 89:8  amount_lent 97:8  repaid 105:8
//	next_contribution 113:1  next_repayment 114:1  num_emis 115:1
type LoanHeader struct {
	Tag                    uint8
	Borrower               pubkey.Pubkey
	Guarantor              pubkey.Pubkey
	ApprovedAt             int64
	FundraisingDeadline    int64
	FirstRepaymentDeadline int64
	RequestedTotal         uint64
	AmountLent             uint64
	Repaid                 uint64
	NextContribution       uint8
	NextRepayment          uint8
	NumEMIs                uint8
}

func UnpackLoanHeader(src []byte) (LoanHeader, error) {
	var h LoanHeader
	if err := checkLen(src, LoanHeaderSize, "loan header"); err != nil {
		return h, err
	}
	h.Tag = src[0]
	if err := checkTag(h.Tag, TagLoan, "loan"); err != nil {
		return h, err
	}
	h.Borrower = getKey(src[1:33])
	h.Guarantor = getKey(src[33:65])
	h.ApprovedAt = int64(le.Uint64(src[65:73]))
	h.FundraisingDeadline = int64(le.Uint64(src[73:81]))
	h.FirstRepaymentDeadline = int64(le.Uint64(src[81:89]))
	h.RequestedTotal = le.Uint64(src[89:97])
	h.AmountLent = le.Uint64(src[97:105])
	h.Repaid = le.Uint64(src[105:113])
	h.NextContribution = src[113]
	h.NextRepayment = src[114]
	h.NumEMIs = src[115]
	return h, nil
}

func (h LoanHeader) Pack(dst []byte) error {
	if err := checkLen(dst, LoanHeaderSize, "loan header"); err != nil {
		return err
	}
	dst[0] = h.Tag
	copy(dst[1:33], h.Borrower[:])
	copy(dst[33:65], h.Guarantor[:])
	le.PutUint64(dst[65:73], uint64(h.ApprovedAt))
	le.PutUint64(dst[73:81], uint64(h.FundraisingDeadline))
	le.PutUint64(dst[81:89], uint64(h.FirstRepaymentDeadline))
	le.PutUint64(dst[89:97], h.RequestedTotal)
	le.PutUint64(dst[97:105], h.AmountLent)
	le.PutUint64(dst[105:113], h.Repaid)
	dst[113] = h.NextContribution
	dst[114] = h.NextRepayment
	dst[115] = h.NumEMIs
	return nil
}

// Contribution is one entry of the loan's contribution log.
//
//	lender 0:32  shard 32:1  lender_id 33:4  amount 37:8
type Contribution struct {
	Lender   pubkey.Pubkey
	Shard    uint8
	LenderID uint32
	Amount   uint64
}

func UnpackContribution(src []byte) (Contribution, error) {
	var c Contribution
	if err := checkLen(src, ContributionSize, "contribution"); err != nil {
		return c, err
	}
	c.Lender = getKey(src[0:32])
	c.Shard = src[32]
	c.LenderID = le.Uint32(src[33:37])
	c.Amount = le.Uint64(src[37:45])
	return c, nil
}

func (c Contribution) Pack(dst []byte) error {
	if err := checkLen(dst, ContributionSize, "contribution"); err != nil {
		return err
	}
	copy(dst[0:32], c.Lender[:])
	dst[32] = c.Shard
	le.PutUint32(dst[33:37], c.LenderID)
	le.PutUint64(dst[37:45], c.Amount)
	return nil
}

// Repayment is one entry of the loan's repayment log.
//
//	timestamp 0:8  amount 8:8
type Repayment struct {
	Timestamp int64
	Amount    uint64
}

func UnpackRepayment(src []byte) (Repayment, error) {
	var r Repayment
	if err := checkLen(src, RepaymentSize, "repayment"); err != nil {
		return r, err
	}
	r.Timestamp = int64(le.Uint64(src[0:8]))
	r.Amount = le.Uint64(src[8:16])
	return r, nil
}

func (r Repayment) Pack(dst []byte) error {
	if err := checkLen(dst, RepaymentSize, "repayment"); err != nil {
		return err
	}
	le.PutUint64(dst[0:8], uint64(r.Timestamp))
	le.PutUint64(dst[8:16], r.Amount)
	return nil
}

// LenderSlot is one fixed-size entry of the lender ledger.
//
//	active 0:1  lender 1:32  lifetime_lent 33:16 (u128)
//	net_principal 49:8  withdrawable 57:8
type LenderSlot struct {
	Active       bool
	Lender       pubkey.Pubkey
	LifetimeLent uint128.Uint128
	NetPrincipal uint64
	Withdrawable uint64
}

func UnpackLenderSlot(src []byte) (LenderSlot, error) {
	var s LenderSlot
	if err := checkLen(src, LenderSlotSize, "lender slot"); err != nil {
		return s, err
	}
	var err error
	if s.Active, err = getFlag(src[0]); err != nil {
		return s, err
	}
	s.Lender = getKey(src[1:33])
	s.LifetimeLent = uint128.FromBytes(src[33:49])
	s.NetPrincipal = le.Uint64(src[49:57])
	s.Withdrawable = le.Uint64(src[57:65])
	return s, nil
}

func (s LenderSlot) Pack(dst []byte) error {
	if err := checkLen(dst, LenderSlotSize, "lender slot"); err != nil {
		return err
	}
	dst[0] = putFlag(s.Active)
	copy(dst[1:33], s.Lender[:])
	s.LifetimeLent.PutBytes(dst[33:49])
	le.PutUint64(dst[49:57], s.NetPrincipal)
	le.PutUint64(dst[57:65], s.Withdrawable)
	return nil
}

// LedgerHeader is the two-byte prefix of the lender ledger.
//
//	tag 0:1  shard 1:1
type LedgerHeader struct {
	Tag   uint8
	Shard uint8
}

func UnpackLedgerHeader(src []byte) (LedgerHeader, error) {
	var h LedgerHeader
	if err := checkLen(src, LedgerHeaderSize, "ledger header"); err != nil {
		return h, err
	}
	h.Tag = src[0]
	h.Shard = src[1]
	if err := checkTag(h.Tag, TagLendersLedger, "ledger"); err != nil {
		return h, err
	}
	return h, nil
}

func (h LedgerHeader) Pack(dst []byte) error {
	if err := checkLen(dst, LedgerHeaderSize, "ledger header"); err != nil {
		return err
	}
	dst[0] = h.Tag
	dst[1] = h.Shard
	return nil
}

// AirdropRecord tracks how much a user has received from the test-token vault.
//
//	total 0:8
type AirdropRecord struct {
	Total uint64
}

func UnpackAirdropRecord(src []byte) (AirdropRecord, error) {
	if err := checkLen(src, AirdropRecordSize, "airdrop record"); err != nil {
		return AirdropRecord{}, err
	}
	return AirdropRecord{Total: le.Uint64(src)}, nil
}

func (r AirdropRecord) Pack(dst []byte) error {
	if err := checkLen(dst, AirdropRecordSize, "airdrop record"); err != nil {
		return err
	}
	le.PutUint64(dst, r.Total)
	return nil
}

// ContributionSpan returns the byte span of contribution entry i in a loan buffer.
func ContributionSpan(buf []byte, i int) []byte {
	off := ContributionsOffset + i*ContributionSize
	return buf[off : off+ContributionSize]
}

// RepaymentSpan returns the byte span of repayment entry i in a loan buffer.
func RepaymentSpan(buf []byte, i int) []byte {
	off := RepaymentsOffset + i*RepaymentSize
	return buf[off : off+RepaymentSize]
}

// LenderSlotSpan returns the byte span of slot id in a ledger buffer.
func LenderSlotSpan(buf []byte, id uint32) []byte {
	off := LedgerHeaderSize + int(id)*LenderSlotSize
	return buf[off : off+LenderSlotSize]
}
