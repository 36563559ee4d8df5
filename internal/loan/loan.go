// Package loan implements the per-loan buffer: a header followed by an
// append-only contribution log and an append-only repayment log.
//
// The stored amount_lent field is zeroed when the borrower collects the
// funds. Loan keeps that wire behavior but never reads the field as a flag:
// Lent is the sum of the contribution log and FundsWithdrawn is reported
// separately.
package loan

import (
	"errors"
	"fmt"

	"github.com/roach88/dassi/internal/amount"
	"github.com/roach88/dassi/internal/codec"
	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/pubkey"
)

// State is the lifecycle position of a loan at a given time.
type State int

const (
	Uninitialized State = iota
	Fundraising
	Expired
	Funded
	Repaying
	FullyRepaid
	FundsWithdrawn
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Fundraising:
		return "fundraising"
	case Expired:
		return "expired"
	case Funded:
		return "funded"
	case Repaying:
		return "repaying"
	case FullyRepaid:
		return "fully_repaid"
	case FundsWithdrawn:
		return "funds_withdrawn"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terms are the values written by loan initialization.
type Terms struct {
	Borrower               pubkey.Pubkey
	Guarantor              pubkey.Pubkey
	ApprovedAt             int64
	FundraisingDeadline    int64
	FirstRepaymentDeadline int64
	Total                  uint64
	NumEMIs                uint8
}

// Crediter receives EMI shares. *ledger.Ledger implements it.
type Crediter interface {
	CreditShare(id uint32, lender pubkey.Pubkey, share uint64) error
}

// Loan is a staged view over a loan buffer.
type Loan struct {
	buf           []byte
	header        codec.LoanHeader
	contributions []codec.Contribution
	repayments    []codec.Repayment
	committedC    int
	committedR    int
}

// Open validates the buffer size and reads header and both logs.
func Open(buf []byte) (*Loan, error) {
	if len(buf) != codec.LoanSize {
		return nil, errcode.New(errcode.DataSizeNotMatched, "loan buffer is %d bytes, want %d", len(buf), codec.LoanSize)
	}
	h, err := codec.UnpackLoanHeader(buf[:codec.LoanHeaderSize])
	if err != nil {
		return nil, errcode.New(errcode.ExpectedAccountTypeMismatched, "loan header: %v", err)
	}
	if int(h.NextContribution) > codec.MaxContributions || int(h.NextRepayment) > codec.MaxRepayments {
		return nil, errcode.New(errcode.InvalidAccountData, "loan cursors %d/%d out of range", h.NextContribution, h.NextRepayment)
	}
	l := &Loan{buf: buf, header: h}
	for i := 0; i < int(h.NextContribution); i++ {
		c, err := codec.UnpackContribution(codec.ContributionSpan(buf, i))
		if err != nil {
			return nil, errcode.New(errcode.InvalidAccountData, "contribution %d: %v", i, err)
		}
		l.contributions = append(l.contributions, c)
	}
	for i := 0; i < int(h.NextRepayment); i++ {
		r, err := codec.UnpackRepayment(codec.RepaymentSpan(buf, i))
		if err != nil {
			return nil, errcode.New(errcode.InvalidAccountData, "repayment %d: %v", i, err)
		}
		l.repayments = append(l.repayments, r)
	}
	l.committedC = len(l.contributions)
	l.committedR = len(l.repayments)
	return l, nil
}

// Header returns the current header, staged changes included.
func (l *Loan) Header() codec.LoanHeader { return l.header }

// Contributions returns a copy of the contribution log.
func (l *Loan) Contributions() []codec.Contribution {
	return append([]codec.Contribution(nil), l.contributions...)
}

// Repayments returns a copy of the repayment log.
func (l *Loan) Repayments() []codec.Repayment {
	return append([]codec.Repayment(nil), l.repayments...)
}

// Initialized reports whether the loan carries its type tag.
func (l *Loan) Initialized() bool {
	return l.header.Tag == codec.TagLoan
}

// Initialize writes the header for a new loan.
func (l *Loan) Initialize(t Terms) error {
	if l.header.Tag != 0 {
		return errcode.New(errcode.LoanInfoDataAlreadyInitialized, "loan tag %d", l.header.Tag)
	}
	if t.NumEMIs == 0 || int(t.NumEMIs) > codec.MaxRepayments {
		return errcode.New(errcode.InvalidLoanTerms, "num_emis %d outside 1..%d", t.NumEMIs, codec.MaxRepayments)
	}
	if t.Total == 0 {
		return errcode.New(errcode.InvalidLoanTerms, "requested total is zero")
	}
	l.header = codec.LoanHeader{
		Tag:                    codec.TagLoan,
		Borrower:               t.Borrower,
		Guarantor:              t.Guarantor,
		ApprovedAt:             t.ApprovedAt,
		FundraisingDeadline:    t.FundraisingDeadline,
		FirstRepaymentDeadline: t.FirstRepaymentDeadline,
		RequestedTotal:         t.Total,
		NumEMIs:                t.NumEMIs,
	}
	return nil
}

func (l *Loan) requireInitialized() error {
	if !l.Initialized() {
		return errcode.New(errcode.UninitializedAccount, "loan is not initialized")
	}
	return nil
}

// Lent is the sum of the contribution log. It does not change when the
// borrower collects the funds.
func (l *Loan) Lent() uint64 {
	var sum uint64
	for _, c := range l.contributions {
		sum += c.Amount
	}
	return sum
}

// FullyFunded reports whether contributions reached the requested total.
func (l *Loan) FullyFunded() bool {
	return l.Initialized() && l.Lent() == l.header.RequestedTotal
}

// FundsWithdrawn reports whether the borrower already collected the funds.
// Every contribution is non-zero, so a zero stored amount after at least one
// contribution can only come from collection.
func (l *Loan) FundsWithdrawn() bool {
	return l.Initialized() && len(l.contributions) > 0 && l.header.AmountLent == 0
}

// FullyRepaid reports whether repayments reached the requested total.
func (l *Loan) FullyRepaid() bool {
	return l.Initialized() && l.header.Repaid >= l.header.RequestedTotal
}

// Expired reports whether fundraising closed before the loan was funded.
// The deadline itself is still open.
func (l *Loan) Expired(now int64) bool {
	return l.header.FundraisingDeadline < now && !l.FullyFunded()
}

// State derives the lifecycle state at now.
func (l *Loan) State(now int64) State {
	switch {
	case !l.Initialized():
		return Uninitialized
	case l.FundsWithdrawn():
		return FundsWithdrawn
	case l.FullyRepaid():
		return FullyRepaid
	case l.FullyFunded() && len(l.repayments) > 0:
		return Repaying
	case l.FullyFunded():
		return Funded
	case l.Expired(now):
		return Expired
	}
	return Fundraising
}

// CheckLendable returns the reason lending is refused at now, if any.
func (l *Loan) CheckLendable(now int64) error {
	if err := l.requireInitialized(); err != nil {
		return err
	}
	if l.FundsWithdrawn() || l.FullyFunded() {
		return errcode.New(errcode.BorrowerAlreadyFunded, "loan already funded")
	}
	if l.Expired(now) {
		return errcode.New(errcode.FundraisingPeriodExpired, "deadline %d passed at %d", l.header.FundraisingDeadline, now)
	}
	return nil
}

// RecordContribution appends a contribution and raises the lent total.
func (l *Loan) RecordContribution(c codec.Contribution) error {
	if err := l.requireInitialized(); err != nil {
		return err
	}
	if c.Amount == 0 {
		return errcode.New(errcode.ExpectedAmountMismatch, "zero contribution")
	}
	if int(l.header.NextContribution) >= codec.MaxContributions {
		return errcode.New(errcode.CapacityExceeded, "contribution log holds %d entries", codec.MaxContributions)
	}
	lent, err := amount.Add(l.header.AmountLent, c.Amount)
	if err != nil {
		return err
	}
	if lent > l.header.RequestedTotal {
		return errcode.New(errcode.LoanAmountExceeded, "lent %d + %d exceeds total %d",
			l.header.AmountLent, c.Amount, l.header.RequestedTotal)
	}
	l.contributions = append(l.contributions, c)
	l.header.AmountLent = lent
	l.header.NextContribution++
	return nil
}

// RecordRepayment appends a repayment and raises the repaid total.
func (l *Loan) RecordRepayment(v uint64, now int64) error {
	if err := l.requireInitialized(); err != nil {
		return err
	}
	if int(l.header.NextRepayment) >= codec.MaxRepayments {
		return errcode.New(errcode.CapacityExceeded, "repayment log holds %d entries", codec.MaxRepayments)
	}
	repaid, err := amount.Add(l.header.Repaid, v)
	if err != nil {
		return err
	}
	l.repayments = append(l.repayments, codec.Repayment{Timestamp: now, Amount: v})
	l.header.Repaid = repaid
	l.header.NextRepayment++
	return nil
}

// MinimumEMI is requested_total / num_emis.
func (l *Loan) MinimumEMI() (uint64, error) {
	return amount.Div(l.header.RequestedTotal, uint64(l.header.NumEMIs))
}

// DistributeEMI credits floor(total / contributions) to the lender of every
// contribution entry and returns the undistributed remainder.
func (l *Loan) DistributeEMI(to Crediter, total uint64) (uint64, error) {
	n := uint64(len(l.contributions))
	if n == 0 {
		return 0, errcode.New(errcode.LoanNotFunded, "no contributions to distribute to")
	}
	share, err := amount.Div(total, n)
	if err != nil {
		return 0, err
	}
	for _, c := range l.contributions {
		if err := to.CreditShare(c.LenderID, c.Lender, share); err != nil {
			return 0, fmt.Errorf("credit lender %d: %w", c.LenderID, err)
		}
	}
	return total - share*n, nil
}

// Collect zeroes the stored lent amount and returns what the borrower may
// withdraw.
func (l *Loan) Collect() (uint64, error) {
	if err := l.requireInitialized(); err != nil {
		return 0, err
	}
	if l.FundsWithdrawn() {
		return 0, errcode.New(errcode.CollectedLoanFundsAlreadyWithdrawn, "funds already collected")
	}
	if !l.FullyFunded() {
		return 0, errcode.New(errcode.LoanNotFunded, "lent %d of %d", l.Lent(), l.header.RequestedTotal)
	}
	out := l.header.AmountLent
	l.header.AmountLent = 0
	return out, nil
}

// Commit writes the header and staged log entries into the buffer.
func (l *Loan) Commit() error {
	var errs []error
	for i := l.committedC; i < len(l.contributions); i++ {
		if err := l.contributions[i].Pack(codec.ContributionSpan(l.buf, i)); err != nil {
			errs = append(errs, fmt.Errorf("contribution %d: %w", i, err))
		}
	}
	for i := l.committedR; i < len(l.repayments); i++ {
		if err := l.repayments[i].Pack(codec.RepaymentSpan(l.buf, i)); err != nil {
			errs = append(errs, fmt.Errorf("repayment %d: %w", i, err))
		}
	}
	if err := l.header.Pack(l.buf[:codec.LoanHeaderSize]); err != nil {
		errs = append(errs, fmt.Errorf("header: %w", err))
	}
	l.committedC = len(l.contributions)
	l.committedR = len(l.repayments)
	return errors.Join(errs...)
}
