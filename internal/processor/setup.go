package processor

import (
	"github.com/roach88/dassi/internal/amount"
	"github.com/roach88/dassi/internal/codec"
	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/instruction"
	"github.com/roach88/dassi/internal/ledger"
	"github.com/roach88/dassi/internal/loan"
)

// Accounts: payer[s], lenders ledger.
func (c *call) initLedger() error {
	if _, err := c.Accounts.Signer(0); err != nil {
		return err
	}
	led, err := c.Accounts.Get(1)
	if err != nil {
		return err
	}
	if err := c.owned(led); err != nil {
		return err
	}
	if err := c.rentExempt(led); err != nil {
		return err
	}
	if err := ledger.Initialize(led.Data); err != nil {
		return err
	}
	c.p.logger.Info("lenders ledger initialized", "ledger", led.Key.String())
	return nil
}

// Accounts: borrower[s], borrower storage.
func (c *call) initBorrower() error {
	borrower, err := c.Accounts.Signer(0)
	if err != nil {
		return err
	}
	storage, err := c.Accounts.Get(1)
	if err != nil {
		return err
	}
	if err := c.owned(storage); err != nil {
		return err
	}
	if len(storage.Data) != codec.BorrowerSize {
		return errcode.New(errcode.DataSizeNotMatched, "borrower storage is %d bytes, want %d", len(storage.Data), codec.BorrowerSize)
	}
	if err := c.rentExempt(storage); err != nil {
		return err
	}
	rec, err := codec.UnpackBorrower(storage.Data)
	if err != nil {
		return recordError(storage, err)
	}
	if rec.Initialized {
		return errcode.New(errcode.BorrowerAccountAlreadyInitialized, "borrower storage %s", storage.Key)
	}
	rec = codec.Borrower{
		Initialized: true,
		Tag:         codec.TagBorrower,
		Borrower:    borrower.Key,
		CreditScore: c.p.params.InitialCreditScore,
	}
	if err := rec.Pack(storage.Data); err != nil {
		return recordError(storage, err)
	}
	c.p.logger.Info("borrower initialized",
		"borrower", borrower.Key.String(),
		"credit_score", amount.Format(rec.CreditScore),
	)
	return nil
}

// Accounts: guarantor[s], guarantor storage.
func (c *call) initGuarantor() error {
	guarantor, err := c.Accounts.Signer(0)
	if err != nil {
		return err
	}
	storage, err := c.Accounts.Get(1)
	if err != nil {
		return err
	}
	if err := c.owned(storage); err != nil {
		return err
	}
	if len(storage.Data) != codec.GuarantorSize {
		return errcode.New(errcode.DataSizeNotMatched, "guarantor storage is %d bytes, want %d", len(storage.Data), codec.GuarantorSize)
	}
	if err := c.rentExempt(storage); err != nil {
		return err
	}
	rec, err := codec.UnpackGuarantor(storage.Data)
	if err != nil {
		return recordError(storage, err)
	}
	if rec.Initialized {
		return errcode.New(errcode.GuarantorAccountAlreadyInitialized, "guarantor storage %s", storage.Key)
	}
	rec = codec.Guarantor{
		Initialized:   true,
		Tag:           codec.TagGuarantor,
		Guarantor:     guarantor.Key,
		ApprovalScore: c.p.params.InitialApprovalScore,
	}
	if err := rec.Pack(storage.Data); err != nil {
		return recordError(storage, err)
	}
	c.p.logger.Info("guarantor initialized", "guarantor", guarantor.Key.String())
	return nil
}

// Accounts: guarantor[s], borrower, loan, borrower storage.
func (c *call) initLoan(terms instruction.Instruction) error {
	guarantor, err := c.Accounts.Signer(0)
	if err != nil {
		return err
	}
	borrower, err := c.Accounts.Get(1)
	if err != nil {
		return err
	}
	loanAcct, err := c.Accounts.Get(2)
	if err != nil {
		return err
	}
	storage, err := c.Accounts.Get(3)
	if err != nil {
		return err
	}
	for _, a := range []*host.Account{loanAcct, storage} {
		if err := c.owned(a); err != nil {
			return err
		}
	}

	l, err := loan.Open(loanAcct.Data)
	if err != nil {
		return err
	}
	if l.Initialized() {
		return errcode.New(errcode.LoanInfoDataAlreadyInitialized, "loan %s", loanAcct.Key)
	}
	if err := c.rentExempt(loanAcct); err != nil {
		return err
	}

	rec, err := codec.UnpackBorrower(storage.Data)
	if err != nil {
		return recordError(storage, err)
	}
	if !rec.Initialized {
		return errcode.New(errcode.UninitializedAccount, "borrower storage %s not initialized", storage.Key)
	}
	if rec.Borrower != borrower.Key {
		return errcode.New(errcode.BorrowerAccountMismatched, "storage belongs to %s, not %s", rec.Borrower, borrower.Key)
	}
	if rec.ActiveLoan {
		return errcode.New(errcode.BorrowerAlreadyHaveActiveLoan, "borrower %s has loan %s", borrower.Key, rec.Loan)
	}

	if terms.NumEMIs == 0 || int(terms.NumEMIs) > codec.MaxRepayments {
		return errcode.New(errcode.InvalidLoanTerms, "num_emis %d outside 1..%d", terms.NumEMIs, codec.MaxRepayments)
	}
	if terms.Total < c.p.params.MinLending {
		return errcode.New(errcode.InvalidLoanTerms, "total %d below minimum lending %d", terms.Total, c.p.params.MinLending)
	}
	fundraisingDeadline, err := addDays(c.Now, uint64(terms.DaysForFundraising))
	if err != nil {
		return err
	}
	firstRepayment, err := addDays(c.Now, uint64(terms.DaysToFirstRepayment)+uint64(c.p.params.GraceDays))
	if err != nil {
		return err
	}

	if err := l.Initialize(loan.Terms{
		Borrower:               borrower.Key,
		Guarantor:              guarantor.Key,
		ApprovedAt:             c.Now,
		FundraisingDeadline:    fundraisingDeadline,
		FirstRepaymentDeadline: firstRepayment,
		Total:                  terms.Total,
		NumEMIs:                uint8(terms.NumEMIs),
	}); err != nil {
		return err
	}
	rec.ActiveLoan = true
	rec.Loan = loanAcct.Key

	if err := l.Commit(); err != nil {
		return err
	}
	if err := rec.Pack(storage.Data); err != nil {
		return recordError(storage, err)
	}
	c.p.logger.Info("loan initialized",
		"loan", loanAcct.Key.String(),
		"borrower", borrower.Key.String(),
		"total", amount.Format(terms.Total),
		"num_emis", terms.NumEMIs,
		"fundraising_deadline", fundraisingDeadline,
	)
	return nil
}
