package processor

import (
	"github.com/roach88/dassi/internal/amount"
	"github.com/roach88/dassi/internal/codec"
	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/ledger"
	"github.com/roach88/dassi/internal/loan"
)

// Accounts: lender[s], lender token, vault, token program, loan, lenders ledger.
func (c *call) lend(v uint64, lenderID uint32) error {
	lender, err := c.Accounts.Signer(0)
	if err != nil {
		return err
	}
	lenderToken, err := c.Accounts.Get(1)
	if err != nil {
		return err
	}
	vault, err := c.Accounts.Get(2)
	if err != nil {
		return err
	}
	tokenProg, err := c.Accounts.Get(3)
	if err != nil {
		return err
	}
	loanAcct, err := c.Accounts.Get(4)
	if err != nil {
		return err
	}
	ledgerAcct, err := c.Accounts.Get(5)
	if err != nil {
		return err
	}

	if err := c.tokenProgram(tokenProg); err != nil {
		return err
	}
	if err := c.p.lending.CheckVault(vault); err != nil {
		return err
	}
	if err := c.owned(loanAcct); err != nil {
		return err
	}
	if err := c.owned(ledgerAcct); err != nil {
		return err
	}
	if v < c.p.params.MinLending {
		return errcode.New(errcode.ExpectedAmountMismatch, "lend %s below minimum %s",
			amount.Format(v), amount.Format(c.p.params.MinLending))
	}

	l, err := loan.Open(loanAcct.Data)
	if err != nil {
		return err
	}
	if err := l.CheckLendable(c.Now); err != nil {
		return err
	}
	led, err := ledger.Open(ledgerAcct.Data)
	if err != nil {
		return err
	}
	if err := led.RecordLending(lenderID, lender.Key, v); err != nil {
		return err
	}
	if err := l.RecordContribution(codec.Contribution{
		Lender:   lender.Key,
		Shard:    codec.LedgerShard,
		LenderID: lenderID,
		Amount:   v,
	}); err != nil {
		return err
	}

	if err := c.p.lending.Deposit(c.p.tokens, lenderToken, vault, lender, v); err != nil {
		return err
	}

	if err := led.Commit(); err != nil {
		return err
	}
	if err := l.Commit(); err != nil {
		return err
	}
	h := l.Header()
	c.p.logger.Info("contribution recorded",
		"loan", loanAcct.Key.String(),
		"lender", lender.Key.String(),
		"lender_id", lenderID,
		"amount", amount.Format(v),
		"lent", amount.Format(h.AmountLent),
		"requested", amount.Format(h.RequestedTotal),
	)
	return nil
}

// Accounts: lender[s], lender token, vault, lenders ledger, token program, authority.
func (c *call) withdrawLender(lenderID uint32) error {
	lender, err := c.Accounts.Signer(0)
	if err != nil {
		return err
	}
	lenderToken, err := c.Accounts.Get(1)
	if err != nil {
		return err
	}
	vault, err := c.Accounts.Get(2)
	if err != nil {
		return err
	}
	ledgerAcct, err := c.Accounts.Get(3)
	if err != nil {
		return err
	}
	tokenProg, err := c.Accounts.Get(4)
	if err != nil {
		return err
	}
	auth, err := c.Accounts.Get(5)
	if err != nil {
		return err
	}

	if err := c.tokenProgram(tokenProg); err != nil {
		return err
	}
	if err := c.p.lending.CheckAccount(auth); err != nil {
		return err
	}
	if err := c.p.lending.CheckVault(vault); err != nil {
		return err
	}
	if err := c.owned(ledgerAcct); err != nil {
		return err
	}
	if err := tokenOwnedBy(lenderToken, lender.Key); err != nil {
		return err
	}

	led, err := ledger.Open(ledgerAcct.Data)
	if err != nil {
		return err
	}
	out, err := led.Withdraw(lenderID, lender.Key)
	if err != nil {
		return err
	}
	if out > 0 {
		if err := c.p.lending.Release(c.p.tokens, vault, lenderToken, out); err != nil {
			return err
		}
	}
	if err := led.Commit(); err != nil {
		return err
	}
	c.p.logger.Info("lender withdrew",
		"lender", lender.Key.String(),
		"lender_id", lenderID,
		"amount", amount.Format(out),
	)
	return nil
}

// Accounts: borrower[s], borrower token, vault, token program, loan, authority.
func (c *call) withdrawCollected() error {
	borrower, err := c.Accounts.Signer(0)
	if err != nil {
		return err
	}
	borrowerToken, err := c.Accounts.Get(1)
	if err != nil {
		return err
	}
	vault, err := c.Accounts.Get(2)
	if err != nil {
		return err
	}
	tokenProg, err := c.Accounts.Get(3)
	if err != nil {
		return err
	}
	loanAcct, err := c.Accounts.Get(4)
	if err != nil {
		return err
	}
	auth, err := c.Accounts.Get(5)
	if err != nil {
		return err
	}

	if err := c.tokenProgram(tokenProg); err != nil {
		return err
	}
	if err := c.p.lending.CheckAccount(auth); err != nil {
		return err
	}
	if err := c.p.lending.CheckVault(vault); err != nil {
		return err
	}
	if err := c.owned(loanAcct); err != nil {
		return err
	}
	if err := tokenOwnedBy(borrowerToken, borrower.Key); err != nil {
		return err
	}

	l, err := loan.Open(loanAcct.Data)
	if err != nil {
		return err
	}
	if !l.Initialized() {
		return errcode.New(errcode.UninitializedAccount, "loan %s not initialized", loanAcct.Key)
	}
	if h := l.Header(); h.Borrower != borrower.Key {
		return errcode.New(errcode.BorrowerAccountMismatched, "loan belongs to %s, not %s", h.Borrower, borrower.Key)
	}
	out, err := l.Collect()
	if err != nil {
		return err
	}

	if err := c.p.lending.Release(c.p.tokens, vault, borrowerToken, out); err != nil {
		return err
	}
	if err := l.Commit(); err != nil {
		return err
	}
	c.p.logger.Info("loan funds collected",
		"loan", loanAcct.Key.String(),
		"borrower", borrower.Key.String(),
		"amount", amount.Format(out),
	)
	return nil
}

// Accounts: borrower[s], borrower token, vault, borrower storage, token
// program, loan, lenders ledger.
func (c *call) payEMI(v uint64) error {
	borrower, err := c.Accounts.Signer(0)
	if err != nil {
		return err
	}
	borrowerToken, err := c.Accounts.Get(1)
	if err != nil {
		return err
	}
	vault, err := c.Accounts.Get(2)
	if err != nil {
		return err
	}
	storage, err := c.Accounts.Get(3)
	if err != nil {
		return err
	}
	tokenProg, err := c.Accounts.Get(4)
	if err != nil {
		return err
	}
	loanAcct, err := c.Accounts.Get(5)
	if err != nil {
		return err
	}
	ledgerAcct, err := c.Accounts.Get(6)
	if err != nil {
		return err
	}

	if err := c.tokenProgram(tokenProg); err != nil {
		return err
	}
	if err := c.p.lending.CheckVault(vault); err != nil {
		return err
	}
	if err := c.owned(storage); err != nil {
		return err
	}
	if err := c.owned(loanAcct); err != nil {
		return err
	}
	if err := c.owned(ledgerAcct); err != nil {
		return err
	}

	rec, err := codec.UnpackBorrower(storage.Data)
	if err != nil {
		return recordError(storage, err)
	}
	if !rec.Initialized || rec.Borrower != borrower.Key {
		return errcode.New(errcode.BorrowerAccountMismatched, "storage %s does not belong to %s", storage.Key, borrower.Key)
	}
	if rec.Loan != loanAcct.Key {
		return errcode.New(errcode.AccountMismatched, "borrower loan is %s, got %s", rec.Loan, loanAcct.Key)
	}

	l, err := loan.Open(loanAcct.Data)
	if err != nil {
		return err
	}
	if !l.Initialized() {
		return errcode.New(errcode.UninitializedAccount, "loan %s not initialized", loanAcct.Key)
	}
	if h := l.Header(); h.Borrower != borrower.Key {
		return errcode.New(errcode.BorrowerAccountMismatched, "loan belongs to %s, not %s", h.Borrower, borrower.Key)
	}
	if l.FullyRepaid() {
		return errcode.New(errcode.LoanAlreadyPaid, "loan %s already repaid", loanAcct.Key)
	}
	if !l.FullyFunded() {
		return errcode.New(errcode.LoanNotFunded, "loan %s lent %s of %s", loanAcct.Key,
			amount.Format(l.Lent()), amount.Format(l.Header().RequestedTotal))
	}
	minEMI, err := l.MinimumEMI()
	if err != nil {
		return err
	}
	if v < minEMI {
		return errcode.New(errcode.ExpectedAmountMismatch, "emi %s below installment %s", amount.Format(v), amount.Format(minEMI))
	}

	led, err := ledger.Open(ledgerAcct.Data)
	if err != nil {
		return err
	}
	if err := l.RecordRepayment(v, c.Now); err != nil {
		return err
	}
	remainder, err := l.DistributeEMI(led, v)
	if err != nil {
		return err
	}
	if l.FullyRepaid() {
		rec.ActiveLoan = false
	}

	if err := c.p.lending.Deposit(c.p.tokens, borrowerToken, vault, borrower, v); err != nil {
		return err
	}

	if err := led.Commit(); err != nil {
		return err
	}
	if err := l.Commit(); err != nil {
		return err
	}
	if err := rec.Pack(storage.Data); err != nil {
		return recordError(storage, err)
	}
	h := l.Header()
	c.p.logger.Info("emi paid",
		"loan", loanAcct.Key.String(),
		"amount", amount.Format(v),
		"undistributed", amount.Format(remainder),
		"repaid", amount.Format(h.Repaid),
		"fully_repaid", l.FullyRepaid(),
	)
	return nil
}
