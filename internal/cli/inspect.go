package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/dassi/internal/amount"
	"github.com/roach88/dassi/internal/codec"
	"github.com/roach88/dassi/internal/config"
	"github.com/roach88/dassi/internal/ledger"
	"github.com/roach88/dassi/internal/loan"
)

// LenderView is one lender slot.
type LenderView struct {
	ID           uint32 `json:"id"`
	Active       bool   `json:"active"`
	Lender       string `json:"lender,omitempty"`
	LifetimeLent string `json:"lifetime_lent"`
	NetPrincipal string `json:"net_principal"`
	Withdrawable string `json:"withdrawable"`
}

// WriteText renders the slot.
func (v LenderView) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Lender slot %d\n", v.ID)
	fmt.Fprintf(w, "  Active:        %t\n", v.Active)
	if v.Lender != "" {
		fmt.Fprintf(w, "  Lender:        %s\n", v.Lender)
	}
	fmt.Fprintf(w, "  Lifetime lent: %s\n", v.LifetimeLent)
	fmt.Fprintf(w, "  Net principal: %s\n", v.NetPrincipal)
	fmt.Fprintf(w, "  Withdrawable:  %s\n", v.Withdrawable)
}

// ContributionView is one entry of a loan's contribution log.
type ContributionView struct {
	Lender   string `json:"lender"`
	LenderID uint32 `json:"lender_id"`
	Amount   string `json:"amount"`
}

// RepaymentView is one entry of a loan's repayment log.
type RepaymentView struct {
	Timestamp int64  `json:"timestamp"`
	Amount    string `json:"amount"`
}

// LoanView is a loan with its derived state at the inspection time.
type LoanView struct {
	Name                   string             `json:"name"`
	Address                string             `json:"address"`
	State                  string             `json:"state"`
	Borrower               string             `json:"borrower"`
	Guarantor              string             `json:"guarantor"`
	ApprovedAt             int64              `json:"approved_at"`
	FundraisingDeadline    int64              `json:"fundraising_deadline"`
	FirstRepaymentDeadline int64              `json:"first_repayment_deadline"`
	Requested              string             `json:"requested"`
	Lent                   string             `json:"lent"`
	Repaid                 string             `json:"repaid"`
	NumEMIs                uint8              `json:"num_emis"`
	MinimumEMI             string             `json:"minimum_emi,omitempty"`
	Contributions          []ContributionView `json:"contributions"`
	Repayments             []RepaymentView    `json:"repayments"`
}

// WriteText renders the loan and both logs.
func (v LoanView) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Loan %s (%s)\n", v.Name, v.Address)
	fmt.Fprintf(w, "  State:      %s\n", v.State)
	if v.State == loan.Uninitialized.String() {
		return
	}
	fmt.Fprintf(w, "  Borrower:   %s\n", v.Borrower)
	fmt.Fprintf(w, "  Guarantor:  %s\n", v.Guarantor)
	fmt.Fprintf(w, "  Approved:   %s\n", unixText(v.ApprovedAt))
	fmt.Fprintf(w, "  Fundraise:  until %s\n", unixText(v.FundraisingDeadline))
	fmt.Fprintf(w, "  First EMI:  by %s\n", unixText(v.FirstRepaymentDeadline))
	fmt.Fprintf(w, "  Requested:  %s\n", v.Requested)
	fmt.Fprintf(w, "  Lent:       %s\n", v.Lent)
	fmt.Fprintf(w, "  Repaid:     %s\n", v.Repaid)
	fmt.Fprintf(w, "  EMIs:       %d of at least %s\n", v.NumEMIs, v.MinimumEMI)
	for i, c := range v.Contributions {
		fmt.Fprintf(w, "  Contribution %d: %s from %s (slot %d)\n", i, c.Amount, c.Lender, c.LenderID)
	}
	for i, r := range v.Repayments {
		fmt.Fprintf(w, "  Repayment %d: %s at %s\n", i, r.Amount, unixText(r.Timestamp))
	}
}

// BorrowerView is a borrower record.
type BorrowerView struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	Initialized bool   `json:"initialized"`
	Borrower    string `json:"borrower,omitempty"`
	ActiveLoan  bool   `json:"active_loan"`
	Loan        string `json:"loan,omitempty"`
	CreditScore string `json:"credit_score"`
}

// WriteText renders the record.
func (v BorrowerView) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Borrower %s (%s)\n", v.Name, v.Address)
	fmt.Fprintf(w, "  Initialized:  %t\n", v.Initialized)
	if !v.Initialized {
		return
	}
	fmt.Fprintf(w, "  Borrower:     %s\n", v.Borrower)
	fmt.Fprintf(w, "  Active loan:  %t\n", v.ActiveLoan)
	if v.ActiveLoan {
		fmt.Fprintf(w, "  Loan:         %s\n", v.Loan)
	}
	fmt.Fprintf(w, "  Credit score: %s\n", v.CreditScore)
}

// GuarantorView is a guarantor record.
type GuarantorView struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	Initialized   bool   `json:"initialized"`
	Guarantor     string `json:"guarantor,omitempty"`
	ApprovalScore string `json:"approval_score"`
}

// WriteText renders the record.
func (v GuarantorView) WriteText(w io.Writer) {
	fmt.Fprintf(w, "Guarantor %s (%s)\n", v.Name, v.Address)
	fmt.Fprintf(w, "  Initialized:    %t\n", v.Initialized)
	if v.Initialized {
		fmt.Fprintf(w, "  Guarantor:      %s\n", v.Guarantor)
		fmt.Fprintf(w, "  Approval score: %s\n", v.ApprovalScore)
	}
}

func unixText(t int64) string {
	return time.Unix(t, 0).UTC().Format(time.RFC3339)
}

// NewInspectCommand creates the inspect command group.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Decode program-owned records",
		Long: `Decode program-owned records.

Loan state is derived at the current time, or at --now when given.

Examples:
  dassi inspect lender 1
  dassi inspect loan loan1 --now 1700864000
  dassi inspect borrower bob-storage --format json`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "lender <id>",
		Short:         "Show a lender slot of the lenders ledger",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectLender(rootOpts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "loan <name>",
		Short:         "Show a loan with its contributions and repayments",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectLoan(rootOpts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "borrower <name>",
		Short:         "Show a borrower record",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectBorrower(rootOpts, args[0], cmd)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:           "guarantor <name>",
		Short:         "Show a guarantor record",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspectGuarantor(rootOpts, args[0], cmd)
		},
	})

	return cmd
}

func inspectLender(opts *RootOptions, arg string, cmd *cobra.Command) error {
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid lender id", err)
	}

	ctx := commandContext(cmd)
	e, err := openEnv(ctx, opts, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	acct, err := e.store.GetAccount(ctx, e.d.Ledger)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read lenders ledger", err)
	}
	led, err := ledger.Open(acct.Data)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to decode lenders ledger", err)
	}
	s, err := led.Read(uint32(id))
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read slot %d", id), err)
	}

	v := LenderView{
		ID:           uint32(id),
		Active:       s.Active,
		LifetimeLent: amount.Format128(s.LifetimeLent),
		NetPrincipal: amount.Format(s.NetPrincipal),
		Withdrawable: amount.Format(s.Withdrawable),
	}
	if s.Active {
		v.Lender = s.Lender.String()
	}
	return newFormatter(opts, cmd).Success(v)
}

func inspectLoan(opts *RootOptions, name string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	e, err := openEnv(ctx, opts, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	key := config.ResolveKey(name)
	acct, err := e.store.GetAccount(ctx, key)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read loan %s", name), err)
	}
	l, err := loan.Open(acct.Data)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s is not a loan", name), err)
	}

	h := l.Header()
	v := LoanView{
		Name:                   name,
		Address:                key.String(),
		State:                  l.State(clockFor(opts).Now()).String(),
		Borrower:               h.Borrower.String(),
		Guarantor:              h.Guarantor.String(),
		ApprovedAt:             h.ApprovedAt,
		FundraisingDeadline:    h.FundraisingDeadline,
		FirstRepaymentDeadline: h.FirstRepaymentDeadline,
		Requested:              amount.Format(h.RequestedTotal),
		Lent:                   amount.Format(l.Lent()),
		Repaid:                 amount.Format(h.Repaid),
		NumEMIs:                h.NumEMIs,
		Contributions:          []ContributionView{},
		Repayments:             []RepaymentView{},
	}
	if emi, err := l.MinimumEMI(); err == nil {
		v.MinimumEMI = amount.Format(emi)
	}
	for _, c := range l.Contributions() {
		v.Contributions = append(v.Contributions, ContributionView{
			Lender:   c.Lender.String(),
			LenderID: c.LenderID,
			Amount:   amount.Format(c.Amount),
		})
	}
	for _, r := range l.Repayments() {
		v.Repayments = append(v.Repayments, RepaymentView{
			Timestamp: r.Timestamp,
			Amount:    amount.Format(r.Amount),
		})
	}
	return newFormatter(opts, cmd).Success(v)
}

func inspectBorrower(opts *RootOptions, name string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	e, err := openEnv(ctx, opts, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	key := config.ResolveKey(name)
	acct, err := e.store.GetAccount(ctx, key)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read borrower %s", name), err)
	}
	rec, err := codec.UnpackBorrower(acct.Data)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s is not a borrower record", name), err)
	}

	v := BorrowerView{
		Name:        name,
		Address:     key.String(),
		Initialized: rec.Initialized,
		ActiveLoan:  rec.ActiveLoan,
		CreditScore: amount.Format(rec.CreditScore),
	}
	if rec.Initialized {
		v.Borrower = rec.Borrower.String()
	}
	if rec.ActiveLoan {
		v.Loan = rec.Loan.String()
	}
	return newFormatter(opts, cmd).Success(v)
}

func inspectGuarantor(opts *RootOptions, name string, cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	e, err := openEnv(ctx, opts, cmd, false)
	if err != nil {
		return err
	}
	defer e.Close()

	key := config.ResolveKey(name)
	acct, err := e.store.GetAccount(ctx, key)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read guarantor %s", name), err)
	}
	rec, err := codec.UnpackGuarantor(acct.Data)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s is not a guarantor record", name), err)
	}

	v := GuarantorView{
		Name:          name,
		Address:       key.String(),
		Initialized:   rec.Initialized,
		ApprovalScore: amount.Format(rec.ApprovalScore),
	}
	if rec.Initialized {
		v.Guarantor = rec.Guarantor.String()
	}
	return newFormatter(opts, cmd).Success(v)
}
