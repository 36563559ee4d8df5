package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/dassi/internal/amount"
	"github.com/roach88/dassi/internal/codec"
	"github.com/roach88/dassi/internal/config"
	"github.com/roach88/dassi/internal/deploy"
	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/instruction"
	"github.com/roach88/dassi/internal/ledger"
	"github.com/roach88/dassi/internal/loan"
	"github.com/roach88/dassi/internal/pubkey"
	"github.com/roach88/dassi/internal/store"
)

// AssertionContext is what assertions read final state from.
type AssertionContext struct {
	Ctx        context.Context
	Store      *store.Store
	Deployment *deploy.Deployment

	// Now is the clock reading loan states are derived at.
	Now int64
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Subject  string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s %s\n", e.Type, e.Subject)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertBalance:
		return assertBalance(actx, a)
	case AssertLenderSlot:
		return assertLenderSlot(actx, a)
	case AssertLoan:
		return assertLoan(actx, a)
	case AssertBorrower:
		return assertBorrower(actx, a)
	case AssertCallCount:
		return assertCallCount(actx, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertBalance(actx *AssertionContext, a Assertion) error {
	want, err := amount.Parse(a.Amount)
	if err != nil {
		return err
	}
	key, err := tokenAccountOf(actx.Deployment, a.Account)
	if err != nil {
		return err
	}
	got, err := balanceOf(actx.Ctx, actx.Store, key)
	if err != nil {
		return fmt.Errorf("balance of %s: %w", a.Account, err)
	}
	if got != want {
		return &AssertionError{
			Type:     AssertBalance,
			Subject:  a.Account,
			Expected: amount.Format(want),
			Actual:   amount.Format(got),
		}
	}
	return nil
}

func assertLenderSlot(actx *AssertionContext, a Assertion) error {
	acct, err := actx.Store.GetAccount(actx.Ctx, actx.Deployment.Ledger)
	if err != nil {
		return err
	}
	led, err := ledger.Open(acct.Data)
	if err != nil {
		return err
	}
	s, err := led.Read(a.ID)
	if err != nil {
		return err
	}
	fields := map[string]fieldValue{
		"active":        textField(fmt.Sprintf("%t", s.Active)),
		"lender":        keyField(s.Lender),
		"lifetime_lent": coinField(amount.Format128(s.LifetimeLent)),
		"net_principal": coinField(amount.Format(s.NetPrincipal)),
		"withdrawable":  coinField(amount.Format(s.Withdrawable)),
	}
	return matchFields(AssertLenderSlot, fmt.Sprintf("slot %d", a.ID), fields, a.Expect)
}

func assertLoan(actx *AssertionContext, a Assertion) error {
	acct, err := actx.Store.GetAccount(actx.Ctx, config.ResolveKey(a.Account))
	if err != nil {
		return fmt.Errorf("loan %s: %w", a.Account, err)
	}
	l, err := loan.Open(acct.Data)
	if err != nil {
		return err
	}
	h := l.Header()
	fields := map[string]fieldValue{
		"state":         textField(l.State(actx.Now).String()),
		"borrower":      keyField(h.Borrower),
		"guarantor":     keyField(h.Guarantor),
		"requested":     coinField(amount.Format(h.RequestedTotal)),
		"lent":          coinField(amount.Format(l.Lent())),
		"repaid":        coinField(amount.Format(h.Repaid)),
		"num_emis":      textField(fmt.Sprintf("%d", h.NumEMIs)),
		"contributions": textField(fmt.Sprintf("%d", len(l.Contributions()))),
		"repayments":    textField(fmt.Sprintf("%d", len(l.Repayments()))),
	}
	return matchFields(AssertLoan, a.Account, fields, a.Expect)
}

func assertBorrower(actx *AssertionContext, a Assertion) error {
	acct, err := actx.Store.GetAccount(actx.Ctx, config.ResolveKey(a.Account))
	if err != nil {
		return fmt.Errorf("borrower %s: %w", a.Account, err)
	}
	rec, err := codec.UnpackBorrower(acct.Data)
	if err != nil {
		return err
	}
	fields := map[string]fieldValue{
		"initialized":  textField(fmt.Sprintf("%t", rec.Initialized)),
		"active_loan":  textField(fmt.Sprintf("%t", rec.ActiveLoan)),
		"borrower":     keyField(rec.Borrower),
		"loan":         keyField(rec.Loan),
		"credit_score": coinField(amount.Format(rec.CreditScore)),
	}
	return matchFields(AssertBorrower, a.Account, fields, a.Expect)
}

func assertCallCount(actx *AssertionContext, a Assertion) error {
	entries, err := actx.Store.ListEntriesForProgram(actx.Ctx, actx.Deployment.Program)
	if err != nil {
		return err
	}
	count := 0
	for _, e := range entries {
		if e.Kind != host.EntryCall {
			continue
		}
		ins, err := instruction.Decode(e.Data)
		if err != nil || ins.Op.String() != a.Op {
			continue
		}
		if a.Outcome != "" && entryOutcome(e) != a.Outcome {
			continue
		}
		count++
	}
	if count != a.Count {
		subject := a.Op
		if a.Outcome != "" {
			subject += " " + a.Outcome
		}
		return &AssertionError{
			Type:     AssertCallCount,
			Subject:  subject,
			Expected: fmt.Sprintf("%d calls", a.Count),
			Actual:   fmt.Sprintf("%d calls", count),
		}
	}
	return nil
}

func entryOutcome(e host.Entry) string {
	if !e.Failed {
		return OutcomeSuccess
	}
	return errcode.Code(e.Code).String()
}

// fieldValue is an actual value plus how an expected value compares to it.
type fieldValue struct {
	text  string
	equal func(expected string) bool
}

func textField(s string) fieldValue {
	return fieldValue{text: s, equal: func(e string) bool { return e == s }}
}

// keyField matches a base58 identity or a name.
func keyField(k pubkey.Pubkey) fieldValue {
	return fieldValue{text: k.String(), equal: func(e string) bool { return config.ResolveKey(e) == k }}
}

// coinField matches amounts numerically, so "250" equals "250.0".
func coinField(s string) fieldValue {
	return fieldValue{text: s, equal: func(e string) bool {
		want, err := amount.Parse(e)
		if err != nil {
			return false
		}
		got, err := amount.Parse(s)
		return err == nil && got == want
	}}
}

// matchFields compares expected against actual with subset semantics. Keys
// are checked in sorted order so the first reported mismatch is stable.
func matchFields(typ, subject string, actual map[string]fieldValue, expected map[string]interface{}) error {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		got, ok := actual[k]
		if !ok {
			return &AssertionError{
				Type:     typ,
				Subject:  subject,
				Expected: fmt.Sprintf("field %q to exist", k),
				Actual:   fmt.Sprintf("fields are %s", strings.Join(fieldNames(actual), ", ")),
			}
		}
		want, err := convertValue(expected[k])
		if err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		if !got.equal(want) {
			return &AssertionError{
				Type:     typ,
				Subject:  subject,
				Expected: fmt.Sprintf("%s = %s", k, want),
				Actual:   fmt.Sprintf("%s = %s", k, got.text),
			}
		}
	}
	return nil
}

func fieldNames(m map[string]fieldValue) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
