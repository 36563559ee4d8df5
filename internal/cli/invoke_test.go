package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runAt runs a command against db at testNow.
func runAt(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, append(args, "--db", db, "--now", testNow)...)
}

// mustRun is runAt for steps that must succeed.
func mustRun(t *testing.T, db string, args ...string) string {
	t.Helper()
	out, err := runAt(t, db, args...)
	require.NoError(t, err, "%v: %s", args, out)
	return out
}

// setupLoan creates two lenders, a borrower and a 2000 coin loan in
// fundraising.
func setupLoan(t *testing.T, db string) {
	t.Helper()
	for _, step := range [][]string{
		{"account", "create", "alice", "--balance", "1000"},
		{"account", "create", "carol", "--balance", "1500"},
		{"account", "create", "bob"},
		{"account", "create", "guarantor", "--kind", "wallet"},
		{"account", "create", "bob/storage", "--kind", "borrower"},
		{"account", "create", "loan-1", "--kind", "loan"},
		{"invoke", "init_borrower", "-a", "borrower=bob", "-a", "storage=bob/storage"},
		{"invoke", "init_loan",
			"-a", "guarantor=guarantor",
			"-a", "borrower=bob",
			"-a", "loan=loan-1",
			"-a", "storage=bob/storage",
			"-a", "days_to_first_repayment=30",
			"-a", "num_emis=4",
			"-a", "days_for_fundraising=10",
			"-a", "total=2000",
		},
	} {
		mustRun(t, db, step...)
	}
}

// fundAndRepay funds loan-1, collects it and repays one EMI.
func fundAndRepay(t *testing.T, db string) {
	t.Helper()
	setupLoan(t, db)
	mustRun(t, db, "invoke", "lend", "-a", "lender=alice", "-a", "loan=loan-1", "-a", "amount=800", "-a", "id=1")

	_, err := runAt(t, db, "invoke", "lend", "-a", "lender=carol", "-a", "loan=loan-1", "-a", "amount=1500", "-a", "id=2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	mustRun(t, db, "invoke", "lend", "-a", "lender=carol", "-a", "loan=loan-1", "-a", "amount=1200", "-a", "id=2")
	mustRun(t, db, "invoke", "withdraw_collected", "-a", "borrower=bob", "-a", "loan=loan-1")
	mustRun(t, db, "invoke", "pay_emi", "-a", "borrower=bob", "-a", "storage=bob/storage", "-a", "loan=loan-1", "-a", "amount=500")
	mustRun(t, db, "invoke", "withdraw_lender", "-a", "lender=alice", "-a", "id=1")
}

func tokenBalance(t *testing.T, db, name string) string {
	t.Helper()
	var show AccountShow
	decodeData(t, mustRun(t, db, "account", "show", name, "--format", "json"), &show)
	if show.Token != nil {
		return show.Token.TokenBalance
	}
	require.NotNil(t, show.Account)
	return show.Account.TokenBalance
}

func TestInvoke_LendingFlow(t *testing.T) {
	db := initDB(t)
	fundAndRepay(t, db)

	assert.Equal(t, "450", tokenBalance(t, db, "alice"))
	assert.Equal(t, "300", tokenBalance(t, db, "carol"))
	assert.Equal(t, "1500", tokenBalance(t, db, "bob"))
	assert.Equal(t, "250", tokenBalance(t, db, "vault"))
}

func TestInvoke_TextOutput(t *testing.T) {
	db := initDB(t)
	setupLoan(t, db)

	out := mustRun(t, db, "invoke", "lend", "-a", "lender=alice", "-a", "loan=loan-1", "-a", "amount=12.5", "-a", "id=1")
	assert.Contains(t, out, "✓ lend: Success")
	assert.Contains(t, out, "Time: "+testNow)
	assert.Contains(t, out, "Changed: ")
}

func TestInvoke_JSONOutput(t *testing.T) {
	db := initDB(t)
	setupLoan(t, db)

	out := mustRun(t, db, "invoke", "lend", "-a", "lender=alice", "-a", "loan=loan-1", "-a", "amount=100", "-a", "id=1", "--format", "json")
	var res InvokeResult
	resp := decodeData(t, out, &res)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "lend", res.Operation)
	assert.Equal(t, "Success", res.Outcome)
	assert.Equal(t, int64(1_700_000_000), res.Now)
	assert.NotEmpty(t, res.Call)
	assert.NotEmpty(t, res.Changed)
}

func TestInvoke_RefusedCall(t *testing.T) {
	db := initDB(t)
	setupLoan(t, db)

	out, err := runAt(t, db, "invoke", "lend", "-a", "lender=carol", "-a", "loan=loan-1", "-a", "amount=2500", "-a", "id=2")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "LoanAmountExceeded")
	assert.Contains(t, out, "Error [LoanAmountExceeded]")

	out, err = runAt(t, db, "invoke", "lend", "-a", "lender=carol", "-a", "loan=loan-1", "-a", "amount=2500", "-a", "id=2", "--format", "json")
	require.Error(t, err)
	resp := decodeData(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "LoanAmountExceeded", resp.Error.Code)
	details, ok := resp.Error.Details.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "lend", details["operation"])
	assert.NotEmpty(t, details["call"])

	// Refused calls leave balances untouched.
	assert.Equal(t, "1500", tokenBalance(t, db, "carol"))
}

func TestInvoke_UnsupportedOperation(t *testing.T) {
	db := initDB(t)
	out, err := runAt(t, db, "invoke", "close_loan", "-a", "caller=admin", "-a", "loan=loan-1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "InstructionNotSupported")
}

func TestInvoke_CommandErrors(t *testing.T) {
	db := initDB(t)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"unknown operation", []string{"invoke", "borrow"}, `unknown operation "borrow"`},
		{"missing argument", []string{"invoke", "lend", "-a", "lender=alice"}, "missing argument"},
		{"bad amount", []string{"invoke", "lend", "-a", "lender=alice", "-a", "loan=l", "-a", "amount=abc", "-a", "id=1"}, "lend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runAt(t, db, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInvoke_MissingOperation(t *testing.T) {
	_, err := runCLI(t, "invoke")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestInvoke_DatabaseNotInitialized(t *testing.T) {
	db := t.TempDir() + "/empty.db"
	_, err := runAt(t, db, "invoke", "init_ledger", "-a", "payer=admin")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "not initialized")
}

func TestOperationUsage(t *testing.T) {
	lines := operationUsage()
	require.Len(t, lines, 13)
	assert.Contains(t, lines[0], "lend")
	assert.Contains(t, lines[0], "amount id lender loan")
}
