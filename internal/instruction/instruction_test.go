package instruction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/pubkey"
)

func TestEncodeLayout(t *testing.T) {
	lend := Instruction{Op: OpLendToBorrower, Amount: 10_000_000_000, LenderID: 49_999}.Encode()
	assert.Equal(t, []byte{0, 0x00, 0xe4, 0x0b, 0x54, 0x02, 0, 0, 0, 0x4f, 0xc3, 0, 0}, lend)

	loan := Instruction{Op: OpInitializeLoan, DaysToFirstRepayment: 30, NumEMIs: 12, DaysForFundraising: 10, Total: 1}.Encode()
	assert.Equal(t, []byte{8, 30, 0, 12, 0, 10, 0, 1, 0, 0, 0, 0, 0, 0, 0}, loan)

	assert.Equal(t, []byte{2}, Instruction{Op: OpWithdrawCollectedLoanFunds}.Encode())
}

func TestDecodeRoundTrip(t *testing.T) {
	tests := []Instruction{
		{Op: OpLendToBorrower, Amount: 5, LenderID: 9},
		{Op: OpWithdrawLenderFreeWalletFunds, LenderID: 3},
		{Op: OpWithdrawCollectedLoanFunds},
		{Op: OpTransferVaultOwnership},
		{Op: OpInitializeLendersLedger},
		{Op: OpInitializeBorrowerAccount},
		{Op: OpInitializeGuarantorAccount},
		{Op: OpPayEMIforLoan, Amount: 100},
		{Op: OpInitializeLoan, DaysToFirstRepayment: 1, NumEMIs: 2, DaysForFundraising: 3, Total: 4},
		{Op: OpAirdropTestCoins},
		{Op: OpTransferAirdropVaultOwnership},
		{Op: OpReturnFundsToLenders, NumAccounts: 7},
		{Op: OpCloseLoanInfoAccount},
	}
	for _, want := range tests {
		t.Run(want.Op.String(), func(t *testing.T) {
			got, err := Decode(want.Encode())
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown opcode", []byte{13}},
		{"truncated lend", []byte{0, 1, 2, 3}},
		{"trailing bytes", []byte{2, 0}},
		{"truncated loan", []byte{8, 1, 0, 2, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			assert.True(t, errcode.Is(err, errcode.InvalidInstruction), "got %v", err)
		})
	}
}

func TestOpcodeNames(t *testing.T) {
	for op := OpLendToBorrower; op <= OpCloseLoanInfoAccount; op++ {
		parsed, err := ParseOpcode(op.String())
		require.NoError(t, err)
		assert.Equal(t, op, parsed)
	}
	_, err := ParseOpcode("nope")
	assert.Error(t, err)
	assert.Equal(t, "opcode(200)", Opcode(200).String())
}

func TestDeploymentCalls(t *testing.T) {
	d, err := NewDeployment(pubkey.Named("p"), pubkey.Named("t"), pubkey.Named("m"),
		pubkey.Named("ledger"), pubkey.Named("vault"), pubkey.Named("airdrop-vault"))
	require.NoError(t, err)

	lender, tok, loan := pubkey.Named("l"), pubkey.Named("lt"), pubkey.Named("loan")
	call := d.Lend(lender, tok, loan, 10, 1)
	require.Len(t, call.Accounts, 6)
	assert.Equal(t, d.Program, call.Program)
	assert.True(t, call.Accounts[0].IsSigner)
	assert.Equal(t, d.Vault, call.Accounts[2].Key)
	assert.False(t, call.Accounts[3].IsWritable)
	assert.Equal(t, d.Ledger, call.Accounts[5].Key)

	w := d.WithdrawLender(lender, tok, 1)
	assert.Equal(t, d.LendingAuthority.Address, w.Accounts[5].Key)

	a := d.Airdrop(lender, pubkey.Named("rec"), tok)
	assert.Equal(t, d.AirdropAuthority.Address, a.Accounts[5].Key)

	rec, err := d.AirdropRecord(lender)
	require.NoError(t, err)
	expected, err := pubkey.CreateWithSeed(lender, "DassiFinanceAirdrop", d.Program)
	require.NoError(t, err)
	assert.Equal(t, expected, rec)
}
