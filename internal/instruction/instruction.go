// Package instruction decodes and encodes the call payload: one opcode byte
// followed by fixed-width little-endian fields with no padding.
package instruction

import (
	"encoding/binary"
	"fmt"

	"github.com/roach88/dassi/internal/errcode"
)

// Opcode selects the operation.
type Opcode uint8

const (
	OpLendToBorrower Opcode = iota
	OpWithdrawLenderFreeWalletFunds
	OpWithdrawCollectedLoanFunds
	OpTransferVaultOwnership
	OpInitializeLendersLedger
	OpInitializeBorrowerAccount
	OpInitializeGuarantorAccount
	OpPayEMIforLoan
	OpInitializeLoan
	OpAirdropTestCoins
	OpTransferAirdropVaultOwnership
	OpReturnFundsToLenders
	OpCloseLoanInfoAccount
)

var opNames = [...]string{
	OpLendToBorrower:                "lend",
	OpWithdrawLenderFreeWalletFunds: "withdraw_lender",
	OpWithdrawCollectedLoanFunds:    "withdraw_collected",
	OpTransferVaultOwnership:        "transfer_vault",
	OpInitializeLendersLedger:       "init_ledger",
	OpInitializeBorrowerAccount:     "init_borrower",
	OpInitializeGuarantorAccount:    "init_guarantor",
	OpPayEMIforLoan:                 "pay_emi",
	OpInitializeLoan:                "init_loan",
	OpAirdropTestCoins:              "airdrop",
	OpTransferAirdropVaultOwnership: "transfer_airdrop_vault",
	OpReturnFundsToLenders:          "return_funds",
	OpCloseLoanInfoAccount:          "close_loan",
}

func (o Opcode) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("opcode(%d)", uint8(o))
}

// ParseOpcode maps an operation name back to its opcode.
func ParseOpcode(name string) (Opcode, error) {
	for i, n := range opNames {
		if n == name {
			return Opcode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", name)
}

// Instruction is a decoded call payload. Only the fields of Op are meaningful.
type Instruction struct {
	Op Opcode

	Amount   uint64
	LenderID uint32

	DaysToFirstRepayment uint16
	NumEMIs              uint16
	DaysForFundraising   uint16
	Total                uint64

	NumAccounts uint16
}

// payloadSize is the field byte count after the opcode.
func payloadSize(op Opcode) (int, bool) {
	switch op {
	case OpLendToBorrower:
		return 8 + 4, true
	case OpWithdrawLenderFreeWalletFunds:
		return 4, true
	case OpPayEMIforLoan:
		return 8, true
	case OpInitializeLoan:
		return 2 + 2 + 2 + 8, true
	case OpReturnFundsToLenders:
		return 2, true
	case OpWithdrawCollectedLoanFunds, OpTransferVaultOwnership, OpInitializeLendersLedger,
		OpInitializeBorrowerAccount, OpInitializeGuarantorAccount, OpAirdropTestCoins,
		OpTransferAirdropVaultOwnership, OpCloseLoanInfoAccount:
		return 0, true
	}
	return 0, false
}

// Decode parses data. Unknown opcodes, truncated fields and trailing bytes
// are InvalidInstruction.
func Decode(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return Instruction{}, errcode.New(errcode.InvalidInstruction, "empty instruction")
	}
	ins := Instruction{Op: Opcode(data[0])}
	size, ok := payloadSize(ins.Op)
	if !ok {
		return Instruction{}, errcode.New(errcode.InvalidInstruction, "unknown opcode %d", data[0])
	}
	rest := data[1:]
	if len(rest) != size {
		return Instruction{}, errcode.New(errcode.InvalidInstruction, "%s expects %d payload bytes, got %d", ins.Op, size, len(rest))
	}
	le := binary.LittleEndian
	switch ins.Op {
	case OpLendToBorrower:
		ins.Amount = le.Uint64(rest[0:8])
		ins.LenderID = le.Uint32(rest[8:12])
	case OpWithdrawLenderFreeWalletFunds:
		ins.LenderID = le.Uint32(rest[0:4])
	case OpPayEMIforLoan:
		ins.Amount = le.Uint64(rest[0:8])
	case OpInitializeLoan:
		ins.DaysToFirstRepayment = le.Uint16(rest[0:2])
		ins.NumEMIs = le.Uint16(rest[2:4])
		ins.DaysForFundraising = le.Uint16(rest[4:6])
		ins.Total = le.Uint64(rest[6:14])
	case OpReturnFundsToLenders:
		ins.NumAccounts = le.Uint16(rest[0:2])
	}
	return ins, nil
}

// Encode serializes the instruction.
func (ins Instruction) Encode() []byte {
	size, _ := payloadSize(ins.Op)
	out := make([]byte, 1+size)
	out[0] = byte(ins.Op)
	rest := out[1:]
	le := binary.LittleEndian
	switch ins.Op {
	case OpLendToBorrower:
		le.PutUint64(rest[0:8], ins.Amount)
		le.PutUint32(rest[8:12], ins.LenderID)
	case OpWithdrawLenderFreeWalletFunds:
		le.PutUint32(rest[0:4], ins.LenderID)
	case OpPayEMIforLoan:
		le.PutUint64(rest[0:8], ins.Amount)
	case OpInitializeLoan:
		le.PutUint16(rest[0:2], ins.DaysToFirstRepayment)
		le.PutUint16(rest[2:4], ins.NumEMIs)
		le.PutUint16(rest[4:6], ins.DaysForFundraising)
		le.PutUint64(rest[6:14], ins.Total)
	case OpReturnFundsToLenders:
		le.PutUint16(rest[0:2], ins.NumAccounts)
	}
	return out
}
