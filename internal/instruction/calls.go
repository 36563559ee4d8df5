package instruction

import (
	"github.com/roach88/dassi/internal/authority"
	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/pubkey"
)

// Deployment names the fixed accounts of one program deployment and builds
// calls with the account order each operation expects.
type Deployment struct {
	Program          pubkey.Pubkey
	TokenProgram     pubkey.Pubkey
	Mint             pubkey.Pubkey
	Ledger           pubkey.Pubkey
	Vault            pubkey.Pubkey
	AirdropVault     pubkey.Pubkey
	LendingAuthority authority.Authority
	AirdropAuthority authority.Authority
}

// NewDeployment derives both vault authorities for program.
func NewDeployment(program, tokenProgram, mint, ledger, vault, airdropVault pubkey.Pubkey) (Deployment, error) {
	lending, err := authority.Derive(authority.LendingLabel, program)
	if err != nil {
		return Deployment{}, err
	}
	airdrop, err := authority.Derive(authority.AirdropLabel, program)
	if err != nil {
		return Deployment{}, err
	}
	return Deployment{
		Program:          program,
		TokenProgram:     tokenProgram,
		Mint:             mint,
		Ledger:           ledger,
		Vault:            vault,
		AirdropVault:     airdropVault,
		LendingAuthority: lending,
		AirdropAuthority: airdrop,
	}, nil
}

// AirdropRecord is the per-user airdrop counter address.
func (d Deployment) AirdropRecord(user pubkey.Pubkey) (pubkey.Pubkey, error) {
	return pubkey.CreateWithSeed(user, authority.AirdropLabel, d.Program)
}

func (d Deployment) call(ins Instruction, metas ...host.AccountMeta) host.Call {
	return host.Call{Program: d.Program, Accounts: metas, Data: ins.Encode()}
}

func (d Deployment) Lend(lender, lenderToken, loan pubkey.Pubkey, amount uint64, lenderID uint32) host.Call {
	return d.call(Instruction{Op: OpLendToBorrower, Amount: amount, LenderID: lenderID},
		host.Signer(lender),
		host.Writable(lenderToken),
		host.Writable(d.Vault),
		host.Readonly(d.TokenProgram),
		host.Writable(loan),
		host.Writable(d.Ledger),
	)
}

func (d Deployment) WithdrawLender(lender, lenderToken pubkey.Pubkey, lenderID uint32) host.Call {
	return d.call(Instruction{Op: OpWithdrawLenderFreeWalletFunds, LenderID: lenderID},
		host.Signer(lender),
		host.Writable(lenderToken),
		host.Writable(d.Vault),
		host.Writable(d.Ledger),
		host.Readonly(d.TokenProgram),
		host.Readonly(d.LendingAuthority.Address),
	)
}

func (d Deployment) WithdrawCollected(borrower, borrowerToken, loan pubkey.Pubkey) host.Call {
	return d.call(Instruction{Op: OpWithdrawCollectedLoanFunds},
		host.Signer(borrower),
		host.Writable(borrowerToken),
		host.Writable(d.Vault),
		host.Readonly(d.TokenProgram),
		host.Writable(loan),
		host.Readonly(d.LendingAuthority.Address),
	)
}

func (d Deployment) TransferVaultOwnership(initializer pubkey.Pubkey) host.Call {
	return d.call(Instruction{Op: OpTransferVaultOwnership},
		host.Signer(initializer),
		host.Writable(d.Vault),
		host.Readonly(d.TokenProgram),
	)
}

func (d Deployment) InitLedger(payer pubkey.Pubkey) host.Call {
	return d.call(Instruction{Op: OpInitializeLendersLedger},
		host.Signer(payer),
		host.Writable(d.Ledger),
	)
}

func (d Deployment) InitBorrower(borrower, storage pubkey.Pubkey) host.Call {
	return d.call(Instruction{Op: OpInitializeBorrowerAccount},
		host.Signer(borrower),
		host.Writable(storage),
	)
}

func (d Deployment) InitGuarantor(guarantor, storage pubkey.Pubkey) host.Call {
	return d.call(Instruction{Op: OpInitializeGuarantorAccount},
		host.Signer(guarantor),
		host.Writable(storage),
	)
}

func (d Deployment) PayEMI(borrower, borrowerToken, borrowerStorage, loan pubkey.Pubkey, amount uint64) host.Call {
	return d.call(Instruction{Op: OpPayEMIforLoan, Amount: amount},
		host.Signer(borrower),
		host.Writable(borrowerToken),
		host.Writable(d.Vault),
		host.Writable(borrowerStorage),
		host.Readonly(d.TokenProgram),
		host.Writable(loan),
		host.Writable(d.Ledger),
	)
}

// LoanTerms are the InitializeLoan parameters.
type LoanTerms struct {
	DaysToFirstRepayment uint16
	NumEMIs              uint16
	DaysForFundraising   uint16
	Total                uint64
}

func (d Deployment) InitLoan(guarantor, borrower, loan, borrowerStorage pubkey.Pubkey, t LoanTerms) host.Call {
	return d.call(Instruction{
		Op:                   OpInitializeLoan,
		DaysToFirstRepayment: t.DaysToFirstRepayment,
		NumEMIs:              t.NumEMIs,
		DaysForFundraising:   t.DaysForFundraising,
		Total:                t.Total,
	},
		host.Signer(guarantor),
		host.Readonly(borrower),
		host.Writable(loan),
		host.Writable(borrowerStorage),
	)
}

func (d Deployment) Airdrop(user, record, userToken pubkey.Pubkey) host.Call {
	return d.call(Instruction{Op: OpAirdropTestCoins},
		host.Signer(user),
		host.Writable(record),
		host.Writable(userToken),
		host.Writable(d.AirdropVault),
		host.Readonly(d.TokenProgram),
		host.Readonly(d.AirdropAuthority.Address),
	)
}

func (d Deployment) TransferAirdropVaultOwnership(initializer pubkey.Pubkey) host.Call {
	return d.call(Instruction{Op: OpTransferAirdropVaultOwnership},
		host.Signer(initializer),
		host.Writable(d.AirdropVault),
		host.Readonly(d.TokenProgram),
	)
}

func (d Deployment) ReturnFunds(caller pubkey.Pubkey, numAccounts uint16) host.Call {
	return d.call(Instruction{Op: OpReturnFundsToLenders, NumAccounts: numAccounts},
		host.Signer(caller),
	)
}

func (d Deployment) CloseLoan(caller, loan pubkey.Pubkey) host.Call {
	return d.call(Instruction{Op: OpCloseLoanInfoAccount},
		host.Signer(caller),
		host.Writable(loan),
	)
}
