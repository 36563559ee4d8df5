package deploy

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/roach88/dassi/internal/amount"
	"github.com/roach88/dassi/internal/config"
	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/instruction"
	"github.com/roach88/dassi/internal/pubkey"
)

// Args are named operation arguments in text form. Identities accept a
// base58 key or a name; amounts are whole coins ("12.5").
type Args map[string]string

// Key resolves the identity argument name.
func (a Args) Key(name string) (pubkey.Pubkey, error) {
	s, ok := a[name]
	if !ok || s == "" {
		return pubkey.Zero, fmt.Errorf("missing argument %q", name)
	}
	return config.ResolveKey(s), nil
}

// Amount parses the coin amount argument name into base units.
func (a Args) Amount(name string) (uint64, error) {
	s, ok := a[name]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", name)
	}
	return amount.Parse(s)
}

// Uint parses the integer argument name, which must fit in bits.
func (a Args) Uint(name string, bits int) (uint64, error) {
	s, ok := a[name]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", name)
	}
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("argument %q: %w", name, err)
	}
	return v, nil
}

// tokenOf returns the token account argument, defaulting to the derived
// token account of owner.
func (d *Deployment) tokenOf(args Args, owner pubkey.Pubkey) (pubkey.Pubkey, error) {
	if _, ok := args["token"]; ok {
		return args.Key("token")
	}
	return d.TokenAddress(owner)
}

// opArgs lists the required arguments of every operation.
var opArgs = map[instruction.Opcode][]string{
	instruction.OpLendToBorrower:                {"lender", "loan", "amount", "id"},
	instruction.OpWithdrawLenderFreeWalletFunds: {"lender", "id"},
	instruction.OpWithdrawCollectedLoanFunds:    {"borrower", "loan"},
	instruction.OpTransferVaultOwnership:        {"initializer"},
	instruction.OpInitializeLendersLedger:       {"payer"},
	instruction.OpInitializeBorrowerAccount:     {"borrower", "storage"},
	instruction.OpInitializeGuarantorAccount:    {"guarantor", "storage"},
	instruction.OpPayEMIforLoan:                 {"borrower", "storage", "loan", "amount"},
	instruction.OpInitializeLoan:                {"guarantor", "borrower", "loan", "storage", "days_to_first_repayment", "num_emis", "days_for_fundraising", "total"},
	instruction.OpAirdropTestCoins:              {"user"},
	instruction.OpTransferAirdropVaultOwnership: {"initializer"},
	instruction.OpReturnFundsToLenders:          {"caller", "accounts"},
	instruction.OpCloseLoanInfoAccount:          {"caller", "loan"},
}

// Operations returns every operation name in opcode order.
func Operations() []string {
	ops := make([]instruction.Opcode, 0, len(opArgs))
	for op := range opArgs {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = op.String()
	}
	return names
}

// OperationArgs returns the required argument names of op, sorted.
func OperationArgs(op string) ([]string, error) {
	code, err := instruction.ParseOpcode(op)
	if err != nil {
		return nil, err
	}
	names := append([]string(nil), opArgs[code]...)
	sort.Strings(names)
	return names, nil
}

// BuildCall assembles the call for the named operation.
func (d *Deployment) BuildCall(op string, args Args) (host.Call, error) {
	code, err := instruction.ParseOpcode(op)
	if err != nil {
		return host.Call{}, err
	}
	for _, name := range opArgs[code] {
		if _, ok := args[name]; !ok {
			return host.Call{}, fmt.Errorf("%s: missing argument %q", op, name)
		}
	}
	call, err := d.build(code, args)
	if err != nil {
		return host.Call{}, fmt.Errorf("%s: %w", op, err)
	}
	return call, nil
}

func (d *Deployment) build(op instruction.Opcode, args Args) (host.Call, error) {
	// Every required argument is present, so identity lookups cannot fail.
	key := func(name string) pubkey.Pubkey {
		k, _ := args.Key(name)
		return k
	}

	switch op {
	case instruction.OpLendToBorrower:
		lender := key("lender")
		tok, err := d.tokenOf(args, lender)
		if err != nil {
			return host.Call{}, err
		}
		v, err := args.Amount("amount")
		if err != nil {
			return host.Call{}, err
		}
		id, err := args.Uint("id", 32)
		if err != nil {
			return host.Call{}, err
		}
		return d.Lend(lender, tok, key("loan"), v, uint32(id)), nil

	case instruction.OpWithdrawLenderFreeWalletFunds:
		lender := key("lender")
		tok, err := d.tokenOf(args, lender)
		if err != nil {
			return host.Call{}, err
		}
		id, err := args.Uint("id", 32)
		if err != nil {
			return host.Call{}, err
		}
		return d.WithdrawLender(lender, tok, uint32(id)), nil

	case instruction.OpWithdrawCollectedLoanFunds:
		borrower := key("borrower")
		tok, err := d.tokenOf(args, borrower)
		if err != nil {
			return host.Call{}, err
		}
		return d.WithdrawCollected(borrower, tok, key("loan")), nil

	case instruction.OpTransferVaultOwnership:
		return d.TransferVaultOwnership(key("initializer")), nil

	case instruction.OpTransferAirdropVaultOwnership:
		return d.TransferAirdropVaultOwnership(key("initializer")), nil

	case instruction.OpInitializeLendersLedger:
		return d.InitLedger(key("payer")), nil

	case instruction.OpInitializeBorrowerAccount:
		return d.InitBorrower(key("borrower"), key("storage")), nil

	case instruction.OpInitializeGuarantorAccount:
		return d.InitGuarantor(key("guarantor"), key("storage")), nil

	case instruction.OpPayEMIforLoan:
		borrower := key("borrower")
		tok, err := d.tokenOf(args, borrower)
		if err != nil {
			return host.Call{}, err
		}
		v, err := args.Amount("amount")
		if err != nil {
			return host.Call{}, err
		}
		return d.PayEMI(borrower, tok, key("storage"), key("loan"), v), nil

	case instruction.OpInitializeLoan:
		var terms instruction.LoanTerms
		for _, f := range []struct {
			name string
			dst  *uint16
		}{
			{"days_to_first_repayment", &terms.DaysToFirstRepayment},
			{"num_emis", &terms.NumEMIs},
			{"days_for_fundraising", &terms.DaysForFundraising},
		} {
			v, err := args.Uint(f.name, 16)
			if err != nil {
				return host.Call{}, err
			}
			*f.dst = uint16(v)
		}
		total, err := args.Amount("total")
		if err != nil {
			return host.Call{}, err
		}
		terms.Total = total
		return d.InitLoan(key("guarantor"), key("borrower"), key("loan"), key("storage"), terms), nil

	case instruction.OpAirdropTestCoins:
		user := key("user")
		tok, err := d.tokenOf(args, user)
		if err != nil {
			return host.Call{}, err
		}
		record, err := d.AirdropRecord(user)
		if err != nil {
			return host.Call{}, err
		}
		if _, ok := args["record"]; ok {
			record = key("record")
		}
		return d.Airdrop(user, record, tok), nil

	case instruction.OpReturnFundsToLenders:
		n, err := args.Uint("accounts", 16)
		if err != nil {
			return host.Call{}, err
		}
		return d.ReturnFunds(key("caller"), uint16(n)), nil

	case instruction.OpCloseLoanInfoAccount:
		return d.CloseLoan(key("caller"), key("loan")), nil
	}
	return host.Call{}, fmt.Errorf("operation %s has no call builder", op)
}
