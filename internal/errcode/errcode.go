// Package errcode defines the numeric error codes reported to the host
// runtime and the Error type that carries them.
//
// Program codes are stable and keep their declaration order: a host or client
// decodes them by number. Host-level codes live in the upper 32 bits so they
// never collide with program codes.
package errcode

import (
	"errors"
	"fmt"
)

// Code is an opaque numeric failure reason.
type Code uint64

// Program error codes.
const (
	InvalidInstruction Code = iota
	NotRentExempt
	ExpectedAmountMismatch
	AmountOverflow
	WrongAccountPassed
	BorrowerAccountAlreadyInitialized
	GuarantorAccountAlreadyInitialized
	BorrowerAccountMismatched
	CollectedLoanFundsAlreadyWithdrawn
	LendersStorageDataAlreadyInitialized
	LoanInfoDataAlreadyInitialized
	LoanAlreadyPaid
	BorrowerAlreadyHaveActiveLoan
	SpaceNotEmpty
	BorrowerAlreadyFunded
	AccountMismatched
	UserAlreadyAirdroped
	ExpectedAccountTypeMismatched
	InvalidTokenProgram
	FundraisingPeriodExpired
	InvalidLenderIdInput
	ExpectedLendersAccNumNotMatched
	AdminDoesNotMatched
	DassiVaultAccountDoesNotMatched
	PdaAccountDoesNotMatched
	DataSizeNotMatched
	CapacityExceeded
	LoanAmountExceeded
	LoanNotFunded
	InvalidLoanTerms
	InstructionNotSupported
)

const builtinShift = 32

// Host-level codes.
const (
	InvalidArgument          Code = 2 << builtinShift
	InvalidInstructionData   Code = 3 << builtinShift
	InvalidAccountData       Code = 4 << builtinShift
	InsufficientFunds        Code = 6 << builtinShift
	MissingRequiredSignature Code = 8 << builtinShift
	UninitializedAccount     Code = 10 << builtinShift
	NotEnoughAccountKeys     Code = 11 << builtinShift
	IllegalOwner             Code = 18 << builtinShift
)

var names = map[Code]string{
	InvalidInstruction:                   "InvalidInstruction",
	NotRentExempt:                        "NotRentExempt",
	ExpectedAmountMismatch:               "ExpectedAmountMismatch",
	AmountOverflow:                       "AmountOverflow",
	WrongAccountPassed:                   "WrongAccountPassed",
	BorrowerAccountAlreadyInitialized:    "BorrowerAccountAlreadyInitialized",
	GuarantorAccountAlreadyInitialized:   "GuarantorAccountAlreadyInitialized",
	BorrowerAccountMismatched:            "BorrowerAccountMismatched",
	CollectedLoanFundsAlreadyWithdrawn:   "CollectedLoanFundsAlreadyWithdrawn",
	LendersStorageDataAlreadyInitialized: "LendersStorageDataAlreadyInitialized",
	LoanInfoDataAlreadyInitialized:       "LoanInfoDataAlreadyInitialized",
	LoanAlreadyPaid:                      "LoanAlreadyPaid",
	BorrowerAlreadyHaveActiveLoan:        "BorrowerAlreadyHaveActiveLoan",
	SpaceNotEmpty:                        "SpaceNotEmpty",
	BorrowerAlreadyFunded:                "BorrowerAlreadyFunded",
	AccountMismatched:                    "AccountMismatched",
	UserAlreadyAirdroped:                 "UserAlreadyAirdroped",
	ExpectedAccountTypeMismatched:        "ExpectedAccountTypeMismatched",
	InvalidTokenProgram:                  "InvalidTokenProgram",
	FundraisingPeriodExpired:             "FundraisingPeriodExpired",
	InvalidLenderIdInput:                 "InvalidLenderIdInput",
	ExpectedLendersAccNumNotMatched:      "ExpectedLendersAccNumNotMatched",
	AdminDoesNotMatched:                  "AdminDoesNotMatched",
	DassiVaultAccountDoesNotMatched:      "DassiVaultAccountDoesNotMatched",
	PdaAccountDoesNotMatched:             "PdaAccountDoesNotMatched",
	DataSizeNotMatched:                   "DataSizeNotMatched",
	CapacityExceeded:                     "CapacityExceeded",
	LoanAmountExceeded:                   "LoanAmountExceeded",
	LoanNotFunded:                        "LoanNotFunded",
	InvalidLoanTerms:                     "InvalidLoanTerms",
	InstructionNotSupported:              "InstructionNotSupported",
	InvalidArgument:                      "InvalidArgument",
	InvalidInstructionData:               "InvalidInstructionData",
	InvalidAccountData:                   "InvalidAccountData",
	InsufficientFunds:                    "InsufficientFunds",
	MissingRequiredSignature:             "MissingRequiredSignature",
	UninitializedAccount:                 "UninitializedAccount",
	NotEnoughAccountKeys:                 "NotEnoughAccountKeys",
	IllegalOwner:                         "IllegalOwner",
}

// String returns the symbolic name of the code.
func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	if c >= 1<<builtinShift {
		return fmt.Sprintf("Builtin(%d)", uint64(c)>>builtinShift)
	}
	return fmt.Sprintf("Custom(%d)", uint64(c))
}

// IsBuiltin reports whether the code is a host-level code.
func (c Code) IsBuiltin() bool {
	return c >= 1<<builtinShift
}

// Error is a failure carrying a stable code plus diagnostic context.
// Details never influence matching; only Code does.
type Error struct {
	Code    Code
	Message string
	Details map[string]string
}

// New creates an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// With returns a copy of e with an extra detail attached.
func (e *Error) With(key, value string) *Error {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{Code: e.Code, Message: e.Message, Details: details}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code, so
// errors.Is(err, errcode.New(errcode.AmountOverflow, "")) works on wrapped errors.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the code from err. The second result is false when err
// carries no *Error.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return 0, false
}

// Is reports whether err carries the given code.
// Uses errors.As to handle wrapped errors.
func Is(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

// Parse maps a symbolic name back to its code.
func Parse(name string) (Code, bool) {
	for c, n := range names {
		if n == name {
			return c, true
		}
	}
	return 0, false
}
