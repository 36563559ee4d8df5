package errcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramCodesKeepDeclarationOrder(t *testing.T) {
	tests := []struct {
		code Code
		want uint64
	}{
		{InvalidInstruction, 0},
		{NotRentExempt, 1},
		{ExpectedAmountMismatch, 2},
		{AmountOverflow, 3},
		{LoanAlreadyPaid, 11},
		{BorrowerAlreadyFunded, 14},
		{FundraisingPeriodExpired, 19},
		{InvalidLenderIdInput, 20},
		{DassiVaultAccountDoesNotMatched, 23},
		{PdaAccountDoesNotMatched, 24},
		{DataSizeNotMatched, 25},
		{CapacityExceeded, 26},
		{InstructionNotSupported, 30},
	}

	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, uint64(tt.code))
			assert.False(t, tt.code.IsBuiltin())
		})
	}
}

func TestBuiltinCodesDoNotCollide(t *testing.T) {
	assert.True(t, MissingRequiredSignature.IsBuiltin())
	assert.Equal(t, uint64(8)<<32, uint64(MissingRequiredSignature))
	assert.Equal(t, "MissingRequiredSignature", MissingRequiredSignature.String())
	assert.Equal(t, "Builtin(99)", Code(99<<32).String())
	assert.Equal(t, "Custom(77)", Code(77).String())
}

func TestIsWrapped(t *testing.T) {
	base := New(AmountOverflow, "lent %d", 5)
	wrapped := fmt.Errorf("lend: %w", base)

	assert.True(t, Is(wrapped, AmountOverflow))
	assert.False(t, Is(wrapped, LoanAlreadyPaid))
	assert.True(t, errors.Is(wrapped, New(AmountOverflow, "")))
	assert.False(t, errors.Is(wrapped, New(CapacityExceeded, "")))

	code, ok := CodeOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, AmountOverflow, code)

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)
	assert.False(t, Is(nil, InvalidInstruction))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "LoanNotFunded", (&Error{Code: LoanNotFunded}).Error())
	assert.Equal(t, "CapacityExceeded: log full", New(CapacityExceeded, "log full").Error())
}

func TestWithCopiesDetails(t *testing.T) {
	e := New(InvalidLenderIdInput, "bad id")
	e2 := e.With("lender_id", "7")

	assert.Nil(t, e.Details)
	assert.Equal(t, "7", e2.Details["lender_id"])
	assert.Equal(t, e.Code, e2.Code)
}

func TestParse(t *testing.T) {
	c, ok := Parse("LoanAmountExceeded")
	require.True(t, ok)
	assert.Equal(t, LoanAmountExceeded, c)

	c, ok = Parse("IllegalOwner")
	require.True(t, ok)
	assert.Equal(t, IllegalOwner, c)

	_, ok = Parse("NoSuchCode")
	assert.False(t, ok)
}
