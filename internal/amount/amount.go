// Package amount holds the value scale and the checked arithmetic used for
// every balance computation.
//
// Amounts are unsigned integers in base units of 10^-9 coin. Every addition,
// subtraction and multiplication is checked; wrap-around is always an
// AmountOverflow error, never a silent result.
package amount

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"lukechampine.com/uint128"

	"github.com/roach88/dassi/internal/errcode"
)

const (
	// Decimals is the number of fractional digits in a coin.
	Decimals = 9
	// Unit is one whole coin in base units.
	Unit uint64 = 1_000_000_000
)

// Add returns a+b or AmountOverflow.
func Add(a, b uint64) (uint64, error) {
	s := a + b
	if s < a {
		return 0, errcode.New(errcode.AmountOverflow, "%d + %d overflows", a, b)
	}
	return s, nil
}

// Sub returns a-b or AmountOverflow when b > a.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, errcode.New(errcode.AmountOverflow, "%d - %d underflows", a, b)
	}
	return a - b, nil
}

// Mul returns a*b or AmountOverflow.
func Mul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	p := a * b
	if p/b != a {
		return 0, errcode.New(errcode.AmountOverflow, "%d * %d overflows", a, b)
	}
	return p, nil
}

// Div returns floor(a/b). Division by zero is AmountOverflow.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, errcode.New(errcode.AmountOverflow, "%d / 0", a)
	}
	return a / b, nil
}

// Add128 adds a 64-bit amount to a 128-bit accumulator.
func Add128(acc uint128.Uint128, v uint64) (uint128.Uint128, error) {
	s := acc.AddWrap64(v)
	if s.Cmp(acc) < 0 {
		return uint128.Zero, errcode.New(errcode.AmountOverflow, "%s + %d overflows u128", acc, v)
	}
	return s, nil
}

// Decimal converts base units to a coin-denominated decimal.
func Decimal(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), -Decimals)
}

// Format renders base units as whole coins, e.g. 12500000000 -> "12.5".
func Format(v uint64) string {
	return Decimal(v).String()
}

// Format128 renders a 128-bit accumulator as whole coins.
func Format128(v uint128.Uint128) string {
	return decimal.NewFromBigInt(v.Big(), -Decimals).String()
}

// Parse reads a coin-denominated decimal ("12.5") into base units.
// More than 9 fractional digits, negative values and values beyond u64 are rejected.
func Parse(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("parse amount %q: negative", s)
	}
	units := d.Shift(Decimals)
	if !units.IsInteger() {
		return 0, fmt.Errorf("parse amount %q: more than %d decimal places", s, Decimals)
	}
	bi := units.BigInt()
	if !bi.IsUint64() {
		return 0, errcode.New(errcode.AmountOverflow, "amount %q exceeds u64", s)
	}
	return bi.Uint64(), nil
}

// Coins converts a whole number of coins to base units.
func Coins(n uint64) (uint64, error) {
	return Mul(n, Unit)
}
