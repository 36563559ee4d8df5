package amount

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/roach88/dassi/internal/errcode"
)

func TestCheckedArithmetic(t *testing.T) {
	s, err := Add(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), s)

	_, err = Add(math.MaxUint64, 1)
	assert.True(t, errcode.Is(err, errcode.AmountOverflow))

	d, err := Sub(5, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), d)

	_, err = Sub(4, 5)
	assert.True(t, errcode.Is(err, errcode.AmountOverflow))

	p, err := Mul(0, math.MaxUint64)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), p)

	_, err = Mul(math.MaxUint64/2+1, 2)
	assert.True(t, errcode.Is(err, errcode.AmountOverflow))

	q, err := Div(7, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), q)

	_, err = Div(7, 0)
	assert.True(t, errcode.Is(err, errcode.AmountOverflow))
}

func TestAdd128(t *testing.T) {
	acc, err := Add128(uint128.From64(math.MaxUint64), 1)
	require.NoError(t, err)
	assert.Equal(t, uint128.New(0, 1), acc)

	_, err = Add128(uint128.Max, 1)
	assert.True(t, errcode.Is(err, errcode.AmountOverflow))
}

func TestFormatAndParse(t *testing.T) {
	tests := []struct {
		text  string
		units uint64
	}{
		{"0", 0},
		{"1", Unit},
		{"12.5", 12_500_000_000},
		{"0.000000001", 1},
		{"500", 500 * Unit},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := Parse(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.units, got)
			assert.Equal(t, tt.text, Format(tt.units))
		})
	}

	assert.Equal(t, "18446744073.709551615", Format(math.MaxUint64))
	assert.Equal(t, "18446744073.709551616", Format128(uint128.From64(math.MaxUint64).Add64(1)))
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{"abc", "-1", "0.0000000001", "18446744073.709551616"} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			assert.Error(t, err)
		})
	}
}

func TestCoins(t *testing.T) {
	v, err := Coins(10)
	require.NoError(t, err)
	assert.Equal(t, 10*Unit, v)
}
