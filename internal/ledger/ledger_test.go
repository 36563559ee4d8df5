package ledger

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"github.com/roach88/dassi/internal/codec"
	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/pubkey"
)

func newTestLedger(t *testing.T) (*Ledger, []byte) {
	t.Helper()
	buf := make([]byte, codec.LedgerSize)
	require.NoError(t, Initialize(buf))
	l, err := Open(buf)
	require.NoError(t, err)
	return l, buf
}

func requireCode(t *testing.T, err error, code errcode.Code) {
	t.Helper()
	require.Error(t, err)
	got, ok := errcode.CodeOf(err)
	require.True(t, ok, "error %v carries no code", err)
	assert.Equal(t, code, got, "error: %v", err)
}

func TestInitialize(t *testing.T) {
	buf := make([]byte, codec.LedgerSize)
	require.NoError(t, Initialize(buf))
	assert.Equal(t, []byte{3, 1}, buf[:2])

	requireCode(t, Initialize(buf), errcode.LendersStorageDataAlreadyInitialized)
	requireCode(t, Initialize(make([]byte, 10)), errcode.DataSizeNotMatched)
}

func TestOpenValidatesHeader(t *testing.T) {
	_, err := Open(make([]byte, codec.LedgerSize-1))
	requireCode(t, err, errcode.DataSizeNotMatched)

	_, err = Open(make([]byte, codec.LedgerSize))
	requireCode(t, err, errcode.ExpectedAccountTypeMismatched)

	buf := make([]byte, codec.LedgerSize)
	buf[0], buf[1] = codec.TagLendersLedger, 2
	_, err = Open(buf)
	requireCode(t, err, errcode.ExpectedLendersAccNumNotMatched)
}

func TestIDBoundary(t *testing.T) {
	l, _ := newTestLedger(t)
	alice := pubkey.Named("alice")

	require.NoError(t, l.RecordLending(49_999, alice, 10))
	s, err := l.Read(49_999)
	require.NoError(t, err)
	assert.True(t, s.Active)

	requireCode(t, l.RecordLending(50_000, alice, 10), errcode.InvalidLenderIdInput)
	_, err = l.Read(50_000)
	requireCode(t, err, errcode.InvalidLenderIdInput)
	requireCode(t, l.Write(math.MaxUint32, codec.LenderSlot{}), errcode.InvalidLenderIdInput)
}

func TestActivateBindsPermanently(t *testing.T) {
	alice, bob := pubkey.Named("alice"), pubkey.Named("bob")

	s, err := Activate(codec.LenderSlot{}, alice)
	require.NoError(t, err)
	assert.Equal(t, alice, s.Lender)

	_, err = Activate(s, alice)
	require.NoError(t, err)

	_, err = Activate(s, bob)
	requireCode(t, err, errcode.InvalidLenderIdInput)
}

func TestStagedUntilCommit(t *testing.T) {
	l, buf := newTestLedger(t)
	alice := pubkey.Named("alice")

	require.NoError(t, l.RecordLending(7, alice, 100))
	assert.Equal(t, 1, l.Staged())

	raw, err := codec.UnpackLenderSlot(codec.LenderSlotSpan(buf, 7))
	require.NoError(t, err)
	assert.False(t, raw.Active, "buffer must not change before commit")

	require.NoError(t, l.Commit())
	assert.Equal(t, 0, l.Staged())

	raw, err = codec.UnpackLenderSlot(codec.LenderSlotSpan(buf, 7))
	require.NoError(t, err)
	assert.True(t, raw.Active)
	assert.Equal(t, alice, raw.Lender)
	assert.Equal(t, uint128.From64(100), raw.LifetimeLent)
	assert.Equal(t, uint64(100), raw.NetPrincipal)
}

func TestCreditAndWithdraw(t *testing.T) {
	l, _ := newTestLedger(t)
	alice, bob := pubkey.Named("alice"), pubkey.Named("bob")

	require.NoError(t, l.RecordLending(1, alice, 800))
	require.NoError(t, l.CreditShare(1, alice, 33))
	require.NoError(t, l.CreditShare(1, alice, 33))

	s, err := l.Read(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(66), s.Withdrawable)
	assert.Equal(t, uint64(866), s.NetPrincipal)
	assert.Equal(t, uint128.From64(866), s.LifetimeLent)

	_, err = l.Withdraw(1, bob)
	requireCode(t, err, errcode.InvalidLenderIdInput)

	out, err := l.Withdraw(1, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(66), out)

	out, err = l.Withdraw(1, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), out)

	s, err = l.Read(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(800), s.NetPrincipal)
	assert.Equal(t, uint128.From64(866), s.LifetimeLent)
}

func TestWithdrawInactiveSlot(t *testing.T) {
	l, _ := newTestLedger(t)
	_, err := l.Withdraw(3, pubkey.Named("alice"))
	requireCode(t, err, errcode.InvalidLenderIdInput)
}

func TestCreditShareRequiresBinding(t *testing.T) {
	l, _ := newTestLedger(t)
	requireCode(t, l.CreditShare(2, pubkey.Named("alice"), 1), errcode.InvalidLenderIdInput)
}

func TestOverflowLeavesSlotUnchanged(t *testing.T) {
	l, _ := newTestLedger(t)
	alice := pubkey.Named("alice")

	require.NoError(t, l.RecordLending(0, alice, math.MaxUint64))
	requireCode(t, l.RecordLending(0, alice, 1), errcode.AmountOverflow)

	s, err := l.Read(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), s.NetPrincipal)
}
