package authority

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/pubkey"
	"github.com/roach88/dassi/internal/token"
)

var (
	programID = pubkey.Named("lending")
	tokenID   = pubkey.Named("token")
	mint      = pubkey.Named("mint")
)

func requireCode(t *testing.T, err error, code errcode.Code) {
	t.Helper()
	require.Error(t, err)
	got, ok := errcode.CodeOf(err)
	require.True(t, ok, "error %v carries no code", err)
	assert.Equal(t, code, got, "error: %v", err)
}

func tokenAccount(name string, owner pubkey.Pubkey, v uint64) *host.Account {
	return &host.Account{Key: pubkey.Named(name), Owner: tokenID, Data: token.NewAccountData(mint, owner, v), IsWritable: true}
}

// skimming takes one unit more than asked on every transfer.
type skimming struct {
	*token.Program
}

func (s skimming) Transfer(src, dst, auth *host.Account, v uint64) error {
	return s.Program.Transfer(src, dst, auth, v+1)
}

func (s skimming) TransferSigned(caller pubkey.Pubkey, seeds [][]byte, src, dst *host.Account, v uint64) error {
	return s.Program.TransferSigned(caller, seeds, src, dst, v+1)
}

func TestDeriveDistinctLabels(t *testing.T) {
	lending, err := Derive(LendingLabel, programID)
	require.NoError(t, err)
	airdrop, err := Derive(AirdropLabel, programID)
	require.NoError(t, err)

	assert.NotEqual(t, lending.Address, airdrop.Address)
	assert.Equal(t, LendingLabel, lending.Label())
	assert.False(t, pubkey.IsOnCurve(lending.Address[:]))
}

func TestCheckVault(t *testing.T) {
	a, err := Derive(LendingLabel, programID)
	require.NoError(t, err)

	require.NoError(t, a.CheckVault(tokenAccount("vault", a.Address, 0)))
	requireCode(t, a.CheckVault(tokenAccount("vault", pubkey.Named("x"), 0)), errcode.DassiVaultAccountDoesNotMatched)
	requireCode(t, a.CheckVault(&host.Account{Key: pubkey.Named("junk")}), errcode.DassiVaultAccountDoesNotMatched)
}

func TestCheckAccount(t *testing.T) {
	a, err := Derive(LendingLabel, programID)
	require.NoError(t, err)

	require.NoError(t, a.CheckAccount(&host.Account{Key: a.Address}))
	requireCode(t, a.CheckAccount(&host.Account{Key: pubkey.Named("x")}), errcode.PdaAccountDoesNotMatched)
}

func TestDepositAndRelease(t *testing.T) {
	svc := token.NewProgram(tokenID)
	a, err := Derive(LendingLabel, programID)
	require.NoError(t, err)

	alice := &host.Account{Key: pubkey.Named("alice"), IsSigner: true}
	aliceToken := tokenAccount("alice-token", alice.Key, 100)
	vault := tokenAccount("vault", a.Address, 0)

	require.NoError(t, a.Deposit(svc, aliceToken, vault, alice, 70))
	require.NoError(t, a.Release(svc, vault, aliceToken, 20))

	v, err := token.BalanceOf(vault)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), v)
}

func TestDeltaMismatch(t *testing.T) {
	svc := skimming{token.NewProgram(tokenID)}
	a, err := Derive(LendingLabel, programID)
	require.NoError(t, err)

	alice := &host.Account{Key: pubkey.Named("alice"), IsSigner: true}
	aliceToken := tokenAccount("alice-token", alice.Key, 100)
	vault := tokenAccount("vault", a.Address, 50)

	requireCode(t, a.Deposit(svc, aliceToken, vault, alice, 10), errcode.ExpectedAmountMismatch)
	requireCode(t, a.Release(svc, vault, aliceToken, 10), errcode.ExpectedAmountMismatch)
}

func TestTakeOwnership(t *testing.T) {
	svc := token.NewProgram(tokenID)
	a, err := Derive(AirdropLabel, programID)
	require.NoError(t, err)

	admin := &host.Account{Key: pubkey.Named("admin"), IsSigner: true}
	vault := tokenAccount("airdrop-vault", admin.Key, 0)

	require.NoError(t, a.TakeOwnership(svc, vault, admin))
	require.NoError(t, a.CheckVault(vault))
}
