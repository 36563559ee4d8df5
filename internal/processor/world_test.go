package processor_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dassi/internal/amount"
	"github.com/roach88/dassi/internal/codec"
	"github.com/roach88/dassi/internal/config"
	"github.com/roach88/dassi/internal/deploy"
	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/instruction"
	"github.com/roach88/dassi/internal/ledger"
	"github.com/roach88/dassi/internal/loan"
	"github.com/roach88/dassi/internal/pubkey"
	"github.com/roach88/dassi/internal/testutil"
	"github.com/roach88/dassi/internal/token"
)

const t0 = 1_700_000_000

func coins(n uint64) uint64 { return n * amount.Unit }

// world is one deployment on a fresh in-memory host.
type world struct {
	t     *testing.T
	ctx   context.Context
	d     *deploy.Deployment
	rt    *host.Runtime
	st    *host.MemoryStore
	clock *testutil.DeterministicClock
	admin pubkey.Pubkey
}

func newWorld(t *testing.T) *world {
	t.Helper()
	cfg := config.MustDefault()
	d, err := deploy.New(cfg, nil)
	require.NoError(t, err)
	return newWorldWith(t, d, d.Processor)
}

// newWorldWith runs deployment d with prog registered as its program.
func newWorldWith(t *testing.T, d *deploy.Deployment, prog host.Program) *world {
	t.Helper()
	st := host.NewMemoryStore()
	clock := testutil.NewDeterministicClock(t0)
	rt := host.NewRuntime(st,
		host.WithClock(clock),
		host.WithIDGenerator(testutil.NewSequenceGenerator("")),
		host.WithJournal(st),
		host.WithRent(d.Config.HostRent()),
		host.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	rt.Register(d.Program, prog)

	w := &world{t: t, ctx: context.Background(), d: d, rt: rt, st: st, clock: clock, admin: testutil.Key("admin")}
	require.NoError(t, d.Genesis(w.ctx, rt, w.admin, coins(10_000)))
	w.ok(d.TransferVaultOwnership(w.admin))
	w.ok(d.TransferAirdropVaultOwnership(w.admin))
	w.ok(d.InitLedger(w.admin))
	return w
}

func (w *world) exec(c host.Call) error {
	_, err := w.rt.Execute(w.ctx, c)
	return err
}

func (w *world) ok(c host.Call) {
	w.t.Helper()
	require.NoError(w.t, w.exec(c))
}

func (w *world) fails(c host.Call, code errcode.Code) {
	w.t.Helper()
	err := w.exec(c)
	require.Error(w.t, err)
	got, ok := errcode.CodeOf(err)
	require.True(w.t, ok, "uncoded error: %v", err)
	assert.Equal(w.t, code, got, "error: %v", err)
}

func (w *world) account(key pubkey.Pubkey) *host.Account {
	w.t.Helper()
	a, err := w.st.GetAccount(w.ctx, key)
	require.NoError(w.t, err)
	return a
}

func (w *world) balance(key pubkey.Pubkey) uint64 {
	w.t.Helper()
	v, err := token.BalanceOf(w.account(key))
	require.NoError(w.t, err)
	return v
}

// user is a participant with a funded token account.
type user struct {
	key   pubkey.Pubkey
	token pubkey.Pubkey
}

func (w *world) user(name string, balance uint64) user {
	w.t.Helper()
	key := testutil.Key(name)
	require.NoError(w.t, w.d.Wallet(w.ctx, w.rt, key, 1_000_000_000))
	tok, err := w.d.TokenAccount(w.ctx, w.rt, key, balance)
	require.NoError(w.t, err)
	return user{key: key, token: tok}
}

// borrower is a user with initialized borrower storage.
type borrower struct {
	user
	storage pubkey.Pubkey
}

func (w *world) borrower(name string) borrower {
	w.t.Helper()
	b := borrower{user: w.user(name, coins(5_000)), storage: testutil.Key(name + "/storage")}
	require.NoError(w.t, w.d.ProgramAccount(w.ctx, w.rt, b.storage, codec.BorrowerSize))
	w.ok(w.d.InitBorrower(b.key, b.storage))
	return b
}

var defaultTerms = instruction.LoanTerms{
	DaysToFirstRepayment: 30,
	NumEMIs:              4,
	DaysForFundraising:   10,
	Total:                coins(2_000),
}

// openLoan creates and initializes a loan for b under terms.
func (w *world) openLoan(b borrower, name string, terms instruction.LoanTerms) pubkey.Pubkey {
	w.t.Helper()
	guarantor := testutil.Key("guarantor")
	key := testutil.Key(name)
	require.NoError(w.t, w.d.ProgramAccount(w.ctx, w.rt, key, codec.LoanSize))
	w.ok(w.d.InitLoan(guarantor, b.key, key, b.storage, terms))
	return key
}

func (w *world) loan(key pubkey.Pubkey) *loan.Loan {
	w.t.Helper()
	l, err := loan.Open(w.account(key).Data)
	require.NoError(w.t, err)
	return l
}

func (w *world) slot(id uint32) codec.LenderSlot {
	w.t.Helper()
	led, err := ledger.Open(w.account(w.d.Ledger).Data)
	require.NoError(w.t, err)
	s, err := led.Read(id)
	require.NoError(w.t, err)
	return s
}

// snapshot returns copies of the data of keys for later comparison.
func (w *world) snapshot(keys ...pubkey.Pubkey) map[pubkey.Pubkey][]byte {
	w.t.Helper()
	out := make(map[pubkey.Pubkey][]byte, len(keys))
	for _, k := range keys {
		out[k] = append([]byte(nil), w.account(k).Data...)
	}
	return out
}

func (w *world) unchanged(before map[pubkey.Pubkey][]byte) {
	w.t.Helper()
	for k, data := range before {
		assert.Equal(w.t, data, w.account(k).Data, "account %s changed", k)
	}
}
