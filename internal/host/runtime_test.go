package host

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/pubkey"
)

// programFunc adapts a function to Program.
type programFunc func(ctx context.Context, inv *Invocation) error

func (f programFunc) Process(ctx context.Context, inv *Invocation) error { return f(ctx, inv) }

// counterIDs numbers entries without touching wall time.
type counterIDs struct{ n int }

func (g *counterIDs) Generate() string {
	g.n++
	return string(rune('a' + g.n - 1))
}

var (
	testProgram = pubkey.Named("program")
	keyA        = pubkey.Named("a")
	keyB        = pubkey.Named("b")
)

func newTestRuntime(t *testing.T, prog Program) (*Runtime, *MemoryStore) {
	t.Helper()
	st := NewMemoryStore()
	rt := NewRuntime(st,
		WithClock(FixedClock(1_000)),
		WithIDGenerator(&counterIDs{}),
		WithJournal(st),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	rt.Register(testProgram, prog)
	require.NoError(t, rt.Put(context.Background(), &Account{Key: keyA, Owner: testProgram, Data: []byte{0, 0}}))
	return rt, st
}

// writeFirstByte sets byte 0 of account 0 to the first data byte.
var writeFirstByte = programFunc(func(_ context.Context, inv *Invocation) error {
	a, err := inv.Accounts.Get(0)
	if err != nil {
		return err
	}
	a.Data[0] = inv.Data[0]
	return nil
})

func TestExecute_PersistsOnSuccess(t *testing.T) {
	rt, st := newTestRuntime(t, writeFirstByte)
	ctx := context.Background()

	rec, err := rt.Execute(ctx, Call{Program: testProgram, Accounts: []AccountMeta{Writable(keyA)}, Data: []byte{7}})
	require.NoError(t, err)
	assert.Equal(t, int64(1_000), rec.Now)
	assert.Equal(t, []pubkey.Pubkey{keyA}, rec.Changed)

	got, err := st.GetAccount(ctx, keyA)
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 0}, got.Data)
	assert.False(t, got.IsWritable)
}

func TestExecute_DiscardsOnFailure(t *testing.T) {
	failing := programFunc(func(ctx context.Context, inv *Invocation) error {
		if err := writeFirstByte(ctx, inv); err != nil {
			return err
		}
		return errcode.New(errcode.LoanAlreadyPaid, "after mutating")
	})
	rt, st := newTestRuntime(t, failing)
	ctx := context.Background()

	_, err := rt.Execute(ctx, Call{Program: testProgram, Accounts: []AccountMeta{Writable(keyA)}, Data: []byte{7}})
	require.Error(t, err)
	assert.True(t, errcode.Is(err, errcode.LoanAlreadyPaid))

	got, err := st.GetAccount(ctx, keyA)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, got.Data)

	entries := st.Entries()
	require.Len(t, entries, 2)
	last := entries[1]
	assert.Equal(t, EntryCall, last.Kind)
	assert.True(t, last.Failed)
	assert.Equal(t, uint64(errcode.LoanAlreadyPaid), last.Code)
	assert.NotEmpty(t, last.Message)
	assert.NotEmpty(t, last.Digest)
}

func TestExecute_UnknownProgram(t *testing.T) {
	rt, _ := newTestRuntime(t, writeFirstByte)

	_, err := rt.Execute(context.Background(), Call{Program: pubkey.Named("nope")})
	assert.True(t, errcode.Is(err, errcode.InvalidArgument))
}

func TestExecute_ReadonlyModified(t *testing.T) {
	rt, st := newTestRuntime(t, writeFirstByte)
	ctx := context.Background()

	_, err := rt.Execute(ctx, Call{Program: testProgram, Accounts: []AccountMeta{Readonly(keyA)}, Data: []byte{7}})
	assert.True(t, errcode.Is(err, errcode.InvalidArgument))

	got, err := st.GetAccount(ctx, keyA)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0}, got.Data)
}

func TestExecute_Resized(t *testing.T) {
	grow := programFunc(func(_ context.Context, inv *Invocation) error {
		inv.Accounts[0].Data = append(inv.Accounts[0].Data, 1)
		return nil
	})
	rt, _ := newTestRuntime(t, grow)

	_, err := rt.Execute(context.Background(), Call{Program: testProgram, Accounts: []AccountMeta{Writable(keyA)}})
	assert.True(t, errcode.Is(err, errcode.InvalidAccountData))
}

func TestExecute_DuplicateKeysShareAccount(t *testing.T) {
	var seen Accounts
	capture := programFunc(func(_ context.Context, inv *Invocation) error {
		seen = inv.Accounts
		return nil
	})
	rt, _ := newTestRuntime(t, capture)

	_, err := rt.Execute(context.Background(), Call{Program: testProgram, Accounts: []AccountMeta{
		Readonly(keyA), Signer(keyA), Readonly(keyB),
	}})
	require.NoError(t, err)
	require.Len(t, seen, 3)
	assert.Same(t, seen[0], seen[1])
	assert.True(t, seen[0].IsSigner)
	assert.True(t, seen[0].IsWritable)

	// Unknown keys load as empty accounts.
	assert.Equal(t, keyB, seen[2].Key)
	assert.True(t, seen[2].Owner.IsZero())
	assert.Empty(t, seen[2].Data)
}

func TestAccounts_GetAndSigner(t *testing.T) {
	as := Accounts{{Key: keyA}, {Key: keyB, IsSigner: true}}

	_, err := as.Get(2)
	assert.True(t, errcode.Is(err, errcode.NotEnoughAccountKeys))

	_, err = as.Signer(0)
	assert.True(t, errcode.Is(err, errcode.MissingRequiredSignature))

	a, err := as.Signer(1)
	require.NoError(t, err)
	assert.Equal(t, keyB, a.Key)
}

func TestReplay_ReproducesState(t *testing.T) {
	failing := programFunc(func(ctx context.Context, inv *Invocation) error {
		if inv.Data[0] == 0 {
			return errcode.New(errcode.InvalidInstruction, "zero")
		}
		return writeFirstByte(ctx, inv)
	})
	rt, st := newTestRuntime(t, failing)
	ctx := context.Background()

	for _, b := range []byte{3, 0, 9} {
		_, _ = rt.Execute(ctx, Call{Program: testProgram, Accounts: []AccountMeta{Writable(keyA)}, Data: []byte{b}})
	}
	want, err := StateDigest(ctx, st)
	require.NoError(t, err)

	fresh := NewMemoryStore()
	replayer := NewRuntime(fresh, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	replayer.Register(testProgram, failing)
	require.NoError(t, replayer.Replay(ctx, st.Entries()))

	got, err := StateDigest(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReplay_DetectsDivergence(t *testing.T) {
	rt, st := newTestRuntime(t, writeFirstByte)
	ctx := context.Background()
	_, err := rt.Execute(ctx, Call{Program: testProgram, Accounts: []AccountMeta{Writable(keyA)}, Data: []byte{1}})
	require.NoError(t, err)

	fresh := NewMemoryStore()
	replayer := NewRuntime(fresh)
	replayer.Register(testProgram, programFunc(func(context.Context, *Invocation) error {
		return errors.New("different program")
	}))
	assert.Error(t, replayer.Replay(ctx, st.Entries()))
}

func TestStateDigest(t *testing.T) {
	ctx := context.Background()
	s1 := NewMemoryStore()
	s2 := NewMemoryStore()
	a := &Account{Key: keyA, Owner: testProgram, Lamports: 1, Data: []byte{1}}
	b := &Account{Key: keyB, Owner: testProgram, Data: []byte{2}}

	require.NoError(t, s1.PutAccounts(ctx, []*Account{a, b}))
	require.NoError(t, s2.PutAccounts(ctx, []*Account{b, a}))

	d1, err := StateDigest(ctx, s1)
	require.NoError(t, err)
	d2, err := StateDigest(ctx, s2)
	require.NoError(t, err)
	assert.Equal(t, d1, d2, "digest is independent of insertion order")

	b.Data = []byte{3}
	require.NoError(t, s2.PutAccounts(ctx, []*Account{b}))
	d3, err := StateDigest(ctx, s2)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d3)
}

func TestRent(t *testing.T) {
	assert.Equal(t, uint64(2_039_280), DefaultRent.MinimumBalance(165))
	assert.True(t, DefaultRent.IsExempt(2_039_280, 165))
	assert.False(t, DefaultRent.IsExempt(2_039_279, 165))
}
