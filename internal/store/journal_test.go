package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/pubkey"
)

func TestAppendAndListEntries(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	program := pubkey.Named("program")
	lender := pubkey.Named("lender")

	call := createTestEntry("call-1", program, 1_700_000_000)
	call.Accounts = []host.AccountMeta{host.Signer(lender), host.Readonly(program)}
	call.Data = []byte{0, 1, 2}
	call.Code = 8 << 32
	call.Failed = true
	call.Message = "missing signature"
	require.NoError(t, s.AppendEntry(ctx, call))

	put := createTestEntry("put-1", program, 1_700_000_001)
	put.Kind = host.EntryPut
	put.Account = &host.Account{Key: lender, Owner: program, Lamports: 7, Data: []byte{5}}
	require.NoError(t, s.AppendEntry(ctx, put))

	entries, err := s.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	got := entries[0]
	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, "call-1", got.ID)
	assert.Equal(t, host.EntryCall, got.Kind)
	assert.Equal(t, program, got.Program)
	assert.Equal(t, call.Accounts, got.Accounts)
	assert.Equal(t, []byte{0, 1, 2}, got.Data)
	assert.Equal(t, uint64(8<<32), got.Code)
	assert.True(t, got.Failed)
	assert.Equal(t, "missing signature", got.Message)
	assert.Equal(t, "digest-call-1", got.Digest)
	assert.Nil(t, got.Account)

	got = entries[1]
	assert.Equal(t, int64(2), got.Seq)
	assert.Equal(t, host.EntryPut, got.Kind)
	assert.Nil(t, got.Accounts)
	require.NotNil(t, got.Account)
	assert.Equal(t, lender, got.Account.Key)
	assert.Equal(t, uint64(7), got.Account.Lamports)
	assert.Equal(t, []byte{5}, got.Account.Data)
}

func TestAppendEntry_DuplicateID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	e := createTestEntry("same", pubkey.Named("program"), 0)

	require.NoError(t, s.AppendEntry(ctx, e))
	assert.Error(t, s.AppendEntry(ctx, e))
}

func TestListEntriesForProgram(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	a := pubkey.Named("program-a")
	b := pubkey.Named("program-b")

	require.NoError(t, s.AppendEntry(ctx, createTestEntry("1", a, 0)))
	require.NoError(t, s.AppendEntry(ctx, createTestEntry("2", b, 0)))
	require.NoError(t, s.AppendEntry(ctx, createTestEntry("3", a, 0)))

	entries, err := s.ListEntriesForProgram(ctx, a)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0].ID)
	assert.Equal(t, "3", entries[1].ID)
}

func TestListEntries_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	entries, err := s.ListEntries(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
