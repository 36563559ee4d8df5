package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/pubkey"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestAccount creates an account with minimal required fields.
func createTestAccount(name string, owner pubkey.Pubkey, lamports uint64, data []byte) *host.Account {
	return &host.Account{
		Key:      pubkey.Named(name),
		Owner:    owner,
		Lamports: lamports,
		Data:     data,
	}
}

// createTestEntry creates a call entry with minimal required fields.
func createTestEntry(id string, program pubkey.Pubkey, now int64) host.Entry {
	return host.Entry{
		ID:      id,
		Kind:    host.EntryCall,
		Program: program,
		Now:     now,
		Digest:  "digest-" + id,
	}
}
