package host

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/dassi/internal/pubkey"
)

// MemoryStore is an AccountStore and Journal held in memory. Replay
// verification rebuilds state into one; tests use it to avoid SQLite.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[pubkey.Pubkey]*Account
	entries  []Entry
}

var (
	_ AccountStore = (*MemoryStore)(nil)
	_ Journal      = (*MemoryStore)(nil)
)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[pubkey.Pubkey]*Account)}
}

func (m *MemoryStore) GetAccount(_ context.Context, key pubkey.Pubkey) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[key]
	if !ok {
		return nil, fmt.Errorf("get account %s: %w", key, ErrAccountNotFound)
	}
	return stored(a), nil
}

func (m *MemoryStore) PutAccounts(_ context.Context, accounts []*Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range accounts {
		m.accounts[a.Key] = stored(a)
	}
	return nil
}

func (m *MemoryStore) ListAccounts(_ context.Context) ([]*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Account, 0, len(m.accounts))
	for _, a := range m.accounts {
		out = append(out, stored(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out, nil
}

// AppendEntry records e with the next sequence number.
func (m *MemoryStore) AppendEntry(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Seq = int64(len(m.entries) + 1)
	if e.Account != nil {
		e.Account = stored(e.Account)
	}
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of the journal in append order.
func (m *MemoryStore) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// stored copies the persisted fields of a; per-call flags are dropped.
func stored(a *Account) *Account {
	c := a.Clone()
	c.IsSigner = false
	c.IsWritable = false
	if c.Data == nil {
		c.Data = []byte{}
	}
	return c
}
