package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/pubkey"
)

// GetAccount returns the stored state of key, or host.ErrAccountNotFound.
// Signer and writable flags are never stored and come back false.
func (s *Store) GetAccount(ctx context.Context, key pubkey.Pubkey) (*host.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, owner, lamports, executable, data
		FROM accounts
		WHERE key = ?
	`, key.String())
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get account %s: %w", key, host.ErrAccountNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", key, err)
	}
	return a, nil
}

// PutAccounts replaces the stored state of every account in one transaction.
func (s *Store) PutAccounts(ctx context.Context, accounts []*host.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put accounts: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO accounts (key, owner, lamports, executable, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			owner = excluded.owner,
			lamports = excluded.lamports,
			executable = excluded.executable,
			data = excluded.data
	`)
	if err != nil {
		return fmt.Errorf("put accounts: prepare: %w", err)
	}
	defer stmt.Close()

	for _, a := range accounts {
		data := a.Data
		if data == nil {
			data = []byte{}
		}
		if _, err := stmt.ExecContext(ctx,
			a.Key.String(),
			a.Owner.String(),
			int64(a.Lamports),
			a.Executable,
			data,
		); err != nil {
			return fmt.Errorf("put account %s: %w", a.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put accounts: commit: %w", err)
	}
	return nil
}

// ListAccounts returns every stored account ordered by key.
func (s *Store) ListAccounts(ctx context.Context) ([]*host.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, owner, lamports, executable, data
		FROM accounts
		ORDER BY key COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	return collectAccounts(rows)
}

// ListAccountsByOwner returns the accounts owned by owner ordered by key.
func (s *Store) ListAccountsByOwner(ctx context.Context, owner pubkey.Pubkey) ([]*host.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, owner, lamports, executable, data
		FROM accounts
		WHERE owner = ?
		ORDER BY key COLLATE BINARY ASC
	`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("query accounts by owner: %w", err)
	}
	return collectAccounts(rows)
}

func collectAccounts(rows *sql.Rows) ([]*host.Account, error) {
	defer rows.Close()

	accounts := []*host.Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*host.Account, error) {
	var (
		key, owner string
		lamports   int64
		executable bool
		data       []byte
	)
	if err := row.Scan(&key, &owner, &lamports, &executable, &data); err != nil {
		return nil, err
	}
	a := &host.Account{
		Lamports:   uint64(lamports),
		Executable: executable,
		Data:       data,
	}
	var err error
	if a.Key, err = pubkey.Parse(key); err != nil {
		return nil, fmt.Errorf("scan account key %q: %w", key, err)
	}
	if a.Owner, err = pubkey.Parse(owner); err != nil {
		return nil, fmt.Errorf("scan account %s owner %q: %w", key, owner, err)
	}
	if a.Data == nil {
		a.Data = []byte{}
	}
	return a, nil
}
