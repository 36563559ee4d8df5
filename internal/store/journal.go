package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/pubkey"
)

// accountRecord is the JSON form of a put entry's account.
type accountRecord struct {
	Key        pubkey.Pubkey `json:"key"`
	Owner      pubkey.Pubkey `json:"owner"`
	Lamports   uint64        `json:"lamports"`
	Executable bool          `json:"executable"`
	Data       []byte        `json:"data"`
}

// AppendEntry adds e to the end of the journal. The entry's Seq is ignored;
// SQLite assigns the next one.
func (s *Store) AppendEntry(ctx context.Context, e host.Entry) error {
	metas := e.Accounts
	if metas == nil {
		metas = []host.AccountMeta{}
	}
	metasJSON, err := json.Marshal(metas)
	if err != nil {
		return fmt.Errorf("append entry %s: marshal accounts: %w", e.ID, err)
	}

	var account sql.NullString
	if e.Account != nil {
		b, err := json.Marshal(accountRecord{
			Key:        e.Account.Key,
			Owner:      e.Account.Owner,
			Lamports:   e.Account.Lamports,
			Executable: e.Account.Executable,
			Data:       e.Account.Data,
		})
		if err != nil {
			return fmt.Errorf("append entry %s: marshal account: %w", e.ID, err)
		}
		account = sql.NullString{String: string(b), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO calls
		(id, kind, program, accounts, data, now, code, failed, message, digest, account)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.ID,
		e.Kind,
		e.Program.String(),
		string(metasJSON),
		e.Data,
		e.Now,
		int64(e.Code),
		e.Failed,
		e.Message,
		e.Digest,
		account,
	)
	if err != nil {
		return fmt.Errorf("append entry %s: %w", e.ID, err)
	}
	return nil
}

// ListEntries returns the whole journal in append order.
func (s *Store) ListEntries(ctx context.Context) ([]host.Entry, error) {
	return s.queryEntries(ctx, `
		SELECT seq, id, kind, program, accounts, data, now, code, failed, message, digest, account
		FROM calls
		ORDER BY seq ASC
	`)
}

// ListEntriesForProgram returns the journal entries addressed to program.
func (s *Store) ListEntriesForProgram(ctx context.Context, program pubkey.Pubkey) ([]host.Entry, error) {
	return s.queryEntries(ctx, `
		SELECT seq, id, kind, program, accounts, data, now, code, failed, message, digest, account
		FROM calls
		WHERE program = ?
		ORDER BY seq ASC
	`, program.String())
}

func (s *Store) queryEntries(ctx context.Context, query string, args ...any) ([]host.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query calls: %w", err)
	}
	defer rows.Close()

	entries := []host.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calls: %w", err)
	}
	return entries, nil
}

func scanEntry(row rowScanner) (host.Entry, error) {
	var (
		e         host.Entry
		program   string
		metasJSON string
		code      int64
		account   sql.NullString
	)
	if err := row.Scan(
		&e.Seq,
		&e.ID,
		&e.Kind,
		&program,
		&metasJSON,
		&e.Data,
		&e.Now,
		&code,
		&e.Failed,
		&e.Message,
		&e.Digest,
		&account,
	); err != nil {
		return e, fmt.Errorf("scan call: %w", err)
	}
	e.Code = uint64(code)

	var err error
	if e.Program, err = pubkey.Parse(program); err != nil {
		return e, fmt.Errorf("scan call %s program: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(metasJSON), &e.Accounts); err != nil {
		return e, fmt.Errorf("scan call %s accounts: %w", e.ID, err)
	}
	if len(e.Accounts) == 0 {
		e.Accounts = nil
	}
	if len(e.Data) == 0 {
		e.Data = nil
	}
	if account.Valid {
		var rec accountRecord
		if err := json.Unmarshal([]byte(account.String), &rec); err != nil {
			return e, fmt.Errorf("scan call %s account: %w", e.ID, err)
		}
		data := rec.Data
		if data == nil {
			data = []byte{}
		}
		e.Account = &host.Account{
			Key:        rec.Key,
			Owner:      rec.Owner,
			Lamports:   rec.Lamports,
			Executable: rec.Executable,
			Data:       data,
		}
	}
	return e, nil
}
