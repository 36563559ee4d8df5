package host

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/dassi/internal/canon"
	"github.com/roach88/dassi/internal/errcode"
	"github.com/roach88/dassi/internal/pubkey"
)

// Invocation is what a program sees for one call.
type Invocation struct {
	ProgramID pubkey.Pubkey
	Accounts  Accounts
	Data      []byte
	Now       int64
	Rent      Rent
}

// Program executes invocations. It may mutate the accounts it is given; the
// runtime keeps those changes only when Process returns nil.
type Program interface {
	Process(ctx context.Context, inv *Invocation) error
}

// AccountStore persists account state between calls.
type AccountStore interface {
	GetAccount(ctx context.Context, key pubkey.Pubkey) (*Account, error)
	PutAccounts(ctx context.Context, accounts []*Account) error
	ListAccounts(ctx context.Context) ([]*Account, error)
}

// ErrAccountNotFound is returned by stores for unknown keys.
var ErrAccountNotFound = errors.New("account not found")

// Journal records every call and administrative write.
type Journal interface {
	AppendEntry(ctx context.Context, e Entry) error
}

// Entry kinds.
const (
	EntryCall = "call"
	EntryPut  = "put"
)

// Entry is one journal record.
type Entry struct {
	Seq      int64         `json:"seq"`
	ID       string        `json:"id"`
	Kind     string        `json:"kind"`
	Program  pubkey.Pubkey `json:"program"`
	Accounts []AccountMeta `json:"accounts,omitempty"`
	Data     []byte        `json:"data,omitempty"`
	Now      int64         `json:"now"`
	Code     uint64        `json:"code"`
	Failed   bool          `json:"failed"`
	Message  string        `json:"message,omitempty"`
	Digest   string        `json:"digest"`

	// Account is the written state for put entries.
	Account *Account `json:"-"`
}

// Call is one external invocation request.
type Call struct {
	Program  pubkey.Pubkey
	Accounts []AccountMeta
	Data     []byte
}

// Receipt describes a completed call.
type Receipt struct {
	ID      string
	Now     int64
	Changed []pubkey.Pubkey
}

// Runtime loads accounts, runs programs and persists the outcome.
// It is a single-writer: callers must not run Execute concurrently on the
// same store.
type Runtime struct {
	store    AccountStore
	journal  Journal
	programs map[pubkey.Pubkey]Program
	clock    Clock
	ids      IDGenerator
	rent     Rent
	logger   *slog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

func WithClock(c Clock) Option             { return func(r *Runtime) { r.clock = c } }
func WithIDGenerator(g IDGenerator) Option { return func(r *Runtime) { r.ids = g } }
func WithRent(rent Rent) Option            { return func(r *Runtime) { r.rent = rent } }
func WithLogger(l *slog.Logger) Option     { return func(r *Runtime) { r.logger = l } }

// WithJournal enables call journaling.
func WithJournal(j Journal) Option { return func(r *Runtime) { r.journal = j } }

// NewRuntime creates a runtime over store.
func NewRuntime(store AccountStore, opts ...Option) *Runtime {
	r := &Runtime{
		store:    store,
		programs: make(map[pubkey.Pubkey]Program),
		clock:    SystemClock{},
		ids:      UUIDv7Generator{},
		rent:     DefaultRent,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register installs program p under id.
func (r *Runtime) Register(id pubkey.Pubkey, p Program) {
	r.programs[id] = p
}

// Rent returns the runtime's minimum-balance rule.
func (r *Runtime) Rent() Rent { return r.rent }

// Put writes an account directly, outside of any program. Used for genesis
// state and faucets; the write is journaled so replay can reproduce it.
func (r *Runtime) Put(ctx context.Context, a *Account) error {
	if err := r.store.PutAccounts(ctx, []*Account{a}); err != nil {
		return fmt.Errorf("put account %s: %w", a.Key, err)
	}
	if r.journal == nil {
		return nil
	}
	e := Entry{
		ID:      r.ids.Generate(),
		Kind:    EntryPut,
		Program: a.Owner,
		Now:     r.clock.Now(),
		Account: a.Clone(),
	}
	digest, err := entryDigest(e)
	if err != nil {
		return err
	}
	e.Digest = digest
	if err := r.journal.AppendEntry(ctx, e); err != nil {
		return fmt.Errorf("journal put %s: %w", a.Key, err)
	}
	return nil
}

// Execute runs one call. Account changes persist only when the program
// succeeds; the call is journaled either way.
func (r *Runtime) Execute(ctx context.Context, call Call) (Receipt, error) {
	now := r.clock.Now()
	rec := Receipt{ID: r.ids.Generate(), Now: now}

	runErr := r.run(ctx, call, now, &rec)

	code, _ := errcode.CodeOf(runErr)
	if runErr != nil {
		r.logger.Info("call failed",
			"call", rec.ID,
			"program", call.Program.String(),
			"code", code.String(),
			"error", runErr,
		)
	} else {
		r.logger.Debug("call succeeded",
			"call", rec.ID,
			"changed", len(rec.Changed),
		)
	}

	if r.journal != nil {
		e := Entry{
			ID:       rec.ID,
			Kind:     EntryCall,
			Program:  call.Program,
			Accounts: call.Accounts,
			Data:     call.Data,
			Now:      now,
			Code:     uint64(code),
			Failed:   runErr != nil,
		}
		if runErr != nil {
			e.Message = runErr.Error()
		}
		digest, err := entryDigest(e)
		if err != nil {
			return rec, err
		}
		e.Digest = digest
		if err := r.journal.AppendEntry(ctx, e); err != nil {
			return rec, errors.Join(runErr, fmt.Errorf("journal call %s: %w", rec.ID, err))
		}
	}
	return rec, runErr
}

func (r *Runtime) run(ctx context.Context, call Call, now int64, rec *Receipt) error {
	prog, ok := r.programs[call.Program]
	if !ok {
		return errcode.New(errcode.InvalidArgument, "unknown program %s", call.Program)
	}

	accounts, err := r.load(ctx, call.Accounts)
	if err != nil {
		return err
	}

	snapshot := make(map[pubkey.Pubkey]*Account, len(accounts))
	for _, a := range accounts {
		if _, seen := snapshot[a.Key]; !seen {
			snapshot[a.Key] = a.Clone()
		}
	}

	inv := &Invocation{
		ProgramID: call.Program,
		Accounts:  accounts,
		Data:      call.Data,
		Now:       now,
		Rent:      r.rent,
	}
	if err := prog.Process(ctx, inv); err != nil {
		return err
	}

	var changed []*Account
	seen := make(map[pubkey.Pubkey]bool, len(accounts))
	for _, a := range accounts {
		if seen[a.Key] {
			continue
		}
		seen[a.Key] = true
		if sameState(a, snapshot[a.Key]) {
			continue
		}
		if !a.IsWritable {
			return errcode.New(errcode.InvalidArgument, "read-only account %s modified", a.Key)
		}
		if len(a.Data) != len(snapshot[a.Key].Data) {
			return errcode.New(errcode.InvalidAccountData, "account %s resized", a.Key)
		}
		changed = append(changed, a)
	}
	if len(changed) == 0 {
		return nil
	}
	if err := r.store.PutAccounts(ctx, changed); err != nil {
		return fmt.Errorf("persist call: %w", err)
	}
	for _, a := range changed {
		rec.Changed = append(rec.Changed, a.Key)
	}
	return nil
}

// load fetches each account once; repeated keys share one *Account with
// merged privileges.
func (r *Runtime) load(ctx context.Context, metas []AccountMeta) (Accounts, error) {
	byKey := make(map[pubkey.Pubkey]*Account, len(metas))
	out := make(Accounts, 0, len(metas))
	for _, m := range metas {
		a, ok := byKey[m.Key]
		if !ok {
			stored, err := r.store.GetAccount(ctx, m.Key)
			switch {
			case errors.Is(err, ErrAccountNotFound):
				stored = &Account{Key: m.Key}
			case err != nil:
				return nil, fmt.Errorf("load account %s: %w", m.Key, err)
			}
			a = stored
			byKey[m.Key] = a
		}
		a.IsSigner = a.IsSigner || m.IsSigner
		a.IsWritable = a.IsWritable || m.IsWritable
		out = append(out, a)
	}
	return out, nil
}

// Replay applies journal entries in order. Put entries are written back;
// call entries are re-executed at their recorded time and must end with the
// recorded code.
func (r *Runtime) Replay(ctx context.Context, entries []Entry) error {
	for _, e := range entries {
		switch e.Kind {
		case EntryPut:
			if e.Account == nil {
				return fmt.Errorf("replay %s: put entry without account", e.ID)
			}
			if err := r.store.PutAccounts(ctx, []*Account{e.Account.Clone()}); err != nil {
				return fmt.Errorf("replay %s: %w", e.ID, err)
			}
		case EntryCall:
			var rec Receipt
			err := r.run(ctx, Call{Program: e.Program, Accounts: e.Accounts, Data: e.Data}, e.Now, &rec)
			code, _ := errcode.CodeOf(err)
			if (err != nil) != e.Failed || uint64(code) != e.Code {
				return fmt.Errorf("replay %s: recorded code %d (failed=%t), got %d: %v", e.ID, e.Code, e.Failed, code, err)
			}
		default:
			return fmt.Errorf("replay %s: unknown entry kind %q", e.ID, e.Kind)
		}
	}
	return nil
}

// StateDigest hashes every stored account in key order.
func StateDigest(ctx context.Context, store AccountStore) (string, error) {
	accounts, err := store.ListAccounts(ctx)
	if err != nil {
		return "", err
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].Key.String() < accounts[j].Key.String()
	})
	list := make([]any, len(accounts))
	for i, a := range accounts {
		list[i] = accountObject(a)
	}
	return canon.Hash(canon.DomainState, list)
}

func accountObject(a *Account) map[string]any {
	sum := sha256.Sum256(a.Data)
	return map[string]any{
		"key":        a.Key.String(),
		"owner":      a.Owner.String(),
		"lamports":   canon.Uint(a.Lamports),
		"executable": a.Executable,
		"data_len":   len(a.Data),
		"data_hash":  hex.EncodeToString(sum[:]),
	}
}

func entryDigest(e Entry) (string, error) {
	metas := make([]any, len(e.Accounts))
	for i, m := range e.Accounts {
		metas[i] = map[string]any{
			"key":         m.Key.String(),
			"is_signer":   m.IsSigner,
			"is_writable": m.IsWritable,
		}
	}
	obj := map[string]any{
		"kind":     e.Kind,
		"program":  e.Program.String(),
		"accounts": metas,
		"data":     hex.EncodeToString(e.Data),
		"now":      e.Now,
		"code":     canon.Uint(e.Code),
		"failed":   e.Failed,
	}
	if e.Account != nil {
		obj["account"] = accountObject(e.Account)
	}
	return canon.Hash(canon.DomainEntry, obj)
}
