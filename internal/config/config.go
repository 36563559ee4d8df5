// Package config loads deployment parameters. Values are validated against an
// embedded CUE schema that also carries the defaults; a user file only needs
// the fields it overrides.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/dassi/internal/host"
	"github.com/roach88/dassi/internal/pubkey"
)

//go:embed schema.cue
var schemaCUE string

// Config holds deployment parameters.
type Config struct {
	ProgramID      string `json:"program_id"`
	TokenProgramID string `json:"token_program_id"`
	Mint           string `json:"mint"`
	Ledger         string `json:"ledger"`
	Vault          string `json:"vault"`
	AirdropVault   string `json:"airdrop_vault"`

	MinLending           uint64 `json:"min_lending"`
	AirdropAmount        uint64 `json:"airdrop_amount"`
	AirdropCap           uint64 `json:"airdrop_cap"`
	InitialCreditScore   uint64 `json:"initial_credit_score"`
	InitialApprovalScore uint64 `json:"initial_approval_score"`

	GraceDays uint16 `json:"grace_days"`
	Rent      Rent   `json:"rent"`
}

// Rent mirrors host.Rent.
type Rent struct {
	LamportsPerByteYear uint64 `json:"lamports_per_byte_year"`
	ExemptionYears      uint64 `json:"exemption_years"`
}

// HostRent converts to the runtime's rent rule.
func (c Config) HostRent() host.Rent {
	return host.Rent{LamportsPerByteYear: c.Rent.LamportsPerByteYear, ExemptionYears: c.Rent.ExemptionYears}
}

// Default returns the embedded defaults.
func Default() (Config, error) {
	return Parse("", nil)
}

// MustDefault is like Default but panics on error.
// Use only in tests.
func MustDefault() Config {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// Load reads overrides from a CUE file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(path, data)
}

// Parse unifies src (may be nil) with the schema and decodes the result.
func Parse(filename string, src []byte) (Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("config"))

	if len(src) > 0 {
		user := ctx.CompileBytes(src, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return Config{}, fmt.Errorf("compile %s: %s", filename, errors.Details(err, nil))
		}
		v = v.Unify(user)
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("invalid config: %s", errors.Details(err, nil))
	}
	var c Config
	if err := v.Decode(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return c, nil
}

// ResolveKey accepts a base58 identity or a name.
func ResolveKey(s string) pubkey.Pubkey {
	if k, err := pubkey.Parse(s); err == nil {
		return k
	}
	return pubkey.Named(s)
}

// Keys resolves every configured identity.
func (c Config) Keys() Keys {
	return Keys{
		Program:      ResolveKey(c.ProgramID),
		TokenProgram: ResolveKey(c.TokenProgramID),
		Mint:         ResolveKey(c.Mint),
		Ledger:       ResolveKey(c.Ledger),
		Vault:        ResolveKey(c.Vault),
		AirdropVault: ResolveKey(c.AirdropVault),
	}
}

// Keys are the resolved deployment identities.
type Keys struct {
	Program      pubkey.Pubkey
	TokenProgram pubkey.Pubkey
	Mint         pubkey.Pubkey
	Ledger       pubkey.Pubkey
	Vault        pubkey.Pubkey
	AirdropVault pubkey.Pubkey
}
