// Package pubkey provides 32-byte account identities and program-derived
// addresses.
//
// Text form is base58. Derived addresses follow the host's rule: a SHA-256
// over the seeds, a bump byte, the program id and a fixed marker, where the
// result must NOT be a valid ed25519 point so no private key can sign for it.
package pubkey

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Size is the byte length of an identity.
const Size = 32

const (
	// MaxSeedLen bounds each seed passed to address derivation.
	MaxSeedLen = 32
	// MaxSeeds bounds the number of seeds, bump included.
	MaxSeeds = 16

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrMaxSeedLength = errors.New("pubkey: seed exceeds maximum length")
	ErrInvalidSeeds  = errors.New("pubkey: derived address lies on the curve")
	ErrNoViableBump  = errors.New("pubkey: no viable bump seed")
	ErrIllegalOwner  = errors.New("pubkey: owner ends with the derived-address marker")
	ErrInvalidLength = errors.New("pubkey: invalid length")
)

// Pubkey is a 32-byte identity.
type Pubkey [Size]byte

// Zero is the all-zero identity.
var Zero Pubkey

// FromBytes copies b into a Pubkey. b must be exactly 32 bytes.
func FromBytes(b []byte) (Pubkey, error) {
	var k Pubkey
	if len(b) != Size {
		return k, fmt.Errorf("%w: %d", ErrInvalidLength, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// Parse decodes a base58 identity.
func Parse(s string) (Pubkey, error) {
	b, err := base58.Decode(s)
	if err != nil {
		return Zero, fmt.Errorf("pubkey: decode %q: %w", s, err)
	}
	return FromBytes(b)
}

// MustParse is like Parse but panics on error.
// Use only in tests or for compile-time constants.
func MustParse(s string) Pubkey {
	k, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return k
}

// Named derives a stable identity from a human-readable name.
// Used by the CLI and scenarios to refer to accounts without key files.
func Named(name string) Pubkey {
	h := sha256.New()
	h.Write([]byte("dassi/account/v1"))
	h.Write([]byte{0x00})
	h.Write([]byte(name))
	var k Pubkey
	copy(k[:], h.Sum(nil))
	return k
}

func (k Pubkey) String() string {
	return base58.Encode(k[:])
}

// Bytes returns a copy of the identity bytes.
func (k Pubkey) Bytes() []byte {
	b := make([]byte, Size)
	copy(b, k[:])
	return b
}

// IsZero reports whether k is the all-zero identity.
func (k Pubkey) IsZero() bool {
	return k == Zero
}

// MarshalText implements encoding.TextMarshaler.
func (k Pubkey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Pubkey) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// IsOnCurve reports whether b decodes to a valid ed25519 point.
func IsOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// CreateProgramAddress hashes seeds under programID and rejects results that
// lie on the curve.
func CreateProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return Zero, ErrMaxSeedLength
	}
	h := sha256.New()
	for _, s := range seeds {
		if len(s) > MaxSeedLen {
			return Zero, ErrMaxSeedLength
		}
		h.Write(s)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))
	sum := h.Sum(nil)
	if IsOnCurve(sum) {
		return Zero, ErrInvalidSeeds
	}
	var k Pubkey
	copy(k[:], sum)
	return k, nil
}

// FindProgramAddress searches bumps from 255 down and returns the first
// off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, programID Pubkey) (Pubkey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return Zero, 0, err
		}
	}
	return Zero, 0, ErrNoViableBump
}

// CreateWithSeed derives sha256(base || seed || owner).
func CreateWithSeed(base Pubkey, seed string, owner Pubkey) (Pubkey, error) {
	if len(seed) > MaxSeedLen {
		return Zero, ErrMaxSeedLength
	}
	if bytes.HasSuffix(owner[:], []byte(pdaMarker)) {
		return Zero, ErrIllegalOwner
	}
	h := sha256.New()
	h.Write(base[:])
	h.Write([]byte(seed))
	h.Write(owner[:])
	var k Pubkey
	copy(k[:], h.Sum(nil))
	return k, nil
}
