package testutil

import "github.com/roach88/dassi/internal/pubkey"

// Key returns the named test identity.
func Key(name string) pubkey.Pubkey {
	return pubkey.Named(name)
}

// Keys returns named test identities in order.
func Keys(names ...string) []pubkey.Pubkey {
	out := make([]pubkey.Pubkey, len(names))
	for i, n := range names {
		out[i] = pubkey.Named(n)
	}
	return out
}
