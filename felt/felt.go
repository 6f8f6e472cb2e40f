// Package felt implements Starknet field elements. Starknet's prime field
// has a ~251-bit modulus, so a felt fits comfortably in the 256-bit
// register uint256.Int already provides; this package wraps that type
// rather than introducing a second big-integer representation.
package felt

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Felt is an element of the Starknet prime field GF(P), where
// P = 2**251 + 17*2**192 + 1. Values are always kept reduced mod P.
type Felt struct {
	inner uint256.Int
}

// Prime is the Starknet field modulus.
var Prime = mustFromDecimal("3618502788666131213697322783095070105623107215331596699973092056135872020481")

func mustFromDecimal(s string) *uint256.Int {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Zero is the additive identity.
func Zero() Felt { return Felt{} }

// FromUint64 builds a felt from a small unsigned integer.
func FromUint64(v uint64) Felt {
	var f Felt
	f.inner.SetUint64(v)
	return f
}

// FromBytesBE interprets b as a big-endian integer and reduces it mod P,
// mirroring the reference implementation's Felt252::from_bytes_be.
func FromBytesBE(b []byte) Felt {
	var f Felt
	f.inner.SetBytes(b)
	f.reduce()
	return f
}

// FromBigEndianHex parses a "0x..."-prefixed or bare hex string.
func FromBigEndianHex(s string) (Felt, error) {
	v, err := uint256.FromHex(s)
	if err != nil {
		return Felt{}, fmt.Errorf("felt: invalid hex %q: %w", s, err)
	}
	f := Felt{inner: *v}
	f.reduce()
	return f, nil
}

func (f *Felt) reduce() {
	if f.inner.Cmp(Prime) >= 0 {
		f.inner.Mod(&f.inner, Prime)
	}
}

// Add returns f+g mod P.
func (f Felt) Add(g Felt) Felt {
	var out Felt
	out.inner.AddMod(&f.inner, &g.inner, Prime)
	return out
}

// Sub returns f-g mod P.
func (f Felt) Sub(g Felt) Felt {
	var out Felt
	var negG uint256.Int
	negG.Sub(Prime, &g.inner)
	out.inner.AddMod(&f.inner, &negG, Prime)
	return out
}

// IsZero reports whether f is the additive identity.
func (f Felt) IsZero() bool { return f.inner.IsZero() }

// Eq reports value equality.
func (f Felt) Eq(g Felt) bool { return f.inner.Cmp(&g.inner) == 0 }

// Bytes returns the 32-byte big-endian encoding of f.
func (f Felt) Bytes() [32]byte { return f.inner.Bytes32() }

// Hex returns the canonical "0x"-prefixed hex encoding, matching the
// reference implementation's Debug/Display formatting for Felt252.
func (f Felt) Hex() string { return f.inner.Hex() }

func (f Felt) String() string { return f.Hex() }
