package felt

import (
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// mask250 clears the top 6 bits of a 256-bit keccak digest, which is how
// Starknet derives a "starknet_keccak" (sn_keccak) digest from plain
// keccak256: the result must fit inside the ~251-bit field.
var mask250 = mustFromDecimal("1809251394333065553493296640760748560207343510400633813116524750123642650623")

// Selector computes the Starknet entry-point selector for a function name:
// sn_keccak(name) masked to 250 bits, exactly as the reference
// implementation's calculate_sn_keccak does.
func Selector(name string) Felt {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(name))
	digest := h.Sum(nil)

	var v uint256.Int
	v.SetBytes(digest)
	v.And(&v, mask250)

	return Felt{inner: v}
}
