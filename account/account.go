// Package account holds the account-shaped value types shared by both
// state layers' seeding and update paths.
package account

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// Info is the EVM-side account record: balance, nonce, and code keyed by
// its own hash. CodeHash must always agree with Keccak256(Code); NewInfo
// derives it from Code so the pair it builds always agrees. An Info built
// as a struct literal is not checked by anything.
type Info struct {
	Balance  *uint256.Int
	Nonce    uint64
	CodeHash common.Hash
	Code     []byte
}

// EmptyCodeHash is the code hash of an account with no code, matching
// go-ethereum's own constant so empty accounts compare equal to it.
var EmptyCodeHash = crypto.Keccak256Hash(nil)

// NewInfo builds an Info from balance, nonce and code, deriving CodeHash
// itself so callers can never construct an inconsistent pair.
func NewInfo(balance *uint256.Int, nonce uint64, code []byte) Info {
	if balance == nil {
		balance = new(uint256.Int)
	}
	hash := EmptyCodeHash
	if len(code) > 0 {
		hash = crypto.Keccak256Hash(code)
	}
	return Info{
		Balance:  balance,
		Nonce:    nonce,
		CodeHash: hash,
		Code:     code,
	}
}

// Empty reports whether this is an account with zero balance, zero nonce
// and no code — the shape seeded for precompile addresses by the engine
// factory.
func (i Info) Empty() bool {
	return (i.Balance == nil || i.Balance.IsZero()) && i.Nonce == 0 && i.CodeHash == EmptyCodeHash
}

// Update describes a partial or full account mutation delivered through
// the account-update ingest path (component G). A nil field leaves the
// corresponding existing value untouched; Storage entries are merged
// slot-by-slot rather than replacing the whole map.
type Update struct {
	Address common.Address
	Balance *uint256.Int
	Nonce   *uint64
	Code    []byte
	// Full indicates the account should be replaced wholesale rather than
	// merged field-by-field — used when an update represents a freshly
	// created account.
	Full    bool
	Storage map[common.Hash]common.Hash
}
