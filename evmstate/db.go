// Package evmstate implements the EVM simulation database (component B)
// and its per-call override/transient layer (component C). The database
// keeps two persistent tiers — mocked accounts a caller seeded directly,
// and cached accounts lazily fetched from a remote node — and never
// forgets a mocked account or a fetched code blob. The per-call layer
// lives in overlay.go and is what actually gets handed to the EVM
// execution library; nothing it writes ever reaches this type.
package evmstate

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/tycho-sim/simcore/account"
	"github.com/tycho-sim/simcore/remote"
	"github.com/tycho-sim/simcore/simerr"
)

// RemoteReader is the subset of remote.Client a SimulationDB needs. It is
// an interface, not a concrete dependency on remote.Client, so tests can
// substitute a fake reader and count calls to verify cache idempotence.
type RemoteReader interface {
	GetBalance(ctx context.Context, address common.Address, blockTag string) (*uint256.Int, error)
	GetNonce(ctx context.Context, address common.Address, blockTag string) (uint64, error)
	GetCode(ctx context.Context, address common.Address, blockTag string) ([]byte, error)
	GetStorageAt(ctx context.Context, address common.Address, slot common.Hash, blockTag string) (common.Hash, error)
}

type tier int

const (
	tierCached tier = iota
	tierMocked
)

type accountEntry struct {
	tier tier

	info       account.Info
	basicKnown bool // balance/nonce/code fetched at least once (cached tier only)

	storage        map[common.Hash]common.Hash
	storageFetched map[common.Hash]struct{} // which slots are known (cached tier only)

	// permanent marks a mocked account's storage as the full, closed set:
	// a miss means "zero", never "go fetch it".
	permanent bool
}

// SimulationDB is the persistent, never-rolled-back state backing one or
// more simulation engines. It is safe for concurrent use: one engine
// reading through Basic/Storage may run alongside a separate goroutine
// calling Update (component G), per the concurrency model.
type SimulationDB struct {
	mu    sync.RWMutex
	accts map[common.Address]*accountEntry

	remote RemoteReader

	blockNumber *big.Int // nil means "latest"
	timestamp   uint64
}

// NewSimulationDB builds an empty database reading through reader.
func NewSimulationDB(reader RemoteReader) *SimulationDB {
	return &SimulationDB{
		accts:  make(map[common.Address]*accountEntry),
		remote: reader,
	}
}

// SetPin advances the block the cached tier reads against. Mocked
// accounts are never affected — they are a closed, caller-declared set.
// Cached accounts lose their "known" flags so the next read re-fetches at
// the new height; their code, once seen, is kept and assumed unchanged
// across the pins a single process will realistically simulate against,
// since re-fetching it on every pin change would defeat the point of
// caching it at all. A pin that renders to the same block tag as the
// current one leaves the cache as it is.
func (db *SimulationDB) SetPin(blockNumber *big.Int, timestamp uint64) {
	db.mu.Lock()
	defer db.mu.Unlock()

	oldTag := db.blockTag()
	db.blockNumber = blockNumber
	db.timestamp = timestamp
	if db.blockTag() == oldTag {
		return
	}

	for _, e := range db.accts {
		if e.tier != tierCached {
			continue
		}
		e.basicKnown = false
		e.storageFetched = make(map[common.Hash]struct{})
	}
}

func (db *SimulationDB) blockTag() string {
	var n *int64
	if db.blockNumber != nil {
		v := db.blockNumber.Int64()
		n = &v
	}
	return remote.BlockTag(n)
}

// InitAccount seeds a mocked account. Calling it twice for the same
// address is a caller bug — each mocked account is meant to be declared
// exactly once before use.
func (db *SimulationDB) InitAccount(addr common.Address, info account.Info, storage map[common.Hash]common.Hash, permanentStorage bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.accts[addr]; exists {
		return simerr.NewAlreadyInitialized(addr.Hex())
	}

	if storage == nil {
		storage = make(map[common.Hash]common.Hash)
	}
	db.accts[addr] = &accountEntry{
		tier:           tierMocked,
		info:           info,
		storage:        storage,
		storageFetched: make(map[common.Hash]struct{}),
		permanent:      permanentStorage,
	}
	return nil
}

// Basic returns the account info for addr, fetching it from the remote
// reader on first access if this is (or becomes) a cached-tier account.
func (db *SimulationDB) Basic(ctx context.Context, addr common.Address) (account.Info, error) {
	db.mu.RLock()
	e, exists := db.accts[addr]
	db.mu.RUnlock()

	if exists && e.tier == tierMocked {
		return e.info, nil
	}
	if exists && e.basicKnown {
		return e.info, nil
	}

	blockTag := db.blockTag()
	balance, err := db.remote.GetBalance(ctx, addr, blockTag)
	if err != nil {
		return account.Info{}, err
	}
	nonce, err := db.remote.GetNonce(ctx, addr, blockTag)
	if err != nil {
		return account.Info{}, err
	}
	// Code already loaded for a cached account is kept across pin changes
	// rather than fetched again.
	var code []byte
	codeKnown := false
	if exists {
		db.mu.RLock()
		code, codeKnown = e.info.Code, e.info.CodeHash != (common.Hash{})
		db.mu.RUnlock()
	}
	if !codeKnown {
		code, err = db.remote.GetCode(ctx, addr, blockTag)
		if err != nil {
			return account.Info{}, err
		}
	}
	info := account.NewInfo(balance, nonce, code)

	db.mu.Lock()
	e, exists = db.accts[addr]
	if !exists {
		e = &accountEntry{
			tier:           tierCached,
			storage:        make(map[common.Hash]common.Hash),
			storageFetched: make(map[common.Hash]struct{}),
		}
		db.accts[addr] = e
	}
	e.info = info
	e.basicKnown = true
	db.mu.Unlock()

	return info, nil
}

// Storage returns the value of slot in addr's storage, fetching it on
// first access for cached accounts. A permanent mocked account never
// fetches: a slot absent from its declared storage is simply zero. A
// non-permanent mocked account falls through to the remote reader on a
// miss exactly like a cached account, since its declared storage is not
// meant to be the full, closed set.
func (db *SimulationDB) Storage(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	db.mu.RLock()
	e, exists := db.accts[addr]
	db.mu.RUnlock()

	if !exists {
		return common.Hash{}, nil
	}
	if e.tier == tierMocked {
		db.mu.RLock()
		v, ok := e.storage[slot]
		db.mu.RUnlock()
		if ok {
			return v, nil
		}
		if e.permanent {
			return common.Hash{}, nil
		}
	}

	db.mu.RLock()
	_, fetched := e.storageFetched[slot]
	db.mu.RUnlock()
	if fetched {
		db.mu.RLock()
		v := e.storage[slot]
		db.mu.RUnlock()
		return v, nil
	}

	val, err := db.remote.GetStorageAt(ctx, addr, slot, db.blockTag())
	if err != nil {
		return common.Hash{}, err
	}

	db.mu.Lock()
	e.storage[slot] = val
	e.storageFetched[slot] = struct{}{}
	db.mu.Unlock()

	return val, nil
}

// CodeByHash must never be called: code is always loaded eagerly as part
// of Basic, exactly as the remote reader this is grounded on documents.
func (db *SimulationDB) CodeByHash(hash common.Hash) ([]byte, error) {
	panic("evmstate: CodeByHash should not be called, code is already loaded by Basic")
}

// snapshotAccount returns an immutable-enough view an overlay can read
// through without racing a concurrent Update: the account and a copy of its
// storage map, plus whether the database knows addr at all.
func (db *SimulationDB) snapshotAccount(addr common.Address) (account.Info, map[common.Hash]common.Hash, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	e, exists := db.accts[addr]
	if !exists {
		return account.Info{}, nil, false
	}
	storage := make(map[common.Hash]common.Hash, len(e.storage))
	for k, v := range e.storage {
		storage[k] = v
	}
	return e.info, storage, true
}
