// Package snstate implements the Starknet simulation database (the
// Starknet half of component B) and its per-call override layer
// (component C). It mirrors evmstate's tiering — mocked contracts seeded
// directly by the caller, cached contracts lazily fetched from a remote
// node — keyed by Starknet contract addresses instead of EVM addresses.
package snstate

import (
	"context"
	"sync"

	"github.com/tycho-sim/simcore/felt"
	"github.com/tycho-sim/simcore/simerr"
)

// RemoteReader is the subset of snremote.Client a SimulationDB needs.
type RemoteReader interface {
	GetStorageAt(ctx context.Context, contractAddress, key felt.Felt, blockTag string) (felt.Felt, error)
	GetClassHashAt(ctx context.Context, contractAddress felt.Felt, blockTag string) (felt.Felt, error)
	GetNonce(ctx context.Context, contractAddress felt.Felt, blockTag string) (felt.Felt, error)
}

type tier int

const (
	tierCached tier = iota
	tierMocked
)

// CompiledClass is a minimal, executor-agnostic view of a Starknet class:
// enough to identify it (Hash) and hand its raw payload to whatever
// CairoExecutor a caller plugs into the Starknet engine.
type CompiledClass struct {
	Hash    felt.Felt
	Path    string
	Payload []byte
	// Deprecated marks a Cairo 0 (.json) class as opposed to a Cairo 1
	// (.casm) one, matching the reference implementation's two-way split.
	Deprecated bool
}

type contractEntry struct {
	tier tier

	classHash      felt.Felt
	classHashKnown bool
	nonce          felt.Felt
	nonceKnown     bool

	storage        map[felt.Felt]felt.Felt
	storageFetched map[felt.Felt]bool

	permanent bool
}

// SimulationDB is the persistent, never-rolled-back Starknet state backing
// one or more simulation engines. Safe for concurrent use.
type SimulationDB struct {
	mu        sync.RWMutex
	contracts map[felt.Felt]*contractEntry
	classes   map[felt.Felt]*CompiledClass

	remote      RemoteReader
	blockNumber uint64
}

func NewSimulationDB(reader RemoteReader) *SimulationDB {
	return &SimulationDB{
		contracts: make(map[felt.Felt]*contractEntry),
		classes:   make(map[felt.Felt]*CompiledClass),
		remote:    reader,
	}
}

// SetPin advances the block cached contracts read against, the Starknet
// analog of evmstate.SimulationDB.SetPin. Setting the block already pinned
// leaves the cache as it is.
func (db *SimulationDB) SetPin(blockNumber uint64) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if blockNumber == db.blockNumber {
		return
	}
	db.blockNumber = blockNumber
	for _, e := range db.contracts {
		if e.tier != tierCached {
			continue
		}
		e.classHashKnown = false
		e.nonceKnown = false
		e.storageFetched = make(map[felt.Felt]bool)
	}
}

func (db *SimulationDB) blockTag() string {
	if db.blockNumber == 0 {
		return "latest"
	}
	return "pending"
}

// InitContract seeds a mocked contract (used by the engine factory to load
// ContractOverride entries from compiled classes).
func (db *SimulationDB) InitContract(address felt.Felt, classHash felt.Felt, storage map[felt.Felt]felt.Felt, permanent bool) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.contracts[address]; exists {
		return simerr.NewAlreadyInitialized(address.Hex())
	}
	if storage == nil {
		storage = make(map[felt.Felt]felt.Felt)
	}
	db.contracts[address] = &contractEntry{
		tier:           tierMocked,
		classHash:      classHash,
		classHashKnown: true,
		storage:        storage,
		storageFetched: make(map[felt.Felt]bool),
		permanent:      permanent,
	}
	return nil
}

// RegisterClass records a compiled class under its hash so the engine can
// look it up by class hash resolved from a contract address.
func (db *SimulationDB) RegisterClass(class CompiledClass) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.classes[class.Hash] = &class
}

func (db *SimulationDB) ClassByHash(hash felt.Felt) (CompiledClass, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	c, ok := db.classes[hash]
	if !ok {
		return CompiledClass{}, false
	}
	return *c, true
}

// ClassHashAt resolves the class hash governing address, fetching it from
// the remote reader for cached contracts on first access.
func (db *SimulationDB) ClassHashAt(ctx context.Context, address felt.Felt) (felt.Felt, error) {
	db.mu.RLock()
	e, exists := db.contracts[address]
	db.mu.RUnlock()

	if exists && (e.tier == tierMocked || e.classHashKnown) {
		return e.classHash, nil
	}

	hash, err := db.remote.GetClassHashAt(ctx, address, db.blockTag())
	if err != nil {
		return felt.Felt{}, err
	}

	db.mu.Lock()
	e, exists = db.contracts[address]
	if !exists {
		e = &contractEntry{tier: tierCached, storage: make(map[felt.Felt]felt.Felt), storageFetched: make(map[felt.Felt]bool)}
		db.contracts[address] = e
	}
	e.classHash = hash
	e.classHashKnown = true
	db.mu.Unlock()

	return hash, nil
}

// Storage returns the value of key in address's storage. A permanent
// mocked contract never fetches: a missing key is simply zero. A
// non-permanent mocked contract falls through to the remote reader on a
// miss exactly like a cached contract.
func (db *SimulationDB) Storage(ctx context.Context, address, key felt.Felt) (felt.Felt, error) {
	db.mu.RLock()
	e, exists := db.contracts[address]
	db.mu.RUnlock()

	if !exists {
		db.mu.Lock()
		e, exists = db.contracts[address]
		if !exists {
			e = &contractEntry{tier: tierCached, storage: make(map[felt.Felt]felt.Felt), storageFetched: make(map[felt.Felt]bool)}
			db.contracts[address] = e
		}
		db.mu.Unlock()
	}
	if e.tier == tierMocked {
		db.mu.RLock()
		v, ok := e.storage[key]
		db.mu.RUnlock()
		if ok {
			return v, nil
		}
		if e.permanent {
			return felt.Zero(), nil
		}
	}

	db.mu.RLock()
	fetched := e.storageFetched[key]
	v := e.storage[key]
	db.mu.RUnlock()
	if fetched {
		return v, nil
	}

	val, err := db.remote.GetStorageAt(ctx, address, key, db.blockTag())
	if err != nil {
		return felt.Felt{}, err
	}

	db.mu.Lock()
	e.storage[key] = val
	e.storageFetched[key] = true
	db.mu.Unlock()

	return val, nil
}

func (db *SimulationDB) snapshotContract(address felt.Felt) (map[felt.Felt]felt.Felt, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	e, exists := db.contracts[address]
	if !exists {
		return nil, false
	}
	out := make(map[felt.Felt]felt.Felt, len(e.storage))
	for k, v := range e.storage {
		out[k] = v
	}
	return out, true
}
