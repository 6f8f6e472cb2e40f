package evmstate

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/tycho-sim/simcore/account"
)

// overlaySnapshot is a deep copy of every scratch map, taken by Snapshot
// and restored by RevertToSnapshot. Cloning whole maps on every snapshot
// is not the cheapest possible approach, but a simulation call is a single
// short-lived execution, not a long-running node, so clarity wins here.
type overlaySnapshot struct {
	balances        map[common.Address]*uint256.Int
	nonces          map[common.Address]uint64
	codes           map[common.Address][]byte
	codeHashes      map[common.Address]common.Hash
	storage         map[common.Address]map[common.Hash]common.Hash
	storageOriginal map[common.Address]map[common.Hash]common.Hash
	transient       map[common.Address]map[common.Hash]common.Hash
	created         map[common.Address]bool
	selfDestructed  map[common.Address]bool
	refund          uint64
	accessAddrs     map[common.Address]bool
	accessSlots     map[common.Address]map[common.Hash]bool
	logCount        int
}

// Overlay is the per-call scratch layer (component C). It satisfies
// go-ethereum's core/vm.StateDB so it can be handed straight to vm.NewEVM.
// Every write lands in its own maps; nothing is ever flushed back into the
// SimulationDB it reads through, which is what makes call isolation hold
// without any snapshot/rollback machinery on the shared database itself.
type Overlay struct {
	ctx             context.Context
	db              *SimulationDB
	overridesByAddr map[common.Address]map[common.Hash]common.Hash

	balances   map[common.Address]*uint256.Int
	nonces     map[common.Address]uint64
	codes      map[common.Address][]byte
	codeHashes map[common.Address]common.Hash
	// storage holds every slot this call wrote. storageOriginal records,
	// per slot, the committed value seen the first time that slot was
	// written, so ChangedStorage can tell a real change from a write that
	// restores (or repeats) what was already there.
	storage         map[common.Address]map[common.Hash]common.Hash
	storageOriginal map[common.Address]map[common.Hash]common.Hash
	transient       map[common.Address]map[common.Hash]common.Hash

	created        map[common.Address]bool
	selfDestructed map[common.Address]bool
	touched        map[common.Address]bool

	refund uint64
	logs   []*types.Log

	accessAddrs map[common.Address]bool
	accessSlots map[common.Address]map[common.Hash]bool

	snapshots []overlaySnapshot

	err error // first error encountered reading through to the database
}

// NewOverlay builds a fresh scratch layer over db for a single simulation
// call. overrides is the caller-supplied per-call storage override map; it
// is consulted before the database and, like everything else in the
// overlay, is never written back.
func NewOverlay(ctx context.Context, db *SimulationDB, overrides map[common.Address]map[common.Hash]common.Hash) *Overlay {
	if overrides == nil {
		overrides = make(map[common.Address]map[common.Hash]common.Hash)
	}
	return &Overlay{
		ctx:             ctx,
		db:              db,
		overridesByAddr: overrides,
		balances:        make(map[common.Address]*uint256.Int),
		nonces:          make(map[common.Address]uint64),
		codes:           make(map[common.Address][]byte),
		codeHashes:      make(map[common.Address]common.Hash),
		storage:         make(map[common.Address]map[common.Hash]common.Hash),
		storageOriginal: make(map[common.Address]map[common.Hash]common.Hash),
		transient:       make(map[common.Address]map[common.Hash]common.Hash),
		created:         make(map[common.Address]bool),
		selfDestructed:  make(map[common.Address]bool),
		touched:         make(map[common.Address]bool),
		accessAddrs:     make(map[common.Address]bool),
		accessSlots:     make(map[common.Address]map[common.Hash]bool),
	}
}

// Err returns the first error encountered while reading through to the
// underlying database, if any. The engine checks this after execution
// completes, since vm.StateDB methods have no error return of their own.
func (o *Overlay) Err() error { return o.err }

// TouchedAddresses returns every address this call observed in any way, a
// superset of whatever addresses end up reported in the projected result.
func (o *Overlay) TouchedAddresses() []common.Address {
	out := make([]common.Address, 0, len(o.touched))
	for a := range o.touched {
		out = append(out, a)
	}
	return out
}

// ChangedStorage returns the storage slots this call wrote for addr whose
// final value differs from the committed value seen before the first
// write to that slot. A write that merely restores or repeats the
// original value is not a change and is left out. It never includes
// slots that were only read.
func (o *Overlay) ChangedStorage(addr common.Address) map[common.Hash]common.Hash {
	written := o.storage[addr]
	if len(written) == 0 {
		return nil
	}
	originals := o.storageOriginal[addr]
	out := make(map[common.Hash]common.Hash, len(written))
	for slot, v := range written {
		if orig, ok := originals[slot]; ok && orig == v {
			continue
		}
		out[slot] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// FinalBalance returns the post-call balance for addr if this call wrote
// one, and whether it did.
func (o *Overlay) FinalBalance(addr common.Address) (*uint256.Int, bool) {
	b, ok := o.balances[addr]
	return b, ok
}

func (o *Overlay) touch(addr common.Address) { o.touched[addr] = true }

func (o *Overlay) basic(addr common.Address) account.Info {
	o.touch(addr)
	if info, ok := o.loadedBasic(addr); ok {
		return info
	}
	info, err := o.db.Basic(o.ctx, addr)
	if err != nil && o.err == nil {
		o.err = err
	}
	return info
}

func (o *Overlay) loadedBasic(addr common.Address) (account.Info, bool) {
	_, hasBalance := o.balances[addr]
	_, hasNonce := o.nonces[addr]
	_, hasCode := o.codes[addr]
	if hasBalance || hasNonce || hasCode {
		bal := o.balances[addr]
		if bal == nil {
			bal = new(uint256.Int)
		}
		return account.Info{Balance: bal, Nonce: o.nonces[addr], Code: o.codes[addr], CodeHash: o.codeHashes[addr]}, true
	}
	return account.Info{}, false
}

func (o *Overlay) CreateAccount(addr common.Address) {
	o.touch(addr)
	o.created[addr] = true
	if _, ok := o.balances[addr]; !ok {
		o.balances[addr] = new(uint256.Int)
	}
}

func (o *Overlay) CreateContract(addr common.Address) {
	o.touch(addr)
	o.created[addr] = true
}

func (o *Overlay) SubBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	bal := o.currentBalance(addr)
	prev := *bal
	bal.Sub(bal, amount)
	o.balances[addr] = bal
	o.touch(addr)
	return prev
}

func (o *Overlay) AddBalance(addr common.Address, amount *uint256.Int, _ tracing.BalanceChangeReason) uint256.Int {
	bal := o.currentBalance(addr)
	prev := *bal
	bal.Add(bal, amount)
	o.balances[addr] = bal
	o.touch(addr)
	return prev
}

func (o *Overlay) currentBalance(addr common.Address) *uint256.Int {
	if b, ok := o.balances[addr]; ok {
		return b
	}
	info := o.basic(addr)
	b := new(uint256.Int)
	if info.Balance != nil {
		b.Set(info.Balance)
	}
	o.balances[addr] = b
	return b
}

func (o *Overlay) GetBalance(addr common.Address) *uint256.Int {
	return o.currentBalance(addr)
}

func (o *Overlay) GetNonce(addr common.Address) uint64 {
	if n, ok := o.nonces[addr]; ok {
		return n
	}
	n := o.basic(addr).Nonce
	o.nonces[addr] = n
	return n
}

func (o *Overlay) SetNonce(addr common.Address, nonce uint64) {
	o.touch(addr)
	o.nonces[addr] = nonce
}

func (o *Overlay) currentCode(addr common.Address) []byte {
	if c, ok := o.codes[addr]; ok {
		return c
	}
	info := o.basic(addr)
	o.codes[addr] = info.Code
	o.codeHashes[addr] = info.CodeHash
	return info.Code
}

func (o *Overlay) GetCodeHash(addr common.Address) common.Hash {
	o.currentCode(addr)
	return o.codeHashes[addr]
}

func (o *Overlay) GetCode(addr common.Address) []byte { return o.currentCode(addr) }

func (o *Overlay) SetCode(addr common.Address, code []byte) {
	o.touch(addr)
	info := account.NewInfo(nil, 0, code)
	o.codes[addr] = code
	o.codeHashes[addr] = info.CodeHash
}

func (o *Overlay) GetCodeSize(addr common.Address) int { return len(o.currentCode(addr)) }

func (o *Overlay) AddRefund(gas uint64) { o.refund += gas }

func (o *Overlay) SubRefund(gas uint64) {
	if gas > o.refund {
		panic("evmstate: refund counter below zero")
	}
	o.refund -= gas
}

func (o *Overlay) GetRefund() uint64 { return o.refund }

func (o *Overlay) overrideValue(addr common.Address, slot common.Hash) (common.Hash, bool) {
	if m, ok := o.overridesByAddr[addr]; ok {
		if v, ok := m[slot]; ok {
			return v, true
		}
	}
	return common.Hash{}, false
}

// committedState reads through overrides then the database, bypassing any
// value this call itself wrote — used both for GetCommittedState and as
// the fallback path the first time a slot is touched.
func (o *Overlay) committedState(addr common.Address, slot common.Hash) common.Hash {
	if v, ok := o.overrideValue(addr, slot); ok {
		return v
	}
	v, err := o.db.Storage(o.ctx, addr, slot)
	if err != nil && o.err == nil {
		o.err = err
	}
	return v
}

func (o *Overlay) GetCommittedState(addr common.Address, slot common.Hash) common.Hash {
	o.touch(addr)
	return o.committedState(addr, slot)
}

func (o *Overlay) GetState(addr common.Address, slot common.Hash) common.Hash {
	o.touch(addr)
	if m, ok := o.storage[addr]; ok {
		if v, ok := m[slot]; ok {
			return v
		}
	}
	return o.committedState(addr, slot)
}

func (o *Overlay) SetState(addr common.Address, slot common.Hash, value common.Hash) common.Hash {
	o.touch(addr)
	prev := o.GetState(addr, slot)
	if o.storageOriginal[addr] == nil {
		o.storageOriginal[addr] = make(map[common.Hash]common.Hash)
	}
	if _, recorded := o.storageOriginal[addr][slot]; !recorded {
		o.storageOriginal[addr][slot] = o.committedState(addr, slot)
	}
	if o.storage[addr] == nil {
		o.storage[addr] = make(map[common.Hash]common.Hash)
	}
	o.storage[addr][slot] = value
	return prev
}

func (o *Overlay) GetStorageRoot(addr common.Address) common.Hash {
	return common.Hash{}
}

func (o *Overlay) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	if m, ok := o.transient[addr]; ok {
		return m[key]
	}
	return common.Hash{}
}

func (o *Overlay) SetTransientState(addr common.Address, key, value common.Hash) {
	if o.transient[addr] == nil {
		o.transient[addr] = make(map[common.Hash]common.Hash)
	}
	o.transient[addr][key] = value
}

func (o *Overlay) SelfDestruct(addr common.Address) uint256.Int {
	o.touch(addr)
	prev := o.currentBalance(addr)
	out := *prev
	o.selfDestructed[addr] = true
	o.balances[addr] = new(uint256.Int)
	return out
}

func (o *Overlay) HasSelfDestructed(addr common.Address) bool { return o.selfDestructed[addr] }

func (o *Overlay) Selfdestruct6780(addr common.Address) uint256.Int {
	if o.created[addr] {
		return o.SelfDestruct(addr)
	}
	return *o.currentBalance(addr)
}

func (o *Overlay) Exist(addr common.Address) bool {
	if o.created[addr] {
		return true
	}
	if _, ok := o.loadedBasic(addr); ok {
		return true
	}
	info := o.basic(addr)
	return !info.Empty() || o.db != nil && addressKnownToDB(o.db, addr)
}

func addressKnownToDB(db *SimulationDB, addr common.Address) bool {
	_, _, known := db.snapshotAccount(addr)
	return known
}

func (o *Overlay) Empty(addr common.Address) bool {
	info := o.basic(addr)
	return info.Empty() && !o.created[addr]
}

func (o *Overlay) AddressInAccessList(addr common.Address) bool { return o.accessAddrs[addr] }

func (o *Overlay) SlotInAccessList(addr common.Address, slot common.Hash) (bool, bool) {
	addrOk := o.accessAddrs[addr]
	slotOk := false
	if m, ok := o.accessSlots[addr]; ok {
		slotOk = m[slot]
	}
	return addrOk, slotOk
}

func (o *Overlay) AddAddressToAccessList(addr common.Address) { o.accessAddrs[addr] = true }

func (o *Overlay) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	o.accessAddrs[addr] = true
	if o.accessSlots[addr] == nil {
		o.accessSlots[addr] = make(map[common.Hash]bool)
	}
	o.accessSlots[addr][slot] = true
}

func (o *Overlay) Prepare(rules params.Rules, sender, coinbase common.Address, dst *common.Address, precompiles []common.Address, txAccesses types.AccessList) {
	o.accessAddrs = make(map[common.Address]bool)
	o.accessSlots = make(map[common.Address]map[common.Hash]bool)

	o.AddAddressToAccessList(sender)
	if dst != nil {
		o.AddAddressToAccessList(*dst)
	}
	for _, p := range precompiles {
		o.AddAddressToAccessList(p)
	}
	for _, el := range txAccesses {
		o.AddAddressToAccessList(el.Address)
		for _, key := range el.StorageKeys {
			o.AddSlotToAccessList(el.Address, key)
		}
	}
	if rules.IsShanghai {
		o.AddAddressToAccessList(coinbase)
	}
}

func (o *Overlay) Snapshot() int {
	snap := overlaySnapshot{
		balances:        cloneBalances(o.balances),
		nonces:          cloneNonces(o.nonces),
		codes:           cloneCodes(o.codes),
		codeHashes:      cloneHashes(o.codeHashes),
		storage:         cloneStorage(o.storage),
		storageOriginal: cloneStorage(o.storageOriginal),
		transient:       cloneStorage(o.transient),
		created:         cloneBoolSet(o.created),
		selfDestructed:  cloneBoolSet(o.selfDestructed),
		refund:          o.refund,
		accessAddrs:     cloneBoolSet(o.accessAddrs),
		accessSlots:     cloneSlotSet(o.accessSlots),
		logCount:        len(o.logs),
	}
	o.snapshots = append(o.snapshots, snap)
	return len(o.snapshots) - 1
}

func (o *Overlay) RevertToSnapshot(id int) {
	if id < 0 || id >= len(o.snapshots) {
		panic("evmstate: invalid snapshot id")
	}
	snap := o.snapshots[id]
	o.balances = snap.balances
	o.nonces = snap.nonces
	o.codes = snap.codes
	o.codeHashes = snap.codeHashes
	o.storage = snap.storage
	o.storageOriginal = snap.storageOriginal
	o.transient = snap.transient
	o.created = snap.created
	o.selfDestructed = snap.selfDestructed
	o.refund = snap.refund
	o.accessAddrs = snap.accessAddrs
	o.accessSlots = snap.accessSlots
	o.logs = o.logs[:snap.logCount]
	o.snapshots = o.snapshots[:id]
}

func (o *Overlay) AddLog(log *types.Log) { o.logs = append(o.logs, log) }

func (o *Overlay) AddPreimage(hash common.Hash, preimage []byte) {}

func cloneBalances(m map[common.Address]*uint256.Int) map[common.Address]*uint256.Int {
	out := make(map[common.Address]*uint256.Int, len(m))
	for k, v := range m {
		c := new(uint256.Int).Set(v)
		out[k] = c
	}
	return out
}

func cloneNonces(m map[common.Address]uint64) map[common.Address]uint64 {
	out := make(map[common.Address]uint64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneCodes(m map[common.Address][]byte) map[common.Address][]byte {
	out := make(map[common.Address][]byte, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneHashes(m map[common.Address]common.Hash) map[common.Address]common.Hash {
	out := make(map[common.Address]common.Hash, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStorage(m map[common.Address]map[common.Hash]common.Hash) map[common.Address]map[common.Hash]common.Hash {
	out := make(map[common.Address]map[common.Hash]common.Hash, len(m))
	for k, v := range m {
		inner := make(map[common.Hash]common.Hash, len(v))
		for sk, sv := range v {
			inner[sk] = sv
		}
		out[k] = inner
	}
	return out
}

func cloneBoolSet(m map[common.Address]bool) map[common.Address]bool {
	out := make(map[common.Address]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneSlotSet(m map[common.Address]map[common.Hash]bool) map[common.Address]map[common.Hash]bool {
	out := make(map[common.Address]map[common.Hash]bool, len(m))
	for k, v := range m {
		inner := make(map[common.Hash]bool, len(v))
		for sk, sv := range v {
			inner[sk] = sv
		}
		out[k] = inner
	}
	return out
}
