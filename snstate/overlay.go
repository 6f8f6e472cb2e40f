package snstate

import (
	"context"

	"github.com/tycho-sim/simcore/felt"
)

// Overlay is the Starknet per-call scratch layer. Every write lands in its
// own maps and is discarded at the end of the call; nothing is ever
// flushed back into the SimulationDB it reads through.
type Overlay struct {
	ctx             context.Context
	db              *SimulationDB
	overridesByAddr map[felt.Felt]map[felt.Felt]felt.Felt

	// storage holds every key this call wrote (including via overrides).
	// storageOriginal records, per key, the value read from the database
	// the first time that key was touched by a write, so ChangedStorage
	// can tell a real change from a write that repeats what was already
	// there.
	storage         map[felt.Felt]map[felt.Felt]felt.Felt
	storageOriginal map[felt.Felt]map[felt.Felt]felt.Felt
	touched         map[felt.Felt]bool

	err error
}

// NewOverlay builds a fresh scratch layer over db for one simulation call.
func NewOverlay(ctx context.Context, db *SimulationDB, overrides map[felt.Felt]map[felt.Felt]felt.Felt) *Overlay {
	if overrides == nil {
		overrides = make(map[felt.Felt]map[felt.Felt]felt.Felt)
	}
	return &Overlay{
		ctx:             ctx,
		db:              db,
		overridesByAddr: overrides,
		storage:         make(map[felt.Felt]map[felt.Felt]felt.Felt),
		storageOriginal: make(map[felt.Felt]map[felt.Felt]felt.Felt),
		touched:         make(map[felt.Felt]bool),
	}
}

func (o *Overlay) Err() error { return o.err }

func (o *Overlay) touch(addr felt.Felt) { o.touched[addr] = true }

// TouchedContracts returns every address this call observed, a superset
// of whatever addresses end up reported in the projected result.
func (o *Overlay) TouchedContracts() []felt.Felt {
	out := make([]felt.Felt, 0, len(o.touched))
	for a := range o.touched {
		out = append(out, a)
	}
	return out
}

// ChangedStorage returns the storage keys this call wrote for addr whose
// final value differs from the value read before the first write to that
// key. A write that repeats the original value is not a change and is
// left out.
func (o *Overlay) ChangedStorage(addr felt.Felt) map[felt.Felt]felt.Felt {
	written := o.storage[addr]
	if len(written) == 0 {
		return nil
	}
	originals := o.storageOriginal[addr]
	out := make(map[felt.Felt]felt.Felt, len(written))
	for key, v := range written {
		if orig, ok := originals[key]; ok && orig == v {
			continue
		}
		out[key] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// recordOriginal remembers the database value for addr/key the first time
// a write touches it, so a later ChangedStorage call can tell whether the
// final written value actually differs from what was there before.
func (o *Overlay) recordOriginal(addr, key felt.Felt) {
	if o.storageOriginal[addr] == nil {
		o.storageOriginal[addr] = make(map[felt.Felt]felt.Felt)
	}
	if _, recorded := o.storageOriginal[addr][key]; recorded {
		return
	}
	v, err := o.db.Storage(o.ctx, addr, key)
	if err != nil && o.err == nil {
		o.err = err
	}
	o.storageOriginal[addr][key] = v
}

// ApplyOverrides writes every caller-supplied override directly into the
// scratch storage layer up front, rather than consulting it lazily on each
// read, since Starknet overrides are meant to look exactly like prior
// writes to the contract being simulated.
func (o *Overlay) ApplyOverrides() {
	for addr, slots := range o.overridesByAddr {
		o.touch(addr)
		if o.storage[addr] == nil {
			o.storage[addr] = make(map[felt.Felt]felt.Felt)
		}
		for k, v := range slots {
			o.recordOriginal(addr, k)
			o.storage[addr][k] = v
		}
	}
}

// GetStorageAt reads addr's storage, checking the scratch layer first and
// falling through to the database on a miss.
func (o *Overlay) GetStorageAt(addr, key felt.Felt) felt.Felt {
	o.touch(addr)
	if m, ok := o.storage[addr]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	v, err := o.db.Storage(o.ctx, addr, key)
	if err != nil && o.err == nil {
		o.err = err
	}
	return v
}

// SetStorageAt writes key in addr's scratch storage.
func (o *Overlay) SetStorageAt(addr, key, value felt.Felt) {
	o.touch(addr)
	o.recordOriginal(addr, key)
	if o.storage[addr] == nil {
		o.storage[addr] = make(map[felt.Felt]felt.Felt)
	}
	o.storage[addr][key] = value
}

// ClassHashAt resolves the class hash governing addr.
func (o *Overlay) ClassHashAt(addr felt.Felt) felt.Felt {
	o.touch(addr)
	hash, err := o.db.ClassHashAt(o.ctx, addr)
	if err != nil && o.err == nil {
		o.err = err
	}
	return hash
}
