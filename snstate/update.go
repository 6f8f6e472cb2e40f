package snstate

import "github.com/tycho-sim/simcore/felt"

// ContractUpdate is the Starknet analog of account.Update: a partial or
// full mutation delivered through the account-update ingest path.
type ContractUpdate struct {
	Address   felt.Felt
	ClassHash *felt.Felt
	Nonce     *felt.Felt
	Storage   map[felt.Felt]felt.Felt
	Full      bool
}

// Update applies a batch of contract updates and optionally advances the
// pin, under one write-lock critical section (component G).
func (db *SimulationDB) Update(updates []ContractUpdate, newPin *uint64) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range updates {
		e, exists := db.contracts[u.Address]
		if !exists {
			e = &contractEntry{tier: tierCached, storage: make(map[felt.Felt]felt.Felt), storageFetched: make(map[felt.Felt]bool)}
			db.contracts[u.Address] = e
		}

		if u.Full {
			e.storage = make(map[felt.Felt]felt.Felt)
			e.storageFetched = make(map[felt.Felt]bool)
			if u.ClassHash != nil {
				e.classHash = *u.ClassHash
				e.classHashKnown = true
			}
			if u.Nonce != nil {
				e.nonce = *u.Nonce
				e.nonceKnown = true
			}
		} else {
			if u.ClassHash != nil {
				e.classHash = *u.ClassHash
				e.classHashKnown = true
			}
			if u.Nonce != nil {
				e.nonce = *u.Nonce
				e.nonceKnown = true
			}
		}

		for k, v := range u.Storage {
			e.storage[k] = v
			if e.storageFetched != nil {
				e.storageFetched[k] = true
			}
		}
	}

	if newPin != nil {
		db.blockNumber = *newPin
		for _, e := range db.contracts {
			if e.tier != tierCached {
				continue
			}
			e.classHashKnown = false
			e.nonceKnown = false
			e.storageFetched = make(map[felt.Felt]bool)
		}
	}
}
