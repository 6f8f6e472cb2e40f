package evmstate

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tycho-sim/simcore/account"
)

// Update applies a batch of account updates and optionally advances the
// pin, all under one write-lock critical section so no concurrent reader
// ever observes a half-applied batch (component G).
func (db *SimulationDB) Update(updates []account.Update, newPin *big.Int, newTimestamp uint64) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range updates {
		e, exists := db.accts[u.Address]
		if !exists {
			e = &accountEntry{
				tier:           tierCached,
				storage:        make(map[common.Hash]common.Hash),
				storageFetched: make(map[common.Hash]struct{}),
			}
			db.accts[u.Address] = e
		}

		if u.Full {
			balance := u.Balance
			if balance == nil {
				balance = e.info.Balance
			}
			nonce := e.info.Nonce
			if u.Nonce != nil {
				nonce = *u.Nonce
			}
			e.info = account.NewInfo(balance, nonce, u.Code)
			e.basicKnown = true
			e.storage = make(map[common.Hash]common.Hash)
			e.storageFetched = make(map[common.Hash]struct{})
		} else {
			if u.Balance != nil {
				e.info.Balance = u.Balance
			}
			if u.Nonce != nil {
				e.info.Nonce = *u.Nonce
			}
			if u.Code != nil {
				e.info = account.NewInfo(e.info.Balance, e.info.Nonce, u.Code)
			}
		}

		for slot, val := range u.Storage {
			e.storage[slot] = val
			if e.storageFetched != nil {
				e.storageFetched[slot] = struct{}{}
			}
		}
	}

	if newPin != nil {
		db.blockNumber = newPin
		db.timestamp = newTimestamp
		for _, e := range db.accts {
			if e.tier != tierCached {
				continue
			}
			e.basicKnown = false
			e.storageFetched = make(map[common.Hash]struct{})
		}
	}
}
