package snengine

import (
	"github.com/tycho-sim/simcore/felt"
	"github.com/tycho-sim/simcore/simerr"
	"github.com/tycho-sim/simcore/snstate"
)

// StateUpdate is the Starknet analog of evmengine.StateUpdate: a per-slot
// delta. Starknet has no native per-contract balance field in the sense
// the EVM does (balance lives in the fee token contract's own storage),
// so unlike the EVM projector this carries storage only.
type StateUpdate struct {
	Storage map[felt.Felt]felt.Felt
}

// Result is the VM-neutral outcome of one simulated Starknet call.
type Result struct {
	Success      bool
	ReturnData   []felt.Felt
	GasUsed      uint64
	StateUpdates map[felt.Felt]*StateUpdate
	Err          error
}

// project implements the Starknet result projector (component D): a
// successful call maps to a plain success Result, a reverted call carries
// its revert reason as *simerr.TransactionError, and any StateError from
// resolving the class hash or entry point is returned directly by
// Simulate before reaching here at all.
func project(outcome CallOutcome, err error, overlay *snstate.Overlay) *Result {
	updates := buildStateUpdates(overlay)

	if err != nil {
		return &Result{
			Success:      false,
			GasUsed:      outcome.GasConsumed,
			StateUpdates: updates,
			Err:          err,
		}
	}

	if outcome.Reverted {
		gu := outcome.GasConsumed
		return &Result{
			Success:      false,
			GasUsed:      outcome.GasConsumed,
			StateUpdates: updates,
			Err:          simerr.NewTransactionError(outcome.RevertError, &gu),
		}
	}

	return &Result{
		Success:      true,
		ReturnData:   outcome.RetData,
		GasUsed:      outcome.GasConsumed,
		StateUpdates: updates,
	}
}

func buildStateUpdates(overlay *snstate.Overlay) map[felt.Felt]*StateUpdate {
	updates := make(map[felt.Felt]*StateUpdate)
	for _, addr := range overlay.TouchedContracts() {
		var storage map[felt.Felt]felt.Felt
		if changed := overlay.ChangedStorage(addr); len(changed) > 0 {
			storage = make(map[felt.Felt]felt.Felt, len(changed))
			for k, v := range changed {
				storage[k] = v
			}
		}
		updates[addr] = &StateUpdate{Storage: storage}
	}
	return updates
}
