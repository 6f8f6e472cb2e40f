package evmengine

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"github.com/tycho-sim/simcore/evmstate"
	"github.com/tycho-sim/simcore/simerr"
)

// StateUpdate is the post-call delta for one account. Storage is nil when
// this call never made a net change to the account's storage, but Balance
// is always present once an account is touched at all.
type StateUpdate struct {
	Balance *uint256.Int
	Storage map[common.Hash]common.Hash
}

// Result is the VM-neutral outcome of one simulated call.
type Result struct {
	Success      bool
	ReturnData   []byte
	GasUsed      uint64
	StateUpdates map[common.Address]*StateUpdate

	// Err is a *simerr.TransactionError when Success is false and the VM
	// did run (revert or halt); the engine never constructs any other
	// simerr variant here, since storage errors are returned directly by
	// Simulate before reaching the projector.
	Err error
}

// project implements the result projector (component D) for the EVM: it
// maps go-ethereum's Call/Create2 outcome plus the overlay's touched-state
// bookkeeping into the neutral Result shape.
func project(ret []byte, gasUsed uint64, vmErr error, overlay *evmstate.Overlay) *Result {
	updates := buildStateUpdates(overlay)

	if vmErr == nil {
		return &Result{
			Success:      true,
			ReturnData:   ret,
			GasUsed:      gasUsed,
			StateUpdates: updates,
		}
	}

	gu := gasUsed
	if errors.Is(vmErr, vm.ErrExecutionReverted) {
		return &Result{
			Success:      false,
			GasUsed:      gasUsed,
			StateUpdates: updates,
			Err:          simerr.NewTransactionError(hexutil.Encode(ret), &gu),
		}
	}

	// Any other VM error is a halt (out of gas, invalid opcode, stack
	// over/underflow, invalid jump destination, write protection, ...).
	return &Result{
		Success:      false,
		GasUsed:      gasUsed,
		StateUpdates: updates,
		Err:          simerr.NewTransactionError(vmErr.Error(), &gu),
	}
}

// buildStateUpdates walks every address the call touched and emits a
// StateUpdate carrying its final balance plus, only if this call produced
// a net storage change, the changed slots.
func buildStateUpdates(overlay *evmstate.Overlay) map[common.Address]*StateUpdate {
	updates := make(map[common.Address]*StateUpdate)
	for _, addr := range overlay.TouchedAddresses() {
		balance, hasBalance := overlay.FinalBalance(addr)
		if !hasBalance {
			balance = new(uint256.Int)
		}
		var storage map[common.Hash]common.Hash
		if changed := overlay.ChangedStorage(addr); len(changed) > 0 {
			storage = make(map[common.Hash]common.Hash, len(changed))
			for k, v := range changed {
				storage[k] = v
			}
		}
		updates[addr] = &StateUpdate{Balance: balance, Storage: storage}
	}
	return updates
}
