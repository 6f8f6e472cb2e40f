// Package snengine implements the Starknet simulation engine (component
// E), its result projector (component D), and its factory (component F).
package snengine

import (
	"context"

	"github.com/tycho-sim/simcore/felt"
	"github.com/tycho-sim/simcore/simerr"
	"github.com/tycho-sim/simcore/snstate"
)

// BlockContext carries the Starknet-specific chain parameters a call runs
// against. A zero value behaves like the reference implementation's
// BlockContext::default().
type BlockContext struct {
	ChainID        string
	FeeTokenAddr   felt.Felt
	GasPriceWei    felt.Felt
	SequencerAddr  felt.Felt
}

// Params describes one call to simulate.
type Params struct {
	Caller      felt.Felt
	To          felt.Felt
	Calldata    []felt.Felt
	EntryPoint  string // function name; the engine derives the selector
	GasLimit    uint64
	BlockNumber uint64
	Overrides   map[felt.Felt]map[felt.Felt]felt.Felt
}

// Engine runs Starknet simulations against one SimulationDB. Not safe for
// concurrent use on the same instance.
type Engine struct {
	db       *snstate.SimulationDB
	block    BlockContext
	executor CairoExecutor
}

// NewEngine is the Starknet engine factory (component F). overrides are
// ContractOverride entries: compiled classes (loaded by the caller from
// .casm/.json, see snstate.CompiledClass) seeded as mocked contracts with
// their own class hash and initial storage.
func NewEngine(db *snstate.SimulationDB, block BlockContext, executor CairoExecutor, overrides []ContractOverride) (*Engine, error) {
	if executor == nil {
		executor = UnsupportedExecutor{}
	}
	e := &Engine{db: db, block: block, executor: executor}

	for _, ov := range overrides {
		db.RegisterClass(snstate.CompiledClass{
			Hash:       ov.ClassHash,
			Path:       ov.Path,
			Payload:    ov.Payload,
			Deprecated: ov.Deprecated,
		})
		err := db.InitContract(ov.ContractAddress, ov.ClassHash, ov.StorageOverrides, true)
		if err != nil {
			if _, already := err.(*simerr.AlreadyInitialized); already {
				continue
			}
			return nil, err
		}
	}
	return e, nil
}

// ContractOverride mirrors the reference implementation's struct of the
// same name: a compiled class plus the address and initial storage it
// should be mocked under.
type ContractOverride struct {
	ContractAddress  felt.Felt
	ClassHash        felt.Felt
	Path             string
	Payload          []byte
	Deprecated       bool
	StorageOverrides map[felt.Felt]felt.Felt
}

// Simulate runs one call in isolation and projects its outcome.
func (e *Engine) Simulate(ctx context.Context, p Params) (*Result, error) {
	e.db.SetPin(p.BlockNumber)
	overlay := snstate.NewOverlay(ctx, e.db, p.Overrides)
	overlay.ApplyOverrides()

	classHash := overlay.ClassHashAt(p.To)
	if overlay.Err() != nil {
		return nil, overlay.Err()
	}

	class, ok := e.db.ClassByHash(classHash)
	if !ok {
		return nil, simerr.NewStateError("unknown class hash " + classHash.Hex() + " for contract " + p.To.Hex())
	}

	selector := felt.Selector(p.EntryPoint)

	outcome, err := e.executor.Execute(ctx, class, selector, p.Calldata, overlay)
	if overlay.Err() != nil {
		return nil, overlay.Err()
	}
	if err != nil {
		return nil, err
	}

	return project(outcome, err, overlay), nil
}
