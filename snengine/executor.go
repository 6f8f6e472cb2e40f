package snengine

import (
	"context"

	"github.com/tycho-sim/simcore/felt"
	"github.com/tycho-sim/simcore/simerr"
	"github.com/tycho-sim/simcore/snstate"
)

// CallOutcome is the executor's VM-native result, the input to the
// Starknet result projector (component D).
type CallOutcome struct {
	Success     bool
	RetData     []felt.Felt
	Reverted    bool
	RevertError string
	GasConsumed uint64
}

// CairoExecutor runs one Starknet entry point against an overlay. No Go
// Cairo/Sierra VM exists anywhere in this ecosystem, so this is the
// pluggable seam the engine calls through — exactly where the reference
// implementation's ExecutionEntryPoint would run bytecode, and exactly
// the seam the reference implementation itself never finished wiring
// (its own interpret_result was left unimplemented). Callers that need
// real Cairo execution provide their own CairoExecutor; this package
// ships only the explicit stub below.
type CairoExecutor interface {
	Execute(ctx context.Context, class snstate.CompiledClass, entryPointSelector felt.Felt, calldata []felt.Felt, overlay *snstate.Overlay) (CallOutcome, error)
}

// UnsupportedExecutor is the default CairoExecutor: it always fails with
// a clear, typed error rather than silently returning a fabricated
// result. It exists so Engine can be constructed and exercised (state
// wiring, override application, class-hash resolution, projection) without
// requiring a real Cairo VM dependency this ecosystem does not have.
type UnsupportedExecutor struct{}

func (UnsupportedExecutor) Execute(ctx context.Context, class snstate.CompiledClass, entryPointSelector felt.Felt, calldata []felt.Felt, overlay *snstate.Overlay) (CallOutcome, error) {
	return CallOutcome{}, simerr.NewStateError("cairo execution not available: no CairoExecutor configured")
}
