package snengine

import (
	"context"
	"errors"
	"testing"

	"github.com/tycho-sim/simcore/felt"
	"github.com/tycho-sim/simcore/simerr"
	"github.com/tycho-sim/simcore/snstate"
)

type noopReader struct{}

func (noopReader) GetStorageAt(ctx context.Context, contractAddress, key felt.Felt, blockTag string) (felt.Felt, error) {
	return felt.Zero(), nil
}
func (noopReader) GetClassHashAt(ctx context.Context, contractAddress felt.Felt, blockTag string) (felt.Felt, error) {
	return felt.Zero(), nil
}
func (noopReader) GetNonce(ctx context.Context, contractAddress felt.Felt, blockTag string) (felt.Felt, error) {
	return felt.Zero(), nil
}

// echoExecutor returns its calldata unchanged and records the selector it
// was asked to run, letting tests assert the engine wired everything
// through correctly without needing a real Cairo VM.
type echoExecutor struct {
	lastSelector felt.Felt
	gas          uint64
}

func (e *echoExecutor) Execute(ctx context.Context, class snstate.CompiledClass, selector felt.Felt, calldata []felt.Felt, overlay *snstate.Overlay) (CallOutcome, error) {
	e.lastSelector = selector
	for i, v := range calldata {
		overlay.SetStorageAt(felt.FromUint64(uint64(i)), felt.Zero(), v)
	}
	return CallOutcome{Success: true, RetData: calldata, GasConsumed: e.gas}, nil
}

func newTestEngine(t *testing.T) (*Engine, felt.Felt, *echoExecutor) {
	t.Helper()
	db := snstate.NewSimulationDB(noopReader{})
	contract := felt.FromUint64(0x1)
	classHash := felt.FromUint64(0x2)

	exec := &echoExecutor{gas: 100}
	engine, err := NewEngine(db, BlockContext{}, exec, []ContractOverride{
		{ContractAddress: contract, ClassHash: classHash, Deprecated: false},
	})
	if err != nil {
		t.Fatal(err)
	}
	return engine, contract, exec
}

func TestStarknetSimulateIsDeterministic(t *testing.T) {
	engine, contract, exec := newTestEngine(t)

	p := Params{To: contract, EntryPoint: "transfer", Calldata: []felt.Felt{felt.FromUint64(5)}}

	res1, err := engine.Simulate(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}
	res2, err := engine.Simulate(context.Background(), p)
	if err != nil {
		t.Fatal(err)
	}

	if !res1.Success || !res2.Success {
		t.Fatalf("expected both calls to succeed: %v %v", res1.Err, res2.Err)
	}
	if len(res1.ReturnData) != 1 || !res1.ReturnData[0].Eq(res2.ReturnData[0]) {
		t.Fatal("identical calls must return identical data")
	}

	wantSelector := felt.Selector("transfer")
	if !exec.lastSelector.Eq(wantSelector) {
		t.Fatalf("selector mismatch: got %s want %s", exec.lastSelector.Hex(), wantSelector.Hex())
	}
}

func TestStarknetUnknownClassHashIsStateError(t *testing.T) {
	db := snstate.NewSimulationDB(noopReader{})
	engine, err := NewEngine(db, BlockContext{}, &echoExecutor{}, nil)
	if err != nil {
		t.Fatal(err)
	}

	_, err = engine.Simulate(context.Background(), Params{To: felt.FromUint64(999), EntryPoint: "foo"})
	if err == nil {
		t.Fatal("expected an error for an unresolvable class hash")
	}
	var stateErr *simerr.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected *simerr.StateError, got %T", err)
	}
}

func TestUnsupportedExecutorReturnsStateError(t *testing.T) {
	db := snstate.NewSimulationDB(noopReader{})
	contract := felt.FromUint64(1)
	classHash := felt.FromUint64(2)
	engine, err := NewEngine(db, BlockContext{}, nil, []ContractOverride{
		{ContractAddress: contract, ClassHash: classHash},
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := engine.Simulate(context.Background(), Params{To: contract, EntryPoint: "whatever"})
	if err == nil {
		t.Fatal("expected the default executor to fail loudly")
	}
	var stateErr *simerr.StateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("expected *simerr.StateError, got %T", err)
	}
	if res != nil {
		t.Fatal("expected a nil result alongside the error")
	}
}
