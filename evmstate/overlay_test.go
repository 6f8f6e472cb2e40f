package evmstate

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestEVMChangedStorageExcludesOverrideMatchingDatabaseValue(t *testing.T) {
	reader := &countingReader{storage: common.HexToHash("0x7")}
	db := NewSimulationDB(reader)
	addr := common.HexToAddress("0x1")
	slot := common.HexToHash("0x2")

	overlay := NewOverlay(context.Background(), db, map[common.Address]map[common.Hash]common.Hash{
		addr: {slot: common.HexToHash("0x7")},
	})

	// reading the slot (as the EVM does before any write) returns the
	// override; the write below then records that override value as the
	// slot's pre-write value for the changed-only filter.
	if v := overlay.GetState(addr, slot); v != common.HexToHash("0x7") {
		t.Fatalf("expected override value, got %s", v.Hex())
	}
	overlay.SetState(addr, slot, common.HexToHash("0x7"))

	if changed := overlay.ChangedStorage(addr); changed != nil {
		t.Fatalf("an override matching the underlying value must not be reported as changed, got %v", changed)
	}
}
