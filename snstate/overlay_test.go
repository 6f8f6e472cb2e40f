package snstate

import (
	"context"
	"testing"

	"github.com/tycho-sim/simcore/felt"
)

func TestChangedStorageExcludesSameValueWrite(t *testing.T) {
	db := NewSimulationDB(&fakeReader{storage: felt.Zero()})
	overlay := NewOverlay(context.Background(), db, nil)

	addr := felt.FromUint64(1)
	slot := felt.FromUint64(2)

	original := overlay.GetStorageAt(addr, slot) // zero, read through to the empty database
	overlay.SetStorageAt(addr, slot, original)

	if changed := overlay.ChangedStorage(addr); changed != nil {
		t.Fatalf("a write that restores the original value must not be reported as changed, got %v", changed)
	}
}

func TestChangedStorageIncludesRealWrite(t *testing.T) {
	db := NewSimulationDB(&fakeReader{storage: felt.Zero()})
	overlay := NewOverlay(context.Background(), db, nil)

	addr := felt.FromUint64(1)
	slot := felt.FromUint64(2)

	overlay.SetStorageAt(addr, slot, felt.FromUint64(42))

	changed := overlay.ChangedStorage(addr)
	if changed == nil || !changed[slot].Eq(felt.FromUint64(42)) {
		t.Fatalf("expected slot to be reported as changed, got %v", changed)
	}
}

func TestChangedStorageExcludesOverrideMatchingDatabaseValue(t *testing.T) {
	db := NewSimulationDB(&fakeReader{storage: felt.FromUint64(7)})
	addr := felt.FromUint64(1)
	slot := felt.FromUint64(2)

	overlay := NewOverlay(context.Background(), db, map[felt.Felt]map[felt.Felt]felt.Felt{
		addr: {slot: felt.FromUint64(7)},
	})
	overlay.ApplyOverrides()

	if changed := overlay.ChangedStorage(addr); changed != nil {
		t.Fatalf("an override matching the underlying value must not be reported as changed, got %v", changed)
	}
}
