package snstate

import (
	"context"
	"testing"

	"github.com/tycho-sim/simcore/felt"
)

type fakeReader struct {
	storageCalls   int
	classHashCalls int
	storage        felt.Felt
	classHash      felt.Felt
}

func (r *fakeReader) GetStorageAt(ctx context.Context, contractAddress, key felt.Felt, blockTag string) (felt.Felt, error) {
	r.storageCalls++
	return r.storage, nil
}

func (r *fakeReader) GetClassHashAt(ctx context.Context, contractAddress felt.Felt, blockTag string) (felt.Felt, error) {
	r.classHashCalls++
	return r.classHash, nil
}

func (r *fakeReader) GetNonce(ctx context.Context, contractAddress felt.Felt, blockTag string) (felt.Felt, error) {
	return felt.Zero(), nil
}

func TestStarknetCacheIdempotence(t *testing.T) {
	reader := &fakeReader{storage: felt.FromUint64(7), classHash: felt.FromUint64(123)}
	db := NewSimulationDB(reader)
	addr := felt.FromUint64(1)

	for i := 0; i < 3; i++ {
		if _, err := db.ClassHashAt(context.Background(), addr); err != nil {
			t.Fatal(err)
		}
	}
	if reader.classHashCalls != 1 {
		t.Fatalf("expected one class hash fetch, got %d", reader.classHashCalls)
	}

	key := felt.FromUint64(2)
	for i := 0; i < 3; i++ {
		if _, err := db.Storage(context.Background(), addr, key); err != nil {
			t.Fatal(err)
		}
	}
	if reader.storageCalls != 1 {
		t.Fatalf("expected one storage fetch, got %d", reader.storageCalls)
	}
}

func TestStarknetMockedContractNeverFetches(t *testing.T) {
	reader := &fakeReader{storage: felt.FromUint64(99)}
	db := NewSimulationDB(reader)
	addr := felt.FromUint64(1)

	if err := db.InitContract(addr, felt.FromUint64(42), map[felt.Felt]felt.Felt{}, true); err != nil {
		t.Fatal(err)
	}

	val, err := db.Storage(context.Background(), addr, felt.FromUint64(5))
	if err != nil {
		t.Fatal(err)
	}
	if !val.IsZero() {
		t.Fatalf("expected zero for missing mocked slot, got %s", val.Hex())
	}
	if reader.storageCalls != 0 {
		t.Fatal("mocked contract storage must never hit the remote reader")
	}
}

func TestStarknetNonPermanentMockedContractStorageMissFetchesRemote(t *testing.T) {
	reader := &fakeReader{storage: felt.FromUint64(99)}
	db := NewSimulationDB(reader)
	addr := felt.FromUint64(1)

	if err := db.InitContract(addr, felt.FromUint64(42), map[felt.Felt]felt.Felt{}, false); err != nil {
		t.Fatal(err)
	}

	val, err := db.Storage(context.Background(), addr, felt.FromUint64(5))
	if err != nil {
		t.Fatal(err)
	}
	if !val.Eq(felt.FromUint64(99)) {
		t.Fatalf("expected fetched value for missing non-permanent mocked key, got %s", val.Hex())
	}
	if reader.storageCalls != 1 {
		t.Fatalf("expected exactly one remote fetch, got %d", reader.storageCalls)
	}
}
