package evmstate

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/tycho-sim/simcore/account"
)

type countingReader struct {
	balanceCalls int
	codeCalls    int
	storageCalls int

	balance *uint256.Int
	nonce   uint64
	code    []byte
	storage common.Hash
}

func (r *countingReader) GetBalance(ctx context.Context, address common.Address, blockTag string) (*uint256.Int, error) {
	r.balanceCalls++
	return r.balance, nil
}

func (r *countingReader) GetNonce(ctx context.Context, address common.Address, blockTag string) (uint64, error) {
	return r.nonce, nil
}

func (r *countingReader) GetCode(ctx context.Context, address common.Address, blockTag string) ([]byte, error) {
	r.codeCalls++
	return r.code, nil
}

func (r *countingReader) GetStorageAt(ctx context.Context, address common.Address, slot common.Hash, blockTag string) (common.Hash, error) {
	r.storageCalls++
	return r.storage, nil
}

func TestCacheIdempotence(t *testing.T) {
	reader := &countingReader{balance: uint256.NewInt(42), code: []byte{0x60, 0x00}, storage: common.HexToHash("0x1")}
	db := NewSimulationDB(reader)
	addr := common.HexToAddress("0xabc")

	for i := 0; i < 3; i++ {
		if _, err := db.Basic(context.Background(), addr); err != nil {
			t.Fatal(err)
		}
	}
	if reader.balanceCalls != 1 {
		t.Fatalf("expected exactly one remote fetch for balance, got %d", reader.balanceCalls)
	}
	if reader.codeCalls != 1 {
		t.Fatalf("expected exactly one remote fetch for code, got %d", reader.codeCalls)
	}

	slot := common.HexToHash("0x2")
	for i := 0; i < 3; i++ {
		if _, err := db.Storage(context.Background(), addr, slot); err != nil {
			t.Fatal(err)
		}
	}
	if reader.storageCalls != 1 {
		t.Fatalf("expected exactly one remote fetch for storage, got %d", reader.storageCalls)
	}
}

func TestSetPinForcesCachedRefetchButNotMocked(t *testing.T) {
	reader := &countingReader{balance: uint256.NewInt(1), storage: common.HexToHash("0x1")}
	db := NewSimulationDB(reader)

	cached := common.HexToAddress("0x1")
	if _, err := db.Basic(context.Background(), cached); err != nil {
		t.Fatal(err)
	}

	mocked := common.HexToAddress("0x2")
	if err := db.InitAccount(mocked, account.NewInfo(uint256.NewInt(99), 0, nil), nil, true); err != nil {
		t.Fatal(err)
	}

	db.SetPin(big.NewInt(100), 0)

	if _, err := db.Basic(context.Background(), cached); err != nil {
		t.Fatal(err)
	}
	if reader.balanceCalls != 2 {
		t.Fatalf("expected refetch after pin change, got %d calls", reader.balanceCalls)
	}

	info, err := db.Basic(context.Background(), mocked)
	if err != nil {
		t.Fatal(err)
	}
	if info.Balance.Uint64() != 99 {
		t.Fatalf("mocked account must survive pin change unchanged, got %s", info.Balance)
	}
}

func TestInitAccountTwiceIsRejected(t *testing.T) {
	db := NewSimulationDB(&countingReader{})
	addr := common.HexToAddress("0x1")
	if err := db.InitAccount(addr, account.Info{}, nil, true); err != nil {
		t.Fatal(err)
	}
	if err := db.InitAccount(addr, account.Info{}, nil, true); err == nil {
		t.Fatal("expected an error initializing the same mocked account twice")
	}
}

func TestMockedAccountStorageMissIsZeroNotFetched(t *testing.T) {
	reader := &countingReader{storage: common.HexToHash("0xdead")}
	db := NewSimulationDB(reader)
	addr := common.HexToAddress("0x1")
	if err := db.InitAccount(addr, account.Info{}, map[common.Hash]common.Hash{}, true); err != nil {
		t.Fatal(err)
	}

	val, err := db.Storage(context.Background(), addr, common.HexToHash("0x5"))
	if err != nil {
		t.Fatal(err)
	}
	if val != (common.Hash{}) {
		t.Fatalf("expected zero value for missing mocked slot, got %s", val.Hex())
	}
	if reader.storageCalls != 0 {
		t.Fatal("mocked account storage must never hit the remote reader")
	}
}

func TestNonPermanentMockedAccountStorageMissFetchesRemote(t *testing.T) {
	reader := &countingReader{storage: common.HexToHash("0xdead")}
	db := NewSimulationDB(reader)
	addr := common.HexToAddress("0x1")
	if err := db.InitAccount(addr, account.Info{}, map[common.Hash]common.Hash{}, false); err != nil {
		t.Fatal(err)
	}

	val, err := db.Storage(context.Background(), addr, common.HexToHash("0x5"))
	if err != nil {
		t.Fatal(err)
	}
	if val != common.HexToHash("0xdead") {
		t.Fatalf("expected fetched value for missing non-permanent mocked slot, got %s", val.Hex())
	}
	if reader.storageCalls != 1 {
		t.Fatalf("expected exactly one remote fetch, got %d", reader.storageCalls)
	}
}
