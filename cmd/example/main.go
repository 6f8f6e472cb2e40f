// Command example demonstrates the simulation core against a live EVM
// JSON-RPC endpoint: a thin, hardcoded driver, not a library entry point.
package main

import (
	"context"
	"log"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/holiman/uint256"

	"github.com/tycho-sim/simcore/account"
	"github.com/tycho-sim/simcore/evmengine"
	"github.com/tycho-sim/simcore/evmstate"
	"github.com/tycho-sim/simcore/remote"
)

func main() {
	exampleLiveBalanceRead()
	exampleMockedContractCall()
}

// exampleLiveBalanceRead simulates a zero-value call against a mocked
// contract while letting the caller's own account fall through to a live
// node for its balance, exercising the cached tier of the database.
func exampleLiveBalanceRead() {
	endpoint := os.Getenv("ETH_RPC_ENDPOINT")
	if endpoint == "" {
		endpoint = "https://eth.llamarpc.com"
	}

	rpcClient := remote.NewClient(endpoint)
	db := evmstate.NewSimulationDB(rpcClient)
	engine, err := evmengine.NewEngine(db, nil)
	if err != nil {
		log.Fatal(err)
	}

	code := []byte{
		byte(vm.PUSH0), byte(vm.CALLDATALOAD),
		byte(vm.PUSH0), byte(vm.SSTORE),
		byte(vm.PUSH0), byte(vm.SLOAD),
		byte(vm.PUSH0), byte(vm.MSTORE),
		byte(vm.PUSH1), 0x20, byte(vm.PUSH0), byte(vm.RETURN),
	}
	contract := common.HexToAddress("0x0000000000000000000000000000000000000011")
	if err := db.InitAccount(contract, account.NewInfo(nil, 0, code), nil, true); err != nil {
		log.Fatal(err)
	}

	result, err := engine.Simulate(context.Background(), evmengine.Params{
		Caller:      common.HexToAddress("0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045"),
		To:          contract,
		Data:        hexutil.MustDecode(`0x0000000000000000000000000000000000000000000000000000000000000020`),
		BlockNumber: big.NewInt(19_000_000),
	})
	if err != nil {
		log.Fatal(err)
	}

	log.Println("success:", result.Success)
	log.Println("return data:", hexutil.Encode(result.ReturnData))
	log.Println("gas used:", result.GasUsed)
}

// exampleMockedContractCall simulates a self-contained call against a
// fully mocked contract, never touching the network at all.
func exampleMockedContractCall() {
	db := evmstate.NewSimulationDB(nil)
	engine, err := evmengine.NewEngine(db, nil)
	if err != nil {
		log.Fatal(err)
	}

	code := []byte{byte(vm.PUSH1), 0x01, byte(vm.PUSH0), byte(vm.MSTORE), byte(vm.PUSH1), 0x20, byte(vm.PUSH0), byte(vm.RETURN)}
	contract := common.HexToAddress("0x0000000000000000000000000000000000000022")
	if err := db.InitAccount(contract, account.NewInfo(uint256.NewInt(0), 0, code), nil, true); err != nil {
		log.Fatal(err)
	}

	result, err := engine.Simulate(context.Background(), evmengine.Params{To: contract})
	if err != nil {
		log.Fatal(err)
	}
	log.Println("mocked call return data:", hexutil.Encode(result.ReturnData))
}
