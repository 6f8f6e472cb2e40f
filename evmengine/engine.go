// Package evmengine implements the EVM simulation engine (component E),
// its result projector (component D), and its factory (component F). The
// engine wraps go-ethereum's own core/vm directly rather than a vendored
// fork of it, the same way any other consumer of go-ethereum would.
package evmengine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/eth/tracers/logger"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/tycho-sim/simcore/account"
	"github.com/tycho-sim/simcore/evmstate"
	"github.com/tycho-sim/simcore/simerr"
)

// defaultGasLimit matches the reference implementation's default when a
// caller does not supply one.
const defaultGasLimit = 8_000_000

// Params describes one call to simulate.
type Params struct {
	Caller      common.Address
	To          common.Address // zero address means "deploy via CREATE2 with a zero salt"
	Data        []byte
	Value       *uint256.Int
	GasLimit    uint64
	BlockNumber *big.Int
	Timestamp   uint64
	Overrides   map[common.Address]map[common.Hash]common.Hash
	Trace       bool
}

// Engine runs simulations against one SimulationDB. It is not safe for
// concurrent use on the same instance: each call temporarily binds a
// fresh, non-shareable overlay to the database.
type Engine struct {
	db          *evmstate.SimulationDB
	chainConfig *params.ChainConfig
	coinbase    common.Address
}

// NewEngine is the engine factory (component F). It seeds the zero address
// and the identity precompile's address (0x...04) as empty accounts so a
// simulated call can never fail to find them.
func NewEngine(db *evmstate.SimulationDB, chainConfig *params.ChainConfig) (*Engine, error) {
	if chainConfig == nil {
		chainConfig = DefaultChainConfig()
	}
	e := &Engine{db: db, chainConfig: chainConfig}

	for _, addr := range seedAddresses() {
		err := db.InitAccount(addr, account.NewInfo(nil, 0, nil), nil, true)
		if err != nil {
			if _, already := err.(*simerr.AlreadyInitialized); already {
				continue
			}
			return nil, err
		}
	}
	return e, nil
}

func seedAddresses() []common.Address {
	return []common.Address{
		{},
		common.HexToAddress("0x0000000000000000000000000000000000000004"),
	}
}

// DefaultChainConfig enables Shanghai and Cancun from genesis with no
// merge transition pending.
func DefaultChainConfig() *params.ChainConfig {
	shanghaiTime := uint64(0)
	cancunTime := uint64(0)
	return &params.ChainConfig{
		ChainID:                       big.NewInt(1),
		HomesteadBlock:                new(big.Int),
		DAOForkBlock:                  new(big.Int),
		EIP150Block:                   new(big.Int),
		EIP155Block:                   new(big.Int),
		EIP158Block:                   new(big.Int),
		ByzantiumBlock:                new(big.Int),
		ConstantinopleBlock:           new(big.Int),
		PetersburgBlock:               new(big.Int),
		IstanbulBlock:                 new(big.Int),
		MuirGlacierBlock:              new(big.Int),
		BerlinBlock:                   new(big.Int),
		LondonBlock:                   new(big.Int),
		TerminalTotalDifficulty:       big.NewInt(0),
		TerminalTotalDifficultyPassed: true,
		ShanghaiTime:                  &shanghaiTime,
		CancunTime:                    &cancunTime,
	}
}

// Simulate runs one call in isolation and projects its outcome into a
// neutral Result. None of the call's writes reach the underlying
// SimulationDB; the only change made to it is moving its pin to
// p.BlockNumber.
func (e *Engine) Simulate(ctx context.Context, p Params) (*Result, error) {
	if p.GasLimit == 0 {
		p.GasLimit = defaultGasLimit
	}
	if p.Value == nil {
		p.Value = new(uint256.Int)
	}
	blockNumber := p.BlockNumber
	if blockNumber == nil {
		blockNumber = new(big.Int)
	}

	e.db.SetPin(blockNumber, p.Timestamp)
	overlay := evmstate.NewOverlay(ctx, e.db, p.Overrides)

	blockCtx := vm.BlockContext{
		CanTransfer: func(db vm.StateDB, addr common.Address, amount *uint256.Int) bool {
			return db.GetBalance(addr).Cmp(amount) >= 0
		},
		Transfer: func(db vm.StateDB, from, to common.Address, amount *uint256.Int) {
			db.SubBalance(from, amount, tracing.BalanceChangeTransfer)
			db.AddBalance(to, amount, tracing.BalanceChangeTransfer)
		},
		GetHash: func(n uint64) common.Hash {
			return crypto.Keccak256Hash(new(big.Int).SetUint64(n).Bytes())
		},
		Coinbase:    e.coinbase,
		BlockNumber: blockNumber,
		Time:        p.Timestamp,
		Difficulty:  new(big.Int),
		GasLimit:    p.GasLimit,
		BaseFee:     big.NewInt(params.InitialBaseFee),
		Random:      &common.Hash{},
	}

	txCtx := vm.TxContext{
		Origin:   p.Caller,
		GasPrice: new(big.Int),
	}

	vmConfig := vm.Config{}
	var structLogger *logger.StructLogger
	if p.Trace {
		structLogger = logger.NewStructLogger(&logger.Config{EnableReturnData: true})
		vmConfig.Tracer = structLogger.Hooks()
	}

	evm := vm.NewEVM(blockCtx, txCtx, overlay, e.chainConfig, vmConfig)

	caller := vm.AccountRef(p.Caller)

	var (
		ret         []byte
		leftOverGas uint64
		vmErr       error
		contractOut common.Address
	)

	if p.To == (common.Address{}) {
		var salt uint256.Int
		var createErr error
		ret, contractOut, leftOverGas, createErr = evm.Create2(caller, p.Data, p.GasLimit, p.Value, &salt)
		vmErr = createErr
		_ = contractOut
	} else {
		ret, leftOverGas, vmErr = evm.Call(caller, p.To, p.Data, p.GasLimit, p.Value)
	}

	if p.Trace && structLogger != nil {
		for _, entry := range structLogger.StructLogs() {
			log.Debug("evmengine: trace step", "pc", entry.Pc, "op", entry.Op.String(), "gas", entry.Gas, "gasCost", entry.GasCost, "depth", entry.Depth, "err", entry.Err)
		}
	}

	if overlay.Err() != nil {
		return nil, overlay.Err()
	}

	gasUsed := computeGasUsed(p.GasLimit, leftOverGas, overlay.GetRefund())

	return project(ret, gasUsed, vmErr, overlay), nil
}

// computeGasUsed applies the gas accounting rule: gas consumed is the raw
// amount spent minus whatever got refunded, never going negative.
func computeGasUsed(gasLimit, leftOverGas, refund uint64) uint64 {
	var gasUsed uint64
	if leftOverGas <= gasLimit {
		gasUsed = gasLimit - leftOverGas
	}
	if refund <= gasUsed {
		gasUsed -= refund
	} else {
		gasUsed = 0
	}
	return gasUsed
}
