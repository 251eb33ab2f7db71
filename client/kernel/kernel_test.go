// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"decred.org/kernelprov/aa"
	aakernel "decred.org/kernelprov/aa/networks/kernel"
	"decred.org/kernelprov/client/db"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const tKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var (
	tLogger       = aa.StdOutLogger("TEST", aa.LevelTrace)
	tCtx          = context.Background()
	tChainID      = big.NewInt(aakernel.TestnetChainID)
	tContracts    = aakernel.ContractAddresses[aa.Testnet]
	tOwner        = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tPredicted    = common.HexToAddress("0xCAFE000000000000000000000000000000000000")
	tAccountCode  = []byte{0x60, 0x80, 0x60, 0x40}
	tGasPrice     = big.NewInt(3_000_000_000)
	errTest       = errors.New("test error")
	errTestSecond = errors.New("second test error")
)

// tSigner signs with a fixed key but claims an arbitrary owner address.
type tSigner struct {
	*KeySigner
	addr common.Address
}

func (s *tSigner) Address() common.Address { return s.addr }

func newTSigner(t *testing.T, addr common.Address) *tSigner {
	t.Helper()
	ks, err := NewKeySigner(tKeyHex)
	if err != nil {
		t.Fatalf("NewKeySigner error: %v", err)
	}
	return &tSigner{KeySigner: ks, addr: addr}
}

type tChain struct {
	id        *big.Int
	height    uint64
	heightErr error
	// readFailures is the number of codeAt calls that fail before success.
	readFailures int
	codeCalls    int
	code         map[common.Address][]byte
	gasPrice     *big.Int

	predicted  common.Address
	predictErr error
	// predict overrides predicted when set.
	predict       func(factory common.Address, initData []byte, salt [32]byte) common.Address
	impl          common.Address
	implCalls     int
	entryPoint    common.Address
	entryPointErr error
	nonce         *big.Int

	createCalls int
	createErr   error
	createFees  *feeCaps
	createGas   uint64
	pending     *types.Transaction
	// deployedCode is placed at the predicted address when the creation
	// transaction is mined.
	deployedCode []byte
	receipt      *types.Receipt
	receiptErr   error
}

var _ chainClient = (*tChain)(nil)

func newTChain() *tChain {
	return &tChain{
		id:           new(big.Int).Set(tChainID),
		height:       1000,
		code:         map[common.Address][]byte{tContracts.ECDSAValidator: {0x01}},
		gasPrice:     tGasPrice,
		predicted:    tPredicted,
		impl:         tContracts.Kernel,
		entryPoint:   tContracts.EntryPoint,
		nonce:        new(big.Int),
		deployedCode: tAccountCode,
		receipt: &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			GasUsed:     123_456,
			BlockNumber: big.NewInt(1001),
		},
	}
}

func (c *tChain) chainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.id), nil
}

func (c *tChain) blockNumber(context.Context) (uint64, error) {
	return c.height, c.heightErr
}

func (c *tChain) codeAt(_ context.Context, addr common.Address) ([]byte, error) {
	c.codeCalls++
	if c.readFailures > 0 {
		c.readFailures--
		return nil, errTest
	}
	return c.code[addr], nil
}

func (c *tChain) suggestGasPrice(context.Context) (*big.Int, error) {
	return c.gasPrice, nil
}

func (c *tChain) predictedAddress(_ context.Context, factory common.Address, initData []byte, salt [32]byte) (common.Address, error) {
	if c.predictErr != nil {
		return common.Address{}, c.predictErr
	}
	if c.predict != nil {
		return c.predict(factory, initData, salt), nil
	}
	return c.predicted, nil
}

func (c *tChain) factoryImplementation(context.Context, common.Address) (common.Address, error) {
	c.implCalls++
	return c.impl, nil
}

func (c *tChain) accountEntryPoint(context.Context, common.Address) (common.Address, error) {
	return c.entryPoint, c.entryPointErr
}

func (c *tChain) entryPointNonce(context.Context, common.Address, common.Address, *big.Int) (*big.Int, error) {
	return c.nonce, nil
}

func (c *tChain) createAccount(_ context.Context, _ common.Address, _ []byte, _ [32]byte, gasLimit uint64, fees *feeCaps) (*types.Transaction, error) {
	c.createCalls++
	c.createFees = fees
	c.createGas = gasLimit
	if c.createErr != nil {
		return nil, c.createErr
	}
	c.pending = types.NewTx(&types.LegacyTx{Nonce: uint64(c.createCalls), Gas: gasLimit, GasPrice: fees.maxFee})
	return c.pending, nil
}

func (c *tChain) transactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	if c.receiptErr != nil {
		return nil, c.receiptErr
	}
	if c.pending == nil || c.pending.Hash() != txHash {
		return nil, ethereum.NotFound
	}
	if c.receipt.Status == types.ReceiptStatusSuccessful {
		c.code[c.predicted] = c.deployedCode
	}
	r := *c.receipt
	r.TxHash = txHash
	return &r, nil
}

func (c *tChain) shutdown() {}

type tBundler struct {
	id          *big.Int
	entryPoints map[common.Address]bool
	epErr       error
	estimate    *estimateBundlerGasResult
	estimateErr error
	estimated   []*aakernel.UserOperation
	sendErr     error
	sent        []*aakernel.UserOperation
	// receiptAfter is the number of receipt polls that find nothing.
	receiptAfter int
	receipt      *userOpReceipt
	receiptErr   error
	receiptPolls int
}

var _ bundler = (*tBundler)(nil)

func newTBundler() *tBundler {
	return &tBundler{
		id:          new(big.Int).Set(tChainID),
		entryPoints: map[common.Address]bool{tContracts.EntryPoint: true},
		estimate: &estimateBundlerGasResult{
			PreVerificationGas:   "0xc350",
			VerificationGasLimit: "0x186a0",
			CallGasLimit:         "0x7530",
		},
		receipt: &userOpReceipt{
			success:     true,
			txHash:      common.HexToHash("0xabcdef"),
			blockNumber: 1002,
			gasUsed:     90_000,
		},
	}
}

func (b *tBundler) chainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(b.id), nil
}

func (b *tBundler) supportedEntryPoints(context.Context) (map[common.Address]bool, error) {
	return b.entryPoints, b.epErr
}

func copyOp(op *aakernel.UserOperation) *aakernel.UserOperation {
	cp := *op
	cp.Signature = common.CopyBytes(op.Signature)
	return &cp
}

func (b *tBundler) estimateGas(_ context.Context, op *aakernel.UserOperation) (*estimateBundlerGasResult, error) {
	b.estimated = append(b.estimated, copyOp(op))
	return b.estimate, b.estimateErr
}

func (b *tBundler) sendUserOp(_ context.Context, op *aakernel.UserOperation) (common.Hash, error) {
	b.sent = append(b.sent, copyOp(op))
	if b.sendErr != nil {
		return common.Hash{}, b.sendErr
	}
	return op.Hash(tContracts.EntryPoint, b.id)
}

func (b *tBundler) getUserOpReceipt(context.Context, common.Hash) (*userOpReceipt, error) {
	b.receiptPolls++
	if b.receiptErr != nil {
		return nil, b.receiptErr
	}
	if b.receiptPolls <= b.receiptAfter {
		return nil, nil
	}
	return b.receipt, nil
}

func (b *tBundler) shutdown() {}

type tAccountClient struct {
	addr    common.Address
	calls   []string
	encoded [][]byte
	raw     [][]byte
	txHash  common.Hash
	sendErr error
	opHash  common.Hash
	rawErr  error
}

var _ AccountClient = (*tAccountClient)(nil)

func (c *tAccountClient) Address() common.Address { return c.addr }

func (c *tAccountClient) SendTransaction(_ context.Context, intents ...*OperationIntent) (common.Hash, error) {
	c.calls = append(c.calls, "send")
	callData, _ := aakernel.PackExecuteData(intents)
	c.encoded = append(c.encoded, callData)
	return c.txHash, c.sendErr
}

func (c *tAccountClient) EncodeIntent(intents ...*OperationIntent) ([]byte, error) {
	c.calls = append(c.calls, "encode")
	return aakernel.PackExecuteData(intents)
}

func (c *tAccountClient) SendRawOperation(_ context.Context, callData []byte) (common.Hash, error) {
	c.calls = append(c.calls, "raw")
	c.raw = append(c.raw, callData)
	return c.opHash, c.rawErr
}

type tJournal struct {
	runs []*db.RunRecord
}

func (j *tJournal) StoreRun(r *db.RunRecord) error {
	j.runs = append(j.runs, r)
	return nil
}

func tConfig() *Config {
	cfg := NewConfig(aa.Testnet)
	cfg.RPCTimeout = time.Second
	cfg.InclusionTimeout = time.Second
	cfg.ReceiptPollInterval = time.Millisecond
	return cfg
}

func tRetrier(cfg *Config) *retrier {
	r := newRetrier(cfg, tLogger)
	r.initialDelay = time.Millisecond
	r.maxDelay = 4 * time.Millisecond
	return r
}

func tDescriptor(t *testing.T, owner common.Address, salt *big.Int) *aakernel.AccountDescriptor {
	t.Helper()
	d, err := aakernel.NewAccountDescriptor(owner, salt, tContracts.Kernel, tContracts.Factory, nil)
	if err != nil {
		t.Fatalf("NewAccountDescriptor error: %v", err)
	}
	return d
}

// create2Factory predicts addresses the way a conforming factory does.
func create2Factory(owner, impl common.Address) func(common.Address, []byte, [32]byte) common.Address {
	return func(factory common.Address, _ []byte, salt [32]byte) common.Address {
		ownerSalt := crypto.Keccak256(owner[:], salt[:])
		implHash := crypto.Keccak256(impl[:])
		buf := append([]byte{0xff}, factory[:]...)
		buf = append(buf, ownerSalt...)
		buf = append(buf, implHash...)
		return common.BytesToAddress(crypto.Keccak256(buf)[12:])
	}
}
