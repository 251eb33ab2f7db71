// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"decred.org/kernelprov/aa"
	"decred.org/kernelprov/aa/networks/kernel/contracts/account"
	"decred.org/kernelprov/aa/networks/kernel/contracts/entrypoint"
	"decred.org/kernelprov/aa/networks/kernel/contracts/factory"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"golang.org/x/time/rate"
)

// feeCaps are the fees for a transaction or user operation. For a
// transaction, a nil tip means a legacy gas price of maxFee.
type feeCaps struct {
	maxFee      *big.Int
	maxPriority *big.Int
}

// chainClient is the chain RPC as used by the orchestrator, the validator and
// the account client.
type chainClient interface {
	chainID(ctx context.Context) (*big.Int, error)
	blockNumber(ctx context.Context) (uint64, error)
	codeAt(ctx context.Context, addr common.Address) ([]byte, error)
	suggestGasPrice(ctx context.Context) (*big.Int, error)
	predictedAddress(ctx context.Context, factoryAddr common.Address, initData []byte, salt [32]byte) (common.Address, error)
	factoryImplementation(ctx context.Context, factoryAddr common.Address) (common.Address, error)
	accountEntryPoint(ctx context.Context, acct common.Address) (common.Address, error)
	entryPointNonce(ctx context.Context, entryPoint, sender common.Address, key *big.Int) (*big.Int, error)
	createAccount(ctx context.Context, factoryAddr common.Address, initData []byte, salt [32]byte, gasLimit uint64, fees *feeCaps) (*types.Transaction, error)
	transactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	shutdown()
}

// rpcclient satisfies the chainClient interface over a JSON-RPC node
// connection.
type rpcclient struct {
	// c is a direct client for raw calls.
	c *rpc.Client
	// ec wraps the client with some useful calls.
	ec     *ethclient.Client
	signer Signer
}

var _ chainClient = (*rpcclient)(nil)

// newRPCClient connects to the node at endpoint. The signer signs the
// createAccount transaction.
func newRPCClient(ctx context.Context, endpoint string, signer Signer) (*rpcclient, error) {
	c, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("unable to dial rpc: %w", err)
	}
	return &rpcclient{
		c:      c,
		ec:     ethclient.NewClient(c),
		signer: signer,
	}, nil
}

// shutdown shuts down the client.
func (c *rpcclient) shutdown() {
	if c.ec != nil {
		// this will also close c.c
		c.ec.Close()
	}
}

func (c *rpcclient) chainID(ctx context.Context) (*big.Int, error) {
	return c.ec.ChainID(ctx)
}

func (c *rpcclient) blockNumber(ctx context.Context) (uint64, error) {
	return c.ec.BlockNumber(ctx)
}

// codeAt returns the code at the latest block.
func (c *rpcclient) codeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	return c.ec.CodeAt(ctx, addr, nil)
}

func (c *rpcclient) suggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.ec.SuggestGasPrice(ctx)
}

func (c *rpcclient) predictedAddress(ctx context.Context, factoryAddr common.Address, initData []byte, salt [32]byte) (common.Address, error) {
	f, err := factory.NewKernelFactoryCaller(factoryAddr, c.ec)
	if err != nil {
		return common.Address{}, err
	}
	return f.GetAddress(&bind.CallOpts{Context: ctx}, initData, salt)
}

func (c *rpcclient) factoryImplementation(ctx context.Context, factoryAddr common.Address) (common.Address, error) {
	f, err := factory.NewKernelFactoryCaller(factoryAddr, c.ec)
	if err != nil {
		return common.Address{}, err
	}
	return f.Implementation(&bind.CallOpts{Context: ctx})
}

func (c *rpcclient) accountEntryPoint(ctx context.Context, acct common.Address) (common.Address, error) {
	a, err := account.NewKernelAccountCaller(acct, c.ec)
	if err != nil {
		return common.Address{}, err
	}
	return a.EntryPoint(&bind.CallOpts{Context: ctx})
}

func (c *rpcclient) entryPointNonce(ctx context.Context, entryPoint, sender common.Address, key *big.Int) (*big.Int, error) {
	ep, err := entrypoint.NewEntryPointCaller(entryPoint, c.ec)
	if err != nil {
		return nil, err
	}
	return ep.GetNonce(&bind.CallOpts{Context: ctx}, sender, key)
}

// createAccount sends the factory createAccount transaction with a fixed gas
// limit. It does not wait for the transaction to be mined.
func (c *rpcclient) createAccount(ctx context.Context, factoryAddr common.Address, initData []byte, salt [32]byte, gasLimit uint64, fees *feeCaps) (*types.Transaction, error) {
	chainID, err := c.ec.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting chain ID: %w", err)
	}
	f, err := factory.NewKernelFactory(factoryAddr, c.ec)
	if err != nil {
		return nil, err
	}
	opts := &bind.TransactOpts{
		From: c.signer.Address(),
		Signer: func(addr common.Address, tx *types.Transaction) (*types.Transaction, error) {
			if addr != c.signer.Address() {
				return nil, fmt.Errorf("not authorized to sign for %s", addr)
			}
			return c.signer.SignTx(tx, chainID)
		},
		Value:    new(big.Int),
		GasLimit: gasLimit,
		Context:  ctx,
	}
	if fees.maxPriority == nil {
		opts.GasPrice = fees.maxFee
	} else {
		opts.GasFeeCap = fees.maxFee
		opts.GasTipCap = fees.maxPriority
	}
	return f.CreateAccount(opts, initData, salt)
}

// transactionReceipt returns ethereum.NotFound for an unmined transaction.
func (c *rpcclient) transactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return c.ec.TransactionReceipt(ctx, txHash)
}

// waitErr is the error for an abandoned wait. The rate limiter gives up
// before the deadline when the next poll would fall after it, while
// ctx.Err() is still nil.
func waitErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.Join(context.DeadlineExceeded, err)
}

// waitMined polls for the transaction's receipt until it is found or ctx is
// done. Receipt errors other than not-found are logged and polling continues.
func waitMined(ctx context.Context, chain chainClient, r *retrier, txHash common.Hash, pollInterval time.Duration, log aa.Logger) (*types.Receipt, error) {
	limiter := rate.NewLimiter(rate.Every(pollInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("gave up waiting for %s: %w", txHash, waitErr(ctx, err))
		}
		var receipt *types.Receipt
		err := r.once(ctx, func(ctx context.Context) error {
			var err error
			receipt, err = chain.transactionReceipt(ctx, txHash)
			return err
		})
		switch {
		case err == nil:
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			log.Tracef("Transaction %s not yet mined", txHash)
		case ctx.Err() != nil:
			return nil, fmt.Errorf("gave up waiting for %s: %w", txHash, ctx.Err())
		default:
			log.Debugf("Error fetching receipt for %s: %v", txHash, err)
		}
	}
}
