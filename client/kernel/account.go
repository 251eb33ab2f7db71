// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"context"
	"fmt"
	"math/big"

	"decred.org/kernelprov/aa"
	aakernel "decred.org/kernelprov/aa/networks/kernel"
	"github.com/davecgh/go-spew/spew"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/time/rate"
)

// Static gas limits for raw user operations, which skip bundler estimation.
var (
	defaultCallGasLimit            = big.NewInt(200_000)
	defaultVerificationGasLimit    = big.NewInt(1_000_000)
	defaultPreVerificationGas      = big.NewInt(50_000)
	deploymentVerificationGasLimit = big.NewInt(3_000_000)
)

// The root validator's nonces use key 0.
var rootValidatorNonceKey = new(big.Int)

// AccountClient sends operations from a kernel account.
type AccountClient interface {
	// Address is the account address.
	Address() common.Address
	// SendTransaction estimates, signs and submits a user operation for the
	// intents and waits for it to be included. It returns the hash of the
	// transaction that included it.
	SendTransaction(ctx context.Context, intents ...*OperationIntent) (common.Hash, error)
	// EncodeIntent encodes intents as account calldata.
	EncodeIntent(intents ...*OperationIntent) ([]byte, error)
	// SendRawOperation signs and submits a user operation with static gas
	// limits for the calldata. It returns the user operation hash without
	// waiting.
	SendRawOperation(ctx context.Context, callData []byte) (common.Hash, error)
}

// kernelAccountClient is an AccountClient whose only authorization path is
// the root validator.
type kernelAccountClient struct {
	cfg        *Config
	chain      chainClient
	bundler    bundler
	validator  Validator
	descriptor *aakernel.AccountDescriptor
	address    common.Address
	chainID    *big.Int
	retry      *retrier
	log        aa.Logger
}

var _ AccountClient = (*kernelAccountClient)(nil)

// composeAccount builds the ECDSA validator and an account client bound to
// addr. It sends nothing to the network.
func composeAccount(ctx context.Context, cfg *Config, chain chainClient, b bundler, signer Signer, d *aakernel.AccountDescriptor,
	addr common.Address, chainID *big.Int, r *retrier, log aa.Logger) (*kernelAccountClient, error) {

	v, err := newECDSAValidator(ctx, cfg, chain, r, signer, log)
	if err != nil {
		return nil, err
	}
	log.Infof("✅ ECDSA validator %s ready (entry point v%s, kernel v%s)", v.Address(), v.entryPointVersion, v.kernelVersion)

	return &kernelAccountClient{
		cfg:        cfg,
		chain:      chain,
		bundler:    b,
		validator:  v,
		descriptor: d,
		address:    addr,
		chainID:    new(big.Int).Set(chainID),
		retry:      r,
		log:        log,
	}, nil
}

func (c *kernelAccountClient) Address() common.Address {
	return c.address
}

func (c *kernelAccountClient) EncodeIntent(intents ...*OperationIntent) ([]byte, error) {
	return aakernel.PackExecuteData(intents)
}

// resolveFees returns the configured fee caps, or the node's suggested gas
// price for both.
func resolveFees(ctx context.Context, cfg *Config, chain chainClient, r *retrier) (*feeCaps, error) {
	if cfg.MaxFeePerGas != nil {
		return &feeCaps{maxFee: cfg.MaxFeePerGas, maxPriority: cfg.MaxPriorityFeePerGas}, nil
	}
	var price *big.Int
	err := r.read(ctx, "gas price", func(ctx context.Context) error {
		var err error
		price, err = chain.suggestGasPrice(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &feeCaps{maxFee: price, maxPriority: price}, nil
}

// buildUserOp fills everything but the gas limits and the signature. An
// undeployed account gets the factory fields so the entry point deploys it.
func (c *kernelAccountClient) buildUserOp(ctx context.Context, callData []byte) (*aakernel.UserOperation, error) {
	var nonce *big.Int
	err := c.retry.read(ctx, "account nonce", func(ctx context.Context) error {
		var err error
		nonce, err = c.chain.entryPointNonce(ctx, c.cfg.entryPoint(), c.address, rootValidatorNonceKey)
		return err
	})
	if err != nil {
		return nil, err
	}

	var code []byte
	err = c.retry.read(ctx, "account code", func(ctx context.Context) error {
		var err error
		code, err = c.chain.codeAt(ctx, c.address)
		return err
	})
	if err != nil {
		return nil, err
	}

	fees, err := resolveFees(ctx, c.cfg, c.chain, c.retry)
	if err != nil {
		return nil, err
	}

	op := &aakernel.UserOperation{
		Sender:               c.address,
		Nonce:                nonce,
		CallData:             callData,
		MaxFeePerGas:         fees.maxFee,
		MaxPriorityFeePerGas: fees.maxPriority,
		Signature:            c.validator.DummySignature(),
	}
	if stateFromCode(code) == Undeployed {
		factoryData, err := aakernel.PackCreateAccountData(c.descriptor)
		if err != nil {
			return nil, fmt.Errorf("error encoding factory data: %w", err)
		}
		f := c.descriptor.Factory()
		op.Factory = &f
		op.FactoryData = factoryData
	}
	return op, nil
}

// signAndSend signs the operation and submits it once.
func (c *kernelAccountClient) signAndSend(ctx context.Context, op *aakernel.UserOperation) (common.Hash, error) {
	opHash, err := op.Hash(c.cfg.entryPoint(), c.chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("error hashing user operation: %w", err)
	}
	op.Signature, err = c.validator.Sign(opHash)
	if err != nil {
		return common.Hash{}, err
	}
	if c.log.Level() <= aa.LevelTrace {
		c.log.Tracef("Sending user operation %s:\n%s", opHash, spew.Sdump(op))
	}
	var sentHash common.Hash
	err = c.retry.once(ctx, func(ctx context.Context) error {
		sentHash, err = c.bundler.sendUserOp(ctx, op)
		return err
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendUserOperation error: %w", err)
	}
	if sentHash != opHash {
		c.log.Warnf("Bundler returned user operation hash %s, computed %s", sentHash, opHash)
	}
	return sentHash, nil
}

func (c *kernelAccountClient) SendTransaction(ctx context.Context, intents ...*OperationIntent) (common.Hash, error) {
	callData, err := c.EncodeIntent(intents...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("error encoding intent: %w", err)
	}
	op, err := c.buildUserOp(ctx, callData)
	if err != nil {
		return common.Hash{}, err
	}

	var est *estimateBundlerGasResult
	err = c.retry.once(ctx, func(ctx context.Context) error {
		est, err = c.bundler.estimateGas(ctx, op)
		return err
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("eth_estimateUserOperationGas error: %w", err)
	}
	if err := est.apply(op); err != nil {
		return common.Hash{}, err
	}
	c.log.Debugf("Estimated user operation gas: pre-verification %s, verification %s, call %s (total %d)",
		op.PreVerificationGas, op.VerificationGasLimit, op.CallGasLimit, est.totalGas())

	opHash, err := c.signAndSend(ctx, op)
	if err != nil {
		return common.Hash{}, err
	}
	c.log.Infof("📝 User operation %s submitted, waiting for inclusion", opHash)

	waitCtx, cancel := context.WithTimeout(ctx, c.cfg.InclusionTimeout)
	defer cancel()
	receipt, err := c.waitUserOp(waitCtx, opHash)
	if err != nil {
		return common.Hash{}, err
	}
	if !receipt.success {
		return common.Hash{}, fmt.Errorf("user operation %s included in %s but failed: %q", opHash, receipt.txHash, receipt.reason)
	}
	c.log.Infof("User operation %s included in transaction %s, block %d, gas used %d",
		opHash, receipt.txHash, receipt.blockNumber, receipt.gasUsed)
	return receipt.txHash, nil
}

// waitUserOp polls the bundler until the user operation has a receipt or ctx
// is done.
func (c *kernelAccountClient) waitUserOp(ctx context.Context, opHash common.Hash) (*userOpReceipt, error) {
	limiter := rate.NewLimiter(rate.Every(c.cfg.ReceiptPollInterval), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("gave up waiting for user operation %s: %w", opHash, waitErr(ctx, err))
		}
		var receipt *userOpReceipt
		err := c.retry.once(ctx, func(ctx context.Context) error {
			var err error
			receipt, err = c.bundler.getUserOpReceipt(ctx, opHash)
			return err
		})
		switch {
		case err == nil && receipt != nil:
			return receipt, nil
		case err == nil:
			c.log.Tracef("User operation %s not yet included", opHash)
		case ctx.Err() != nil:
			return nil, fmt.Errorf("gave up waiting for user operation %s: %w", opHash, ctx.Err())
		default:
			c.log.Debugf("Error fetching user operation receipt for %s: %v", opHash, err)
		}
	}
}

func (c *kernelAccountClient) SendRawOperation(ctx context.Context, callData []byte) (common.Hash, error) {
	op, err := c.buildUserOp(ctx, callData)
	if err != nil {
		return common.Hash{}, err
	}
	op.CallGasLimit = new(big.Int).Set(defaultCallGasLimit)
	op.PreVerificationGas = new(big.Int).Set(defaultPreVerificationGas)
	op.VerificationGasLimit = new(big.Int).Set(defaultVerificationGasLimit)
	if op.Factory != nil {
		op.VerificationGasLimit = new(big.Int).Set(deploymentVerificationGasLimit)
	}
	return c.signAndSend(ctx, op)
}

