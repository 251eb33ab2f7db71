// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	aakernel "decred.org/kernelprov/aa/networks/kernel"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// estimateBundlerGasResult holds gas estimation results for a user operation.
// Each string is a hex string starting with "0x".
type estimateBundlerGasResult struct {
	PreVerificationGas   string `json:"preVerificationGas"`
	VerificationGasLimit string `json:"verificationGasLimit"`
	CallGasLimit         string `json:"callGasLimit"`
}

// totalGas calculates the total gas required based on pre-verification,
// verification, and call gas limits. Incorrectly formatted gas values are
// ignored.
func (r *estimateBundlerGasResult) totalGas() uint64 {
	preVerificationGas, _ := strconv.ParseUint(strings.TrimPrefix(r.PreVerificationGas, "0x"), 16, 64)
	verificationGasLimit, _ := strconv.ParseUint(strings.TrimPrefix(r.VerificationGasLimit, "0x"), 16, 64)
	callGasLimit, _ := strconv.ParseUint(strings.TrimPrefix(r.CallGasLimit, "0x"), 16, 64)
	return preVerificationGas + verificationGasLimit + callGasLimit
}

// apply sets the operation's gas limits from the estimate. Unlike totalGas,
// every value must parse.
func (r *estimateBundlerGasResult) apply(op *aakernel.UserOperation) error {
	for _, g := range []struct {
		name string
		s    string
		dst  **big.Int
	}{
		{"preVerificationGas", r.PreVerificationGas, &op.PreVerificationGas},
		{"verificationGasLimit", r.VerificationGasLimit, &op.VerificationGasLimit},
		{"callGasLimit", r.CallGasLimit, &op.CallGasLimit},
	} {
		v, err := hexutil.DecodeBig(g.s)
		if err != nil {
			return fmt.Errorf("failed to parse %s %q: %w", g.name, g.s, err)
		}
		*g.dst = v
	}
	return nil
}

// userOpReceipt is the part of a user operation receipt we use.
type userOpReceipt struct {
	success       bool
	reason        string
	actualGasCost *big.Int
	actualGasUsed *big.Int
	txHash        common.Hash
	blockNumber   uint64
	gasUsed       uint64
}

// bundler is an interface to interact with an ERC-4337 bundler.
type bundler interface {
	chainID(ctx context.Context) (*big.Int, error)
	supportedEntryPoints(ctx context.Context) (map[common.Address]bool, error)
	estimateGas(ctx context.Context, op *aakernel.UserOperation) (*estimateBundlerGasResult, error)
	sendUserOp(ctx context.Context, op *aakernel.UserOperation) (common.Hash, error)
	// getUserOpReceipt returns a nil receipt if the user operation has not
	// been included in a block.
	getUserOpReceipt(ctx context.Context, userOpHash common.Hash) (*userOpReceipt, error)
	shutdown()
}

// rpcBundler implements the bundler interface.
type rpcBundler struct {
	rpcClient         *rpc.Client
	entryPointAddress common.Address
}

var _ bundler = (*rpcBundler)(nil)

// newBundler creates a bundler client for the endpoint. Operations are sent
// for the given entry point.
func newBundler(ctx context.Context, endpoint string, entryPointAddr common.Address) (*rpcBundler, error) {
	rpcClient, err := rpc.DialContext(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("unable to dial bundler: %w", err)
	}
	return &rpcBundler{
		rpcClient:         rpcClient,
		entryPointAddress: entryPointAddr,
	}, nil
}

func (b *rpcBundler) shutdown() {
	b.rpcClient.Close()
}

// chainID returns the bundler's chain ID.
func (b *rpcBundler) chainID(ctx context.Context) (*big.Int, error) {
	var res hexutil.Big
	if err := b.rpcClient.CallContext(ctx, &res, "eth_chainId"); err != nil {
		return nil, err
	}
	return (*big.Int)(&res), nil
}

// supportedEntryPoints returns the entry points supported by the bundler.
func (b *rpcBundler) supportedEntryPoints(ctx context.Context) (map[common.Address]bool, error) {
	var res []common.Address
	err := b.rpcClient.CallContext(ctx, &res, "eth_supportedEntryPoints")
	if err != nil {
		return nil, err
	}

	entryPoints := make(map[common.Address]bool, len(res))
	for _, v := range res {
		entryPoints[v] = true
	}

	return entryPoints, nil
}

// estimateGas estimates the gas limits for a user operation. The operation
// should carry a dummy signature.
func (b *rpcBundler) estimateGas(ctx context.Context, op *aakernel.UserOperation) (*estimateBundlerGasResult, error) {
	var res estimateBundlerGasResult
	err := b.rpcClient.CallContext(ctx, &res, "eth_estimateUserOperationGas", op, b.entryPointAddress)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// sendUserOp sends a user operation to the bundler via the eth_sendUserOperation RPC method.
// Returns the hash of the user operation if successful.
func (b *rpcBundler) sendUserOp(ctx context.Context, op *aakernel.UserOperation) (common.Hash, error) {
	var res common.Hash
	err := b.rpcClient.CallContext(ctx, &res, "eth_sendUserOperation", op, b.entryPointAddress)
	if err != nil {
		return common.Hash{}, err
	}
	return res, nil
}

// getUserOpReceipt returns the receipt of a user operation.
func (b *rpcBundler) getUserOpReceipt(ctx context.Context, userOpHash common.Hash) (*userOpReceipt, error) {
	var res *struct {
		Success       bool         `json:"success"`
		Reason        string       `json:"reason"`
		ActualGasCost *hexutil.Big `json:"actualGasCost"`
		ActualGasUsed *hexutil.Big `json:"actualGasUsed"`
		Receipt       *struct {
			TransactionHash common.Hash    `json:"transactionHash"`
			BlockNumber     hexutil.Uint64 `json:"blockNumber"`
			GasUsed         hexutil.Uint64 `json:"gasUsed"`
		} `json:"receipt"`
	}
	err := b.rpcClient.CallContext(ctx, &res, "eth_getUserOperationReceipt", userOpHash)
	if err != nil {
		return nil, err
	}
	if res == nil || res.Receipt == nil {
		return nil, nil
	}
	r := &userOpReceipt{
		success:     res.Success,
		reason:      res.Reason,
		txHash:      res.Receipt.TransactionHash,
		blockNumber: uint64(res.Receipt.BlockNumber),
		gasUsed:     uint64(res.Receipt.GasUsed),
	}
	if res.ActualGasCost != nil {
		r.actualGasCost = res.ActualGasCost.ToInt()
	}
	if res.ActualGasUsed != nil {
		r.actualGasUsed = res.ActualGasUsed.ToInt()
	}
	return r, nil
}
