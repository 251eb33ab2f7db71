// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package entrypoint is a Go binding around the read methods of the ERC-4337
// v0.7 entry point that are needed to build user operations.
package entrypoint

import (
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// EntryPointABI is the input ABI used to generate the binding from.
const EntryPointABI = `[
	{"type":"function","name":"getNonce","stateMutability":"view",
	 "inputs":[{"name":"sender","type":"address"},{"name":"key","type":"uint192"}],
	 "outputs":[{"name":"nonce","type":"uint256"}]}
]`

var (
	parseOnce sync.Once
	parsedABI *abi.ABI
	parseErr  error
)

// ABI returns the parsed EntryPointABI.
func ABI() (*abi.ABI, error) {
	parseOnce.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(EntryPointABI))
		parsedABI, parseErr = &parsed, err
	})
	return parsedABI, parseErr
}

// EntryPointCaller is a read-only Go binding around the entry point.
type EntryPointCaller struct {
	contract *bind.BoundContract
}

// NewEntryPointCaller creates a new read-only instance of the entry point,
// bound to a specific deployed contract.
func NewEntryPointCaller(address common.Address, caller bind.ContractCaller) (*EntryPointCaller, error) {
	parsed, err := ABI()
	if err != nil {
		return nil, err
	}
	return &EntryPointCaller{contract: bind.NewBoundContract(address, *parsed, caller, nil, nil)}, nil
}

// GetNonce is a free data retrieval call binding the contract method 0x35567e1a.
//
// Solidity: function getNonce(address sender, uint192 key) view returns(uint256 nonce)
func (_EntryPoint *EntryPointCaller) GetNonce(opts *bind.CallOpts, sender common.Address, key *big.Int) (*big.Int, error) {
	var out []any
	err := _EntryPoint.contract.Call(opts, &out, "getNonce", sender, key)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}
