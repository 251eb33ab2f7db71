// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package account is a Go binding around the kernel smart account.
package account

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

// KernelAccountABI is the input ABI used to generate the binding from.
const KernelAccountABI = `[
	{"type":"function","name":"entryPoint","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"execute","stateMutability":"nonpayable",
	 "inputs":[{"name":"target","type":"address"},{"name":"value","type":"uint256"},{"name":"data","type":"bytes"}],
	 "outputs":[]},
	{"type":"function","name":"executeBatch","stateMutability":"nonpayable",
	 "inputs":[{"name":"targets","type":"address[]"},{"name":"values","type":"uint256[]"},{"name":"datas","type":"bytes[]"}],
	 "outputs":[]}
]`

var (
	parseOnce sync.Once
	parsedABI *abi.ABI
	parseErr  error
)

// ABI returns the parsed KernelAccountABI.
func ABI() (*abi.ABI, error) {
	parseOnce.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(KernelAccountABI))
		parsedABI, parseErr = &parsed, err
	})
	return parsedABI, parseErr
}

// KernelAccountCaller is a read-only Go binding around a kernel account.
// execute and executeBatch are only ever reached through the entry point, so
// there is no transactor binding. Their calldata is packed with ABI.
type KernelAccountCaller struct {
	contract *bind.BoundContract
}

// NewKernelAccountCaller creates a new read-only instance of a kernel account,
// bound to a specific deployed contract.
func NewKernelAccountCaller(address common.Address, caller bind.ContractCaller) (*KernelAccountCaller, error) {
	parsed, err := ABI()
	if err != nil {
		return nil, err
	}
	return &KernelAccountCaller{contract: bind.NewBoundContract(address, *parsed, caller, nil, nil)}, nil
}

// EntryPoint is a free data retrieval call binding the contract method.
//
// Solidity: function entryPoint() view returns(address)
func (_KernelAccount *KernelAccountCaller) EntryPoint(opts *bind.CallOpts) (common.Address, error) {
	var out []any
	err := _KernelAccount.contract.Call(opts, &out, "entryPoint")
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}
