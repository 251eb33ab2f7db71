// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

// Package factory is a Go binding around the kernel account factory.
package factory

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// KernelFactoryABI is the input ABI used to generate the binding from.
const KernelFactoryABI = `[
	{"type":"function","name":"createAccount","stateMutability":"payable",
	 "inputs":[{"name":"data","type":"bytes"},{"name":"salt","type":"bytes32"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"getAddress","stateMutability":"view",
	 "inputs":[{"name":"data","type":"bytes"},{"name":"salt","type":"bytes32"}],
	 "outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"implementation","stateMutability":"view",
	 "inputs":[],
	 "outputs":[{"name":"","type":"address"}]}
]`

var (
	parseOnce sync.Once
	parsedABI *abi.ABI
	parseErr  error
)

// ABI returns the parsed KernelFactoryABI.
func ABI() (*abi.ABI, error) {
	parseOnce.Do(func() {
		parsed, err := abi.JSON(strings.NewReader(KernelFactoryABI))
		parsedABI, parseErr = &parsed, err
	})
	return parsedABI, parseErr
}

// KernelFactory is a Go binding around the kernel account factory.
type KernelFactory struct {
	KernelFactoryCaller     // Read-only binding to the contract
	KernelFactoryTransactor // Write-only binding to the contract
}

// KernelFactoryCaller is a read-only Go binding around the factory.
type KernelFactoryCaller struct {
	contract *bind.BoundContract
}

// KernelFactoryTransactor is a write-only Go binding around the factory.
type KernelFactoryTransactor struct {
	contract *bind.BoundContract
}

// NewKernelFactory creates a new instance of KernelFactory, bound to a specific
// deployed contract.
func NewKernelFactory(address common.Address, backend bind.ContractBackend) (*KernelFactory, error) {
	contract, err := bindKernelFactory(address, backend, backend)
	if err != nil {
		return nil, err
	}
	return &KernelFactory{
		KernelFactoryCaller:     KernelFactoryCaller{contract: contract},
		KernelFactoryTransactor: KernelFactoryTransactor{contract: contract},
	}, nil
}

// NewKernelFactoryCaller creates a new read-only instance of KernelFactory,
// bound to a specific deployed contract.
func NewKernelFactoryCaller(address common.Address, caller bind.ContractCaller) (*KernelFactoryCaller, error) {
	contract, err := bindKernelFactory(address, caller, nil)
	if err != nil {
		return nil, err
	}
	return &KernelFactoryCaller{contract: contract}, nil
}

func bindKernelFactory(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor) (*bind.BoundContract, error) {
	parsed, err := ABI()
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(address, *parsed, caller, transactor, nil), nil
}

// GetAddress is a free data retrieval call binding the contract method.
//
// Solidity: function getAddress(bytes data, bytes32 salt) view returns(address)
func (_KernelFactory *KernelFactoryCaller) GetAddress(opts *bind.CallOpts, data []byte, salt [32]byte) (common.Address, error) {
	var out []any
	err := _KernelFactory.contract.Call(opts, &out, "getAddress", data, salt)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// Implementation is a free data retrieval call binding the contract method.
//
// Solidity: function implementation() view returns(address)
func (_KernelFactory *KernelFactoryCaller) Implementation(opts *bind.CallOpts) (common.Address, error) {
	var out []any
	err := _KernelFactory.contract.Call(opts, &out, "implementation")
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

// CreateAccount is a paid mutator transaction binding the contract method.
//
// Solidity: function createAccount(bytes data, bytes32 salt) payable returns(address)
func (_KernelFactory *KernelFactoryTransactor) CreateAccount(opts *bind.TransactOpts, data []byte, salt [32]byte) (*types.Transaction, error) {
	return _KernelFactory.contract.Transact(opts, "createAccount", data, salt)
}
