// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"fmt"
	"strings"
	"time"

	"decred.org/kernelprov/aa"
	"decred.org/kernelprov/aa/config"
	"github.com/ethereum/go-ethereum/common"
)

const (
	// EntryPointVersion is the ERC-4337 entry point version the kernel
	// accounts are built against.
	EntryPointVersion = "0.7"
	// KernelVersion is the kernel account implementation version.
	KernelVersion = "3.1"

	// DefaultDeploymentGas is the gas limit of the createAccount transaction.
	DefaultDeploymentGas uint64 = 3_000_000
	// DefaultRPCTimeout bounds every individual chain or bundler call.
	DefaultRPCTimeout = 30 * time.Second
	// DefaultInclusionTimeout bounds waits for a transaction or user operation
	// to be mined.
	DefaultInclusionTimeout = 5 * time.Minute
	// DefaultRetryAttempts is the number of times a failed read is retried.
	DefaultRetryAttempts = 3
	// DefaultReceiptPollInterval is the pause between receipt queries.
	DefaultReceiptPollInterval = 2 * time.Second
)

// These are the chain IDs of the networks with known deployments.
const (
	TestnetChainID = 88888 // custom rollup B
	SimnetChainID  = 1337
)

// Contracts holds the addresses of the account-abstraction contracts on a
// network.
type Contracts struct {
	EntryPoint     common.Address
	ECDSAValidator common.Address
	// Kernel is the account implementation. If zero, it is read from the
	// factory.
	Kernel        common.Address
	Factory       common.Address
	FactoryStaker common.Address
}

// Copy returns a copy of the Contracts.
func (c *Contracts) Copy() *Contracts {
	cc := *c
	return &cc
}

// Validate checks that all required addresses are set.
func (c *Contracts) Validate() error {
	var missing []string
	if c.EntryPoint == (common.Address{}) {
		missing = append(missing, "entry point")
	}
	if c.ECDSAValidator == (common.Address{}) {
		missing = append(missing, "ecdsa validator")
	}
	if c.Factory == (common.Address{}) {
		missing = append(missing, "factory")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing contract addresses: %s", strings.Join(missing, ", "))
	}
	return nil
}

var (
	// ChainIDs is a map of the network to its chain ID.
	ChainIDs = map[aa.Network]int64{
		aa.Testnet: TestnetChainID,
		aa.Simnet:  SimnetChainID,
	}

	// ContractAddresses are the known deployments. Use Contracts.Copy before
	// modifying.
	ContractAddresses = map[aa.Network]*Contracts{
		aa.Testnet: {
			EntryPoint:     common.HexToAddress("0x896bf9511c65b8C5486C6E8E9FEED88d93ef9188"), // SimpleEntryPoint
			ECDSAValidator: common.HexToAddress("0x478d05A775e1E65415B3aaa96F0aF5CB012899A4"),
			Kernel:         common.HexToAddress("0x16D4A6c03276f47D3E16F9774D51F1500FC8daCe"), // SimpleKernel
			Factory:        common.HexToAddress("0x931FE526cB2e869A230455578E1f9cEeBa14DB87"),
			FactoryStaker:  common.HexToAddress("0xd4a2D5b3d18c1367b11f32182990cFEbE5dC62f9"),
		},
	}

	// RPCURLs are the default chain RPC endpoints.
	RPCURLs = map[aa.Network]string{
		aa.Testnet: "http://57.129.73.144:31133/",
		aa.Simnet:  "http://127.0.0.1:8545",
	}

	// BundlerURLs are the default bundler endpoints.
	BundlerURLs = map[aa.Network]string{
		aa.Testnet: "http://localhost:14337/rpc",
		aa.Simnet:  "http://127.0.0.1:14337/rpc",
	}
)

// contractsFile is the INI layout of a contracts override file.
type contractsFile struct {
	EntryPoint     string `ini:"entrypoint"`
	ECDSAValidator string `ini:"ecdsavalidator"`
	Kernel         string `ini:"kernel"`
	Factory        string `ini:"factory"`
	FactoryStaker  string `ini:"factorystaker"`
}

// LoadContracts reads contract addresses from an INI file path or []byte
// data. Addresses present in the file replace those in base, which may be nil.
func LoadContracts(cfgPathOrData any, base *Contracts) (*Contracts, error) {
	var f contractsFile
	if err := config.Parse(cfgPathOrData, &f); err != nil {
		return nil, fmt.Errorf("error parsing contracts file: %w", err)
	}
	c := new(Contracts)
	if base != nil {
		c = base.Copy()
	}
	for _, s := range []struct {
		name string
		val  string
		addr *common.Address
	}{
		{"entrypoint", f.EntryPoint, &c.EntryPoint},
		{"ecdsavalidator", f.ECDSAValidator, &c.ECDSAValidator},
		{"kernel", f.Kernel, &c.Kernel},
		{"factory", f.Factory, &c.Factory},
		{"factorystaker", f.FactoryStaker, &c.FactoryStaker},
	} {
		if s.val == "" {
			continue
		}
		if !common.IsHexAddress(s.val) {
			return nil, fmt.Errorf("%s address %q is not valid", s.name, s.val)
		}
		*s.addr = common.HexToAddress(s.val)
	}
	return c, nil
}
