// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"decred.org/kernelprov/aa"
	aakernel "decred.org/kernelprov/aa/networks/kernel"
	"github.com/ethereum/go-ethereum/common"
)

// Config is everything a provisioning run needs to know. Components receive
// it at construction and never read network defaults themselves.
type Config struct {
	Network    aa.Network
	ChainID    int64
	RPCURL     string
	BundlerURL string
	Contracts  aakernel.Contracts

	EntryPointVersion string
	KernelVersion     string

	RPCTimeout          time.Duration
	InclusionTimeout    time.Duration
	ReceiptPollInterval time.Duration
	RetryAttempts       int

	DeploymentGas uint64
	Salt          *big.Int
	InitData      []byte

	// MaxFeePerGas and MaxPriorityFeePerGas are in wei. When nil, the node's
	// suggested gas price is used for both.
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// NewConfig returns a Config with the defaults for the network. Networks
// without known deployments get timeouts and limits but no addresses.
func NewConfig(net aa.Network) *Config {
	cfg := &Config{
		Network:             net,
		ChainID:             aakernel.ChainIDs[net],
		RPCURL:              aakernel.RPCURLs[net],
		BundlerURL:          aakernel.BundlerURLs[net],
		EntryPointVersion:   aakernel.EntryPointVersion,
		KernelVersion:       aakernel.KernelVersion,
		RPCTimeout:          aakernel.DefaultRPCTimeout,
		InclusionTimeout:    aakernel.DefaultInclusionTimeout,
		ReceiptPollInterval: aakernel.DefaultReceiptPollInterval,
		RetryAttempts:       aakernel.DefaultRetryAttempts,
		DeploymentGas:       aakernel.DefaultDeploymentGas,
		Salt:                new(big.Int),
	}
	if c, ok := aakernel.ContractAddresses[net]; ok {
		cfg.Contracts = *c.Copy()
	}
	return cfg
}

func validURL(s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("no host")
	}
	return nil
}

// Validate checks the configuration. Every error matches ErrConfiguration.
func (cfg *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return aa.NewError(ErrConfiguration, fmt.Sprintf(format, args...))
	}
	if err := validURL(cfg.RPCURL); err != nil {
		return fail("bad RPC URL %q: %v", cfg.RPCURL, err)
	}
	if err := validURL(cfg.BundlerURL); err != nil {
		return fail("bad bundler URL %q: %v", cfg.BundlerURL, err)
	}
	if cfg.ChainID < 0 {
		return fail("negative chain ID %d", cfg.ChainID)
	}
	if err := cfg.Contracts.Validate(); err != nil {
		return fail("%v", err)
	}
	epVer, err := aa.ParseSemver(cfg.EntryPointVersion)
	if err != nil {
		return fail("entry point version: %v", err)
	}
	if !entryPointSupported(epVer) {
		return fail("unsupported entry point version %s, need %s", epVer, supportedEntryPointVersion)
	}
	if _, err := aa.ParseSemver(cfg.KernelVersion); err != nil {
		return fail("kernel version: %v", err)
	}
	if cfg.RPCTimeout <= 0 || cfg.InclusionTimeout <= 0 || cfg.ReceiptPollInterval <= 0 {
		return fail("timeouts must be positive")
	}
	if cfg.RetryAttempts < 0 {
		return fail("negative retry attempts %d", cfg.RetryAttempts)
	}
	if cfg.DeploymentGas == 0 {
		return fail("zero deployment gas")
	}
	if _, err := aakernel.SaltBytes(cfg.Salt); err != nil {
		return fail("salt: %v", err)
	}
	if (cfg.MaxFeePerGas == nil) != (cfg.MaxPriorityFeePerGas == nil) {
		return fail("max fee and max priority fee must be set together")
	}
	if cfg.MaxFeePerGas != nil {
		if cfg.MaxFeePerGas.Sign() <= 0 || cfg.MaxPriorityFeePerGas.Sign() < 0 {
			return fail("fee caps must be positive")
		}
		if cfg.MaxPriorityFeePerGas.Cmp(cfg.MaxFeePerGas) > 0 {
			return fail("max priority fee %s exceeds max fee %s", cfg.MaxPriorityFeePerGas, cfg.MaxFeePerGas)
		}
	}
	return nil
}

func (cfg *Config) salt() *big.Int {
	if cfg.Salt == nil {
		return new(big.Int)
	}
	return cfg.Salt
}

func (cfg *Config) entryPoint() common.Address {
	return cfg.Contracts.EntryPoint
}
