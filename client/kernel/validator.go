// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"context"
	"fmt"

	"decred.org/kernelprov/aa"
	aakernel "decred.org/kernelprov/aa/networks/kernel"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
)

var supportedEntryPointVersion = aa.NewSemver(0, 7, 0)

func entryPointSupported(v aa.Semver) bool {
	return v.Major == supportedEntryPointVersion.Major && v.Minor == supportedEntryPointVersion.Minor
}

// Validator authorizes user operations for an account.
type Validator interface {
	// Address is the validator contract.
	Address() common.Address
	// Sign produces the user operation signature for the hash.
	Sign(userOpHash common.Hash) ([]byte, error)
	// DummySignature is a placeholder of the right shape for gas estimation.
	DummySignature() []byte
}

// ecdsaValidator is the kernel ECDSA validator. The owner signs the user
// operation hash as an EIP-191 personal message.
type ecdsaValidator struct {
	signer            Signer
	address           common.Address
	entryPoint        common.Address
	entryPointVersion aa.Semver
	kernelVersion     aa.Semver
}

var _ Validator = (*ecdsaValidator)(nil)

// newECDSAValidator builds the validator and checks that the validator
// contract exists. Missing code is only logged.
func newECDSAValidator(ctx context.Context, cfg *Config, chain chainClient, r *retrier, signer Signer, log aa.Logger) (*ecdsaValidator, error) {
	epVer, err := aa.ParseSemver(cfg.EntryPointVersion)
	if err != nil {
		return nil, aa.NewError(ErrConfiguration, fmt.Sprintf("entry point version: %v", err))
	}
	if !entryPointSupported(epVer) {
		return nil, aa.NewError(ErrConfiguration, fmt.Sprintf("unsupported entry point version %s, need %s", epVer, supportedEntryPointVersion))
	}
	kernelVer, err := aa.ParseSemver(cfg.KernelVersion)
	if err != nil {
		return nil, aa.NewError(ErrConfiguration, fmt.Sprintf("kernel version: %v", err))
	}

	addr := cfg.Contracts.ECDSAValidator
	var code []byte
	err = r.read(ctx, "validator code", func(ctx context.Context) error {
		var err error
		code, err = chain.codeAt(ctx, addr)
		return err
	})
	if err != nil {
		return nil, aa.NewError(ErrConnectivity, fmt.Sprintf("error reading validator code at %s: %v", addr, err))
	}
	if len(code) == 0 {
		log.Warnf("⚠️ No code at ECDSA validator address %s. User operations will likely fail validation.", addr)
	}

	return &ecdsaValidator{
		signer:            signer,
		address:           addr,
		entryPoint:        cfg.entryPoint(),
		entryPointVersion: epVer,
		kernelVersion:     kernelVer,
	}, nil
}

func (v *ecdsaValidator) Address() common.Address {
	return v.address
}

// Sign signs keccak256("\x19Ethereum Signed Message:\n32" ++ userOpHash).
// V is 27 or 28.
func (v *ecdsaValidator) Sign(userOpHash common.Hash) ([]byte, error) {
	sig, err := v.signer.SignHash(accounts.TextHash(userOpHash[:]))
	if err != nil {
		return nil, fmt.Errorf("error signing user operation: %w", err)
	}
	if len(sig) != 65 {
		return nil, fmt.Errorf("signature is %d bytes, expected 65", len(sig))
	}
	sig[64] += 27
	return sig, nil
}

func (v *ecdsaValidator) DummySignature() []byte {
	return common.CopyBytes(aakernel.DummySignature)
}
