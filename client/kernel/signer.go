// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"decred.org/kernelprov/aa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs on behalf of the account owner.
type Signer interface {
	Address() common.Address
	// SignHash returns a 65-byte [R || S || V] signature with V in {0, 1}.
	SignHash(hash []byte) ([]byte, error)
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// KeySigner is a Signer backed by an in-memory secp256k1 key.
type KeySigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

var _ Signer = (*KeySigner)(nil)

// NewKeySigner parses a hex private key, with or without a 0x prefix.
func NewKeySigner(hexKey string) (*KeySigner, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, aa.NewError(ErrConfiguration, "empty private key")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		// Don't echo any of the key.
		return nil, aa.NewError(ErrConfiguration, "invalid private key")
	}
	return &KeySigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address is the owner address.
func (s *KeySigner) Address() common.Address {
	return s.addr
}

// SignHash signs a 32-byte digest.
func (s *KeySigner) SignHash(hash []byte) ([]byte, error) {
	return crypto.Sign(hash, s.key)
}

// SignTx signs a transaction for the chain.
func (s *KeySigner) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("error signing transaction: %w", err)
	}
	return signed, nil
}
