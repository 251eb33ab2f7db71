// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"fmt"
	"math/big"

	"decred.org/kernelprov/aa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidEncoding is returned for address, salt or digest inputs of the
// wrong size.
const ErrInvalidEncoding = aa.ErrorKind("invalid encoding")

var maxSalt = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// SaltBytes encodes a salt as a 32-byte big-endian word.
func SaltBytes(salt *big.Int) ([32]byte, error) {
	var b [32]byte
	if salt == nil {
		return b, nil
	}
	if salt.Sign() < 0 || salt.Cmp(maxSalt) > 0 {
		return b, aa.NewError(ErrInvalidEncoding, fmt.Sprintf("salt %s outside uint256 range", salt))
	}
	salt.FillBytes(b[:])
	return b, nil
}

// DeriveAddress computes the account address that the factory will deploy
// for owner and salt, without touching the network:
//
//	d1 = keccak256(owner ++ salt)
//	d2 = keccak256(implementation)
//	address = keccak256(0xff ++ factory ++ d1 ++ d2)[12:]
//
// owner, implementation and factory must be 20 bytes and salt 32 bytes.
func DeriveAddress(owner, implementation, factory, salt []byte) (common.Address, error) {
	for _, in := range []struct {
		name string
		b    []byte
		size int
	}{
		{"owner", owner, common.AddressLength},
		{"implementation", implementation, common.AddressLength},
		{"factory", factory, common.AddressLength},
		{"salt", salt, common.HashLength},
	} {
		if len(in.b) != in.size {
			return common.Address{}, aa.NewError(ErrInvalidEncoding,
				fmt.Sprintf("%s is %d bytes, expected %d", in.name, len(in.b), in.size))
		}
	}
	ownerSalt := crypto.Keccak256Hash(owner, salt)
	implHash := crypto.Keccak256(implementation)
	return crypto.CreateAddress2(common.BytesToAddress(factory), ownerSalt, implHash), nil
}

// DeriveAccountAddress computes the deterministic address for the descriptor.
func DeriveAccountAddress(d *AccountDescriptor) (common.Address, error) {
	salt := d.SaltBytes()
	return DeriveAddress(d.owner[:], d.implementation[:], d.factory[:], salt[:])
}

// DeriveAccountAddressHex is DeriveAddress for hex-encoded addresses.
func DeriveAccountAddressHex(owner, implementation, factory string, salt *big.Int) (common.Address, error) {
	for _, a := range []string{owner, implementation, factory} {
		if !common.IsHexAddress(a) {
			return common.Address{}, aa.NewError(ErrInvalidEncoding, fmt.Sprintf("%q is not a hex address", a))
		}
	}
	saltB, err := SaltBytes(salt)
	if err != nil {
		return common.Address{}, err
	}
	return DeriveAddress(common.HexToAddress(owner).Bytes(), common.HexToAddress(implementation).Bytes(),
		common.HexToAddress(factory).Bytes(), saltB[:])
}
