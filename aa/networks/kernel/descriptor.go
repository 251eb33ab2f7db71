// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// AccountDescriptor is the data needed to derive or recreate an account
// address. It is immutable once constructed.
type AccountDescriptor struct {
	owner          common.Address
	salt           [32]byte
	implementation common.Address
	factory        common.Address
	initData       []byte
}

// NewAccountDescriptor validates the salt and constructs an AccountDescriptor.
// initData is passed to the factory's getAddress and createAccount and is empty
// for a kernel that is not deployed behind a proxy.
func NewAccountDescriptor(owner common.Address, salt *big.Int, implementation, factory common.Address, initData []byte) (*AccountDescriptor, error) {
	saltB, err := SaltBytes(salt)
	if err != nil {
		return nil, err
	}
	return &AccountDescriptor{
		owner:          owner,
		salt:           saltB,
		implementation: implementation,
		factory:        factory,
		initData:       common.CopyBytes(initData),
	}, nil
}

func (d *AccountDescriptor) Owner() common.Address          { return d.owner }
func (d *AccountDescriptor) Implementation() common.Address { return d.implementation }
func (d *AccountDescriptor) Factory() common.Address        { return d.factory }

// Salt returns a copy of the salt as an integer.
func (d *AccountDescriptor) Salt() *big.Int {
	return new(big.Int).SetBytes(d.salt[:])
}

// SaltBytes is the salt as the bytes32 factory argument.
func (d *AccountDescriptor) SaltBytes() [32]byte {
	return d.salt
}

// InitData returns a copy of the factory init data.
func (d *AccountDescriptor) InitData() []byte {
	if d.initData == nil {
		return []byte{}
	}
	return common.CopyBytes(d.initData)
}

func (d *AccountDescriptor) String() string {
	return fmt.Sprintf("owner %s, salt %s, implementation %s, factory %s",
		d.owner, d.Salt(), d.implementation, d.factory)
}
