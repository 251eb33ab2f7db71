// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// DummySignature is a well-formed ECDSA signature placed in a user operation
// during gas estimation, before the real signature exists.
var DummySignature = common.FromHex("0xfffffffffffffffffffffffffffffff0000000000000000000000000000000007aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1c")

var maxUint128 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))

// UserOperation is an ERC-4337 v0.7 user operation in its unpacked form.
// Factory is nil for a deployed sender and Paymaster is nil when the sender
// pays its own gas.
type UserOperation struct {
	Sender                        common.Address
	Nonce                         *big.Int
	Factory                       *common.Address
	FactoryData                   []byte
	CallData                      []byte
	CallGasLimit                  *big.Int
	VerificationGasLimit          *big.Int
	PreVerificationGas            *big.Int
	MaxFeePerGas                  *big.Int
	MaxPriorityFeePerGas          *big.Int
	Paymaster                     *common.Address
	PaymasterVerificationGasLimit *big.Int
	PaymasterPostOpGasLimit       *big.Int
	PaymasterData                 []byte
	Signature                     []byte
}

func bigOrZero(b *big.Int) *big.Int {
	if b == nil {
		return new(big.Int)
	}
	return b
}

// pack128 places hi and lo in the high and low halves of a 32-byte word.
func pack128(hi, lo *big.Int) ([32]byte, error) {
	var b [32]byte
	hi, lo = bigOrZero(hi), bigOrZero(lo)
	if hi.Sign() < 0 || hi.Cmp(maxUint128) > 0 || lo.Sign() < 0 || lo.Cmp(maxUint128) > 0 {
		return b, fmt.Errorf("values %s and %s must fit in 128 bits", hi, lo)
	}
	hi.FillBytes(b[:16])
	lo.FillBytes(b[16:])
	return b, nil
}

// InitCode is factory ++ factoryData, empty when there is no factory.
func (op *UserOperation) InitCode() []byte {
	if op.Factory == nil {
		return []byte{}
	}
	return append(op.Factory.Bytes(), op.FactoryData...)
}

// PaymasterAndData is paymaster ++ verification gas (16 bytes) ++ post-op
// gas (16 bytes) ++ paymasterData, empty when there is no paymaster.
func (op *UserOperation) PaymasterAndData() ([]byte, error) {
	if op.Paymaster == nil {
		return []byte{}, nil
	}
	gas, err := pack128(op.PaymasterVerificationGasLimit, op.PaymasterPostOpGasLimit)
	if err != nil {
		return nil, fmt.Errorf("paymaster gas: %w", err)
	}
	b := make([]byte, 0, common.AddressLength+32+len(op.PaymasterData))
	b = append(b, op.Paymaster.Bytes()...)
	b = append(b, gas[:]...)
	return append(b, op.PaymasterData...), nil
}

// AccountGasLimits is verificationGasLimit and callGasLimit packed into one
// word.
func (op *UserOperation) AccountGasLimits() ([32]byte, error) {
	return pack128(op.VerificationGasLimit, op.CallGasLimit)
}

// GasFees is maxPriorityFeePerGas and maxFeePerGas packed into one word.
func (op *UserOperation) GasFees() ([32]byte, error) {
	return pack128(op.MaxPriorityFeePerGas, op.MaxFeePerGas)
}

// Hash computes the hash that the entry point presents to the account's
// validator. The signature is not part of the hash.
func (op *UserOperation) Hash(entryPoint common.Address, chainID *big.Int) (common.Hash, error) {
	address, _ := abi.NewType("address", "", nil)
	uint256, _ := abi.NewType("uint256", "", nil)
	bytes32, _ := abi.NewType("bytes32", "", nil)

	args := abi.Arguments{
		{Name: "sender", Type: address},
		{Name: "nonce", Type: uint256},
		{Name: "hashInitCode", Type: bytes32},
		{Name: "hashCallData", Type: bytes32},
		{Name: "accountGasLimits", Type: bytes32},
		{Name: "preVerificationGas", Type: uint256},
		{Name: "gasFees", Type: bytes32},
		{Name: "hashPaymasterAndData", Type: bytes32},
	}

	accountGasLimits, err := op.AccountGasLimits()
	if err != nil {
		return common.Hash{}, fmt.Errorf("account gas limits: %w", err)
	}
	gasFees, err := op.GasFees()
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas fees: %w", err)
	}
	paymasterAndData, err := op.PaymasterAndData()
	if err != nil {
		return common.Hash{}, err
	}

	packed, err := args.Pack(
		op.Sender,
		bigOrZero(op.Nonce),
		crypto.Keccak256Hash(op.InitCode()),
		crypto.Keccak256Hash(op.CallData),
		accountGasLimits,
		bigOrZero(op.PreVerificationGas),
		gasFees,
		crypto.Keccak256Hash(paymasterAndData),
	)
	if err != nil {
		return common.Hash{}, err
	}

	return crypto.Keccak256Hash(
		crypto.Keccak256(packed),
		common.LeftPadBytes(entryPoint.Bytes(), 32),
		common.LeftPadBytes(chainID.Bytes(), 32),
	), nil
}

// userOpJSON is the bundler RPC encoding of a v0.7 user operation.
type userOpJSON struct {
	Sender                        common.Address  `json:"sender"`
	Nonce                         *hexutil.Big    `json:"nonce"`
	Factory                       *common.Address `json:"factory,omitempty"`
	FactoryData                   hexutil.Bytes   `json:"factoryData,omitempty"`
	CallData                      hexutil.Bytes   `json:"callData"`
	CallGasLimit                  *hexutil.Big    `json:"callGasLimit"`
	VerificationGasLimit          *hexutil.Big    `json:"verificationGasLimit"`
	PreVerificationGas            *hexutil.Big    `json:"preVerificationGas"`
	MaxFeePerGas                  *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas          *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Paymaster                     *common.Address `json:"paymaster,omitempty"`
	PaymasterVerificationGasLimit *hexutil.Big    `json:"paymasterVerificationGasLimit,omitempty"`
	PaymasterPostOpGasLimit       *hexutil.Big    `json:"paymasterPostOpGasLimit,omitempty"`
	PaymasterData                 hexutil.Bytes   `json:"paymasterData,omitempty"`
	Signature                     hexutil.Bytes   `json:"signature"`
}

func hexBig(b *big.Int) *hexutil.Big {
	return (*hexutil.Big)(bigOrZero(b))
}

func fromHexBig(b *hexutil.Big) *big.Int {
	if b == nil {
		return nil
	}
	return (*big.Int)(b)
}

// MarshalJSON encodes the operation the way bundlers expect it for
// eth_sendUserOperation and eth_estimateUserOperationGas.
func (op *UserOperation) MarshalJSON() ([]byte, error) {
	j := &userOpJSON{
		Sender:               op.Sender,
		Nonce:                hexBig(op.Nonce),
		CallData:             nonNilBytes(op.CallData),
		CallGasLimit:         hexBig(op.CallGasLimit),
		VerificationGasLimit: hexBig(op.VerificationGasLimit),
		PreVerificationGas:   hexBig(op.PreVerificationGas),
		MaxFeePerGas:         hexBig(op.MaxFeePerGas),
		MaxPriorityFeePerGas: hexBig(op.MaxPriorityFeePerGas),
		Signature:            nonNilBytes(op.Signature),
	}
	if op.Factory != nil {
		j.Factory = op.Factory
		j.FactoryData = nonNilBytes(op.FactoryData)
	}
	if op.Paymaster != nil {
		j.Paymaster = op.Paymaster
		j.PaymasterVerificationGasLimit = hexBig(op.PaymasterVerificationGasLimit)
		j.PaymasterPostOpGasLimit = hexBig(op.PaymasterPostOpGasLimit)
		j.PaymasterData = nonNilBytes(op.PaymasterData)
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes the bundler RPC encoding.
func (op *UserOperation) UnmarshalJSON(b []byte) error {
	var j userOpJSON
	if err := json.Unmarshal(b, &j); err != nil {
		return err
	}
	*op = UserOperation{
		Sender:                        j.Sender,
		Nonce:                         fromHexBig(j.Nonce),
		Factory:                       j.Factory,
		FactoryData:                   j.FactoryData,
		CallData:                      j.CallData,
		CallGasLimit:                  fromHexBig(j.CallGasLimit),
		VerificationGasLimit:          fromHexBig(j.VerificationGasLimit),
		PreVerificationGas:            fromHexBig(j.PreVerificationGas),
		MaxFeePerGas:                  fromHexBig(j.MaxFeePerGas),
		MaxPriorityFeePerGas:          fromHexBig(j.MaxPriorityFeePerGas),
		Paymaster:                     j.Paymaster,
		PaymasterVerificationGasLimit: fromHexBig(j.PaymasterVerificationGasLimit),
		PaymasterPostOpGasLimit:       fromHexBig(j.PaymasterPostOpGasLimit),
		PaymasterData:                 j.PaymasterData,
		Signature:                     j.Signature,
	}
	return nil
}
