// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"errors"
	"fmt"
	"math/big"

	"decred.org/kernelprov/aa/networks/kernel/contracts/account"
	"decred.org/kernelprov/aa/networks/kernel/contracts/factory"
	"github.com/ethereum/go-ethereum/common"
)

const (
	executeFuncName      = "execute"
	executeBatchFuncName = "executeBatch"
	createFuncName       = "createAccount"
)

// Call is a single call the account makes on behalf of its owner.
type Call struct {
	Target common.Address
	Value  *big.Int
	Data   []byte
}

func (c *Call) value() *big.Int {
	if c.Value == nil {
		return new(big.Int)
	}
	return c.Value
}

// PackExecuteData encodes calls as account calldata. A single call uses
// execute and more than one uses executeBatch.
func PackExecuteData(calls []*Call) ([]byte, error) {
	if len(calls) == 0 {
		return nil, errors.New("no calls to encode")
	}
	parsed, err := account.ABI()
	if err != nil {
		return nil, err
	}
	if len(calls) == 1 {
		c := calls[0]
		return parsed.Pack(executeFuncName, c.Target, c.value(), nonNilBytes(c.Data))
	}
	targets := make([]common.Address, 0, len(calls))
	values := make([]*big.Int, 0, len(calls))
	datas := make([][]byte, 0, len(calls))
	for _, c := range calls {
		targets = append(targets, c.Target)
		values = append(values, c.value())
		datas = append(datas, nonNilBytes(c.Data))
	}
	return parsed.Pack(executeBatchFuncName, targets, values, datas)
}

// ParseExecuteData decodes account calldata produced by PackExecuteData.
func ParseExecuteData(calldata []byte) ([]*Call, error) {
	parsed, err := account.ABI()
	if err != nil {
		return nil, err
	}
	if len(calldata) < 4 {
		return nil, fmt.Errorf("calldata too short: %d bytes", len(calldata))
	}
	method, err := parsed.MethodById(calldata[:4])
	if err != nil {
		return nil, fmt.Errorf("unable to parse call data: %w", err)
	}
	args, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return nil, fmt.Errorf("unable to unpack %s args: %w", method.Name, err)
	}
	switch method.Name {
	case executeFuncName:
		if len(args) != 3 {
			return nil, fmt.Errorf("expected 3 execute args but got %d", len(args))
		}
		target, ok1 := args[0].(common.Address)
		value, ok2 := args[1].(*big.Int)
		data, ok3 := args[2].([]byte)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("unexpected execute arg types %T, %T, %T", args[0], args[1], args[2])
		}
		return []*Call{{Target: target, Value: value, Data: data}}, nil
	case executeBatchFuncName:
		if len(args) != 3 {
			return nil, fmt.Errorf("expected 3 executeBatch args but got %d", len(args))
		}
		targets, ok1 := args[0].([]common.Address)
		values, ok2 := args[1].([]*big.Int)
		datas, ok3 := args[2].([][]byte)
		if !ok1 || !ok2 || !ok3 {
			return nil, fmt.Errorf("unexpected executeBatch arg types %T, %T, %T", args[0], args[1], args[2])
		}
		if len(targets) != len(values) || len(targets) != len(datas) {
			return nil, fmt.Errorf("executeBatch length mismatch: %d targets, %d values, %d datas",
				len(targets), len(values), len(datas))
		}
		calls := make([]*Call, 0, len(targets))
		for i := range targets {
			calls = append(calls, &Call{Target: targets[i], Value: values[i], Data: datas[i]})
		}
		return calls, nil
	}
	return nil, fmt.Errorf("unexpected account method %s", method.Name)
}

// PackCreateAccountData encodes the factory createAccount call for the
// descriptor. It is the factoryData of a user operation sent from an
// undeployed account.
func PackCreateAccountData(d *AccountDescriptor) ([]byte, error) {
	parsed, err := factory.ABI()
	if err != nil {
		return nil, err
	}
	return parsed.Pack(createFuncName, d.InitData(), d.SaltBytes())
}

func nonNilBytes(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
