// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"bytes"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"decred.org/kernelprov/aa"
	"github.com/ethereum/go-ethereum/common"
)

func tUserOp() *UserOperation {
	return &UserOperation{
		Sender:               tOwner1,
		Nonce:                big.NewInt(5),
		CallData:             []byte{},
		CallGasLimit:         big.NewInt(50_000),
		VerificationGasLimit: big.NewInt(100_000),
		PreVerificationGas:   big.NewInt(21_000),
		MaxFeePerGas:         big.NewInt(2_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(1_000_000_000),
	}
}

func TestUserOperationHash(t *testing.T) {
	entryPoint := ContractAddresses[aa.Testnet].EntryPoint
	chainID := big.NewInt(TestnetChainID)

	op := tUserOp()
	h, err := op.Hash(entryPoint, chainID)
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if exp := "0x20ee791d2960922055c41b1f150661b6a1f92c14c9007567941df501d9470e4e"; h.Hex() != exp {
		t.Fatalf("wrong hash. wanted %s, got %s", exp, h.Hex())
	}

	// The signature is not hashed.
	op.Signature = DummySignature
	if h2, _ := op.Hash(entryPoint, chainID); h2 != h {
		t.Fatalf("signature changed the hash")
	}

	// Init code is factory ++ factoryData.
	op.Nonce = big.NewInt(0)
	op.Factory = &tFactory
	op.FactoryData = common.FromHex("0xdeadbeef")
	op.CallData = common.FromHex("0xcafe")
	h, err = op.Hash(entryPoint, chainID)
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	if exp := "0x74a30d55717e32e1ded7741010bd231ef21dfd975cecba45478ffd592f1affb3"; h.Hex() != exp {
		t.Fatalf("wrong hash with factory. wanted %s, got %s", exp, h.Hex())
	}

	// Different chains give different hashes.
	if h3, _ := op.Hash(entryPoint, big.NewInt(SimnetChainID)); h3 == h {
		t.Fatalf("chain ID not committed to")
	}

	op.CallGasLimit = new(big.Int).Lsh(big.NewInt(1), 128)
	if _, err := op.Hash(entryPoint, chainID); err == nil {
		t.Fatalf("no error for gas limit overflowing 128 bits")
	}
}

func TestUserOperationPacking(t *testing.T) {
	op := tUserOp()
	agl, _ := op.AccountGasLimits()
	if new(big.Int).SetBytes(agl[:16]).Int64() != 100_000 || new(big.Int).SetBytes(agl[16:]).Int64() != 50_000 {
		t.Fatalf("wrong account gas limits %x", agl)
	}
	fees, _ := op.GasFees()
	if new(big.Int).SetBytes(fees[:16]).Int64() != 1_000_000_000 || new(big.Int).SetBytes(fees[16:]).Int64() != 2_000_000_000 {
		t.Fatalf("wrong gas fees %x", fees)
	}
	if len(op.InitCode()) != 0 {
		t.Fatalf("init code for deployed sender should be empty")
	}
	pmd, _ := op.PaymasterAndData()
	if len(pmd) != 0 {
		t.Fatalf("paymasterAndData without paymaster should be empty")
	}

	pm := common.HexToAddress("0x2222222222222222222222222222222222222222")
	op.Paymaster = &pm
	op.PaymasterVerificationGasLimit = big.NewInt(1)
	op.PaymasterPostOpGasLimit = big.NewInt(2)
	op.PaymasterData = []byte{0xab}
	pmd, err := op.PaymasterAndData()
	if err != nil {
		t.Fatalf("PaymasterAndData error: %v", err)
	}
	if len(pmd) != 20+32+1 || !bytes.Equal(pmd[:20], pm[:]) || pmd[35] != 1 || pmd[51] != 2 || pmd[52] != 0xab {
		t.Fatalf("wrong paymasterAndData %x", pmd)
	}
}

func TestUserOperationJSON(t *testing.T) {
	op := tUserOp()
	op.Signature = DummySignature
	b, err := json.Marshal(op)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"nonce":"0x5"`, `"callGasLimit":"0xc350"`, `"callData":"0x"`, `"maxFeePerGas":"0x77359400"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("encoding %s missing %s", s, want)
		}
	}
	for _, absent := range []string{"factory", "paymaster", "initCode"} {
		if strings.Contains(s, absent) {
			t.Fatalf("encoding %s should not contain %s", s, absent)
		}
	}

	op.Factory = &tFactory
	op.FactoryData = []byte{1}
	b, _ = json.Marshal(op)
	var decoded UserOperation
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if decoded.Factory == nil || *decoded.Factory != tFactory || !bytes.Equal(decoded.FactoryData, []byte{1}) {
		t.Fatalf("factory fields lost: %+v", decoded)
	}
	if decoded.Nonce.Int64() != 5 || !bytes.Equal(decoded.Signature, DummySignature) {
		t.Fatalf("decoded operation differs: %+v", decoded)
	}
}
