// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package kernel

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	tImplementation = common.HexToAddress("0x16D4A6c03276f47D3E16F9774D51F1500FC8daCe")
	tFactory        = common.HexToAddress("0x931FE526cB2e869A230455578E1f9cEeBa14DB87")
	tOwnerA         = common.HexToAddress("0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
	tOwner1         = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func mustBig(t *testing.T, s string) *big.Int {
	t.Helper()
	bi, ok := new(big.Int).SetString(s, 0)
	if !ok {
		t.Fatalf("bad int str %v", s)
	}
	return bi
}

func TestDeriveAccountAddress(t *testing.T) {
	largeSalt := "0x8000000000000000000000000000000000000000000000000000000000000007"
	maxSalt := "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"
	tests := []struct {
		name  string
		owner common.Address
		salt  string
		exp   string
	}{
		{"A salt 0", tOwnerA, "0", "0x5D6e4396C3239007B9cd432520D45037208e44CB"},
		{"A salt 1", tOwnerA, "1", "0x4d689D9fD651fad42B87Be3995906c7d0d5E485b"},
		{"A large salt", tOwnerA, largeSalt, "0xD7A252067e3419bF598020d401d937B2FA59D97B"},
		{"A max salt", tOwnerA, maxSalt, "0x3De19C0176737F905F3fc39c2135C998FdA32D74"},
		{"1 salt 0", tOwner1, "0", "0x090d71e3B38f74A7da058c79CCf4068364AC972B"},
		{"1 salt 1", tOwner1, "1", "0xb7b14cC9024ae0D212815e6fCA708f9B2333E0E0"},
		{"1 large salt", tOwner1, largeSalt, "0x0503E24842eb5bd98763B4430df77A3c4B82259b"},
		{"1 max salt", tOwner1, maxSalt, "0x8AF47Af7d538dEc26dAe8e24d693152Fd1bAFeb7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewAccountDescriptor(tt.owner, mustBig(t, tt.salt), tImplementation, tFactory, nil)
			if err != nil {
				t.Fatalf("NewAccountDescriptor error: %v", err)
			}
			addr, err := DeriveAccountAddress(d)
			if err != nil {
				t.Fatalf("DeriveAccountAddress error: %v", err)
			}
			if addr.Hex() != tt.exp {
				t.Fatalf("wrong address. wanted %s, got %s", tt.exp, addr.Hex())
			}
			// Deterministic.
			again, _ := DeriveAccountAddress(d)
			if again != addr {
				t.Fatalf("second derivation gave %s, first %s", again, addr)
			}
			hexAddr, err := DeriveAccountAddressHex(tt.owner.Hex(), tImplementation.Hex(), tFactory.Hex(), mustBig(t, tt.salt))
			if err != nil {
				t.Fatalf("DeriveAccountAddressHex error: %v", err)
			}
			if hexAddr != addr {
				t.Fatalf("hex derivation gave %s, bytes derivation %s", hexAddr, addr)
			}
		})
	}
}

// TestDeriveAddressFormula checks the derivation against an explicit
// keccak256(0xff ++ factory ++ keccak256(owner ++ salt) ++ keccak256(impl))
// computation.
func TestDeriveAddressFormula(t *testing.T) {
	salt := common.LeftPadBytes(big.NewInt(42).Bytes(), 32)
	d1 := crypto.Keccak256(tOwner1[:], salt)
	d2 := crypto.Keccak256(tImplementation[:])
	var buf bytes.Buffer
	buf.WriteByte(0xff)
	buf.Write(tFactory[:])
	buf.Write(d1)
	buf.Write(d2)
	exp := common.BytesToAddress(crypto.Keccak256(buf.Bytes())[12:])

	addr, err := DeriveAddress(tOwner1[:], tImplementation[:], tFactory[:], salt)
	if err != nil {
		t.Fatalf("DeriveAddress error: %v", err)
	}
	if addr != exp {
		t.Fatalf("wanted %s, got %s", exp, addr)
	}
}

func TestDeriveAddressBadEncoding(t *testing.T) {
	salt := make([]byte, 32)
	tests := []struct {
		name                  string
		owner, impl, fac, slt []byte
	}{
		{"short owner", tOwner1[:19], tImplementation[:], tFactory[:], salt},
		{"long implementation", tOwner1[:], append(tImplementation.Bytes(), 0), tFactory[:], salt},
		{"empty factory", tOwner1[:], tImplementation[:], nil, salt},
		{"short salt", tOwner1[:], tImplementation[:], tFactory[:], salt[:31]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DeriveAddress(tt.owner, tt.impl, tt.fac, tt.slt)
			if !errors.Is(err, ErrInvalidEncoding) {
				t.Fatalf("expected ErrInvalidEncoding, got %v", err)
			}
		})
	}

	if _, err := DeriveAccountAddressHex("0x1234", tImplementation.Hex(), tFactory.Hex(), nil); !errors.Is(err, ErrInvalidEncoding) {
		t.Fatalf("expected ErrInvalidEncoding for short hex owner, got %v", err)
	}
}

func TestSaltBytes(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)
	for _, salt := range []*big.Int{big.NewInt(-1), tooBig} {
		if _, err := SaltBytes(salt); !errors.Is(err, ErrInvalidEncoding) {
			t.Fatalf("expected ErrInvalidEncoding for salt %s, got %v", salt, err)
		}
		if _, err := NewAccountDescriptor(tOwner1, salt, tImplementation, tFactory, nil); !errors.Is(err, ErrInvalidEncoding) {
			t.Fatalf("expected descriptor error for salt %s, got %v", salt, err)
		}
	}
	b, err := SaltBytes(nil)
	if err != nil || b != [32]byte{} {
		t.Fatalf("nil salt should encode as zero, got %x, %v", b, err)
	}
	b, _ = SaltBytes(big.NewInt(0x0102))
	if b[30] != 0x01 || b[31] != 0x02 {
		t.Fatalf("salt not big-endian: %x", b)
	}
}

func TestAccountDescriptorImmutable(t *testing.T) {
	salt := big.NewInt(7)
	initData := []byte{1, 2, 3}
	d, err := NewAccountDescriptor(tOwner1, salt, tImplementation, tFactory, initData)
	if err != nil {
		t.Fatalf("NewAccountDescriptor error: %v", err)
	}
	before, _ := DeriveAccountAddress(d)

	salt.SetInt64(8)
	initData[0] = 9
	d.Salt().SetInt64(9)
	d.InitData()[1] = 9

	if d.Salt().Int64() != 7 {
		t.Fatalf("salt was modified through a reference: %s", d.Salt())
	}
	if !bytes.Equal(d.InitData(), []byte{1, 2, 3}) {
		t.Fatalf("init data was modified through a reference: %x", d.InitData())
	}
	after, _ := DeriveAccountAddress(d)
	if before != after {
		t.Fatalf("derived address changed from %s to %s", before, after)
	}
}
