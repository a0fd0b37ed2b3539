package common

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

const (
	AddressLength = 20
	HashLength    = 32
)

// Iteration bounds for prefix scans over hash- and address-keyed ranges.
var (
	MinHash = Hash{}
	MaxHash = Hash{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	MinAddr = Address{}
	MaxAddr = Address{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
		0xff, 0xff, 0xff, 0xff}
)

// Address identifies a staker, a dispute party or the treasury.
type Address [AddressLength]byte

func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

func HexToAddress(s string) Address {
	return BytesToAddress(FromHex(s))
}

func (a Address) Bytes() []byte { return a[:] }

func (a *Address) SetBytes(b []byte) {
	if len(b) > len(a) {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

func (a Address) Hex() string { return "0x" + hex.EncodeToString(a[:]) }

func (a Address) String() string { return a.Hex() }

func (a Address) IsEmpty() bool {
	return a == Address{}
}

// Hash is a 32-byte identifier (dispute ids, contract ids, key server ids).
type Hash [HashLength]byte

func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

func (h Hash) Bytes() []byte { return h[:] }

func (h *Hash) SetBytes(b []byte) {
	if len(b) > len(h) {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

func (h Hash) String() string { return h.Hex() }

func (h Hash) IsEmpty() bool {
	return h == Hash{}
}

func FromHex(s string) []byte {
	if len(s) > 1 && (s[0:2] == "0x" || s[0:2] == "0X") {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, _ := hex.DecodeString(s)
	return b
}

// ToBytes encodes fixed-size unsigned integers little endian.
func ToBytes(value interface{}) []byte {
	switch v := value.(type) {
	case uint16:
		b := make([]byte, 2)
		binary.LittleEndian.PutUint16(b, v)
		return b
	case uint32:
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	case uint64:
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		return b
	case byte:
		return []byte{v}
	default:
		panic(fmt.Sprintf("unsupported type %T", value))
	}
}
