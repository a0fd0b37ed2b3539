package crypto

import (
	"hash"
	"sync"

	"golang.org/x/crypto/sha3"

	"github.com/NivraLabs/nivra-court-sub000/common"
)

var keccak256Pool = sync.Pool{New: func() interface{} {
	return sha3.NewLegacyKeccak256()
}}

func Hash(data []byte) [32]byte {
	h, ok := keccak256Pool.Get().(hash.Hash)
	if !ok {
		h = sha3.NewLegacyKeccak256()
	}
	defer keccak256Pool.Put(h)
	h.Reset()

	var b [32]byte

	h.Write(data)
	h.Sum(b[:0])

	return b
}

// HashConcat hashes the concatenation of the given byte chunks.
func HashConcat(chunks ...[]byte) common.Hash {
	h, ok := keccak256Pool.Get().(hash.Hash)
	if !ok {
		h = sha3.NewLegacyKeccak256()
	}
	defer keccak256Pool.Put(h)
	h.Reset()

	var b common.Hash
	for _, c := range chunks {
		h.Write(c)
	}
	h.Sum(b[:0])
	return b
}
