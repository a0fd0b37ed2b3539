package tests

import (
	"github.com/google/tink/go/subtle/random"

	"github.com/NivraLabs/nivra-court-sub000/common"
)

func GetRandAddr() common.Address {
	addr := common.Address{}
	addr.SetBytes(random.GetRandomBytes(20))
	return addr
}

func GetRandHash() common.Hash {
	h := common.Hash{}
	h.SetBytes(random.GetRandomBytes(32))
	return h
}
