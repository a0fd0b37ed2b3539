package database

import (
	"github.com/NivraLabs/nivra-court-sub000/common"
)

var (
	disputePrefix    = []byte("dsp")
	stakePrefix      = []byte("stk")
	settlementPrefix = []byte("stl")
	escrowPrefix     = []byte("esc")
	treasuryKey      = []byte("treasury")
	counterKey       = []byte("counter")
)

func disputeKey(id common.Hash) []byte {
	return append(disputePrefix, id.Bytes()...)
}

func stakeKey(staker common.Address) []byte {
	return append(stakePrefix, staker.Bytes()...)
}

func settlementKey(id common.Hash) []byte {
	return append(settlementPrefix, id.Bytes()...)
}

func escrowKey(id common.Hash) []byte {
	return append(escrowPrefix, id.Bytes()...)
}
