package database

import (
	"testing"

	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/NivraLabs/nivra-court-sub000/common"
	"github.com/NivraLabs/nivra-court-sub000/tests"
)

func TestCourtDb_DisputeSnapshots(t *testing.T) {
	db := NewCourtDb(dbm.NewMemDB())

	ids := []common.Hash{tests.GetRandHash(), tests.GetRandHash(), tests.GetRandHash()}
	for i, id := range ids {
		db.WriteDisputeSnapshot(id, []byte{byte(i)})
	}

	require.Equal(t, []byte{1}, db.ReadDisputeSnapshot(ids[1]))
	require.Nil(t, db.ReadDisputeSnapshot(tests.GetRandHash()))

	found := make(map[common.Hash][]byte)
	require.NoError(t, db.IterateDisputes(func(id common.Hash, data []byte) bool {
		found[id] = append([]byte(nil), data...)
		return true
	}))
	require.Len(t, found, 3)
	for i, id := range ids {
		require.Equal(t, []byte{byte(i)}, found[id])
	}

	db.RemoveDispute(ids[0])
	require.Nil(t, db.ReadDisputeSnapshot(ids[0]))
}

func TestCourtDb_Stakes(t *testing.T) {
	db := NewCourtDb(dbm.NewMemDB())

	a, b := tests.GetRandAddr(), tests.GetRandAddr()
	db.WriteStake(StakeRecord{Staker: a, Amount: 100, Locked: 50, Multiplier: 2})
	db.WriteStake(StakeRecord{Staker: b, Amount: 300})

	record, ok := db.ReadStake(a)
	require.True(t, ok)
	require.Equal(t, uint64(100), record.Amount)
	require.Equal(t, uint64(50), record.Locked)
	require.Equal(t, uint32(2), record.Multiplier)

	_, ok = db.ReadStake(tests.GetRandAddr())
	require.False(t, ok)

	var total uint64
	require.NoError(t, db.IterateStakes(func(r StakeRecord) bool {
		total += r.Amount
		return true
	}))
	require.Equal(t, uint64(400), total)

	db.RemoveStake(a)
	_, ok = db.ReadStake(a)
	require.False(t, ok)
}

func TestCourtDb_TreasuryAndCounter(t *testing.T) {
	db := NewCourtDb(dbm.NewMemDB())

	require.Equal(t, TreasuryRecord{}, db.ReadTreasury())
	db.WriteTreasury(500, 42)
	require.Equal(t, TreasuryRecord{Fee: 500, Stake: 42}, db.ReadTreasury())

	require.Equal(t, uint64(0), db.ReadDisputeCounter())
	db.WriteDisputeCounter(1 << 40)
	require.Equal(t, uint64(1)<<40, db.ReadDisputeCounter())
}

func TestCourtDb_Settlements(t *testing.T) {
	db := NewCourtDb(dbm.NewMemDB())
	id := tests.GetRandHash()

	_, ok := db.ReadSettlement(id)
	require.False(t, ok)

	juror, offender := tests.GetRandAddr(), tests.GetRandAddr()
	db.WriteSettlement(SettlementRecord{
		Dispute:       id,
		TreasuryFee:   50_000_000,
		Rewards:       []SettlementCut{{Address: juror, Amount: 950_000_000}},
		TreasuryStake: 2,
		StakeSlashes:  []SettlementCut{{Address: offender, Amount: 15}},
		StakeCredits:  []SettlementCut{{Address: juror, Amount: 13}},
	})

	record, ok := db.ReadSettlement(id)
	require.True(t, ok)
	require.Equal(t, id, record.Dispute)
	require.Equal(t, uint64(50_000_000), record.TreasuryFee)
	require.Equal(t, []SettlementCut{{Address: juror, Amount: 950_000_000}}, record.Rewards)
	require.Equal(t, []SettlementCut{{Address: offender, Amount: 15}}, record.StakeSlashes)
	require.Empty(t, record.Refunds)
}

func TestCourtDb_Escrow(t *testing.T) {
	db := NewCourtDb(dbm.NewMemDB())
	id := tests.GetRandHash()
	require.Equal(t, uint64(0), db.ReadEscrow(id))
	db.WriteEscrow(id, 12345)
	require.Equal(t, uint64(12345), db.ReadEscrow(id))
	db.RemoveEscrow(id)
	require.Equal(t, uint64(0), db.ReadEscrow(id))
}
