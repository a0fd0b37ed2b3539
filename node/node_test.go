package node

import (
	"testing"

	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/NivraLabs/nivra-court-sub000/common"
	"github.com/NivraLabs/nivra-court-sub000/config"
	"github.com/NivraLabs/nivra-court-sub000/crypto/votes"
	"github.com/NivraLabs/nivra-court-sub000/database"
	"github.com/NivraLabs/nivra-court-sub000/tests"
)

func testConfig(servers []common.Hash) *config.Config {
	serverIDs := make([]string, 0, len(servers))
	for _, s := range servers {
		serverIDs = append(serverIDs, s.Hex())
	}
	return &config.Config{
		DataDir:   "",
		Verbosity: 3,
		Court: &config.CourtConfig{
			JurorCount:       3,
			PoolSize:         100,
			MaxAppeals:       1,
			Fee:              1000,
			Coefficient:      15,
			TreasuryShareFee: 5,
			TreasuryShareNvr: 5,
			EmptyVotePenalty: 5,
			ResponseMs:       1 << 40,
			DrawMs:           1,
			EvidenceMs:       1,
			VotingMs:         1,
			AppealMs:         1,
			Threshold:        2,
			KeyServers:       serverIDs,
		},
	}
}

func TestNode_PersistAndRestore(t *testing.T) {
	servers := []common.Hash{tests.GetRandHash(), tests.GetRandHash()}
	verifier := votes.NewAEADVerifier(map[common.Hash][]byte{
		servers[0]: tests.GetRandHash().Bytes(),
		servers[1]: tests.GetRandHash().Bytes(),
	})
	cfg := testConfig(servers)
	db := database.NewCourtDb(dbm.NewMemDB())

	n1, err := NewNodeWithDb(cfg, verifier, db)
	require.NoError(t, err)
	require.NoError(t, n1.Start())

	stakers := []common.Address{tests.GetRandAddr(), tests.GetRandAddr(), tests.GetRandAddr()}
	for _, s := range stakers {
		require.NoError(t, n1.Court().AddStake(s, 500))
	}

	contract := tests.GetRandHash()
	parties := []common.Address{tests.GetRandAddr(), tests.GetRandAddr()}
	d, partyCaps, _, err := n1.Court().OpenDispute(contract, parties,
		[][]byte{[]byte("a"), []byte("b")}, []byte("ctx"))
	require.NoError(t, err)

	// the response window is effectively unbounded in this config
	require.NoError(t, n1.Court().RespondPayment(d.ID(), partyCaps[0], 1000))
	n1.PersistDispute(d.ID())
	n1.Flush()

	// a second node over the same storage picks up where the first left off
	n2, err := NewNodeWithDb(cfg, verifier, db)
	require.NoError(t, err)
	require.NoError(t, n2.Start())

	restored, ok := n2.Court().Dispute(d.ID())
	require.True(t, ok)
	require.Equal(t, d.Status(), restored.Status())
	require.Equal(t, parties, restored.Parties())
	require.Equal(t, []common.Address{parties[0]}, restored.PaidParties())
	require.Equal(t, uint64(1000), n2.Court().Escrow(d.ID()))

	for _, s := range stakers {
		stake, ok := n2.Court().StakeOf(s)
		require.True(t, ok)
		require.Equal(t, uint64(0), stake.Amount)
		require.Equal(t, uint64(500), stake.Locked)
	}
	require.Equal(t, n1.Court().DisputeCounter(), n2.Court().DisputeCounter())

	// the restored contract slot is still occupied
	_, _, _, err = n2.Court().OpenDispute(contract, parties, [][]byte{[]byte("a"), []byte("b")}, []byte("ctx"))
	require.Error(t, err)

	// but a fresh contract can open once stake frees up
	require.NoError(t, n2.Court().AddStake(tests.GetRandAddr(), 500))
	require.NoError(t, n2.Court().AddStake(tests.GetRandAddr(), 500))
	require.NoError(t, n2.Court().AddStake(tests.GetRandAddr(), 500))
	d2, _, _, err := n2.Court().OpenDispute(tests.GetRandHash(), parties,
		[][]byte{[]byte("a"), []byte("b")}, []byte("ctx"))
	require.NoError(t, err)
	require.NotEqual(t, d.ID(), d2.ID())
}

func TestNode_SettlementPersisted(t *testing.T) {
	servers := []common.Hash{tests.GetRandHash(), tests.GetRandHash()}
	verifier := votes.NewAEADVerifier(map[common.Hash][]byte{
		servers[0]: tests.GetRandHash().Bytes(),
		servers[1]: tests.GetRandHash().Bytes(),
	})
	cfg := testConfig(servers)
	// a zero response window makes the dispute cancellable immediately
	cfg.Court.ResponseMs = 0
	db := database.NewCourtDb(dbm.NewMemDB())

	n, err := NewNodeWithDb(cfg, verifier, db)
	require.NoError(t, err)
	require.NoError(t, n.Start())

	stakers := []common.Address{tests.GetRandAddr(), tests.GetRandAddr(), tests.GetRandAddr()}
	for _, s := range stakers {
		require.NoError(t, n.Court().AddStake(s, 500))
	}
	parties := []common.Address{tests.GetRandAddr(), tests.GetRandAddr()}
	d, _, _, err := n.Court().OpenDispute(tests.GetRandHash(), parties,
		[][]byte{[]byte("a"), []byte("b")}, []byte("ctx"))
	require.NoError(t, err)

	_, err = n.Court().CancelDispute(d.ID())
	require.NoError(t, err)

	record, ok := db.ReadSettlement(d.ID())
	require.True(t, ok)
	require.Equal(t, d.ID(), record.Dispute)
	require.Empty(t, record.Refunds)
	require.Equal(t, uint64(0), db.ReadEscrow(d.ID()))

	// jurors were released intact and their records refreshed
	var free uint64
	require.NoError(t, db.IterateStakes(func(r database.StakeRecord) bool {
		free += r.Amount
		require.Equal(t, uint64(0), r.Locked)
		return true
	}))
	require.Equal(t, uint64(1500), free)
}
