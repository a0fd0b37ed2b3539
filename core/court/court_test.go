package court

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NivraLabs/nivra-court-sub000/common"
	"github.com/NivraLabs/nivra-court-sub000/common/eventbus"
	"github.com/NivraLabs/nivra-court-sub000/core/dispute"
	"github.com/NivraLabs/nivra-court-sub000/core/economy"
	"github.com/NivraLabs/nivra-court-sub000/core/errs"
	"github.com/NivraLabs/nivra-court-sub000/crypto/votes"
	"github.com/NivraLabs/nivra-court-sub000/events"
	"github.com/NivraLabs/nivra-court-sub000/log"
	"github.com/NivraLabs/nivra-court-sub000/tests"
)

const testFee = 1_000_000_000

type courtEnv struct {
	c        *Court
	clk      *common.MockClock
	bus      eventbus.Bus
	verifier *votes.AEADVerifier
	servers  []common.Hash
	context  []byte
	stakers  []common.Address
}

// newCourtEnv sets up a court with the given staker balances and a phase
// table of response 100 / draw 50 / evidence 100 / voting 100 / appeal 100.
func newCourtEnv(t *testing.T, jurorCount int, stakes []uint64) *courtEnv {
	servers := []common.Hash{tests.GetRandHash(), tests.GetRandHash()}
	masters := map[common.Hash][]byte{
		servers[0]: tests.GetRandHash().Bytes(),
		servers[1]: tests.GetRandHash().Bytes(),
	}
	env := &courtEnv{
		clk:      &common.MockClock{},
		bus:      eventbus.NewBus(),
		verifier: votes.NewAEADVerifier(masters),
		servers:  servers,
		context:  []byte("court-tests"),
	}
	c, err := NewCourt(Config{
		ID:         tests.GetRandHash(),
		JurorCount: jurorCount,
		MaxAppeals: 1,
		Durations:  dispute.NewTimeTable(0, 100, 50, 100, 100, 100),
		Params: dispute.EconomicParams{
			Fee:              testFee,
			SanctionModel:    economy.SanctionFixed,
			Coefficient:      15,
			TreasuryShareFee: 5,
			TreasuryShareNvr: 5,
			EmptyVotePenalty: 5,
		},
		Threshold:  2,
		KeyServers: servers,
	}, env.verifier, env.bus, env.clk, nil, log.New())
	require.NoError(t, err)
	env.c = c
	for _, stake := range stakes {
		addr := tests.GetRandAddr()
		env.stakers = append(env.stakers, addr)
		require.NoError(t, c.AddStake(addr, stake))
	}
	return env
}

type openResult struct {
	d         *dispute.Dispute
	contract  common.Hash
	parties   []common.Address
	partyCaps []dispute.PartyCap
	jurorCaps map[common.Address]dispute.JurorCap
}

func (env *courtEnv) open(t *testing.T) *openResult {
	contract := tests.GetRandHash()
	parties := []common.Address{tests.GetRandAddr(), tests.GetRandAddr()}
	options := [][]byte{[]byte("refund"), []byte("release"), []byte("split")}
	d, partyCaps, jurorCaps, err := env.c.OpenDispute(contract, parties, options, env.context)
	require.NoError(t, err)
	r := &openResult{
		d:         d,
		contract:  contract,
		parties:   parties,
		partyCaps: partyCaps,
		jurorCaps: make(map[common.Address]dispute.JurorCap),
	}
	for _, cap := range jurorCaps {
		r.jurorCaps[cap.Holder] = cap
	}
	return r
}

func (env *courtEnv) payAll(t *testing.T, r *openResult) {
	for _, cap := range r.partyCaps {
		require.NoError(t, env.c.RespondPayment(r.d.ID(), cap, testFee))
	}
}

func (env *courtEnv) vote(t *testing.T, r *openResult, juror common.Address, option, party uint8) {
	cipher, err := env.verifier.Seal([]byte{option, party}, env.context, r.d.ID(), env.servers)
	require.NoError(t, err)
	err = env.c.CastVote(r.d.ID(), r.jurorCaps[juror], &votes.Ballot{
		Sender:     juror,
		Dispute:    r.d.ID(),
		KeyServers: env.servers,
		Threshold:  2,
		Ciphertext: cipher,
	})
	require.NoError(t, err)
}

func (env *courtEnv) finalize(t *testing.T, r *openResult) {
	material, err := env.verifier.DeriveKeys(env.context, r.d.ID(), env.servers)
	require.NoError(t, err)
	require.NoError(t, env.c.FinalizeVote(r.d.ID(), material))
}

func TestCourt_StakeAndWithdraw(t *testing.T) {
	env := newCourtEnv(t, 3, []uint64{100, 500, 300})
	c := env.c
	require.Equal(t, uint64(900), c.TotalStake())

	// top-up of an existing staker
	require.NoError(t, c.AddStake(env.stakers[0], 50))
	s, ok := c.StakeOf(env.stakers[0])
	require.True(t, ok)
	require.Equal(t, uint64(150), s.Amount)
	require.Equal(t, uint64(950), c.TotalStake())

	err := c.AddStake(env.stakers[0], 0)
	require.True(t, errs.IsKind(err, errs.Config))

	_, err = c.Withdraw(tests.GetRandAddr())
	require.True(t, errs.IsKind(err, errs.State))

	// withdrawing the first staker swaps the last slot into its place;
	// the moved staker must stay fully withdrawable afterwards
	amount, err := c.Withdraw(env.stakers[0])
	require.NoError(t, err)
	require.Equal(t, uint64(150), amount)
	require.Equal(t, uint64(800), c.TotalStake())

	amount, err = c.Withdraw(env.stakers[2])
	require.NoError(t, err)
	require.Equal(t, uint64(300), amount)

	amount, err = c.Withdraw(env.stakers[1])
	require.NoError(t, err)
	require.Equal(t, uint64(500), amount)
	require.Equal(t, uint64(0), c.TotalStake())
}

func TestCourt_WithdrawFreeWhileLocked(t *testing.T) {
	env := newCourtEnv(t, 3, []uint64{100, 500, 300})
	r := env.open(t)
	env.payAll(t, r)

	// a top-up while the whole stake is locked stays free and withdrawable
	require.NoError(t, env.c.AddStake(env.stakers[0], 40))
	amount, err := env.c.Withdraw(env.stakers[0])
	require.NoError(t, err)
	require.Equal(t, uint64(40), amount)

	// the slot survives with the lock intact
	s, ok := env.c.StakeOf(env.stakers[0])
	require.True(t, ok)
	require.Equal(t, uint64(0), s.Amount)
	require.Equal(t, uint64(100), s.Locked)

	_, err = env.c.Withdraw(env.stakers[0])
	require.True(t, errs.IsKind(err, errs.State))

	// once the dispute settles the released stake withdraws in full
	env.clk.Milli = 260
	for _, j := range r.d.Voters() {
		env.vote(t, r, j, 1, 1)
	}
	env.clk.Milli = 360
	env.finalize(t, r)
	env.clk.Milli = 460
	_, _, err = env.c.FinishDispute(r.d.ID())
	require.NoError(t, err)

	amount, err = env.c.Withdraw(env.stakers[0])
	require.NoError(t, err)
	require.Equal(t, uint64(100), amount)
	_, ok = env.c.StakeOf(env.stakers[0])
	require.False(t, ok)
}

func TestCourt_OpenDisputeLocksStake(t *testing.T) {
	env := newCourtEnv(t, 3, []uint64{100, 500, 300})
	r := env.open(t)

	// juror count equals staker count: the whole pool is drawn and locked
	require.Len(t, r.d.Voters(), 3)
	require.Equal(t, uint64(0), env.c.TotalStake())
	for i, addr := range env.stakers {
		s, ok := env.c.StakeOf(addr)
		require.True(t, ok)
		require.Equal(t, uint64(0), s.Amount)
		require.Equal(t, []uint64{100, 500, 300}[i], s.Locked)
		require.Equal(t, uint32(1), s.Multiplier)
	}

	_, err := env.c.Withdraw(env.stakers[0])
	require.True(t, errs.IsKind(err, errs.State))

	// a second dispute for the same contract is rejected
	_, _, _, err = env.c.OpenDispute(r.contract, r.parties, r.d.Options(), env.context)
	require.True(t, errs.IsKind(err, errs.State))

	// and a fresh contract cannot draw from an exhausted pool
	_, _, _, err = env.c.OpenDispute(tests.GetRandHash(), r.parties, r.d.Options(), env.context)
	require.True(t, errs.IsKind(err, errs.Capacity))
}

func TestCourt_RespondPayment(t *testing.T) {
	env := newCourtEnv(t, 2, []uint64{100, 500, 300})
	r := env.open(t)

	err := env.c.RespondPayment(r.d.ID(), r.partyCaps[0], testFee-1)
	require.True(t, errs.IsKind(err, errs.Config))

	env.payAll(t, r)
	require.Equal(t, dispute.StatusActive, r.d.Status())

	err = env.c.RespondPayment(tests.GetRandHash(), r.partyCaps[0], testFee)
	require.True(t, errs.IsKind(err, errs.State))
}

func TestCourt_Settlement(t *testing.T) {
	env := newCourtEnv(t, 3, []uint64{100, 500, 300})
	r := env.open(t)
	env.payAll(t, r)

	var completed []events.DisputeCompletedEvent
	env.bus.Subscribe(events.DisputeCompletedEventID, func(e eventbus.Event) {
		completed = append(completed, e.(events.DisputeCompletedEvent))
	})

	// staker 0 (stake 100) is the minority, stakers 1 and 2 the majority
	env.clk.Milli = 260
	env.vote(t, r, env.stakers[0], 0, 0)
	env.vote(t, r, env.stakers[1], 1, 1)
	env.vote(t, r, env.stakers[2], 1, 1)

	env.clk.Milli = 360
	env.finalize(t, r)
	require.Equal(t, dispute.StatusTallied, r.d.Status())

	env.clk.Milli = 460
	result, s, err := env.c.FinishDispute(r.d.ID())
	require.NoError(t, err)
	require.Equal(t, uint8(1), result.WinnerOption)
	require.Equal(t, uint8(1), result.WinnerParty)

	// fee flows: treasury 5% of the fee, jurors split the other 95%
	// proportionally to stake (500/800 and 300/800)
	require.Equal(t, uint64(50_000_000), s.TreasuryFee)
	require.Equal(t, uint64(593_750_000), s.Rewards[env.stakers[1]])
	require.Equal(t, uint64(356_250_000), s.Rewards[env.stakers[2]])

	// stake flows: fixed sanction slashes 15% of the minority stake (15);
	// 95% of that is redistributed proportionally, the flooring remainder
	// goes to the treasury
	require.Equal(t, uint64(15), s.StakeSlashes[env.stakers[0]])
	require.Equal(t, uint64(8), s.StakeCredits[env.stakers[1]])
	require.Equal(t, uint64(5), s.StakeCredits[env.stakers[2]])
	require.Equal(t, uint64(2), s.TreasuryStake)

	var creditSum uint64
	for _, cut := range s.StakeCredits {
		creditSum += cut
	}
	require.Equal(t, s.StakeSlashes[env.stakers[0]], creditSum+s.TreasuryStake)

	// custody after release
	for i, expected := range []uint64{85, 508, 305} {
		st, _ := env.c.StakeOf(env.stakers[i])
		require.Equal(t, expected, st.Amount)
		require.Equal(t, uint64(0), st.Locked)
		require.Equal(t, uint32(0), st.Multiplier)
	}
	require.Equal(t, uint64(898), env.c.TotalStake())

	treasuryFee, treasuryStake := env.c.Treasury()
	require.Equal(t, uint64(50_000_000), treasuryFee)
	require.Equal(t, uint64(2), treasuryStake)

	require.Len(t, completed, 1)
	require.Equal(t, r.d.ID(), completed[0].Dispute)

	// the settlement stays retrievable for persistence
	stored, ok := env.c.Settlement(r.d.ID())
	require.True(t, ok)
	require.Equal(t, s, stored)

	// the contract slot is free again
	_, _, _, err = env.c.OpenDispute(r.contract, r.parties, r.d.Options(), env.context)
	require.NoError(t, err)
}

func TestCourt_Appeal(t *testing.T) {
	env := newCourtEnv(t, 3, []uint64{100, 100, 100, 100, 100, 100})
	r := env.open(t)
	require.Len(t, r.d.Voters(), 3)
	require.Equal(t, uint64(300), env.c.TotalStake())
	env.payAll(t, r)

	env.clk.Milli = 260
	for _, j := range r.d.Voters() {
		env.vote(t, r, j, 1, 1)
	}
	env.clk.Milli = 360
	env.finalize(t, r)

	// appeal doubles the jury from the remaining stakers
	env.clk.Milli = 400
	jurorCaps, err := env.c.StartAppeal(r.d.ID(), r.partyCaps[0])
	require.NoError(t, err)
	require.Len(t, jurorCaps, 3)
	for _, cap := range jurorCaps {
		r.jurorCaps[cap.Holder] = cap
	}
	require.Len(t, r.d.Voters(), 6)
	require.Equal(t, dispute.StatusResponse, r.d.Status())
	require.Equal(t, uint32(2), r.d.Round())
	require.Equal(t, uint64(0), env.c.TotalStake())
	require.False(t, r.d.HasAppealsLeft())

	// second appeal attempt: the dispute is back in response, not tallied
	_, err = env.c.StartAppeal(r.d.ID(), r.partyCaps[0])
	require.True(t, errs.IsKind(err, errs.Config))

	tt := r.d.TimeTable()
	env.clk.Milli = tt.RoundInit + 10
	env.payAll(t, r)
	require.Equal(t, dispute.StatusActive, r.d.Status())

	env.clk.Milli = tt.EvidenceEnd()
	for _, j := range r.d.Voters() {
		env.vote(t, r, j, 1, 1)
	}
	env.clk.Milli = tt.VotingEnd()
	env.finalize(t, r)
	require.Equal(t, dispute.StatusTallied, r.d.Status())

	// no appeals left: finish works inside the appeal window
	env.clk.Milli = tt.VotingEnd() + 1
	result, s, err := env.c.FinishDispute(r.d.ID())
	require.NoError(t, err)
	require.Equal(t, uint32(1), r.d.AppealsUsed())
	require.Equal(t, uint8(1), result.WinnerOption)

	// unanimous verdict: no slashes; the full fee pool is conserved between
	// the treasury cut (plus reward flooring remainders) and juror rewards
	require.Empty(t, s.StakeSlashes)
	var rewardSum uint64
	for _, reward := range s.Rewards {
		rewardSum += reward
	}
	nivsters := economy.NivstersTake(testFee, 5, 1, 3)
	treasury := economy.TreasuryTake(testFee, 5, 1, 3)
	require.Equal(t, treasury+nivsters, s.TreasuryFee+rewardSum)

	require.Equal(t, uint64(600), env.c.TotalStake())
}

func TestCourt_OneSided(t *testing.T) {
	env := newCourtEnv(t, 2, []uint64{100, 500, 300})
	r := env.open(t)
	require.NoError(t, env.c.RespondPayment(r.d.ID(), r.partyCaps[1], testFee))

	// completion is gated on the response window elapsing
	_, err := env.c.FinishOneSidedDispute(r.d.ID())
	require.True(t, errs.IsKind(err, errs.State))

	env.clk.Milli = 150
	s, err := env.c.FinishOneSidedDispute(r.d.ID())
	require.NoError(t, err)
	require.Equal(t, dispute.StatusCompletedOneSided, r.d.Status())
	require.Equal(t, uint64(testFee), s.Refunds[r.parties[1]])
	party, ok := r.d.WinnerParty()
	require.True(t, ok)
	require.Equal(t, uint8(1), party)

	// jurors released intact
	require.Equal(t, uint64(900), env.c.TotalStake())
}

func TestCourt_Cancel(t *testing.T) {
	env := newCourtEnv(t, 2, []uint64{100, 500, 300})
	r := env.open(t)
	require.NoError(t, env.c.RespondPayment(r.d.ID(), r.partyCaps[0], testFee))

	// too early
	_, err := env.c.CancelDispute(r.d.ID())
	require.True(t, errs.IsKind(err, errs.State))

	env.clk.Milli = 150
	s, err := env.c.CancelDispute(r.d.ID())
	require.NoError(t, err)
	require.Equal(t, dispute.StatusCancelled, r.d.Status())
	require.Equal(t, uint64(testFee), s.Refunds[r.parties[0]])
	require.Equal(t, uint64(900), env.c.TotalStake())

	// contract slot is free again
	_, _, _, err = env.c.OpenDispute(r.contract, r.parties, r.d.Options(), env.context)
	require.NoError(t, err)
}

func TestCourt_ConfigValidation(t *testing.T) {
	base := Config{
		ID:         tests.GetRandHash(),
		JurorCount: 3,
		Params:     dispute.EconomicParams{Fee: 1},
	}

	cfg := base
	cfg.JurorCount = 0
	_, err := NewCourt(cfg, nil, nil, common.SystemClock(), nil, log.New())
	require.True(t, errs.IsKind(err, errs.Config))

	cfg = base
	cfg.Params.Fee = 0
	_, err = NewCourt(cfg, nil, nil, common.SystemClock(), nil, log.New())
	require.True(t, errs.IsKind(err, errs.Config))

	cfg = base
	cfg.Params.Coefficient = 101
	_, err = NewCourt(cfg, nil, nil, common.SystemClock(), nil, log.New())
	require.True(t, errs.IsKind(err, errs.Config))
}
