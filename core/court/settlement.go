package court

import (
	"math/big"

	"github.com/NivraLabs/nivra-court-sub000/common"
	"github.com/NivraLabs/nivra-court-sub000/core/dispute"
	"github.com/NivraLabs/nivra-court-sub000/core/economy"
	"github.com/NivraLabs/nivra-court-sub000/core/errs"
	"github.com/NivraLabs/nivra-court-sub000/events"
)

// Settlement is the economic outcome of a closed dispute: fee-token flows
// (treasury cut, juror rewards, escrow refunds) and staked-token flows
// (slashes, redistribution credits, treasury stake cut). Token transfers
// themselves are the caller's concern.
type Settlement struct {
	Dispute common.Hash

	TreasuryFee uint64
	Rewards     map[common.Address]uint64
	Refunds     map[common.Address]uint64

	TreasuryStake uint64
	StakeSlashes  map[common.Address]uint64
	StakeCredits  map[common.Address]uint64
}

func newSettlement(id common.Hash) *Settlement {
	return &Settlement{
		Dispute:      id,
		Rewards:      make(map[common.Address]uint64),
		Refunds:      make(map[common.Address]uint64),
		StakeSlashes: make(map[common.Address]uint64),
		StakeCredits: make(map[common.Address]uint64),
	}
}

// FinishDispute completes a tallied dispute and settles its economics: the
// treasury takes its share of the cumulative fee pool, majority jurors split
// the remainder plus the redistributed minority slash, minority and absent
// jurors are slashed, and all locked stake returns to the pool.
func (c *Court) FinishDispute(id common.Hash) (*dispute.Result, *Settlement, error) {
	d, ok := c.disputes[id]
	if !ok {
		return nil, nil, errs.New(errs.State, "unknown dispute")
	}
	result, err := d.Finish(c.clock.NowMilli())
	if err != nil {
		return nil, nil, err
	}

	params := d.Params()
	initialJurors := uint64(c.cfg.JurorCount)
	treasuryFee := economy.TreasuryTake(params.Fee, params.TreasuryShareFee, d.AppealsUsed(), initialJurors)
	nivsters := economy.NivstersTake(params.Fee, params.TreasuryShareFee, d.AppealsUsed(), initialJurors)

	winnerOption, _, _ := d.Winner()
	minorityOption, _ := d.RunnerUpOption()

	voters := d.VoterStakes()
	penalty, majorityStake := economy.MinorityPenalties(voters, params.SanctionModel,
		params.Coefficient, params.EmptyVotePenalty, winnerOption, minorityOption)

	var majority []economy.VoterStake
	for _, v := range voters {
		if v.Option != nil && *v.Option == winnerOption {
			majority = append(majority, v)
		}
	}
	dist := economy.DistributePenalty(penalty, params.TreasuryShareNvr, majority, majorityStake)

	s := newSettlement(id)
	s.TreasuryFee = treasuryFee
	s.TreasuryStake = dist.TreasuryCut
	s.StakeCredits = dist.VoterCuts
	s.StakeSlashes = slashPlan(voters, params, winnerOption, minorityOption, penalty)
	s.Rewards = c.rewardPlan(s, nivsters, majority, majorityStake)

	c.releaseJurors(d, s)
	c.treasuryFee += s.TreasuryFee
	c.treasuryStake += s.TreasuryStake
	c.closeDispute(d)
	c.settlements[id] = s

	c.collector.DisputeCompleted()
	c.collector.TreasuryAccrued(s.TreasuryFee, s.TreasuryStake)
	c.publish(events.DisputeCompletedEvent{
		Court:        c.id,
		Dispute:      id,
		Contract:     result.Contract,
		WinnerOption: result.WinnerOption,
		WinnerParty:  result.WinnerParty,
	})
	c.log.Info("Dispute settled", "id", id, "treasuryFee", s.TreasuryFee, "penalty", penalty)
	return result, s, nil
}

// slashPlan decomposes the aggregate penalty into per-voter slashes: absent
// voters pay the empty-vote percentage of their stake, minority voters split
// the sanction-model penalty proportionally to stake, any division remainder
// lands on the last minority voter so the plan sums to penalty exactly.
func slashPlan(voters []economy.VoterStake, params dispute.EconomicParams,
	winnerOption, minorityOption uint8, penalty uint64) map[common.Address]uint64 {

	slashes := make(map[common.Address]uint64)
	var emptyTotal, minorityStake uint64
	var minority []economy.VoterStake
	for _, v := range voters {
		switch {
		case v.Option == nil:
			cut := v.Stake * params.EmptyVotePenalty / 100
			if cut > 0 {
				slashes[v.Address] += cut
			}
			emptyTotal += cut
		case *v.Option == minorityOption && minorityOption != winnerOption:
			minority = append(minority, v)
			minorityStake += v.Stake
		}
	}

	modelPenalty := penalty - emptyTotal
	if modelPenalty == 0 || minorityStake == 0 {
		return slashes
	}
	var paid uint64
	for i, v := range minority {
		cut := new(big.Int).SetUint64(modelPenalty)
		cut.Mul(cut, new(big.Int).SetUint64(v.Stake))
		cut.Div(cut, new(big.Int).SetUint64(minorityStake))
		amount := cut.Uint64()
		if i == len(minority)-1 {
			amount = modelPenalty - paid
		}
		if amount > 0 {
			slashes[v.Address] += amount
		}
		paid += amount
	}
	return slashes
}

// rewardPlan splits the juror fee pool among majority voters proportionally
// to stake; the flooring remainder accrues to the settlement's treasury fee.
func (c *Court) rewardPlan(s *Settlement, nivsters uint64, majority []economy.VoterStake,
	majorityStake uint64) map[common.Address]uint64 {

	rewards := make(map[common.Address]uint64)
	if nivsters == 0 || majorityStake == 0 {
		s.TreasuryFee += nivsters
		return rewards
	}
	var paid uint64
	for _, v := range majority {
		cut := new(big.Int).SetUint64(nivsters)
		cut.Mul(cut, new(big.Int).SetUint64(v.Stake))
		cut.Div(cut, new(big.Int).SetUint64(majorityStake))
		amount := cut.Uint64()
		if amount > 0 {
			rewards[v.Address] += amount
		}
		paid += amount
	}
	s.TreasuryFee += nivsters - paid
	return rewards
}

// releaseJurors returns every juror's locked stake to their free balance and
// pool weight, net of the settlement's slashes and credits.
func (c *Court) releaseJurors(d *dispute.Dispute, s *Settlement) {
	for _, addr := range d.Voters() {
		v, _ := d.Voter(addr)
		stake := c.stakes[addr]
		net := v.Stake + s.StakeCredits[addr] - s.StakeSlashes[addr]
		stake.Locked -= v.Stake
		stake.Amount += net
		stake.Multiplier -= v.Votes
		_ = c.pool.UpdateWeight(stake.poolIndex, net, true)
	}
	c.collector.SetStakeTotal(c.pool.TotalWeight())
}

func (c *Court) closeDispute(d *dispute.Dispute) {
	delete(c.byContract, d.Contract())
	delete(c.escrow, d.ID())
}

// FinishOneSidedDispute resolves a dispute where only one party responded:
// that party wins, its escrowed fee is refunded, jurors are released intact.
func (c *Court) FinishOneSidedDispute(id common.Hash) (*Settlement, error) {
	d, ok := c.disputes[id]
	if !ok {
		return nil, errs.New(errs.State, "unknown dispute")
	}
	paid := d.PaidParties()
	if err := d.FinishOneSided(c.clock.NowMilli()); err != nil {
		return nil, err
	}

	s := newSettlement(id)
	s.Refunds[paid[0]] = c.escrow[id]
	c.releaseJurors(d, s)
	c.closeDispute(d)
	c.settlements[id] = s

	winnerParty, _ := d.WinnerParty()
	c.collector.DisputeCompleted()
	c.publish(events.DisputeCompletedEvent{
		Court:       c.id,
		Dispute:     id,
		Contract:    d.Contract(),
		WinnerParty: winnerParty,
		OneSided:    true,
	})
	return s, nil
}

// CancelDispute closes a dispute that failed payment or ran out its phase
// table. Paid parties get their current-round fee back, older escrow is
// split evenly across all parties, jurors are released unslashed.
func (c *Court) CancelDispute(id common.Hash) (*Settlement, error) {
	d, ok := c.disputes[id]
	if !ok {
		return nil, errs.New(errs.State, "unknown dispute")
	}
	paid := d.PaidParties()
	if err := d.Cancel(c.clock.NowMilli()); err != nil {
		return nil, err
	}

	s := newSettlement(id)
	remaining := c.escrow[id]
	fee := d.Params().Fee
	for _, p := range paid {
		if remaining < fee {
			break
		}
		s.Refunds[p] += fee
		remaining -= fee
	}
	if remaining > 0 {
		parties := d.Parties()
		share := remaining / uint64(len(parties))
		for _, p := range parties {
			if share > 0 {
				s.Refunds[p] += share
			}
			remaining -= share
		}
		s.TreasuryFee += remaining
		c.treasuryFee += remaining
	}

	c.releaseJurors(d, s)
	c.closeDispute(d)
	c.settlements[id] = s

	c.collector.DisputeCancelled()
	c.publish(events.DisputeCancelledEvent{Court: c.id, Dispute: id})
	c.log.Info("Dispute cancelled", "id", id)
	return s, nil
}
