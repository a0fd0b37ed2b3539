// Package economy implements the fee distribution and sanction formulas of
// the court. All amounts are integral token units; intermediate math uses
// decimals and is truncated on conversion, with exact-sum identities kept by
// assigning division remainders to the treasury cut.
package economy

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/NivraLabs/nivra-court-sub000/common"
	math2 "github.com/NivraLabs/nivra-court-sub000/common/math"
)

// SanctionModel selects how minority voters' locked stake is slashed.
type SanctionModel uint8

const (
	// SanctionFixed slashes a fixed percentage of the minority stake.
	SanctionFixed SanctionModel = iota
	// SanctionScaled shrinks the slash as the minority seat share shrinks
	// relative to the majority.
	SanctionScaled
	// SanctionQuadratic weights the slash by the square of the majority's
	// seat share: the more decisive the verdict, the harsher the sanction.
	SanctionQuadratic
)

// nivsterPool returns the reward pool multiplier contributed by round k:
// 2^k + (2^k - 1)/N. The fee pool roughly doubles each appeal round and the
// jurors added on top of the doubling scale by 1/N of it.
func nivsterPool(k uint32, initialJurors uint64) decimal.Decimal {
	pow2 := decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), uint(k)), 0)
	n := decimal.NewFromInt(int64(initialJurors))
	return pow2.Add(pow2.Sub(decimal.NewFromInt(1)).Div(n))
}

// totalPool returns the full contested pool multiplier of round k. Beyond
// the juror reward pool it includes the per-appeal surcharges (both parties'
// evidence bonds, three per party, each worth fee/N), growing by a factor of
// (2N+6)/N per round.
func totalPool(k uint32, initialJurors uint64) decimal.Decimal {
	n := decimal.NewFromInt(int64(initialJurors))
	growth := decimal.NewFromInt(2).Add(decimal.NewFromInt(6).Div(n))
	return growth.Pow(decimal.NewFromInt(int64(k)))
}

// NivstersTake returns the cumulative juror reward pool after appealsUsed
// appeal rounds: the non-treasury share of every round's reward pool.
func NivstersTake(fee uint64, treasurySharePct uint64, appealsUsed uint32, initialJurors uint64) uint64 {
	cumulative := decimal.Zero
	for k := uint32(0); k <= appealsUsed; k++ {
		cumulative = cumulative.Add(nivsterPool(k, initialJurors))
	}
	take := decimal.NewFromInt(int64(fee)).
		Mul(cumulative).
		Mul(decimal.NewFromInt(int64(100 - treasurySharePct))).
		Div(decimal.NewFromInt(100))
	return math2.ToUint64(take)
}

// TreasuryTake returns the protocol's cut after appealsUsed appeal rounds:
// everything in the cumulative contested pool that does not go to jurors.
func TreasuryTake(fee uint64, treasurySharePct uint64, appealsUsed uint32, initialJurors uint64) uint64 {
	total := decimal.Zero
	for k := uint32(0); k <= appealsUsed; k++ {
		total = total.Add(totalPool(k, initialJurors))
	}
	pool := decimal.NewFromInt(int64(fee)).Mul(total)
	nivsters := NivstersTake(fee, treasurySharePct, appealsUsed, initialJurors)
	return math2.ToUint64(pool.Sub(decimal.NewFromInt(int64(nivsters))))
}

// VoterStake is a tally-side view of one juror: locked stake and the option
// the decrypted ballot chose (nil when no valid ballot was counted).
type VoterStake struct {
	Address common.Address
	Stake   uint64
	Option  *uint8
}

// MinorityPenalties partitions voters by their decrypted option and returns
// the total slash applied to minority voters plus the total stake of the
// majority, the denominator for proportional reward payout. Non-voters are
// penalized separately at emptyVotePenaltyPct.
func MinorityPenalties(voters []VoterStake, model SanctionModel, coefficientPct uint64,
	emptyVotePenaltyPct uint64, majorityOption, minorityOption uint8) (penalty uint64, majorityStake uint64) {

	var minorityStake uint64
	var majorityCount, minorityCount uint64

	for _, v := range voters {
		switch {
		case v.Option == nil:
			penalty += v.Stake * emptyVotePenaltyPct / 100
		case *v.Option == majorityOption:
			majorityStake += v.Stake
			majorityCount++
		case *v.Option == minorityOption:
			minorityStake += v.Stake
			minorityCount++
		}
	}

	base := minorityStake * coefficientPct / 100
	switch model {
	case SanctionFixed:
		penalty += base
	case SanctionScaled:
		if majorityCount+1 > 0 {
			penalty += base * minorityCount / (majorityCount + 1)
		}
	case SanctionQuadratic:
		if total := majorityCount + minorityCount; total > 0 {
			penalty += base * majorityCount * majorityCount / (total * total)
		}
	}
	return penalty, majorityStake
}

// Distribution is the outcome of splitting a slashed amount between the
// treasury and the majority voters.
type Distribution struct {
	TreasuryCut uint64
	VoterCuts   map[common.Address]uint64
}

// DistributePenalty splits penalty between the treasury
// (treasuryShareNvrPct) and the majority voters proportionally to their
// stake. Integer remainders accrue to the treasury cut, so
// penalty == TreasuryCut + sum(VoterCuts) holds exactly.
func DistributePenalty(penalty uint64, treasuryShareNvrPct uint64, majority []VoterStake, majorityStake uint64) *Distribution {
	d := &Distribution{VoterCuts: make(map[common.Address]uint64)}
	if penalty == 0 {
		return d
	}
	distributable := penalty * (100 - treasuryShareNvrPct) / 100

	var paid uint64
	if majorityStake > 0 {
		for _, v := range majority {
			cut := new(big.Int).SetUint64(distributable)
			cut.Mul(cut, new(big.Int).SetUint64(v.Stake))
			cut.Div(cut, new(big.Int).SetUint64(majorityStake))
			amount := cut.Uint64()
			if amount > 0 {
				d.VoterCuts[v.Address] += amount
			}
			paid += amount
		}
	}
	d.TreasuryCut = penalty - paid
	return d
}
