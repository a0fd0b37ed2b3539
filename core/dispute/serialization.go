package dispute

import (
	mapset "github.com/deckarep/golang-set"
	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"

	"github.com/NivraLabs/nivra-court-sub000/common"
	"github.com/NivraLabs/nivra-court-sub000/core/economy"
	"github.com/NivraLabs/nivra-court-sub000/crypto/votes"
	"github.com/NivraLabs/nivra-court-sub000/log"
)

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

type voterSnapshot struct {
	Address         common.Address `cbor:"1,keyasint"`
	Stake           uint64         `cbor:"2,keyasint"`
	Votes           uint32         `cbor:"3,keyasint"`
	Ballot          []byte         `cbor:"4,keyasint,omitempty"`
	VoteOption      *uint8         `cbor:"5,keyasint,omitempty"`
	VoteParty       *uint8         `cbor:"6,keyasint,omitempty"`
	CapIssued       bool           `cbor:"7,keyasint"`
	RewardCollected bool           `cbor:"8,keyasint"`
}

type evidenceSnapshot struct {
	Party common.Address `cbor:"1,keyasint"`
	Blob  common.Hash    `cbor:"2,keyasint"`
}

type timeTableSnapshot struct {
	RoundInit    int64 `cbor:"1,keyasint"`
	Response     int64 `cbor:"2,keyasint"`
	Draw         int64 `cbor:"3,keyasint"`
	Evidence     int64 `cbor:"4,keyasint"`
	Voting       int64 `cbor:"5,keyasint"`
	Appeal       int64 `cbor:"6,keyasint"`
	SwapResponse int64 `cbor:"7,keyasint"`
	SwapDraw     int64 `cbor:"8,keyasint"`
	SwapEvidence int64 `cbor:"9,keyasint"`
}

type paramsSnapshot struct {
	Fee              uint64 `cbor:"1,keyasint"`
	SanctionModel    uint8  `cbor:"2,keyasint"`
	Coefficient      uint64 `cbor:"3,keyasint"`
	TreasuryShareFee uint64 `cbor:"4,keyasint"`
	TreasuryShareNvr uint64 `cbor:"5,keyasint"`
	EmptyVotePenalty uint64 `cbor:"6,keyasint"`
}

type disputeSnapshot struct {
	ID                common.Hash        `cbor:"1,keyasint"`
	Contract          common.Hash        `cbor:"2,keyasint"`
	Params            paramsSnapshot     `cbor:"3,keyasint"`
	TimeTable         timeTableSnapshot  `cbor:"4,keyasint"`
	Status            uint8              `cbor:"5,keyasint"`
	Round             uint32             `cbor:"6,keyasint"`
	AppealsUsed       uint32             `cbor:"7,keyasint"`
	MaxAppeals        uint32             `cbor:"8,keyasint"`
	Parties           []common.Address   `cbor:"9,keyasint"`
	Paid              []common.Address   `cbor:"10,keyasint,omitempty"`
	Evidence          []evidenceSnapshot `cbor:"11,keyasint,omitempty"`
	Options           [][]byte           `cbor:"12,keyasint"`
	Voters            []voterSnapshot    `cbor:"13,keyasint"`
	Result            []uint64           `cbor:"14,keyasint"`
	PartyResult       []uint64           `cbor:"15,keyasint"`
	WinnerOption      *uint8             `cbor:"16,keyasint,omitempty"`
	WinnerParty       *uint8             `cbor:"17,keyasint,omitempty"`
	Threshold         uint8              `cbor:"18,keyasint"`
	KeyServers        []common.Hash      `cbor:"19,keyasint"`
	ContextID         []byte             `cbor:"20,keyasint,omitempty"`
	ResetBallotsOnTie bool               `cbor:"21,keyasint"`
}

// ToBytes serializes the full dispute state for persistence. The verifier
// and logger are runtime collaborators and are re-injected on load.
func (d *Dispute) ToBytes() ([]byte, error) {
	snap := &disputeSnapshot{
		ID:       d.id,
		Contract: d.contract,
		Params: paramsSnapshot{
			Fee:              d.params.Fee,
			SanctionModel:    uint8(d.params.SanctionModel),
			Coefficient:      d.params.Coefficient,
			TreasuryShareFee: d.params.TreasuryShareFee,
			TreasuryShareNvr: d.params.TreasuryShareNvr,
			EmptyVotePenalty: d.params.EmptyVotePenalty,
		},
		TimeTable: timeTableSnapshot{
			RoundInit:    d.tt.RoundInit,
			Response:     d.tt.Response,
			Draw:         d.tt.Draw,
			Evidence:     d.tt.Evidence,
			Voting:       d.tt.Voting,
			Appeal:       d.tt.Appeal,
			SwapResponse: d.tt.SwapResponse,
			SwapDraw:     d.tt.SwapDraw,
			SwapEvidence: d.tt.SwapEvidence,
		},
		Status:            uint8(d.status),
		Round:             d.round,
		AppealsUsed:       d.appealsUsed,
		MaxAppeals:        d.maxAppeals,
		Parties:           d.parties,
		Options:           d.options,
		Result:            d.result,
		PartyResult:       d.partyResult,
		WinnerOption:      d.winnerOption,
		WinnerParty:       d.winnerParty,
		Threshold:         d.threshold,
		KeyServers:        d.keyServers,
		ContextID:         d.contextID,
		ResetBallotsOnTie: d.resetBallotsOnTie,
	}
	for _, p := range d.parties {
		if d.paid[p] {
			snap.Paid = append(snap.Paid, p)
		}
		for _, e := range d.evidence[p] {
			snap.Evidence = append(snap.Evidence, evidenceSnapshot{Party: e.Party, Blob: e.Blob})
		}
	}
	var err error
	d.voters.each(func(addr common.Address, v *VoterDetails) {
		vs := voterSnapshot{
			Address:         addr,
			Stake:           v.Stake,
			Votes:           v.Votes,
			VoteOption:      v.VoteOption,
			VoteParty:       v.VoteParty,
			CapIssued:       v.CapIssued,
			RewardCollected: v.RewardCollected,
		}
		if v.Ballot != nil {
			var b []byte
			if b, err = v.Ballot.ToBytes(); err == nil {
				vs.Ballot = b
			}
		}
		snap.Voters = append(snap.Voters, vs)
	})
	if err != nil {
		return nil, errors.Wrap(err, "ballot serialization")
	}
	return encMode.Marshal(snap)
}

// FromBytes restores a dispute from its serialized snapshot.
func FromBytes(data []byte, verifier votes.Verifier, logger log.Logger) (*Dispute, error) {
	snap := new(disputeSnapshot)
	if err := cbor.Unmarshal(data, snap); err != nil {
		return nil, errors.Wrap(err, "dispute snapshot")
	}
	d := &Dispute{
		id:       snap.ID,
		contract: snap.Contract,
		params: EconomicParams{
			Fee:              snap.Params.Fee,
			SanctionModel:    economy.SanctionModel(snap.Params.SanctionModel),
			Coefficient:      snap.Params.Coefficient,
			TreasuryShareFee: snap.Params.TreasuryShareFee,
			TreasuryShareNvr: snap.Params.TreasuryShareNvr,
			EmptyVotePenalty: snap.Params.EmptyVotePenalty,
		},
		tt: TimeTable{
			RoundInit:    snap.TimeTable.RoundInit,
			Response:     snap.TimeTable.Response,
			Draw:         snap.TimeTable.Draw,
			Evidence:     snap.TimeTable.Evidence,
			Voting:       snap.TimeTable.Voting,
			Appeal:       snap.TimeTable.Appeal,
			SwapResponse: snap.TimeTable.SwapResponse,
			SwapDraw:     snap.TimeTable.SwapDraw,
			SwapEvidence: snap.TimeTable.SwapEvidence,
		},
		status:            Status(snap.Status),
		round:             snap.Round,
		appealsUsed:       snap.AppealsUsed,
		maxAppeals:        snap.MaxAppeals,
		parties:           snap.Parties,
		partySet:          mapset.NewSet(),
		paid:              make(map[common.Address]bool),
		evidence:          make(map[common.Address][]Evidence),
		options:           snap.Options,
		voters:            newVoterBook(),
		result:            snap.Result,
		partyResult:       snap.PartyResult,
		winnerOption:      snap.WinnerOption,
		winnerParty:       snap.WinnerParty,
		threshold:         snap.Threshold,
		keyServers:        snap.KeyServers,
		contextID:         snap.ContextID,
		resetBallotsOnTie: snap.ResetBallotsOnTie,
		verifier:          verifier,
		log:               logger.New("dispute", snap.ID),
	}
	for _, p := range snap.Parties {
		d.partySet.Add(p)
	}
	for _, p := range snap.Paid {
		d.paid[p] = true
	}
	for _, e := range snap.Evidence {
		d.evidence[e.Party] = append(d.evidence[e.Party], Evidence{Party: e.Party, Blob: e.Blob})
	}
	for _, vs := range snap.Voters {
		v := &VoterDetails{
			Stake:           vs.Stake,
			Votes:           vs.Votes,
			VoteOption:      vs.VoteOption,
			VoteParty:       vs.VoteParty,
			CapIssued:       vs.CapIssued,
			RewardCollected: vs.RewardCollected,
		}
		if len(vs.Ballot) > 0 {
			b, err := votes.BallotFromBytes(vs.Ballot)
			if err != nil {
				return nil, errors.Wrap(err, "ballot snapshot")
			}
			v.Ballot = b
		}
		d.voters.add(vs.Address, v)
	}
	return d, nil
}
