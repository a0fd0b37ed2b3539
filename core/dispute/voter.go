package dispute

import (
	"github.com/NivraLabs/nivra-court-sub000/common"
	"github.com/NivraLabs/nivra-court-sub000/crypto/votes"
)

// VoterDetails tracks one drawn nivster over the dispute's lifetime.
type VoterDetails struct {
	// Stake is the weight locked into this dispute.
	Stake uint64
	// Votes is the number of virtual seats the juror holds; repeat draws
	// within one selection event accumulate here.
	Votes uint32

	Ballot     *votes.Ballot
	VoteOption *uint8
	VoteParty  *uint8

	CapIssued       bool
	RewardCollected bool
}

func (v *VoterDetails) resetBallot() {
	v.Ballot = nil
	v.VoteOption = nil
	v.VoteParty = nil
}

// voterBook is an insertion-ordered map from juror address to details:
// iteration order equals draw order.
type voterBook struct {
	order []common.Address
	m     map[common.Address]*VoterDetails
}

func newVoterBook() *voterBook {
	return &voterBook{m: make(map[common.Address]*VoterDetails)}
}

func (b *voterBook) get(addr common.Address) (*VoterDetails, bool) {
	v, ok := b.m[addr]
	return v, ok
}

func (b *voterBook) add(addr common.Address, v *VoterDetails) {
	if _, ok := b.m[addr]; !ok {
		b.order = append(b.order, addr)
	}
	b.m[addr] = v
}

func (b *voterBook) each(fn func(addr common.Address, v *VoterDetails)) {
	for _, addr := range b.order {
		fn(addr, b.m[addr])
	}
}

func (b *voterBook) len() int { return len(b.order) }
