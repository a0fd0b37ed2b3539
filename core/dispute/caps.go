package dispute

import "github.com/NivraLabs/nivra-court-sub000/common"

// Capability objects bind a holder to a dispute role. On the originating
// ledger these are unforgeable objects; here custody of the value is the
// proof, the dispute only checks the binding at each entry point.

// PartyCap authorizes a dispute party.
type PartyCap struct {
	Dispute common.Hash
	Holder  common.Address
}

// JurorCap authorizes a drawn nivster.
type JurorCap struct {
	Dispute common.Hash
	Holder  common.Address
}
