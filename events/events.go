package events

import (
	"github.com/NivraLabs/nivra-court-sub000/common"
	"github.com/NivraLabs/nivra-court-sub000/common/eventbus"
)

const (
	StakeAddedEventID       = eventbus.EventID("stake-added")
	StakeWithdrawnEventID   = eventbus.EventID("stake-withdrawn")
	DisputeOpenedEventID    = eventbus.EventID("dispute-opened")
	RoundStartedEventID     = eventbus.EventID("dispute-round-started")
	DisputeCompletedEventID = eventbus.EventID("dispute-completed")
	DisputeCancelledEventID = eventbus.EventID("dispute-cancelled")
)

type StakeAddedEvent struct {
	Court  common.Hash
	Staker common.Address
	Amount uint64
}

func (StakeAddedEvent) EventID() eventbus.EventID { return StakeAddedEventID }

type StakeWithdrawnEvent struct {
	Court  common.Hash
	Staker common.Address
	Amount uint64
}

func (StakeWithdrawnEvent) EventID() eventbus.EventID { return StakeWithdrawnEventID }

type DisputeOpenedEvent struct {
	Court    common.Hash
	Dispute  common.Hash
	Contract common.Hash
	Jurors   []common.Address
}

func (DisputeOpenedEvent) EventID() eventbus.EventID { return DisputeOpenedEventID }

type RoundStartedEvent struct {
	Court   common.Hash
	Dispute common.Hash
	Round   uint32
	Appeal  bool
}

func (RoundStartedEvent) EventID() eventbus.EventID { return RoundStartedEventID }

type DisputeCompletedEvent struct {
	Court        common.Hash
	Dispute      common.Hash
	Contract     common.Hash
	WinnerOption uint8
	WinnerParty  uint8
	OneSided     bool
}

func (DisputeCompletedEvent) EventID() eventbus.EventID { return DisputeCompletedEventID }

type DisputeCancelledEvent struct {
	Court   common.Hash
	Dispute common.Hash
}

func (DisputeCancelledEvent) EventID() eventbus.EventID { return DisputeCancelledEventID }
