// Package node assembles a running court: storage, event bus, metrics and
// the court core, with persistence wired to the court's lifecycle events.
package node

import (
	metrics "github.com/rcrowley/go-metrics"
	dbm "github.com/tendermint/tm-db"

	"github.com/NivraLabs/nivra-court-sub000/common"
	"github.com/NivraLabs/nivra-court-sub000/common/eventbus"
	"github.com/NivraLabs/nivra-court-sub000/config"
	"github.com/NivraLabs/nivra-court-sub000/core/court"
	"github.com/NivraLabs/nivra-court-sub000/core/dispute"
	"github.com/NivraLabs/nivra-court-sub000/core/economy"
	"github.com/NivraLabs/nivra-court-sub000/crypto"
	"github.com/NivraLabs/nivra-court-sub000/crypto/votes"
	"github.com/NivraLabs/nivra-court-sub000/database"
	"github.com/NivraLabs/nivra-court-sub000/events"
	"github.com/NivraLabs/nivra-court-sub000/log"
	"github.com/NivraLabs/nivra-court-sub000/stats"
)

type Node struct {
	config    *config.Config
	db        *database.CourtDb
	court     *court.Court
	bus       eventbus.Bus
	verifier  votes.Verifier
	collector *stats.Collector
	log       log.Logger
	stop      chan struct{}
}

func NewNode(cfg *config.Config, verifier votes.Verifier) (*Node, error) {
	db, err := OpenDatabase(cfg, "court")
	if err != nil {
		return nil, err
	}
	return NewNodeWithDb(cfg, verifier, database.NewCourtDb(db))
}

func NewNodeWithDb(cfg *config.Config, verifier votes.Verifier, db *database.CourtDb) (*Node, error) {
	bus := eventbus.NewBus()
	collector := stats.NewCollector(metrics.DefaultRegistry)

	cc := cfg.Court
	courtID := common.BytesToHash(common.FromHex(cc.ID))
	if courtID.IsEmpty() {
		courtID = crypto.HashConcat([]byte("nivra-court"))
	}

	c, err := court.NewCourt(court.Config{
		ID:         courtID,
		JurorCount: cc.JurorCount,
		MinStake:   cc.MinStake,
		PoolSize:   cc.PoolSize,
		MaxAppeals: cc.MaxAppeals,
		Durations:  dispute.NewTimeTable(0, cc.ResponseMs, cc.DrawMs, cc.EvidenceMs, cc.VotingMs, cc.AppealMs),
		Params: dispute.EconomicParams{
			Fee:              cc.Fee,
			SanctionModel:    economy.SanctionModel(cc.SanctionModel),
			Coefficient:      cc.Coefficient,
			TreasuryShareFee: cc.TreasuryShareFee,
			TreasuryShareNvr: cc.TreasuryShareNvr,
			EmptyVotePenalty: cc.EmptyVotePenalty,
		},
		Threshold:         cc.Threshold,
		KeyServers:        cc.KeyServerIDs(),
		ResetBallotsOnTie: cc.ResetBallotsOnTie,
	}, verifier, bus, common.SystemClock(), collector, log.New())
	if err != nil {
		return nil, err
	}

	node := &Node{
		config:    cfg,
		db:        db,
		court:     c,
		bus:       bus,
		verifier:  verifier,
		collector: collector,
		log:       log.New("component", "node"),
		stop:      make(chan struct{}),
	}
	node.subscribe()
	return node, nil
}

func (node *Node) Court() *court.Court { return node.court }

func (node *Node) Bus() eventbus.Bus { return node.bus }

// Start restores persisted court state: custody records, treasury counters
// and every stored dispute snapshot.
func (node *Node) Start() error {
	if err := node.db.IterateStakes(func(r database.StakeRecord) bool {
		if err := node.court.LoadStake(r.Staker, r.Amount, r.Locked, r.Multiplier); err != nil {
			node.log.Error("Cannot restore stake", "staker", r.Staker, "err", err)
		}
		return true
	}); err != nil {
		return err
	}

	treasury := node.db.ReadTreasury()
	node.court.LoadTreasury(treasury.Fee, treasury.Stake, node.db.ReadDisputeCounter())

	if err := node.db.IterateDisputes(func(id common.Hash, data []byte) bool {
		d, err := dispute.FromBytes(data, node.verifier, log.Root())
		if err != nil {
			node.log.Error("Cannot restore dispute", "id", id, "err", err)
			return true
		}
		if err := node.court.LoadDispute(d, node.db.ReadEscrow(id)); err != nil {
			node.log.Error("Cannot load dispute", "id", id, "err", err)
		}
		return true
	}); err != nil {
		return err
	}

	node.log.Info("Court node started", "court", node.court.ID(),
		"stakers", len(node.court.Stakers()), "disputes", len(node.court.DisputeIDs()))
	return nil
}

func (node *Node) subscribe() {
	node.bus.Subscribe(events.StakeAddedEventID, func(e eventbus.Event) {
		node.persistStake(e.(events.StakeAddedEvent).Staker)
	})
	node.bus.Subscribe(events.StakeWithdrawnEventID, func(e eventbus.Event) {
		// a withdrawal with stake still locked keeps the custody record
		node.persistStake(e.(events.StakeWithdrawnEvent).Staker)
	})
	node.bus.Subscribe(events.DisputeOpenedEventID, func(e eventbus.Event) {
		event := e.(events.DisputeOpenedEvent)
		node.PersistDispute(event.Dispute)
		node.db.WriteDisputeCounter(node.court.DisputeCounter())
		for _, j := range event.Jurors {
			node.persistStake(j)
		}
	})
	node.bus.Subscribe(events.RoundStartedEventID, func(e eventbus.Event) {
		node.PersistDispute(e.(events.RoundStartedEvent).Dispute)
	})
	node.bus.Subscribe(events.DisputeCompletedEventID, func(e eventbus.Event) {
		node.settle(e.(events.DisputeCompletedEvent).Dispute)
	})
	node.bus.Subscribe(events.DisputeCancelledEventID, func(e eventbus.Event) {
		node.settle(e.(events.DisputeCancelledEvent).Dispute)
	})
}

func (node *Node) persistStake(staker common.Address) {
	s, ok := node.court.StakeOf(staker)
	if !ok {
		node.db.RemoveStake(staker)
		return
	}
	node.db.WriteStake(database.StakeRecord{
		Staker:     staker,
		Amount:     s.Amount,
		Locked:     s.Locked,
		Multiplier: s.Multiplier,
	})
}

// PersistDispute snapshots one dispute's full state. Callers invoke it after
// externally triggered mutations (payments, evidence, votes, finalize) that
// do not emit a court event of their own.
func (node *Node) PersistDispute(id common.Hash) {
	d, ok := node.court.Dispute(id)
	if !ok {
		node.db.RemoveDispute(id)
		node.db.RemoveEscrow(id)
		return
	}
	data, err := d.ToBytes()
	if err != nil {
		node.log.Error("Cannot snapshot dispute", "id", id, "err", err)
		return
	}
	node.db.WriteDisputeSnapshot(id, data)
	if escrow := node.court.Escrow(id); escrow > 0 {
		node.db.WriteEscrow(id, escrow)
	}
}

// settle persists the closed dispute with its settlement record, drops the
// escrow and refreshes stake and treasury records for everyone the
// settlement touched.
func (node *Node) settle(id common.Hash) {
	node.PersistDispute(id)
	node.db.RemoveEscrow(id)
	if s, ok := node.court.Settlement(id); ok {
		node.db.WriteSettlement(settlementRecord(s))
	}
	if d, ok := node.court.Dispute(id); ok {
		for _, j := range d.Voters() {
			node.persistStake(j)
		}
	}
	fee, stake := node.court.Treasury()
	node.db.WriteTreasury(fee, stake)
}

func settlementRecord(s *court.Settlement) database.SettlementRecord {
	return database.SettlementRecord{
		Dispute:       s.Dispute,
		TreasuryFee:   s.TreasuryFee,
		Rewards:       settlementCuts(s.Rewards),
		Refunds:       settlementCuts(s.Refunds),
		TreasuryStake: s.TreasuryStake,
		StakeSlashes:  settlementCuts(s.StakeSlashes),
		StakeCredits:  settlementCuts(s.StakeCredits),
	}
}

func settlementCuts(m map[common.Address]uint64) []database.SettlementCut {
	cuts := make([]database.SettlementCut, 0, len(m))
	for addr, amount := range m {
		cuts = append(cuts, database.SettlementCut{Address: addr, Amount: amount})
	}
	return cuts
}

// Flush writes the complete court state, used on shutdown.
func (node *Node) Flush() {
	for _, staker := range node.court.Stakers() {
		node.persistStake(staker)
	}
	for _, id := range node.court.DisputeIDs() {
		node.PersistDispute(id)
	}
	fee, stake := node.court.Treasury()
	node.db.WriteTreasury(fee, stake)
	node.db.WriteDisputeCounter(node.court.DisputeCounter())
}

func (node *Node) Wait() {
	<-node.stop
}

func (node *Node) Stop() {
	node.Flush()
	close(node.stop)
}

func OpenDatabase(cfg *config.Config, name string) (dbm.DB, error) {
	return dbm.NewGoLevelDB(name, cfg.DataDir)
}
