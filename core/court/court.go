// Package court is the orchestration layer over the stake pool, the juror
// selector, the dispute state machine and the economy engine. A court owns
// one weighted pool of stakers and any number of concurrent disputes, at
// most one per external contract.
package court

import (
	"github.com/NivraLabs/nivra-court-sub000/common"
	"github.com/NivraLabs/nivra-court-sub000/common/eventbus"
	"github.com/NivraLabs/nivra-court-sub000/core/dispute"
	"github.com/NivraLabs/nivra-court-sub000/core/errs"
	"github.com/NivraLabs/nivra-court-sub000/core/nivpool"
	"github.com/NivraLabs/nivra-court-sub000/core/selection"
	"github.com/NivraLabs/nivra-court-sub000/crypto"
	"github.com/NivraLabs/nivra-court-sub000/crypto/votes"
	"github.com/NivraLabs/nivra-court-sub000/events"
	"github.com/NivraLabs/nivra-court-sub000/log"
	"github.com/NivraLabs/nivra-court-sub000/stats"
)

// Stake is a staker's custody record. Amount is free and withdrawable, the
// pool slot's searchable weight always equals it. Locked is committed to
// active disputes and excluded from withdrawal and further draws.
type Stake struct {
	Amount     uint64
	Locked     uint64
	Multiplier uint32

	poolIndex int
}

type Config struct {
	ID         common.Hash
	JurorCount int
	MinStake   uint64
	PoolSize   int
	MaxAppeals uint32

	// Durations is the phase duration template stamped into every new
	// dispute; RoundInit is set at open time.
	Durations dispute.TimeTable
	Params    dispute.EconomicParams

	Threshold         uint8
	KeyServers        []common.Hash
	ResetBallotsOnTie bool
}

func (cfg *Config) validate() error {
	if cfg.JurorCount <= 0 {
		return errs.New(errs.Config, "juror count must be positive")
	}
	if cfg.Params.Fee == 0 {
		return errs.New(errs.Config, "dispute fee must be positive")
	}
	if cfg.Params.TreasuryShareFee > 100 || cfg.Params.TreasuryShareNvr > 100 ||
		cfg.Params.Coefficient > 100 || cfg.Params.EmptyVotePenalty > 100 {
		return errs.New(errs.Config, "percentage parameter above 100")
	}
	return nil
}

type Court struct {
	id  common.Hash
	cfg Config

	pool   *nivpool.Pool
	stakes map[common.Address]*Stake

	disputes    map[common.Hash]*dispute.Dispute
	byContract  map[common.Hash]common.Hash
	escrow      map[common.Hash]uint64
	settlements map[common.Hash]*Settlement
	counter     uint64

	treasuryFee   uint64
	treasuryStake uint64

	verifier  votes.Verifier
	bus       eventbus.Bus
	clock     common.Clock
	collector *stats.Collector
	log       log.Logger

	// throttlingLog covers the per-call entry points that callers retry in
	// tight loops while a phase gate is closed.
	throttlingLog log.ThrottlingLogger
}

func NewCourt(cfg Config, verifier votes.Verifier, bus eventbus.Bus, clock common.Clock,
	collector *stats.Collector, logger log.Logger) (*Court, error) {

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	courtLog := logger.New("court", cfg.ID)
	return &Court{
		id:            cfg.ID,
		cfg:           cfg,
		pool:          nivpool.New(cfg.PoolSize),
		stakes:        make(map[common.Address]*Stake),
		disputes:      make(map[common.Hash]*dispute.Dispute),
		byContract:    make(map[common.Hash]common.Hash),
		escrow:        make(map[common.Hash]uint64),
		settlements:   make(map[common.Hash]*Settlement),
		verifier:      verifier,
		bus:           bus,
		clock:         clock,
		collector:     collector,
		log:           courtLog,
		throttlingLog: log.NewThrottlingLogger(courtLog),
	}, nil
}

func (c *Court) ID() common.Hash { return c.id }

func (c *Court) publish(e eventbus.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

// AddStake deposits amount into the staker's free balance, creating the pool
// slot on first deposit.
func (c *Court) AddStake(staker common.Address, amount uint64) error {
	if amount == 0 {
		return errs.New(errs.Config, "stake amount must be positive")
	}
	s, ok := c.stakes[staker]
	if !ok {
		index, err := c.pool.Push(staker, amount)
		if err != nil {
			return err
		}
		c.stakes[staker] = &Stake{Amount: amount, poolIndex: index}
	} else {
		if err := c.pool.UpdateWeight(s.poolIndex, amount, true); err != nil {
			return err
		}
		s.Amount += amount
	}
	c.collector.SetStakeTotal(c.pool.TotalWeight())
	c.publish(events.StakeAddedEvent{Court: c.id, Staker: staker, Amount: amount})
	return nil
}

// Withdraw releases the staker's free balance. While stake is locked in an
// active dispute only the free part is paid out and the pool slot stays
// alive until the lock drains; otherwise the slot is removed.
func (c *Court) Withdraw(staker common.Address) (uint64, error) {
	s, ok := c.stakes[staker]
	if !ok {
		return 0, errs.New(errs.State, "no stake on record")
	}
	amount := s.Amount
	if s.Locked > 0 {
		if amount == 0 {
			return 0, errs.New(errs.State, "stake is fully locked in an active dispute")
		}
		if err := c.pool.UpdateWeight(s.poolIndex, amount, false); err != nil {
			return 0, err
		}
		s.Amount = 0
	} else {
		index := s.poolIndex
		last := c.pool.Len() - 1
		if err := c.pool.SwapRemove(index); err != nil {
			return 0, err
		}
		if index != last {
			// the previous last slot moved into the freed index
			c.stakes[c.pool.Holder(index)].poolIndex = index
		}
		delete(c.stakes, staker)
	}
	c.collector.SetStakeTotal(c.pool.TotalWeight())
	c.publish(events.StakeWithdrawnEvent{Court: c.id, Staker: staker, Amount: amount})
	return amount, nil
}

// StakeOf returns a copy of the staker's custody record.
func (c *Court) StakeOf(staker common.Address) (Stake, bool) {
	s, ok := c.stakes[staker]
	if !ok {
		return Stake{}, false
	}
	return *s, true
}

func (c *Court) TotalStake() uint64 { return c.pool.TotalWeight() }

func (c *Court) Treasury() (fee uint64, stake uint64) { return c.treasuryFee, c.treasuryStake }

func (c *Court) Dispute(id common.Hash) (*dispute.Dispute, bool) {
	d, ok := c.disputes[id]
	return d, ok
}

func (c *Court) Escrow(id common.Hash) uint64 { return c.escrow[id] }

// Settlement returns the economic outcome recorded when the dispute closed.
func (c *Court) Settlement(id common.Hash) (*Settlement, bool) {
	s, ok := c.settlements[id]
	return s, ok
}

// DisputeIDs lists all disputes the court tracks, open and closed.
func (c *Court) DisputeIDs() []common.Hash {
	ids := make([]common.Hash, 0, len(c.disputes))
	for id := range c.disputes {
		ids = append(ids, id)
	}
	return ids
}

// Stakers lists every staker with a custody record.
func (c *Court) Stakers() []common.Address {
	stakers := make([]common.Address, 0, len(c.stakes))
	for addr := range c.stakes {
		stakers = append(stakers, addr)
	}
	return stakers
}

// LoadStake restores a custody record from persistence. The pool slot gets
// the free amount as searchable weight; locked stake stays out of the pool
// until its dispute settles.
func (c *Court) LoadStake(staker common.Address, amount, locked uint64, multiplier uint32) error {
	if _, ok := c.stakes[staker]; ok {
		return errs.New(errs.State, "stake already loaded")
	}
	index, err := c.pool.Push(staker, amount)
	if err != nil {
		return err
	}
	c.stakes[staker] = &Stake{Amount: amount, Locked: locked, Multiplier: multiplier, poolIndex: index}
	c.collector.SetStakeTotal(c.pool.TotalWeight())
	return nil
}

// LoadDispute restores a dispute and its escrow from persistence.
func (c *Court) LoadDispute(d *dispute.Dispute, escrow uint64) error {
	id := d.ID()
	if _, ok := c.disputes[id]; ok {
		return errs.New(errs.State, "dispute already loaded")
	}
	c.disputes[id] = d
	if !d.Status().Terminal() {
		c.byContract[d.Contract()] = id
	}
	if escrow > 0 {
		c.escrow[id] = escrow
	}
	return nil
}

// LoadTreasury restores the accumulated protocol cuts and the dispute id
// counter from persistence.
func (c *Court) LoadTreasury(fee, stake, counter uint64) {
	c.treasuryFee = fee
	c.treasuryStake = stake
	c.counter = counter
}

func (c *Court) DisputeCounter() uint64 { return c.counter }

// OpenDispute draws a jury from the stake pool and creates a dispute in the
// response phase. At most one active dispute per external contract. Returns
// the party and juror capabilities issued for the new dispute.
func (c *Court) OpenDispute(contract common.Hash, parties []common.Address, options [][]byte,
	contextID []byte) (*dispute.Dispute, []dispute.PartyCap, []dispute.JurorCap, error) {

	if _, ok := c.byContract[contract]; ok {
		return nil, nil, nil, errs.New(errs.State, "contract already has an active dispute")
	}

	c.counter++
	id := crypto.HashConcat(c.id.Bytes(), contract.Bytes(), common.ToBytes(c.counter))

	drawn, err := c.draw(c.cfg.JurorCount, id)
	if err != nil {
		c.counter--
		return nil, nil, nil, err
	}

	now := c.clock.NowMilli()
	d, err := dispute.New(dispute.Config{
		ID:                id,
		Contract:          contract,
		Parties:           parties,
		Options:           options,
		Params:            c.cfg.Params,
		TimeTable:         c.cfg.Durations,
		MaxAppeals:        c.cfg.MaxAppeals,
		Threshold:         c.cfg.Threshold,
		KeyServers:        c.cfg.KeyServers,
		ContextID:         contextID,
		ResetBallotsOnTie: c.cfg.ResetBallotsOnTie,
	}, drawn, c.verifier, now, c.log)
	if err != nil {
		c.releaseDraw(drawn)
		c.counter--
		return nil, nil, nil, err
	}
	c.lockDraw(drawn)

	c.disputes[id] = d
	c.byContract[contract] = id

	partyCaps := make([]dispute.PartyCap, 0, len(parties))
	for _, p := range parties {
		partyCaps = append(partyCaps, dispute.PartyCap{Dispute: id, Holder: p})
	}
	jurorCaps := d.IssueJurorCaps()

	c.collector.DisputeOpened()
	c.publish(events.DisputeOpenedEvent{Court: c.id, Dispute: id, Contract: contract, Jurors: d.Voters()})
	c.log.Info("Dispute opened", "id", id, "contract", contract, "jurors", len(drawn.Order))
	return d, partyCaps, jurorCaps, nil
}

// draw samples count jurors, seeded by the dispute identity.
func (c *Court) draw(count int, seed common.Hash) (*selection.DrawResult, error) {
	return selection.DrawJurors(c.pool, count, c.cfg.MinStake, selection.NewSeedSource(seed))
}

// lockDraw moves the drawn jurors' free stake into their locked balance. The
// selector already zeroed the drawn slots' searchable weight.
func (c *Court) lockDraw(drawn *selection.DrawResult) {
	for _, addr := range drawn.Order {
		j := drawn.Jurors[addr]
		s := c.stakes[addr]
		s.Amount -= j.Stake
		s.Locked += j.Stake
		s.Multiplier += j.Seats
	}
	c.collector.SetStakeTotal(c.pool.TotalWeight())
}

// releaseDraw undoes a draw whose dispute never materialized: searchable
// weight is restored, custody untouched.
func (c *Court) releaseDraw(drawn *selection.DrawResult) {
	for _, addr := range drawn.Order {
		j := drawn.Jurors[addr]
		s := c.stakes[addr]
		_ = c.pool.UpdateWeight(s.poolIndex, j.Stake, true)
	}
}

// RespondPayment escrows a party's dispute fee. The paid amount must equal
// the dispute's snapshotted fee exactly.
func (c *Court) RespondPayment(id common.Hash, cap dispute.PartyCap, amount uint64) error {
	d, ok := c.disputes[id]
	if !ok {
		return errs.New(errs.State, "unknown dispute")
	}
	if amount != d.Params().Fee {
		return errs.Errorf(errs.Config, "fee payment must equal %d", d.Params().Fee)
	}
	if err := d.RespondPayment(cap, c.clock.NowMilli()); err != nil {
		c.throttlingLog.Debug("Fee payment rejected", "dispute", id, "err", err)
		return err
	}
	c.escrow[id] += amount
	return nil
}

// AddEvidence records a party's evidence blob reference for the current
// round.
func (c *Court) AddEvidence(id common.Hash, cap dispute.PartyCap, blob common.Hash) error {
	d, ok := c.disputes[id]
	if !ok {
		return errs.New(errs.State, "unknown dispute")
	}
	return d.AddEvidence(cap, blob, c.clock.NowMilli())
}

func (c *Court) RemoveEvidence(id common.Hash, cap dispute.PartyCap, blob common.Hash) error {
	d, ok := c.disputes[id]
	if !ok {
		return errs.New(errs.State, "unknown dispute")
	}
	return d.RemoveEvidence(cap, blob, c.clock.NowMilli())
}

func (c *Court) CastVote(id common.Hash, cap dispute.JurorCap, ballot *votes.Ballot) error {
	d, ok := c.disputes[id]
	if !ok {
		return errs.New(errs.State, "unknown dispute")
	}
	if err := d.CastVote(cap, ballot, c.clock.NowMilli()); err != nil {
		c.throttlingLog.Debug("Vote rejected", "dispute", id, "err", err)
		return err
	}
	c.collector.BallotCast()
	return nil
}

func (c *Court) FinalizeVote(id common.Hash, material [][]byte) error {
	d, ok := c.disputes[id]
	if !ok {
		return errs.New(errs.State, "unknown dispute")
	}
	if err := d.FinalizeVote(material, c.clock.NowMilli()); err != nil {
		c.throttlingLog.Debug("Vote finalization rejected", "dispute", id, "err", err)
		return err
	}
	return nil
}

// StartTieRound re-opens voting after a tied tally. The existing jury is
// kept; capability re-issuance covers jurors added since the last issue.
func (c *Court) StartTieRound(id common.Hash) ([]dispute.JurorCap, error) {
	d, ok := c.disputes[id]
	if !ok {
		return nil, errs.New(errs.State, "unknown dispute")
	}
	if err := d.StartNewRoundTie(c.clock.NowMilli()); err != nil {
		return nil, err
	}
	c.collector.RoundStarted()
	c.publish(events.RoundStartedEvent{Court: c.id, Dispute: id, Round: d.Round()})
	return d.IssueJurorCaps(), nil
}

// StartAppeal begins a contested round on a losing party's request: the jury
// is doubled by a fresh draw seeded by the dispute id and round, new jurors'
// stake is locked, and the dispute restarts from the response phase.
func (c *Court) StartAppeal(id common.Hash, cap dispute.PartyCap) ([]dispute.JurorCap, error) {
	d, ok := c.disputes[id]
	if !ok {
		return nil, errs.New(errs.State, "unknown dispute")
	}
	if cap.Dispute != id {
		return nil, errs.New(errs.Authorization, "party capability bound to another dispute")
	}
	now := c.clock.NowMilli()
	if !d.IsAppealPeriodTallied(now) {
		return nil, errs.New(errs.Config, "not in appeal period")
	}
	if !d.HasAppealsLeft() {
		return nil, errs.New(errs.State, "no appeals left")
	}

	seed := crypto.HashConcat(id.Bytes(), common.ToBytes(d.Round()))
	drawn, err := c.draw(len(d.Voters()), seed)
	if err != nil {
		return nil, err
	}
	if err := d.StartNewRoundAppeal(now); err != nil {
		c.releaseDraw(drawn)
		return nil, err
	}
	c.lockDraw(drawn)
	d.AddJurors(drawn)
	c.collector.RoundStarted()
	c.publish(events.RoundStartedEvent{Court: c.id, Dispute: id, Round: d.Round(), Appeal: true})
	return d.IssueJurorCaps(), nil
}
