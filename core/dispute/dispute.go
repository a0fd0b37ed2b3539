// Package dispute implements the arbitration case state machine. A dispute
// advances through time-boxed phases (response, draw, evidence, voting,
// appeal); there are no background timers, the current phase is computed
// from the round start and the stored status on every call. Every entry
// point asserts the combined (status, time window) predicate up front and
// mutates nothing on failure.
package dispute

import (
	"bytes"

	mapset "github.com/deckarep/golang-set"

	"github.com/NivraLabs/nivra-court-sub000/common"
	"github.com/NivraLabs/nivra-court-sub000/core/economy"
	"github.com/NivraLabs/nivra-court-sub000/core/errs"
	"github.com/NivraLabs/nivra-court-sub000/core/selection"
	"github.com/NivraLabs/nivra-court-sub000/crypto/votes"
	"github.com/NivraLabs/nivra-court-sub000/log"
)

type Status uint8

const (
	StatusResponse Status = iota + 1
	// StatusDraw is reserved for court variants that run a separate draw
	// phase after the response window; the default flow draws all jurors
	// up front and goes straight to StatusActive.
	StatusDraw
	StatusActive
	StatusTallied
	StatusTie
	StatusCompleted
	StatusCompletedOneSided
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusResponse:
		return "response"
	case StatusDraw:
		return "draw"
	case StatusActive:
		return "active"
	case StatusTallied:
		return "tallied"
	case StatusTie:
		return "tie"
	case StatusCompleted:
		return "completed"
	case StatusCompletedOneSided:
		return "completed-one-sided"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the dispute reached a resolved point.
func (s Status) Terminal() bool {
	switch s {
	case StatusTallied, StatusCompleted, StatusCompletedOneSided, StatusCancelled:
		return true
	default:
		return false
	}
}

const (
	MaxEvidenceLimit = 3
	MaxOptions       = 8
)

// EconomicParams is the court's economic configuration, snapshotted into the
// dispute at creation. Immutable for the dispute's lifetime so outcomes stay
// deterministic even if court-wide parameters change mid-dispute.
type EconomicParams struct {
	Fee              uint64
	SanctionModel    economy.SanctionModel
	Coefficient      uint64
	TreasuryShareFee uint64
	TreasuryShareNvr uint64
	EmptyVotePenalty uint64
}

// Config collects everything needed to open a dispute.
type Config struct {
	ID       common.Hash
	Contract common.Hash
	Parties  []common.Address
	Options  [][]byte

	Params     EconomicParams
	TimeTable  TimeTable
	MaxAppeals uint32

	Threshold  uint8
	KeyServers []common.Hash
	ContextID  []byte

	// ResetBallotsOnTie switches the tie restart to the appeal-round
	// behavior of wiping cast ballots. Default keeps them: ballots
	// already cast remain valid re-counts under re-decryption.
	ResetBallotsOnTie bool
}

type Evidence struct {
	Party common.Address
	Blob  common.Hash
}

type Dispute struct {
	id       common.Hash
	contract common.Hash
	params   EconomicParams
	tt       TimeTable

	status      Status
	round       uint32
	appealsUsed uint32
	maxAppeals  uint32

	parties  []common.Address
	partySet mapset.Set
	paid     map[common.Address]bool

	evidence map[common.Address][]Evidence

	options [][]byte
	voters  *voterBook

	result       []uint64
	partyResult  []uint64
	winnerOption *uint8
	winnerParty  *uint8

	threshold         uint8
	keyServers        []common.Hash
	contextID         []byte
	resetBallotsOnTie bool

	verifier votes.Verifier
	log      log.Logger
}

// New creates a dispute in the response phase, seeded with the jurors drawn
// at court level.
func New(cfg Config, jurors *selection.DrawResult, verifier votes.Verifier, now int64, logger log.Logger) (*Dispute, error) {
	if len(cfg.Parties) < 2 {
		return nil, errs.New(errs.Config, "a dispute needs at least two parties")
	}
	if len(cfg.Options) < 2 || len(cfg.Options) > MaxOptions {
		return nil, errs.Errorf(errs.Config, "option count must be in [2, %d]", MaxOptions)
	}
	if cfg.Params.Fee == 0 {
		return nil, errs.New(errs.Config, "dispute fee must be positive")
	}
	if jurors == nil || len(jurors.Order) == 0 {
		return nil, errs.New(errs.Config, "dispute needs at least one juror")
	}
	if int(cfg.Threshold) > len(cfg.KeyServers) {
		return nil, errs.New(errs.Config, "decryption threshold exceeds key server count")
	}

	partySet := mapset.NewSet()
	for _, p := range cfg.Parties {
		if !partySet.Add(p) {
			return nil, errs.New(errs.Config, "duplicate party")
		}
	}

	tt := cfg.TimeTable
	tt.RoundInit = now

	d := &Dispute{
		id:                cfg.ID,
		contract:          cfg.Contract,
		params:            cfg.Params,
		tt:                tt,
		status:            StatusResponse,
		round:             1,
		maxAppeals:        cfg.MaxAppeals,
		parties:           append([]common.Address(nil), cfg.Parties...),
		partySet:          partySet,
		paid:              make(map[common.Address]bool),
		evidence:          make(map[common.Address][]Evidence),
		options:           cfg.Options,
		voters:            newVoterBook(),
		result:            make([]uint64, len(cfg.Options)),
		partyResult:       make([]uint64, len(cfg.Parties)),
		threshold:         cfg.Threshold,
		keyServers:        append([]common.Hash(nil), cfg.KeyServers...),
		contextID:         cfg.ContextID,
		resetBallotsOnTie: cfg.ResetBallotsOnTie,
		verifier:          verifier,
		log:               logger.New("dispute", cfg.ID),
	}
	d.addJurors(jurors)
	return d, nil
}

func (d *Dispute) addJurors(drawn *selection.DrawResult) {
	for _, addr := range drawn.Order {
		j := drawn.Jurors[addr]
		if v, ok := d.voters.get(addr); ok {
			v.Stake += j.Stake
			v.Votes += j.Seats
			continue
		}
		d.voters.add(addr, &VoterDetails{Stake: j.Stake, Votes: j.Seats})
	}
}

// AddJurors merges an additional court-level draw into the voter book
// (appeal rounds grow the jury).
func (d *Dispute) AddJurors(drawn *selection.DrawResult) {
	d.addJurors(drawn)
}

// Phase predicates. Both the time window and the status must match: an
// externally triggered transition is idempotent, and an expired window is
// distinct from a phase exited early.

func (d *Dispute) IsResponsePeriod(now int64) bool {
	return d.status == StatusResponse && now < d.tt.ResponseEnd()
}

func (d *Dispute) IsDrawPeriod(now int64) bool {
	return (d.status == StatusDraw || d.status == StatusActive) &&
		now >= d.tt.ResponseEnd() && now < d.tt.DrawEnd()
}

func (d *Dispute) IsEvidencePeriod(now int64) bool {
	return d.status == StatusActive && now >= d.tt.DrawEnd() && now < d.tt.EvidenceEnd()
}

func (d *Dispute) IsVotingPeriod(now int64) bool {
	return d.status == StatusActive && now >= d.tt.EvidenceEnd() && now < d.tt.VotingEnd()
}

// IsAppealPeriodUntallied is the window in which a finalize may land.
func (d *Dispute) IsAppealPeriodUntallied(now int64) bool {
	return d.status == StatusActive && now >= d.tt.VotingEnd() && now < d.tt.AppealEnd()
}

// IsAppealPeriodTallied is the window in which a losing party may appeal.
func (d *Dispute) IsAppealPeriodTallied(now int64) bool {
	return d.status == StatusTallied && now < d.tt.AppealEnd()
}

// PartyFailedPayment signals the dispute should be cancelled for
// non-payment: the response window elapsed with the status still at
// response.
func (d *Dispute) PartyFailedPayment(now int64) bool {
	return d.status == StatusResponse && now >= d.tt.ResponseEnd()
}

// IsIncomplete reports that the phase table ran out without the dispute
// reaching a resolved point: never drawn, tie never re-voted, or active
// never finalized. Such a dispute is eligible for the cancellation path.
func (d *Dispute) IsIncomplete(now int64) bool {
	return d.tt.Elapsed(now) && !d.status.Terminal()
}

func (d *Dispute) HasAppealsLeft() bool {
	return d.appealsUsed < d.maxAppeals
}

func (d *Dispute) checkPartyCap(cap PartyCap) error {
	if cap.Dispute != d.id {
		return errs.New(errs.Authorization, "party capability bound to another dispute")
	}
	if !d.partySet.Contains(cap.Holder) {
		return errs.New(errs.Authorization, "capability holder is not a dispute party")
	}
	return nil
}

// RespondPayment records a party's response-phase fee payment. When every
// party has paid, the dispute becomes active.
func (d *Dispute) RespondPayment(cap PartyCap, now int64) error {
	if err := d.checkPartyCap(cap); err != nil {
		return err
	}
	if !d.IsResponsePeriod(now) {
		return errs.New(errs.Config, "not in response period")
	}
	if d.paid[cap.Holder] {
		return errs.New(errs.State, "party has already responded")
	}
	d.paid[cap.Holder] = true
	if len(d.paid) == len(d.parties) {
		d.status = StatusActive
		d.log.Info("All parties responded", "round", d.round)
	}
	return nil
}

// PaidParties returns the parties that responded, in party order.
func (d *Dispute) PaidParties() []common.Address {
	var out []common.Address
	for _, p := range d.parties {
		if d.paid[p] {
			out = append(out, p)
		}
	}
	return out
}

func (d *Dispute) AddEvidence(cap PartyCap, blob common.Hash, now int64) error {
	if err := d.checkPartyCap(cap); err != nil {
		return err
	}
	if !d.IsEvidencePeriod(now) {
		return errs.New(errs.Config, "not in evidence period")
	}
	if len(d.evidence[cap.Holder]) >= MaxEvidenceLimit {
		return errs.Errorf(errs.Capacity, "evidence limit of %d reached", MaxEvidenceLimit)
	}
	d.evidence[cap.Holder] = append(d.evidence[cap.Holder], Evidence{Party: cap.Holder, Blob: blob})
	return nil
}

func (d *Dispute) RemoveEvidence(cap PartyCap, blob common.Hash, now int64) error {
	if err := d.checkPartyCap(cap); err != nil {
		return err
	}
	if !d.IsEvidencePeriod(now) {
		return errs.New(errs.Config, "not in evidence period")
	}
	list := d.evidence[cap.Holder]
	for i, e := range list {
		if e.Blob == blob {
			d.evidence[cap.Holder] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return errs.New(errs.State, "no such evidence")
}

func (d *Dispute) EvidenceOf(party common.Address) []Evidence {
	return d.evidence[party]
}

// CastVote stores a juror's encrypted ballot. Only the ciphertext is kept;
// no plaintext is observed before finalize.
func (d *Dispute) CastVote(cap JurorCap, ballot *votes.Ballot, now int64) error {
	if cap.Dispute != d.id {
		return errs.New(errs.Authorization, "juror capability bound to another dispute")
	}
	voter, ok := d.voters.get(cap.Holder)
	if !ok {
		return errs.New(errs.Authorization, "capability holder is not a drawn juror")
	}
	if !d.IsVotingPeriod(now) {
		return errs.New(errs.Config, "not in voting period")
	}
	if ballot.Sender != cap.Holder {
		return errs.New(errs.Authorization, "ballot sender mismatch")
	}
	if ballot.Dispute != d.id {
		return errs.New(errs.Config, "ballot bound to another dispute")
	}
	if !ballot.MatchesServers(d.keyServers) || ballot.Threshold != d.threshold {
		return errs.New(errs.Config, "ballot key-server configuration mismatch")
	}
	voter.Ballot = ballot
	return nil
}

func (d *Dispute) hasResult() bool {
	for _, c := range d.result {
		if c > 0 {
			return true
		}
	}
	return d.winnerOption != nil || d.winnerParty != nil || d.status == StatusTallied || d.status == StatusTie
}

// FinalizeVote decrypts every stored ballot with the verified derived key
// material and tallies the outcome. A ballot plaintext is a 2-element
// payload (option index, party index); an out-of-range or malformed
// sub-choice is silently not counted for that dimension.
func (d *Dispute) FinalizeVote(material [][]byte, now int64) error {
	if !d.IsAppealPeriodUntallied(now) {
		return errs.New(errs.Config, "not in appeal period")
	}
	if d.hasResult() {
		return errs.New(errs.State, "vote already finalized")
	}
	verified, err := d.verifier.VerifyDerivedKeys(material, d.contextID, d.id, d.keyServers)
	if err != nil {
		return errs.Wrap(err, "derived key verification")
	}
	if len(verified) < int(d.threshold) {
		return errs.Errorf(errs.State, "not enough derived keys: %d verified, %d required", len(verified), d.threshold)
	}

	d.voters.each(func(addr common.Address, v *VoterDetails) {
		if v.Ballot == nil {
			return
		}
		plain, ok := d.verifier.Decrypt(v.Ballot.Ciphertext, verified, d.keyServers)
		if !ok || len(plain) != 2 {
			d.log.Debug("Skipping undecryptable ballot", "voter", addr)
			return
		}
		if option := plain[0]; int(option) < len(d.options) {
			v.VoteOption = &option
			d.result[option] += uint64(v.Votes)
		}
		if party := plain[1]; int(party) < len(d.parties) {
			v.VoteParty = &party
			d.partyResult[party] += uint64(v.Votes)
		}
	})

	d.tally()
	return nil
}

// tally finds the strictly-highest option and party. A shared maximum in
// either dimension ties the whole round.
func (d *Dispute) tally() {
	optionWinner, optionTied := strictMax(d.result)
	partyWinner, partyTied := strictMax(d.partyResult)

	if optionTied || partyTied {
		d.status = StatusTie
		d.log.Info("Round tied", "round", d.round)
		return
	}
	d.winnerOption = &optionWinner
	d.winnerParty = &partyWinner
	d.status = StatusTallied
	d.log.Info("Round tallied", "round", d.round, "option", optionWinner, "party", partyWinner)
}

// strictMax returns the first index achieving the maximum and whether the
// maximum is shared.
func strictMax(counts []uint64) (uint8, bool) {
	first := 0
	occurrences := 1
	for i := 1; i < len(counts); i++ {
		if counts[i] > counts[first] {
			first = i
			occurrences = 1
		} else if counts[i] == counts[first] {
			occurrences++
		}
	}
	return uint8(first), occurrences > 1
}

func (d *Dispute) resetResults() {
	d.result = make([]uint64, len(d.options))
	d.partyResult = make([]uint64, len(d.parties))
	d.winnerOption = nil
	d.winnerParty = nil
}

// StartNewRoundTie re-opens voting immediately after a tie: response, draw
// and evidence are skipped, results reset, round incremented. Ballots are
// preserved unless the dispute was configured to reset them.
func (d *Dispute) StartNewRoundTie(now int64) error {
	if d.status != StatusTie {
		return errs.New(errs.State, "dispute round is not tied")
	}
	d.tt.restartForTie(now)
	d.resetResults()
	if d.resetBallotsOnTie {
		d.voters.each(func(_ common.Address, v *VoterDetails) { v.resetBallot() })
	}
	d.round++
	d.status = StatusActive
	d.log.Info("Tie round started", "round", d.round)
	return nil
}

// StartNewRoundAppeal starts a contested round after a tallied verdict:
// response and evidence windows are restored, all ballots reset (a fresh
// secret ballot is required), results cleared. Appeal budget accounting is
// the caller's responsibility via HasAppealsLeft.
func (d *Dispute) StartNewRoundAppeal(now int64) error {
	if d.status != StatusTallied {
		return errs.New(errs.State, "dispute round is not tallied")
	}
	d.tt.restartForAppeal(now)
	d.resetResults()
	d.voters.each(func(_ common.Address, v *VoterDetails) { v.resetBallot() })
	d.paid = make(map[common.Address]bool)
	d.round++
	d.appealsUsed++
	d.status = StatusResponse
	d.log.Info("Appeal round started", "round", d.round, "appealsUsed", d.appealsUsed)
	return nil
}

// Cancel moves the dispute to the cancelled state. Valid only from the
// failed-payment or incomplete conditions.
func (d *Dispute) Cancel(now int64) error {
	if !d.PartyFailedPayment(now) && !d.IsIncomplete(now) {
		return errs.New(errs.State, "dispute is not eligible for cancellation")
	}
	d.status = StatusCancelled
	d.log.Info("Dispute cancelled", "round", d.round)
	return nil
}

// FinishOneSided resolves the dispute in favor of the only party that
// responded within the response window.
func (d *Dispute) FinishOneSided(now int64) error {
	if !d.PartyFailedPayment(now) {
		return errs.New(errs.State, "response period has not failed")
	}
	paid := d.PaidParties()
	if len(paid) != 1 {
		return errs.Errorf(errs.State, "one-sided completion needs exactly one responded party, got %d", len(paid))
	}
	for i, p := range d.parties {
		if p == paid[0] {
			winner := uint8(i)
			d.winnerParty = &winner
			break
		}
	}
	d.status = StatusCompletedOneSided
	d.log.Info("Dispute completed one-sided", "winner", paid[0])
	return nil
}

// Result is the finalized record handed back to the contract that opened
// the dispute.
type Result struct {
	Dispute      common.Hash
	Contract     common.Hash
	Options      [][]byte
	WinnerOption uint8
	WinnerParty  uint8
	Parties      []common.Address
	MaxAppeals   uint32
}

// Finish completes a tallied dispute once the appeal window elapsed or no
// appeals remain.
func (d *Dispute) Finish(now int64) (*Result, error) {
	if d.status != StatusTallied {
		return nil, errs.New(errs.State, "dispute round is not tallied")
	}
	if now < d.tt.AppealEnd() && d.HasAppealsLeft() {
		return nil, errs.New(errs.Config, "appeal window is still open")
	}
	d.status = StatusCompleted
	d.log.Info("Dispute completed", "round", d.round)
	return &Result{
		Dispute:      d.id,
		Contract:     d.contract,
		Options:      d.options,
		WinnerOption: *d.winnerOption,
		WinnerParty:  *d.winnerParty,
		Parties:      append([]common.Address(nil), d.parties...),
		MaxAppeals:   d.maxAppeals,
	}, nil
}

// CanonicalBytes returns the order-independent serialization of the
// dispute's identity-relevant configuration.
func (d *Dispute) CanonicalBytes() ([]byte, error) {
	return economy.CanonicalBytes(d.contract, d.parties, d.options)
}

// OptionIndex resolves an option value to its index.
func (d *Dispute) OptionIndex(option []byte) (uint8, bool) {
	for i, o := range d.options {
		if bytes.Equal(o, option) {
			return uint8(i), true
		}
	}
	return 0, false
}

func (d *Dispute) ID() common.Hash            { return d.id }
func (d *Dispute) Contract() common.Hash      { return d.contract }
func (d *Dispute) Status() Status             { return d.status }
func (d *Dispute) Round() uint32              { return d.round }
func (d *Dispute) AppealsUsed() uint32        { return d.appealsUsed }
func (d *Dispute) MaxAppeals() uint32         { return d.maxAppeals }
func (d *Dispute) Params() EconomicParams     { return d.params }
func (d *Dispute) TimeTable() TimeTable       { return d.tt }
func (d *Dispute) Parties() []common.Address  { return append([]common.Address(nil), d.parties...) }
func (d *Dispute) Options() [][]byte          { return d.options }
func (d *Dispute) ResultVector() []uint64     { return append([]uint64(nil), d.result...) }
func (d *Dispute) PartyResultVector() []uint64 {
	return append([]uint64(nil), d.partyResult...)
}

// Winner returns the tallied winner option and party.
func (d *Dispute) Winner() (option uint8, party uint8, ok bool) {
	if d.winnerOption == nil || d.winnerParty == nil {
		return 0, 0, false
	}
	return *d.winnerOption, *d.winnerParty, true
}

// WinnerParty returns the winning party alone; one-sided completions have a
// party winner but no option winner.
func (d *Dispute) WinnerParty() (uint8, bool) {
	if d.winnerParty == nil {
		return 0, false
	}
	return *d.winnerParty, true
}

// RunnerUpOption is the highest-counted losing option, the minority side
// for sanction purposes.
func (d *Dispute) RunnerUpOption() (uint8, bool) {
	winner, _, ok := d.Winner()
	if !ok {
		return 0, false
	}
	best := -1
	for i, c := range d.result {
		if uint8(i) == winner {
			continue
		}
		if best == -1 || c > d.result[best] {
			best = i
		}
	}
	if best == -1 {
		return 0, false
	}
	return uint8(best), true
}

// Voters returns the juror addresses in draw order.
func (d *Dispute) Voters() []common.Address {
	return append([]common.Address(nil), d.voters.order...)
}

func (d *Dispute) Voter(addr common.Address) (*VoterDetails, bool) {
	return d.voters.get(addr)
}

// VoterStakes projects the voter book into the economy engine's view.
func (d *Dispute) VoterStakes() []economy.VoterStake {
	out := make([]economy.VoterStake, 0, d.voters.len())
	d.voters.each(func(addr common.Address, v *VoterDetails) {
		out = append(out, economy.VoterStake{Address: addr, Stake: v.Stake, Option: v.VoteOption})
	})
	return out
}

// IssueJurorCaps returns capabilities for jurors that have none yet and
// marks them issued; re-invocation is idempotent.
func (d *Dispute) IssueJurorCaps() []JurorCap {
	var caps []JurorCap
	d.voters.each(func(addr common.Address, v *VoterDetails) {
		if v.CapIssued {
			return
		}
		v.CapIssued = true
		caps = append(caps, JurorCap{Dispute: d.id, Holder: addr})
	})
	return caps
}
