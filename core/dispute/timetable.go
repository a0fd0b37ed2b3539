package dispute

// TimeTable anchors a dispute round in time: a round start plus five
// sequential, non-overlapping phase durations, all in milliseconds. Tie
// rounds zero out the response/draw/evidence phases; the originals are kept
// in the swap fields so a later appeal round can restore them.
type TimeTable struct {
	RoundInit int64

	Response int64
	Draw     int64
	Evidence int64
	Voting   int64
	Appeal   int64

	SwapResponse int64
	SwapDraw     int64
	SwapEvidence int64
}

// NewTimeTable snapshots the given durations; swap fields start out holding
// the originals.
func NewTimeTable(roundInit, response, draw, evidence, voting, appeal int64) TimeTable {
	return TimeTable{
		RoundInit:    roundInit,
		Response:     response,
		Draw:         draw,
		Evidence:     evidence,
		Voting:       voting,
		Appeal:       appeal,
		SwapResponse: response,
		SwapDraw:     draw,
		SwapEvidence: evidence,
	}
}

func (t *TimeTable) ResponseEnd() int64 { return t.RoundInit + t.Response }
func (t *TimeTable) DrawEnd() int64     { return t.ResponseEnd() + t.Draw }
func (t *TimeTable) EvidenceEnd() int64 { return t.DrawEnd() + t.Evidence }
func (t *TimeTable) VotingEnd() int64   { return t.EvidenceEnd() + t.Voting }
func (t *TimeTable) AppealEnd() int64   { return t.VotingEnd() + t.Appeal }

// Elapsed reports whether the whole phase table has run out.
func (t *TimeTable) Elapsed(now int64) bool {
	return now >= t.AppealEnd()
}

// restartForTie re-opens voting immediately: response, draw and evidence are
// zeroed, their pre-tie values stay in the swap fields.
func (t *TimeTable) restartForTie(now int64) {
	t.RoundInit = now
	t.Response = 0
	t.Draw = 0
	t.Evidence = 0
}

// restartForAppeal restores the response and evidence windows from the swap
// fields; the draw stays zeroed because appeal jurors are drawn at court
// level before the round starts.
func (t *TimeTable) restartForAppeal(now int64) {
	t.RoundInit = now
	t.Response = t.SwapResponse
	t.Draw = 0
	t.Evidence = t.SwapEvidence
}
