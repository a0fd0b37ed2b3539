// Package stats tracks court-level operational counters.
package stats

import (
	metrics "github.com/rcrowley/go-metrics"
)

type Collector struct {
	registry metrics.Registry

	stakeTotal        metrics.Gauge
	disputesOpened    metrics.Counter
	disputesCompleted metrics.Counter
	disputesCancelled metrics.Counter
	roundsStarted     metrics.Counter
	ballotsCast       metrics.Counter
	treasuryFee       metrics.Counter
	treasuryStake     metrics.Counter
}

func NewCollector(registry metrics.Registry) *Collector {
	if registry == nil {
		registry = metrics.NewRegistry()
	}
	return &Collector{
		registry:          registry,
		stakeTotal:        metrics.GetOrRegisterGauge("court/stake/total", registry),
		disputesOpened:    metrics.GetOrRegisterCounter("court/disputes/opened", registry),
		disputesCompleted: metrics.GetOrRegisterCounter("court/disputes/completed", registry),
		disputesCancelled: metrics.GetOrRegisterCounter("court/disputes/cancelled", registry),
		roundsStarted:     metrics.GetOrRegisterCounter("court/rounds/started", registry),
		ballotsCast:       metrics.GetOrRegisterCounter("court/ballots/cast", registry),
		treasuryFee:       metrics.GetOrRegisterCounter("court/treasury/fee", registry),
		treasuryStake:     metrics.GetOrRegisterCounter("court/treasury/stake", registry),
	}
}

func (c *Collector) Registry() metrics.Registry { return c.registry }

func (c *Collector) SetStakeTotal(total uint64) {
	if c == nil {
		return
	}
	c.stakeTotal.Update(int64(total))
}

func (c *Collector) DisputeOpened() {
	if c == nil {
		return
	}
	c.disputesOpened.Inc(1)
}

func (c *Collector) DisputeCompleted() {
	if c == nil {
		return
	}
	c.disputesCompleted.Inc(1)
}

func (c *Collector) DisputeCancelled() {
	if c == nil {
		return
	}
	c.disputesCancelled.Inc(1)
}

func (c *Collector) RoundStarted() {
	if c == nil {
		return
	}
	c.roundsStarted.Inc(1)
}

func (c *Collector) BallotCast() {
	if c == nil {
		return
	}
	c.ballotsCast.Inc(1)
}

func (c *Collector) TreasuryAccrued(fee, stake uint64) {
	if c == nil {
		return
	}
	c.treasuryFee.Inc(int64(fee))
	c.treasuryStake.Inc(int64(stake))
}
