// Package selection draws dispute jurors from the stake pool, weighting the
// probability of selection by staked amount. A single draw-time seed is
// expanded into the requested number of samples.
package selection

import (
	"encoding/binary"
	"math/rand"

	mapset "github.com/deckarep/golang-set"

	"github.com/NivraLabs/nivra-court-sub000/common"
	"github.com/NivraLabs/nivra-court-sub000/core/errs"
	"github.com/NivraLabs/nivra-court-sub000/core/nivpool"
)

// Source supplies uniformly distributed integers in [0, max), max > 0.
type Source interface {
	Draw(max uint64) uint64
}

type seedSource struct {
	rnd *rand.Rand
}

// NewSeedSource expands a draw-time seed into a deterministic sample stream.
func NewSeedSource(seed common.Hash) Source {
	randSeed := binary.LittleEndian.Uint64(seed[:8])
	return &seedSource{rnd: rand.New(rand.NewSource(int64(randSeed)))}
}

func (s *seedSource) Draw(max uint64) uint64 {
	if max == 0 {
		return 0
	}
	if max <= 1<<62 {
		return uint64(s.rnd.Int63n(int64(max)))
	}
	// rejection sampling keeps the range free of modulo bias
	limit := ^uint64(0) - ^uint64(0)%max
	for {
		if v := s.rnd.Uint64(); v < limit {
			return v % max
		}
	}
}

// Juror is one drawn nivster: accumulated voting stake and the number of
// virtual seats held due to repeat draws of the same identity.
type Juror struct {
	Address common.Address
	Stake   uint64
	Seats   uint32
}

// DrawResult keeps jurors in draw order.
type DrawResult struct {
	Order  []common.Address
	Jurors map[common.Address]*Juror
}

func (r *DrawResult) TotalStake() uint64 {
	var total uint64
	for _, j := range r.Jurors {
		total += j.Stake
	}
	return total
}

// DrawJurors selects count jurors from the pool, excluding slots below
// minWeight. Drawn slots keep their position but lose their searchable
// weight (the stake is locked into the dispute); sub-minimum slots are
// masked for the duration of the draw and restored afterwards.
func DrawJurors(pool *nivpool.Pool, count int, minWeight uint64, src Source) (*DrawResult, error) {
	if count <= 0 {
		return nil, errs.New(errs.Config, "requested juror count must be positive")
	}

	type masked struct {
		index  int
		weight uint64
	}
	var maskedSlots []masked
	qualifying := 0
	for i := 0; i < pool.Len(); i++ {
		w := pool.Weight(i)
		if w == 0 {
			continue
		}
		if w < minWeight {
			maskedSlots = append(maskedSlots, masked{index: i, weight: w})
			continue
		}
		qualifying++
	}

	restore := func() {
		for _, m := range maskedSlots {
			// cannot fail: index untouched during the draw
			_ = pool.UpdateWeight(m.index, m.weight, true)
		}
	}

	if qualifying < count {
		return nil, errs.Errorf(errs.Capacity, "insufficient candidates: %d qualifying, %d requested", qualifying, count)
	}

	for _, m := range maskedSlots {
		if err := pool.UpdateWeight(m.index, m.weight, false); err != nil {
			restore()
			return nil, err
		}
	}
	defer restore()

	result := &DrawResult{Jurors: make(map[common.Address]*Juror)}
	drawn := mapset.NewSet()
	remaining := pool.TotalWeight()

	for n := 0; n < count; n++ {
		if remaining == 0 {
			return nil, errs.New(errs.Capacity, "qualifying stake exhausted")
		}
		v := src.Draw(remaining)
		index := pool.Search(v + 1)
		holder := pool.Holder(index)
		weight := pool.Weight(index)

		if drawn.Contains(holder) {
			j := result.Jurors[holder]
			j.Seats++
			j.Stake += weight
		} else {
			drawn.Add(holder)
			result.Order = append(result.Order, holder)
			result.Jurors[holder] = &Juror{Address: holder, Stake: weight, Seats: 1}
		}

		// lock: the drawn slot no longer participates in subsequent draws
		if err := pool.UpdateWeight(index, weight, false); err != nil {
			return nil, err
		}
		remaining -= weight
	}
	return result, nil
}
