// Package nivpool holds the indexed stake pool: a dense append/swap-remove
// array of (address, weight) pairs backed by a binary-indexed tree, giving
// O(log n) prefix sums, point updates and weighted search. Every stake,
// withdrawal and juror draw mutates the pool, so logarithmic cost on both
// update and sampling is load-bearing.
package nivpool

import (
	"github.com/NivraLabs/nivra-court-sub000/common"
	"github.com/NivraLabs/nivra-court-sub000/core/errs"
)

const DefaultMaxSize = 10000

type entry struct {
	holder common.Address
	weight uint64
}

type Pool struct {
	entries []entry
	// tree is 1-based; tree[i] covers the binary-indexed range ending at
	// slot i-1 of entries. It is updated in the same operation as every
	// weight mutation.
	tree    []uint64
	total   uint64
	maxSize int
}

func New(maxSize int) *Pool {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Pool{
		entries: make([]entry, 0, maxSize),
		tree:    make([]uint64, maxSize+1),
		maxSize: maxSize,
	}
}

func (p *Pool) Len() int { return len(p.entries) }

func (p *Pool) TotalWeight() uint64 { return p.total }

func (p *Pool) Holder(index int) common.Address { return p.entries[index].holder }

func (p *Pool) Weight(index int) uint64 { return p.entries[index].weight }

// Push appends a new slot and returns its index.
func (p *Pool) Push(holder common.Address, weight uint64) (int, error) {
	if len(p.entries) >= p.maxSize {
		return 0, errs.Errorf(errs.Capacity, "pool is full (%d slots)", p.maxSize)
	}
	index := len(p.entries)
	p.entries = append(p.entries, entry{holder: holder, weight: weight})
	p.add(index, weight)
	p.total += weight
	return index, nil
}

// SwapRemove removes the slot at index by moving the last slot into it,
// keeping indices dense. The tree gets a compensating delta for the moved
// element so that prefix sums stay consistent.
func (p *Pool) SwapRemove(index int) error {
	if index < 0 || index >= len(p.entries) {
		return errs.Errorf(errs.Config, "slot %d out of bounds", index)
	}
	last := len(p.entries) - 1
	removed := p.entries[index].weight
	moved := p.entries[last]

	if index != last {
		p.entries[index] = moved
		if moved.weight >= removed {
			p.add(index, moved.weight-removed)
		} else {
			p.sub(index, removed-moved.weight)
		}
		p.sub(last, moved.weight)
	} else {
		p.sub(last, removed)
	}
	p.entries = p.entries[:last]
	p.total -= removed
	return nil
}

// UpdateWeight adds (increase=true) or subtracts delta from the slot's
// weight and propagates it through the tree.
func (p *Pool) UpdateWeight(index int, delta uint64, increase bool) error {
	if index < 0 || index >= len(p.entries) {
		return errs.Errorf(errs.Config, "slot %d out of bounds", index)
	}
	if increase {
		p.entries[index].weight += delta
		p.add(index, delta)
		p.total += delta
		return nil
	}
	if delta > p.entries[index].weight {
		return errs.Errorf(errs.State, "weight underflow at slot %d", index)
	}
	p.entries[index].weight -= delta
	p.sub(index, delta)
	p.total -= delta
	return nil
}

// PrefixSum returns the total weight of slots [0, index].
func (p *Pool) PrefixSum(index int) uint64 {
	var sum uint64
	for i := index + 1; i > 0; i -= i & (-i) {
		sum += p.tree[i]
	}
	return sum
}

// Search returns the smallest index whose prefix sum is >= threshold.
// Precondition: 1 <= threshold <= TotalWeight(). Out-of-range thresholds
// yield an unspecified index; the check is the caller's responsibility.
func (p *Pool) Search(threshold uint64) int {
	size := len(p.entries)
	pos := 0
	rem := threshold
	for k := highestPowerOfTwo(size); k > 0; k >>= 1 {
		if next := pos + k; next <= size && p.tree[next] < rem {
			pos = next
			rem -= p.tree[next]
		}
	}
	return pos
}

func (p *Pool) add(index int, delta uint64) {
	for i := index + 1; i <= p.maxSize; i += i & (-i) {
		p.tree[i] += delta
	}
}

func (p *Pool) sub(index int, delta uint64) {
	for i := index + 1; i <= p.maxSize; i += i & (-i) {
		p.tree[i] -= delta
	}
}

func highestPowerOfTwo(n int) int {
	k := 1
	for k<<1 <= n {
		k <<= 1
	}
	if n == 0 {
		return 0
	}
	return k
}
