package selection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NivraLabs/nivra-court-sub000/core/errs"
	"github.com/NivraLabs/nivra-court-sub000/core/nivpool"
	"github.com/NivraLabs/nivra-court-sub000/tests"
)

func newPool(t *testing.T, weights ...uint64) *nivpool.Pool {
	p := nivpool.New(64)
	for _, w := range weights {
		_, err := p.Push(tests.GetRandAddr(), w)
		require.NoError(t, err)
	}
	return p
}

func TestDrawJurors_Exhaustion(t *testing.T) {
	p := newPool(t, 100, 200, 300)

	_, err := DrawJurors(p, 4, 0, NewSeedSource(tests.GetRandHash()))
	require.Error(t, err)
	require.Equal(t, errs.Capacity, errs.KindOf(err))
	// failed draw leaves the pool untouched
	require.Equal(t, uint64(600), p.TotalWeight())
}

func TestDrawJurors_RemovesDrawnWeight(t *testing.T) {
	p := newPool(t, 100, 200, 300, 400)
	src := NewSeedSource(tests.GetRandHash())

	res, err := DrawJurors(p, 4, 0, src)
	require.NoError(t, err)
	require.Len(t, res.Order, 4)
	require.Equal(t, uint64(0), p.TotalWeight())
	require.Equal(t, uint64(1000), res.TotalStake())

	for _, j := range res.Jurors {
		require.Equal(t, uint32(1), j.Seats)
	}
	// slots stay dense, weights are zeroed not removed
	require.Equal(t, 4, p.Len())
}

func TestDrawJurors_MinWeightMasking(t *testing.T) {
	p := newPool(t, 50, 1000, 40, 2000)

	res, err := DrawJurors(p, 2, 100, NewSeedSource(tests.GetRandHash()))
	require.NoError(t, err)
	require.Len(t, res.Order, 2)
	for _, j := range res.Jurors {
		require.GreaterOrEqual(t, j.Stake, uint64(100))
	}
	// the two sub-minimum slots are restored after the draw
	require.Equal(t, uint64(90), p.TotalWeight())

	// only two slots qualify, a third cannot be drawn
	_, err = DrawJurors(p, 1, 100, NewSeedSource(tests.GetRandHash()))
	require.Error(t, err)
	require.Equal(t, errs.Capacity, errs.KindOf(err))
}

func TestDrawJurors_RepeatDrawAccumulatesSeats(t *testing.T) {
	p := nivpool.New(8)
	addr := tests.GetRandAddr()
	// the same identity staked across two slots
	_, err := p.Push(addr, 300)
	require.NoError(t, err)
	_, err = p.Push(addr, 700)
	require.NoError(t, err)

	res, err := DrawJurors(p, 2, 0, NewSeedSource(tests.GetRandHash()))
	require.NoError(t, err)
	require.Len(t, res.Order, 1)

	j := res.Jurors[addr]
	require.Equal(t, uint32(2), j.Seats)
	require.Equal(t, uint64(1000), j.Stake)
}

func TestDrawJurors_Deterministic(t *testing.T) {
	seed := tests.GetRandHash()

	p1 := nivpool.New(16)
	p2 := nivpool.New(16)
	for i := 0; i < 10; i++ {
		addr := tests.GetRandAddr()
		w := uint64((i + 1) * 100)
		_, err := p1.Push(addr, w)
		require.NoError(t, err)
		_, err = p2.Push(addr, w)
		require.NoError(t, err)
	}

	r1, err := DrawJurors(p1, 5, 0, NewSeedSource(seed))
	require.NoError(t, err)
	r2, err := DrawJurors(p2, 5, 0, NewSeedSource(seed))
	require.NoError(t, err)

	require.Equal(t, r1.Order, r2.Order)
}
