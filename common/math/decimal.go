package math

import (
	"math/big"

	"github.com/shopspring/decimal"
)

func abs(n int64) int64 {
	y := n >> 63
	return (n ^ y) - y
}

// ToInt truncates a decimal to its integer part as big.Int.
func ToInt(value decimal.Decimal) *big.Int {
	m := value.Coefficient()
	exp := value.Exponent()

	if exp == 0 {
		return m
	}

	coef := big.NewInt(1)
	for i := int64(0); i < abs(int64(exp)); i++ {
		coef.Mul(coef, big.NewInt(10))
	}

	if exp < 0 {
		m.Quo(m, coef)
	} else {
		m.Mul(m, coef)
	}
	return m
}

// ToUint64 truncates a decimal to uint64, saturating at the type bounds.
func ToUint64(value decimal.Decimal) uint64 {
	i := ToInt(value)
	if i.Sign() < 0 {
		return 0
	}
	if !i.IsUint64() {
		return ^uint64(0)
	}
	return i.Uint64()
}
