package math

import (
	"errors"
	"math/big"
)

// BpsDenominator is the basis-point scale: 10_000 bps = 100%.
const BpsDenominator = 10_000

// OraclePriceScale is the fixed-point scale of USD oracle answers (8 decimals).
const OraclePriceScale = 100_000_000

var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrDivisionByZero = errors.New("division by zero")
	ErrNegativeValue  = errors.New("negative value")
)

// maxUint256 bounds every ledger-visible amount. Values are unsigned integers
// in the asset's smallest unit; anything past 2^256-1 is an overflow.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// CheckRange verifies v fits in [0, 2^256-1].
func CheckRange(v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return ErrNegativeValue
	}
	if v.Cmp(maxUint256) > 0 {
		return ErrOverflow
	}
	return nil
}

// MulDiv computes a * b / den with the full-width intermediate product, so the
// multiplication never truncates before the divide. The quotient rounds toward
// zero. Inputs and result are range-checked.
func MulDiv(a, b, den *big.Int) (*big.Int, error) {
	if den == nil || den.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	if err := CheckRange(a); err != nil {
		return nil, err
	}
	if err := CheckRange(b); err != nil {
		return nil, err
	}

	product := new(big.Int).Mul(a, b)
	result := product.Quo(product, den)

	if err := CheckRange(result); err != nil {
		return nil, err
	}
	return result, nil
}

// CheckedAdd computes a + b with a range check on the result.
func CheckedAdd(a, b *big.Int) (*big.Int, error) {
	if err := CheckRange(a); err != nil {
		return nil, err
	}
	if err := CheckRange(b); err != nil {
		return nil, err
	}
	sum := new(big.Int).Add(a, b)
	if err := CheckRange(sum); err != nil {
		return nil, err
	}
	return sum, nil
}

// Pow10 returns 10^n as a big.Int. n must be small (token decimals).
func Pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
