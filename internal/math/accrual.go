package math

import (
	"math/big"
	"time"
)

// SecondsPerYear is the accrual year used for simple interest (365 days).
const SecondsPerYear = 365 * 24 * 60 * 60

// DebtNow returns principal plus simple interest accrued between start and
// now:
//
//	principal + principal * aprBps * elapsed / (10000 * SecondsPerYear)
//
// Integer arithmetic only, truncating toward zero. Elapsed time is clamped to
// zero when now precedes start — that cannot happen through the lifecycle
// controller, but the guard keeps the function total.
func DebtNow(principal *big.Int, aprBps uint32, start, now time.Time) (*big.Int, error) {
	if err := CheckRange(principal); err != nil {
		return nil, err
	}

	elapsed := now.Unix() - start.Unix()
	if elapsed < 0 {
		elapsed = 0
	}

	// interest = principal * aprBps * elapsed / (10000 * SecondsPerYear)
	factor := new(big.Int).Mul(big.NewInt(int64(aprBps)), big.NewInt(elapsed))
	interest, err := MulDiv(principal, factor, big.NewInt(BpsDenominator*SecondsPerYear))
	if err != nil {
		return nil, err
	}

	return CheckedAdd(principal, interest)
}
