// Package risk derives loan-to-value figures and the liquidation decision for
// open positions. All arithmetic is integer fixed-point; ratios are expressed
// in basis points.
package risk

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	fpmath "LoanLedger/internal/math"
	"LoanLedger/internal/oracle"
	"LoanLedger/internal/state"
)

// LiquidationThresholdBps is the LTV at or above which a position becomes
// liquidatable. Deployment-time constant.
const LiquidationThresholdBps = 8_000

// ErrZeroCollateralValue is returned when an LTV ratio is requested against
// collateral the oracle currently values at zero.
var ErrZeroCollateralValue = errors.New("collateral value is zero")

// Evaluator prices collateral and computes position risk.
type Evaluator struct {
	oracle *oracle.Adapter
}

func NewEvaluator(o *oracle.Adapter) *Evaluator {
	return &Evaluator{oracle: o}
}

// CollateralValueIDR values an arbitrary amount of a collateral token in whole
// IDR at current prices.
func (e *Evaluator) CollateralValueIDR(amount *big.Int, token common.Address, now time.Time) (*big.Int, error) {
	return e.oracle.ValueIDR(amount, token, now)
}

// MaxBorrowIDR is the largest principal the collateral supports at the
// liquidation threshold: value * threshold / 10000, truncated.
func (e *Evaluator) MaxBorrowIDR(amount *big.Int, token common.Address, now time.Time) (*big.Int, error) {
	value, err := e.oracle.ValueIDR(amount, token, now)
	if err != nil {
		return nil, err
	}
	return fpmath.MulDiv(value, big.NewInt(LiquidationThresholdBps), big.NewInt(fpmath.BpsDenominator))
}

// LtvBps is debt / collateral value in basis points, truncated. Errors with
// ErrZeroCollateralValue when the collateral values to zero; callers that only
// need the liquidation decision should use IsLiquidatable, which treats zero
// value as maximally risky instead of failing.
func (e *Evaluator) LtvBps(debtIDR, collateralValueIDR *big.Int) (uint64, error) {
	if collateralValueIDR == nil || collateralValueIDR.Sign() == 0 {
		return 0, ErrZeroCollateralValue
	}
	ratio, err := fpmath.MulDiv(debtIDR, big.NewInt(fpmath.BpsDenominator), collateralValueIDR)
	if err != nil {
		return 0, err
	}
	if !ratio.IsUint64() {
		return 0, fpmath.ErrOverflow
	}
	return ratio.Uint64(), nil
}

// IsLiquidatable reports whether a position with the given debt and collateral
// value has crossed the liquidation threshold. Zero-valued collateral with
// outstanding debt is always liquidatable.
func (e *Evaluator) IsLiquidatable(p *state.Position, debtIDR, collateralValueIDR *big.Int) bool {
	if p.Status != state.StatusActive && p.Status != state.StatusRepayRequested {
		return false
	}
	if debtIDR == nil || debtIDR.Sign() == 0 {
		return false
	}
	if collateralValueIDR == nil || collateralValueIDR.Sign() == 0 {
		return true
	}
	ltv, err := e.LtvBps(debtIDR, collateralValueIDR)
	if err != nil {
		// Ratio overflow means debt dwarfs collateral.
		return true
	}
	return ltv >= LiquidationThresholdBps
}
