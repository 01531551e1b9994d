package risk_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	fpmath "LoanLedger/internal/math"
	"LoanLedger/internal/oracle"
	"LoanLedger/internal/risk"
	"LoanLedger/internal/state"
)

var usdc = common.HexToAddress("0x2222222222222222222222222222222222222222")

func newEvaluator(t *testing.T, ethUsd int64, now time.Time) *risk.Evaluator {
	t.Helper()
	cfg, err := state.NewConfigStore(state.ConfigParams{
		Administrator:         common.HexToAddress("0xAAA0000000000000000000000000000000000001"),
		Treasury:              common.HexToAddress("0xAAA0000000000000000000000000000000000002"),
		USDCToken:             usdc,
		AprBpsDefault:         2400,
		PayoutDeadlineSeconds: 7200,
		UsdIdrRate:            big.NewInt(16_000),
		UsdIdrRateSetAt:       now,
	})
	if err != nil {
		t.Fatalf("config store: %v", err)
	}
	feed := oracle.NewFeedState()
	if ethUsd > 0 {
		feed.Update(big.NewInt(ethUsd*fpmath.OraclePriceScale), now)
	}
	return risk.NewEvaluator(oracle.NewAdapter(feed, cfg))
}

func activePosition() *state.Position {
	return &state.Position{
		ID:               1,
		Status:           state.StatusActive,
		CollateralAmount: big.NewInt(1),
		PrincipalIDR:     big.NewInt(1),
	}
}

// ============================================================================
// Test: MaxBorrowIDR
// ============================================================================

func TestMaxBorrowIDR(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := newEvaluator(t, 3000, now)

	oneEth, _ := new(big.Int).SetString("1000000000000000000", 10)
	max, err := e.MaxBorrowIDR(oneEth, state.NativeToken, now)
	if err != nil {
		t.Fatalf("MaxBorrowIDR: %v", err)
	}
	// 1 ETH = 48,000,000 IDR; 80% of that.
	if max.Cmp(big.NewInt(38_400_000)) != 0 {
		t.Errorf("got %s, want 38400000", max)
	}
}

func TestMaxBorrowIDR_ZeroValueCollateral(t *testing.T) {
	now := time.Now()
	e := newEvaluator(t, 0, now)

	oneEth, _ := new(big.Int).SetString("1000000000000000000", 10)
	max, err := e.MaxBorrowIDR(oneEth, state.NativeToken, now)
	if err != nil {
		t.Fatalf("MaxBorrowIDR: %v", err)
	}
	if max.Sign() != 0 {
		t.Errorf("got %s, want 0 when the oracle has no price", max)
	}
}

// ============================================================================
// Test: LtvBps
// ============================================================================

func TestLtvBps(t *testing.T) {
	e := newEvaluator(t, 3000, time.Now())

	ltv, err := e.LtvBps(big.NewInt(700), big.NewInt(1000))
	if err != nil {
		t.Fatalf("LtvBps: %v", err)
	}
	if ltv != 7000 {
		t.Errorf("got %d, want 7000", ltv)
	}
}

func TestLtvBps_Truncates(t *testing.T) {
	e := newEvaluator(t, 3000, time.Now())

	ltv, err := e.LtvBps(big.NewInt(1), big.NewInt(3))
	if err != nil {
		t.Fatalf("LtvBps: %v", err)
	}
	if ltv != 3333 {
		t.Errorf("got %d, want 3333", ltv)
	}
}

func TestLtvBps_ZeroCollateralValue(t *testing.T) {
	e := newEvaluator(t, 3000, time.Now())

	_, err := e.LtvBps(big.NewInt(100), big.NewInt(0))
	if !errors.Is(err, risk.ErrZeroCollateralValue) {
		t.Errorf("got %v, want ErrZeroCollateralValue", err)
	}
}

func TestLtvBps_RatioOverflow(t *testing.T) {
	e := newEvaluator(t, 3000, time.Now())

	huge := new(big.Int).Lsh(big.NewInt(1), 128)
	_, err := e.LtvBps(huge, big.NewInt(1))
	if !errors.Is(err, fpmath.ErrOverflow) {
		t.Errorf("got %v, want ErrOverflow", err)
	}
}

// ============================================================================
// Test: IsLiquidatable
// ============================================================================

func TestIsLiquidatable_BelowThreshold(t *testing.T) {
	e := newEvaluator(t, 3000, time.Now())
	pos := activePosition()

	if e.IsLiquidatable(pos, big.NewInt(700), big.NewInt(1000)) {
		t.Error("7000 bps is below the threshold")
	}
	if !e.IsLiquidatable(pos, big.NewInt(800), big.NewInt(1000)) {
		t.Error("8000 bps is at the threshold and must liquidate")
	}
	if !e.IsLiquidatable(pos, big.NewInt(900), big.NewInt(1000)) {
		t.Error("9000 bps must liquidate")
	}
}

func TestIsLiquidatable_OnlyOpenDebtStates(t *testing.T) {
	e := newEvaluator(t, 3000, time.Now())
	debt, value := big.NewInt(900), big.NewInt(1000)

	for _, st := range []state.Status{state.StatusPayoutPending, state.StatusClosed, state.StatusLiquidated} {
		pos := activePosition()
		pos.Status = st
		if e.IsLiquidatable(pos, debt, value) {
			t.Errorf("status %s must never be liquidatable", st)
		}
	}

	pos := activePosition()
	pos.Status = state.StatusRepayRequested
	if !e.IsLiquidatable(pos, debt, value) {
		t.Error("RepayRequested past threshold must be liquidatable")
	}
}

func TestIsLiquidatable_ZeroDebt(t *testing.T) {
	e := newEvaluator(t, 3000, time.Now())

	if e.IsLiquidatable(activePosition(), big.NewInt(0), big.NewInt(1000)) {
		t.Error("zero debt must never be liquidatable")
	}
}

func TestIsLiquidatable_ZeroCollateralValueWithDebt(t *testing.T) {
	e := newEvaluator(t, 3000, time.Now())

	if !e.IsLiquidatable(activePosition(), big.NewInt(1), big.NewInt(0)) {
		t.Error("outstanding debt against worthless collateral must be liquidatable")
	}
}

func TestIsLiquidatable_RatioOverflowMeansLiquidatable(t *testing.T) {
	e := newEvaluator(t, 3000, time.Now())

	huge := new(big.Int).Lsh(big.NewInt(1), 128)
	if !e.IsLiquidatable(activePosition(), huge, big.NewInt(1)) {
		t.Error("debt dwarfing collateral must be liquidatable")
	}
}
