package math_test

import (
	"errors"
	"math/big"
	"testing"
	"time"

	fpmath "LoanLedger/internal/math"
)

// ============================================================================
// Test: CheckRange
// ============================================================================

func TestCheckRange_Valid(t *testing.T) {
	if err := fpmath.CheckRange(big.NewInt(0)); err != nil {
		t.Errorf("zero should be in range: %v", err)
	}
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	if err := fpmath.CheckRange(max); err != nil {
		t.Errorf("2^256-1 should be in range: %v", err)
	}
}

func TestCheckRange_Negative(t *testing.T) {
	err := fpmath.CheckRange(big.NewInt(-1))
	if !errors.Is(err, fpmath.ErrNegativeValue) {
		t.Errorf("got %v, want ErrNegativeValue", err)
	}
}

func TestCheckRange_Nil(t *testing.T) {
	err := fpmath.CheckRange(nil)
	if !errors.Is(err, fpmath.ErrNegativeValue) {
		t.Errorf("got %v, want ErrNegativeValue", err)
	}
}

func TestCheckRange_Overflow(t *testing.T) {
	over := new(big.Int).Lsh(big.NewInt(1), 256)
	err := fpmath.CheckRange(over)
	if !errors.Is(err, fpmath.ErrOverflow) {
		t.Errorf("got %v, want ErrOverflow", err)
	}
}

// ============================================================================
// Test: MulDiv
// ============================================================================

func TestMulDiv_Basic(t *testing.T) {
	got, err := fpmath.MulDiv(big.NewInt(1000), big.NewInt(8000), big.NewInt(10000))
	if err != nil {
		t.Fatalf("MulDiv: %v", err)
	}
	if got.Cmp(big.NewInt(800)) != 0 {
		t.Errorf("got %s, want 800", got)
	}
}

func TestMulDiv_TruncatesTowardZero(t *testing.T) {
	got, err := fpmath.MulDiv(big.NewInt(7), big.NewInt(3), big.NewInt(2))
	if err != nil {
		t.Fatalf("MulDiv: %v", err)
	}
	if got.Cmp(big.NewInt(10)) != 0 {
		t.Errorf("got %s, want 10 (21/2 truncated)", got)
	}
}

func TestMulDiv_FullWidthIntermediate(t *testing.T) {
	// a * b overflows uint256 but the quotient fits. The intermediate
	// product must not be clipped before the divide.
	a := new(big.Int).Lsh(big.NewInt(1), 200)
	b := new(big.Int).Lsh(big.NewInt(1), 100)
	den := new(big.Int).Lsh(big.NewInt(1), 150)

	got, err := fpmath.MulDiv(a, b, den)
	if err != nil {
		t.Fatalf("MulDiv: %v", err)
	}
	want := new(big.Int).Lsh(big.NewInt(1), 150)
	if got.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", got, want)
	}
}

func TestMulDiv_DivisionByZero(t *testing.T) {
	_, err := fpmath.MulDiv(big.NewInt(1), big.NewInt(1), big.NewInt(0))
	if !errors.Is(err, fpmath.ErrDivisionByZero) {
		t.Errorf("got %v, want ErrDivisionByZero", err)
	}
}

func TestMulDiv_ResultOverflow(t *testing.T) {
	big256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	_, err := fpmath.MulDiv(big256, big.NewInt(2), big.NewInt(1))
	if !errors.Is(err, fpmath.ErrOverflow) {
		t.Errorf("got %v, want ErrOverflow", err)
	}
}

// ============================================================================
// Test: CheckedAdd
// ============================================================================

func TestCheckedAdd_Basic(t *testing.T) {
	got, err := fpmath.CheckedAdd(big.NewInt(40), big.NewInt(2))
	if err != nil {
		t.Fatalf("CheckedAdd: %v", err)
	}
	if got.Cmp(big.NewInt(42)) != 0 {
		t.Errorf("got %s, want 42", got)
	}
}

func TestCheckedAdd_Overflow(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	_, err := fpmath.CheckedAdd(max, big.NewInt(1))
	if !errors.Is(err, fpmath.ErrOverflow) {
		t.Errorf("got %v, want ErrOverflow", err)
	}
}

// ============================================================================
// Test: DebtNow (simple interest accrual)
// ============================================================================

func TestDebtNow_ZeroElapsed(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	principal := big.NewInt(10_000_000)

	debt, err := fpmath.DebtNow(principal, 2400, start, start)
	if err != nil {
		t.Fatalf("DebtNow: %v", err)
	}
	if debt.Cmp(principal) != 0 {
		t.Errorf("got %s, want principal %s", debt, principal)
	}
}

func TestDebtNow_OneYearSimpleInterest(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(365 * 24 * time.Hour)
	principal := big.NewInt(10_000_000)

	// 24% APR over exactly one accrual year.
	debt, err := fpmath.DebtNow(principal, 2400, start, now)
	if err != nil {
		t.Fatalf("DebtNow: %v", err)
	}
	want := big.NewInt(12_400_000)
	if debt.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", debt, want)
	}
}

func TestDebtNow_HalfYear(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start.Add(365 * 12 * time.Hour)
	principal := big.NewInt(10_000_000)

	debt, err := fpmath.DebtNow(principal, 2400, start, now)
	if err != nil {
		t.Fatalf("DebtNow: %v", err)
	}
	want := big.NewInt(11_200_000)
	if debt.Cmp(want) != 0 {
		t.Errorf("got %s, want %s", debt, want)
	}
}

func TestDebtNow_ClockBeforeStartClampsToZero(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	principal := big.NewInt(5_000_000)

	debt, err := fpmath.DebtNow(principal, 2400, start, start.Add(-time.Hour))
	if err != nil {
		t.Fatalf("DebtNow: %v", err)
	}
	if debt.Cmp(principal) != 0 {
		t.Errorf("got %s, want principal %s (no negative accrual)", debt, principal)
	}
}

func TestDebtNow_NonDecreasing(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	principal := big.NewInt(123_456_789)

	prev := new(big.Int).Set(principal)
	for hours := 1; hours <= 48; hours++ {
		debt, err := fpmath.DebtNow(principal, 1850, start, start.Add(time.Duration(hours)*time.Hour))
		if err != nil {
			t.Fatalf("DebtNow at %dh: %v", hours, err)
		}
		if debt.Cmp(prev) < 0 {
			t.Fatalf("debt decreased at %dh: %s < %s", hours, debt, prev)
		}
		prev = debt
	}
}

func TestDebtNow_TruncatesInterest(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	// 1 IDR principal over 1 second accrues a fraction of a rupiah, which
	// truncates to zero.
	debt, err := fpmath.DebtNow(big.NewInt(1), 2400, start, start.Add(time.Second))
	if err != nil {
		t.Fatalf("DebtNow: %v", err)
	}
	if debt.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("got %s, want 1 (interest below one rupiah truncates)", debt)
	}
}

func TestDebtNow_ZeroApr(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	principal := big.NewInt(10_000_000)

	debt, err := fpmath.DebtNow(principal, 0, start, start.Add(1000*24*time.Hour))
	if err != nil {
		t.Fatalf("DebtNow: %v", err)
	}
	if debt.Cmp(principal) != 0 {
		t.Errorf("got %s, want principal %s", debt, principal)
	}
}

// ============================================================================
// Test: Pow10
// ============================================================================

func TestPow10(t *testing.T) {
	if got := fpmath.Pow10(0); got.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("Pow10(0) = %s, want 1", got)
	}
	if got := fpmath.Pow10(6); got.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Errorf("Pow10(6) = %s, want 1000000", got)
	}
	want, _ := new(big.Int).SetString("1000000000000000000", 10)
	if got := fpmath.Pow10(18); got.Cmp(want) != 0 {
		t.Errorf("Pow10(18) = %s, want %s", got, want)
	}
}
