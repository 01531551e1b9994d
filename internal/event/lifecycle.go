package event

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// LoanRequested emitted when collateral is escrowed and a position opens in
// PAYOUT_PENDING.
type LoanRequested struct {
	PositionID       uint64
	Borrower         common.Address
	CollateralToken  common.Address
	CollateralAmount *big.Int
	PrincipalIDR     *big.Int
	AprBps           uint32
	PayoutDeadline   time.Time
	OffchainRefHash  common.Hash
}

func (e *LoanRequested) IdempotencyKey() string {
	return fmt.Sprintf("loan-requested:%d", e.PositionID)
}

func (e *LoanRequested) EventType() EventType { return EventTypeLoanRequested }

func (e *LoanRequested) Position() uint64 { return e.PositionID }

// Cancelled emitted when a pending position is cancelled past the payout
// deadline and collateral is returned.
type Cancelled struct {
	PositionID uint64
	Borrower   common.Address
}

func (e *Cancelled) IdempotencyKey() string {
	return fmt.Sprintf("cancelled:%d", e.PositionID)
}

func (e *Cancelled) EventType() EventType { return EventTypeCancelled }

func (e *Cancelled) Position() uint64 { return e.PositionID }

// PayoutConfirmed emitted when the fiat payout reference is recorded and
// accrual starts.
type PayoutConfirmed struct {
	PositionID    uint64
	PayoutRefHash common.Hash
	StartedAt     time.Time
}

func (e *PayoutConfirmed) IdempotencyKey() string {
	return fmt.Sprintf("payout-confirmed:%d", e.PositionID)
}

func (e *PayoutConfirmed) EventType() EventType { return EventTypePayoutConfirmed }

func (e *PayoutConfirmed) Position() uint64 { return e.PositionID }

// RepayRequested emitted when the borrower declares an off-chain repayment.
type RepayRequested struct {
	PositionID   uint64
	RepayRefHash common.Hash
}

func (e *RepayRequested) IdempotencyKey() string {
	return fmt.Sprintf("repay-requested:%d", e.PositionID)
}

func (e *RepayRequested) EventType() EventType { return EventTypeRepayRequested }

func (e *RepayRequested) Position() uint64 { return e.PositionID }

// RepayConfirmed emitted when the operator verifies the repayment against the
// declared reference. The position closes; collateral stays claimable.
type RepayConfirmed struct {
	PositionID   uint64
	RepayRefHash common.Hash
	DebtIDR      *big.Int
}

func (e *RepayConfirmed) IdempotencyKey() string {
	return fmt.Sprintf("repay-confirmed:%d", e.PositionID)
}

func (e *RepayConfirmed) EventType() EventType { return EventTypeRepayConfirmed }

func (e *RepayConfirmed) Position() uint64 { return e.PositionID }

// CollateralWithdrawn emitted when the borrower pulls collateral out of a
// closed position.
type CollateralWithdrawn struct {
	PositionID uint64
	Borrower   common.Address
	Token      common.Address
	Amount     *big.Int
}

func (e *CollateralWithdrawn) IdempotencyKey() string {
	return fmt.Sprintf("collateral-withdrawn:%d", e.PositionID)
}

func (e *CollateralWithdrawn) EventType() EventType { return EventTypeCollateralWithdrawn }

func (e *CollateralWithdrawn) Position() uint64 { return e.PositionID }

// Liquidated emitted when collateral is seized. Carries the full valuation
// snapshot used for the decision.
type Liquidated struct {
	PositionID         uint64
	Borrower           common.Address
	SeizedToken        common.Address
	SeizedAmount       *big.Int
	LtvBps             uint64
	EthUsd             *big.Int
	UsdIdr             *big.Int
	DebtIDR            *big.Int
	CollateralValueIDR *big.Int
}

func (e *Liquidated) IdempotencyKey() string {
	return fmt.Sprintf("liquidated:%d", e.PositionID)
}

func (e *Liquidated) EventType() EventType { return EventTypeLiquidated }

func (e *Liquidated) Position() uint64 { return e.PositionID }
