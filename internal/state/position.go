package state

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Status tracks where a loan position sits in its lifecycle.
type Status uint8

const (
	StatusPayoutPending Status = iota
	StatusActive
	StatusRepayRequested
	StatusClosed
	StatusLiquidated
)

func (s Status) String() string {
	switch s {
	case StatusPayoutPending:
		return "PayoutPending"
	case StatusActive:
		return "Active"
	case StatusRepayRequested:
		return "RepayRequested"
	case StatusClosed:
		return "Closed"
	case StatusLiquidated:
		return "Liquidated"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further lifecycle transition is possible.
// Closed positions may still have their collateral withdrawn once.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusLiquidated
}

// CanTransitionTo validates state transitions. The graph only moves forward:
// no backward edge, no re-entry into a terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	validTransitions := map[Status][]Status{
		StatusPayoutPending: {
			StatusActive,
			StatusClosed, // cancelIfNotPaid past the payout deadline
		},
		StatusActive: {
			StatusRepayRequested,
			StatusLiquidated,
		},
		StatusRepayRequested: {
			StatusClosed,
			StatusLiquidated,
		},
	}

	allowed, ok := validTransitions[s]
	if !ok {
		return false
	}

	for _, allowedState := range allowed {
		if next == allowedState {
			return true
		}
	}

	return false
}

// Position is one collateralized loan. CollateralAmount and PrincipalIDR are
// immutable after creation; only Status, PayoutRefHash, RepayRefHash and the
// withdrawal flag mutate afterward.
type Position struct {
	ID               uint64
	Borrower         common.Address
	CollateralToken  common.Address
	CollateralAmount *big.Int
	PrincipalIDR     *big.Int
	AprBps           uint32
	StartTimestamp   time.Time
	Status           Status

	// PayoutDeadline is only meaningful while Status == StatusPayoutPending.
	PayoutDeadline time.Time

	// Opaque 32-byte commitments linking on-ledger actions to off-ledger
	// bank-transfer records. OffchainRefHash is set at creation and never
	// changes; the other two are each written once by their confirmation step.
	PayoutRefHash   common.Hash
	RepayRefHash    common.Hash
	OffchainRefHash common.Hash

	// CollateralWithdrawn marks that the closed position's collateral has
	// already been pulled (or returned by cancellation).
	CollateralWithdrawn bool

	Version int64
}

// Clone returns a deep copy safe to hand out to readers.
func (p *Position) Clone() *Position {
	cp := *p
	cp.CollateralAmount = new(big.Int).Set(p.CollateralAmount)
	cp.PrincipalIDR = new(big.Int).Set(p.PrincipalIDR)
	return &cp
}
