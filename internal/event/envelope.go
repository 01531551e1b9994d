package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeLoanRequested
	EventTypeCancelled
	EventTypePayoutConfirmed
	EventTypeRepayRequested
	EventTypeRepayConfirmed
	EventTypeCollateralWithdrawn
	EventTypeLiquidated
)

// EventEnvelope wraps every event in the audit log
type EventEnvelope struct {
	// Global monotonic sequence assigned by the controller
	Sequence int64

	// Stable idempotency key derived from the operation
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Position the event belongs to
	PositionID uint64

	// Controller clock at emission time
	Timestamp time.Time

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// Position returns the position the event belongs to
	Position() uint64
}

func (et EventType) String() string {
	switch et {
	case EventTypeLoanRequested:
		return "LoanRequested"
	case EventTypeCancelled:
		return "Cancelled"
	case EventTypePayoutConfirmed:
		return "PayoutConfirmed"
	case EventTypeRepayRequested:
		return "RepayRequested"
	case EventTypeRepayConfirmed:
		return "RepayConfirmed"
	case EventTypeCollateralWithdrawn:
		return "CollateralWithdrawn"
	case EventTypeLiquidated:
		return "Liquidated"
	default:
		return "Unknown"
	}
}
