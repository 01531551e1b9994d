package ledger

import (
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

// JournalType represents the purpose of a custody journal entry.
type JournalType int32

const (
	JournalTypeCollateralDeposit JournalType = iota
	JournalTypeCollateralReturn
	JournalTypeCollateralSeizure
)

func (jt JournalType) String() string {
	switch jt {
	case JournalTypeCollateralDeposit:
		return "collateral_deposit"
	case JournalTypeCollateralReturn:
		return "collateral_return"
	case JournalTypeCollateralSeizure:
		return "collateral_seizure"
	default:
		return "unknown"
	}
}

// Journal is a single double-entry custody transfer. Amount is always
// positive; the debited account's balance increases, the credited account's
// decreases.
type Journal struct {
	JournalID     uuid.UUID
	BatchID       uuid.UUID
	EventRef      string // idempotency key of the source lifecycle event
	Sequence      int64
	DebitAccount  AccountKey
	CreditAccount AccountKey
	Amount        *big.Int
	JournalType   JournalType
	Timestamp     int64 // epoch microseconds
}

// Batch groups the journal entries produced by one lifecycle transition.
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  int64
	Timestamp int64
	Journals  []Journal
}

// Validate ensures the batch is well-formed. Each entry is a balanced
// transfer by construction (one positive amount moving credit to debit), so
// Σ debits == Σ credits holds per entry.
func (b *Batch) Validate() error {
	if len(b.Journals) == 0 {
		return fmt.Errorf("batch %s is empty", b.BatchID)
	}

	for _, j := range b.Journals {
		if j.Amount == nil || j.Amount.Sign() <= 0 {
			return fmt.Errorf("journal %s has non-positive amount", j.JournalID)
		}
		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}
		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}
		if j.DebitAccount.Token != j.CreditAccount.Token {
			return fmt.Errorf("journal %s transfers across tokens", j.JournalID)
		}
	}

	return nil
}
