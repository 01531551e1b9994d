package core

import (
	"fmt"

	"github.com/google/uuid"

	"LoanLedger/internal/ledger"
	"LoanLedger/internal/state"
)

// CollateralVault owns the custody side of every lifecycle transition. Each
// transition that moves collateral produces one balanced journal batch, applied
// to the in-memory tracker before being handed to persistence.
type CollateralVault struct {
	tracker    *ledger.BalanceTracker
	journalSeq int64
}

func NewCollateralVault() *CollateralVault {
	return &CollateralVault{
		tracker: ledger.NewBalanceTracker(),
	}
}

// Deposit escrows the position's collateral: external deposits -> vault.
func (v *CollateralVault) Deposit(pos *state.Position, eventRef string, sequence, timestamp int64) *ledger.Batch {
	return v.transfer(
		ledger.NewVaultAccountKey(pos.ID, pos.CollateralToken),
		ledger.NewExternalAccountKey(pos.CollateralToken),
		pos, ledger.JournalTypeCollateralDeposit, eventRef, sequence, timestamp,
	)
}

// ReleaseToBorrower returns escrowed collateral: vault -> borrower.
func (v *CollateralVault) ReleaseToBorrower(pos *state.Position, eventRef string, sequence, timestamp int64) *ledger.Batch {
	return v.transfer(
		ledger.NewBorrowerAccountKey(pos.Borrower, pos.CollateralToken),
		ledger.NewVaultAccountKey(pos.ID, pos.CollateralToken),
		pos, ledger.JournalTypeCollateralReturn, eventRef, sequence, timestamp,
	)
}

// SeizeToTreasury moves escrowed collateral to the treasury on liquidation.
func (v *CollateralVault) SeizeToTreasury(pos *state.Position, eventRef string, sequence, timestamp int64) *ledger.Batch {
	return v.transfer(
		ledger.NewTreasuryAccountKey(pos.CollateralToken),
		ledger.NewVaultAccountKey(pos.ID, pos.CollateralToken),
		pos, ledger.JournalTypeCollateralSeizure, eventRef, sequence, timestamp,
	)
}

// transfer applies one balanced custody batch. Amounts are validated before
// any lifecycle state mutates, so a failure here means corrupted accounting;
// the process crashes and recovers from the persisted event log rather than
// continue with books that no longer match position state.
func (v *CollateralVault) transfer(
	debit, credit ledger.AccountKey,
	pos *state.Position,
	jt ledger.JournalType,
	eventRef string,
	sequence, timestamp int64,
) *ledger.Batch {
	batchID := uuid.New()
	v.journalSeq++

	batch := &ledger.Batch{
		BatchID:   batchID,
		EventRef:  eventRef,
		Sequence:  sequence,
		Timestamp: timestamp,
		Journals: []ledger.Journal{
			{
				JournalID:     uuid.New(),
				BatchID:       batchID,
				EventRef:      eventRef,
				Sequence:      v.journalSeq,
				DebitAccount:  debit,
				CreditAccount: credit,
				Amount:        pos.CollateralAmount,
				JournalType:   jt,
				Timestamp:     timestamp,
			},
		},
	}

	if err := v.tracker.ApplyBatch(batch); err != nil {
		panic(fmt.Sprintf("FATAL: custody invariant violated: %v", err))
	}
	if err := v.tracker.ValidateVaultNonNegative(pos.ID, pos.CollateralToken); err != nil {
		panic(fmt.Sprintf("FATAL: custody invariant violated: %v", err))
	}

	return batch
}

// RestoreEscrow rebuilds the in-memory custody balance for collateral that
// was escrowed before a restart. No journal is emitted; the persisted journal
// already records the original deposit.
func (v *CollateralVault) RestoreEscrow(pos *state.Position) {
	v.tracker.ApplyJournal(ledger.Journal{
		DebitAccount:  ledger.NewVaultAccountKey(pos.ID, pos.CollateralToken),
		CreditAccount: ledger.NewExternalAccountKey(pos.CollateralToken),
		Amount:        pos.CollateralAmount,
	})
}

// Tracker exposes balances for queries and invariant checks.
func (v *CollateralVault) Tracker() *ledger.BalanceTracker {
	return v.tracker
}

// RestoreJournalSequence advances the journal counter past recovered entries.
func (v *CollateralVault) RestoreJournalSequence(seq int64) {
	if seq > v.journalSeq {
		v.journalSeq = seq
	}
}
