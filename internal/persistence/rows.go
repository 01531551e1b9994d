package persistence

import (
	"github.com/ethereum/go-ethereum/common"

	"LoanLedger/internal/event"
	"LoanLedger/internal/ledger"
	"LoanLedger/internal/state"
)

// Output is one unit of work for the persistence worker: the event row, its
// custody journals and the updated position projection row.
type Output struct {
	EventRow    EventRow
	JournalRows []JournalRow
	PositionRow *PositionRow
}

// BuildOutput flattens a controller emission into database rows.
func BuildOutput(env *event.EventEnvelope, batch *ledger.Batch, pos *state.Position) Output {
	out := Output{
		EventRow: EventRow{
			Sequence:       env.Sequence,
			EventType:      env.EventType.String(),
			IdempotencyKey: env.IdempotencyKey,
			PositionID:     env.PositionID,
			Payload:        env.Payload,
			StateHash:      env.StateHash[:],
			PrevHash:       env.PrevHash[:],
			Timestamp:      env.Timestamp,
		},
	}

	if batch != nil {
		out.JournalRows = make([]JournalRow, 0, len(batch.Journals))
		for _, j := range batch.Journals {
			out.JournalRows = append(out.JournalRows, JournalRow{
				JournalID:     j.JournalID.String(),
				BatchID:       j.BatchID.String(),
				EventRef:      j.EventRef,
				Sequence:      j.Sequence,
				DebitAccount:  j.DebitAccount.AccountPath(),
				CreditAccount: j.CreditAccount.AccountPath(),
				Token:         j.DebitAccount.Token.Hex(),
				Amount:        j.Amount.String(),
				JournalType:   j.JournalType.String(),
				Timestamp:     j.Timestamp,
			})
		}
	}

	if pos != nil {
		row := BuildPositionRow(pos)
		out.PositionRow = &row
	}

	return out
}

// BuildPositionRow converts a position snapshot to its projection row.
func BuildPositionRow(pos *state.Position) PositionRow {
	row := PositionRow{
		PositionID:          pos.ID,
		Borrower:            pos.Borrower.Hex(),
		CollateralToken:     pos.CollateralToken.Hex(),
		CollateralAmount:    pos.CollateralAmount.String(),
		PrincipalIDR:        pos.PrincipalIDR.String(),
		AprBps:              pos.AprBps,
		Status:              pos.Status.String(),
		PayoutDeadline:      pos.PayoutDeadline,
		PayoutRefHash:       pos.PayoutRefHash.Hex(),
		RepayRefHash:        pos.RepayRefHash.Hex(),
		OffchainRefHash:     pos.OffchainRefHash.Hex(),
		CollateralWithdrawn: pos.CollateralWithdrawn,
		Version:             pos.Version,
	}
	if !pos.StartTimestamp.IsZero() {
		ts := pos.StartTimestamp
		row.StartTimestamp = &ts
	}
	return row
}

// hashFromHex is the inverse of common.Hash.Hex for restore paths.
func hashFromHex(s string) common.Hash {
	return common.HexToHash(s)
}
