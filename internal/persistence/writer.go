package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// EventLogWriter writes audit events, custody journals and the positions
// projection to Postgres using multi-row INSERTs. All writes are idempotent:
// re-delivering a batch after a crash is a no-op.
type EventLogWriter struct {
	db *sql.DB
}

// EventRow represents a row in loan_ledger.events
type EventRow struct {
	Sequence       int64
	EventType      string
	IdempotencyKey string
	PositionID     uint64
	Payload        []byte // JSON-encoded event payload
	StateHash      []byte
	PrevHash       []byte
	Timestamp      time.Time
}

// JournalRow represents a row in loan_ledger.journal
type JournalRow struct {
	JournalID     string
	BatchID       string
	EventRef      string
	Sequence      int64
	DebitAccount  string
	CreditAccount string
	Token         string
	Amount        string // NUMERIC column, decimal string
	JournalType   string
	Timestamp     int64
}

// PositionRow represents a row in loan_ledger.positions. Amounts are decimal
// strings bound to NUMERIC columns.
type PositionRow struct {
	PositionID          uint64
	Borrower            string
	CollateralToken     string
	CollateralAmount    string
	PrincipalIDR        string
	AprBps              uint32
	StartTimestamp      *time.Time
	Status              string
	PayoutDeadline      time.Time
	PayoutRefHash       string
	RepayRefHash        string
	OffchainRefHash     string
	CollateralWithdrawn bool
	Version             int64
}

func NewEventLogWriter(db *sql.DB) *EventLogWriter {
	return &EventLogWriter{db: db}
}

// WriteEventBatch appends events to loan_ledger.events.
func (w *EventLogWriter) WriteEventBatch(ctx context.Context, tx *sql.Tx, events []EventRow) error {
	if len(events) == 0 {
		return nil
	}

	query := `INSERT INTO loan_ledger.events
		(sequence, event_type, idempotency_key, position_id, payload, state_hash, prev_hash, timestamp)
		VALUES `

	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*8)

	for i, e := range events {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			e.Sequence, e.EventType, e.IdempotencyKey, e.PositionID,
			e.Payload, e.StateHash, e.PrevHash, e.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteJournalBatch appends custody journal entries to loan_ledger.journal.
func (w *EventLogWriter) WriteJournalBatch(ctx context.Context, tx *sql.Tx, journals []JournalRow) error {
	if len(journals) == 0 {
		return nil
	}

	query := `INSERT INTO loan_ledger.journal
		(journal_id, batch_id, event_ref, sequence, debit_account, credit_account, token, amount, journal_type, timestamp)
		VALUES `

	values := make([]string, 0, len(journals))
	args := make([]interface{}, 0, len(journals)*10)

	for i, j := range journals {
		base := i * 10
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10,
		))
		args = append(args,
			j.JournalID, j.BatchID, j.EventRef, j.Sequence,
			j.DebitAccount, j.CreditAccount, j.Token, j.Amount,
			j.JournalType, j.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (journal_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// UpsertPositions writes the current-state projection. The version guard
// keeps a replayed older snapshot from clobbering a newer row.
func (w *EventLogWriter) UpsertPositions(ctx context.Context, tx *sql.Tx, positions []PositionRow) error {
	if len(positions) == 0 {
		return nil
	}

	const query = `INSERT INTO loan_ledger.positions
		(position_id, borrower, collateral_token, collateral_amount, principal_idr,
		 apr_bps, start_timestamp, status, payout_deadline,
		 payout_ref_hash, repay_ref_hash, offchain_ref_hash,
		 collateral_withdrawn, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (position_id) DO UPDATE SET
			start_timestamp      = EXCLUDED.start_timestamp,
			status               = EXCLUDED.status,
			payout_ref_hash      = EXCLUDED.payout_ref_hash,
			repay_ref_hash       = EXCLUDED.repay_ref_hash,
			collateral_withdrawn = EXCLUDED.collateral_withdrawn,
			version              = EXCLUDED.version
		WHERE loan_ledger.positions.version <= EXCLUDED.version`

	for _, p := range positions {
		if _, err := tx.ExecContext(ctx, query,
			p.PositionID, p.Borrower, p.CollateralToken, p.CollateralAmount, p.PrincipalIDR,
			p.AprBps, p.StartTimestamp, p.Status, p.PayoutDeadline,
			p.PayoutRefHash, p.RepayRefHash, p.OffchainRefHash,
			p.CollateralWithdrawn, p.Version,
		); err != nil {
			return fmt.Errorf("upsert position %d: %w", p.PositionID, err)
		}
	}
	return nil
}
