package query

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
)

// Service provides read-only access to the event log and projection tables.
// Live figures (debt, LTV, collateral value) come from the controller; this
// package serves history and recorded state. All responses carry
// as_of_sequence for freshness semantics.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// EventHistory returns audit events with cursor-based pagination, newest
// first. positionID filters to one loan; beforeSequence is the cursor.
func (s *Service) EventHistory(
	ctx context.Context,
	positionID *uint64,
	limit int,
	beforeSequence *int64,
) ([]EventRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT sequence, event_type, idempotency_key, position_id, payload,
		       state_hash, prev_hash, timestamp
		FROM loan_ledger.events
		WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if positionID != nil {
		query += fmt.Sprintf(" AND position_id = $%d", argIdx)
		args = append(args, *positionID)
		argIdx++
	}
	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		var e EventRecord
		var payload []byte
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.IdempotencyKey, &e.PositionID,
			&payload, &e.StateHash, &e.PrevHash, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		e.Payload = payload
		events = append(events, e)
	}
	return events, rows.Err()
}

// JournalHistory returns the custody journals for one position's lifecycle,
// oldest first.
func (s *Service) JournalHistory(ctx context.Context, positionID uint64) ([]JournalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT j.journal_id, j.batch_id, j.event_ref, j.sequence,
		       j.debit_account, j.credit_account, j.token, j.amount,
		       j.journal_type, j.timestamp
		FROM loan_ledger.journal j
		JOIN loan_ledger.events e ON e.idempotency_key = j.event_ref
		WHERE e.position_id = $1
		ORDER BY j.sequence`, positionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var journals []JournalRecord
	for rows.Next() {
		var j JournalRecord
		if err := rows.Scan(
			&j.JournalID, &j.BatchID, &j.EventRef, &j.Sequence,
			&j.DebitAccount, &j.CreditAccount, &j.Token, &j.Amount,
			&j.JournalType, &j.Timestamp,
		); err != nil {
			return nil, err
		}
		journals = append(journals, j)
	}
	return journals, rows.Err()
}

// PositionRecord returns the projected state of one position.
func (s *Service) PositionRecord(ctx context.Context, positionID uint64) (*PositionRecord, error) {
	asOf, err := s.watermark(ctx)
	if err != nil {
		return nil, err
	}

	var (
		p     PositionRecord
		start sql.NullTime
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT position_id, borrower, collateral_token, collateral_amount, principal_idr,
		       apr_bps, start_timestamp, status, payout_deadline,
		       payout_ref_hash, repay_ref_hash, offchain_ref_hash,
		       collateral_withdrawn, version
		FROM loan_ledger.positions
		WHERE position_id = $1`, positionID).Scan(
		&p.PositionID, &p.Borrower, &p.CollateralToken, &p.CollateralAmount, &p.PrincipalIDR,
		&p.AprBps, &start, &p.Status, &p.PayoutDeadline,
		&p.PayoutRefHash, &p.RepayRefHash, &p.OffchainRefHash,
		&p.CollateralWithdrawn, &p.Version,
	)
	if err != nil {
		return nil, err
	}
	if start.Valid {
		ts := start.Time
		p.StartTimestamp = &ts
	}
	p.AsOfSequence = asOf
	return &p, nil
}

// BorrowerPositions returns every projected position of one borrower, in
// creation order.
func (s *Service) BorrowerPositions(ctx context.Context, borrower string) ([]PositionRecord, error) {
	asOf, err := s.watermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT position_id, borrower, collateral_token, collateral_amount, principal_idr,
		       apr_bps, start_timestamp, status, payout_deadline,
		       payout_ref_hash, repay_ref_hash, offchain_ref_hash,
		       collateral_withdrawn, version
		FROM loan_ledger.positions
		WHERE borrower = $1
		ORDER BY position_id`, borrower)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []PositionRecord
	for rows.Next() {
		var (
			p     PositionRecord
			start sql.NullTime
		)
		if err := rows.Scan(
			&p.PositionID, &p.Borrower, &p.CollateralToken, &p.CollateralAmount, &p.PrincipalIDR,
			&p.AprBps, &start, &p.Status, &p.PayoutDeadline,
			&p.PayoutRefHash, &p.RepayRefHash, &p.OffchainRefHash,
			&p.CollateralWithdrawn, &p.Version,
		); err != nil {
			return nil, err
		}
		if start.Valid {
			ts := start.Time
			p.StartTimestamp = &ts
		}
		p.AsOfSequence = asOf
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// VerifyIntegrity walks the persisted event log and checks the hash chain:
// each event's prev_hash must equal the previous event's state_hash.
func (s *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sequence, state_hash, prev_hash
		FROM loan_ledger.events
		ORDER BY sequence`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	report := &IntegrityReport{IsHealthy: true}
	var prevState []byte

	for rows.Next() {
		var (
			seq       int64
			stateHash []byte
			prevHash  []byte
		)
		if err := rows.Scan(&seq, &stateHash, &prevHash); err != nil {
			return nil, err
		}

		if prevState != nil && !bytes.Equal(prevHash, prevState) {
			report.IsHealthy = false
			report.HashChainBreaks = append(report.HashChainBreaks, seq)
		}

		prevState = stateHash
		report.EventsChecked++
	}
	return report, rows.Err()
}

// watermark returns the highest persisted sequence.
func (s *Service) watermark(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT MAX(sequence) FROM loan_ledger.events`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("watermark: %w", err)
	}
	return seq.Int64, nil
}
