package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"LoanLedger/internal/state"
)

// LoadPositions reads every position from the projection for startup
// recovery, ordered by id so the in-memory borrower index rebuilds in
// creation order.
func LoadPositions(ctx context.Context, db *sql.DB) ([]*state.Position, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT position_id, borrower, collateral_token, collateral_amount, principal_idr,
		       apr_bps, start_timestamp, status, payout_deadline,
		       payout_ref_hash, repay_ref_hash, offchain_ref_hash,
		       collateral_withdrawn, version
		FROM loan_ledger.positions
		ORDER BY position_id`)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []*state.Position
	for rows.Next() {
		var (
			row   PositionRow
			start sql.NullTime
		)
		if err := rows.Scan(
			&row.PositionID, &row.Borrower, &row.CollateralToken, &row.CollateralAmount, &row.PrincipalIDR,
			&row.AprBps, &start, &row.Status, &row.PayoutDeadline,
			&row.PayoutRefHash, &row.RepayRefHash, &row.OffchainRefHash,
			&row.CollateralWithdrawn, &row.Version,
		); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		if start.Valid {
			ts := start.Time
			row.StartTimestamp = &ts
		}

		pos, err := positionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, pos)
	}
	return out, rows.Err()
}

// LoadChainState returns the next event sequence and the hash-chain tip. A
// fresh database yields sequence 1 and a zero tip, which the controller
// replaces with the genesis hash.
func LoadChainState(ctx context.Context, db *sql.DB) (int64, [32]byte, bool, error) {
	var (
		seq int64
		tip []byte
	)
	err := db.QueryRowContext(ctx, `
		SELECT sequence, state_hash FROM loan_ledger.events
		ORDER BY sequence DESC LIMIT 1`).Scan(&seq, &tip)
	if err == sql.ErrNoRows {
		return 1, [32]byte{}, false, nil
	}
	if err != nil {
		return 0, [32]byte{}, false, fmt.Errorf("query chain tip: %w", err)
	}

	var hash [32]byte
	copy(hash[:], tip)
	return seq + 1, hash, true, nil
}

func positionFromRow(row PositionRow) (*state.Position, error) {
	collateral, ok := new(big.Int).SetString(row.CollateralAmount, 10)
	if !ok {
		return nil, fmt.Errorf("position %d: bad collateral amount %q", row.PositionID, row.CollateralAmount)
	}
	principal, ok := new(big.Int).SetString(row.PrincipalIDR, 10)
	if !ok {
		return nil, fmt.Errorf("position %d: bad principal %q", row.PositionID, row.PrincipalIDR)
	}
	status, err := parseStatus(row.Status)
	if err != nil {
		return nil, fmt.Errorf("position %d: %w", row.PositionID, err)
	}

	var start time.Time
	if row.StartTimestamp != nil {
		start = *row.StartTimestamp
	}

	return &state.Position{
		ID:                  row.PositionID,
		Borrower:            common.HexToAddress(row.Borrower),
		CollateralToken:     common.HexToAddress(row.CollateralToken),
		CollateralAmount:    collateral,
		PrincipalIDR:        principal,
		AprBps:              row.AprBps,
		StartTimestamp:      start,
		Status:              status,
		PayoutDeadline:      row.PayoutDeadline,
		PayoutRefHash:       hashFromHex(row.PayoutRefHash),
		RepayRefHash:        hashFromHex(row.RepayRefHash),
		OffchainRefHash:     hashFromHex(row.OffchainRefHash),
		CollateralWithdrawn: row.CollateralWithdrawn,
		Version:             row.Version,
	}, nil
}

func parseStatus(s string) (state.Status, error) {
	switch s {
	case "PayoutPending":
		return state.StatusPayoutPending, nil
	case "Active":
		return state.StatusActive, nil
	case "RepayRequested":
		return state.StatusRepayRequested, nil
	case "Closed":
		return state.StatusClosed, nil
	case "Liquidated":
		return state.StatusLiquidated, nil
	}
	return 0, fmt.Errorf("unknown status %q", s)
}
