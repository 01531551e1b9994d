package query

import "time"

// EventRecord represents one audit-log entry for API queries.
type EventRecord struct {
	Sequence       int64           `json:"sequence"`
	EventType      string          `json:"event_type"`
	IdempotencyKey string          `json:"idempotency_key"`
	PositionID     uint64          `json:"position_id"`
	Payload        jsonRawMessage  `json:"payload"`
	StateHash      []byte          `json:"state_hash"`
	PrevHash       []byte          `json:"prev_hash"`
	Timestamp      time.Time       `json:"timestamp"`
}

type jsonRawMessage []byte

func (m jsonRawMessage) MarshalJSON() ([]byte, error) {
	if len(m) == 0 {
		return []byte("null"), nil
	}
	return m, nil
}

func (m *jsonRawMessage) UnmarshalJSON(data []byte) error {
	*m = append((*m)[:0], data...)
	return nil
}

// JournalRecord represents a custody journal entry for API queries.
type JournalRecord struct {
	JournalID     string `json:"journal_id"`
	BatchID       string `json:"batch_id"`
	EventRef      string `json:"event_ref"`
	Sequence      int64  `json:"sequence"`
	DebitAccount  string `json:"debit_account"`
	CreditAccount string `json:"credit_account"`
	Token         string `json:"token"`
	Amount        string `json:"amount"`
	JournalType   string `json:"journal_type"`
	Timestamp     int64  `json:"timestamp"`
}

// PositionRecord is the projected view of a loan position.
type PositionRecord struct {
	PositionID          uint64     `json:"position_id"`
	Borrower            string     `json:"borrower"`
	CollateralToken     string     `json:"collateral_token"`
	CollateralAmount    string     `json:"collateral_amount"`
	PrincipalIDR        string     `json:"principal_idr"`
	AprBps              uint32     `json:"apr_bps"`
	StartTimestamp      *time.Time `json:"start_timestamp,omitempty"`
	Status              string     `json:"status"`
	PayoutDeadline      time.Time  `json:"payout_deadline"`
	PayoutRefHash       string     `json:"payout_ref_hash"`
	RepayRefHash        string     `json:"repay_ref_hash"`
	OffchainRefHash     string     `json:"offchain_ref_hash"`
	CollateralWithdrawn bool       `json:"collateral_withdrawn"`
	Version             int64      `json:"version"`
	AsOfSequence        int64      `json:"as_of_sequence"`
}

// IntegrityReport is the result of an audit-chain verification pass.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	EventsChecked   int64   `json:"events_checked"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
}
