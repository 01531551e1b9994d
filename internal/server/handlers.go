package server

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"LoanLedger/internal/core"
	"LoanLedger/internal/state"
)

// Amounts cross the wire as decimal strings; 0x-hex for addresses and hashes.

type createLoanRequest struct {
	Borrower         string `json:"borrower"`
	CollateralAmount string `json:"collateral_amount"`
	PrincipalIDR     string `json:"principal_idr"`
	OffchainRefHash  string `json:"offchain_ref_hash"`
}

type callerRequest struct {
	Caller string `json:"caller"`
}

type refHashRequest struct {
	Caller  string `json:"caller"`
	RefHash string `json:"ref_hash"`
}

type positionResponse struct {
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

	// Live figures, computed at request time.
	DebtNowIDR         string `json:"debt_now_idr,omitempty"`
	CollateralValueIDR string `json:"collateral_value_idr,omitempty"`
	LtvBps             uint64 `json:"ltv_bps,omitempty"`
}

func positionToResponse(pos *state.Position) positionResponse {
	resp := positionResponse{
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
	}
	if !pos.StartTimestamp.IsZero() {
		ts := pos.StartTimestamp
		resp.StartTimestamp = &ts
	}
	return resp
}

// ---------------------------------------------------------------------------
// Lifecycle commands
// ---------------------------------------------------------------------------

func (s *Server) handleCreateETH(w http.ResponseWriter, r *http.Request) {
	s.handleCreate(w, r, "create_eth", s.controller.CreateRequestETH)
}

func (s *Server) handleCreateUSDC(w http.ResponseWriter, r *http.Request) {
	s.handleCreate(w, r, "create_usdc", s.controller.CreateRequestUSDC)
}

func (s *Server) handleCreate(
	w http.ResponseWriter,
	r *http.Request,
	endpoint string,
	create func(common.Address, *big.Int, *big.Int, common.Hash) (*state.Position, error),
) {
	start := time.Now()

	var req createLoanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, endpoint, fmt.Errorf("%w: %v", core.ErrInvalidArgument, err))
		return
	}

	borrower, err := parseAddress(req.Borrower, "borrower")
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}
	collateral, err := parseAmount(req.CollateralAmount, "collateral_amount")
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}
	principal, err := parseAmount(req.PrincipalIDR, "principal_idr")
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	pos, err := create(borrower, collateral, principal, common.HexToHash(req.OffchainRefHash))
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusCreated, positionToResponse(pos))
}

func (s *Server) handleConfirmPayout(w http.ResponseWriter, r *http.Request) {
	s.handleRefHashCommand(w, r, "confirm_payout", s.controller.ConfirmPayout)
}

func (s *Server) handleRequestRepay(w http.ResponseWriter, r *http.Request) {
	s.handleRefHashCommand(w, r, "request_repay", s.controller.RequestRepay)
}

func (s *Server) handleConfirmRepay(w http.ResponseWriter, r *http.Request) {
	s.handleRefHashCommand(w, r, "confirm_repay", s.controller.ConfirmRepay)
}

func (s *Server) handleRefHashCommand(
	w http.ResponseWriter,
	r *http.Request,
	endpoint string,
	apply func(common.Address, uint64, common.Hash) error,
) {
	start := time.Now()

	id, err := parsePositionID(r)
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	var req refHashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, endpoint, fmt.Errorf("%w: %v", core.ErrInvalidArgument, err))
		return
	}
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	if err := apply(caller, id, common.HexToHash(req.RefHash)); err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	s.handleCallerCommand(w, r, "cancel", s.controller.CancelIfNotPaid)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleCallerCommand(w, r, "withdraw", s.controller.WithdrawCollateral)
}

func (s *Server) handleLiquidate(w http.ResponseWriter, r *http.Request) {
	s.handleCallerCommand(w, r, "liquidate", s.controller.Liquidate)
}

func (s *Server) handleCallerCommand(
	w http.ResponseWriter,
	r *http.Request,
	endpoint string,
	apply func(common.Address, uint64) error,
) {
	start := time.Now()

	id, err := parsePositionID(r)
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	var req callerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, endpoint, fmt.Errorf("%w: %v", core.ErrInvalidArgument, err))
		return
	}
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	if err := apply(caller, id); err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusOK, nil)
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	const endpoint = "get_position"
	start := time.Now()

	id, err := parsePositionID(r)
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	pos, err := s.controller.Position(id)
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	resp := positionToResponse(pos)
	if debt, err := s.controller.DebtNow(id); err == nil {
		resp.DebtNowIDR = debt.String()
	}
	if value, err := s.controller.CollateralValueIDR(id); err == nil {
		resp.CollateralValueIDR = value.String()
	}
	if !pos.Status.Terminal() {
		if ltv, err := s.controller.LtvNow(id); err == nil {
			resp.LtvBps = ltv
		}
	}

	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBorrowerPositions(w http.ResponseWriter, r *http.Request) {
	const endpoint = "borrower_positions"
	start := time.Now()

	borrower, err := parseAddress(chi.URLParam(r, "address"), "address")
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	ids := s.controller.UserPositions(borrower)
	if ids == nil {
		ids = []uint64{}
	}

	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"borrower":     borrower.Hex(),
		"position_ids": ids,
	})
}

func (s *Server) handleEthUsd(w http.ResponseWriter, r *http.Request) {
	const endpoint = "eth_usd"
	start := time.Now()

	price, err := s.controller.EthUsd()
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusOK, map[string]string{"eth_usd": price.String()})
}

func (s *Server) handleFx(w http.ResponseWriter, r *http.Request) {
	const endpoint = "fx"
	start := time.Now()

	rate, setAt := s.controller.UsdIdrRate()
	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"usd_idr_rate": rate.String(),
		"updated_at":   setAt.UTC().Format(time.RFC3339),
		"stale":        s.controller.IsFxRateStale(),
	})
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	const endpoint = "params"
	start := time.Now()

	p := s.controller.CurrentParams()
	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"administrator":           p.Administrator.Hex(),
		"treasury":                p.Treasury.Hex(),
		"oracle_address":          p.OracleAddress.Hex(),
		"usdc_token":              p.USDCToken.Hex(),
		"apr_bps":                 p.AprBps,
		"payout_deadline_seconds": p.PayoutDeadlineSeconds,
		"next_position_id":        s.controller.NextPositionID(),
	})
}

func (s *Server) handleCollateralValue(w http.ResponseWriter, r *http.Request) {
	s.handleValuation(w, r, "collateral_value", "collateral_value_idr", s.controller.CollateralValueIDRForToken)
}

func (s *Server) handleMaxBorrow(w http.ResponseWriter, r *http.Request) {
	s.handleValuation(w, r, "max_borrow", "max_borrow_idr", s.controller.MaxBorrowIDR)
}

func (s *Server) handleValuation(
	w http.ResponseWriter,
	r *http.Request,
	endpoint, field string,
	value func(*big.Int, common.Address) (*big.Int, error),
) {
	start := time.Now()

	amount, err := parseAmount(r.URL.Query().Get("amount"), "amount")
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}
	token := state.NativeToken
	if t := r.URL.Query().Get("token"); t != "" {
		token, err = parseAddress(t, "token")
		if err != nil {
			s.writeError(w, endpoint, err)
			return
		}
	}

	result, err := value(amount, token)
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusOK, map[string]string{field: result.String()})
}

func (s *Server) handleEventHistory(w http.ResponseWriter, r *http.Request) {
	const endpoint = "event_history"
	start := time.Now()

	var positionID *uint64
	if v := r.URL.Query().Get("position_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			s.writeError(w, endpoint, fmt.Errorf("%w: bad position_id", core.ErrInvalidArgument))
			return
		}
		positionID = &id
	}
	var before *int64
	if v := r.URL.Query().Get("before"); v != "" {
		seq, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, endpoint, fmt.Errorf("%w: bad before cursor", core.ErrInvalidArgument))
			return
		}
		before = &seq
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := s.queries.EventHistory(r.Context(), positionID, limit, before)
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handlePositionEvents(w http.ResponseWriter, r *http.Request) {
	const endpoint = "position_events"
	start := time.Now()

	id, err := parsePositionID(r)
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	events, err := s.queries.EventHistory(r.Context(), &id, 500, nil)
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handlePositionJournal(w http.ResponseWriter, r *http.Request) {
	const endpoint = "position_journal"
	start := time.Now()

	id, err := parsePositionID(r)
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	journals, err := s.queries.JournalHistory(r.Context(), id)
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"journals": journals})
}

func (s *Server) handleIntegrity(w http.ResponseWriter, r *http.Request) {
	const endpoint = "integrity"
	start := time.Now()

	report, err := s.queries.VerifyIntegrity(r.Context())
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusOK, report)
}

// ---------------------------------------------------------------------------
// Administration
// ---------------------------------------------------------------------------

type adminAddressRequest struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

type adminValueRequest struct {
	Caller string `json:"caller"`
	Value  string `json:"value"`
}

func (s *Server) handleSetAdministrator(w http.ResponseWriter, r *http.Request) {
	s.handleAdminAddress(w, r, "set_administrator", s.controller.SetAdministrator)
}

func (s *Server) handleSetTreasury(w http.ResponseWriter, r *http.Request) {
	s.handleAdminAddress(w, r, "set_treasury", s.controller.SetTreasury)
}

func (s *Server) handleSetOracleAddress(w http.ResponseWriter, r *http.Request) {
	s.handleAdminAddress(w, r, "set_oracle_address", s.controller.SetOracleAddress)
}

func (s *Server) handleSetUSDCToken(w http.ResponseWriter, r *http.Request) {
	s.handleAdminAddress(w, r, "set_usdc_token", s.controller.SetUSDCToken)
}

func (s *Server) handleAdminAddress(
	w http.ResponseWriter,
	r *http.Request,
	endpoint string,
	apply func(common.Address, common.Address) error,
) {
	start := time.Now()

	var req adminAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, endpoint, fmt.Errorf("%w: %v", core.ErrInvalidArgument, err))
		return
	}
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}
	addr, err := parseAddress(req.Address, "address")
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	if err := apply(caller, addr); err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleSetApr(w http.ResponseWriter, r *http.Request) {
	const endpoint = "set_apr"
	start := time.Now()

	caller, value, err := s.decodeAdminValue(r)
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}
	apr, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		s.writeError(w, endpoint, fmt.Errorf("%w: bad apr", core.ErrInvalidArgument))
		return
	}

	if err := s.controller.SetAprBps(caller, uint32(apr)); err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleSetPayoutDeadline(w http.ResponseWriter, r *http.Request) {
	const endpoint = "set_payout_deadline"
	start := time.Now()

	caller, value, err := s.decodeAdminValue(r)
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}
	seconds, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		s.writeError(w, endpoint, fmt.Errorf("%w: bad deadline", core.ErrInvalidArgument))
		return
	}

	if err := s.controller.SetPayoutDeadlineSeconds(caller, seconds); err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleSetUsdIdrRate(w http.ResponseWriter, r *http.Request) {
	const endpoint = "set_usd_idr_rate"
	start := time.Now()

	caller, value, err := s.decodeAdminValue(r)
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}
	rate, err := parseAmount(value, "rate")
	if err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	if err := s.controller.SetUsdIdrRate(caller, rate); err != nil {
		s.writeError(w, endpoint, err)
		return
	}

	s.observe(endpoint, start, "ok")
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *Server) decodeAdminValue(r *http.Request) (common.Address, string, error) {
	var req adminValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return common.Address{}, "", fmt.Errorf("%w: %v", core.ErrInvalidArgument, err)
	}
	caller, err := parseAddress(req.Caller, "caller")
	if err != nil {
		return common.Address{}, "", err
	}
	return caller, req.Value, nil
}

// ---------------------------------------------------------------------------
// Parse helpers
// ---------------------------------------------------------------------------

func parsePositionID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad position id", core.ErrInvalidArgument)
	}
	return id, nil
}

func parseAddress(s, field string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %s is not a hex address", core.ErrInvalidArgument, field)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(s, field string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a decimal integer", core.ErrInvalidArgument, field)
	}
	return v, nil
}
