// Package server exposes the loan ledger over HTTP/JSON. Lifecycle commands
// carry the caller address in the request body; signature verification happens
// at the edge (the dapp gateway), not here.
package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"LoanLedger/internal/core"
	fpmath "LoanLedger/internal/math"
	"LoanLedger/internal/observability"
	"LoanLedger/internal/oracle"
	"LoanLedger/internal/query"
)

// Server wires the controller and query service into a chi router.
type Server struct {
	controller *core.Controller
	queries    *query.Service
	health     *observability.HealthChecker
	metrics    *observability.Metrics
	logger     zerolog.Logger
	httpServer *http.Server
}

func New(
	addr string,
	controller *core.Controller,
	queries *query.Service,
	health *observability.HealthChecker,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		controller: controller,
		queries:    queries,
		health:     health,
		metrics:    metrics,
		logger:     observability.NewLogger("http"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", health.LivenessHandler)
	r.Get("/readyz", health.ReadinessHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/loans/eth", s.handleCreateETH)
		r.Post("/loans/usdc", s.handleCreateUSDC)

		r.Route("/positions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetPosition)
			r.Get("/events", s.handlePositionEvents)
			r.Get("/journal", s.handlePositionJournal)
			r.Post("/confirm-payout", s.handleConfirmPayout)
			r.Post("/cancel", s.handleCancel)
			r.Post("/request-repay", s.handleRequestRepay)
			r.Post("/confirm-repay", s.handleConfirmRepay)
			r.Post("/withdraw", s.handleWithdraw)
			r.Post("/liquidate", s.handleLiquidate)
		})

		r.Get("/borrowers/{address}/positions", s.handleBorrowerPositions)

		r.Get("/quotes/eth-usd", s.handleEthUsd)
		r.Get("/fx", s.handleFx)
		r.Get("/params", s.handleParams)
		r.Get("/collateral-value", s.handleCollateralValue)
		r.Get("/max-borrow", s.handleMaxBorrow)

		r.Get("/events", s.handleEventHistory)
		r.Get("/integrity", s.handleIntegrity)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/administrator", s.handleSetAdministrator)
			r.Post("/treasury", s.handleSetTreasury)
			r.Post("/oracle-address", s.handleSetOracleAddress)
			r.Post("/apr", s.handleSetApr)
			r.Post("/payout-deadline", s.handleSetPayoutDeadline)
			r.Post("/usd-idr-rate", s.handleSetUsdIdrRate)
			r.Post("/usdc-token", s.handleSetUSDCToken)
		})
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests driving the API in-process.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe blocks serving HTTP until Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("HTTP API listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ---------------------------------------------------------------------------
// Response plumbing
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError maps controller rejections onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, endpoint string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, core.ErrUnknownPosition), errors.Is(err, sql.ErrNoRows):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInsufficientCollateralRatio):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrStaleOracleData):
		status = http.StatusServiceUnavailable
	case errors.Is(err, core.ErrInvalidState),
		errors.Is(err, core.ErrDeadlineNotReached),
		errors.Is(err, core.ErrDeadlineExpired),
		errors.Is(err, core.ErrRefHashMismatch),
		errors.Is(err, core.ErrNotLiquidatable),
		errors.Is(err, core.ErrAlreadyWithdrawn):
		status = http.StatusConflict
	case errors.Is(err, oracle.ErrNoPrice), errors.Is(err, oracle.ErrUnknownToken):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, fpmath.ErrOverflow), errors.Is(err, fpmath.ErrNegativeValue):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("endpoint", endpoint).Msg("internal error")
	}
	if s.metrics != nil {
		s.metrics.QueryErrors.WithLabelValues(endpoint, http.StatusText(status)).Inc()
	}

	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) observe(endpoint string, start time.Time, status string) {
	if s.metrics == nil {
		return
	}
	s.metrics.QueryRequests.WithLabelValues(endpoint, status).Inc()
	s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
