package core

import (
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"LoanLedger/internal/event"
	"LoanLedger/internal/ledger"
	fpmath "LoanLedger/internal/math"
	"LoanLedger/internal/observability"
	"LoanLedger/internal/oracle"
	"LoanLedger/internal/risk"
	"LoanLedger/internal/state"
)

// Output is one applied lifecycle transition: the audit envelope plus the
// custody batch it produced (nil for transitions that move no collateral).
type Output struct {
	Envelope *event.EventEnvelope
	Batch    *ledger.Batch
}

// ControllerOptions tune policy knobs that are configuration, not constants.
type ControllerOptions struct {
	// BlockCreateOnStaleFx rejects loan creation while the USD/IDR rate is
	// stale. Off by default: creation normally proceeds and staleness is
	// advisory.
	BlockCreateOnStaleFx bool

	// Clock supplies the controller's notion of now. Defaults to time.Now.
	Clock func() time.Time
}

// Controller serializes every state mutation behind one mutex. All lifecycle
// transitions validate, mutate position state, move collateral through the
// vault, then emit exactly one audit event.
type Controller struct {
	mu sync.Mutex

	cfg       *state.ConfigStore
	positions *state.PositionLedger
	oracle    *oracle.Adapter
	risk      *risk.Evaluator
	vault     *CollateralVault

	clock                func() time.Time
	blockCreateOnStaleFx bool

	sequence int64
	hasher   *StateHasher

	persistChan chan<- Output
	publishChan chan<- Output

	metrics *observability.Metrics
	logger  zerolog.Logger
}

func NewController(
	cfg *state.ConfigStore,
	positions *state.PositionLedger,
	oracleAdapter *oracle.Adapter,
	riskEval *risk.Evaluator,
	vault *CollateralVault,
	persistChan, publishChan chan<- Output,
	metrics *observability.Metrics,
	opts ControllerOptions,
) *Controller {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	return &Controller{
		cfg:                  cfg,
		positions:            positions,
		oracle:               oracleAdapter,
		risk:                 riskEval,
		vault:                vault,
		clock:                clock,
		blockCreateOnStaleFx: opts.BlockCreateOnStaleFx,
		sequence:             1,
		hasher:               NewStateHasher(),
		persistChan:          persistChan,
		publishChan:          publishChan,
		metrics:              metrics,
		logger:               observability.NewLogger("controller"),
	}
}

// RestoreSequence seeds the event sequence and hash chain tip after recovery.
func (c *Controller) RestoreSequence(nextSequence int64, chainTip [32]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if nextSequence > c.sequence {
		c.sequence = nextSequence
	}
	c.hasher.Restore(chainTip)
}

// ---------------------------------------------------------------------------
// Lifecycle operations
// ---------------------------------------------------------------------------

// CreateRequestETH opens a loan collateralized by the native asset.
func (c *Controller) CreateRequestETH(
	borrower common.Address,
	collateralWei *big.Int,
	principalIDR *big.Int,
	offchainRefHash common.Hash,
) (*state.Position, error) {
	return c.createRequest("create_request_eth", borrower, state.NativeToken, collateralWei, principalIDR, offchainRefHash)
}

// CreateRequestUSDC opens a loan collateralized by the registered USD-pegged
// token.
func (c *Controller) CreateRequestUSDC(
	borrower common.Address,
	amount *big.Int,
	principalIDR *big.Int,
	offchainRefHash common.Hash,
) (*state.Position, error) {
	return c.createRequest("create_request_usdc", borrower, c.cfg.USDCToken(), amount, principalIDR, offchainRefHash)
}

func (c *Controller) createRequest(
	op string,
	borrower common.Address,
	token common.Address,
	collateralAmount *big.Int,
	principalIDR *big.Int,
	offchainRefHash common.Hash,
) (*state.Position, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	now := c.clock()

	if borrower == (common.Address{}) {
		return nil, c.reject(op, "bad_borrower", fmt.Errorf("%w: zero borrower address", ErrInvalidArgument))
	}
	if collateralAmount == nil || collateralAmount.Sign() <= 0 {
		return nil, c.reject(op, "bad_amount", fmt.Errorf("%w: collateral amount must be positive", ErrInvalidArgument))
	}
	if principalIDR == nil || principalIDR.Sign() <= 0 {
		return nil, c.reject(op, "bad_principal", fmt.Errorf("%w: principal must be positive", ErrInvalidArgument))
	}
	if err := fpmath.CheckRange(collateralAmount); err != nil {
		return nil, c.reject(op, "bad_amount", fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}
	if err := fpmath.CheckRange(principalIDR); err != nil {
		return nil, c.reject(op, "bad_principal", fmt.Errorf("%w: %v", ErrInvalidArgument, err))
	}

	if c.blockCreateOnStaleFx && c.oracle.IsFxRateStale(now) {
		return nil, c.reject(op, "stale_fx", fmt.Errorf("%w: usd/idr rate too old", ErrStaleOracleData))
	}

	maxBorrow, err := c.risk.MaxBorrowIDR(collateralAmount, token, now)
	if err != nil {
		return nil, c.reject(op, "valuation", fmt.Errorf("value collateral: %w", err))
	}
	if principalIDR.Cmp(maxBorrow) > 0 {
		return nil, c.reject(op, "ltv", fmt.Errorf("%w: principal %s > max borrow %s", ErrInsufficientCollateralRatio, principalIDR, maxBorrow))
	}

	deadline := now.Add(time.Duration(c.cfg.PayoutDeadlineSeconds()) * time.Second)
	pos := c.positions.Create(borrower, token, collateralAmount, principalIDR, c.cfg.AprBpsDefault(), deadline, offchainRefHash)

	evt := &event.LoanRequested{
		PositionID:       pos.ID,
		Borrower:         pos.Borrower,
		CollateralToken:  pos.CollateralToken,
		CollateralAmount: pos.CollateralAmount,
		PrincipalIDR:     pos.PrincipalIDR,
		AprBps:           pos.AprBps,
		PayoutDeadline:   pos.PayoutDeadline,
		OffchainRefHash:  pos.OffchainRefHash,
	}

	batch := c.vault.Deposit(pos, evt.IdempotencyKey(), c.sequence, now.UnixMicro())

	c.emit(evt, batch, now)
	c.applied(op, start)

	c.logger.Info().
		Uint64("position_id", pos.ID).
		Str("borrower", pos.Borrower.Hex()).
		Str("collateral", pos.CollateralAmount.String()).
		Str("principal_idr", pos.PrincipalIDR.String()).
		Msg("loan requested")

	return pos.Clone(), nil
}

// ConfirmPayout records the fiat payout reference and activates the loan.
// Admin only. Accrual starts at the controller clock, not the request time.
func (c *Controller) ConfirmPayout(caller common.Address, positionID uint64, payoutRefHash common.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	const op = "confirm_payout"
	start := time.Now()
	now := c.clock()

	if err := c.requireAdmin(caller); err != nil {
		return c.reject(op, "unauthorized", err)
	}

	pos, ok := c.positions.Get(positionID)
	if !ok {
		return c.reject(op, "unknown", fmt.Errorf("%w: %d", ErrUnknownPosition, positionID))
	}
	if !pos.Status.CanTransitionTo(state.StatusActive) {
		return c.reject(op, "state", fmt.Errorf("%w: %s", ErrInvalidState, pos.Status))
	}
	if now.After(pos.PayoutDeadline) {
		return c.reject(op, "deadline", fmt.Errorf("%w: deadline %s", ErrDeadlineExpired, pos.PayoutDeadline.Format(time.RFC3339)))
	}

	pos.Status = state.StatusActive
	pos.StartTimestamp = now
	pos.PayoutRefHash = payoutRefHash
	pos.Version++

	c.emit(&event.PayoutConfirmed{
		PositionID:    pos.ID,
		PayoutRefHash: payoutRefHash,
		StartedAt:     now,
	}, nil, now)
	c.applied(op, start)

	c.logger.Info().Uint64("position_id", pos.ID).Msg("payout confirmed")
	return nil
}

// CancelIfNotPaid closes a pending position whose payout deadline has passed
// and returns the collateral to the borrower immediately. Callable by anyone;
// the deadline check is the only gate, so an unresponsive payout confirmer
// cannot strand escrowed collateral.
func (c *Controller) CancelIfNotPaid(caller common.Address, positionID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	const op = "cancel_if_not_paid"
	start := time.Now()
	now := c.clock()

	pos, ok := c.positions.Get(positionID)
	if !ok {
		return c.reject(op, "unknown", fmt.Errorf("%w: %d", ErrUnknownPosition, positionID))
	}
	// Closed is also reachable from RepayRequested, but cancellation is the
	// pending-only edge of the graph.
	if pos.Status != state.StatusPayoutPending || !pos.Status.CanTransitionTo(state.StatusClosed) {
		return c.reject(op, "state", fmt.Errorf("%w: %s", ErrInvalidState, pos.Status))
	}
	if !now.After(pos.PayoutDeadline) {
		return c.reject(op, "deadline", fmt.Errorf("%w: deadline %s", ErrDeadlineNotReached, pos.PayoutDeadline.Format(time.RFC3339)))
	}

	pos.Status = state.StatusClosed
	pos.CollateralWithdrawn = true
	pos.Version++

	evt := &event.Cancelled{PositionID: pos.ID, Borrower: pos.Borrower}
	batch := c.vault.ReleaseToBorrower(pos, evt.IdempotencyKey(), c.sequence, now.UnixMicro())

	c.emit(evt, batch, now)
	c.applied(op, start)

	c.logger.Info().Uint64("position_id", pos.ID).Str("caller", caller.Hex()).Msg("pending loan cancelled, collateral returned")
	return nil
}

// RequestRepay declares an off-chain repayment. Borrower only.
func (c *Controller) RequestRepay(caller common.Address, positionID uint64, repayRefHash common.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	const op = "request_repay"
	start := time.Now()
	now := c.clock()

	pos, ok := c.positions.Get(positionID)
	if !ok {
		return c.reject(op, "unknown", fmt.Errorf("%w: %d", ErrUnknownPosition, positionID))
	}
	if caller != pos.Borrower {
		return c.reject(op, "unauthorized", fmt.Errorf("%w: %s", ErrUnauthorized, caller.Hex()))
	}
	if !pos.Status.CanTransitionTo(state.StatusRepayRequested) {
		return c.reject(op, "state", fmt.Errorf("%w: %s", ErrInvalidState, pos.Status))
	}

	pos.Status = state.StatusRepayRequested
	pos.RepayRefHash = repayRefHash
	pos.Version++

	c.emit(&event.RepayRequested{PositionID: pos.ID, RepayRefHash: repayRefHash}, nil, now)
	c.applied(op, start)

	c.logger.Info().Uint64("position_id", pos.ID).Msg("repayment declared")
	return nil
}

// ConfirmRepay verifies a declared repayment and closes the loan. Admin only.
// The supplied reference hash must equal the one the borrower declared.
// Collateral stays in the vault until the borrower withdraws it.
func (c *Controller) ConfirmRepay(caller common.Address, positionID uint64, repayRefHash common.Hash) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	const op = "confirm_repay"
	start := time.Now()
	now := c.clock()

	if err := c.requireAdmin(caller); err != nil {
		return c.reject(op, "unauthorized", err)
	}

	pos, ok := c.positions.Get(positionID)
	if !ok {
		return c.reject(op, "unknown", fmt.Errorf("%w: %d", ErrUnknownPosition, positionID))
	}
	if pos.Status != state.StatusRepayRequested || !pos.Status.CanTransitionTo(state.StatusClosed) {
		return c.reject(op, "state", fmt.Errorf("%w: %s", ErrInvalidState, pos.Status))
	}
	if repayRefHash != pos.RepayRefHash {
		return c.reject(op, "ref_hash", ErrRefHashMismatch)
	}

	debt, err := fpmath.DebtNow(pos.PrincipalIDR, pos.AprBps, pos.StartTimestamp, now)
	if err != nil {
		return c.reject(op, "accrual", fmt.Errorf("compute debt: %w", err))
	}

	pos.Status = state.StatusClosed
	pos.Version++

	c.emit(&event.RepayConfirmed{
		PositionID:   pos.ID,
		RepayRefHash: repayRefHash,
		DebtIDR:      debt,
	}, nil, now)
	c.applied(op, start)

	c.logger.Info().Uint64("position_id", pos.ID).Str("debt_idr", debt.String()).Msg("repayment confirmed, loan closed")
	return nil
}

// WithdrawCollateral releases a closed position's collateral to the borrower.
// One-shot: a second call fails.
func (c *Controller) WithdrawCollateral(caller common.Address, positionID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	const op = "withdraw_collateral"
	start := time.Now()
	now := c.clock()

	pos, ok := c.positions.Get(positionID)
	if !ok {
		return c.reject(op, "unknown", fmt.Errorf("%w: %d", ErrUnknownPosition, positionID))
	}
	if caller != pos.Borrower {
		return c.reject(op, "unauthorized", fmt.Errorf("%w: %s", ErrUnauthorized, caller.Hex()))
	}
	if pos.Status != state.StatusClosed {
		return c.reject(op, "state", fmt.Errorf("%w: %s", ErrInvalidState, pos.Status))
	}
	if pos.CollateralWithdrawn {
		return c.reject(op, "withdrawn", ErrAlreadyWithdrawn)
	}

	pos.CollateralWithdrawn = true
	pos.Version++

	evt := &event.CollateralWithdrawn{
		PositionID: pos.ID,
		Borrower:   pos.Borrower,
		Token:      pos.CollateralToken,
		Amount:     pos.CollateralAmount,
	}
	batch := c.vault.ReleaseToBorrower(pos, evt.IdempotencyKey(), c.sequence, now.UnixMicro())

	c.emit(evt, batch, now)
	c.applied(op, start)

	c.logger.Info().Uint64("position_id", pos.ID).Msg("collateral withdrawn")
	return nil
}

// Liquidate seizes collateral from a position at or past the liquidation
// threshold. Callable by anyone; solvency must not wait on a privileged
// actor, so the threshold check is the only gate. State transitions before
// the custody move, and the event carries the full valuation snapshot behind
// the decision.
func (c *Controller) Liquidate(caller common.Address, positionID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	const op = "liquidate"
	start := time.Now()
	now := c.clock()

	pos, ok := c.positions.Get(positionID)
	if !ok {
		return c.reject(op, "unknown", fmt.Errorf("%w: %d", ErrUnknownPosition, positionID))
	}
	if !pos.Status.CanTransitionTo(state.StatusLiquidated) {
		return c.reject(op, "state", fmt.Errorf("%w: %s", ErrInvalidState, pos.Status))
	}

	debt, err := fpmath.DebtNow(pos.PrincipalIDR, pos.AprBps, pos.StartTimestamp, now)
	if err != nil {
		return c.reject(op, "accrual", fmt.Errorf("compute debt: %w", err))
	}
	value, err := c.risk.CollateralValueIDR(pos.CollateralAmount, pos.CollateralToken, now)
	if err != nil {
		return c.reject(op, "valuation", fmt.Errorf("value collateral: %w", err))
	}

	if !c.risk.IsLiquidatable(pos, debt, value) {
		ltv, _ := c.risk.LtvBps(debt, value)
		return c.reject(op, "healthy", fmt.Errorf("%w: ltv %d bps", ErrNotLiquidatable, ltv))
	}

	// Zero-valued collateral has no finite LTV; record zero in the snapshot
	// and let DebtIDR vs CollateralValueIDR tell the story.
	ltvBps, _ := c.risk.LtvBps(debt, value)

	ethUsd := new(big.Int)
	if p, perr := c.oracle.EthUsd(); perr == nil {
		ethUsd = p
	}
	usdIdr, _ := c.cfg.UsdIdrRate()

	pos.Status = state.StatusLiquidated
	pos.CollateralWithdrawn = true
	pos.Version++

	evt := &event.Liquidated{
		PositionID:         pos.ID,
		Borrower:           pos.Borrower,
		SeizedToken:        pos.CollateralToken,
		SeizedAmount:       pos.CollateralAmount,
		LtvBps:             ltvBps,
		EthUsd:             ethUsd,
		UsdIdr:             usdIdr,
		DebtIDR:            debt,
		CollateralValueIDR: value,
	}
	batch := c.vault.SeizeToTreasury(pos, evt.IdempotencyKey(), c.sequence, now.UnixMicro())

	c.emit(evt, batch, now)
	c.applied(op, start)
	if c.metrics != nil {
		c.metrics.LiquidationsTotal.Inc()
		c.metrics.LiquidationLtvBps.Observe(float64(ltvBps))
	}

	c.logger.Warn().
		Uint64("position_id", pos.ID).
		Uint64("ltv_bps", ltvBps).
		Str("caller", caller.Hex()).
		Str("debt_idr", debt.String()).
		Str("collateral_value_idr", value.String()).
		Msg("position liquidated")
	return nil
}

// ---------------------------------------------------------------------------
// Administration
// ---------------------------------------------------------------------------

// SetAdministrator hands the admin capability to a new address. Admin only;
// the previous administrator loses access at once.
func (c *Controller) SetAdministrator(caller, next common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	if next == (common.Address{}) {
		return fmt.Errorf("%w: zero administrator address", ErrInvalidArgument)
	}
	c.cfg.SetAdministrator(next)
	c.logger.Info().Str("administrator", next.Hex()).Msg("administrator changed")
	return nil
}

func (c *Controller) SetTreasury(caller, treasury common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	if treasury == (common.Address{}) {
		return fmt.Errorf("%w: zero treasury address", ErrInvalidArgument)
	}
	c.cfg.SetTreasury(treasury)
	return nil
}

func (c *Controller) SetOracleAddress(caller, addr common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	c.cfg.SetOracleAddress(addr)
	return nil
}

// SetAprBps changes the APR applied to NEW loans. Existing positions keep the
// rate they were created with.
func (c *Controller) SetAprBps(caller common.Address, aprBps uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	if aprBps > fpmath.BpsDenominator {
		return fmt.Errorf("%w: apr %d bps exceeds 100%%", ErrInvalidArgument, aprBps)
	}
	c.cfg.SetAprBpsDefault(aprBps)
	return nil
}

func (c *Controller) SetPayoutDeadlineSeconds(caller common.Address, seconds uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	if seconds == 0 {
		return fmt.Errorf("%w: zero payout deadline", ErrInvalidArgument)
	}
	c.cfg.SetPayoutDeadlineSeconds(seconds)
	return nil
}

// SetUsdIdrRate records a new manual FX rate and refreshes its timestamp.
func (c *Controller) SetUsdIdrRate(caller common.Address, rate *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	if rate == nil || rate.Sign() <= 0 {
		return fmt.Errorf("%w: rate must be positive", ErrInvalidArgument)
	}
	c.cfg.SetUsdIdrRate(rate, c.clock())
	return nil
}

func (c *Controller) SetUSDCToken(caller, token common.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireAdmin(caller); err != nil {
		return err
	}
	if token == (common.Address{}) {
		return fmt.Errorf("%w: zero token address", ErrInvalidArgument)
	}
	c.cfg.SetUSDCToken(token)
	return nil
}

// ---------------------------------------------------------------------------
// Read surface
// ---------------------------------------------------------------------------

// Position returns a deep copy of the position record.
func (c *Controller) Position(positionID uint64) (*state.Position, error) {
	pos, ok := c.positions.Snapshot(positionID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPosition, positionID)
	}
	return pos, nil
}

// UserPositions lists every position id the borrower ever opened.
func (c *Controller) UserPositions(borrower common.Address) []uint64 {
	return c.positions.UserPositions(borrower)
}

// NextPositionID exposes the id counter.
func (c *Controller) NextPositionID() uint64 {
	return c.positions.NextID()
}

// currentDebt is the status-aware debt of a position: principal before
// payout, zero once terminal, principal plus accrued interest while the
// loan runs. Accrual starts at payout confirmation, so StartTimestamp is
// only meaningful for running loans.
func currentDebt(pos *state.Position, now time.Time) (*big.Int, error) {
	switch pos.Status {
	case state.StatusPayoutPending:
		return pos.PrincipalIDR, nil
	case state.StatusClosed, state.StatusLiquidated:
		return new(big.Int), nil
	}
	return fpmath.DebtNow(pos.PrincipalIDR, pos.AprBps, pos.StartTimestamp, now)
}

// DebtNow returns the current debt of a position.
func (c *Controller) DebtNow(positionID uint64) (*big.Int, error) {
	pos, ok := c.positions.Snapshot(positionID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPosition, positionID)
	}
	return currentDebt(pos, c.clock())
}

// CollateralValueIDR values a position's collateral at current prices.
func (c *Controller) CollateralValueIDR(positionID uint64) (*big.Int, error) {
	pos, ok := c.positions.Snapshot(positionID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPosition, positionID)
	}
	return c.risk.CollateralValueIDR(pos.CollateralAmount, pos.CollateralToken, c.clock())
}

// CollateralValueIDRForToken values an arbitrary amount of a collateral token.
func (c *Controller) CollateralValueIDRForToken(amount *big.Int, token common.Address) (*big.Int, error) {
	return c.risk.CollateralValueIDR(amount, token, c.clock())
}

// MaxBorrowIDR returns the largest principal the given collateral supports.
func (c *Controller) MaxBorrowIDR(amount *big.Int, token common.Address) (*big.Int, error) {
	return c.risk.MaxBorrowIDR(amount, token, c.clock())
}

// LtvNow returns the position's current loan-to-value in basis points,
// computed against the same status-aware debt DebtNow reports. Pending
// positions are rated on their principal; terminal positions carry no debt
// and rate zero.
func (c *Controller) LtvNow(positionID uint64) (uint64, error) {
	pos, ok := c.positions.Snapshot(positionID)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownPosition, positionID)
	}

	now := c.clock()
	debt, err := currentDebt(pos, now)
	if err != nil {
		return 0, err
	}
	value, err := c.risk.CollateralValueIDR(pos.CollateralAmount, pos.CollateralToken, now)
	if err != nil {
		return 0, err
	}
	return c.risk.LtvBps(debt, value)
}

// IsFxRateStale reports whether the manual USD/IDR rate has aged out.
func (c *Controller) IsFxRateStale() bool {
	return c.oracle.IsFxRateStale(c.clock())
}

// EthUsd returns the latest native-asset price from the oracle feed.
func (c *Controller) EthUsd() (*big.Int, error) {
	return c.oracle.EthUsd()
}

// VaultBalance exposes escrowed collateral for a position.
func (c *Controller) VaultBalance(positionID uint64, token common.Address) *big.Int {
	return c.vault.Tracker().VaultBalance(positionID, token)
}

// Administrator returns the current admin address.
func (c *Controller) Administrator() common.Address {
	return c.cfg.Administrator()
}

// UsdIdrRate returns the manual FX rate and when it was last set.
func (c *Controller) UsdIdrRate() (*big.Int, time.Time) {
	return c.cfg.UsdIdrRate()
}

// Params bundles the current administrative parameters.
type Params struct {
	Administrator         common.Address
	Treasury              common.Address
	OracleAddress         common.Address
	USDCToken             common.Address
	AprBps                uint32
	PayoutDeadlineSeconds uint64
}

// CurrentParams returns the administrative parameters applied to new loans.
func (c *Controller) CurrentParams() Params {
	return Params{
		Administrator:         c.cfg.Administrator(),
		Treasury:              c.cfg.Treasury(),
		OracleAddress:         c.cfg.OracleAddress(),
		USDCToken:             c.cfg.USDCToken(),
		AprBps:                c.cfg.AprBpsDefault(),
		PayoutDeadlineSeconds: c.cfg.PayoutDeadlineSeconds(),
	}
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (c *Controller) requireAdmin(caller common.Address) error {
	if caller != c.cfg.Administrator() {
		return fmt.Errorf("%w: %s is not the administrator", ErrUnauthorized, caller.Hex())
	}
	return nil
}

// emit seals the event into the audit chain and hands it to the output
// channels. Persist channel uses a BLOCKING send (no event may be lost);
// publish channel uses a NON-BLOCKING send with drop (subscribers catch up
// from the event log).
func (c *Controller) emit(evt event.Event, batch *ledger.Batch, now time.Time) {
	payload, err := json.Marshal(evt)
	if err != nil {
		panic(fmt.Sprintf("FATAL: marshal %s: %v", evt.EventType(), err))
	}

	prevHash := c.hasher.GetPrevHash()
	stateHash := c.hasher.ComputeHash(c.sequence, payload)

	envelope := &event.EventEnvelope{
		Sequence:       c.sequence,
		IdempotencyKey: evt.IdempotencyKey(),
		EventType:      evt.EventType(),
		PositionID:     evt.Position(),
		Timestamp:      now,
		Payload:        payload,
		StateHash:      stateHash,
		PrevHash:       prevHash,
	}
	c.sequence++

	output := Output{Envelope: envelope, Batch: batch}

	if c.persistChan != nil {
		select {
		case c.persistChan <- output:
		default:
			if c.metrics != nil {
				c.metrics.PersistBackpressure.Inc()
			}
			c.persistChan <- output
		}
	}

	if c.publishChan != nil {
		select {
		case c.publishChan <- output:
		default:
			if c.metrics != nil {
				c.metrics.PublishDrops.Inc()
			}
		}
	}

	if c.metrics != nil {
		c.metrics.CoreSequence.Set(float64(c.sequence))
		if batch != nil {
			for _, j := range batch.Journals {
				c.metrics.CoreJournals.WithLabelValues(j.JournalType.String()).Inc()
			}
		}
	}
}

func (c *Controller) applied(op string, start time.Time) {
	if c.metrics == nil {
		return
	}
	c.metrics.LifecycleApplied.WithLabelValues(op).Inc()
	c.metrics.LifecycleDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	c.metrics.OpenPositions.Set(float64(c.positions.Count()))
}

func (c *Controller) reject(op, reason string, err error) error {
	if c.metrics != nil {
		c.metrics.LifecycleRejected.WithLabelValues(op, reason).Inc()
	}
	return err
}
