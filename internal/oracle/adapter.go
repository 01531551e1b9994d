// Package oracle converts collateral amounts into the fiat unit. The native
// asset is priced by an external USD oracle; the registered USD-pegged token
// is priced at a fixed 1:1 peg. USD values are converted to IDR through the
// manually-set FX rate held in the config store.
package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	fpmath "LoanLedger/internal/math"
	"LoanLedger/internal/state"
)

// FxStalenessWindow is the maximum age of the manual USD/IDR rate before it is
// reported stale. Deployment-time constant, deliberately not settable.
const FxStalenessWindow = 24 * time.Hour

var (
	ErrUnknownToken = errors.New("token not registered as collateral")
	ErrStaleFxRate  = errors.New("usd/idr rate is stale")
)

// Adapter wraps the external price feed and the manual FX rate.
type Adapter struct {
	feed Feed
	cfg  *state.ConfigStore
}

func NewAdapter(feed Feed, cfg *state.ConfigStore) *Adapter {
	return &Adapter{feed: feed, cfg: cfg}
}

// PriceUSD returns the USD price of one whole token, scaled by
// fpmath.OraclePriceScale, plus its observation time. The USD-pegged token is
// quoted at exactly 1 USD with the current time as observation.
func (a *Adapter) PriceUSD(token common.Address, now time.Time) (Quote, error) {
	tok, ok := a.cfg.Token(token)
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}

	if tok.USDPegged {
		return Quote{
			PriceUSD:   big.NewInt(fpmath.OraclePriceScale),
			ObservedAt: now,
		}, nil
	}

	return a.feed.Latest()
}

// ValueIDR converts a collateral amount (smallest unit) to whole IDR:
//
//	amount * priceUSD * usdIdrRate / (10^decimals * OraclePriceScale)
//
// The full-width product is formed before dividing, so nothing truncates
// early. Returns zero when the oracle has no price yet — callers must treat a
// zero collateral value as maximally risky rather than fail.
func (a *Adapter) ValueIDR(amount *big.Int, token common.Address, now time.Time) (*big.Int, error) {
	tok, ok := a.cfg.Token(token)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, token.Hex())
	}

	quote, err := a.PriceUSD(token, now)
	if err != nil {
		if errors.Is(err, ErrNoPrice) {
			return new(big.Int), nil
		}
		return nil, err
	}

	rate, _ := a.cfg.UsdIdrRate()

	usdScaled, err := fpmath.MulDiv(amount, quote.PriceUSD, fpmath.Pow10(tok.Decimals))
	if err != nil {
		return nil, err
	}
	return fpmath.MulDiv(usdScaled, rate, big.NewInt(fpmath.OraclePriceScale))
}

// EthUsd returns the latest native-asset USD price (oracle scale).
func (a *Adapter) EthUsd() (*big.Int, error) {
	quote, err := a.feed.Latest()
	if err != nil {
		return nil, err
	}
	return quote.PriceUSD, nil
}

// IsFxRateStale reports whether the manual rate is older than the staleness
// window. Advisory: loan creation only rejects on staleness when the
// controller is configured to do so.
func (a *Adapter) IsFxRateStale(now time.Time) bool {
	_, updatedAt := a.cfg.UsdIdrRate()
	return now.Sub(updatedAt) > FxStalenessWindow
}
