package oracle

import (
	"errors"
	"math/big"
	"sync"
	"time"
)

var ErrNoPrice = errors.New("no oracle price observed yet")

// Quote is a USD price observation scaled by fpmath.OraclePriceScale
// (8 decimals, matching the external oracle's declared precision).
type Quote struct {
	PriceUSD   *big.Int
	ObservedAt time.Time
}

// Feed supplies the latest external oracle observation for the native asset.
type Feed interface {
	Latest() (Quote, error)
}

// FeedState is an in-memory Feed updated by the oracle price subscriber (or
// directly in tests).
type FeedState struct {
	mu    sync.RWMutex
	quote Quote
	set   bool
}

func NewFeedState() *FeedState {
	return &FeedState{}
}

// Update replaces the current observation. Older observations are ignored so
// the feed never moves backward in time.
func (f *FeedState) Update(priceUSD *big.Int, observedAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.set && observedAt.Before(f.quote.ObservedAt) {
		return
	}

	f.quote = Quote{
		PriceUSD:   new(big.Int).Set(priceUSD),
		ObservedAt: observedAt,
	}
	f.set = true
}

func (f *FeedState) Latest() (Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if !f.set {
		return Quote{}, ErrNoPrice
	}
	return Quote{
		PriceUSD:   new(big.Int).Set(f.quote.PriceUSD),
		ObservedAt: f.quote.ObservedAt,
	}, nil
}
