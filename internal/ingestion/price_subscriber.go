package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"LoanLedger/internal/observability"
	"LoanLedger/internal/oracle"
)

// PriceQuote is the wire format of an ETH/USD quote on the oracle subject.
// PriceUSD is a decimal string scaled by 1e8.
type PriceQuote struct {
	PriceUSD   string `json:"price_usd"`
	ObservedAt int64  `json:"observed_at"` // epoch seconds
}

// PriceSubscriber consumes oracle quotes from JetStream and feeds the shared
// feed state. Malformed or out-of-date quotes are dropped after ack; the feed
// keeps its monotonic-time guarantee.
type PriceSubscriber struct {
	js       jetstream.JetStream
	feed     *oracle.FeedState
	metrics  *observability.Metrics
	consumer jetstream.ConsumeContext
}

func NewPriceSubscriber(js jetstream.JetStream, feed *oracle.FeedState, metrics *observability.Metrics) *PriceSubscriber {
	return &PriceSubscriber{
		js:      js,
		feed:    feed,
		metrics: metrics,
	}
}

// Subscribe creates the durable consumer and starts delivery. New deployments
// start from the latest quote; historical prices are of no use.
func (ps *PriceSubscriber) Subscribe(ctx context.Context) error {
	logger := observability.NewLogger("price-subscriber")

	consumer, err := ps.js.CreateOrUpdateConsumer(ctx, OracleStream, jetstream.ConsumerConfig{
		Durable:       "ledger-oracle-prices",
		FilterSubject: OraclePricesSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		DeliverPolicy: jetstream.DeliverLastPolicy,
	})
	if err != nil {
		return fmt.Errorf("create oracle consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		defer msg.Ack()

		var quote PriceQuote
		if err := json.Unmarshal(msg.Data(), &quote); err != nil {
			logger.Warn().Err(err).Msg("malformed price quote dropped")
			return
		}

		price, ok := new(big.Int).SetString(quote.PriceUSD, 10)
		if !ok || price.Sign() <= 0 {
			logger.Warn().Str("price_usd", quote.PriceUSD).Msg("invalid price dropped")
			return
		}

		ps.feed.Update(price, time.Unix(quote.ObservedAt, 0))
		if ps.metrics != nil {
			ps.metrics.OraclePriceUpdates.Inc()
		}
	})
	if err != nil {
		return fmt.Errorf("consume oracle prices: %w", err)
	}

	ps.consumer = cc
	logger.Info().Str("subject", OraclePricesSubject).Msg("subscribed to oracle prices")
	return nil
}

// Stop gracefully stops the consumer.
func (ps *PriceSubscriber) Stop() {
	if ps.consumer != nil {
		ps.consumer.Stop()
	}
}
