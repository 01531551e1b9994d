package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"LoanLedger/internal/config"
	"LoanLedger/internal/core"
	"LoanLedger/internal/ingestion"
	"LoanLedger/internal/observability"
	"LoanLedger/internal/oracle"
	"LoanLedger/internal/persistence"
	"LoanLedger/internal/query"
	"LoanLedger/internal/risk"
	"LoanLedger/internal/server"
	"LoanLedger/internal/state"
)

func main() {
	configPath := flag.String("config", "", "path to TOML config file")
	flag.Parse()

	logger := observability.NewLogger("main")
	logger.Info().Msg("loan ledger starting")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("validate config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.Postgres.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres open")
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("postgres ping")
	}
	logger.Info().Msg("Postgres connected")

	if cfg.Postgres.RunMigrations {
		migrator := persistence.NewMigrator(db, cfg.Postgres.MigrationsDir)
		if err := migrator.Up(ctx); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	// --- State recovery ---
	positions := state.NewPositionLedger()
	vault := core.NewCollateralVault()

	restored, err := persistence.LoadPositions(ctx, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("load positions")
	}
	for _, pos := range restored {
		positions.Restore(pos)
		if !pos.CollateralWithdrawn {
			vault.RestoreEscrow(pos)
		}
	}
	logger.Info().Int("positions", len(restored)).Msg("position state restored")

	nextSeq, chainTip, haveChain, err := persistence.LoadChainState(ctx, db)
	if err != nil {
		logger.Fatal().Err(err).Msg("load chain state")
	}

	// --- Configuration store ---
	rate, ok := new(big.Int).SetString(cfg.Deployment.UsdIdrRate, 10)
	if !ok {
		logger.Fatal().Str("rate", cfg.Deployment.UsdIdrRate).Msg("bad usd_idr_rate")
	}
	configStore, err := state.NewConfigStore(state.ConfigParams{
		Administrator:         common.HexToAddress(cfg.Deployment.Administrator),
		Treasury:              common.HexToAddress(cfg.Deployment.Treasury),
		OracleAddress:         common.HexToAddress(cfg.Deployment.OracleAddress),
		USDCToken:             common.HexToAddress(cfg.Deployment.USDCToken),
		AprBpsDefault:         cfg.Deployment.AprBps,
		PayoutDeadlineSeconds: cfg.Deployment.PayoutDeadlineSeconds,
		UsdIdrRate:            rate,
		UsdIdrRateSetAt:       time.Now(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed config store")
	}

	// --- Oracle & risk ---
	feed := oracle.NewFeedState()
	oracleAdapter := oracle.NewAdapter(feed, configStore)
	riskEval := risk.NewEvaluator(oracleAdapter)

	// --- Output channels ---
	persistCoreChan := make(chan core.Output, cfg.Persistence.ChannelSize)
	publishCoreChan := make(chan core.Output, cfg.Persistence.ChannelSize)
	persistWorkerChan := make(chan persistence.Output, cfg.Persistence.ChannelSize)

	// --- Controller ---
	controller := core.NewController(
		configStore, positions, oracleAdapter, riskEval, vault,
		persistCoreChan, publishCoreChan, metrics,
		core.ControllerOptions{
			BlockCreateOnStaleFx: cfg.Deployment.BlockCreateOnStaleFx,
		},
	)
	if haveChain {
		controller.RestoreSequence(nextSeq, chainTip)
		logger.Info().Int64("next_sequence", nextSeq).Msg("audit chain restored")
	}

	errChan := make(chan error, 8)

	// --- Persistence worker ---
	persistWorker := persistence.NewWorker(
		db, persistWorkerChan,
		cfg.Persistence.BatchSize,
		time.Duration(cfg.Persistence.FlushTimeoutMs)*time.Millisecond,
		metrics,
	)
	go func() {
		errChan <- persistWorker.Run(ctx)
	}()

	// Bridge: controller output -> persistence rows. The position snapshot is
	// read here, after the transition, so the projection row reflects the
	// state the event produced.
	go func() {
		for {
			select {
			case <-ctx.Done():
				close(persistWorkerChan)
				return
			case out, ok := <-persistCoreChan:
				if !ok {
					close(persistWorkerChan)
					return
				}
				pos, _ := positions.Snapshot(out.Envelope.PositionID)
				persistWorkerChan <- persistence.BuildOutput(out.Envelope, out.Batch, pos)
			}
		}
	}()

	// --- NATS ---
	var priceSubscriber *ingestion.PriceSubscriber
	if cfg.NATS.Enabled {
		nc, js, err := ingestion.ConnectNATS(cfg.NATS.URL)
		if err != nil {
			logger.Fatal().Err(err).Msg("nats connect")
		}
		defer nc.Close()
		logger.Info().Msg("NATS connected")

		if err := ingestion.EnsureStreams(ctx, js); err != nil {
			logger.Fatal().Err(err).Msg("ensure NATS streams")
		}

		priceSubscriber = ingestion.NewPriceSubscriber(js, feed, metrics)
		if err := priceSubscriber.Subscribe(ctx); err != nil {
			logger.Fatal().Err(err).Msg("subscribe oracle prices")
		}

		publisher := ingestion.NewOutboundPublisher(js, publishCoreChan)
		go func() {
			errChan <- publisher.Run(ctx)
		}()
	} else {
		// Drain the publish channel so non-blocking sends never pile up.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-publishCoreChan:
				}
			}
		}()
	}

	// --- HTTP API ---
	queryService := query.NewService(db)
	apiServer := server.New(cfg.Server.APIAddr, controller, queryService, healthChecker, metrics)
	go func() {
		errChan <- apiServer.ListenAndServe()
	}()

	// --- Metrics server ---
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.Server.MetricsAddr,
		Handler: metricsMux,
	}
	go func() {
		logger.Info().Str("addr", cfg.Server.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	// --- FX age gauge ---
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, updatedAt := configStore.UsdIdrRate()
				metrics.FxRateAgeSeconds.Set(time.Since(updatedAt).Seconds())
			}
		}
	}()

	healthChecker.SetReady(true)
	logger.Info().
		Str("api", cfg.Server.APIAddr).
		Str("metrics", cfg.Server.MetricsAddr).
		Msg("loan ledger ready")

	// --- Wait for shutdown ---
	select {
	case sig := <-sigChan:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		logger.Error().Err(err).Msg("goroutine failed, shutting down")
	}

	healthChecker.SetReady(false)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api shutdown")
	}
	metricsServer.Shutdown(shutdownCtx)

	if priceSubscriber != nil {
		priceSubscriber.Stop()
	}

	cancel()

	// Give the persistence worker a moment to flush its final batch.
	time.Sleep(200 * time.Millisecond)

	logger.Info().Msg("loan ledger shutdown complete")
}
