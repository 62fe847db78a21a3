package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/storm-data-blobtag/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-data-blobtag/internal/adapter/kafka"
	"github.com/couchcryptid/storm-data-blobtag/internal/adapter/sqlite"
	"github.com/couchcryptid/storm-data-blobtag/internal/config"
	"github.com/couchcryptid/storm-data-blobtag/internal/observability"
	"github.com/couchcryptid/storm-data-blobtag/internal/pairing"
	"github.com/couchcryptid/storm-data-blobtag/internal/pipeline"
	"github.com/couchcryptid/storm-data-blobtag/internal/raster"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return 1
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	job, err := config.LoadJob(cfg.JobFile)
	if err != nil {
		logger.Error("failed to load job", "error", err)
		return 1
	}
	partition, err := raster.ParsePartitioner(cfg.Partition)
	if err != nil {
		logger.Error("invalid partition", "error", err)
		return 1
	}

	matcher := pairing.NewMatcher(cfg.MatchRadiusDeg, cfg.SpanThresholdDeg)
	scheduler := pairing.NewScheduler(matcher, cfg.Workers, logger, metrics)
	opts := pipeline.Options{
		Workers:   cfg.Workers,
		Partition: partition,
		RadiusDeg: cfg.MatchRadiusDeg,
	}

	// Event publishing is feature-flagged via KAFKA_ENABLED.
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts.Publisher = writer
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	}

	if cfg.LedgerPath != "" {
		ledger, err := sqlite.Open(cfg.LedgerPath, logger)
		if err != nil {
			logger.Error("failed to open run ledger", "path", cfg.LedgerPath, "error", err)
			return 1
		}
		defer ledger.Close()
		opts.Ledger = ledger
	}

	p := pipeline.New(job, pipeline.FileStore{}, scheduler, opts, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	code := 0
	if _, err := p.Run(ctx); err != nil {
		logger.Error("tagging job failed", "error", err)
		code = 1
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return code
}
