package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"

	"github.com/example/sms-forwarder/internal/common"
	"github.com/example/sms-forwarder/internal/delivery"
	"github.com/example/sms-forwarder/internal/forwarder"
	"github.com/example/sms-forwarder/internal/ingest"
	"github.com/example/sms-forwarder/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := common.LoadConfig("forwarder")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := common.NewLogger(cfg.ServiceName)
	shutdown, err := common.SetupOTel(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialise telemetry")
	}
	defer common.ShutdownTelemetry(context.Background(), shutdown)

	metricsSrv := common.StartMetricsServer(cfg.MetricsPort)
	defer metricsSrv.Shutdown(context.Background())

	var rules forwarder.RuleStore = store.StaticRules{}
	var contacts forwarder.ContactDirectory = store.MemoryContacts{}
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		defer pool.Close()
		rules = store.NewPostgresRuleStore(pool)
		contacts = store.NewPostgresContactDirectory(pool)
	} else {
		logger.Warn().Msg("DATABASE_URL not set, running with an empty in-memory rule set")
	}

	monitor := delivery.NewMonitor()
	dispatcher := delivery.NewDispatcher(delivery.Policy{
		InitialInterval: cfg.DeliveryInitialBackoff,
		MaxAttempts:     cfg.DeliveryMaxAttempts,
	}, monitor, logger, cfg.DeliveryWorkers)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("dispatcher stopped")
		}
	}()

	engine := &forwarder.Engine{
		Rules:      rules,
		Contacts:   contacts,
		Dispatcher: dispatcher,
		Logger:     logger,
	}

	consumer := ingest.Consumer{
		ReaderFactory: func() *kafka.Reader {
			return kafka.NewReader(kafka.ReaderConfig{
				Brokers: cfg.KafkaBrokers,
				GroupID: cfg.ServiceName,
				Topic:   cfg.InboundTopic,
			})
		},
		Engine: engine,
		Logger: logger,
	}
	go func() {
		logger.Info().Str("topic", cfg.InboundTopic).Msg("inbound consumer started")
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("inbound consumer stopped")
		}
	}()

	handler := ingest.NewHandler(engine, logger)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: handler.Router(),
	}
	go func() {
		logger.Info().Int("port", cfg.HTTPPort).Msg("forwarder service started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)
}
