package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-order-core/internal/config"
	kafkax "github.com/ariefcatur/go-order-core/internal/kafka"
	"github.com/ariefcatur/go-order-core/internal/logging"
	"github.com/ariefcatur/go-order-core/internal/orders"
	"github.com/ariefcatur/go-order-core/internal/payments"
	"github.com/ariefcatur/go-order-core/internal/postgres"
	"github.com/ariefcatur/go-order-core/internal/redisx"
	"github.com/ariefcatur/go-order-core/internal/telemetry"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// payments consumes signed payment notifications from Kafka and applies them
// with the same processor as the HTTP webhook.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	service := cfg.ServiceName + "-payments"
	logger := logging.MustNew(logging.Options{Service: service, Env: cfg.Env, Level: cfg.LogLevel, File: cfg.LogFile})
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if cfg.Store != config.StorePostgres {
		logger.Fatal("payments consumer needs store=postgres", zap.String("store", cfg.Store))
	}
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		logger.Fatal("kafka_brokers required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, service, cfg.OTelEndpoint)
	if err != nil {
		logger.Fatal("tracing setup", zap.Error(err))
	}

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	store := postgres.NewStore(db)

	// Producer: PaymentStatusChanged events
	prod := kafkax.NewProducer(brokers, 1024, logger)
	prod.Start()
	var sink orders.EventSink = kafkax.NewSink(prod, service, logger)

	// Redis hanya untuk buang cache order yang berubah
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		sink = redisx.InvalidatingSink{Cache: &redisx.OrderCache{R: rdb}, Next: sink}
	}

	proc := payments.NewProcessor(payments.NewHMACAuthenticator([]byte(cfg.WebhookSecret)), store, sink, "kafka")

	// Consumer
	cons := kafkax.NewConsumer(brokers, cfg.PaymentsGroup, orders.TopicPaymentNotifications, cfg.PaymentsWorkers, logger)
	logger.Info("payments consumer started",
		zap.String("group", cfg.PaymentsGroup),
		zap.String("topic", orders.TopicPaymentNotifications),
		zap.Int("workers", cfg.PaymentsWorkers),
	)
	if err := cons.Start(ctx, payments.NotificationHandler(proc, logger)); err != nil {
		logger.Error("consumer exit", zap.Error(err))
	}

	logger.Info("shutting down consumer...")
	prod.Close()
	prod.WaitClosed()
	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(ctx2); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}
