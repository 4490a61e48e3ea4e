package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ariefcatur/go-order-core/internal/config"
	"github.com/ariefcatur/go-order-core/internal/httpx"
	kafkax "github.com/ariefcatur/go-order-core/internal/kafka"
	"github.com/ariefcatur/go-order-core/internal/logging"
	"github.com/ariefcatur/go-order-core/internal/memory"
	"github.com/ariefcatur/go-order-core/internal/orders"
	"github.com/ariefcatur/go-order-core/internal/payments"
	"github.com/ariefcatur/go-order-core/internal/postgres"
	"github.com/ariefcatur/go-order-core/internal/redisx"
	"github.com/ariefcatur/go-order-core/internal/telemetry"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.MustNew(logging.Options{Service: cfg.ServiceName, Env: cfg.Env, Level: cfg.LogLevel, File: cfg.LogFile})
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		logger.Fatal("tracing setup", zap.Error(err))
	}

	// Store
	var store orders.Store
	switch cfg.Store {
	case config.StoreMemory:
		m := memory.New()
		seedDemoCatalog(m)
		store = m
		logger.Warn("using in-memory store, data is lost on restart")
	default:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			logger.Fatal("db migrate", zap.Error(err))
		}
		store = postgres.NewStore(db)
	}

	// Redis (opsional: tanpa redis, cache & idempotency key dimatikan)
	var cache *redisx.OrderCache
	var idem *redisx.Idempotency
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unavailable, continuing without cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		} else {
			cache = &redisx.OrderCache{R: rdb}
			idem = &redisx.Idempotency{R: rdb}
		}
		cancel()
	}

	// Kafka producer
	var sink orders.EventSink = orders.NopSink{}
	var prod *kafkax.Producer
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		prod = kafkax.NewProducer(brokers, 1024, logger)
		prod.Start()
		sink = kafkax.NewSink(prod, cfg.ServiceName, logger)
	}
	sink = redisx.InvalidatingSink{Cache: cache, Next: sink}

	// Service & handlers
	svc := orders.NewService(store, sink)
	proc := payments.NewProcessor(payments.NewHMACAuthenticator([]byte(cfg.WebhookSecret)), store, sink, "http")

	router := httpx.NewRouter(logger)
	(&httpx.OrdersHandler{Service: svc, Cache: cache, Idem: idem}).Register(router)
	(&httpx.ProductsHandler{Service: svc}).Register(router)
	(&httpx.WebhookHandler{Processor: proc}).Register(router)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, cfg.ServiceName),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	if prod != nil {
		prod.Close()      // tutup inbox -> flush & close writer
		prod.WaitClosed() // drain
	}
	if err := shutdownTracing(ctx2); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

// seedDemoCatalog gives the in-memory store something to sell.
func seedDemoCatalog(m *memory.Store) {
	for _, p := range []struct {
		name  string
		price string
		qty   int
	}{
		{"Mechanical Keyboard", "89.99", 25},
		{"Wireless Mouse", "24.50", 100},
		{"USB-C Hub", "39.00", 40},
	} {
		m.PutProduct(orders.Product{ID: uuid.NewString(), Name: p.name, Price: decimal.RequireFromString(p.price), Quantity: p.qty})
	}
}
