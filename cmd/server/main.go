package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"customerhub/internal/customer/cardvault"
	"customerhub/internal/customer/events"
	customerhandler "customerhub/internal/customer/handler"
	customermetrics "customerhub/internal/customer/metrics"
	"customerhub/internal/customer/service"
	"customerhub/internal/customer/store/cache"
	customerstore "customerhub/internal/customer/store/customer"
	"customerhub/internal/customer/validation"
	jwttoken "customerhub/internal/jwt_token"
	"customerhub/internal/platform/config"
	"customerhub/internal/platform/httpserver"
	"customerhub/internal/platform/kafka"
	"customerhub/internal/platform/kafka/consumer"
	"customerhub/internal/platform/logger"
	"customerhub/internal/platform/metrics"
	platformredis "customerhub/internal/platform/redis"
	"customerhub/migrations"
	"customerhub/pkg/platform/circuit"
	"customerhub/pkg/platform/outbox"
	outboxmemory "customerhub/pkg/platform/outbox/memory"
	outboxpostgres "customerhub/pkg/platform/outbox/postgres"
	txcontext "customerhub/pkg/platform/tx"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("customerhub stopped with error", "error", err)
		os.Exit(1)
	}
}

type persistence struct {
	customers service.Store
	outbox    outbox.Store
	tx        *txcontext.Postgres
	db        *sql.DB
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	persist, err := openPersistence(ctx, cfg, log)
	if err != nil {
		return err
	}
	if persist.db != nil {
		defer persist.db.Close()
	}

	viewCache, closeCache, err := openCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	platformMetrics := metrics.New(prometheus.DefaultRegisterer)
	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(customermetrics.New()),
		service.WithEventPublisher(events.NewOutboxPublisher(persist.outbox)),
		service.WithCache(viewCache),
	}
	if persist.tx != nil {
		opts = append(opts, service.WithTx(newCustomerTx(persist.tx)))
	}
	svc := service.New(persist.customers, opts...)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	router := newRouter(routerDeps{
		logger:    log,
		customers: customerhandler.New(svc, log),
		validator: jwttoken.NewJWTServiceAdapter(jwtService),
		metrics:   platformMetrics,
		scrape:    metrics.Handler(prometheus.DefaultGatherer),
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting customerhub", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if len(cfg.Kafka.Brokers) > 0 {
		if err := startKafka(ctx, g, cfg, log, persist, svc, platformMetrics); err != nil {
			return err
		}
	} else {
		log.Warn("KAFKA_BROKERS not set; events stay in the outbox and card validation results are not consumed")
	}

	if pg, ok := persist.outbox.(*outboxpostgres.Store); ok {
		g.Go(func() error {
			pruneOutbox(ctx, pg, cfg.Outbox.Retention, log)
			return nil
		})
	}

	return g.Wait()
}

func openPersistence(ctx context.Context, cfg config.Server, log *slog.Logger) (*persistence, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set; using in-memory customer store")
		return &persistence{
			customers: customerstore.NewInMemory(),
			outbox:    outboxmemory.New(),
		}, nil
	}

	master, err := cardvault.ParseMasterKey(cfg.CardEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("card encryption key: %w", err)
	}
	vault, err := cardvault.New(master, cfg.CardKeyID)
	if err != nil {
		return nil, fmt.Errorf("card vault: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrations.Apply(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &persistence{
		customers: customerstore.NewPostgres(db, vault),
		outbox:    outboxpostgres.New(db),
		tx:        txcontext.NewPostgres(db),
		db:        db,
	}, nil
}

func openCache(ctx context.Context, cfg config.Server, log *slog.Logger) (service.Cache, func(), error) {
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		log.Info("REDIS_URL not set; using in-process view cache")
		return cache.NewInMemory(cfg.CacheTTL), func() {}, nil
	}
	views := cache.NewGuarded(
		cache.NewRedis(client.Client, cache.WithTTL(cfg.CacheTTL)),
		circuit.New("customer-view-cache"),
		log,
	)
	return views, func() { _ = client.Close() }, nil
}

func startKafka(
	ctx context.Context,
	g *errgroup.Group,
	cfg config.Server,
	log *slog.Logger,
	persist *persistence,
	svc *service.Service,
	m *metrics.Metrics,
) error {
	if err := kafka.EnsureTopics(ctx, cfg.Kafka.Brokers, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor,
		cfg.Kafka.EventsTopic, cfg.Kafka.CardValidationTopic); err != nil {
		return fmt.Errorf("ensure kafka topics: %w", err)
	}

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID)
	if err != nil {
		return fmt.Errorf("kafka producer: %w", err)
	}
	relayOpts := []outbox.RelayOption{
		outbox.WithPollInterval(cfg.Outbox.PollInterval),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithRelayLogger(log),
		outbox.WithObserver(m.ObserveRelay),
	}
	if persist.tx != nil {
		relayOpts = append(relayOpts, outbox.WithTxRunner(persist.tx))
	}
	relay := outbox.NewRelay(persist.outbox, producer, outbox.StaticTopic(cfg.Kafka.EventsTopic), relayOpts...)
	g.Go(func() error {
		defer producer.Close()
		return relay.Run(ctx)
	})

	validations, err := consumer.New(consumer.Config{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.CardValidationGroupID,
		Topics:  []string{cfg.Kafka.CardValidationTopic},
	}, validation.NewHandler(svc, log), log)
	if err != nil {
		return fmt.Errorf("card validation consumer: %w", err)
	}
	g.Go(func() error {
		return validations.Run(ctx)
	})
	return nil
}

// pruneOutbox deletes relayed entries older than retention once an hour.
func pruneOutbox(ctx context.Context, store *outboxpostgres.Store, retention time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.DeleteProcessedBefore(ctx, time.Now().Add(-retention))
			if err != nil {
				log.WarnContext(ctx, "outbox prune failed", "error", err)
				continue
			}
			if n > 0 {
				log.InfoContext(ctx, "outbox pruned", "deleted", n)
			}
		}
	}
}
