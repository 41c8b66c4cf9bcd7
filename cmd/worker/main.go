package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/handler/health"
	promhandler "github.com/jwalitptl/clinic-api/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-api/internal/notification"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/service/audit"
	"github.com/jwalitptl/clinic-api/internal/worker"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	outbox "github.com/jwalitptl/clinic-api/pkg/worker"
)

func main() {
	var (
		configPaths []string
		healthAddr  string
	)
	cmd := &cobra.Command{
		Use:           "clinic-worker",
		Short:         "Relay outbox events, send notifications and prune the audit trail",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				log.Warn().Err(err).Msg("failed to read .env")
			}
			cfg, err := config.LoadConfig(configPaths...)
			if err != nil {
				log.Error().Err(err).Msg("failed to load configuration")
				return err
			}
			zl, err := logger.Setup(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, logger.New(zl), healthAddr)
		},
	}
	cmd.Flags().StringSliceVar(&configPaths, "config-path", nil, "directories searched for config.yaml")
	cmd.Flags().StringVar(&healthAddr, "health-addr", ":8081", "listen address for health and metrics")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("worker failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, wlog *logger.Logger, healthAddr string) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		wlog.Error(err, "failed to connect to database")
		return err
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.Metrics.Namespace, reg)

	broker, err := newBroker(ctx, cfg, wlog, m)
	if err != nil {
		return err
	}
	defer broker.Close()

	processor := outbox.NewOutboxProcessor(
		postgres.NewTxManager(db),
		postgres.NewOutboxRepository(db),
		broker,
		outbox.OutboxProcessorConfig{
			Channel:       cfg.Redis.Channel,
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  cfg.Outbox.PollInterval,
			RetryAttempts: cfg.Outbox.RetryAttempts,
			RetryDelay:    cfg.Outbox.RetryDelay,
		},
		wlog,
		m,
	)

	var mailer notification.Mailer
	if cfg.SMTP.Enabled {
		mailer = notification.NewSMTPMailer(cfg.SMTP)
	}
	notifier := notification.NewNotifier(mailer, cfg.SMTP.Enabled, wlog)

	cleaner := worker.NewAuditCleanupWorker(
		audit.NewService(postgres.NewAuditRepository(db), nil),
		cfg.Audit.RetentionDays,
		cfg.Audit.CleanupInterval,
		wlog,
	)

	srv := healthServer(healthAddr, db, reg, cfg.Metrics)

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := messaging.Consume(ctx, broker, cfg.Redis.Channel, notifier.Handle, wlog.Named("notifier").Zerolog()); err != nil {
			wlog.Error(err, "notification consumer stopped")
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		cleaner.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wlog.Error(err, "health server failed")
			stop()
		}
	}()

	wlog.Info("worker started", "channel", cfg.Redis.Channel)
	<-ctx.Done()
	wlog.Info("shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	wg.Wait()
	return nil
}

// newBroker connects to Redis. Without a Redis URL the relay and the
// notifier share an in-process broker.
func newBroker(ctx context.Context, cfg *config.Config, wlog *logger.Logger, m *metrics.Metrics) (messaging.Broker, error) {
	if cfg.Redis.URL == "" {
		wlog.Info("no redis configured, using in-process broker")
		return messaging.NewMemoryBroker(), nil
	}
	broker, err := redis.NewRedisBroker(ctx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, wlog.Named("redis").Zerolog(), m)
	if err != nil {
		wlog.Error(err, "failed to create redis broker")
		return nil, err
	}
	return broker, nil
}

func healthServer(addr string, db health.Pinger, reg prometheus.Gatherer, mc config.MetricsConfig) *http.Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(db).RegisterRoutes(engine)
	if mc.Enabled {
		promhandler.New(reg).RegisterRoutes(engine, mc.Path)
	}
	return &http.Server{Addr: addr, Handler: engine}
}
