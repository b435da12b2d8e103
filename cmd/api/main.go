package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/mindflowhq/sanctuary-engine/cmd/mainconfig"
	"github.com/mindflowhq/sanctuary-engine/internal/api/router"
	"github.com/mindflowhq/sanctuary-engine/internal/audit"
	appconfig "github.com/mindflowhq/sanctuary-engine/internal/config"
	"github.com/mindflowhq/sanctuary-engine/internal/engine"
	"github.com/mindflowhq/sanctuary-engine/internal/escalation"
	"github.com/mindflowhq/sanctuary-engine/internal/http/handlers"
	"github.com/mindflowhq/sanctuary-engine/internal/notify"
	"github.com/mindflowhq/sanctuary-engine/internal/observability/metrics"
	"github.com/mindflowhq/sanctuary-engine/internal/transcript"
	"github.com/mindflowhq/sanctuary-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting sanctuary-engine API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Transcript store (optional)
	var transcripts *transcript.Store
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		redisClient := redis.NewClient(opts)
		defer func() { _ = redisClient.Close() }()
		transcripts = transcript.NewStore(redisClient)
		logger.Info("transcript store enabled", "addr", cfg.RedisAddr)
	}

	// Audit sink: postgres when configured, structured logs otherwise
	var sink audit.Sink
	var auditStore *audit.PostgresStore
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer func() { _ = db.Close() }()
		if err := db.PingContext(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}
		auditStore = audit.NewPostgresStore(db)
		sink = auditStore
	} else {
		logger.Warn("DATABASE_URL not set, audit events go to logs only")
		sink = audit.NewLogSink(logger)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	engineMetrics := metrics.NewEngineMetrics(registry)

	// Audit queue: in-process by default, SQS when configured
	var dispatcher *audit.Dispatcher
	if cfg.UseMemoryQueue || cfg.AuditQueueURL == "" {
		dispatcher = audit.NewDispatcher(audit.NewMemoryQueue(0), sink, engineMetrics, logger)
	} else {
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			logger.Error("failed to load AWS config", "error", err)
			os.Exit(1)
		}
		sqsClient := awssqs.NewFromConfig(awsCfg)
		dispatcher = audit.NewDispatcher(audit.NewSQSQueue(sqsClient, cfg.AuditQueueURL), sink, engineMetrics, logger)
		logger.Info("audit queue enabled", "queue_url", cfg.AuditQueueURL)
	}
	dispatcher.Start(ctx)
	defer dispatcher.Close()

	// Human hand-off alerting
	var sender notify.EmailSender
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	}
	notifier := notify.NewService(sender, cfg.OnCallEmail, cfg.OnCallName, logger)

	coordinator := escalation.NewCoordinator(dispatcher, notifier, logger)

	eng := engine.New(engine.Options{
		Coordinator:    coordinator,
		Transcripts:    transcripts,
		Metrics:        engineMetrics,
		Logger:         logger,
		DefaultRegion:  cfg.DefaultRegion,
		ConsentTimeout: cfg.ConsentTimeout,
		CalmStreak:     cfg.CalmStreak,
	})
	defer eng.Close()

	routerCfg := &router.Config{
		Logger:               logger,
		Sessions:             handlers.NewSessionHandler(eng, logger),
		AdminAudit:           handlers.NewAdminAuditHandler(auditStore, logger),
		AdminAuthSecret:      cfg.AdminJWTSecret,
		MetricsHandler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		MessageRatePerSecond: 5,
		MessageRateBurst:     10,
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
