package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	expHandler "splitlab/internal/experiment/handler"
	expMetrics "splitlab/internal/experiment/metrics"
	"splitlab/internal/experiment/scheduler"
	"splitlab/internal/experiment/service"
	"splitlab/internal/experiment/stats"
	"splitlab/internal/experiment/store"
	httpapi "splitlab/internal/http"
	"splitlab/internal/platform/config"
	"splitlab/internal/platform/httpserver"
	"splitlab/internal/platform/kafka"
	"splitlab/internal/platform/logger"
	"splitlab/internal/platform/postgres"
	redisplatform "splitlab/internal/platform/redis"
)

// main wires dependencies and owns the process lifecycle. Postgres, Redis,
// and Kafka are all optional: without them the engine runs on memory stores
// with an in-process event sink, which is the single-binary dev setup.
func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(cfg.PostgresURL)
	if err != nil {
		log.Error("postgres unavailable", "error", err)
		os.Exit(1)
	}

	redisClient, err := redisplatform.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}

	var (
		experiments service.ExperimentStore
		assignments service.AssignmentStore
		conversions service.ConversionStore
	)
	if db != nil {
		experiments = store.NewPostgresExperimentStore(db)
		assignments = store.NewPostgresAssignmentStore(db)
		conversions = store.NewPostgresConversionStore(db)
	} else {
		log.Warn("no postgres configured, using in-memory stores")
		memAssignments := store.NewMemoryAssignmentStore()
		experiments = store.NewMemoryExperimentStore()
		assignments = memAssignments
		conversions = store.NewMemoryConversionStore(memAssignments)
	}

	var cache service.StickyCache
	if redisClient != nil {
		cache = store.NewRedisStickyCache(redisClient.Client)
	} else {
		cache = store.NewMemoryStickyCache()
	}

	var publisher service.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := kafka.NewPublisher(ctx, cfg.Kafka, kafka.WithLogger(log))
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	m := expMetrics.New()
	svc := service.New(experiments, assignments, conversions,
		service.WithLogger(log),
		service.WithStickyCache(cache),
		service.WithPublisher(publisher),
		service.WithMetrics(m),
		service.WithAnalyzer(stats.New(stats.WithSamples(cfg.AnalysisSamples))),
	)

	checks := []httpapi.HealthCheck{}
	if db != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "postgres", Probe: db.PingContext})
	}
	if redisClient != nil {
		checks = append(checks, httpapi.HealthCheck{Name: "redis", Probe: redisClient.Health})
	}

	router := httpapi.NewRouter(expHandler.New(svc, log), log, checks...)
	srv := httpserver.New(cfg.Addr, cfg.HTTP, router)

	// periodic early-stopping sweep
	sched := scheduler.New(svc, svc, cfg.EvaluationInterval, scheduler.WithLogger(log))
	go func() {
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("scheduler stopped", "error", err)
		}
	}()

	go func() {
		log.Info("starting splitlab", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if db != nil {
		_ = db.Close()
	}
}
