package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"equilens/internal/biasaudit/cache"
	audithandler "equilens/internal/biasaudit/handler"
	auditmetrics "equilens/internal/biasaudit/metrics"
	auditservice "equilens/internal/biasaudit/service"
	auditstore "equilens/internal/biasaudit/store"
	"equilens/internal/events"
	"equilens/internal/jwtauth"
	"equilens/internal/platform/config"
	"equilens/internal/platform/httpserver"
	"equilens/internal/platform/logger"
	"equilens/internal/platform/middleware"
	"equilens/internal/platform/postgres"
	platformredis "equilens/internal/platform/redis"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store: PostgreSQL when configured, in-memory otherwise.
	var st auditstore.Store
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		pg := auditstore.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("schema setup failed", "error", err)
			os.Exit(1)
		}
		st = pg
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store")
		st = auditstore.NewInMemory()
	}

	// Optional Redis result cache.
	var resultCache *cache.ResultCache
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		resultCache = cache.New(redisClient.Client, cfg.ResultCacheTTL, log)
	}

	// Optional Kafka audit event publisher.
	var publisher events.Publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPublisher, err := events.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		publisher = kafkaPublisher
	}
	defer publisher.Close()

	m := auditmetrics.New()
	svc, err := auditservice.New(st, log,
		auditservice.WithCache(resultCache),
		auditservice.WithPublisher(publisher),
		auditservice.WithMetrics(m),
		auditservice.WithQueueDepth(cfg.QueueDepth),
	)
	if err != nil {
		log.Error("service setup failed", "error", err)
		os.Exit(1)
	}

	jwtService := jwtauth.NewService(cfg.JWTSigningKey, "equilens")

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestLogger(log))
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(jwtService, log))
		audithandler.New(svc, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.AuditWorkers; i++ {
		worker := auditservice.NewWorker(svc)
		group.Go(func() error {
			if err := worker.Run(groupCtx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	group.Go(func() error {
		log.Info("starting equilens", "addr", cfg.Addr, "workers", cfg.AuditWorkers)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
