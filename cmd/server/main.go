package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	adminhandler "consentry/internal/admin/handler"
	consenthandler "consentry/internal/consent/handler"
	consentstore "consentry/internal/consent/store"
	"consentry/internal/enrichment"
	"consentry/internal/enrichment/cache"
	"consentry/internal/enrichment/gemini"
	"consentry/internal/events"
	"consentry/internal/events/kafka"
	"consentry/internal/platform/config"
	"consentry/internal/platform/database"
	"consentry/internal/platform/httpserver"
	"consentry/internal/platform/logger"
	"consentry/internal/platform/metrics"
	"consentry/internal/platform/redis"
	revocationhandler "consentry/internal/revocation/handler"
	"consentry/internal/revocation/service"
	revocationstore "consentry/internal/revocation/store"
	"consentry/pkg/platform/middleware"
	"consentry/pkg/platform/middleware/auth"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "consentry: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence: Postgres when configured, in-memory otherwise so local
	// development needs no external services.
	var (
		revStore     revocationstore.Store
		consentStore consentstore.Store
	)
	if cfg.PostgresURL != "" {
		db, err := database.Open(ctx, cfg.PostgresURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if cfg.DevSeed {
			if err := database.Seed(ctx, db); err != nil {
				return fmt.Errorf("seed database: %w", err)
			}
			log.Info("development fixtures seeded")
		}
		revStore = revocationstore.NewPostgres(db)
		consentStore = consentstore.NewPostgres(db)
	} else {
		log.Warn("no postgres configured, using in-memory stores")
		revStore = revocationstore.NewMemory()
		consentStore = consentstore.NewMemory()
	}

	// Enrichment cache: shared Redis when configured, per-process LRU
	// otherwise. Both honor the same freshness window.
	var enrichCache cache.Cache
	rdb, err := redis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		defer rdb.Close()
		enrichCache = cache.NewRedis(rdb.Client, log)
		log.Info("enrichment cache backed by redis")
	} else {
		enrichCache = cache.NewMemory(cfg.Analyzer.CacheSize)
	}

	analyzer := gemini.New(cfg.Analyzer.BaseURL, cfg.Analyzer.APIKey, cfg.Analyzer.Model)
	generator := enrichment.NewGenerator(analyzer, enrichCache, log, enrichment.WithMetrics(m))

	broadcaster := events.NewBroadcaster(log, m)
	var publisher events.Publisher = broadcaster
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaPub, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kafkaPub.Close()
		publisher = events.MultiPublisher{broadcaster, kafkaPub}
		log.Info("mirroring events to kafka", "topic", cfg.Kafka.Topic)
	}

	pipeline := service.New(revStore, generator, publisher, log, m, enrichment.Options{
		Timeout:    cfg.Analyzer.Timeout,
		MaxRetries: cfg.Analyzer.MaxRetries,
		UseCache:   cfg.Analyzer.UseCache,
	})

	tokens := auth.NewManager(cfg.JWTSigningKey, 0)
	admin, err := adminhandler.New(pipeline, tokens, log, cfg.Admin.Username, cfg.Admin.Password)
	if err != nil {
		return fmt.Errorf("configure admin handler: %w", err)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(log))

	revocationhandler.New(pipeline, log).Register(router)
	consenthandler.New(consentStore, log).Register(router)
	events.NewHandler(broadcaster, log).Register(router)
	admin.Register(router)

	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if rdb != nil {
			if err := rdb.Health(r.Context()); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting consentry", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown failed", "error", err)
		}
		// Let in-flight enrichment finish so no audit entry is left pending
		// when a fallback could have completed it.
		if err := pipeline.Close(shutdownCtx); err != nil {
			log.Error("pipeline drain incomplete", "error", err)
		}
		broadcaster.Close()
		return nil
	})

	return g.Wait()
}
