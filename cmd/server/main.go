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

	"steward/internal/authenticity"
	electionstore "steward/internal/election/store"
	"steward/internal/platform/config"
	"steward/internal/platform/httpserver"
	"steward/internal/platform/logger"
	"steward/internal/platform/middleware"
	"steward/internal/platform/postgres"
	platformredis "steward/internal/platform/redis"
	"steward/internal/platform/token"
	"steward/internal/reconcile"
	"steward/internal/rules"
	"steward/internal/steward/handler"
	"steward/internal/steward/lock"
	"steward/internal/steward/metrics"
	"steward/internal/steward/service"
	auditrunstore "steward/internal/steward/store/auditrun"
	policystore "steward/internal/steward/store/policy"
	"steward/pkg/platform/events"
)

// main wires dependencies and owns the process lifecycle. Business logic
// lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ruleCfg, err := config.LoadRules(cfg.RulesPath)
	if err != nil {
		log.Error("load rules config", "path", cfg.RulesPath, "error", err)
		os.Exit(1)
	}

	// Stores: PostgreSQL when configured, in-memory for local development.
	var (
		records   electionstore.RecordStore
		policies  policystore.Store
		auditRuns auditrunstore.Store
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(context.Background(), db); err != nil {
			log.Error("ensure schema", "error", err)
			os.Exit(1)
		}
		records = electionstore.NewPostgres(db)
		policies = policystore.NewPostgres(db)
		auditRuns = auditrunstore.NewPostgres(db)
	} else {
		log.Warn("no database configured, using in-memory stores")
		records = electionstore.NewInMemoryStore()
		policies = policystore.NewInMemoryStore()
		auditRuns = auditrunstore.NewInMemoryStore()
	}

	// Remediation lock: Redis for multi-instance deployments, in-process
	// otherwise.
	var runLock lock.RunLock = lock.NewInProcess()
	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		runLock = lock.NewRedis(redisClient.Client, 0)
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := events.NewKafka(context.Background(), cfg.KafkaBrokers, cfg.KafkaTopic,
			events.WithLogger(log))
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kafka.Close()
		publisher = kafka
	}

	validator := rules.New(rules.Config{SaturdayJurisdictions: ruleCfg.SaturdaySet()})
	classifier := authenticity.New(authenticity.Config{
		VerifiedPollingSources: ruleCfg.VerifiedPollingSources,
		OfficialResultSources:  ruleCfg.OfficialResultSources,
		PollingMaxAge:          time.Duration(ruleCfg.PollingMaxAgeDays) * 24 * time.Hour,
	})
	reconciler := reconcile.New(records,
		reconcile.WithLogger(log),
		reconcile.WithConfig(reconcile.Config{
			Threshold: ruleCfg.MatchThreshold,
			TieMargin: ruleCfg.MatchTieMargin,
		}),
	)

	svc, err := service.New(records, policies, auditRuns, validator, classifier, reconciler, runLock,
		service.WithLogger(log),
		service.WithMetrics(metrics.New()),
		service.WithPublisher(publisher),
		service.WithCoverageWindow(time.Duration(ruleCfg.CoverageWindowDays)*24*time.Hour),
	)
	if err != nil {
		log.Error("build steward service", "error", err)
		os.Exit(1)
	}
	if err := svc.RegisterPolicies(context.Background()); err != nil {
		log.Error("register policies", "error", err)
		os.Exit(1)
	}

	tokenValidator := token.NewValidator(cfg.JWTSigningKey)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recover(log))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	handler.New(svc, log, middleware.RequireAdmin(tokenValidator, log)).Register(r)

	srv := httpserver.New(cfg.Addr, r)

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	go service.NewScheduler(svc, cfg.AuditInterval, cfg.AuditDryRun).Run(schedulerCtx)

	go func() {
		log.Info("starting steward", "addr", cfg.Addr, "audit_interval", cfg.AuditInterval)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	stopScheduler()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("steward stopped")
}
