package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"verimed/internal/cascade"
	"verimed/internal/crypto"
	"verimed/internal/export"
	exportpg "verimed/internal/export/store/postgres"
	"verimed/internal/jwttoken"
	"verimed/internal/patient"
	patienthandler "verimed/internal/patient/handler"
	patientpg "verimed/internal/patient/store/postgres"
	"verimed/internal/pipeline"
	pipelinemetrics "verimed/internal/pipeline/metrics"
	"verimed/internal/platform/config"
	"verimed/internal/platform/database"
	"verimed/internal/platform/httpserver"
	"verimed/internal/platform/logger"
	"verimed/internal/platform/metrics"
	platformredis "verimed/internal/platform/redis"
	"verimed/internal/sensitive"
	sensitivehandler "verimed/internal/sensitive/handler"
	"verimed/internal/sensitive/throttle"
	httptransport "verimed/internal/transport/http"
	"verimed/internal/verification"
	verificationhandler "verimed/internal/verification/handler"
	verificationpg "verimed/internal/verification/store/postgres"
	"verimed/pkg/platform/audit"
	auditmemory "verimed/pkg/platform/audit/store/memory"
	auditpg "verimed/pkg/platform/audit/store/postgres"
	"verimed/pkg/platform/tx"
)

// main wires dependencies and owns the server lifecycle. Business logic
// lives in the internal services packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New()

	cryptoSvc, err := crypto.New(cfg.MasterSecret, crypto.WithIterations(cfg.KDFIterations))
	if err != nil {
		log.Error("crypto init failed", "error", err)
		os.Exit(1)
	}

	// Stores: PostgreSQL when a database URL is configured, otherwise the
	// in-process implementations.
	var (
		db                *sql.DB
		verificationStore verification.Store
		patientStore      patient.Store
		snapshotStore     export.Store
		auditStore        audit.Store
		unitOfWork        cascade.UnitOfWork
	)
	if cfg.DatabaseURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		db, err = database.Open(ctx, cfg.DatabaseURL)
		cancel()
		if err != nil {
			log.Error("database open failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
		err = database.Migrate(migrateCtx, db)
		cancelMigrate()
		if err != nil {
			log.Error("schema migration failed", "error", err)
			os.Exit(1)
		}

		verificationStore = verificationpg.New(db)
		patientStore = patientpg.New(db)
		snapshotStore = exportpg.New(db)
		auditStore = auditpg.New(db)
		unitOfWork = func(ctx context.Context, fn func(ctx context.Context) error) error {
			return tx.Run(ctx, db, fn)
		}
	} else {
		verificationStore = verification.NewInMemoryStore()
		patientStore = patient.NewInMemoryStore()
		snapshotStore = export.NewInMemoryStore()
		auditStore = auditmemory.New()
		unitOfWork = cascade.Passthrough
		log.Warn("DATABASE_URL not set, using in-process stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	var throttleStore throttle.Store
	if redisClient != nil {
		defer redisClient.Close()
		throttleStore = throttle.NewRedisStore(redisClient.Client)
	} else {
		throttleStore = throttle.NewInMemoryStore()
		log.Warn("REDIS_URL not set, reveal throttling is per-process")
	}

	recorder := audit.NewRecorder(auditStore, log)

	verificationSvc := verification.NewService(verificationStore, recorder, log)
	patientSvc := patient.NewService(patientStore, cryptoSvc, log)
	sensitiveSvc := sensitive.NewService(patientStore, cryptoSvc, throttleStore, recorder, log,
		sensitive.WithLockout(cfg.RevealMaxFailures, cfg.RevealLockWindow))
	orchestrator := pipeline.NewOrchestrator(verificationSvc, patientStore, snapshotStore,
		recorder, pipelinemetrics.New(), log)
	coordinator := cascade.NewCoordinator(verificationStore, snapshotStore, patientStore,
		auditStore, recorder, unitOfWork, log)

	tokenSvc := jwttoken.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:       log,
		Metrics:      metrics.New(),
		JWTValidator: jwttoken.NewMiddlewareAdapter(tokenSvc),

		Verification: verificationhandler.New(verificationSvc, orchestrator, cfg.DataMode, log),
		Sensitive:    sensitivehandler.New(sensitiveSvc, patientSvc, log),
		Patient:      patienthandler.New(patientSvc, coordinator, log),
	})

	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("server starting", "addr", cfg.Addr, "pms_data_mode", cfg.DataMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
