// Command server wires the audit and recovery service: config, logging,
// postgres, migrations, the audit pipeline, domain services, and the HTTP
// router with its middleware chain.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"ams/internal/account"
	accountpg "ams/internal/account/store/postgres"
	"ams/internal/audit"
	"ams/internal/audit/compact"
	"ams/internal/audit/redact"
	"ams/internal/audit/sign"
	auditpg "ams/internal/audit/store/postgres"
	applicantpg "ams/internal/applicant/store/postgres"
	"ams/internal/batch"
	"ams/internal/journal"
	"ams/internal/platform/config"
	"ams/internal/platform/httpserver"
	"ams/internal/platform/logger"
	"ams/internal/platform/metrics"
	"ams/internal/platform/middleware"
	"ams/internal/platform/migrate"
	"ams/internal/recovery"
	recoverypg "ams/internal/recovery/store/postgres"
	"ams/pkg/sqltx"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if cfg.Database.Migrate {
		if err := migrate.Up(ctx, db); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	m := metrics.New(nil)
	runner := sqltx.NewDB(db)

	compactCfg := compact.DefaultConfig()
	compactCfg.MaxBytes = cfg.Audit.PayloadBudget
	compactCfg.StringLimit = cfg.Audit.StringLimit
	compactCfg.ListLimit = cfg.Audit.ListLimit

	audits := auditpg.New(db)
	writer, err := audit.NewWriter(
		audits,
		redact.New(redact.DefaultConfig()),
		compact.New(compactCfg),
		sign.New(cfg.Audit.SigningSecret),
		m,
		log,
	)
	if err != nil {
		return err
	}

	applicants := applicantpg.New(db)
	requests := recoverypg.New(db)
	users := accountpg.New(db)

	batchSvc, err := batch.NewService(applicants, writer, runner, log)
	if err != nil {
		return err
	}
	recoverySvc, err := recovery.NewService(audits, writer, applicants, requests, runner, log)
	if err != nil {
		return err
	}
	tokens := account.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.SessionTTL)
	accountSvc, err := account.NewService(users, writer, tokens, runner, log)
	if err != nil {
		return err
	}

	journalHandler := journal.NewHandler(audits, writer, log)
	recoveryHandler := recovery.NewHandler(recoverySvc, m, log)
	batchHandler := batch.NewHandler(batchSvc, m, log)
	accountHandler := account.NewHandler(accountSvc, log)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Provenance)
	router.Use(middleware.ClientMetadata)
	router.Use(middleware.Logger(log))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())
	accountHandler.RegisterPublic(router)

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireActor(tokens, log))
		journalHandler.Register(r)
		recoveryHandler.Register(r)
		batchHandler.Register(r)
		accountHandler.Register(r)
	})

	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
