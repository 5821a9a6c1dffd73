// Package main provides the automation server entry point. The server hosts
// the webhook ingest endpoint, the rule management API, the delivery history
// API, and tenant credential management under a single process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/coreanq/deliver-mgmt-sub001/pkg/credentials"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/dispatch"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/metrics"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/rules"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/solapi"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/tenancy"
	"github.com/coreanq/deliver-mgmt-sub001/pkg/webhook"
)

func main() {
	var (
		listenAddr   string
		databaseType string
		databaseDSN  string
	)

	flag.StringVar(&listenAddr, "listen", ":8080", "Address to listen on")
	flag.StringVar(&databaseType, "db-type", "sqlite", "Database type (sqlite or postgres)")
	flag.StringVar(&databaseDSN, "db-dsn", "", "Database connection string")
	flag.Parse()

	// Initialize glog for backwards compatibility
	_ = flag.Set("logtostderr", "true")

	// Set up structured logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := webhook.ConfigFromEnv()

	logger.Info("starting automation server",
		"listen", listenAddr,
		"dbType", databaseType,
		"dispatchConcurrency", cfg.DispatchConcurrency,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	gormDB, err := setupDatabase(databaseType, databaseDSN)
	if err != nil {
		glog.Fatalf("Failed to connect to database: %v", err)
	}

	ruleStore := rules.NewRuleStore(gormDB)
	if err := ruleStore.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate rule tables: %v", err)
	}
	credStore := credentials.NewStore(gormDB)
	if err := credStore.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate credential table: %v", err)
	}
	attemptStore := dispatch.NewAttemptStore(gormDB)
	if err := attemptStore.AutoMigrate(); err != nil {
		glog.Fatalf("Failed to migrate delivery attempts table: %v", err)
	}

	metrics.Register()

	var solapiOpts []solapi.Option
	if base := os.Getenv("SOLAPI_BASE_URL"); base != "" {
		solapiOpts = append(solapiOpts, solapi.WithBaseURL(base))
	}
	sender := solapi.NewClient(solapiOpts...)

	tokens := credentials.NewCachingTokenSource(
		credentials.NewStoreTokenSource(credStore), 1000, 5*time.Minute)

	dispatcher := dispatch.NewDispatcher(sender, attemptStore, cfg.DispatchTimeout, logger)
	ingestor := webhook.NewIngestor(ruleStore, tokens, dispatcher, cfg.DispatchConcurrency, logger)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", tenancy.TenantHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Route("/api/automation/v1", func(r chi.Router) {
		// Webhook ingest carries its tenant routing in the payload itself,
		// so it is mounted outside the tenancy middleware.
		r.Mount("/webhook", webhook.Router(ingestor))

		r.Group(func(r chi.Router) {
			r.Use(tenancy.NewMiddleware())
			r.Mount("/rules", rules.Router(ruleStore))
			r.Mount("/deliveries", dispatch.Router(attemptStore))
			r.Mount("/credentials", credentials.Router(credStore, tokens.Invalidate))
		})
	})

	logger.Info("automation server ready", "listen", listenAddr)

	httpServer := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			glog.Fatalf("HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("automation server stopped")
}

func setupDatabase(dbType, dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = os.Getenv("DATABASE_DSN")
	}
	if dbType == "" {
		dbType = os.Getenv("DATABASE_TYPE")
		if dbType == "" {
			dbType = "sqlite"
		}
	}

	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	switch dbType {
	case "sqlite":
		if dsn == "" {
			dsn = "automation.db"
		}
		return gorm.Open(sqlite.Open(dsn), gormCfg)
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("database DSN is required for postgres (use -db-dsn flag or DATABASE_DSN environment variable)")
		}
		return gorm.Open(postgres.Open(dsn), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database type %q (expected sqlite or postgres)", dbType)
	}
}
