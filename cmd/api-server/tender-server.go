package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tendertrack/config"
	"tendertrack/db"
	"tendertrack/db/migrations"
	"tendertrack/internal/handlers"
	"tendertrack/internal/ingest"
	"tendertrack/internal/logger"
	"tendertrack/internal/sweeper"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	lg, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("Cannot create logger: %v", err)
	}
	defer lg.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Connect(ctx, cfg.PostgresConn, cfg.DBConnectAttempts)
	if err != nil {
		lg.Fatal("cannot connect to DB", zap.Error(err))
	}
	defer dbConn.Close()

	if cfg.MigrationsEnabled {
		if err := migrations.Run(dbConn.DB); err != nil {
			lg.Fatal("migrations failed", zap.Error(err))
		}
	}

	store := db.NewStorage(dbConn)
	sw := sweeper.New(store, lg.Named("sweeper"))

	opts := ingest.Options{
		TrackedCompany:    cfg.TrackedCompany,
		ProgressEvery:     cfg.ProgressEvery,
		OpenDeadlineDays:  cfg.OpenDeadlineDays,
		MatchOrganization: cfg.MatchOrganization,
	}
	if cfg.SweepAfterIngest {
		// после загрузки ловим тендеры, чей дедлайн истек, пока они были в файле
		opts.AfterIngest = func(ctx context.Context, _ ingest.Summary) {
			if _, err := sw.Sweep(ctx); err != nil {
				lg.Warn("post-ingest sweep failed", zap.Error(err))
			}
		}
	}
	engine := ingest.NewEngine(store, lg.Named("ingest"), opts)
	h := handlers.NewHandler(store, engine, sw, lg.Named("http"), cfg.MaxUploadBytes)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Route("/api", h.Routes)
	r.Handle("/metrics", promhttp.Handler())

	go sw.Run(ctx, cfg.SweepInterval)

	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.Error("server shutdown", zap.Error(err))
		}
	}()

	lg.Info("starting server", zap.String("addr", cfg.ServerAddress))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		lg.Fatal("server failed", zap.Error(err))
	}
}
