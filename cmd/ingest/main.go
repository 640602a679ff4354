package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"tendertrack/config"
	"tendertrack/db"
	"tendertrack/db/migrations"
	"tendertrack/internal/ingest"
	"tendertrack/internal/logger"
	"tendertrack/internal/sweeper"
	"tendertrack/models"

	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		file     = flag.String("file", "", "path to the .xlsx workbook")
		kind     = flag.String("kind", string(models.KindAuto), "workbook contents: auto, tenders or results")
		user     = flag.String("user", "cli", "uploader recorded in the audit log")
		sweep    = flag.Bool("sweep", false, "run the missed-opportunity sweep after ingestion")
		progress = flag.Bool("progress", false, "print progress updates to stderr")
	)
	flag.Parse()

	if *file == "" {
		flag.Usage()
		return fmt.Errorf("-file is required")
	}
	switch models.UploadKind(*kind) {
	case models.KindAuto, models.KindTenders, models.KindResults:
	default:
		return fmt.Errorf("invalid -kind %q", *kind)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	lg, err := logger.New(cfg.AppEnv)
	if err != nil {
		return err
	}
	defer lg.Sync() //nolint:errcheck

	data, err := os.ReadFile(*file)
	if err != nil {
		return fmt.Errorf("read workbook: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.Connect(ctx, cfg.PostgresConn, cfg.DBConnectAttempts)
	if err != nil {
		return err
	}
	defer conn.Close()
	if cfg.MigrationsEnabled {
		if err := migrations.Run(conn.DB); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
	}
	store := db.NewStorage(conn)

	engine := ingest.NewEngine(store, lg.Named("ingest"), ingest.Options{
		TrackedCompany:    cfg.TrackedCompany,
		ProgressEvery:     cfg.ProgressEvery,
		OpenDeadlineDays:  cfg.OpenDeadlineDays,
		MatchOrganization: cfg.MatchOrganization,
	})

	up := ingest.Upload{
		Data:       data,
		FileName:   filepath.Base(*file),
		FilePath:   *file,
		UploadedBy: *user,
		Kind:       models.UploadKind(*kind),
	}
	if *progress {
		up.Progress = ingest.ProgressFunc(func(u ingest.ProgressUpdate) {
			fmt.Fprintf(os.Stderr, "%s: %d/%d (%.0f%%)\n", u.Sheet, u.Processed, u.Total, u.Percentage)
		})
	}

	sum, ingestErr := engine.Ingest(ctx, up)
	out := map[string]any{"summary": sum}

	if *sweep && ingestErr == nil {
		res, err := sweeper.New(store, lg.Named("sweeper")).Sweep(ctx)
		if err != nil {
			lg.Error("sweep failed", zap.Error(err))
		} else {
			out["sweep"] = res
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	return ingestErr
}
