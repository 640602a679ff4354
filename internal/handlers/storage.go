package handlers

import (
	"context"

	"tendertrack/db"
	"tendertrack/internal/ingest"
	"tendertrack/internal/sweeper"
	"tendertrack/models"
)

type StorageInterface interface {
	Ping(ctx context.Context) error

	GetTender(ctx context.Context, id int64) (*models.Tender, error)
	ListTenders(ctx context.Context, status models.TenderStatus, limit, offset int) ([]models.Tender, error)
	UpdateTenderStatus(ctx context.Context, ch db.StatusChange) error

	ListUploadAudits(ctx context.Context, limit, offset int) ([]models.UploadAudit, error)
	ListActivityLogs(ctx context.Context, tenderID int64) ([]models.ActivityLog, error)
}

// Движок загрузки файлов (*ingest.Engine)
type Ingester interface {
	Ingest(ctx context.Context, up ingest.Upload) (ingest.Summary, error)
}

// Проход по просроченным тендерам (*sweeper.Sweeper)
type Sweeper interface {
	Sweep(ctx context.Context) (sweeper.Result, error)
}

var (
	_ StorageInterface = (*db.Storage)(nil)
	_ Ingester         = (*ingest.Engine)(nil)
	_ Sweeper          = (*sweeper.Sweeper)(nil)
)
