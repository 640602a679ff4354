package ingest

import (
	"context"
	"time"

	"tendertrack/db"
	"tendertrack/models"
)

// Контракт хранилища для движка загрузки (реализуется *db.Storage)
type Store interface {
	FindTenderByIdentity(ctx context.Context, key string) (*models.Tender, error)
	FindTenderByTitle(ctx context.Context, title, organization, externalRef string) (*models.Tender, error)
	InsertTender(ctx context.Context, t *models.Tender) error
	FindResultByIdentity(ctx context.Context, key string) (*models.TenderResult, error)
	FindResultByTitle(ctx context.Context, title, organization, referenceNo string) (*models.TenderResult, error)
	InsertResult(ctx context.Context, r *models.TenderResult) error
	UpdateTenderStatus(ctx context.Context, ch db.StatusChange) error
	ExtendTenderDeadline(ctx context.Context, id int64, deadline time.Time) error
	RecordUploadAudit(ctx context.Context, a *models.UploadAudit) error
}

var _ Store = (*db.Storage)(nil)
