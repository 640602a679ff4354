package db

import (
	"context"

	"tendertrack/models"

	"github.com/jmoiron/sqlx"
)

// RecordUploadAudit добавляет запись аудита загрузки. Записи не изменяются.
func (s *Storage) RecordUploadAudit(ctx context.Context, a *models.UploadAudit) error {
	query := `
        INSERT INTO upload_audits
            (upload_id, file_name, file_path, uploaded_by, kind, entries_added, entries_duplicate,
             entries_errored, total_entries, sheets_processed, status, error_log, started_at, completed_at)
        VALUES
            (:upload_id, :file_name, :file_path, :uploaded_by, :kind, :entries_added, :entries_duplicate,
             :entries_errored, :total_entries, :sheets_processed, :status, :error_log, :started_at, :completed_at)
        RETURNING id, created_at`
	rows, err := s.db.NamedQueryContext(ctx, query, a)
	if err != nil {
		return classify(err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&a.ID, &a.CreatedAt); err != nil {
			return classify(err)
		}
	}
	return classify(rows.Err())
}

func (s *Storage) ListUploadAudits(ctx context.Context, limit, offset int) ([]models.UploadAudit, error) {
	query := `SELECT * FROM upload_audits ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`
	audits := []models.UploadAudit{}
	if err := s.db.SelectContext(ctx, &audits, query, limit, offset); err != nil {
		return nil, classify(err)
	}
	return audits, nil
}

// AppendActivityLog добавляет запись в журнал действий тендера.
func (s *Storage) AppendActivityLog(ctx context.Context, e *models.ActivityLog) error {
	return insertActivityLog(ctx, s.db, e)
}

func (s *Storage) ListActivityLogs(ctx context.Context, tenderID int64) ([]models.ActivityLog, error) {
	query := `SELECT * FROM activity_logs WHERE tender_id=$1 ORDER BY created_at ASC, id ASC`
	logs := []models.ActivityLog{}
	if err := s.db.SelectContext(ctx, &logs, query, tenderID); err != nil {
		return nil, classify(err)
	}
	return logs, nil
}

func insertActivityLog(ctx context.Context, q sqlx.QueryerContext, e *models.ActivityLog) error {
	query := `
        INSERT INTO activity_logs (tender_id, action, from_status, to_status, actor, reason, details)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, created_at`
	err := q.QueryRowxContext(ctx, query,
		e.TenderID, e.Action, e.FromStatus, e.ToStatus, e.Actor, e.Reason, e.Details).
		Scan(&e.ID, &e.CreatedAt)
	return classify(err)
}
