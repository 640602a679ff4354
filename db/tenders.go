package db

import (
	"context"
	"time"

	"tendertrack/models"

	"github.com/jmoiron/sqlx"
)

const tenderColumns = `id, identity_key, external_ref, title, organization, description, value, deadline,
	status, source, ai_score, location, assigned_to, link, requirements, upload_id, created_at, updated_at`

// FindTenderByIdentity ищет тендер по ключу идентичности (уникальный индекс).
func (s *Storage) FindTenderByIdentity(ctx context.Context, key string) (*models.Tender, error) {
	t := &models.Tender{}
	query := `SELECT ` + tenderColumns + ` FROM tenders WHERE identity_key=$1`
	if err := s.db.GetContext(ctx, t, query, key); err != nil {
		return nil, classify(err)
	}
	return t, nil
}

// FindTenderByTitle ищет тендер по названию (индекс tenders_title_idx).
// organization != "" сужает поиск до организации. При непустом externalRef
// подходят только записи без номера или с тем же номером.
func (s *Storage) FindTenderByTitle(ctx context.Context, title, organization, externalRef string) (*models.Tender, error) {
	t := &models.Tender{}
	query := `SELECT ` + tenderColumns + ` FROM tenders
        WHERE title = $1
          AND ($2 = '' OR organization = $2)
          AND ($3 = '' OR external_ref = '' OR external_ref = $3)
        ORDER BY id
        LIMIT 1`
	if err := s.db.GetContext(ctx, t, query, title, organization, externalRef); err != nil {
		return nil, classify(err)
	}
	return t, nil
}

// InsertTender сохраняет новый тендер. Нарушение уникальности ключа -> ErrDuplicate.
func (s *Storage) InsertTender(ctx context.Context, t *models.Tender) error {
	query := `
        INSERT INTO tenders
            (identity_key, external_ref, title, organization, description, value, deadline,
             status, source, ai_score, location, assigned_to, link, requirements, upload_id)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING id, created_at, updated_at`
	err := s.db.QueryRowContext(ctx, query,
		t.IdentityKey, t.ExternalRef, t.Title, t.Organization, t.Description, t.Value, t.Deadline,
		t.Status, t.Source, t.AIScore, t.Location, t.AssignedTo, t.Link, t.Requirements, t.UploadID).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	return classify(err)
}

func (s *Storage) GetTender(ctx context.Context, id int64) (*models.Tender, error) {
	t := &models.Tender{}
	query := `SELECT ` + tenderColumns + ` FROM tenders WHERE id=$1`
	if err := s.db.GetContext(ctx, t, query, id); err != nil {
		return nil, classify(err)
	}
	return t, nil
}

// StatusChange описывает переход статуса тендера.
// Переход выполняется только если текущий статус равен From.
type StatusChange struct {
	TenderID   int64
	From       models.TenderStatus
	To         models.TenderStatus
	Deadline   *time.Time // новый дедлайн; nil не меняет
	AssignedTo *string    // исполнитель; nil не меняет
	Log        *models.ActivityLog
}

// UpdateTenderStatus атомарно меняет статус и пишет запись журнала.
func (s *Storage) UpdateTenderStatus(ctx context.Context, ch StatusChange) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
            UPDATE tenders
            SET status = $1,
                deadline = COALESCE($2, deadline),
                assigned_to = COALESCE($3, assigned_to),
                updated_at = NOW()
            WHERE id = $4 AND status = $5`
		res, err := tx.ExecContext(ctx, query, ch.To, ch.Deadline, ch.AssignedTo, ch.TenderID, ch.From)
		if err != nil {
			return classify(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return classify(err)
		}
		if n == 0 {
			return ErrStaleStatus
		}
		if ch.Log == nil {
			return nil
		}
		ch.Log.TenderID = ch.TenderID
		return insertActivityLog(ctx, tx, ch.Log)
	})
}

// ExtendTenderDeadline переносит дедлайн вперед, не трогая статус.
func (s *Storage) ExtendTenderDeadline(ctx context.Context, id int64, deadline time.Time) error {
	query := `UPDATE tenders SET deadline = $1, updated_at = NOW() WHERE id = $2 AND deadline < $1`
	_, err := s.db.ExecContext(ctx, query, deadline, id)
	return classify(err)
}

// ListSweepCandidates отдает активные неназначенные тендеры с истекшим дедлайном.
func (s *Storage) ListSweepCandidates(ctx context.Context, now time.Time) ([]models.Tender, error) {
	query := `SELECT ` + tenderColumns + `
        FROM tenders
        WHERE status = $1
          AND deadline < $2
          AND (assigned_to IS NULL OR assigned_to = '')
        ORDER BY deadline ASC, id ASC`
	tenders := []models.Tender{}
	if err := s.db.SelectContext(ctx, &tenders, query, models.StatusActive, now); err != nil {
		return nil, classify(err)
	}
	return tenders, nil
}

// ListTenders возвращает тендеры, опционально отфильтрованные по статусу.
func (s *Storage) ListTenders(ctx context.Context, status models.TenderStatus, limit, offset int) ([]models.Tender, error) {
	query := `SELECT ` + tenderColumns + ` FROM tenders
        WHERE ($1 = '' OR status = $1)
        ORDER BY deadline ASC, id ASC
        LIMIT $2 OFFSET $3`
	tenders := []models.Tender{}
	if err := s.db.SelectContext(ctx, &tenders, query, string(status), limit, offset); err != nil {
		return nil, classify(err)
	}
	return tenders, nil
}
