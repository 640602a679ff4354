package db

import (
	"context"

	"tendertrack/models"
)

const resultColumns = `id, identity_key, tender_title, organization, reference_no, location, department,
	tender_value, contract_value, marginal_difference, awarded_to, participator_bidders, result_date,
	status, ai_match_score, company_eligible, upload_id, created_at`

func (s *Storage) FindResultByIdentity(ctx context.Context, key string) (*models.TenderResult, error) {
	r := &models.TenderResult{}
	query := `SELECT ` + resultColumns + ` FROM tender_results WHERE identity_key=$1`
	if err := s.db.GetContext(ctx, r, query, key); err != nil {
		return nil, classify(err)
	}
	return r, nil
}

// FindResultByTitle ищет результат по названию тендера, по тем же правилам, что FindTenderByTitle.
func (s *Storage) FindResultByTitle(ctx context.Context, title, organization, referenceNo string) (*models.TenderResult, error) {
	r := &models.TenderResult{}
	query := `SELECT ` + resultColumns + ` FROM tender_results
        WHERE tender_title = $1
          AND ($2 = '' OR organization = $2)
          AND ($3 = '' OR reference_no = '' OR reference_no = $3)
        ORDER BY id
        LIMIT 1`
	if err := s.db.GetContext(ctx, r, query, title, organization, referenceNo); err != nil {
		return nil, classify(err)
	}
	return r, nil
}

// InsertResult сохраняет результат тендера. Нарушение уникальности ключа -> ErrDuplicate.
func (s *Storage) InsertResult(ctx context.Context, r *models.TenderResult) error {
	query := `
        INSERT INTO tender_results
            (identity_key, tender_title, organization, reference_no, location, department,
             tender_value, contract_value, marginal_difference, awarded_to, participator_bidders,
             result_date, status, ai_match_score, company_eligible, upload_id)
        VALUES
            ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
        RETURNING id, created_at`
	err := s.db.QueryRowContext(ctx, query,
		r.IdentityKey, r.TenderTitle, r.Organization, r.ReferenceNo, r.Location, r.Department,
		r.TenderValue, r.ContractValue, r.MarginalDifference, r.AwardedTo, r.ParticipatorBidders,
		r.ResultDate, r.Status, r.AIMatchScore, r.CompanyEligible, r.UploadID).
		Scan(&r.ID, &r.CreatedAt)
	return classify(err)
}
