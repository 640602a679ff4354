package models

import (
	"time"

	"github.com/lib/pq"
)

type (
	TenderStatus string // Статус тендера (и результата относительно отслеживаемой компании)
	TenderSource string // Канал публикации тендера
	UploadStatus string // Итог загрузки файла
	UploadKind   string // Что содержит загружаемый файл
)

const (
	StatusDraft             TenderStatus = "draft"
	StatusActive            TenderStatus = "active"
	StatusAssigned          TenderStatus = "assigned"
	StatusSubmitted         TenderStatus = "submitted"
	StatusWon               TenderStatus = "won"
	StatusLost              TenderStatus = "lost"
	StatusMissedOpportunity TenderStatus = "missed_opportunity"
	StatusNotRelevant       TenderStatus = "not_relevant"

	SourceGem    TenderSource = "gem"
	SourceNonGem TenderSource = "non_gem"
	SourcePortal TenderSource = "portal"

	UploadCompleted UploadStatus = "completed"
	UploadFailed    UploadStatus = "failed"
	UploadCancelled UploadStatus = "cancelled"

	KindTenders UploadKind = "tenders"
	KindResults UploadKind = "results"
	KindAuto    UploadKind = "auto"
)

// Ключи аннотаций в requirements тендера.
const (
	AnnotationLocation   = "location"
	AnnotationDepartment = "department"
	AnnotationCategory   = "category"
	AnnotationSheet      = "sheet"
	AnnotationExternalID = "external_id"
	AnnotationRow        = "row"
	AnnotationSource     = "source_label"
)

// Сущность Тендера
type Tender struct {
	ID           int64        `db:"id" json:"id"`
	IdentityKey  string       `db:"identity_key" json:"identityKey" validate:"required"`
	ExternalRef  string       `db:"external_ref" json:"externalReferenceId,omitempty"`
	Title        string       `db:"title" json:"title" validate:"required,max=4000"`
	Organization string       `db:"organization" json:"organization" validate:"required"`
	Description  string       `db:"description" json:"description"`
	Value        int64        `db:"value" json:"value" validate:"gte=0"`
	Deadline     time.Time    `db:"deadline" json:"deadline" validate:"required"`
	Status       TenderStatus `db:"status" json:"status" validate:"required,oneof=draft active assigned submitted won lost missed_opportunity not_relevant"`
	Source       TenderSource `db:"source" json:"source" validate:"required,oneof=gem non_gem portal"`
	AIScore      *int         `db:"ai_score" json:"aiScore,omitempty" validate:"omitempty,min=0,max=100"`
	Location     string       `db:"location" json:"location,omitempty"`
	AssignedTo   *string      `db:"assigned_to" json:"assignedTo,omitempty"`
	Link         string       `db:"link" json:"link,omitempty"`
	Requirements Annotations  `db:"requirements" json:"requirements"`
	UploadID     string       `db:"upload_id" json:"uploadId,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updatedAt"`
}

// IsAssigned сообщает, назначен ли тендер сотруднику.
func (t *Tender) IsAssigned() bool {
	return t.AssignedTo != nil && *t.AssignedTo != ""
}

// Сущность Результата тендера
type TenderResult struct {
	ID                  int64          `db:"id" json:"id"`
	IdentityKey         string         `db:"identity_key" json:"identityKey" validate:"required"`
	TenderTitle         string         `db:"tender_title" json:"tenderTitle" validate:"required"`
	Organization        string         `db:"organization" json:"organization"`
	ReferenceNo         string         `db:"reference_no" json:"referenceNo,omitempty"`
	Location            string         `db:"location" json:"location,omitempty"`
	Department          string         `db:"department" json:"department,omitempty"`
	TenderValue         int64          `db:"tender_value" json:"tenderValue" validate:"gte=0"`
	ContractValue       int64          `db:"contract_value" json:"contractValue" validate:"gte=0"`
	MarginalDifference  *int64         `db:"marginal_difference" json:"marginalDifference,omitempty"`
	AwardedTo           string         `db:"awarded_to" json:"awardedTo"`
	ParticipatorBidders pq.StringArray `db:"participator_bidders" json:"participatorBidders"`
	ResultDate          time.Time      `db:"result_date" json:"resultDate"`
	Status              TenderStatus   `db:"status" json:"status" validate:"required,oneof=won lost missed_opportunity"`
	AIMatchScore        int            `db:"ai_match_score" json:"aiMatchScore" validate:"min=0,max=100"`
	CompanyEligible     bool           `db:"company_eligible" json:"companyEligible"`
	UploadID            string         `db:"upload_id" json:"uploadId,omitempty"`
	CreatedAt           time.Time      `db:"created_at" json:"createdAt"`
}

// Запись аудита загрузки (только добавление)
type UploadAudit struct {
	ID               int64        `db:"id" json:"id"`
	UploadID         string       `db:"upload_id" json:"uploadId"`
	FileName         string       `db:"file_name" json:"fileName"`
	FilePath         string       `db:"file_path" json:"filePath"`
	UploadedBy       string       `db:"uploaded_by" json:"uploadedBy"`
	Kind             UploadKind   `db:"kind" json:"kind"`
	EntriesAdded     int          `db:"entries_added" json:"entriesAdded"`
	EntriesDuplicate int          `db:"entries_duplicate" json:"entriesDuplicate"`
	EntriesErrored   int          `db:"entries_errored" json:"entriesErrored"`
	TotalEntries     int          `db:"total_entries" json:"totalEntries"`
	SheetsProcessed  int          `db:"sheets_processed" json:"sheetsProcessed"`
	Status           UploadStatus `db:"status" json:"status"`
	ErrorLog         string       `db:"error_log" json:"errorLog,omitempty"`
	StartedAt        time.Time    `db:"started_at" json:"startedAt"`
	CompletedAt      time.Time    `db:"completed_at" json:"completedAt"`
	CreatedAt        time.Time    `db:"created_at" json:"createdAt"`
}

type ActivityAction string

const (
	ActionAssignment        ActivityAction = "assignment"
	ActionStatusChange      ActivityAction = "status_change"
	ActionMissedOpportunity ActivityAction = "missed_opportunity"
	ActionReactivated       ActivityAction = "reactivated"
)

// Причины автоматических переходов.
const (
	ReasonDeadlineExpired  = "deadline_expired"
	ReasonDeadlineExtended = "deadline_extended"
)

// Запись журнала действий по тендеру
type ActivityLog struct {
	ID         int64          `db:"id" json:"id"`
	TenderID   int64          `db:"tender_id" json:"tenderId"`
	Action     ActivityAction `db:"action" json:"action"`
	FromStatus TenderStatus   `db:"from_status" json:"fromStatus"`
	ToStatus   TenderStatus   `db:"to_status" json:"toStatus"`
	Actor      string         `db:"actor" json:"actor"`
	Reason     string         `db:"reason" json:"reason"`
	Details    Payload        `db:"details" json:"details"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}
