package ingest

import (
	"time"

	"tendertrack/models"
)

// DefaultMaxRowErrors ограничивает список ошибок строк в отчете.
const DefaultMaxRowErrors = 200

// Итог загрузки. Возвращается всегда, в том числе при ошибке.
type Summary struct {
	UploadID          string              `json:"uploadId"`
	Success           bool                `json:"success"`
	Status            models.UploadStatus `json:"status"`
	FileName          string              `json:"fileName"`
	Kind              models.UploadKind   `json:"kind"`
	TendersProcessed  int                 `json:"tendersProcessed"`
	ResultsProcessed  int                 `json:"resultsProcessed"`
	GemAdded          int                 `json:"gemAdded"`
	NonGemAdded       int                 `json:"nonGemAdded"`
	ResultsAdded      int                 `json:"resultsAdded"`
	DuplicatesSkipped int                 `json:"duplicatesSkipped"`
	Reactivated       int                 `json:"reactivated"`
	ErrorsEncountered int                 `json:"errorsEncountered"`
	RowsSkipped       int                 `json:"rowsSkipped"`
	TotalRows         int                 `json:"totalRows"`
	SheetsProcessed   int                 `json:"sheetsProcessed"`
	SheetsSkipped     int                 `json:"sheetsSkipped"`
	Sheets            []SheetSummary      `json:"sheets"`
	RowErrors         []RowError          `json:"rowErrors,omitempty"`
	Error             string              `json:"error,omitempty"`
	StartedAt         time.Time           `json:"startedAt"`
	CompletedAt       time.Time           `json:"completedAt"`
}

// Счетчики одного листа
type SheetSummary struct {
	Name       string            `json:"name"`
	Kind       models.UploadKind `json:"kind"`
	HeaderRow  int               `json:"headerRow"` // номер строки в Excel; 0, если не найден
	Skipped    bool              `json:"skipped"`
	SkipReason string            `json:"skipReason,omitempty"`
	Rows       int               `json:"rows"`
	Added      int               `json:"added"`
	Duplicates int               `json:"duplicates"`
	Errors     int               `json:"errors"`
}

type RowError struct {
	Sheet   string `json:"sheet"`
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Added возвращает число новых записей.
func (s *Summary) Added() int {
	return s.GemAdded + s.NonGemAdded + s.ResultsAdded
}

// Processed считает строки с названием, дошедшие до обработки.
func (s *Summary) Processed() int {
	return s.TendersProcessed + s.ResultsProcessed
}

func (s *Summary) progress(sheet string, completed bool) ProgressUpdate {
	u := ProgressUpdate{
		UploadID:    s.UploadID,
		Sheet:       sheet,
		Processed:   s.Processed(),
		Added:       s.Added(),
		Duplicates:  s.DuplicatesSkipped,
		Errors:      s.ErrorsEncountered,
		GemAdded:    s.GemAdded,
		NonGemAdded: s.NonGemAdded,
		Total:       s.TotalRows,
		Completed:   completed,
	}
	if s.TotalRows > 0 {
		u.Percentage = float64(u.Processed) * 100 / float64(s.TotalRows)
	}
	if completed && s.Status == models.UploadCompleted {
		u.Percentage = 100
	}
	return u
}

// audit строит запись аудита по итогам загрузки.
func (s *Summary) audit(up Upload) *models.UploadAudit {
	return &models.UploadAudit{
		UploadID:         s.UploadID,
		FileName:         s.FileName,
		FilePath:         up.FilePath,
		UploadedBy:       up.UploadedBy,
		Kind:             s.Kind,
		EntriesAdded:     s.Added(),
		EntriesDuplicate: s.DuplicatesSkipped,
		EntriesErrored:   s.ErrorsEncountered,
		TotalEntries:     s.TotalRows,
		SheetsProcessed:  s.SheetsProcessed,
		Status:           s.Status,
		ErrorLog:         s.Error,
		StartedAt:        s.StartedAt,
		CompletedAt:      s.CompletedAt,
	}
}
