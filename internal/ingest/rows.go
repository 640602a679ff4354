package ingest

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tendertrack/models"
)

// Нормализованная строка листа тендеров
type TenderRow struct {
	Sheet         string
	Row           int // номер строки в Excel (с 1)
	Title         string
	Organization  string
	Description   string
	Location      string
	Department    string
	Category      string
	SourceLabel   string
	ReferenceNo   string
	ExternalID    string
	Link          string
	Value         int64
	Deadline      time.Time
	DeadlineKnown bool // false, если дедлайн подставлен по умолчанию
}

// Нормализованная строка листа результатов
type ResultRow struct {
	Sheet         string
	Row           int
	TenderTitle   string
	Organization  string
	ReferenceNo   string
	Location      string
	Department    string
	AwardedTo     string
	Bidders       []string
	TenderValue   int64
	ContractValue int64
	ResultDate    time.Time
}

const defaultOrganization = "Unknown"

// номер заявки GeM, например GEM/2024/B/4567890
var gemBidRE = regexp.MustCompile(`(?i)\bGEM/\d{4}/[A-Z]/\d+\b`)

// cell безопасно достает ячейку строки по индексу колонки.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// rowReader извлекает поля строки по карте колонок.
type rowReader struct {
	sheet   *Sheet
	columns ColumnMap
	r       int
}

func (rr rowReader) raw(f Field) string {
	return cell(rr.sheet.Rows[rr.r], rr.columns.Index(f))
}

func (rr rowReader) text(f Field, def string) string {
	return NormalizeText(rr.raw(f), def)
}

// link: гиперссылка в ячейке названия, иначе колонка link.
func (rr rowReader) link() string {
	if idx := rr.columns.Index(FieldTitle); idx >= 0 {
		if l := rr.sheet.Hyperlink(rr.r, idx); l != "" {
			return sanitizeLink(l)
		}
	}
	return sanitizeLink(rr.text(FieldLink, ""))
}

func sanitizeLink(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" && u.Scheme == "" && !strings.Contains(s, ".") {
		return ""
	}
	return s
}

func (rr rowReader) tenderRow(defaultDeadline time.Time) TenderRow {
	row := TenderRow{
		Sheet:        rr.sheet.Name,
		Row:          rr.r + 1,
		Title:        rr.text(FieldTitle, ""),
		Organization: rr.text(FieldOrganization, defaultOrganization),
		Description:  rr.text(FieldDescription, ""),
		Location:     rr.text(FieldLocation, ""),
		Department:   rr.text(FieldDepartment, ""),
		Category:     rr.text(FieldCategory, ""),
		SourceLabel:  rr.text(FieldSource, ""),
		ReferenceNo:  rr.text(FieldReferenceNo, ""),
		Value:        NormalizeCurrency(rr.raw(FieldValue)),
	}
	if row.Title == "" {
		return row
	}
	row.Link = rr.link()
	row.ExternalID = externalID(row.ReferenceNo, row.Title, row.Link)
	row.Deadline, row.DeadlineKnown = ParseDate(rr.raw(FieldDeadline))
	if !row.DeadlineKnown {
		row.Deadline = defaultDeadline
	}
	return row
}

func (rr rowReader) resultRow(now time.Time) ResultRow {
	row := ResultRow{
		Sheet:         rr.sheet.Name,
		Row:           rr.r + 1,
		TenderTitle:   rr.text(FieldTitle, ""),
		Organization:  rr.text(FieldOrganization, defaultOrganization),
		ReferenceNo:   normalizeRef(rr.text(FieldReferenceNo, "")),
		Location:      rr.text(FieldLocation, ""),
		Department:    rr.text(FieldDepartment, ""),
		AwardedTo:     rr.text(FieldAwardedTo, ""),
		Bidders:       NormalizeList(rr.raw(FieldBidders)),
		TenderValue:   NormalizeCurrency(rr.raw(FieldValue)),
		ContractValue: NormalizeCurrency(rr.raw(FieldContractValue)),
	}
	row.ResultDate = NormalizeDate(rr.raw(FieldResultDate), now)
	return row
}

// externalID: колонка ссылки/номера, иначе номер заявки GeM из текста или ссылки.
func externalID(referenceNo, title, link string) string {
	if referenceNo != "" {
		return normalizeRef(referenceNo)
	}
	for _, s := range []string{title, link} {
		if m := gemBidRE.FindString(s); m != "" {
			return strings.ToUpper(m)
		}
	}
	if link != "" {
		if u, err := url.Parse(link); err == nil {
			for _, k := range []string{"bidId", "tenderId", "id"} {
				if v := u.Query().Get(k); v != "" {
					if _, err := strconv.ParseInt(v, 10, 64); err == nil {
						return u.Host + ":" + v
					}
				}
			}
		}
	}
	return ""
}

// normalizeRef приводит номер заявки GeM к верхнему регистру, прочие номера не меняет.
func normalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if m := gemBidRE.FindString(ref); m != "" && len(m) == len(ref) {
		return strings.ToUpper(ref)
	}
	return ref
}

func buildTender(row TenderRow, class TenderClass, key, uploadID string, score int) *models.Tender {
	t := &models.Tender{
		IdentityKey:  key,
		ExternalRef:  row.ExternalID,
		Title:        row.Title,
		Organization: row.Organization,
		Description:  row.Description,
		Value:        row.Value,
		Deadline:     row.Deadline,
		Status:       class.Status,
		Source:       class.Source,
		AIScore:      &score,
		Location:     row.Location,
		Link:         row.Link,
		UploadID:     uploadID,
		Requirements: models.Annotations{},
	}
	t.Requirements.Add(models.AnnotationLocation, row.Location)
	t.Requirements.Add(models.AnnotationDepartment, row.Department)
	t.Requirements.Add(models.AnnotationCategory, row.Category)
	t.Requirements.Add(models.AnnotationSource, row.SourceLabel)
	t.Requirements.Add(models.AnnotationExternalID, row.ExternalID)
	t.Requirements.Add(models.AnnotationSheet, row.Sheet)
	t.Requirements.Add(models.AnnotationRow, strconv.Itoa(row.Row))
	return t
}

func buildResult(row ResultRow, class ResultClass, key, uploadID string, score int) *models.TenderResult {
	r := &models.TenderResult{
		IdentityKey:         key,
		TenderTitle:         row.TenderTitle,
		Organization:        row.Organization,
		ReferenceNo:         row.ReferenceNo,
		Location:            row.Location,
		Department:          row.Department,
		TenderValue:         row.TenderValue,
		ContractValue:       row.ContractValue,
		AwardedTo:           class.AwardedTo,
		ParticipatorBidders: row.Bidders,
		ResultDate:          row.ResultDate,
		Status:              class.Status,
		AIMatchScore:        score,
		CompanyEligible:     class.IsTrackedCompanyParticipant,
		UploadID:            uploadID,
	}
	if row.TenderValue > 0 && row.ContractValue > 0 {
		diff := row.ContractValue - row.TenderValue
		r.MarginalDifference = &diff
	}
	return r
}
