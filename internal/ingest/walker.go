package ingest

import (
	"tendertrack/models"
)

// Причины пропуска листа.
const (
	skipUnreadable = "sheet could not be read"
	skipNoHeader   = "no header row within the first rows"
	skipEmpty      = "sheet is empty"
)

// лист, подготовленный к обходу
type sheetPlan struct {
	sheet   *Sheet
	header  HeaderResult
	kind    models.UploadKind
	skip    string
	rows    int // строки данных с непустым названием
	dataRow int // индекс первой строки данных
}

// Walker разбирает книгу на листы: заголовок, тип листа, объем работы.
type Walker struct {
	resolver *HeaderResolver
}

func NewWalker(resolver *HeaderResolver) *Walker {
	return &Walker{resolver: resolver}
}

// Plan возвращает планы листов в порядке книги. Пропущенные листы тоже
// входят в план, чтобы попасть в отчет.
func (w *Walker) Plan(wb *Workbook, kind models.UploadKind) []sheetPlan {
	plans := make([]sheetPlan, 0, len(wb.Sheets))
	for _, sh := range wb.Sheets {
		plans = append(plans, w.planSheet(sh, kind))
	}
	return plans
}

func (w *Walker) planSheet(sh *Sheet, kind models.UploadKind) sheetPlan {
	p := sheetPlan{sheet: sh, header: HeaderResult{HeaderRow: -1}}
	switch {
	case sh.Err != nil:
		p.skip = skipUnreadable
		return p
	case len(sh.Rows) == 0:
		p.skip = skipEmpty
		return p
	}

	p.header = w.resolver.Resolve(sh.Rows)
	if !p.header.Found() {
		p.skip = skipNoHeader
		return p
	}
	p.dataRow = p.header.HeaderRow + 1
	p.kind = sheetKind(kind, p.header.Columns)

	titleIdx := p.header.Columns.Index(FieldTitle)
	if titleIdx < 0 {
		return p
	}
	for _, row := range sh.Rows[p.dataRow:] {
		if NormalizeText(cell(row, titleIdx), "") != "" {
			p.rows++
		}
	}
	return p
}

// sheetKind: в режиме auto лист с колонками победителя или участников считается листом результатов.
func sheetKind(kind models.UploadKind, cols ColumnMap) models.UploadKind {
	if kind != models.KindAuto && kind != "" {
		return kind
	}
	if cols.Has(FieldAwardedTo) || cols.Has(FieldBidders) {
		return models.KindResults
	}
	return models.KindTenders
}
