package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tendertrack/db"
	"tendertrack/internal/logger"
	"tendertrack/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// хранилище недоступно, загрузку нужно повторить целиком
	ErrStoreUnavailable = errors.New("persistence store unavailable")
	// загрузка прервана вызывающей стороной между строками
	ErrCancelled = errors.New("ingestion cancelled")
)

const (
	defaultProgressEvery    = 10
	defaultOpenDeadlineDays = 30
	systemActor             = "system"
)

// Исходы строк для метрик.
const (
	outcomeAdded     = "added"
	outcomeDuplicate = "duplicate"
	outcomeError     = "error"
	outcomeSkipped   = "skipped"
)

// Options настраивает движок загрузки. Нулевые значения заменяются значениями по умолчанию.
type Options struct {
	TrackedCompany    string
	ProgressEvery     int
	OpenDeadlineDays  int
	MatchOrganization bool
	Profile           HeaderProfile
	HeaderKeywords    []string
	Scorer            Scorer
	MaxRowErrors      int
	Now               func() time.Time
	// AfterIngest вызывается после успешной загрузки (например, запуск sweeper).
	AfterIngest func(ctx context.Context, sum Summary)
}

// Входной файл и его происхождение
type Upload struct {
	Data       []byte
	FileName   string
	FilePath   string
	UploadedBy string
	Kind       models.UploadKind // пусто -> auto
	Progress   ProgressReporter  // может быть nil
}

// Engine ведет загрузку: книга -> листы -> строки -> хранилище -> аудит.
type Engine struct {
	store      Store
	log        *zap.Logger
	walker     *Walker
	classifier *Classifier
	detector   *Detector
	opts       Options
}

func NewEngine(store Store, log *zap.Logger, opts Options) *Engine {
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = defaultProgressEvery
	}
	if opts.OpenDeadlineDays <= 0 {
		opts.OpenDeadlineDays = defaultOpenDeadlineDays
	}
	if opts.MaxRowErrors <= 0 {
		opts.MaxRowErrors = DefaultMaxRowErrors
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		store:      store,
		log:        logger.OrNop(log),
		walker:     NewWalker(NewHeaderResolver(opts.Profile, opts.HeaderKeywords)),
		classifier: NewClassifier(opts.TrackedCompany, opts.Scorer),
		detector:   NewDetector(store, IdentityPolicy{MatchOrganization: opts.MatchOrganization}),
		opts:       opts,
	}
}

// Detector отдает детектор дубликатов движка.
func (e *Engine) Detector() *Detector {
	return e.detector
}

type run struct {
	up              Upload
	sum             *Summary
	progress        ProgressReporter
	now             time.Time
	defaultDeadline time.Time
	lastReported    int
}

type rowResult struct {
	outcome     string
	source      models.TenderSource
	reactivated bool
}

// Ingest обрабатывает файл. Summary заполняется всегда; ошибка возвращается
// только при ошибке файла (ErrEmptyFile, ErrInvalidWorkbook), недоступности
// хранилища (ErrStoreUnavailable) и отмене (ErrCancelled).
func (e *Engine) Ingest(ctx context.Context, up Upload) (Summary, error) {
	if up.Kind == "" {
		up.Kind = models.KindAuto
	}
	now := e.opts.Now()
	sum := Summary{
		UploadID:  uuid.NewString(),
		FileName:  up.FileName,
		Kind:      up.Kind,
		Sheets:    []SheetSummary{},
		StartedAt: now,
	}
	rn := &run{
		up:              up,
		sum:             &sum,
		progress:        safeReporter{next: up.Progress, log: e.log},
		now:             now,
		defaultDeadline: now.AddDate(0, 0, e.opts.OpenDeadlineDays),
	}
	log := e.log.With(zap.String("upload_id", sum.UploadID), zap.String("file", up.FileName))
	log.Info("ingestion started", zap.String("kind", string(up.Kind)), zap.Int("bytes", len(up.Data)))

	wb, err := OpenWorkbook(up.Data)
	if err != nil {
		log.Error("workbook rejected", zap.Error(err))
		return e.finish(ctx, rn, err)
	}
	defer wb.Close()

	plans := e.walker.Plan(wb, up.Kind)
	for _, p := range plans {
		sum.TotalRows += p.rows
	}
	err = e.walk(ctx, rn, plans)
	return e.finish(ctx, rn, err)
}

func (e *Engine) walk(ctx context.Context, rn *run, plans []sheetPlan) error {
	sum := rn.sum
	for _, p := range plans {
		ss := SheetSummary{Name: p.sheet.Name, Kind: p.kind}
		if p.header.Found() {
			ss.HeaderRow = p.header.HeaderRow + 1
		}
		if p.skip != "" {
			ss.Skipped, ss.SkipReason = true, p.skip
			sum.SheetsSkipped++
			sum.Sheets = append(sum.Sheets, ss)
			e.log.Info("sheet skipped",
				zap.String("upload_id", sum.UploadID),
				zap.String("sheet", p.sheet.Name),
				zap.String("reason", p.skip),
				zap.Error(p.sheet.Err))
			continue
		}
		sum.SheetsProcessed++

		err := e.walkSheet(ctx, rn, p, &ss)
		sum.Sheets = append(sum.Sheets, ss)
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) walkSheet(ctx context.Context, rn *run, p sheetPlan, ss *SheetSummary) error {
	sum := rn.sum
	rr := rowReader{sheet: p.sheet, columns: p.header.Columns}
	titleIdx := p.header.Columns.Index(FieldTitle)

	for r := p.dataRow; r < len(p.sheet.Rows); r++ {
		if ctx.Err() != nil {
			return ErrCancelled
		}
		if titleIdx < 0 || NormalizeText(cell(p.sheet.Rows[r], titleIdx), "") == "" {
			sum.RowsSkipped++
			RowsTotal.WithLabelValues(string(p.kind), outcomeSkipped).Inc()
			continue
		}
		rr.r = r

		res, err := e.processRow(ctx, rn, p.kind, rr)
		if err != nil {
			if ctx.Err() != nil {
				return ErrCancelled
			}
			if errors.Is(err, db.ErrUnavailable) {
				return fmt.Errorf("%w: sheet %q row %d: %v", ErrStoreUnavailable, p.sheet.Name, r+1, err)
			}
			res = rowResult{outcome: outcomeError}
			e.rowError(rn, p.sheet.Name, r+1, err)
		}
		e.count(rn, p.kind, ss, res)
		RowsTotal.WithLabelValues(string(p.kind), res.outcome).Inc()

		if sum.Processed()-rn.lastReported >= e.opts.ProgressEvery {
			rn.lastReported = sum.Processed()
			rn.progress.Report(sum.progress(p.sheet.Name, false))
		}
	}
	return nil
}

func (e *Engine) count(rn *run, kind models.UploadKind, ss *SheetSummary, res rowResult) {
	sum := rn.sum
	ss.Rows++
	if kind == models.KindResults {
		sum.ResultsProcessed++
	} else {
		sum.TendersProcessed++
	}
	switch res.outcome {
	case outcomeAdded:
		ss.Added++
		switch {
		case kind == models.KindResults:
			sum.ResultsAdded++
		case res.source == models.SourceGem:
			sum.GemAdded++
		default:
			sum.NonGemAdded++
		}
	case outcomeDuplicate:
		ss.Duplicates++
		sum.DuplicatesSkipped++
		if res.reactivated {
			sum.Reactivated++
		}
	case outcomeError:
		ss.Errors++
	}
}

func (e *Engine) rowError(rn *run, sheet string, row int, err error) {
	sum := rn.sum
	sum.ErrorsEncountered++
	if len(sum.RowErrors) < e.opts.MaxRowErrors {
		sum.RowErrors = append(sum.RowErrors, RowError{Sheet: sheet, Row: row, Message: err.Error()})
	}
	e.log.Warn("row failed",
		zap.String("upload_id", sum.UploadID),
		zap.String("sheet", sheet),
		zap.Int("row", row),
		zap.Error(err))
}

// processRow обрабатывает одну строку; паника превращается в ошибку строки.
func (e *Engine) processRow(ctx context.Context, rn *run, kind models.UploadKind, rr rowReader) (res rowResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected row failure: %v", r)
		}
	}()
	if kind == models.KindResults {
		return e.processResult(ctx, rn, rr.resultRow(rn.now))
	}
	return e.processTender(ctx, rn, rr.tenderRow(rn.defaultDeadline))
}

func (e *Engine) processTender(ctx context.Context, rn *run, row TenderRow) (rowResult, error) {
	class := e.classifier.Classify(row, row.Sheet)
	cand := Candidate{
		Kind:         models.KindTenders,
		ExternalID:   row.ExternalID,
		Title:        row.Title,
		Organization: row.Organization,
	}
	key := e.detector.Key(cand)

	existing, err := e.detector.existingTender(ctx, cand)
	if err != nil {
		return rowResult{}, fmt.Errorf("lookup tender: %w", err)
	}
	if existing != nil {
		reactivated, err := e.reconcileDeadline(ctx, rn, existing, row)
		if err != nil {
			return rowResult{}, err
		}
		return rowResult{outcome: outcomeDuplicate, reactivated: reactivated}, nil
	}

	t := buildTender(row, class, key, rn.sum.UploadID, e.classifier.Score(row.Title))
	if err := models.Validate(t); err != nil {
		return rowResult{}, fmt.Errorf("invalid tender: %w", err)
	}
	if err := e.store.InsertTender(ctx, t); err != nil {
		// гонка с параллельной загрузкой: уникальный индекс отклонил вставку
		if errors.Is(err, db.ErrDuplicate) {
			return rowResult{outcome: outcomeDuplicate}, nil
		}
		return rowResult{}, fmt.Errorf("insert tender: %w", err)
	}
	return rowResult{outcome: outcomeAdded, source: t.Source}, nil
}

// reconcileDeadline переносит дедлайн существующего тендера, если в файле он позже.
// Пропущенный тендер при этом снова становится активным.
func (e *Engine) reconcileDeadline(ctx context.Context, rn *run, existing *models.Tender, row TenderRow) (bool, error) {
	if !row.DeadlineKnown || !row.Deadline.After(existing.Deadline) {
		return false, nil
	}
	switch existing.Status {
	case models.StatusMissedOpportunity:
		deadline := row.Deadline
		actor := rn.up.UploadedBy
		if actor == "" {
			actor = systemActor
		}
		err := e.store.UpdateTenderStatus(ctx, db.StatusChange{
			TenderID: existing.ID,
			From:     models.StatusMissedOpportunity,
			To:       models.StatusActive,
			Deadline: &deadline,
			Log: &models.ActivityLog{
				Action:     models.ActionReactivated,
				FromStatus: models.StatusMissedOpportunity,
				ToStatus:   models.StatusActive,
				Actor:      actor,
				Reason:     models.ReasonDeadlineExtended,
				Details: models.Payload{
					"upload_id":         rn.sum.UploadID,
					"sheet":             row.Sheet,
					"row":               row.Row,
					"previous_deadline": existing.Deadline.Format(time.RFC3339),
					"deadline":          deadline.Format(time.RFC3339),
				},
			},
		})
		if errors.Is(err, db.ErrStaleStatus) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("reactivate tender %d: %w", existing.ID, err)
		}
		e.log.Info("tender reactivated",
			zap.String("upload_id", rn.sum.UploadID),
			zap.Int64("tender_id", existing.ID),
			zap.Time("deadline", deadline))
		return true, nil
	case models.StatusDraft, models.StatusActive, models.StatusAssigned:
		if err := e.store.ExtendTenderDeadline(ctx, existing.ID, row.Deadline); err != nil {
			return false, fmt.Errorf("extend deadline of tender %d: %w", existing.ID, err)
		}
	}
	return false, nil
}

func (e *Engine) processResult(ctx context.Context, rn *run, row ResultRow) (rowResult, error) {
	class := e.classifier.ClassifyResult(row)
	cand := Candidate{
		Kind:         models.KindResults,
		ExternalID:   externalID(row.ReferenceNo, row.TenderTitle, ""),
		Title:        row.TenderTitle,
		Organization: row.Organization,
	}
	dup, err := e.detector.IsDuplicate(ctx, cand)
	if err != nil {
		return rowResult{}, fmt.Errorf("lookup result: %w", err)
	}
	if dup {
		return rowResult{outcome: outcomeDuplicate}, nil
	}

	r := buildResult(row, class, e.detector.Key(cand), rn.sum.UploadID, e.classifier.Score(row.TenderTitle))
	if err := models.Validate(r); err != nil {
		return rowResult{}, fmt.Errorf("invalid result: %w", err)
	}
	if err := e.store.InsertResult(ctx, r); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return rowResult{outcome: outcomeDuplicate}, nil
		}
		return rowResult{}, fmt.Errorf("insert result: %w", err)
	}
	return rowResult{outcome: outcomeAdded}, nil
}

// finish подводит итог: статус, аудит (ровно один), финальный прогресс, хук.
func (e *Engine) finish(ctx context.Context, rn *run, runErr error) (Summary, error) {
	sum := rn.sum
	sum.CompletedAt = e.opts.Now()

	switch {
	case runErr == nil:
		sum.Status = models.UploadCompleted
		sum.Success = true
	case errors.Is(runErr, ErrCancelled):
		sum.Status = models.UploadCancelled
		sum.Error = runErr.Error()
	default:
		sum.Status = models.UploadFailed
		sum.Error = runErr.Error()
	}

	log := e.log.With(zap.String("upload_id", sum.UploadID), zap.String("file", sum.FileName))

	// аудит пишется и после отмены запроса
	auditCtx := context.WithoutCancel(ctx)
	if err := e.store.RecordUploadAudit(auditCtx, sum.audit(rn.up)); err != nil {
		log.Error("upload audit not recorded", zap.Error(err))
		if runErr == nil {
			if errors.Is(err, db.ErrUnavailable) {
				runErr = fmt.Errorf("%w: record upload audit: %v", ErrStoreUnavailable, err)
			} else {
				runErr = fmt.Errorf("record upload audit: %w", err)
			}
			sum.Status = models.UploadFailed
			sum.Success = false
			sum.Error = runErr.Error()
		}
	}

	UploadsTotal.WithLabelValues(string(sum.Status)).Inc()
	UploadDuration.Observe(sum.CompletedAt.Sub(sum.StartedAt).Seconds())
	rn.progress.Report(sum.progress("", true))

	fields := []zap.Field{
		zap.String("status", string(sum.Status)),
		zap.Int("added", sum.Added()),
		zap.Int("duplicates", sum.DuplicatesSkipped),
		zap.Int("errors", sum.ErrorsEncountered),
		zap.Int("reactivated", sum.Reactivated),
		zap.Int("sheets", sum.SheetsProcessed),
	}
	if runErr != nil {
		log.Error("ingestion finished with error", append(fields, zap.Error(runErr))...)
		return *sum, runErr
	}
	log.Info("ingestion completed", fields...)

	if e.opts.AfterIngest != nil {
		e.opts.AfterIngest(auditCtx, *sum)
	}
	return *sum, nil
}
