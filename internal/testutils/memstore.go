package testutils

import (
	"context"
	"sort"
	"sync"
	"time"

	"tendertrack/db"
	"tendertrack/models"
)

// MemStore: хранилище в памяти с семантикой db.Storage (уникальный ключ,
// переход статуса с проверкой текущего, журнал действий). Для тестов.
type MemStore struct {
	mu      sync.Mutex
	nextID  int64
	tenders map[int64]*models.Tender
	keys    map[string]int64
	results map[string]*models.TenderResult
	audits  []models.UploadAudit
	logs    []models.ActivityLog

	// Err, если задан, возвращается всеми методами (хранилище недоступно).
	Err error
	// Хуки для внедрения ошибок; nil-ошибка означает обычное поведение.
	FindTenderHook   func(key string) error
	InsertTenderHook func(t *models.Tender) error
	InsertResultHook func(r *models.TenderResult) error
	AuditHook        func(a *models.UploadAudit) error
}

func NewMemStore() *MemStore {
	return &MemStore{
		tenders: map[int64]*models.Tender{},
		keys:    map[string]int64{},
		results: map[string]*models.TenderResult{},
	}
}

func (m *MemStore) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

func (m *MemStore) id() int64 {
	m.nextID++
	return m.nextID
}

// SeedTender кладет тендер напрямую, минуя проверки.
func (m *MemStore) SeedTender(t models.Tender) *models.Tender {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	t.UpdatedAt = t.CreatedAt
	m.tenders[t.ID] = &t
	m.keys[t.IdentityKey] = t.ID
	cp := t
	return &cp
}

func (m *MemStore) FindTenderByIdentity(ctx context.Context, key string) (*models.Tender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.FindTenderHook != nil {
		if err := m.FindTenderHook(key); err != nil {
			return nil, err
		}
	}
	id, ok := m.keys[key]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *m.tenders[id]
	return &cp, nil
}

// FindTenderByTitle повторяет запрос db.Storage: первый по id тендер с тем же
// названием, организацией (если задана) и совместимым номером.
func (m *MemStore) FindTenderByTitle(ctx context.Context, title, organization, externalRef string) (*models.Tender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.FindTenderHook != nil {
		if err := m.FindTenderHook(titleKey(title)); err != nil {
			return nil, err
		}
	}
	for _, t := range m.sorted() {
		if t.Title == title && sameOrg(t.Organization, organization) && sameRef(t.ExternalRef, externalRef) {
			return &t, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *MemStore) InsertTender(ctx context.Context, t *models.Tender) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.InsertTenderHook != nil {
		if err := m.InsertTenderHook(t); err != nil {
			return err
		}
	}
	if _, ok := m.keys[t.IdentityKey]; ok {
		return db.ErrDuplicate
	}
	t.ID = m.id()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.tenders[t.ID] = &cp
	m.keys[t.IdentityKey] = t.ID
	return nil
}

func (m *MemStore) GetTender(ctx context.Context, id int64) (*models.Tender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	t, ok := m.tenders[id]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemStore) UpdateTenderStatus(ctx context.Context, ch db.StatusChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	t, ok := m.tenders[ch.TenderID]
	if !ok || t.Status != ch.From {
		return db.ErrStaleStatus
	}
	t.Status = ch.To
	if ch.Deadline != nil {
		t.Deadline = *ch.Deadline
	}
	if ch.AssignedTo != nil {
		a := *ch.AssignedTo
		t.AssignedTo = &a
	}
	t.UpdatedAt = time.Now()
	if ch.Log != nil {
		ch.Log.TenderID = ch.TenderID
		m.appendLog(ch.Log)
	}
	return nil
}

func (m *MemStore) ExtendTenderDeadline(ctx context.Context, id int64, deadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if t, ok := m.tenders[id]; ok && t.Deadline.Before(deadline) {
		t.Deadline = deadline
		t.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MemStore) ListSweepCandidates(ctx context.Context, now time.Time) ([]models.Tender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []models.Tender{}
	for _, t := range m.sorted() {
		if t.Status == models.StatusActive && t.Deadline.Before(now) && !t.IsAssigned() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemStore) ListTenders(ctx context.Context, status models.TenderStatus, limit, offset int) ([]models.Tender, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []models.Tender{}
	for _, t := range m.sorted() {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	return page(out, limit, offset), nil
}

func (m *MemStore) FindResultByIdentity(ctx context.Context, key string) (*models.TenderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	r, ok := m.results[key]
	if !ok {
		return nil, db.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *MemStore) FindResultByTitle(ctx context.Context, title, organization, referenceNo string) (*models.TenderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	var best *models.TenderResult
	for _, r := range m.results {
		if r.TenderTitle != title || !sameOrg(r.Organization, organization) || !sameRef(r.ReferenceNo, referenceNo) {
			continue
		}
		if best == nil || r.ID < best.ID {
			best = r
		}
	}
	if best == nil {
		return nil, db.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *MemStore) InsertResult(ctx context.Context, r *models.TenderResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.InsertResultHook != nil {
		if err := m.InsertResultHook(r); err != nil {
			return err
		}
	}
	if _, ok := m.results[r.IdentityKey]; ok {
		return db.ErrDuplicate
	}
	r.ID = m.id()
	r.CreatedAt = time.Now()
	cp := *r
	m.results[r.IdentityKey] = &cp
	return nil
}

func (m *MemStore) RecordUploadAudit(ctx context.Context, a *models.UploadAudit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.AuditHook != nil {
		if err := m.AuditHook(a); err != nil {
			return err
		}
	}
	for _, existing := range m.audits {
		if existing.UploadID == a.UploadID {
			return db.ErrDuplicate
		}
	}
	a.ID = int64(len(m.audits) + 1)
	a.CreatedAt = time.Now()
	m.audits = append(m.audits, *a)
	return nil
}

func (m *MemStore) ListUploadAudits(ctx context.Context, limit, offset int) ([]models.UploadAudit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]models.UploadAudit, 0, len(m.audits))
	for i := len(m.audits) - 1; i >= 0; i-- {
		out = append(out, m.audits[i])
	}
	return page(out, limit, offset), nil
}

func (m *MemStore) AppendActivityLog(ctx context.Context, e *models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.appendLog(e)
	return nil
}

func (m *MemStore) ListActivityLogs(ctx context.Context, tenderID int64) ([]models.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	out := []models.ActivityLog{}
	for _, l := range m.logs {
		if l.TenderID == tenderID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *MemStore) appendLog(e *models.ActivityLog) {
	e.ID = int64(len(m.logs) + 1)
	e.CreatedAt = time.Now()
	m.logs = append(m.logs, *e)
}

// Tenders возвращает копии всех тендеров по возрастанию ID.
func (m *MemStore) Tenders() []models.Tender {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sorted()
}

// Results возвращает копии всех результатов по возрастанию ID.
func (m *MemStore) Results() []models.TenderResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.TenderResult, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Audits возвращает записи аудита в порядке добавления.
func (m *MemStore) Audits() []models.UploadAudit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.UploadAudit(nil), m.audits...)
}

// Logs возвращает журнал действий в порядке добавления.
func (m *MemStore) Logs() []models.ActivityLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.ActivityLog(nil), m.logs...)
}

func (m *MemStore) sorted() []models.Tender {
	out := make([]models.Tender, 0, len(m.tenders))
	for _, t := range m.tenders {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func titleKey(title string) string { return "title:" + title }

func sameOrg(stored, want string) bool { return want == "" || stored == want }

func sameRef(stored, want string) bool { return want == "" || stored == "" || stored == want }

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
