package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tendertrack/db"
	"tendertrack/internal/handlers"
	"tendertrack/internal/ingest"
	"tendertrack/internal/sweeper"
	"tendertrack/internal/testutils"
	"tendertrack/models"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// MockStorage реализует StorageInterface
type MockStorage struct {
	tender    *models.Tender
	pingErr   error
	updateErr error
	changes   []db.StatusChange

	ListTendersFunc func(ctx context.Context, status models.TenderStatus, limit, offset int) ([]models.Tender, error)
	ListUploadsFunc func(ctx context.Context, limit, offset int) ([]models.UploadAudit, error)
}

func (m *MockStorage) Ping(ctx context.Context) error { return m.pingErr }

func (m *MockStorage) GetTender(ctx context.Context, id int64) (*models.Tender, error) {
	if m.tender == nil || m.tender.ID != id {
		return nil, db.ErrNotFound
	}
	cp := *m.tender
	return &cp, nil
}

func (m *MockStorage) ListTenders(ctx context.Context, status models.TenderStatus, limit, offset int) ([]models.Tender, error) {
	if m.ListTendersFunc != nil {
		return m.ListTendersFunc(ctx, status, limit, offset)
	}
	return []models.Tender{{ID: 1, Title: "Sample Tender", Status: models.StatusActive}}, nil
}

func (m *MockStorage) UpdateTenderStatus(ctx context.Context, ch db.StatusChange) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.changes = append(m.changes, ch)
	m.tender.Status = ch.To
	if ch.AssignedTo != nil {
		m.tender.AssignedTo = ch.AssignedTo
	}
	return nil
}

func (m *MockStorage) ListUploadAudits(ctx context.Context, limit, offset int) ([]models.UploadAudit, error) {
	if m.ListUploadsFunc != nil {
		return m.ListUploadsFunc(ctx, limit, offset)
	}
	return []models.UploadAudit{{ID: 1, UploadID: "u-1", FileName: "tenders.xlsx"}}, nil
}

func (m *MockStorage) ListActivityLogs(ctx context.Context, tenderID int64) ([]models.ActivityLog, error) {
	return []models.ActivityLog{{ID: 1, TenderID: tenderID, Action: models.ActionMissedOpportunity}}, nil
}

// MockIngester возвращает заранее заданный итог и шлет прогресс
type MockIngester struct {
	sum     ingest.Summary
	err     error
	updates []ingest.ProgressUpdate
	got     ingest.Upload
}

func (m *MockIngester) Ingest(ctx context.Context, up ingest.Upload) (ingest.Summary, error) {
	m.got = up
	for _, u := range m.updates {
		if up.Progress != nil {
			up.Progress.Report(u)
		}
	}
	return m.sum, m.err
}

type MockSweeper struct {
	res sweeper.Result
	err error
}

func (m *MockSweeper) Sweep(ctx context.Context) (sweeper.Result, error) { return m.res, m.err }

func newHandler(store handlers.StorageInterface, ing handlers.Ingester, sw handlers.Sweeper) *handlers.Handler {
	return handlers.NewHandler(store, ing, sw, nil, 0)
}

func TestPingHandler(t *testing.T) {
	handler := newHandler(&MockStorage{}, nil, nil)
	w := httptest.NewRecorder()
	handler.PingHandler(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())

	handler = newHandler(&MockStorage{pingErr: db.ErrUnavailable}, nil, nil)
	w = httptest.NewRecorder()
	handler.PingHandler(w, httptest.NewRequest(http.MethodGet, "/api/ping", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetTendersHandler(t *testing.T) {
	var gotStatus models.TenderStatus
	var gotLimit, gotOffset int
	mockStore := &MockStorage{
		ListTendersFunc: func(ctx context.Context, status models.TenderStatus, limit, offset int) ([]models.Tender, error) {
			gotStatus, gotLimit, gotOffset = status, limit, offset
			return []models.Tender{{ID: 1, Title: "Sample Tender"}}, nil
		},
	}
	handler := newHandler(mockStore, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/tenders?status=missed_opportunity&limit=10&offset=20", nil)
	w := httptest.NewRecorder()
	handler.GetTendersHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), "Sample Tender")
	require.Equal(t, models.StatusMissedOpportunity, gotStatus)
	require.Equal(t, 10, gotLimit)
	require.Equal(t, 20, gotOffset)
}

func TestGetTendersHandlerRejectsUnknownStatus(t *testing.T) {
	handler := newHandler(&MockStorage{}, nil, nil)
	w := httptest.NewRecorder()
	handler.GetTendersHandler(w, httptest.NewRequest(http.MethodGet, "/api/tenders?status=closed", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTenderHandler(t *testing.T) {
	handler := newHandler(&MockStorage{tender: &models.Tender{ID: 7, Title: "Servers"}}, nil, nil)

	req := testutils.TenderRequest(http.MethodGet, "/api/tenders/7", "7", nil)
	w := httptest.NewRecorder()
	handler.GetTenderHandler(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Servers")

	req = testutils.TenderRequest(http.MethodGet, "/api/tenders/8", "8", nil)
	w = httptest.NewRecorder()
	handler.GetTenderHandler(w, req)
	require.Equal(t, http.StatusNotFound, w.Code)

	req = testutils.TenderRequest(http.MethodGet, "/api/tenders/abc", "abc", nil)
	w = httptest.NewRecorder()
	handler.GetTenderHandler(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChangeTenderStatusHandler(t *testing.T) {
	mockStore := &MockStorage{tender: &models.Tender{ID: 123, Status: models.StatusActive}}
	handler := newHandler(mockStore, nil, nil)

	req := testutils.TenderRequest(http.MethodPut, "/api/tenders/123/status", "123",
		strings.NewReader(`{"status":"assigned","actor":"lead","assignedTo":"anna"}`))
	w := httptest.NewRecorder()

	handler.ChangeTenderStatusHandler(w, req)

	res := w.Result()
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, string(body), `"status":"assigned"`)

	require.Len(t, mockStore.changes, 1)
	ch := mockStore.changes[0]
	require.Equal(t, models.StatusActive, ch.From)
	require.Equal(t, models.StatusAssigned, ch.To)
	require.Equal(t, "anna", *ch.AssignedTo)
	require.NotNil(t, ch.Log)
	require.Equal(t, models.ActionAssignment, ch.Log.Action)
	require.Equal(t, "lead", ch.Log.Actor)
}

func TestChangeTenderStatusHandlerErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    models.TenderStatus
		body      string
		updateErr error
		want      int
	}{
		{"invalid json", models.StatusActive, `{`, nil, http.StatusBadRequest},
		{"missing actor", models.StatusActive, `{"status":"submitted"}`, nil, http.StatusBadRequest},
		{"assigned without assignee", models.StatusActive, `{"status":"assigned","actor":"lead"}`, nil, http.StatusBadRequest},
		{"transition not allowed", models.StatusWon, `{"status":"active","actor":"lead"}`, nil, http.StatusUnprocessableEntity},
		{"unknown status", models.StatusActive, `{"status":"closed","actor":"lead"}`, nil, http.StatusUnprocessableEntity},
		{"concurrent change", models.StatusActive, `{"status":"submitted","actor":"lead"}`, db.ErrStaleStatus, http.StatusConflict},
		{"storage down", models.StatusActive, `{"status":"submitted","actor":"lead"}`, db.ErrUnavailable, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockStore := &MockStorage{
				tender:    &models.Tender{ID: 1, Status: tt.status},
				updateErr: tt.updateErr,
			}
			req := testutils.TenderRequest(http.MethodPut, "/api/tenders/1/status", "1", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			newHandler(mockStore, nil, nil).ChangeTenderStatusHandler(w, req)
			require.Equal(t, tt.want, w.Code)
		})
	}
}

func TestGetTenderActivityHandler(t *testing.T) {
	handler := newHandler(&MockStorage{}, nil, nil)
	req := testutils.TenderRequest(http.MethodGet, "/api/tenders/5/activity", "5", nil)
	w := httptest.NewRecorder()

	handler.GetTenderActivityHandler(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "missed_opportunity")
}

func TestUploadHandler(t *testing.T) {
	ing := &MockIngester{sum: ingest.Summary{UploadID: "u-42", Success: true, GemAdded: 3}}
	handler := newHandler(&MockStorage{}, ing, nil)

	req := testutils.UploadRequest(t, "/api/uploads", map[string]string{"kind": "tenders", "uploadedBy": "user1"}, "tenders.xlsx", []byte("xlsx bytes"))
	w := httptest.NewRecorder()

	handler.UploadHandler(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var sum ingest.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sum))
	require.Equal(t, "u-42", sum.UploadID)
	require.Equal(t, 3, sum.GemAdded)

	require.Equal(t, []byte("xlsx bytes"), ing.got.Data)
	require.Equal(t, "tenders.xlsx", ing.got.FileName)
	require.Equal(t, "user1", ing.got.UploadedBy)
	require.Equal(t, models.KindTenders, ing.got.Kind)
}

func TestUploadHandlerErrors(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]string
		file   string
		err    error
		want   int
	}{
		{"missing file", nil, "", nil, http.StatusBadRequest},
		{"bad kind", map[string]string{"kind": "bids"}, "a.xlsx", nil, http.StatusBadRequest},
		{"invalid workbook", nil, "a.xlsx", ingest.ErrInvalidWorkbook, http.StatusBadRequest},
		{"store down", nil, "a.xlsx", ingest.ErrStoreUnavailable, http.StatusServiceUnavailable},
		{"unexpected", nil, "a.xlsx", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ing := &MockIngester{sum: ingest.Summary{UploadID: "u-1", Error: "failed"}, err: tt.err}
			req := testutils.UploadRequest(t, "/api/uploads", tt.fields, tt.file, []byte("data"))
			w := httptest.NewRecorder()

			newHandler(&MockStorage{}, ing, nil).UploadHandler(w, req)
			require.Equal(t, tt.want, w.Code)
		})
	}
}

func TestUploadHandlerBodyLimit(t *testing.T) {
	ing := &MockIngester{}
	handler := handlers.NewHandler(&MockStorage{}, ing, nil, nil, 1024)

	req := testutils.UploadRequest(t, "/api/uploads", nil, "big.xlsx", bytes.Repeat([]byte("x"), 4096))
	w := httptest.NewRecorder()

	handler.UploadHandler(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Nil(t, ing.got.Data)
}

func TestUploadStreamHandler(t *testing.T) {
	ing := &MockIngester{
		sum: ingest.Summary{UploadID: "u-7", Success: true},
		updates: []ingest.ProgressUpdate{
			{UploadID: "u-7", Processed: 10, Total: 20, Percentage: 50},
			{UploadID: "u-7", Processed: 20, Total: 20, Percentage: 100, Completed: true},
		},
	}
	handler := newHandler(&MockStorage{}, ing, nil)

	req := testutils.UploadRequest(t, "/api/uploads/stream", nil, "a.xlsx", []byte("data"))
	w := httptest.NewRecorder()

	handler.UploadStreamHandler(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	out := w.Body.String()
	require.Equal(t, 2, strings.Count(out, "event: progress\n"))
	require.Equal(t, 1, strings.Count(out, "event: summary\n"))
	require.Less(t, strings.LastIndex(out, "event: progress"), strings.Index(out, "event: summary"))
	require.Contains(t, out, `"uploadId":"u-7"`)
	require.NotNil(t, ing.got.Progress)
}

func TestGetUploadsHandler(t *testing.T) {
	handler := newHandler(&MockStorage{}, nil, nil)
	w := httptest.NewRecorder()
	handler.GetUploadsHandler(w, httptest.NewRequest(http.MethodGet, "/api/uploads", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "tenders.xlsx")
}

func TestSweepHandler(t *testing.T) {
	sw := &MockSweeper{res: sweeper.Result{
		ProcessedCount: 1,
		Transitioned:   []sweeper.Transitioned{{ID: 3, Title: "Expired", Deadline: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}},
	}}
	w := httptest.NewRecorder()
	newHandler(&MockStorage{}, nil, sw).SweepHandler(w, httptest.NewRequest(http.MethodPost, "/api/sweeps", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"processedCount":1`)
	require.Contains(t, w.Body.String(), "Expired")

	w = httptest.NewRecorder()
	newHandler(&MockStorage{}, nil, &MockSweeper{err: db.ErrUnavailable}).
		SweepHandler(w, httptest.NewRequest(http.MethodPost, "/api/sweeps", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRoutesEndToEnd(t *testing.T) {
	store := testutils.NewMemStore()
	engine := ingest.NewEngine(store, nil, ingest.Options{TrackedCompany: "Appentus"})
	sw := sweeper.New(store, nil)
	handler := handlers.NewHandler(store, engine, sw, nil, 0)

	r := chi.NewRouter()
	r.Route("/api", handler.Routes)
	srv := httptest.NewServer(r)
	defer srv.Close()

	data := testutils.BuildWorkbook(t, testutils.SheetData{
		Name: "Sheet1",
		Rows: [][]any{
			{"Title", "Organization", "Deadline"},
			{"Old tender", "NIC", "01-01-2020"},
		},
	})
	body, contentType := testutils.MultipartForm(t, map[string]string{"uploadedBy": "user1"}, "t.xlsx", data)
	res, err := http.Post(srv.URL+"/api/uploads", contentType, body)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var sum ingest.Summary
	require.NoError(t, json.NewDecoder(res.Body).Decode(&sum))
	require.Equal(t, 1, sum.NonGemAdded)

	res, err = http.Post(srv.URL+"/api/sweeps", "application/json", nil)
	require.NoError(t, err)
	defer res.Body.Close()
	var sweep sweeper.Result
	require.NoError(t, json.NewDecoder(res.Body).Decode(&sweep))
	require.Len(t, sweep.Transitioned, 1)

	res, err = http.Get(srv.URL + "/api/tenders?status=missed_opportunity")
	require.NoError(t, err)
	defer res.Body.Close()
	var tenders []models.Tender
	require.NoError(t, json.NewDecoder(res.Body).Decode(&tenders))
	require.Len(t, tenders, 1)
	require.Equal(t, "Old tender", tenders[0].Title)

	res, err = http.Get(srv.URL + "/api/uploads")
	require.NoError(t, err)
	defer res.Body.Close()
	var audits []models.UploadAudit
	require.NoError(t, json.NewDecoder(res.Body).Decode(&audits))
	require.Len(t, audits, 1)
	require.Equal(t, "user1", audits[0].UploadedBy)
}
