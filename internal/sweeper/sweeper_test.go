package sweeper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"tendertrack/db"
	"tendertrack/internal/ingest"
	"tendertrack/internal/sweeper"
	"tendertrack/internal/testutils"
	"tendertrack/models"

	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

func seed(store *testutils.MemStore, title string, status models.TenderStatus, deadline time.Time, assignee string) *models.Tender {
	t := models.Tender{
		IdentityKey:  "title:" + title,
		Title:        title,
		Organization: "NIC",
		Deadline:     deadline,
		Status:       status,
		Source:       models.SourceNonGem,
	}
	if assignee != "" {
		t.AssignedTo = &assignee
	}
	return store.SeedTender(t)
}

func TestSweep(t *testing.T) {
	store := testutils.NewMemStore()
	expired := seed(store, "Expired", models.StatusActive, now.AddDate(0, 0, -1), "")
	seed(store, "Future", models.StatusActive, now.AddDate(0, 0, 1), "")
	seed(store, "Assigned", models.StatusActive, now.AddDate(0, 0, -1), "anna")
	seed(store, "Submitted", models.StatusSubmitted, now.AddDate(0, 0, -1), "")
	seed(store, "Already missed", models.StatusMissedOpportunity, now.AddDate(0, 0, -5), "")

	s := sweeper.New(store, nil, sweeper.WithClock(clock))
	res, err := s.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.ProcessedCount)
	require.Equal(t, []sweeper.Transitioned{{
		ID:           expired.ID,
		Title:        "Expired",
		Organization: "NIC",
		Deadline:     expired.Deadline,
	}}, res.Transitioned)

	got, err := store.GetTender(context.Background(), expired.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusMissedOpportunity, got.Status)

	logs := store.Logs()
	require.Len(t, logs, 1)
	require.Equal(t, expired.ID, logs[0].TenderID)
	require.Equal(t, models.ActionMissedOpportunity, logs[0].Action)
	require.Equal(t, models.StatusActive, logs[0].FromStatus)
	require.Equal(t, models.StatusMissedOpportunity, logs[0].ToStatus)
	require.Equal(t, models.ReasonDeadlineExpired, logs[0].Reason)

	// повторный проход ничего не меняет
	res, err = s.Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, res.ProcessedCount)
	require.Empty(t, res.Transitioned)
	require.Len(t, store.Logs(), 1)
}

type staleStore struct {
	*testutils.MemStore
}

func (s staleStore) UpdateTenderStatus(ctx context.Context, ch db.StatusChange) error {
	return db.ErrStaleStatus
}

func TestSweepSkipsConcurrentlyChangedTenders(t *testing.T) {
	store := testutils.NewMemStore()
	seed(store, "Expired", models.StatusActive, now.AddDate(0, 0, -1), "")

	res, err := sweeper.New(staleStore{store}, nil, sweeper.WithClock(clock)).Sweep(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, res.ProcessedCount)
	require.Empty(t, res.Transitioned)
}

func TestSweepStoreUnavailable(t *testing.T) {
	store := testutils.NewMemStore()
	store.Err = db.ErrUnavailable

	_, err := sweeper.New(store, nil, sweeper.WithClock(clock)).Sweep(context.Background())
	require.ErrorIs(t, err, db.ErrUnavailable)
}

func TestRunStopsOnCancel(t *testing.T) {
	store := testutils.NewMemStore()
	seed(store, "Expired", models.StatusActive, now.AddDate(0, 0, -1), "")
	s := sweeper.New(store, nil, sweeper.WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx, time.Hour)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(store.Logs()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRunDisabled(t *testing.T) {
	store := testutils.NewMemStore()
	seed(store, "Expired", models.StatusActive, now.AddDate(0, 0, -1), "")

	sweeper.New(store, nil, sweeper.WithClock(clock)).Run(context.Background(), 0)
	require.Empty(t, store.Logs())
}

func TestMissedOpportunityRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := testutils.NewMemStore()
	s := sweeper.New(store, nil, sweeper.WithClock(clock))

	var sweeps int
	engine := ingest.NewEngine(store, nil, ingest.Options{
		TrackedCompany: "Appentus",
		Now:            clock,
		AfterIngest: func(ctx context.Context, _ ingest.Summary) {
			sweeps++
			_, err := s.Sweep(ctx)
			require.NoError(t, err)
		},
	})

	tender := seed(store, "Data centre upgrade", models.StatusActive, now.AddDate(0, 0, -1), "")

	res, err := s.Sweep(ctx)
	require.NoError(t, err)
	require.Len(t, res.Transitioned, 1)

	data := testutils.BuildWorkbook(t, testutils.SheetData{
		Name: "Sheet1",
		Rows: [][]any{
			{"Title", "Organization", "Deadline"},
			{"Data centre upgrade", "NIC", now.AddDate(0, 1, 0).Format("2006-01-02")},
		},
	})
	sum, err := engine.Ingest(ctx, ingest.Upload{Data: data, FileName: "update.xlsx"})
	require.NoError(t, err)
	require.Equal(t, 1, sum.Reactivated)
	require.Equal(t, 1, sweeps)

	got, err := store.GetTender(ctx, tender.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusActive, got.Status)

	logs, err := store.ListActivityLogs(ctx, tender.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, models.ActionMissedOpportunity, logs[0].Action)
	require.Equal(t, models.ActionReactivated, logs[1].Action)
}

func TestSweepHonoursContext(t *testing.T) {
	store := testutils.NewMemStore()
	seed(store, "Expired", models.StatusActive, now.AddDate(0, 0, -1), "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sweeper.New(store, nil, sweeper.WithClock(clock)).Sweep(ctx)
	require.True(t, errors.Is(err, context.Canceled))
	require.Empty(t, store.Logs())
}
