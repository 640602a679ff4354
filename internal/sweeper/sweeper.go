package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tendertrack/db"
	"tendertrack/internal/logger"
	"tendertrack/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const actor = "sweeper"

var transitionsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "tendertrack",
	Subsystem: "sweeper",
	Name:      "transitions_total",
	Help:      "Total number of tenders moved to missed_opportunity",
})

// Store реализуется *db.Storage.
type Store interface {
	ListSweepCandidates(ctx context.Context, now time.Time) ([]models.Tender, error)
	UpdateTenderStatus(ctx context.Context, ch db.StatusChange) error
}

var _ Store = (*db.Storage)(nil)

// Тендер, переведенный в missed_opportunity
type Transitioned struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Organization string    `json:"organization"`
	Deadline     time.Time `json:"deadline"`
}

type Result struct {
	ProcessedCount int            `json:"processedCount"`
	Transitioned   []Transitioned `json:"transitioned"`
}

// Sweeper переводит неназначенные активные тендеры с истекшим дедлайном
// в missed_opportunity. Проходы сериализуются.
type Sweeper struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
	mu    sync.Mutex
}

type Option func(*Sweeper)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(s *Sweeper) { s.now = now }
}

func New(store Store, log *zap.Logger, opts ...Option) *Sweeper {
	s := &Sweeper{store: store, log: logger.OrNop(log), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep выполняет один проход. Повторный вызов безопасен: уже пропущенные
// тендеры не попадают в выборку. Тендер, статус которого успел измениться,
// пропускается. Недоступность хранилища прерывает проход.
func (s *Sweeper) Sweep(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	res := Result{Transitioned: []Transitioned{}}

	candidates, err := s.store.ListSweepCandidates(ctx, now)
	if err != nil {
		return res, fmt.Errorf("list sweep candidates: %w", err)
	}

	for _, t := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.ProcessedCount++
		// выборка уже отфильтрована, но назначение могло появиться в промежутке
		if t.IsAssigned() || !t.Deadline.Before(now) {
			continue
		}

		err := s.store.UpdateTenderStatus(ctx, db.StatusChange{
			TenderID: t.ID,
			From:     models.StatusActive,
			To:       models.StatusMissedOpportunity,
			Log: &models.ActivityLog{
				Action:     models.ActionMissedOpportunity,
				FromStatus: models.StatusActive,
				ToStatus:   models.StatusMissedOpportunity,
				Actor:      actor,
				Reason:     models.ReasonDeadlineExpired,
				Details: models.Payload{
					"deadline":     t.Deadline.Format(time.RFC3339),
					"swept_at":     now.Format(time.RFC3339),
					"identity_key": t.IdentityKey,
				},
			},
		})
		switch {
		case errors.Is(err, db.ErrStaleStatus):
			s.log.Debug("tender changed before sweep", zap.Int64("tender_id", t.ID))
			continue
		case err != nil:
			return res, fmt.Errorf("mark tender %d missed: %w", t.ID, err)
		}

		transitionsTotal.Inc()
		res.Transitioned = append(res.Transitioned, Transitioned{
			ID:           t.ID,
			Title:        t.Title,
			Organization: t.Organization,
			Deadline:     t.Deadline,
		})
		s.log.Info("tender marked as missed opportunity",
			zap.Int64("tender_id", t.ID),
			zap.String("title", t.Title),
			zap.Time("deadline", t.Deadline))
	}

	s.log.Info("sweep finished",
		zap.Int("processed", res.ProcessedCount),
		zap.Int("transitioned", len(res.Transitioned)))
	return res, nil
}

// Run запускает Sweep сразу и затем каждые interval, пока ctx не отменен.
// Ошибка прохода логируется, расписание продолжается.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("scheduled sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
