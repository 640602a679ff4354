package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/sethvargo/go-retry"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicate   = errors.New("identity key already exists")
	ErrUnavailable = errors.New("storage unavailable")
	// запись уже не в ожидаемом статусе (параллельное изменение)
	ErrStaleStatus = errors.New("tender status changed concurrently")
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// DB отдает пул соединений (нужен миграциям).
func (s *Storage) DB() *sqlx.DB {
	return s.db
}

// Ping проверяет доступность БД.
func (s *Storage) Ping(ctx context.Context) error {
	return classify(s.db.PingContext(ctx))
}

// Connect открывает соединение с Postgres, повторяя попытки с экспоненциальной паузой.
func Connect(ctx context.Context, dsn string, attempts int) (*sqlx.DB, error) {
	if attempts < 1 {
		attempts = 1
	}
	var conn *sqlx.DB
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := sqlx.ConnectContext(ctx, "postgres", dsn)
		if err != nil {
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return conn, nil
}

// withTx выполняет fn в транзакции, откатывая ее при ошибке.
func (s *Storage) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback() //nolint:errcheck // после Commit это no-op

	if err := fn(tx); err != nil {
		return err
	}
	return classify(tx.Commit())
}

// classify переводит ошибки драйвера в ошибки слоя хранения.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrUnavailable) || errors.Is(err, ErrStaleStatus) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == "23505" { // unique_violation
			return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
		}
		switch pqErr.Code.Class() {
		case "08", "53", "57": // connection_exception, insufficient_resources, operator_intervention
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}
