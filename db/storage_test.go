package db

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	require.NoError(t, classify(nil))
	require.ErrorIs(t, classify(sql.ErrNoRows), ErrNotFound)
	require.ErrorIs(t, classify(fmt.Errorf("scan: %w", sql.ErrNoRows)), ErrNotFound)

	dup := classify(&pq.Error{Code: "23505", Constraint: "tenders_identity_key_key"})
	require.ErrorIs(t, dup, ErrDuplicate)
	require.Contains(t, dup.Error(), "tenders_identity_key_key")

	require.ErrorIs(t, classify(&pq.Error{Code: "08006"}), ErrUnavailable)
	require.ErrorIs(t, classify(&pq.Error{Code: "57P01"}), ErrUnavailable)
	require.ErrorIs(t, classify(&pq.Error{Code: "53300"}), ErrUnavailable)
	require.ErrorIs(t, classify(driver.ErrBadConn), ErrUnavailable)
	require.ErrorIs(t, classify(sql.ErrConnDone), ErrUnavailable)

	checkViolation := &pq.Error{Code: "23514"}
	got := classify(checkViolation)
	require.False(t, errors.Is(got, ErrUnavailable))
	require.False(t, errors.Is(got, ErrDuplicate))

	require.ErrorIs(t, classify(ErrStaleStatus), ErrStaleStatus)
}
