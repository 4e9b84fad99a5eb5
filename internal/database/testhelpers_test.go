package database

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

var softLockRowColumns = []string{
	"token", "vehicle_id", "user_id", "from_date", "to_date", "status",
	"hourly_rate", "total_cost", "deposit_amount", "deposit_percentage", "trust_score",
	"cancel_reason", "expires_at", "created_at", "updated_at",
}

var orderRowColumns = []string{
	"id", "user_id", "vehicle_id", "from_date", "to_date", "status",
	"hourly_rate", "total_cost", "deposit_amount", "trust_score",
	"soft_lock_token", "cancel_reason", "payment_transaction_id", "paid_at",
	"expires_at", "created_at", "updated_at",
}

func softLockRow(token string, userID uuid.UUID, status string, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(softLockRowColumns).AddRow(
		token, int64(7), userID.String(), now.Add(time.Hour), now.Add(5*time.Hour), status,
		100000.0, 400000.0, 120000.0, 0.3, 85,
		nil, now.Add(5*time.Minute), now, now,
	)
}
