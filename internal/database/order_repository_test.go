package database

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vrental/booking-service/internal/models"
)

func orderRow(id int64, userID uuid.UUID, status string, now time.Time) []driver.Value {
	return []driver.Value{
		id, userID.String(), int64(7), now.Add(time.Hour), now.Add(5 * time.Hour), status,
		100000.0, 400000.0, 120000.0, 85,
		"0123456789abcdef0123456789abcdef", nil, nil, nil,
		now.Add(5 * time.Minute), now, now,
	}
}

func TestOrderRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	token := "0123456789abcdef0123456789abcdef"

	order := &models.Order{
		UserID:        uuid.New(),
		VehicleID:     7,
		FromDate:      now.Add(time.Hour),
		ToDate:        now.Add(5 * time.Hour),
		Status:        models.OrderPending,
		HourlyRate:    100000,
		TotalCost:     400000,
		DepositAmount: 120000,
		TrustScore:    85,
		SoftLockToken: &token,
		ExpiresAt:     now.Add(5 * time.Minute),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	t.Run("Success", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO orders").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(101)))

		require.NoError(t, repo.Create(context.Background(), order))
		assert.Equal(t, int64(101), order.ID)
	})

	t.Run("Overlap Constraint Maps To Unavailable", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO orders").
			WillReturnError(&pq.Error{Code: "23P01"})

		err := repo.Create(context.Background(), order)
		assert.ErrorIs(t, err, models.ErrVehicleUnavailable)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	userID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id").
		WithArgs(int64(101)).
		WillReturnRows(sqlmock.NewRows(orderRowColumns).AddRow(orderRow(101, userID, "pending", now)...))

	order, err := repo.GetByID(context.Background(), 101)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, userID, order.UserID)
	require.NotNil(t, order.SoftLockToken)
	assert.Nil(t, order.PaidAt)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE id").
		WithArgs(int64(999)).
		WillReturnRows(sqlmock.NewRows(orderRowColumns))

	order, err = repo.GetByID(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, order)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_Transition(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Payment Applies With Deadline Guard", func(t *testing.T) {
		txn := "TXN-1"
		mock.ExpectExec("UPDATE orders").
			WithArgs("paid", now, nil, &txn, &now, int64(101), "pending", now).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := repo.Transition(context.Background(), 101, models.OrderTransition{
			From:                 []models.OrderStatus{models.OrderPending},
			To:                   models.OrderPaid,
			At:                   now,
			PaymentTransactionID: &txn,
			NotAfter:             &now,
		})
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Cancel From Several Statuses Lost Race", func(t *testing.T) {
		reason := "changed plans"
		mock.ExpectExec("UPDATE orders").
			WithArgs("cancelled", now, &reason, nil, nil, int64(101), "pending", "paid").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := repo.Transition(context.Background(), 101, models.OrderTransition{
			From:         []models.OrderStatus{models.OrderPending, models.OrderPaid},
			To:           models.OrderCancelled,
			At:           now,
			CancelReason: &reason,
		})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Requires Source Status", func(t *testing.T) {
		_, err := repo.Transition(context.Background(), 101, models.OrderTransition{To: models.OrderPaid, At: now})
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_OverlapAndListing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewOrderRepository(db)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	userID := uuid.New()
	from, to := now.Add(time.Hour), now.Add(2*time.Hour)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(int64(7), from, to).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	busy, err := repo.HasActiveOverlap(context.Background(), 7, from, to)
	require.NoError(t, err)
	assert.False(t, busy)

	mock.ExpectQuery("SELECT (.+) FROM orders WHERE user_id").
		WithArgs(userID, models.OrderPaid, 20, 0).
		WillReturnRows(sqlmock.NewRows(orderRowColumns).AddRow(orderRow(5, userID, "paid", now)...))

	orders, err := repo.ListByUser(context.Background(), userID, models.OrderPaid, 20, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	mock.ExpectQuery("SELECT (.+) FROM orders").
		WithArgs(now, 100).
		WillReturnRows(sqlmock.NewRows(orderRowColumns).
			AddRow(orderRow(1, userID, "pending", now.Add(-time.Hour))...).
			AddRow(orderRow(2, userID, "pending", now.Add(-time.Hour))...))

	expired, err := repo.ListExpiredPending(context.Background(), now, 100)
	require.NoError(t, err)
	assert.Len(t, expired, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
