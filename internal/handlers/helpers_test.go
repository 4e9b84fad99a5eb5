package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"github.com/vrental/booking-service/internal/middleware"
	"github.com/vrental/booking-service/internal/models"
	"github.com/vrental/booking-service/pkg/jwt"
	"github.com/vrental/booking-service/pkg/validator"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := validator.RegisterBindingValidators(); err != nil {
		panic(err)
	}
}

var testJWT = jwt.NewService("handler-test-secret-0123456789", "vrental-identity")

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func tokenFor(t *testing.T, userID uuid.UUID, roles ...string) string {
	t.Helper()
	token, err := testJWT.GenerateAccessToken(userID, roles, time.Hour)
	require.NoError(t, err)
	return token
}

func authed(logger *logrus.Logger) gin.HandlerFunc {
	return middleware.AuthMiddleware(testJWT, logger, false)
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// stubBookings implements BookingService and OrderService with overridable
// behaviour per test.
type stubBookings struct {
	preview        func(userID uuid.UUID, req *models.PreviewRequest) (*models.PreviewResponse, error)
	confirm        func(userID uuid.UUID, req *models.ConfirmRequest) (*models.ConfirmResponse, error)
	getSoftLock    func(actor models.Actor, token string) (*models.SoftLock, error)
	cancelSoftLock func(actor models.Actor, token, reason string) (*models.SoftLock, error)
	getOrder       func(actor models.Actor, id int64) (*models.Order, error)
	listOrders     func(userID uuid.UUID, status models.OrderStatus, limit, offset int) ([]models.Order, error)
	cancelOrder    func(actor models.Actor, id int64, reason string) (*models.Order, error)
	startRental    func(actor models.Actor, id int64) (*models.Order, error)
	completeRental func(actor models.Actor, id int64) (*models.Order, error)
}

func (s *stubBookings) Preview(_ context.Context, userID uuid.UUID, req *models.PreviewRequest) (*models.PreviewResponse, error) {
	return s.preview(userID, req)
}

func (s *stubBookings) Confirm(_ context.Context, userID uuid.UUID, req *models.ConfirmRequest) (*models.ConfirmResponse, error) {
	return s.confirm(userID, req)
}

func (s *stubBookings) GetSoftLock(_ context.Context, actor models.Actor, token string) (*models.SoftLock, error) {
	return s.getSoftLock(actor, token)
}

func (s *stubBookings) CancelSoftLock(_ context.Context, actor models.Actor, token, reason string) (*models.SoftLock, error) {
	return s.cancelSoftLock(actor, token, reason)
}

func (s *stubBookings) GetOrder(_ context.Context, actor models.Actor, id int64) (*models.Order, error) {
	return s.getOrder(actor, id)
}

func (s *stubBookings) ListUserOrders(_ context.Context, userID uuid.UUID, status models.OrderStatus, limit, offset int) ([]models.Order, error) {
	return s.listOrders(userID, status, limit, offset)
}

func (s *stubBookings) CancelOrder(_ context.Context, actor models.Actor, id int64, reason string) (*models.Order, error) {
	return s.cancelOrder(actor, id, reason)
}

func (s *stubBookings) StartRental(_ context.Context, actor models.Actor, id int64) (*models.Order, error) {
	return s.startRental(actor, id)
}

func (s *stubBookings) CompleteRental(_ context.Context, actor models.Actor, id int64) (*models.Order, error) {
	return s.completeRental(actor, id)
}
