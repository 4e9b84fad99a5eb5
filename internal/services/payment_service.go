package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vrental/booking-service/internal/models"
)

// Payment callback statuses
const (
	PaymentStatusSuccess = "success"
	PaymentStatusFailed  = "failed"
)

// PaymentService verifies callbacks from the payment collaborator and applies
// them to orders. The amount due on a pending order is its deposit.
type PaymentService struct {
	signingSecret []byte
	tolerance     float64
	orders        OrderStore
	orchestrator  *BookingOrchestratorService
	audit         PaymentAuditLog
	currency      string
	logger        *logrus.Logger
}

// PaymentAuditLog persists the payment callback audit trail
type PaymentAuditLog interface {
	Log(ctx context.Context, audit *models.PaymentAudit) error
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	signingSecret string,
	tolerance float64,
	orders OrderStore,
	orchestrator *BookingOrchestratorService,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		signingSecret: []byte(signingSecret),
		tolerance:     tolerance,
		orders:        orders,
		orchestrator:  orchestrator,
		logger:        logger,
	}
}

// WithAuditLog records every processed callback in audit, amounts tagged
// with currency
func (s *PaymentService) WithAuditLog(audit PaymentAuditLog, currency string) *PaymentService {
	s.audit = audit
	s.currency = currency
	return s
}

// GenerateSignature returns the uppercase hex HMAC-SHA512 over
// "orderId|transactionId|amount|status", amount formatted with two decimals.
func (s *PaymentService) GenerateSignature(orderID int64, transactionID string, amount float64, status string) string {
	data := fmt.Sprintf("%d|%s|%.2f|%s", orderID, transactionID, amount, status)
	mac := hmac.New(sha512.New, s.signingSecret)
	mac.Write([]byte(data))
	return strings.ToUpper(hex.EncodeToString(mac.Sum(nil)))
}

// VerifySignature checks the callback signature in constant time
func (s *PaymentService) VerifySignature(req *models.PaymentCallbackRequest) bool {
	got, err := hex.DecodeString(req.Signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(s.GenerateSignature(req.OrderID, req.TransactionID, req.Amount, req.Status))
	return hmac.Equal(got, want)
}

// ProcessCallback validates a payment callback and applies it to the order.
// Every callback is recorded in the audit log when one is attached.
func (s *PaymentService) ProcessCallback(ctx context.Context, req *models.PaymentCallbackRequest) (*models.Order, error) {
	startTime := time.Now()
	audit := models.NewPaymentAudit(req, s.currency)

	order, err := s.processCallback(ctx, req, audit)

	audit.Finish(err, startTime)
	s.recordAudit(ctx, audit)
	return order, err
}

func (s *PaymentService) processCallback(
	ctx context.Context,
	req *models.PaymentCallbackRequest,
	audit *models.PaymentAudit,
) (*models.Order, error) {
	if !s.VerifySignature(req) {
		s.logger.WithFields(logrus.Fields{
			"order_id":       req.OrderID,
			"transaction_id": req.TransactionID,
		}).Warn("Payment callback with invalid signature")
		return nil, models.ErrInvalidSignature
	}
	audit.SignatureValid = true

	order, err := s.orders.GetByID(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, models.ErrOrderNotFound
	}

	switch strings.ToLower(req.Status) {
	case PaymentStatusSuccess:
		audit.IsDuplicate = order.Status == models.OrderPaid &&
			order.PaymentTransactionID != nil && *order.PaymentTransactionID == req.TransactionID
		if !audit.SetExpected(order.DepositAmount, s.tolerance) {
			s.logger.WithFields(logrus.Fields{
				"order_id": req.OrderID,
				"paid":     req.Amount,
				"expected": order.DepositAmount,
			}).Warn("Payment amount mismatch")
			return nil, models.ErrAmountMismatch
		}
		return s.orchestrator.ConfirmPayment(ctx, req.OrderID, req.TransactionID, req.GatewayResponse)

	case PaymentStatusFailed:
		return s.orchestrator.FailPayment(ctx, req.OrderID, req.TransactionID, req.GatewayResponse)

	default:
		return nil, fmt.Errorf("unknown payment status %q", req.Status)
	}
}

// recordAudit writes the audit entry outside the request's cancellation.
// A failed write is logged; the callback result stands.
func (s *PaymentService) recordAudit(ctx context.Context, audit *models.PaymentAudit) {
	if s.audit == nil {
		return
	}
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.audit.Log(auditCtx, audit); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"order_id":       audit.OrderID,
			"transaction_id": audit.TransactionID,
			"outcome":        audit.Outcome,
		}).Error("Failed to record payment audit")
	}
}
