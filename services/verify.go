package services

import (
	"context"
	"math"

	"enrollment-module/config"
	"enrollment-module/errors"
	"enrollment-module/gateway"
	"enrollment-module/logger"
	"enrollment-module/models"
)

// Notifier sends student-facing notifications after settlement.
type Notifier interface {
	SendEnrollmentConfirmation(studentID, enrollmentID int, orderID string) error
}

// Verifier settles checkout payments: signature check, gateway capture
// check, then the seat confirmation. Replays with the same order id observe
// the first call's outcome.
type Verifier struct {
	store       Store
	gateway     gateway.PaymentGateway
	enrollments *Enrollments
	notifier    Notifier
}

func NewVerifier(store Store, gw gateway.PaymentGateway, enrollments *Enrollments, notifier Notifier) *Verifier {
	return &Verifier{store: store, gateway: gw, enrollments: enrollments, notifier: notifier}
}

// VerifyPayment handles the checkout callback for orderID/paymentID signed
// with signature. The signature gate runs before any lookup or mutation: a
// forged callback touches nothing. Once verification begins it runs on a
// detached context so a client disconnect cannot strand a captured payment
// half-settled.
func (s *Verifier) VerifyPayment(orderID, paymentID, signature string) (*models.EnrollmentResult, error) {
	if orderID == "" || paymentID == "" || signature == "" {
		return nil, errors.NewInvalidParamsError("order id, payment id and signature are required")
	}
	if !gateway.VerifyCheckoutSignature(orderID, paymentID, signature, config.AppConfig.RazorpayKeySecret) {
		logger.Warn("[VERIFY] Signature mismatch - OrderID: %s, PaymentID: %s", orderID, paymentID)
		return nil, errors.NewSignatureMismatchError("payment signature verification failed")
	}

	// Detached from the caller: settlement survives client disconnects.
	ctx, cancel := context.WithTimeout(context.Background(), config.AppConfig.GatewayTimeout)
	defer cancel()

	payment, err := s.store.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.store.GetEnrollment(ctx, payment.EnrollmentID)
	if err != nil {
		return nil, err
	}

	if payment.Status == models.PaymentStatusPaid {
		// Idempotent replay.
		if payment.RefundOwed {
			return nil, errors.NewBatchFullError("payment captured but no seat was available; refund owed")
		}
		return &models.EnrollmentResult{
			EnrollmentID: enrollment.ID,
			BatchID:      enrollment.BatchID,
			Status:       enrollment.Status,
		}, nil
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, errors.NewConflictError("payment is already settled as " + payment.Status)
	}

	details, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		// Enrollment stays pending; the reconciler picks it up.
		return nil, errors.NewGatewayUnavailableError("could not fetch payment from gateway", err)
	}
	if details.OrderID != orderID {
		return nil, errors.NewInvalidParamsError("payment does not belong to this order")
	}
	if !details.Captured() {
		return nil, errors.NewPaymentNotCapturedError("payment is not captured: " + details.Status)
	}
	if math.Abs(details.Amount-payment.Amount) > 0.009 {
		logger.Error("[VERIFY] Amount mismatch - OrderID: %s, expected %.2f got %.2f",
			orderID, payment.Amount, details.Amount)
		return nil, errors.NewConflictError("captured amount does not match order amount")
	}

	result, err := s.enrollments.Confirm(ctx, enrollment, paymentID, signature, "checkout")
	if err != nil {
		return nil, err
	}

	logger.Info("[VERIFY] Payment verified - OrderID: %s, PaymentID: %s, EnrollmentID: %d",
		orderID, paymentID, result.EnrollmentID)
	PublishPaymentVerified(payment.StudentID, orderID, paymentID, "checkout")
	if s.notifier != nil {
		go func() {
			if err := s.notifier.SendEnrollmentConfirmation(payment.StudentID, result.EnrollmentID, orderID); err != nil {
				logger.Warn("[VERIFY] Confirmation email failed - EnrollmentID: %d: %v", result.EnrollmentID, err)
			}
		}()
	}
	return result, nil
}
