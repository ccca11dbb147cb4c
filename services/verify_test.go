package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"enrollment-module/errors"
	"enrollment-module/models"
)

func signCheckout(orderID, paymentID string) string {
	h := hmac.New(sha256.New, []byte("test_key_secret"))
	h.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(h.Sum(nil))
}

// startCheckout creates an order and registers its captured payment at the
// fake gateway, returning what a real checkout callback would carry.
func startCheckout(t *testing.T, store *memStore, gw *memGateway, studentID, courseID int) (orderID, paymentID, sig string, enrollmentID int) {
	t.Helper()
	orders := NewOrders(store, gw)
	order, err := orders.Create(context.Background(), studentID, courseID, models.BatchTypeRegular, false)
	if err != nil {
		t.Fatalf("Create order failed: %v", err)
	}
	paymentID = "pay_" + order.OrderID
	gw.addCapturedPayment(order.OrderID, paymentID, order.Amount)
	return order.OrderID, paymentID, signCheckout(order.OrderID, paymentID), order.EnrollmentID
}

func newTestVerifier(store *memStore, gw *memGateway, notifier Notifier) *Verifier {
	return NewVerifier(store, gw, NewEnrollments(store), notifier)
}

func TestVerifyPayment(t *testing.T) {
	store, gw, student, course, batch := fixture(t)
	orderID, paymentID, sig, enrollmentID := startCheckout(t, store, gw, student.ID, course.ID)

	notifier := &memNotifier{}
	verifier := newTestVerifier(store, gw, notifier)

	result, err := verifier.VerifyPayment(orderID, paymentID, sig)
	if err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}
	if result.Status != models.EnrollmentStatusEnrolled {
		t.Fatalf("expected enrolled, got %s", result.Status)
	}
	if result.BatchID == nil || *result.BatchID != batch.ID {
		t.Fatalf("expected seat in batch %d", batch.ID)
	}

	enrollment, _ := store.GetEnrollment(context.Background(), enrollmentID)
	if enrollment.Payment.Status != models.PaymentStatusPaid {
		t.Fatalf("payment snapshot should be paid, got %s", enrollment.Payment.Status)
	}
	b, _ := store.GetBatch(context.Background(), batch.ID)
	if b.CurrentStudents != 1 {
		t.Fatalf("expected 1 seat taken, got %d", b.CurrentStudents)
	}
}

func TestVerifyPaymentIdempotent(t *testing.T) {
	store, gw, student, course, batch := fixture(t)
	orderID, paymentID, sig, _ := startCheckout(t, store, gw, student.ID, course.ID)
	verifier := newTestVerifier(store, gw, nil)

	first, err := verifier.VerifyPayment(orderID, paymentID, sig)
	if err != nil {
		t.Fatalf("first verify failed: %v", err)
	}

	// Same callback delivered again: same outcome, no second seat.
	second, err := verifier.VerifyPayment(orderID, paymentID, sig)
	if err != nil {
		t.Fatalf("replayed verify failed: %v", err)
	}
	if second.EnrollmentID != first.EnrollmentID || second.Status != first.Status {
		t.Fatalf("replay returned a different result: %+v vs %+v", second, first)
	}
	if *second.BatchID != *first.BatchID {
		t.Fatalf("replay returned a different batch")
	}

	b, _ := store.GetBatch(context.Background(), batch.ID)
	if b.CurrentStudents != 1 {
		t.Fatalf("replay must not increment seats, got %d", b.CurrentStudents)
	}
}

func TestVerifyPaymentTamperedSignature(t *testing.T) {
	store, gw, student, course, batch := fixture(t)
	orderID, paymentID, _, enrollmentID := startCheckout(t, store, gw, student.ID, course.ID)
	verifier := newTestVerifier(store, gw, nil)

	_, err := verifier.VerifyPayment(orderID, paymentID, signCheckout(orderID, "pay_forged"))
	if !errors.IsKind(err, errors.SignatureMismatch) {
		t.Fatalf("expected SignatureMismatch, got %v", err)
	}

	// Zero mutation: enrollment pending, payment pending, no seat taken.
	enrollment, _ := store.GetEnrollment(context.Background(), enrollmentID)
	if enrollment.Status != models.EnrollmentStatusPending {
		t.Fatalf("forged callback must not change enrollment, got %s", enrollment.Status)
	}
	payment := store.paymentForEnrollment(enrollmentID)
	if payment.Status != models.PaymentStatusPending {
		t.Fatalf("forged callback must not change payment, got %s", payment.Status)
	}
	b, _ := store.GetBatch(context.Background(), batch.ID)
	if b.CurrentStudents != 0 {
		t.Fatalf("forged callback must not take a seat")
	}
}

func TestVerifyPaymentNotCaptured(t *testing.T) {
	store, gw, student, course, _ := fixture(t)
	orders := NewOrders(store, gw)
	order, err := orders.Create(context.Background(), student.ID, course.ID, models.BatchTypeRegular, false)
	if err != nil {
		t.Fatalf("Create order failed: %v", err)
	}
	paymentID := "pay_" + order.OrderID
	gw.addFailedPayment(order.OrderID, paymentID, order.Amount)
	verifier := newTestVerifier(store, gw, nil)

	_, err = verifier.VerifyPayment(order.OrderID, paymentID, signCheckout(order.OrderID, paymentID))
	if !errors.IsKind(err, errors.PaymentNotCaptured) {
		t.Fatalf("expected PaymentNotCaptured, got %v", err)
	}
}

func TestVerifyPaymentAmountMismatch(t *testing.T) {
	store, gw, student, course, _ := fixture(t)
	orders := NewOrders(store, gw)
	order, err := orders.Create(context.Background(), student.ID, course.ID, models.BatchTypeRegular, false)
	if err != nil {
		t.Fatalf("Create order failed: %v", err)
	}
	paymentID := "pay_" + order.OrderID
	gw.addCapturedPayment(order.OrderID, paymentID, order.Amount-500)
	verifier := newTestVerifier(store, gw, nil)

	_, err = verifier.VerifyPayment(order.OrderID, paymentID, signCheckout(order.OrderID, paymentID))
	if !errors.IsKind(err, errors.Conflict) {
		t.Fatalf("expected Conflict on amount mismatch, got %v", err)
	}
}

func TestVerifyPaymentGatewayDownLeavesPending(t *testing.T) {
	store, gw, student, course, _ := fixture(t)
	orderID, paymentID, sig, enrollmentID := startCheckout(t, store, gw, student.ID, course.ID)
	gw.fetchErr = context.DeadlineExceeded
	verifier := newTestVerifier(store, gw, nil)

	_, err := verifier.VerifyPayment(orderID, paymentID, sig)
	if !errors.IsKind(err, errors.GatewayUnavailable) {
		t.Fatalf("expected GatewayUnavailable, got %v", err)
	}

	// Still pending so the reconciler can settle it later.
	enrollment, _ := store.GetEnrollment(context.Background(), enrollmentID)
	if enrollment.Status != models.EnrollmentStatusPending {
		t.Fatalf("enrollment should stay pending, got %s", enrollment.Status)
	}
}

func TestVerifyPaymentWrongOrder(t *testing.T) {
	store, gw, student, course, _ := fixture(t)
	orderID, _, _, _ := startCheckout(t, store, gw, student.ID, course.ID)

	other := store.addStudent(models.Student{Name: "Ravi Iyer"})
	_, otherPaymentID, _, _ := startCheckout(t, store, gw, other.ID, course.ID)
	verifier := newTestVerifier(store, gw, nil)

	// Valid signature, but the payment belongs to another order.
	_, err := verifier.VerifyPayment(orderID, otherPaymentID, signCheckout(orderID, otherPaymentID))
	if !errors.IsKind(err, errors.Invalid) {
		t.Fatalf("expected InvalidParams for cross-order payment, got %v", err)
	}
}
