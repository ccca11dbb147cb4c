package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"enrollment-module/errors"
	"enrollment-module/models"
)

func webhookBody(t *testing.T, webhookID, event, orderID, paymentID string) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"id":    webhookID,
		"event": event,
		"payload": map[string]interface{}{
			"payment": map[string]interface{}{
				"entity": map[string]interface{}{
					"id":       paymentID,
					"order_id": orderID,
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal webhook body: %v", err)
	}
	h := hmac.New(sha256.New, []byte("test_webhook_secret"))
	h.Write(body)
	return body, hex.EncodeToString(h.Sum(nil))
}

func TestWebhookCapturedSettlesEnrollment(t *testing.T) {
	store, gw, student, course, _ := fixture(t)
	orderID, paymentID, _, enrollmentID := startCheckout(t, store, gw, student.ID, course.ID)

	processor := NewWebhookProcessor(store, NewEnrollments(store))
	body, sig := webhookBody(t, "evt_1", "payment.captured", orderID, paymentID)
	if err := processor.Process(context.Background(), body, sig); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	e, _ := store.GetEnrollment(context.Background(), enrollmentID)
	if e.Status != models.EnrollmentStatusEnrolled {
		t.Fatalf("webhook capture should enroll, got %s", e.Status)
	}
}

func TestWebhookAfterCheckoutCallbackIsNoop(t *testing.T) {
	store, gw, student, course, batch := fixture(t)
	orderID, paymentID, sig, _ := startCheckout(t, store, gw, student.ID, course.ID)

	verifier := newTestVerifier(store, gw, nil)
	if _, err := verifier.VerifyPayment(orderID, paymentID, sig); err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}

	processor := NewWebhookProcessor(store, NewEnrollments(store))
	body, whSig := webhookBody(t, "evt_2", "payment.captured", orderID, paymentID)
	if err := processor.Process(context.Background(), body, whSig); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	b, _ := store.GetBatch(context.Background(), batch.ID)
	if b.CurrentStudents != 1 {
		t.Fatalf("webhook after callback must not take a second seat, got %d", b.CurrentStudents)
	}
}

func TestWebhookBadSignature(t *testing.T) {
	store, gw, student, course, _ := fixture(t)
	orderID, paymentID, _, enrollmentID := startCheckout(t, store, gw, student.ID, course.ID)

	processor := NewWebhookProcessor(store, NewEnrollments(store))
	body, _ := webhookBody(t, "evt_3", "payment.captured", orderID, paymentID)
	err := processor.Process(context.Background(), body, "deadbeef")
	if !errors.IsKind(err, errors.SignatureMismatch) {
		t.Fatalf("expected SignatureMismatch, got %v", err)
	}

	e, _ := store.GetEnrollment(context.Background(), enrollmentID)
	if e.Status != models.EnrollmentStatusPending {
		t.Fatalf("unsigned webhook must not mutate state, got %s", e.Status)
	}
}

func TestWebhookPaymentFailed(t *testing.T) {
	store, gw, student, course, _ := fixture(t)
	orderID, paymentID, _, enrollmentID := startCheckout(t, store, gw, student.ID, course.ID)

	processor := NewWebhookProcessor(store, NewEnrollments(store))
	body, sig := webhookBody(t, "evt_4", "payment.failed", orderID, paymentID)
	if err := processor.Process(context.Background(), body, sig); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	e, _ := store.GetEnrollment(context.Background(), enrollmentID)
	if e.Status != models.EnrollmentStatusCancelled {
		t.Fatalf("failed payment should cancel the pending enrollment, got %s", e.Status)
	}
	p, _ := store.GetPaymentByOrderID(context.Background(), orderID)
	if p.Status != models.PaymentStatusFailed {
		t.Fatalf("payment should be failed, got %s", p.Status)
	}
}

func TestWebhookDuplicateDeliveryLogged(t *testing.T) {
	store, gw, student, course, _ := fixture(t)
	orderID, paymentID, _, _ := startCheckout(t, store, gw, student.ID, course.ID)

	processor := NewWebhookProcessor(store, NewEnrollments(store))
	body, sig := webhookBody(t, "evt_5", "payment.captured", orderID, paymentID)
	if err := processor.Process(context.Background(), body, sig); err != nil {
		t.Fatalf("first delivery failed: %v", err)
	}
	if err := processor.Process(context.Background(), body, sig); err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}

	store.mu.Lock()
	w := store.webhooks["evt_5"]
	store.mu.Unlock()
	if w == nil {
		t.Fatalf("webhook not logged")
	}
	if w.RetryCount != 1 {
		t.Fatalf("redelivery should bump retry count, got %d", w.RetryCount)
	}
	if w.Status != models.WebhookStatusProcessed {
		t.Fatalf("expected PROCESSED, got %s", w.Status)
	}
}
