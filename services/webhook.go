package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"enrollment-module/config"
	"enrollment-module/errors"
	"enrollment-module/gateway"
	"enrollment-module/logger"
	"enrollment-module/models"
)

// RazorpayWebhookPayload is the envelope Razorpay posts to the webhook URL.
type RazorpayWebhookPayload struct {
	ID        string                 `json:"id"`
	Event     string                 `json:"event"`
	CreatedAt int64                  `json:"created_at"`
	Contains  []string               `json:"contains"`
	Payload   map[string]interface{} `json:"payload"`
}

// WebhookProcessor settles payments announced by gateway webhooks. It shares
// the enrollment state machine with checkout verification, so a webhook
// arriving after (or racing) the browser callback settles to the same state.
type WebhookProcessor struct {
	store       Store
	enrollments *Enrollments
}

func NewWebhookProcessor(store Store, enrollments *Enrollments) *WebhookProcessor {
	return &WebhookProcessor{store: store, enrollments: enrollments}
}

// Process verifies and handles one webhook delivery. body is the raw request
// body; the signature must be computed over those exact bytes.
func (p *WebhookProcessor) Process(ctx context.Context, body []byte, signature string) error {
	if !gateway.VerifyWebhookSignature(body, signature, config.AppConfig.RazorpayWebhookSecret) {
		logger.Warn("[WEBHOOK] Signature verification failed")
		return errors.NewSignatureMismatchError("webhook signature verification failed")
	}

	var payload RazorpayWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return errors.NewInvalidParamsError("invalid webhook payload format")
	}

	webhookID := payload.ID
	if webhookID == "" {
		webhookID = fmt.Sprintf("webhook_%d_%s", time.Now().UnixNano(), payload.Event)
	}
	logger.Info("[WEBHOOK] Received - ID: %s, Event: %s", webhookID, payload.Event)

	payloadJSON, _ := json.Marshal(payload.Payload)
	if err := p.store.LogWebhook(ctx, &models.WebhookEvent{
		WebhookID:      webhookID,
		EventType:      payload.Event,
		Payload:        string(payloadJSON),
		SignatureValid: true,
		Status:         models.WebhookStatusReceived,
	}); err != nil {
		logger.Error("[WEBHOOK] Failed to log webhook %s: %v", webhookID, err)
	}

	var err error
	switch payload.Event {
	case "payment.captured", "order.paid":
		err = p.handleCaptured(ctx, payload, signature)
	case "payment.failed":
		err = p.handleFailed(ctx, payload)
	default:
		// Acknowledge events we do not act on.
		logger.Info("[WEBHOOK] Unhandled event type: %s", payload.Event)
		p.markProcessed(ctx, webhookID, nil)
		return nil
	}

	p.markProcessed(ctx, webhookID, err)
	return err
}

func (p *WebhookProcessor) markProcessed(ctx context.Context, webhookID string, err error) {
	status := models.WebhookStatusProcessed
	errMsg := ""
	if err != nil {
		status = models.WebhookStatusFailed
		errMsg = err.Error()
	}
	if uerr := p.store.UpdateWebhookStatus(ctx, webhookID, status, errMsg); uerr != nil {
		logger.Error("[WEBHOOK] Failed to update status for %s: %v", webhookID, uerr)
	}
}

func (p *WebhookProcessor) handleCaptured(ctx context.Context, payload RazorpayWebhookPayload, signature string) error {
	paymentID, orderID, _, err := paymentEntity(payload)
	if err != nil {
		return err
	}

	payment, err := p.store.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if payment.Status == models.PaymentStatusPaid {
		logger.Info("[WEBHOOK] Duplicate capture for order %s, already settled", orderID)
		PublishPaymentVerified(payment.StudentID, orderID, paymentID, "webhook")
		return nil
	}
	if payment.Status != models.PaymentStatusPending {
		return errors.NewConflictError("payment is already settled as " + payment.Status)
	}

	enrollment, err := p.store.GetEnrollment(ctx, payment.EnrollmentID)
	if err != nil {
		return err
	}
	result, err := p.enrollments.Confirm(ctx, enrollment, paymentID, signature, "webhook")
	if err != nil {
		if errors.IsKind(err, errors.BatchFull) {
			// Refund-owed path is recorded; the webhook itself succeeded.
			return nil
		}
		return err
	}

	logger.Info("[WEBHOOK] Payment captured processed - OrderID: %s, EnrollmentID: %d",
		orderID, result.EnrollmentID)
	PublishPaymentVerified(payment.StudentID, orderID, paymentID, "webhook")
	return nil
}

func (p *WebhookProcessor) handleFailed(ctx context.Context, payload RazorpayWebhookPayload) error {
	paymentID, orderID, reason, err := paymentEntity(payload)
	if err != nil {
		return err
	}

	payment, err := p.store.GetPaymentByOrderID(ctx, orderID)
	if err != nil {
		return err
	}
	if payment.Status != models.PaymentStatusPending {
		// Failure webhook for an order that already settled another way.
		logger.Info("[WEBHOOK] Ignoring failure for settled order %s (status %s)", orderID, payment.Status)
		return nil
	}

	if err := p.store.CancelPending(ctx, payment.EnrollmentID, reason); err != nil {
		return err
	}
	logger.Info("[WEBHOOK] Payment failed processed - OrderID: %s, Reason: %s", orderID, reason)
	PublishPaymentFailed(payment.StudentID, orderID, paymentID, reason)
	return nil
}

// paymentEntity pulls payment id, order id and the failure reason out of the
// nested webhook payload.
func paymentEntity(payload RazorpayWebhookPayload) (paymentID, orderID, reason string, err error) {
	paymentMap, ok := payload.Payload["payment"].(map[string]interface{})
	if !ok {
		return "", "", "", errors.NewInvalidParamsError("webhook payload missing payment data")
	}
	entity, ok := paymentMap["entity"].(map[string]interface{})
	if !ok {
		return "", "", "", errors.NewInvalidParamsError("webhook payload missing payment entity")
	}

	paymentID, _ = entity["id"].(string)
	orderID, _ = entity["order_id"].(string)
	if paymentID == "" || orderID == "" {
		return "", "", "", errors.NewInvalidParamsError("webhook payment entity missing id or order_id")
	}

	reason = "payment failed"
	if errMap, ok := entity["error"].(map[string]interface{}); ok {
		code, _ := errMap["code"].(string)
		desc, _ := errMap["description"].(string)
		if code != "" || desc != "" {
			reason = fmt.Sprintf("%s: %s", code, desc)
		}
	}
	return paymentID, orderID, reason, nil
}
