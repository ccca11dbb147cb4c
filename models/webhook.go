package models

import "time"

// Webhook processing states.
const (
	WebhookStatusReceived  = "RECEIVED"
	WebhookStatusProcessed = "PROCESSED"
	WebhookStatusFailed    = "FAILED"
)

// WebhookEvent logs every gateway webhook delivery. WebhookID is unique;
// redeliveries bump RetryCount instead of inserting a second row.
type WebhookEvent struct {
	ID             int        `json:"id"`
	WebhookID      string     `json:"webhook_id"`
	EventType      string     `json:"event_type"`
	Payload        string     `json:"payload"`
	SignatureValid bool       `json:"signature_valid"`
	Status         string     `json:"status"`
	RetryCount     int        `json:"retry_count"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	ProcessedAt    *time.Time `json:"processed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
