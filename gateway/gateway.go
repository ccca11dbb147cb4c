package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Gateway payment states as reported by Razorpay.
const (
	PaymentStatusCreated    = "created"
	PaymentStatusAuthorized = "authorized"
	PaymentStatusCaptured   = "captured"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
)

// Order is a gateway payment order.
type Order struct {
	ID       string
	Amount   float64 // rupees; the wire format uses paise
	Currency string
	Receipt  string
}

// PaymentDetails is the authoritative payment state fetched from the
// gateway. Client-asserted success is never trusted.
type PaymentDetails struct {
	ID       string
	OrderID  string
	Status   string
	Amount   float64
	Currency string
}

// Captured reports whether the gateway holds the money.
func (p *PaymentDetails) Captured() bool {
	return p.Status == PaymentStatusCaptured || p.Status == PaymentStatusAuthorized
}

// PaymentGateway is the external payment collaborator. Implementations must
// honor context cancellation so callers can bound network I/O.
type PaymentGateway interface {
	// CreateOrder registers a payment order for the given amount.
	CreateOrder(ctx context.Context, amount float64, currency, receipt string, notes map[string]interface{}) (*Order, error)
	// FetchPayment returns the authoritative state of a single payment.
	FetchPayment(ctx context.Context, paymentID string) (*PaymentDetails, error)
	// OrderPayments returns every payment attempt recorded against an order.
	// Used by the reconciler to settle abandoned checkouts.
	OrderPayments(ctx context.Context, orderID string) ([]PaymentDetails, error)
}

// VerifyCheckoutSignature recomputes the expected checkout callback
// signature, HMAC-SHA256 of "orderID|paymentID" under the key secret, and
// compares in constant time.
func VerifyCheckoutSignature(orderID, paymentID, signature, secret string) bool {
	if secret == "" {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature verifies the signature of an incoming webhook body.
func VerifyWebhookSignature(payload []byte, signature, secret string) bool {
	if secret == "" {
		return false
	}
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
