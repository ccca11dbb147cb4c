package models

import "time"

// Payment states.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

// Payment is the durable record of money movement. OrderID is the gateway
// order id and doubles as the idempotency key: exactly one Payment exists
// per gateway order, enforced by a unique index.
type Payment struct {
	ID            int        `json:"id"`
	StudentID     int        `json:"student_id"`
	CourseID      int        `json:"course_id"`
	EnrollmentID  int        `json:"enrollment_id"`
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	OrderID       string     `json:"order_id"`
	PaymentID     string     `json:"payment_id"` // gateway transaction id
	Signature     string     `json:"signature,omitempty"`
	Receipt       string     `json:"receipt"`
	RefundOwed    bool       `json:"refund_owed"`
	FailureReason string     `json:"failure_reason,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// CheckoutOrder is returned to the client after order creation.
type CheckoutOrder struct {
	OrderID      string  `json:"order_id"`
	Amount       float64 `json:"amount"`
	Currency     string  `json:"currency"`
	Receipt      string  `json:"receipt"`
	EnrollmentID int     `json:"enrollment_id"`
}

// EnrollmentResult is returned after payment verification.
type EnrollmentResult struct {
	EnrollmentID int    `json:"enrollment_id"`
	BatchID      *int   `json:"batch_id,omitempty"`
	Status       string `json:"status"`
}
