package services

import (
	"context"
	"time"

	"enrollment-module/models"
)

// Store is the persistence contract the checkout workflow runs on. The
// Postgres implementation lives in the db package; tests supply an
// in-memory one. Three methods carry the atomicity the capacity invariant
// depends on: ConfirmSeat, TransferSeat and MarkRefundOwed must each be a
// single atomic unit in the backing store.
type Store interface {
	GetStudent(ctx context.Context, id int) (*models.Student, error)
	GetCourse(ctx context.Context, id int) (*models.Course, error)
	CourseEnrolledCount(ctx context.Context, courseID int) (int, error)

	GetBatch(ctx context.Context, id int) (*models.Batch, error)
	// OpenBatches lists scheduled/active batches of the given type with free
	// seats, earliest start first. Advisory only; ConfirmSeat re-checks.
	OpenBatches(ctx context.Context, courseID int, batchType string) ([]models.Batch, error)

	// CreatePendingCheckout persists the pending enrollment and payment
	// before the gateway is contacted.
	CreatePendingCheckout(ctx context.Context, e *models.Enrollment, p *models.Payment) error
	// AttachOrder tags the pending payment with the gateway order id.
	AttachOrder(ctx context.Context, enrollmentID int, orderID string) error
	// AbortCheckout cancels a checkout whose gateway order creation failed.
	AbortCheckout(ctx context.Context, enrollmentID int, reason string) error

	GetEnrollment(ctx context.Context, id int) (*models.Enrollment, error)
	GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	OrderIDForEnrollment(ctx context.Context, enrollmentID int) (string, error)

	// ConfirmSeat is the pending -> enrolled critical section: increment the
	// batch seat count only if a seat is free and flip enrollment + payment
	// together, all in one atomic unit. Returns false, nil when the batch is
	// full, with no state touched.
	ConfirmSeat(ctx context.Context, enrollmentID, batchID int, gatewayPaymentID, signature string) (bool, error)
	// MarkRefundOwed records the paid-but-unseated outcome.
	MarkRefundOwed(ctx context.Context, enrollmentID int, gatewayPaymentID, signature string) error
	// CancelPending cancels a pending checkout and fails its payment.
	CancelPending(ctx context.Context, enrollmentID int, reason string) error
	// TransferSeat atomically moves an enrolled student to another batch.
	TransferSeat(ctx context.Context, enrollmentID, fromBatchID, toBatchID int) (bool, error)
	// UpdateEnrollmentStatus flips status from -> to, failing if the
	// enrollment moved in the meantime.
	UpdateEnrollmentStatus(ctx context.Context, enrollmentID int, from, to string) error
	// ReleaseSeat gives one seat back, floored at zero.
	ReleaseSeat(ctx context.Context, batchID int) error

	// StalePending lists pending enrollments older than the cutoff.
	StalePending(ctx context.Context, olderThan time.Time) ([]models.Enrollment, error)

	LogWebhook(ctx context.Context, event *models.WebhookEvent) error
	UpdateWebhookStatus(ctx context.Context, webhookID, status, errorMsg string) error
}
