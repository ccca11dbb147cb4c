package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"enrollment-module/errors"
	"enrollment-module/models"
)

// Store is the Postgres persistence layer the checkout services run on.
// The seat increment in ConfirmSeat is the single atomic conditional
// update the capacity invariant depends on.
type Store struct {
	db *sql.DB
}

// NewStore wraps the global connection.
func NewStore() *Store {
	return &Store{db: DB}
}

func (s *Store) GetStudent(ctx context.Context, id int) (*models.Student, error) {
	var st models.Student
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone, created_at FROM students WHERE id = $1`, id).
		Scan(&st.ID, &st.Name, &st.Email, &st.Phone, &st.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("student not found")
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching student: %w", err)
	}
	return &st, nil
}

func (s *Store) GetCourse(ctx context.Context, id int) (*models.Course, error) {
	var c models.Course
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, language, level, month, year, total_capacity, batch_size_limit, status,
		        regular_enabled, regular_base_price, regular_material_cost,
		        revision_enabled, revision_base_price, revision_material_cost,
		        created_at, updated_at
		 FROM courses WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Language, &c.Level, &c.Month, &c.Year, &c.TotalCapacity, &c.BatchSizeLimit, &c.Status,
			&c.Regular.Enabled, &c.Regular.BasePrice, &c.Regular.OfflineMaterialCost,
			&c.Revision.Enabled, &c.Revision.BasePrice, &c.Revision.OfflineMaterialCost,
			&c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("course not found")
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching course: %w", err)
	}
	return &c, nil
}

// CourseEnrolledCount counts enrollments holding or about to hold a seat in
// the course. Pending rows count so the course-level gate reflects in-flight
// checkouts.
func (s *Store) CourseEnrolledCount(ctx context.Context, courseID int) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM enrollments
		 WHERE course_id = $1 AND status IN ('pending', 'enrolled', 'active', 'transferred')`,
		courseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting enrollments: %w", err)
	}
	return count, nil
}

// OpenBatches returns the scheduled/active batches of the given type with
// free seats, earliest start first. The result is advisory; the seat is only
// held once ConfirmSeat succeeds.
func (s *Store) OpenBatches(ctx context.Context, courseID int, batchType string) ([]models.Batch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, course_id, batch_type, batch_number, max_students, current_students, status,
		        start_date, end_date, created_at, updated_at
		 FROM batches
		 WHERE course_id = $1 AND batch_type = $2
		   AND status IN ('scheduled', 'active')
		   AND current_students < max_students
		 ORDER BY start_date ASC, id ASC`,
		courseID, batchType)
	if err != nil {
		return nil, fmt.Errorf("error fetching batches: %w", err)
	}
	defer rows.Close()

	var batches []models.Batch
	for rows.Next() {
		var b models.Batch
		if err := rows.Scan(&b.ID, &b.CourseID, &b.BatchType, &b.BatchNumber, &b.MaxStudents, &b.CurrentStudents,
			&b.Status, &b.StartDate, &b.EndDate, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning batch: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func (s *Store) GetBatch(ctx context.Context, id int) (*models.Batch, error) {
	var b models.Batch
	err := s.db.QueryRowContext(ctx,
		`SELECT id, course_id, batch_type, batch_number, max_students, current_students, status,
		        start_date, end_date, created_at, updated_at
		 FROM batches WHERE id = $1`, id).
		Scan(&b.ID, &b.CourseID, &b.BatchType, &b.BatchNumber, &b.MaxStudents, &b.CurrentStudents,
			&b.Status, &b.StartDate, &b.EndDate, &b.CreatedAt, &b.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("batch not found")
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching batch: %w", err)
	}
	return &b, nil
}

// CreatePendingCheckout inserts the pending enrollment and its payment row
// in one transaction, before the gateway is contacted, so an order that
// never reaches the client still leaves evidence of intent.
func (s *Store) CreatePendingCheckout(ctx context.Context, e *models.Enrollment, p *models.Payment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO enrollments (student_id, course_id, batch_type, offline_materials, status, payment_amount, payment_status)
		 VALUES ($1, $2, $3, $4, 'pending', $5, 'pending')
		 RETURNING id, created_at`,
		e.StudentID, e.CourseID, e.BatchType, e.OfflineMaterials, e.Payment.Amount).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("error saving enrollment: %w", err)
	}
	e.Status = models.EnrollmentStatusPending

	err = tx.QueryRowContext(ctx,
		`INSERT INTO payments (student_id, course_id, enrollment_id, amount, currency, status, receipt)
		 VALUES ($1, $2, $3, $4, $5, 'pending', $6)
		 RETURNING id, created_at`,
		p.StudentID, p.CourseID, e.ID, p.Amount, p.Currency, p.Receipt).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("error saving payment: %w", err)
	}
	p.EnrollmentID = e.ID
	p.Status = models.PaymentStatusPending

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

// AttachOrder tags the pending payment with the gateway order id, the
// idempotency key for everything downstream.
func (s *Store) AttachOrder(ctx context.Context, enrollmentID int, orderID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE payments SET order_id = $1, updated_at = CURRENT_TIMESTAMP
		 WHERE enrollment_id = $2 AND status = 'pending'`,
		orderID, enrollmentID)
	if err != nil {
		return fmt.Errorf("error attaching order id: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.NewConflictError("no pending payment for enrollment")
	}
	return nil
}

// AbortCheckout cancels a pending checkout whose gateway order could not be
// created.
func (s *Store) AbortCheckout(ctx context.Context, enrollmentID int, reason string) error {
	return s.cancelPending(ctx, enrollmentID, reason)
}

func (s *Store) GetPaymentByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var p models.Payment
	var paidAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, student_id, course_id, enrollment_id, amount, currency, status,
		        COALESCE(order_id, ''), payment_id, signature, receipt, refund_owed, failure_reason,
		        paid_at, created_at, updated_at
		 FROM payments WHERE order_id = $1`, orderID).
		Scan(&p.ID, &p.StudentID, &p.CourseID, &p.EnrollmentID, &p.Amount, &p.Currency, &p.Status,
			&p.OrderID, &p.PaymentID, &p.Signature, &p.Receipt, &p.RefundOwed, &p.FailureReason,
			&paidAt, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("payment not found for order_id: " + orderID)
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching payment: %w", err)
	}
	if paidAt.Valid {
		p.PaidAt = &paidAt.Time
	}
	return &p, nil
}

func (s *Store) GetEnrollment(ctx context.Context, id int) (*models.Enrollment, error) {
	var e models.Enrollment
	var batchID sql.NullInt64
	var paidAt, enrolledAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, student_id, course_id, batch_id, batch_type, offline_materials, status,
		        payment_amount, payment_status, payment_transaction_id, payment_paid_at,
		        enrolled_at, created_at, updated_at
		 FROM enrollments WHERE id = $1`, id).
		Scan(&e.ID, &e.StudentID, &e.CourseID, &batchID, &e.BatchType, &e.OfflineMaterials, &e.Status,
			&e.Payment.Amount, &e.Payment.Status, &e.Payment.TransactionID, &paidAt,
			&enrolledAt, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFoundError("enrollment not found")
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching enrollment: %w", err)
	}
	if batchID.Valid {
		id := int(batchID.Int64)
		e.BatchID = &id
	}
	if paidAt.Valid {
		e.Payment.PaidAt = &paidAt.Time
	}
	if enrolledAt.Valid {
		e.EnrolledAt = &enrolledAt.Time
	}
	return &e, nil
}

// ConfirmSeat performs the pending -> enrolled critical section as a single
// transaction: conditionally take one seat in the batch, then flip the
// enrollment and payment together. Returns false when the batch had no free
// seat, without touching any row.
func (s *Store) ConfirmSeat(ctx context.Context, enrollmentID, batchID int, gatewayPaymentID, signature string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	// The one place correctness depends on atomicity: increment only if a
	// seat is free, in one statement, never read-then-write.
	result, err := tx.ExecContext(ctx,
		`UPDATE batches
		 SET current_students = current_students + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $1 AND status IN ('scheduled', 'active') AND current_students < max_students`,
		batchID)
	if err != nil {
		return false, fmt.Errorf("error reserving seat: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error checking seat reservation: %w", err)
	}
	if rows == 0 {
		// Batch filled up between candidate selection and now.
		return false, nil
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE enrollments
		 SET batch_id = $1, status = 'enrolled', payment_status = 'paid',
		     payment_transaction_id = $2, payment_paid_at = CURRENT_TIMESTAMP,
		     enrolled_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $3 AND status = 'pending'`,
		batchID, gatewayPaymentID, enrollmentID)
	if err != nil {
		return false, fmt.Errorf("error updating enrollment: %w", err)
	}
	rows, _ = result.RowsAffected()
	if rows == 0 {
		// Enrollment already settled by a concurrent verify; roll the seat back.
		return false, errors.NewConflictError("enrollment is not pending")
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE payments
		 SET status = 'paid', payment_id = $1, signature = $2,
		     paid_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE enrollment_id = $3 AND status = 'pending'`,
		gatewayPaymentID, signature, enrollmentID)
	if err != nil {
		return false, fmt.Errorf("error updating payment: %w", err)
	}
	rows, _ = result.RowsAffected()
	if rows == 0 {
		return false, errors.NewConflictError("payment is not pending")
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("error committing transaction: %w", err)
	}
	return true, nil
}

// MarkRefundOwed records the paid-but-unseated outcome: the payment is paid
// and flagged for refund, the enrollment is cancelled. Never reached unless
// every candidate batch filled up after the money was captured.
func (s *Store) MarkRefundOwed(ctx context.Context, enrollmentID int, gatewayPaymentID, signature string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE payments
		 SET status = 'paid', refund_owed = TRUE, payment_id = $1, signature = $2,
		     paid_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE enrollment_id = $3 AND status = 'pending'`,
		gatewayPaymentID, signature, enrollmentID)
	if err != nil {
		return fmt.Errorf("error flagging refund: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.NewConflictError("payment is not pending")
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE enrollments
		 SET status = 'cancelled', payment_status = 'paid', payment_transaction_id = $1,
		     payment_paid_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $2 AND status = 'pending'`,
		gatewayPaymentID, enrollmentID)
	if err != nil {
		return fmt.Errorf("error cancelling enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

// CancelPending cancels a pending checkout and fails its payment.
func (s *Store) CancelPending(ctx context.Context, enrollmentID int, reason string) error {
	return s.cancelPending(ctx, enrollmentID, reason)
}

func (s *Store) cancelPending(ctx context.Context, enrollmentID int, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE enrollments
		 SET status = 'cancelled', payment_status = 'failed', updated_at = CURRENT_TIMESTAMP
		 WHERE id = $1 AND status = 'pending'`,
		enrollmentID)
	if err != nil {
		return fmt.Errorf("error cancelling enrollment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.NewConflictError("enrollment is not pending")
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE payments
		 SET status = 'failed', failure_reason = $1, updated_at = CURRENT_TIMESTAMP
		 WHERE enrollment_id = $2 AND status = 'pending'`,
		reason, enrollmentID)
	if err != nil {
		return fmt.Errorf("error failing payment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

// UpdateEnrollmentStatus flips status from -> to, guarded so concurrent
// transitions cannot skip edges.
func (s *Store) UpdateEnrollmentStatus(ctx context.Context, enrollmentID int, from, to string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE enrollments SET status = $1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $2 AND status = $3`,
		to, enrollmentID, from)
	if err != nil {
		return fmt.Errorf("error updating enrollment status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return errors.NewConflictError(fmt.Sprintf("enrollment is not %s", from))
	}
	return nil
}

// ReleaseSeat gives one seat back, floored at zero.
func (s *Store) ReleaseSeat(ctx context.Context, batchID int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE batches
		 SET current_students = current_students - 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $1 AND current_students > 0`,
		batchID)
	if err != nil {
		return fmt.Errorf("error releasing seat: %w", err)
	}
	return nil
}

// TransferSeat moves an enrolled student between batches in one
// transaction: a seat is conditionally taken in the target batch, the
// source seat is released and the enrollment re-pointed. Returns false when
// the target batch had no free seat.
func (s *Store) TransferSeat(ctx context.Context, enrollmentID, fromBatchID, toBatchID int) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE batches
		 SET current_students = current_students + 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $1 AND status IN ('scheduled', 'active') AND current_students < max_students`,
		toBatchID)
	if err != nil {
		return false, fmt.Errorf("error reserving target seat: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE batches
		 SET current_students = current_students - 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = $1 AND current_students > 0`,
		fromBatchID)
	if err != nil {
		return false, fmt.Errorf("error releasing source seat: %w", err)
	}

	result, err = tx.ExecContext(ctx,
		`UPDATE enrollments
		 SET batch_id = $1, status = 'transferred', updated_at = CURRENT_TIMESTAMP
		 WHERE id = $2 AND status IN ('enrolled', 'active', 'transferred')`,
		toBatchID, enrollmentID)
	if err != nil {
		return false, fmt.Errorf("error updating enrollment: %w", err)
	}
	rows, _ = result.RowsAffected()
	if rows == 0 {
		return false, errors.NewConflictError("enrollment holds no seat")
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("error committing transaction: %w", err)
	}
	return true, nil
}

// LogWebhook records a webhook delivery. Redeliveries of the same
// webhook_id bump retry_count instead of inserting a second row.
func (s *Store) LogWebhook(ctx context.Context, event *models.WebhookEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO gateway_webhooks (webhook_id, event_type, payload, status, retry_count, signature_valid)
		 VALUES ($1, $2, $3, $4, 0, $5)
		 ON CONFLICT (webhook_id) DO UPDATE
		 SET retry_count = gateway_webhooks.retry_count + 1, signature_valid = EXCLUDED.signature_valid`,
		event.WebhookID, event.EventType, event.Payload, models.WebhookStatusReceived, event.SignatureValid)
	if err != nil {
		return fmt.Errorf("error inserting webhook: %w", err)
	}
	return nil
}

// UpdateWebhookStatus marks a logged webhook processed or failed.
func (s *Store) UpdateWebhookStatus(ctx context.Context, webhookID, status, errorMsg string) error {
	// Truncate error message to avoid exceeding column length
	if len(errorMsg) > 500 {
		errorMsg = errorMsg[:500]
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE gateway_webhooks
		 SET status = $1, processed_at = CURRENT_TIMESTAMP, error_message = $2
		 WHERE webhook_id = $3`,
		status, errorMsg, webhookID)
	if err != nil {
		return fmt.Errorf("error updating webhook status: %w", err)
	}
	return nil
}

// StalePending returns pending enrollments created before the cutoff, the
// reconciler's work queue.
func (s *Store) StalePending(ctx context.Context, olderThan time.Time) ([]models.Enrollment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, student_id, course_id, batch_id, batch_type, offline_materials, status,
		        payment_amount, payment_status, payment_transaction_id, payment_paid_at,
		        enrolled_at, created_at, updated_at
		 FROM enrollments
		 WHERE status = 'pending' AND created_at < $1
		 ORDER BY created_at ASC`,
		olderThan)
	if err != nil {
		return nil, fmt.Errorf("error fetching stale enrollments: %w", err)
	}
	defer rows.Close()

	var enrollments []models.Enrollment
	for rows.Next() {
		var e models.Enrollment
		var batchID sql.NullInt64
		var paidAt, enrolledAt sql.NullTime
		if err := rows.Scan(&e.ID, &e.StudentID, &e.CourseID, &batchID, &e.BatchType, &e.OfflineMaterials, &e.Status,
			&e.Payment.Amount, &e.Payment.Status, &e.Payment.TransactionID, &paidAt,
			&enrolledAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning enrollment: %w", err)
		}
		if batchID.Valid {
			id := int(batchID.Int64)
			e.BatchID = &id
		}
		if paidAt.Valid {
			e.Payment.PaidAt = &paidAt.Time
		}
		if enrolledAt.Valid {
			e.EnrolledAt = &enrolledAt.Time
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}

// OrderIDForEnrollment returns the gateway order id attached to the
// enrollment's payment, empty if none was ever attached.
func (s *Store) OrderIDForEnrollment(ctx context.Context, enrollmentID int) (string, error) {
	var orderID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT order_id FROM payments WHERE enrollment_id = $1`, enrollmentID).Scan(&orderID)
	if err == sql.ErrNoRows {
		return "", errors.NewNotFoundError("payment not found for enrollment")
	}
	if err != nil {
		return "", fmt.Errorf("error fetching order id: %w", err)
	}
	return orderID.String, nil
}
