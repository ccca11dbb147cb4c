package services

import (
	"context"
	"fmt"

	"enrollment-module/errors"
	"enrollment-module/logger"
	"enrollment-module/models"
)

// Enrollments is the enrollment state machine. It is the only component
// allowed to move seats: every current_students mutation goes through the
// store's atomic primitives from here.
type Enrollments struct {
	store Store
}

// NewEnrollments creates the state machine on top of a store.
func NewEnrollments(store Store) *Enrollments {
	return &Enrollments{store: store}
}

// Confirm drives pending -> enrolled for a captured payment. Candidate
// batches are tried in start-date order; each attempt is one atomic
// conditional unit in the store, so concurrent payers can never exceed a
// batch's seat limit. When every candidate is full the payment is flagged
// refund-owed and the enrollment cancelled: paid-but-unseated is escalated,
// never dropped.
func (s *Enrollments) Confirm(ctx context.Context, enrollment *models.Enrollment, gatewayPaymentID, signature, source string) (*models.EnrollmentResult, error) {
	if enrollment.Status != models.EnrollmentStatusPending {
		// Already settled; report the stored outcome (idempotent replay).
		return s.settledResult(ctx, enrollment)
	}

	batches, err := s.store.OpenBatches(ctx, enrollment.CourseID, enrollment.BatchType)
	if err != nil {
		return nil, err
	}

	for i := range batches {
		batch := &batches[i]
		seated, err := s.store.ConfirmSeat(ctx, enrollment.ID, batch.ID, gatewayPaymentID, signature)
		if err != nil {
			if errors.IsKind(err, errors.Conflict) {
				// A concurrent caller settled this enrollment first.
				fresh, ferr := s.store.GetEnrollment(ctx, enrollment.ID)
				if ferr != nil {
					return nil, ferr
				}
				return s.settledResult(ctx, fresh)
			}
			return nil, err
		}
		if !seated {
			// Lost the seat race on this batch; try the next candidate.
			continue
		}

		logger.Info("[ENROLLMENT] Confirmed - EnrollmentID: %d, BatchID: %d, PaymentID: %s, Source: %s",
			enrollment.ID, batch.ID, gatewayPaymentID, source)
		PublishEnrollmentConfirmed(enrollment.ID, enrollment.StudentID, batch.ID)

		batchID := batch.ID
		return &models.EnrollmentResult{
			EnrollmentID: enrollment.ID,
			BatchID:      &batchID,
			Status:       models.EnrollmentStatusEnrolled,
		}, nil
	}

	// Payment captured, no seat anywhere: refund-owed escalation.
	if err := s.store.MarkRefundOwed(ctx, enrollment.ID, gatewayPaymentID, signature); err != nil {
		if errors.IsKind(err, errors.Conflict) {
			fresh, ferr := s.store.GetEnrollment(ctx, enrollment.ID)
			if ferr != nil {
				return nil, ferr
			}
			return s.settledResult(ctx, fresh)
		}
		return nil, err
	}

	orderID, _ := s.store.OrderIDForEnrollment(ctx, enrollment.ID)
	// Alertable: an operator must see every one of these.
	logger.Error("[ENROLLMENT] ALERT overbooked: payment captured but no seat - EnrollmentID: %d, StudentID: %d, CourseID: %d, OrderID: %s, Amount: %.2f, refund owed",
		enrollment.ID, enrollment.StudentID, enrollment.CourseID, orderID, enrollment.Payment.Amount)
	PublishEnrollmentOverbooked(enrollment.ID, enrollment.StudentID, enrollment.CourseID, orderID, enrollment.Payment.Amount)

	return nil, errors.NewBatchFullError(
		fmt.Sprintf("all batches full for enrollment %d; payment captured, refund owed", enrollment.ID))
}

// settledResult maps an already-settled enrollment to the result its first
// confirmation produced, so replays observe the same outcome.
func (s *Enrollments) settledResult(ctx context.Context, enrollment *models.Enrollment) (*models.EnrollmentResult, error) {
	switch enrollment.Status {
	case models.EnrollmentStatusEnrolled, models.EnrollmentStatusActive,
		models.EnrollmentStatusCompleted, models.EnrollmentStatusTransferred:
		return &models.EnrollmentResult{
			EnrollmentID: enrollment.ID,
			BatchID:      enrollment.BatchID,
			Status:       enrollment.Status,
		}, nil
	case models.EnrollmentStatusCancelled:
		if enrollment.Payment.Status == models.PaymentStatusPaid {
			// First attempt ended paid-but-unseated; the replay reports the
			// same refund-owed outcome.
			return nil, errors.NewBatchFullError(
				fmt.Sprintf("all batches full for enrollment %d; payment captured, refund owed", enrollment.ID))
		}
		return nil, errors.NewConflictError("enrollment was cancelled")
	default:
		return nil, errors.NewConflictError("enrollment is not settled")
	}
}

// Cancel cancels an enrollment. A pending one fails its payment; a seated
// one releases its seat.
func (s *Enrollments) Cancel(ctx context.Context, enrollmentID int, reason string) error {
	enrollment, err := s.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return err
	}
	if !models.CanTransition(enrollment.Status, models.EnrollmentStatusCancelled) {
		return errors.NewInvalidParamsError(
			fmt.Sprintf("cannot cancel enrollment in status %s", enrollment.Status))
	}

	if enrollment.Status == models.EnrollmentStatusPending {
		return s.store.CancelPending(ctx, enrollmentID, reason)
	}

	if err := s.store.UpdateEnrollmentStatus(ctx, enrollmentID, enrollment.Status, models.EnrollmentStatusCancelled); err != nil {
		return err
	}
	if enrollment.BatchID != nil {
		if err := s.store.ReleaseSeat(ctx, *enrollment.BatchID); err != nil {
			logger.Error("[ENROLLMENT] Failed to release seat - EnrollmentID: %d, BatchID: %d: %v",
				enrollmentID, *enrollment.BatchID, err)
			return err
		}
	}
	logger.Info("[ENROLLMENT] Cancelled - EnrollmentID: %d, Reason: %s", enrollmentID, reason)
	return nil
}

// Transition moves an enrollment along a non-seat edge (activate, complete).
func (s *Enrollments) Transition(ctx context.Context, enrollmentID int, to string) error {
	switch to {
	case models.EnrollmentStatusActive, models.EnrollmentStatusCompleted:
	default:
		return errors.NewInvalidParamsError("unsupported transition target: " + to)
	}

	enrollment, err := s.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return err
	}
	if !models.CanTransition(enrollment.Status, to) {
		return errors.NewInvalidParamsError(
			fmt.Sprintf("illegal transition %s -> %s", enrollment.Status, to))
	}
	return s.store.UpdateEnrollmentStatus(ctx, enrollmentID, enrollment.Status, to)
}

// Transfer moves an enrolled student to another open batch of the same type.
func (s *Enrollments) Transfer(ctx context.Context, enrollmentID, toBatchID int) error {
	enrollment, err := s.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return err
	}
	if !models.CanTransition(enrollment.Status, models.EnrollmentStatusTransferred) &&
		enrollment.Status != models.EnrollmentStatusTransferred {
		return errors.NewInvalidParamsError(
			fmt.Sprintf("cannot transfer enrollment in status %s", enrollment.Status))
	}
	if enrollment.BatchID == nil {
		return errors.NewConflictError("enrollment holds no seat")
	}
	if *enrollment.BatchID == toBatchID {
		return errors.NewInvalidParamsError("enrollment is already in that batch")
	}

	target, err := s.store.GetBatch(ctx, toBatchID)
	if err != nil {
		return err
	}
	if target.CourseID != enrollment.CourseID {
		return errors.NewInvalidParamsError("target batch belongs to another course")
	}
	if target.BatchType != enrollment.BatchType {
		return errors.NewInvalidParamsError("target batch is a different batch type")
	}
	if !target.IsOpen() {
		return errors.NewInvalidParamsError("target batch is not open")
	}

	moved, err := s.store.TransferSeat(ctx, enrollmentID, *enrollment.BatchID, toBatchID)
	if err != nil {
		return err
	}
	if !moved {
		return errors.NewCapacityExceededError("target batch is full")
	}
	logger.Info("[ENROLLMENT] Transferred - EnrollmentID: %d, FromBatch: %d, ToBatch: %d",
		enrollmentID, *enrollment.BatchID, toBatchID)
	return nil
}
