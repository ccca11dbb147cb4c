package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"enrollment-module/errors"
	"enrollment-module/models"
)

func TestConcurrentVerifyNeverOverbooks(t *testing.T) {
	store, gw, _, course, batch := fixture(t)

	// One seat left.
	store.mu.Lock()
	store.batches[batch.ID].CurrentStudents = batch.MaxStudents - 1
	store.mu.Unlock()

	verifier := newTestVerifier(store, gw, nil)

	type callback struct{ orderID, paymentID, sig string }
	callbacks := make([]callback, 2)
	for i := range callbacks {
		s := store.addStudent(models.Student{Name: "Racer"})
		orderID, paymentID, sig, _ := startCheckout(t, store, gw, s.ID, course.ID)
		callbacks[i] = callback{orderID, paymentID, sig}
	}

	results := make([]error, len(callbacks))
	var wg sync.WaitGroup
	for i, cb := range callbacks {
		wg.Add(1)
		go func(i int, cb callback) {
			defer wg.Done()
			_, results[i] = verifier.VerifyPayment(cb.orderID, cb.paymentID, cb.sig)
		}(i, cb)
	}
	wg.Wait()

	var enrolled, refundOwed int
	for _, err := range results {
		switch {
		case err == nil:
			enrolled++
		case errors.IsKind(err, errors.BatchFull):
			refundOwed++
		default:
			t.Fatalf("unexpected verify error: %v", err)
		}
	}
	if enrolled != 1 || refundOwed != 1 {
		t.Fatalf("expected exactly one winner and one refund owed, got %d/%d", enrolled, refundOwed)
	}

	b, _ := store.GetBatch(context.Background(), batch.ID)
	if b.CurrentStudents != b.MaxStudents {
		t.Fatalf("batch should be exactly full, got %d/%d", b.CurrentStudents, b.MaxStudents)
	}

	// The loser's money is never silently dropped.
	var owed int
	store.mu.Lock()
	for _, p := range store.payments {
		if p.RefundOwed {
			if p.Status != models.PaymentStatusPaid {
				t.Errorf("refund-owed payment must stay paid, got %s", p.Status)
			}
			owed++
		}
	}
	store.mu.Unlock()
	if owed != 1 {
		t.Fatalf("expected 1 refund-owed payment, got %d", owed)
	}
}

func TestConfirmPrefersEarliestBatch(t *testing.T) {
	store, gw, student, course, first := fixture(t)
	later := store.addBatch(models.Batch{
		CourseID:    course.ID,
		BatchType:   models.BatchTypeRegular,
		BatchNumber: 2,
		MaxStudents: 10,
		Status:      models.BatchStatusScheduled,
		StartDate:   first.StartDate.Add(30 * 24 * time.Hour),
		EndDate:     first.EndDate.Add(30 * 24 * time.Hour),
	})

	orderID, paymentID, sig, _ := startCheckout(t, store, gw, student.ID, course.ID)
	verifier := newTestVerifier(store, gw, nil)

	result, err := verifier.VerifyPayment(orderID, paymentID, sig)
	if err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}
	if *result.BatchID != first.ID {
		t.Fatalf("expected the earliest batch %d, got %d", first.ID, *result.BatchID)
	}
	b, _ := store.GetBatch(context.Background(), later.ID)
	if b.CurrentStudents != 0 {
		t.Fatalf("later batch should be untouched")
	}
}

func TestConfirmSpillsToNextBatchWhenFull(t *testing.T) {
	store, gw, student, course, first := fixture(t)
	second := store.addBatch(models.Batch{
		CourseID:    course.ID,
		BatchType:   models.BatchTypeRegular,
		BatchNumber: 2,
		MaxStudents: 10,
		Status:      models.BatchStatusScheduled,
		StartDate:   first.StartDate.Add(30 * 24 * time.Hour),
		EndDate:     first.EndDate.Add(30 * 24 * time.Hour),
	})

	store.mu.Lock()
	store.batches[first.ID].CurrentStudents = first.MaxStudents
	store.mu.Unlock()

	orderID, paymentID, sig, _ := startCheckout(t, store, gw, student.ID, course.ID)
	verifier := newTestVerifier(store, gw, nil)

	result, err := verifier.VerifyPayment(orderID, paymentID, sig)
	if err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}
	if *result.BatchID != second.ID {
		t.Fatalf("expected spill into batch %d, got %d", second.ID, *result.BatchID)
	}
}

func TestTransitionLifecycle(t *testing.T) {
	store, gw, student, course, _ := fixture(t)
	orderID, paymentID, sig, enrollmentID := startCheckout(t, store, gw, student.ID, course.ID)
	verifier := newTestVerifier(store, gw, nil)
	if _, err := verifier.VerifyPayment(orderID, paymentID, sig); err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}

	machine := NewEnrollments(store)
	ctx := context.Background()

	// enrolled -> completed is not a legal edge.
	if err := machine.Transition(ctx, enrollmentID, models.EnrollmentStatusCompleted); !errors.IsKind(err, errors.Invalid) {
		t.Fatalf("expected InvalidParams for enrolled -> completed, got %v", err)
	}

	if err := machine.Transition(ctx, enrollmentID, models.EnrollmentStatusActive); err != nil {
		t.Fatalf("enrolled -> active failed: %v", err)
	}
	if err := machine.Transition(ctx, enrollmentID, models.EnrollmentStatusCompleted); err != nil {
		t.Fatalf("active -> completed failed: %v", err)
	}

	e, _ := store.GetEnrollment(ctx, enrollmentID)
	if e.Status != models.EnrollmentStatusCompleted {
		t.Fatalf("expected completed, got %s", e.Status)
	}

	// Terminal state rejects everything.
	if err := machine.Transition(ctx, enrollmentID, models.EnrollmentStatusActive); !errors.IsKind(err, errors.Invalid) {
		t.Fatalf("expected InvalidParams from completed, got %v", err)
	}
}

func TestCancelReleasesSeat(t *testing.T) {
	store, gw, student, course, batch := fixture(t)
	orderID, paymentID, sig, enrollmentID := startCheckout(t, store, gw, student.ID, course.ID)
	verifier := newTestVerifier(store, gw, nil)
	if _, err := verifier.VerifyPayment(orderID, paymentID, sig); err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}

	machine := NewEnrollments(store)
	if err := machine.Cancel(context.Background(), enrollmentID, "student withdrew"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	b, _ := store.GetBatch(context.Background(), batch.ID)
	if b.CurrentStudents != 0 {
		t.Fatalf("cancelling a seated enrollment must free the seat, got %d", b.CurrentStudents)
	}
	e, _ := store.GetEnrollment(context.Background(), enrollmentID)
	if e.Status != models.EnrollmentStatusCancelled {
		t.Fatalf("expected cancelled, got %s", e.Status)
	}
}

func TestTransfer(t *testing.T) {
	store, gw, student, course, from := fixture(t)
	to := store.addBatch(models.Batch{
		CourseID:    course.ID,
		BatchType:   models.BatchTypeRegular,
		BatchNumber: 2,
		MaxStudents: 10,
		Status:      models.BatchStatusScheduled,
		StartDate:   from.StartDate.Add(14 * 24 * time.Hour),
		EndDate:     from.EndDate.Add(14 * 24 * time.Hour),
	})

	orderID, paymentID, sig, enrollmentID := startCheckout(t, store, gw, student.ID, course.ID)
	verifier := newTestVerifier(store, gw, nil)
	if _, err := verifier.VerifyPayment(orderID, paymentID, sig); err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}

	machine := NewEnrollments(store)
	if err := machine.Transfer(context.Background(), enrollmentID, to.ID); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	e, _ := store.GetEnrollment(context.Background(), enrollmentID)
	if e.Status != models.EnrollmentStatusTransferred || *e.BatchID != to.ID {
		t.Fatalf("expected transferred into %d, got %s batch %v", to.ID, e.Status, e.BatchID)
	}
	fromBatch, _ := store.GetBatch(context.Background(), from.ID)
	toBatch, _ := store.GetBatch(context.Background(), to.ID)
	if fromBatch.CurrentStudents != 0 || toBatch.CurrentStudents != 1 {
		t.Fatalf("seat counts wrong after transfer: from=%d to=%d",
			fromBatch.CurrentStudents, toBatch.CurrentStudents)
	}
}

func TestTransferToFullBatch(t *testing.T) {
	store, gw, student, course, from := fixture(t)
	to := store.addBatch(models.Batch{
		CourseID:    course.ID,
		BatchType:   models.BatchTypeRegular,
		BatchNumber: 2,
		MaxStudents: 1,
		Status:      models.BatchStatusScheduled,
		StartDate:   from.StartDate,
		EndDate:     from.EndDate,
	})
	store.mu.Lock()
	store.batches[to.ID].CurrentStudents = 1
	store.mu.Unlock()

	orderID, paymentID, sig, enrollmentID := startCheckout(t, store, gw, student.ID, course.ID)
	verifier := newTestVerifier(store, gw, nil)
	if _, err := verifier.VerifyPayment(orderID, paymentID, sig); err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}

	machine := NewEnrollments(store)
	err := machine.Transfer(context.Background(), enrollmentID, to.ID)
	if !errors.IsKind(err, errors.CapacityExceeded) {
		t.Fatalf("expected CapacityExceeded, got %v", err)
	}

	// Source seat untouched on a failed transfer.
	fromBatch, _ := store.GetBatch(context.Background(), from.ID)
	if fromBatch.CurrentStudents != 1 {
		t.Fatalf("failed transfer must not release the source seat")
	}
}
