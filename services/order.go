package services

import (
	"context"
	"fmt"
	"time"

	"enrollment-module/config"
	"enrollment-module/errors"
	"enrollment-module/gateway"
	"enrollment-module/logger"
	"enrollment-module/models"
)

// Orders creates checkout orders: price lookup, capacity gate, pending
// enrollment record, then the gateway order.
type Orders struct {
	store   Store
	gateway gateway.PaymentGateway
}

func NewOrders(store Store, gw gateway.PaymentGateway) *Orders {
	return &Orders{store: store, gateway: gw}
}

// Create builds a checkout order for a student joining a course. Validation
// and the capacity gate run before the gateway is contacted; a pending
// enrollment is recorded before the gateway call so an interrupted checkout
// always leaves evidence for the reconciler.
func (s *Orders) Create(ctx context.Context, studentID, courseID int, batchType string, offlineMaterials bool) (*models.CheckoutOrder, error) {
	if batchType != models.BatchTypeRegular && batchType != models.BatchTypeRevision {
		return nil, errors.NewInvalidParamsError("batch type must be regular or revision")
	}

	student, err := s.store.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.IsOpen() {
		return nil, errors.NewInvalidParamsError(
			fmt.Sprintf("course %s is not open for enrollment", course.DisplayName()))
	}

	// Price is resolved from course config, never taken from the client.
	amount, err := course.PriceFor(batchType, offlineMaterials)
	if err != nil {
		return nil, errors.NewInvalidParamsError(err.Error())
	}

	enrolled, err := s.store.CourseEnrolledCount(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.TotalCapacity > 0 && enrolled >= course.TotalCapacity {
		return nil, errors.NewCapacityExceededError(
			fmt.Sprintf("course %s has reached its enrollment limit", course.DisplayName()))
	}

	batches, err := s.store.OpenBatches(ctx, courseID, batchType)
	if err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, errors.NewCapacityExceededError(
			fmt.Sprintf("no %s batch with open seats for course %s", batchType, course.DisplayName()))
	}

	receipt := fmt.Sprintf("c%du%dt%d", courseID, studentID, time.Now().Unix())
	enrollment := &models.Enrollment{
		StudentID:        studentID,
		CourseID:         courseID,
		BatchType:        batchType,
		OfflineMaterials: offlineMaterials,
		Status:           models.EnrollmentStatusPending,
		Payment: models.PaymentSnapshot{
			Amount: amount,
			Status: models.PaymentStatusPending,
		},
	}
	payment := &models.Payment{
		StudentID: studentID,
		CourseID:  courseID,
		Amount:    amount,
		Currency:  "INR",
		Status:    models.PaymentStatusPending,
		Receipt:   receipt,
	}
	if err := s.store.CreatePendingCheckout(ctx, enrollment, payment); err != nil {
		return nil, err
	}

	gwCtx, cancel := context.WithTimeout(ctx, config.AppConfig.GatewayTimeout)
	defer cancel()
	order, err := s.gateway.CreateOrder(gwCtx, amount, "INR", receipt, map[string]interface{}{
		"enrollment_id": enrollment.ID,
		"student_name":  student.Name,
		"course":        course.DisplayName(),
		"batch_type":    batchType,
	})
	if err != nil {
		if aerr := s.store.AbortCheckout(ctx, enrollment.ID, "gateway order creation failed"); aerr != nil {
			logger.Error("[ORDER] Failed to abort checkout - EnrollmentID: %d: %v", enrollment.ID, aerr)
		}
		return nil, errors.NewGatewayUnavailableError("payment gateway order creation failed", err)
	}

	if err := s.store.AttachOrder(ctx, enrollment.ID, order.ID); err != nil {
		return nil, err
	}

	logger.Info("[ORDER] Created - OrderID: %s, EnrollmentID: %d, StudentID: %d, Amount: %.2f",
		order.ID, enrollment.ID, studentID, amount)
	PublishPaymentInitiated(studentID, order.ID, amount, "INR", batchType)

	return &models.CheckoutOrder{
		OrderID:      order.ID,
		Amount:       amount,
		Currency:     "INR",
		Receipt:      receipt,
		EnrollmentID: enrollment.ID,
	}, nil
}
