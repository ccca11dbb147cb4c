package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"enrollment-module/errors"
	"enrollment-module/gateway"
	"enrollment-module/models"
)

// memStore is an in-memory Store. Every method takes the single mutex, so
// the multi-row operations are atomic the same way the SQL transactions are.
type memStore struct {
	mu sync.Mutex

	students    map[int]*models.Student
	courses     map[int]*models.Course
	batches     map[int]*models.Batch
	enrollments map[int]*models.Enrollment
	payments    map[int]*models.Payment
	webhooks    map[string]*models.WebhookEvent
	nextID      int
}

func newMemStore() *memStore {
	return &memStore{
		students:    map[int]*models.Student{},
		courses:     map[int]*models.Course{},
		batches:     map[int]*models.Batch{},
		enrollments: map[int]*models.Enrollment{},
		payments:    map[int]*models.Payment{},
		webhooks:    map[string]*models.WebhookEvent{},
		nextID:      1,
	}
}

func (m *memStore) id() int {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memStore) addStudent(s models.Student) *models.Student {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == 0 {
		s.ID = m.id()
	}
	m.students[s.ID] = &s
	return &s
}

func (m *memStore) addCourse(c models.Course) *models.Course {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.id()
	}
	m.courses[c.ID] = &c
	return &c
}

func (m *memStore) addBatch(b models.Batch) *models.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == 0 {
		b.ID = m.id()
	}
	m.batches[b.ID] = &b
	return &b
}

func (m *memStore) GetStudent(_ context.Context, id int) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.students[id]
	if !ok {
		return nil, errors.NewNotFoundError("student not found")
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) GetCourse(_ context.Context, id int) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, errors.NewNotFoundError("course not found")
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) CourseEnrolledCount(_ context.Context, courseID int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, e := range m.enrollments {
		if e.CourseID != courseID {
			continue
		}
		switch e.Status {
		case models.EnrollmentStatusPending, models.EnrollmentStatusEnrolled,
			models.EnrollmentStatusActive, models.EnrollmentStatusTransferred:
			count++
		}
	}
	return count, nil
}

func (m *memStore) GetBatch(_ context.Context, id int) (*models.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, errors.NewNotFoundError("batch not found")
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) OpenBatches(_ context.Context, courseID int, batchType string) ([]models.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Batch
	for _, b := range m.batches {
		if b.CourseID == courseID && b.BatchType == batchType && b.IsOpen() && b.CurrentStudents < b.MaxStudents {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (m *memStore) CreatePendingCheckout(_ context.Context, e *models.Enrollment, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = m.id()
	e.Status = models.EnrollmentStatusPending
	e.CreatedAt = time.Now()
	p.ID = m.id()
	p.EnrollmentID = e.ID
	p.Status = models.PaymentStatusPending
	p.CreatedAt = e.CreatedAt
	ec, pc := *e, *p
	m.enrollments[e.ID] = &ec
	m.payments[p.ID] = &pc
	return nil
}

func (m *memStore) AttachOrder(_ context.Context, enrollmentID int, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.EnrollmentID == enrollmentID {
			p.OrderID = orderID
			return nil
		}
	}
	return errors.NewNotFoundError("payment not found")
}

func (m *memStore) AbortCheckout(_ context.Context, enrollmentID int, reason string) error {
	return m.CancelPending(context.Background(), enrollmentID, reason)
}

func (m *memStore) GetEnrollment(_ context.Context, id int) (*models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return nil, errors.NewNotFoundError("enrollment not found")
	}
	cp := *e
	return &cp, nil
}

func (m *memStore) GetPaymentByOrderID(_ context.Context, orderID string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.OrderID == orderID && orderID != "" {
			cp := *p
			return &cp, nil
		}
	}
	return nil, errors.NewNotFoundError("payment not found for order")
}

func (m *memStore) OrderIDForEnrollment(_ context.Context, enrollmentID int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.EnrollmentID == enrollmentID {
			return p.OrderID, nil
		}
	}
	return "", errors.NewNotFoundError("payment not found")
}

func (m *memStore) ConfirmSeat(_ context.Context, enrollmentID, batchID int, gatewayPaymentID, signature string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.batches[batchID]
	if !ok || !b.IsOpen() || b.CurrentStudents >= b.MaxStudents {
		return false, nil
	}

	e, ok := m.enrollments[enrollmentID]
	if !ok {
		return false, errors.NewNotFoundError("enrollment not found")
	}
	if e.Status != models.EnrollmentStatusPending {
		return false, errors.NewConflictError("enrollment already settled")
	}

	b.CurrentStudents++
	now := time.Now()
	id := batchID
	e.BatchID = &id
	e.Status = models.EnrollmentStatusEnrolled
	e.Payment.Status = models.PaymentStatusPaid
	e.Payment.TransactionID = gatewayPaymentID
	e.Payment.PaidAt = &now
	e.EnrolledAt = &now

	for _, p := range m.payments {
		if p.EnrollmentID == enrollmentID && p.Status == models.PaymentStatusPending {
			p.Status = models.PaymentStatusPaid
			p.PaymentID = gatewayPaymentID
			p.Signature = signature
			p.PaidAt = &now
		}
	}
	return true, nil
}

func (m *memStore) MarkRefundOwed(_ context.Context, enrollmentID int, gatewayPaymentID, signature string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.enrollments[enrollmentID]
	if !ok {
		return errors.NewNotFoundError("enrollment not found")
	}
	if e.Status != models.EnrollmentStatusPending {
		return errors.NewConflictError("enrollment already settled")
	}

	now := time.Now()
	e.Status = models.EnrollmentStatusCancelled
	e.Payment.Status = models.PaymentStatusPaid
	e.Payment.TransactionID = gatewayPaymentID
	e.Payment.PaidAt = &now

	for _, p := range m.payments {
		if p.EnrollmentID == enrollmentID && p.Status == models.PaymentStatusPending {
			p.Status = models.PaymentStatusPaid
			p.PaymentID = gatewayPaymentID
			p.Signature = signature
			p.RefundOwed = true
			p.PaidAt = &now
		}
	}
	return nil
}

func (m *memStore) CancelPending(_ context.Context, enrollmentID int, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.enrollments[enrollmentID]
	if !ok {
		return errors.NewNotFoundError("enrollment not found")
	}
	if e.Status != models.EnrollmentStatusPending {
		return errors.NewConflictError("enrollment already settled")
	}

	e.Status = models.EnrollmentStatusCancelled
	e.Payment.Status = models.PaymentStatusFailed
	for _, p := range m.payments {
		if p.EnrollmentID == enrollmentID && p.Status == models.PaymentStatusPending {
			p.Status = models.PaymentStatusFailed
			p.FailureReason = reason
		}
	}
	return nil
}

func (m *memStore) TransferSeat(_ context.Context, enrollmentID, fromBatchID, toBatchID int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	to, ok := m.batches[toBatchID]
	if !ok || !to.IsOpen() || to.CurrentStudents >= to.MaxStudents {
		return false, nil
	}
	from, ok := m.batches[fromBatchID]
	if !ok {
		return false, errors.NewNotFoundError("batch not found")
	}
	e, ok := m.enrollments[enrollmentID]
	if !ok {
		return false, errors.NewNotFoundError("enrollment not found")
	}
	switch e.Status {
	case models.EnrollmentStatusEnrolled, models.EnrollmentStatusActive, models.EnrollmentStatusTransferred:
	default:
		return false, errors.NewConflictError("enrollment holds no transferable seat")
	}

	to.CurrentStudents++
	if from.CurrentStudents > 0 {
		from.CurrentStudents--
	}
	id := toBatchID
	e.BatchID = &id
	e.Status = models.EnrollmentStatusTransferred
	return true, nil
}

func (m *memStore) UpdateEnrollmentStatus(_ context.Context, enrollmentID int, from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.enrollments[enrollmentID]
	if !ok {
		return errors.NewNotFoundError("enrollment not found")
	}
	if e.Status != from {
		return errors.NewConflictError(fmt.Sprintf("enrollment is %s, not %s", e.Status, from))
	}
	e.Status = to
	return nil
}

func (m *memStore) ReleaseSeat(_ context.Context, batchID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.batches[batchID]
	if !ok {
		return errors.NewNotFoundError("batch not found")
	}
	if b.CurrentStudents > 0 {
		b.CurrentStudents--
	}
	return nil
}

func (m *memStore) StalePending(_ context.Context, olderThan time.Time) ([]models.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Enrollment
	for _, e := range m.enrollments {
		if e.Status == models.EnrollmentStatusPending && e.CreatedAt.Before(olderThan) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) LogWebhook(_ context.Context, event *models.WebhookEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.webhooks[event.WebhookID]; ok {
		existing.RetryCount++
		return nil
	}
	cp := *event
	m.webhooks[event.WebhookID] = &cp
	return nil
}

func (m *memStore) UpdateWebhookStatus(_ context.Context, webhookID, status, errorMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.webhooks[webhookID]; ok {
		w.Status = status
		w.ErrorMessage = errorMsg
	}
	return nil
}

// paymentForEnrollment is a test helper.
func (m *memStore) paymentForEnrollment(enrollmentID int) *models.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.EnrollmentID == enrollmentID {
			cp := *p
			return &cp
		}
	}
	return nil
}

// memGateway is a scriptable PaymentGateway.
type memGateway struct {
	mu sync.Mutex

	orders        map[string]*gateway.Order
	payments      map[string]*gateway.PaymentDetails
	orderPayments map[string][]gateway.PaymentDetails

	createErr error
	fetchErr  error
	listErr   error

	createCalls int
	nextOrder   int
}

func newMemGateway() *memGateway {
	return &memGateway{
		orders:        map[string]*gateway.Order{},
		payments:      map[string]*gateway.PaymentDetails{},
		orderPayments: map[string][]gateway.PaymentDetails{},
		nextOrder:     1,
	}
}

func (g *memGateway) CreateOrder(_ context.Context, amount float64, currency, receipt string, _ map[string]interface{}) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.createCalls++
	if g.createErr != nil {
		return nil, g.createErr
	}
	order := &gateway.Order{
		ID:       fmt.Sprintf("order_test%03d", g.nextOrder),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}
	g.nextOrder++
	g.orders[order.ID] = order
	return order, nil
}

func (g *memGateway) FetchPayment(_ context.Context, paymentID string) (*gateway.PaymentDetails, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, fmt.Errorf("payment %s not found", paymentID)
	}
	cp := *p
	return &cp, nil
}

func (g *memGateway) OrderPayments(_ context.Context, orderID string) ([]gateway.PaymentDetails, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.listErr != nil {
		return nil, g.listErr
	}
	return append([]gateway.PaymentDetails(nil), g.orderPayments[orderID]...), nil
}

// addCapturedPayment registers a captured payment against an order.
func (g *memGateway) addCapturedPayment(orderID, paymentID string, amount float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := gateway.PaymentDetails{
		ID:       paymentID,
		OrderID:  orderID,
		Status:   gateway.PaymentStatusCaptured,
		Amount:   amount,
		Currency: "INR",
	}
	g.payments[paymentID] = &p
	g.orderPayments[orderID] = append(g.orderPayments[orderID], p)
}

func (g *memGateway) addFailedPayment(orderID, paymentID string, amount float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p := gateway.PaymentDetails{
		ID:       paymentID,
		OrderID:  orderID,
		Status:   gateway.PaymentStatusFailed,
		Amount:   amount,
		Currency: "INR",
	}
	g.payments[paymentID] = &p
	g.orderPayments[orderID] = append(g.orderPayments[orderID], p)
}

type memNotifier struct {
	mu    sync.Mutex
	sent  []int
	calls int
}

func (n *memNotifier) SendEnrollmentConfirmation(_, enrollmentID int, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.sent = append(n.sent, enrollmentID)
	return nil
}
