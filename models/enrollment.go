package models

import "time"

// Enrollment states. The only legal edges are the ones listed in
// enrollmentTransitions; everything else is rejected by the state machine.
const (
	EnrollmentStatusPending     = "pending"
	EnrollmentStatusEnrolled    = "enrolled"
	EnrollmentStatusActive      = "active"
	EnrollmentStatusCompleted   = "completed"
	EnrollmentStatusCancelled   = "cancelled"
	EnrollmentStatusTransferred = "transferred"
)

var enrollmentTransitions = map[string][]string{
	EnrollmentStatusPending:     {EnrollmentStatusEnrolled, EnrollmentStatusCancelled},
	EnrollmentStatusEnrolled:    {EnrollmentStatusActive, EnrollmentStatusTransferred, EnrollmentStatusCancelled},
	EnrollmentStatusActive:      {EnrollmentStatusCompleted, EnrollmentStatusCancelled},
	EnrollmentStatusTransferred: {EnrollmentStatusActive, EnrollmentStatusCancelled},
}

// CanTransition reports whether from -> to is a legal enrollment edge.
func CanTransition(from, to string) bool {
	for _, allowed := range enrollmentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// PaymentSnapshot is the embedded payment view an enrollment carries for
// display. The Payment record is the source of truth for financial state.
type PaymentSnapshot struct {
	Amount        float64    `json:"amount"`
	Status        string     `json:"status"`
	TransactionID string     `json:"transaction_id,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
}

// Enrollment ties a student to a course and, once seated, a batch.
type Enrollment struct {
	ID               int             `json:"id"`
	StudentID        int             `json:"student_id"`
	CourseID         int             `json:"course_id"`
	BatchID          *int            `json:"batch_id,omitempty"` // nil until seated
	BatchType        string          `json:"batch_type"`
	OfflineMaterials bool            `json:"offline_materials"`
	Status           string          `json:"status"`
	Payment          PaymentSnapshot `json:"payment"`
	EnrolledAt       *time.Time      `json:"enrolled_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// IsSettled reports whether the enrollment has left the pending state.
func (e *Enrollment) IsSettled() bool {
	return e.Status != EnrollmentStatusPending
}

// EnrollmentResponse is the structured response for API responses
type EnrollmentResponse struct {
	ID               int             `json:"id"`
	StudentID        int             `json:"student_id"`
	CourseID         int             `json:"course_id"`
	BatchID          *int            `json:"batch_id,omitempty"`
	BatchType        string          `json:"batch_type"`
	OfflineMaterials bool            `json:"offline_materials"`
	Status           string          `json:"status"`
	Payment          PaymentSnapshot `json:"payment"`
	EnrolledAt       *string         `json:"enrolled_at,omitempty"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
}

// ToResponse converts Enrollment to EnrollmentResponse with formatted timestamps
func (e *Enrollment) ToResponse() EnrollmentResponse {
	var enrolledAt *string
	if e.EnrolledAt != nil {
		formatted := e.EnrolledAt.Format(time.RFC3339)
		enrolledAt = &formatted
	}
	return EnrollmentResponse{
		ID:               e.ID,
		StudentID:        e.StudentID,
		CourseID:         e.CourseID,
		BatchID:          e.BatchID,
		BatchType:        e.BatchType,
		OfflineMaterials: e.OfflineMaterials,
		Status:           e.Status,
		Payment:          e.Payment,
		EnrolledAt:       enrolledAt,
		CreatedAt:        e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        e.UpdatedAt.Format(time.RFC3339),
	}
}
