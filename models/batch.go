package models

import "time"

// Batch lifecycle states.
const (
	BatchStatusScheduled = "scheduled"
	BatchStatusActive    = "active"
	BatchStatusCompleted = "completed"
	BatchStatusCancelled = "cancelled"
)

// Batch is a scheduled cohort of a course with a hard seat limit.
// CurrentStudents is owned by the enrollment state machine; nothing else
// may increment it, and the invariant CurrentStudents <= MaxStudents must
// hold at all times.
type Batch struct {
	ID              int       `json:"id"`
	CourseID        int       `json:"course_id"`
	BatchType       string    `json:"batch_type"`
	BatchNumber     int       `json:"batch_number"`
	MaxStudents     int       `json:"max_students"`
	CurrentStudents int       `json:"current_students"`
	Status          string    `json:"status"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AvailableSlots returns the remaining enrollable seats.
func (b *Batch) AvailableSlots() int {
	return b.MaxStudents - b.CurrentStudents
}

// IsFull reports whether the batch has no free seats.
func (b *Batch) IsFull() bool {
	return b.CurrentStudents >= b.MaxStudents
}

// IsOpen reports whether the batch accepts new students.
func (b *Batch) IsOpen() bool {
	return b.Status == BatchStatusScheduled || b.Status == BatchStatusActive
}

// BatchResponse is the structured response for API responses
type BatchResponse struct {
	ID              int    `json:"id"`
	CourseID        int    `json:"course_id"`
	BatchType       string `json:"batch_type"`
	BatchNumber     int    `json:"batch_number"`
	MaxStudents     int    `json:"max_students"`
	CurrentStudents int    `json:"current_students"`
	AvailableSlots  int    `json:"available_slots"`
	Status          string `json:"status"`
	StartDate       string `json:"start_date"`
	EndDate         string `json:"end_date"`
}

// ToResponse converts Batch to BatchResponse with formatted timestamps
func (b *Batch) ToResponse() BatchResponse {
	return BatchResponse{
		ID:              b.ID,
		CourseID:        b.CourseID,
		BatchType:       b.BatchType,
		BatchNumber:     b.BatchNumber,
		MaxStudents:     b.MaxStudents,
		CurrentStudents: b.CurrentStudents,
		AvailableSlots:  b.AvailableSlots(),
		Status:          b.Status,
		StartDate:       b.StartDate.Format(time.RFC3339),
		EndDate:         b.EndDate.Format(time.RFC3339),
	}
}
