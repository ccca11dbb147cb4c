package models

import (
	"fmt"
	"time"
)

// Batch type identifiers shared by courses, batches and enrollments.
const (
	BatchTypeRegular  = "regular"
	BatchTypeRevision = "revision"
)

// Course lifecycle states. Orders are only accepted for published or
// active courses.
const (
	CourseStatusDraft     = "draft"
	CourseStatusPublished = "published"
	CourseStatusActive    = "active"
	CourseStatusCompleted = "completed"
	CourseStatusCancelled = "cancelled"
)

// BatchTypeConfig holds per-batch-type pricing and availability for a course.
type BatchTypeConfig struct {
	Enabled             bool    `json:"enabled"`
	BasePrice           float64 `json:"base_price"`
	OfflineMaterialCost float64 `json:"offline_material_cost"`
}

// Course represents a language course offering for a given month.
type Course struct {
	ID             int             `json:"id"`
	Name           string          `json:"name"` // empty means auto-generated display name
	Language       string          `json:"language"`
	Level          string          `json:"level"`
	Month          int             `json:"month"`
	Year           int             `json:"year"`
	TotalCapacity  int             `json:"total_capacity"`
	BatchSizeLimit int             `json:"batch_size_limit"`
	Status         string          `json:"status"`
	Regular        BatchTypeConfig `json:"regular"`
	Revision       BatchTypeConfig `json:"revision"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

var monthNames = [...]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// DisplayName returns the custom course name, or "German B1 Sep 2026" style
// auto-generated one.
func (c *Course) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	month := "?"
	if c.Month >= 1 && c.Month <= 12 {
		month = monthNames[c.Month-1]
	}
	return fmt.Sprintf("%s %s %s %d", c.Language, c.Level, month, c.Year)
}

// IsOpen reports whether the course accepts new enrollments.
func (c *Course) IsOpen() bool {
	return c.Status == CourseStatusPublished || c.Status == CourseStatusActive
}

// BatchTypeConfig returns the config for the given batch type.
func (c *Course) BatchTypeConfig(batchType string) (BatchTypeConfig, bool) {
	switch batchType {
	case BatchTypeRegular:
		return c.Regular, true
	case BatchTypeRevision:
		return c.Revision, true
	}
	return BatchTypeConfig{}, false
}

// PriceFor computes the checkout amount server-side. Client-submitted
// amounts are never trusted.
func (c *Course) PriceFor(batchType string, offlineMaterials bool) (float64, error) {
	cfg, ok := c.BatchTypeConfig(batchType)
	if !ok {
		return 0, fmt.Errorf("unknown batch type: %s", batchType)
	}
	if !cfg.Enabled {
		return 0, fmt.Errorf("batch type %s is not enabled for this course", batchType)
	}
	amount := cfg.BasePrice
	if offlineMaterials {
		amount += cfg.OfflineMaterialCost
	}
	return amount, nil
}

// CourseResponse is the structured response for API responses
type CourseResponse struct {
	ID             int             `json:"id"`
	Name           string          `json:"name"`
	Language       string          `json:"language"`
	Level          string          `json:"level"`
	Month          int             `json:"month"`
	Year           int             `json:"year"`
	TotalCapacity  int             `json:"total_capacity"`
	BatchSizeLimit int             `json:"batch_size_limit"`
	Status         string          `json:"status"`
	Regular        BatchTypeConfig `json:"regular"`
	Revision       BatchTypeConfig `json:"revision"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
}

// ToResponse converts Course to CourseResponse with formatted timestamps
func (c *Course) ToResponse() CourseResponse {
	return CourseResponse{
		ID:             c.ID,
		Name:           c.DisplayName(),
		Language:       c.Language,
		Level:          c.Level,
		Month:          c.Month,
		Year:           c.Year,
		TotalCapacity:  c.TotalCapacity,
		BatchSizeLimit: c.BatchSizeLimit,
		Status:         c.Status,
		Regular:        c.Regular,
		Revision:       c.Revision,
		CreatedAt:      c.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      c.UpdatedAt.Format(time.RFC3339),
	}
}
