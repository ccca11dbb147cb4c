package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"enrollment-module/db"
	"enrollment-module/http/response"
	"enrollment-module/models"
)

const courseColumns = `id, name, language, level, month, year, total_capacity, batch_size_limit, status,
	regular_enabled, regular_base_price, regular_material_cost,
	revision_enabled, revision_base_price, revision_material_cost,
	created_at, updated_at`

func scanCourse(scan func(dest ...interface{}) error) (*models.Course, error) {
	var c models.Course
	err := scan(&c.ID, &c.Name, &c.Language, &c.Level, &c.Month, &c.Year,
		&c.TotalCapacity, &c.BatchSizeLimit, &c.Status,
		&c.Regular.Enabled, &c.Regular.BasePrice, &c.Regular.OfflineMaterialCost,
		&c.Revision.Enabled, &c.Revision.BasePrice, &c.Revision.OfflineMaterialCost,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCourses retrieves all courses open for enrollment
func GetCourses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := fmt.Sprintf(`SELECT %s FROM courses WHERE status IN ('published', 'active') ORDER BY year, month, id`, courseColumns)
	rows, err := db.DB.QueryContext(r.Context(), query)
	if err != nil {
		response.ErrorResponse(w, http.StatusInternalServerError, "Error fetching courses")
		return
	}
	defer rows.Close()

	courses := []models.CourseResponse{}
	for rows.Next() {
		course, err := scanCourse(rows.Scan)
		if err != nil {
			response.ErrorResponse(w, http.StatusInternalServerError, "Error processing courses")
			return
		}
		courses = append(courses, course.ToResponse())
	}
	if err = rows.Err(); err != nil {
		response.ErrorResponse(w, http.StatusInternalServerError, "Error processing courses")
		return
	}

	response.SuccessResponse(w, http.StatusOK, fmt.Sprintf("Retrieved %d courses", len(courses)), courses)
}

// GetCourseByID retrieves a specific course by ID
func GetCourseByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	courseIDStr := r.URL.Query().Get("id")
	if courseIDStr == "" {
		response.ErrorResponse(w, http.StatusBadRequest, "Course ID is required")
		return
	}
	courseID, err := strconv.Atoi(courseIDStr)
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid course ID")
		return
	}

	query := fmt.Sprintf(`SELECT %s FROM courses WHERE id = $1`, courseColumns)
	course, err := scanCourse(db.DB.QueryRowContext(r.Context(), query, courseID).Scan)
	if err != nil {
		response.ErrorResponse(w, http.StatusNotFound, "Course not found")
		return
	}

	response.SuccessResponse(w, http.StatusOK, "Course retrieved", course.ToResponse())
}

type courseRequest struct {
	Name            string  `json:"name"`
	Language        string  `json:"language" validate:"required"`
	Level           string  `json:"level" validate:"required"`
	Month           int     `json:"month" validate:"required,min=1,max=12"`
	Year            int     `json:"year" validate:"required,min=2020"`
	TotalCapacity   int     `json:"total_capacity" validate:"required,gt=0"`
	BatchSizeLimit  int     `json:"batch_size_limit" validate:"required,gt=0"`
	Status          string  `json:"status" validate:"omitempty,oneof=draft published active completed cancelled"`
	RegularEnabled  bool    `json:"regular_enabled"`
	RegularPrice    float64 `json:"regular_price" validate:"gte=0"`
	RegularMatCost  float64 `json:"regular_material_cost" validate:"gte=0"`
	RevisionEnabled bool    `json:"revision_enabled"`
	RevisionPrice   float64 `json:"revision_price" validate:"gte=0"`
	RevisionMatCost float64 `json:"revision_material_cost" validate:"gte=0"`
}

// CreateCourse creates a new course (admin endpoint)
func CreateCourse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req courseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	if req.Status == "" {
		req.Status = models.CourseStatusDraft
	}

	var id int
	err := db.DB.QueryRowContext(r.Context(),
		`INSERT INTO courses (name, language, level, month, year, total_capacity, batch_size_limit, status,
			regular_enabled, regular_base_price, regular_material_cost,
			revision_enabled, revision_base_price, revision_material_cost)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		 RETURNING id`,
		req.Name, req.Language, req.Level, req.Month, req.Year, req.TotalCapacity, req.BatchSizeLimit, req.Status,
		req.RegularEnabled, req.RegularPrice, req.RegularMatCost,
		req.RevisionEnabled, req.RevisionPrice, req.RevisionMatCost).Scan(&id)
	if err != nil {
		response.ErrorResponse(w, http.StatusInternalServerError, "Error creating course")
		return
	}

	response.SuccessResponse(w, http.StatusCreated, "Course created", map[string]int{"id": id})
}

// UpdateCourse updates an existing course (admin endpoint)
func UpdateCourse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	idStr := r.URL.Query().Get("id")
	id, err := strconv.Atoi(idStr)
	if err != nil || id <= 0 {
		response.ErrorResponse(w, http.StatusBadRequest, "Valid course ID is required")
		return
	}

	var req courseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	result, err := db.DB.ExecContext(r.Context(),
		`UPDATE courses SET name = $1, language = $2, level = $3, month = $4, year = $5,
			total_capacity = $6, batch_size_limit = $7, status = $8,
			regular_enabled = $9, regular_base_price = $10, regular_material_cost = $11,
			revision_enabled = $12, revision_base_price = $13, revision_material_cost = $14,
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = $15`,
		req.Name, req.Language, req.Level, req.Month, req.Year, req.TotalCapacity, req.BatchSizeLimit, req.Status,
		req.RegularEnabled, req.RegularPrice, req.RegularMatCost,
		req.RevisionEnabled, req.RevisionPrice, req.RevisionMatCost, id)
	if err != nil {
		response.ErrorResponse(w, http.StatusInternalServerError, "Error updating course")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		response.ErrorResponse(w, http.StatusNotFound, "Course not found")
		return
	}

	response.SuccessResponse(w, http.StatusOK, "Course updated", nil)
}
