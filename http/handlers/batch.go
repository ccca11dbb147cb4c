package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"enrollment-module/db"
	"enrollment-module/http/response"
	"enrollment-module/models"
)

// GetBatches lists batches for a course, optionally filtered by type.
func GetBatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	courseIDStr := r.URL.Query().Get("course_id")
	if courseIDStr == "" {
		response.ErrorResponse(w, http.StatusBadRequest, "Course ID is required")
		return
	}
	courseID, err := strconv.Atoi(courseIDStr)
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid course ID")
		return
	}

	query := `SELECT id, course_id, batch_type, batch_number, max_students, current_students, status, start_date, end_date, created_at, updated_at
		FROM batches WHERE course_id = $1`
	args := []interface{}{courseID}
	if batchType := r.URL.Query().Get("batch_type"); batchType != "" {
		query += ` AND batch_type = $2`
		args = append(args, batchType)
	}
	query += ` ORDER BY batch_number`

	rows, err := db.DB.QueryContext(r.Context(), query, args...)
	if err != nil {
		response.ErrorResponse(w, http.StatusInternalServerError, "Error fetching batches")
		return
	}
	defer rows.Close()

	batches := []models.BatchResponse{}
	for rows.Next() {
		var b models.Batch
		if err := rows.Scan(&b.ID, &b.CourseID, &b.BatchType, &b.BatchNumber, &b.MaxStudents,
			&b.CurrentStudents, &b.Status, &b.StartDate, &b.EndDate, &b.CreatedAt, &b.UpdatedAt); err != nil {
			response.ErrorResponse(w, http.StatusInternalServerError, "Error processing batches")
			return
		}
		batches = append(batches, b.ToResponse())
	}
	if err = rows.Err(); err != nil {
		response.ErrorResponse(w, http.StatusInternalServerError, "Error processing batches")
		return
	}

	response.SuccessResponse(w, http.StatusOK, fmt.Sprintf("Retrieved %d batches", len(batches)), batches)
}

type createBatchRequest struct {
	CourseID    int    `json:"course_id" validate:"required,gt=0"`
	BatchType   string `json:"batch_type" validate:"required,oneof=regular revision"`
	MaxStudents int    `json:"max_students" validate:"omitempty,gt=0"`
	StartDate   string `json:"start_date" validate:"required"`
	EndDate     string `json:"end_date" validate:"required"`
}

// CreateBatch creates a new batch for a course (admin endpoint). The seat
// limit defaults to the course batch size limit and may not exceed it.
func CreateBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req createBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	start, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid start_date, expected YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid end_date, expected YYYY-MM-DD")
		return
	}
	if !end.After(start) {
		response.ErrorResponse(w, http.StatusBadRequest, "end_date must be after start_date")
		return
	}

	var batchSizeLimit int
	err = db.DB.QueryRowContext(r.Context(),
		`SELECT batch_size_limit FROM courses WHERE id = $1`, req.CourseID).Scan(&batchSizeLimit)
	if err != nil {
		response.ErrorResponse(w, http.StatusNotFound, "Course not found")
		return
	}

	maxStudents := req.MaxStudents
	if maxStudents == 0 {
		maxStudents = batchSizeLimit
	}
	if maxStudents > batchSizeLimit {
		response.ErrorResponse(w, http.StatusBadRequest,
			fmt.Sprintf("max_students cannot exceed course batch size limit of %d", batchSizeLimit))
		return
	}

	var id int
	err = db.DB.QueryRowContext(r.Context(),
		`INSERT INTO batches (course_id, batch_type, batch_number, max_students, status, start_date, end_date)
		 VALUES ($1, $2,
			(SELECT COALESCE(MAX(batch_number), 0) + 1 FROM batches WHERE course_id = $1 AND batch_type = $2),
			$3, 'scheduled', $4, $5)
		 RETURNING id`,
		req.CourseID, req.BatchType, maxStudents, start, end).Scan(&id)
	if err != nil {
		response.ErrorResponse(w, http.StatusInternalServerError, "Error creating batch")
		return
	}

	response.SuccessResponse(w, http.StatusCreated, "Batch created", map[string]int{"id": id})
}
