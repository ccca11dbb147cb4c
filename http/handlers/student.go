package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"enrollment-module/db"
	"enrollment-module/http/response"
	"enrollment-module/models"
)

type createStudentRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
}

// CreateStudent registers a student record so checkout has an identity to
// enroll. Authentication stays with the external identity provider.
func CreateStudent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req createStudentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	var student models.Student
	err := db.DB.QueryRowContext(r.Context(),
		`INSERT INTO students (name, email, phone)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, email, phone, created_at`,
		req.Name, req.Email, req.Phone,
	).Scan(&student.ID, &student.Name, &student.Email, &student.Phone, &student.CreatedAt)
	if err != nil {
		response.ErrorResponse(w, http.StatusInternalServerError, "Error creating student")
		return
	}

	response.SuccessResponse(w, http.StatusCreated, "Student created", student)
}

// GetStudent retrieves a student by ID
func GetStudent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		response.ErrorResponse(w, http.StatusBadRequest, "Student ID is required")
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid student ID")
		return
	}

	var student models.Student
	err = db.DB.QueryRowContext(r.Context(),
		`SELECT id, name, email, phone, created_at FROM students WHERE id = $1`,
		id,
	).Scan(&student.ID, &student.Name, &student.Email, &student.Phone, &student.CreatedAt)
	if err != nil {
		response.ErrorResponse(w, http.StatusNotFound, "Student not found")
		return
	}

	response.SuccessResponse(w, http.StatusOK, "Student retrieved", student)
}
