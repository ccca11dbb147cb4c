package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"enrollment-module/http/response"
	"enrollment-module/logger"
)

type createOrderRequest struct {
	StudentID        int    `json:"student_id" validate:"required,gt=0"`
	CourseID         int    `json:"course_id" validate:"required,gt=0"`
	BatchType        string `json:"batch_type" validate:"required,oneof=regular revision"`
	OfflineMaterials bool   `json:"offline_materials"`
}

// CreateOrder starts a checkout: validates the request, reserves intent and
// returns the gateway order for the client to pay.
func CreateOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	order, err := orders.Create(r.Context(), req.StudentID, req.CourseID, req.BatchType, req.OfflineMaterials)
	if err != nil {
		response.KindError(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusCreated, "Order created", order)
}

type verifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" validate:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" validate:"required"`
	RazorpaySignature string `json:"razorpay_signature" validate:"required"`
}

// VerifyPayment handles the browser checkout callback. Safe to retry: the
// same order always settles to the same outcome.
func VerifyPayment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	result, err := verifier.VerifyPayment(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		response.KindError(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Payment verified", result)
}

// GetEnrollment returns one enrollment with its payment snapshot.
func GetEnrollment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	idStr := r.URL.Query().Get("id")
	if idStr == "" {
		response.ErrorResponse(w, http.StatusBadRequest, "Enrollment ID is required")
		return
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid enrollment ID")
		return
	}

	enrollment, err := store.GetEnrollment(r.Context(), id)
	if err != nil {
		response.KindError(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Enrollment retrieved", enrollment.ToResponse())
}

type transitionRequest struct {
	EnrollmentID int    `json:"enrollment_id" validate:"required,gt=0"`
	Status       string `json:"status" validate:"required,oneof=active completed"`
}

// TransitionEnrollment moves an enrollment to active or completed.
func TransitionEnrollment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	if err := enrollments.Transition(r.Context(), req.EnrollmentID, req.Status); err != nil {
		response.KindError(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Enrollment updated", nil)
}

type cancelRequest struct {
	EnrollmentID int    `json:"enrollment_id" validate:"required,gt=0"`
	Reason       string `json:"reason"`
}

// CancelEnrollment cancels an enrollment and frees its seat if it held one.
func CancelEnrollment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	if req.Reason == "" {
		req.Reason = "cancelled by operator"
	}

	if err := enrollments.Cancel(r.Context(), req.EnrollmentID, req.Reason); err != nil {
		response.KindError(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Enrollment cancelled", nil)
}

type transferRequest struct {
	EnrollmentID int `json:"enrollment_id" validate:"required,gt=0"`
	ToBatchID    int `json:"to_batch_id" validate:"required,gt=0"`
}

// TransferEnrollment moves an enrolled student to another batch.
func TransferEnrollment(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	if err := enrollments.Transfer(r.Context(), req.EnrollmentID, req.ToBatchID); err != nil {
		response.KindError(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Enrollment transferred", nil)
}

// RazorpayWebhook receives gateway webhook deliveries.
func RazorpayWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Failed to read request body")
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get("X-Razorpay-Signature")
	if err := webhooks.Process(r.Context(), body, signature); err != nil {
		logger.Error("[WEBHOOK] Processing failed: %v", err)
		response.KindError(w, err)
		return
	}
	response.SuccessResponse(w, http.StatusOK, "Webhook processed", nil)
}
