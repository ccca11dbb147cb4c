package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"enrollment-module/db"
	"enrollment-module/http/response"
	"enrollment-module/logger"
	"enrollment-module/models"
	"enrollment-module/services"
)

func scanPayments(rows *sql.Rows) ([]models.Payment, error) {
	payments := []models.Payment{}
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.StudentID, &p.CourseID, &p.EnrollmentID,
			&p.Amount, &p.Currency, &p.Status, &p.OrderID, &p.PaymentID,
			&p.Receipt, &p.RefundOwed, &p.FailureReason, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

const paymentColumns = `id, student_id, course_id, enrollment_id, amount, currency, status,
	COALESCE(order_id, ''), payment_id, receipt, refund_owed, failure_reason, paid_at, created_at`

// GetPayments lists a student's payments, newest first.
func GetPayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	studentIDStr := r.URL.Query().Get("student_id")
	if studentIDStr == "" {
		response.ErrorResponse(w, http.StatusBadRequest, "Student ID is required")
		return
	}
	studentID, err := strconv.Atoi(studentIDStr)
	if err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid student ID")
		return
	}

	query := fmt.Sprintf(`SELECT %s FROM payments WHERE student_id = $1 ORDER BY created_at DESC`, paymentColumns)
	rows, err := db.DB.QueryContext(r.Context(), query, studentID)
	if err != nil {
		response.ErrorResponse(w, http.StatusInternalServerError, "Error fetching payments")
		return
	}
	defer rows.Close()

	payments, err := scanPayments(rows)
	if err != nil {
		response.ErrorResponse(w, http.StatusInternalServerError, "Error processing payments")
		return
	}

	response.SuccessResponse(w, http.StatusOK, fmt.Sprintf("Retrieved %d payments", len(payments)), payments)
}

type paymentFailureRequest struct {
	OrderID string `json:"order_id" validate:"required"`
	Reason  string `json:"reason"`
}

// ReportPaymentFailure records a checkout failure reported by the client and
// releases the pending enrollment.
func ReportPaymentFailure(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req paymentFailureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}
	if req.Reason == "" {
		req.Reason = "payment failed at checkout"
	}

	payment, err := store.GetPaymentByOrderID(r.Context(), req.OrderID)
	if err != nil {
		response.KindError(w, err)
		return
	}
	if payment.Status != models.PaymentStatusPending {
		// Settled orders keep their outcome; a stray failure report is a no-op.
		response.SuccessResponse(w, http.StatusOK, "Payment already settled", nil)
		return
	}

	if err := store.CancelPending(r.Context(), payment.EnrollmentID, req.Reason); err != nil {
		response.KindError(w, err)
		return
	}
	services.PublishPaymentFailed(payment.StudentID, req.OrderID, "", req.Reason)
	response.SuccessResponse(w, http.StatusOK, "Payment failure recorded", nil)
}

// GetRefundsOwed lists captured payments that never got a seat. Operators
// work this list down by issuing manual refunds.
func GetRefundsOwed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := fmt.Sprintf(`SELECT %s FROM payments WHERE refund_owed = TRUE ORDER BY created_at`, paymentColumns)
	rows, err := db.DB.QueryContext(r.Context(), query)
	if err != nil {
		response.ErrorResponse(w, http.StatusInternalServerError, "Error fetching refunds owed")
		return
	}
	defer rows.Close()

	payments, err := scanPayments(rows)
	if err != nil {
		response.ErrorResponse(w, http.StatusInternalServerError, "Error processing refunds owed")
		return
	}

	response.SuccessResponse(w, http.StatusOK, fmt.Sprintf("%d refunds owed", len(payments)), payments)
}

// ResolveRefund marks a refund-owed payment as refunded after the operator
// issued the refund at the gateway.
func ResolveRefund(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req struct {
		OrderID string `json:"order_id" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if err := validate.Struct(&req); err != nil {
		response.ErrorResponse(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	result, err := db.DB.ExecContext(r.Context(),
		`UPDATE payments SET status = 'refunded', refund_owed = FALSE, updated_at = CURRENT_TIMESTAMP
		 WHERE order_id = $1 AND refund_owed = TRUE`, req.OrderID)
	if err != nil {
		response.ErrorResponse(w, http.StatusInternalServerError, "Error resolving refund")
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		response.ErrorResponse(w, http.StatusNotFound, "No refund owed for that order")
		return
	}

	response.SuccessResponse(w, http.StatusOK, "Refund resolved", nil)
}

// ExportPayments streams all payments as an Excel workbook.
func ExportPayments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		response.ErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="payments_%s.xlsx"`, time.Now().Format("2006-01-02")))

	if err := services.ExportPayments(r.Context(), w); err != nil {
		logger.Error("[EXPORT] Payments export failed: %v", err)
	}
}
