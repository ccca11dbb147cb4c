package response

import (
	"encoding/json"
	"net/http"

	"enrollment-module/errors"
	"enrollment-module/logger"
)

// StandardResponse is the envelope every endpoint returns.
type StandardResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SuccessResponse sends a success response with given status code, message, and data
func SuccessResponse(w http.ResponseWriter, statusCode int, message string, data interface{}) {
	response := StandardResponse{
		Status:  "success",
		Message: message,
		Data:    data,
	}
	SendJSON(w, statusCode, response)
}

// ErrorResponse sends an error response with given status code and error message
func ErrorResponse(w http.ResponseWriter, statusCode int, errorMsg string) {
	response := StandardResponse{
		Status: "error",
		Error:  errorMsg,
	}
	SendJSON(w, statusCode, response)
}

// KindError maps a service error to its HTTP status and sends it.
func KindError(w http.ResponseWriter, err error) {
	ErrorResponse(w, statusFor(errors.KindOf(err)), err.Error())
}

func statusFor(k errors.Kind) int {
	switch k {
	case errors.NotFound:
		return http.StatusNotFound
	case errors.Invalid:
		return http.StatusBadRequest
	case errors.Conflict, errors.CapacityExceeded, errors.BatchFull:
		return http.StatusConflict
	case errors.SignatureMismatch:
		return http.StatusUnauthorized
	case errors.PaymentNotCaptured:
		return http.StatusPaymentRequired
	case errors.GatewayUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// SendJSON encodes and sends a JSON response
func SendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
