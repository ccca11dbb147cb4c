package http

import (
	"net/http"

	"enrollment-module/http/handlers"
	"enrollment-module/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware
func SetupRoutes() {
	// Checkout APIs
	http.HandleFunc("/checkout/order", middleware.EnableCORS(handlers.CreateOrder))
	http.HandleFunc("/checkout/verify", middleware.EnableCORS(handlers.VerifyPayment))

	// Enrollment APIs
	http.HandleFunc("/enrollment", middleware.EnableCORS(handlers.GetEnrollment))
	http.HandleFunc("/enrollment/transition", middleware.EnableCORS(handlers.TransitionEnrollment))
	http.HandleFunc("/enrollment/cancel", middleware.EnableCORS(handlers.CancelEnrollment))
	http.HandleFunc("/enrollment/transfer", middleware.EnableCORS(handlers.TransferEnrollment))

	// Course Management APIs
	http.HandleFunc("/create-student", middleware.EnableCORS(handlers.CreateStudent))
	http.HandleFunc("/student", middleware.EnableCORS(handlers.GetStudent))

	http.HandleFunc("/courses", middleware.EnableCORS(handlers.GetCourses))
	http.HandleFunc("/course", middleware.EnableCORS(handlers.GetCourseByID))
	http.HandleFunc("/create-course", middleware.EnableCORS(handlers.CreateCourse))
	http.HandleFunc("/update-course", middleware.EnableCORS(handlers.UpdateCourse))

	// Batch Management APIs
	http.HandleFunc("/batches", middleware.EnableCORS(handlers.GetBatches))
	http.HandleFunc("/create-batch", middleware.EnableCORS(handlers.CreateBatch))

	// Payment APIs
	http.HandleFunc("/payments", middleware.EnableCORS(handlers.GetPayments))
	http.HandleFunc("/payments/failure", middleware.EnableCORS(handlers.ReportPaymentFailure))

	// Admin APIs
	http.HandleFunc("/admin/refunds-owed", middleware.EnableCORS(handlers.GetRefundsOwed))
	http.HandleFunc("/admin/resolve-refund", middleware.EnableCORS(handlers.ResolveRefund))
	http.HandleFunc("/export/payments", middleware.EnableCORS(handlers.ExportPayments))

	// Gateway webhooks
	http.HandleFunc("/webhook/razorpay", handlers.RazorpayWebhook)
}
