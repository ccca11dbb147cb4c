package handlers

import (
	"github.com/go-playground/validator/v10"

	"enrollment-module/services"
)

var (
	orders      *services.Orders
	verifier    *services.Verifier
	enrollments *services.Enrollments
	webhooks    *services.WebhookProcessor
	store       services.Store

	validate = validator.New()
)

// Init wires the handler package to its services. Must be called before
// SetupRoutes registers anything.
func Init(o *services.Orders, v *services.Verifier, e *services.Enrollments, w *services.WebhookProcessor, s services.Store) {
	orders = o
	verifier = v
	enrollments = e
	webhooks = w
	store = s
}
